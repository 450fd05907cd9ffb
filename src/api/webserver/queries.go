package webserver

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zeroy-labs/govbot/src/bot/components/directory"
	"github.com/zeroy-labs/govbot/src/bot/components/subscription"
)

const maxListedProposals = 20

type Queries struct {
	subs *subscription.Service
	dir  *directory.Directory
}

func NewQueries(subs *subscription.Service, dir *directory.Directory) Queries {
	return Queries{subs: subs, dir: dir}
}

func (q Queries) Subscriptions(c *gin.Context) {
	userID := c.Param("userID")

	slugs, err := q.subs.Subscriptions(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": "failed to load subscriptions"})
		return
	}
	if slugs == nil {
		slugs = []string{}
	}

	c.JSON(http.StatusOK, gin.H{
		"userId":        userID,
		"subscriptions": slugs,
	})
}

func (q Queries) RecentProposals(c *gin.Context) {
	ctx := c.Request.Context()
	slug := c.Param("slug")

	limit := 5
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"err": "bad limit"})
			return
		}
		limit = n
	}
	if limit > maxListedProposals {
		limit = maxListedProposals
	}

	org, err := q.dir.ResolveOrganization(ctx, slug)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"err": "organization not found"})
		return
	}

	proposals, err := q.dir.RecentProposals(ctx, org.ID, limit)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"err": "upstream fetch failed"})
		return
	}

	type proposalView struct {
		ID     uint64 `json:"id"`
		Status string `json:"status"`
		Title  string `json:"title"`
		Start  string `json:"start,omitempty"`
		End    string `json:"end,omitempty"`
		Link   string `json:"link"`
	}

	views := make([]proposalView, 0, len(proposals))
	for _, p := range proposals {
		view := proposalView{
			ID:     p.ID,
			Status: p.Status,
			Title:  p.Title,
			Link:   fmt.Sprintf("https://www.tally.xyz/gov/%s/proposal/%d", org.Slug, p.ID),
		}
		if !p.Start.IsZero() {
			view.Start = p.Start.UTC().Format(time.RFC3339)
		}
		if !p.End.IsZero() {
			view.End = p.End.UTC().Format(time.RFC3339)
		}
		views = append(views, view)
	}

	c.JSON(http.StatusOK, gin.H{
		"organization": org,
		"proposals":    views,
	})
}
