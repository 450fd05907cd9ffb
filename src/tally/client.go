package tally

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/zeroy-labs/govbot/src/webclient"
)

const DefaultAPIURL = "https://api.tally.xyz/query"

// ErrNotFound is returned when a slug does not resolve to an organization.
var ErrNotFound = errors.New("tally: organization not found")

const organizationQuery = `
query($input: OrganizationInput!) {
	organization(input: $input) {
		id
		name
		slug
	}
}`

const proposalsQuery = `
query($input: ProposalsInput!) {
	proposals(input: $input) {
		nodes {
			... on Proposal {
				id
				status
				start {
					... on Block { timestamp }
					... on BlocklessTimestamp { timestamp }
				}
				end {
					... on Block { timestamp }
					... on BlocklessTimestamp { timestamp }
				}
				metadata { title }
			}
		}
		pageInfo {
			lastCursor
			count
		}
	}
}`

const organizationsQuery = `
query($input: OrganizationsInput!) {
	organizations(input: $input) {
		nodes {
			... on Organization {
				id
				name
				slug
			}
		}
		pageInfo {
			lastCursor
			count
		}
	}
}`

// Client talks to the Tally GraphQL API with bounded retry. Exhausted
// retries surface as errors; callers treat that as "no data this cycle".
type Client struct {
	url        string
	apiKey     string
	attempts   int
	retryDelay time.Duration
	pageDelay  time.Duration
	client     *http.Client
}

type Option func(*Client)

func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		c.attempts = attempts
		c.retryDelay = delay
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.client = h }
}

func NewClient(url, apiKey string, opts ...Option) *Client {
	if url == "" {
		url = DefaultAPIURL
	}
	c := &Client{
		url:        url,
		apiKey:     apiKey,
		attempts:   3,
		retryDelay: 5 * time.Second,
		pageDelay:  time.Second,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchOrganization looks up a single organization by slug.
func (c *Client) FetchOrganization(ctx context.Context, slug string) (Organization, error) {
	var resp struct {
		Organization *Organization `json:"organization"`
	}
	vars := map[string]any{"input": map[string]any{"slug": slug}}
	if err := c.query(ctx, organizationQuery, vars, &resp); err != nil {
		return Organization{}, err
	}
	if resp.Organization == nil || resp.Organization.ID == "" {
		return Organization{}, ErrNotFound
	}
	return *resp.Organization, nil
}

// FetchRecentProposals returns up to limit proposals for the organization,
// most recent first (descending proposal id).
func (c *Client) FetchRecentProposals(ctx context.Context, orgID string, limit int) ([]Proposal, error) {
	var resp struct {
		Proposals struct {
			Nodes    []proposalNode `json:"nodes"`
			PageInfo pageInfo       `json:"pageInfo"`
		} `json:"proposals"`
	}
	vars := map[string]any{
		"input": map[string]any{
			"filters": map[string]any{"organizationId": orgID},
			"sort":    map[string]any{"sortBy": "id", "isDescending": true},
			"page":    map[string]any{"limit": limit},
		},
	}
	if err := c.query(ctx, proposalsQuery, vars, &resp); err != nil {
		return nil, err
	}

	proposals := make([]Proposal, 0, len(resp.Proposals.Nodes))
	for _, node := range resp.Proposals.Nodes {
		p, err := node.toProposal()
		if err != nil {
			log.Printf("tally: skipping malformed proposal node: %v", err)
			continue
		}
		proposals = append(proposals, p)
	}
	return proposals, nil
}

// FetchAllOrganizations pages through the full organization directory,
// pausing between pages to respect upstream pacing.
func (c *Client) FetchAllOrganizations(ctx context.Context) ([]Organization, error) {
	var all []Organization
	lastCursor := ""

	for {
		page := map[string]any{}
		if lastCursor != "" {
			page["afterCursor"] = lastCursor
		}
		vars := map[string]any{
			"input": map[string]any{
				"sort": map[string]any{"sortBy": "id", "isDescending": true},
				"page": page,
			},
		}

		var resp struct {
			Organizations struct {
				Nodes    []Organization `json:"nodes"`
				PageInfo pageInfo       `json:"pageInfo"`
			} `json:"organizations"`
		}
		if err := c.query(ctx, organizationsQuery, vars, &resp); err != nil {
			if len(all) > 0 {
				log.Printf("tally: directory fetch interrupted after %d organizations: %v", len(all), err)
				return all, nil
			}
			return nil, err
		}

		all = append(all, resp.Organizations.Nodes...)

		// The last page carries an empty cursor.
		lastCursor = resp.Organizations.PageInfo.LastCursor
		if lastCursor == "" {
			break
		}

		t := time.NewTimer(c.pageDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return all, ctx.Err()
		case <-t.C:
		}
	}

	return all, nil
}

func (c *Client) query(ctx context.Context, query string, vars map[string]any, out any) error {
	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return err
	}

	status, body, err := c.doWithRetry(ctx, payload)
	if err != nil {
		return fmt.Errorf("tally: request failed (status %d): %w", status, err)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("tally: malformed response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("tally: api error: %s", envelope.Errors[0].Message)
	}
	if len(envelope.Data) == 0 {
		return fmt.Errorf("tally: response missing data")
	}
	return json.Unmarshal(envelope.Data, out)
}

func (c *Client) doWithRetry(ctx context.Context, payload []byte) (int, []byte, error) {
	attempt := 0
	return webclient.DoWithRetry(ctx, c.attempts, c.retryDelay, func() (int, []byte, error) {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Api-Key", c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			log.Printf("tally: api request failed (attempt %d/%d): %v", attempt, c.attempts, err)
			return 0, nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			log.Printf("tally: api returned status %d (attempt %d/%d)", resp.StatusCode, attempt, c.attempts)
		}
		return resp.StatusCode, body, nil
	})
}

func (n proposalNode) toProposal() (Proposal, error) {
	id, err := strconv.ParseUint(n.ID, 10, 64)
	if err != nil {
		return Proposal{}, fmt.Errorf("proposal id %q: %w", n.ID, err)
	}
	p := Proposal{
		ID:     id,
		Status: n.Status,
		Title:  n.Metadata.Title,
	}
	// Timestamps are informational; a missing or malformed one leaves the
	// zero value and the renderer degrades to a placeholder.
	if t, err := time.Parse(time.RFC3339, n.Start.Timestamp); err == nil {
		p.Start = t
	}
	if t, err := time.Parse(time.RFC3339, n.End.Timestamp); err == nil {
		p.End = t
	}
	return p, nil
}
