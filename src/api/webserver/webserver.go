package webserver

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/zeroy-labs/govbot/src/bot/components/directory"
	"github.com/zeroy-labs/govbot/src/bot/components/subscription"
)

// New builds the read-only query router. Nothing here mutates baselines or
// subscription records; that belongs to the chat surface and the scheduler.
func New(subs *subscription.Service, dir *directory.Directory) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
	}))

	attachRoutes(r, subs, dir)
	return r
}

func attachRoutes(r *gin.Engine, subs *subscription.Service, dir *directory.Directory) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	queryH := NewQueries(subs, dir)

	v1 := r.Group("/v1")
	{
		v1.GET("/subscriptions/:userID", queryH.Subscriptions)
		v1.GET("/proposals/:slug", queryH.RecentProposals)
	}
}
