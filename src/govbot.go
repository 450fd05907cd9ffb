package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zeroy-labs/govbot/src/api/webserver"
	"github.com/zeroy-labs/govbot/src/bot"
	"github.com/zeroy-labs/govbot/src/bot/components/directory"
	"github.com/zeroy-labs/govbot/src/bot/components/notify"
	"github.com/zeroy-labs/govbot/src/bot/components/reconciler"
	"github.com/zeroy-labs/govbot/src/bot/components/subscription"
	"github.com/zeroy-labs/govbot/src/bot/config"
	"github.com/zeroy-labs/govbot/src/bot/types"
	"github.com/zeroy-labs/govbot/src/data"
	"github.com/zeroy-labs/govbot/src/tally"
	"gorm.io/gorm"
)

func migrate(db *gorm.DB) {
	err := db.AutoMigrate(
		&types.Subscriber{},
		&types.ProposalBaseline{},
		&types.Setting{},
	)
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}
}

func main() {
	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "govbot:govbot@tcp(127.0.0.1:3306)/govbot"
	}

	db := data.MustMySQL(mysqlDSN)
	migrate(db)

	cfg := config.Load(db)
	if cfg.DiscordToken == "" {
		log.Fatal("DISCORD_TOKEN not set in database or environment")
	}
	if cfg.TallyAPIKey == "" {
		log.Fatal("TALLY_API_KEY not set in database or environment")
	}

	rdb := data.MustRedis(cfg.RedisURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := tally.NewClient(cfg.TallyAPIURL, cfg.TallyAPIKey,
		tally.WithRetry(cfg.RetryAttempts, cfg.RetryDelay))

	dir := directory.New(rdb, client, cfg.DirectoryTTL)
	dir.Prime(ctx)

	subsSvc := subscription.NewService(subscription.NewGormStore(db), cfg.MaxSubscriptions)
	renderer := notify.NewRenderer()

	b, err := bot.New(bot.Config{
		Token:            cfg.DiscordToken,
		MaxSubscriptions: cfg.MaxSubscriptions,
		Subs:             subsSvc,
		Directory:        dir,
		Renderer:         renderer,
	})
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	dispatcher := notify.NewDispatcher(b)
	recon := reconciler.New(dir, data.NewBaselines(db), subsSvc, dispatcher, cfg.TrackedProposals)
	subsSvc.SetSeeder(recon)

	if err := b.Start(); err != nil {
		log.Fatalf("Failed to start bot: %v", err)
	}

	go reconciler.StartPeriodic(ctx, recon, cfg.PollInterval)

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: webserver.New(subsSvc, dir),
	}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: %v", err)
		}
	}()
	log.Printf("GovBot query API listening on %s", cfg.Port)

	log.Println("GovBot is running. Press CTRL-C to exit.")

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	cancel()

	shutCtx, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()
	_ = httpSrv.Shutdown(shutCtx)

	if err := b.Stop(); err != nil {
		log.Printf("discord: close: %v", err)
	}
	log.Println("GovBot stopped gracefully")
}
