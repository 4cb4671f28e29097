package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"github.com/mirrorgate/mirrorgate/api"
	"github.com/mirrorgate/mirrorgate/api/admin"
	"github.com/mirrorgate/mirrorgate/blocklist"
	"github.com/mirrorgate/mirrorgate/burst"
	"github.com/mirrorgate/mirrorgate/config"
	"github.com/mirrorgate/mirrorgate/database/alerts"
	"github.com/mirrorgate/mirrorgate/database/cooldowns"
	"github.com/mirrorgate/mirrorgate/database/dbcore"
	"github.com/mirrorgate/mirrorgate/eventlog"
	"github.com/mirrorgate/mirrorgate/geoip"
	"github.com/mirrorgate/mirrorgate/notify"
	"github.com/mirrorgate/mirrorgate/token"
	"github.com/mirrorgate/mirrorgate/ws"
)

func runServer(ctx context.Context) error {
	cfg := config.Load()

	for _, dir := range []string{cfg.DataDir, cfg.DownloadsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	if err := dbcore.Open(cfg.DBDriver, cfg.DBDSN, cfg.DataDir); err != nil {
		return err
	}

	// A missing signing secret is fatal: serving with an empty secret
	// would make every token forgeable.
	secret, err := token.LoadSecret(cfg.SignSecret, cfg.DataDir)
	if err != nil {
		return err
	}
	signer, err := token.NewSigner(secret)
	if err != nil {
		return err
	}

	store := blocklist.New(cfg.DataDir)
	events := eventlog.New(cfg.DataDir)

	geo, err := geoip.Open(cfg.MMDBPath)
	if err != nil {
		slog.Warn("geoip disabled", "error", err)
		geo, _ = geoip.Open("")
	}
	defer geo.Close()

	dispatcher := notify.New(cfg.WebhookURL, cfg.WebhookTimeout)
	if !dispatcher.Enabled() {
		slog.Warn("no webhook configured, burst alerts will only be recorded locally")
	}

	monitor := burst.NewMonitor(dispatcher, geo, burst.Options{
		Window:        cfg.BurstWindow,
		Threshold:     cfg.BurstThreshold,
		Cooldown:      cfg.BurstCooldown,
		LoadCooldowns: cooldowns.All,
		SaveCooldown:  cooldowns.Touch,
		RecordAlert:   alerts.Record,
	})
	defer monitor.Close()

	feed := ws.NewFeed()
	defer feed.Close()

	issuer := token.NewIssuer(signer, token.IssuerOptions{
		BaseURL:    cfg.BaseURL,
		BindIP:     cfg.BindIP,
		TTLDefault: cfg.TTLDefault,
		TTLMin:     cfg.TTLMin,
		TTLMax:     cfg.TTLMax,
	})
	verifier := token.NewVerifier(signer, cfg.BindIP, store, nil)

	scheduler := cron.New()
	scheduler.Schedule(cron.Every(time.Minute), cron.FuncJob(func() {
		monitor.Sweep(time.Now())
		store.Refresh()
	}))
	scheduler.Schedule(cron.Every(24*time.Hour), cron.FuncJob(func() {
		if n, err := cooldowns.PruneBefore(time.Now().Add(-7 * 24 * time.Hour)); err != nil {
			slog.Warn("cooldown prune failed", "error", err)
		} else if n > 0 {
			slog.Info("pruned stale alert cooldowns", "removed", n)
		}
	}))
	scheduler.Start()
	defer scheduler.Stop()

	srv := &api.Server{
		Cfg:       cfg,
		Issuer:    issuer,
		Verifier:  verifier,
		Blocklist: store,
		Events:    events,
		Monitor:   monitor,
		Geo:       geo,
		Feed:      feed,
	}
	adm := &admin.Handlers{
		Cfg:     cfg,
		Store:   store,
		Events:  events,
		Monitor: monitor,
		Geo:     geo,
		Feed:    feed,
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	srv.Routes(engine)
	adm.Routes(engine)

	httpSrv := &http.Server{Addr: cfg.Listen, Handler: engine}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("mirrorgate listening", "addr", cfg.Listen, "bind_ip", cfg.BindIP)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
