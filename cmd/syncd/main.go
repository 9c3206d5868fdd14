package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"accessadmin.com/accessadmin/attendance/app"
	"accessadmin.com/accessadmin/attendance/web/handlers"
	"accessadmin.com/accessadmin/config"
	"accessadmin.com/accessadmin/security"
	"accessadmin.com/accessadmin/web/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := config.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.WithField("module", "cmd/syncd").Fatal(err)
	}
	config.SetLogLevel(cfg.LogLevel)

	secret, err := security.DecodeSecret(cfg.SigningSecret)
	if err != nil {
		logger.WithField("module", "cmd/syncd").Fatal(err)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.WithField("module", "cmd/syncd").Fatal(err)
	}
	defer a.Close()

	sched, err := a.Scheduler()
	if err != nil {
		logger.WithField("module", "cmd/syncd").Fatal(err)
	}
	sched.Start(ctx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.CORS(cfg.CORSOrigins))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	protected := r.Group("/api/sync")
	protected.Use(middlewares.Authentication(secret))
	handlers.NewSyncHandler(sched, a.Ledger, a.Registry, a.Directory).Register(protected)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	serverErr := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{"module": "cmd/syncd", "addr": cfg.HTTPAddr}).Info("listening")
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			config.LogError(logger, "cmd/syncd", "main", "http server stopped", nil, err)
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		config.LogError(logger, "cmd/syncd", "main", "http shutdown", nil, err)
	}

	// cancelled ctx stops the tickers; wait for passes still in flight
	sched.Wait()
	logger.WithField("module", "cmd/syncd").Info("stopped")
}
