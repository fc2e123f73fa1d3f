package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.ngrok.com/ngrok"
	ngrokconfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/sync/errgroup"

	"streamfinder/config"
	"streamfinder/handlers"
	"streamfinder/jamendo"
	"streamfinder/metrics"
	"streamfinder/resolver"
	"streamfinder/sentry"
	"streamfinder/spotify"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (default)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()
	res := resolver.NewFromConfig(jamendo.NewFromConfig(m), m)

	var primary handlers.PrimaryCatalog
	if config.Config.Spotify.IsEnabled() {
		catalog, err := spotify.NewCatalogFromConfig(ctx)
		if err != nil {
			log.Warnf("Spotify disabled: %v", err)
		} else {
			primary = catalog
		}
	}

	if config.Config.Options.LogLevel != "debug" && config.Config.Options.LogLevel != "trace" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), sentry.GetSentryGin(), requestLogger())
	handlers.NewManager(res, primary, m).Register(router)

	listener, err := listen(ctx)
	if err != nil {
		sentry.ReportError(err)
		return err
	}

	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("Starting server on %s", listener.Addr())
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// listen opens an ngrok tunnel when configured, otherwise a local port.
func listen(ctx context.Context) (net.Listener, error) {
	if config.Config.NGrok.IsEnabled() {
		opts := []ngrokconfig.HTTPEndpointOption{}
		if config.Config.NGrok.Domain != "" {
			opts = append(opts, ngrokconfig.WithDomain(config.Config.NGrok.Domain))
		}
		tunnel, err := ngrok.Listen(ctx,
			ngrokconfig.HTTPEndpoint(opts...),
			ngrok.WithAuthtokenFromEnv(), // defaults to NGROK_AUTHTOKEN
		)
		if err != nil {
			return nil, err
		}
		log.Infof("Ngrok URL: %s", tunnel.URL())
		return tunnel, nil
	}

	return net.Listen("tcp", ":"+config.Config.Options.Port)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"module":  "http",
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Round(time.Millisecond),
		}).Debug("request")
	}
}
