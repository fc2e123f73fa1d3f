package sentry

import (
	"time"

	sentry "github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"streamfinder/config"
)

// Init configures the global Sentry client. An empty DSN leaves the client
// disabled and every capture becomes a no-op.
func Init() {
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              config.Config.Sentry.DSN,
		Release:          config.Config.Sentry.Release,
		TracesSampleRate: 1.0,
	}); err != nil {
		log.Fatalf("sentry.Init: %s", err)
	}
}

func GetSentryGin() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{Repanic: true})
}

func ReportError(err error) {
	sentry.CaptureException(err)
}

// Flush waits for buffered events to be sent before the process exits.
func Flush() {
	sentry.Flush(2 * time.Second)
}
