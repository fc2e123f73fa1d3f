// Package sentryhelper provides utilities for Sentry transaction and scope management.
// It keeps breadcrumbs and context isolated per HTTP request.
package sentryhelper

import (
	"context"
	"fmt"

	sentry "github.com/getsentry/sentry-go"
)

type contextKey string

const hubContextKey contextKey = "sentry_hub"

// StartRequestTransaction creates a transaction with a cloned hub for one API request.
// Returns the context carrying the transaction and hub, plus the transaction span.
func StartRequestTransaction(ctx context.Context, route string) (context.Context, *sentry.Span) {
	hub := HubFromContext(ctx).Clone()
	ctx = context.WithValue(ctx, hubContextKey, hub)

	transaction := sentry.StartTransaction(ctx, fmt.Sprintf("api.%s", route),
		sentry.WithOpName("http.server"),
		sentry.WithTransactionSource(sentry.SourceRoute),
	)
	transaction.SetTag("route", route)

	hub.Scope().SetSpan(transaction)

	return transaction.Context(), transaction
}

// HubFromContext retrieves the request hub from context.
// Falls back to the hub installed by the gin middleware, then to CurrentHub.
func HubFromContext(ctx context.Context) *sentry.Hub {
	if ctx == nil {
		return sentry.CurrentHub()
	}
	if hub, ok := ctx.Value(hubContextKey).(*sentry.Hub); ok && hub != nil {
		return hub
	}
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		return hub
	}
	return sentry.CurrentHub()
}

func AddBreadcrumb(ctx context.Context, breadcrumb *sentry.Breadcrumb) {
	HubFromContext(ctx).AddBreadcrumb(breadcrumb, nil)
}

// CaptureException captures an exception on the hub in context.
func CaptureException(ctx context.Context, err error) *sentry.EventID {
	return HubFromContext(ctx).CaptureException(err)
}

// CaptureMessage is for warnings that are not errors, such as a degraded provider.
func CaptureMessage(ctx context.Context, message string) *sentry.EventID {
	return HubFromContext(ctx).CaptureMessage(message)
}

// StartSpan starts a child span attached to the transaction in context.
func StartSpan(ctx context.Context, operation string) *sentry.Span {
	return sentry.StartSpan(ctx, operation)
}
