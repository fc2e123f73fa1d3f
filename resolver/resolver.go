package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"streamfinder/config"
	"streamfinder/matcher"
	"streamfinder/metrics"
	"streamfinder/models"
	"streamfinder/sentryhelper"
	"streamfinder/streamurl"
)

// SecondaryCatalog is the full-length audio source. Implementations absorb
// their own failures: a failed search is an empty slice, a failed lookup is
// false.
type SecondaryCatalog interface {
	SearchByText(ctx context.Context, query string, limit int) []models.Candidate
	LookupByID(ctx context.Context, id string) (models.Candidate, bool)
}

type Options struct {
	SearchLimit int
	Concurrency int
	ItemTimeout time.Duration
	Metrics     *metrics.Metrics
}

type Resolver struct {
	catalog     SecondaryCatalog
	selector    matcher.Selector
	searchLimit int
	concurrency int
	itemTimeout time.Duration
	metrics     *metrics.Metrics
}

func New(catalog SecondaryCatalog, selector matcher.Selector, opts Options) *Resolver {
	if selector == nil {
		selector = matcher.Containment{}
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 5
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = 15 * time.Second
	}

	return &Resolver{
		catalog:     catalog,
		selector:    selector,
		searchLimit: opts.SearchLimit,
		concurrency: opts.Concurrency,
		itemTimeout: opts.ItemTimeout,
		metrics:     opts.Metrics,
	}
}

func NewFromConfig(catalog SecondaryCatalog, m *metrics.Metrics) *Resolver {
	return New(catalog, matcher.FromConfig(), Options{
		SearchLimit: config.Config.Jamendo.SearchLimit,
		Concurrency: config.Config.Batch.Concurrency,
		ItemTimeout: config.Config.Batch.ItemTimeout,
		Metrics:     m,
	})
}

// Resolve finds something playable for a primary-catalog track: a full
// secondary stream when one matches, otherwise the primary preview, otherwise
// an explicit none. It never fails.
func (r *Resolver) Resolve(ctx context.Context, track models.TrackRef) models.ResolvedSource {
	logger := log.WithFields(log.Fields{"module": "resolver", "function": "Resolve", "title": track.Title})
	start := time.Now()
	defer func() { r.metrics.RecordDuration("single", time.Since(start)) }()

	span := sentryhelper.StartSpan(ctx, "resolver.resolve")
	span.Description = track.SearchQuery()
	defer span.Finish()
	ctx = span.Context()

	source := r.resolveSecondary(ctx, track)
	switch {
	case source.Playable():
		logger.Debugf("resolved to secondary track %s", source.SecondaryID)
	case track.PrimaryPreviewURL != "":
		source = models.ResolvedSource{
			SourceProvider:  models.ProviderPrimary,
			StreamURL:       track.PrimaryPreviewURL,
			Title:           track.Title,
			ArtistName:      track.ArtistName,
			CoverImageURL:   track.CoverImageURL,
			DurationSeconds: track.DurationSeconds,
		}
		logger.Debug("no secondary match, using primary preview")
	default:
		source = none(track)
		logger.Debug("no playable source")
	}

	sentryhelper.AddBreadcrumb(ctx, &sentry.Breadcrumb{
		Category: "resolver",
		Message:  fmt.Sprintf("%s resolved via %s", track.SearchQuery(), source.SourceProvider),
		Level:    sentry.LevelInfo,
	})
	span.SetTag("provider", string(source.SourceProvider))
	span.Status = sentry.SpanStatusOK
	r.metrics.RecordResolution("single", string(source.SourceProvider))
	return source
}

// ResolveCandidate is the secondary-only path: it reports false instead of
// falling back to a preview.
func (r *Resolver) ResolveCandidate(ctx context.Context, title, artist string) (models.ResolvedSource, bool) {
	track := models.TrackRef{Title: strings.TrimSpace(title), ArtistName: strings.TrimSpace(artist)}
	source := r.resolveSecondary(ctx, track)
	return source, source.Playable()
}

func (r *Resolver) resolveSecondary(ctx context.Context, track models.TrackRef) models.ResolvedSource {
	candidates := r.catalog.SearchByText(ctx, track.SearchQuery(), r.searchLimit)
	selected, ok := r.selector.Select(track, candidates)
	if !ok {
		return none(track)
	}
	return fromCandidate(track, selected)
}

// Search runs a raw text search and canonicalizes every audio URL.
func (r *Resolver) Search(ctx context.Context, query string, limit int) []models.Candidate {
	if limit <= 0 {
		limit = r.searchLimit
	}
	candidates := r.catalog.SearchByText(ctx, query, limit)
	out := make([]models.Candidate, len(candidates))
	for i, c := range candidates {
		c.RawAudioURL = streamurl.Canonicalize(c.RawAudioURL)
		out[i] = c
	}
	return out
}

// StreamURL looks a secondary track up again to get a fresh audio URL.
func (r *Resolver) StreamURL(ctx context.Context, id string) (string, bool) {
	c, ok := r.catalog.LookupByID(ctx, id)
	if !ok {
		return "", false
	}
	return streamurl.Canonicalize(c.RawAudioURL), true
}

// ResolveBatch resolves every item concurrently and returns one result per
// item in input order. A failing, panicking or slow item only affects its
// own slot.
func (r *Resolver) ResolveBatch(ctx context.Context, items []models.BatchItem) []models.BatchItemResult {
	logger := log.WithFields(log.Fields{"module": "resolver", "function": "ResolveBatch", "items": len(items)})
	start := time.Now()
	defer func() { r.metrics.RecordDuration("batch", time.Since(start)) }()
	r.metrics.RecordBatchSize(len(items))

	results := make([]models.BatchItemResult, len(items))
	for i, item := range items {
		results[i] = models.NotFound(item)
	}

	var g errgroup.Group
	g.SetLimit(r.concurrency)

	for i, item := range items {
		if ctx.Err() != nil {
			logger.Debugf("batch canceled, %d items not started", len(items)-i)
			break
		}
		if strings.TrimSpace(item.Title) == "" {
			r.metrics.RecordResolution("batch", string(models.ProviderNone))
			continue
		}
		i, item := i, item
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[i] = r.resolveItem(ctx, i, item)
			r.metrics.RecordResolution("batch", string(results[i].Source.SourceProvider))
			return nil
		})
	}
	_ = g.Wait()

	found := 0
	for _, res := range results {
		if res.Found {
			found++
		}
	}
	logger.Infof("resolved %d of %d batch items", found, len(items))
	return results
}

// resolveItem bounds one item by the per-item timeout. The batch resolves
// through ResolveCandidate, not Resolve: batch items come from a text
// generator and carry no primary preview, so there is no second tier to fall
// back to and an unmatched item is reported as not found.
func (r *Resolver) resolveItem(ctx context.Context, index int, item models.BatchItem) models.BatchItemResult {
	logger := log.WithFields(log.Fields{"module": "resolver", "function": "resolveItem", "index": index})

	itemCtx, cancel := context.WithTimeout(ctx, r.itemTimeout)
	defer cancel()

	done := make(chan models.BatchItemResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				err := fmt.Errorf("panic resolving batch item %d: %v", index, rec)
				logger.Error(err)
				sentryhelper.CaptureException(ctx, err)
				done <- models.NotFound(item)
			}
		}()

		source, ok := r.ResolveCandidate(itemCtx, item.Title, item.Artist)
		if !ok {
			done <- models.NotFound(item)
			return
		}
		done <- models.BatchItemResult{Item: item, Found: true, Source: source}
	}()

	select {
	case res := <-done:
		return res
	case <-itemCtx.Done():
		logger.Warnf("batch item abandoned: %v", itemCtx.Err())
		if errors.Is(itemCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			sentryhelper.CaptureMessage(ctx, fmt.Sprintf("batch item %d timed out after %s", index, r.itemTimeout))
		}
		return models.NotFound(item)
	}
}

func fromCandidate(track models.TrackRef, c models.Candidate) models.ResolvedSource {
	return models.ResolvedSource{
		SourceProvider:  models.ProviderSecondary,
		StreamURL:       streamurl.Canonicalize(c.RawAudioURL),
		SecondaryID:     c.SecondaryID,
		Title:           firstNonEmpty(c.Name, track.Title),
		ArtistName:      firstNonEmpty(c.ArtistName, track.ArtistName),
		CoverImageURL:   firstNonEmpty(c.CoverImageURL, track.CoverImageURL),
		DurationSeconds: firstPositive(c.DurationSeconds, track.DurationSeconds),
	}
}

func none(track models.TrackRef) models.ResolvedSource {
	return models.ResolvedSource{
		SourceProvider:  models.ProviderNone,
		Title:           track.Title,
		ArtistName:      track.ArtistName,
		CoverImageURL:   track.CoverImageURL,
		DurationSeconds: track.DurationSeconds,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
