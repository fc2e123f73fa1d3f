package handlers

// handlers expose the resolver over HTTP. They validate input, hand it to the
// resolver and map the outcome to a status code; they hold no state of their own.

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"streamfinder/config"
	"streamfinder/metrics"
	"streamfinder/models"
	"streamfinder/sentryhelper"
	"streamfinder/spotify"
)

const maxSearchLimit = 50

type TrackResolver interface {
	Resolve(ctx context.Context, track models.TrackRef) models.ResolvedSource
	ResolveBatch(ctx context.Context, items []models.BatchItem) []models.BatchItemResult
	Search(ctx context.Context, query string, limit int) []models.Candidate
	StreamURL(ctx context.Context, id string) (string, bool)
}

type PrimaryCatalog interface {
	GetTrackRef(ctx context.Context, trackID string) (models.TrackRef, error)
}

type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	Limit int    `json:"limit" binding:"omitempty,min=1,max=50"`
}

type Manager struct {
	Resolver      TrackResolver
	Primary       PrimaryCatalog
	Metrics       *metrics.Metrics
	SearchLimit   int
	MaxBatchItems int
}

// NewManager wires the handlers. primary may be nil, in which case the
// Spotify routes answer 503.
func NewManager(resolver TrackResolver, primary PrimaryCatalog, m *metrics.Metrics) *Manager {
	return &Manager{
		Resolver:      resolver,
		Primary:       primary,
		Metrics:       m,
		SearchLimit:   config.Config.Jamendo.SearchLimit,
		MaxBatchItems: config.Config.Batch.MaxItems,
	}
}

func (manager *Manager) Register(router *gin.Engine) {
	router.GET("/healthz", manager.Health)
	router.GET("/readyz", manager.Ready)
	if manager.Metrics != nil {
		router.GET("/metrics", gin.WrapH(manager.Metrics.Handler()))
	}

	api := router.Group("/api")
	api.POST("/tracks/search", traced("tracks.search"), manager.Search)
	api.POST("/tracks/resolve-batch", traced("tracks.resolve_batch"), manager.ResolveBatch)
	api.POST("/tracks/resolve", traced("tracks.resolve"), manager.Resolve)
	api.GET("/tracks/:id/stream", traced("tracks.stream"), manager.Stream)
	api.GET("/spotify/tracks/:id/resolve", traced("spotify.resolve"), manager.ResolveSpotify)
}

// traced gives every API request its own Sentry hub and transaction.
func traced(route string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, transaction := sentryhelper.StartRequestTransaction(c.Request.Context(), route)
		defer transaction.Finish()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
		transaction.SetData("http.status_code", c.Writer.Status())
	}
}

func (manager *Manager) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (manager *Manager) Ready(c *gin.Context) {
	if manager.Resolver == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (manager *Manager) Search(c *gin.Context) {
	logger := log.WithFields(log.Fields{"module": "handlers", "function": "Search"})

	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Debugf("invalid search request: %v", err)
		badRequest(c, "query is required and limit must be between 1 and 50")
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		badRequest(c, "query is required")
		return
	}

	limit := req.Limit
	if limit == 0 {
		limit = manager.SearchLimit
	}
	limit = min(limit, maxSearchLimit)

	results := manager.Resolver.Search(c.Request.Context(), query, limit)
	logger.Debugf("search %q returned %d results", query, len(results))
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (manager *Manager) ResolveBatch(c *gin.Context) {
	logger := log.WithFields(log.Fields{"module": "handlers", "function": "ResolveBatch"})

	body, err := c.GetRawData()
	if err != nil {
		badRequest(c, "failed to read body")
		return
	}

	var items []models.BatchItem
	if err := json.Unmarshal(body, &items); err != nil || items == nil {
		logger.Debugf("invalid batch body: %v", err)
		badRequest(c, "body must be a JSON array of objects")
		return
	}
	if manager.MaxBatchItems > 0 && len(items) > manager.MaxBatchItems {
		badRequest(c, "too many items")
		return
	}

	results := manager.Resolver.ResolveBatch(c.Request.Context(), items)
	c.JSON(http.StatusOK, results)
}

func (manager *Manager) Resolve(c *gin.Context) {
	var track models.TrackRef
	if err := c.ShouldBindJSON(&track); err != nil {
		badRequest(c, "title and artistName are required")
		return
	}
	if strings.TrimSpace(track.Title) == "" {
		badRequest(c, "title is required")
		return
	}

	c.JSON(http.StatusOK, manager.Resolver.Resolve(c.Request.Context(), track))
}

func (manager *Manager) Stream(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		badRequest(c, "id is required")
		return
	}

	streamURL, ok := manager.Resolver.StreamURL(c.Request.Context(), id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "track not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "streamUrl": streamURL})
}

func (manager *Manager) ResolveSpotify(c *gin.Context) {
	logger := log.WithFields(log.Fields{"module": "handlers", "function": "ResolveSpotify"})

	if manager.Primary == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "spotify is not configured"})
		return
	}

	trackID, err := spotify.ParseTrackID(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid spotify track id")
		return
	}

	track, err := manager.Primary.GetTrackRef(c.Request.Context(), trackID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "track not found"})
		return
	case err != nil:
		logger.Warnf("spotify lookup failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "spotify is unavailable"})
		return
	}

	c.JSON(http.StatusOK, manager.Resolver.Resolve(c.Request.Context(), track))
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}
