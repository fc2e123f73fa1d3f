package jamendo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"streamfinder/metrics"
	"streamfinder/models"
)

func successBody(results ...models.Candidate) map[string]any {
	return map[string]any{
		"headers": map[string]any{"status": "success", "code": 0, "results_count": len(results)},
		"results": results,
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc, retries int) (*Client, *metrics.Metrics) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	m := metrics.New()
	return New(Options{
		BaseURL:    server.URL,
		ClientID:   "test-client",
		Timeout:    time.Second,
		MaxRetries: retries,
		Backoff:    time.Millisecond,
		Metrics:    m,
	}), m
}

func TestSearchByText(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		client, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/tracks/" {
				t.Errorf("path = %s, want /tracks/", r.URL.Path)
			}
			q := r.URL.Query()
			if q.Get("search") != "Midnight City M83" {
				t.Errorf("search = %q", q.Get("search"))
			}
			if q.Get("limit") != "5" {
				t.Errorf("limit = %q, want 5", q.Get("limit"))
			}
			if q.Get("client_id") != "test-client" {
				t.Errorf("client_id = %q", q.Get("client_id"))
			}
			if q.Get("audioformat") != "mp32" {
				t.Errorf("audioformat = %q", q.Get("audioformat"))
			}
			_ = json.NewEncoder(w).Encode(successBody(models.Candidate{
				SecondaryID: "1", Name: "Midnight City", ArtistName: "M83",
				RawAudioURL: "https://x/stream?trackid=1", CoverImageURL: "https://x/1.jpg", DurationSeconds: 243,
			}))
		}, 0)

		got := client.SearchByText(context.Background(), "Midnight City M83", 5)
		if len(got) != 1 {
			t.Fatalf("len = %d, want 1", len(got))
		}
		if got[0].SecondaryID != "1" || got[0].DurationSeconds != 243 || got[0].RawAudioURL != "https://x/stream?trackid=1" {
			t.Errorf("candidate = %+v", got[0])
		}
		if v := testutil.ToFloat64(m.CatalogRequests.WithLabelValues("search", "ok")); v != 1 {
			t.Errorf("ok counter = %v, want 1", v)
		}
	})

	t.Run("Server Error Degrades To Empty", func(t *testing.T) {
		client, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}, 0)

		got := client.SearchByText(context.Background(), "anything", 5)
		if got == nil || len(got) != 0 {
			t.Errorf("got %v, want empty non-nil slice", got)
		}
		if v := testutil.ToFloat64(m.CatalogRequests.WithLabelValues("search", "error")); v != 1 {
			t.Errorf("error counter = %v, want 1", v)
		}
	})

	t.Run("Malformed Payload Degrades To Empty", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>not json</html>"))
		}, 0)

		if got := client.SearchByText(context.Background(), "anything", 5); len(got) != 0 {
			t.Errorf("got %v, want empty", got)
		}
	})

	t.Run("Jamendo Error Header Degrades To Empty", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"headers": map[string]any{"status": "failed", "code": 5, "error_message": "invalid client id"},
				"results": []any{},
			})
		}, 0)

		if got := client.SearchByText(context.Background(), "anything", 5); len(got) != 0 {
			t.Errorf("got %v, want empty", got)
		}
	})

	t.Run("Timeout Degrades To Empty", func(t *testing.T) {
		client, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}, 0)
		client.timeout = 20 * time.Millisecond

		if got := client.SearchByText(context.Background(), "slow", 5); len(got) != 0 {
			t.Errorf("got %v, want empty", got)
		}
		if v := testutil.ToFloat64(m.CatalogRequests.WithLabelValues("search", "timeout")); v != 1 {
			t.Errorf("timeout counter = %v, want 1", v)
		}
	})

	t.Run("Empty Query Skips Request", func(t *testing.T) {
		var calls atomic.Int32
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		}, 0)

		if got := client.SearchByText(context.Background(), "   ", 5); len(got) != 0 {
			t.Errorf("got %v, want empty", got)
		}
		if calls.Load() != 0 {
			t.Errorf("calls = %d, want 0", calls.Load())
		}
	})

	t.Run("Limit Is Clamped", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("limit"); got != "200" {
				t.Errorf("limit = %q, want 200", got)
			}
			_ = json.NewEncoder(w).Encode(successBody())
		}, 0)

		client.SearchByText(context.Background(), "q", 1000)
	})
}

func TestSearchByTextRetries(t *testing.T) {
	t.Run("Retries Server Errors", func(t *testing.T) {
		var calls atomic.Int32
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_ = json.NewEncoder(w).Encode(successBody(models.Candidate{SecondaryID: "7", RawAudioURL: "https://x/7"}))
		}, 2)

		got := client.SearchByText(context.Background(), "q", 5)
		if len(got) != 1 {
			t.Fatalf("len = %d, want 1", len(got))
		}
		if calls.Load() != 3 {
			t.Errorf("calls = %d, want 3", calls.Load())
		}
	})

	t.Run("Does Not Retry Client Errors", func(t *testing.T) {
		var calls atomic.Int32
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}, 2)

		if got := client.SearchByText(context.Background(), "q", 5); len(got) != 0 {
			t.Errorf("got %v, want empty", got)
		}
		if calls.Load() != 1 {
			t.Errorf("calls = %d, want 1", calls.Load())
		}
	})

	t.Run("Stops On Cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		var calls atomic.Int32
		client, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			cancel()
			w.WriteHeader(http.StatusBadGateway)
		}, 5)

		if got := client.SearchByText(ctx, "q", 5); len(got) != 0 {
			t.Errorf("got %v, want empty", got)
		}
		if calls.Load() != 1 {
			t.Errorf("calls = %d, want 1", calls.Load())
		}
		if v := testutil.ToFloat64(m.CatalogRequests.WithLabelValues("search", "canceled")); v != 1 {
			t.Errorf("canceled counter = %v, want 1", v)
		}
	})
}

func TestLookupByID(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		results []models.Candidate
		wantOK  bool
	}{
		{
			name:    "found",
			status:  http.StatusOK,
			results: []models.Candidate{{SecondaryID: "42", Name: "Song", RawAudioURL: "https://x/42"}},
			wantOK:  true,
		},
		{
			name:    "unknown id",
			status:  http.StatusOK,
			results: nil,
			wantOK:  false,
		},
		{
			name:    "no audio",
			status:  http.StatusOK,
			results: []models.Candidate{{SecondaryID: "42", Name: "Song"}},
			wantOK:  false,
		},
		{
			name:   "provider failure",
			status: http.StatusInternalServerError,
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if got := r.URL.Query().Get("id"); got != "42" {
					t.Errorf("id = %q, want 42", got)
				}
				if tt.status != http.StatusOK {
					w.WriteHeader(tt.status)
					return
				}
				_ = json.NewEncoder(w).Encode(successBody(tt.results...))
			}, 0)

			got, ok := client.LookupByID(context.Background(), "42")
			if ok != tt.wantOK {
				t.Fatalf("LookupByID() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got.SecondaryID != "42" {
				t.Errorf("LookupByID() = %+v", got)
			}
		})
	}

	t.Run("empty id", func(t *testing.T) {
		client := New(Options{BaseURL: "http://127.0.0.1:0"})
		if _, ok := client.LookupByID(context.Background(), ""); ok {
			t.Error("expected not found for empty id")
		}
	})
}
