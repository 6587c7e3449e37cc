package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rickgao/binance-collector/internal/router"
	"github.com/rickgao/binance-collector/internal/writer"
)

func TestMetrics_Observers(t *testing.T) {
	m := New("BTCUSDC")

	m.ObserveEvent(router.KindTrade)
	m.ObserveEvent(router.KindTrade)
	m.ObserveEvent(router.KindDepth)
	m.ObserveDecodeError()
	m.ObserveChunk(writer.ChunkInfo{Seq: 1, Rows: 100, Duration: 3 * time.Millisecond})
	m.ObserveChunk(writer.ChunkInfo{Seq: 2, Rows: 37, Duration: time.Millisecond})

	if got := testutil.ToFloat64(m.events.WithLabelValues("trade")); got != 2 {
		t.Errorf("events{trade} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.events.WithLabelValues("depth")); got != 1 {
		t.Errorf("events{depth} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.events.WithLabelValues("unknown")); got != 0 {
		t.Errorf("events{unknown} = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.decodeErrors); got != 1 {
		t.Errorf("decode_errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.chunks); got != 2 {
		t.Errorf("chunks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.rowsWritten); got != 137 {
		t.Errorf("rows_written = %v, want 137", got)
	}
}

func TestMetrics_ClassifierWiring(t *testing.T) {
	m := New("BTCUSDC")
	c := router.NewClassifier(nil)
	c.SetObserver(m)

	c.Classify([]byte(`{"e":"trade","p":"1","q":"1"}`))
	c.Classify([]byte(`{"result":null,"id":1}`))
	c.Classify([]byte(`{`))

	if got := testutil.ToFloat64(m.events.WithLabelValues("trade")); got != 1 {
		t.Errorf("events{trade} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.events.WithLabelValues("unknown")); got != 1 {
		t.Errorf("events{unknown} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.decodeErrors); got != 1 {
		t.Errorf("decode_errors = %v, want 1", got)
	}
}

func TestHandler_Metrics(t *testing.T) {
	m := New("BTCUSDC")
	m.ObserveChunk(writer.ChunkInfo{Rows: 5})

	srv := httptest.NewServer(NewHandler(m, "/metrics"))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(body), `collector_rows_written_total{symbol="BTCUSDC"} 5`) {
		t.Errorf("rows_written_total missing from scrape:\n%s", body)
	}
}

func TestHandler_Health(t *testing.T) {
	tests := []struct {
		name       string
		checks     []Check
		wantStatus int
		wantHealth string
	}{
		{
			name:       "no checks",
			wantStatus: http.StatusOK,
			wantHealth: "healthy",
		},
		{
			name: "passing check",
			checks: []Check{{
				Name: "collector",
				Fn: func(context.Context) (any, error) {
					return map[string]int64{"frames": 10}, nil
				},
			}},
			wantStatus: http.StatusOK,
			wantHealth: "healthy",
		},
		{
			name: "failing check",
			checks: []Check{{
				Name: "timescaledb",
				Fn: func(context.Context) (any, error) {
					return nil, errors.New("connection refused")
				},
			}},
			wantStatus: http.StatusServiceUnavailable,
			wantHealth: "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(New("BTCUSDC"), "", tt.checks...)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var body struct {
				Status     string         `json:"status"`
				Components map[string]any `json:"components"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Status != tt.wantHealth {
				t.Errorf("status field = %q, want %q", body.Status, tt.wantHealth)
			}
			if len(body.Components) != len(tt.checks) {
				t.Errorf("components = %v", body.Components)
			}
		})
	}
}
