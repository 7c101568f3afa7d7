package prices

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miMejorLuz/savings-advisor-service/internal/httpx"
	"github.com/miMejorLuz/savings-advisor-service/internal/models"
)

type mapStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapStore() *mapStore {
	return &mapStore{data: make(map[string][]byte)}
}

func (m *mapStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func sampleDay(date string) map[string]any {
	return map[string]any{
		"date": date,
		"points": []map[string]any{
			{"time": date + "T00:00:00+02:00", "priceEurKWh": 0.12},
			{"time": date + "T01:00:00+02:00", "priceEurKWh": 0.08},
			{"time": date + "T02:00:00+02:00", "priceEurKWh": 0.20},
		},
		"averagePriceEurKWh": 999.0, // deliberately wrong, must be recomputed
		"bestHour":           map[string]any{"time": "bogus", "priceEurKWh": 0},
		"worstHour":          map[string]any{"time": "bogus", "priceEurKWh": 0},
		"bestWindow": map[string]any{
			"startTime":          date + "T01:00:00+02:00",
			"endTime":            date + "T03:00:00+02:00",
			"averagePriceEurKWh": 0.14,
			"explanation":        "Horas valle de madrugada",
		},
		"co2Analysis":    "Generación mayormente renovable",
		"actionableTips": []string{"Pon la lavadora a la 01:00"},
	}
}

func newPriceServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		date := r.URL.Query().Get("date")
		json.NewEncoder(w).Encode(sampleDay(date))
	}))
}

func newTestService(baseURL string, store Store) *Service {
	client := httpx.NewClient(1, zerolog.Nop())
	return New(baseURL, client, store, zerolog.Nop())
}

func TestGetPricesForDayTiers(t *testing.T) {
	var hits atomic.Int64
	srv := newPriceServer(t, &hits)
	defer srv.Close()

	store := newMapStore()
	svc := newTestService(srv.URL, store)

	data, source, err := svc.GetPricesForDay(context.Background(), "2025-06-15")
	require.NoError(t, err)
	assert.Equal(t, SourceNetwork, source)
	assert.Equal(t, "2025-06-15", data.Date)
	assert.Len(t, data.Points, 3)

	// Second lookup comes from memory without touching the network.
	_, source, err = svc.GetPricesForDay(context.Background(), "2025-06-15")
	require.NoError(t, err)
	assert.Equal(t, SourceMemory, source)
	assert.Equal(t, int64(1), hits.Load())

	// A fresh service sharing the store hits the persistent tier.
	svc2 := newTestService(srv.URL, store)
	data2, source, err := svc2.GetPricesForDay(context.Background(), "2025-06-15")
	require.NoError(t, err)
	assert.Equal(t, SourceStore, source)
	assert.Equal(t, data, data2)
	assert.Equal(t, int64(1), hits.Load())
}

func TestGetPricesForDayRecomputesAggregates(t *testing.T) {
	var hits atomic.Int64
	srv := newPriceServer(t, &hits)
	defer srv.Close()

	svc := newTestService(srv.URL, nil)
	data, _, err := svc.GetPricesForDay(context.Background(), "2025-06-15")
	require.NoError(t, err)

	// The server sent bogus aggregates; they must be derived from points.
	assert.InDelta(t, (0.12+0.08+0.20)/3, data.AveragePriceEurKWh, 1e-9)
	assert.Equal(t, 0.08, data.BestHour.PriceEurKWh)
	assert.Equal(t, 0.20, data.WorstHour.PriceEurKWh)
	assert.Equal(t, "2025-06-15T01:00:00+02:00", data.BestHour.Time)
}

func TestGetPricesForDayTTLExpiry(t *testing.T) {
	var hits atomic.Int64
	srv := newPriceServer(t, &hits)
	defer srv.Close()

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	svc := newTestService(srv.URL, newMapStore()).WithClock(func() time.Time { return now })

	_, _, err := svc.GetPricesForDay(context.Background(), "2025-06-15")
	require.NoError(t, err)
	require.Equal(t, int64(1), hits.Load())

	// Past the memory TTL but inside the store TTL: store tier answers.
	now = now.Add(MemoryTTL + time.Second)
	_, source, err := svc.GetPricesForDay(context.Background(), "2025-06-15")
	require.NoError(t, err)
	assert.Equal(t, SourceStore, source)
	assert.Equal(t, int64(1), hits.Load())

	// Past both TTLs: back to the network.
	now = now.Add(StoreTTL)
	_, source, err = svc.GetPricesForDay(context.Background(), "2025-06-15")
	require.NoError(t, err)
	assert.Equal(t, SourceNetwork, source)
	assert.Equal(t, int64(2), hits.Load())
}

func TestGetPricesForDayInvalidDate(t *testing.T) {
	var hits atomic.Int64
	srv := newPriceServer(t, &hits)
	defer srv.Close()

	svc := newTestService(srv.URL, nil)
	for _, date := range []string{"", "hoy", "2025-13-01", "2025-02-30", "2025-7-1", "15/06/2025"} {
		_, _, err := svc.GetPricesForDay(context.Background(), date)
		assert.ErrorIs(t, err, ErrInvalidDate, "date %q", date)
	}
	assert.Equal(t, int64(0), hits.Load(), "invalid dates must not reach the network")
}

func TestGetPricesForDayNoDataSentinel(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"error": "ESIOS devolvió 0 puntos para indicador 1001"})
	}))
	defer srv.Close()

	svc := newTestService(srv.URL, newMapStore())
	data, source, err := svc.GetPricesForDay(context.Background(), "2025-06-16")
	require.NoError(t, err)
	assert.Equal(t, SourceNetwork, source)
	assert.True(t, data.Empty())
	assert.Contains(t, data.CO2Analysis, "20:30h")

	// The empty analysis is cached like any other result.
	_, source, err = svc.GetPricesForDay(context.Background(), "2025-06-16")
	require.NoError(t, err)
	assert.Equal(t, SourceMemory, source)
	assert.Equal(t, int64(1), hits.Load())
}

func TestGetPricesForDayUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token ESIOS caducado", http.StatusForbidden)
	}))
	defer srv.Close()

	svc := newTestService(srv.URL, nil)
	_, _, err := svc.GetPricesForDay(context.Background(), "2025-06-15")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token ESIOS caducado")
}

func TestPrefetchOneShot(t *testing.T) {
	var hits atomic.Int64
	srv := newPriceServer(t, &hits)
	defer srv.Close()

	svc := newTestService(srv.URL, nil)
	svc.Prefetch(context.Background())
	assert.Equal(t, int64(3), hits.Load(), "yesterday, today and tomorrow")

	svc.Prefetch(context.Background())
	assert.Equal(t, int64(3), hits.Load(), "second prefetch is a no-op")
}

func TestTariffs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tariffs", r.URL.Path)
		json.NewEncoder(w).Encode([]models.Provider{
			{ID: "endesa", Name: "Endesa", Tariffs: []models.Tariff{{ID: "one", Name: "One Luz", Type: "fijo", IsActive: true}}},
		})
	}))
	defer srv.Close()

	svc := newTestService(srv.URL, nil)
	providers, err := svc.Tariffs(context.Background())
	require.NoError(t, err)
	require.Len(t, providers, 1)
	assert.Equal(t, "Endesa", providers[0].Name)
	require.Len(t, providers[0].Tariffs, 1)
	assert.Equal(t, "fijo", providers[0].Tariffs[0].Type)
}
