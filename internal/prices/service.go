// Package prices retrieves daily PVPC price analyses through a tiered
// cache: in-process memory, a persistent key/value store, then the
// upstream network endpoint. The service exists so every view of "what
// does electricity cost on day X" goes through one object with one
// consistency story, instead of each caller hitting the upstream API.
package prices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/miMejorLuz/savings-advisor-service/internal/dateutil"
	"github.com/miMejorLuz/savings-advisor-service/internal/httpx"
	"github.com/miMejorLuz/savings-advisor-service/internal/models"
)

const (
	// MemoryTTL bounds the in-process tier. Short, because intraday
	// corrections to published prices do happen.
	MemoryTTL = 5 * time.Minute
	// StoreTTL bounds the persistent tier.
	StoreTTL = 2 * time.Hour
	// CachePrefix namespaces persistent keys: "mml:prices:" + YYYY-MM-DD.
	CachePrefix = "mml:prices:"

	// noDataSentinel is the substring the upstream returns when ESIOS has
	// not published prices for the requested date yet (typically tomorrow
	// before ~20:30). Brittle by nature: if the upstream rewords its error
	// this stops matching and the condition degrades to a hard error.
	noDataSentinel = "ESIOS devolvió 0 puntos"

	noDataNote = "No hay datos de precios disponibles para esta fecha. " +
		"Generalmente, los precios para mañana se publican sobre las 20:30h."
)

// ErrInvalidDate marks a malformed or impossible YYYY-MM-DD input.
// Callers must not retry with the same input.
var ErrInvalidDate = errors.New("invalid date")

// Source identifies which tier satisfied a lookup.
type Source string

const (
	SourceMemory  Source = "memory"
	SourceStore   Source = "store"
	SourceNetwork Source = "network"
)

// Store is the persistent key/value tier. Implementations must tolerate
// concurrent use; writes are best-effort from the service's point of view.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Service is the tiered price cache. Construct one per process with New
// and share it; all state lives on the struct so tests can inject a fake
// clock and store.
type Service struct {
	baseURL string
	client  *httpx.Client
	store   Store // nil disables the persistent tier
	now     func() time.Time
	log     zerolog.Logger

	mu     sync.Mutex
	memory map[string]models.CacheEntry

	prefetched atomic.Bool
}

// New builds a Service against the upstream base URL. store may be nil,
// in which case lookups go memory → network.
func New(baseURL string, client *httpx.Client, store Store, log zerolog.Logger) *Service {
	return &Service{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		store:   store,
		now:     time.Now,
		log:     log,
		memory:  make(map[string]models.CacheEntry),
	}
}

// WithClock overrides the service clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// GetPricesForDay returns the price analysis for date (YYYY-MM-DD) and the
// tier that satisfied it. A date the upstream has no data for yet is a
// valid empty analysis, not an error; it is cached like a success so
// known-empty dates do not hammer the network.
func (s *Service) GetPricesForDay(ctx context.Context, date string) (models.DayPriceAnalysis, Source, error) {
	if !dateutil.ValidDate(date) {
		return models.DayPriceAnalysis{}, "", fmt.Errorf("%w: %q (use YYYY-MM-DD)", ErrInvalidDate, date)
	}

	now := s.now()

	s.mu.Lock()
	entry, ok := s.memory[date]
	s.mu.Unlock()
	if ok && now.UnixMilli()-entry.Timestamp < MemoryTTL.Milliseconds() {
		return entry.Data, SourceMemory, nil
	}

	if s.store != nil {
		raw, found, err := s.store.Get(ctx, CachePrefix+date)
		if err != nil {
			s.log.Warn().Err(err).Str("date", date).Msg("persistent cache read failed")
		} else if found {
			var stored models.CacheEntry
			if err := json.Unmarshal(raw, &stored); err != nil {
				s.log.Warn().Err(err).Str("date", date).Msg("persistent cache entry corrupt")
			} else if now.UnixMilli()-stored.Timestamp < StoreTTL.Milliseconds() {
				// Promote to memory; idempotent, so racing lookups are fine.
				s.mu.Lock()
				s.memory[date] = stored
				s.mu.Unlock()
				return stored.Data, SourceStore, nil
			}
		}
	}

	data, err := s.fetchDay(ctx, date)
	if err != nil {
		return models.DayPriceAnalysis{}, "", err
	}
	s.cache(ctx, date, data, now)
	return data, SourceNetwork, nil
}

func (s *Service) fetchDay(ctx context.Context, date string) (models.DayPriceAnalysis, error) {
	reqURL := fmt.Sprintf("%s/prices?date=%s", s.baseURL, url.QueryEscape(date))
	resp, err := s.client.Get(ctx, reqURL)
	if err != nil {
		return models.DayPriceAnalysis{}, fmt.Errorf("fetching prices for %s: %w", date, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.DayPriceAnalysis{}, fmt.Errorf("reading prices response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errBody struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &errBody) == nil && strings.Contains(errBody.Error, noDataSentinel) {
			s.log.Info().Str("date", date).Msg("no prices published yet, returning empty analysis")
			return models.EmptyDayPriceAnalysis(date, noDataNote), nil
		}
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return models.DayPriceAnalysis{}, fmt.Errorf("prices request for %s failed: %s", date, msg)
	}

	var wire dailyResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return models.DayPriceAnalysis{}, fmt.Errorf("decoding prices response: %w", err)
	}
	return normalizeDaily(wire), nil
}

// cache writes through both tiers. The persistent write is best-effort:
// the memory tier already satisfies the current request, so store errors
// are logged and swallowed.
func (s *Service) cache(ctx context.Context, date string, data models.DayPriceAnalysis, now time.Time) {
	entry := models.CacheEntry{Data: data, Timestamp: now.UnixMilli()}

	s.mu.Lock()
	s.memory[date] = entry
	s.mu.Unlock()

	if s.store == nil {
		return
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		s.log.Warn().Err(err).Str("date", date).Msg("serializing cache entry failed")
		return
	}
	if err := s.store.Set(ctx, CachePrefix+date, raw); err != nil {
		s.log.Warn().Err(err).Str("date", date).Msg("persistent cache write failed")
	}
}

// Prefetch warms the cache for yesterday, today and tomorrow (Madrid civil
// dates). One-shot per process: repeat calls are no-ops. The three lookups
// run concurrently and failures are isolated per date; tomorrow routinely
// has no data before the evening publication.
func (s *Service) Prefetch(ctx context.Context) {
	if !s.prefetched.CompareAndSwap(false, true) {
		return
	}

	now := s.now()
	dates := []string{
		dateutil.CivilDateBefore(now),
		dateutil.CivilDate(now),
		dateutil.CivilDateAfter(now),
	}

	var wg sync.WaitGroup
	for _, date := range dates {
		wg.Add(1)
		go func(date string) {
			defer wg.Done()
			if _, _, err := s.GetPricesForDay(ctx, date); err != nil {
				s.log.Debug().Err(err).Str("date", date).Msg("prefetch failed, this can be normal")
			}
		}(date)
	}
	wg.Wait()
}

// Tariffs fetches the current tariff catalogue from the upstream. No
// caching: the catalogue is small and requested rarely.
func (s *Service) Tariffs(ctx context.Context) ([]models.Provider, error) {
	resp, err := s.client.Get(ctx, s.baseURL+"/tariffs")
	if err != nil {
		return nil, fmt.Errorf("fetching tariffs: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading tariffs response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("tariffs request failed: %s", msg)
	}

	var providers []models.Provider
	if err := json.Unmarshal(body, &providers); err != nil {
		return nil, fmt.Errorf("decoding tariffs response: %w", err)
	}
	return providers, nil
}
