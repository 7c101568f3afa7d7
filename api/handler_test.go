package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miMejorLuz/savings-advisor-service/internal/advisor"
	"github.com/miMejorLuz/savings-advisor-service/internal/ai"
	"github.com/miMejorLuz/savings-advisor-service/internal/httpx"
	"github.com/miMejorLuz/savings-advisor-service/internal/models"
	"github.com/miMejorLuz/savings-advisor-service/internal/prices"
)

type stubProvider struct {
	reply string
	err   error
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Generate(ctx context.Context, req ai.GenerateRequest) (string, error) {
	return s.reply, s.err
}

type stubExtractor struct{}

func (stubExtractor) Text(ctx context.Context, data []byte) string { return string(data) }

func newTestHandler(t *testing.T, provider ai.Provider, upstream string) *Handler {
	t.Helper()
	log := zerolog.Nop()
	if provider == nil {
		provider = &stubProvider{reply: "{}"}
	}
	aiSvc := ai.NewService(provider, provider, log)
	priceSvc := prices.New(upstream, httpx.NewClient(1, log), nil, log)
	processor := advisor.New(stubExtractor{}, aiSvc, nil, nil, log)
	config := &models.Config{}
	config.AI.DefaultProvider = "gemini"
	return NewHandler(config, processor, priceSvc, aiSvc, nil, log)
}

func doRequest(h *Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, target, bytes.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h.SetupRoutes().ServeHTTP(w, r)
	return w
}

func TestHealthReportsDegradedWithoutOCR(t *testing.T) {
	h := newTestHandler(t, nil, "http://unused")

	w := doRequest(h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.False(t, resp.OCR.Available)
	assert.False(t, resp.Database.Available)
	assert.Equal(t, "gemini", resp.AI["defaultProvider"])
}

func TestGetPricesRejectsInvalidDate(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream should not be reached for an invalid date")
	}))
	defer upstream.Close()

	h := newTestHandler(t, nil, upstream.URL)
	w := doRequest(h, http.MethodGet, "/api/prices?date=15/06/2025", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "YYYY-MM-DD")
}

func TestGetPricesReturnsDataAndSource(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"date": r.URL.Query().Get("date"),
			"points": []map[string]any{
				{"time": "00:00", "priceEurKWh": 0.11},
				{"time": "01:00", "priceEurKWh": 0.09},
			},
		})
	}))
	defer upstream.Close()

	h := newTestHandler(t, nil, upstream.URL)
	w := doRequest(h, http.MethodGet, "/api/prices?date=2025-06-15", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data   models.DayPriceAnalysis `json:"data"`
		Source string                  `json:"source"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "network", resp.Source)
	assert.Len(t, resp.Data.Points, 2)
	assert.Equal(t, "01:00", resp.Data.BestHour.Time)
}

func TestGetPricesAIFallbackForEmptyDay(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"error": "ESIOS devolvió 0 puntos"})
	}))
	defer upstream.Close()

	provider := &stubProvider{reply: `{"date":"2025-06-16","points":[{"time":"02:00","priceEurKWh":0.085}],
		"averagePriceEurKWh":0.085,"bestHour":{"time":"02:00","priceEurKWh":0.085},
		"worstHour":{"time":"02:00","priceEurKWh":0.085},"co2Analysis":"estimación","actionableTips":[]}`}
	h := newTestHandler(t, provider, upstream.URL)

	// Without the flag the empty analysis passes through untouched.
	w := doRequest(h, http.MethodGet, "/api/prices?date=2025-06-16", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data   models.DayPriceAnalysis `json:"data"`
		Source string                  `json:"source"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "network", resp.Source)
	assert.Empty(t, resp.Data.Points)

	w = doRequest(h, http.MethodGet, "/api/prices?date=2025-06-16&ai=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ai", resp.Source)
	require.Len(t, resp.Data.Points, 1)
	assert.InDelta(t, 0.085, resp.Data.Points[0].PriceEurKWh, 1e-9)
}

func TestChatRequiresMessage(t *testing.T) {
	h := newTestHandler(t, nil, "http://unused")
	w := doRequest(h, http.MethodPost, "/api/chat", []byte(`{"message":"  "}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatForwardsReply(t *testing.T) {
	h := newTestHandler(t, &stubProvider{reply: "Hola, soy Thiago."}, "http://unused")
	w := doRequest(h, http.MethodPost, "/api/chat",
		[]byte(`{"message":"hola","context":{"source":"dashboard","screen":"inicio"}}`))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Hola, soy Thiago.", resp["reply"])
}

func TestAnalyzeWithoutInvoices(t *testing.T) {
	h := newTestHandler(t, nil, "http://unused")
	w := doRequest(h, http.MethodPost, "/api/analysis", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no hay facturas")
}

func TestGetAnalysisBeforeAnyRun(t *testing.T) {
	h := newTestHandler(t, nil, "http://unused")
	w := doRequest(h, http.MethodGet, "/api/analysis", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestManualAnalysisValidatesBody(t *testing.T) {
	h := newTestHandler(t, nil, "http://unused")

	w := doRequest(h, http.MethodPost, "/api/analysis/manual", []byte(`{"tariff":"PVPC"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(h, http.MethodPost, "/api/analysis/manual", []byte(`not json`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProcessInvoiceRejectsNonPDF(t *testing.T) {
	h := newTestHandler(t, nil, "http://unused")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "factura.txt")
	require.NoError(t, err)
	fw.Write([]byte("texto plano"))
	mw.Close()

	r := httptest.NewRequest(http.MethodPost, "/api/invoices/process", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.SetupRoutes().ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "PDF")
}

func TestPlanRequiresAppliances(t *testing.T) {
	h := newTestHandler(t, nil, "http://unused")
	w := doRequest(h, http.MethodPost, "/api/plan", []byte(`{"appliances":[]}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExplainRequiresTopic(t *testing.T) {
	h := newTestHandler(t, nil, "http://unused")
	w := doRequest(h, http.MethodPost, "/api/explain", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTrendNeedsTwoInvoices(t *testing.T) {
	h := newTestHandler(t, nil, "http://unused")
	w := doRequest(h, http.MethodGet, "/api/trend", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, strings.ToLower(w.Body.String()), "dos facturas")
}
