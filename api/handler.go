package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/miMejorLuz/savings-advisor-service/internal/advisor"
	"github.com/miMejorLuz/savings-advisor-service/internal/ai"
	"github.com/miMejorLuz/savings-advisor-service/internal/dateutil"
	"github.com/miMejorLuz/savings-advisor-service/internal/db"
	"github.com/miMejorLuz/savings-advisor-service/internal/extract"
	"github.com/miMejorLuz/savings-advisor-service/internal/models"
	"github.com/miMejorLuz/savings-advisor-service/internal/prices"
	"github.com/miMejorLuz/savings-advisor-service/internal/storage"
)

const (
	MaxUploadSize = 10 * 1024 * 1024 // 10MB
	Version       = "1.3.0"
)

// Handler handles HTTP requests for the savings advisor.
type Handler struct {
	config    *models.Config
	processor *advisor.Processor
	prices    *prices.Service
	ai        *ai.Service
	ocr       *extract.OCR
	log       zerolog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(config *models.Config, processor *advisor.Processor, priceSvc *prices.Service, aiSvc *ai.Service, ocr *extract.OCR, log zerolog.Logger) *Handler {
	return &Handler{
		config:    config,
		processor: processor,
		prices:    priceSvc,
		ai:        aiSvc,
		ocr:       ocr,
		log:       log,
	}
}

// SetupRoutes configures the HTTP routes.
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	// Invoices
	router.HandleFunc("/api/invoices/process", h.ProcessInvoice).Methods("POST")
	router.HandleFunc("/api/invoices", h.GetInvoices).Methods("GET")
	router.HandleFunc("/api/invoice/{id}", h.DeleteInvoice).Methods("DELETE")

	// Analysis
	router.HandleFunc("/api/analysis", h.Analyze).Methods("POST")
	router.HandleFunc("/api/analysis", h.GetAnalysis).Methods("GET")
	router.HandleFunc("/api/analysis/manual", h.ManualAnalysis).Methods("POST")
	router.HandleFunc("/api/guide", h.HiringGuide).Methods("POST")
	router.HandleFunc("/api/trend", h.ConsumptionTrend).Methods("GET")

	// Prices and tariffs
	router.HandleFunc("/api/prices", h.GetPrices).Methods("GET")
	router.HandleFunc("/api/tariffs", h.GetTariffs).Methods("GET")

	// Assistant
	router.HandleFunc("/api/chat", h.Chat).Methods("POST")
	router.HandleFunc("/api/explain", h.Explain).Methods("POST")
	router.HandleFunc("/api/plan", h.Plan).Methods("POST")
	router.HandleFunc("/api/tips", h.Tips).Methods("GET")

	// Health check
	router.HandleFunc("/health", h.Health).Methods("GET")

	return router
}

// HealthResponse represents the health check response structure.
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Memory    MemoryStats       `json:"memory"`
	OCR       ServiceStatus     `json:"ocr"`
	Database  ServiceStatus     `json:"database"`
	Storage   ServiceStatus     `json:"storage"`
	AI        map[string]string `json:"ai"`
}

// MemoryStats represents memory usage statistics.
type MemoryStats struct {
	Allocated string `json:"allocated"`
	Total     string `json:"total"`
	System    string `json:"system"`
}

// ServiceStatus represents the status of a service dependency.
type ServiceStatus struct {
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

var startTime = time.Now()

// Health endpoint, public.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(startTime).String(),
		Memory: MemoryStats{
			Allocated: fmt.Sprintf("%.2f MB", float64(m.Alloc)/1024/1024),
			Total:     fmt.Sprintf("%.2f MB", float64(m.TotalAlloc)/1024/1024),
			System:    fmt.Sprintf("%.2f MB", float64(m.Sys)/1024/1024),
		},
		OCR:      h.checkOCR(),
		Database: h.checkDatabase(r),
		Storage:  h.checkStorage(),
		AI: map[string]string{
			"defaultProvider": h.config.AI.DefaultProvider,
		},
	}

	// OCR is a fallback for scanned invoices; the service still works
	// without it, so its absence only degrades the status.
	if !response.OCR.Available {
		response.Status = "degraded"
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

func (h *Handler) checkOCR() ServiceStatus {
	if h.ocr == nil || !h.ocr.Available() {
		return ServiceStatus{
			Available: false,
			Error:     "pdftoppm or tesseract not found",
		}
	}
	return ServiceStatus{Available: true}
}

func (h *Handler) checkDatabase(r *http.Request) ServiceStatus {
	if db.Pool == nil {
		return ServiceStatus{
			Available: false,
			Error:     "database pool not initialized",
		}
	}
	if err := db.Ping(r.Context()); err != nil {
		return ServiceStatus{Available: false, Error: err.Error()}
	}
	return ServiceStatus{Available: true}
}

func (h *Handler) checkStorage() ServiceStatus {
	if storage.Client == nil {
		return ServiceStatus{
			Available: false,
			Error:     "storage client not initialized",
		}
	}
	return ServiceStatus{Available: true}
}

// ProcessInvoice receives a PDF invoice and runs the extraction pipeline.
func (h *Handler) ProcessInvoice(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		h.sendError(w, http.StatusBadRequest, "File too large or invalid form data")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "No file provided (use 'file' field)")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to read file")
		return
	}

	name := header.Filename
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		h.sendError(w, http.StatusBadRequest, "Only PDF invoices are supported")
		return
	}

	result := h.processor.ProcessFile(ctx, name, data)

	h.log.Info().
		Str("file", name).
		Str("status", string(result.Status)).
		Int("bytes", len(data)).
		Msg("invoice processed")

	json.NewEncoder(w).Encode(map[string]any{
		"file":     result,
		"invoices": h.processor.Invoices(),
	})
}

// GetInvoices returns the session invoices plus, when a database is
// configured, the archived history.
func (h *Handler) GetInvoices(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	response := map[string]any{
		"invoices": h.processor.Invoices(),
		"files":    h.processor.Files(),
	}

	if archive := db.NewInvoiceArchive(); archive != nil {
		archived, err := archive.ListInvoices(r.Context(), 0)
		if err != nil {
			h.log.Warn().Err(err).Msg("no se pudo leer el histórico de facturas")
		} else {
			response["archived"] = archived
		}
	}

	json.NewEncoder(w).Encode(response)
}

// DeleteInvoice removes an invoice from the session and from persistence.
func (h *Handler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	id := mux.Vars(r)["id"]
	if id == "" {
		h.sendError(w, http.StatusBadRequest, "missing invoice id")
		return
	}

	h.processor.Delete(r.Context(), id)
	json.NewEncoder(w).Encode(map[string]any{
		"deleted":  id,
		"invoices": h.processor.Invoices(),
	})
}

// Analyze runs the comparative analysis over the session invoices.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	analysis, err := h.processor.Analyze(r.Context())
	if err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	json.NewEncoder(w).Encode(analysis)
}

// GetAnalysis returns the last stored analysis, if any.
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	analysis, source := h.processor.Analysis()
	if analysis == nil {
		h.sendError(w, http.StatusNotFound, "todavía no hay ningún análisis")
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"analysis": analysis,
		"source":   source,
	})
}

// ManualAnalysis runs the analysis from user-entered data instead of
// uploaded invoices.
func (h *Handler) ManualAnalysis(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var data models.ManualData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if data.Provider == "" || data.AvgConsumptionKwh <= 0 {
		h.sendError(w, http.StatusBadRequest, "provider y avgConsumptionKwh son obligatorios")
		return
	}

	analysis, err := h.processor.ManualAnalysis(r.Context(), data)
	if err != nil {
		h.sendError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	json.NewEncoder(w).Encode(analysis)
}

// HiringGuide builds a checklist for switching to the recommended tariff.
func (h *Handler) HiringGuide(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req struct {
		Tariff   string `json:"tariff"`
		Provider string `json:"provider"`
		CUPS     string `json:"cups"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Tariff == "" || req.Provider == "" {
		h.sendError(w, http.StatusBadRequest, "tariff y provider son obligatorios")
		return
	}

	guide := h.ai.HiringGuide(r.Context(), req.Tariff, req.Provider, req.CUPS)
	json.NewEncoder(w).Encode(guide)
}

// ConsumptionTrend summarizes the consumption pattern across the
// session invoices.
func (h *Handler) ConsumptionTrend(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	invoices := h.processor.Invoices()
	if len(invoices) < 2 {
		h.sendError(w, http.StatusBadRequest, "se necesitan al menos dos facturas para analizar la tendencia")
		return
	}

	trend, err := h.ai.ConsumptionTrend(r.Context(), invoices)
	if err != nil {
		h.sendError(w, http.StatusBadGateway, err.Error())
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"trend": trend})
}

// GetPrices returns the PVPC analysis for a day, served from the tiered
// cache. With ?ai=true a day the upstream has no data for falls back to
// an AI-generated estimate instead of the empty analysis.
func (h *Handler) GetPrices(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	date := r.URL.Query().Get("date")
	if date == "" {
		date = dateutil.Today()
	}

	analysis, source, err := h.prices.GetPricesForDay(r.Context(), date)
	if err != nil {
		if errors.Is(err, prices.ErrInvalidDate) {
			h.sendError(w, http.StatusBadRequest, "fecha inválida, usa el formato YYYY-MM-DD")
			return
		}
		h.sendError(w, http.StatusBadGateway, err.Error())
		return
	}

	if analysis.Empty() && r.URL.Query().Get("ai") == "true" {
		analysis = h.ai.DayPriceAnalysis(r.Context(), date)
		source = "ai"
	}

	json.NewEncoder(w).Encode(map[string]any{
		"data":   analysis,
		"source": source,
	})
}

// GetTariffs returns the provider/tariff catalogue from the upstream API.
func (h *Handler) GetTariffs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	providers, err := h.prices.Tariffs(r.Context())
	if err != nil {
		h.sendError(w, http.StatusBadGateway, err.Error())
		return
	}
	json.NewEncoder(w).Encode(providers)
}

// Chat forwards a message to the Thiago assistant.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req struct {
		Message string         `json:"message"`
		Context ai.ChatContext `json:"context"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		h.sendError(w, http.StatusBadRequest, "message es obligatorio")
		return
	}

	reply := h.ai.Chat(r.Context(), req.Message, req.Context)
	json.NewEncoder(w).Encode(map[string]string{"reply": reply})
}

// Explain returns a short explanation of an electricity concept.
func (h *Handler) Explain(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req struct {
		Topic string `json:"topic"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		h.sendError(w, http.StatusBadRequest, "topic es obligatorio")
		return
	}

	text, err := h.ai.Explain(r.Context(), req.Topic)
	if err != nil {
		h.sendError(w, http.StatusBadGateway, err.Error())
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"explanation": text})
}

// Plan schedules a list of appliances over the cheapest hours of a day.
func (h *Handler) Plan(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx := r.Context()

	var req struct {
		Appliances []string `json:"appliances"`
		Date       string   `json:"date,omitempty"`
		Explain    bool     `json:"explain,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Appliances) == 0 {
		h.sendError(w, http.StatusBadRequest, "appliances es obligatorio")
		return
	}

	date := req.Date
	if date == "" {
		date = dateutil.Today()
	}

	analysis, _, err := h.prices.GetPricesForDay(ctx, date)
	if err != nil {
		if errors.Is(err, prices.ErrInvalidDate) {
			h.sendError(w, http.StatusBadRequest, "fecha inválida, usa el formato YYYY-MM-DD")
			return
		}
		h.sendError(w, http.StatusBadGateway, err.Error())
		return
	}
	if len(analysis.Points) == 0 {
		h.sendError(w, http.StatusUnprocessableEntity, "no hay precios disponibles para esa fecha")
		return
	}

	plan := h.ai.OptimalUsagePlan(ctx, req.Appliances, analysis.Points)

	response := map[string]any{"plan": plan}
	if req.Explain {
		explanation, err := h.ai.ExplainPlan(ctx, plan)
		if err != nil {
			h.log.Warn().Err(err).Msg("no se pudo explicar el plan")
		} else {
			response["explanation"] = explanation
		}
	}
	json.NewEncoder(w).Encode(response)
}

// Tips returns saving tips; with ?date= they are grounded on that day's
// prices, otherwise they are generic.
func (h *Handler) Tips(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx := r.Context()

	date := r.URL.Query().Get("date")
	if date == "" {
		text, err := h.ai.GenericTips(ctx)
		if err != nil {
			h.sendError(w, http.StatusBadGateway, err.Error())
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"tips": text})
		return
	}

	analysis, _, err := h.prices.GetPricesForDay(ctx, date)
	if err != nil {
		if errors.Is(err, prices.ErrInvalidDate) {
			h.sendError(w, http.StatusBadRequest, "fecha inválida, usa el formato YYYY-MM-DD")
			return
		}
		h.sendError(w, http.StatusBadGateway, err.Error())
		return
	}

	text, err := h.ai.DailyTips(ctx, analysis)
	if err != nil {
		h.sendError(w, http.StatusBadGateway, err.Error())
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"tips": text, "date": date})
}

func (h *Handler) sendError(w http.ResponseWriter, statusCode int, message string) {
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
