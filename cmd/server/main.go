package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/miMejorLuz/savings-advisor-service/api"
	"github.com/miMejorLuz/savings-advisor-service/internal/advisor"
	"github.com/miMejorLuz/savings-advisor-service/internal/ai"
	"github.com/miMejorLuz/savings-advisor-service/internal/auth"
	"github.com/miMejorLuz/savings-advisor-service/internal/db"
	"github.com/miMejorLuz/savings-advisor-service/internal/extract"
	"github.com/miMejorLuz/savings-advisor-service/internal/httpx"
	"github.com/miMejorLuz/savings-advisor-service/internal/models"
	"github.com/miMejorLuz/savings-advisor-service/internal/prices"
	"github.com/miMejorLuz/savings-advisor-service/internal/storage"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	config, err := loadConfig("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if err := auth.Init(); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize auth")
	}
	log.Info().Msg("JWT authentication initialized")

	if err := db.Init(); err != nil {
		log.Warn().Err(err).Msg("database not available, running without persistence")
	} else {
		defer db.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := db.EnsureSchema(ctx); err != nil {
			log.Warn().Err(err).Msg("could not ensure database schema")
		}
		cancel()
		log.Info().Msg("database connection pool initialized")
	}

	if err := storage.Init(); err != nil {
		log.Warn().Err(err).Msg("MinIO storage not available, documents will not be stored")
	} else {
		log.Info().Msg("MinIO storage initialized")
	}

	ctx := context.Background()

	provider, chatProvider, err := buildProviders(ctx, config)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize AI provider")
	}
	aiSvc := ai.NewService(provider, chatProvider, log)

	var priceStore prices.Store
	if s := db.NewPriceStore(); s != nil {
		priceStore = s
	}
	priceSvc := prices.New(config.Upstream.BaseURL, httpx.NewClient(3, log), priceStore, log)

	ocr := extract.NewOCR(config.OCR.Language, config.OCR.MaxPages, log)
	extractor := extract.New(ocr, log)

	var archive advisor.Archive
	if a := db.NewInvoiceArchive(); a != nil {
		archive = a
	}
	var documents advisor.DocumentStore
	if d := storage.NewDocuments(); d != nil {
		documents = d
	}
	processor := advisor.New(extractor, aiSvc, archive, documents, log)

	handler := api.NewHandler(config, processor, priceSvc, aiSvc, ocr, log)
	router := handler.SetupRoutes()
	router.HandleFunc("/api/login", auth.LoginHandler(config.Auth.Clients)).Methods("POST")
	protected := auth.JWTMiddleware(router)

	// Warm the price cache for yesterday, today and tomorrow.
	go priceSvc.Prefetch(ctx)

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      protected,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	log.Info().
		Str("addr", addr).
		Str("aiProvider", config.AI.DefaultProvider).
		Bool("database", db.Pool != nil).
		Bool("storage", storage.Client != nil).
		Bool("ocr", ocr.Available()).
		Msg("starting MiMejorLuz savings advisor")

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}

// buildProviders returns the structured-output provider and the chat
// provider according to the configured default.
func buildProviders(ctx context.Context, config *models.Config) (ai.Provider, ai.Provider, error) {
	switch config.AI.DefaultProvider {
	case "openai":
		p, err := ai.NewOpenAIProvider(config.AI.OpenAI.APIKey, config.AI.OpenAI.BaseURL, config.AI.OpenAI.Model)
		if err != nil {
			return nil, nil, err
		}
		return p, p, nil
	case "gemini", "":
		p, err := ai.NewGeminiProvider(ctx, config.AI.Gemini.APIKey, config.AI.Gemini.Model)
		if err != nil {
			return nil, nil, err
		}
		chatModel := config.AI.Gemini.ChatModel
		if chatModel == "" || chatModel == config.AI.Gemini.Model {
			return p, p, nil
		}
		chat, err := ai.NewGeminiProvider(ctx, config.AI.Gemini.APIKey, chatModel)
		if err != nil {
			return nil, nil, err
		}
		return p, chat, nil
	default:
		return nil, nil, fmt.Errorf("unknown AI provider %q", config.AI.DefaultProvider)
	}
}

func loadConfig(path string) (*models.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config models.Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Environment overrides
	if port := os.Getenv("PORT"); port != "" {
		fmt.Sscanf(port, "%d", &config.Port)
	}
	if host := os.Getenv("HOST"); host != "" {
		config.Host = host
	}
	if base := os.Getenv("PRICES_API_BASE"); base != "" {
		config.Upstream.BaseURL = base
	}
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.AI.Gemini.APIKey = apiKey
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.AI.OpenAI.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.AI.OpenAI.BaseURL = baseURL
	}
	if provider := os.Getenv("AI_PROVIDER"); provider != "" {
		config.AI.DefaultProvider = provider
	}

	if config.Port == 0 {
		config.Port = 8080
	}
	if config.OCR.Language == "" {
		config.OCR.Language = "spa"
	}
	if config.OCR.MaxPages == 0 {
		config.OCR.MaxPages = 2
	}
	if config.AI.Gemini.Model == "" {
		config.AI.Gemini.Model = "gemini-2.5-flash"
	}
	if config.AI.Gemini.ChatModel == "" {
		config.AI.Gemini.ChatModel = "gemini-2.5-pro"
	}

	return &config, nil
}
