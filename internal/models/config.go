package models

// Config represents the service configuration, loaded from YAML with
// environment overrides applied in main.
type Config struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	// Upstream price/tariff API
	Upstream UpstreamConfig `yaml:"upstream"`

	// OCR fallback for scanned invoices
	OCR OCRConfig `yaml:"ocr"`

	// AI providers
	AI AIConfig `yaml:"ai"`

	// API credentials accepted by the login endpoint
	Auth AuthConfig `yaml:"auth"`
}

// UpstreamConfig points at the cloud function publishing PVPC prices and
// the tariff catalogue.
type UpstreamConfig struct {
	BaseURL string `yaml:"base_url"`
}

// OCRConfig configures the Tesseract fallback.
type OCRConfig struct {
	Language string `yaml:"language"` // default: "spa"
	MaxPages int    `yaml:"max_pages"`
}

// AIConfig selects and configures the generative providers.
type AIConfig struct {
	Gemini GeminiConfig `yaml:"gemini"`
	OpenAI OpenAIConfig `yaml:"openai"`

	DefaultProvider string `yaml:"default_provider"` // "gemini" or "openai"
}

// GeminiConfig for Google Gemini.
type GeminiConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`      // default: "gemini-2.5-flash"
	ChatModel string `yaml:"chat_model"` // default: "gemini-2.5-pro"
}

// OpenAIConfig for OpenAI or any compatible endpoint.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model"`
}

// AuthConfig lists the clients allowed to obtain an API token.
type AuthConfig struct {
	Clients []APIClient `yaml:"clients"`
}

// APIClient is one id/secret pair accepted by the login endpoint.
type APIClient struct {
	ID     string `yaml:"id"`
	Secret string `yaml:"secret"`
}
