package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

// LLM providers accepted by LLM_PROVIDER.
const (
	ProviderGoogle = "google"
	ProviderGroq   = "groq"
)

type Config struct {
	GoogleApiKey  string
	GroqApiKey    string
	TavilyApiKey  string
	MistralApiKey string
	DatabaseURL   string
	ChromaURL     string
	Port          string

	LLMProvider    string
	ReportModel    string
	GroqModel      string
	ReasoningModel string
	EmbeddingModel string
	VisionModel    string
	ReportFormat   string

	ChunkSize    int
	ChunkOverlap int
	LocalTopK    int

	SearchProviders      []string
	TavilyDepth          string
	PubMedMaxResults     int
	PubMedEmail          string
	PubMedTool           string
	WikipediaExcerpt     int
	DuckDuckGoMaxResults int
	ArxivMaxResults      int

	VectorBackend  string
	CollectionName string
}

func Load() *Config {
	return &Config{
		GoogleApiKey:  getEnv("GOOGLE_API_KEY", ""),
		GroqApiKey:    getEnv("GROQ_API_KEY", ""),
		TavilyApiKey:  getEnv("TAVILY_API_KEY", ""),
		MistralApiKey: getEnv("MISTRAL_API_KEY", ""),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		ChromaURL:     getEnv("CHROMA_URL", ""),
		Port:          getEnv("PORT", "8081"),

		LLMProvider:    strings.ToLower(getEnv("LLM_PROVIDER", ProviderGoogle)),
		ReportModel:    getEnv("REPORT_MODEL", "gemini-2.0-flash"),
		GroqModel:      getEnv("GROQ_MODEL", "llama3-8b-8192"),
		ReasoningModel: getEnv("REASONING_MODEL", "gemini-2.0-flash"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "gemini-embedding-001"),
		VisionModel:    getEnv("VISION_MODEL", "gemini-2.0-flash"),
		ReportFormat:   getEnv("REPORT_FORMAT", "extended"),

		ChunkSize:    getEnvAsInt("CHUNK_SIZE", 10000),
		ChunkOverlap: getEnvAsInt("CHUNK_OVERLAP", 1000),
		LocalTopK:    getEnvAsInt("LOCAL_TOP_K", 4),

		SearchProviders:      getEnvAsList("SEARCH_PROVIDERS", []string{"tavily", "pubmed", "wikipedia"}),
		TavilyDepth:          getEnv("TAVILY_DEPTH", "advanced"),
		PubMedMaxResults:     getEnvAsInt("PUBMED_MAX_RESULTS", 10),
		PubMedEmail:          getEnv("PUBMED_EMAIL", ""),
		PubMedTool:           getEnv("PUBMED_TOOL", "researchify"),
		WikipediaExcerpt:     getEnvAsInt("WIKIPEDIA_EXCERPT", 1000),
		DuckDuckGoMaxResults: getEnvAsInt("DUCKDUCKGO_MAX_RESULTS", 2),
		ArxivMaxResults:      getEnvAsInt("ARXIV_MAX_RESULTS", 5),

		VectorBackend:  strings.ToLower(getEnv("VECTOR_BACKEND", "memory")),
		CollectionName: getEnv("COLLECTION_NAME", "local_documents"),
	}
}

// Validate reports missing credentials for the selected report model.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderGoogle:
		if c.GoogleApiKey == "" {
			return errors.New("GOOGLE_API_KEY is not set")
		}
	case ProviderGroq:
		if c.GroqApiKey == "" {
			return errors.New("GROQ_API_KEY is not set")
		}
	default:
		return errors.New("LLM_PROVIDER must be one of google, groq")
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return errors.New("CHUNK_OVERLAP must be smaller than CHUNK_SIZE")
	}
	return nil
}

// ProviderEnabled reports whether a search provider is listed in SEARCH_PROVIDERS.
func (c *Config) ProviderEnabled(name string) bool {
	for _, p := range c.SearchProviders {
		if p == name {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
