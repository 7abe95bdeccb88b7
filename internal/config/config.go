package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// PlatformConfig contains all configuration for the agent platform. Every
// field is optional in the environment; missing values fall back to
// DefaultConfig and only change which resources are targeted.
type PlatformConfig struct {
	// Resource naming
	ProjectID       string `mapstructure:"project_id" json:"project_id"`
	Location        string `mapstructure:"location" json:"location" validate:"required"`
	Dataset         string `mapstructure:"dataset" json:"dataset" validate:"required"`
	VertexLocation  string `mapstructure:"vertex_location" json:"vertex_location"`
	IncidentBucket  string `mapstructure:"incident_bucket" json:"incident_bucket" validate:"required"`
	ReportsBucket   string `mapstructure:"reports_bucket" json:"reports_bucket" validate:"required"`
	DataStoreID     string `mapstructure:"data_store_id" json:"data_store_id"`
	DataStoreRegion string `mapstructure:"data_store_region" json:"data_store_region"`
	DataStoreBucket string `mapstructure:"data_store_bucket" json:"data_store_bucket" validate:"required"`

	// Collaborators
	LLM          LLMConfig          `mapstructure:"llm" json:"llm"`
	Warehouse    WarehouseConfig    `mapstructure:"warehouse" json:"warehouse"`
	Messaging    MessagingConfig    `mapstructure:"messaging" json:"messaging"`
	Retrieval    RetrievalConfig    `mapstructure:"retrieval" json:"retrieval"`
	ControlPlane ControlPlaneConfig `mapstructure:"control_plane" json:"control_plane"`
	Feeds        FeedsConfig        `mapstructure:"feeds" json:"feeds"`

	// Core behavior
	Agents    AgentsConfig    `mapstructure:"agents" json:"agents"`
	Detection DetectionConfig `mapstructure:"detection" json:"detection"`
	Server    ServerConfig    `mapstructure:"server" json:"server"`

	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level" validate:"oneof=trace debug info warn error"`
}

// LLMConfig configures the reasoning engine and embedding model.
type LLMConfig struct {
	BaseURL        string  `mapstructure:"base_url" json:"base_url" validate:"omitempty,url"`
	APIKey         string  `mapstructure:"api_key" json:"api_key,omitempty"`
	Model          string  `mapstructure:"model" json:"model" validate:"required"`
	EmbeddingModel string  `mapstructure:"embedding_model" json:"embedding_model" validate:"required"`
	Temperature    float32 `mapstructure:"temperature" json:"temperature" validate:"min=0,max=2"`
	MaxTokens      int     `mapstructure:"max_tokens" json:"max_tokens" validate:"min=0,max=100000"`
}

// WarehouseConfig locates the log and findings warehouse.
type WarehouseConfig struct {
	DSN string `mapstructure:"dsn" json:"dsn,omitempty"`
}

// MessagingConfig locates the NATS server used for broadcasts, jobs and object storage.
type MessagingConfig struct {
	NATSURL string `mapstructure:"nats_url" json:"nats_url,omitempty"`
	Stream  string `mapstructure:"stream" json:"stream" validate:"required"`
}

// RetrievalConfig configures the vector index behind document retrieval.
type RetrievalConfig struct {
	Address    string `mapstructure:"address" json:"address,omitempty"`
	Collection string `mapstructure:"collection" json:"collection" validate:"required"`
	Dimension  int    `mapstructure:"dimension" json:"dimension" validate:"min=1,max=8192"`
	TopK       int    `mapstructure:"top_k" json:"top_k" validate:"min=1,max=100"`
}

// ControlPlaneConfig configures the infrastructure control plane.
type ControlPlaneConfig struct {
	Kubeconfig   string `mapstructure:"kubeconfig" json:"kubeconfig,omitempty"`
	InCluster    bool   `mapstructure:"in_cluster" json:"in_cluster"`
	Namespace    string `mapstructure:"namespace" json:"namespace" validate:"required"`
	DefaultZone  string `mapstructure:"default_zone" json:"default_zone" validate:"required"`
	PatchImage   string `mapstructure:"patch_image" json:"patch_image" validate:"required"`
	PatchCommand string `mapstructure:"patch_command" json:"patch_command" validate:"required"`
}

// FeedsConfig configures the external threat feeds.
type FeedsConfig struct {
	NVDURL            string        `mapstructure:"nvd_url" json:"nvd_url" validate:"required,url"`
	RedditURL         string        `mapstructure:"reddit_url" json:"reddit_url" validate:"required,url"`
	RedditLimit       int           `mapstructure:"reddit_limit" json:"reddit_limit" validate:"min=1,max=100"`
	DarkWebURL        string        `mapstructure:"darkweb_url" json:"darkweb_url,omitempty" validate:"omitempty,url"`
	DarkWebLimit      int           `mapstructure:"darkweb_limit" json:"darkweb_limit" validate:"min=1,max=1000"`
	Lookback          time.Duration `mapstructure:"lookback" json:"lookback" validate:"min=1h"`
	UserAgent         string        `mapstructure:"user_agent" json:"user_agent" validate:"required"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" json:"requests_per_second" validate:"gt=0"`
	Burst             int           `mapstructure:"burst" json:"burst" validate:"min=1"`
	RetryMax          int           `mapstructure:"retry_max" json:"retry_max" validate:"min=0,max=10"`
	Timeout           time.Duration `mapstructure:"timeout" json:"timeout" validate:"min=1s"`
}

// AgentsConfig configures the reasoning loop shared by every agent.
type AgentsConfig struct {
	MaxIterations int           `mapstructure:"max_iterations" json:"max_iterations" validate:"min=1,max=50"`
	ToolTimeout   time.Duration `mapstructure:"tool_timeout" json:"tool_timeout" validate:"min=1s"`
	PolicyDir     string        `mapstructure:"policy_dir" json:"policy_dir,omitempty"`
}

// DetectionConfig configures anomaly detection.
type DetectionConfig struct {
	Severity string `mapstructure:"severity" json:"severity" validate:"oneof=low medium high"`
	Limit    int    `mapstructure:"limit" json:"limit" validate:"min=1,max=100000"`
}

// ServerConfig configures the HTTP API and signed download links.
type ServerConfig struct {
	Addr          string        `mapstructure:"addr" json:"addr" validate:"required"`
	PublicURL     string        `mapstructure:"public_url" json:"public_url" validate:"required,url"`
	SigningSecret string        `mapstructure:"signing_secret" json:"signing_secret,omitempty"`
	DownloadTTL   time.Duration `mapstructure:"download_ttl" json:"download_ttl" validate:"min=1s"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *PlatformConfig {
	return &PlatformConfig{
		Location:        "us-central1",
		Dataset:         "cyber_data",
		VertexLocation:  "us-central1",
		IncidentBucket:  "cyberguardian-incidents",
		ReportsBucket:   "cyberguard-reports",
		DataStoreRegion: "us",
		DataStoreBucket: "cyberguard-threat-data",
		LLM: LLMConfig{
			Model:          "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
			Temperature:    0.2,
		},
		Messaging: MessagingConfig{
			Stream: "CYBERGUARDIAN",
		},
		Retrieval: RetrievalConfig{
			Collection: "threat_intel_docs",
			Dimension:  1536,
			TopK:       5,
		},
		ControlPlane: ControlPlaneConfig{
			Namespace:    "default",
			DefaultZone:  "us-central1-a",
			PatchImage:   "alpine:3.20",
			PatchCommand: "apk upgrade --no-cache",
		},
		Feeds: FeedsConfig{
			NVDURL:            "https://services.nvd.nist.gov/rest/json/cves/2.0",
			RedditURL:         "https://www.reddit.com/r/netsec/new.json",
			RedditLimit:       20,
			DarkWebLimit:      50,
			Lookback:          24 * time.Hour,
			UserAgent:         "cyberguardian-agent",
			RequestsPerSecond: 1,
			Burst:             1,
			RetryMax:          0,
			Timeout:           30 * time.Second,
		},
		Agents: AgentsConfig{
			MaxIterations: 8,
			ToolTimeout:   60 * time.Second,
		},
		Detection: DetectionConfig{
			Severity: "high",
			Limit:    1000,
		},
		Server: ServerConfig{
			Addr:        ":8080",
			PublicURL:   "http://localhost:8080",
			DownloadTTL: 15 * time.Minute,
		},
		LogLevel: "info",
	}
}

// envBindings maps config keys to the environment variables that set them.
// The first names keep compatibility with the deployment environment; the
// CYBERGUARD_ names cover everything else.
var envBindings = map[string][]string{
	"project_id":                  {"GOOGLE_CLOUD_PROJECT"},
	"location":                    {"GOOGLE_CLOUD_LOCATION"},
	"dataset":                     {"BIGQUERY_DATASET"},
	"vertex_location":             {"VERTEX_AI_LOCATION"},
	"incident_bucket":             {"INCIDENT_BUCKET"},
	"reports_bucket":              {"REPORTS_BUCKET"},
	"data_store_id":               {"DATA_STORE_ID"},
	"data_store_region":           {"DATA_STORE_REGION"},
	"data_store_bucket":           {"DATA_STORE_BUCKET"},
	"llm.base_url":                {"CYBERGUARD_LLM_BASE_URL", "OPENAI_BASE_URL"},
	"llm.api_key":                 {"CYBERGUARD_LLM_API_KEY", "OPENAI_API_KEY"},
	"llm.model":                   {"CYBERGUARD_LLM_MODEL"},
	"llm.embedding_model":         {"CYBERGUARD_LLM_EMBEDDING_MODEL"},
	"llm.temperature":             {"CYBERGUARD_LLM_TEMPERATURE"},
	"llm.max_tokens":              {"CYBERGUARD_LLM_MAX_TOKENS"},
	"warehouse.dsn":               {"CYBERGUARD_WAREHOUSE_DSN", "DATABASE_URL"},
	"messaging.nats_url":          {"CYBERGUARD_NATS_URL", "NATS_URL"},
	"messaging.stream":            {"CYBERGUARD_NATS_STREAM"},
	"retrieval.address":           {"CYBERGUARD_MILVUS_ADDRESS"},
	"retrieval.collection":        {"CYBERGUARD_MILVUS_COLLECTION"},
	"retrieval.dimension":         {"CYBERGUARD_EMBEDDING_DIMENSION"},
	"retrieval.top_k":             {"CYBERGUARD_RETRIEVAL_TOP_K"},
	"control_plane.kubeconfig":    {"CYBERGUARD_KUBECONFIG", "KUBECONFIG"},
	"control_plane.in_cluster":    {"CYBERGUARD_IN_CLUSTER"},
	"control_plane.namespace":     {"CYBERGUARD_NAMESPACE"},
	"control_plane.default_zone":  {"CYBERGUARD_DEFAULT_ZONE"},
	"control_plane.patch_image":   {"CYBERGUARD_PATCH_IMAGE"},
	"control_plane.patch_command": {"CYBERGUARD_PATCH_COMMAND"},
	"feeds.nvd_url":               {"CYBERGUARD_NVD_URL"},
	"feeds.reddit_url":            {"CYBERGUARD_REDDIT_URL"},
	"feeds.reddit_limit":          {"CYBERGUARD_REDDIT_LIMIT"},
	"feeds.darkweb_url":           {"CYBERGUARD_DARKWEB_URL", "DARK_WEB_API"},
	"feeds.darkweb_limit":         {"CYBERGUARD_DARKWEB_LIMIT"},
	"feeds.lookback":              {"CYBERGUARD_FEED_LOOKBACK"},
	"feeds.user_agent":            {"CYBERGUARD_FEED_USER_AGENT"},
	"feeds.requests_per_second":   {"CYBERGUARD_FEED_RPS"},
	"feeds.burst":                 {"CYBERGUARD_FEED_BURST"},
	"feeds.retry_max":             {"CYBERGUARD_FEED_RETRY_MAX"},
	"feeds.timeout":               {"CYBERGUARD_FEED_TIMEOUT"},
	"agents.max_iterations":       {"CYBERGUARD_AGENT_MAX_ITERATIONS"},
	"agents.tool_timeout":         {"CYBERGUARD_TOOL_TIMEOUT"},
	"agents.policy_dir":           {"CYBERGUARD_POLICY_DIR"},
	"detection.severity":          {"CYBERGUARD_ANOMALY_SEVERITY"},
	"detection.limit":             {"CYBERGUARD_DETECTION_LIMIT"},
	"server.addr":                 {"CYBERGUARD_HTTP_ADDR"},
	"server.public_url":           {"CYBERGUARD_PUBLIC_URL"},
	"server.signing_secret":       {"CYBERGUARD_SIGNING_SECRET"},
	"server.download_ttl":         {"CYBERGUARD_DOWNLOAD_TTL"},
	"log_level":                   {"CYBERGUARD_LOG_LEVEL"},
}

// Load builds the configuration from defaults overlaid with the environment.
func Load() (*PlatformConfig, error) {
	return load(viper.New())
}

// LoadConfigFromFile loads configuration from a JSON or YAML file. Environment
// variables still take precedence over file values.
func LoadConfigFromFile(path string) (*PlatformConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return load(v)
}

func load(v *viper.Viper) (*PlatformConfig, error) {
	for key, envs := range envBindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *PlatformConfig) Validate() error {
	return validator.New().Struct(c)
}

// String renders the configuration with secrets redacted.
func (c *PlatformConfig) String() string {
	redacted := *c
	if redacted.LLM.APIKey != "" {
		redacted.LLM.APIKey = "***"
	}
	if redacted.Server.SigningSecret != "" {
		redacted.Server.SigningSecret = "***"
	}
	if redacted.Warehouse.DSN != "" {
		redacted.Warehouse.DSN = "***"
	}
	data, _ := json.MarshalIndent(redacted, "", "  ")
	return string(data)
}
