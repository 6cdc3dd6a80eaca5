package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
)

const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

// ClassifierInfo describes how to reach the remote classifier.
type ClassifierInfo struct {
	URL       string
	APIKey    string
	Transport string
	GRPCAddr  string
	Timeout   time.Duration
}

// Configuration is built once at process start and handed to constructors.
type Configuration struct {
	Port               int
	Mode               string
	LogLevel           string
	MaxUploadBytes     int64
	Classifier         ClassifierInfo
	RedisAddr          string
	RateLimitPerMinute int
	JWTSecret          string
	JWTAudience        string
	// TrustedProxies lists the proxy addresses or CIDRs whose forwarding
	// headers are believed. Empty means the peer address is the client.
	TrustedProxies []string
}

// Load reads an optional env-style file and overlays the process environment.
// A missing file is not an error.
func Load(envFile string) (Configuration, error) {
	v := viper.New()
	v.SetDefault("PORT", 8080)
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MAX_UPLOAD_BYTES", 16*1024*1024)
	v.SetDefault("CLASSIFIER_TRANSPORT", TransportHTTP)
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 60)

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			v.SetConfigFile(envFile)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return Configuration{}, fmt.Errorf("read %s: %w", envFile, err)
			}
		}
	}
	v.AutomaticEnv()

	cfg := Configuration{
		Port:           v.GetInt("PORT"),
		Mode:           v.GetString("GIN_MODE"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		MaxUploadBytes: v.GetInt64("MAX_UPLOAD_BYTES"),
		Classifier: ClassifierInfo{
			URL:       strings.TrimSpace(v.GetString("HUGGING_FACE_API_URL")),
			APIKey:    strings.TrimSpace(v.GetString("HUGGING_FACE_API_KEY")),
			Transport: strings.ToLower(strings.TrimSpace(v.GetString("CLASSIFIER_TRANSPORT"))),
			GRPCAddr:  strings.TrimSpace(v.GetString("CLASSIFIER_GRPC_ADDR")),
			Timeout:   30 * time.Second,
		},
		RedisAddr:          strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RateLimitPerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),
		JWTSecret:          strings.TrimSpace(v.GetString("JWT_SECRET")),
		JWTAudience:        strings.TrimSpace(v.GetString("JWT_AUDIENCE")),
		TrustedProxies:     splitList(v.GetString("TRUSTED_PROXIES")),
	}
	return cfg, cfg.Validate()
}

// Validate checks the values the pipeline cannot run without.
func (c Configuration) Validate() error {
	var errs []error
	if c.Classifier.URL == "" {
		errs = append(errs, errors.New("HUGGING_FACE_API_URL must be set"))
	}
	if c.Classifier.APIKey == "" {
		errs = append(errs, errors.New("HUGGING_FACE_API_KEY must be set"))
	}
	switch c.Classifier.Transport {
	case TransportHTTP:
	case TransportGRPC:
		if c.Classifier.GRPCAddr == "" {
			errs = append(errs, errors.New("CLASSIFIER_GRPC_ADDR must be set for grpc transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CLASSIFIER_TRANSPORT %q", c.Classifier.Transport))
	}
	switch c.Mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
	default:
		errs = append(errs, fmt.Errorf("unknown GIN_MODE %q", c.Mode))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	return errors.Join(errs...)
}

// LooksLikePlaceholderKey reports whether the API key is a sample value
// copied from documentation rather than a real credential.
func (c Configuration) LooksLikePlaceholderKey() bool {
	key := c.Classifier.APIKey
	switch key {
	case "hf_your_actual_api_key_here", "hf_your_new_api_key_here":
		return true
	}
	return strings.HasPrefix(key, "hf_") && len(key) < 30
}

// APIKeyStatus is the coarse key health reported by the health endpoint.
func (c Configuration) APIKeyStatus() string {
	if len(c.Classifier.APIKey) > 30 {
		return "valid"
	}
	return "potentially_invalid"
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Addr is the listen address for the HTTP server.
func (c Configuration) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
