// Package config resolves runtime configuration from the environment.
// Core packages never read the environment themselves; the cmds resolve
// values here and inject them.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

const (
	AppName     = "ebay-specifics"
	EnvFileName = "config.env"
)

// LoadEnvFile loads environment variables from the config file in the
// user's config directory. Errors are ignored since the file may not
// exist.
func LoadEnvFile() {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return
	}
	configPath := filepath.Join(configBase, AppName, EnvFileName)
	_ = godotenv.Load(configPath)
}

// Server holds the analysis service's configuration.
type Server struct {
	// Port the HTTP server listens on.
	Port string
	// GeminiAPIKey authenticates the labeling and synthesis calls.
	GeminiAPIKey string
}

// LoadServer reads the server configuration. GEMINI_API_KEY is required;
// PORT defaults to 8080.
func LoadServer() (Server, error) {
	cfg := Server{
		Port:         os.Getenv("PORT"),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if missing := missingKeys(map[string]string{
		"GEMINI_API_KEY": cfg.GeminiAPIKey,
	}); len(missing) > 0 {
		return cfg, fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

// Autofill holds the pipeline host's configuration.
type Autofill struct {
	// AnalyzeEndpoint is the full URL of the analysis endpoint. It is the
	// only thing that changes when the service moves deployments.
	AnalyzeEndpoint string
}

// LoadAutofill reads the pipeline host configuration. ANALYZE_ENDPOINT is
// required.
func LoadAutofill() (Autofill, error) {
	cfg := Autofill{
		AnalyzeEndpoint: os.Getenv("ANALYZE_ENDPOINT"),
	}
	if missing := missingKeys(map[string]string{
		"ANALYZE_ENDPOINT": cfg.AnalyzeEndpoint,
	}); len(missing) > 0 {
		return cfg, fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

func missingKeys(required map[string]string) []string {
	var missing []string
	for key, value := range required {
		if value == "" {
			missing = append(missing, key)
		}
	}
	return missing
}
