package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration values for both binaries.
type Config struct {
	Env            string
	Secret         string
	DatabaseDSN    string
	HTTPPort       string
	PublicURL      string
	ReportDir      string
	StaticDir      string
	SeedFile       string
	AdminUsername  string
	AdminPassword  string
	MetricsEnabled bool

	BackendURL   string
	RPCTransport string
	RPCTimeout   time.Duration
	CacheSize    int

	// Warnings lists values that were invalid and replaced by defaults. They
	// are logged once a logger exists.
	Warnings []string
}

// Load reads .env files (if any) and the environment, applying defaults.
func Load(envFiles ...string) Config {
	_ = godotenv.Load(envFiles...)

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	var warnings []string
	port := strings.TrimSpace(v.GetString("HTTP_PORT"))
	// Validate that port is numeric.
	if _, err := strconv.Atoi(port); err != nil {
		warnings = append(warnings, fmt.Sprintf("invalid HTTP_PORT value %q, defaulting to 8080", port))
		port = "8080"
	}

	timeout, err := time.ParseDuration(v.GetString("RPC_TIMEOUT"))
	if err != nil || timeout <= 0 {
		warnings = append(warnings, fmt.Sprintf("invalid RPC_TIMEOUT value %q, defaulting to 10s", v.GetString("RPC_TIMEOUT")))
		timeout = 10 * time.Second
	}

	publicURL := strings.TrimRight(v.GetString("PUBLIC_URL"), "/")
	if publicURL == "" {
		publicURL = "http://localhost:" + port
	}

	return Config{
		Env:            v.GetString("APP_ENV"),
		Secret:         v.GetString("SECRET"),
		DatabaseDSN:    v.GetString("DATABASE_DSN"),
		HTTPPort:       port,
		PublicURL:      publicURL,
		ReportDir:      v.GetString("REPORT_DIR"),
		StaticDir:      v.GetString("STATIC_DIR"),
		SeedFile:       v.GetString("SEED_FILE"),
		AdminUsername:  v.GetString("ADMIN_USERNAME"),
		AdminPassword:  v.GetString("ADMIN_PASSWORD"),
		MetricsEnabled: v.GetBool("METRICS_ENABLED"),
		BackendURL:     strings.TrimSpace(v.GetString("BACKEND_URL")),
		RPCTransport:   strings.ToLower(strings.TrimSpace(v.GetString("RPC_TRANSPORT"))),
		RPCTimeout:     timeout,
		CacheSize:      v.GetInt("CACHE_SIZE"),
		Warnings:       warnings,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("SECRET", "dev_secret")
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("DATABASE_DSN", "file:medsales.db?_pragma=foreign_keys(1)")
	v.SetDefault("PUBLIC_URL", "")
	v.SetDefault("REPORT_DIR", "reports")
	v.SetDefault("STATIC_DIR", "web/static")
	v.SetDefault("SEED_FILE", "assets/inventory.csv")
	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("ADMIN_PASSWORD", "admin")
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("BACKEND_URL", "")
	v.SetDefault("RPC_TRANSPORT", "post")
	v.SetDefault("RPC_TIMEOUT", "10s")
	v.SetDefault("CACHE_SIZE", 256)
}
