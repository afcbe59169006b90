package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig is everything the server reads from the environment besides the database
type AppConfig struct {
	ServerPort    string
	PublicBaseURL string
	SecureCookies bool

	Supabase SupabaseConfig

	// default: a missing issues table reads as an empty list; error: surface it
	SchemaPolicy string
	// strict: statuses only move forward; permissive: any valid status may be set
	TransitionPolicy string

	StorageBackend string // minio or local
	UploadsDir     string
	Minio          MinioConfig

	RedisURL string // empty keeps realtime fan-out in-process
	AMQPURL  string // empty disables issue notifications

	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string
	GoogleMapsAPIKey   string
	GoogleMapsBaseURL  string
	GoogleRoadsBaseURL string
	PavementPredictURL string

	WeatherRefreshInterval time.Duration
	WeatherCacheSize       int
	WeatherCacheTTL        time.Duration

	UpstreamTimeout time.Duration
}

type SupabaseConfig struct {
	URL       string
	AnonKey   string
	JWTSecret string
	JWKSURL   string // Optional; enables asymmetric access tokens
}

type MinioConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Bucket          string
	PublicBaseURL   string
}

// LoadAppConfig loads application configuration from environment variables
func LoadAppConfig() (*AppConfig, error) {
	cfg := &AppConfig{
		ServerPort:    getEnvOrDefault("SERVER_PORT", "8080"),
		PublicBaseURL: strings.TrimRight(getEnvOrDefault("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		SecureCookies: getEnvBool("SECURE_COOKIES", true),
		Supabase: SupabaseConfig{
			URL:       strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
			AnonKey:   os.Getenv("SUPABASE_ANON_KEY"),
			JWTSecret: os.Getenv("SUPABASE_JWT_SECRET"),
			JWKSURL:   os.Getenv("SUPABASE_JWKS_URL"),
		},
		SchemaPolicy:     getEnvOrDefault("ON_SCHEMA_MISSING", "default"),
		TransitionPolicy: getEnvOrDefault("ISSUE_TRANSITIONS", "strict"),
		StorageBackend:   getEnvOrDefault("STORAGE_BACKEND", "minio"),
		UploadsDir:       getEnvOrDefault("UPLOADS_DIR", "uploads"),
		Minio: MinioConfig{
			Endpoint:        getEnvOrDefault("MINIO_ENDPOINT", "localhost:9000"),
			AccessKeyID:     os.Getenv("MINIO_ACCESS_KEY"),
			SecretAccessKey: os.Getenv("MINIO_SECRET_KEY"),
			UseSSL:          getEnvBool("MINIO_USE_SSL", false),
			Bucket:          getEnvOrDefault("MINIO_BUCKET", "highway-issues"),
			PublicBaseURL:   strings.TrimRight(os.Getenv("MINIO_PUBLIC_URL"), "/"),
		},
		RedisURL:               os.Getenv("REDIS_URL"),
		AMQPURL:                os.Getenv("AMQP_URL"),
		OpenWeatherAPIKey:      os.Getenv("OPENWEATHER_API_KEY"),
		OpenWeatherBaseURL:     getEnvOrDefault("OPENWEATHER_BASE_URL", "https://api.openweathermap.org"),
		GoogleMapsAPIKey:       os.Getenv("GOOGLE_MAPS_API_KEY"),
		GoogleMapsBaseURL:      getEnvOrDefault("GOOGLE_MAPS_BASE_URL", "https://maps.googleapis.com"),
		GoogleRoadsBaseURL:     getEnvOrDefault("GOOGLE_ROADS_BASE_URL", "https://roads.googleapis.com"),
		PavementPredictURL:     os.Getenv("PAVEMENT_PREDICT_URL"),
		WeatherRefreshInterval: getEnvDuration("WEATHER_REFRESH_INTERVAL", 10*time.Minute),
		WeatherCacheSize:       getEnvInt("WEATHER_CACHE_SIZE", 512),
		WeatherCacheTTL:        getEnvDuration("WEATHER_CACHE_TTL", 10*time.Minute),
		UpstreamTimeout:        getEnvDuration("UPSTREAM_TIMEOUT", 10*time.Second),
	}

	if cfg.Supabase.URL == "" || cfg.Supabase.AnonKey == "" {
		return nil, fmt.Errorf("identity provider not configured (SUPABASE_URL, SUPABASE_ANON_KEY)")
	}
	if cfg.Supabase.JWTSecret == "" && cfg.Supabase.JWKSURL == "" {
		return nil, fmt.Errorf("no token verification key configured (SUPABASE_JWT_SECRET or SUPABASE_JWKS_URL)")
	}
	if cfg.SchemaPolicy != "default" && cfg.SchemaPolicy != "error" {
		return nil, fmt.Errorf("invalid ON_SCHEMA_MISSING %q (want default or error)", cfg.SchemaPolicy)
	}
	if cfg.TransitionPolicy != "strict" && cfg.TransitionPolicy != "permissive" {
		return nil, fmt.Errorf("invalid ISSUE_TRANSITIONS %q (want strict or permissive)", cfg.TransitionPolicy)
	}
	switch cfg.StorageBackend {
	case "minio":
		if cfg.Minio.PublicBaseURL == "" {
			scheme := "http"
			if cfg.Minio.UseSSL {
				scheme = "https"
			}
			cfg.Minio.PublicBaseURL = scheme + "://" + cfg.Minio.Endpoint
		}
	case "local":
	default:
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q (want minio or local)", cfg.StorageBackend)
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}
