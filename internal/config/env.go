package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	BlobNone = "none"
	BlobS3   = "s3"

	ExtractorPDF     = "pdf"
	ExtractorDocconv = "docconv"
)

type Config struct {
	Port           string
	CorsOrigins    []string
	RequestTimeout time.Duration

	LogLevel  string
	LogFormat string

	AIAPIKey      string
	GenModel      string
	FallbackModel string
	EmbedModel    string
	EmbedDim      int
	MaxInFlight   int

	JWTSecret string
	TokenTTL  time.Duration

	DBDriver    string
	DatabaseURL string
	SQLitePath  string
	SslCertPath string

	BlobBackend  string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	PDFExtractor string
	PromptsFile  string
	MaxUploadMB  int
	CacheMaxDocs int

	// Variables that were set but could not be parsed; reported by Validate.
	parseErrs []error
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	var bad []error
	getEnvInt := func(key string, def int) int {
		n, err := envInt(key, def)
		if err != nil {
			bad = append(bad, err)
		}
		return n
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		CorsOrigins:    splitList(getEnv("CORS_ORIGINS", "http://localhost:5173,http://localhost:8888")),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 300)) * time.Second,

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		AIAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GenModel:      getEnv("GEN_MODEL", "gemini-2.5-flash"),
		FallbackModel: getEnv("FALLBACK_MODEL", "gemini-2.0-flash-lite"),
		EmbedModel:    getEnv("EMBED_MODEL", "text-embedding-004"),
		EmbedDim:      getEnvInt("EMBED_DIM", 768),
		MaxInFlight:   getEnvInt("MAX_CONCURRENT_GENERATIONS", 8),

		JWTSecret: getEnv("JWT_SECRET", ""),
		TokenTTL:  time.Duration(getEnvInt("TOKEN_TTL_HOURS", 72)) * time.Hour,

		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", DriverSQLite)),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", "data/contexta.db"),
		SslCertPath: getEnv("SSL_CERT_PATH", ""),

		BlobBackend:  strings.ToLower(getEnv("BLOB_BACKEND", BlobNone)),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "contexta-docs"),

		PDFExtractor: strings.ToLower(getEnv("PDF_EXTRACTOR", ExtractorPDF)),
		PromptsFile:  getEnv("PROMPTS_FILE", ""),
		MaxUploadMB:  getEnvInt("MAX_UPLOAD_MB", 50),
		CacheMaxDocs: getEnvInt("CACHE_MAX_DOCS", 256),
	}
	cfg.parseErrs = bad

	return cfg
}

// Validate fails fast on settings the service cannot start without.
func (c *Config) Validate() error {
	errs := append([]error(nil), c.parseErrs...)
	if c.AIAPIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY not set"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET not set"))
	}
	if c.EmbedDim <= 0 {
		errs = append(errs, fmt.Errorf("EMBED_DIM must be positive, got %d", c.EmbedDim))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL_HOURS must be positive"))
	}

	switch c.DBDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL not set"))
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH not set"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver))
	}

	switch c.BlobBackend {
	case BlobNone:
	case BlobS3:
		if c.AwsAccessKey == "" || c.AwsSecretKey == "" {
			errs = append(errs, errors.New("AWS credentials not set"))
		}
		if c.BucketName == "" {
			errs = append(errs, errors.New("BUCKET_NAME not set"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported BLOB_BACKEND %q", c.BlobBackend))
	}

	switch c.PDFExtractor {
	case ExtractorPDF, ExtractorDocconv:
	default:
		errs = append(errs, fmt.Errorf("unsupported PDF_EXTRACTOR %q", c.PDFExtractor))
	}

	return errors.Join(errs...)
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// envInt reads an integer variable. An unparsable value yields def and an
// error naming the variable.
func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(getEnv(key, ""))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s=%q is not an integer", key, v)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
