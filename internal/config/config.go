// internal/config/config.go

package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Environment string
	LogLevel    string
	Trends      TrendsConfig
	Provider    ProviderConfig
	Output      OutputConfig
	Server      ServerConfig
	Database    DatabaseConfig
	NATS        NATSConfig
}

// TrendsConfig holds what to collect and how hard to try
type TrendsConfig struct {
	Keywords     []string
	KeywordsFile string
	BatchSize    int
	Pause        time.Duration
	Geo          string
	Timeframe    string
	MaxAttempts  int
	RetryDelay   time.Duration
}

// ProviderConfig holds Google Trends client configuration
type ProviderConfig struct {
	BaseURL        string
	HostLanguage   string
	TZ             int
	Timeout        time.Duration
	ConnectTimeout time.Duration
	HTTPRetries    int
	UserAgent      string
}

// OutputConfig holds output file configuration
type OutputConfig struct {
	Dir           string
	CSVFile       string
	LineChartFile string
	BarChartFile  string
	ChartWidth    int
	ChartHeight   int
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CorsOrigins     []string
	RefreshInterval time.Duration
	MaxReports      int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Enabled      bool
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	SSLMode      string
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	Enabled        bool
	URL            string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
	EventsTopic    string
}

// KeywordsFile is the YAML layout of TRENDS_KEYWORDS_FILE
type KeywordsFile struct {
	Keywords  []string `yaml:"keywords"`
	Geo       *string  `yaml:"geo"`
	Timeframe string   `yaml:"timeframe"`
	BatchSize int      `yaml:"batch_size"`
}

// DefaultKeywords is the keyword list used when none is configured
var DefaultKeywords = []string{"trauma", "meditazione", "ipnosi", "mindfulness", "hikikomori", "autostima"}

// Timeframes lists the preset timeframes the provider accepts
var Timeframes = []string{
	"now 1-H", "now 4-H", "now 1-d", "now 7-d",
	"today 1-m", "today 3-m", "today 12-m", "today 5-y",
	"all",
}

var (
	geoPattern       = regexp.MustCompile(`^([A-Z]{2}(-[A-Z0-9]{1,3})?)?$`)
	dateRangePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{4}-\d{2}-\d{2}$`)
)

// Load loads configuration from a .env file, environment variables and the
// optional keywords file
func Load() (Config, error) {
	// A missing .env file is fine; the environment is used as is
	_ = godotenv.Load()

	pause := getEnvAsDuration("TRENDS_PAUSE", 200*time.Millisecond)

	config := Config{
		Environment: getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Trends: TrendsConfig{
			Keywords:     getEnvAsSlice("TRENDS_KEYWORDS", DefaultKeywords),
			KeywordsFile: getEnv("TRENDS_KEYWORDS_FILE", ""),
			BatchSize:    getEnvAsInt("TRENDS_BATCH_SIZE", 5),
			Pause:        pause,
			Geo:          getEnvAllowEmpty("TRENDS_GEO", "IT-52"),
			Timeframe:    getEnv("TRENDS_TIMEFRAME", "today 5-y"),
			MaxAttempts:  getEnvAsInt("TRENDS_MAX_ATTEMPTS", 4),
			RetryDelay:   getEnvAsDuration("TRENDS_RETRY_DELAY", pause),
		},
		Provider: ProviderConfig{
			BaseURL:        getEnv("PROVIDER_BASE_URL", "https://trends.google.com"),
			HostLanguage:   getEnv("PROVIDER_HOST_LANGUAGE", "it-IT"),
			TZ:             getEnvAsInt("PROVIDER_TZ", 360),
			Timeout:        getEnvAsDuration("PROVIDER_TIMEOUT", 25*time.Second),
			ConnectTimeout: getEnvAsDuration("PROVIDER_CONNECT_TIMEOUT", 10*time.Second),
			HTTPRetries:    getEnvAsInt("PROVIDER_HTTP_RETRIES", 2),
			UserAgent:      getEnv("PROVIDER_USER_AGENT", "trendscope/1.0"),
		},
		Output: OutputConfig{
			Dir:           getEnv("OUTPUT_DIR", "."),
			CSVFile:       getEnv("OUTPUT_CSV", "GoogleTrends_Mensile.csv"),
			LineChartFile: getEnv("OUTPUT_LINE_CHART", "GoogleTrends_Mensile_Plot.png"),
			BarChartFile:  getEnv("OUTPUT_BAR_CHART", "GoogleTrends_Bar_Plot_Sorted_Averages.png"),
			ChartWidth:    getEnvAsInt("OUTPUT_CHART_WIDTH", 1200),
			ChartHeight:   getEnvAsInt("OUTPUT_CHART_HEIGHT", 800),
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CorsOrigins:     getEnvAsSlice("SERVER_CORS_ORIGINS", []string{"*"}),
			RefreshInterval: getEnvAsDuration("SERVER_REFRESH_INTERVAL", 24*time.Hour),
			MaxReports:      getEnvAsInt("SERVER_MAX_REPORTS", 100),
		},
		Database: DatabaseConfig{
			Enabled:      getEnvAsBool("DB_ENABLED", false),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Database:     getEnv("DB_NAME", "trendscope"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 5),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 1),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 5*time.Minute),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
		},
		NATS: NATSConfig{
			Enabled:        getEnvAsBool("NATS_ENABLED", false),
			URL:            getEnv("NATS_URL", "nats://localhost:4222"),
			MaxReconnects:  getEnvAsInt("NATS_MAX_RECONNECTS", 10),
			ReconnectWait:  getEnvAsDuration("NATS_RECONNECT_WAIT", 1*time.Second),
			ConnectTimeout: getEnvAsDuration("NATS_CONNECT_TIMEOUT", 2*time.Second),
			EventsTopic:    getEnv("TRENDS_EVENTS_TOPIC", "trends"),
		},
	}

	if config.Trends.KeywordsFile != "" {
		if err := applyKeywordsFile(&config.Trends, config.Trends.KeywordsFile); err != nil {
			return config, err
		}
	}

	config.Trends.Keywords = NormalizeKeywords(config.Trends.Keywords)

	return config, Validate(config)
}

// applyKeywordsFile overrides trends settings with the values set in a YAML file
func applyKeywordsFile(cfg *TrendsConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading keywords file: %w", err)
	}

	var file KeywordsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("error parsing keywords file %s: %w", path, err)
	}

	if len(file.Keywords) > 0 {
		cfg.Keywords = file.Keywords
	}
	if file.Geo != nil {
		cfg.Geo = *file.Geo
	}
	if file.Timeframe != "" {
		cfg.Timeframe = file.Timeframe
	}
	if file.BatchSize > 0 {
		cfg.BatchSize = file.BatchSize
	}

	return nil
}

// NormalizeKeywords trims keywords and drops blanks and duplicates, keeping order
func NormalizeKeywords(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}

// ValidTimeframe reports whether tf is a preset or an explicit date range
func ValidTimeframe(tf string) bool {
	for _, preset := range Timeframes {
		if tf == preset {
			return true
		}
	}
	if !dateRangePattern.MatchString(tf) {
		return false
	}

	parts := strings.Fields(tf)
	from, err := time.Parse("2006-01-02", parts[0])
	if err != nil {
		return false
	}
	to, err := time.Parse("2006-01-02", parts[1])
	if err != nil {
		return false
	}
	return from.Before(to)
}

// Validate checks if config is valid
func Validate(config Config) error {
	t := config.Trends

	if len(t.Keywords) == 0 {
		return fmt.Errorf("at least one keyword is required")
	}
	if t.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", t.BatchSize)
	}
	if t.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive, got %d", t.MaxAttempts)
	}
	if t.Pause < 0 || t.RetryDelay < 0 {
		return fmt.Errorf("pause and retry delay must not be negative")
	}
	if !geoPattern.MatchString(t.Geo) {
		return fmt.Errorf("invalid geo %q: expected \"\", \"CC\" or \"CC-XXX\"", t.Geo)
	}
	if !ValidTimeframe(t.Timeframe) {
		return fmt.Errorf("invalid timeframe %q", t.Timeframe)
	}

	o := config.Output
	if o.CSVFile == "" {
		return fmt.Errorf("csv output path is required")
	}
	if o.ChartWidth <= 0 || o.ChartHeight <= 0 {
		return fmt.Errorf("chart size must be positive")
	}

	if config.Database.Enabled && config.Database.Password == "postgres" && config.Environment != "development" {
		return fmt.Errorf("database password must be set in non-development environments")
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty returns the variable even when it is set to "" (worldwide geo)
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return strings.Split(valueStr, ",")
}
