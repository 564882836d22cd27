package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Mode selects how the browser session is acquired.
type Mode string

const (
	ModeProduction  Mode = "production"
	ModeDevelopment Mode = "development"
)

// DescriptorPolicy decides what a broken descriptor file does to the batch.
type DescriptorPolicy string

const (
	DescriptorAbort DescriptorPolicy = "abort"
	DescriptorSkip  DescriptorPolicy = "skip"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Mode        Mode
	ChromePath  string
	DebugPort   int
	UserDataDir string
	ViewportW   int
	ViewportH   int
	KeepOpen    bool

	UserEmail    string
	UserPassword string
	ContactName  string
	ContactPhone string

	VIPAllowed      bool
	EnablePurchases bool

	ListingsDir    string
	DescriptorFile string
	FormURL        string
	OverviewURL    string
	City           string

	MaxRetries       int
	RetryDelayMs     int
	RateLimitMs      int
	MaxPhotos        int
	PhotoExtensions  []string
	DescriptorPolicy DescriptorPolicy

	ElementTimeout         time.Duration
	NavigationTimeout      time.Duration
	PaymentTimeout         time.Duration
	PaymentEnableTimeout   time.Duration
	PaymentPollInterval    time.Duration
	DevToolsStartupTimeout time.Duration

	ReportCSVPath    string
	RecordToPostgres bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	LogLevel  string
	LogFormat string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	mode := ModeDevelopment
	if getEnv("ENV", "") == string(ModeProduction) {
		mode = ModeProduction
	}

	return &Config{
		Mode:        mode,
		ChromePath:  getEnv("CHROME_PATH", getEnv("CHROME_BIN", "")),
		DebugPort:   getEnvInt("DEBUG_PORT", 9222),
		UserDataDir: getEnv("USER_DATA_DIR", ""),
		ViewportW:   getEnvInt("VIEWPORT_WIDTH", 1080),
		ViewportH:   getEnvInt("VIEWPORT_HEIGHT", 1024),
		KeepOpen:    getEnvBool("KEEP_BROWSER_OPEN", true),

		UserEmail:    getEnv("USER_EMAIL", ""),
		UserPassword: getEnv("USER_PASSWORD", ""),
		ContactName:  getEnv("USER_NAME", ""),
		ContactPhone: getEnv("USER_PHONE", ""),

		VIPAllowed:      getEnvBool("VIP_ALLOWED", false),
		EnablePurchases: getEnvBool("ENABLE_PURCHASES", false),

		ListingsDir:    getEnv("LISTINGS_DIR", "./assessment_sample"),
		DescriptorFile: getEnv("DESCRIPTOR_FILE", "info.txt"),
		FormURL:        getEnv("FORM_URL", "https://statements.tnet.ge/en/statement/create?referrer=myhome"),
		OverviewURL:    getEnv("OVERVIEW_URL", "https://www.myhome.ge/ka/my/products"),
		City:           getEnv("CITY", "Tbilisi"),

		MaxRetries:       getEnvInt("MAX_RETRIES", 3),
		RetryDelayMs:     getEnvInt("RETRY_DELAY_MS", 2000),
		RateLimitMs:      getEnvInt("RATE_LIMIT_MS", 0),
		MaxPhotos:        getEnvInt("MAX_PHOTOS", 12),
		PhotoExtensions:  getEnvList("PHOTO_EXTENSIONS", []string{".jpg", ".jpeg", ".png"}),
		DescriptorPolicy: DescriptorPolicy(strings.ToLower(getEnv("ON_DESCRIPTOR_ERROR", string(DescriptorAbort)))),

		ElementTimeout:         getEnvSeconds("ELEMENT_TIMEOUT_S", 30),
		NavigationTimeout:      getEnvSeconds("NAVIGATION_TIMEOUT_S", 60),
		PaymentTimeout:         getEnvSeconds("PAYMENT_TIMEOUT_S", 120),
		PaymentEnableTimeout:   getEnvSeconds("PAYMENT_ENABLE_TIMEOUT_S", 60),
		PaymentPollInterval:    time.Duration(getEnvInt("PAYMENT_POLL_MS", 100)) * time.Millisecond,
		DevToolsStartupTimeout: getEnvSeconds("DEVTOOLS_STARTUP_TIMEOUT_S", 30),

		ReportCSVPath:    getEnv("REPORT_CSV_PATH", "./output/submissions.csv"),
		RecordToPostgres: getEnvBool("RECORD_TO_POSTGRES", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "publisher"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "publisher123"),
		PostgresDB:       getEnv("POSTGRES_DB", "listings_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Validate reports configuration that would make the run fail half-way.
func (c *Config) Validate() error {
	switch c.DescriptorPolicy {
	case DescriptorAbort, DescriptorSkip:
	default:
		return fmt.Errorf("config: ON_DESCRIPTOR_ERROR must be %q or %q, got %q",
			DescriptorAbort, DescriptorSkip, c.DescriptorPolicy)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("config: MAX_RETRIES must not be negative")
	}
	if c.MaxPhotos < 0 {
		return fmt.Errorf("config: MAX_PHOTOS must not be negative")
	}
	if c.DebugPort <= 0 || c.DebugPort > 65535 {
		return fmt.Errorf("config: DEBUG_PORT out of range: %d", c.DebugPort)
	}
	if c.DescriptorFile == "" {
		return fmt.Errorf("config: DESCRIPTOR_FILE is empty")
	}
	if c.FormURL == "" {
		return fmt.Errorf("config: FORM_URL is empty")
	}
	return nil
}

// IsProduction reports whether the run launches its own browser.
func (c *Config) IsProduction() bool {
	return c.Mode == ModeProduction
}

// DevToolsURL is the version endpoint of the local debugging port.
func (c *Config) DevToolsURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d/json/version", c.DebugPort)
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

// getEnvBool accepts "1"/"0" and anything else strconv.ParseBool understands.
func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSeconds(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Second
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
