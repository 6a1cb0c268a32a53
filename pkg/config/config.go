package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime configuration of ted-adapter and tenderctl.
type Config struct {
	ServiceName string // e.g. "ted-adapter"
	Env         string // "dev", "uat", "prod"
	LogLevel    string
	Port        int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// Upstream search API
	TEDAPIURL            string
	TEDCountries         []string // ISO 3166 alpha-3 buyer countries
	TEDLookbackDays      int
	TEDPageLimit         int
	TEDMaxPages          int
	TEDRequestsPerSecond int
	TEDRequestTimeout    time.Duration
	TEDRetryMax          int

	RefreshInterval time.Duration

	// Normalization
	ReferenceCurrency string
	ExchangeRates     string // "DKK=0.134,NOK=0.084" overrides on top of the defaults
	UrgencyProfile    string // "standard" | "fine"
	LotLexiconPath    string // optional YAML file replacing the embedded lexicon

	// Storage
	DatabaseURL       string
	DatabaseURLSecret string // AWS Secrets Manager name; wins over DatabaseURL when set
	AWSRegion         string
	SecretTTL         time.Duration
	RedisAddr         string
	RedisDB           int
	RedisPass         string
	ResultTTL         time.Duration

	PGMaxConns          int
	PGMinConns          int
	PGMaxConnLifetime   time.Duration
	PGMaxConnIdleTime   time.Duration
	PGHealthCheckPeriod time.Duration

	// Event sinks; an empty URL disables the sink.
	NATSURL      string
	NATSSubject  string
	AMQPURL      string
	AMQPExchange string
	KafkaBrokers []string
}

// Load reads configuration from the environment, after loading .env if present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServiceName: GetEnv("SERVICE_NAME", "ted-adapter"),
		Env:         GetEnv("ENV", "dev"),
		LogLevel:    GetEnv("LOG_LEVEL", "info"),
		Port:        GetEnvInt("PORT", 9020),

		HTTPReadTimeout:  GetEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
		HTTPWriteTimeout: GetEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		HTTPIdleTimeout:  GetEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),

		TEDAPIURL:            GetEnv("TED_API_URL", "https://api.ted.europa.eu/v3/notices/search"),
		TEDCountries:         upper(GetEnvList("TED_COUNTRIES", []string{"DNK"})),
		TEDLookbackDays:      GetEnvInt("TED_LOOKBACK_DAYS", 15),
		TEDPageLimit:         GetEnvInt("TED_PAGE_LIMIT", 100),
		TEDMaxPages:          GetEnvInt("TED_MAX_PAGES", 50),
		TEDRequestsPerSecond: GetEnvInt("TED_REQUESTS_PER_SECOND", 2),
		TEDRequestTimeout:    GetEnvDuration("TED_REQUEST_TIMEOUT", 30*time.Second),
		TEDRetryMax:          GetEnvInt("TED_RETRY_MAX", 2),

		RefreshInterval: GetEnvDuration("REFRESH_INTERVAL", 6*time.Hour),

		ReferenceCurrency: strings.ToUpper(GetEnv("REFERENCE_CURRENCY", "EUR")),
		ExchangeRates:     GetEnv("EXCHANGE_RATES", ""),
		UrgencyProfile:    GetEnv("URGENCY_PROFILE", "standard"),
		LotLexiconPath:    GetEnv("LOT_LEXICON_PATH", ""),

		DatabaseURL:       GetEnv("DATABASE_URL", ""),
		DatabaseURLSecret: GetEnv("DATABASE_URL_SECRET", ""),
		AWSRegion:         GetEnv("AWS_REGION", "eu-west-1"),
		SecretTTL:         GetEnvDuration("SECRET_TTL", time.Hour),
		RedisAddr:         GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:           GetEnvInt("REDIS_DB", 0),
		RedisPass:         GetEnv("REDIS_PASS", ""),
		ResultTTL:         GetEnvDuration("RESULT_TTL", 24*time.Hour),

		PGMaxConns:          GetEnvInt("PG_MAX_CONNS", 10),
		PGMinConns:          GetEnvInt("PG_MIN_CONNS", 1),
		PGMaxConnLifetime:   GetEnvDuration("PG_MAX_CONN_LIFETIME", 30*time.Minute),
		PGMaxConnIdleTime:   GetEnvDuration("PG_MAX_CONN_IDLE_TIME", 5*time.Minute),
		PGHealthCheckPeriod: GetEnvDuration("PG_HEALTH_CHECK_PERIOD", time.Minute),

		NATSURL:      GetEnv("NATS_URL", ""),
		NATSSubject:  GetEnv("NATS_SUBJECT", "evt.tender"),
		AMQPURL:      GetEnv("AMQP_URL", ""),
		AMQPExchange: GetEnv("AMQP_EXCHANGE", "tenders"),
		KafkaBrokers: GetEnvList("KAFKA_BROKERS", nil),
	}
}

// Validate rejects values the service cannot start with.
func (c *Config) Validate() error {
	if c.TEDAPIURL == "" {
		return fmt.Errorf("TED_API_URL must be set")
	}
	if len(c.TEDCountries) == 0 {
		return fmt.Errorf("TED_COUNTRIES must list at least one country")
	}
	for _, cc := range c.TEDCountries {
		if len(cc) != 3 {
			return fmt.Errorf("TED_COUNTRIES: %q is not an ISO alpha-3 code", cc)
		}
	}
	if c.TEDLookbackDays < 1 {
		return fmt.Errorf("TED_LOOKBACK_DAYS must be positive, got %d", c.TEDLookbackDays)
	}
	if c.TEDPageLimit < 1 || c.TEDPageLimit > 250 {
		return fmt.Errorf("TED_PAGE_LIMIT must be within 1..250, got %d", c.TEDPageLimit)
	}
	if c.TEDMaxPages < 1 {
		return fmt.Errorf("TED_MAX_PAGES must be positive, got %d", c.TEDMaxPages)
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL must be positive")
	}
	return nil
}

func upper(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToUpper(s)
	}
	return out
}
