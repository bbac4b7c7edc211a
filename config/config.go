package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App     AppConfig
	HTTP    ServerConfig
	MySQL   MySQLConfig
	Log     LogConfig
	Stripe  StripeConfig
	Orders  OrdersConfig
	Payouts PayoutsConfig
	Jobs    JobsConfig
}

type AppConfig struct {
	ServiceName string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level string
}

type StripeConfig struct {
	SecretKey                 string
	WebhookSecret             string
	APIBaseURL                string
	SignatureToleranceSeconds int64
	HTTPTimeout               time.Duration
}

type OrdersConfig struct {
	CallbackBaseURL string
	HTTPTimeout     time.Duration
}

type PayoutsConfig struct {
	MinimumWithdrawalMinor   int64
	ArrivalEstimate          string
	AttemptPendingTimeout    time.Duration
	TransferStaleAfter       time.Duration
	AccountRefreshStaleAfter time.Duration
	NotifyMaxAttempts        int32
	NotifyRetryInterval      time.Duration
	JobBatchSize             int32
}

type JobsConfig struct {
	AccountRefreshInterval    time.Duration
	TransferReconcileInterval time.Duration
	ExpireAttemptsInterval    time.Duration
	NotifyDispatchInterval    time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "vendor-payouts-service"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Stripe: StripeConfig{
			SecretKey:                 getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret:             getEnv("STRIPE_WEBHOOK_SECRET", ""),
			APIBaseURL:                getEnv("STRIPE_API_BASE_URL", "https://api.stripe.com"),
			SignatureToleranceSeconds: int64(getIntEnv("STRIPE_SIGNATURE_TOLERANCE_SECONDS", 300)),
			HTTPTimeout:               getSecondsEnv("STRIPE_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Orders: OrdersConfig{
			CallbackBaseURL: getEnv("ORDERS_CALLBACK_BASE_URL", ""),
			HTTPTimeout:     getSecondsEnv("ORDERS_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Payouts: PayoutsConfig{
			MinimumWithdrawalMinor:   int64(getIntEnv("PAYOUTS_MINIMUM_WITHDRAWAL_MINOR", 100)),
			ArrivalEstimate:          getEnv("PAYOUTS_ARRIVAL_ESTIMATE", "2-3 business days"),
			AttemptPendingTimeout:    getMinutesEnv("PAYOUTS_ATTEMPT_PENDING_TIMEOUT_MINUTES", 60*time.Minute),
			TransferStaleAfter:       getMinutesEnv("PAYOUTS_TRANSFER_STALE_AFTER_MINUTES", 15*time.Minute),
			AccountRefreshStaleAfter: getMinutesEnv("PAYOUTS_ACCOUNT_REFRESH_STALE_AFTER_MINUTES", 30*time.Minute),
			NotifyMaxAttempts:        int32(getIntEnv("PAYOUTS_NOTIFY_MAX_ATTEMPTS", 5)),
			NotifyRetryInterval:      getMinutesEnv("PAYOUTS_NOTIFY_RETRY_INTERVAL_MINUTES", 5*time.Minute),
			JobBatchSize:             int32(getIntEnv("PAYOUTS_JOB_BATCH_SIZE", 100)),
		},
		Jobs: JobsConfig{
			AccountRefreshInterval:    getMinutesEnv("PAYOUTS_ACCOUNT_REFRESH_INTERVAL_MINUTES", 5*time.Minute),
			TransferReconcileInterval: getMinutesEnv("PAYOUTS_TRANSFER_RECONCILE_INTERVAL_MINUTES", 2*time.Minute),
			ExpireAttemptsInterval:    getMinutesEnv("PAYOUTS_EXPIRE_ATTEMPTS_INTERVAL_MINUTES", 5*time.Minute),
			NotifyDispatchInterval:    getMinutesEnv("PAYOUTS_NOTIFY_DISPATCH_INTERVAL_MINUTES", 1*time.Minute),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
