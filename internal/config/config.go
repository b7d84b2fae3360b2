package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/nimasrn/daily-mass/internal/model"
	"github.com/nimasrn/daily-mass/pkg/logger"
	"github.com/pkg/errors"
)

var config *Config

// Config holds every configuration value of the service. Only this struct
// must be used to hold configuration, no direct access to env or any other
// config source should be made.
type Config struct {
	AppEnv      string `env:"APP_ENV,default=dev"`
	AppName     string `env:"APP_NAME,default=daily_mass"`
	AppBaseUrl  string `env:"APP_BASE_URL,default=http://localhost:8080"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`
	MetricsAddr string `env:"METRICS_ADDR,default=:9100"`
	MetricsURI  string `env:"METRICS_URI,default=/metrics"`

	HttpListenAddr         string        `env:"HTTP_LISTEN_ADDR,default=:8080"`
	HttpServerReadTimeout  time.Duration `env:"HTTP_SERVER_READ_TIMEOUT,default=2500ms"`
	HttpServerWriteTimeout time.Duration `env:"HTTP_SERVER_WRITE_TIMEOUT,default=2500ms"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST,default=localhost"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT,default=5432"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST,default=localhost"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT,default=5432"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`
	PostgresSSLMode       string `env:"POSTGRES_SSLMODE,default=disable"`
	PostgresMaxOpenConns  int    `env:"POSTGRES_MAX_OPEN_CONNS,default=20"`
	PostgresMaxIdleConns  int    `env:"POSTGRES_MAX_IDLE_CONNS,default=5"`
	MigrationsDir         string `env:"MIGRATIONS_DIR,default=migrations"`

	RedisAddr               string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE,default=0"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX,default=dm:"`

	PromNamespace string `env:"PROM_NAMESPACE,default=daily_mass"`

	QueueName              string        `env:"QUEUE_NAME,default=inbound"`
	QueueConsumerGroup     string        `env:"QUEUE_CONSUMER_GROUP,default=processors"`
	QueueConsumerName      string        `env:"QUEUE_CONSUMER_NAME"`
	QueueConsumers         int           `env:"QUEUE_CONSUMERS,default=2"`
	QueueMaxRetries        int           `env:"QUEUE_MAX_RETRIES,default=3"`
	QueueVisibilityTimeout time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT,default=1m"`
	QueuePollInterval      time.Duration `env:"QUEUE_POLL_INTERVAL,default=200ms"`
	QueueBatchSize         int64         `env:"QUEUE_BATCH_SIZE,default=20"`
	QueueMaxLen            int64         `env:"QUEUE_MAX_LEN,default=100000"`
	QueueEnableDLQ         bool          `env:"QUEUE_ENABLE_DLQ,default=true"`
	WorkerCount            int           `env:"WORKER_COUNT,default=8"`
	WorkerBufferSize       int           `env:"WORKER_BUFFER_SIZE,default=256"`

	// messaging provider
	ProviderPrimaryUrl   string `env:"PROVIDER_PRIMARY_URL,default=http://localhost:8090"`
	ProviderSecondaryUrl string `env:"PROVIDER_SECONDARY_URL"`
	ProviderToken        string `env:"PROVIDER_TOKEN"`
	ProviderPhoneID      string `env:"PROVIDER_PHONE_ID,default=1000"`
	ProviderTimeout      time.Duration `env:"PROVIDER_TIMEOUT,default=10s"`

	TemplateDefault string `env:"TEMPLATE_DEFAULT,default=daily_reflection_en"`
	TemplateSpanish string `env:"TEMPLATE_SPANISH"`
	TemplateTagalog string `env:"TEMPLATE_TAGALOG"`

	WebhookVerifyToken string `env:"WEBHOOK_VERIFY_TOKEN"`
	WebhookAppSecret   string `env:"WEBHOOK_APP_SECRET"`
	SMSAuthToken       string `env:"SMS_AUTH_TOKEN"`
	SMSWebhookURL      string `env:"SMS_WEBHOOK_URL"`
	AdminToken         string `env:"ADMIN_TOKEN"`

	ReadingsUrl     string        `env:"READINGS_URL,default=http://localhost:8090"`
	ReadingsTimeout time.Duration `env:"READINGS_TIMEOUT,default=10s"`

	GeneratorUrl     string        `env:"GENERATOR_URL"`
	GeneratorApiKey  string        `env:"GENERATOR_API_KEY"`
	GeneratorModel   string        `env:"GENERATOR_MODEL,default=gpt-4o-mini"`
	GeneratorTimeout time.Duration `env:"GENERATOR_TIMEOUT,default=30s"`

	SchedulerCron        string        `env:"SCHEDULER_CRON,default=* * * * *"`
	SchedulerConcurrency int           `env:"SCHEDULER_CONCURRENCY,default=8"`
	ComplianceWindow     time.Duration `env:"COMPLIANCE_WINDOW,default=24h"`
	CatchupWindow        time.Duration `env:"DELIVERY_CATCHUP_WINDOW,default=5m"`
	DeliveryMaxRetries   int           `env:"DELIVERY_MAX_RETRIES,default=3"`
	MessageDelay         time.Duration `env:"MESSAGE_DELAY,default=1s"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		if err := godotenv.Load(path); err != nil {
			return errors.Wrapf(err, "failed to load configuration file %s", path)
		}
	}

	if _, err := env.UnmarshalFromEnviron(c); err != nil {
		return errors.Wrap(err, "failed to map env variables to Configuration object")
	}

	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}

// Templates maps a content language to its approved notification template.
// Languages without one fall back to TemplateDefault.
func (c *Config) Templates() map[model.Language]string {
	t := map[model.Language]string{}
	if c.TemplateSpanish != "" {
		t[model.LanguageSpanish] = c.TemplateSpanish
	}
	if c.TemplateTagalog != "" {
		t[model.LanguageTagalog] = c.TemplateTagalog
	}
	return t
}
