package config

import (
	"os"
	"strings"
	"time"

	gateway "github.com/nimasrn/daily-mass/internal/gateways"
	"github.com/nimasrn/daily-mass/pkg/logger"
	"github.com/nimasrn/daily-mass/pkg/pg"
	"github.com/nimasrn/daily-mass/pkg/redis"
)

func (c *Config) PostgresRead() pg.Config {
	return pg.Config{
		User:     c.PostgresReadUser,
		Host:     c.PostgresReadHost,
		Port:     c.PostgresReadPort,
		Password: c.PostgresReadPassword,
		Database: c.PostgresReadDatabase,
		SSLMode:  c.PostgresSSLMode,

		MaxOpenConns:    c.PostgresMaxOpenConns,
		MaxIdleConns:    c.PostgresMaxIdleConns,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

func (c *Config) PostgresWrite() pg.Config {
	return pg.Config{
		User:     c.PostgresWriteUser,
		Host:     c.PostgresWriteHost,
		Port:     c.PostgresWritePort,
		Password: c.PostgresWritePassword,
		Database: c.PostgresWriteDatabase,
		SSLMode:  c.PostgresSSLMode,

		MaxOpenConns:    c.PostgresMaxOpenConns,
		MaxIdleConns:    c.PostgresMaxIdleConns,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

func (c *Config) RedisOptions(clientName string) *redis.Options {
	return &redis.Options{
		Addrs:      []string{c.RedisAddr},
		ClientName: clientName,
		DB:         c.RedisDatabase,
		Username:   c.RedisUsername,
		Password:   c.RedisPassword,
	}
}

// Notifier returns the provider client settings. The secondary endpoint is
// only used when configured.
func (c *Config) Notifier() *gateway.Config {
	providers := []gateway.ProviderConfig{
		{Name: "primary", URL: c.ProviderPrimaryUrl, Weight: 100},
	}
	if c.ProviderSecondaryUrl != "" {
		providers = append(providers, gateway.ProviderConfig{Name: "secondary", URL: c.ProviderSecondaryUrl, Weight: 80})
	}
	return &gateway.Config{
		Providers:               providers,
		Token:                   c.ProviderToken,
		PhoneID:                 c.ProviderPhoneID,
		Timeout:                 c.ProviderTimeout,
		MaxRetries:              3,
		RetryDelay:              200 * time.Millisecond,
		MaxConns:                256,
		HealthCheckInterval:     30 * time.Second,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   60 * time.Second,
	}
}

// EnvPath returns the file passed as --env=path, or "" when absent or
// unreadable.
func EnvPath(args []string) string {
	for _, v := range args {
		path, ok := strings.CutPrefix(v, "--env=")
		if !ok {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			logger.Error("failed to open the passed env file", "path", path, "error", err)
			return ""
		}
		return path
	}
	return ""
}
