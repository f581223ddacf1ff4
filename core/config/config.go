package config

import (
	"reflect"
	"strings"

	"label-matcher/core/broker"
	"label-matcher/core/database"
	"label-matcher/core/logger"
	"label-matcher/core/queue"
	"label-matcher/core/redisclient"
	"label-matcher/core/server"
	"label-matcher/core/storage"
	"label-matcher/core/tracing"
	"label-matcher/feature/labels"
	"label-matcher/feature/orders/veracore"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Server holds configuration for the HTTP server.
	Server server.Config `mapstructure:"server"`
	// Storage holds configuration for the label bucket.
	Storage storage.Config `mapstructure:"storage"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Database holds configuration for the SQL state store.
	Database database.Config `mapstructure:"database"`
	// Redis holds configuration for the Redis state store and alert channel.
	Redis redisclient.Config `mapstructure:"redis"`
	// Kafka holds configuration for event ingestion, printing and alerts.
	Kafka broker.Config `mapstructure:"kafka"`
	// Queue holds configuration for the lmstfy print queue.
	Queue queue.Config `mapstructure:"queue"`
	// Tracing holds configuration for OpenTelemetry export.
	Tracing tracing.Config `mapstructure:"tracing"`
	// Feed holds configuration for the VeraCore order feed.
	Feed veracore.Config `mapstructure:"feed"`
	// Labels holds the reconciliation engine settings.
	Labels labels.Config `mapstructure:"labels"`
}

// LoadConfig loads configuration from environment variables and .env file.
func LoadConfig(path string) (*Config, error) {
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// Missing .env is expected in production.
	_ = godotenv.Overload(envPath)

	v := viper.New()

	bindValues(v, Config{}, "")

	// Map environment variables to nested keys (e.g. LABELS_ORPHAN_TIMEOUT -> labels.orphan_timeout)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// bindValues walks the struct and registers every 'mapstructure' key with its
// 'default' tag so AutomaticEnv can resolve it.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, field.Tag.Get("default"))
	}
}
