package config

import (
	"os"
)

type Config struct {
	HTTP_PORT string `env:"HTTP_PORT"`
	DB_STRING string `env:"DB_STRING"`

	KAFKA_BROKERS        string `env:"KAFKA_BROKERS"`
	KAFKA_PAYMENTS_TOPIC string `env:"KAFKA_PAYMENTS_TOPIC"`
	KAFKA_PARCELS_TOPIC  string `env:"KAFKA_PARCELS_TOPIC"`
	KAFKA_GROUP_ID       string `env:"KAFKA_GROUP_ID"`

	PROCESSOR_URL string `env:"PROCESSOR_URL"`
	PROCESSOR_KEY string `env:"PROCESSOR_KEY"`
	CURRENCY      string `env:"CURRENCY"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		HTTP_PORT:            os.Getenv("HTTP_PORT"),
		DB_STRING:            os.Getenv("DB_STRING"),
		KAFKA_BROKERS:        os.Getenv("KAFKA_BROKERS"),
		KAFKA_PAYMENTS_TOPIC: os.Getenv("KAFKA_PAYMENTS_TOPIC"),
		KAFKA_PARCELS_TOPIC:  os.Getenv("KAFKA_PARCELS_TOPIC"),
		KAFKA_GROUP_ID:       os.Getenv("KAFKA_GROUP_ID"),
		PROCESSOR_URL:        os.Getenv("PROCESSOR_URL"),
		PROCESSOR_KEY:        os.Getenv("PROCESSOR_KEY"),
		CURRENCY:             os.Getenv("CURRENCY"),
	}

	if cfg.HTTP_PORT == "" {
		cfg.HTTP_PORT = "8080"
	}
	if cfg.KAFKA_PAYMENTS_TOPIC == "" {
		cfg.KAFKA_PAYMENTS_TOPIC = "payments.confirmed"
	}
	if cfg.KAFKA_PARCELS_TOPIC == "" {
		cfg.KAFKA_PARCELS_TOPIC = "parcels.submitted"
	}
	if cfg.KAFKA_GROUP_ID == "" {
		cfg.KAFKA_GROUP_ID = "parcel-payments"
	}
	if cfg.CURRENCY == "" {
		cfg.CURRENCY = "usd"
	}

	return cfg, nil
}
