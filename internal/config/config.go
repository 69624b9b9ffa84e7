// Package config reads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port                   string
	PostgresURL            string
	PostgresSchema         string
	CatalogServiceURL      string
	CatalogTimeout         time.Duration
	CatalogConcurrency     int
	CheckoutDeadline       time.Duration
	KafkaBrokers           []string
	CompensationMaxElapsed time.Duration
	CartServiceURL         string
	OTLPEndpoint           string
}

// Load reads the process environment. defaultPort applies when PORT is unset.
func Load(defaultPort string) (Config, error) {
	return load(os.Getenv, defaultPort)
}

func load(getenv func(string) string, defaultPort string) (Config, error) {
	cfg := Config{
		Port:              stringOr(getenv("PORT"), defaultPort),
		PostgresURL:       getenv("POSTGRES_URL"),
		PostgresSchema:    getenv("POSTGRES_SCHEMA"),
		CatalogServiceURL: strings.TrimRight(getenv("CATALOG_SERVICE_URL"), "/"),
		CartServiceURL:    strings.TrimRight(getenv("CART_SERVICE_URL"), "/"),
		OTLPEndpoint:      stringOr(getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), "localhost:4317"),
		KafkaBrokers:      splitList(getenv("KAFKA_BROKERS")),
	}

	var errs []error
	cfg.CatalogTimeout = duration(getenv, "CATALOG_TIMEOUT", 10*time.Second, &errs)
	cfg.CheckoutDeadline = duration(getenv, "CHECKOUT_DEADLINE", 30*time.Second, &errs)
	cfg.CompensationMaxElapsed = duration(getenv, "COMPENSATION_MAX_ELAPSED", 2*time.Minute, &errs)

	cfg.CatalogConcurrency = 8
	if raw := getenv("CATALOG_CONCURRENCY"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("CATALOG_CONCURRENCY must be a positive integer, got %q", raw))
		} else {
			cfg.CatalogConcurrency = n
		}
	}

	return cfg, errors.Join(errs...)
}

// Require fails when any of the named environment variables was empty.
func (c Config) Require(names ...string) error {
	var errs []error
	for _, name := range names {
		if !c.isSet(name) {
			errs = append(errs, fmt.Errorf("%s environment variable is required", name))
		}
	}
	return errors.Join(errs...)
}

func (c Config) isSet(name string) bool {
	switch name {
	case "POSTGRES_URL":
		return c.PostgresURL != ""
	case "POSTGRES_SCHEMA":
		return c.PostgresSchema != ""
	case "CATALOG_SERVICE_URL":
		return c.CatalogServiceURL != ""
	case "CART_SERVICE_URL":
		return c.CartServiceURL != ""
	case "KAFKA_BROKERS":
		return len(c.KafkaBrokers) > 0
	default:
		return false
	}
}

func stringOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func duration(getenv func(string) string, name string, fallback time.Duration, errs *[]error) time.Duration {
	raw := getenv(name)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		*errs = append(*errs, fmt.Errorf("%s must be a positive duration, got %q", name, raw))
		return fallback
	}
	return d
}
