package subscriptions

import (
	"context"
	"errors"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"telemetry-store/internal/orion"
)

// Watch names one entity type and the attributes whose changes the
// broker should push to the notification endpoint.
type Watch struct {
	EntityType string   `yaml:"entity_type"`
	Attributes []string `yaml:"attributes"`
}

// Config defines the subscription bootstrap.
type Config struct {
	NotifyURL string  `yaml:"notify_url"`
	Watches   []Watch `yaml:"watches"`
}

// LoadConfig loads the bootstrap config from SUBSCRIPTIONS_CONFIG when
// set, falling back to the built-in watch list.
func LoadConfig() (Config, error) {
	cfg := Config{
		Watches: []Watch{
			{EntityType: "Robot", Attributes: []string{"position", "velocity", "battery", "status"}},
			{EntityType: "Environment", Attributes: []string{"temperature", "lighting"}},
			{EntityType: "Episode", Attributes: []string{"reward", "steps", "metrics"}},
		},
	}

	if path := os.Getenv("SUBSCRIPTIONS_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	for _, watch := range cfg.Watches {
		if watch.EntityType == "" || len(watch.Attributes) == 0 {
			return cfg, errors.New("subscriptions: watch needs entity_type and attributes")
		}
	}
	return cfg, nil
}

// Bootstrap registers one subscription per watch. Failures are logged
// and skipped; the broker retries nothing on our behalf, so a partial
// bootstrap still leaves the service usable.
func Bootstrap(ctx context.Context, client *orion.Client, cfg Config, logger *log.Logger) error {
	if client == nil {
		return errors.New("subscriptions: nil client")
	}
	if cfg.NotifyURL == "" {
		return errors.New("subscriptions: notify url required")
	}
	if logger == nil {
		logger = log.Default()
	}

	var firstErr error
	for _, watch := range cfg.Watches {
		id, err := client.CreateSubscription(ctx, watch.EntityType, watch.Attributes, cfg.NotifyURL)
		if err != nil {
			logger.Printf("subscriptions: %s: %v", watch.EntityType, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		logger.Printf("subscriptions: %s registered (id=%s)", watch.EntityType, id)
	}
	return firstErr
}
