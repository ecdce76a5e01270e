package worker_test

import (
	"testing"
	"time"

	"github.com/jonesrussell/pageindexer/internal/worker"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := worker.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*worker.Config)
		wantErr bool
	}{
		{"valid", func(*worker.Config) {}, false},
		{"zero count", func(c *worker.Config) { c.Count = 0 }, true},
		{"count above max", func(c *worker.Config) { c.Count = worker.MaxCount + 1 }, true},
		{"zero item timeout", func(c *worker.Config) { c.ItemTimeout = 0 }, true},
		{"negative drain timeout", func(c *worker.Config) { c.DrainTimeout = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := worker.DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected a validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
