package config

import (
	"fmt"
	"strings"

	"github.com/heartmarshall/coursetrack-backend/internal/domain"
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters (got %d)", len(c.Auth.JWTSecret))
	}

	if err := c.Progress.validate(); err != nil {
		return fmt.Errorf("progress: %w", err)
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.WritesPerMin <= 0 {
			return fmt.Errorf("rate_limit.writes_per_min must be > 0 (got %d)", c.RateLimit.WritesPerMin)
		}
		if c.RateLimit.Burst <= 0 {
			return fmt.Errorf("rate_limit.burst must be > 0 (got %d)", c.RateLimit.Burst)
		}
	}

	if c.Redis.Enabled() && c.Redis.Channel == "" {
		return fmt.Errorf("redis.channel must be set when redis.addr is configured")
	}

	return nil
}

func (p *ProgressConfig) validate() error {
	policy, err := ParseCompletedAtPolicy(p.CompletedAtPolicyRaw)
	if err != nil {
		return fmt.Errorf("completed_at_policy: %w", err)
	}
	p.CompletedAtPolicy = policy

	if p.ReconcileWindow <= 0 {
		return fmt.Errorf("reconcile_window must be > 0 (got %v)", p.ReconcileWindow)
	}
	if p.ReconcileBatchSize <= 0 {
		return fmt.Errorf("reconcile_batch_size must be > 0 (got %d)", p.ReconcileBatchSize)
	}
	if p.ReconcileWorkers <= 0 {
		return fmt.Errorf("reconcile_workers must be > 0 (got %d)", p.ReconcileWorkers)
	}

	return nil
}

// ParseCompletedAtPolicy parses a policy name case-insensitively.
// An empty string selects the preserve policy.
func ParseCompletedAtPolicy(raw string) (domain.CompletedAtPolicy, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return domain.CompletedAtPreserve, nil
	}

	policy := domain.CompletedAtPolicy(raw)
	if !policy.IsValid() {
		return "", fmt.Errorf("unknown policy %q (want preserve, refresh or clear)", raw)
	}
	return policy, nil
}
