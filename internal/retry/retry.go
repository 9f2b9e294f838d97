// Package retry provides exponential backoff for transient external-call
// failures and for settlement polling.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/GoldCode001/vela/internal/logging"
)

// Config configures retry behavior
type Config struct {
	MaxAttempts  int           // Maximum number of attempts
	InitialDelay time.Duration // Delay before first retry
	MaxDelay     time.Duration // Cap on the delay between retries
	Multiplier   float64       // Multiplier for exponential backoff
}

// DefaultConfig returns a default retry configuration.
// Pattern: 1s, 2s, 4s, 8s, capped at 30s.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:  5,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// Result contains information about the retry operation
type Result struct {
	Attempts      int           `json:"attempts"`
	Success       bool          `json:"success"`
	TotalDuration time.Duration `json:"totalDuration"`
	LastError     error         `json:"lastError,omitempty"`
}

// Func is a function that can be retried
type Func func(ctx context.Context, attempt int) error

// WithExponentialBackoff executes a function with exponential backoff.
func WithExponentialBackoff(ctx context.Context, config *Config, fn Func) *Result {
	logger := logging.FromContext(ctx)
	startTime := time.Now()

	result := &Result{}

	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		result.Attempts = attempt

		err := fn(ctx, attempt)
		if err == nil {
			result.Success = true
			result.TotalDuration = time.Since(startTime)

			if attempt > 1 {
				logger.WithFields(map[string]interface{}{
					"attempts":      attempt,
					"totalDuration": result.TotalDuration,
				}).Info("Operation succeeded after retry")
			}

			return result
		}

		lastErr = err
		result.LastError = err

		if attempt >= config.MaxAttempts {
			logger.WithFields(map[string]interface{}{
				"attempts": attempt,
				"error":    err.Error(),
			}).Error("Operation failed after max retry attempts")
			break
		}

		if ctx.Err() != nil {
			result.LastError = ctx.Err()
			break
		}

		delay := calculateDelay(config, attempt)

		logger.WithFields(map[string]interface{}{
			"attempt":     attempt,
			"maxAttempts": config.MaxAttempts,
			"delay":       delay,
			"error":       err.Error(),
		}).Warn("Operation failed, retrying with exponential backoff")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			result.LastError = ctx.Err()
			result.TotalDuration = time.Since(startTime)
			return result
		}
	}

	result.TotalDuration = time.Since(startTime)
	result.LastError = lastErr
	return result
}

// Do is a convenience wrapper returning an error instead of a Result.
func Do(ctx context.Context, config *Config, fn Func) error {
	if config == nil {
		config = DefaultConfig()
	}
	result := WithExponentialBackoff(ctx, config, fn)
	if !result.Success {
		return fmt.Errorf("operation failed after %d attempts: %w", result.Attempts, result.LastError)
	}
	return nil
}

func calculateDelay(config *Config, attempt int) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.Multiplier, float64(attempt-1))

	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}

	return time.Duration(delay)
}
