package platform

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

const (
	retryInitialInterval = 1 * time.Second
	retryMaxElapsed      = 30 * time.Second
)

// withRetry runs fn with exponential backoff, retrying only transient
// network faults. Anything else (including 404s, which the failure
// classifier wants to see) fails immediately.
func withRetry(ctx context.Context, fn func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryInitialInterval
	policy.MaxElapsedTime = retryMaxElapsed

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return backoff.Permanent(err)
		}
		log.Debug().Int("attempt", attempt).Err(err).Msg("Retrying transient platform error")
		return err
	}, backoff.WithContext(policy, ctx))
}

// isTransient reports whether an error looks like a recoverable
// network fault rather than a definitive platform answer.
func isTransient(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"eof",
		"timeout",
		"connection refused",
		"temporary failure",
		"connection reset",
		"broken pipe",
		"no such host",
		"network is unreachable",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
