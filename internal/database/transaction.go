package database

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

const (
	retryBaseDelay = 50 * time.Millisecond
	retryMaxDelay  = time.Second
)

// Transaction runs fn in a transaction on db and retries it up to attempts
// times while the failure is lock contention. When db is already inside a
// transaction gorm runs fn in a savepoint, so an inner rollback leaves the
// outer transaction usable.
func Transaction(ctx context.Context, db *gorm.DB, attempts int, fn func(tx *gorm.DB) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = db.WithContext(ctx).Transaction(fn)
		if err == nil || !IsRetryable(err) || attempt == attempts-1 {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(attempt)):
		}
	}
	return err
}

// IsRetryable reports whether err is transient database contention.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"55P03": // lock_not_available
			return true
		}
		return false
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "sqlite_busy")
}

func backoff(attempt int) time.Duration {
	d := retryBaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d > retryMaxDelay {
			d = retryMaxDelay
			break
		}
	}
	return d + time.Duration(rand.Float64()*0.5*float64(d))
}
