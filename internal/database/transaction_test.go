package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"catalog/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open("sqlite://file:"+uuid.New().String()+"?mode=memory&cache=shared", Options{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db.DB
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", &pq.Error{Code: "40001"}, true},
		{"deadlock", &pq.Error{Code: "40P01"}, true},
		{"lock not available", &pq.Error{Code: "55P03"}, true},
		{"wrapped deadlock", fmt.Errorf("save product: %w", &pq.Error{Code: "40P01"}), true},
		{"unique violation", &pq.Error{Code: "23505"}, false},
		{"sqlite busy", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"sqlite table lock", errors.New("database table is locked: products"), true},
		{"plain error", errors.New("plain"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestTransactionDoesNotRetryPlainErrors(t *testing.T) {
	db := openTestDB(t)
	calls := 0

	err := Transaction(context.Background(), db, 3, func(tx *gorm.DB) error {
		calls++
		return errors.New("plain")
	})
	assert.EqualError(t, err, "plain")
	assert.Equal(t, 1, calls)
}

func TestTransactionRetriesLockContention(t *testing.T) {
	db := openTestDB(t)
	calls := 0

	err := Transaction(context.Background(), db, 5, func(tx *gorm.DB) error {
		calls++
		if calls <= 2 {
			return errors.New("database is locked")
		}
		return tx.Create(&models.Brand{Name: "Acme", Slug: "acme"}).Error
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	var count int64
	require.NoError(t, db.Model(&models.Brand{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestTransactionStopsAfterAttempts(t *testing.T) {
	db := openTestDB(t)
	calls := 0

	err := Transaction(context.Background(), db, 3, func(tx *gorm.DB) error {
		calls++
		return &pq.Error{Code: "40001"}
	})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, 3, calls)
}

func TestTransactionStopsWhenContextIsCancelled(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := Transaction(ctx, db, 5, func(tx *gorm.DB) error {
		calls++
		cancel()
		return errors.New("database is locked")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestNestedTransactionRollsBackToSavepoint(t *testing.T) {
	db := openTestDB(t)

	err := Transaction(context.Background(), db, 1, func(tx *gorm.DB) error {
		if err := tx.Create(&models.Brand{Name: "Kept", Slug: "kept"}).Error; err != nil {
			return err
		}
		inner := Transaction(context.Background(), tx, 1, func(tx *gorm.DB) error {
			if err := tx.Create(&models.Brand{Name: "Dropped", Slug: "dropped"}).Error; err != nil {
				return err
			}
			return errors.New("variant failed")
		})
		assert.EqualError(t, inner, "variant failed")
		return nil
	})
	require.NoError(t, err)

	var slugs []string
	require.NoError(t, db.Model(&models.Brand{}).Pluck("slug", &slugs).Error)
	assert.Equal(t, []string{"kept"}, slugs)
}
