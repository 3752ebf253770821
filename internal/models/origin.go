package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const SourceWooCommerce = "woocommerce"

// Origin marks a row as mirrored from a remote catalog so later runs can match
// it again even after its slug or SKU changed upstream.
type Origin struct {
	Source   string     `json:"source,omitempty" gorm:"size:32;index"`
	RemoteID *int64     `json:"remote_id,omitempty" gorm:"index"`
	SyncedAt *time.Time `json:"synced_at,omitempty"`
}

func NewOrigin(source string, remoteID int64) Origin {
	o := Origin{Source: source}
	if remoteID > 0 {
		o.RemoteID = &remoteID
	}
	return o
}

func (o Origin) Matches(source string, remoteID int64) bool {
	return remoteID > 0 && o.Source == source && o.RemoteID != nil && *o.RemoteID == remoteID
}

type Lifecycle int

const (
	LifecycleActive Lifecycle = iota
	LifecycleDeleted
	// LifecycleRestorable is a soft-deleted row that an import matched by its
	// origin marker. It goes back to active through Restore.
	LifecycleRestorable
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleActive:
		return "active"
	case LifecycleDeleted:
		return "deleted"
	case LifecycleRestorable:
		return "restorable"
	}
	return fmt.Sprintf("lifecycle(%d)", int(l))
}

func LifecycleOf(deletedAt gorm.DeletedAt, matched bool) Lifecycle {
	if !deletedAt.Valid {
		return LifecycleActive
	}
	if matched {
		return LifecycleRestorable
	}
	return LifecycleDeleted
}

// Tracked is a soft-deletable catalog row.
type Tracked interface {
	SoftDeleted() *gorm.DeletedAt
}

// Restore clears the soft-delete marker of row in the database and on the
// struct. Rows that are not deleted are left alone.
func Restore(tx *gorm.DB, row Tracked) error {
	deletedAt := row.SoftDeleted()
	if !deletedAt.Valid {
		return nil
	}
	if err := tx.Unscoped().Model(row).Update("deleted_at", nil).Error; err != nil {
		return fmt.Errorf("failed to restore row: %w", err)
	}
	*deletedAt = gorm.DeletedAt{}
	return nil
}

func newID(id *string) {
	if *id == "" {
		*id = uuid.New().String()
	}
}
