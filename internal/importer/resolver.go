package importer

import (
	"errors"
	"fmt"

	"catalog/internal/models"

	"gorm.io/gorm"
)

type Kind string

const (
	KindCategory Kind = "category"
	KindProduct  Kind = "product"
	KindOption   Kind = "option"
	KindVariant  Kind = "variant"
	KindMedia    Kind = "media"
)

const (
	matchedByOrigin     = "origin"
	matchedByNaturalKey = "natural_key"
)

// Resolution is a local row matched to a remote record.
type Resolution[T any] struct {
	Row       *T
	MatchedBy string
	// Lifecycle is the state the row was in when matched. Restorable rows
	// have already been restored.
	Lifecycle models.Lifecycle
}

// Resolver maps remote records to existing local rows. A match on the origin
// marker wins; otherwise the natural key is tried, but only against rows that
// do not already mirror another remote record. Soft-deleted matches are
// restored.
type Resolver struct {
	tx     *gorm.DB
	source string
}

func NewResolver(tx *gorm.DB) *Resolver {
	return &Resolver{tx: tx, source: models.SourceWooCommerce}
}

// Category matches by remote category id, then slug.
func (r *Resolver) Category(remoteID int64, slug string) (*Resolution[models.Category], error) {
	return resolve[models.Category](r, KindCategory, remoteID, nil, naturalColumn("slug", slug))
}

// Product matches by remote product id, then slug.
func (r *Resolver) Product(remoteID int64, slug string) (*Resolution[models.Product], error) {
	return resolve[models.Product](r, KindProduct, remoteID, nil, naturalColumn("slug", slug))
}

// Option matches within one product by remote attribute id, then code.
func (r *Resolver) Option(productID string, remoteAttributeID int64, code string) (*Resolution[models.ProductOption], error) {
	return resolve[models.ProductOption](r, KindOption, remoteAttributeID, ofProduct(productID), naturalColumn("code", code))
}

// Variant matches within one product by remote variation id, then SKU.
func (r *Resolver) Variant(productID string, remoteID int64, sku string) (*Resolution[models.ProductVariant], error) {
	return resolve[models.ProductVariant](r, KindVariant, remoteID, ofProduct(productID), naturalColumn("sku", sku))
}

// Media matches within one product by remote image id, then by the image URL.
func (r *Resolver) Media(productID string, remoteImageID int64, src string) (*Resolution[models.ProductMedia], error) {
	var natural func(*gorm.DB) *gorm.DB
	if src != "" {
		natural = func(q *gorm.DB) *gorm.DB {
			return q.Where("(remote_url = ? OR (disk = ? AND path = ?))", src, models.DiskRemote, src)
		}
	}
	return resolve[models.ProductMedia](r, KindMedia, remoteImageID, ofProduct(productID), natural)
}

func ofProduct(productID string) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		return q.Where("product_id = ?", productID)
	}
}

func naturalColumn(column, value string) func(*gorm.DB) *gorm.DB {
	if value == "" {
		return nil
	}
	return func(q *gorm.DB) *gorm.DB {
		return q.Where(column+" = ?", value)
	}
}

func resolve[T any, PT interface {
	*T
	models.Tracked
}](r *Resolver, kind Kind, remoteID int64, scope, natural func(*gorm.DB) *gorm.DB) (*Resolution[T], error) {
	query := func() *gorm.DB {
		q := r.tx.Unscoped().Model(PT(new(T)))
		if scope != nil {
			q = scope(q)
		}
		// Prefer live rows over deleted ones, then the oldest.
		return q.Order("deleted_at IS NOT NULL").Order("created_at")
	}

	if remoteID > 0 {
		row, err := first[T](query().Where("source = ? AND remote_id = ?", r.source, remoteID))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s %d: %w", kind, remoteID, err)
		}
		if row != nil {
			return restoreMatch[T, PT](r.tx, row, matchedByOrigin)
		}
	}

	if natural != nil {
		q := natural(query()).Where("(remote_id IS NULL OR source IS NULL OR source <> ?)", r.source)
		row, err := first[T](q)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s by natural key: %w", kind, err)
		}
		if row != nil {
			return restoreMatch[T, PT](r.tx, row, matchedByNaturalKey)
		}
	}

	return nil, nil
}

func restoreMatch[T any, PT interface {
	*T
	models.Tracked
}](tx *gorm.DB, row *T, by string) (*Resolution[T], error) {
	tracked := PT(row)
	lifecycle := models.LifecycleOf(*tracked.SoftDeleted(), true)
	if lifecycle == models.LifecycleRestorable {
		if err := models.Restore(tx, tracked); err != nil {
			return nil, err
		}
	}
	return &Resolution[T]{Row: row, MatchedBy: by, Lifecycle: lifecycle}, nil
}

func first[T any](q *gorm.DB) (*T, error) {
	var row T
	err := q.Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
