package importer

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"catalog/internal/connectors/woocommerce"
	"catalog/internal/models"

	"gorm.io/datatypes"
)

// upsertProduct resolves and saves the local product for rp. Every pass
// refreshes the sync timestamp, so an existing product always counts as
// updated.
func (r *productRun) upsertProduct(rp woocommerce.Product) (*models.Product, error) {
	name := cleanText(rp.Name)
	if name == "" {
		name = fmt.Sprintf("Product %d", rp.ID)
	}
	base := slugBase(rp.Slug, name)

	res, err := r.resolver.Product(rp.ID, base)
	if err != nil {
		return nil, err
	}

	product := &models.Product{}
	created := res == nil
	if !created {
		product = res.Row
	}

	slug, err := uniqueValue(r.tx, &models.Product{}, "slug", base, product.ID, nil)
	if err != nil {
		return nil, err
	}

	fillProduct(product, rp, r.now)
	product.Name = name
	product.Slug = slug

	if created {
		if err := r.tx.Create(product).Error; err != nil {
			return nil, fmt.Errorf("failed to create product: %w", err)
		}
		r.stats.Products.Created++
		r.created = true
		return product, nil
	}

	if err := r.tx.Save(product).Error; err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	r.stats.Products.Updated++
	return product, nil
}

// fillProduct maps the remote fields onto product. Name and slug are left to
// the caller since they need store lookups.
func fillProduct(product *models.Product, rp woocommerce.Product, now time.Time) {
	product.Type = mapProductType(rp)
	product.SKU = optionalString(rp.SKU.String())
	product.Excerpt = optionalString(stripTags(rp.ShortDescription))
	product.Description = optionalString(rp.Description)
	product.Specifications = specifications(rp.Attributes)
	product.Status = mapStatus(rp.Status)

	if product.Status == models.StatusPublished {
		published := rp.DateCreatedGMT.Ptr()
		if published == nil {
			published = rp.DateCreated.Ptr()
		}
		if published == nil {
			published = product.PublishedAt
		}
		if published == nil {
			published = &now
		}
		product.PublishedAt = published
	} else {
		product.PublishedAt = nil
	}

	product.Data = mergeData(product.Data, datatypes.JSONMap{
		"permalink":         rp.Permalink.String(),
		"raw_status":        rp.Status,
		"raw_type":          rp.Type,
		"featured":          rp.Featured,
		"stock_status":      rp.StockStatus.String(),
		"date_modified_gmt": formatTime(rp.DateModifiedGMT.Ptr()),
	})

	product.Origin = models.NewOrigin(models.SourceWooCommerce, rp.ID)
	synced := now
	product.Origin.SyncedAt = &synced
}

// specifications lists the descriptive attributes of a product: name to a
// single value or to the list of values. Attributes that drive variations
// become options instead.
func specifications(attrs []woocommerce.Attribute) datatypes.JSONMap {
	specs := datatypes.JSONMap{}
	for _, attr := range attrs {
		if attr.Variation {
			continue
		}
		name := cleanText(attr.Name)
		if name == "" {
			continue
		}
		values := attributeValues(attr)
		switch len(values) {
		case 0:
			continue
		case 1:
			specs[name] = values[0]
		default:
			specs[name] = values
		}
	}
	if len(specs) == 0 {
		return nil
	}
	return specs
}

func attributeValues(attr woocommerce.Attribute) []string {
	values := make([]string, 0, len(attr.Options))
	for _, opt := range attr.Options {
		if v := cleanText(string(opt)); v != "" {
			values = append(values, v)
		}
	}
	return values
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// snapshot renders the persisted fields of a row for change detection.
func snapshot(row interface{}) string {
	data, err := json.Marshal(row)
	if err != nil {
		return ""
	}
	return string(data)
}

func trimmed(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
