package importer

import (
	"fmt"
	"strings"

	"catalog/internal/connectors/woocommerce"
	"catalog/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const optionInputSelect = "select"

// optionEntry is a synced option with its values by value key.
type optionEntry struct {
	option *models.ProductOption
	values map[string]*models.ProductOptionValue
	// nextPosition is the position for a value created on the fly.
	nextPosition int
}

// optionIndex maps attribute keys to synced options.
type optionIndex map[string]*optionEntry

// syncOptions turns the variation attributes of rp into product options and
// deletes the options no longer present upstream.
func (r *productRun) syncOptions(product *models.Product, attrs []woocommerce.Attribute) (optionIndex, error) {
	index := optionIndex{}
	keep := map[string]bool{}
	position := 0

	for _, attr := range attrs {
		if !attr.Variation {
			continue
		}
		key := attributeKey(attr.ID, attr.Name, attr.Slug)
		if _, dup := index[key]; dup {
			continue
		}
		position++

		entry, err := r.upsertOption(product, attr, position)
		if err != nil {
			return nil, err
		}
		index[key] = entry
		keep[entry.option.ID] = true
	}

	var stale []models.ProductOption
	if err := r.tx.Where("product_id = ?", product.ID).Find(&stale).Error; err != nil {
		return nil, fmt.Errorf("failed to load options: %w", err)
	}
	for i := range stale {
		opt := &stale[i]
		if keep[opt.ID] {
			continue
		}
		if err := r.tx.Where("product_option_id = ?", opt.ID).Delete(&models.ProductOptionValue{}).Error; err != nil {
			return nil, fmt.Errorf("failed to delete option values: %w", err)
		}
		if err := r.tx.Delete(opt).Error; err != nil {
			return nil, fmt.Errorf("failed to delete option %s: %w", opt.Code, err)
		}
		r.stats.Options.Deleted++
	}
	return index, nil
}

func (r *productRun) upsertOption(product *models.Product, attr woocommerce.Attribute, position int) (*optionEntry, error) {
	name := trimmed(cleanText(attr.Name), attr.Slug, "Option")
	base := Slugify(trimmed(strings.TrimPrefix(strings.TrimSpace(attr.Slug), "pa_"), attr.Name))
	if base == "" {
		base = "option"
	}

	res, err := r.resolver.Option(product.ID, attr.ID, base)
	if err != nil {
		return nil, err
	}

	opt := &models.ProductOption{ProductID: product.ID}
	created := res == nil
	if !created {
		opt = res.Row
	}
	before := snapshot(opt)

	code, err := uniqueValue(r.tx, &models.ProductOption{}, "code", base, opt.ID, ofProduct(product.ID))
	if err != nil {
		return nil, err
	}

	opt.Code = code
	opt.Name = name
	opt.InputType = optionInputSelect
	opt.IsRequired = true
	opt.Position = position
	opt.Data = mergeData(opt.Data, datatypes.JSONMap{"attribute_slug": attr.Slug})
	opt.Origin = models.NewOrigin(models.SourceWooCommerce, attr.ID)
	if attr.ID <= 0 {
		opt.Origin = models.Origin{Source: models.SourceWooCommerce}
	}

	switch {
	case created:
		if err := r.tx.Create(opt).Error; err != nil {
			return nil, fmt.Errorf("failed to create option %s: %w", code, err)
		}
		r.stats.Options.Created++
	case before != snapshot(opt) || res.Lifecycle == models.LifecycleRestorable:
		if err := r.tx.Save(opt).Error; err != nil {
			return nil, fmt.Errorf("failed to update option %s: %w", code, err)
		}
		r.stats.Options.Updated++
	default:
		r.stats.Options.Skipped++
	}

	entry := &optionEntry{option: opt, values: map[string]*models.ProductOptionValue{}}
	if err := r.syncOptionValues(entry, attr.Options); err != nil {
		return nil, err
	}
	return entry, nil
}

// syncOptionValues reconciles an option's values with the remote option
// strings, in remote order.
func (r *productRun) syncOptionValues(entry *optionEntry, options []woocommerce.FlexString) error {
	var existing []models.ProductOptionValue
	err := r.tx.Unscoped().
		Where("product_option_id = ?", entry.option.ID).
		Order("deleted_at IS NOT NULL").
		Order("position").
		Find(&existing).Error
	if err != nil {
		return fmt.Errorf("failed to load option values: %w", err)
	}

	keep := map[string]bool{}
	for _, raw := range options {
		display := strings.TrimSpace(string(raw))
		if display == "" {
			continue
		}
		key := valueKey(display)
		if _, dup := entry.values[key]; dup {
			continue
		}

		value := matchOptionValue(existing, display, keep)
		if _, err := r.saveOptionValue(entry, value, display, len(entry.values)+1); err != nil {
			return err
		}
		keep[entry.values[key].ID] = true
	}
	entry.nextPosition = len(entry.values) + 1

	for i := range existing {
		v := &existing[i]
		if keep[v.ID] || v.DeletedAt.Valid {
			continue
		}
		if err := r.tx.Delete(v).Error; err != nil {
			return fmt.Errorf("failed to delete option value %s: %w", v.Value, err)
		}
	}
	return nil
}

// matchOptionValue finds the stored value for a remote option string by the
// remote text it came from, its display text or its value key.
func matchOptionValue(existing []models.ProductOptionValue, display string, taken map[string]bool) *models.ProductOptionValue {
	key := valueKey(display)
	slug := Slugify(display)
	for i := range existing {
		v := &existing[i]
		if taken[v.ID] {
			continue
		}
		if stringValue(v.RemoteValue) == display || v.DisplayValue == display ||
			v.Value == key || (slug != "" && v.Value == slug) {
			return v
		}
	}
	return nil
}

// saveOptionValue creates or updates value (nil for a new one) for display
// and registers it on entry.
func (r *productRun) saveOptionValue(entry *optionEntry, value *models.ProductOptionValue, display string, position int) (*models.ProductOptionValue, error) {
	created := value == nil
	if created {
		value = &models.ProductOptionValue{ProductOptionID: entry.option.ID}
	}
	restored := value.DeletedAt.Valid
	if err := models.Restore(r.tx, value); err != nil {
		return nil, err
	}
	before := snapshot(value)

	code, err := uniqueValue(r.tx, &models.ProductOptionValue{}, "value", slugOrHash(display), value.ID,
		func(q *gorm.DB) *gorm.DB { return q.Where("product_option_id = ?", entry.option.ID) })
	if err != nil {
		return nil, err
	}

	remote := display
	value.Value = code
	value.DisplayValue = display
	value.Position = position
	value.RemoteValue = &remote

	switch {
	case created:
		if err := r.tx.Create(value).Error; err != nil {
			return nil, fmt.Errorf("failed to create option value %s: %w", code, err)
		}
	case restored || before != snapshot(value):
		if err := r.tx.Save(value).Error; err != nil {
			return nil, fmt.Errorf("failed to update option value %s: %w", code, err)
		}
	}

	entry.values[valueKey(display)] = value
	return value, nil
}

// valueFor returns the option value for a variation's option text, creating
// it when the product attribute did not list it.
func (r *productRun) valueFor(entry *optionEntry, display string) (*models.ProductOptionValue, error) {
	if v, ok := entry.values[valueKey(display)]; ok {
		return v, nil
	}

	var existing []models.ProductOptionValue
	if err := r.tx.Unscoped().Where("product_option_id = ?", entry.option.ID).Find(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to load option values: %w", err)
	}
	taken := map[string]bool{}
	for _, v := range entry.values {
		taken[v.ID] = true
	}

	value, err := r.saveOptionValue(entry, matchOptionValue(existing, display, taken), display, entry.nextPosition)
	if err != nil {
		return nil, err
	}
	entry.nextPosition++
	return value, nil
}
