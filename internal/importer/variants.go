package importer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"catalog/internal/connectors/woocommerce"
	"catalog/internal/logger"
	"catalog/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

var barcodeMetaKeys = []string{"barcode", "_barcode", "gtin", "_gtin"}

// variationsFor returns the variations to import for rp: the fetched
// variations of a variable product, otherwise one variation standing for the
// product itself.
func (s *session) variationsFor(ctx context.Context, rp woocommerce.Product) ([]woocommerce.Variation, error) {
	if !rp.IsVariable() {
		return []woocommerce.Variation{rp.AsVariation()}, nil
	}

	variations, err := s.imp.source.ListVariations(rp.ID, woocommerce.Query{}).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch variations: %w", err)
	}
	if len(variations) == 0 {
		s.log.WithFields(logger.Fields{"remote_id": rp.ID}).
			Warn("Variable product %d has no variations, importing it as a single variant", rp.ID)
		return []woocommerce.Variation{rp.AsVariation()}, nil
	}
	return variations, nil
}

// validateVariations rejects variations that name attributes the product
// does not declare at all.
func validateVariations(rp woocommerce.Product, variations []woocommerce.Variation) error {
	declared := make(map[string]bool, len(rp.Attributes))
	for _, attr := range rp.Attributes {
		declared[attributeKey(attr.ID, attr.Name, attr.Slug)] = true
	}
	for _, v := range variations {
		if v.Synthetic {
			continue
		}
		for _, va := range v.Attributes {
			if strings.TrimSpace(string(va.Option)) == "" {
				continue
			}
			if !declared[attributeKey(va.ID, va.Name, va.Slug)] {
				return fmt.Errorf("%w: variation %d uses %q", ErrInvalidOptionReference, v.ID, trimmed(va.Name, va.Slug))
			}
		}
	}
	return nil
}

// defaultVariationIndex picks the variation that becomes the default variant:
// the first one matching every default attribute, else the first one.
func defaultVariationIndex(rp woocommerce.Product, variations []woocommerce.Variation) int {
	if len(variations) == 0 {
		return -1
	}
	if !rp.IsVariable() {
		return 0
	}

	want := map[string]string{}
	for _, da := range rp.DefaultAttributes {
		if value := valueKey(string(da.Option)); value != "" {
			want[attributeKey(da.ID, da.Name, da.Slug)] = value
		}
	}
	if len(want) == 0 {
		return 0
	}

	for i, v := range variations {
		have := map[string]string{}
		for _, va := range v.Attributes {
			have[attributeKey(va.ID, va.Name, va.Slug)] = valueKey(string(va.Option))
		}
		matches := true
		for key, value := range want {
			if have[key] != value {
				matches = false
				break
			}
		}
		if matches {
			return i
		}
	}
	return 0
}

// syncVariants upserts one variant per variation, deletes the variants no
// longer present upstream and returns the id of the default variant.
func (r *productRun) syncVariants(product *models.Product, rp woocommerce.Product, variations []woocommerce.Variation, options optionIndex) (*string, error) {
	defaultIdx := defaultVariationIndex(rp, variations)
	keep := map[string]bool{}
	var defaultID *string

	for i, rv := range variations {
		variant, err := r.upsertVariant(product, rp, rv, i == defaultIdx)
		if err != nil {
			return nil, err
		}
		if keep[variant.ID] {
			continue
		}
		keep[variant.ID] = true
		if variant.IsDefault {
			id := variant.ID
			defaultID = &id
		}

		if err := r.syncVariantValues(variant, rv, options); err != nil {
			return nil, err
		}
		if err := r.linkVariantMedia(product, variant, rv.Image); err != nil {
			return nil, err
		}
	}

	var stale []models.ProductVariant
	if err := r.tx.Where("product_id = ?", product.ID).Find(&stale).Error; err != nil {
		return nil, fmt.Errorf("failed to load variants: %w", err)
	}
	for i := range stale {
		v := &stale[i]
		if keep[v.ID] {
			continue
		}
		if err := r.tx.Where("product_variant_id = ?", v.ID).Delete(&models.ProductVariantOptionValue{}).Error; err != nil {
			return nil, fmt.Errorf("failed to unlink variant values: %w", err)
		}
		if err := r.tx.Model(&models.ProductMedia{}).Where("product_variant_id = ?", v.ID).Update("product_variant_id", nil).Error; err != nil {
			return nil, fmt.Errorf("failed to unlink variant media: %w", err)
		}
		if err := r.tx.Delete(v).Error; err != nil {
			return nil, fmt.Errorf("failed to delete variant %s: %w", v.SKU, err)
		}
		r.stats.Variants.Deleted++
	}

	return defaultID, nil
}

func (r *productRun) upsertVariant(product *models.Product, rp woocommerce.Product, rv woocommerce.Variation, isDefault bool) (*models.ProductVariant, error) {
	sku := strings.TrimSpace(rv.SKU.String())
	res, err := r.resolver.Variant(product.ID, rv.ID, sku)
	if err != nil {
		return nil, err
	}

	variant := &models.ProductVariant{ProductID: product.ID}
	created := res == nil
	if !created {
		variant = res.Row
	}

	base := sku
	if base == "" {
		base = fallbackSKU(rv, rp)
		// Keep a previously generated SKU instead of minting a new random one.
		if !created && rv.ID <= 0 && variant.SKU != "" {
			base = variant.SKU
		}
	}
	unique, err := uniqueValue(r.tx, &models.ProductVariant{}, "sku", base, variant.ID, nil)
	if err != nil {
		return nil, err
	}
	if unique != base {
		r.s.log.WithFields(logger.Fields{"remote_id": rv.ID}).Debug("SKU %s is taken, using %s", base, unique)
	}

	fillVariant(variant, rp, rv, r.s.imp.settings.Currency, r.now)
	variant.SKU = unique
	variant.IsDefault = isDefault

	if created {
		if err := r.tx.Create(variant).Error; err != nil {
			return nil, fmt.Errorf("failed to create variant %s: %w", unique, err)
		}
		r.stats.Variants.Created++
		return variant, nil
	}
	if err := r.tx.Save(variant).Error; err != nil {
		return nil, fmt.Errorf("failed to update variant %s: %w", unique, err)
	}
	r.stats.Variants.Updated++
	return variant, nil
}

// fillVariant maps the remote variation onto variant, falling back to the
// parent product for fields the variation leaves empty.
func fillVariant(variant *models.ProductVariant, rp woocommerce.Product, rv woocommerce.Variation, currency string, now time.Time) {
	price := resolvePrice(rp, rv)
	variant.Price = price
	variant.CompareAtPrice = compareAtPrice(rp, rv, price)
	variant.Currency = currency
	variant.Status = mapStatus(trimmed(rv.Status, rp.Status))
	variant.Barcode = barcode(rv.MetaData)

	variant.TrackInventory = bool(rv.ManageStock || rp.ManageStock)
	variant.InventoryQuantity = inventoryQuantity(rp, rv)
	variant.InventoryPolicy = inventoryPolicy(trimmed(rv.Backorders.String(), rp.Backorders.String()))

	variant.Weight = nullDecimal(rv.Weight, rp.Weight)
	variant.Length = nullDecimal(rv.Dimensions.Length, rp.Dimensions.Length)
	variant.Width = nullDecimal(rv.Dimensions.Width, rp.Dimensions.Width)
	variant.Height = nullDecimal(rv.Dimensions.Height, rp.Dimensions.Height)

	variant.RequiresShipping = true
	if rv.ShippingRequired != nil {
		variant.RequiresShipping = *rv.ShippingRequired
	} else if rp.ShippingRequired != nil {
		variant.RequiresShipping = *rp.ShippingRequired
	}

	variant.PublishedAt = rv.DateCreatedGMT.Ptr()
	if variant.PublishedAt == nil {
		variant.PublishedAt = rp.DateCreatedGMT.Ptr()
	}

	variant.Data = mergeData(variant.Data, datatypes.JSONMap{
		"raw_status":   rv.Status,
		"stock_status": trimmed(rv.StockStatus.String(), rp.StockStatus.String()),
		"synthetic":    rv.Synthetic,
		"attributes":   variationLabel(rv),
	})

	variant.Origin = models.NewOrigin(models.SourceWooCommerce, rv.ID)
	synced := now
	variant.Origin.SyncedAt = &synced
}

// resolvePrice takes the first numeric price of the variation (price, sale,
// regular) and then of the parent, never below zero.
func resolvePrice(rp woocommerce.Product, rv woocommerce.Variation) decimal.Decimal {
	price, ok := firstDecimal(rv.Price, rv.SalePrice, rv.RegularPrice, rp.Price, rp.SalePrice, rp.RegularPrice)
	if !ok || price.IsNegative() {
		return decimal.Zero
	}
	return price
}

// compareAtPrice is the regular price when it is above the selling price and
// no sale price at or above the regular price contradicts it.
func compareAtPrice(rp woocommerce.Product, rv woocommerce.Variation, price decimal.Decimal) decimal.NullDecimal {
	regular, ok := firstDecimal(rv.RegularPrice)
	if !ok {
		regular, ok = firstDecimal(rp.RegularPrice)
	}
	if !ok || !regular.GreaterThan(price) {
		return decimal.NullDecimal{}
	}
	if sale, hasSale := firstDecimal(rv.SalePrice); hasSale && !sale.LessThan(regular) {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(regular)
}

// inventoryQuantity is only tracked when stock is managed, on the variation
// or on its parent.
func inventoryQuantity(rp woocommerce.Product, rv woocommerce.Variation) int {
	switch {
	case bool(rv.ManageStock) && rv.StockQuantity.Valid:
		return int(rv.StockQuantity.Value)
	case bool(rp.ManageStock) && rp.StockQuantity.Valid:
		return int(rp.StockQuantity.Value)
	default:
		return 0
	}
}

func inventoryPolicy(backorders string) models.InventoryPolicy {
	switch strings.ToLower(backorders) {
	case "notify", "yes":
		return models.InventoryPolicyAllow
	default:
		return models.InventoryPolicyDeny
	}
}

func barcode(meta []woocommerce.Meta) *string {
	for _, key := range barcodeMetaKeys {
		for _, m := range meta {
			if m.Key == key {
				if v := m.StringValue(); v != "" {
					return &v
				}
			}
		}
	}
	return nil
}

// fallbackSKU is used when the remote SKU is blank.
func fallbackSKU(rv woocommerce.Variation, rp woocommerce.Product) string {
	if rv.ID > 0 {
		return fmt.Sprintf("woo-%d", rv.ID)
	}
	suffix := strings.ToUpper(uuid.New().String()[:6])
	if sku := strings.TrimSpace(rp.SKU.String()); sku != "" {
		return sku + "-" + suffix
	}
	return "woo-" + suffix
}

func variationLabel(rv woocommerce.Variation) string {
	parts := make([]string, 0, len(rv.Attributes))
	for _, va := range rv.Attributes {
		if option := strings.TrimSpace(string(va.Option)); option != "" {
			parts = append(parts, cleanText(trimmed(va.Name, va.Slug))+": "+option)
		}
	}
	return strings.Join(parts, ", ")
}

// syncVariantValues links variant to one option value per option, creating
// values the product attribute did not list.
func (r *productRun) syncVariantValues(variant *models.ProductVariant, rv woocommerce.Variation, options optionIndex) error {
	var desired []string
	seenOption := map[string]bool{}
	for _, va := range rv.Attributes {
		entry, ok := options[attributeKey(va.ID, va.Name, va.Slug)]
		if !ok || seenOption[entry.option.ID] {
			continue
		}
		display := strings.TrimSpace(string(va.Option))
		if display == "" {
			continue
		}
		value, err := r.valueFor(entry, display)
		if err != nil {
			return err
		}
		seenOption[entry.option.ID] = true
		desired = append(desired, value.ID)
	}

	var current []string
	err := r.tx.Model(&models.ProductVariantOptionValue{}).
		Where("product_variant_id = ?", variant.ID).
		Pluck("product_option_value_id", &current).Error
	if err != nil {
		return fmt.Errorf("failed to load variant values: %w", err)
	}
	if sameSet(current, desired) {
		return nil
	}

	if err := r.tx.Where("product_variant_id = ?", variant.ID).Delete(&models.ProductVariantOptionValue{}).Error; err != nil {
		return fmt.Errorf("failed to unlink variant values: %w", err)
	}
	if len(desired) == 0 {
		return nil
	}
	links := make([]models.ProductVariantOptionValue, 0, len(desired))
	for _, id := range desired {
		links = append(links, models.ProductVariantOptionValue{ProductVariantID: variant.ID, ProductOptionValueID: id})
	}
	if err := r.tx.Create(&links).Error; err != nil {
		return fmt.Errorf("failed to link variant values: %w", err)
	}
	return nil
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
