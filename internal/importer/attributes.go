package importer

import (
	"errors"
	"fmt"
	"strings"

	"catalog/internal/connectors/woocommerce"
	"catalog/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const attributeTypeText = "text"

// syncAttributes mirrors the descriptive attributes of the product into the
// global attribute tables and replaces the product's attribute links.
func (r *productRun) syncAttributes(product *models.Product, attrs []woocommerce.Attribute) error {
	keep := map[string]bool{}

	for _, attr := range attrs {
		if attr.Variation {
			continue
		}
		values := attributeValues(attr)
		if len(values) == 0 {
			continue
		}

		attribute, err := r.upsertAttribute(attr)
		if err != nil {
			return err
		}
		for _, display := range values {
			value, err := r.attributeValue(attribute, display)
			if err != nil {
				return err
			}
			link, err := r.linkAttributeValue(product, attribute, value)
			if err != nil {
				return err
			}
			keep[link.ID] = true
		}
	}

	var links []models.ProductAttributeValue
	if err := r.tx.Where("product_id = ?", product.ID).Find(&links).Error; err != nil {
		return fmt.Errorf("failed to load attribute links: %w", err)
	}
	for i := range links {
		if keep[links[i].ID] {
			continue
		}
		if err := r.tx.Delete(&links[i]).Error; err != nil {
			return fmt.Errorf("failed to unlink attribute value: %w", err)
		}
	}
	return nil
}

// attributeCode drops the "pa_" prefix WooCommerce puts on global attribute
// slugs.
func attributeCode(attr woocommerce.Attribute) string {
	slug := strings.TrimPrefix(strings.TrimSpace(attr.Slug), "pa_")
	if code := Slugify(trimmed(slug, cleanText(attr.Name))); code != "" {
		return code
	}
	return "attribute"
}

func (r *productRun) upsertAttribute(attr woocommerce.Attribute) (*models.Attribute, error) {
	code := attributeCode(attr)
	name := trimmed(cleanText(attr.Name), code)

	var attribute models.Attribute
	err := r.tx.Unscoped().Where("code = ?", code).First(&attribute).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		attribute = models.Attribute{
			Code:   code,
			Name:   name,
			Type:   attributeTypeText,
			Data:   datatypes.JSONMap{"visible": attr.Visible},
			Origin: models.NewOrigin(models.SourceWooCommerce, attr.ID),
		}
		if err := r.tx.Create(&attribute).Error; err != nil {
			return nil, fmt.Errorf("failed to create attribute %s: %w", code, err)
		}
		return &attribute, nil
	case err != nil:
		return nil, fmt.Errorf("failed to find attribute %s: %w", code, err)
	}

	if err := models.Restore(r.tx, &attribute); err != nil {
		return nil, err
	}
	if attribute.RemoteID == nil && attr.ID > 0 {
		attribute.Origin = models.NewOrigin(models.SourceWooCommerce, attr.ID)
		if err := r.tx.Save(&attribute).Error; err != nil {
			return nil, fmt.Errorf("failed to link attribute %s: %w", code, err)
		}
	}
	return &attribute, nil
}

func (r *productRun) attributeValue(attribute *models.Attribute, display string) (*models.AttributeValue, error) {
	code := slugOrHash(display)

	var value models.AttributeValue
	err := r.tx.Unscoped().Where("attribute_id = ? AND value = ?", attribute.ID, code).First(&value).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		value = models.AttributeValue{
			AttributeID:  attribute.ID,
			Value:        code,
			DisplayValue: display,
			NumericValue: numericValue(display),
		}
		if err := r.tx.Create(&value).Error; err != nil {
			return nil, fmt.Errorf("failed to create attribute value %s: %w", code, err)
		}
		return &value, nil
	case err != nil:
		return nil, fmt.Errorf("failed to find attribute value %s: %w", code, err)
	}

	if value.DeletedAt.Valid {
		if err := r.tx.Unscoped().Model(&value).Update("deleted_at", nil).Error; err != nil {
			return nil, fmt.Errorf("failed to restore attribute value %s: %w", code, err)
		}
		value.DeletedAt = gorm.DeletedAt{}
	}
	return &value, nil
}

func (r *productRun) linkAttributeValue(product *models.Product, attribute *models.Attribute, value *models.AttributeValue) (*models.ProductAttributeValue, error) {
	var link models.ProductAttributeValue
	err := r.tx.Where("product_id = ? AND attribute_id = ? AND attribute_value_id = ?",
		product.ID, attribute.ID, value.ID).First(&link).Error
	if err == nil {
		if link.ValueText != value.DisplayValue {
			link.ValueText = value.DisplayValue
			link.ValueNumber = value.NumericValue
			if err := r.tx.Save(&link).Error; err != nil {
				return nil, fmt.Errorf("failed to update attribute link: %w", err)
			}
		}
		return &link, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to find attribute link: %w", err)
	}

	link = models.ProductAttributeValue{
		ProductID:        product.ID,
		AttributeID:      attribute.ID,
		AttributeValueID: value.ID,
		ValueText:        value.DisplayValue,
		ValueNumber:      value.NumericValue,
	}
	if err := r.tx.Create(&link).Error; err != nil {
		return nil, fmt.Errorf("failed to link attribute value: %w", err)
	}
	return &link, nil
}

// numericValue extracts the number from texts like "250 g" or "1,200 ml".
func numericValue(display string) decimal.NullDecimal {
	if !strings.ContainsAny(display, "0123456789") {
		return decimal.NullDecimal{}
	}
	if d, ok := numericPart(display); ok {
		return decimal.NewNullDecimal(d)
	}
	return decimal.NullDecimal{}
}
