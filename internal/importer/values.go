package importer

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"catalog/internal/connectors/woocommerce"
	"catalog/internal/models"

	"github.com/shopspring/decimal"
)

var (
	tagPattern        = regexp.MustCompile(`(?s)<[^>]*>`)
	spacePattern      = regexp.MustCompile(`\s+`)
	nonNumericPattern = regexp.MustCompile(`[^0-9.\-]`)
)

// mapStatus normalizes a remote post status.
func mapStatus(raw string) models.PublishStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "publish", "published":
		return models.StatusPublished
	case "private", "trash", "archived":
		return models.StatusArchived
	default:
		return models.StatusDraft
	}
}

func mapProductType(p woocommerce.Product) models.ProductType {
	if p.IsVariable() {
		return models.ProductTypeConfigurable
	}
	return models.ProductTypeStandard
}

// stripTags turns an HTML fragment into plain text.
func stripTags(s string) string {
	text := tagPattern.ReplaceAllString(s, " ")
	text = html.UnescapeString(text)
	return strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))
}

// cleanText unescapes the HTML entities WooCommerce puts in names.
func cleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(s))
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// parseDecimal reads a remote number. Values like "1,299.00" or "12 EUR" are
// reduced to their numeric characters first.
func parseDecimal(s woocommerce.FlexString) (decimal.Decimal, bool) {
	text := strings.TrimSpace(string(s))
	if text == "" {
		return decimal.Zero, false
	}
	if d, err := decimal.NewFromString(text); err == nil {
		return d, true
	}
	return numericPart(text)
}

func numericPart(text string) (decimal.Decimal, bool) {
	cleaned := nonNumericPattern.ReplaceAllString(strings.ReplaceAll(text, ",", ""), "")
	if cleaned == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// firstDecimal returns the first value that parses as a number.
func firstDecimal(values ...woocommerce.FlexString) (decimal.Decimal, bool) {
	for _, v := range values {
		if d, ok := parseDecimal(v); ok {
			return d, true
		}
	}
	return decimal.Zero, false
}

func nullDecimal(values ...woocommerce.FlexString) decimal.NullDecimal {
	if d, ok := firstDecimal(values...); ok {
		return decimal.NewNullDecimal(d)
	}
	return decimal.NullDecimal{}
}

// valueKey is the matching key of an option value; display text is kept as is.
func valueKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// attributeKey identifies an attribute across a product and its variations.
// Global attributes match by id, custom ones by name.
func attributeKey(id int64, name, slug string) string {
	if id > 0 {
		return fmt.Sprintf("id:%d", id)
	}
	label := name
	if strings.TrimSpace(label) == "" {
		label = slug
	}
	return "name:" + Slugify(cleanText(label))
}
