package importer

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

// Slugify lower-cases s, folds accented letters to ASCII and joins the
// remaining alphanumeric runs with single dashes.
func Slugify(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(strings.ReplaceAll(folded, "@", " at ")) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}

// slugOrHash slugifies s and falls back to a short hash for values with no
// ASCII-foldable characters at all.
func slugOrHash(s string) string {
	if slug := Slugify(s); slug != "" {
		return slug
	}
	return shortHash(s)
}

// shortHash is the first 12 hex characters of the md5 of s.
func shortHash(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// uniqueValue returns base, or base with the first free numeric suffix
// (-2, -3, ...), such that no other row of model has it in column. Soft-deleted
// rows count as taken because they can still be restored. scope narrows the
// check, e.g. to one product's options.
func uniqueValue(tx *gorm.DB, model interface{}, column, base, ignoreID string, scope func(*gorm.DB) *gorm.DB) (string, error) {
	candidate := base
	for n := 2; ; n++ {
		q := tx.Unscoped().Model(model).Where(column+" = ?", candidate)
		if ignoreID != "" {
			q = q.Where("id <> ?", ignoreID)
		}
		if scope != nil {
			q = scope(q)
		}

		var count int64
		if err := q.Count(&count).Error; err != nil {
			return "", fmt.Errorf("failed to check %s uniqueness: %w", column, err)
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}
