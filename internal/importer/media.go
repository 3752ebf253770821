package importer

import (
	"fmt"
	"strconv"
	"strings"

	"catalog/internal/connectors/woocommerce"
	"catalog/internal/events"
	"catalog/internal/logger"
	"catalog/internal/media"
	"catalog/internal/models"
)

// mediaIndex tracks the media rows of the product being imported.
type mediaIndex struct {
	byRemoteID map[int64]*models.ProductMedia
	bySrc      map[string]*models.ProductMedia
	keep       map[string]bool
	// fresh holds the rows created in this pass.
	fresh       map[string]bool
	maxPosition int
}

func newMediaIndex() *mediaIndex {
	return &mediaIndex{
		byRemoteID: map[int64]*models.ProductMedia{},
		bySrc:      map[string]*models.ProductMedia{},
		keep:       map[string]bool{},
		fresh:      map[string]bool{},
	}
}

func (m *mediaIndex) add(row *models.ProductMedia, img woocommerce.Image) {
	if img.ID > 0 {
		m.byRemoteID[img.ID] = row
	}
	m.bySrc[strings.TrimSpace(img.Src)] = row
	m.keep[row.ID] = true
	if row.Position > m.maxPosition {
		m.maxPosition = row.Position
	}
}

func (m *mediaIndex) lookup(img woocommerce.Image) *models.ProductMedia {
	if img.ID > 0 {
		if row, ok := m.byRemoteID[img.ID]; ok {
			return row
		}
	}
	return m.bySrc[strings.TrimSpace(img.Src)]
}

// syncMedia upserts the product gallery in remote order. The first image is
// primary. Stale rows are pruned later by pruneMedia, once variation images
// are known.
func (r *productRun) syncMedia(product *models.Product, images []woocommerce.Image) error {
	position := 0
	for _, img := range images {
		src := strings.TrimSpace(img.Src)
		if src == "" {
			continue
		}
		if r.media.lookup(img) != nil {
			continue
		}
		position++

		row, err := r.upsertMedia(product, img, position, position == 1)
		if err != nil {
			return err
		}
		r.media.add(row, img)
	}
	return nil
}

func (r *productRun) upsertMedia(product *models.Product, img woocommerce.Image, position int, primary bool) (*models.ProductMedia, error) {
	src := strings.TrimSpace(img.Src)
	res, err := r.resolver.Media(product.ID, img.ID, src)
	if err != nil {
		return nil, err
	}

	row := &models.ProductMedia{ProductID: product.ID, Type: models.MediaTypeImage}
	created := res == nil
	if !created {
		row = res.Row
	}
	before := snapshot(row)

	if created || stringValue(row.RemoteURL) != src || (row.Disk == models.DiskRemote && r.canDownload()) {
		r.store(product, row, img, src)
	}

	row.IsPrimary = primary
	row.Position = position
	row.AltText = optionalString(trimmed(cleanText(img.Alt), product.Name))
	row.Caption = optionalString(trimmed(cleanText(img.Name), product.Name))
	row.RemoteURL = &src
	row.Origin = models.NewOrigin(models.SourceWooCommerce, img.ID)
	if img.ID <= 0 {
		row.Origin = models.Origin{Source: models.SourceWooCommerce}
	}

	switch {
	case created:
		if err := r.tx.Create(row).Error; err != nil {
			return nil, fmt.Errorf("failed to create media: %w", err)
		}
		r.media.fresh[row.ID] = true
		r.stats.Media.Created++
	case before != snapshot(row) || res.Lifecycle == models.LifecycleRestorable:
		if err := r.tx.Save(row).Error; err != nil {
			return nil, fmt.Errorf("failed to update media: %w", err)
		}
		r.stats.Media.Updated++
	}
	return row, nil
}

// store points row at its file: a downloaded copy when downloads are on and
// succeed, otherwise the remote URL itself.
func (r *productRun) store(product *models.Product, row *models.ProductMedia, img woocommerce.Image, src string) {
	if r.canDownload() {
		if !r.announcedDownload {
			r.announcedDownload = true
			r.s.emit(r.ctx, events.Event{
				Type:     events.DownloadingImages,
				RemoteID: derefInt64(product.RemoteID),
				Name:     product.Name,
			})
		}

		identifier := strconv.FormatInt(img.ID, 10)
		if img.ID <= 0 {
			identifier = shortHash(src)[:8]
		}
		stored, err := r.s.imp.downloader.Download(r.ctx, src, media.Target{
			ProductID:  product.ID,
			Name:       Slugify(trimmed(img.Name, product.Name)),
			Identifier: identifier,
		})
		if err == nil {
			row.Disk = stored.Disk
			row.Path = stored.Path
			row.URL = optionalString(stored.URL)
			return
		}
		r.s.log.WithFields(logger.Fields{"product_id": product.ID, "src": src}).
			Warn("Image download failed, keeping the remote URL: %v", err)
	}

	row.Disk = models.DiskRemote
	row.Path = src
	row.URL = &src
}

// canDownload reports whether images are copied locally. Dry runs never
// write files.
func (r *productRun) canDownload() bool {
	return r.s.imp.downloader != nil && r.s.imp.settings.DownloadImages && !r.s.opts.DryRun
}

// variantMedia returns the media row for a variation image, appending a
// non-primary row after the gallery when the product does not have it.
func (r *productRun) variantMedia(product *models.Product, img woocommerce.Image) (*models.ProductMedia, error) {
	if row := r.media.lookup(img); row != nil {
		return row, nil
	}
	row, err := r.upsertMedia(product, img, r.media.maxPosition+1, false)
	if err != nil {
		return nil, err
	}
	r.media.add(row, img)
	return row, nil
}

// linkVariantMedia attaches the variation image to variant.
func (r *productRun) linkVariantMedia(product *models.Product, variant *models.ProductVariant, img *woocommerce.Image) error {
	if img == nil || strings.TrimSpace(img.Src) == "" {
		return nil
	}
	row, err := r.variantMedia(product, *img)
	if err != nil {
		return err
	}
	if row.ProductVariantID != nil && *row.ProductVariantID == variant.ID {
		return nil
	}

	variantID := variant.ID
	row.ProductVariantID = &variantID
	if err := r.tx.Model(row).Update("product_variant_id", variantID).Error; err != nil {
		return fmt.Errorf("failed to link media to variant: %w", err)
	}
	if !r.media.fresh[row.ID] {
		r.stats.Media.Updated++
	}
	return nil
}

// pruneMedia deletes the product's media that neither the gallery nor any
// variation referenced in this pass.
func (r *productRun) pruneMedia(product *models.Product) error {
	var rows []models.ProductMedia
	if err := r.tx.Where("product_id = ?", product.ID).Find(&rows).Error; err != nil {
		return fmt.Errorf("failed to load media: %w", err)
	}
	for i := range rows {
		if r.media.keep[rows[i].ID] {
			continue
		}
		if err := r.tx.Delete(&rows[i]).Error; err != nil {
			return fmt.Errorf("failed to delete media: %w", err)
		}
		r.stats.Media.Deleted++
	}
	return nil
}

func derefInt64(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
