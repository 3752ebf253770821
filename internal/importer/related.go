package importer

import (
	"fmt"

	"catalog/internal/connectors/woocommerce"
	"catalog/internal/models"
)

// syncRelated replaces the upsell and cross-sell links of product. Targets
// that were not imported yet are left out and picked up by a later run.
func (r *productRun) syncRelated(product *models.Product, rp woocommerce.Product) error {
	if err := r.tx.Where("product_id = ?", product.ID).Delete(&models.RelatedProduct{}).Error; err != nil {
		return fmt.Errorf("failed to clear related products: %w", err)
	}

	var links []models.RelatedProduct
	for relation, remoteIDs := range map[models.RelationType][]int64{
		models.RelationUpsell:    rp.UpsellIDs,
		models.RelationCrossSell: rp.CrossSellIDs,
	} {
		targets, err := r.localProductIDs(remoteIDs)
		if err != nil {
			return err
		}
		position := 0
		for _, id := range targets {
			if id == product.ID {
				continue
			}
			position++
			links = append(links, models.RelatedProduct{
				ProductID:        product.ID,
				RelatedProductID: id,
				Type:             relation,
				Position:         position,
			})
		}
	}
	if len(links) == 0 {
		return nil
	}
	if err := r.tx.Create(&links).Error; err != nil {
		return fmt.Errorf("failed to link related products: %w", err)
	}
	return nil
}

// localProductIDs maps remote product ids to local ids in the given order,
// dropping unknown and repeated ids.
func (r *productRun) localProductIDs(remoteIDs []int64) ([]string, error) {
	if len(remoteIDs) == 0 {
		return nil, nil
	}
	var rows []models.Product
	err := r.tx.Select("id", "remote_id").
		Where("source = ? AND remote_id IN ?", models.SourceWooCommerce, remoteIDs).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find related products: %w", err)
	}
	byRemote := make(map[int64]string, len(rows))
	for _, row := range rows {
		if row.RemoteID != nil {
			byRemote[*row.RemoteID] = row.ID
		}
	}

	seen := map[string]bool{}
	var ids []string
	for _, remoteID := range remoteIDs {
		id, ok := byRemote[remoteID]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}
