package importer

import (
	"context"
	"fmt"
	"time"

	"catalog/internal/connectors/woocommerce"
	"catalog/internal/events"
	"catalog/internal/logger"
	"catalog/internal/models"

	"gorm.io/gorm"
)

// productRun is one attempt at importing a product. Everything it counts or
// caches is merged into the session only once its transaction commits.
type productRun struct {
	s        *session
	ctx      context.Context
	tx       *gorm.DB
	resolver *Resolver
	stats    Stats
	cats     *categorySync
	media    *mediaIndex
	now      time.Time

	announcedDownload bool
	created           bool
	product           *models.Product
}

func (s *session) newProductRun(ctx context.Context, tx *gorm.DB) *productRun {
	return &productRun{
		s:        s,
		ctx:      ctx,
		tx:       tx,
		resolver: NewResolver(tx),
		cats:     s.newCategorySync(tx),
		media:    newMediaIndex(),
		now:      time.Now().UTC(),
	}
}

// importProduct imports one remote product with its variations in a single
// transaction. Failures are recorded and never stop the run.
func (s *session) importProduct(ctx context.Context, rp woocommerce.Product) {
	s.summary.Processed++
	log := s.log.WithFields(logger.Fields{"remote_id": rp.ID})

	if rp.ID <= 0 {
		s.summary.Stats.Products.Skipped++
		s.emit(ctx, events.Event{Type: events.Skipped, Name: cleanText(rp.Name), Message: "missing_id"})
		log.Warn("Skipping product %q without an id", rp.Name)
		return
	}

	variations, err := s.variationsFor(ctx, rp)
	if err == nil {
		err = validateVariations(rp, variations)
	}

	var run *productRun
	if err == nil {
		err = s.transaction(ctx, func(tx *gorm.DB) error {
			run = s.newProductRun(ctx, tx)
			return run.reconcile(rp, variations)
		})
	}
	if err != nil {
		s.recordFailure(ctx, Failure{Entity: string(KindProduct), RemoteID: rp.ID, Message: err.Error()})
		log.Error("Failed to import product: %v", err)
		return
	}

	s.summary.Stats.add(run.stats)
	run.cats.commit(&s.summary.Stats)

	kind := events.Updated
	if run.created {
		kind = events.Created
	}
	s.emit(ctx, events.Event{
		Type:      kind,
		RemoteID:  rp.ID,
		ProductID: run.product.ID,
		Name:      run.product.Name,
	})
	s.emit(ctx, events.Event{
		Type:      events.ProductCompleted,
		RemoteID:  rp.ID,
		ProductID: run.product.ID,
		Name:      run.product.Name,
		Counts: map[string]int{
			"variants":      len(variations),
			"media":         len(run.media.keep),
			"media_created": run.stats.Media.Created,
			"options":       run.stats.Options.Created + run.stats.Options.Updated + run.stats.Options.Skipped,
		},
	})
	log.Debug("Imported product %s (%d variant(s))", run.product.Slug, len(variations))
}

// reconcile writes the product and all of its children.
func (r *productRun) reconcile(rp woocommerce.Product, variations []woocommerce.Variation) error {
	product, err := r.upsertProduct(rp)
	if err != nil {
		return err
	}
	r.product = product

	if err := r.syncProductCategories(product, rp.Categories); err != nil {
		return err
	}
	if err := r.syncAttributes(product, rp.Attributes); err != nil {
		return err
	}

	var optionAttrs []woocommerce.Attribute
	if rp.IsVariable() {
		optionAttrs = rp.Attributes
	}
	options, err := r.syncOptions(product, optionAttrs)
	if err != nil {
		return err
	}

	if err := r.syncMedia(product, rp.Images); err != nil {
		return err
	}
	defaultID, err := r.syncVariants(product, rp, variations, options)
	if err != nil {
		return err
	}
	if err := r.pruneMedia(product); err != nil {
		return err
	}

	product.DefaultVariantID = defaultID
	if err := r.tx.Model(product).Update("default_variant_id", defaultID).Error; err != nil {
		return fmt.Errorf("failed to set default variant: %w", err)
	}

	return r.syncRelated(product, rp)
}
