package importer

import (
	"context"
	"fmt"
	"net/url"

	"catalog/internal/connectors/woocommerce"
	"catalog/internal/logger"
	"catalog/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// syncCategories imports the remote category tree, parents first. A failed
// category is recorded and the rest continue. A failed page keeps the
// categories already fetched.
func (s *session) syncCategories(ctx context.Context) {
	pager := s.imp.source.ListCategories(woocommerce.Query{})
	var order []int64
	for pager.Next(ctx) {
		if recErr := pager.RecordErr(); recErr != nil {
			s.recordFailure(ctx, Failure{Entity: string(KindCategory), RemoteID: recErr.RemoteID, Page: recErr.Page, Message: recErr.Error()})
			s.log.WithFields(logger.Fields{"remote_id": recErr.RemoteID}).Error("Failed to decode category: %v", recErr.Err)
			continue
		}
		c := pager.Item()
		if c.ID <= 0 {
			continue
		}
		if _, dup := s.remoteCategories[c.ID]; !dup {
			order = append(order, c.ID)
		}
		s.remoteCategories[c.ID] = c
	}
	if err := pager.Err(); err != nil {
		s.recordFailure(ctx, Failure{Entity: string(KindCategory), Page: pager.Page(), Message: err.Error()})
		s.log.WithFields(logger.Fields{"page": pager.Page()}).Error("Failed to fetch categories page: %v", err)
	}

	s.log.Info("Syncing %d categories", len(order))
	for _, id := range order {
		if s.syncedCategories[id] {
			continue
		}

		var cs *categorySync
		err := s.transaction(ctx, func(tx *gorm.DB) error {
			cs = s.newCategorySync(tx)
			_, err := cs.ensure(id)
			return err
		})
		if err != nil {
			s.summary.Stats.Categories.Skipped++
			s.recordFailure(ctx, Failure{Entity: string(KindCategory), RemoteID: id, Message: err.Error()})
			s.log.WithFields(logger.Fields{"remote_id": id}).Error("Failed to import category: %v", err)
			continue
		}
		cs.commit(&s.summary.Stats)
	}
}

// categorySync writes categories inside one transaction. Rows it touches are
// staged and only become visible to the session through commit, so a rolled
// back transaction leaves no stale ids in the session map.
type categorySync struct {
	s        *session
	tx       *gorm.DB
	resolver *Resolver
	stats    Counts
	staged   map[int64]*models.Category
	synced   map[int64]bool
	visiting map[int64]bool
}

func (s *session) newCategorySync(tx *gorm.DB) *categorySync {
	return &categorySync{
		s:        s,
		tx:       tx,
		resolver: NewResolver(tx),
		staged:   make(map[int64]*models.Category),
		synced:   make(map[int64]bool),
		visiting: make(map[int64]bool),
	}
}

func (c *categorySync) commit(stats *Stats) {
	for id, cat := range c.staged {
		c.s.categories[id] = cat
	}
	for id := range c.synced {
		c.s.syncedCategories[id] = true
	}
	stats.Categories.add(c.stats)
}

func (c *categorySync) lookup(remoteID int64) (*models.Category, bool) {
	if cat, ok := c.staged[remoteID]; ok {
		return cat, true
	}
	cat, ok := c.s.categories[remoteID]
	return cat, ok
}

// ensure imports the fetched remote category with remoteID and its ancestors.
// Categories that were not fetched resolve to whatever the store already
// has, possibly nothing.
func (c *categorySync) ensure(remoteID int64) (*models.Category, error) {
	if c.synced[remoteID] || c.s.syncedCategories[remoteID] {
		cat, _ := c.lookup(remoteID)
		return cat, nil
	}

	rc, fetched := c.s.remoteCategories[remoteID]
	if !fetched {
		cat, _ := c.lookup(remoteID)
		return cat, nil
	}

	if c.visiting[remoteID] {
		c.s.log.WithFields(logger.Fields{"remote_id": remoteID}).
			Warn("Category %d is part of a parent cycle, importing its child without a parent", remoteID)
		return nil, nil
	}
	c.visiting[remoteID] = true
	defer delete(c.visiting, remoteID)

	var parentID *string
	if rc.Parent > 0 {
		parent, err := c.ensure(rc.Parent)
		if err != nil {
			return nil, err
		}
		if parent != nil {
			parentID = &parent.ID
		}
	}

	cat, err := c.upsert(rc, parentID)
	if err != nil {
		return nil, err
	}
	c.staged[remoteID] = cat
	c.synced[remoteID] = true
	return cat, nil
}

func (c *categorySync) upsert(rc woocommerce.Category, parentID *string) (*models.Category, error) {
	name := cleanText(rc.Name)
	if name == "" {
		name = fmt.Sprintf("Category %d", rc.ID)
	}
	base := slugBase(rc.Slug, name)

	res, err := c.resolver.Category(rc.ID, base)
	if err != nil {
		return nil, err
	}

	cat := &models.Category{}
	created := res == nil
	if !created {
		cat = res.Row
	}
	before := snapshot(cat)

	slug, err := uniqueValue(c.tx, &models.Category{}, "slug", base, cat.ID, nil)
	if err != nil {
		return nil, err
	}

	cat.ParentID = parentID
	cat.Type = models.CategoryTypeCatalog
	cat.Name = name
	cat.Slug = slug
	cat.Description = optionalString(rc.Description)
	cat.ImageURL = nil
	if rc.Image != nil {
		cat.ImageURL = optionalString(rc.Image.Src)
	}
	cat.Status = models.StatusPublished
	cat.IsVisible = true
	if rc.Hidden() {
		cat.Status = models.StatusDraft
		cat.IsVisible = false
	}
	cat.Position = rc.MenuOrder
	cat.Data = mergeData(cat.Data, datatypes.JSONMap{"display": rc.Display})
	cat.Origin = models.NewOrigin(models.SourceWooCommerce, rc.ID)

	switch {
	case created:
		if err := c.tx.Create(cat).Error; err != nil {
			return nil, fmt.Errorf("failed to create category %d: %w", rc.ID, err)
		}
		c.stats.Created++
	case before != snapshot(cat) || res.Lifecycle == models.LifecycleRestorable:
		if err := c.tx.Save(cat).Error; err != nil {
			return nil, fmt.Errorf("failed to update category %d: %w", rc.ID, err)
		}
		c.stats.Updated++
	default:
		c.stats.Skipped++
	}
	return cat, nil
}

// fromRef returns the local category for a product's category reference,
// creating a minimal one when the category was never synced.
func (c *categorySync) fromRef(ref woocommerce.CategoryRef) (*models.Category, error) {
	if cat, err := c.ensure(ref.ID); err != nil || cat != nil {
		return cat, err
	}

	name := cleanText(ref.Name)
	if name == "" {
		name = fmt.Sprintf("Category %d", ref.ID)
	}
	base := slugBase(ref.Slug, name)

	res, err := c.resolver.Category(ref.ID, base)
	if err != nil {
		return nil, err
	}
	if res != nil {
		if res.Row.Source != models.SourceWooCommerce || res.Row.RemoteID == nil {
			res.Row.Origin = models.NewOrigin(models.SourceWooCommerce, ref.ID)
			if err := c.tx.Save(res.Row).Error; err != nil {
				return nil, fmt.Errorf("failed to link category %d: %w", ref.ID, err)
			}
			c.stats.Updated++
		}
		c.staged[ref.ID] = res.Row
		return res.Row, nil
	}

	slug, err := uniqueValue(c.tx, &models.Category{}, "slug", base, "", nil)
	if err != nil {
		return nil, err
	}
	cat := &models.Category{
		Type:      models.CategoryTypeCatalog,
		Name:      name,
		Slug:      slug,
		Status:    models.StatusPublished,
		IsVisible: true,
		Origin:    models.NewOrigin(models.SourceWooCommerce, ref.ID),
	}
	if err := c.tx.Create(cat).Error; err != nil {
		return nil, fmt.Errorf("failed to create category %d: %w", ref.ID, err)
	}
	c.stats.Created++
	c.staged[ref.ID] = cat
	return cat, nil
}

// slugBase prefers the remote slug, which WooCommerce percent-encodes for
// non-ASCII names.
func slugBase(remoteSlug, name string) string {
	if decoded, err := url.PathUnescape(remoteSlug); err == nil {
		remoteSlug = decoded
	}
	if slug := Slugify(remoteSlug); slug != "" {
		return slug
	}
	if slug := Slugify(name); slug != "" {
		return slug
	}
	return "item"
}

func mergeData(current datatypes.JSONMap, values datatypes.JSONMap) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for k, v := range current {
		out[k] = v
	}
	for k, v := range values {
		if v == nil || v == "" {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// syncProductCategories replaces the product's category links. The first
// category is primary and positions start at 1.
func (r *productRun) syncProductCategories(product *models.Product, refs []woocommerce.CategoryRef) error {
	var ids []string
	seen := make(map[string]bool)
	for _, ref := range refs {
		if ref.ID <= 0 {
			continue
		}
		cat, err := r.cats.fromRef(ref)
		if err != nil {
			return err
		}
		if cat == nil || seen[cat.ID] {
			continue
		}
		seen[cat.ID] = true
		ids = append(ids, cat.ID)
	}

	if err := r.tx.Where("product_id = ?", product.ID).Delete(&models.CategoryProduct{}).Error; err != nil {
		return fmt.Errorf("failed to detach categories: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	links := make([]models.CategoryProduct, 0, len(ids))
	for i, id := range ids {
		links = append(links, models.CategoryProduct{
			CategoryID: id,
			ProductID:  product.ID,
			IsPrimary:  i == 0,
			Position:   i + 1,
		})
	}
	if err := r.tx.Create(&links).Error; err != nil {
		return fmt.Errorf("failed to attach categories: %w", err)
	}
	return nil
}
