package importer

import (
	"context"
	"strconv"
	"testing"
	"time"

	"catalog/internal/connectors/woocommerce"
	"catalog/internal/events"
	"catalog/internal/models"
	"catalog/internal/runlock"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestImportSimpleProduct(t *testing.T) {
	env := newTestEnv(t)
	env.store.setCategories(clothingCategories()...)
	env.store.setProducts(simpleProduct())

	summary := env.run(t, Options{})

	assert.Empty(t, summary.Failures)
	assert.False(t, summary.Aborted)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, Counts{Created: 2}, summary.Stats.Categories)
	assert.Equal(t, Counts{Created: 1}, summary.Stats.Products)
	assert.Equal(t, Counts{Created: 1}, summary.Stats.Variants)
	assert.Equal(t, Counts{Created: 2}, summary.Stats.Media)

	var product models.Product
	require.NoError(t, env.db.Where("slug = ?", "linen-shirt").First(&product).Error)
	assert.Equal(t, models.ProductTypeStandard, product.Type)
	assert.Equal(t, models.StatusPublished, product.Status)
	assert.Equal(t, "Breathable & light", stringValue(product.Excerpt))
	require.NotNil(t, product.PublishedAt)
	assert.True(t, product.PublishedAt.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, "Linen", product.Specifications["Material"])
	require.NotNil(t, product.RemoteID)
	assert.Equal(t, int64(10), *product.RemoteID)

	var variants []models.ProductVariant
	require.NoError(t, env.db.Where("product_id = ?", product.ID).Find(&variants).Error)
	require.Len(t, variants, 1)
	v := variants[0]
	assert.Equal(t, "LS-1", v.SKU)
	assert.True(t, v.IsDefault)
	assert.True(t, v.Price.Equal(dec("19.99")), v.Price.String())
	require.True(t, v.CompareAtPrice.Valid)
	assert.True(t, v.CompareAtPrice.Decimal.Equal(dec("25")))
	assert.Equal(t, "EUR", v.Currency)
	assert.Equal(t, 7, v.InventoryQuantity)
	assert.True(t, v.TrackInventory)
	assert.Equal(t, models.InventoryPolicyDeny, v.InventoryPolicy)
	assert.Equal(t, "4006381333931", stringValue(v.Barcode))
	assert.True(t, v.Length.Valid)
	assert.False(t, v.Height.Valid)
	assert.True(t, v.RequiresShipping)
	require.NotNil(t, product.DefaultVariantID)
	assert.Equal(t, v.ID, *product.DefaultVariantID)

	var media []models.ProductMedia
	require.NoError(t, env.db.Where("product_id = ?", product.ID).Order("position").Find(&media).Error)
	require.Len(t, media, 2)
	assert.True(t, media[0].IsPrimary)
	assert.False(t, media[1].IsPrimary)
	assert.Equal(t, 1, media[0].Position)
	assert.Equal(t, models.DiskRemote, media[0].Disk)
	assert.Equal(t, "https://shop.example.com/linen-front.jpg", media[0].Path)
	assert.Equal(t, "Linen Shirt", stringValue(media[0].AltText))
	assert.Equal(t, "Back view", stringValue(media[1].AltText))
	require.NotNil(t, media[0].ProductVariantID)
	assert.Equal(t, v.ID, *media[0].ProductVariantID)

	var shirts, clothing models.Category
	require.NoError(t, env.db.Where("slug = ?", "shirts").First(&shirts).Error)
	require.NoError(t, env.db.Where("slug = ?", "clothing").First(&clothing).Error)
	assert.Equal(t, "Shirts & Tops", shirts.Name)
	require.NotNil(t, shirts.ParentID)
	assert.Equal(t, clothing.ID, *shirts.ParentID)

	var links []models.CategoryProduct
	require.NoError(t, env.db.Where("product_id = ?", product.ID).Find(&links).Error)
	require.Len(t, links, 1)
	assert.Equal(t, shirts.ID, links[0].CategoryID)
	assert.True(t, links[0].IsPrimary)
	assert.Equal(t, 1, links[0].Position)

	var weight models.Attribute
	require.NoError(t, env.db.Where("code = ?", "weight").First(&weight).Error)
	var value models.AttributeValue
	require.NoError(t, env.db.Where("attribute_id = ?", weight.ID).First(&value).Error)
	require.True(t, value.NumericValue.Valid)
	assert.True(t, value.NumericValue.Decimal.Equal(dec("300")))
	assert.EqualValues(t, 2, env.count(t, &models.ProductAttributeValue{}, "product_id = ?", product.ID))

	created := env.events.ofType(events.Created)
	require.Len(t, created, 1)
	assert.Equal(t, int64(10), created[0].RemoteID)
	assert.Equal(t, product.ID, created[0].ProductID)
	assert.Len(t, env.events.ofType(events.ProductCompleted), 1)

	var run models.ImportRun
	require.NoError(t, env.db.First(&run, "id = ?", summary.RunID).Error)
	assert.Equal(t, models.ImportRunStatusCompleted, run.Status)
	assert.NotNil(t, run.FinishedAt)
}

func TestImportVariableProduct(t *testing.T) {
	env := newTestEnv(t)
	env.store.setProducts(variableProduct())
	env.store.setVariations(20, hoodieVariations()...)

	summary := env.run(t, Options{SkipCategories: true})
	require.Empty(t, summary.Failures)
	assert.Equal(t, Counts{Created: 2}, summary.Stats.Options)
	assert.Equal(t, Counts{Created: 3}, summary.Stats.Variants)
	assert.Equal(t, Counts{Created: 2}, summary.Stats.Media)

	var product models.Product
	require.NoError(t, env.db.Where("slug = ?", "hoodie").First(&product).Error)
	assert.Equal(t, models.ProductTypeConfigurable, product.Type)

	var options []models.ProductOption
	require.NoError(t, env.db.Where("product_id = ?", product.ID).Order("position").Find(&options).Error)
	require.Len(t, options, 2)
	assert.Equal(t, "color", options[0].Code)
	assert.Equal(t, "size", options[1].Code)
	assert.Nil(t, options[0].RemoteID)
	require.NotNil(t, options[1].RemoteID)
	assert.Equal(t, int64(3), *options[1].RemoteID)
	assert.EqualValues(t, 2, env.count(t, &models.ProductOptionValue{}, "product_option_id = ?", options[0].ID))

	variants := map[string]models.ProductVariant{}
	var rows []models.ProductVariant
	require.NoError(t, env.db.Where("product_id = ?", product.ID).Find(&rows).Error)
	for _, v := range rows {
		variants[v.SKU] = v
	}
	require.Len(t, variants, 3)

	blue := variants["HD-BLUE-M"]
	assert.True(t, blue.IsDefault)
	assert.False(t, variants["HD-RED-S"].IsDefault)
	require.NotNil(t, product.DefaultVariantID)
	assert.Equal(t, blue.ID, *product.DefaultVariantID)
	assert.True(t, blue.CompareAtPrice.Valid)
	assert.True(t, blue.CompareAtPrice.Decimal.Equal(dec("45")))
	assert.False(t, variants["HD-RED-S"].CompareAtPrice.Valid)

	generated, ok := variants["woo-203"]
	require.True(t, ok, "blank SKU falls back to the remote id")
	assert.Equal(t, models.StatusArchived, generated.Status)
	assert.True(t, generated.Price.Equal(dec("40")), "price falls back to the parent")

	for _, v := range rows {
		assert.EqualValues(t, 2, env.count(t, &models.ProductVariantOptionValue{}, "product_variant_id = ?", v.ID), v.SKU)
	}

	var variantImage models.ProductMedia
	require.NoError(t, env.db.Where("remote_url = ?", "https://shop.example.com/hoodie-blue.jpg").First(&variantImage).Error)
	assert.False(t, variantImage.IsPrimary)
	assert.Equal(t, 2, variantImage.Position)
	require.NotNil(t, variantImage.ProductVariantID)
	assert.Equal(t, blue.ID, *variantImage.ProductVariantID)

	assert.Equal(t, 1, env.store.requestCount("products/20/variations"))
}

func TestReimportIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.store.setCategories(clothingCategories()...)
	env.store.setProducts(simpleProduct(), variableProduct())
	env.store.setVariations(20, hoodieVariations()...)

	first := env.run(t, Options{})
	require.Empty(t, first.Failures)

	var before []models.ProductVariant
	require.NoError(t, env.db.Order("sku").Find(&before).Error)

	second := env.run(t, Options{})
	require.Empty(t, second.Failures)

	assert.Equal(t, Counts{Skipped: 2}, second.Stats.Categories)
	assert.Equal(t, Counts{Updated: 2}, second.Stats.Products)
	assert.Equal(t, Counts{Skipped: 2}, second.Stats.Options)
	assert.Equal(t, Counts{Updated: 4}, second.Stats.Variants)
	assert.Equal(t, Counts{}, second.Stats.Media)

	var after []models.ProductVariant
	require.NoError(t, env.db.Order("sku").Find(&after).Error)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.Equal(t, before[i].SKU, after[i].SKU)
	}

	assert.EqualValues(t, 2, env.count(t, &models.Product{}))
	assert.EqualValues(t, 2, env.count(t, &models.Category{}))
	assert.EqualValues(t, 4, env.count(t, &models.ProductMedia{}))
	assert.EqualValues(t, 4, env.count(t, &models.ProductOptionValue{}))
	assert.EqualValues(t, 6, env.count(t, &models.ProductVariantOptionValue{}))
	assert.EqualValues(t, 1, env.count(t, &models.CategoryProduct{}))
	assert.EqualValues(t, 2, env.count(t, &models.ImportRun{}))
}

func TestReimportReconcilesChildren(t *testing.T) {
	env := newTestEnv(t)
	product := variableProduct()
	env.store.setProducts(product)
	env.store.setVariations(20, hoodieVariations()...)
	env.run(t, Options{SkipCategories: true})

	var red models.ProductVariant
	require.NoError(t, env.db.Where("sku = ?", "HD-RED-S").First(&red).Error)

	// Drop the red variation.
	env.store.setVariations(20, hoodieVariations()[1:]...)
	summary := env.run(t, Options{SkipCategories: true})
	require.Empty(t, summary.Failures)
	assert.Equal(t, 1, summary.Stats.Variants.Deleted)
	assert.EqualValues(t, 2, env.count(t, &models.ProductVariant{}))
	assert.EqualValues(t, 0, env.count(t, &models.ProductVariantOptionValue{}, "product_variant_id = ?", red.ID))

	// Bring it back as the default: the same row is restored.
	product["default_attributes"] = []record{
		{"id": 0, "name": "Color", "option": "Red"},
		{"id": 3, "name": "Size", "option": "S"},
	}
	env.store.setProducts(product)
	env.store.setVariations(20, hoodieVariations()...)
	summary = env.run(t, Options{SkipCategories: true})
	require.Empty(t, summary.Failures)

	var restored models.ProductVariant
	require.NoError(t, env.db.Where("sku = ?", "HD-RED-S").First(&restored).Error)
	assert.Equal(t, red.ID, restored.ID)
	assert.True(t, restored.IsDefault)
	assert.EqualValues(t, 1, env.count(t, &models.ProductVariant{}, "is_default = ?", true))
	assert.EqualValues(t, 2, env.count(t, &models.ProductVariantOptionValue{}, "product_variant_id = ?", red.ID))

	var stored models.Product
	require.NoError(t, env.db.Where("slug = ?", "hoodie").First(&stored).Error)
	require.NotNil(t, stored.DefaultVariantID)
	assert.Equal(t, red.ID, *stored.DefaultVariantID)

	// Removing an option drops it with its values.
	product["attributes"] = []record{
		{"id": 0, "name": "Color", "slug": "color", "variation": true, "options": []string{"Red", "Blue"}},
	}
	product["default_attributes"] = []record{}
	env.store.setProducts(product)
	env.store.setVariations(20,
		record{"id": 201, "sku": "HD-RED-S", "price": "40", "attributes": []record{{"id": 0, "name": "Color", "option": "Red"}}},
		record{"id": 202, "sku": "HD-BLUE-M", "price": "35", "attributes": []record{{"id": 0, "name": "Color", "option": "Blue"}}},
	)
	summary = env.run(t, Options{SkipCategories: true})
	require.Empty(t, summary.Failures)
	assert.Equal(t, 1, summary.Stats.Options.Deleted)
	assert.EqualValues(t, 1, env.count(t, &models.ProductOption{}))
	assert.EqualValues(t, 2, env.count(t, &models.ProductOptionValue{}))
	assert.EqualValues(t, 2, env.count(t, &models.ProductVariantOptionValue{}))
	// The blue image only belonged to variation 202, which no longer has it.
	assert.EqualValues(t, 1, env.count(t, &models.ProductMedia{}))
}

func TestSlugAndSKUStayUnique(t *testing.T) {
	env := newTestEnv(t)
	tee := func(id int) record {
		return record{"id": id, "name": "Tee", "slug": "tee", "type": "simple", "status": "publish", "sku": "TEE", "price": "10"}
	}
	env.store.setProducts(tee(40), tee(41))

	summary := env.run(t, Options{SkipCategories: true})
	require.Empty(t, summary.Failures)

	var products []models.Product
	require.NoError(t, env.db.Order("slug").Find(&products).Error)
	require.Len(t, products, 2)
	assert.Equal(t, "tee", products[0].Slug)
	assert.Equal(t, "tee-2", products[1].Slug)

	var skus []string
	require.NoError(t, env.db.Model(&models.ProductVariant{}).Order("sku").Pluck("sku", &skus).Error)
	assert.Equal(t, []string{"TEE", "TEE-2"}, skus)

	// A second pass keeps every row on its own value.
	env.run(t, Options{SkipCategories: true})
	var again []models.Product
	require.NoError(t, env.db.Order("slug").Find(&again).Error)
	assert.Equal(t, products[0].ID, again[0].ID)
	assert.Equal(t, products[1].ID, again[1].ID)
	assert.Equal(t, "tee-2", again[1].Slug)
}

func TestImportAdoptsLocalProductBySlug(t *testing.T) {
	env := newTestEnv(t)
	local := models.Product{Slug: "linen-shirt", Name: "Old name", Type: models.ProductTypeStandard, Status: models.StatusDraft}
	require.NoError(t, env.db.Create(&local).Error)

	env.store.setProducts(simpleProduct())
	env.run(t, Options{SkipCategories: true})

	var products []models.Product
	require.NoError(t, env.db.Find(&products).Error)
	require.Len(t, products, 1)
	assert.Equal(t, local.ID, products[0].ID)
	assert.Equal(t, "Linen Shirt", products[0].Name)
	require.NotNil(t, products[0].RemoteID)
	assert.Equal(t, int64(10), *products[0].RemoteID)
}

func TestDryRunLeavesStoreUntouched(t *testing.T) {
	env := newTestEnv(t)
	env.store.setCategories(clothingCategories()...)
	env.store.setProducts(simpleProduct(), variableProduct())
	env.store.setVariations(20, hoodieVariations()...)

	summary := env.run(t, Options{DryRun: true})
	require.Empty(t, summary.Failures)
	assert.True(t, summary.DryRun)
	assert.Equal(t, 2, summary.Stats.Products.Created)
	assert.Equal(t, 2, summary.Stats.Categories.Created)

	for _, model := range []interface{}{
		&models.Category{}, &models.Product{}, &models.ProductVariant{}, &models.ProductOption{},
		&models.ProductMedia{}, &models.CategoryProduct{}, &models.Attribute{},
	} {
		assert.EqualValues(t, 0, env.count(t, model), "%T", model)
	}

	var run models.ImportRun
	require.NoError(t, env.db.First(&run, "id = ?", summary.RunID).Error)
	assert.True(t, run.DryRun)
	assert.Equal(t, models.ImportRunStatusCompleted, run.Status)

	// A real run afterwards starts from scratch.
	real := env.run(t, Options{})
	assert.Equal(t, 2, real.Stats.Products.Created)
}

func TestFailedProductDoesNotStopTheRun(t *testing.T) {
	env := newTestEnv(t)
	broken := record{
		"id": 30, "name": "Broken", "type": "variable", "status": "publish",
		"attributes": []record{{"id": 0, "name": "Color", "variation": true, "options": []string{"Red"}}},
	}
	second := simpleProduct()
	second["id"] = 11
	second["slug"] = "linen-shirt-blue"
	second["sku"] = "LS-2"
	env.store.setProducts(simpleProduct(), broken, second)
	env.store.setVariations(30, record{
		"id": 301, "sku": "BR-1", "price": "5",
		"attributes": []record{{"id": 0, "name": "Flavor", "option": "Mint"}},
	})

	summary := env.run(t, Options{SkipCategories: true})

	assert.Equal(t, 3, summary.Processed)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, Failure{Entity: "product", RemoteID: 30, Message: summary.Failures[0].Message}, summary.Failures[0])
	assert.Contains(t, summary.Failures[0].Message, ErrInvalidOptionReference.Error())
	assert.Equal(t, 2, summary.Stats.Products.Created)
	assert.EqualValues(t, 2, env.count(t, &models.Product{}))
	assert.EqualValues(t, 0, env.count(t, &models.ProductVariant{}, "sku = ?", "BR-1"))
	assert.Len(t, env.events.ofType(events.Failed), 1)
}

func TestMalformedRecordFailsOnlyItself(t *testing.T) {
	env := newTestEnv(t)
	var products []record
	for _, id := range []int{11, 12, 13} {
		p := simpleProduct()
		p["id"] = id
		p["slug"] = "linen-shirt-" + strconv.Itoa(id)
		p["sku"] = "LS-" + strconv.Itoa(id)
		products = append(products, p)
	}
	products[1]["categories"] = "Shirts"
	products[2]["sku"] = 12345
	env.store.setProducts(products...)

	summary := env.run(t, Options{SkipCategories: true, PerPage: 3})

	assert.False(t, summary.Aborted)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 2, summary.Stats.Products.Created)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, int64(12), summary.Failures[0].RemoteID)
	assert.Equal(t, 1, summary.Failures[0].Page)
	assert.Contains(t, summary.Failures[0].Message, woocommerce.ErrMalformedPayload.Error())
	assert.EqualValues(t, 2, env.count(t, &models.Product{}))
	assert.EqualValues(t, 1, env.count(t, &models.ProductVariant{}, "sku = ?", "12345"))
}

func TestProductPageFailureAbortsRun(t *testing.T) {
	env := newTestEnv(t)
	var products []record
	for _, id := range []int{10, 11, 12, 13} {
		p := simpleProduct()
		p["id"] = id
		p["slug"] = ""
		p["name"] = "Shirt " + string(rune('A'+id-10))
		p["sku"] = ""
		products = append(products, p)
	}
	env.store.setProducts(products...)
	env.store.failPages["products"] = 2

	summary := env.run(t, Options{SkipCategories: true})

	assert.True(t, summary.Aborted)
	assert.Equal(t, 2, summary.Processed)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, 2, summary.Failures[0].Page)
	assert.Zero(t, summary.Failures[0].RemoteID)
	assert.EqualValues(t, 2, env.count(t, &models.Product{}))

	var run models.ImportRun
	require.NoError(t, env.db.First(&run, "id = ?", summary.RunID).Error)
	assert.Equal(t, models.ImportRunStatusAborted, run.Status)
}

func TestCategoryPageFailureKeepsImportingProducts(t *testing.T) {
	env := newTestEnv(t)
	env.store.setCategories(clothingCategories()...)
	env.store.setProducts(simpleProduct())
	env.store.failPages["products/categories"] = 1

	summary := env.run(t, Options{})

	assert.False(t, summary.Aborted)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "category", summary.Failures[0].Entity)
	assert.Equal(t, 1, summary.Failures[0].Page)
	assert.Equal(t, 1, summary.Stats.Products.Created)

	// The product's category is created from its reference.
	var shirts models.Category
	require.NoError(t, env.db.Where("slug = ?", "shirts").First(&shirts).Error)
	assert.Equal(t, "Shirts", shirts.Name)
	assert.Nil(t, shirts.ParentID)
	assert.Equal(t, 1, summary.Stats.Categories.Created)
}

func TestCategoryParentCycle(t *testing.T) {
	env := newTestEnv(t)
	env.store.setCategories(
		record{"id": 1, "name": "A", "slug": "a", "parent": 2},
		record{"id": 2, "name": "B", "slug": "b", "parent": 1},
	)

	summary := env.run(t, Options{})
	require.Empty(t, summary.Failures)
	assert.Equal(t, 2, summary.Stats.Categories.Created)

	var a, b models.Category
	require.NoError(t, env.db.Where("slug = ?", "a").First(&a).Error)
	require.NoError(t, env.db.Where("slug = ?", "b").First(&b).Error)
	assert.Nil(t, b.ParentID)
	require.NotNil(t, a.ParentID)
	assert.Equal(t, b.ID, *a.ParentID)
}

func TestHiddenCategoryIsDraft(t *testing.T) {
	env := newTestEnv(t)
	env.store.setCategories(record{"id": 5, "name": "Internal", "slug": "internal", "display": "hidden"})

	env.run(t, Options{})

	var cat models.Category
	require.NoError(t, env.db.Where("slug = ?", "internal").First(&cat).Error)
	assert.Equal(t, models.StatusDraft, cat.Status)
	assert.False(t, cat.IsVisible)
}

func TestImportByIDs(t *testing.T) {
	env := newTestEnv(t)
	env.store.setProducts(simpleProduct())

	summary := env.run(t, Options{ProductIDs: []int64{10, 99, 10}, SkipCategories: true})

	assert.Equal(t, 2, summary.Processed)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, int64(99), summary.Failures[0].RemoteID)
	assert.Equal(t, 1, summary.Stats.Products.Created)
	assert.Zero(t, env.store.requestCount("products"))
}

func TestImportLimit(t *testing.T) {
	env := newTestEnv(t)
	var products []record
	for _, id := range []int{10, 11, 12} {
		products = append(products, record{"id": id, "name": "P", "type": "simple", "status": "publish", "price": "1"})
	}
	env.store.setProducts(products...)

	summary := env.run(t, Options{Limit: 2, SkipCategories: true})
	assert.Equal(t, 2, summary.Processed)
	assert.EqualValues(t, 2, env.count(t, &models.Product{}))
}

func TestProductWithoutIDIsSkipped(t *testing.T) {
	env := newTestEnv(t)
	env.store.setProducts(record{"id": 0, "name": "Ghost"}, simpleProduct())

	summary := env.run(t, Options{SkipCategories: true})

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Stats.Products.Skipped)
	assert.Equal(t, 1, summary.Stats.Products.Created)
	assert.Empty(t, summary.Failures)
	skipped := env.events.ofType(events.Skipped)
	require.Len(t, skipped, 1)
	assert.Equal(t, "missing_id", skipped[0].Message)
}

func TestRelatedProductsLinkImportedTargets(t *testing.T) {
	env := newTestEnv(t)
	shirt := simpleProduct()
	shirt["upsell_ids"] = []int{20, 404}
	shirt["cross_sell_ids"] = []int{10}
	env.store.setProducts(variableProduct(), shirt)
	env.store.setVariations(20, hoodieVariations()...)

	env.run(t, Options{SkipCategories: true})

	var links []models.RelatedProduct
	require.NoError(t, env.db.Find(&links).Error)
	require.Len(t, links, 1, "unknown and self references are dropped")
	assert.Equal(t, models.RelationUpsell, links[0].Type)
	assert.Equal(t, 1, links[0].Position)
}

type lockedLocker struct{}

func (lockedLocker) Acquire(context.Context, string, time.Duration) (runlock.Lease, error) {
	return nil, runlock.ErrLocked
}

// leaseRecorder grants the lock and counts renewals. Extend fails with
// ErrLockLost from call number lostAt on, when lostAt is set.
type leaseRecorder struct {
	extends  int
	lostAt   int
	ttls     []time.Duration
	released bool
}

func (l *leaseRecorder) Acquire(context.Context, string, time.Duration) (runlock.Lease, error) {
	return l, nil
}

func (l *leaseRecorder) Extend(_ context.Context, ttl time.Duration) error {
	l.extends++
	l.ttls = append(l.ttls, ttl)
	if l.lostAt > 0 && l.extends >= l.lostAt {
		return runlock.ErrLockLost
	}
	return nil
}

func (l *leaseRecorder) Release(context.Context) error {
	l.released = true
	return nil
}

func TestRunExtendsLockBetweenProducts(t *testing.T) {
	env := newTestEnv(t)
	lease := &leaseRecorder{}
	env.importer.WithLocker(lease)
	env.importer.settings.LockTTL = time.Nanosecond

	second := simpleProduct()
	second["id"] = 11
	second["sku"] = "LS-2"
	second["slug"] = "linen-shirt-2"
	env.store.setProducts(simpleProduct(), second)

	summary := env.run(t, Options{SkipCategories: true})

	assert.False(t, summary.Aborted)
	assert.Equal(t, 2, lease.extends)
	assert.Equal(t, []time.Duration{time.Nanosecond, time.Nanosecond}, lease.ttls)
	assert.True(t, lease.released)
}

func TestRunSkipsLockRenewalWhileFresh(t *testing.T) {
	env := newTestEnv(t)
	lease := &leaseRecorder{}
	env.importer.WithLocker(lease)
	env.store.setProducts(simpleProduct())

	env.run(t, Options{SkipCategories: true})

	assert.Zero(t, lease.extends)
	assert.True(t, lease.released)
}

func TestRunStopsWhenLockIsLost(t *testing.T) {
	env := newTestEnv(t)
	lease := &leaseRecorder{lostAt: 2}
	env.importer.WithLocker(lease)
	env.importer.settings.LockTTL = time.Nanosecond

	second := simpleProduct()
	second["id"] = 11
	second["sku"] = "LS-2"
	second["slug"] = "linen-shirt-2"
	env.store.setProducts(simpleProduct(), second)

	summary := env.run(t, Options{SkipCategories: true})

	assert.True(t, summary.Aborted)
	assert.Equal(t, 1, summary.Processed)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "run", summary.Failures[0].Entity)
	assert.Contains(t, summary.Failures[0].Message, runlock.ErrLockLost.Error())
	assert.EqualValues(t, 1, env.count(t, &models.Product{}))
	assert.True(t, lease.released)

	var run models.ImportRun
	require.NoError(t, env.db.First(&run, "id = ?", summary.RunID).Error)
	assert.Equal(t, models.ImportRunStatusAborted, run.Status)
}

func TestRunFailsWhenLocked(t *testing.T) {
	env := newTestEnv(t)
	env.importer.WithLocker(lockedLocker{})

	_, err := env.importer.Run(context.Background(), Options{})
	assert.ErrorIs(t, err, ErrRunInProgress)
	assert.EqualValues(t, 0, env.count(t, &models.ImportRun{}))
}
