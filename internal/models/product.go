package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ProductType string

const (
	ProductTypeStandard     ProductType = "standard"
	ProductTypeConfigurable ProductType = "configurable"
)

type Product struct {
	ID               string            `json:"id" gorm:"primaryKey;size:36"`
	Slug             string            `json:"slug" gorm:"size:191;uniqueIndex"`
	Type             ProductType       `json:"type" gorm:"size:32;not null"`
	BrandID          *string           `json:"brand_id" gorm:"size:36;index"`
	DefaultVariantID *string           `json:"default_variant_id" gorm:"size:36"`
	Name             string            `json:"name" gorm:"not null"`
	SKU              *string           `json:"sku" gorm:"size:191;index"`
	Excerpt          *string           `json:"excerpt"`
	Description      *string           `json:"description"`
	Specifications   datatypes.JSONMap `json:"specifications"`
	Status           PublishStatus     `json:"status" gorm:"size:16;not null"`
	PublishedAt      *time.Time        `json:"published_at"`
	Data             datatypes.JSONMap `json:"data"`
	Origin           `json:"origin"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"-" gorm:"index"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	newID(&p.ID)
	return nil
}

func (p *Product) SoftDeleted() *gorm.DeletedAt {
	return &p.DeletedAt
}

type InventoryPolicy string

const (
	InventoryPolicyDeny  InventoryPolicy = "deny"
	InventoryPolicyAllow InventoryPolicy = "allow"
)

type ProductVariant struct {
	ID                string              `json:"id" gorm:"primaryKey;size:36"`
	ProductID         string              `json:"product_id" gorm:"size:36;not null;index"`
	SKU               string              `json:"sku" gorm:"size:191;uniqueIndex"`
	Barcode           *string             `json:"barcode"`
	Status            PublishStatus       `json:"status" gorm:"size:16;not null"`
	Price             decimal.Decimal     `json:"price" gorm:"type:decimal(12,2);not null"`
	CompareAtPrice    decimal.NullDecimal `json:"compare_at_price" gorm:"type:decimal(12,2)"`
	Currency          string              `json:"currency" gorm:"size:3;not null"`
	InventoryPolicy   InventoryPolicy     `json:"inventory_policy" gorm:"size:16;not null"`
	InventoryQuantity int                 `json:"inventory_quantity"`
	TrackInventory    bool                `json:"track_inventory"`
	Weight            decimal.NullDecimal `json:"weight" gorm:"type:decimal(10,3)"`
	Length            decimal.NullDecimal `json:"length" gorm:"type:decimal(10,3)"`
	Width             decimal.NullDecimal `json:"width" gorm:"type:decimal(10,3)"`
	Height            decimal.NullDecimal `json:"height" gorm:"type:decimal(10,3)"`
	IsDefault         bool                `json:"is_default"`
	RequiresShipping  bool                `json:"requires_shipping"`
	PublishedAt       *time.Time          `json:"published_at"`
	Data              datatypes.JSONMap   `json:"data"`
	Origin            `json:"origin"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `json:"-" gorm:"index"`
}

func (v *ProductVariant) BeforeCreate(tx *gorm.DB) error {
	newID(&v.ID)
	return nil
}

func (v *ProductVariant) SoftDeleted() *gorm.DeletedAt {
	return &v.DeletedAt
}

type ProductVariantOptionValue struct {
	ProductVariantID     string `json:"product_variant_id" gorm:"primaryKey;size:36"`
	ProductOptionValueID string `json:"product_option_value_id" gorm:"primaryKey;size:36"`
}

func (ProductVariantOptionValue) TableName() string {
	return "product_variant_option_value"
}

type RelationType string

const (
	RelationUpsell    RelationType = "upsell"
	RelationCrossSell RelationType = "cross_sell"
)

// RelatedProduct links two local products. Only links whose target was already
// imported are stored.
type RelatedProduct struct {
	ProductID        string       `json:"product_id" gorm:"primaryKey;size:36"`
	RelatedProductID string       `json:"related_product_id" gorm:"primaryKey;size:36"`
	Type             RelationType `json:"type" gorm:"primaryKey;size:16"`
	Position         int          `json:"position"`
}
