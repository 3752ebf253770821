package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Attribute is a catalog-wide descriptive attribute (material, size chart...)
// as opposed to a product option that drives variants.
type Attribute struct {
	ID           string            `json:"id" gorm:"primaryKey;size:36"`
	Code         string            `json:"code" gorm:"size:191;uniqueIndex"`
	Name         string            `json:"name" gorm:"not null"`
	Type         string            `json:"type" gorm:"size:16"`
	IsFilterable bool              `json:"is_filterable"`
	Data         datatypes.JSONMap `json:"data"`
	Origin       `json:"origin"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}

func (a *Attribute) BeforeCreate(tx *gorm.DB) error {
	newID(&a.ID)
	return nil
}

func (a *Attribute) SoftDeleted() *gorm.DeletedAt {
	return &a.DeletedAt
}

type AttributeValue struct {
	ID           string              `json:"id" gorm:"primaryKey;size:36"`
	AttributeID  string              `json:"attribute_id" gorm:"size:36;not null;uniqueIndex:idx_attribute_values_attribute_value"`
	Value        string              `json:"value" gorm:"size:191;not null;uniqueIndex:idx_attribute_values_attribute_value"`
	DisplayValue string              `json:"display_value"`
	NumericValue decimal.NullDecimal `json:"numeric_value" gorm:"type:decimal(16,4)"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
	DeletedAt    gorm.DeletedAt      `json:"-" gorm:"index"`
}

func (v *AttributeValue) BeforeCreate(tx *gorm.DB) error {
	newID(&v.ID)
	return nil
}

type ProductAttributeValue struct {
	ID               string              `json:"id" gorm:"primaryKey;size:36"`
	ProductID        string              `json:"product_id" gorm:"size:36;not null;uniqueIndex:idx_product_attribute_values_link"`
	AttributeID      string              `json:"attribute_id" gorm:"size:36;not null;uniqueIndex:idx_product_attribute_values_link"`
	AttributeValueID string              `json:"attribute_value_id" gorm:"size:36;not null;uniqueIndex:idx_product_attribute_values_link"`
	ValueText        string              `json:"value_text"`
	ValueNumber      decimal.NullDecimal `json:"value_number" gorm:"type:decimal(16,4)"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

func (v *ProductAttributeValue) BeforeCreate(tx *gorm.DB) error {
	newID(&v.ID)
	return nil
}
