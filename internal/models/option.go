package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ProductOption struct {
	ID         string            `json:"id" gorm:"primaryKey;size:36"`
	ProductID  string            `json:"product_id" gorm:"size:36;not null;uniqueIndex:idx_product_options_product_code"`
	Code       string            `json:"code" gorm:"size:191;not null;uniqueIndex:idx_product_options_product_code"`
	Name       string            `json:"name" gorm:"not null"`
	InputType  string            `json:"input_type" gorm:"size:32"`
	IsRequired bool              `json:"is_required"`
	Position   int               `json:"position"`
	Data       datatypes.JSONMap `json:"data"`
	Origin     `json:"origin"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`
}

func (o *ProductOption) BeforeCreate(tx *gorm.DB) error {
	newID(&o.ID)
	return nil
}

func (o *ProductOption) SoftDeleted() *gorm.DeletedAt {
	return &o.DeletedAt
}

type ProductOptionValue struct {
	ID              string `json:"id" gorm:"primaryKey;size:36"`
	ProductOptionID string `json:"product_option_id" gorm:"size:36;not null;uniqueIndex:idx_product_option_values_option_value"`
	// Value is the slug of the display value, unique within the option.
	Value        string `json:"value" gorm:"size:191;not null;uniqueIndex:idx_product_option_values_option_value"`
	DisplayValue string `json:"display_value" gorm:"not null"`
	Position     int    `json:"position"`
	// RemoteValue is the remote option text that produced this value.
	RemoteValue *string           `json:"remote_value"`
	Data        datatypes.JSONMap `json:"data"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	DeletedAt   gorm.DeletedAt    `json:"-" gorm:"index"`
}

func (v *ProductOptionValue) BeforeCreate(tx *gorm.DB) error {
	newID(&v.ID)
	return nil
}

func (v *ProductOptionValue) SoftDeleted() *gorm.DeletedAt {
	return &v.DeletedAt
}

type ProductMedia struct {
	ID               string  `json:"id" gorm:"primaryKey;size:36"`
	ProductID        string  `json:"product_id" gorm:"size:36;not null;index"`
	ProductVariantID *string `json:"product_variant_id" gorm:"size:36;index"`
	Type             string  `json:"type" gorm:"size:16;not null"`
	// Disk is "remote" when Path is the remote URL, otherwise the storage disk.
	Disk      string            `json:"disk" gorm:"size:32;not null"`
	Path      string            `json:"path" gorm:"not null"`
	URL       *string           `json:"url"`
	IsPrimary bool              `json:"is_primary"`
	Position  int               `json:"position"`
	AltText   *string           `json:"alt_text"`
	Caption   *string           `json:"caption"`
	RemoteURL *string           `json:"remote_url" gorm:"index"`
	Data      datatypes.JSONMap `json:"data"`
	Origin    `json:"origin"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

const (
	MediaTypeImage = "image"
	DiskRemote     = "remote"
)

func (m *ProductMedia) BeforeCreate(tx *gorm.DB) error {
	newID(&m.ID)
	return nil
}

func (m *ProductMedia) SoftDeleted() *gorm.DeletedAt {
	return &m.DeletedAt
}
