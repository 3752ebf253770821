package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PublishStatus string

const (
	StatusDraft     PublishStatus = "draft"
	StatusPublished PublishStatus = "published"
	StatusArchived  PublishStatus = "archived"
)

type Brand struct {
	ID        string            `json:"id" gorm:"primaryKey;size:36"`
	Name      string            `json:"name" gorm:"not null"`
	Slug      string            `json:"slug" gorm:"size:191;uniqueIndex"`
	Data      datatypes.JSONMap `json:"data"`
	Origin    `json:"origin"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (b *Brand) BeforeCreate(tx *gorm.DB) error {
	newID(&b.ID)
	return nil
}

type Category struct {
	ID          string            `json:"id" gorm:"primaryKey;size:36"`
	ParentID    *string           `json:"parent_id" gorm:"size:36;index"`
	Type        string            `json:"type" gorm:"size:32;not null"`
	Name        string            `json:"name" gorm:"not null"`
	Slug        string            `json:"slug" gorm:"size:191;uniqueIndex"`
	Description *string           `json:"description"`
	ImageURL    *string           `json:"image_url"`
	Status      PublishStatus     `json:"status" gorm:"size:16;not null"`
	Position    int               `json:"position"`
	IsVisible   bool              `json:"is_visible"`
	Data        datatypes.JSONMap `json:"data"`
	Origin      `json:"origin"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

const CategoryTypeCatalog = "catalog"

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	newID(&c.ID)
	return nil
}

func (c *Category) SoftDeleted() *gorm.DeletedAt {
	return &c.DeletedAt
}

// CategoryProduct is the pivot between products and categories. It is replaced
// as a whole on every import of the product.
type CategoryProduct struct {
	CategoryID string    `json:"category_id" gorm:"primaryKey;size:36"`
	ProductID  string    `json:"product_id" gorm:"primaryKey;size:36;index"`
	IsPrimary  bool      `json:"is_primary"`
	Position   int       `json:"position"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (CategoryProduct) TableName() string {
	return "category_product"
}
