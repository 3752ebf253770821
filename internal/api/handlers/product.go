package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"catalog/internal/logger"
	"catalog/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ProductHandler serves the imported catalog read-only.
type ProductHandler struct {
	db     *gorm.DB
	logger *logger.Logger
}

func NewProductHandler(db *gorm.DB, logger *logger.Logger) *ProductHandler {
	return &ProductHandler{
		db:     db,
		logger: logger,
	}
}

type productDetail struct {
	models.Product
	Variants []models.ProductVariant `json:"variants"`
	Media    []models.ProductMedia   `json:"media"`
}

func (h *ProductHandler) List(c *gin.Context) {
	p := pageFromQuery(c)
	query := h.db.Model(&models.Product{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if search := strings.ToLower(strings.TrimSpace(c.Query("search"))); search != "" {
		like := "%" + search + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(sku) LIKE ?", like, like)
	}
	if raw := c.Query("remote_id"); raw != "" {
		remoteID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "remote_id must be an integer"})
			return
		}
		query = query.Where("source = ? AND remote_id = ?", models.SourceWooCommerce, remoteID)
	}

	if err := query.Count(&p.Total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
		return
	}

	var products []models.Product
	if err := query.Order("name").Offset(p.offset()).Limit(p.Limit).Find(&products).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": products, "pagination": p})
}

// Get returns a product with its live variants and media.
func (h *ProductHandler) Get(c *gin.Context) {
	var detail productDetail
	if err := h.db.First(&detail.Product, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		return
	}

	if err := h.db.Where("product_id = ?", detail.ID).Order("sku").Find(&detail.Variants).Error; err != nil {
		h.logger.Error("Failed to load variants for product %s: %v", detail.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		return
	}
	if err := h.db.Where("product_id = ?", detail.ID).Order("position").Find(&detail.Media).Error; err != nil {
		h.logger.Error("Failed to load media for product %s: %v", detail.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": detail})
}
