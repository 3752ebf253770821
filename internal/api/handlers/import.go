package handlers

import (
	"context"
	"errors"
	"net/http"

	"catalog/internal/importer"
	"catalog/internal/logger"
	"catalog/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Runner starts one import session.
type Runner interface {
	Run(ctx context.Context, opts importer.Options) (*importer.Summary, error)
}

type ImportHandler struct {
	db     *gorm.DB
	runner Runner
	logger *logger.Logger
}

func NewImportHandler(db *gorm.DB, runner Runner, logger *logger.Logger) *ImportHandler {
	return &ImportHandler{
		db:     db,
		runner: runner,
		logger: logger,
	}
}

// Create runs an import inside the request and answers with its summary.
func (h *ImportHandler) Create(c *gin.Context) {
	var opts importer.Options
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&opts); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if opts.PerPage < 0 || opts.Limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "per_page and limit must not be negative"})
		return
	}
	opts.Trigger = "api"

	summary, err := h.runner.Run(c.Request.Context(), opts)
	if errors.Is(err, importer.ErrRunInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("Import run failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Import failed", "data": summary})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

func (h *ImportHandler) List(c *gin.Context) {
	p := pageFromQuery(c)
	query := h.db.Model(&models.ImportRun{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&p.Total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch import runs"})
		return
	}

	var runs []models.ImportRun
	if err := query.Order("created_at DESC").Offset(p.offset()).Limit(p.Limit).Find(&runs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch import runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": runs, "pagination": p})
}

func (h *ImportHandler) Get(c *gin.Context) {
	var run models.ImportRun
	if err := h.db.First(&run, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Import run not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch import run"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": run})
}
