package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"catalog/internal/config"
	"catalog/internal/database"
	"catalog/internal/importer"
	"catalog/internal/logger"
	"catalog/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRunner struct {
	opts    []importer.Options
	summary *importer.Summary
	err     error
}

func (f *fakeRunner) Run(_ context.Context, opts importer.Options) (*importer.Summary, error) {
	f.opts = append(f.opts, opts)
	return f.summary, f.err
}

func newTestServer(t *testing.T, runner *fakeRunner) (*Server, *gorm.DB) {
	t.Helper()
	db, err := database.Open("sqlite://file:"+uuid.New().String()+"?mode=memory&cache=shared", database.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{
		APIHost:            "127.0.0.1",
		APIPort:            "0",
		AppVersion:         "test",
		CORSAllowedOrigins: []string{"*"},
	}
	return New(cfg, logger.Discard(), db.DB, runner), db.DB
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, &fakeRunner{})

	rec := do(t, s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestCreateImportRunsWithAPITrigger(t *testing.T) {
	runner := &fakeRunner{summary: &importer.Summary{RunID: "run-1", Processed: 2}}
	s, _ := newTestServer(t, runner)

	rec := do(t, s, http.MethodPost, "/api/v1/imports", `{"product_ids":[12,15],"dry_run":true,"trigger":"cli"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, runner.opts, 1)
	assert.Equal(t, []int64{12, 15}, runner.opts[0].ProductIDs)
	assert.True(t, runner.opts[0].DryRun)
	assert.Equal(t, "api", runner.opts[0].Trigger)

	data := decode(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "run-1", data["run_id"])
	assert.EqualValues(t, 2, data["processed"])
}

func TestCreateImportWithoutBody(t *testing.T) {
	runner := &fakeRunner{summary: &importer.Summary{RunID: "run-2"}}
	s, _ := newTestServer(t, runner)

	rec := do(t, s, http.MethodPost, "/api/v1/imports", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, runner.opts, 1)
	assert.Empty(t, runner.opts[0].ProductIDs)
}

func TestCreateImportConflictWhileLocked(t *testing.T) {
	s, _ := newTestServer(t, &fakeRunner{err: importer.ErrRunInProgress})

	rec := do(t, s, http.MethodPost, "/api/v1/imports", `{}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateImportRejectsBadBody(t *testing.T) {
	runner := &fakeRunner{}
	s, _ := newTestServer(t, runner)

	rec := do(t, s, http.MethodPost, "/api/v1/imports", `{"product_ids":"twelve"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/imports", `{"limit":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, runner.opts)
}

func TestListAndGetImportRuns(t *testing.T) {
	s, db := newTestServer(t, &fakeRunner{})

	older := models.ImportRun{Source: models.SourceWooCommerce, Status: models.ImportRunStatusCompleted, Trigger: "cli", CreatedAt: time.Now().Add(-time.Hour)}
	newer := models.ImportRun{Source: models.SourceWooCommerce, Status: models.ImportRunStatusFailed, Trigger: "api", CreatedAt: time.Now()}
	require.NoError(t, db.Create(&older).Error)
	require.NoError(t, db.Create(&newer).Error)

	rec := do(t, s, http.MethodGet, "/api/v1/imports?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	runs := body["data"].([]interface{})
	require.Len(t, runs, 1)
	assert.Equal(t, newer.ID, runs[0].(map[string]interface{})["id"])
	assert.EqualValues(t, 2, body["pagination"].(map[string]interface{})["total"])

	rec = do(t, s, http.MethodGet, "/api/v1/imports?status=COMPLETED", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["data"].([]interface{}), 1)

	rec = do(t, s, http.MethodGet, "/api/v1/imports/"+older.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cli", decode(t, rec)["data"].(map[string]interface{})["trigger"])

	rec = do(t, s, http.MethodGet, "/api/v1/imports/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProductsAreReadable(t *testing.T) {
	s, db := newTestServer(t, &fakeRunner{})

	product := models.Product{
		Slug:   "linen-shirt",
		Type:   models.ProductTypeStandard,
		Name:   "Linen Shirt",
		Status: models.StatusPublished,
		Origin: models.NewOrigin(models.SourceWooCommerce, 10),
	}
	require.NoError(t, db.Create(&product).Error)
	require.NoError(t, db.Create(&models.ProductVariant{
		ProductID:       product.ID,
		SKU:             "LS-1",
		Status:          models.StatusPublished,
		Price:           decimal.RequireFromString("19.99"),
		Currency:        "EUR",
		InventoryPolicy: models.InventoryPolicyDeny,
	}).Error)

	rec := do(t, s, http.MethodGet, "/api/v1/products?search=LINEN", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["data"].([]interface{}), 1)

	rec = do(t, s, http.MethodGet, "/api/v1/products?remote_id=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["data"].([]interface{}), 1)

	rec = do(t, s, http.MethodGet, "/api/v1/products?remote_id=ten", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/products/"+product.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "linen-shirt", data["slug"])
	variants := data["variants"].([]interface{})
	require.Len(t, variants, 1)
	assert.Equal(t, "LS-1", variants[0].(map[string]interface{})["sku"])

	rec = do(t, s, http.MethodGet, "/api/v1/products/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t, &fakeRunner{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/imports", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
