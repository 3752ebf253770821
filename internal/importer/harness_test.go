package importer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"catalog/internal/connectors/woocommerce"
	"catalog/internal/database"
	"catalog/internal/events"
	"catalog/internal/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type record = map[string]interface{}

// fakeStore serves a tiny WooCommerce REST API from memory.
type fakeStore struct {
	mu         sync.Mutex
	categories []record
	products   []record
	variations map[int64][]record
	// failPages makes the given page of an endpoint answer 400.
	failPages map[string]int
	requests  map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		variations: map[int64][]record{},
		failPages:  map[string]int{},
		requests:   map[string]int{},
	}
}

func (f *fakeStore) setProducts(products ...record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products = products
}

func (f *fakeStore) setVariations(productID int64, variations ...record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.variations[productID] = variations
}

func (f *fakeStore) setCategories(categories ...record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.categories = categories
}

func (f *fakeStore) requestCount(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[endpoint]
}

func (f *fakeStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	endpoint := strings.Trim(strings.TrimPrefix(r.URL.Path, "/wp-json/wc/v3"), "/")
	f.requests[endpoint]++
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	if failing, ok := f.failPages[endpoint]; ok && failing == page {
		http.Error(w, `{"code":"rest_invalid_param"}`, http.StatusBadRequest)
		return
	}

	parts := strings.Split(endpoint, "/")
	switch {
	case endpoint == "products/categories":
		f.writePage(w, r, f.categories)
	case endpoint == "products":
		f.writePage(w, r, f.products)
	case len(parts) == 3 && parts[2] == "variations":
		id, _ := strconv.ParseInt(parts[1], 10, 64)
		f.writePage(w, r, f.variations[id])
	case len(parts) == 2:
		id, _ := strconv.ParseInt(parts[1], 10, 64)
		for _, p := range f.products {
			if recordID(p) == id {
				writeJSON(w, p)
				return
			}
		}
		http.Error(w, `{"code":"woocommerce_rest_product_invalid_id"}`, http.StatusNotFound)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeStore) writePage(w http.ResponseWriter, r *http.Request, all []record) {
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 {
		perPage = 10
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	totalPages := (len(all) + perPage - 1) / perPage
	start := (page - 1) * perPage
	items := []record{}
	if start < len(all) {
		end := start + perPage
		if end > len(all) {
			end = len(all)
		}
		items = all[start:end]
	}
	w.Header().Set("X-WP-TotalPages", strconv.Itoa(totalPages))
	writeJSON(w, items)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func recordID(r record) int64 {
	switch id := r["id"].(type) {
	case int:
		return int64(id)
	case int64:
		return id
	case float64:
		return int64(id)
	}
	return 0
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "sqlite://file:" + uuid.New().String() + "?mode=memory&cache=shared"
	db, err := database.Open(dsn, database.Options{})
	require.NoError(t, err)

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db.DB
}

type testEnv struct {
	db       *gorm.DB
	store    *fakeStore
	importer *Importer
	events   *eventLog
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newFakeStore()
	server := httptest.NewServer(store)
	t.Cleanup(server.Close)

	retry := woocommerce.DefaultRetryConfig()
	retry.MaxRetries = 0
	client, err := woocommerce.NewClient(woocommerce.Options{
		BaseURL:   server.URL,
		PerPage:   2,
		Retry:     retry,
		UserAgent: "Test WooCommerceImporter",
	}, logger.Discard())
	require.NoError(t, err)

	db := newTestDB(t)
	log := &eventLog{}
	imp := New(db, client, Settings{Currency: "eur"}, logger.Discard()).WithPublisher(log)
	return &testEnv{db: db, store: store, importer: imp, events: log}
}

func (e *testEnv) run(t *testing.T, opts Options) *Summary {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	summary, err := e.importer.Run(ctx, opts)
	require.NoError(t, err)
	return summary
}

// eventLog records published events.
type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) Publish(_ context.Context, e events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) ofType(t events.Type) []events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []events.Event
	for _, e := range l.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (e *testEnv) count(t *testing.T, model interface{}, query ...interface{}) int64 {
	t.Helper()
	q := e.db.Model(model)
	if len(query) > 0 {
		q = q.Where(query[0], query[1:]...)
	}
	var n int64
	require.NoError(t, q.Count(&n).Error)
	return n
}

func clothingCategories() []record {
	return []record{
		{"id": 1, "name": "Clothing", "slug": "clothing", "parent": 0, "display": "default", "menu_order": 1},
		{"id": 2, "name": "Shirts &amp; Tops", "slug": "shirts", "parent": 1, "display": "default", "menu_order": 2},
	}
}

func simpleProduct() record {
	return record{
		"id":                10,
		"name":              "Linen Shirt",
		"slug":              "linen-shirt",
		"type":              "simple",
		"status":            "publish",
		"sku":               "LS-1",
		"short_description": "<p>Breathable &amp; light</p>",
		"description":       "<p>Long text</p>",
		"price":             "19.99",
		"regular_price":     "25.00",
		"sale_price":        "19.99",
		"manage_stock":      true,
		"stock_quantity":    7,
		"backorders":        "no",
		"weight":            "0.3",
		"dimensions":        record{"length": "30", "width": "20", "height": ""},
		"date_created_gmt":  "2024-03-01T10:00:00",
		"categories":        []record{{"id": 2, "name": "Shirts", "slug": "shirts"}},
		"images": []record{
			{"id": 501, "src": "https://shop.example.com/linen-front.jpg", "name": "Front", "alt": ""},
			{"id": 502, "src": "https://shop.example.com/linen-back.jpg", "name": "Back", "alt": "Back view"},
		},
		"attributes": []record{
			{"id": 0, "name": "Material", "slug": "material", "variation": false, "visible": true, "options": []string{"Linen"}},
			{"id": 7, "name": "Weight", "slug": "pa_weight", "variation": false, "visible": true, "options": []string{"300 g"}},
		},
		"meta_data": []record{{"id": 1, "key": "_gtin", "value": "4006381333931"}},
	}
}

func variableProduct() record {
	return record{
		"id":     20,
		"name":   "Hoodie",
		"slug":   "hoodie",
		"type":   "variable",
		"status": "publish",
		"sku":    "HD",
		"price":  "40",
		"images": []record{
			{"id": 601, "src": "https://shop.example.com/hoodie.jpg", "name": "Hoodie"},
		},
		"attributes": []record{
			{"id": 0, "name": "Color", "slug": "color", "variation": true, "options": []string{"Red", "Blue"}},
			{"id": 3, "name": "Size", "slug": "pa_size", "variation": true, "options": []string{"S", "M"}},
		},
		"default_attributes": []record{
			{"id": 0, "name": "Color", "option": "blue"},
			{"id": 3, "name": "Size", "option": "M"},
		},
		"variations": []int{201, 202, 203},
	}
}

func hoodieVariations() []record {
	return []record{
		{
			"id": 201, "sku": "HD-RED-S", "status": "publish", "price": "40", "regular_price": "40",
			"attributes": []record{{"id": 0, "name": "Color", "option": "Red"}, {"id": 3, "name": "Size", "option": "S"}},
		},
		{
			"id": 202, "sku": "HD-BLUE-M", "status": "publish", "price": "35", "regular_price": "45", "sale_price": "35",
			"image":      record{"id": 602, "src": "https://shop.example.com/hoodie-blue.jpg", "name": "Blue"},
			"attributes": []record{{"id": 0, "name": "Color", "option": "Blue"}, {"id": 3, "name": "Size", "option": "M"}},
		},
		{
			"id": 203, "sku": "", "status": "private", "price": "",
			"attributes": []record{{"id": 0, "name": "Color", "option": "Blue"}, {"id": 3, "name": "Size", "option": "S"}},
		},
	}
}
