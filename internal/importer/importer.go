package importer

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"catalog/internal/config"
	"catalog/internal/connectors/woocommerce"
	"catalog/internal/events"
	"catalog/internal/logger"
	"catalog/internal/media"
	"catalog/internal/runlock"

	"gorm.io/gorm"
)

var (
	ErrRunInProgress = errors.New("another import run is in progress")
	// ErrInvalidOptionReference is returned when a variation names an
	// attribute its product does not declare.
	ErrInvalidOptionReference = errors.New("variation references an unknown attribute")
)

const (
	defaultTxAttempts = 3
	defaultLockTTL    = 2 * time.Hour
	lockKey           = "woocommerce-import"
)

// Source is the remote catalog the importer reads from.
type Source interface {
	ListCategories(q woocommerce.Query) *woocommerce.Pager[woocommerce.Category]
	ListProducts(q woocommerce.Query) *woocommerce.Pager[woocommerce.Product]
	ListVariations(productID int64, q woocommerce.Query) *woocommerce.Pager[woocommerce.Variation]
	GetProduct(ctx context.Context, id int64) (*woocommerce.Product, error)
	DefaultPerPage() int
}

// ImageDownloader copies a remote image into local media storage.
type ImageDownloader interface {
	Download(ctx context.Context, src string, target media.Target) (*media.Stored, error)
}

// Settings are the store-wide knobs that do not change between runs.
type Settings struct {
	Currency       string
	DownloadImages bool
	Statuses       []string
	PerPage        int
	TxAttempts     int
	LockTTL        time.Duration
}

// SettingsFromConfig maps the WooCommerce section of the app config.
func SettingsFromConfig(cfg config.WooCommerceConfig) Settings {
	return Settings{
		Currency:       cfg.DefaultCurrency,
		DownloadImages: cfg.DownloadImages,
		Statuses:       cfg.Statuses,
		PerPage:        cfg.PerPage,
	}
}

// Options select what one run imports.
type Options struct {
	// ProductIDs bypasses the filtered scan and imports exactly these products.
	ProductIDs     []int64    `json:"product_ids,omitempty"`
	Statuses       []string   `json:"statuses,omitempty"`
	Since          *time.Time `json:"since,omitempty"`
	PerPage        int        `json:"per_page,omitempty"`
	Limit          int        `json:"limit,omitempty"`
	SkipCategories bool       `json:"skip_categories,omitempty"`
	DryRun         bool       `json:"dry_run,omitempty"`
	// Trigger names what started the run, e.g. "cli", "api" or "worker".
	Trigger string `json:"trigger,omitempty"`
}

func (o Options) normalized(s Settings) Options {
	seen := make(map[int64]bool, len(o.ProductIDs))
	ids := make([]int64, 0, len(o.ProductIDs))
	for _, id := range o.ProductIDs {
		if id > 0 && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	o.ProductIDs = ids

	var statuses []string
	for _, st := range o.Statuses {
		if st = strings.TrimSpace(st); st != "" {
			statuses = append(statuses, st)
		}
	}
	if len(statuses) == 0 {
		statuses = append(statuses, s.Statuses...)
	}
	o.Statuses = statuses

	if o.PerPage <= 0 {
		o.PerPage = s.PerPage
	}
	if o.PerPage > 0 {
		o.PerPage = woocommerce.ClampPerPage(o.PerPage)
	}
	if o.Limit < 0 {
		o.Limit = 0
	}
	return o
}

func (o Options) toMap() map[string]interface{} {
	m := map[string]interface{}{
		"per_page":        o.PerPage,
		"limit":           o.Limit,
		"skip_categories": o.SkipCategories,
		"dry_run":         o.DryRun,
	}
	if len(o.ProductIDs) > 0 {
		ids := append([]int64(nil), o.ProductIDs...)
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		m["product_ids"] = ids
	}
	if len(o.Statuses) > 0 {
		m["statuses"] = o.Statuses
	}
	if o.Since != nil {
		m["since"] = o.Since.UTC().Format(time.RFC3339)
	}
	return m
}

// Importer mirrors a WooCommerce catalog into the local store. It is safe to
// share; every Run gets its own session state.
type Importer struct {
	db         *gorm.DB
	source     Source
	settings   Settings
	downloader ImageDownloader
	publisher  events.Publisher
	locker     runlock.Locker
	logger     *logger.Logger
}

func New(db *gorm.DB, source Source, settings Settings, logger *logger.Logger) *Importer {
	if settings.TxAttempts <= 0 {
		settings.TxAttempts = defaultTxAttempts
	}
	if settings.LockTTL <= 0 {
		settings.LockTTL = defaultLockTTL
	}
	if settings.Currency == "" {
		settings.Currency = "USD"
	}
	settings.Currency = strings.ToUpper(settings.Currency)
	if len(settings.Statuses) == 0 {
		settings.Statuses = []string{"publish", "draft"}
	}

	return &Importer{
		db:        db,
		source:    source,
		settings:  settings,
		publisher: events.Nop,
		locker:    runlock.NopLocker{},
		logger:    logger,
	}
}

// WithDownloader enables copying product images into local storage.
func (imp *Importer) WithDownloader(d ImageDownloader) *Importer {
	imp.downloader = d
	return imp
}

func (imp *Importer) WithPublisher(p events.Publisher) *Importer {
	if p == nil {
		p = events.Nop
	}
	imp.publisher = p
	return imp
}

func (imp *Importer) WithLocker(l runlock.Locker) *Importer {
	if l == nil {
		l = runlock.NopLocker{}
	}
	imp.locker = l
	return imp
}
