package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"catalog/internal/connectors/woocommerce"
	"catalog/internal/database"
	"catalog/internal/events"
	"catalog/internal/logger"
	"catalog/internal/models"
	"catalog/internal/runlock"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// session is the state of a single run. Nothing in it outlives Run.
type session struct {
	imp     *Importer
	opts    Options
	db      *gorm.DB
	runID   string
	summary *Summary
	log     *logger.Logger

	lease     runlock.Lease
	renewedAt time.Time

	// categories maps remote category ids to local rows, hydrated from the
	// store and extended as categories are imported.
	categories map[int64]*models.Category
	// remoteCategories holds the fetched category tree, when synced.
	remoteCategories map[int64]woocommerce.Category
	syncedCategories map[int64]bool
}

// Run executes one import. Per-record failures are collected in the summary;
// the returned error is reserved for failures that stop the whole run. A
// product page that cannot be fetched stops the scan and marks the summary
// as aborted without returning an error.
func (imp *Importer) Run(ctx context.Context, opts Options) (*Summary, error) {
	opts = opts.normalized(imp.settings)

	lease, err := imp.locker.Acquire(ctx, lockKey, imp.settings.LockTTL)
	if err != nil {
		if errors.Is(err, runlock.ErrLocked) {
			return nil, ErrRunInProgress
		}
		return nil, err
	}
	lockedAt := time.Now()
	defer func() {
		if err := lease.Release(context.Background()); err != nil {
			imp.logger.Warn("Failed to release import lock: %v", err)
		}
	}()

	startedAt := time.Now().UTC()
	run := &models.ImportRun{
		Source:    models.SourceWooCommerce,
		Status:    models.ImportRunStatusRunning,
		Trigger:   opts.Trigger,
		DryRun:    opts.DryRun,
		Options:   opts.toMap(),
		StartedAt: &startedAt,
	}
	if err := imp.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("failed to record import run: %w", err)
	}

	s := &session{
		imp:              imp,
		opts:             opts,
		db:               imp.db,
		runID:            run.ID,
		summary:          &Summary{RunID: run.ID, DryRun: opts.DryRun, StartedAt: startedAt, Failures: []Failure{}},
		log:              imp.logger.WithFields(logger.Fields{"run_id": run.ID}),
		categories:       make(map[int64]*models.Category),
		remoteCategories: make(map[int64]woocommerce.Category),
		syncedCategories: make(map[int64]bool),
		lease:            lease,
		renewedAt:        lockedAt,
	}

	s.log.Info("Starting WooCommerce import (dry run: %t)", opts.DryRun)
	s.emit(ctx, events.Event{Type: events.RunStarted})

	runErr := s.execute(ctx)
	s.summary.FinishedAt = time.Now().UTC()

	s.finish(run, runErr)
	s.emit(ctx, events.Event{
		Type:    events.RunFinished,
		Message: string(run.Status),
		Counts: map[string]int{
			"processed": s.summary.Processed,
			"failures":  len(s.summary.Failures),
		},
	})

	if runErr != nil {
		s.log.Error("Import failed: %v", runErr)
		return s.summary, runErr
	}
	s.log.Info("Import finished: %d processed, %d failure(s) in %s",
		s.summary.Processed, len(s.summary.Failures), s.summary.Duration().Round(time.Millisecond))
	return s.summary, nil
}

// execute runs the import body. In dry-run mode everything happens inside one
// outer transaction that is rolled back whatever the outcome.
func (s *session) execute(ctx context.Context) error {
	if s.opts.DryRun {
		outer := s.imp.db.WithContext(ctx).Begin()
		if outer.Error != nil {
			return fmt.Errorf("failed to begin dry-run transaction: %w", outer.Error)
		}
		defer func() {
			if err := outer.Rollback().Error; err != nil && !errors.Is(err, gorm.ErrInvalidTransaction) {
				s.log.Warn("Dry-run rollback failed: %v", err)
			}
		}()
		s.db = outer
	}

	if err := s.hydrateCategories(ctx); err != nil {
		return err
	}

	if !s.opts.SkipCategories {
		s.syncCategories(ctx)
	}

	if len(s.opts.ProductIDs) > 0 {
		return s.importByIDs(ctx)
	}
	return s.importScan(ctx)
}

func (s *session) importByIDs(ctx context.Context) error {
	for _, id := range s.opts.ProductIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !s.keepLock(ctx) {
			return nil
		}

		product, err := s.imp.source.GetProduct(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.summary.Processed++
			s.recordFailure(ctx, Failure{Entity: string(KindProduct), RemoteID: id, Message: err.Error()})
			s.log.WithFields(logger.Fields{"remote_id": id}).Error("Failed to fetch product: %v", err)
			continue
		}
		s.importProduct(ctx, *product)
	}
	return nil
}

func (s *session) importScan(ctx context.Context) error {
	pager := s.imp.source.ListProducts(woocommerce.Query{
		PerPage:       s.opts.PerPage,
		Statuses:      s.opts.Statuses,
		ModifiedAfter: s.opts.Since,
	})

	for pager.Next(ctx) {
		if !s.keepLock(ctx) {
			return nil
		}
		if recErr := pager.RecordErr(); recErr != nil {
			s.summary.Processed++
			s.recordFailure(ctx, Failure{Entity: string(KindProduct), RemoteID: recErr.RemoteID, Page: recErr.Page, Message: recErr.Error()})
			s.log.WithFields(logger.Fields{"remote_id": recErr.RemoteID, "page": recErr.Page}).Error("Failed to decode product: %v", recErr.Err)
		} else {
			s.importProduct(ctx, pager.Item())
		}
		if s.opts.Limit > 0 && s.summary.Processed >= s.opts.Limit {
			s.log.Info("Reached the limit of %d product(s)", s.opts.Limit)
			return nil
		}
	}

	if err := pager.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.summary.Aborted = true
		s.recordFailure(ctx, Failure{Entity: string(KindProduct), Page: pager.Page(), Message: err.Error()})
		s.log.WithFields(logger.Fields{"page": pager.Page()}).Error("Failed to fetch products page, stopping: %v", err)
	}
	return nil
}

// keepLock extends the run lock once a quarter of its ttl has passed since
// the last renewal. It returns false when the lock was lost, which aborts
// the run.
func (s *session) keepLock(ctx context.Context) bool {
	ttl := s.imp.settings.LockTTL
	if time.Since(s.renewedAt) < ttl/4 {
		return true
	}

	err := s.lease.Extend(ctx, ttl)
	switch {
	case err == nil:
		s.renewedAt = time.Now()
		return true
	case errors.Is(err, runlock.ErrLockLost):
		s.summary.Aborted = true
		s.recordFailure(ctx, Failure{Entity: "run", Message: err.Error()})
		s.log.Error("Import lock lost, stopping: %v", err)
		return false
	default:
		s.log.Warn("Failed to extend import lock: %v", err)
		return true
	}
}

func (s *session) hydrateCategories(ctx context.Context) error {
	var rows []models.Category
	err := s.db.WithContext(ctx).
		Where("source = ? AND remote_id IS NOT NULL", models.SourceWooCommerce).
		Find(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to load categories: %w", err)
	}
	for i := range rows {
		s.categories[*rows[i].RemoteID] = &rows[i]
	}
	return nil
}

// finish stores the outcome on the run record. It runs after any dry-run
// rollback so the record survives.
func (s *session) finish(run *models.ImportRun, runErr error) {
	status := models.ImportRunStatusCompleted
	switch {
	case runErr != nil:
		status = models.ImportRunStatusFailed
	case s.summary.Aborted:
		status = models.ImportRunStatusAborted
	}
	run.Status = status

	finishedAt := s.summary.FinishedAt
	updates := map[string]interface{}{
		"status":      status,
		"summary":     datatypes.JSONMap(s.summary.Map()),
		"finished_at": &finishedAt,
	}
	if runErr != nil {
		msg := runErr.Error()
		updates["error"] = &msg
	}

	if err := s.imp.db.Model(run).Updates(updates).Error; err != nil {
		s.log.Error("Failed to update import run: %v", err)
	}
}

func (s *session) recordFailure(ctx context.Context, f Failure) {
	s.summary.fail(f)
	s.emit(ctx, events.Event{Type: events.Failed, RemoteID: f.RemoteID, Page: f.Page, Message: f.Message})
}

// emit publishes a progress event. Publisher errors are only logged.
func (s *session) emit(ctx context.Context, e events.Event) {
	e.RunID = s.runID
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if err := s.imp.publisher.Publish(ctx, e); err != nil {
		s.log.Warn("Failed to publish %s event: %v", e.Type, err)
	}
}

func (s *session) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return database.Transaction(ctx, s.db, s.imp.settings.TxAttempts, fn)
}
