package processors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"catalog/internal/importer"
	"catalog/internal/logger"
)

var ErrMalformedRequest = errors.New("malformed import request")

// Runner starts one import session.
type Runner interface {
	Run(ctx context.Context, opts importer.Options) (*importer.Summary, error)
}

// ImportRequest is the message body on the request topic.
type ImportRequest struct {
	Options     importer.Options `json:"options"`
	RequestedBy string           `json:"requested_by,omitempty"`
}

type ImportProcessor struct {
	runner Runner
	logger *logger.Logger
}

func NewImportProcessor(runner Runner, logger *logger.Logger) *ImportProcessor {
	return &ImportProcessor{
		runner: runner,
		logger: logger,
	}
}

// Process runs the import a request message asks for. A request that arrives
// while another run holds the lock is dropped.
func (p *ImportProcessor) Process(ctx context.Context, payload []byte) error {
	var req ImportRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	if req.Options.PerPage < 0 || req.Options.Limit < 0 {
		return fmt.Errorf("%w: per_page and limit must not be negative", ErrMalformedRequest)
	}

	opts := req.Options
	opts.Trigger = "worker"
	log := p.logger.WithField("requested_by", req.RequestedBy)
	log.Info("Starting requested import (dry run: %t)", opts.DryRun)

	summary, err := p.runner.Run(ctx, opts)
	if errors.Is(err, importer.ErrRunInProgress) {
		log.Warn("Dropping import request: another run is in progress")
		return nil
	}
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	log.WithFields(logger.Fields{
		"run_id":    summary.RunID,
		"processed": summary.Processed,
		"failures":  len(summary.Failures),
		"aborted":   summary.Aborted,
	}).Info("Requested import finished")
	return nil
}
