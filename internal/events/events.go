package events

import (
	"context"
	"time"
)

type Type string

const (
	RunStarted        Type = "run_started"
	RunFinished       Type = "run_finished"
	Created           Type = "created"
	Updated           Type = "updated"
	Skipped           Type = "skipped"
	Failed            Type = "failed"
	DownloadingImages Type = "downloading_images"
	ProductCompleted  Type = "product_completed"
)

// Event is one progress notification of an import run.
type Event struct {
	Type      Type                   `json:"type"`
	RunID     string                 `json:"run_id"`
	RemoteID  int64                  `json:"remote_id,omitempty"`
	ProductID string                 `json:"product_id,omitempty"`
	Name      string                 `json:"name,omitempty"`
	Page      int                    `json:"page,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Counts    map[string]int         `json:"counts,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Publisher receives progress events. Implementations must not block the
// import for long and their errors never fail a run.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Func adapts a plain function to Publisher.
type Func func(ctx context.Context, event Event) error

func (f Func) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Multi fans an event out to every publisher and returns the first error.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event Event) error {
	var first error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type nop struct{}

func (nop) Publish(context.Context, Event) error { return nil }

// Nop discards every event.
var Nop Publisher = nop{}
