package importer

import (
	"encoding/json"
	"time"
)

// Counts tallies what happened to one kind of entity during a run.
type Counts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Deleted int `json:"deleted"`
}

func (c *Counts) add(o Counts) {
	c.Created += o.Created
	c.Updated += o.Updated
	c.Skipped += o.Skipped
	c.Deleted += o.Deleted
}

func (c Counts) Total() int {
	return c.Created + c.Updated + c.Skipped + c.Deleted
}

// Failure describes one record or page that could not be imported. Exactly
// one of RemoteID and Page is set.
type Failure struct {
	Entity   string `json:"entity"`
	RemoteID int64  `json:"remote_id,omitempty"`
	Page     int    `json:"page,omitempty"`
	Message  string `json:"message"`
}

// Stats holds the per-entity counters.
type Stats struct {
	Categories Counts `json:"categories"`
	Products   Counts `json:"products"`
	Options    Counts `json:"options"`
	Variants   Counts `json:"variants"`
	Media      Counts `json:"media"`
}

func (s *Stats) add(o Stats) {
	s.Categories.add(o.Categories)
	s.Products.add(o.Products)
	s.Options.add(o.Options)
	s.Variants.add(o.Variants)
	s.Media.add(o.Media)
}

// Rows lists the counters in display order.
func (s Stats) Rows() []EntityCounts {
	return []EntityCounts{
		{"categories", s.Categories},
		{"products", s.Products},
		{"options", s.Options},
		{"variants", s.Variants},
		{"media", s.Media},
	}
}

type EntityCounts struct {
	Entity string
	Counts
}

// Summary is the outcome of one import run.
type Summary struct {
	RunID  string `json:"run_id"`
	DryRun bool   `json:"dry_run"`
	// Aborted is set when a product page could not be fetched and the scan
	// stopped early.
	Aborted    bool      `json:"aborted"`
	Processed  int       `json:"processed"`
	Stats      Stats     `json:"stats"`
	Failures   []Failure `json:"failures"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func (s *Summary) fail(f Failure) {
	s.Failures = append(s.Failures, f)
}

func (s *Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Map renders the summary as a JSON object for storage on the run record.
func (s *Summary) Map() map[string]interface{} {
	data, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
