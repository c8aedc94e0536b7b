package runner

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/snot/packages/core/parser"
	"github.com/abdul-hamid-achik/snot/packages/slick"
)

// RetryAttribute marks a result that is being run again after failing.
const RetryAttribute = "retry"

// ResultRecord is the local view of one remote result.
type ResultRecord struct {
	ID            string
	Identity      string
	Name          string
	AutomationKey string
	Metadata      *parser.TestMetadata
	DataDriven    bool

	Status         Status
	Outcome        Outcome
	Reason         string
	StartedAt      time.Time
	FinishedAt     time.Time
	DurationMillis int64

	Attributes   map[string]string
	Requirements []string
	Steps        []parser.Step
	Files        []slick.FileReference
	Links        []slick.Link
	GroupKey     string

	remote *slick.Result
}

// Duration is DurationMillis as a time.Duration.
func (r *ResultRecord) Duration() time.Duration {
	return time.Duration(r.DurationMillis) * time.Millisecond
}

// Retried reports whether the record carries the retry marker.
func (r *ResultRecord) Retried() bool {
	return r.Attributes[RetryAttribute] != ""
}

func (r *ResultRecord) setAttribute(key, value string) {
	if r.Attributes == nil {
		r.Attributes = make(map[string]string)
	}
	r.Attributes[key] = value
}

// toRemote renders the record as the Slick result to push.
func (r *ResultRecord) toRemote() *slick.Result {
	out := &slick.Result{}
	if r.remote != nil {
		*out = *r.remote
	}
	out.ID = r.ID
	out.RunStatus = r.Status.String()
	out.Status = r.Outcome.String()
	out.Reason = r.Reason
	out.Started = slick.Millis(r.StartedAt)
	out.Finished = slick.Millis(r.FinishedAt)
	out.RunLength = r.DurationMillis
	out.Attributes = maps.Clone(r.Attributes)
	out.Requirements = slices.Clone(r.Requirements)
	out.Files = slices.Clone(r.Files)
	out.Links = slices.Clone(r.Links)
	return out
}

// Registry holds the records of a run keyed by test identity, in
// registration order.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*ResultRecord
	order   []string
}

func NewRegistry() *Registry {
	return &Registry{records: make(map[string]*ResultRecord)}
}

func (r *Registry) Put(rec *ResultRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.Identity]; !ok {
		r.order = append(r.order, rec.Identity)
	}
	r.records[rec.Identity] = rec
}

func (r *Registry) Get(identity string) (*ResultRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[identity]
	return rec, ok
}

// All returns the records in registration order.
func (r *Registry) All() []*ResultRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ResultRecord, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.records[id])
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
