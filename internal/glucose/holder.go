// Package glucose holds the latest glucose reading pushed by the monitoring source.
package glucose

import (
	"sync"
	"time"

	"github.com/srg/textwatch/internal/protocol"
)

// Reading is one glucose sample. Trend is protocol.TrendUnknown when the source
// did not report one; 0 is a valid trend code.
type Reading struct {
	Value     int
	Trend     int
	Timestamp int64 // unix seconds
}

// HasData reports whether the reading carries a value worth sending.
func (r Reading) HasData() bool {
	return r.Value > 0
}

// Message builds the wire message for the reading.
func (r Reading) Message() protocol.Message {
	return protocol.GlucoseMessage(r.Value, r.Trend, r.Timestamp)
}

type update struct {
	trend     *int
	timestamp int64
}

// UpdateOption customizes a single Update call.
type UpdateOption func(*update)

// WithTrend sets the trend code. Without it the trend becomes unknown.
func WithTrend(trend int) UpdateOption {
	return func(u *update) {
		u.trend = &trend
	}
}

// WithTimestamp sets the sample time in unix seconds. Zero means "now".
func WithTimestamp(ts int64) UpdateOption {
	return func(u *update) {
		u.timestamp = ts
	}
}

// Holder owns the current reading. Updates replace the reading as a whole.
type Holder struct {
	mu      sync.RWMutex
	reading Reading
	now     func() time.Time
}

// HolderOption configures a Holder.
type HolderOption func(*Holder)

// WithClock overrides the wall clock used for default timestamps.
func WithClock(now func() time.Time) HolderOption {
	return func(h *Holder) {
		h.now = now
	}
}

// NewHolder returns a holder with no data: value 0, unknown trend, timestamp 0.
func NewHolder(opts ...HolderOption) *Holder {
	h := &Holder{
		reading: Reading{Trend: protocol.TrendUnknown},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Update overwrites the reading and returns the stored value.
// A negative or zero value is stored as given and means "no data".
func (h *Holder) Update(value int, opts ...UpdateOption) Reading {
	u := update{}
	for _, opt := range opts {
		opt(&u)
	}

	r := Reading{
		Value:     value,
		Trend:     protocol.TrendUnknown,
		Timestamp: u.timestamp,
	}
	if u.trend != nil {
		r.Trend = *u.trend
	}
	if r.Timestamp == 0 {
		r.Timestamp = h.now().Unix()
	}

	h.mu.Lock()
	h.reading = r
	h.mu.Unlock()
	return r
}

// Read returns the current reading.
func (h *Holder) Read() Reading {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.reading
}
