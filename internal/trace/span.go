package trace

import (
	"fmt"
	"sync/atomic"
	"time"
)

var (
	globalSeq   uint64
	globalSpans uint64
)

// NextSeq returns a monotonically increasing sequence number.
func NextSeq() uint64 {
	return atomic.AddUint64(&globalSeq, 1)
}

// NextSpanID returns a unique span ID.
func NextSpanID() uint64 {
	return atomic.AddUint64(&globalSpans, 1)
}

// Span tracks one logical operation between Begin and End.
type Span struct {
	tracer  Tracer
	id      uint64
	level   Level
	name    string
	started time.Time
	extra   map[string]string
}

// Begin starts a new span and emits a SpanBegin event.
func Begin(t Tracer, lvl Level, name, detail string) *Span {
	if t == nil || !t.Level().ShouldEmit(lvl) {
		return &Span{tracer: Nop}
	}

	id := NextSpanID()
	now := time.Now()

	t.Emit(&Event{
		Time:   now,
		Seq:    NextSeq(),
		Kind:   KindSpanBegin,
		Level:  lvl,
		SpanID: id,
		Name:   name,
		Detail: detail,
	})

	return &Span{
		tracer:  t,
		id:      id,
		level:   lvl,
		name:    name,
		started: now,
	}
}

// End emits a SpanEnd event carrying the elapsed time and returns it.
func (s *Span) End(detail string) time.Duration {
	if s == nil || s.tracer == nil || !s.tracer.Enabled() {
		return 0
	}

	dur := time.Since(s.started)
	s.WithExtra("elapsed", dur.Round(time.Microsecond).String())

	s.tracer.Emit(&Event{
		Time:   time.Now(),
		Seq:    NextSeq(),
		Kind:   KindSpanEnd,
		Level:  s.level,
		SpanID: s.id,
		Name:   s.name,
		Detail: detail,
		Extra:  s.extra,
	})

	return dur
}

// WithExtra adds a key-value pair to the end event.
// Returns the span for method chaining.
func (s *Span) WithExtra(key, value string) *Span {
	if s == nil || s.tracer == nil || !s.tracer.Enabled() {
		return s
	}

	if s.extra == nil {
		s.extra = make(map[string]string)
	}
	s.extra[key] = value
	return s
}

// ID returns the span ID.
func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.id
}

// Logf emits a point event at lvl. Formatting is skipped when the level is filtered.
func Logf(t Tracer, lvl Level, name, format string, args ...any) {
	if t == nil || !t.Level().ShouldEmit(lvl) {
		return
	}
	t.Emit(&Event{
		Time:   time.Now(),
		Seq:    NextSeq(),
		Kind:   KindPoint,
		Level:  lvl,
		Name:   name,
		Detail: fmt.Sprintf(format, args...),
	})
}
