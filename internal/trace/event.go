package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	// KindSpanBegin marks the start of a logical operation.
	KindSpanBegin Kind = iota + 1
	// KindSpanEnd marks the end of a logical operation.
	KindSpanEnd
	// KindPoint represents an instant event.
	KindPoint
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	default:
		return "unknown"
	}
}

// Event represents a single log record.
type Event struct {
	Time   time.Time         // wall-clock timestamp
	Seq    uint64            // global sequence number
	Kind   Kind              // event kind
	Level  Level             // severity
	SpanID uint64            // span identifier, 0 for points outside spans
	Name   string            // e.g. "exec", "discover", "case"
	Detail string            // optional message
	Extra  map[string]string // extensible key-value pairs
}
