package trace

// nopTracer drops every event. It is installed for --log-level off and is
// what FromContext returns when no tracer was configured.
type nopTracer struct{}

func (nopTracer) Emit(*Event)   {}
func (nopTracer) Flush() error  { return nil }
func (nopTracer) Close() error  { return nil }
func (nopTracer) Level() Level  { return LevelOff }
func (nopTracer) Enabled() bool { return false }

// Nop is the shared tracer that discards everything.
var Nop Tracer = nopTracer{}
