package aggregator

// Source starts watching targets. Options holds the pass-through
// configuration the aggregator does not interpret.
type Source interface {
	Watch(targets []string, options map[string]any) (Handle, error)
}

// Handle is a running watch. OnReady listeners fire exactly once; OnEvent
// listeners receive every change observed after readiness.
type Handle interface {
	OnReady(func())
	OnEvent(func(kind, path string))
	Close() error
}
