package events

import "time"

// CompileStart is emitted before a compilation unit is built.
type CompileStart struct {
	RunID string
	Unit  string
	Kind  string
}

// CompileFinish is emitted after a compilation unit is built. Err is the
// fatal error of the unit, if any.
type CompileFinish struct {
	RunID       string
	Unit        string
	Kind        string
	Shapes      int
	Diagnostics int
	Err         error
	Duration    time.Duration
}

// FragmentBuilt is emitted once per fragment when its resolved selection
// tree enters the fragment cache.
type FragmentBuilt struct {
	Name     string
	Err      error
	Duration time.Duration
}
