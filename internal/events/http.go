package events

import (
	"net/http"
	"time"
)

// HTTPStart is emitted when a compile request is received. The publishing
// context carries the run ID of the request.
type HTTPStart struct {
	Request *http.Request
}

// HTTPFinish is emitted after the handler completes. CacheHit reports whether
// the response was served from the result cache.
type HTTPFinish struct {
	Request  *http.Request
	Status   int
	CacheHit bool
	Duration time.Duration
}
