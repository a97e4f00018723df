package watcher

import (
	"github.com/hazyhaar/glamwatch/watcher/internal/glamorgan"
)

// ErrResultTimeout is returned when the GLAM Tools result page never
// stabilized within the configured timeout.
var ErrResultTimeout = glamorgan.ErrResultTimeout
