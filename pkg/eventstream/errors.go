package eventstream

import "errors"

// ErrNilUsageEvent indicates a nil event payload was provided to a publisher.
var ErrNilUsageEvent = errors.New("nil usage event")
