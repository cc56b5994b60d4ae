// Package health defines the Checker/Result vocabulary used to probe a
// dispatch target's reachability on demand, outside the dispatch path.
package health

import (
	"context"
	"time"
)

// CheckType identifies the mechanism behind a health check.
type CheckType string

// CheckTypeHTTP is the only checker cronfleetd ships: it has no
// containers to exec into or bare sockets to dial, unlike the
// container-runtime health checks this package was adapted from.
const CheckTypeHTTP CheckType = "http"

// Result is the outcome of a single health check.
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker performs a health check and reports its type.
type Checker interface {
	Check(ctx context.Context) Result
	Type() CheckType
}
