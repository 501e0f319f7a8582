package upstream

import (
	"errors"
	"fmt"
)

// ErrAuthExpired reports an upstream 401. The orchestrator recovers by
// acquiring a fresh token and retrying the failed call once.
var ErrAuthExpired = errors.New("upstream: authorization expired")

// RejectedError is a non-401 4xx from the upstream: the request itself is
// wrong and retrying will not help.
type RejectedError struct {
	Status int
	Body   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("upstream rejected request: %d: %s", e.Status, e.Body)
}

// UnreachableError is a network failure or persistent 5xx after retries.
type UnreachableError struct {
	Err error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("upstream unreachable: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }
