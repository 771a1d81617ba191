package scheduler

import "fmt"

// UnavailableError indicates the scheduler could not be reached at all,
// for example a refused connection, DNS failure, or client-side timeout.
type UnavailableError struct {
	URL string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("scheduler unavailable at %s: %v", e.URL, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// ResponseError indicates the scheduler was reached but answered with a
// non-2xx status. Body holds the raw response body for diagnostics.
type ResponseError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("scheduler returned %d: %s", e.StatusCode, e.Body)
}
