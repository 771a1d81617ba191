// Package service implements the task lifecycle service that sits
// between the HTTP API and the repository.
//
// The service is the only component allowed to decide state
// transitions. The allowed table:
//
//	pending          -> dispatching | cancel_requested
//	dispatching      -> running | failed | cancel_requested
//	running          -> completed | failed | cancel_requested
//	cancel_requested -> cancelled | failed
//	completed, failed, cancelled   terminal
//
// UpdateStatus silently ignores a forbidden transition and returns the
// record as-is; terminal states are therefore monotone even though the
// repository itself accepts any write.
//
// Creation and cancellation return as soon as the record is persisted.
// The actual scheduler conversation happens asynchronously via the
// event queue, which is why a freshly created task reports pending and
// flips to dispatching and then running shortly after.
//
// Ownership filtering: when a caller supplies service or user_id, a
// task that does not match is reported as not found rather than
// forbidden. User-facing routes always pass their caller's identity;
// operator routes pass empty filters and see everything.
package service
