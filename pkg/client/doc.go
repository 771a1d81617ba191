/*
Package client provides a Go client for the taskgate HTTP API.

The CLI task commands use it to talk to a running instance; it is equally
usable as a library. Requests carry the operator token, share a pooled
transport, and respect a single configurable timeout. Non-2xx answers are
returned as *APIError with the decoded detail message.
*/
package client
