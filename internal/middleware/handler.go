// Package middleware composes the request pipeline every route runs through:
// request logging and tracing on the outside, error normalization inside it,
// and optional data access around the handler.
package middleware

import "net/http"

// HandlerFunc is an HTTP handler that reports failure by returning an error
// instead of writing an error response itself.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error
