// Package middleware provides the HTTP middleware stack: request ids,
// structured request logging, panic recovery, CORS, bearer-token
// authentication, and request rate limiting.
package middleware

import (
	"net/http"
)

// Middleware is a function that wraps an http.Handler
type Middleware func(http.Handler) http.Handler

// Chain represents a composable chain of middleware
type Chain struct {
	middlewares []Middleware
}

// NewChain creates a new middleware chain
func NewChain(middlewares ...Middleware) *Chain {
	return &Chain{
		middlewares: middlewares,
	}
}

// Use adds a middleware to the chain
func (c *Chain) Use(m Middleware) *Chain {
	c.middlewares = append(c.middlewares, m)
	return c
}

// Apply wraps the given handler with all middleware in the chain.
// Middleware is applied in reverse order (last added wraps first)
// so that middleware added first executes first.
func (c *Chain) Apply(handler http.Handler) http.Handler {
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		handler = c.middlewares[i](handler)
	}
	return handler
}

// Then is an alias for Apply that returns the wrapped handler
func (c *Chain) Then(handler http.Handler) http.Handler {
	return c.Apply(handler)
}
