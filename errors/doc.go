// Package errors provides the gateway's coded error type with retryable
// detection and HTTP status mapping.
package errors
