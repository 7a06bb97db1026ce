// Package storage moves photo bytes in and out of object storage.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound means the location holds no object. It is not retried.
	ErrNotFound = errors.New("storage: object not found")
	// ErrTransient marks failures worth retrying.
	ErrTransient = errors.New("storage: transient failure")
	// ErrTooLarge means the object exceeds the fetch size limit. It is not
	// retried.
	ErrTooLarge = errors.New("storage: object too large")
)

// ByteStore fetches source bytes and stores processed output.
type ByteStore interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
	// Store writes data at hint, overwriting any previous object, and
	// returns the location it can be fetched from.
	Store(ctx context.Context, data []byte, hint, contentType string) (string, error)
}

// OutputKey is where the processed image for a source is written.
func OutputKey(sourceID, ext string) string {
	return "processed/processed_" + sourceID + ext
}
