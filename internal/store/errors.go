// Package store defines the persistence surface of the tagvault server and
// its sentinel errors. The sqlite sub-package provides the implementation.
package store

import "errors"

// Sentinel errors returned by store implementations.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
)
