package repository

import "errors"

var (
	ErrAlreadyExists = errors.New("error already exists")
	ErrNotFound      = errors.New("error not found")

	// ErrSerialization means the transaction lost a serialization conflict
	// and the whole read-compute-write cycle can be retried.
	ErrSerialization = errors.New("error transaction serialization failure")
)
