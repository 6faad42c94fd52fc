package jsonkv

import "errors"

var (
	// ErrInvalidKey is returned when a key is empty.
	ErrInvalidKey = errors.New("invalid key")
	// ErrInvalidValue is returned when a value cannot be represented as a
	// self-contained JSON document.
	ErrInvalidValue = errors.New("invalid value")
	// ErrKeyExists is returned by Create when the key is already present.
	ErrKeyExists = errors.New("key already exists")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store is closed")
)
