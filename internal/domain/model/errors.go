package model

import "errors"

// Sentinel errors shared by the domain and its storage adapters.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("profile not found")
	ErrAlreadyExists = errors.New("profile already exists")
	// ErrConflict reports that a store could not serialize a write; callers may retry.
	ErrConflict = errors.New("store conflict")
)
