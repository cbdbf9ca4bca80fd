package repository

import (
	"errors"

	"github.com/okian/ranked/internal/domain/model"
)

// Sentinel kinds for store errors.
var (
	ErrNotFound      = model.ErrNotFound
	ErrAlreadyExists = model.ErrAlreadyExists
	ErrConflict      = model.ErrConflict
	ErrInvalidInput  = model.ErrInvalidInput
	ErrInvalidLimit  = errors.New("invalid page limit")
	ErrUnknownDriver = errors.New("unknown store driver")
)
