package models

import "errors"

var (
	ErrValidation     = errors.New("validation error")
	ErrDuplicateCode  = errors.New("order code already exists")
	ErrNotFound       = errors.New("order not found")
	ErrSerialization  = errors.New("unreadable order collection")
	ErrAlreadyRunning = errors.New("delivery already running")
)
