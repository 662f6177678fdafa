package models

import "errors"

// Shared persistence errors returned by every backend
var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)
