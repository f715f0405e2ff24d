package storage

import "errors"

var (
	ErrExchangeNotFound = errors.New("exchange not found")
	ErrInvalidData      = errors.New("invalid data")
	ErrStorageInit      = errors.New("storage initialization failed")
	ErrFileOperation    = errors.New("file operation failed")
)
