package ridx

import (
	"errors"

	"ridx/internal/bufferpool"
	"ridx/internal/storage"
)

var (
	ErrKeyNotFound = errors.New("key not found")

	ErrPoolExhausted = bufferpool.ErrPoolExhausted
	ErrPagePinned    = bufferpool.ErrPagePinned

	ErrInvalidMagicNumber = storage.ErrInvalidMagicNumber
	ErrInvalidVersion     = storage.ErrInvalidVersion
	ErrInvalidPageSize    = storage.ErrInvalidPageSize
	ErrInvalidChecksum    = storage.ErrInvalidChecksum
	ErrPageOutOfRange     = storage.ErrPageOutOfRange
)
