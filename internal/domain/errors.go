package domain

import "github.com/pkg/errors"

var (
	ErrProviderNotFound = errors.New("provider not found")
	ErrBuiltInReadOnly  = errors.New("built-in providers are read-only")
	ErrIncompatibleType = errors.New("provider does not serve this content type")
	ErrInvalidSlug      = errors.New("invalid provider slug")
)
