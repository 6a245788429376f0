package models

import "fmt"

// ErrorType represents different categories of errors
type ErrorType int

const (
	ErrInstallerItemMissing ErrorType = iota
	ErrUnsupportedInstallerItem
	ErrExtractionFailure
	ErrItemNotFound
	ErrManifestUnreadable
	ErrCatalogUnavailable
	ErrCatalogCorrupt
	ErrRepoCopy
	ErrInvalidConfig
)

// String returns the string representation of ErrorType
func (e ErrorType) String() string {
	switch e {
	case ErrInstallerItemMissing:
		return "InstallerItemMissing"
	case ErrUnsupportedInstallerItem:
		return "UnsupportedInstallerItem"
	case ErrExtractionFailure:
		return "ExtractionFailure"
	case ErrItemNotFound:
		return "ItemNotFound"
	case ErrManifestUnreadable:
		return "ManifestUnreadable"
	case ErrCatalogUnavailable:
		return "CatalogUnavailable"
	case ErrCatalogCorrupt:
		return "CatalogCorrupt"
	case ErrRepoCopy:
		return "RepoCopy"
	case ErrInvalidConfig:
		return "InvalidConfig"
	default:
		return "Unknown"
	}
}

// Error lets a bare ErrorType be used as a target for errors.Is.
func (e ErrorType) Error() string {
	return e.String()
}

// ImportError represents an error raised while importing an installer item
type ImportError struct {
	Type ErrorType
	Path string
	Err  error
}

// NewError builds an ImportError for path
func NewError(t ErrorType, path string, err error) *ImportError {
	return &ImportError{Type: t, Path: path, Err: err}
}

// Error implements the error interface
func (e *ImportError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Path, e.Err)
	}
	return fmt.Sprintf("[%s] %v", e.Type, e.Err)
}

// Unwrap returns the wrapped error
func (e *ImportError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the same error kind, so callers can write
// errors.Is(err, models.ErrItemNotFound).
func (e *ImportError) Is(target error) bool {
	switch t := target.(type) {
	case ErrorType:
		return e.Type == t
	case *ImportError:
		return e.Type == t.Type
	}
	return false
}
