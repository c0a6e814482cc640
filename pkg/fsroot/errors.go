package fsroot

import "errors"

// These errors let callers tell resolution outcomes apart with errors.Is.
// Implementations wrap them with the offending selector:
//
//	return Target{}, fmt.Errorf("selector %q: %w", selector, ErrNotFound)
var (
	// ErrNotFound indicates the selector names nothing under the root.
	//
	// The connection handler treats this as a request for the root menu.
	ErrNotFound = errors.New("selector not found")

	// ErrForbidden indicates the selector would resolve outside the root.
	//
	// Returned before any filesystem access is attempted.
	ErrForbidden = errors.New("selector escapes root")
)
