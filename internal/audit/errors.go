package audit

import "errors"

// ErrInvalidEntry is returned by Create for an entry missing required fields.
var ErrInvalidEntry = errors.New("audit: invalid entry")
