package interfaces

import "errors"

// ErrJobNotFound is returned when a scrape job ID has no stored record
var ErrJobNotFound = errors.New("job not found")

// ErrBusinessNotFound is returned when a business ID has no stored record
var ErrBusinessNotFound = errors.New("business not found")

// ErrBusinessExists is returned when inserting a business whose
// (domain, page_url) key is already stored. The stored record wins.
var ErrBusinessExists = errors.New("business already exists")

// ErrExportJobNotFound is returned when an export job ID has no stored record
var ErrExportJobNotFound = errors.New("export job not found")

// ErrInvalidTransition is wrapped into errors rejecting a lifecycle
// operation that is not legal from the job's current status. The HTTP
// layer maps it to 409 Conflict.
var ErrInvalidTransition = errors.New("invalid state transition")

// ErrInvalidRequest is wrapped into errors rejecting a malformed or
// out-of-range request payload. The HTTP layer maps it to 400.
var ErrInvalidRequest = errors.New("invalid request")
