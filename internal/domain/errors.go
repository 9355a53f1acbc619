package domain

import "errors"

// Error taxonomy for the request path. Handlers map these to HTTP statuses
// with errors.Is; everything else surfaces as a 500.
var (
	// ErrUnauthorized covers a missing or unknown Apikeyid credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation covers malformed input: missing file or query
	// parameter, empty filename, disallowed extension.
	ErrValidation = errors.New("invalid request")

	// ErrNotFound covers an unknown client or image id, including an
	// image owned by a different client.
	ErrNotFound = errors.New("not found")

	// ErrStorage covers an unreachable or failing backend.
	ErrStorage = errors.New("storage failure")

	// ErrCodec covers blobs that cannot be decoded as an image.
	ErrCodec = errors.New("codec failure")
)
