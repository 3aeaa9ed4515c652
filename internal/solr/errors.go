package solr

import "errors"

var (
	// ErrNothingToIndex is returned when the search cluster reports no distinct
	// count for a dimension. It ends that dimension cleanly; it is not a failure.
	ErrNothingToIndex = errors.New("nothing to index")

	// ErrStatusRequest is returned when the core admin STATUS request fails.
	ErrStatusRequest = errors.New("core status request failed")

	// ErrUnexpectedResponse is returned when a response body cannot be interpreted.
	ErrUnexpectedResponse = errors.New("unexpected search response")
)
