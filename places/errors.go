package places

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a request that succeeded but matched nothing.
var ErrNotFound = errors.New("places: no results")

// ErrRateLimited indicates the provider reported quota exhaustion.
type ErrRateLimited struct {
	Status string
}

func (e ErrRateLimited) Error() string {
	return fmt.Sprintf("rate limited: %s", e.Status)
}

// ErrInvalidRequest covers INVALID_REQUEST responses. With a pagination
// token in play it usually means the token has not settled yet.
type ErrInvalidRequest struct {
	Message string
}

func (e ErrInvalidRequest) Error() string {
	if e.Message == "" {
		return "invalid request"
	}
	return fmt.Sprintf("invalid request: %s", e.Message)
}

// IsRateLimited reports whether err is a quota-exhaustion error.
func IsRateLimited(err error) bool {
	var rl ErrRateLimited
	return errors.As(err, &rl)
}

// IsInvalidRequest reports whether err is an INVALID_REQUEST response.
func IsInvalidRequest(err error) bool {
	var ir ErrInvalidRequest
	return errors.As(err, &ir)
}

func statusError(status, message string) error {
	switch status {
	case "OK", "ZERO_RESULTS":
		return nil
	case "OVER_QUERY_LIMIT", "RESOURCE_EXHAUSTED":
		return ErrRateLimited{Status: status}
	case "INVALID_REQUEST":
		return ErrInvalidRequest{Message: message}
	default:
		if message != "" {
			return fmt.Errorf("api status %s: %s", status, message)
		}
		return fmt.Errorf("api status %s", status)
	}
}
