package catalog

import (
	"errors"
	"fmt"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

// ErrMissingRefreshToken is returned by RefreshUserToken for an empty token.
var ErrMissingRefreshToken = errors.New("missing refresh token")

// UpstreamError reports a failed request to Spotify.
type UpstreamError struct {
	Op      string // operation that failed, e.g. "recently played"
	Status  int    // HTTP status from Spotify, 0 when no response was received
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("spotify %s: status %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("spotify %s: %s", e.Op, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// upstreamError wraps err with the status and message Spotify returned.
func upstreamError(op string, err error) *UpstreamError {
	ue := &UpstreamError{Op: op, Message: err.Error(), Err: err}

	var retrieveErr *oauth2.RetrieveError
	var apiErr spotify.Error

	switch {
	case errors.As(err, &retrieveErr):
		if retrieveErr.Response != nil {
			ue.Status = retrieveErr.Response.StatusCode
		}
		switch {
		case retrieveErr.ErrorDescription != "":
			ue.Message = retrieveErr.ErrorDescription
		case retrieveErr.ErrorCode != "":
			ue.Message = retrieveErr.ErrorCode
		}
	case errors.As(err, &apiErr):
		ue.Status = apiErr.Status
		ue.Message = apiErr.Message
	}

	return ue
}
