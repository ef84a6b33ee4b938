package client

import (
	"fmt"
)

// ErrorKind classifies a failed fetch.
type ErrorKind string

const (
	// KindNetwork covers transport failures: DNS, connect, timeouts,
	// broken responses.
	KindNetwork ErrorKind = "network"

	// KindStatus covers non-success HTTP responses.
	KindStatus ErrorKind = "status"

	// KindPayload covers responses whose body could not be decoded into
	// proxy records. pubproxy reports its own errors ("API limit
	// reached", invalid key) as plain text with status 200, so they
	// surface here.
	KindPayload ErrorKind = "payload"
)

// FetchError is the single error kind the fetch boundary produces. One
// FetchError aborts the whole TryGet call that triggered the request;
// the coordinator never retries or swallows it.
type FetchError struct {
	Kind       ErrorKind
	StatusCode int    // zero for network errors
	Body       string // response body snippet, when one was read
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode > 0:
		return fmt.Sprintf("pubproxy %s error (status %d): %v", e.Kind, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("pubproxy %s error: %v", e.Kind, e.Err)
	case e.Body != "":
		return fmt.Sprintf("pubproxy %s error (status %d): %s", e.Kind, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("pubproxy %s error (status %d)", e.Kind, e.StatusCode)
	}
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}
