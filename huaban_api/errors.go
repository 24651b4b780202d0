package huaban_api

import (
	"fmt"
	"strconv"
)

type InvalidUrlError string

func (e InvalidUrlError) Error() string {
	return "invalid URL " + strconv.Quote(string(e))
}

// ApiError reports a response whose shape does not match what the API is
// expected to return, for example a missing top-level field.
type ApiError string

func (e ApiError) Error() string {
	return "api error " + strconv.Quote(string(e))
}

// NetworkError reports a transport failure or a non-2xx status code.
// StatusCode is zero when no response was received.
type NetworkError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Op, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
