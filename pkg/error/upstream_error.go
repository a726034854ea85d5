package error

import (
	"fmt"
	"net/http"
)

// UpstreamError marks a failure talking to Plex, the LLM or the search provider.
type UpstreamError struct {
	Service string
	Err     error
}

func NewUpstreamError(service string, err error) UpstreamError {
	return UpstreamError{Service: service, Err: err}
}

func (err UpstreamError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", err.Service, err.Err)
}

func (err UpstreamError) Unwrap() error {
	return err.Err
}

func (err UpstreamError) ErrCode() string {
	return "UPSTREAM_ERROR"
}

func (err UpstreamError) StatusCode() int {
	return http.StatusBadGateway
}

type ServiceUnavailableError string

func (err ServiceUnavailableError) Error() string {
	return string(err)
}

func (err ServiceUnavailableError) ErrCode() string {
	return "SERVICE_UNAVAILABLE"
}

func (err ServiceUnavailableError) StatusCode() int {
	return http.StatusServiceUnavailable
}
