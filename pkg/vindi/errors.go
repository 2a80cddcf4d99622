package vindi

import "errors"

var (
	ErrMissingAPIKey  = errors.New("vindi: api key is required")
	ErrInvalidBaseURL = errors.New("vindi: invalid base url")
	ErrCircuitOpen    = errors.New("vindi: circuit breaker is open")
	ErrPlanNotFound   = errors.New("vindi: plan not found")
	ErrUnverified     = errors.New("vindi: payment profile verification failed")
)

// apiErrors is the error body returned by the API.
type apiErrors struct {
	Errors []struct {
		ID        string `json:"id"`
		Parameter string `json:"parameter"`
		Message   string `json:"message"`
	} `json:"errors"`
}

func (e apiErrors) message() string {
	if len(e.Errors) == 0 {
		return ""
	}
	msg := e.Errors[0].Message
	if p := e.Errors[0].Parameter; p != "" {
		msg = p + ": " + msg
	}
	for _, extra := range e.Errors[1:] {
		msg += "; " + extra.Message
	}
	return msg
}
