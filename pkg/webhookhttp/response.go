package webhookhttp

import (
	"encoding/json"
	"net/http"
)

const (
	msgHandled       = "Webhook Handled"
	msgOwnerNotFound = "User not found"
	msgMethodMissing = "Method Missing"
	msgNothingHere   = "Nothing here."
)

type statusBody struct {
	Status bool   `json:"status"`
	Msg    string `json:"msg,omitempty"`
}

// response renders a status code and body.
type response interface {
	Render(w http.ResponseWriter) error
}

type textResponse struct {
	status int
	body   string
}

func (t textResponse) Render(w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(t.status)
	if t.body == "" {
		return nil
	}
	_, err := w.Write([]byte(t.body))
	return err
}

type jsonResponse struct {
	status int
	body   any
}

func (j jsonResponse) Render(w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}
