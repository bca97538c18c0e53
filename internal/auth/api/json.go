package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// envelope is the response shape every endpoint returns:
// {"status": <ok?>, "code": <http status>, "body": {...}}.
type envelope struct {
	Status bool `json:"status"`
	Code   int  `json:"code"`
	Body   any  `json:"body"`
}

type messageBody struct {
	Message string `json:"message"`
}

func writeEnvelope(w http.ResponseWriter, code int, ok bool, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(envelope{Status: ok, Code: code, Body: body})
}

func writeMessage(w http.ResponseWriter, code int, ok bool, msg string) {
	writeEnvelope(w, code, ok, messageBody{Message: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer func() { _ = r.Body.Close() }()

	body := http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	// Ensure there is no extra data after the first JSON value.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("extra data after JSON object")
	}
	return nil
}
