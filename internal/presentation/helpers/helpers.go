package helpers

import (
	"encoding/json"
	"io"
	"net/http"
)

func DecodeJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// HttpError writes the failure envelope: a machine-checkable kind plus a
// human-readable message, nothing internal.
func HttpError(w http.ResponseWriter, status int, kind, msg string) {
	WriteJSON(w, status, map[string]string{
		"error":   kind,
		"message": msg,
	})
}
