package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/desertthunder/crate/internal/shared"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps domain errors onto status codes. Messages stay short and
// never carry provider payloads.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrProtected):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case shared.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}
