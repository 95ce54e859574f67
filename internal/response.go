package contact

import (
	"encoding/json"
	"net/http"
	"strconv"
)

const (
	retryAfterSeconds = 60

	msgTooManyRequests  = "Too many requests. Please try again later."
	msgInternalError    = "Internal Server Error"
	msgMethodNotAllowed = "Method Not Allowed"
	msgPayloadTooLarge  = "Payload Too Large"
)

type okResponse struct {
	OK bool `json:"ok"`
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type validationResponse struct {
	OK     bool             `json:"ok"`
	Errors *ValidationError `json:"errors"`
}

type rateLimitResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func writeValidationError(w http.ResponseWriter, verr *ValidationError) {
	writeJSON(w, http.StatusBadRequest, validationResponse{OK: false, Errors: verr})
}

func writeTooManyRequests(w http.ResponseWriter) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	writeJSON(w, http.StatusTooManyRequests, rateLimitResponse{Error: msgTooManyRequests})
}

func writeInternalError(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, errorResponse{OK: false, Error: msgInternalError})
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	w.Header().Set("Allow", http.MethodPost)
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{OK: false, Error: msgMethodNotAllowed})
}

func writePayloadTooLarge(w http.ResponseWriter) {
	writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{OK: false, Error: msgPayloadTooLarge})
}
