package integrations

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"helpdesk/database"
	"helpdesk/secrets"
)

type ErrorKind string

const (
	KindValidation      ErrorKind = "validation"
	KindUnknownProvider ErrorKind = "unknown_provider"
	KindNotFound        ErrorKind = "not_found"
	KindPrecondition    ErrorKind = "precondition"
	KindConfiguration   ErrorKind = "configuration"
	KindIntegrity       ErrorKind = "integrity"
	KindUpstream        ErrorKind = "upstream"
)

// Error is the client facing error of every integration operation.
// Message is safe to return to the caller, Err is only logged.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func ValidationError(message string) *Error {
	return newError(KindValidation, message, nil)
}

func UnknownProviderError() *Error {
	return newError(KindUnknownProvider, "Unknown provider", database.ErrUnknownProvider)
}

func NotFoundError(message string) *Error {
	return newError(KindNotFound, message, nil)
}

func PreconditionError(message string) *Error {
	return newError(KindPrecondition, message, nil)
}

func ConfigurationError(message string) *Error {
	return newError(KindConfiguration, message, nil)
}

func UpstreamError(message string, err error) *Error {
	return newError(KindUpstream, message, err)
}

// classify turns any error into an *Error, mapping the secrets and database sentinels.
func classify(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	switch {
	case errors.Is(err, database.ErrUnknownProvider):
		return UnknownProviderError()
	case errors.Is(err, secrets.ErrSecretMissing):
		return newError(KindConfiguration,
			"Credential encryption is not configured. Set INTEGRATIONS_SECRET (or --integrations-secret) and restart the server.", err)
	case errors.Is(err, secrets.ErrIntegrity):
		return newError(KindIntegrity, "Stored credential could not be decrypted", err)
	}
	return newError("", "Internal server error", err)
}

// StatusFor maps an error onto the HTTP status it is reported with.
func StatusFor(err error) int {
	switch classify(err).Kind {
	case KindValidation, KindUnknownProvider, KindPrecondition:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// WriteError logs the full error and writes the {success:false,message} envelope.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	e := classify(err)
	status := StatusFor(e)
	if status >= http.StatusInternalServerError {
		log.Printf("Error %s %s: %v", r.Method, r.URL.Path, err)
	} else {
		log.Printf("Rejected %s %s: %v", r.Method, r.URL.Path, err)
	}
	WriteJSON(w, status, ErrorResponse{Success: false, Message: e.Message})
}
