package httpapi

import (
	"errors"
	"net/http"

	"github.com/coopware/treasury/internal/errs"
)

// errorResponse is the standard error payload for the API.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
	toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) { writeErr(w, http.StatusBadRequest, msg, "") }
func notFound(w http.ResponseWriter)               { writeErr(w, http.StatusNotFound, "not_found", "not_found") }

// writeDomainErr maps service sentinel errors onto HTTP statuses. Anything
// unrecognized is a 500; those are logged by the caller.
func writeDomainErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		notFound(w)
	case errors.Is(err, errs.ErrInvalid):
		writeErr(w, http.StatusBadRequest, err.Error(), "invalid")
	case errors.Is(err, errs.ErrInsufficientFunds):
		writeErr(w, http.StatusUnprocessableEntity, "insufficient funds", "insufficient_funds")
	case errors.Is(err, errs.ErrExceedsRemaining):
		writeErr(w, http.StatusUnprocessableEntity, "amount exceeds remaining balance", "exceeds_remaining")
	case errors.Is(err, errs.ErrSameAccount):
		writeErr(w, http.StatusUnprocessableEntity, "source and destination accounts are the same", "same_account")
	case errors.Is(err, errs.ErrBelowPaid):
		writeErr(w, http.StatusUnprocessableEntity, "amount is below what has already been paid", "below_paid_amount")
	case errors.Is(err, errs.ErrCannotReceive):
		writeErr(w, http.StatusUnprocessableEntity, "account cannot receive payments", "cannot_receive_payments")
	case errors.Is(err, errs.ErrInactiveAccount):
		writeErr(w, http.StatusUnprocessableEntity, "account is inactive", "inactive_account")
	case errors.Is(err, errs.ErrConflict):
		writeErr(w, http.StatusConflict, "conflict", "conflict")
	case errors.Is(err, errs.ErrForbidden):
		writeErr(w, http.StatusForbidden, "forbidden", "forbidden")
	default:
		writeErr(w, http.StatusInternalServerError, "internal error", "")
	}
}
