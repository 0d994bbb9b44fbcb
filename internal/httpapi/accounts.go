package httpapi

import (
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coopware/treasury/internal/service/settlement"
)

func (s *Server) postAccount(w http.ResponseWriter, r *http.Request) {
	req, ok := r.Context().Value(ctxKeyPostAccount).(postAccountRequest)
	if !ok {
		toJSON(w, http.StatusInternalServerError, errorResponse{Error: "validated request missing"})
		return
	}
	acc, err := s.stl.OpenAccount(r.Context(), settlement.OpenAccountInput{
		OwnerID:            req.OwnerID,
		Name:               req.Name,
		Currency:           s.currency,
		InitialMinor:       req.InitialMinor,
		CanReceivePayments: req.CanReceivePayments,
	})
	countSettlement("open_account", err)
	if err != nil {
		s.log.Error("open account", "err", err)
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toAccountResponse(acc))
}

// listAccounts requires an owner_id query param.
func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("owner_id")
	if raw == "" {
		badRequest(w, "owner_id is required")
		return
	}
	ownerID, err := uuid.Parse(raw)
	if err != nil {
		badRequest(w, "invalid owner_id")
		return
	}
	accounts, err := s.reader.AccountsByOwner(r.Context(), ownerID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	acc, err := s.reader.GetAccount(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toAccountResponse(acc))
}

// getAccountTransactions serves the account's journal ordered by date, with
// optional from/to RFC3339 bounds.
func (s *Server) getAccountTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	if _, err := s.reader.GetAccount(r.Context(), id); err != nil {
		writeDomainErr(w, err)
		return
	}
	var from, to *time.Time
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(w, "invalid from")
			return
		}
		tt := t.UTC()
		from = &tt
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(w, "invalid to")
			return
		}
		tt := t.UTC()
		to = &tt
	}
	txs, err := s.reader.TransactionsByAccount(r.Context(), id, from, to)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionResponse(t))
	}
	toJSON(w, http.StatusOK, out)
}

// deactivateAccount soft-deletes the account; its journal stays readable.
func (s *Server) deactivateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	if err := s.registry.DeactivateAccount(r.Context(), id); err != nil {
		writeDomainErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
