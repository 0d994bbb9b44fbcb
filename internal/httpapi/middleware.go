package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

type ctxKey string

const (
	ctxKeyPostMember      ctxKey = "validatedPostMember"
	ctxKeyPostProject     ctxKey = "validatedPostProject"
	ctxKeyPostAccount     ctxKey = "validatedPostAccount"
	ctxKeyPostEntry       ctxKey = "validatedPostEntry"
	ctxKeyPostTransfer    ctxKey = "validatedPostTransfer"
	ctxKeyPostPledge      ctxKey = "validatedPostPledge"
	ctxKeyEditPledge      ctxKey = "validatedEditPledge"
	ctxKeyPayment         ctxKey = "validatedPayment"
	ctxKeyPostCollection  ctxKey = "validatedPostCollection"
	ctxKeyCollectionBatch ctxKey = "validatedCollectionBatch"
	ctxKeyPostDebt        ctxKey = "validatedPostDebt"
)

// decodeInto decodes a JSON body strictly into dst and reports a 400 on
// failure. Returns false when the response has been written.
func decodeInto(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

func withValue(next http.Handler, w http.ResponseWriter, r *http.Request, key ctxKey, v any) {
	ctx := context.WithValue(r.Context(), key, v)
	next.ServeHTTP(w, r.WithContext(ctx))
}

func (s *Server) validatePostMember() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req postMemberRequest
			if !decodeInto(w, r, &req) {
				return
			}
			if req.Name == "" {
				badRequest(w, "name is required")
				return
			}
			withValue(next, w, r, ctxKeyPostMember, req)
		})
	}
}

func (s *Server) validatePostProject() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req postProjectRequest
			if !decodeInto(w, r, &req) {
				return
			}
			if req.Name == "" {
				badRequest(w, "name is required")
				return
			}
			withValue(next, w, r, ctxKeyPostProject, req)
		})
	}
}

// validatePostAccount ensures POST /accounts carries an owner, a name and a
// non-negative opening balance.
func (s *Server) validatePostAccount() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req postAccountRequest
			if !decodeInto(w, r, &req) {
				return
			}
			if req.OwnerID == uuid.Nil || req.Name == "" {
				badRequest(w, "owner_id and name are required")
				return
			}
			if req.InitialMinor < 0 {
				badRequest(w, "initial_balance_minor must be >= 0")
				return
			}
			withValue(next, w, r, ctxKeyPostAccount, req)
		})
	}
}

// validatePostEntry is shared by income and expenditure postings.
func (s *Server) validatePostEntry() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req postEntryRequest
			if !decodeInto(w, r, &req) {
				return
			}
			if req.AccountID == uuid.Nil {
				badRequest(w, "account_id is required")
				return
			}
			if req.AmountMinor <= 0 {
				badRequest(w, "amount_minor must be > 0")
				return
			}
			if req.Description == "" {
				badRequest(w, "description is required")
				return
			}
			withValue(next, w, r, ctxKeyPostEntry, req)
		})
	}
}

func (s *Server) validatePostTransfer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req postTransferRequest
			if !decodeInto(w, r, &req) {
				return
			}
			if req.SourceID == uuid.Nil || req.DestinationID == uuid.Nil {
				badRequest(w, "source_account_id and destination_account_id are required")
				return
			}
			if req.AmountMinor <= 0 {
				badRequest(w, "amount_minor must be > 0")
				return
			}
			if req.CostMinor < 0 {
				badRequest(w, "cost_minor must be >= 0")
				return
			}
			withValue(next, w, r, ctxKeyPostTransfer, req)
		})
	}
}

func (s *Server) validatePostPledge() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req postPledgeRequest
			if !decodeInto(w, r, &req) {
				return
			}
			if req.MemberID == uuid.Nil || req.ProjectID == uuid.Nil {
				badRequest(w, "member_id and project_id are required")
				return
			}
			if req.AmountMinor <= 0 {
				badRequest(w, "amount_minor must be > 0")
				return
			}
			withValue(next, w, r, ctxKeyPostPledge, req)
		})
	}
}

func (s *Server) validateEditPledge() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req editPledgeRequest
			if !decodeInto(w, r, &req) {
				return
			}
			if req.AmountMinor <= 0 {
				badRequest(w, "amount_minor must be > 0")
				return
			}
			withValue(next, w, r, ctxKeyEditPledge, req)
		})
	}
}

// validatePayment is shared by pledge and debt payment endpoints.
func (s *Server) validatePayment() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req paymentRequest
			if !decodeInto(w, r, &req) {
				return
			}
			if req.ReceivingAccountID == uuid.Nil {
				badRequest(w, "receiving_account_id is required")
				return
			}
			if req.AmountMinor <= 0 {
				badRequest(w, "amount_minor must be > 0")
				return
			}
			withValue(next, w, r, ctxKeyPayment, req)
		})
	}
}

func (s *Server) validatePostCollection() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req postCollectionRequest
			if !decodeInto(w, r, &req) {
				return
			}
			if req.ProjectID == uuid.Nil || req.MemberID == uuid.Nil || req.AccountID == uuid.Nil {
				badRequest(w, "project_id, member_id and receiving_account_id are required")
				return
			}
			if req.AmountMinor <= 0 {
				badRequest(w, "amount_minor must be > 0")
				return
			}
			withValue(next, w, r, ctxKeyPostCollection, req)
		})
	}
}

func (s *Server) validateCollectionBatch() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req collectionBatchRequest
			if !decodeInto(w, r, &req) {
				return
			}
			if req.ProjectID == uuid.Nil {
				badRequest(w, "project_id is required")
				return
			}
			if len(req.Rows) == 0 {
				badRequest(w, "rows must not be empty")
				return
			}
			withValue(next, w, r, ctxKeyCollectionBatch, req)
		})
	}
}

func (s *Server) validatePostDebt() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req postDebtRequest
			if !decodeInto(w, r, &req) {
				return
			}
			if req.MemberID == uuid.Nil || req.DebtorName == "" {
				badRequest(w, "member_id and debtor_name are required")
				return
			}
			if req.AmountMinor <= 0 {
				badRequest(w, "amount_minor must be > 0")
				return
			}
			withValue(next, w, r, ctxKeyPostDebt, req)
		})
	}
}
