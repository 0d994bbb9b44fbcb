package httpapi

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/coopware/treasury/internal/service/settlement"
	"github.com/coopware/treasury/internal/treasury"
)

func (s *Server) postDebt(w http.ResponseWriter, r *http.Request) {
	req, ok := r.Context().Value(ctxKeyPostDebt).(postDebtRequest)
	if !ok {
		toJSON(w, http.StatusInternalServerError, errorResponse{Error: "validated request missing"})
		return
	}
	if _, err := s.reader.GetMember(r.Context(), req.MemberID); err != nil {
		writeDomainErr(w, err)
		return
	}
	amount, err := money.NewAmountFromMinorUnits(s.currency, req.AmountMinor)
	if err != nil {
		badRequest(w, "invalid amount")
		return
	}
	d := treasury.Debt{
		ID:             uuid.New(),
		MemberID:       req.MemberID,
		DebtorName:     req.DebtorName,
		SaleRef:        req.SaleRef,
		OriginalAmount: amount,
		AmountDue:      amount,
	}
	saved, err := s.registry.CreateDebt(r.Context(), d)
	if err != nil {
		s.log.Error("create debt", "err", err)
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toDebtResponse(saved))
}

func (s *Server) listDebts(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("member_id")
	if raw == "" {
		badRequest(w, "member_id is required")
		return
	}
	memberID, err := uuid.Parse(raw)
	if err != nil {
		badRequest(w, "invalid member_id")
		return
	}
	debts, err := s.reader.DebtsByMember(r.Context(), memberID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := make([]debtResponse, 0, len(debts))
	for _, d := range debts {
		out = append(out, toDebtResponse(d))
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) getDebt(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	d, err := s.reader.GetDebt(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toDebtResponse(d))
}

func (s *Server) postDebtPayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	req, ok := r.Context().Value(ctxKeyPayment).(paymentRequest)
	if !ok {
		toJSON(w, http.StatusInternalServerError, errorResponse{Error: "validated request missing"})
		return
	}
	d, err := s.stl.RecordDebtPayment(r.Context(), settlement.DebtPaymentInput{
		DebtID:             id,
		AmountMinor:        req.AmountMinor,
		ReceivingAccountID: req.ReceivingAccountID,
		Date:               req.Date,
	})
	countSettlement("debt_payment", err)
	if err != nil {
		s.log.Error("debt payment", "err", err, "debt_id", id)
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toDebtResponse(d))
}
