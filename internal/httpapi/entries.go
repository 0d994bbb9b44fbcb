package httpapi

import (
	"context"
	"net/http"

	"github.com/coopware/treasury/internal/service/settlement"
	"github.com/coopware/treasury/internal/treasury"
)

func (s *Server) postIncome(w http.ResponseWriter, r *http.Request) {
	s.postEntry(w, r, "income", s.stl.PostIncome)
}

func (s *Server) postExpenditure(w http.ResponseWriter, r *http.Request) {
	s.postEntry(w, r, "expenditure", s.stl.PostExpenditure)
}

// postEntry is the shared handler body for income and expenditure postings.
func (s *Server) postEntry(w http.ResponseWriter, r *http.Request, op string, post func(context.Context, settlement.EntryInput) (treasury.Transaction, error)) {
	req, ok := r.Context().Value(ctxKeyPostEntry).(postEntryRequest)
	if !ok {
		toJSON(w, http.StatusInternalServerError, errorResponse{Error: "validated request missing"})
		return
	}
	tx, err := post(r.Context(), settlement.EntryInput{
		AccountID:   req.AccountID,
		AmountMinor: req.AmountMinor,
		Description: req.Description,
		Date:        req.Date,
	})
	countSettlement(op, err)
	if err != nil {
		s.log.Error("post "+op, "err", err)
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

func (s *Server) postTransfer(w http.ResponseWriter, r *http.Request) {
	req, ok := r.Context().Value(ctxKeyPostTransfer).(postTransferRequest)
	if !ok {
		toJSON(w, http.StatusInternalServerError, errorResponse{Error: "validated request missing"})
		return
	}
	res, err := s.stl.TransferFunds(r.Context(), settlement.TransferInput{
		SourceID:      req.SourceID,
		DestinationID: req.DestinationID,
		AmountMinor:   req.AmountMinor,
		CostMinor:     req.CostMinor,
		Date:          req.Date,
	})
	countSettlement("transfer", err)
	if err != nil {
		s.log.Error("post transfer", "err", err)
		writeDomainErr(w, err)
		return
	}
	resp := transferResponse{
		Out: toTransactionResponse(res.Out),
		In:  toTransactionResponse(res.In),
	}
	if res.Cost != nil {
		cost := toTransactionResponse(*res.Cost)
		resp.Cost = &cost
	}
	toJSON(w, http.StatusCreated, resp)
}
