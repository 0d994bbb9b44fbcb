package httpapi

import (
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coopware/treasury/internal/service/pledge"
	"github.com/coopware/treasury/internal/service/settlement"
)

func (s *Server) postPledge(w http.ResponseWriter, r *http.Request) {
	req, ok := r.Context().Value(ctxKeyPostPledge).(postPledgeRequest)
	if !ok {
		toJSON(w, http.StatusInternalServerError, errorResponse{Error: "validated request missing"})
		return
	}
	p, err := s.pledges.Create(r.Context(), pledge.CreateInput{
		MemberID:      req.MemberID,
		ProjectID:     req.ProjectID,
		Currency:      s.currency,
		OriginalMinor: req.AmountMinor,
		DueDate:       req.DueDate,
		Comments:      req.Comments,
	})
	if err != nil {
		s.log.Error("create pledge", "err", err)
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toPledgeResponse(p, time.Now().UTC()))
}

// listPledges filters by member_id or project_id; exactly one is required.
func (s *Server) listPledges(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	memberRaw, projectRaw := q.Get("member_id"), q.Get("project_id")
	if (memberRaw == "") == (projectRaw == "") {
		badRequest(w, "exactly one of member_id or project_id is required")
		return
	}
	now := time.Now().UTC()
	if memberRaw != "" {
		id, perr := uuid.Parse(memberRaw)
		if perr != nil {
			badRequest(w, "invalid member_id")
			return
		}
		ps, gerr := s.reader.PledgesByMember(r.Context(), id)
		if gerr != nil {
			writeDomainErr(w, gerr)
			return
		}
		out := make([]pledgeResponse, 0, len(ps))
		for _, p := range ps {
			out = append(out, toPledgeResponse(p, now))
		}
		toJSON(w, http.StatusOK, out)
		return
	}
	id, perr := uuid.Parse(projectRaw)
	if perr != nil {
		badRequest(w, "invalid project_id")
		return
	}
	ps, gerr := s.reader.PledgesByProject(r.Context(), id)
	if gerr != nil {
		writeDomainErr(w, gerr)
		return
	}
	out := make([]pledgeResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPledgeResponse(p, now))
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) getPledge(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	p, err := s.reader.GetPledge(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toPledgeResponse(p, time.Now().UTC()))
}

func (s *Server) editPledge(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	req, ok := r.Context().Value(ctxKeyEditPledge).(editPledgeRequest)
	if !ok {
		toJSON(w, http.StatusInternalServerError, errorResponse{Error: "validated request missing"})
		return
	}
	p, err := s.pledges.Edit(r.Context(), pledge.EditInput{
		PledgeID:      id,
		OriginalMinor: req.AmountMinor,
		DueDate:       req.DueDate,
		Comments:      req.Comments,
	})
	if err != nil {
		s.log.Error("edit pledge", "err", err, "pledge_id", id)
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toPledgeResponse(p, time.Now().UTC()))
}

func (s *Server) deletePledge(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	if err := s.pledges.Delete(r.Context(), id); err != nil {
		s.log.Error("delete pledge", "err", err, "pledge_id", id)
		writeDomainErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) postPledgePayment(w http.ResponseWriter, r *http.Request) {
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
	p, err := s.pledges.RecordPayment(r.Context(), settlement.PledgePaymentInput{
		PledgeID:           id,
		AmountMinor:        req.AmountMinor,
		ReceivingAccountID: req.ReceivingAccountID,
		Date:               req.Date,
	})
	countSettlement("pledge_payment", err)
	if err != nil {
		s.log.Error("pledge payment", "err", err, "pledge_id", id)
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toPledgeResponse(p, time.Now().UTC()))
}

// reversePledge undoes every payment posted for the pledge and reactivates it.
func (s *Server) reversePledge(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	p, err := s.stl.ReversePaidPledge(r.Context(), id, false)
	countSettlement("pledge_reversal", err)
	if err != nil {
		s.log.Error("reverse pledge", "err", err, "pledge_id", id)
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toPledgeResponse(p, time.Now().UTC()))
}
