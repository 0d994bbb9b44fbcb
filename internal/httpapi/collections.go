package httpapi

import (
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/coopware/treasury/internal/service/reconcile"
	"github.com/coopware/treasury/internal/service/settlement"
)

// maxWorkbookBytes caps uploaded workbook size.
const maxWorkbookBytes = 10 << 20

func (s *Server) postCollection(w http.ResponseWriter, r *http.Request) {
	req, ok := r.Context().Value(ctxKeyPostCollection).(postCollectionRequest)
	if !ok {
		toJSON(w, http.StatusInternalServerError, errorResponse{Error: "validated request missing"})
		return
	}
	c, err := s.stl.RecordCollection(r.Context(), settlement.CollectionInput{
		ProjectID:   req.ProjectID,
		MemberID:    req.MemberID,
		AccountID:   req.AccountID,
		AmountMinor: req.AmountMinor,
		Date:        req.Date,
	})
	countSettlement("collection", err)
	if err != nil {
		s.log.Error("record collection", "err", err)
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toCollectionResponse(c))
}

func (s *Server) listCollections(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("project_id")
	if raw == "" {
		badRequest(w, "project_id is required")
		return
	}
	projectID, err := uuid.Parse(raw)
	if err != nil {
		badRequest(w, "invalid project_id")
		return
	}
	cols, err := s.reader.CollectionsByProject(r.Context(), projectID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := make([]collectionResponse, 0, len(cols))
	for _, c := range cols {
		out = append(out, toCollectionResponse(c))
	}
	toJSON(w, http.StatusOK, out)
}

// postCollectionBatch reconciles an inline grid of rows. The batch is not
// all-or-nothing; the result reports per-row outcomes.
func (s *Server) postCollectionBatch(w http.ResponseWriter, r *http.Request) {
	req, ok := r.Context().Value(ctxKeyCollectionBatch).(collectionBatchRequest)
	if !ok {
		toJSON(w, http.StatusInternalServerError, errorResponse{Error: "validated request missing"})
		return
	}
	res, err := s.rec.Run(r.Context(), reconcile.Batch{
		ProjectID:        req.ProjectID,
		DefaultAccountID: req.DefaultAccountID,
		DefaultDate:      req.Date,
		Rows:             req.Rows,
	})
	if err != nil {
		s.log.Error("collection batch", "err", err)
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, res)
}

// importCollections accepts a multipart upload with the filled-in template
// under the "file" field and runs it as a batch.
func (s *Server) importCollections(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxWorkbookBytes); err != nil {
		badRequest(w, "invalid multipart form: "+err.Error())
		return
	}
	projectID, err := uuid.Parse(r.FormValue("project_id"))
	if err != nil {
		badRequest(w, "invalid project_id")
		return
	}
	var defaultAccountID uuid.UUID
	if raw := r.FormValue("default_account_id"); raw != "" {
		defaultAccountID, err = uuid.Parse(raw)
		if err != nil {
			badRequest(w, "invalid default_account_id")
			return
		}
	}
	date := time.Now().UTC()
	if raw := r.FormValue("date"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			badRequest(w, "invalid date, want YYYY-MM-DD")
			return
		}
		date = d
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "file is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxWorkbookBytes))
	if err != nil {
		badRequest(w, "read upload: "+err.Error())
		return
	}
	rows, err := s.rec.ParseWorkbook(data)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	res, err := s.rec.Run(r.Context(), reconcile.Batch{
		ProjectID:        projectID,
		DefaultAccountID: defaultAccountID,
		DefaultDate:      date,
		Rows:             rows,
		// reported row numbers account for the header row
		RowOffset: 1,
	})
	if err != nil {
		s.log.Error("collection import", "err", err)
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, res)
}

// collectionTemplate serves the downloadable workbook pre-filled with the
// member roster.
func (s *Server) collectionTemplate(w http.ResponseWriter, r *http.Request) {
	in := reconcile.TemplateInput{
		DefaultAccountName: r.URL.Query().Get("default_account_name"),
	}
	if raw := r.URL.Query().Get("date"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			badRequest(w, "invalid date, want YYYY-MM-DD")
			return
		}
		in.Date = d
	}
	data, err := s.rec.Template(r.Context(), in)
	if err != nil {
		s.log.Error("collection template", "err", err)
		writeDomainErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="collections_template.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
