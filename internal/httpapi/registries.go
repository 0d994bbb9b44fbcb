package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/coopware/treasury/internal/treasury"
)

func (s *Server) postMember(w http.ResponseWriter, r *http.Request) {
	req, ok := r.Context().Value(ctxKeyPostMember).(postMemberRequest)
	if !ok {
		toJSON(w, http.StatusInternalServerError, errorResponse{Error: "validated request missing"})
		return
	}
	m := treasury.Member{ID: uuid.New(), Name: req.Name, Email: req.Email}
	saved, err := s.registry.CreateMember(r.Context(), m)
	if err != nil {
		s.log.Error("create member", "err", err)
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toMemberResponse(saved))
}

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.reader.ListMembers(r.Context())
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := make([]memberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, toMemberResponse(m))
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) postProject(w http.ResponseWriter, r *http.Request) {
	req, ok := r.Context().Value(ctxKeyPostProject).(postProjectRequest)
	if !ok {
		toJSON(w, http.StatusInternalServerError, errorResponse{Error: "validated request missing"})
		return
	}
	p := treasury.Project{ID: uuid.New(), Name: req.Name, Active: true}
	saved, err := s.registry.CreateProject(r.Context(), p)
	if err != nil {
		s.log.Error("create project", "err", err)
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toProjectResponse(saved))
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.reader.ListProjects(r.Context())
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, toProjectResponse(p))
	}
	toJSON(w, http.StatusOK, out)
}
