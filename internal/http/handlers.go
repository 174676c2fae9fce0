package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Genzhalo/idp-console/internal/model"
)

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	token, err := s.svc.Login(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeData(w, http.StatusOK, token)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Logout(r.Context(), tokenFromContext(r.Context())); err != nil {
		writeOpError(w, err)
		return
	}
	writeData(w, http.StatusOK, emptyResponse{})
}

func (s *Server) handleListForms(w http.ResponseWriter, r *http.Request) {
	forms, err := s.svc.ListForms(r.Context(), tokenFromContext(r.Context()))
	if err != nil {
		writeOpError(w, err)
		return
	}
	resp := make([]formResponse, 0, len(forms))
	for _, form := range forms {
		resp = append(resp, mapForm(form))
	}
	writeData(w, http.StatusOK, resp)
}

func (s *Server) handleCreateForm(w http.ResponseWriter, r *http.Request) {
	var req formRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	id, err := s.svc.CreateForm(r.Context(), tokenFromContext(r.Context()), req.toModel())
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeData(w, http.StatusCreated, id)
}

func (s *Server) handleGetForm(w http.ResponseWriter, r *http.Request) {
	form, err := s.svc.GetForm(r.Context(), tokenFromContext(r.Context()), chi.URLParam(r, "formId"))
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeData(w, http.StatusOK, mapForm(form))
}

func (s *Server) handleUpdateForm(w http.ResponseWriter, r *http.Request) {
	var req formPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	formID := chi.URLParam(r, "formId")
	if err := s.svc.UpdateForm(r.Context(), tokenFromContext(r.Context()), formID, req.toModel()); err != nil {
		writeOpError(w, err)
		return
	}
	writeData(w, http.StatusOK, idResponse{ID: formID})
}

func (s *Server) handleDeleteForm(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteForm(r.Context(), tokenFromContext(r.Context()), chi.URLParam(r, "formId")); err != nil {
		writeOpError(w, err)
		return
	}
	writeData(w, http.StatusOK, emptyResponse{})
}

func (s *Server) handleOpenForm(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.OpenForm(r.Context(), tokenFromContext(r.Context()), chi.URLParam(r, "formId")); err != nil {
		writeOpError(w, err)
		return
	}
	writeData(w, http.StatusOK, emptyResponse{})
}

func (s *Server) handleCloseForm(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.CloseForm(r.Context(), tokenFromContext(r.Context()), chi.URLParam(r, "formId")); err != nil {
		writeOpError(w, err)
		return
	}
	writeData(w, http.StatusOK, emptyResponse{})
}

func (s *Server) handleListFormSubmissions(w http.ResponseWriter, r *http.Request) {
	s.listSubmissions(w, r, model.SubmissionFilter{FormID: chi.URLParam(r, "formId")})
}

func (s *Server) handleCreateSubmission(w http.ResponseWriter, r *http.Request) {
	var req createSubmissionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	id, err := s.svc.CreateSubmission(r.Context(), tokenFromContext(r.Context()), chi.URLParam(r, "formId"), req.RespondentID)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeData(w, http.StatusCreated, id)
}

func (s *Server) handleListRespondents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := model.RespondentFilter{
		Name:       strings.TrimSpace(query.Get("name")),
		PassportID: strings.TrimSpace(query.Get("passportId")),
	}
	respondents, err := s.svc.ListRespondents(r.Context(), tokenFromContext(r.Context()), filter)
	if err != nil {
		writeOpError(w, err)
		return
	}
	resp := make([]respondentResponse, 0, len(respondents))
	for _, respondent := range respondents {
		resp = append(resp, mapRespondent(respondent))
	}
	writeData(w, http.StatusOK, resp)
}

func (s *Server) handleCreateRespondent(w http.ResponseWriter, r *http.Request) {
	var req respondentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	id, err := s.svc.CreateRespondent(r.Context(), tokenFromContext(r.Context()), req.toModel())
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeData(w, http.StatusCreated, id)
}

func (s *Server) handleGetRespondent(w http.ResponseWriter, r *http.Request) {
	respondent, err := s.svc.GetRespondent(r.Context(), tokenFromContext(r.Context()), chi.URLParam(r, "respondentId"))
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeData(w, http.StatusOK, mapRespondent(respondent))
}

func (s *Server) handleUpdateRespondent(w http.ResponseWriter, r *http.Request) {
	var req respondentPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	respondentID := chi.URLParam(r, "respondentId")
	if err := s.svc.UpdateRespondent(r.Context(), tokenFromContext(r.Context()), respondentID, req.toModel()); err != nil {
		writeOpError(w, err)
		return
	}
	writeData(w, http.StatusOK, idResponse{ID: respondentID})
}

func (s *Server) handleDeleteRespondent(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteRespondent(r.Context(), tokenFromContext(r.Context()), chi.URLParam(r, "respondentId")); err != nil {
		writeOpError(w, err)
		return
	}
	writeData(w, http.StatusOK, emptyResponse{})
}

func (s *Server) handleMergeRespondents(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if err := s.svc.MergeRespondents(r.Context(), tokenFromContext(r.Context()), chi.URLParam(r, "respondentId"), req.OtherID); err != nil {
		writeOpError(w, err)
		return
	}
	writeData(w, http.StatusOK, emptyResponse{})
}

func (s *Server) handleListRespondentSubmissions(w http.ResponseWriter, r *http.Request) {
	s.listSubmissions(w, r, model.SubmissionFilter{RespondentID: chi.URLParam(r, "respondentId")})
}

func (s *Server) listSubmissions(w http.ResponseWriter, r *http.Request, filter model.SubmissionFilter) {
	submissions, err := s.svc.ListSubmissions(r.Context(), tokenFromContext(r.Context()), filter)
	if err != nil {
		writeOpError(w, err)
		return
	}
	resp := make([]submissionResponse, 0, len(submissions))
	for _, sub := range submissions {
		resp = append(resp, mapSubmission(sub))
	}
	writeData(w, http.StatusOK, resp)
}

func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := s.svc.GetSubmission(r.Context(), tokenFromContext(r.Context()), chi.URLParam(r, "submissionId"))
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeData(w, http.StatusOK, mapSubmission(sub))
}

func (s *Server) handleUpdateSubmissionStatus(w http.ResponseWriter, r *http.Request) {
	var req submissionStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	submissionID := chi.URLParam(r, "submissionId")
	if err := s.svc.UpdateSubmissionStatus(r.Context(), tokenFromContext(r.Context()), submissionID, req.Status); err != nil {
		writeOpError(w, err)
		return
	}
	writeData(w, http.StatusOK, idResponse{ID: submissionID})
}

func (s *Server) handleDeleteSubmission(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteSubmission(r.Context(), tokenFromContext(r.Context()), chi.URLParam(r, "submissionId")); err != nil {
		writeOpError(w, err)
		return
	}
	writeData(w, http.StatusOK, emptyResponse{})
}
