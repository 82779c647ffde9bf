package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/agentflow/onboarding/pkg/domain/pipeline"
	httputil "github.com/agentflow/onboarding/pkg/infrastructure/http"
	"github.com/agentflow/onboarding/pkg/onboarding"
)

type stageView struct {
	pipeline.Stage
	Steps []pipeline.Step `json:"steps"`
}

func (s *Server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	reg := s.svc.Registry()
	stages := reg.Stages()
	out := make([]stageView, 0, len(stages))
	for _, st := range stages {
		out = append(out, stageView{Stage: st, Steps: reg.StepsForStage(st.Key)})
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

type createAgentRequest struct {
	ID        string `json:"id"`
	ManagerID string `json:"managerId"`
	Name      string `json:"name"`
	Email     string `json:"email"`
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req createAgentRequest
	if err := httputil.DecodeJSON(w, r, maxJSONBody, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	agent, err := s.svc.CreateAgent(r.Context(), actorFrom(r.Context()), onboarding.NewAgent(req))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, agent)
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.svc.ListAgents(r.Context(), actorFrom(r.Context()), r.URL.Query().Get("managerId"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, agents)
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := s.svc.GetAgent(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "agentID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, agent)
}

func (s *Server) handleListSteps(w http.ResponseWriter, r *http.Request) {
	records, err := s.svc.ListStepRecords(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "agentID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, records)
}

func (s *Server) handleCompleteStep(w http.ResponseWriter, r *http.Request) {
	agent, err := s.svc.CompleteStep(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "agentID"), chi.URLParam(r, "stepID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, agent)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		httputil.WriteFieldError(w, http.StatusBadRequest, "file", "invalid or oversized multipart body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteFieldError(w, http.StatusBadRequest, "file", "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.maxUpload+1))
	if err != nil {
		httputil.WriteFieldError(w, http.StatusBadRequest, "file", "could not read file")
		return
	}

	doc, agent, err := s.svc.UploadDocument(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "agentID"), onboarding.Upload{
		StepID:   chi.URLParam(r, "stepID"),
		FileName: header.Filename,
		Data:     data,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]interface{}{"document": doc, "agent": agent})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.svc.ListDocuments(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "agentID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, docs)
}

func (s *Server) handleReadDocument(w http.ResponseWriter, r *http.Request) {
	doc, data, err := s.svc.ReadDocument(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "agentID"), chi.URLParam(r, "docID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(doc.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (s *Server) handleGetAgreement(w http.ResponseWriter, r *http.Request) {
	ag, err := s.svc.GetAgreement(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "agentID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ag)
}

type signRequest struct {
	SignatureRef string `json:"signatureRef"`
	Initials     string `json:"initials"`
}

func (s *Server) handleSignAgreement(w http.ResponseWriter, r *http.Request) {
	var req signRequest
	if err := httputil.DecodeJSON(w, r, maxJSONBody, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	ag, agent, err := s.svc.SignAgreement(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "agentID"), onboarding.SignatureInput(req))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"agreement": ag, "agent": agent})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	agent, err := s.svc.ApproveAgent(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "agentID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, agent)
}

type needsInfoRequest struct {
	Message string `json:"message"`
	StepID  string `json:"stepId"`
}

func (s *Server) handleNeedsInfo(w http.ResponseWriter, r *http.Request) {
	var req needsInfoRequest
	if err := httputil.DecodeJSON(w, r, maxJSONBody, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.SendNeedsInfo(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "agentID"), onboarding.NeedsInfoRequest(req)); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, nil)
}

type holdRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleHold(hold bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req holdRequest
		if r.ContentLength != 0 {
			if err := httputil.DecodeJSON(w, r, maxJSONBody, &req); err != nil {
				httputil.WriteError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		agent, err := s.svc.SetHold(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "agentID"), hold, req.Reason)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, agent)
	}
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.svc.ListMessages(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "agentID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, msgs)
}

type messageRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := httputil.DecodeJSON(w, r, maxJSONBody, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	msg, err := s.svc.SendMessage(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "agentID"), req.Content)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.WriteFieldError(w, http.StatusBadRequest, "limit", "must be a non-negative integer")
			return
		}
		limit = n
	}
	entries, err := s.svc.ListActivity(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "agentID"), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}
