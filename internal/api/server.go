package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"rash-identifier/internal/analysis"
	"rash-identifier/internal/format"
	"rash-identifier/internal/intake"
	"rash-identifier/internal/services"
)

const (
	maxMultipartMemory = 8 << 20 // 8 MB
	maxUploadBody      = intake.MaxUploadBytes + 1<<20
	maxFormatBody      = 1 << 20
	recentLimit        = 20
)

type Server struct {
	mux      *http.ServeMux
	sessions *analysis.Manager
	analyzer *analysis.Orchestrator
	history  *services.HistoryService
}

// NewServer wires the JSON API. history may be nil, which disables /api/stats.
func NewServer(
	sessions *analysis.Manager,
	analyzer *analysis.Orchestrator,
	history *services.HistoryService,
) *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		sessions: sessions,
		analyzer: analyzer,
		history:  history,
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/sessions", s.handleCreateSession)
	s.mux.HandleFunc("/api/sessions/", s.handleSessionActions)
	s.mux.HandleFunc("/api/format", s.handleFormat)
	s.mux.HandleFunc("/api/stats", s.handleStats)
}

// sessionView is what the page renders.
type sessionView struct {
	ID                 string         `json:"id"`
	Image              string         `json:"image,omitempty"`
	Analysis           string         `json:"analysis"`
	Blocks             []format.Block `json:"blocks"`
	Loading            bool           `json:"loading"`
	Error              string         `json:"error,omitempty"`
	Disclaimer         string         `json:"disclaimer"`
	AnalysisDisclaimer string         `json:"analysisDisclaimer,omitempty"`
	AcceptedTypes      string         `json:"acceptedTypes"`
	UpdatedAt          string         `json:"updatedAt"`
}

func newSessionView(id string, st analysis.State) sessionView {
	view := sessionView{
		ID:            id,
		Image:         st.Image.String(),
		Analysis:      st.Analysis,
		Blocks:        format.Blocks(st.Analysis),
		Loading:       st.Loading,
		Error:         st.Error,
		Disclaimer:    analysis.Disclaimer,
		AcceptedTypes: intake.AcceptedTypes,
		UpdatedAt:     st.UpdatedAt.UTC().Format(timeLayout),
	}
	if st.Analysis != "" {
		view.AnalysisDisclaimer = analysis.AnalysisDisclaimer
	}
	return view
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"provider": s.analyzer.Provider(),
		"model":    s.analyzer.Model(),
		"sessions": s.sessions.Len(),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	sess, err := s.sessions.Create()
	if err != nil {
		if errors.Is(err, analysis.ErrTooManySessions) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, newSessionView(sess.ID, sess.Snapshot()))
}

func (s *Server) handleSessionActions(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	path = strings.Trim(path, "/")
	parts := strings.Split(path, "/")
	if path == "" || len(parts) > 2 {
		http.NotFound(w, r)
		return
	}

	sess, err := s.sessions.Get(parts[0])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch action {
	case "":
		s.handleSession(w, r, sess)
	case "image":
		s.handleUploadImage(w, r, sess)
	case "analyze":
		s.handleAnalyze(w, r, sess)
	case "cancel":
		s.handleCancel(w, r, sess)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request, sess *analysis.Session) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, newSessionView(sess.ID, sess.Snapshot()))
	case http.MethodDelete:
		s.sessions.Delete(sess.ID)
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodDelete)
	}
}

func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request, sess *analysis.Session) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.rejectUpload(w, sess, intake.TooLarge(tooBig.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	// Dropping the parsed form lets the same file be posted again straight away.
	if form := r.MultipartForm; form != nil {
		defer form.RemoveAll()
	}

	files := r.MultipartForm.File["image"]
	if len(files) != 1 {
		writeError(w, http.StatusBadRequest, "exactly one image file is required")
		return
	}

	img, err := intake.FromFileHeader(files[0])
	if err != nil {
		s.rejectUpload(w, sess, err)
		return
	}

	sess.SetImage(img)
	s.startAnalysis(w, r, sess)
}

func (s *Server) rejectUpload(w http.ResponseWriter, sess *analysis.Session, err error) {
	sess.Fail(intake.UserMessage(err))
	status := http.StatusBadRequest
	if errors.Is(err, intake.ErrValidation) {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, newSessionView(sess.ID, sess.Snapshot()))
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request, sess *analysis.Session) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	s.startAnalysis(w, r, sess)
}

// startAnalysis runs in the background unless the caller asked to wait with ?wait=true.
func (s *Server) startAnalysis(w http.ResponseWriter, r *http.Request, sess *analysis.Session) {
	wait := r.URL.Query().Get("wait") == "true"

	var err error
	if wait {
		err = s.analyzer.Analyze(r.Context(), sess)
	} else {
		err = s.analyzer.Start(sess)
	}
	switch {
	case errors.Is(err, analysis.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, analysis.ErrNoImage):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusAccepted
	if wait {
		status = http.StatusOK
	}
	writeJSON(w, status, newSessionView(sess.ID, sess.Snapshot()))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request, sess *analysis.Session) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": sess.Cancel()})
}

func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormatBody)).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocks": format.Blocks(payload.Text)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "analysis history is disabled")
		return
	}

	stats, err := s.history.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	recent, err := s.history.Recent(r.Context(), recentLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	byStatus := make(map[string]int, len(stats.ByStatus))
	for status, n := range stats.ByStatus {
		byStatus[string(status)] = n
	}
	var lastAt *string
	if stats.LastAt != nil {
		str := stats.LastAt.UTC().Format(timeLayout)
		lastAt = &str
	}

	out := make([]map[string]any, 0, len(recent))
	for _, rec := range recent {
		out = append(out, map[string]any{
			"id":          rec.ID,
			"provider":    rec.Provider,
			"model":       rec.Model,
			"status":      rec.Status,
			"error":       rec.Error,
			"image_mime":  rec.ImageMIME,
			"image_bytes": rec.ImageBytes,
			"duration_ms": rec.Duration.Milliseconds(),
			"created_at":  rec.CreatedAt.UTC().Format(timeLayout),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total":           stats.Total,
		"by_status":       byStatus,
		"avg_duration_ms": stats.AvgDurationMS,
		"last_at":         lastAt,
		"recent":          out,
	})
}

const timeLayout = time.RFC3339

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
