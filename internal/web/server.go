package web

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"docqa/internal/config"
	"docqa/internal/models"
	"docqa/internal/parser"
	"docqa/internal/session"
)

const sessionCookie = "docqa_session"

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Server renders the upload-and-ask page and keeps one session per browser.
type Server struct {
	cfg      config.UIConfig
	sessions *session.Manager
	handler  http.Handler

	mu      sync.Mutex
	flashes map[string]flash
}

type flash struct {
	Message string
	Error   bool
}

type pageData struct {
	Flash      string
	FlashError bool
	Accept     string
	Documents  []string
	Current    string
	Chunks     int
	Transcript template.HTML
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func New(cfg config.UIConfig, sessions *session.Manager) *Server {
	s := &Server{cfg: cfg, sessions: sessions, flashes: make(map[string]flash)}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/select", s.handleSelect)
	mux.HandleFunc("/ask", s.handleAsk)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	sess, err := s.session(w, r)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	f := s.popFlash(sess.ID)
	data := pageData{
		Flash:      f.Message,
		FlashError: f.Error,
		Accept:     strings.Join(parser.SupportedExtensions, ","),
		Documents:  sess.Documents(),
		Current:    sess.Current(),
	}
	if data.Current != "" {
		data.Chunks = sess.ChunkCount(data.Current)
		history, err := sess.History(data.Current)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		if data.Transcript, err = renderTranscript(data.Current, history); err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		log.Error().Err(err).Msg("Failed to render page")
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	sess, err := s.session(w, r)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	limit := s.cfg.MaxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("parse upload: %w", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
		return
	}
	defer file.Close()

	if err := sess.Upload(r.Context(), header.Filename, file); err != nil {
		log.Error().Err(err).Str("session", sess.ID).Str("file", header.Filename).Msg("Upload failed")
		s.setFlash(sess.ID, flash{Message: models.ErrorPrefix + err.Error(), Error: true})
	} else {
		s.setFlash(sess.ID, flash{Message: "✅ Successfully processed " + sess.Current()})
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	sess, err := s.session(w, r)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	if err := sess.Select(r.FormValue("document")); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	sess, err := s.session(w, r)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if sess.Current() == "" {
		s.writeError(w, http.StatusBadRequest, session.ErrNoDocument)
		return
	}

	if exchange, ok := sess.Submit(r.Context(), r.FormValue("question")); ok {
		log.Debug().
			Str("session", sess.ID).
			Str("document", sess.Current()).
			Str("question", exchange.Question).
			Msg("Answered question")
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// session returns the caller's session, starting one and setting the cookie when
// the request carries none or an unknown id.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if sess, ok := s.sessions.Get(c.Value); ok {
			return sess, nil
		}
	}

	sess, err := s.sessions.Create()
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	log.Debug().Str("session", sess.ID).Int("sessions", s.sessions.Len()).Msg("Started session")
	return sess, nil
}

func (s *Server) setFlash(id string, f flash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flashes[id] = f
}

func (s *Server) popFlash(id string) flash {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.flashes[id]
	delete(s.flashes, id)
	return f
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed, use %s", allowed))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		status = http.StatusRequestEntityTooLarge
	}
	log.Warn().Err(err).Int("status", status).Msg("Request failed")
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}
