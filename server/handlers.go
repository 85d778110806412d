package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"social_media_agent/generator"
	"social_media_agent/store"
)

const (
	maxMultipartMemory = 32 << 20
	defaultRecent      = 8
)

type sessionKey struct{}

// --- Auth ---

type credentialsReq struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Confirm  string `json:"confirm"`
}

type loginResp struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, store.ErrMissingFields.Error())
		return
	}
	if req.Confirm != "" && req.Confirm != req.Password {
		writeError(w, http.StatusBadRequest, "passwords do not match")
		return
	}
	switch err := s.accounts.Register(req.Username, req.Password); {
	case errors.Is(err, store.ErrMissingFields):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrUserExists):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		s.logger.Error("register failed", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
	default:
		writeJSON(w, http.StatusCreated, map[string]string{"username": req.Username})
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.accounts.Authenticate(req.Username, req.Password); err != nil {
		if !errors.Is(err, store.ErrInvalidCredentials) {
			s.logger.Error("login failed", "username", req.Username, "error", err)
		}
		writeError(w, http.StatusUnauthorized, store.ErrInvalidCredentials.Error())
		return
	}
	token, id, err := s.tokens.Issue(req.Username)
	if err != nil {
		s.logger.Error("issue token failed", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	s.store.create(id, s.agent)
	writeJSON(w, http.StatusOK, loginResp{Token: token, Username: id.Username})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.store.drop(sessionFrom(r.Context()).ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		id, err := s.tokens.Validate(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		sess, ok := s.store.get(id.SessionID)
		if !ok || sess.Username != id.Username {
			writeError(w, http.StatusUnauthorized, "session ended")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

// sessionFrom is only valid behind requireAuth.
func sessionFrom(ctx context.Context) *generator.Session {
	sess, _ := ctx.Value(sessionKey{}).(*generator.Session)
	return sess
}

// --- Generation ---

type generateReq struct {
	Topic        string   `json:"topic"`
	Creativity   *float64 `json:"creativity" validate:"omitempty,gte=0,lte=1"`
	HashtagCount *int     `json:"hashtag_count"`
	Timezone     string   `json:"timezone"`
	Caption      string   `json:"caption"`
}

type generateResp struct {
	Task     generator.TaskKind `json:"task"`
	Model    string             `json:"model"`
	Text     string             `json:"text"`
	HTML     string             `json:"html"`
	Sections map[string]string  `json:"sections,omitempty"`
	Score    *int               `json:"score,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	kind, err := generator.ParseTaskKind(chi.URLParam(r, "task"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	req, msg := s.decodeGenerate(r, kind)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	sess := sessionFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), GenerateTimeout)
	defer cancel()
	turn, err := sess.Run(ctx, req)
	if err != nil {
		s.writeGenerateError(w, kind, err)
		return
	}

	rec := store.NewRecord(string(kind), req.Topic, turn.Text, turn.Model)
	if err := s.history.Append(r.Context(), sess.Username, rec); err != nil {
		s.logger.Warn("save history failed", "username", sess.Username, "task", kind, "error", err)
	}

	resp := generateResp{
		Task:     kind,
		Model:    turn.Model,
		Text:     turn.Text,
		HTML:     renderHTML(turn.Text),
		Sections: generator.ParseSections(turn.Text, generator.LabelsFor(kind)),
	}
	if kind == generator.TaskScoreCaption {
		if n, ok := generator.ExtractScore(turn.Text); ok {
			resp.Score = &n
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeGenerate returns the request or a user-facing validation message.
func (s *Server) decodeGenerate(r *http.Request, kind generator.TaskKind) (generator.Request, string) {
	req := generator.Request{Kind: kind, Creativity: generator.DefaultCreativity}

	if kind == generator.TaskImageCaption {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return req, "multipart form with an image file is required"
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			return req, "image file is required"
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil || len(data) == 0 {
			return req, "image file is empty"
		}
		req.Image = data
		req.Topic = r.FormValue("topic")
		return req, ""
	}

	var body generateReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return req, err.Error()
	}
	if err := s.validate.Struct(body); err != nil {
		return req, "creativity must be between 0 and 1"
	}
	req.Topic = strings.TrimSpace(body.Topic)
	req.Timezone = body.Timezone
	req.Caption = strings.TrimSpace(body.Caption)
	if body.Creativity != nil {
		req.Creativity = *body.Creativity
	}
	req.HashtagCount = generator.DefaultHashtagCount
	if body.HashtagCount != nil {
		req.HashtagCount = *body.HashtagCount
	}

	switch kind {
	case generator.TaskScoreCaption:
		if req.Caption == "" {
			return req, "No caption entered."
		}
	default:
		if req.Topic == "" {
			return req, "Enter topic"
		}
	}
	return req, ""
}

func (s *Server) writeGenerateError(w http.ResponseWriter, kind generator.TaskKind, err error) {
	var exhausted *generator.ExhaustedError
	switch {
	case errors.As(err, &exhausted):
		for _, a := range exhausted.Attempts {
			s.logger.Debug("fallback trace", "task", kind, "model", a.Model, "error", a.Err)
		}
		s.logger.Error("generation failed", "task", kind, "attempts", len(exhausted.Attempts), "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, generator.ErrEmptyCaption), errors.Is(err, generator.ErrUnknownTask):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("generation failed", "task", kind, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// --- History & session ---

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecent
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	username := sessionFrom(r.Context()).Username
	recs, err := s.history.Recent(r.Context(), username, limit)
	if err != nil {
		s.logger.Error("load history failed", "username", username, "error", err)
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	if recs == nil {
		recs = []store.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": recs})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sess.ID,
		"username":   sess.Username,
		"last":       sess.Snapshot(),
	})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
