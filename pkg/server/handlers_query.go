package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/documind/documind/pkg/auth"
	"github.com/documind/documind/pkg/chats"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r)

	var req struct {
		Query  string `json:"query"`
		ChatID string `json:"chat_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "Empty query")
		return
	}

	resp, err := s.engine.Answer(r.Context(), req.Query, claims.Role)
	if err != nil {
		s.logger.Error("Query failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if req.ChatID != "" && s.chats != nil {
		if err := s.chats.RecordExchange(req.ChatID, req.Query, resp); err != nil {
			s.logger.Warn("Failed to record chat exchange", "chat", req.ChatID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text     string `json:"text"`
		Filename string `json:"filename"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	req.Filename = strings.TrimSpace(req.Filename)
	if req.Text == "" && req.Filename == "" {
		writeError(w, http.StatusBadRequest, "Provide at least text or filename")
		return
	}

	result := s.classifier.Classify(r.Context(), req.Text, req.Filename)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r)

	list, err := s.chats.ForUser(claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r)

	var req struct {
		Title string `json:"title"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	meta, err := s.chats.Create(req.Title, claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	if err := s.chats.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleChatMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := s.chats.Messages(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (s *Server) handleUpdateChatTitle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		writeError(w, http.StatusBadRequest, "Title required")
		return
	}

	if err := s.chats.UpdateTitle(chi.URLParam(r, "id"), req.Title); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, chats.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleAllChats(w http.ResponseWriter, r *http.Request) {
	all, err := s.chats.All(func(userID int64) string {
		user, err := s.users.UserByID(userID)
		if err != nil {
			return ""
		}
		return user.Username
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) handleExportChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Format      string          `json:"format"`
		ChatHistory []chats.Message `json:"chat_history"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if req.Format == "" {
		req.Format = "json"
	}

	switch req.Format {
	case "json":
		writeJSON(w, http.StatusOK, chats.ExportJSON(req.ChatHistory))
	case "txt":
		writeJSON(w, http.StatusOK, map[string]string{
			"content": chats.ExportText(req.ChatHistory),
			"format":  "txt",
		})
	default:
		writeError(w, http.StatusBadRequest, "Unsupported format")
	}
}
