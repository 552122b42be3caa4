package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/documind/documind/pkg/categories"
	"github.com/documind/documind/pkg/classifier"
)

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "OK",
		"message": "Server is running",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var chunkCount uint64
	if s.store != nil {
		if count, err := s.store.Count(r.Context(), s.collection); err == nil {
			chunkCount = count
		}
	}

	sortedFiles := 0
	domains := make([]string, 0)
	if entries, err := os.ReadDir(s.cfg.Storage.SortedDir); err == nil {
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			domains = append(domains, entry.Name())
			filepath.WalkDir(filepath.Join(s.cfg.Storage.SortedDir, entry.Name()),
				func(path string, d os.DirEntry, err error) error {
					if err == nil && !d.IsDir() {
						sortedFiles++
					}
					return nil
				})
		}
	}

	available := false
	if s.llm != nil {
		available = s.llm.Available(r.Context())
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"database_count":   chunkCount,
		"sorted_files":     sortedFiles,
		"categories":       domains,
		"ollama_available": available,
	})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("cache") == "false" {
		if err := s.analytics.ClearCache(r.Context()); err != nil {
			s.logger.Warn("Failed to clear analytics cache", "error", err)
		}
	}

	stats, err := s.analytics.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleRecentUploads(w http.ResponseWriter, r *http.Request) {
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			days = parsed
		}
	}

	recent, err := s.analytics.RecentUploads(r.Context(), days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"recent_files": recent})
}

func (s *Server) handleClearAnalyticsCache(w http.ResponseWriter, r *http.Request) {
	if err := s.analytics.ClearCache(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(w, "Analytics cache cleared")
}

func (s *Server) handleDuplicates(w http.ResponseWriter, r *http.Request) {
	groups, err := s.duplicates.Groups(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"duplicates": groups,
		"count":      len(groups),
	})
}

func (s *Server) handleDeleteDuplicate(w http.ResponseWriter, r *http.Request) {
	fileHash := chi.URLParam(r, "hash")

	var req struct {
		Filepath string `json:"filepath"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Filepath == "" {
		writeError(w, http.StatusBadRequest, "filepath is required")
		return
	}

	if err := s.duplicates.Remove(r.Context(), fileHash, req.Filepath); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to remove duplicate")
		return
	}
	writeSuccess(w, "Duplicate removed")
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	domain := r.URL.Query().Get("domain")
	if domain != "" {
		merged, err := s.categories.ForDomain(r.Context(), domain,
			classifier.BuiltinCategoryKeywords(domain))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"domain":     domain,
			"categories": merged,
		})
		return
	}

	custom, err := s.categories.AllCustom(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"custom_categories": custom})
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Domain       string   `json:"domain"`
		CategoryName string   `json:"category_name"`
		Keywords     []string `json:"keywords"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if req.Domain == "" || req.CategoryName == "" || len(req.Keywords) == 0 {
		writeError(w, http.StatusBadRequest, "domain, category_name, and keywords are required")
		return
	}

	if err := s.categories.Add(r.Context(), req.Domain, req.CategoryName, req.Keywords); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// New categories change the analytics breakdown.
	if s.analytics != nil {
		s.analytics.ClearCache(r.Context())
	}
	writeSuccess(w, fmt.Sprintf("Category %q added to domain %q", req.CategoryName, req.Domain))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	category := chi.URLParam(r, "category")

	if err := s.categories.Delete(r.Context(), domain, category); err != nil {
		if errors.Is(err, categories.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Category not found or failed to delete")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if s.analytics != nil {
		s.analytics.ClearCache(r.Context())
	}
	writeSuccess(w, fmt.Sprintf("Category %q deleted from domain %q", category, domain))
}
