package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/documind/documind/pkg/auth"
	"github.com/documind/documind/pkg/rbac"
	"github.com/documind/documind/pkg/uploads"
)

type fileEntry struct {
	Filename   string `json:"filename"`
	Path       string `json:"path"`
	Domain     string `json:"domain"`
	Category   string `json:"category"`
	Size       int64  `json:"size"`
	UploadedBy string `json:"uploaded_by"`
	UploadedAt string `json:"uploaded_at"`
	IsOwner    bool   `json:"is_owner"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	maxSize := s.uploads.MaxFileSizeBytes()
	if header.Size > maxSize {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf(
			"File too large. Maximum size is %dMB (File size: %.2fMB)",
			maxSize/(1024*1024), float64(header.Size)/(1024*1024)))
		return
	}

	if err := s.uploads.CheckQuota(claims.UserID, claims.Role); err != nil {
		if errors.Is(err, uploads.ErrQuotaExceeded) {
			quota, _ := s.uploads.QuotaFor(claims.UserID, claims.Role)
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": fmt.Sprintf(
					"Upload limit reached (%s). Delete some files to upload more.", quota),
				"quota": quota.String(),
			})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	filename := filepath.Base(header.Filename)
	incomingDir := s.cfg.Storage.IncomingDir
	if err := os.MkdirAll(incomingDir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	destPath := filepath.Join(incomingDir, filename)
	if _, err := os.Stat(destPath); err == nil {
		writeError(w, http.StatusConflict, fmt.Sprintf(
			"File %q already exists in incoming directory", filename))
		return
	}

	dest, err := os.Create(destPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if _, err := io.Copy(dest, file); err != nil {
		dest.Close()
		os.Remove(destPath)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	dest.Close()

	if _, err := s.uploads.Add(claims.UserID, filename, header.Size); err != nil {
		s.logger.Error("Failed to record upload", "file", filename, "error", err)
	}
	s.logger.Info("File uploaded", "file", filename,
		"size_kb", fmt.Sprintf("%.2f", float64(header.Size)/1024), "user", claims.Username)

	quota, _ := s.uploads.QuotaFor(claims.UserID, claims.Role)
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "success",
		"message": fmt.Sprintf(
			"File %q uploaded successfully and will be processed automatically", filename),
		"filename": filename,
		"quota":    quota.String(),
	})
}

func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r)

	quota, err := s.uploads.QuotaFor(claims.UserID, claims.Role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if quota.Unlimited {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"used":         nil,
			"limit":        nil,
			"remaining":    "unlimited",
			"quota_string": quota.String(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"used":         quota.Used,
		"limit":        quota.Limit,
		"remaining":    quota.Remaining,
		"quota_string": quota.String(),
	})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r)

	var files []fileEntry
	var err error
	if claims.Role == "Admin" {
		files, err = s.listAllFiles()
	} else {
		files, err = s.listUserFiles(claims)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"files": files,
		"count": len(files),
	})
}

// listAllFiles scans the whole sorted tree; files without an upload record
// belong to the system.
func (s *Server) listAllFiles() ([]fileEntry, error) {
	uploaderMap, err := s.uploads.UploaderMap()
	if err != nil {
		return nil, err
	}

	sortedDir := s.cfg.Storage.SortedDir
	files := make([]fileEntry, 0)
	err = filepath.WalkDir(sortedDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		relPath, err := filepath.Rel(sortedDir, path)
		if err != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)
		domain, category := splitDomainCategory(relPath)

		info, err := d.Info()
		if err != nil {
			return nil
		}
		uploader, ok := uploaderMap[d.Name()]
		if !ok {
			uploader = "System"
		}
		files = append(files, fileEntry{
			Filename:   d.Name(),
			Path:       relPath,
			Domain:     domain,
			Category:   category,
			Size:       info.Size(),
			UploadedBy: uploader,
			UploadedAt: info.ModTime().Format(time.RFC3339),
			IsOwner:    false,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// listUserFiles shows the user's own uploads: sorted files they can access
// plus anything still processing.
func (s *Server) listUserFiles(claims *auth.Claims) ([]fileEntry, error) {
	records, err := s.uploads.ForUser(claims.UserID)
	if err != nil {
		return nil, err
	}

	files := make([]fileEntry, 0, len(records))
	for _, rec := range records {
		if rec.SortedPath == "" {
			files = append(files, fileEntry{
				Filename:   rec.Filename,
				Path:       "incoming/" + rec.Filename,
				Domain:     "Processing",
				Category:   "Pending",
				Size:       rec.FileSize,
				UploadedBy: rec.Uploader,
				UploadedAt: rec.UploadedAt,
				IsOwner:    rec.UserID == claims.UserID,
			})
			continue
		}

		domain, category := splitDomainCategory(rec.SortedPath)
		if !s.policyAllows(claims.Role, domain, category) {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.cfg.Storage.SortedDir, rec.SortedPath)); err != nil {
			continue
		}
		files = append(files, fileEntry{
			Filename:   rec.Filename,
			Path:       rec.SortedPath,
			Domain:     domain,
			Category:   category,
			Size:       rec.FileSize,
			UploadedBy: rec.Uploader,
			UploadedAt: rec.UploadedAt,
			IsOwner:    rec.UserID == claims.UserID,
		})
	}
	return files, nil
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r)
	requestPath := chi.URLParam(r, "*")

	canDeleteAll := rbac.HasCapability(claims.Permissions, "files.delete.all")
	canDeleteOwn := rbac.HasCapability(claims.Permissions, "files.delete.own")
	if !canDeleteAll && !canDeleteOwn {
		writeError(w, http.StatusForbidden, "Permission denied: You cannot delete files")
		return
	}

	sortedDir := s.cfg.Storage.SortedDir
	incomingDir := s.cfg.Storage.IncomingDir

	var fullPath string
	var isIncoming bool
	if strings.HasPrefix(requestPath, "incoming/") {
		filename := strings.TrimPrefix(requestPath, "incoming/")
		fullPath = filepath.Join(incomingDir, filename)
		isIncoming = true

		if _, err := os.Stat(fullPath); err != nil {
			// The worker may have sorted the file before the record
			// caught up; look for it in the sorted tree.
			if match := findInSorted(sortedDir, filename); match != "" {
				fullPath = match
				isIncoming = false
			} else {
				writeError(w, http.StatusNotFound, "File not found")
				return
			}
		}
	} else {
		fullPath = filepath.Join(sortedDir, requestPath)

		absSorted, err := filepath.Abs(sortedDir)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		absPath, err := filepath.Abs(fullPath)
		if err != nil || !strings.HasPrefix(absPath, absSorted+string(filepath.Separator)) {
			writeError(w, http.StatusBadRequest, "Invalid file path")
			return
		}
		if _, err := os.Stat(fullPath); err != nil {
			writeError(w, http.StatusNotFound, "File not found")
			return
		}
	}

	var domain, category string
	if !isIncoming {
		if rel, err := filepath.Rel(sortedDir, fullPath); err == nil {
			domain, category = splitDomainCategory(filepath.ToSlash(rel))
		}
	} else {
		domain, category = splitDomainCategory(requestPath)
	}

	processing := domain == "incoming" || domain == "Processing"
	if !processing && !canDeleteAll {
		if !s.policyAllows(claims.Role, domain, category) {
			writeError(w, http.StatusForbidden,
				"Access denied: You do not have permission to delete files from this domain")
			return
		}
	}

	filename := filepath.Base(fullPath)
	if canDeleteOwn && !canDeleteAll {
		ownerID, tracked, err := s.uploads.OwnerOf(filename)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !tracked {
			writeError(w, http.StatusNotFound, "File not found in upload records")
			return
		}
		if ownerID != claims.UserID {
			writeError(w, http.StatusForbidden,
				"Permission denied: You can only delete your own files")
			return
		}
	}

	if err := os.Remove(fullPath); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Files still in incoming were never indexed.
	if !isIncoming && s.deindexer != nil {
		if err := s.deindexer.DeleteByPath(r.Context(), fullPath); err != nil {
			s.logger.Warn("Failed to de-index deleted file", "file", fullPath, "error", err)
		}
	}

	if err := s.uploads.Remove(filename); err != nil {
		s.logger.Warn("Failed to drop upload record", "file", filename, "error", err)
	}

	s.logger.Info("File deleted", "file", requestPath, "user", claims.Username)

	quota, _ := s.uploads.QuotaFor(claims.UserID, claims.Role)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "File deleted successfully",
		"quota":   quota.String(),
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	match := findInSorted(s.cfg.Storage.SortedDir, filename)
	if match == "" {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	http.ServeFile(w, r, match)
}

// findInSorted locates a filename anywhere under the sorted tree.
func findInSorted(sortedDir, filename string) string {
	var match string
	filepath.WalkDir(sortedDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if d.Name() == filename {
			match = path
			return filepath.SkipAll
		}
		return nil
	})
	return match
}

func splitDomainCategory(relPath string) (string, string) {
	parts := strings.Split(relPath, "/")
	domain := "Unknown"
	category := "Other"
	if len(parts) > 0 && parts[0] != "" {
		domain = parts[0]
	}
	if len(parts) > 2 {
		category = parts[1]
	}
	return domain, category
}
