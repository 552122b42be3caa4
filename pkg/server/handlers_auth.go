package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/documind/documind/pkg/auth"
	"github.com/documind/documind/pkg/authstore"
	"github.com/documind/documind/pkg/rbac"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "Missing username or password"})
		return
	}

	user, err := s.users.VerifyUser(req.Username, req.Password)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "Bad username or password"})
		return
	}

	token, err := s.auth.IssueToken(auth.Claims{
		Username:    user.Username,
		UserID:      user.ID,
		Role:        user.Role,
		Permissions: user.Permissions,
	})
	if err != nil {
		s.logger.Error("Failed to issue token", "user", user.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token": token,
		"username":     user.Username,
		"role":         user.Role,
	})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.Users()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		RoleID   int64  `json:"role_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	var createdBy *int64
	if claims := auth.GetClaims(r); claims != nil {
		createdBy = &claims.UserID
	}

	if _, err := s.users.CreateUser(req.Username, req.Password, req.RoleID, createdBy); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeSuccess(w, "User created")
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	var req struct {
		RoleID int64 `json:"role_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	if err := s.users.UpdateUserRole(userID, req.RoleID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeSuccess(w, "User updated")
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	if err := s.users.DeleteUser(userID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeSuccess(w, "User deleted")
}

func (s *Server) handleAdminChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	var req struct {
		NewPassword string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "New password required")
		return
	}

	if err := s.users.UpdateUserPassword(userID, req.NewPassword, "", true); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeSuccess(w, "Password updated")
}

func (s *Server) handleChangeOwnPassword(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r)

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "Current and new password required")
		return
	}

	err := s.users.UpdateUserPassword(claims.UserID, req.NewPassword, req.CurrentPassword, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeSuccess(w, "Password updated")
}

func (s *Server) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := s.users.Roles()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, roles)
}

func (s *Server) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name            string                `json:"name"`
		Permissions     []string              `json:"permissions"`
		FilePermissions *rbac.FilePermissions `json:"file_permissions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if req.Name == "" || len(req.Permissions) == 0 {
		writeError(w, http.StatusBadRequest, "Name and permissions required")
		return
	}

	if _, err := s.users.CreateRole(req.Name, req.Permissions, req.FilePermissions); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeSuccess(w, "Role created")
}

func (s *Server) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	roleID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid role id")
		return
	}

	var req struct {
		Name            *string               `json:"name"`
		Permissions     []string              `json:"permissions"`
		FilePermissions *rbac.FilePermissions `json:"file_permissions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	err = s.users.UpdateRole(roleID, authstore.RoleUpdate{
		Name:            req.Name,
		Permissions:     req.Permissions,
		FilePermissions: req.FilePermissions,
	})
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, authstore.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	writeSuccess(w, "Role updated")
}

func (s *Server) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	roleID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid role id")
		return
	}

	if err := s.users.DeleteRole(roleID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeSuccess(w, "Role deleted")
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}
