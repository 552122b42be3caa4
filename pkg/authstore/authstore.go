// Package authstore persists users and roles in SQLite.
//
// Passwords are bcrypt-hashed. The Admin role (wildcard permissions) is
// bootstrapped at open, is immutable and undeletable, and the last Admin
// user can never be removed. Role file_permissions blobs override the
// builtin rbac table.
package authstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"github.com/documind/documind/pkg/config"
	"github.com/documind/documind/pkg/rbac"
)

// Sentinel errors callers map to HTTP statuses.
var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicate        = errors.New("already exists")
	ErrBadCredentials   = errors.New("invalid username or password")
	ErrAdminImmutable   = errors.New("the Admin role cannot be modified or deleted")
	ErrLastAdmin        = errors.New("cannot delete the last admin user")
	ErrRoleInUse        = errors.New("role has users assigned")
	ErrPasswordTooShort = errors.New("password too short")
	ErrWrongPassword    = errors.New("current password is incorrect")
)

// Role is a named permission set.
type Role struct {
	ID              int64                 `json:"id"`
	Name            string                `json:"name"`
	Permissions     []string              `json:"permissions"`
	FilePermissions *rbac.FilePermissions `json:"file_permissions,omitempty"`
}

// User is an account joined with its role.
type User struct {
	ID              int64                 `json:"id"`
	Username        string                `json:"username"`
	RoleID          int64                 `json:"role_id"`
	Role            string                `json:"role"`
	Permissions     []string              `json:"permissions"`
	FilePermissions *rbac.FilePermissions `json:"file_permissions,omitempty"`
}

// Store is the SQLite-backed user/role store.
type Store struct {
	db     *sql.DB
	cfg    *config.AuthConfig
	logger *slog.Logger
}

// Open opens (creating if needed) the auth database and bootstraps the Admin
// role and the configured admin account.
func Open(cfg *config.AuthConfig) (*Store, error) {
	if cfg == nil {
		cfg = &config.AuthConfig{}
		cfg.SetDefaults()
	}

	if dir := filepath.Dir(cfg.Database); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", cfg.Database)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open auth database: %w", err)
	}

	s := &Store{
		db:     db,
		cfg:    cfg,
		logger: slog.Default().With("component", "authstore"),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.bootstrap(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// DB exposes the underlying handle so sibling stores (upload tracker) can
// share the same database file and connection pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS roles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL,
		permissions TEXT NOT NULL,
		file_permissions TEXT
	);
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		role_id INTEGER NOT NULL,
		created_by INTEGER,
		FOREIGN KEY (role_id) REFERENCES roles (id)
	);`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize auth schema: %w", err)
	}
	return nil
}

// bootstrap ensures the Admin role and the configured admin account exist.
func (s *Store) bootstrap() error {
	var adminRoleID int64
	err := s.db.QueryRow(`SELECT id FROM roles WHERE name = 'Admin'`).Scan(&adminRoleID)
	if err == sql.ErrNoRows {
		s.logger.Info("Creating default Admin role")
		res, err := s.db.Exec(
			`INSERT INTO roles (name, permissions) VALUES ('Admin', '["*"]')`)
		if err != nil {
			return fmt.Errorf("failed to create Admin role: %w", err)
		}
		adminRoleID, _ = res.LastInsertId()
	} else if err != nil {
		return fmt.Errorf("failed to look up Admin role: %w", err)
	}

	var count int
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM users WHERE username = ?`, s.cfg.AdminUsername).Scan(&count); err != nil {
		return fmt.Errorf("failed to check admin account: %w", err)
	}
	if count == 0 {
		s.logger.Info("Creating default admin account", "username", s.cfg.AdminUsername)
		hash, err := bcrypt.GenerateFromPassword([]byte(s.cfg.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash admin password: %w", err)
		}
		if _, err := s.db.Exec(
			`INSERT INTO users (username, password_hash, role_id) VALUES (?, ?, ?)`,
			s.cfg.AdminUsername, string(hash), adminRoleID); err != nil {
			return fmt.Errorf("failed to create admin account: %w", err)
		}
	}

	return nil
}

// CreateRole inserts a new role.
func (s *Store) CreateRole(name string, permissions []string, filePerms *rbac.FilePermissions) (int64, error) {
	if name == "" || len(permissions) == 0 {
		return 0, fmt.Errorf("name and permissions are required")
	}

	permsJSON, err := json.Marshal(permissions)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal permissions: %w", err)
	}

	var filePermsJSON interface{}
	if filePerms != nil {
		data, err := json.Marshal(filePerms)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal file permissions: %w", err)
		}
		filePermsJSON = string(data)
	}

	res, err := s.db.Exec(
		`INSERT INTO roles (name, permissions, file_permissions) VALUES (?, ?, ?)`,
		name, string(permsJSON), filePermsJSON)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("role %q: %w", name, ErrDuplicate)
		}
		return 0, fmt.Errorf("failed to create role: %w", err)
	}

	id, _ := res.LastInsertId()
	return id, nil
}

// Roles lists every role.
func (s *Store) Roles() ([]Role, error) {
	rows, err := s.db.Query(`SELECT id, name, permissions, file_permissions FROM roles`)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// RoleByID fetches one role.
func (s *Store) RoleByID(id int64) (*Role, error) {
	row := s.db.QueryRow(
		`SELECT id, name, permissions, file_permissions FROM roles WHERE id = ?`, id)
	role, err := scanRole(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("role %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// RoleUpdate carries the optional fields of a role update.
type RoleUpdate struct {
	Name            *string
	Permissions     []string
	FilePermissions *rbac.FilePermissions
}

// UpdateRole applies a partial update. The Admin role is immutable.
func (s *Store) UpdateRole(id int64, update RoleUpdate) error {
	role, err := s.RoleByID(id)
	if err != nil {
		return err
	}
	if role.Name == "Admin" {
		return ErrAdminImmutable
	}

	if update.Name == nil && update.Permissions == nil && update.FilePermissions == nil {
		return fmt.Errorf("no updates provided")
	}

	query := `UPDATE roles SET `
	var args []interface{}
	if update.Name != nil {
		query += `name = ?, `
		args = append(args, *update.Name)
	}
	if update.Permissions != nil {
		data, err := json.Marshal(update.Permissions)
		if err != nil {
			return fmt.Errorf("failed to marshal permissions: %w", err)
		}
		query += `permissions = ?, `
		args = append(args, string(data))
	}
	if update.FilePermissions != nil {
		data, err := json.Marshal(update.FilePermissions)
		if err != nil {
			return fmt.Errorf("failed to marshal file permissions: %w", err)
		}
		query += `file_permissions = ?, `
		args = append(args, string(data))
	}
	query = query[:len(query)-2] + ` WHERE id = ?`
	args = append(args, id)

	if _, err := s.db.Exec(query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("role name: %w", ErrDuplicate)
		}
		return fmt.Errorf("failed to update role: %w", err)
	}
	return nil
}

// DeleteRole removes a role. Admin and roles with assigned users survive.
func (s *Store) DeleteRole(id int64) error {
	role, err := s.RoleByID(id)
	if err != nil {
		return err
	}
	if role.Name == "Admin" {
		return ErrAdminImmutable
	}

	var userCount int
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM users WHERE role_id = ?`, id).Scan(&userCount); err != nil {
		return fmt.Errorf("failed to count role users: %w", err)
	}
	if userCount > 0 {
		return fmt.Errorf("%d user(s) assigned: %w", userCount, ErrRoleInUse)
	}

	if _, err := s.db.Exec(`DELETE FROM roles WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	return nil
}

// CreateUser inserts a new account with a bcrypt-hashed password.
func (s *Store) CreateUser(username, password string, roleID int64, createdBy *int64) (int64, error) {
	if username == "" || password == "" {
		return 0, fmt.Errorf("username and password required")
	}
	if len(password) < s.cfg.MinPasswordLength {
		return 0, fmt.Errorf("minimum %d characters: %w", s.cfg.MinPasswordLength, ErrPasswordTooShort)
	}

	if _, err := s.RoleByID(roleID); err != nil {
		return 0, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("failed to hash password: %w", err)
	}

	res, err := s.db.Exec(
		`INSERT INTO users (username, password_hash, role_id, created_by) VALUES (?, ?, ?, ?)`,
		username, string(hash), roleID, createdBy)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("username %q: %w", username, ErrDuplicate)
		}
		return 0, fmt.Errorf("failed to create user: %w", err)
	}

	id, _ := res.LastInsertId()
	return id, nil
}

// VerifyUser checks credentials and returns the account with its role.
func (s *Store) VerifyUser(username, password string) (*User, error) {
	var user User
	var hash string
	var filePermsRaw sql.NullString
	var permsRaw string

	err := s.db.QueryRow(`
		SELECT u.id, u.username, u.password_hash, u.role_id, r.name, r.permissions, r.file_permissions
		FROM users u JOIN roles r ON u.role_id = r.id
		WHERE u.username = ?`, username).
		Scan(&user.ID, &user.Username, &hash, &user.RoleID, &user.Role, &permsRaw, &filePermsRaw)
	if err == sql.ErrNoRows {
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, ErrBadCredentials
	}

	if err := json.Unmarshal([]byte(permsRaw), &user.Permissions); err != nil {
		return nil, fmt.Errorf("corrupt permissions for role %s: %w", user.Role, err)
	}
	user.FilePermissions = parseFilePerms(filePermsRaw)
	return &user, nil
}

// UserByUsername fetches an account with its role joined.
func (s *Store) UserByUsername(username string) (*User, error) {
	return s.userByWhere(`u.username = ?`, username)
}

// UserByID fetches an account with its role joined.
func (s *Store) UserByID(id int64) (*User, error) {
	return s.userByWhere(`u.id = ?`, id)
}

func (s *Store) userByWhere(where string, arg interface{}) (*User, error) {
	var user User
	var permsRaw string
	var filePermsRaw sql.NullString

	err := s.db.QueryRow(`
		SELECT u.id, u.username, u.role_id, r.name, r.permissions, r.file_permissions
		FROM users u JOIN roles r ON u.role_id = r.id
		WHERE `+where, arg).
		Scan(&user.ID, &user.Username, &user.RoleID, &user.Role, &permsRaw, &filePermsRaw)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := json.Unmarshal([]byte(permsRaw), &user.Permissions); err != nil {
		return nil, fmt.Errorf("corrupt permissions for role %s: %w", user.Role, err)
	}
	user.FilePermissions = parseFilePerms(filePermsRaw)
	return &user, nil
}

// Users lists every account.
func (s *Store) Users() ([]User, error) {
	rows, err := s.db.Query(`
		SELECT u.id, u.username, u.role_id, r.name
		FROM users u JOIN roles r ON u.role_id = r.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.RoleID, &u.Role); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUserRole moves a user to another role.
func (s *Store) UpdateUserRole(userID, roleID int64) error {
	if _, err := s.RoleByID(roleID); err != nil {
		return err
	}
	res, err := s.db.Exec(`UPDATE users SET role_id = ? WHERE id = ?`, roleID, userID)
	if err != nil {
		return fmt.Errorf("failed to update user role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	return nil
}

// DeleteUser removes an account. The last Admin user is protected.
func (s *Store) DeleteUser(id int64) error {
	user, err := s.UserByID(id)
	if err != nil {
		return err
	}

	if user.Role == "Admin" {
		var adminCount int
		if err := s.db.QueryRow(`
			SELECT COUNT(*) FROM users u JOIN roles r ON u.role_id = r.id
			WHERE r.name = 'Admin'`).Scan(&adminCount); err != nil {
			return fmt.Errorf("failed to count admin users: %w", err)
		}
		if adminCount <= 1 {
			return ErrLastAdmin
		}
	}

	if _, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// UpdateUserPassword changes a password. Non-admin callers must present the
// current password; admins may override.
func (s *Store) UpdateUserPassword(userID int64, newPassword, currentPassword string, isAdmin bool) error {
	if len(newPassword) < s.cfg.MinPasswordLength {
		return fmt.Errorf("minimum %d characters: %w", s.cfg.MinPasswordLength, ErrPasswordTooShort)
	}

	if !isAdmin {
		var hash string
		err := s.db.QueryRow(`SELECT password_hash FROM users WHERE id = ?`, userID).Scan(&hash)
		if err == sql.ErrNoRows {
			return fmt.Errorf("user %d: %w", userID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to load user: %w", err)
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(currentPassword)) != nil {
			return ErrWrongPassword
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	res, err := s.db.Exec(`UPDATE users SET password_hash = ? WHERE id = ?`, string(hash), userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	return nil
}

// FilePermissions implements rbac.Resolver: stored role policies override
// the builtin table. Lookup failures fall back to the builtin table.
func (s *Store) FilePermissions(role string) (*rbac.FilePermissions, bool) {
	var raw sql.NullString
	err := s.db.QueryRow(`SELECT file_permissions FROM roles WHERE name = ?`, role).Scan(&raw)
	if err != nil {
		return nil, false
	}
	perms := parseFilePerms(raw)
	return perms, perms != nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRole(row rowScanner) (Role, error) {
	var role Role
	var permsRaw string
	var filePermsRaw sql.NullString

	if err := row.Scan(&role.ID, &role.Name, &permsRaw, &filePermsRaw); err != nil {
		if err == sql.ErrNoRows {
			return Role{}, err
		}
		return Role{}, fmt.Errorf("failed to scan role: %w", err)
	}

	if err := json.Unmarshal([]byte(permsRaw), &role.Permissions); err != nil {
		return Role{}, fmt.Errorf("corrupt permissions for role %s: %w", role.Name, err)
	}
	role.FilePermissions = parseFilePerms(filePermsRaw)
	return role, nil
}

func parseFilePerms(raw sql.NullString) *rbac.FilePermissions {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var perms rbac.FilePermissions
	if err := json.Unmarshal([]byte(raw.String), &perms); err != nil {
		return nil
	}
	return &perms
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
