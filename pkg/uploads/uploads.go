// Package uploads tracks per-user upload records and quotas.
//
// Records are created when a file lands in the incoming directory with a
// NULL sorted_path; the ingest worker fills the path in once the file is
// classified and moved. Quotas apply to every role except Admin.
package uploads

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrQuotaExceeded is returned when a non-Admin user is at their upload cap.
var ErrQuotaExceeded = errors.New("upload limit reached")

// Record is one tracked upload.
type Record struct {
	ID         int64  `json:"id"`
	UserID     int64  `json:"user_id"`
	Filename   string `json:"filename"`
	SortedPath string `json:"sorted_path,omitempty"`
	FileSize   int64  `json:"file_size"`
	UploadedAt string `json:"uploaded_at"`
	Uploader   string `json:"uploaded_by,omitempty"`
}

// Quota is a user's upload allowance.
type Quota struct {
	Used      int  `json:"used"`
	Limit     int  `json:"limit"`
	Remaining int  `json:"remaining"`
	Unlimited bool `json:"-"`
}

// String renders the quota as shown to users, "3/10" or "Unlimited".
func (q Quota) String() string {
	if q.Unlimited {
		return "Unlimited"
	}
	return fmt.Sprintf("%d/%d", q.Used, q.Limit)
}

// Tracker stores upload records in the shared auth database.
type Tracker struct {
	db           *sql.DB
	maxFiles     int
	maxSizeBytes int64
}

// New creates the user_uploads table if needed.
func New(db *sql.DB, maxFilesPerUser, maxFileSizeMB int) (*Tracker, error) {
	schema := `
	CREATE TABLE IF NOT EXISTS user_uploads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		filename TEXT NOT NULL,
		sorted_path TEXT,
		file_size INTEGER NOT NULL,
		uploaded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users (id)
	);`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize uploads schema: %w", err)
	}
	return &Tracker{
		db:           db,
		maxFiles:     maxFilesPerUser,
		maxSizeBytes: int64(maxFileSizeMB) * 1024 * 1024,
	}, nil
}

// MaxFileSizeBytes is the single-upload size cap.
func (t *Tracker) MaxFileSizeBytes() int64 {
	return t.maxSizeBytes
}

// QuotaFor returns the user's current allowance. Admin is unlimited.
func (t *Tracker) QuotaFor(userID int64, role string) (Quota, error) {
	if role == "Admin" {
		return Quota{Unlimited: true}, nil
	}
	used, err := t.countFor(userID)
	if err != nil {
		return Quota{}, err
	}
	return Quota{
		Used:      used,
		Limit:     t.maxFiles,
		Remaining: t.maxFiles - used,
	}, nil
}

// CheckQuota fails with ErrQuotaExceeded when the user is at the cap.
func (t *Tracker) CheckQuota(userID int64, role string) error {
	quota, err := t.QuotaFor(userID, role)
	if err != nil {
		return err
	}
	if !quota.Unlimited && quota.Used >= quota.Limit {
		return fmt.Errorf("%s: %w", quota, ErrQuotaExceeded)
	}
	return nil
}

// Add records a fresh upload with a pending sorted path.
func (t *Tracker) Add(userID int64, filename string, fileSize int64) (int64, error) {
	res, err := t.db.Exec(`
		INSERT INTO user_uploads (user_id, filename, sorted_path, file_size)
		VALUES (?, ?, NULL, ?)`, userID, filename, fileSize)
	if err != nil {
		return 0, fmt.Errorf("failed to record upload: %w", err)
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// FillSortedPath stamps the final location onto pending records for the
// filename. Paths are stored with forward slashes.
func (t *Tracker) FillSortedPath(filename, sortedPath string) (bool, error) {
	sortedPath = strings.ReplaceAll(sortedPath, "\\", "/")
	res, err := t.db.Exec(`
		UPDATE user_uploads SET sorted_path = ?
		WHERE filename = ? AND (sorted_path IS NULL OR sorted_path = '')`,
		sortedPath, filename)
	if err != nil {
		return false, fmt.Errorf("failed to update sorted path: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ForUser lists a user's uploads, newest first, with the uploader joined.
func (t *Tracker) ForUser(userID int64) ([]Record, error) {
	rows, err := t.db.Query(`
		SELECT uf.id, uf.user_id, uf.filename, uf.sorted_path, uf.file_size, uf.uploaded_at, u.username
		FROM user_uploads uf JOIN users u ON uf.user_id = u.id
		WHERE uf.user_id = ?
		ORDER BY uf.uploaded_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// UploaderMap returns filename to uploader for every tracked upload, used
// to annotate the admin's full file listing.
func (t *Tracker) UploaderMap() (map[string]string, error) {
	rows, err := t.db.Query(`
		SELECT uf.filename, u.username
		FROM user_uploads uf JOIN users u ON uf.user_id = u.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to map uploaders: %w", err)
	}
	defer rows.Close()

	uploaders := make(map[string]string)
	for rows.Next() {
		var filename, username string
		if err := rows.Scan(&filename, &username); err != nil {
			return nil, fmt.Errorf("failed to scan uploader: %w", err)
		}
		uploaders[filename] = username
	}
	return uploaders, rows.Err()
}

// OwnerOf returns the uploading user for a filename; ok is false when the
// file was never tracked (CLI or drop-dir ingestion).
func (t *Tracker) OwnerOf(filename string) (int64, bool, error) {
	var userID int64
	err := t.db.QueryRow(
		`SELECT user_id FROM user_uploads WHERE filename = ?`, filename).Scan(&userID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up upload owner: %w", err)
	}
	return userID, true, nil
}

// Remove drops every record for a filename.
func (t *Tracker) Remove(filename string) error {
	if _, err := t.db.Exec(
		`DELETE FROM user_uploads WHERE filename = ?`, filename); err != nil {
		return fmt.Errorf("failed to remove upload record: %w", err)
	}
	return nil
}

func (t *Tracker) countFor(userID int64) (int, error) {
	var count int
	err := t.db.QueryRow(
		`SELECT COUNT(*) FROM user_uploads WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count uploads: %w", err)
	}
	return count, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var r Record
		var sortedPath sql.NullString
		if err := rows.Scan(&r.ID, &r.UserID, &r.Filename, &sortedPath,
			&r.FileSize, &r.UploadedAt, &r.Uploader); err != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", err)
		}
		if sortedPath.Valid {
			r.SortedPath = strings.ReplaceAll(sortedPath.String, "\\", "/")
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
