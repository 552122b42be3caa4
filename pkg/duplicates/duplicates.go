// Package duplicates finds files in the sorted tree with identical content.
//
// Ingestion already skips exact re-submissions, but copies renamed before
// upload still land as separate files. Groups are computed by hashing the
// sorted tree, so the report reflects what is actually on disk.
package duplicates

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// KV is the hash-index slice of the key-value store.
type KV interface {
	AllFileHashes(ctx context.Context) (map[string]string, error)
	DeleteFileHash(ctx context.Context, fileHash string) error
	DeleteFileMetadata(ctx context.Context, fileHash string) error
}

// Group is a set of files sharing one content hash.
type Group struct {
	Hash  string   `json:"hash"`
	Files []string `json:"files"`
	Count int      `json:"count"`
}

// Detector scans the sorted tree for duplicate content.
type Detector struct {
	sortedDir string
	kv        KV
	deindex   func(ctx context.Context, path string) error
	logger    *slog.Logger
}

// New builds a detector. deindex removes a file's chunks from the vector
// store and may be nil.
func New(sortedDir string, kv KV, deindex func(ctx context.Context, path string) error) *Detector {
	return &Detector{
		sortedDir: sortedDir,
		kv:        kv,
		deindex:   deindex,
		logger:    slog.Default().With("component", "duplicates"),
	}
}

// Groups hashes every file under the sorted tree and returns the groups
// with more than one member, largest first.
func (d *Detector) Groups(ctx context.Context) ([]Group, error) {
	byHash := map[string][]string{}

	err := filepath.WalkDir(d.sortedDir, func(path string, entry os.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		hash, err := hashFile(path)
		if err != nil {
			d.logger.Warn("Failed to hash file", "file", path, "error", err)
			return nil
		}
		byHash[hash] = append(byHash[hash], path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan sorted tree: %w", err)
	}

	groups := make([]Group, 0)
	for hash, files := range byHash {
		if len(files) < 2 {
			continue
		}
		sort.Strings(files)
		groups = append(groups, Group{Hash: hash, Files: files, Count: len(files)})
	}
	sort.Slice(groups, func(a, b int) bool {
		if groups[a].Count != groups[b].Count {
			return groups[a].Count > groups[b].Count
		}
		return groups[a].Hash < groups[b].Hash
	})
	return groups, nil
}

// Count returns the number of duplicate groups.
func (d *Detector) Count(ctx context.Context) (int, error) {
	groups, err := d.Groups(ctx)
	if err != nil {
		return 0, err
	}
	return len(groups), nil
}

// Remove deletes one member of a duplicate group: the file itself, its
// chunks, and the hash-index entry when it points at this path.
func (d *Detector) Remove(ctx context.Context, fileHash, path string) error {
	if d.deindex != nil {
		if err := d.deindex(ctx, path); err != nil {
			d.logger.Warn("Failed to de-index duplicate", "file", path, "error", err)
		}
	}

	if tracked, err := d.kv.AllFileHashes(ctx); err == nil {
		if tracked[fileHash] == path {
			if err := d.kv.DeleteFileHash(ctx, fileHash); err != nil {
				return err
			}
			if err := d.kv.DeleteFileMetadata(ctx, fileHash); err != nil {
				d.logger.Warn("Failed to drop file metadata", "hash", fileHash, "error", err)
			}
		}
	}

	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove duplicate file: %w", err)
		}
		d.logger.Info("Removed duplicate file", "file", path)
	}
	return nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
