// Package storage persists uploads, converted audio and job records on the
// local filesystem. The directory tree is the single source of truth; there
// is no in-memory index, every operation goes to disk.
package storage

import (
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/audiolift/api/internal/model"
)

// Subdirectories created under the base storage directory.
const (
	UploadDirName    = "uploads"
	ProcessedDirName = "processed"
	TempDirName      = "temp"
)

// System mime tables vary between images; pin the types this service
// stores and serves.
func init() {
	for ext, typ := range map[string]string{
		".mp4": "video/mp4",
		".avi": "video/x-msvideo",
		".mov": "video/quicktime",
		".wmv": "video/x-ms-wmv",
		".mkv": "video/x-matroska",
		".flv": "video/x-flv",
		".mp3": "audio/mpeg",
	} {
		_ = mime.AddExtensionType(ext, typ)
	}
}

// FileMetadata describes a stored file as reported by the filesystem.
type FileMetadata struct {
	Filename    string
	ContentType string
	Size        int64
	CreatedAt   time.Time
	ModifiedAt  time.Time
}

// Store handles byte-level persistence rooted at a base directory.
type Store struct {
	baseDir      string
	uploadDir    string
	processedDir string
	tempDir      string
}

// New creates a Store rooted at baseDir, creating the uploads, processed and
// temp subdirectories if they do not exist.
func New(baseDir string) (*Store, error) {
	s := &Store{
		baseDir:      baseDir,
		uploadDir:    filepath.Join(baseDir, UploadDirName),
		processedDir: filepath.Join(baseDir, ProcessedDirName),
		tempDir:      filepath.Join(baseDir, TempDirName),
	}
	for _, dir := range []string{s.uploadDir, s.processedDir, s.tempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &model.StorageError{Op: "create directory", Path: dir, Err: err}
		}
	}
	return s, nil
}

// BaseDir returns the storage root.
func (s *Store) BaseDir() string { return s.baseDir }

// UploadDir returns the directory holding raw uploads awaiting processing.
func (s *Store) UploadDir() string { return s.uploadDir }

// ProcessedDir returns the directory holding per-job output directories.
func (s *Store) ProcessedDir() string { return s.processedDir }

// TempDir returns the scratch directory.
func (s *Store) TempDir() string { return s.tempDir }

// UploadPath returns the full path for an upload with the given file id.
func (s *Store) UploadPath(fileID string) string {
	return filepath.Join(s.uploadDir, fileID)
}

// JobDir returns the per-job output directory under processed/.
func (s *Store) JobDir(jobID string) string {
	return filepath.Join(s.processedDir, jobID)
}

// Save writes content to path, creating parent directories as needed. The
// bytes go to a temporary file first and are renamed into place, so a
// concurrent reader never observes a partially written file. Returns the
// number of bytes written.
func (s *Store) Save(content []byte, path string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, &model.StorageError{Op: "save file", Path: path, Err: err}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return 0, &model.StorageError{Op: "save file", Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return 0, &model.StorageError{Op: "save file", Path: path, Err: err}
	}
	return int64(len(content)), nil
}

// ReadMetadata returns filesystem metadata for the file at path. The content
// type is derived from the filename extension and falls back to
// application/octet-stream.
func (s *Store) ReadMetadata(path string) (*FileMetadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &model.StorageError{Op: "read metadata for", Path: path, Err: err}
	}
	filename := filepath.Base(path)
	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &FileMetadata{
		Filename:    filename,
		ContentType: contentType,
		Size:        info.Size(),
		// Portable stat exposes no creation time, so mtime stands in for both.
		CreatedAt:  info.ModTime(),
		ModifiedAt: info.ModTime(),
	}, nil
}

// Size returns the size in bytes of the file at path.
func (s *Store) Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, &model.StorageError{Op: "stat file", Path: path, Err: err}
	}
	return info.Size(), nil
}

// Exists reports whether a file exists at path.
func (s *Store) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Delete removes the file at path. Deleting a path that does not exist is a
// no-op, so Delete is safe to retry.
func (s *Store) Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return &model.StorageError{Op: "delete file", Path: path, Err: err}
	}
	return nil
}

// Move relocates a file, creating destination directories as needed, and
// returns the destination path.
func (s *Store) Move(source, destination string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return "", &model.StorageError{Op: "move file to", Path: destination, Err: err}
	}
	if err := os.Rename(source, destination); err != nil {
		return "", &model.StorageError{Op: "move file", Path: source, Err: err}
	}
	return destination, nil
}

// ListOlderThan walks dir recursively and returns every regular file whose
// modification time is older than now minus threshold. A missing directory
// yields an empty result rather than an error.
func (s *Store) ListOlderThan(dir string, threshold time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-threshold)
	var stale []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().Before(cutoff) {
			stale = append(stale, path)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &model.StorageError{Op: "list directory", Path: dir, Err: err}
	}
	return stale, nil
}
