package storage

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"spriteforge/internal/services"
)

const (
	jobsDir      = "jobs"
	filesPrefix  = "/files/"
	lockFileName = ".lock"
)

// Job tree subdirectories created by EnsureJobTree.
const (
	UploadsDir   = "uploads"
	ArtifactsDir = "artifacts"
	PreviewsDir  = "previews"
)

// Store resolves job-scoped paths beneath a data root.
type Store struct {
	dataDir string
	baseURL string
}

// New constructs a Store. dataDir is made absolute; a trailing slash on
// baseURL is ignored.
func New(dataDir, baseURL string) (*Store, error) {
	if strings.TrimSpace(dataDir) == "" {
		return nil, errors.New("storage: data dir is required")
	}
	abs, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve data dir: %w", err)
	}
	return &Store{
		dataDir: abs,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}, nil
}

// DataDir returns the absolute data root.
func (s *Store) DataDir() string {
	return s.dataDir
}

// JobDir returns the directory owned by jobID.
func (s *Store) JobDir(jobID string) string {
	return filepath.Join(s.dataDir, jobsDir, jobID)
}

// JobPath joins rel segments beneath the job directory.
func (s *Store) JobPath(jobID string, rel ...string) string {
	parts := append([]string{s.JobDir(jobID)}, rel...)
	return filepath.Join(parts...)
}

// EnsureJobTree creates the uploads, artifacts, and previews directories.
func (s *Store) EnsureJobTree(jobID string) error {
	if err := validateJobID(jobID); err != nil {
		return err
	}
	for _, sub := range []string{UploadsDir, ArtifactsDir, PreviewsDir} {
		if err := os.MkdirAll(s.JobPath(jobID, sub), 0o755); err != nil {
			return services.Wrap(services.ErrExternalTool, "storage", "create job tree", sub, err)
		}
	}
	return nil
}

// FileURL converts an absolute path under the data root into
// <baseURL>/files/<escaped relative path>.
func (s *Store) FileURL(absPath string) (string, error) {
	rel, err := filepath.Rel(s.dataDir, absPath)
	if err != nil {
		return "", fmt.Errorf("storage: relative path for %q: %w", absPath, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("storage: %q is outside the data dir", absPath)
	}
	return s.baseURL + filesPrefix + url.PathEscape(filepath.ToSlash(rel)), nil
}

// PathFromURL reverses FileURL. The second return is false when the URL does
// not address this store.
func (s *Store) PathFromURL(raw string) (string, bool) {
	prefix := s.baseURL + filesPrefix
	if !strings.HasPrefix(raw, prefix) {
		return "", false
	}
	rel, err := url.PathUnescape(strings.TrimPrefix(raw, prefix))
	if err != nil || rel == "" {
		return "", false
	}
	path := filepath.Join(s.dataDir, filepath.FromSlash(rel))
	if !strings.HasPrefix(path, s.dataDir+string(filepath.Separator)) {
		return "", false
	}
	return path, true
}

// JobLock is an exclusive hold on one job directory.
type JobLock struct {
	lock *flock.Flock
	path string
}

// Path returns the lock file location.
func (l *JobLock) Path() string {
	return l.path
}

// Unlock releases the job.
func (l *JobLock) Unlock() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}

// LockJob acquires the job lock without blocking. It fails when another
// process already runs the job.
func (s *Store) LockJob(jobID string) (*JobLock, error) {
	if err := validateJobID(jobID); err != nil {
		return nil, err
	}
	dir := s.JobDir(jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create job dir: %w", err)
	}
	path := filepath.Join(dir, lockFileName)
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("storage: acquire job lock: %w", err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "storage", "lock job", fmt.Sprintf("job %s is already running", jobID), nil)
	}
	return &JobLock{lock: lock, path: path}, nil
}

func validateJobID(jobID string) error {
	id := strings.TrimSpace(jobID)
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return services.Wrap(services.ErrValidation, "storage", "validate job id", fmt.Sprintf("invalid job id %q", jobID), nil)
	}
	return nil
}
