package stages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"spriteforge/internal/fileutil"
	"spriteforge/internal/logging"
	"spriteforge/internal/pipeline"
	"spriteforge/internal/services"
	"spriteforge/internal/storage"
)

type ingestStage struct{ Deps }

// Run copies each upload into the job's uploads directory as ref_NN<ext> and
// replaces the upload list with the canonical paths. Uploads already inside
// the uploads directory keep their path and are never overwritten, so
// re-running ingest is a no-op.
func (s *ingestStage) Run(ctx context.Context, job *pipeline.JobContext, stage pipeline.StageSpec) error {
	if err := s.Storage.EnsureJobTree(job.JobID); err != nil {
		return services.Wrap(services.ErrConfiguration, stage.ID, "prepare job tree", "could not create job directories", err)
	}
	if len(job.UploadPaths) == 0 {
		return services.Wrap(services.ErrValidation, stage.ID, "ingest", "no uploads provided", nil)
	}

	uploadsDir := s.Storage.JobPath(job.JobID, storage.UploadsDir)
	inPlace := make([]bool, len(job.UploadPaths))
	taken := make(map[string]struct{}, len(job.UploadPaths))
	for i, src := range job.UploadPaths {
		info, err := os.Stat(src)
		if err != nil {
			return services.Wrap(services.ErrNotFound, stage.ID, "stat upload", fmt.Sprintf("upload %s is not accessible", src), err)
		}
		if info.IsDir() {
			return services.Wrap(services.ErrValidation, stage.ID, "stat upload", fmt.Sprintf("upload %s is a directory", src), nil)
		}
		if within(uploadsDir, src) {
			inPlace[i] = true
			if abs, err := filepath.Abs(src); err == nil {
				taken[abs] = struct{}{}
			}
		}
	}

	canonical := make([]string, 0, len(job.UploadPaths))
	copied := 0
	for i, src := range job.UploadPaths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if inPlace[i] {
			canonical = append(canonical, src)
			continue
		}
		ext := strings.ToLower(filepath.Ext(src))
		if ext == "" {
			ext = ".png"
		}
		dest := ""
		for n := i; ; n++ {
			dest = filepath.Join(uploadsDir, fmt.Sprintf("ref_%02d%s", n, ext))
			if _, used := taken[dest]; !used {
				break
			}
		}
		taken[dest] = struct{}{}
		if err := fileutil.CopyFileVerified(src, dest); err != nil {
			return services.Wrap(services.ErrExternalTool, stage.ID, "copy upload", fmt.Sprintf("copy %s", src), err)
		}
		copied++
		canonical = append(canonical, dest)
	}
	job.UploadPaths = canonical
	if job.JobDir == "" {
		job.JobDir = s.Storage.JobDir(job.JobID)
	}

	s.log(ctx).Info("uploads ingested",
		logging.Event("uploads_ingested"),
		logging.Int("uploads", len(canonical)),
		logging.Int("copied", copied),
	)
	return nil
}

// within reports whether path lies inside dir, following a symlinked parent.
func within(dir, path string) bool {
	if fileutil.SamePath(filepath.Dir(path), dir) {
		return true
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
