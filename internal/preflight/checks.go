package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"spriteforge/internal/pipeline"
	"spriteforge/internal/providers"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckManifest loads the model manifest. The manifest is returned only when
// the check passes.
func CheckManifest(path string) (Result, *providers.Manifest) {
	const name = "Model manifest"
	manifest, err := providers.LoadManifest(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist; run 'spriteforge config init')", path)}, nil
		}
		return Result{Name: name, Detail: err.Error()}, nil
	}
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("%s (%d capabilities, default %s)", path, len(manifest.Capabilities), manifest.Defaults.Provider),
	}, &manifest
}

// CheckPipelines loads every definition in dir and reports the first that
// fails to load.
func CheckPipelines(dir string) Result {
	const name = "Pipelines"
	ids, err := pipeline.ListConfigs(dir)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if len(ids) == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: no pipeline definitions)", dir)}
	}
	for _, id := range ids {
		if _, err := pipeline.LoadConfig(id, dir); err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s: %v", id, err)}
		}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d loaded (%s)", len(ids), strings.Join(ids, ", "))}
}

// CheckReplicate verifies Replicate connectivity and authentication.
func CheckReplicate(ctx context.Context, baseURL, token string) Result {
	const name = "Replicate"

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing url"}
	}
	if strings.TrimSpace(token) == "" {
		return Result{Name: name, Detail: "missing api token"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/v1/account", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("auth check failed (%v)", err)}
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))

	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return Result{Name: name, Passed: true, Detail: "Reachable"}
	case http.StatusUnauthorized, http.StatusForbidden:
		return Result{Name: name, Detail: "auth failed (invalid api token)"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("auth check failed (%d)", resp.StatusCode)}
	}
}

// summarizeNetError produces a human-readable summary for connectivity failures.
func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "auth check timed out (API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "auth check timed out (API unreachable)"
	}
	return fmt.Sprintf("auth check failed (%v)", err)
}
