package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"sublingo/internal/config"
	"sublingo/internal/services"
)

// Workspace is a per-job scratch directory holding every intermediate
// artifact (downloaded video, extracted audio, rendered subtitles, muxed
// output). It is created before the pipeline starts and removed exactly once
// when the job reaches a terminal state.
type Workspace struct {
	Root string
}

// Manager allocates and releases job workspaces under the configured work
// directory. freeBytes is swappable so tests can simulate a full disk.
type Manager struct {
	baseDir   string
	minFreeMB int64
	freeBytes func(path string) (uint64, error)
	removeAll func(path string) error
}

// NewManager builds a workspace manager from configuration.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		baseDir:   cfg.Paths.WorkDir,
		minFreeMB: int64(cfg.Limits.MinFreeMB),
		freeBytes: statfsFreeBytes,
		removeAll: os.RemoveAll,
	}
}

// WithRemover sets a custom directory remover (for testing).
func (m *Manager) WithRemover(remove func(path string) error) {
	m.removeAll = remove
}

func statfsFreeBytes(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// Allocate creates a workspace directory for the given job. It refuses the
// allocation when the backing filesystem has less than the configured free
// space floor, so a nearly full disk fails fast instead of mid-download.
func (m *Manager) Allocate(jobID int64) (*Workspace, error) {
	if err := os.MkdirAll(m.baseDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrResource, "prepare", "allocate workspace", "create work directory", err)
	}

	free, err := m.freeBytes(m.baseDir)
	if err != nil {
		return nil, services.Wrap(services.ErrResource, "prepare", "allocate workspace", "check free space", err)
	}
	if required := uint64(m.minFreeMB) << 20; free < required {
		return nil, services.Wrap(
			services.ErrResource,
			"prepare",
			"allocate workspace",
			fmt.Sprintf("insufficient free space: %d MB available, %d MB required", free>>20, m.minFreeMB),
			nil,
		)
	}

	root := filepath.Join(m.baseDir, fmt.Sprintf("job-%d", jobID))
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, services.Wrap(services.ErrResource, "prepare", "allocate workspace", "create job directory", err)
	}
	return &Workspace{Root: root}, nil
}

// Release removes the workspace directory and everything in it. Releasing a
// nil or already removed workspace is a no-op, so callers can release on
// every terminal path without tracking whether cleanup already ran.
func (m *Manager) Release(ws *Workspace) error {
	if ws == nil || strings.TrimSpace(ws.Root) == "" {
		return nil
	}
	if err := m.removeAll(ws.Root); err != nil {
		return fmt.Errorf("release workspace %s: %w", ws.Root, err)
	}
	return nil
}

// ReleasePath removes a workspace by its recorded root path. Used when only
// the persisted job row is available.
func (m *Manager) ReleasePath(root string) error {
	return m.Release(&Workspace{Root: root})
}

// InputPath returns the canonical location for the downloaded source video.
func (ws *Workspace) InputPath(fileName string) string {
	name := filepath.Base(strings.TrimSpace(fileName))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "input.mp4"
	}
	return filepath.Join(ws.Root, name)
}

// AudioPath returns the location for the extracted mono audio track.
func (ws *Workspace) AudioPath() string {
	return filepath.Join(ws.Root, "audio.wav")
}

// SubtitlePath returns the location for the rendered subtitle document.
func (ws *Workspace) SubtitlePath() string {
	return filepath.Join(ws.Root, "subtitles.ass")
}

// OutputPath returns the location for the final subtitled video, derived
// from the input name so the delivered file keeps a recognizable stem.
func (ws *Workspace) OutputPath(inputPath string) string {
	base := filepath.Base(inputPath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		stem = "output"
	}
	if ext == "" {
		ext = ".mp4"
	}
	return filepath.Join(ws.Root, stem+"_subtitled"+ext)
}
