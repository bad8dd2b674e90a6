package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var liveWorkspaces = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "linguabridge_audio_workspaces_live",
	Help: "Number of per-message audio workspaces currently holding temporary files",
})

// Scratch creates workspaces under a base directory.
type Scratch struct {
	dir string
}

// NewScratch returns a Scratch rooted at dir. An empty dir uses os.TempDir.
// The directory is created if missing.
func NewScratch(dir string) (*Scratch, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}
	return &Scratch{dir: dir}, nil
}

// Dir returns the base directory.
func (s *Scratch) Dir() string { return s.dir }

// Acquire creates a private workspace. The caller must Release it, normally
// with defer right after a successful Acquire.
func (s *Scratch) Acquire(prefix string) (*Workspace, error) {
	dir, err := os.MkdirTemp(s.dir, prefix+"-*")
	if err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	liveWorkspaces.Inc()
	return &Workspace{dir: dir}, nil
}

// Workspace is a temporary directory owned by one in-flight step.
// Every file created through it is removed by Release.
type Workspace struct {
	dir  string
	once sync.Once
	err  error
}

// Path returns a path inside the workspace for the given base name and format.
func (w *Workspace) Path(name string, f Format) string {
	return filepath.Join(w.dir, name+f.Ext())
}

// Create opens a new file for a payload of the given format.
func (w *Workspace) Create(name string, f Format) (*os.File, Payload, error) {
	p := Payload{Path: w.Path(name, f), Format: f}
	file, err := os.OpenFile(p.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, Payload{}, fmt.Errorf("creating %s: %w", filepath.Base(p.Path), err)
	}
	return file, p, nil
}

// WriteFile stores data as a payload in the workspace.
func (w *Workspace) WriteFile(name string, f Format, data []byte) (Payload, error) {
	p := Payload{Path: w.Path(name, f), Format: f}
	if err := os.WriteFile(p.Path, data, 0o600); err != nil {
		return Payload{}, fmt.Errorf("writing %s: %w", filepath.Base(p.Path), err)
	}
	return p, nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string { return w.dir }

// Release deletes the workspace and everything in it. It is safe to call
// more than once; only the first call does any work.
func (w *Workspace) Release() error {
	w.once.Do(func() {
		w.err = os.RemoveAll(w.dir)
		liveWorkspaces.Dec()
	})
	return w.err
}
