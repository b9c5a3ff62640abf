package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"neurod/internal/checkpoint"
	"neurod/internal/common/fsutil"
	"neurod/pkg/types"
)

// Ext is the checkpoint file extension the scanner picks up.
const Ext = ".safetensors"

// ArchKey is the metadata key holding a checkpoint's architecture tag.
const ArchKey = "arch"

// Scanner discovers checkpoints in a directory.
type Scanner struct {
	// ReadArch reads the architecture tag from each file's header.
	ReadArch bool
}

// NewScanner returns a scanner that reads architecture tags.
func NewScanner() *Scanner { return &Scanner{ReadArch: true} }

// Scan lists *.safetensors files in dir sorted by ID. ID is the file name
// without extension; Path is absolute. Files whose header cannot be read are
// still listed, without an Arch.
func (s *Scanner) Scan(dir string) ([]types.Checkpoint, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var out []types.Checkpoint
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.EqualFold(filepath.Ext(name), Ext) {
			continue
		}
		c := types.Checkpoint{ID: strings.TrimSuffix(name, filepath.Ext(name)), Path: filepath.Join(abs, name)}
		if info, err := e.Info(); err == nil {
			c.SizeBytes = info.Size()
		}
		if s.ReadArch {
			if md, err := checkpoint.ReadMetadata(c.Path); err == nil {
				c.Arch = md[ArchKey]
			}
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// LoadDir scans dir with a default scanner.
func LoadDir(dir string) ([]types.Checkpoint, error) {
	return NewScanner().Scan(dir)
}

// Resolve turns ref into a checkpoint path. ref may be a path to an existing
// file, or an ID (with or without extension) looked up in modelsDir.
func Resolve(modelsDir, ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("empty checkpoint reference")
	}
	p, err := fsutil.ExpandHome(ref)
	if err != nil {
		return "", err
	}
	if st, err := os.Stat(p); err == nil && !st.IsDir() {
		return p, nil
	}
	if modelsDir == "" || filepath.IsAbs(p) {
		return "", fmt.Errorf("checkpoint %q not found", ref)
	}
	dir, err := fsutil.ExpandHome(modelsDir)
	if err != nil {
		return "", err
	}
	id := strings.TrimSuffix(ref, Ext)
	candidate := filepath.Join(dir, id+Ext)
	if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
		return candidate, nil
	}
	return "", fmt.Errorf("checkpoint %q not found (looked for %s)", ref, candidate)
}
