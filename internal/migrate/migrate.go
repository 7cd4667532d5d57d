// Package migrate copies passthrough files into a destination directory
// without clobbering existing outputs.
package migrate

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hupe1980/phyalf/internal/fs"
	"github.com/hupe1980/phyalf/npy"
)

// Skip reasons reported to OnSkip.
const (
	ReasonMissingSource = "source does not exist"
	ReasonExists        = "destination exists"
)

// Migrator copies files through FS.
type Migrator struct {
	FS     fs.FileSystem
	Logger *slog.Logger

	// Exists decides whether dst counts as already written. The default
	// checks dst itself.
	Exists func(dst string) (bool, error)

	// OnSkip and OnWrite observe the outcome of each call. Both are optional.
	OnSkip  func(path, reason string)
	OnWrite func(path string, n int64)
}

// New returns a Migrator over fsys.
func New(fsys fs.FileSystem, logger *slog.Logger) *Migrator {
	if fsys == nil {
		fsys = fs.Default
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Migrator{FS: fsys, Logger: logger}
}

// Migrate copies src to dst and reports whether anything was written.
//
// A missing src or an existing dst (unless force) is logged and skipped, not
// an error. With squeeze set, a .npy array of shape [N, 1] is written as [N]
// by rewriting its header; the payload bytes are copied unchanged. Any other
// file is copied byte for byte.
func (m *Migrator) Migrate(ctx context.Context, src, dst string, squeeze, force bool) (bool, error) {
	ok, err := m.Prepare(ctx, src, dst, force)
	if err != nil || !ok {
		return false, err
	}

	var n int64
	if squeeze && strings.HasSuffix(src, ".npy") {
		n, err = m.squeeze(src, dst)
	} else {
		n, err = fs.CopyFile(m.FS, src, dst)
	}
	if err != nil {
		return false, fmt.Errorf("migrate %s: %w", src, err)
	}
	m.Logger.DebugContext(ctx, "copied file", "src", src, "dst", dst, "bytes", n)
	if m.OnWrite != nil {
		m.OnWrite(dst, n)
	}
	return true, nil
}

// Prepare applies the existence policy and creates dst's parent directory.
// It reports whether the caller may write dst.
func (m *Migrator) Prepare(ctx context.Context, src, dst string, force bool) (bool, error) {
	if src != "" {
		ok, err := fs.Exists(m.FS, src)
		if err != nil {
			return false, err
		}
		if !ok {
			m.skip(ctx, src, ReasonMissingSource)
			return false, nil
		}
	}
	if !force {
		exists := m.Exists
		if exists == nil {
			exists = func(p string) (bool, error) { return fs.Exists(m.FS, p) }
		}
		ok, err := exists(dst)
		if err != nil {
			return false, err
		}
		if ok {
			m.skip(ctx, dst, ReasonExists)
			return false, nil
		}
	}
	if err := m.FS.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Migrator) skip(ctx context.Context, path, reason string) {
	m.Logger.WarnContext(ctx, "skipping file", "path", path, "reason", reason)
	if m.OnSkip != nil {
		m.OnSkip(path, reason)
	}
}

func (m *Migrator) squeeze(src, dst string) (int64, error) {
	in, err := m.FS.OpenFile(src, os.O_RDONLY, 0)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	r := bufio.NewReader(in)
	h, _, err := npy.ReadHeader(r)
	if err != nil {
		return 0, err
	}
	if len(h.Shape) != 2 || h.Shape[1] != 1 {
		return fs.CopyFile(m.FS, src, dst)
	}

	out, err := fs.Create(m.FS, dst)
	if err != nil {
		return 0, err
	}
	w := bufio.NewWriter(out)
	hn, err := npy.WriteHeader(w, npy.Header{Descr: h.Descr, Shape: h.Shape[:1]})
	if err != nil {
		_ = out.Close()
		return 0, err
	}
	pn, err := io.Copy(w, r)
	if err == nil {
		err = w.Flush()
	}
	if err != nil {
		_ = out.Close()
		return 0, err
	}
	return int64(hn) + pn, out.Close()
}

// Remove deletes path if it exists and reports whether it did.
func (m *Migrator) Remove(ctx context.Context, path string) (bool, error) {
	ok, err := fs.Exists(m.FS, path)
	if err != nil || !ok {
		return false, err
	}
	if err := m.FS.Remove(path); err != nil {
		return false, err
	}
	m.Logger.InfoContext(ctx, "removed file", "path", path)
	return true, nil
}
