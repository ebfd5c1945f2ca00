package testutil

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// FailingFs wraps an afero.Fs and fails every mutating operation on chosen
// paths, simulating permission errors or full disks for one subtree.
//
// A rule registered for "/out/A" matches "/out/A" and anything below it,
// but not "/out/AB".
//
// Thread-safety: safe for concurrent use; the inner Fs must be too.
type FailingFs struct {
	afero.Fs

	mu    sync.Mutex
	rules map[string]error
	calls []string
}

// NewFailingFs wraps inner. With no rules it behaves exactly like inner.
func NewFailingFs(inner afero.Fs) *FailingFs {
	return &FailingFs{Fs: inner, rules: map[string]error{}}
}

// FailUnder makes every mutation at or below path fail with err.
func (f *FailingFs) FailUnder(path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules[filepath.Clean(path)] = err
}

// Failed returns the operations rejected so far, as "op path".
func (f *FailingFs) Failed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *FailingFs) check(op, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clean := filepath.Clean(name)
	for prefix, err := range f.rules {
		if clean == prefix || strings.HasPrefix(clean, prefix+string(filepath.Separator)) {
			f.calls = append(f.calls, op+" "+clean)
			return &os.PathError{Op: op, Path: name, Err: err}
		}
	}
	return nil
}

func (f *FailingFs) Name() string {
	return "FailingFs(" + f.Fs.Name() + ")"
}

func (f *FailingFs) Create(name string) (afero.File, error) {
	if err := f.check("create", name); err != nil {
		return nil, err
	}
	return f.Fs.Create(name)
}

func (f *FailingFs) Mkdir(name string, perm os.FileMode) error {
	if err := f.check("mkdir", name); err != nil {
		return err
	}
	return f.Fs.Mkdir(name, perm)
}

func (f *FailingFs) MkdirAll(path string, perm os.FileMode) error {
	if err := f.check("mkdir", path); err != nil {
		return err
	}
	return f.Fs.MkdirAll(path, perm)
}

func (f *FailingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND) != 0 {
		if err := f.check("open", name); err != nil {
			return nil, err
		}
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func (f *FailingFs) Remove(name string) error {
	if err := f.check("remove", name); err != nil {
		return err
	}
	return f.Fs.Remove(name)
}

func (f *FailingFs) RemoveAll(path string) error {
	if err := f.check("remove", path); err != nil {
		return err
	}
	return f.Fs.RemoveAll(path)
}

func (f *FailingFs) Rename(oldname, newname string) error {
	if err := f.check("rename", newname); err != nil {
		return err
	}
	return f.Fs.Rename(oldname, newname)
}

func (f *FailingFs) Chmod(name string, mode os.FileMode) error {
	if err := f.check("chmod", name); err != nil {
		return err
	}
	return f.Fs.Chmod(name, mode)
}

func (f *FailingFs) Chtimes(name string, atime, mtime time.Time) error {
	if err := f.check("chtimes", name); err != nil {
		return err
	}
	return f.Fs.Chtimes(name, atime, mtime)
}

// ListFiles returns every regular file under root as slash paths relative
// to root, sorted.
func ListFiles(fsys afero.Fs, root string) ([]string, error) {
	var files []string
	err := afero.Walk(fsys, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	slices.Sort(files)
	return files, err
}

// Snapshot maps every file under root to its content.
func Snapshot(fsys afero.Fs, root string) (map[string]string, error) {
	files, err := ListFiles(fsys, root)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(files))
	for _, rel := range files {
		data, err := afero.ReadFile(fsys, filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return nil, err
		}
		out[rel] = string(data)
	}
	return out, nil
}
