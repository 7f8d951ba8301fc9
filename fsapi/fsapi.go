// Package fsapi exposes a mounted FAT16 image as an afero filesystem,
// so Go programs can use the image without a kernel mount.
package fsapi

import (
	"os"
	"path"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/avoronov/fat16fs/fat16"
)

type Fs struct {
	fs *fat16.Filesystem
}

var _ afero.Fs = (*Fs)(nil)

func New(fs *fat16.Filesystem) *Fs {
	return &Fs{fs: fs}
}

func (f *Fs) Name() string {
	return "fat16"
}

func (f *Fs) Create(name string) (afero.File, error) {
	name = normalize(name)
	_, err := f.fs.Stat(name)
	if err == nil {
		err = f.fs.Truncate(name, 0)
	} else {
		err = f.fs.Create(name)
	}
	if err != nil {
		return nil, err
	}

	return &File{fs: f.fs, path: name}, nil
}

func (f *Fs) Mkdir(name string, _ os.FileMode) error {
	return f.fs.Mkdir(normalize(name))
}

func (f *Fs) MkdirAll(p string, _ os.FileMode) error {
	p = normalize(p)
	if p == "/" {
		return nil
	}

	partial := ""
	for _, fragment := range strings.Split(strings.Trim(p, "/"), "/") {
		partial += "/" + fragment
		err := f.fs.Mkdir(partial)
		if err != nil {
			if _, ok := err.(fat16.ExistsError); ok {
				continue
			}
			return err
		}
	}

	return nil
}

func (f *Fs) Open(name string) (afero.File, error) {
	name = normalize(name)
	_, err := f.fs.Stat(name)
	if err != nil {
		return nil, err
	}

	return &File{fs: f.fs, path: name}, nil
}

func (f *Fs) OpenFile(name string, flag int, _ os.FileMode) (afero.File, error) {
	name = normalize(name)

	_, statErr := f.fs.Stat(name)
	exists := statErr == nil

	if exists && flag&os.O_CREATE != 0 && flag&os.O_EXCL != 0 {
		return nil, fat16.ExistsError{Path: name}
	}
	if !exists {
		if flag&os.O_CREATE == 0 {
			return nil, statErr
		}
		err := f.fs.Create(name)
		if err != nil {
			return nil, err
		}
	} else if flag&os.O_TRUNC != 0 {
		err := f.fs.Truncate(name, 0)
		if err != nil {
			return nil, err
		}
	}

	return &File{
		fs:         f.fs,
		path:       name,
		appendMode: flag&os.O_APPEND != 0,
	}, nil
}

func (f *Fs) Remove(name string) error {
	name = normalize(name)
	info, err := f.fs.Stat(name)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return f.fs.Rmdir(name)
	}

	return f.fs.Unlink(name)
}

func (f *Fs) RemoveAll(p string) error {
	p = normalize(p)
	info, err := f.fs.Stat(p)
	if err != nil {
		if _, ok := err.(fat16.NotFoundError); ok {
			return nil
		}
		return err
	}

	if info.IsDir() {
		entries, err := f.fs.ReadDir(p)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if entry.Name() == "." || entry.Name() == ".." {
				continue
			}
			err = f.RemoveAll(path.Join(p, entry.Name()))
			if err != nil {
				return err
			}
		}
		if p == "/" {
			return nil
		}
		return f.fs.Rmdir(p)
	}

	return f.fs.Unlink(p)
}

func (f *Fs) Rename(oldname, newname string) error {
	return f.fs.Rename(normalize(oldname), normalize(newname))
}

func (f *Fs) Stat(name string) (os.FileInfo, error) {
	return f.fs.Stat(normalize(name))
}

// Chmod is a no-op: permission bits are synthetic.
func (f *Fs) Chmod(name string, _ os.FileMode) error {
	_, err := f.fs.Stat(normalize(name))

	return err
}

// Chown is a no-op: ownership is reported from the mounting process.
func (f *Fs) Chown(name string, _, _ int) error {
	_, err := f.fs.Stat(normalize(name))

	return err
}

// Chtimes resolves the path but persists nothing, matching the
// driver's utimens behaviour.
func (f *Fs) Chtimes(name string, _, _ time.Time) error {
	return f.fs.Utimens(normalize(name))
}

func normalize(name string) string {
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}

	return path.Clean(name)
}
