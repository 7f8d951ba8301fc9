package fsapi

import (
	"io"
	"os"

	"github.com/spf13/afero"

	"github.com/avoronov/fat16fs/fat16"
)

// File is a cursor over one file or directory of the image. It holds
// no resources besides the filesystem reference; Close only invalidates
// the handle.
type File struct {
	fs         *fat16.Filesystem
	path       string
	offset     int64
	dirOffset  int
	appendMode bool
	closed     bool
}

var _ afero.File = (*File)(nil)

func (f *File) Name() string {
	return f.path
}

func (f *File) Close() error {
	if f.closed {
		return os.ErrClosed
	}
	f.closed = true

	return nil
}

func (f *File) Read(p []byte) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}

	n, err := f.fs.Read(f.path, p, f.offset)
	f.offset += int64(n)
	if err != nil {
		return n, err
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}

	return n, nil
}

func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}

	n, err := f.fs.Read(f.path, p, off)
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, os.ErrClosed
	}

	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += f.offset
	case io.SeekEnd:
		info, err := f.fs.Stat(f.path)
		if err != nil {
			return 0, err
		}
		offset += info.Size()
	default:
		return 0, fat16.InvalidPathError{Path: f.path}
	}
	if offset < 0 {
		return 0, fat16.InvalidPathError{Path: f.path}
	}
	f.offset = offset

	return offset, nil
}

func (f *File) Write(p []byte) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}

	if f.appendMode {
		info, err := f.fs.Stat(f.path)
		if err != nil {
			return 0, err
		}
		f.offset = info.Size()
	}

	n, err := f.fs.Write(f.path, p, f.offset)
	f.offset += int64(n)

	return n, err
}

func (f *File) WriteAt(p []byte, off int64) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}

	return f.fs.Write(f.path, p, off)
}

func (f *File) WriteString(s string) (int, error) {
	return f.Write([]byte(s))
}

func (f *File) Readdir(count int) ([]os.FileInfo, error) {
	if f.closed {
		return nil, os.ErrClosed
	}

	entries, err := f.fs.ReadDir(f.path)
	if err != nil {
		return nil, err
	}

	// Skip the synthesised dot entries, like os.File.Readdir does.
	listing := make([]os.FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.Name() == "." || entry.Name() == ".." {
			continue
		}
		listing = append(listing, entry)
	}

	if count <= 0 {
		f.dirOffset = len(listing)
		return listing, nil
	}

	if f.dirOffset >= len(listing) {
		return nil, io.EOF
	}
	end := f.dirOffset + count
	if end > len(listing) {
		end = len(listing)
	}
	window := listing[f.dirOffset:end]
	f.dirOffset = end

	return window, nil
}

func (f *File) Readdirnames(n int) ([]string, error) {
	infos, err := f.Readdir(n)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name()
	}

	return names, nil
}

func (f *File) Stat() (os.FileInfo, error) {
	if f.closed {
		return nil, os.ErrClosed
	}

	return f.fs.Stat(f.path)
}

func (f *File) Sync() error {
	if f.closed {
		return os.ErrClosed
	}

	return f.fs.Sync()
}

func (f *File) Truncate(size int64) error {
	if f.closed {
		return os.ErrClosed
	}

	return f.fs.Truncate(f.path, size)
}
