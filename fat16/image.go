package fat16

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Image owns the memory mapping of the backing file for the lifetime of
// the mount. All other components borrow byte ranges from it and must
// not keep them past Close.
type Image struct {
	file    *os.File
	data    []byte
	created bool
}

// OpenImage opens path read-write and maps it shared. A missing file is
// created and sized to DiskSize; the caller is expected to format the
// filesystem when Created reports true.
func OpenImage(path string) (*Image, error) {
	created := false
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}

		file, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0666)
		if err != nil {
			return nil, err
		}
		err = file.Truncate(DiskSize)
		if err != nil {
			_ = file.Close()
			return nil, err
		}
		created = true
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if stat.Size() < DiskSize {
		_ = file.Close()
		return nil, fmt.Errorf("image %s has %d bytes, expected at least %d", path, stat.Size(), DiskSize)
	}

	data, err := unix.Mmap(int(file.Fd()), 0, DiskSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	return &Image{
		file:    file,
		data:    data,
		created: created,
	}, nil
}

// Bytes returns the whole mapping.
func (img *Image) Bytes() []byte {
	return img.data
}

// Created reports whether OpenImage created a fresh image file.
func (img *Image) Created() bool {
	return img.created
}

// Sync flushes the mapping to the backing file synchronously.
func (img *Image) Sync() error {
	return unix.Msync(img.data, unix.MS_SYNC)
}

// Close flushes, unmaps and closes the image. Unmapping and closing
// proceed even when the flush fails; the flush error is returned.
func (img *Image) Close() error {
	if img.data == nil {
		return nil
	}

	syncErr := img.Sync()
	unmapErr := unix.Munmap(img.data)
	img.data = nil
	closeErr := img.file.Close()

	if syncErr != nil {
		return syncErr
	}
	if unmapErr != nil {
		return unmapErr
	}

	return closeErr
}
