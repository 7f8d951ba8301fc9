package fat16

import (
	"os"
	"strings"
	"time"
)

// FileInfo describes one file or directory. Mode bits are synthetic
// (the driver does not enforce permissions) and ModTime is the current
// wall-clock time, since timestamps are not persisted into stat
// output.
type FileInfo struct {
	name string
	size int64
	dir  bool
}

var _ os.FileInfo = FileInfo{}

func (fi FileInfo) Name() string {
	return fi.name
}

func (fi FileInfo) Size() int64 {
	return fi.size
}

func (fi FileInfo) Mode() os.FileMode {
	if fi.dir {
		return os.ModeDir | 0755
	}

	return 0644
}

func (fi FileInfo) ModTime() time.Time {
	return time.Now()
}

func (fi FileInfo) IsDir() bool {
	return fi.dir
}

func (fi FileInfo) Sys() interface{} {
	return nil
}

func infoFromEntry(e DirEntry) FileInfo {
	fi := FileInfo{
		name: e.DisplayName(),
		dir:  e.IsDir(),
	}
	if !fi.dir {
		fi.size = int64(e.FileSize)
	}

	return fi
}

// Stat resolves path and reports its metadata.
func (fs *Filesystem) Stat(path string) (FileInfo, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	res, err := fs.resolve(path)
	if err != nil {
		return FileInfo{}, err
	}
	if res.root {
		return FileInfo{name: "/", dir: true}, nil
	}

	return infoFromEntry(res.entry), nil
}

// ReadDir lists a directory. "." and ".." are synthesised first (the
// root has no stored dot records); the raw dot records of non-root
// directories are suppressed to avoid duplicates.
func (fs *Filesystem) ReadDir(path string) ([]FileInfo, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	_, dir, err := fs.resolveDir(path)
	if err != nil {
		return nil, err
	}

	infos := []FileInfo{
		{name: ".", dir: true},
		{name: "..", dir: true},
	}
	for i := 0; i < dir.entryCount(); i++ {
		e := dir.entry(i)
		if e.IsFree() || e.isDotRecord() {
			continue
		}
		infos = append(infos, infoFromEntry(e))
	}

	return infos, nil
}

// Create makes an empty regular file. The entry starts with the
// end-of-chain sentinel as its first cluster; the first write
// allocates real clusters.
func (fs *Filesystem) Create(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentPath, base, err := fs.splitForCreate(path)
	if err != nil {
		return err
	}

	_, parentDir, err := fs.resolveDir(parentPath)
	if err != nil {
		return err
	}

	_, err = parentDir.insert(newDirEntry(base, AttrArchive, fatEOF, time.Now()))

	return err
}

// Mkdir creates a directory: one data cluster holding its entry block,
// populated with "." and ".." records.
func (fs *Filesystem) Mkdir(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentPath, base, err := fs.splitForCreate(path)
	if err != nil {
		return err
	}

	parentLoc, parentDir, err := fs.resolveDir(parentPath)
	if err != nil {
		return err
	}

	slot, err := parentDir.freeSlot()
	if err != nil {
		return err
	}

	fat := fs.fat()
	cluster, err := fat.allocate()
	if err != nil {
		return err
	}

	now := time.Now()
	parentDir.putEntry(slot, newDirEntry(base, AttrDirectory, cluster, now))

	block := fs.cluster(cluster)
	for i := range block {
		block[i] = 0
	}

	newDir := Directory{raw: block}
	newDir.putEntry(0, newDirEntry(".", AttrDirectory, cluster, now))
	newDir.putEntry(1, newDirEntry("..", AttrDirectory, parentLoc.parentCluster(), now))

	return nil
}

// Unlink removes a regular file: its chain is freed, then the entry is
// tombstoned.
func (fs *Filesystem) Unlink(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	res, err := fs.resolve(path)
	if err != nil {
		return err
	}
	if res.root || res.entry.IsDir() {
		return IsDirectoryError{Path: path}
	}

	fs.fat().freeChain(res.entry.FirstCluster)
	res.ref.dir.tombstone(res.ref.index)

	return nil
}

// Rmdir removes an empty directory. The root cannot be removed.
func (fs *Filesystem) Rmdir(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	res, err := fs.resolve(path)
	if err != nil {
		return err
	}
	if res.root {
		return BusyError{Path: path}
	}
	if !res.entry.IsDir() {
		return NotDirectoryError{Path: path}
	}

	dir, err := fs.dirAt(clusterLocation(res.entry.FirstCluster))
	if err != nil {
		return err
	}

	// Slots 0 and 1 hold the "." and ".." records.
	for i := 2; i < dir.entryCount(); i++ {
		if !dir.entry(i).IsFree() {
			return NotEmptyError{Path: path}
		}
	}

	fs.fat().freeChain(res.entry.FirstCluster)
	res.ref.dir.tombstone(res.ref.index)

	return nil
}

// Rename moves an entry to a new parent directory and/or name. A
// moved directory gets its ".." record rewritten to the new parent.
func (fs *Filesystem) Rename(oldPath, newPath string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	res, err := fs.resolve(oldPath)
	if err != nil {
		return err
	}
	if res.root {
		return InvalidPathError{Path: oldPath}
	}
	if res.entry.IsDir() && strings.HasPrefix(newPath, oldPath+"/") {
		return InvalidPathError{Path: newPath}
	}

	newParentPath, newBase, err := fs.splitForCreate(newPath)
	if err != nil {
		return err
	}

	newLoc, newDir, err := fs.resolveDir(newParentPath)
	if err != nil {
		return err
	}

	entry := res.ref.get()
	entry.Name, entry.Ext = encodeName(newBase)

	if newLoc == res.parent {
		res.ref.put(entry)
		return nil
	}

	slot, err := newDir.freeSlot()
	if err != nil {
		return err
	}
	newDir.putEntry(slot, entry)
	res.ref.dir.tombstone(res.ref.index)

	if entry.IsDir() {
		moved, err := fs.dirAt(clusterLocation(entry.FirstCluster))
		if err != nil {
			return err
		}
		dotdot := moved.entry(1)
		dotdot.FirstCluster = newLoc.parentCluster()
		moved.putEntry(1, dotdot)
	}

	return nil
}

// Read copies file bytes at offset into p and returns the count. A
// read at or past end of file returns 0.
func (fs *Filesystem) Read(path string, p []byte, offset int64) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	res, err := fs.resolve(path)
	if err != nil {
		return 0, err
	}
	if res.root || res.entry.IsDir() {
		return 0, IsDirectoryError{Path: path}
	}

	return fs.readAt(res.ref, p, offset)
}

// Write copies p into the file at offset, growing the cluster chain as
// needed, and returns the bytes written.
func (fs *Filesystem) Write(path string, p []byte, offset int64) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	res, err := fs.resolve(path)
	if err != nil {
		return 0, err
	}
	if res.root || res.entry.IsDir() {
		return 0, IsDirectoryError{Path: path}
	}

	return fs.writeAt(res.ref, p, offset)
}

// Truncate sets the recorded file size. Clusters are neither freed
// when shrinking nor allocated when growing; a later write extends the
// chain when it needs more clusters and never shortens it.
func (fs *Filesystem) Truncate(path string, size int64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if size < 0 {
		return InvalidPathError{Path: path}
	}

	res, err := fs.resolve(path)
	if err != nil {
		return err
	}
	if res.root || res.entry.IsDir() {
		return IsDirectoryError{Path: path}
	}

	entry := res.ref.get()
	entry.FileSize = uint32(size)
	res.ref.put(entry)

	return nil
}

// Utimens only checks that the path exists; timestamps are not
// persisted.
func (fs *Filesystem) Utimens(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	_, err := fs.resolve(path)

	return err
}

// splitForCreate validates that path names a creatable child: the
// basename must be representable and must not already exist. Callers
// must hold fs.mu.
func (fs *Filesystem) splitForCreate(path string) (string, string, error) {
	parentPath, base, err := splitParent(path)
	if err != nil {
		return "", "", err
	}
	err = validateName(base)
	if err != nil {
		return "", "", err
	}

	if _, err := fs.resolve(path); err == nil {
		return "", "", ExistsError{Path: path}
	} else if _, ok := err.(NotFoundError); !ok {
		return "", "", err
	}

	return parentPath, base, nil
}
