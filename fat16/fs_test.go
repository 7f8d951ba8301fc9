package fat16_test

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/avoronov/fat16fs/fat16"
)

func newTestFS(t *testing.T) *fat16.Filesystem {
	t.Helper()

	fs, err := fat16.Mount(filepath.Join(t.TempDir(), "disk.img"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = fs.Close()
	})

	return fs
}

func listNames(t *testing.T, fs *fat16.Filesystem, path string) []string {
	t.Helper()

	infos, err := fs.ReadDir(path)
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name()
	}

	return names
}

func TestFreshImageRootListing(t *testing.T) {
	fs := newTestFS(t)

	if diff := cmp.Diff([]string{".", ".."}, listNames(t, fs, "/")); diff != "" {
		t.Errorf("fresh root listing (-want +got):\n%s", diff)
	}

	info, err := fs.Stat("/")
	if err != nil {
		t.Fatal(err)
	}
	if !info.IsDir() {
		t.Error("root is not a directory")
	}
}

func TestNestedCreateWriteRead(t *testing.T) {
	fs := newTestFS(t)

	if err := fs.Mkdir("/a"); err != nil {
		t.Fatal(err)
	}
	if err := fs.Mkdir("/a/b"); err != nil {
		t.Fatal(err)
	}
	if err := fs.Create("/a/b/c.txt"); err != nil {
		t.Fatal(err)
	}

	n, err := fs.Write("/a/b/c.txt", []byte("hello"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Fatalf("wrote %d bytes, want 5", n)
	}

	buf := make([]byte, 5)
	n, err = fs.Read("/a/b/c.txt", buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 || string(buf) != "hello" {
		t.Fatalf("read %d bytes %q", n, buf[:n])
	}

	info, err := fs.Stat("/a/b/c.txt")
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 5 {
		t.Errorf("size %d, want 5", info.Size())
	}
	if info.IsDir() {
		t.Error("file reported as directory")
	}

	if diff := cmp.Diff([]string{".", "..", "b"}, listNames(t, fs, "/a")); diff != "" {
		t.Errorf("listing of /a (-want +got):\n%s", diff)
	}
}

func TestBigFileSpansClusters(t *testing.T) {
	fs := newTestFS(t)
	freeBefore := fs.FreeClusters()

	data := bytes.Repeat([]byte{0xAB}, 10000)
	if err := fs.Create("/big.bin"); err != nil {
		t.Fatal(err)
	}
	n, err := fs.Write("/big.bin", data, 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(data) {
		t.Fatalf("wrote %d bytes, want %d", n, len(data))
	}

	// 10000 bytes need exactly three 4096-byte clusters.
	if used := freeBefore - fs.FreeClusters(); used != 3 {
		t.Errorf("file uses %d clusters, want 3", used)
	}

	back := make([]byte, len(data))
	n, err = fs.Read("/big.bin", back, 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(data) {
		t.Fatalf("read %d bytes, want %d", n, len(data))
	}
	if !bytes.Equal(data, back) {
		t.Error("read data differs from written data")
	}

	if err := fs.Check(); err != nil {
		t.Errorf("consistency check: %v", err)
	}
}

func TestWriteClusterBoundaries(t *testing.T) {
	fs := newTestFS(t)

	freeBefore := fs.FreeClusters()
	if err := fs.Create("/one"); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.Write("/one", make([]byte, fat16.ClusterSize), 0); err != nil {
		t.Fatal(err)
	}
	if used := freeBefore - fs.FreeClusters(); used != 1 {
		t.Errorf("exactly one cluster of data uses %d clusters, want 1", used)
	}

	freeBefore = fs.FreeClusters()
	if err := fs.Create("/two"); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.Write("/two", make([]byte, fat16.ClusterSize+1), 0); err != nil {
		t.Fatal(err)
	}
	if used := freeBefore - fs.FreeClusters(); used != 2 {
		t.Errorf("one byte over a cluster uses %d clusters, want 2", used)
	}
}

func TestReadAtEndOfFile(t *testing.T) {
	fs := newTestFS(t)

	if err := fs.Create("/f"); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.Write("/f", []byte("data"), 0); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 16)
	n, err := fs.Read("/f", buf, 4)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("read at offset == size returned %d bytes", n)
	}

	n, err = fs.Read("/f", buf, 100)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("read past end returned %d bytes", n)
	}
}

func TestSparseOffsetWrite(t *testing.T) {
	fs := newTestFS(t)

	if err := fs.Create("/f"); err != nil {
		t.Fatal(err)
	}
	n, err := fs.Write("/f", []byte("tail"), 6000)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Fatalf("wrote %d bytes, want 4", n)
	}

	info, err := fs.Stat("/f")
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 6004 {
		t.Errorf("size %d, want 6004", info.Size())
	}

	buf := make([]byte, 4)
	if _, err := fs.Read("/f", buf, 6000); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "tail" {
		t.Errorf("read %q at offset 6000", buf)
	}
}

func TestCreateUnlinkRestoresState(t *testing.T) {
	fs := newTestFS(t)
	freeBefore := fs.FreeClusters()

	if err := fs.Create("/x"); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.Write("/x", make([]byte, 5000), 0); err != nil {
		t.Fatal(err)
	}
	if err := fs.Unlink("/x"); err != nil {
		t.Fatal(err)
	}

	if fs.FreeClusters() != freeBefore {
		t.Errorf("unlink leaked clusters: %d free, want %d", fs.FreeClusters(), freeBefore)
	}
	if diff := cmp.Diff([]string{".", ".."}, listNames(t, fs, "/")); diff != "" {
		t.Errorf("root listing after unlink (-want +got):\n%s", diff)
	}

	// The name can be created again in the tombstoned slot.
	if err := fs.Create("/x"); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.Stat("/x"); err != nil {
		t.Fatal(err)
	}
}

func TestMkdirRmdirRestoresListing(t *testing.T) {
	fs := newTestFS(t)
	freeBefore := fs.FreeClusters()

	if err := fs.Mkdir("/d"); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{".", ".."}, listNames(t, fs, "/d")); diff != "" {
		t.Errorf("fresh directory listing (-want +got):\n%s", diff)
	}

	if err := fs.Rmdir("/d"); err != nil {
		t.Fatal(err)
	}
	if fs.FreeClusters() != freeBefore {
		t.Errorf("rmdir leaked clusters")
	}
	if diff := cmp.Diff([]string{".", ".."}, listNames(t, fs, "/")); diff != "" {
		t.Errorf("root listing after rmdir (-want +got):\n%s", diff)
	}
}

func TestRmdirNotEmpty(t *testing.T) {
	fs := newTestFS(t)

	if err := fs.Mkdir("/d"); err != nil {
		t.Fatal(err)
	}
	if err := fs.Create("/d/f"); err != nil {
		t.Fatal(err)
	}

	err := fs.Rmdir("/d")
	if _, ok := err.(fat16.NotEmptyError); !ok {
		t.Fatalf("expected NotEmptyError, got %v", err)
	}

	// The directory and its file are untouched.
	if _, err := fs.Stat("/d/f"); err != nil {
		t.Fatal(err)
	}

	if err := fs.Unlink("/d/f"); err != nil {
		t.Fatal(err)
	}
	if err := fs.Rmdir("/d"); err != nil {
		t.Fatal(err)
	}
}

func TestRootCannotBeRemoved(t *testing.T) {
	fs := newTestFS(t)

	err := fs.Rmdir("/")
	if _, ok := err.(fat16.BusyError); !ok {
		t.Errorf("expected BusyError, got %v", err)
	}
}

func TestMkdirRootIsInvalid(t *testing.T) {
	fs := newTestFS(t)

	err := fs.Mkdir("/")
	if _, ok := err.(fat16.InvalidPathError); !ok {
		t.Errorf("expected InvalidPathError, got %v", err)
	}
}

func TestPathResolutionErrors(t *testing.T) {
	fs := newTestFS(t)

	if err := fs.Create("/file"); err != nil {
		t.Fatal(err)
	}

	_, err := fs.Stat("/missing")
	if _, ok := err.(fat16.NotFoundError); !ok {
		t.Errorf("expected NotFoundError, got %v", err)
	}

	_, err = fs.Stat("/missing/deeper")
	if _, ok := err.(fat16.NotFoundError); !ok {
		t.Errorf("expected NotFoundError, got %v", err)
	}

	_, err = fs.Stat("/file/child")
	if _, ok := err.(fat16.NotDirectoryError); !ok {
		t.Errorf("expected NotDirectoryError, got %v", err)
	}

	_, err = fs.ReadDir("/file")
	if _, ok := err.(fat16.NotDirectoryError); !ok {
		t.Errorf("expected NotDirectoryError, got %v", err)
	}

	err = fs.Create("/file")
	if _, ok := err.(fat16.ExistsError); !ok {
		t.Errorf("expected ExistsError, got %v", err)
	}

	_, err = fs.Read("/", make([]byte, 1), 0)
	if _, ok := err.(fat16.IsDirectoryError); !ok {
		t.Errorf("expected IsDirectoryError, got %v", err)
	}

	err = fs.Unlink("/")
	if _, ok := err.(fat16.IsDirectoryError); !ok {
		t.Errorf("expected IsDirectoryError, got %v", err)
	}
}

func TestDirectoryCapacity(t *testing.T) {
	fs := newTestFS(t)

	capacity := fs.Superblock().EntriesPerDirectory()

	if err := fs.Create("/keep.txt"); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.Write("/keep.txt", []byte("survivor"), 0); err != nil {
		t.Fatal(err)
	}

	// The root block has no dot records, so it holds capacity entries.
	for i := 1; i < capacity; i++ {
		if err := fs.Create(fmt.Sprintf("/f%d", i)); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	err := fs.Create("/over")
	if _, ok := err.(fat16.NoSpaceError); !ok {
		t.Fatalf("expected NoSpaceError, got %v", err)
	}

	// A full directory stays readable.
	buf := make([]byte, 8)
	n, err := fs.Read("/keep.txt", buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "survivor" {
		t.Errorf("read %q", buf[:n])
	}
}

func TestTruncateUpdatesSizeOnly(t *testing.T) {
	fs := newTestFS(t)

	if err := fs.Create("/f"); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.Write("/f", []byte("0123456789"), 0); err != nil {
		t.Fatal(err)
	}

	freeBefore := fs.FreeClusters()
	if err := fs.Truncate("/f", 4); err != nil {
		t.Fatal(err)
	}

	info, err := fs.Stat("/f")
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 4 {
		t.Errorf("size %d, want 4", info.Size())
	}
	if fs.FreeClusters() != freeBefore {
		t.Errorf("truncate changed cluster allocation")
	}

	buf := make([]byte, 16)
	n, err := fs.Read("/f", buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "0123" {
		t.Errorf("read %q after truncate", buf[:n])
	}

	err = fs.Truncate("/", 0)
	if _, ok := err.(fat16.IsDirectoryError); !ok {
		t.Errorf("expected IsDirectoryError, got %v", err)
	}
}

func TestUtimensResolvesPath(t *testing.T) {
	fs := newTestFS(t)

	if err := fs.Utimens("/"); err != nil {
		t.Fatal(err)
	}

	err := fs.Utimens("/missing")
	if _, ok := err.(fat16.NotFoundError); !ok {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestRename(t *testing.T) {
	fs := newTestFS(t)

	if err := fs.Mkdir("/a"); err != nil {
		t.Fatal(err)
	}
	if err := fs.Mkdir("/b"); err != nil {
		t.Fatal(err)
	}
	if err := fs.Create("/a/f.txt"); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.Write("/a/f.txt", []byte("payload"), 0); err != nil {
		t.Fatal(err)
	}

	if err := fs.Rename("/a/f.txt", "/b/g.txt"); err != nil {
		t.Fatal(err)
	}

	if _, err := fs.Stat("/a/f.txt"); err == nil {
		t.Error("source still exists after rename")
	}
	buf := make([]byte, 7)
	if _, err := fs.Read("/b/g.txt", buf, 0); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "payload" {
		t.Errorf("read %q after rename", buf)
	}

	// Moving a directory rewrites its ".." record.
	if err := fs.Mkdir("/a/sub"); err != nil {
		t.Fatal(err)
	}
	if err := fs.Rename("/a/sub", "/b/sub"); err != nil {
		t.Fatal(err)
	}
	if err := fs.Check(); err != nil {
		t.Errorf("consistency check after directory move: %v", err)
	}

	// A directory cannot be moved under itself.
	err := fs.Rename("/b", "/b/sub/b2")
	if _, ok := err.(fat16.InvalidPathError); !ok {
		t.Errorf("expected InvalidPathError, got %v", err)
	}

	// The target name must not exist.
	if err := fs.Create("/taken"); err != nil {
		t.Fatal(err)
	}
	err = fs.Rename("/b/g.txt", "/taken")
	if _, ok := err.(fat16.ExistsError); !ok {
		t.Errorf("expected ExistsError, got %v", err)
	}
}

func TestRemountPreservesTree(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")

	fs, err := fat16.Mount(path, nil)
	if err != nil {
		t.Fatal(err)
	}

	payload := bytes.Repeat([]byte("abc"), 5000)
	if err := fs.Mkdir("/docs"); err != nil {
		t.Fatal(err)
	}
	if err := fs.Create("/docs/report.txt"); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.Write("/docs/report.txt", payload, 0); err != nil {
		t.Fatal(err)
	}
	if err := fs.Create("/note"); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.Write("/note", []byte("remember"), 0); err != nil {
		t.Fatal(err)
	}

	if err := fs.Close(); err != nil {
		t.Fatal(err)
	}

	fs, err = fat16.Mount(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = fs.Close()
	}()

	if diff := cmp.Diff([]string{".", "..", "docs", "note"}, listNames(t, fs, "/")); diff != "" {
		t.Errorf("root listing after remount (-want +got):\n%s", diff)
	}

	back := make([]byte, len(payload))
	n, err := fs.Read("/docs/report.txt", back, 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(payload) || !bytes.Equal(payload, back) {
		t.Error("file contents changed across remount")
	}

	if err := fs.Check(); err != nil {
		t.Errorf("consistency check after remount: %v", err)
	}
}
