package fusefs

import (
	"context"
	"log/slog"
	"os"
	"path"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/avoronov/fat16fs/fat16"
)

// node represents one path of the image in the kernel's view. Nodes
// carry no filesystem state of their own; every operation resolves the
// path against the core again, so the mapping stays the single source
// of truth.
type node struct {
	gofuse.Inode
	fsys   *fat16.Filesystem
	path   string
	logger *slog.Logger
}

var _ gofuse.InodeEmbedder = (*node)(nil)
var _ gofuse.NodeGetattrer = (*node)(nil)
var _ gofuse.NodeSetattrer = (*node)(nil)
var _ gofuse.NodeLookuper = (*node)(nil)
var _ gofuse.NodeReaddirer = (*node)(nil)
var _ gofuse.NodeMkdirer = (*node)(nil)
var _ gofuse.NodeRmdirer = (*node)(nil)
var _ gofuse.NodeCreater = (*node)(nil)
var _ gofuse.NodeUnlinker = (*node)(nil)
var _ gofuse.NodeRenamer = (*node)(nil)
var _ gofuse.NodeOpener = (*node)(nil)
var _ gofuse.NodeReader = (*node)(nil)
var _ gofuse.NodeWriter = (*node)(nil)
var _ gofuse.NodeFsyncer = (*node)(nil)
var _ gofuse.NodeStatfser = (*node)(nil)

func (n *node) child(name string) string {
	return path.Join(n.path, name)
}

func (n *node) newChild(ctx context.Context, childPath string, info fat16.FileInfo) *gofuse.Inode {
	mode := uint32(syscall.S_IFREG)
	if info.IsDir() {
		mode = syscall.S_IFDIR
	}

	return n.NewInode(ctx, &node{
		fsys:   n.fsys,
		path:   childPath,
		logger: n.logger,
	}, gofuse.StableAttr{Mode: mode})
}

func (n *node) Getattr(_ context.Context, _ gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	info, err := n.fsys.Stat(n.path)
	if err != nil {
		return toErrno(err)
	}
	fillAttr(info, &out.Attr)

	return 0
}

// Setattr carries both truncate and utimens requests. Timestamps are
// accepted and dropped; the path must still resolve.
func (n *node) Setattr(_ context.Context, _ gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if size, ok := in.GetSize(); ok {
		err := n.fsys.Truncate(n.path, int64(size))
		if err != nil {
			return toErrno(err)
		}
	} else {
		err := n.fsys.Utimens(n.path)
		if err != nil {
			return toErrno(err)
		}
	}

	info, err := n.fsys.Stat(n.path)
	if err != nil {
		return toErrno(err)
	}
	fillAttr(info, &out.Attr)

	return 0
}

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	childPath := n.child(name)
	info, err := n.fsys.Stat(childPath)
	if err != nil {
		return nil, toErrno(err)
	}

	fillAttr(info, &out.Attr)
	return n.newChild(ctx, childPath, info), 0
}

func (n *node) Readdir(_ context.Context) (gofuse.DirStream, syscall.Errno) {
	infos, err := n.fsys.ReadDir(n.path)
	if err != nil {
		return nil, toErrno(err)
	}

	entries := make([]fuse.DirEntry, 0, len(infos))
	for _, info := range infos {
		mode := uint32(syscall.S_IFREG)
		if info.IsDir() {
			mode = syscall.S_IFDIR
		}
		entries = append(entries, fuse.DirEntry{
			Name: info.Name(),
			Mode: mode,
		})
	}

	return &sliceDirStream{entries: entries}, 0
}

func (n *node) Mkdir(ctx context.Context, name string, _ uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	childPath := n.child(name)
	err := n.fsys.Mkdir(childPath)
	if err != nil {
		return nil, toErrno(err)
	}

	info, err := n.fsys.Stat(childPath)
	if err != nil {
		return nil, toErrno(err)
	}

	fillAttr(info, &out.Attr)
	return n.newChild(ctx, childPath, info), 0
}

func (n *node) Rmdir(_ context.Context, name string) syscall.Errno {
	return toErrno(n.fsys.Rmdir(n.child(name)))
}

func (n *node) Create(ctx context.Context, name string, _ uint32, _ uint32, out *fuse.EntryOut) (*gofuse.Inode, gofuse.FileHandle, uint32, syscall.Errno) {
	childPath := n.child(name)
	err := n.fsys.Create(childPath)
	if err != nil {
		return nil, nil, 0, toErrno(err)
	}

	info, err := n.fsys.Stat(childPath)
	if err != nil {
		return nil, nil, 0, toErrno(err)
	}

	fillAttr(info, &out.Attr)
	return n.newChild(ctx, childPath, info), nil, 0, 0
}

func (n *node) Unlink(_ context.Context, name string) syscall.Errno {
	return toErrno(n.fsys.Unlink(n.child(name)))
}

func (n *node) Rename(_ context.Context, name string, newParent gofuse.InodeEmbedder, newName string, _ uint32) syscall.Errno {
	parent, ok := newParent.(*node)
	if !ok {
		return syscall.EXDEV
	}

	return toErrno(n.fsys.Rename(n.child(name), parent.child(newName)))
}

func (n *node) Open(_ context.Context, _ uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	info, err := n.fsys.Stat(n.path)
	if err != nil {
		return nil, 0, toErrno(err)
	}
	if info.IsDir() {
		return nil, 0, syscall.EISDIR
	}

	return nil, 0, 0
}

func (n *node) Read(_ context.Context, _ gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	read, err := n.fsys.Read(n.path, dest, off)
	if err != nil {
		n.logger.Error("read failed", "path", n.path, "offset", off, "error", err)
		return nil, toErrno(err)
	}

	return fuse.ReadResultData(dest[:read]), 0
}

func (n *node) Write(_ context.Context, _ gofuse.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	written, err := n.fsys.Write(n.path, data, off)
	if err != nil {
		n.logger.Error("write failed", "path", n.path, "offset", off, "error", err)
		return uint32(written), toErrno(err)
	}

	return uint32(written), 0
}

func (n *node) Fsync(_ context.Context, _ gofuse.FileHandle, _ uint32) syscall.Errno {
	err := n.fsys.Sync()
	if err != nil {
		n.logger.Error("sync failed", "error", err)
		return syscall.EIO
	}

	return 0
}

func (n *node) Statfs(_ context.Context, out *fuse.StatfsOut) syscall.Errno {
	sb := n.fsys.Superblock()
	out.Bsize = sb.ClusterSize
	out.Blocks = uint64(n.fsys.TotalClusters())
	out.Bfree = uint64(n.fsys.FreeClusters())
	out.Bavail = out.Bfree
	out.NameLen = fat16.MaxFilename + 1 + fat16.MaxExtension

	return 0
}

func fillAttr(info fat16.FileInfo, out *fuse.Attr) {
	if info.IsDir() {
		out.Mode = syscall.S_IFDIR | 0o755
		out.Nlink = 2
	} else {
		out.Mode = syscall.S_IFREG | 0o644
		out.Nlink = 1
		out.Size = uint64(info.Size())
	}
	out.Blksize = fat16.ClusterSize
	out.Blocks = (out.Size + 511) / 512
	out.Owner = fuse.Owner{
		Uid: uint32(os.Getuid()),
		Gid: uint32(os.Getgid()),
	}

	now := time.Now()
	out.SetTimes(&now, &now, &now)
}
