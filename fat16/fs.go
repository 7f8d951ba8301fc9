package fat16

import (
	"log/slog"
	"os"
	"sync"
)

// Filesystem is a mounted FAT16 image. All operations serialize on a
// single filesystem-wide mutex; the upcall layer may call any method
// from any goroutine.
type Filesystem struct {
	mu     sync.Mutex
	img    *Image
	sb     Superblock
	logger *slog.Logger
}

// Mount opens or creates the image at path. A freshly created image is
// formatted; an existing one is trusted after superblock validation.
func Mount(path string, logger *slog.Logger) (*Filesystem, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	img, err := OpenImage(path)
	if err != nil {
		return nil, err
	}

	fs := &Filesystem{
		img:    img,
		logger: logger,
	}

	if img.Created() {
		err = fs.Format()
		if err != nil {
			_ = img.Close()
			return nil, err
		}
		logger.Info("image formatted",
			"path", path,
			"clusters", fs.sb.TotalClusters,
			"cluster_size", fs.sb.ClusterSize,
		)
	} else {
		sb, err := decodeSuperblock(img.Bytes())
		if err != nil {
			_ = img.Close()
			return nil, err
		}
		err = sb.Validate()
		if err != nil {
			_ = img.Close()
			return nil, err
		}
		fs.sb = sb
		logger.Debug("image opened", "path", path, "clusters", sb.TotalClusters)
	}

	return fs, nil
}

// Format wipes the image and writes a fresh filesystem structure:
// superblock, reserved FAT entries, empty root directory.
func (fs *Filesystem) Format() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data := fs.img.Bytes()
	for i := range data {
		data[i] = 0
	}

	sb := NewPreparedSuperblock(DiskSize, ClusterSize)
	err := sb.encode(data)
	if err != nil {
		return err
	}
	fs.sb = sb

	fat := fs.fat()
	fat.set(0, fatMediaDescriptor)
	fat.set(1, fatEOF)

	return nil
}

// Sync flushes the mapping to disk.
func (fs *Filesystem) Sync() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.img.Sync()
}

// Close flushes and unmaps the image. A failed flush is logged and the
// unmap still proceeds.
func (fs *Filesystem) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	err := fs.img.Close()
	if err != nil {
		fs.logger.Error("flushing image on close", "error", err)
	}

	return err
}

// Superblock returns a copy of the mounted layout descriptor.
func (fs *Filesystem) Superblock() Superblock {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.sb
}

// FreeClusters counts unallocated clusters.
func (fs *Filesystem) FreeClusters() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.fat().freeCount()
}

// TotalClusters returns the allocatable cluster count of the image.
func (fs *Filesystem) TotalClusters() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return int(fs.sb.TotalClusters) - firstDataCluster
}

// fat returns the FAT view. Callers must hold fs.mu.
func (fs *Filesystem) fat() fatTable {
	return fatTable{raw: fs.img.Bytes()[fs.sb.FATOffset : fs.sb.FATOffset+2*fs.sb.TotalClusters]}
}

// cluster returns the data bytes of cluster number n. Callers must
// hold fs.mu and must have range-checked n.
func (fs *Filesystem) cluster(n uint16) []byte {
	start := fs.sb.DataOffset + uint32(n-firstDataCluster)*fs.sb.ClusterSize

	return fs.img.Bytes()[start : start+fs.sb.ClusterSize]
}

// rootDir returns the dedicated root directory block, which lives
// outside the data area and has no FAT representation.
func (fs *Filesystem) rootDir() Directory {
	return Directory{raw: fs.img.Bytes()[fs.sb.RootDirOffset : fs.sb.RootDirOffset+fs.sb.ClusterSize]}
}

// dirLocation identifies a directory block: either the root region or
// a data cluster. Cluster number 0 in a ".." record also denotes the
// root.
type dirLocation struct {
	root    bool
	cluster uint16
}

func rootLocation() dirLocation {
	return dirLocation{root: true}
}

func clusterLocation(cluster uint16) dirLocation {
	if cluster == 0 {
		return rootLocation()
	}

	return dirLocation{cluster: cluster}
}

// parentCluster is the value a ".." record stores for this location.
func (loc dirLocation) parentCluster() uint16 {
	if loc.root {
		return 0
	}

	return loc.cluster
}

// dirAt resolves a directory location to its block view.
func (fs *Filesystem) dirAt(loc dirLocation) (Directory, error) {
	if loc.root {
		return fs.rootDir(), nil
	}
	if !fs.fat().isChainLink(loc.cluster) {
		return Directory{}, CorruptionError{Detail: "directory cluster out of range"}
	}

	return Directory{raw: fs.cluster(loc.cluster)}, nil
}
