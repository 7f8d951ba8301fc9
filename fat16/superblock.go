package fat16

import (
	"bytes"
	"encoding/binary"
)

const (
	// DiskSize is the fixed size of the backing image. Images are not
	// portable across builds with a different DiskSize or ClusterSize.
	DiskSize = 16 * 1024 * 1024

	// ClusterSize is the allocation unit of the data area. Directories
	// occupy exactly one cluster.
	ClusterSize = 4096

	MaxFilename  = 8
	MaxExtension = 3
)

// SuperblockSize is the encoded size of the superblock at image offset 0.
const SuperblockSize = 20

// Superblock records the on-disk layout: how many clusters the image
// holds and where the FAT, the root directory block and the data area
// begin. All fields are stored little-endian.
type Superblock struct {
	TotalClusters uint32
	FATOffset     uint32
	RootDirOffset uint32
	DataOffset    uint32
	ClusterSize   uint32
}

// NewPreparedSuperblock lays out a fresh image: superblock, FAT (two
// bytes per cluster), one root directory block, then the data area.
func NewPreparedSuperblock(diskSize, clusterSize uint32) Superblock {
	sb := Superblock{
		// Every cluster costs its data bytes plus one 16-bit FAT slot.
		TotalClusters: (diskSize - SuperblockSize) / (clusterSize + 2),
		ClusterSize:   clusterSize,
	}

	offset := uint32(SuperblockSize)
	sb.FATOffset = offset
	offset += sb.TotalClusters * 2
	sb.RootDirOffset = offset
	offset += clusterSize
	sb.DataOffset = offset

	return sb
}

func decodeSuperblock(raw []byte) (Superblock, error) {
	var sb Superblock
	err := binary.Read(bytes.NewReader(raw[:SuperblockSize]), binary.LittleEndian, &sb)
	if err != nil {
		return Superblock{}, err
	}

	return sb, nil
}

func (sb Superblock) encode(raw []byte) error {
	buf := new(bytes.Buffer)
	err := binary.Write(buf, binary.LittleEndian, sb)
	if err != nil {
		return err
	}
	copy(raw, buf.Bytes())

	return nil
}

// EntriesPerDirectory is the fixed capacity of a directory block.
func (sb Superblock) EntriesPerDirectory() int {
	return int(sb.ClusterSize) / DirEntrySize
}

// Validate checks that the recorded layout fits inside the mapped image.
// A superblock that fails validation means the image was built by a
// different driver or has been damaged.
func (sb Superblock) Validate() error {
	if sb.ClusterSize == 0 || sb.ClusterSize%DirEntrySize != 0 {
		return CorruptionError{Detail: "invalid cluster size in superblock"}
	}
	if sb.TotalClusters < firstDataCluster+1 || sb.TotalClusters >= 0xFFF0 {
		return CorruptionError{Detail: "invalid cluster count in superblock"}
	}
	if sb.FATOffset < SuperblockSize || sb.FATOffset+2*sb.TotalClusters > DiskSize {
		return CorruptionError{Detail: "FAT region out of bounds"}
	}
	if sb.RootDirOffset < sb.FATOffset+2*sb.TotalClusters || sb.RootDirOffset+sb.ClusterSize > DiskSize {
		return CorruptionError{Detail: "root directory region out of bounds"}
	}
	dataEnd := uint64(sb.DataOffset) + uint64(sb.TotalClusters-firstDataCluster)*uint64(sb.ClusterSize)
	if sb.DataOffset < sb.RootDirOffset+sb.ClusterSize || dataEnd > DiskSize {
		return CorruptionError{Detail: "data region out of bounds"}
	}

	return nil
}
