package fat16

import "encoding/binary"

const (
	// fatFree marks an unallocated cluster.
	fatFree = 0x0000

	// fatEOF terminates a cluster chain. It doubles as the
	// first-cluster sentinel of an empty file.
	fatEOF = 0xFFFF

	// fatMediaDescriptor occupies the reserved FAT entry 0.
	fatMediaDescriptor = 0xFFF8

	// firstDataCluster is the lowest allocatable cluster number;
	// entries 0 and 1 are reserved.
	firstDataCluster = 2
)

// fatTable is a view over the File Allocation Table region of the
// mapping: one little-endian uint16 link per cluster.
type fatTable struct {
	raw []byte
}

func (t fatTable) count() uint16 {
	return uint16(len(t.raw) / 2)
}

func (t fatTable) get(cluster uint16) uint16 {
	return binary.LittleEndian.Uint16(t.raw[int(cluster)*2:])
}

func (t fatTable) set(cluster, value uint16) {
	binary.LittleEndian.PutUint16(t.raw[int(cluster)*2:], value)
}

// isChainLink reports whether cluster is a usable data cluster number,
// as opposed to a sentinel (FREE, EOF) or an out-of-range value.
func (t fatTable) isChainLink(cluster uint16) bool {
	return cluster >= firstDataCluster && cluster < t.count()
}

// allocate claims the lowest-numbered free cluster and marks it as a
// chain of length one.
func (t fatTable) allocate() (uint16, error) {
	for cluster := uint16(firstDataCluster); cluster < t.count(); cluster++ {
		if t.get(cluster) == fatFree {
			t.set(cluster, fatEOF)
			return cluster, nil
		}
	}

	return 0, NoSpaceError{}
}

// extend allocates a cluster and links it after tail.
func (t fatTable) extend(tail uint16) (uint16, error) {
	cluster, err := t.allocate()
	if err != nil {
		return 0, err
	}
	t.set(tail, cluster)

	return cluster, nil
}

// freeChain releases every cluster reachable from head. The walk stops
// at EOF, at an already-free entry and after count() steps, so a
// corrupted cyclic chain cannot loop forever.
func (t fatTable) freeChain(head uint16) {
	cluster := head
	for steps := 0; steps < int(t.count()); steps++ {
		if !t.isChainLink(cluster) {
			return
		}
		next := t.get(cluster)
		t.set(cluster, fatFree)
		if !t.isChainLink(next) {
			return
		}
		cluster = next
	}
}

// chainLength counts the clusters reachable from head. An empty-file
// sentinel yields zero. Exceeding count() steps means the chain has a
// cycle.
func (t fatTable) chainLength(head uint16) (int, error) {
	if !t.isChainLink(head) {
		return 0, nil
	}

	length := 0
	cluster := head
	for {
		length++
		if length > int(t.count()) {
			return 0, CorruptionError{Detail: "cluster chain does not terminate"}
		}
		next := t.get(cluster)
		if !t.isChainLink(next) {
			return length, nil
		}
		cluster = next
	}
}

// chainTail returns the last cluster of the chain starting at head.
func (t fatTable) chainTail(head uint16) (uint16, error) {
	if !t.isChainLink(head) {
		return 0, CorruptionError{Detail: "chain tail of a sentinel cluster"}
	}

	cluster := head
	for steps := 0; steps < int(t.count()); steps++ {
		next := t.get(cluster)
		if !t.isChainLink(next) {
			return cluster, nil
		}
		cluster = next
	}

	return 0, CorruptionError{Detail: "cluster chain does not terminate"}
}

func (t fatTable) freeCount() int {
	free := 0
	for cluster := uint16(firstDataCluster); cluster < t.count(); cluster++ {
		if t.get(cluster) == fatFree {
			free++
		}
	}

	return free
}
