package fat16

import "time"

// readAt copies up to len(p) bytes starting at offset from the file
// addressed by ref. Reads past file_size are clamped; a chain that
// ends early returns the bytes copied so far. Callers must hold fs.mu.
func (fs *Filesystem) readAt(ref entryRef, p []byte, offset int64) (int, error) {
	entry := ref.get()
	size := int64(entry.FileSize)
	if offset >= size {
		return 0, nil
	}
	if offset+int64(len(p)) > size {
		p = p[:size-offset]
	}
	if len(p) == 0 {
		return 0, nil
	}

	fat := fs.fat()
	if !fat.isChainLink(entry.FirstCluster) {
		return 0, nil
	}

	clusterSize := int64(fs.sb.ClusterSize)
	cluster := entry.FirstCluster

	// Skip the whole clusters before offset.
	chainStart := int64(0)
	steps := 0
	for chainStart+clusterSize <= offset {
		cluster = fat.get(cluster)
		chainStart += clusterSize
		if !fat.isChainLink(cluster) {
			return 0, nil
		}
		steps++
		if steps > int(fat.count()) {
			return 0, CorruptionError{Detail: "cluster chain does not terminate"}
		}
	}

	read := 0
	for read < len(p) {
		within := offset + int64(read) - chainStart
		n := clusterSize - within
		if n > int64(len(p)-read) {
			n = int64(len(p) - read)
		}
		copy(p[read:], fs.cluster(cluster)[within:within+n])
		read += int(n)

		if read < len(p) {
			cluster = fat.get(cluster)
			if !fat.isChainLink(cluster) {
				break
			}
			chainStart += clusterSize
			steps++
			if steps > int(fat.count()) {
				return read, CorruptionError{Detail: "cluster chain does not terminate"}
			}
		}
	}

	return read, nil
}

// writeAt copies p into the file at offset, extending the cluster
// chain as needed. When the allocator runs dry mid-extension the write
// is clamped to the clusters that exist; already-allocated clusters
// stay linked to the file. Callers must hold fs.mu.
func (fs *Filesystem) writeAt(ref entryRef, p []byte, offset int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	entry := ref.get()
	fat := fs.fat()
	clusterSize := int64(fs.sb.ClusterSize)

	length := 0
	var tail uint16
	if fat.isChainLink(entry.FirstCluster) {
		var err error
		length, err = fat.chainLength(entry.FirstCluster)
		if err != nil {
			return 0, err
		}
		tail, err = fat.chainTail(entry.FirstCluster)
		if err != nil {
			return 0, err
		}
	}

	required := int((offset + int64(len(p)) + clusterSize - 1) / clusterSize)
	for length < required {
		var cluster uint16
		var err error
		if length == 0 {
			cluster, err = fat.allocate()
			if err != nil {
				break
			}
			entry.FirstCluster = cluster
		} else {
			cluster, err = fat.extend(tail)
			if err != nil {
				break
			}
		}
		tail = cluster
		length++
	}

	// Clamp to the capacity of the chain that exists now.
	capacity := int64(length) * clusterSize
	if offset+int64(len(p)) > capacity {
		if offset >= capacity {
			ref.put(entry)
			return 0, NoSpaceError{}
		}
		p = p[:capacity-offset]
	}

	cluster := entry.FirstCluster
	chainStart := int64(0)
	steps := 0
	for chainStart+clusterSize <= offset {
		cluster = fat.get(cluster)
		chainStart += clusterSize
		if !fat.isChainLink(cluster) {
			ref.put(entry)
			return 0, CorruptionError{Detail: "cluster chain shorter than its counted length"}
		}
		steps++
		if steps > int(fat.count()) {
			ref.put(entry)
			return 0, CorruptionError{Detail: "cluster chain does not terminate"}
		}
	}

	written := 0
	for written < len(p) {
		within := offset + int64(written) - chainStart
		n := clusterSize - within
		if n > int64(len(p)-written) {
			n = int64(len(p) - written)
		}
		copy(fs.cluster(cluster)[within:], p[written:written+int(n)])
		written += int(n)

		if written < len(p) {
			cluster = fat.get(cluster)
			if !fat.isChainLink(cluster) {
				break
			}
			chainStart += clusterSize
			steps++
			if steps > int(fat.count()) {
				break
			}
		}
	}

	if offset+int64(written) > int64(entry.FileSize) {
		entry.FileSize = uint32(offset + int64(written))
	}
	now := time.Now()
	entry.Time = fatTime(now)
	entry.Date = fatDate(now)
	ref.put(entry)

	if written == 0 {
		return 0, NoSpaceError{}
	}

	return written, nil
}
