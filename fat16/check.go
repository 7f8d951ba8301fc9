package fat16

import "fmt"

// Check verifies the on-disk invariants: reserved FAT entries, chain
// termination, no cluster shared between chains, no allocated cluster
// unreachable from the tree, "."/".." backlinks and recorded sizes
// within chain capacity. The first inconsistency found is returned.
func (fs *Filesystem) Check() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fat := fs.fat()
	if fat.get(0) != fatMediaDescriptor {
		return fmt.Errorf("reserved FAT entry 0 is %#04x, expected %#04x", fat.get(0), uint16(fatMediaDescriptor))
	}
	if fat.get(1) != fatEOF {
		return fmt.Errorf("reserved FAT entry 1 is %#04x, expected end-of-chain", fat.get(1))
	}

	owner := make(map[uint16]string)
	err := fs.checkDir(rootLocation(), "/", owner)
	if err != nil {
		return err
	}

	// Every allocated cluster must have been claimed by the walk.
	for cluster := uint16(firstDataCluster); cluster < fat.count(); cluster++ {
		if fat.get(cluster) == fatFree {
			continue
		}
		if _, ok := owner[cluster]; !ok {
			return fmt.Errorf("cluster %d is allocated but not reachable from any entry", cluster)
		}
	}

	return nil
}

func (fs *Filesystem) checkDir(loc dirLocation, path string, owner map[uint16]string) error {
	dir, err := fs.dirAt(loc)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	fat := fs.fat()

	for i := 0; i < dir.entryCount(); i++ {
		e := dir.entry(i)
		if e.IsFree() || e.isDotRecord() {
			continue
		}

		childPath := path + e.DisplayName()
		if e.IsDir() {
			cluster := e.FirstCluster
			if !fat.isChainLink(cluster) {
				return fmt.Errorf("%s: directory cluster %d out of range", childPath, cluster)
			}
			err = claimCluster(owner, cluster, childPath)
			if err != nil {
				return err
			}

			child, err := fs.dirAt(clusterLocation(cluster))
			if err != nil {
				return fmt.Errorf("%s: %w", childPath, err)
			}
			dot := child.entry(0)
			if !dot.isDotRecord() || dot.FirstCluster != cluster {
				return fmt.Errorf("%s: \".\" record does not point back to cluster %d", childPath, cluster)
			}
			dotdot := child.entry(1)
			if !dotdot.isDotRecord() || dotdot.FirstCluster != loc.parentCluster() {
				return fmt.Errorf("%s: \"..\" record does not point to the parent", childPath)
			}

			err = fs.checkDir(clusterLocation(cluster), childPath+"/", owner)
			if err != nil {
				return err
			}
			continue
		}

		length, err := fat.chainLength(e.FirstCluster)
		if err != nil {
			return fmt.Errorf("%s: %w", childPath, err)
		}
		if int64(e.FileSize) > int64(length)*int64(fs.sb.ClusterSize) {
			return fmt.Errorf("%s: recorded size %d exceeds chain capacity of %d clusters", childPath, e.FileSize, length)
		}

		cluster := e.FirstCluster
		for steps := 0; steps < length; steps++ {
			err = claimCluster(owner, cluster, childPath)
			if err != nil {
				return err
			}
			cluster = fat.get(cluster)
		}
	}

	return nil
}

func claimCluster(owner map[uint16]string, cluster uint16, path string) error {
	if other, ok := owner[cluster]; ok {
		return fmt.Errorf("cluster %d is shared by %s and %s", cluster, other, path)
	}
	owner[cluster] = path

	return nil
}
