package fat16

// Directory is a view over exactly one cluster-sized block of
// directory entries, borrowed from the mapping. Mutations write
// straight through to the image.
type Directory struct {
	raw []byte
}

func (d Directory) entryCount() int {
	return len(d.raw) / DirEntrySize
}

func (d Directory) slot(index int) []byte {
	return d.raw[index*DirEntrySize : (index+1)*DirEntrySize]
}

func (d Directory) entry(index int) DirEntry {
	return decodeDirEntry(d.slot(index))
}

func (d Directory) putEntry(index int, e DirEntry) {
	e.encode(d.slot(index))
}

// find scans all slots for a live entry whose 8.3 name matches name.
// Tombstoned and never-used slots are skipped; a directory scan always
// covers the whole block.
func (d Directory) find(name string) (int, DirEntry, bool) {
	wantName, wantExt := encodeName(name)
	for i := 0; i < d.entryCount(); i++ {
		e := d.entry(i)
		if e.IsFree() {
			continue
		}
		if e.Name == wantName && e.Ext == wantExt {
			return i, e, true
		}
	}

	return 0, DirEntry{}, false
}

// freeSlot returns the first reusable slot index.
func (d Directory) freeSlot() (int, error) {
	for i := 0; i < d.entryCount(); i++ {
		if d.entry(i).IsFree() {
			return i, nil
		}
	}

	return 0, NoSpaceError{}
}

// insert claims a free slot and writes e into it.
func (d Directory) insert(e DirEntry) (int, error) {
	index, err := d.freeSlot()
	if err != nil {
		return 0, err
	}
	d.putEntry(index, e)

	return index, nil
}

// tombstone marks the slot as deleted. Data clusters must already have
// been freed by the caller.
func (d Directory) tombstone(index int) {
	d.raw[index*DirEntrySize] = entryDeleted
}

// entryRef addresses one slot of a directory block so that callers can
// mutate the entry in place.
type entryRef struct {
	dir   Directory
	index int
}

func (r entryRef) get() DirEntry {
	return r.dir.entry(r.index)
}

func (r entryRef) put(e DirEntry) {
	r.dir.putEntry(r.index, e)
}
