package blockfs

// FileInfo describes a file as currently held in memory.
type FileInfo struct {
	Name      string
	Size      int
	Inode     int
	DataBlock uint32
	Checksum  uint16
	Open      bool
}

// Info describes a mounted file system.
type Info struct {
	InodeCount      int
	PrimaryInodes   int
	OverflowInodes  int
	MetadataBlocks  int
	Capacity        int64
	UsedInodes      int
	FreeInodes      int
	OpenDescriptors int
	FlushPolicy     FlushPolicy
	Dirty           bool
}

// Stat returns information about a single file.
func (f *FileSystem) Stat(name string) (FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkMounted(); err != nil {
		return FileInfo{}, opError("stat", name, noFD, err)
	}
	slot := f.meta.Lookup(name)
	if slot < 0 {
		return FileInfo{}, opError("stat", name, noFD, ErrNotFound)
	}
	return f.fileInfo(slot), nil
}

// List returns every file in inode slot order. It returns nil after Unmount.
func (f *FileSystem) List() []FileInfo {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.checkMounted() != nil {
		return nil
	}
	var files []FileInfo
	for i := 0; i < f.layout.InodeCount; i++ {
		if f.meta.Map[i] {
			files = append(files, f.fileInfo(i))
		}
	}
	return files
}

// Info returns the layout and usage of the file system. It returns the
// zero Info after Unmount.
func (f *FileSystem) Info() Info {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.checkMounted() != nil {
		return Info{}
	}
	used := f.meta.Used()
	return Info{
		InodeCount:      f.layout.InodeCount,
		PrimaryInodes:   f.layout.PrimaryInodes,
		OverflowInodes:  f.layout.OverflowInodes,
		MetadataBlocks:  f.layout.MetadataBlocks(),
		Capacity:        f.layout.Capacity(),
		UsedInodes:      used,
		FreeInodes:      f.layout.InodeCount - used,
		OpenDescriptors: f.openCount(),
		FlushPolicy:     f.flush,
		Dirty:           f.dirty,
	}
}

func (f *FileSystem) fileInfo(slot int) FileInfo {
	in := f.meta.Inodes[slot]
	return FileInfo{
		Name:      in.Name,
		Size:      int(in.Size),
		Inode:     slot,
		DataBlock: f.layout.DataBlock(slot),
		Checksum:  in.Checksum,
		Open:      f.isOpen(slot),
	}
}
