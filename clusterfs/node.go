package clusterfs

import (
	"sync"

	"pageos/blockdev"
	"pageos/defs"
	"pageos/stat"
	"pageos/ustr"
	"pageos/vfs"
)

const direntsPerCluster = (blockdev.SectorSize * sectorsPerCluster) / direntSize

// Node is one file or directory vnode, matching original_source's
// FAT32Node: an inode number (here, the entry's first cluster), a type,
// a cached size, and — for regular files and subdirectories, not the
// volume root — the location of this node's own directory entry, so
// writes that grow the file can update its on-disk size field.
type Node struct {
	sync.Mutex
	fs           *FS
	firstCluster uint32
	kind         vfs.FileType
	size         uint32

	entryCluster uint32 // 0 means "no backing entry" (the volume root)
	entryIndex   int
}

var _ vfs.Vnode = (*Node)(nil)

func (n *Node) Size() uint32 { return n.size }

func (n *Node) Type() vfs.FileType { return n.kind }

// Inode returns the node's first cluster (original_source uses an
// incrementing m_nextInode instead; there is no separate inode allocator
// here). A regular file that has never been written has first cluster 0,
// so empty files all report inode 0 and a file's inode changes when its
// first write allocates a cluster.
func (n *Node) Inode() uint32 { return n.firstCluster }

func (n *Node) Stat(st *stat.Stat_t) defs.Err_t {
	n.Lock()
	defer n.Unlock()
	st.Wino(n.firstCluster)
	st.Wsize(n.size)
	mode := uint32(0644)
	if n.kind == vfs.FtDirectory {
		mode = 0755 | 0x4000
	}
	st.Wmode(mode)
	return 0
}

// Read implements vfs.Vnode.Read for regular files: walk the cluster
// chain, copying each cluster's overlap with [off, off+len(dst)) into dst.
func (n *Node) Read(dst []byte, off uint32) (int, defs.Err_t) {
	n.Lock()
	defer n.Unlock()
	if n.kind != vfs.FtRegular {
		return 0, -defs.EISDIR
	}
	if off >= n.size {
		return 0, 0
	}
	want := len(dst)
	if uint32(want) > n.size-off {
		want = int(n.size - off)
	}
	if n.firstCluster == 0 || want == 0 {
		return 0, 0
	}
	chain, err := n.fs.fat.chain(n.firstCluster)
	if err != 0 {
		return 0, err
	}
	bpc := n.fs.bytesPerCluster
	read := 0
	for read < want {
		abs := off + uint32(read)
		ci := int(abs / bpc)
		if ci >= len(chain) {
			break
		}
		cbuf, err := n.fs.readCluster(chain[ci])
		if err != 0 {
			return read, err
		}
		start := abs % bpc
		c := copy(dst[read:want], cbuf[start:])
		read += c
		if c == 0 {
			break
		}
	}
	return read, 0
}

// Write implements vfs.Vnode.Write: extend the cluster chain as needed to
// cover [off, off+len(src)), write through, update the cached size and
// (for non-root files) the on-disk directory entry's size field.
func (n *Node) Write(src []byte, off uint32) (int, defs.Err_t) {
	n.Lock()
	defer n.Unlock()
	if n.kind != vfs.FtRegular {
		return 0, -defs.EISDIR
	}
	end := off + uint32(len(src))
	bpc := n.fs.bytesPerCluster
	neededClusters := int((end + bpc - 1) / bpc)
	if neededClusters == 0 {
		neededClusters = 1
	}

	var chain []uint32
	if n.firstCluster != 0 {
		var err defs.Err_t
		chain, err = n.fs.fat.chain(n.firstCluster)
		if err != 0 {
			return 0, err
		}
	}
	for len(chain) < neededClusters {
		var next uint32
		var err defs.Err_t
		if len(chain) == 0 {
			next, err = n.fs.fat.allocate()
			if err == 0 {
				n.firstCluster = next
			}
		} else {
			next, err = n.fs.fat.extend(chain[len(chain)-1])
		}
		if err != 0 {
			return 0, err
		}
		chain = append(chain, next)
	}

	written := 0
	for written < len(src) {
		abs := off + uint32(written)
		ci := int(abs / bpc)
		cbuf, err := n.fs.readCluster(chain[ci])
		if err != 0 {
			return written, err
		}
		start := abs % bpc
		c := copy(cbuf[start:], src[written:])
		if werr := n.fs.writeCluster(chain[ci], cbuf); werr != 0 {
			return written, werr
		}
		written += c
		if c == 0 {
			break
		}
	}

	if end > n.size {
		n.size = end
	}
	if err := n.syncEntryLocked(); err != 0 {
		return written, err
	}
	return written, 0
}

// syncEntryLocked writes the node's current firstCluster/size back to its
// own on-disk directory entry. The volume root has no backing entry.
func (n *Node) syncEntryLocked() defs.Err_t {
	if n.entryCluster == 0 {
		return 0
	}
	cbuf, err := n.fs.readCluster(n.entryCluster)
	if err != 0 {
		return err
	}
	off := n.entryIndex * direntSize
	var e dirent
	copy(e.raw[:], cbuf[off:off+direntSize])
	e.setFirstCluster(n.firstCluster)
	e.setFileSize(n.size)
	copy(cbuf[off:off+direntSize], e.raw[:])
	return n.fs.writeCluster(n.entryCluster, cbuf)
}

// dirScan walks a directory's cluster chain, invoking f for each live
// (non-free, non-deleted, non-volume-ID, non-long-name) entry along with
// its backing cluster and slot index. f returning false stops the scan.
func (n *Node) dirScan(f func(e *dirent, cluster uint32, index int) bool) defs.Err_t {
	if n.firstCluster == 0 {
		return 0
	}
	chain, err := n.fs.fat.chain(n.firstCluster)
	if err != 0 {
		return err
	}
	for _, c := range chain {
		cbuf, err := n.fs.readCluster(c)
		if err != 0 {
			return err
		}
		count := int(direntsPerCluster)
		for i := 0; i < count; i++ {
			var e dirent
			copy(e.raw[:], cbuf[i*direntSize:(i+1)*direntSize])
			if e.isFree() {
				return 0
			}
			if e.isDeleted() || e.isVolumeID() || e.isLongName() {
				continue
			}
			if !f(&e, c, i) {
				return 0
			}
		}
	}
	return 0
}

func (n *Node) childFromEntry(e *dirent, cluster uint32, index int) *Node {
	kind := vfs.FtRegular
	if e.isDirectory() {
		kind = vfs.FtDirectory
	}
	return &Node{
		fs:           n.fs,
		firstCluster: e.firstCluster(),
		kind:         kind,
		size:         e.fileSize(),
		entryCluster: cluster,
		entryIndex:   index,
	}
}

func (n *Node) Lookup(name ustr.Ustr) (vfs.Vnode, defs.Err_t) {
	n.Lock()
	defer n.Unlock()
	if n.kind != vfs.FtDirectory {
		return nil, -defs.ENOTDIR
	}
	want := encode83(name)
	var found *Node
	err := n.dirScan(func(e *dirent, cluster uint32, index int) bool {
		if e.nameRaw() == want {
			found = n.childFromEntry(e, cluster, index)
			return false
		}
		return true
	})
	if err != 0 {
		return nil, err
	}
	if found == nil {
		return nil, -defs.ENOENT
	}
	return found, 0
}

func (n *Node) Readdir(idx int) (vfs.DirEnt, defs.Err_t) {
	n.Lock()
	defer n.Unlock()
	if n.kind != vfs.FtDirectory {
		return vfs.DirEnt{}, -defs.ENOTDIR
	}
	i := 0
	var result vfs.DirEnt
	found := false
	err := n.dirScan(func(e *dirent, cluster uint32, index int) bool {
		if i == idx {
			result = vfs.DirEnt{Name: decode83(e.nameRaw()), Ino: e.firstCluster()}
			if e.isDirectory() {
				result.Type = vfs.FtDirectory
			} else {
				result.Type = vfs.FtRegular
			}
			found = true
			return false
		}
		i++
		return true
	})
	if err != 0 {
		return vfs.DirEnt{}, err
	}
	if !found {
		return vfs.DirEnt{}, -defs.ENOENT
	}
	return result, 0
}

// findFreeSlot returns the cluster and index of a free or deleted slot in
// the directory, extending the chain with a fresh zeroed cluster if every
// existing slot is occupied.
func (n *Node) findFreeSlot() (uint32, int, defs.Err_t) {
	var slotCluster uint32
	slotIndex := -1
	if n.firstCluster != 0 {
		err := n.dirScanAll(func(e *dirent, cluster uint32, index int) bool {
			if e.isFree() || e.isDeleted() {
				slotCluster, slotIndex = cluster, index
				return false
			}
			return true
		})
		if err != 0 {
			return 0, 0, err
		}
	}
	if slotIndex >= 0 {
		return slotCluster, slotIndex, 0
	}

	if n.firstCluster == 0 {
		c, err := n.fs.fat.allocate()
		if err != 0 {
			return 0, 0, err
		}
		if err := n.fs.zeroCluster(c); err != 0 {
			return 0, 0, err
		}
		n.firstCluster = c
		return c, 0, 0
	}
	chain, err := n.fs.fat.chain(n.firstCluster)
	if err != 0 {
		return 0, 0, err
	}
	c, err := n.fs.fat.extend(chain[len(chain)-1])
	if err != 0 {
		return 0, 0, err
	}
	if err := n.fs.zeroCluster(c); err != 0 {
		return 0, 0, err
	}
	return c, 0, 0
}

// dirScanAll is like dirScan but also visits free/deleted slots, used by
// findFreeSlot.
func (n *Node) dirScanAll(f func(e *dirent, cluster uint32, index int) bool) defs.Err_t {
	if n.firstCluster == 0 {
		return 0
	}
	chain, err := n.fs.fat.chain(n.firstCluster)
	if err != 0 {
		return err
	}
	for _, c := range chain {
		cbuf, err := n.fs.readCluster(c)
		if err != 0 {
			return err
		}
		for i := 0; i < int(direntsPerCluster); i++ {
			var e dirent
			copy(e.raw[:], cbuf[i*direntSize:(i+1)*direntSize])
			if !f(&e, c, i) {
				return 0
			}
		}
	}
	return 0
}

func (n *Node) Create(name ustr.Ustr, t vfs.FileType) (vfs.Vnode, defs.Err_t) {
	n.Lock()
	defer n.Unlock()
	if n.kind != vfs.FtDirectory {
		return nil, -defs.ENOTDIR
	}
	if _, err := n.lookupLocked(name); err == 0 {
		return nil, -defs.EEXIST
	}

	cluster, index, err := n.findFreeSlot()
	if err != 0 {
		return nil, err
	}

	child := &Node{fs: n.fs, kind: t, entryCluster: cluster, entryIndex: index}
	if t == vfs.FtDirectory {
		c, aerr := n.fs.fat.allocate()
		if aerr != 0 {
			return nil, aerr
		}
		if zerr := n.fs.zeroCluster(c); zerr != 0 {
			return nil, zerr
		}
		child.firstCluster = c
	}

	if werr := n.writeEntryLocked(cluster, index, name, child); werr != 0 {
		return nil, werr
	}
	return child, 0
}

func (n *Node) Mkdir(name ustr.Ustr) (vfs.Vnode, defs.Err_t) {
	return n.Create(name, vfs.FtDirectory)
}

func (n *Node) writeEntryLocked(cluster uint32, index int, name ustr.Ustr, child *Node) defs.Err_t {
	cbuf, err := n.fs.readCluster(cluster)
	if err != 0 {
		return err
	}
	var e dirent
	e.setNameRaw(encode83(name))
	if child.kind == vfs.FtDirectory {
		e.setAttr(AttrDir)
	} else {
		e.setAttr(AttrArchive)
	}
	e.setFirstCluster(child.firstCluster)
	e.setFileSize(child.size)
	copy(cbuf[index*direntSize:(index+1)*direntSize], e.raw[:])
	return n.fs.writeCluster(cluster, cbuf)
}

func (n *Node) lookupLocked(name ustr.Ustr) (*Node, defs.Err_t) {
	want := encode83(name)
	var found *Node
	err := n.dirScan(func(e *dirent, cluster uint32, index int) bool {
		if e.nameRaw() == want {
			found = n.childFromEntry(e, cluster, index)
			return false
		}
		return true
	})
	if err != 0 {
		return nil, err
	}
	if found == nil {
		return nil, -defs.ENOENT
	}
	return found, 0
}

func (n *Node) Unlink(name ustr.Ustr) defs.Err_t {
	n.Lock()
	defer n.Unlock()
	if n.kind != vfs.FtDirectory {
		return -defs.ENOTDIR
	}
	var target *dirent
	var targetCluster uint32
	var targetIndex int
	err := n.dirScan(func(e *dirent, cluster uint32, index int) bool {
		if e.nameRaw() == encode83(name) {
			target, targetCluster, targetIndex = e, cluster, index
			return false
		}
		return true
	})
	if err != 0 {
		return err
	}
	if target == nil {
		return -defs.ENOENT
	}
	if target.isDirectory() {
		child := n.childFromEntry(target, targetCluster, targetIndex)
		nonEmpty := false
		if derr := child.dirScan(func(*dirent, uint32, int) bool { nonEmpty = true; return false }); derr != 0 {
			return derr
		}
		if nonEmpty {
			return -defs.ENOTEMPTY
		}
	}
	if target.firstCluster() != 0 {
		if err := n.fs.fat.free(target.firstCluster()); err != 0 {
			return err
		}
	}
	cbuf, err := n.fs.readCluster(targetCluster)
	if err != 0 {
		return err
	}
	target.markDeleted()
	copy(cbuf[targetIndex*direntSize:(targetIndex+1)*direntSize], target.raw[:])
	return n.fs.writeCluster(targetCluster, cbuf)
}
