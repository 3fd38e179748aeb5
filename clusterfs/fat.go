package clusterfs

import (
	"encoding/binary"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"pageos/blockdev"
	"pageos/defs"
)

const entriesPerSector = blockdev.SectorSize / 4

// fatTable caches one FAT sector at a time (original_source's
// m_fatCache/m_fatCacheSector/m_fatCacheDirty single-sector cache),
// writing a dirty sector back to every mirrored FAT copy in parallel via
// errgroup before loading a different sector.
type fatTable struct {
	sync.Mutex
	disk           blockdev.Disk
	fatStartSector uint32
	sectorsPerFat  uint32
	numFats        uint32
	totalClusters  uint32

	cache       [entriesPerSector]uint32
	cacheSector uint32
	valid       bool
	dirty       bool
}

func mkFatTable(d blockdev.Disk, fatStart, sectorsPerFat, numFats, totalClusters uint32) *fatTable {
	return &fatTable{
		disk:           d,
		fatStartSector: fatStart,
		sectorsPerFat:  sectorsPerFat,
		numFats:        numFats,
		totalClusters:  totalClusters,
	}
}

func (f *fatTable) loadSectorLocked(sector uint32) defs.Err_t {
	if f.valid && f.cacheSector == sector {
		return 0
	}
	if err := f.flushLocked(); err != 0 {
		return err
	}
	var buf [blockdev.SectorSize]byte
	if err := f.disk.ReadSector(int(f.fatStartSector+sector), buf[:]); err != 0 {
		return err
	}
	for i := range f.cache {
		f.cache[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	f.cacheSector = sector
	f.valid = true
	f.dirty = false
	return 0
}

// flushLocked writes the cached sector to every mirrored FAT copy
// concurrently, matching original_source's dual-FAT-copy update but
// parallelized across copies instead of sequential.
func (f *fatTable) flushLocked() defs.Err_t {
	if !f.valid || !f.dirty {
		return 0
	}
	var buf [blockdev.SectorSize]byte
	for i, v := range f.cache {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	var g errgroup.Group
	for copyIdx := uint32(0); copyIdx < f.numFats; copyIdx++ {
		copyIdx := copyIdx
		g.Go(func() error {
			sector := int(f.fatStartSector) + int(copyIdx*f.sectorsPerFat) + int(f.cacheSector)
			if err := f.disk.WriteSector(sector, buf[:]); err != 0 {
				return fmt.Errorf("clusterfs: flush fat copy %d: err %d", copyIdx, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return -defs.EIO
	}
	f.dirty = false
	return 0
}

func (f *fatTable) flush() defs.Err_t {
	f.Lock()
	defer f.Unlock()
	return f.flushLocked()
}

func (f *fatTable) get(cluster uint32) (uint32, defs.Err_t) {
	f.Lock()
	defer f.Unlock()
	sector := cluster / entriesPerSector
	idx := cluster % entriesPerSector
	if err := f.loadSectorLocked(sector); err != 0 {
		return 0, err
	}
	return f.cache[idx] & ClusterMask, 0
}

func (f *fatTable) set(cluster, value uint32) defs.Err_t {
	f.Lock()
	defer f.Unlock()
	sector := cluster / entriesPerSector
	idx := cluster % entriesPerSector
	if err := f.loadSectorLocked(sector); err != 0 {
		return err
	}
	f.cache[idx] = (f.cache[idx] &^ ClusterMask) | (value & ClusterMask)
	f.dirty = true
	return 0
}

// allocate finds a free cluster, marks it end-of-chain, and returns it.
// Cluster 0 and 1 are reserved (Format puts the media-descriptor value in
// FAT[0] and an end-of-chain marker in FAT[1]), so the search starts at 2.
func (f *fatTable) allocate() (uint32, defs.Err_t) {
	for c := uint32(2); c < f.totalClusters+2; c++ {
		v, err := f.get(c)
		if err != 0 {
			return 0, err
		}
		if v == ClusterFree {
			if err := f.set(c, ClusterEndMax); err != 0 {
				return 0, err
			}
			return c, 0
		}
	}
	return 0, -defs.ENOSPC
}

// chain returns every cluster in the chain starting at first, in order.
func (f *fatTable) chain(first uint32) ([]uint32, defs.Err_t) {
	var out []uint32
	c := first
	for c != 0 && !isEnd(c) {
		if c == ClusterBad || (c >= ClusterReservedMin && c <= ClusterReservedMax) {
			return nil, -defs.EIO
		}
		out = append(out, c)
		next, err := f.get(c)
		if err != 0 {
			return nil, err
		}
		c = next
	}
	return out, 0
}

// extend appends a newly allocated cluster to the end of the chain whose
// last cluster is last, and returns the new cluster.
func (f *fatTable) extend(last uint32) (uint32, defs.Err_t) {
	next, err := f.allocate()
	if err != 0 {
		return 0, err
	}
	if err := f.set(last, next); err != 0 {
		return 0, err
	}
	return next, 0
}

// free releases every cluster in the chain starting at first.
func (f *fatTable) free(first uint32) defs.Err_t {
	chain, err := f.chain(first)
	if err != 0 {
		return err
	}
	for _, c := range chain {
		if err := f.set(c, ClusterFree); err != 0 {
			return err
		}
	}
	return 0
}
