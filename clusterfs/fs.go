package clusterfs

import (
	"sync"

	"pageos/blockdev"
	"pageos/defs"
	"pageos/vfs"
)

// reservedSectors, numFats and sectorsPerCluster are the layout choices
// Format bakes into every volume it writes. Mount reads the reserved
// sector count, FAT count, FAT size and root cluster back from the on-disk
// bpb, but cluster addressing, cluster reads/writes and the per-cluster
// directory-entry count always use sectorsPerCluster (one sector), so a
// volume with a larger cluster size is not read correctly.
const (
	reservedSectors   = 32
	numFatsDefault    = 2
	sectorsPerCluster = 1
	rootClusterNum    = 2
)

// FS is a mounted cluster-chain volume, matching original_source's FAT32
// class: a BlockDevice plus the parsed bpb and a cached FAT, exposed to
// the kernel as a vfs.FileSystem.
type FS struct {
	sync.RWMutex
	disk blockdev.Disk
	fat  *fatTable

	bytesPerCluster uint32
	dataStartSector uint32
	rootCluster     uint32
	totalClusters   uint32

	root *Node
}

// Mount parses the boot parameter block and FAT geometry off d and
// returns a ready-to-use FS, matching original_source's FAT32::mount
// (parse_bpb then compute m_fatStartSector/m_dataStartSector).
func Mount(d blockdev.Disk) (*FS, defs.Err_t) {
	b, err := readBpb(d)
	if err != 0 {
		return nil, err
	}
	fatStart := uint32(b.ReservedSectorCount())
	dataStart := fatStart + uint32(b.NumFats())*b.FatSize32()
	bytesPerCluster := uint32(b.BytesPerSector()) * uint32(b.SectorsPerCluster())
	totalSectors := b.TotalSectors32()
	if totalSectors == 0 {
		totalSectors = uint32(d.NumSectors())
	}
	dataSectors := totalSectors - dataStart
	totalClusters := dataSectors / uint32(b.SectorsPerCluster())

	fs := &FS{
		disk:            d,
		fat:             mkFatTable(d, fatStart, b.FatSize32(), uint32(b.NumFats()), totalClusters),
		bytesPerCluster: bytesPerCluster,
		dataStartSector: dataStart,
		rootCluster:     b.RootCluster(),
		totalClusters:   totalClusters,
	}
	fs.root = &Node{fs: fs, firstCluster: fs.rootCluster, kind: vfs.FtDirectory}
	return fs, 0
}

// Format writes a fresh, empty volume to d: a boot parameter block sized
// to fit d's sector count, two zeroed FAT copies, and an empty root
// directory cluster. Grounded on mkfs/mkfs.go and ufs.go's MkDisk flow,
// retargeted at this on-disk format instead of biscuit's log-structured
// one.
func Format(d blockdev.Disk, label string) defs.Err_t {
	totalSectors := uint32(d.NumSectors())
	if totalSectors <= reservedSectors+numFatsDefault {
		return -defs.EINVAL
	}

	fatSize := uint32(1)
	for i := 0; i < 64; i++ {
		dataStart := reservedSectors + numFatsDefault*fatSize
		if dataStart >= totalSectors {
			return -defs.ENOSPC
		}
		dataSectors := totalSectors - dataStart
		totalClusters := dataSectors / sectorsPerCluster
		neededEntries := totalClusters + 2
		neededSectors := (neededEntries*4 + blockdev.SectorSize - 1) / blockdev.SectorSize
		if neededSectors <= fatSize {
			break
		}
		fatSize = neededSectors
	}

	b := &bpb{}
	b.raw[0], b.raw[1], b.raw[2] = 0xEB, 0x00, 0x90
	copy(b.raw[3:11], "CLUSTFS ")
	b.setBytesPerSector(blockdev.SectorSize)
	b.setSectorsPerCluster(sectorsPerCluster)
	b.setReservedSectorCount(reservedSectors)
	b.setNumFats(numFatsDefault)
	b.setMedia(0xF8)
	b.setFatSize32(fatSize)
	b.setRootCluster(rootClusterNum)
	b.setTotalSectors32(totalSectors)
	b.setBootSignature(0x29)
	b.setVolumeLabel(label)
	if err := d.WriteSector(0, b.raw[:]); err != 0 {
		return err
	}

	var zero [blockdev.SectorSize]byte
	for s := uint32(1); s < reservedSectors+numFatsDefault*fatSize; s++ {
		if err := d.WriteSector(int(s), zero[:]); err != 0 {
			return err
		}
	}

	dataStart := reservedSectors + numFatsDefault*fatSize
	dataSectors := totalSectors - dataStart
	totalClusters := dataSectors / sectorsPerCluster

	fs := &FS{
		disk:            d,
		fat:             mkFatTable(d, reservedSectors, fatSize, numFatsDefault, totalClusters),
		bytesPerCluster: blockdev.SectorSize * sectorsPerCluster,
		dataStartSector: dataStart,
		rootCluster:     rootClusterNum,
		totalClusters:   totalClusters,
	}
	if err := fs.fat.set(0, 0x0FFFFFF8); err != 0 {
		return err
	}
	if err := fs.fat.set(1, ClusterEndMax); err != 0 {
		return err
	}
	if err := fs.fat.set(rootClusterNum, ClusterEndMax); err != 0 {
		return err
	}
	if err := fs.zeroCluster(rootClusterNum); err != 0 {
		return err
	}
	if err := fs.fat.flush(); err != 0 {
		return err
	}
	return d.Sync()
}

func (fs *FS) clusterToSector(c uint32) uint32 {
	return fs.dataStartSector + (c-2)*sectorsPerCluster
}

func (fs *FS) readCluster(c uint32) ([]byte, defs.Err_t) {
	buf := make([]byte, fs.bytesPerCluster)
	sec := fs.clusterToSector(c)
	for i := uint32(0); i < sectorsPerCluster; i++ {
		if err := fs.disk.ReadSector(int(sec+i), buf[i*blockdev.SectorSize:(i+1)*blockdev.SectorSize]); err != 0 {
			return nil, err
		}
	}
	return buf, 0
}

func (fs *FS) writeCluster(c uint32, data []byte) defs.Err_t {
	sec := fs.clusterToSector(c)
	for i := uint32(0); i < sectorsPerCluster; i++ {
		if err := fs.disk.WriteSector(int(sec+i), data[i*blockdev.SectorSize:(i+1)*blockdev.SectorSize]); err != 0 {
			return err
		}
	}
	return 0
}

func (fs *FS) zeroCluster(c uint32) defs.Err_t {
	buf := make([]byte, fs.bytesPerCluster)
	return fs.writeCluster(c, buf)
}

// Root implements vfs.FileSystem.
func (fs *FS) Root() vfs.Vnode { return fs.root }

// Sync implements vfs.FileSystem: flush the cached FAT sector and ask the
// underlying disk to flush.
func (fs *FS) Sync() defs.Err_t {
	if err := fs.fat.flush(); err != 0 {
		return err
	}
	return fs.disk.Sync()
}

func (fs *FS) Name() string { return "clusterfs" }
