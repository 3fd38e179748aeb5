// Package clusterfs implements the on-disk cluster-chain filesystem
// mounted as the kernel's root: a FAT32-shaped boot parameter block, two
// mirrored FAT copies addressed by 28-bit cluster numbers, and 32-byte
// directory entries with 8.3 short names. Grounded on
// original_source/include/fs/fat32.hpp's Fat32Bpb/Fat32DirEntry/
// Fat32Cluster layout, written against vfs.Vnode/blockdev.Disk in the
// teacher's accessor-over-raw-bytes idiom (fs/super.go's Superblock_t).
package clusterfs

import (
	"encoding/binary"

	"pageos/blockdev"
	"pageos/defs"
)

// Cluster sentinel values, matching original_source's Fat32Cluster
// namespace (28-bit cluster numbers; top 4 bits reserved).
const (
	ClusterFree       uint32 = 0x00000000
	ClusterReservedMin uint32 = 0x0FFFFFF0
	ClusterReservedMax uint32 = 0x0FFFFFF6
	ClusterBad        uint32 = 0x0FFFFFF7
	ClusterEndMin     uint32 = 0x0FFFFFF8
	ClusterEndMax     uint32 = 0x0FFFFFFF
	ClusterMask       uint32 = 0x0FFFFFFF
)

func isEnd(c uint32) bool { return c&ClusterMask >= ClusterEndMin }

// Directory entry attribute bits, matching original_source's Fat32Attr.
const (
	AttrReadOnly byte = 0x01
	AttrHidden   byte = 0x02
	AttrSystem   byte = 0x04
	AttrVolumeID byte = 0x08
	AttrDir      byte = 0x10
	AttrArchive  byte = 0x20
	AttrLongName byte = 0x0F
)

// bpb wraps the first on-disk sector, read and written field-by-field at
// the byte offsets original_source's packed Fat32Bpb struct lays them out
// at, rather than through Go struct tags (no on-disk struct in this
// module is read via unsafe or reflection-based (de)serialization).
type bpb struct {
	raw [blockdev.SectorSize]byte
}

func (b *bpb) BytesPerSector() uint16    { return binary.LittleEndian.Uint16(b.raw[11:]) }
func (b *bpb) SectorsPerCluster() uint8  { return b.raw[13] }
func (b *bpb) ReservedSectorCount() uint16 { return binary.LittleEndian.Uint16(b.raw[14:]) }
func (b *bpb) NumFats() uint8            { return b.raw[16] }
func (b *bpb) FatSize32() uint32         { return binary.LittleEndian.Uint32(b.raw[36:]) }
func (b *bpb) RootCluster() uint32       { return binary.LittleEndian.Uint32(b.raw[44:]) }
func (b *bpb) TotalSectors32() uint32    { return binary.LittleEndian.Uint32(b.raw[32:]) }
func (b *bpb) BootSignature() uint8      { return b.raw[66] }

func (b *bpb) setBytesPerSector(v uint16)    { binary.LittleEndian.PutUint16(b.raw[11:], v) }
func (b *bpb) setSectorsPerCluster(v uint8)  { b.raw[13] = v }
func (b *bpb) setReservedSectorCount(v uint16) { binary.LittleEndian.PutUint16(b.raw[14:], v) }
func (b *bpb) setNumFats(v uint8)            { b.raw[16] = v }
func (b *bpb) setMedia(v uint8)              { b.raw[21] = v }
func (b *bpb) setFatSize32(v uint32)         { binary.LittleEndian.PutUint32(b.raw[36:], v) }
func (b *bpb) setRootCluster(v uint32)       { binary.LittleEndian.PutUint32(b.raw[44:], v) }
func (b *bpb) setTotalSectors32(v uint32)    { binary.LittleEndian.PutUint32(b.raw[32:], v) }
func (b *bpb) setBootSignature(v uint8)      { b.raw[66] = v }
func (b *bpb) setVolumeLabel(s string) {
	copy(b.raw[71:82], "NO NAME    ")
	copy(b.raw[71:82], s)
}

func readBpb(d blockdev.Disk) (*bpb, defs.Err_t) {
	b := &bpb{}
	if err := d.ReadSector(0, b.raw[:]); err != 0 {
		return nil, err
	}
	if b.BootSignature() != 0x29 {
		return nil, -defs.EINVAL
	}
	return b, 0
}
