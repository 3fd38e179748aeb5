package clusterfs

import "encoding/binary"

// direntSize is the fixed size of one on-disk directory entry, matching
// original_source's packed Fat32DirEntry (11+1+1+1+2+2+2+2+2+2+2+4 = 32).
const direntSize = 32

// direntFreeMarker and direntDeletedMarker mark an entry slot as never
// used and as a tombstone respectively, matching the conventional FAT
// 0x00/0xE5 sentinels original_source relies on implicitly through
// "deleted/free-slot sentinels" in its directory scan.
const (
	direntFreeMarker    byte = 0x00
	direntDeletedMarker byte = 0xE5
)

// dirent wraps one 32-byte slot of a directory's cluster chain, read and
// written at the byte offsets original_source's Fat32DirEntry lays them
// out at.
type dirent struct {
	raw [direntSize]byte
}

func (e *dirent) nameRaw() [11]byte {
	var n [11]byte
	copy(n[:], e.raw[0:11])
	return n
}
func (e *dirent) setNameRaw(n [11]byte) { copy(e.raw[0:11], n[:]) }

func (e *dirent) attr() byte     { return e.raw[11] }
func (e *dirent) setAttr(a byte) { e.raw[11] = a }

func (e *dirent) firstCluster() uint32 {
	hi := binary.LittleEndian.Uint16(e.raw[20:])
	lo := binary.LittleEndian.Uint16(e.raw[26:])
	return uint32(hi)<<16 | uint32(lo)
}
func (e *dirent) setFirstCluster(c uint32) {
	binary.LittleEndian.PutUint16(e.raw[20:], uint16(c>>16))
	binary.LittleEndian.PutUint16(e.raw[26:], uint16(c))
}

func (e *dirent) fileSize() uint32     { return binary.LittleEndian.Uint32(e.raw[28:]) }
func (e *dirent) setFileSize(v uint32) { binary.LittleEndian.PutUint32(e.raw[28:], v) }

func (e *dirent) isFree() bool    { return e.raw[0] == direntFreeMarker }
func (e *dirent) isDeleted() bool { return e.raw[0] == direntDeletedMarker }
func (e *dirent) markDeleted()    { e.raw[0] = direntDeletedMarker }

func (e *dirent) isDirectory() bool { return e.attr()&AttrDir != 0 }
func (e *dirent) isVolumeID() bool  { return e.attr()&AttrVolumeID != 0 }
func (e *dirent) isLongName() bool  { return e.attr()&0x3F == AttrLongName }
