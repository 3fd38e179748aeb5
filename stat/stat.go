// Package stat defines the stat(2)-style structure copied out to user
// space for the PS/stat syscalls, grounded on the teacher's stat.Stat_t
// accessor-over-raw-bytes idiom and original_source's FileStat layout.
package stat

import "encoding/binary"

// Stat_t mirrors a file's stat information. Accessors marshal into a fixed
// byte layout rather than exposing the struct directly, matching the
// teacher's Stat_t (and original_source's packed FileStat).
type Stat_t struct {
	dev, ino, mode, size, rdev uint32
}

func (st *Stat_t) Wdev(v uint32)  { st.dev = v }
func (st *Stat_t) Wino(v uint32)  { st.ino = v }
func (st *Stat_t) Wmode(v uint32) { st.mode = v }
func (st *Stat_t) Wsize(v uint32) { st.size = v }
func (st *Stat_t) Wrdev(v uint32) { st.rdev = v }

func (st *Stat_t) Mode() uint32 { return st.mode }
func (st *Stat_t) Size() uint32 { return st.size }
func (st *Stat_t) Rdev() uint32 { return st.rdev }
func (st *Stat_t) Rino() uint32 { return st.ino }

// Bytes marshals the structure into the fixed 20-byte layout copied to
// user space.
func (st *Stat_t) Bytes() []byte {
	b := make([]byte, 20)
	le := binary.LittleEndian
	le.PutUint32(b[0:4], st.dev)
	le.PutUint32(b[4:8], st.ino)
	le.PutUint32(b[8:12], st.mode)
	le.PutUint32(b[12:16], st.size)
	le.PutUint32(b[16:20], st.rdev)
	return b
}
