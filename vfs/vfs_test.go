package vfs

import (
	"testing"

	"pageos/defs"
	"pageos/stat"
	"pageos/ustr"
)

// memVnode is a minimal in-memory Vnode used only to exercise path
// resolution and OpenFile semantics independently of clusterfs.
type memVnode struct {
	ino      uint32
	ty       FileType
	data     []byte
	children map[string]*memVnode
}

func newDir(ino uint32) *memVnode {
	return &memVnode{ino: ino, ty: FtDirectory, children: map[string]*memVnode{}}
}

func (m *memVnode) Read(dst []byte, off uint32) (int, defs.Err_t) {
	if off >= uint32(len(m.data)) {
		return 0, 0
	}
	n := copy(dst, m.data[off:])
	return n, 0
}

func (m *memVnode) Write(src []byte, off uint32) (int, defs.Err_t) {
	end := int(off) + len(src)
	if end > len(m.data) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[off:], src)
	return len(src), 0
}

func (m *memVnode) Size() uint32 { return uint32(len(m.data)) }
func (m *memVnode) Stat(st *stat.Stat_t) defs.Err_t {
	st.Wsize(m.Size())
	return 0
}
func (m *memVnode) Type() FileType { return m.ty }
func (m *memVnode) Inode() uint32  { return m.ino }

func (m *memVnode) Readdir(idx int) (DirEnt, defs.Err_t) {
	i := 0
	for name, c := range m.children {
		if i == idx {
			return DirEnt{Name: ustr.Ustr(name), Ino: c.ino, Type: c.ty}, 0
		}
		i++
	}
	return DirEnt{}, -defs.ENOENT
}

func (m *memVnode) Lookup(name ustr.Ustr) (Vnode, defs.Err_t) {
	c, ok := m.children[name.String()]
	if !ok {
		return nil, -defs.ENOENT
	}
	return c, 0
}

func (m *memVnode) Create(name ustr.Ustr, t FileType) (Vnode, defs.Err_t) {
	if _, ok := m.children[name.String()]; ok {
		return nil, -defs.EEXIST
	}
	c := &memVnode{ino: m.ino*100 + uint32(len(m.children)+1), ty: t}
	if t == FtDirectory {
		c.children = map[string]*memVnode{}
	}
	m.children[name.String()] = c
	return c, 0
}

func (m *memVnode) Unlink(name ustr.Ustr) defs.Err_t {
	if _, ok := m.children[name.String()]; !ok {
		return -defs.ENOENT
	}
	delete(m.children, name.String())
	return 0
}

func (m *memVnode) Mkdir(name ustr.Ustr) (Vnode, defs.Err_t) {
	return m.Create(name, FtDirectory)
}

type memFS struct{ root *memVnode }

func (f *memFS) Root() Vnode      { return f.root }
func (f *memFS) Sync() defs.Err_t { return 0 }
func (f *memFS) Name() string     { return "memfs" }

func TestResolveNestedPath(t *testing.T) {
	root := newDir(1)
	fs := &memFS{root: root}
	v := MkVFS(fs)

	etc, err := root.Create(ustr.Ustr("etc"), FtDirectory)
	if err != 0 {
		t.Fatal(err)
	}
	passwd, err := etc.Create(ustr.Ustr("passwd"), FtRegular)
	if err != 0 {
		t.Fatal(err)
	}
	passwd.Write([]byte("root:x:0:0"), 0)

	vn, err := v.Resolve(ustr.Ustr("/etc/passwd"))
	if err != 0 {
		t.Fatalf("resolve: %d", err)
	}
	if vn.Inode() != passwd.Inode() {
		t.Fatalf("resolved wrong vnode")
	}
}

func TestOpenFileReadWriteAppend(t *testing.T) {
	vn := &memVnode{ino: 2, ty: FtRegular}
	of := MkOpenFile(vn, O_RDWR)
	of.Write([]byte("hello"))
	buf := make([]byte, 5)
	of.Seek(0)
	n, err := of.Read(buf)
	if err != 0 || n != 5 || string(buf) != "hello" {
		t.Fatalf("read back = %q, err=%d", buf[:n], err)
	}

	appender := MkOpenFile(vn, O_WRONLY|O_APPEND)
	appender.Write([]byte("!"))
	if vn.Size() != 6 {
		t.Fatalf("append size = %d, want 6", vn.Size())
	}
}

func TestResolveParentAndLeaf(t *testing.T) {
	root := newDir(1)
	fs := &memFS{root: root}
	v := MkVFS(fs)
	root.Create(ustr.Ustr("bin"), FtDirectory)

	parent, leaf, err := v.ResolveParentAndLeaf(ustr.Ustr("/bin/sh"))
	if err != 0 {
		t.Fatalf("resolveParentAndLeaf: %d", err)
	}
	if leaf.String() != "sh" {
		t.Fatalf("leaf = %q, want sh", leaf.String())
	}
	if parent.Inode() == root.Inode() {
		t.Fatalf("parent should be /bin, got root")
	}
}
