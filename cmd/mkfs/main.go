// Command mkfs builds a bootable cluster-filesystem disk image from a
// host skeleton directory, the host-side counterpart to the kernel's
// in-tree clusterfs package. Grounded directly on mkfs/mkfs.go and
// ufs.go's MkDisk/BootFS/addfiles flow, retargeted at clusterfs instead
// of biscuit's log-structured filesystem.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"pageos/blockdev"
	"pageos/clusterfs"
	"pageos/ustr"
	"pageos/vfs"
)

// nsectors sizes the produced image generously enough for a small
// skeleton tree; real deployments would size this from the skeldir's
// total bytes instead of a fixed constant.
const nsectors = 1 << 16 // 32MiB

func copydata(src string, dst vfs.Vnode) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	buf := make([]byte, 32*1024)
	var off uint32
	for {
		n, rerr := srcFile.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n], off); werr != 0 {
				return fmt.Errorf("write %s: err %d", src, werr)
			}
			off += uint32(n)
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}

// addfiles walks skeldir on the host and replicates its contents into
// the mounted volume rooted at root.
func addfiles(fs *clusterfs.FS, skeldir string) error {
	root := fs.Root()
	return filepath.WalkDir(skeldir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(path, skeldir), "/")
		if rel == "" {
			return nil
		}

		parent := root
		comps := ustr.Ustr(rel).Fields()
		for _, c := range comps[:len(comps)-1] {
			next, lerr := parent.Lookup(c)
			if lerr != 0 {
				return fmt.Errorf("missing parent dir for %s", rel)
			}
			parent = next
		}
		leaf := comps[len(comps)-1]

		if d.IsDir() {
			if _, merr := parent.Mkdir(leaf); merr != 0 {
				return fmt.Errorf("mkdir %s: err %d", rel, merr)
			}
			return nil
		}
		vn, cerr := parent.Create(leaf, vfs.FtRegular)
		if cerr != 0 {
			return fmt.Errorf("create %s: err %d", rel, cerr)
		}
		return copydata(path, vn)
	})
}

func main() {
	if len(os.Args) != 3 {
		fmt.Printf("Usage: %s <output image> <skel dir>\n", os.Args[0])
		os.Exit(1)
	}
	image, skeldir := os.Args[1], os.Args[2]

	disk, err := blockdev.OpenFileDisk(image, nsectors)
	if err != 0 {
		log.Fatalf("open %s: err %d", image, err)
	}
	defer disk.Close()

	if ferr := clusterfs.Format(disk, "PAGEOS"); ferr != 0 {
		log.Fatalf("format: err %d", ferr)
	}
	fs, merr := clusterfs.Mount(disk)
	if merr != 0 {
		log.Fatalf("mount: err %d", merr)
	}

	if aerr := addfiles(fs, skeldir); aerr != nil {
		log.Fatalf("addfiles: %v", aerr)
	}

	if serr := fs.Sync(); serr != 0 {
		log.Fatalf("sync: err %d", serr)
	}
	fmt.Printf("wrote %s from %s\n", image, skeldir)
}
