// Command kernel is the boot entry point: it mounts a cluster-filesystem
// disk image, constructs a kctx.Kernel, loads the init program named on
// the command line, and drives the timer/scheduler loop. Grounded on
// kernel/chentry.go's cmd/-style small-main tool pattern, generalized
// from a one-off ELF patcher into the actual kernel boot path.
package main

import (
	"flag"
	"log"
	"time"

	"pageos/blockdev"
	"pageos/clusterfs"
	"pageos/irq"
	"pageos/kctx"
	"pageos/ustr"
)

func main() {
	image := flag.String("image", "", "path to a clusterfs disk image built by cmd/mkfs")
	initPath := flag.String("init", "/init", "path of the init program within the image")
	npages := flag.Int("npages", 4096, "simulated physical RAM, in pages")
	ticks := flag.Int("ticks", 100, "number of timer ticks to run before exiting")
	flag.Parse()

	if *image == "" {
		log.Fatal("kernel: -image is required")
	}

	disk, derr := blockdev.OpenExistingFileDisk(*image)
	if derr != 0 {
		log.Fatalf("kernel: open %s: err %d", *image, derr)
	}
	defer disk.Close()

	fs, merr := clusterfs.Mount(disk)
	if merr != 0 {
		log.Fatalf("kernel: mount %s: err %d", *image, merr)
	}

	k := kctx.Boot(*npages, fs)
	init := k.Spawn("init", 5)
	if lerr := k.LoadInit(init, ustr.Ustr(*initPath)); lerr != 0 {
		log.Fatalf("kernel: load %s: err %d", *initPath, lerr)
	}
	log.Printf("kernel: booted, init pid=%d entry=%#x", init.Pid, init.Context.Eip)

	for i := 0; i < *ticks; i++ {
		if err := k.IRQ.Dispatch(&irq.Frame{Vector: irq.IRQTimer}, nil); err != nil {
			log.Fatalf("kernel: halted: %v", err)
		}
		time.Sleep(time.Millisecond)
	}
	log.Printf("kernel: ran %d ticks, %d processes live", *ticks, k.Table.Len())
}
