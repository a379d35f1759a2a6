// Command neuclear boots the kernel hosted: simulated physical memory, a
// disk image loaded into a memory disk, the FAT32 root mounted through the
// block cache, and the init process built from /initproc. It is the smoke
// harness for everything short of entering user mode, which needs the
// hardware context-switch stub.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/cxz888/Neuclear/fs"
	"github.com/cxz888/Neuclear/kernel"
	"github.com/cxz888/Neuclear/machine"
	"github.com/cxz888/Neuclear/proc"
)

func main() {
	var img = flag.String("img", "fs.img", "FAT32 disk image")
	flag.Parse()

	md, err := fs.MkMemdiskFile(*img)
	if err != nil {
		log.Fatal(err)
	}
	// the hosted "kernel image" occupies the first 16 MiB of RAM
	ekernel := machine.Kernbase + 16*1024*1024
	kernel.Bootall(md, ekernel)
	kernel.Listapps()

	init := proc.Initproc
	t := init.Mainthread()
	fmt.Printf("init: pid %v, entry %#x, sp %#x, %v region(s)\n",
		init.Pid, t.Trapctx.Sepc, t.Trapctx.X[machine.REG_SP],
		init.As.Regioncount())
	fmt.Printf("boot ok; %v thread(s) ready\n", proc.Runqlen())
}
