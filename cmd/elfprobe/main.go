// Command elfprobe dumps the entry point and loadable segments of a user
// binary, a quick sanity check on what mkfs is about to pack.
package main

import (
	"debug/elf"
	"fmt"
	"log"
	"os"
)

// usage prints a small help message and terminates the program.
func usage(me string) {
	fmt.Printf("%s <filename>\n\nPrint the entry point and PT_LOAD layout of <filename>\n", me)
	os.Exit(1)
}

// chkELF validates the ELF file header to ensure the binary is one the
// kernel's loader would accept. It exits the program if any check fails.
func chkELF(eh *elf.FileHeader) {
	if eh.Data != elf.ELFDATA2LSB {
		log.Fatal("not little-endian?")
	}
	if eh.Class != elf.ELFCLASS64 {
		log.Fatal("not a 64 bit elf")
	}
	if eh.Type != elf.ET_EXEC {
		log.Fatal("not an executable elf")
	}
	if eh.Machine != elf.EM_RISCV {
		log.Fatal("not a RISC-V elf")
	}
}

func main() {
	if len(os.Args) != 2 {
		usage(os.Args[0])
	}
	f, err := os.Open(os.Args[1])
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	ef, err := elf.NewFile(f)
	if err != nil {
		log.Fatal(err)
	}
	chkELF(&ef.FileHeader)

	fmt.Printf("entry 0x%x\n", ef.Entry)
	for _, ph := range ef.Progs {
		if ph.Type != elf.PT_LOAD {
			continue
		}
		fmt.Printf("load va [0x%x, 0x%x) filesz 0x%x flags %v\n",
			ph.Vaddr, ph.Vaddr+ph.Memsz, ph.Filesz, ph.Flags)
	}
}
