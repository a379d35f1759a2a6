// Command mkfs builds a FAT32 disk image and copies a skeleton directory
// of user binaries into it. The result boots as the kernel's root
// filesystem.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/cxz888/Neuclear/fat32"
)

func main() {
	var out = flag.String("o", "fs.img", "image file to create")
	var megs = flag.Int("m", 64, "image size in MiB")
	var skel = flag.String("skel", "", "host directory tree to copy in")
	flag.Parse()

	f, err := os.Create(*out)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	sectors := *megs * 1024 * 1024 / 512
	if err := f.Truncate(int64(sectors) * 512); err != nil {
		log.Fatal(err)
	}
	if err := fat32.Format(f, sectors); err != nil {
		log.Fatal(err)
	}
	fs, err := fat32.Mount(f)
	if err != nil {
		log.Fatal(err)
	}
	if *skel != "" {
		if err := addfiles(fs, *skel); err != nil {
			log.Fatal(err)
		}
	}
	fmt.Printf("wrote %s (%d MiB)\n", *out, *megs)
}

// addfiles replicates the skeleton tree into the image.
func addfiles(fs *fat32.Fs_t, skeldir string) error {
	return filepath.WalkDir(skeldir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(skeldir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		dir := fs.Root()
		comps := strings.Split(filepath.ToSlash(rel), "/")
		for _, comp := range comps[:len(comps)-1] {
			next, err := dir.Find(comp)
			if err != nil {
				return err
			}
			if next == nil {
				return fmt.Errorf("missing parent for %s", rel)
			}
			dir = next
		}
		name := comps[len(comps)-1]
		if d.IsDir() {
			_, err := dir.Createdir(name)
			return err
		}
		ent, err := dir.Createfile(name)
		if err != nil {
			return err
		}
		return copydata(path, ent)
	})
}

// copydata appends the host file's contents to the image entry.
func copydata(src string, dst *fat32.Entry_t) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	buf := make([]byte, 64*1024)
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}
