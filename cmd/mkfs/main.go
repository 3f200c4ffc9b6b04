// Command mkfs builds a test filesystem image in the flat boot
// block/dentry/inode/data-block layout fs.Load expects, from a
// directory of host files. Adapted from the teacher's mkfs/mkfs.go:
// that tool walks a skeleton directory and replicates it into a
// hierarchical on-disk filesystem via ufs.Ufs_t; this one walks the
// same way but has no directory hierarchy to build, since this
// kernel's filesystem collaborator is a single flat dentry table.
package main

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"fs"
	"defs"
	"ustr"
)

func usage() {
	fmt.Printf("usage: mkfs <output image> <skel dir>\n")
	os.Exit(1)
}

func main() {
	if len(os.Args) != 3 {
		usage()
	}
	outpath, skeldir := os.Args[1], os.Args[2]

	names, err := collectFiles(skeldir)
	if err != nil {
		fmt.Printf("error walking %q: %v\n", skeldir, err)
		os.Exit(1)
	}
	if len(names) > fs.MaxDentries {
		fmt.Printf("too many files: %v, max %v\n", len(names), fs.MaxDentries)
		os.Exit(1)
	}

	img, err := build(skeldir, names)
	if err != nil {
		fmt.Printf("error building image: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(outpath, img, 0644); err != nil {
		fmt.Printf("error writing %q: %v\n", outpath, err)
		os.Exit(1)
	}
}

// collectFiles walks skeldir and returns the paths of every regular
// file found, relative to skeldir, sorted by filepath.WalkDir's
// lexical order.
func collectFiles(skeldir string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(skeldir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(skeldir, path)
		if err != nil {
			return err
		}
		names = append(names, rel)
		return nil
	})
	return names, err
}

// build lays out a disk image per fs.Load's documented format: a boot
// block of dentries, one block per inode, then the data blocks those
// inodes point to.
func build(skeldir string, names []string) ([]byte, error) {
	type file struct {
		name ustr.Ustr
		data []byte
	}
	files := make([]file, 0, len(names))
	for _, n := range names {
		data, err := os.ReadFile(filepath.Join(skeldir, n))
		if err != nil {
			return nil, err
		}
		files = append(files, file{name: ustr.Ustr(n), data: data})
	}

	entsz := fs.MaxNameLen + 1 + 4
	boot := make([]byte, fs.BlockSize)
	binary.LittleEndian.PutUint32(boot[0:4], uint32(len(files)))
	binary.LittleEndian.PutUint32(boot[4:8], uint32(len(files)))

	var dataBlocks [][]byte
	inodeBlocks := make([][]byte, 0, len(files))

	off := 12
	for i, f := range files {
		if off+entsz > fs.BlockSize {
			return nil, fmt.Errorf("too many files for one boot block")
		}
		copy(boot[off:off+fs.MaxNameLen], f.name)
		boot[off+fs.MaxNameLen] = byte(defs.D_REGULAR)
		binary.LittleEndian.PutUint32(boot[off+fs.MaxNameLen+1:off+fs.MaxNameLen+5], uint32(i))
		off += entsz

		blocks := chunk(f.data, fs.BlockSize)
		blockNums := make([]int, len(blocks))
		for bi, b := range blocks {
			blockNums[bi] = len(dataBlocks)
			dataBlocks = append(dataBlocks, b)
		}

		inode := make([]byte, fs.BlockSize)
		binary.LittleEndian.PutUint32(inode[0:4], uint32(len(f.data)))
		for bi, bn := range blockNums {
			o := 4 + bi*4
			if o+4 > fs.BlockSize {
				return nil, fmt.Errorf("file %q has too many blocks for one inode block", f.name)
			}
			binary.LittleEndian.PutUint32(inode[o:o+4], uint32(bn))
		}
		inodeBlocks = append(inodeBlocks, inode)
	}
	binary.LittleEndian.PutUint32(boot[8:12], uint32(len(dataBlocks)))

	img := make([]byte, 0, fs.BlockSize*(1+len(inodeBlocks)+len(dataBlocks)))
	img = append(img, boot...)
	for _, b := range inodeBlocks {
		img = append(img, b...)
	}
	for _, b := range dataBlocks {
		padded := make([]byte, fs.BlockSize)
		copy(padded, b)
		img = append(img, padded...)
	}
	return img, nil
}

func chunk(data []byte, size int) [][]byte {
	if len(data) == 0 {
		return nil
	}
	var out [][]byte
	for off := 0; off < len(data); off += size {
		end := off + size
		if end > len(data) {
			end = len(data)
		}
		out = append(out, data[off:end])
	}
	return out
}
