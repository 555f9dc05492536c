// Consistency validation for test suites. Validate inspects a whole image
// and reports every invariant violation it can find. It never repairs
// anything.

package ext2

import (
	"encoding/binary"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Validate checks the cross-structure invariants an ext2 kernel driver
// expects on mount: bitmap/counter agreement, directory record chains,
// inode link/bitmap/dtime consistency, block ownership, and sector
// accounting. All violations found are aggregated into the returned error.
func Validate(img *Image) error {
	var result *multierror.Error

	result = multierror.Append(result, img.validateCounters()...)
	result = multierror.Append(result, img.validateInodes()...)
	result = multierror.Append(result, img.validateRootDirectory()...)

	return result.ErrorOrNil()
}

func (img *Image) validateCounters() []error {
	var errs []error

	blockBits, blockCount := img.blockBitmap()
	freeBlocks := uint32(0)
	for i := uint32(0); i < blockCount; i++ {
		if !blockBits.Get(int(i)) {
			freeBlocks++
		}
	}
	sb := img.Superblock()
	gd := img.GroupDescriptor()
	if sb.FreeBlocksCount() != freeBlocks {
		errs = append(errs, fmt.Errorf(
			"superblock counts %d free blocks, bitmap has %d zero bits",
			sb.FreeBlocksCount(), freeBlocks))
	}
	if uint32(gd.FreeBlocksCount()) != freeBlocks {
		errs = append(errs, fmt.Errorf(
			"group descriptor counts %d free blocks, bitmap has %d zero bits",
			gd.FreeBlocksCount(), freeBlocks))
	}

	inodeBits, inodeCount := img.inodeBitmap()
	freeInodes := uint32(0)
	for i := uint32(0); i < inodeCount; i++ {
		if !inodeBits.Get(int(i)) {
			freeInodes++
		}
	}
	if sb.FreeInodesCount() != freeInodes {
		errs = append(errs, fmt.Errorf(
			"superblock counts %d free inodes, bitmap has %d zero bits",
			sb.FreeInodesCount(), freeInodes))
	}
	if uint32(gd.FreeInodesCount()) != freeInodes {
		errs = append(errs, fmt.Errorf(
			"group descriptor counts %d free inodes, bitmap has %d zero bits",
			gd.FreeInodesCount(), freeInodes))
	}

	return errs
}

func (img *Image) validateInodes() []error {
	var errs []error

	for num := uint32(1); num <= img.Superblock().InodesCount(); num++ {
		ino, err := img.Inode(num)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		inUse := img.InodeInUse(num)
		if ino.LinksCount() > 0 {
			if !inUse {
				errs = append(errs, fmt.Errorf(
					"inode %d has %d links but its bitmap bit is clear",
					num, ino.LinksCount()))
			}
			if ino.DTime() != 0 {
				errs = append(errs, fmt.Errorf(
					"inode %d has %d links but a deletion time", num, ino.LinksCount()))
			}
		} else if !inUse && ino.LinksCount() != 0 {
			errs = append(errs, fmt.Errorf(
				"free inode %d has %d links", num, ino.LinksCount()))
		}

		if ino.LinksCount() == 0 {
			continue
		}

		errs = append(errs, img.validateBlockOwnership(ino)...)
		errs = append(errs, img.validateSectorCount(ino)...)
		if ino.IsDirectory() {
			errs = append(errs, img.validateDirectoryBlocks(ino)...)
		}
	}

	return errs
}

func (img *Image) validateBlockOwnership(ino Inode) []error {
	var errs []error

	claim := func(num uint32, what string) {
		if num == 0 {
			return
		}
		if num >= img.Superblock().BlocksCount() {
			errs = append(errs, fmt.Errorf(
				"inode %d: %s points outside the image at block %d",
				ino.Number(), what, num))
			return
		}
		if !img.BlockInUse(num) {
			errs = append(errs, fmt.Errorf(
				"inode %d: %s points at block %d whose bitmap bit is clear",
				ino.Number(), what, num))
		}
	}

	for i := 0; i < NumBlockSlots; i++ {
		claim(ino.Block(i), fmt.Sprintf("i_block[%d]", i))
	}

	indirect := ino.Block(IndirectBlockSlot)
	if indirect == 0 || indirect >= img.Superblock().BlocksCount() {
		return errs
	}
	pointers, err := img.BlockData(indirect)
	if err != nil {
		return append(errs, err)
	}
	for i := 0; i < pointersPerBlock; i++ {
		num := binary.LittleEndian.Uint32(pointers[i*blockPointerSize:])
		if num == 0 {
			break
		}
		claim(num, fmt.Sprintf("indirect slot %d", i))
	}

	return errs
}

// validateSectorCount recomputes the logical blocks an inode occupies and
// compares the 512-byte-sector tally against the inode's blocks field.
func (img *Image) validateSectorCount(ino Inode) []error {
	used := uint32(0)
	for i := 0; i < NumDirectBlocks; i++ {
		if ino.Block(i) == 0 {
			break
		}
		used++
	}

	indirect := ino.Block(IndirectBlockSlot)
	if indirect != 0 && indirect < img.Superblock().BlocksCount() {
		used++
		pointers, err := img.BlockData(indirect)
		if err != nil {
			return []error{err}
		}
		for i := 0; i < pointersPerBlock; i++ {
			if binary.LittleEndian.Uint32(pointers[i*blockPointerSize:]) == 0 {
				break
			}
			used++
		}
	}

	want := used * BlockSize / SectorSize
	if ino.Blocks() != want {
		return []error{fmt.Errorf(
			"inode %d occupies %d logical blocks but records %d sectors, want %d",
			ino.Number(), used, ino.Blocks(), want)}
	}
	return nil
}

func (img *Image) validateDirectoryBlocks(dir Inode) []error {
	var errs []error

	for slot := 0; slot < NumDirectBlocks; slot++ {
		blockNum := dir.Block(slot)
		if blockNum == 0 {
			break
		}
		data, err := img.BlockData(blockNum)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		offset := 0
		for offset < BlockSize {
			if offset+direntHeaderSize > BlockSize {
				errs = append(errs, fmt.Errorf(
					"directory inode %d block %d: truncated record at offset %d",
					dir.Number(), blockNum, offset))
				break
			}
			recLen := int(binary.LittleEndian.Uint16(data[offset+4:]))
			nameLen := int(data[offset+6])

			if recLen < direntHeaderSize || recLen%direntNameAlignment != 0 {
				errs = append(errs, fmt.Errorf(
					"directory inode %d block %d: record at offset %d has rec_len %d",
					dir.Number(), blockNum, offset, recLen))
				break
			}
			if alignDirent(direntHeaderSize+nameLen) > recLen {
				errs = append(errs, fmt.Errorf(
					"directory inode %d block %d: record at offset %d (name length %d) overflows its rec_len %d",
					dir.Number(), blockNum, offset, nameLen, recLen))
			}
			offset += recLen
		}
		if offset != BlockSize {
			errs = append(errs, fmt.Errorf(
				"directory inode %d block %d: rec_len chain covers %d bytes, want %d",
				dir.Number(), blockNum, offset, BlockSize))
		}
	}

	return errs
}

func (img *Image) validateRootDirectory() []error {
	root, err := img.Inode(RootInode)
	if err != nil {
		return []error{err}
	}
	if root.Block(0) == 0 {
		return []error{fmt.Errorf("root directory has no data block")}
	}

	var errs []error
	scanner := newDirentScanner(img, root)
	for _, want := range []string{".", ".."} {
		if !scanner.Scan() {
			errs = append(errs, fmt.Errorf("root directory is missing its %q entry", want))
			break
		}
		entry := scanner.Entry()
		if entry.Name() != want {
			errs = append(errs, fmt.Errorf(
				"root directory entry %q should be %q", entry.Name(), want))
			continue
		}
		if entry.Inode() != RootInode {
			errs = append(errs, fmt.Errorf(
				"root directory's %q entry links to inode %d, want %d",
				want, entry.Inode(), RootInode))
		}
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, err)
	}
	return errs
}
