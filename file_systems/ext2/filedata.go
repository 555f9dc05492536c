package ext2

import (
	"encoding/binary"
	"io"

	"github.com/pzl/ext2img"
)

// readChunk fills up to one block from `r`. It returns 0 at end of stream;
// a short final chunk is returned with its actual length.
func readChunk(r io.Reader, buf []byte) (int, error) {
	n, err := io.ReadFull(r, buf)
	switch err {
	case nil, io.ErrUnexpectedEOF:
		return n, nil
	case io.EOF:
		return 0, nil
	default:
		return 0, ext2img.ErrIOFailed.Wrap(err)
	}
}

// WriteFileData streams the contents of `r` into the (empty) inode `ino`,
// filling the 12 direct pointers first and spilling over into a single
// indirect block. Streams larger than 12 + block-size/4 blocks do not fit
// and fail with *file-too-large*.
func (img *Image) WriteFileData(ino Inode, r io.Reader) error {
	buf := make([]byte, BlockSize)

	writeBlock := func(n int) (uint32, error) {
		blockNum, err := img.AllocateBlock()
		if err != nil {
			return 0, err
		}
		data, err := img.BlockData(blockNum)
		if err != nil {
			return 0, err
		}
		copy(data, buf[:n])
		ino.SetSize(ino.Size() + uint32(n))
		ino.addSectors(BlockSize)
		return blockNum, nil
	}

	for slot := 0; slot < NumDirectBlocks; slot++ {
		n, err := readChunk(r, buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		blockNum, err := writeBlock(n)
		if err != nil {
			return err
		}
		ino.SetBlock(slot, blockNum)
	}

	n, err := readChunk(r, buf)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}

	// The direct pointers are exhausted; spill into a single-indirect
	// block. AllocateBlock zeroes it, so unused slots terminate the chain.
	indirectNum, err := img.AllocateBlock()
	if err != nil {
		return err
	}
	ino.SetBlock(IndirectBlockSlot, indirectNum)
	ino.addSectors(BlockSize)

	pointers, err := img.BlockData(indirectNum)
	if err != nil {
		return err
	}

	for slot := 0; slot < pointersPerBlock; slot++ {
		blockNum, err := writeBlock(n)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(pointers[slot*blockPointerSize:], blockNum)

		n, err = readChunk(r, buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}

	return ext2img.ErrFileTooLarge.WithMessage(
		"stream does not fit in 12 direct blocks plus one indirect block")
}

// writeSymlinkTarget stores `target` as the contents of a fresh symlink
// inode: one data block holding the path bytes, with the inode size set to
// the path length.
func (img *Image) writeSymlinkTarget(ino Inode, target string) error {
	blockNum, err := img.AllocateBlock()
	if err != nil {
		return err
	}
	data, err := img.BlockData(blockNum)
	if err != nil {
		return err
	}
	copy(data, target)

	ino.SetBlock(0, blockNum)
	ino.SetSize(uint32(len(target)))
	ino.addSectors(BlockSize)
	return nil
}
