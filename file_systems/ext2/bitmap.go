// Bitmap allocation against the on-disk block and inode bitmaps.
//
// Bit i of a bitmap (least-significant bit first within each byte) tracks
// resource number i+1; a set bit means "in use". Every bit flip here is
// paired with the matching free-counter update in both the superblock and
// the group descriptor, in that order, so the counters can never drift from
// the bitmaps.

package ext2

import (
	"fmt"

	"github.com/boljen/go-bitmap"
	"github.com/pzl/ext2img"
)

// blockBitmap returns the live bitmap view over the block bitmap's block,
// along with the number of meaningful bits in it.
func (img *Image) blockBitmap() (bitmap.Bitmap, uint32) {
	sb := img.Superblock()
	data, err := img.BlockData(img.GroupDescriptor().BlockBitmap())
	if err != nil {
		panic(err)
	}
	return bitmap.Bitmap(data), sb.BlocksCount() - sb.FirstDataBlock()
}

// inodeBitmap returns the live bitmap view over the inode bitmap's block,
// along with the number of meaningful bits in it.
func (img *Image) inodeBitmap() (bitmap.Bitmap, uint32) {
	data, err := img.BlockData(img.GroupDescriptor().InodeBitmap())
	if err != nil {
		panic(err)
	}
	return bitmap.Bitmap(data), img.Superblock().InodesCount()
}

// allocateBit finds the first zero bit, flips it, and returns the one-based
// resource number it represents.
func allocateBit(bits bitmap.Bitmap, count uint32) (uint32, error) {
	for i := uint32(0); i < count; i++ {
		if !bits.Get(int(i)) {
			bits.Set(int(i), true)
			return i + 1, nil
		}
	}
	return 0, ext2img.ErrNoSpaceOnDevice
}

func (img *Image) addFreeBlocks(delta int) {
	sb := img.Superblock()
	gd := img.GroupDescriptor()
	sb.SetFreeBlocksCount(uint32(int(sb.FreeBlocksCount()) + delta))
	gd.SetFreeBlocksCount(uint16(int(gd.FreeBlocksCount()) + delta))
}

func (img *Image) addFreeInodes(delta int) {
	sb := img.Superblock()
	gd := img.GroupDescriptor()
	sb.SetFreeInodesCount(uint32(int(sb.FreeInodesCount()) + delta))
	gd.SetFreeInodesCount(uint16(int(gd.FreeInodesCount()) + delta))
}

// AllocateBlock reserves the first free block, zeroes its contents, and
// returns its number.
func (img *Image) AllocateBlock() (uint32, error) {
	bits, count := img.blockBitmap()
	num, err := allocateBit(bits, count)
	if err != nil {
		return 0, err
	}
	img.addFreeBlocks(-1)

	data, err := img.BlockData(num)
	if err != nil {
		return 0, err
	}
	for i := range data {
		data[i] = 0
	}
	return num, nil
}

// FreeBlock releases block `num` back to the bitmap.
func (img *Image) FreeBlock(num uint32) {
	bits, _ := img.blockBitmap()
	bits.Set(int(num-1), false)
	img.addFreeBlocks(1)
}

// BlockInUse reads block `num`'s bitmap bit.
func (img *Image) BlockInUse(num uint32) bool {
	bits, _ := img.blockBitmap()
	return bits.Get(int(num - 1))
}

// MarkBlockInUse explicitly claims block `num`. Claiming a block that is
// already in use means the image is inconsistent, which is unrecoverable.
func (img *Image) MarkBlockInUse(num uint32) {
	if img.BlockInUse(num) {
		panic(fmt.Sprintf("ext2: block %d is already in use", num))
	}
	bits, _ := img.blockBitmap()
	bits.Set(int(num-1), true)
	img.addFreeBlocks(-1)
}

// InodeInUse reads inode `num`'s bitmap bit.
func (img *Image) InodeInUse(num uint32) bool {
	bits, _ := img.inodeBitmap()
	return bits.Get(int(num - 1))
}

// MarkInodeInUse explicitly claims inode `num`. Claiming an inode that is
// already in use means the image is inconsistent, which is unrecoverable.
func (img *Image) MarkInodeInUse(num uint32) {
	if img.InodeInUse(num) {
		panic(fmt.Sprintf("ext2: inode %d is already in use", num))
	}
	bits, _ := img.inodeBitmap()
	bits.Set(int(num-1), true)
	img.addFreeInodes(-1)
}

// freeInodeBit releases inode `num` back to the bitmap.
func (img *Image) freeInodeBit(num uint32) {
	bits, _ := img.inodeBitmap()
	bits.Set(int(num-1), false)
	img.addFreeInodes(1)
}
