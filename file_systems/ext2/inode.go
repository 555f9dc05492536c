package ext2

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Inode is a view over one fixed-size record in the inode table.
type Inode struct {
	num  uint32
	data []byte
}

// Number returns the one-based inode number of this view.
func (ino Inode) Number() uint32 {
	return ino.num
}

func (ino Inode) Mode() uint16 {
	return binary.LittleEndian.Uint16(ino.data[0:])
}

func (ino Inode) SetMode(mode uint16) {
	binary.LittleEndian.PutUint16(ino.data[0:], mode)
}

// Size is the logical size in bytes.
func (ino Inode) Size() uint32 {
	return binary.LittleEndian.Uint32(ino.data[4:])
}

func (ino Inode) SetSize(size uint32) {
	binary.LittleEndian.PutUint32(ino.data[4:], size)
}

func (ino Inode) SetATime(t uint32) {
	binary.LittleEndian.PutUint32(ino.data[8:], t)
}

func (ino Inode) SetCTime(t uint32) {
	binary.LittleEndian.PutUint32(ino.data[12:], t)
}

func (ino Inode) SetMTime(t uint32) {
	binary.LittleEndian.PutUint32(ino.data[16:], t)
}

func (ino Inode) DTime() uint32 {
	return binary.LittleEndian.Uint32(ino.data[20:])
}

func (ino Inode) SetDTime(t uint32) {
	binary.LittleEndian.PutUint32(ino.data[20:], t)
}

func (ino Inode) LinksCount() uint16 {
	return binary.LittleEndian.Uint16(ino.data[26:])
}

func (ino Inode) SetLinksCount(n uint16) {
	binary.LittleEndian.PutUint16(ino.data[26:], n)
}

// Blocks is the occupied space in 512-byte sectors, not logical blocks.
func (ino Inode) Blocks() uint32 {
	return binary.LittleEndian.Uint32(ino.data[28:])
}

func (ino Inode) SetBlocks(n uint32) {
	binary.LittleEndian.PutUint32(ino.data[28:], n)
}

// Block returns i_block[i].
func (ino Inode) Block(i int) uint32 {
	return binary.LittleEndian.Uint32(ino.data[40+blockPointerSize*i:])
}

func (ino Inode) SetBlock(i int, num uint32) {
	binary.LittleEndian.PutUint32(ino.data[40+blockPointerSize*i:], num)
}

func (ino Inode) IsDirectory() bool {
	return ino.Mode()&ModeTypeMask == ModeDirectory
}

// addSectors grows the sector count for `delta` freshly occupied bytes.
func (ino Inode) addSectors(delta uint32) {
	ino.SetBlocks((ino.Blocks()*SectorSize + delta) / SectorSize)
}

func timestamp() uint32 {
	return uint32(time.Now().Unix())
}

// AllocateInode reserves a free inode, zeroes its record, and initialises it
// for the given file type. The new inode starts with no links; linking it
// into a directory is the caller's job.
func (img *Image) AllocateInode(ft FileType) (uint32, error) {
	bits, count := img.inodeBitmap()
	num, err := allocateBit(bits, count)
	if err != nil {
		return 0, err
	}
	img.addFreeInodes(-1)

	ino, err := img.Inode(num)
	if err != nil {
		return 0, err
	}
	for i := range ino.data {
		ino.data[i] = 0
	}

	now := timestamp()
	ino.SetMode(ft.Mode())
	ino.SetCTime(now)
	ino.SetATime(now)
	ino.SetMTime(now)

	return num, nil
}

// UnlinkInode drops one directory-entry reference from inode `num`. When the
// last reference goes away the deletion time is recorded and the inode and
// all of its data blocks are returned to the bitmaps.
//
// Unlinking an inode that has no links means the image is inconsistent,
// which is unrecoverable.
func (img *Image) UnlinkInode(num uint32) error {
	ino, err := img.Inode(num)
	if err != nil {
		return err
	}

	if ino.LinksCount() == 0 {
		panic(fmt.Sprintf("ext2: unlinking inode %d which has no links", num))
	}

	ino.SetLinksCount(ino.LinksCount() - 1)
	if ino.LinksCount() > 0 {
		return nil
	}

	ino.SetDTime(timestamp())
	if err := img.freeDataBlocks(ino); err != nil {
		return err
	}
	img.freeInodeBit(num)
	return nil
}

// freeDataBlocks releases every data block the inode points at: the direct
// pointers, then the blocks listed in the single-indirect block, then the
// indirect block itself. A zero pointer terminates each scan.
func (img *Image) freeDataBlocks(ino Inode) error {
	for i := 0; i < NumDirectBlocks; i++ {
		num := ino.Block(i)
		if num == 0 {
			break
		}
		img.FreeBlock(num)
	}

	indirect := ino.Block(IndirectBlockSlot)
	if indirect == 0 {
		return nil
	}

	pointers, err := img.BlockData(indirect)
	if err != nil {
		return err
	}
	for i := 0; i < pointersPerBlock; i++ {
		num := binary.LittleEndian.Uint32(pointers[i*blockPointerSize:])
		if num == 0 {
			break
		}
		img.FreeBlock(num)
	}
	img.FreeBlock(indirect)
	return nil
}
