package ext2

import (
	"fmt"
	"io"

	"github.com/pzl/ext2img"
)

// Image is a writable ext2 file system image held as a single contiguous
// byte region. Every structure handed out by its methods is a view into the
// region, so mutations land directly in the backing bytes.
//
// Image assumes exclusive access; it performs no locking.
type Image struct {
	data []byte
}

// NewImage wraps `data` as an ext2 image. The region must contain a valid
// superblock for a 1 KiB block size, single-group file system, and must be
// large enough to hold every block the superblock declares.
func NewImage(data []byte) (*Image, error) {
	if len(data) < SuperblockOffset+BlockSize {
		return nil, ext2img.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("image too small to hold a superblock: %d bytes", len(data)))
	}

	img := &Image{data: data}
	sb := img.Superblock()

	if sb.Magic() != Signature {
		return nil, ext2img.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("bad superblock magic 0x%04X", sb.Magic()))
	}
	if sb.LogBlockSize() != 0 {
		return nil, ext2img.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("unsupported block size %d", BlockSize<<sb.LogBlockSize()))
	}
	if sb.FirstDataBlock() != 1 {
		return nil, ext2img.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("first data block must be 1, got %d", sb.FirstDataBlock()))
	}
	if uint64(sb.BlocksCount())*BlockSize > uint64(len(data)) {
		return nil, ext2img.ErrInvalidArgument.WithMessage(fmt.Sprintf(
			"superblock declares %d blocks but the region holds only %d bytes",
			sb.BlocksCount(), len(data)))
	}

	gd := img.GroupDescriptor()
	for _, block := range []uint32{gd.BlockBitmap(), gd.InodeBitmap(), gd.InodeTable()} {
		if block == 0 || block >= sb.BlocksCount() {
			return nil, ext2img.ErrFileSystemCorrupted.WithMessage(
				fmt.Sprintf("group descriptor points at block %d, outside the image", block))
		}
	}

	tableEnd := uint64(gd.InodeTable())*BlockSize + uint64(sb.InodesCount())*InodeSize
	if tableEnd > uint64(len(data)) {
		return nil, ext2img.ErrFileSystemCorrupted.WithMessage(
			"inode table extends past the end of the image")
	}

	return img, nil
}

// LoadImage reads an entire image from `r` and wraps it with NewImage.
func LoadImage(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, ext2img.ErrIOFailed.Wrap(err)
	}
	return NewImage(data)
}

// Bytes returns the backing byte region.
func (img *Image) Bytes() []byte {
	return img.data
}

// WriteTo writes the whole image to `w`, implementing io.WriterTo.
func (img *Image) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(img.data)
	return int64(n), err
}

// Superblock returns the view of the superblock at its fixed offset.
func (img *Image) Superblock() Superblock {
	return Superblock{data: img.data[SuperblockOffset : SuperblockOffset+BlockSize]}
}

// GroupDescriptor returns the view of the single group descriptor.
func (img *Image) GroupDescriptor() GroupDescriptor {
	start := GroupDescriptorBlock * BlockSize
	return GroupDescriptor{data: img.data[start : start+groupDescriptorSize]}
}

// BlockData returns the bytes of block `num`. Block numbers are validated
// against the superblock's block count.
func (img *Image) BlockData(num uint32) ([]byte, error) {
	sb := img.Superblock()
	if num < sb.FirstDataBlock() || num >= sb.BlocksCount() {
		return nil, ext2img.ErrFileSystemCorrupted.WithMessage(
			fmt.Sprintf("block %d not in range [%d, %d)",
				num, sb.FirstDataBlock(), sb.BlocksCount()))
	}
	start := int(num) * BlockSize
	return img.data[start : start+BlockSize], nil
}

// Inode returns the view of inode `num` inside the inode table. Inode
// numbers are one-based.
func (img *Image) Inode(num uint32) (Inode, error) {
	if num == 0 || num > img.Superblock().InodesCount() {
		return Inode{}, ext2img.ErrFileSystemCorrupted.WithMessage(
			fmt.Sprintf("inode %d not in range [1, %d]", num, img.Superblock().InodesCount()))
	}
	table := int(img.GroupDescriptor().InodeTable()) * BlockSize
	start := table + int(num-1)*InodeSize
	return Inode{num: num, data: img.data[start : start+InodeSize]}, nil
}
