package ext2

import (
	"encoding/binary"
	"fmt"

	"github.com/boljen/go-bitmap"
	"github.com/noxer/bytewriter"
	"github.com/pzl/ext2img"
)

// rawSuperblock is the leading portion of the superblock as written to
// disk. Revision-0 images carry nothing this library reads past these
// fields.
type rawSuperblock struct {
	InodesCount         uint32
	BlocksCount         uint32
	ReservedBlocksCount uint32
	FreeBlocksCount     uint32
	FreeInodesCount     uint32
	FirstDataBlock      uint32
	LogBlockSize        uint32
	LogFragSize         uint32
	BlocksPerGroup      uint32
	FragsPerGroup       uint32
	InodesPerGroup      uint32
	MountTime           uint32
	WriteTime           uint32
	MountCount          uint16
	MaxMountCount       uint16
	Magic               uint16
	State               uint16
	Errors              uint16
	MinorRevLevel       uint16
	LastCheck           uint32
	CheckInterval       uint32
	CreatorOS           uint32
	RevLevel            uint32
	DefResUID           uint16
	DefResGID           uint16
}

// rawGroupDescriptor is a block group descriptor as written to disk.
type rawGroupDescriptor struct {
	BlockBitmap     uint32
	InodeBitmap     uint32
	InodeTable      uint32
	FreeBlocksCount uint16
	FreeInodesCount uint16
	UsedDirsCount   uint16
	Pad             uint16
	Reserved        [12]byte
}

const fsStateClean = 1
const fsErrorsContinue = 1

// Format creates a fresh single-group ext2 image with `totalBlocks` 1 KiB
// blocks and `totalInodes` inodes. The new image contains only the root
// directory. Layout, front to back: boot block, superblock, group
// descriptor, block bitmap, inode bitmap, inode table, root directory data.
func Format(totalBlocks, totalInodes uint32) (*Image, error) {
	if totalInodes < 16 || totalInodes%8 != 0 {
		return nil, ext2img.ErrInvalidArgument.WithMessage(fmt.Sprintf(
			"inode count must be a multiple of 8 and at least 16, got %d", totalInodes))
	}
	if totalInodes > BlockSize*8 {
		return nil, ext2img.ErrInvalidArgument.WithMessage(fmt.Sprintf(
			"inode bitmap must fit in one block: at most %d inodes, got %d",
			BlockSize*8, totalInodes))
	}
	if totalBlocks-1 > BlockSize*8 {
		return nil, ext2img.ErrInvalidArgument.WithMessage(fmt.Sprintf(
			"block bitmap must fit in one block: at most %d blocks, got %d",
			BlockSize*8+1, totalBlocks))
	}

	inodeTableBlocks := (totalInodes*InodeSize + BlockSize - 1) / BlockSize

	const blockBitmapBlock = 3
	const inodeBitmapBlock = 4
	const inodeTableBlock = 5
	rootBlock := inodeTableBlock + inodeTableBlocks

	if totalBlocks < rootBlock+2 {
		return nil, ext2img.ErrInvalidArgument.WithMessage(fmt.Sprintf(
			"%d blocks leaves no room for data; need at least %d",
			totalBlocks, rootBlock+2))
	}

	data := make([]byte, int(totalBlocks)*BlockSize)
	now := timestamp()

	// Blocks 1 through rootBlock hold metadata plus the root directory's
	// first data block and are permanently in use.
	freeBlocks := (totalBlocks - 1) - rootBlock
	freeInodes := totalInodes - (FirstUsableInode - 1)

	sbWriter := bytewriter.New(data[SuperblockOffset:])
	err := binary.Write(sbWriter, binary.LittleEndian, rawSuperblock{
		InodesCount:     totalInodes,
		BlocksCount:     totalBlocks,
		FreeBlocksCount: freeBlocks,
		FreeInodesCount: freeInodes,
		FirstDataBlock:  1,
		BlocksPerGroup:  totalBlocks - 1,
		FragsPerGroup:   totalBlocks - 1,
		InodesPerGroup:  totalInodes,
		WriteTime:       now,
		MaxMountCount:   0xFFFF,
		Magic:           Signature,
		State:           fsStateClean,
		Errors:          fsErrorsContinue,
		LastCheck:       now,
	})
	if err != nil {
		return nil, ext2img.ErrIOFailed.Wrap(err)
	}

	gdWriter := bytewriter.New(data[GroupDescriptorBlock*BlockSize:])
	err = binary.Write(gdWriter, binary.LittleEndian, rawGroupDescriptor{
		BlockBitmap:     blockBitmapBlock,
		InodeBitmap:     inodeBitmapBlock,
		InodeTable:      inodeTableBlock,
		FreeBlocksCount: uint16(freeBlocks),
		FreeInodesCount: uint16(freeInodes),
		UsedDirsCount:   1,
	})
	if err != nil {
		return nil, ext2img.ErrIOFailed.Wrap(err)
	}

	// Block bitmap: metadata and root-directory blocks in use, and every
	// padding bit past the last real block permanently set.
	blockBits := bitmap.Bitmap(data[blockBitmapBlock*BlockSize : (blockBitmapBlock+1)*BlockSize])
	for i := uint32(0); i < rootBlock; i++ {
		blockBits.Set(int(i), true)
	}
	for i := totalBlocks - 1; i < BlockSize*8; i++ {
		blockBits.Set(int(i), true)
	}

	// Inode bitmap: the reserved inodes in use, padding bits set.
	inodeBits := bitmap.Bitmap(data[inodeBitmapBlock*BlockSize : (inodeBitmapBlock+1)*BlockSize])
	for i := 0; i < FirstUsableInode-1; i++ {
		inodeBits.Set(i, true)
	}
	for i := totalInodes; i < BlockSize*8; i++ {
		inodeBits.Set(int(i), true)
	}

	img := &Image{data: data}

	root, err := img.Inode(RootInode)
	if err != nil {
		return nil, err
	}
	root.SetMode(ModeDirectory | 0o755)
	root.SetSize(BlockSize)
	root.SetLinksCount(2)
	root.SetBlocks(BlockSize / SectorSize)
	root.SetCTime(now)
	root.SetATime(now)
	root.SetMTime(now)
	root.SetBlock(0, rootBlock)

	self := Dirent{img: img, blockNum: rootBlock, offset: 0}
	self.init(RootInode, direntHeaderSize+direntNameAlignment, ".", FileTypeDirectory)
	parent := Dirent{img: img, blockNum: rootBlock, offset: self.usedLen()}
	parent.init(RootInode, BlockSize-uint16(self.usedLen()), "..", FileTypeDirectory)

	return NewImage(data)
}
