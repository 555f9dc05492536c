package ext2_test

import (
	"bytes"
	"testing"

	"github.com/pzl/ext2img"
	"github.com/pzl/ext2img/file_systems/ext2"
	imagetesting "github.com/pzl/ext2img/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFileInode creates an empty regular file in the root directory and
// returns its inode.
func newFileInode(t *testing.T, img *ext2.Image, name string) ext2.Inode {
	entry, err := img.CreateEntry(rootOf(t, img), 0, name, ext2.FileTypeRegular)
	require.NoError(t, err)
	ino, err := img.Inode(entry.Inode())
	require.NoError(t, err)
	return ino
}

func TestWriteFileDataEmptyStream(t *testing.T) {
	img := imagetesting.NewDiskImage(t, "small")
	ino := newFileInode(t, img, "empty")

	require.NoError(t, img.WriteFileData(ino, bytes.NewReader(nil)))
	assert.Zero(t, ino.Size())
	assert.Zero(t, ino.Blocks())
	assert.Zero(t, ino.Block(0))
	imagetesting.RequireConsistent(t, img)
}

func TestWriteFileDataExactBlock(t *testing.T) {
	img := imagetesting.NewDiskImage(t, "small")
	ino := newFileInode(t, img, "one")

	payload := bytes.Repeat([]byte{0xAB}, ext2.BlockSize)
	require.NoError(t, img.WriteFileData(ino, bytes.NewReader(payload)))

	assert.EqualValues(t, ext2.BlockSize, ino.Size())
	assert.EqualValues(t, 2, ino.Blocks())
	assert.NotZero(t, ino.Block(0))
	assert.Zero(t, ino.Block(1), "an exact block must not allocate a successor")
	imagetesting.RequireConsistent(t, img)
}

func TestWriteFileDataPartialSecondBlock(t *testing.T) {
	img := imagetesting.NewDiskImage(t, "small")
	ino := newFileInode(t, img, "partial")

	payload := bytes.Repeat([]byte{0x11}, ext2.BlockSize+1)
	require.NoError(t, img.WriteFileData(ino, bytes.NewReader(payload)))

	assert.EqualValues(t, ext2.BlockSize+1, ino.Size())
	assert.EqualValues(t, 4, ino.Blocks())
	assert.NotZero(t, ino.Block(1))
	imagetesting.RequireConsistent(t, img)
}

func TestWriteFileDataTwelveBlocksStaysDirect(t *testing.T) {
	img := imagetesting.NewDiskImage(t, "small")
	ino := newFileInode(t, img, "twelve")

	payload := bytes.Repeat([]byte{0x22}, 12*ext2.BlockSize)
	require.NoError(t, img.WriteFileData(ino, bytes.NewReader(payload)))

	assert.EqualValues(t, 12*ext2.BlockSize, ino.Size())
	assert.EqualValues(t, 24, ino.Blocks())
	assert.Zero(t, ino.Block(ext2.IndirectBlockSlot),
		"twelve blocks fit without an indirect block")
	imagetesting.RequireConsistent(t, img)
}

func TestWriteFileDataFillsTheIndirectBlock(t *testing.T) {
	img := imagetesting.NewDiskImage(t, "small")
	ino := newFileInode(t, img, "max")

	const maxBlocks = 12 + ext2.BlockSize/4
	payload := bytes.Repeat([]byte{0x33}, maxBlocks*ext2.BlockSize)
	require.NoError(t, img.WriteFileData(ino, bytes.NewReader(payload)))

	assert.EqualValues(t, maxBlocks*ext2.BlockSize, ino.Size())
	assert.EqualValues(t, (maxBlocks+1)*2, ino.Blocks(),
		"every data block plus the indirect block itself")
	imagetesting.RequireConsistent(t, img)
}

func TestWriteFileDataOverflowingTheIndirectBlock(t *testing.T) {
	img := imagetesting.NewDiskImage(t, "small")
	ino := newFileInode(t, img, "huge")

	const maxBlocks = 12 + ext2.BlockSize/4
	payload := bytes.Repeat([]byte{0x44}, maxBlocks*ext2.BlockSize+1)
	err := img.WriteFileData(ino, bytes.NewReader(payload))
	assert.ErrorIs(t, err, ext2img.ErrFileTooLarge)
}

func TestWriteFileDataOutOfSpace(t *testing.T) {
	img, err := ext2.Format(16, 16)
	require.NoError(t, err)

	entry, err := img.CreateEntry(rootOf(t, img), 0, "f", ext2.FileTypeRegular)
	require.NoError(t, err)
	ino, err := img.Inode(entry.Inode())
	require.NoError(t, err)

	payload := bytes.Repeat([]byte{0x55}, 12*ext2.BlockSize)
	err = img.WriteFileData(ino, bytes.NewReader(payload))
	assert.ErrorIs(t, err, ext2img.ErrNoSpaceOnDevice)
}
