package ext2_test

import (
	"strings"
	"testing"

	"github.com/pzl/ext2img/file_systems/ext2"
	imagetesting "github.com/pzl/ext2img/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsFreshImage(t *testing.T) {
	img, err := ext2.Format(128, 32)
	require.NoError(t, err)
	assert.NoError(t, ext2.Validate(img))
}

func TestValidateCatchesCounterDrift(t *testing.T) {
	img := imagetesting.NewDiskImage(t, "classic")

	img.Superblock().SetFreeBlocksCount(img.Superblock().FreeBlocksCount() - 1)
	err := ext2.Validate(img)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "free blocks")
}

func TestValidateCatchesGroupDescriptorDrift(t *testing.T) {
	img := imagetesting.NewDiskImage(t, "classic")

	gd := img.GroupDescriptor()
	gd.SetFreeInodesCount(gd.FreeInodesCount() + 5)
	err := ext2.Validate(img)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "free inodes")
}

func TestValidateCatchesDanglingBlockReference(t *testing.T) {
	img := imagetesting.NewDiskImage(t, "classic")
	require.NoError(t, img.CopyIn(strings.NewReader("hello"), "f", "/f"))

	entry, err := img.ResolveEntry("/f")
	require.NoError(t, err)
	ino, err := img.Inode(entry.Inode())
	require.NoError(t, err)

	// Free the file's data block behind the inode's back.
	img.FreeBlock(ino.Block(0))
	err = ext2.Validate(img)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bitmap bit is clear")
}

func TestValidateCatchesPhantomDeletionTime(t *testing.T) {
	img := imagetesting.NewDiskImage(t, "classic")
	require.NoError(t, img.CopyIn(strings.NewReader("hello"), "f", "/f"))

	entry, err := img.ResolveEntry("/f")
	require.NoError(t, err)
	ino, err := img.Inode(entry.Inode())
	require.NoError(t, err)
	ino.SetDTime(12345)

	err = ext2.Validate(img)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deletion time")
}

func TestValidateCatchesBrokenRecordChain(t *testing.T) {
	img := imagetesting.NewDiskImage(t, "classic")
	root, err := img.Inode(ext2.RootInode)
	require.NoError(t, err)

	entry, found, err := img.FindEntry(root, "..")
	require.NoError(t, err)
	require.True(t, found)
	entry.SetRecLen(entry.RecLen() - 4)

	err = ext2.Validate(img)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rec_len chain")
}

func TestValidateCatchesWrongSectorCount(t *testing.T) {
	img := imagetesting.NewDiskImage(t, "classic")
	require.NoError(t, img.CopyIn(strings.NewReader("hello"), "f", "/f"))

	entry, err := img.ResolveEntry("/f")
	require.NoError(t, err)
	ino, err := img.Inode(entry.Inode())
	require.NoError(t, err)
	ino.SetBlocks(ino.Blocks() + 2)

	err = ext2.Validate(img)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sectors")
}
