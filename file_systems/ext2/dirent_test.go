package ext2_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/pzl/ext2img"
	"github.com/pzl/ext2img/file_systems/ext2"
	imagetesting "github.com/pzl/ext2img/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rootOf(t *testing.T, img *ext2.Image) ext2.Inode {
	root, err := img.Inode(ext2.RootInode)
	require.NoError(t, err)
	return root
}

func TestFindEntryMissing(t *testing.T) {
	img := imagetesting.NewDiskImage(t, "classic")

	_, found, err := img.FindEntry(rootOf(t, img), "nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFindEntryRejectsLongNames(t *testing.T) {
	img := imagetesting.NewDiskImage(t, "classic")

	_, _, err := img.FindEntry(rootOf(t, img), strings.Repeat("x", 256))
	assert.ErrorIs(t, err, ext2img.ErrNameTooLong)
}

func TestCreateEntrySplitsTheLastRecord(t *testing.T) {
	img := imagetesting.NewDiskImage(t, "classic")
	root := rootOf(t, img)

	entry, err := img.CreateEntry(root, 0, "x", ext2.FileTypeRegular)
	require.NoError(t, err)

	// The fresh root block was "." (12 bytes) followed by ".." stretching
	// to the block end. The new record takes over the slack of "..".
	assert.EqualValues(t, ext2.BlockSize-24, entry.RecLen())
	assert.Equal(t, "x", entry.Name())
	assert.Equal(t, ext2.FileTypeRegular, entry.FileType())

	parent, found, err := img.FindEntry(root, "..")
	require.NoError(t, err)
	require.True(t, found)
	assert.EqualValues(t, 12, parent.RecLen())

	imagetesting.RequireConsistent(t, img)
}

func TestCreateEntryDuplicateName(t *testing.T) {
	img := imagetesting.NewDiskImage(t, "classic")
	root := rootOf(t, img)

	_, err := img.CreateEntry(root, 0, "dup", ext2.FileTypeRegular)
	require.NoError(t, err)
	_, err = img.CreateEntry(root, 0, "dup", ext2.FileTypeRegular)
	assert.ErrorIs(t, err, ext2img.ErrExists)
}

func TestCreateEntryIncrementsLinksCount(t *testing.T) {
	img := imagetesting.NewDiskImage(t, "classic")
	root := rootOf(t, img)

	entry, err := img.CreateEntry(root, 0, "first", ext2.FileTypeRegular)
	require.NoError(t, err)

	ino, err := img.Inode(entry.Inode())
	require.NoError(t, err)
	assert.EqualValues(t, 1, ino.LinksCount())

	_, err = img.CreateEntry(root, entry.Inode(), "second", ext2.FileTypeRegular)
	require.NoError(t, err)
	assert.EqualValues(t, 2, ino.LinksCount())

	imagetesting.RequireConsistent(t, img)
}

func TestCreateEntryExtendsDirectoryWithNewBlock(t *testing.T) {
	img := imagetesting.NewDiskImage(t, "small")
	root := rootOf(t, img)

	anchor, err := img.CreateEntry(root, 0, "anchor", ext2.FileTypeRegular)
	require.NoError(t, err)

	sizeBefore := root.Size()
	count := 0
	for root.Size() == sizeBefore {
		name := fmt.Sprintf("%0100d", count)
		_, err := img.CreateEntry(root, anchor.Inode(), name, ext2.FileTypeRegular)
		require.NoError(t, err)
		count++
	}

	assert.EqualValues(t, sizeBefore+ext2.BlockSize, root.Size())
	assert.EqualValues(t, (sizeBefore+ext2.BlockSize)/ext2.SectorSize, root.Blocks())
	assert.NotZero(t, root.Block(1), "second direct pointer should be installed")
	imagetesting.RequireConsistent(t, img)
}

func TestCreateEntryFailsWhenDirectoryCannotGrow(t *testing.T) {
	img := imagetesting.NewDiskImage(t, "small")
	root := rootOf(t, img)

	anchor, err := img.CreateEntry(root, 0, "anchor", ext2.FileTypeRegular)
	require.NoError(t, err)

	// Hard-link the same inode under long names until all 12 direct blocks
	// are packed solid.
	count := 0
	for {
		name := fmt.Sprintf("%0200d", count)
		_, err := img.CreateEntry(root, anchor.Inode(), name, ext2.FileTypeRegular)
		if err != nil {
			assert.ErrorIs(t, err, ext2img.ErrNoSpaceOnDevice)
			break
		}
		count++
		require.Less(t, count, 10000, "directory never filled up")
	}

	assert.Greater(t, count, 40, "twelve blocks should hold more entries than this")
	imagetesting.RequireConsistent(t, img)
}

func TestDeleteEntryAbsorbsRecordIntoPredecessor(t *testing.T) {
	img := imagetesting.NewDiskImage(t, "classic")
	root := rootOf(t, img)

	first, err := img.CreateEntry(root, 0, "first", ext2.FileTypeRegular)
	require.NoError(t, err)
	_, err = img.CreateEntry(root, first.Inode(), "second", ext2.FileTypeRegular)
	require.NoError(t, err)

	require.EqualValues(t, 16, first.RecLen(), "creating a successor should trim the slack")
	require.NoError(t, img.DeleteEntry(root, "second"))

	// "second" was carved out of "first"'s slack; deleting it hands the
	// space back.
	assert.EqualValues(t, ext2.BlockSize-24, first.RecLen())
	_, found, err := img.FindEntry(root, "second")
	require.NoError(t, err)
	assert.False(t, found)
	imagetesting.RequireConsistent(t, img)
}

func TestDeleteEntryFirstInBlockBecomesHole(t *testing.T) {
	img := imagetesting.NewDiskImage(t, "small")
	require.NoError(t, img.Mkdir("/d"))

	dir, err := img.ResolveEntry("/d")
	require.NoError(t, err)
	dirInode, err := img.Inode(dir.Inode())
	require.NoError(t, err)

	anchor, err := img.CreateEntry(dirInode, 0, "anchor", ext2.FileTypeRegular)
	require.NoError(t, err)

	// Spill the directory into a second block, then delete that block's
	// first record to punch a hole.
	var spilled string
	for i := 0; dirInode.Block(1) == 0; i++ {
		spilled = fmt.Sprintf("%0100d", i)
		_, err := img.CreateEntry(dirInode, anchor.Inode(), spilled, ext2.FileTypeRegular)
		require.NoError(t, err)
	}

	require.NoError(t, img.DeleteEntry(dirInode, spilled))
	imagetesting.RequireConsistent(t, img)

	// Re-creating an entry of the same size must reuse the hole instead of
	// growing the directory.
	sizeBefore := dirInode.Size()
	_, err = img.CreateEntry(dirInode, anchor.Inode(), spilled, ext2.FileTypeRegular)
	require.NoError(t, err)
	assert.Equal(t, sizeBefore, dirInode.Size(), "hole should be reused in place")
	imagetesting.RequireConsistent(t, img)
}

func TestDeleteEntryRefusesDirectories(t *testing.T) {
	img := imagetesting.NewDiskImage(t, "classic")
	require.NoError(t, img.Mkdir("/d"))

	err := img.DeleteEntry(rootOf(t, img), "d")
	assert.ErrorIs(t, err, ext2img.ErrIsADirectory)
}

func TestDeleteEntryMissingName(t *testing.T) {
	img := imagetesting.NewDiskImage(t, "classic")

	err := img.DeleteEntry(rootOf(t, img), "ghost")
	assert.ErrorIs(t, err, ext2img.ErrNotFound)
}
