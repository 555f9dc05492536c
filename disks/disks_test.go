package disks_test

import (
	"testing"

	"github.com/pzl/ext2img/disks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPredefinedImageGeometry(t *testing.T) {
	geometry, err := disks.GetPredefinedImageGeometry("classic")
	require.NoError(t, err)

	assert.Equal(t, "classic", geometry.Slug)
	assert.EqualValues(t, 128, geometry.TotalBlocks)
	assert.EqualValues(t, 32, geometry.TotalInodes)
	assert.EqualValues(t, 128*1024, geometry.TotalSizeBytes())
}

func TestGetPredefinedImageGeometryUnknownSlug(t *testing.T) {
	_, err := disks.GetPredefinedImageGeometry("betamax")
	assert.Error(t, err)
}

func TestAllGeometriesAreFormattable(t *testing.T) {
	slugs := disks.Slugs()
	require.NotEmpty(t, slugs)

	for _, slug := range slugs {
		geometry, err := disks.GetPredefinedImageGeometry(slug)
		require.NoError(t, err)

		assert.NotZerof(t, geometry.TotalBlocks, "%s has no blocks", slug)
		assert.Zerof(t, geometry.TotalInodes%8, "%s has a partial inode bitmap byte", slug)
		assert.LessOrEqualf(t, geometry.TotalBlocks, uint32(8193),
			"%s overflows a one-block bitmap", slug)
	}
}
