package disks

import (
	_ "embed"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
)

// ImageGeometry describes one predefined single-group ext2 image layout.
type ImageGeometry struct {
	Name string `csv:"name"`
	Slug string `csv:"slug"`

	// TotalBlocks is the number of 1 KiB blocks in the image, block 0
	// included.
	TotalBlocks uint32 `csv:"total_blocks"`

	// TotalInodes is the size of the inode table. Always a multiple of 8 so
	// the inode bitmap has no partial bytes.
	TotalInodes uint32 `csv:"total_inodes"`

	Notes string `csv:"notes"`
}

// TotalSizeBytes gives the size of the image file this geometry produces.
func (g *ImageGeometry) TotalSizeBytes() int64 {
	return int64(g.TotalBlocks) * 1024
}

//go:embed geometries.csv
var imageGeometriesRawCSV string
var imageGeometries = make(map[string]ImageGeometry)

// GetPredefinedImageGeometry looks up a geometry by its slug.
func GetPredefinedImageGeometry(slug string) (ImageGeometry, error) {
	geometry, ok := imageGeometries[slug]
	if ok {
		return geometry, nil
	}

	err := fmt.Errorf("no predefined image geometry exists with slug %q", slug)
	return ImageGeometry{}, err
}

// Slugs returns every defined geometry slug.
func Slugs() []string {
	slugs := make([]string, 0, len(imageGeometries))
	for slug := range imageGeometries {
		slugs = append(slugs, slug)
	}
	return slugs
}

func init() {
	reader := strings.NewReader(imageGeometriesRawCSV)
	err := gocsv.UnmarshalToCallback(
		reader,
		func(row ImageGeometry) error {
			_, exists := imageGeometries[row.Slug]
			if exists {
				return fmt.Errorf(
					"duplicate definition for geometry %q found on row %d",
					row.Slug,
					len(imageGeometries)+1,
				)
			}
			imageGeometries[row.Slug] = row
			return nil
		},
	)
	if err != nil && err != io.EOF {
		panic(err)
	}
}
