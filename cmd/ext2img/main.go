package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/pzl/ext2img"
	"github.com/pzl/ext2img/disks"
	"github.com/pzl/ext2img/file_systems/ext2"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.App{
		Name:  "ext2img",
		Usage: "Manipulate ext2 disk image files",
		Commands: []*cli.Command{
			{
				Name:      "cp",
				Usage:     "Copy a file from the native OS into the image",
				Action:    copyIn,
				ArgsUsage: "IMAGE  HOST_FILE  EXT2_PATH",
			},
			{
				Name:      "ln",
				Usage:     "Create a hard or symbolic link inside the image",
				Action:    link,
				ArgsUsage: "IMAGE  SRC_EXT2_PATH  LINK_EXT2_PATH",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "symbolic",
						Aliases: []string{"s"},
						Usage:   "create a symbolic link instead of a hard link",
					},
				},
			},
			{
				Name:      "mkdir",
				Usage:     "Create a directory inside the image",
				Action:    makeDirectory,
				ArgsUsage: "IMAGE  EXT2_PATH",
			},
			{
				Name:      "rm",
				Usage:     "Remove a file or symbolic link from the image",
				Action:    remove,
				ArgsUsage: "IMAGE  EXT2_PATH",
			},
			{
				Name:      "mkfs",
				Usage:     "Create a fresh single-group ext2 image",
				Action:    makeFileSystem,
				ArgsUsage: "IMAGE",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "geometry",
						Usage: "predefined image geometry `SLUG`",
						Value: "classic",
					},
					&cli.UintFlag{
						Name:  "blocks",
						Usage: "total 1 KiB blocks (overrides --geometry)",
					},
					&cli.UintFlag{
						Name:  "inodes",
						Usage: "total inodes (overrides --geometry)",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

// exitError converts a library error into the process exit code the command
// surface promises: the POSIX errno of the failure.
func exitError(err error) error {
	if err == nil {
		return nil
	}
	var drvErr *ext2img.DriverError
	if errors.As(err, &drvErr) {
		return cli.Exit(err.Error(), int(drvErr.Errno()))
	}
	return cli.Exit(err.Error(), 1)
}

func usageError(ctx *cli.Context) error {
	return cli.Exit(
		fmt.Sprintf("usage: %s %s %s", ctx.App.Name, ctx.Command.Name, ctx.Command.ArgsUsage),
		1,
	)
}

// withImage loads the image file, runs `fn` against it, and writes the
// mutated region back only if `fn` succeeded.
func withImage(path string, fn func(*ext2.Image) error) error {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return ext2img.ErrNotFound.Wrap(err)
	}
	defer file.Close()

	img, err := ext2.LoadImage(file)
	if err != nil {
		return err
	}
	if err := fn(img); err != nil {
		return err
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return ext2img.ErrIOFailed.Wrap(err)
	}
	if _, err := img.WriteTo(file); err != nil {
		return ext2img.ErrIOFailed.Wrap(err)
	}
	return nil
}

func copyIn(ctx *cli.Context) error {
	if ctx.Args().Len() != 3 {
		return usageError(ctx)
	}
	imagePath := ctx.Args().Get(0)
	hostPath := ctx.Args().Get(1)
	targetPath := ctx.Args().Get(2)

	stat, err := os.Stat(hostPath)
	if err != nil || !stat.Mode().IsRegular() {
		return exitError(ext2img.ErrNotFound.WithMessage(
			hostPath + " is not a regular file"))
	}

	src, err := os.Open(hostPath)
	if err != nil {
		return exitError(ext2img.ErrNotFound.Wrap(err))
	}
	defer src.Close()

	return exitError(withImage(imagePath, func(img *ext2.Image) error {
		return img.CopyIn(src, filepath.Base(hostPath), targetPath)
	}))
}

func link(ctx *cli.Context) error {
	if ctx.Args().Len() != 3 {
		return usageError(ctx)
	}
	imagePath := ctx.Args().Get(0)
	srcPath := ctx.Args().Get(1)
	linkPath := ctx.Args().Get(2)

	return exitError(withImage(imagePath, func(img *ext2.Image) error {
		if ctx.Bool("symbolic") {
			return img.Symlink(srcPath, linkPath)
		}
		return img.Link(srcPath, linkPath)
	}))
}

func makeDirectory(ctx *cli.Context) error {
	if ctx.Args().Len() != 2 {
		return usageError(ctx)
	}
	return exitError(withImage(ctx.Args().Get(0), func(img *ext2.Image) error {
		return img.Mkdir(ctx.Args().Get(1))
	}))
}

func remove(ctx *cli.Context) error {
	if ctx.Args().Len() != 2 {
		return usageError(ctx)
	}
	return exitError(withImage(ctx.Args().Get(0), func(img *ext2.Image) error {
		return img.Remove(ctx.Args().Get(1))
	}))
}

func makeFileSystem(ctx *cli.Context) error {
	if ctx.Args().Len() != 1 {
		return usageError(ctx)
	}

	geometry, err := disks.GetPredefinedImageGeometry(ctx.String("geometry"))
	if err != nil {
		return cli.Exit(
			fmt.Sprintf("%s (available: %v)", err.Error(), disks.Slugs()), 1)
	}
	totalBlocks := geometry.TotalBlocks
	totalInodes := geometry.TotalInodes
	if ctx.Uint("blocks") != 0 {
		totalBlocks = uint32(ctx.Uint("blocks"))
	}
	if ctx.Uint("inodes") != 0 {
		totalInodes = uint32(ctx.Uint("inodes"))
	}

	img, err := ext2.Format(totalBlocks, totalInodes)
	if err != nil {
		return exitError(err)
	}

	file, err := os.Create(ctx.Args().Get(0))
	if err != nil {
		return exitError(ext2img.ErrIOFailed.Wrap(err))
	}
	defer file.Close()

	if _, err := img.WriteTo(file); err != nil {
		return exitError(ext2img.ErrIOFailed.Wrap(err))
	}
	return exitError(file.Close())
}
