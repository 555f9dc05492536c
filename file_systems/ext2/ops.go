// The command operations. Each one is the composition a command-line driver
// invokes: a path walk followed by directory, inode, and data mutations.

package ext2

import (
	"io"

	"github.com/pzl/ext2img"
)

// CopyIn creates a regular file at `path` and fills it with the contents of
// `src`. When `path` names an existing directory the file is created inside
// it as `fallbackName` (conventionally the source file's base name).
func (img *Image) CopyIn(src io.Reader, fallbackName, path string) error {
	parent, name, err := img.ResolveParentForCreate(path, fallbackName)
	if err != nil {
		return err
	}

	entry, err := img.CreateEntry(parent, 0, name, FileTypeRegular)
	if err != nil {
		return err
	}

	ino, err := img.Inode(entry.Inode())
	if err != nil {
		return err
	}
	return img.WriteFileData(ino, src)
}

// Mkdir creates the directory named by `path` and populates it with its "."
// and ".." entries. Linking ".." bumps the parent's links count, keeping the
// parent's reference count in line with its children.
func (img *Image) Mkdir(path string) error {
	parent, name, err := img.ResolveParentForMkdir(path)
	if err != nil {
		return err
	}

	entry, err := img.CreateEntry(parent, 0, name, FileTypeDirectory)
	if err != nil {
		return err
	}

	gd := img.GroupDescriptor()
	gd.SetUsedDirsCount(gd.UsedDirsCount() + 1)

	newDir, err := img.Inode(entry.Inode())
	if err != nil {
		return err
	}
	if _, err := img.CreateEntry(newDir, entry.Inode(), ".", FileTypeDirectory); err != nil {
		return err
	}
	if _, err := img.CreateEntry(newDir, parent.Number(), "..", FileTypeDirectory); err != nil {
		return err
	}
	return nil
}

// Link creates a hard link at `linkPath` to the file at `srcPath`. Hard
// links to directories are refused.
func (img *Image) Link(srcPath, linkPath string) error {
	src, err := img.ResolveEntry(srcPath)
	if err != nil {
		return err
	}
	if src.FileType() == FileTypeDirectory {
		return ext2img.ErrIsADirectory.WithMessage(srcPath)
	}

	parent, name, err := img.ResolveParentForCreate(linkPath, src.Name())
	if err != nil {
		return err
	}

	_, err = img.CreateEntry(parent, src.Inode(), name, FileTypeRegular)
	return err
}

// Symlink creates a symbolic link at `linkPath` whose contents are the
// bytes of `srcPath`. The source must exist, but may be of any type.
func (img *Image) Symlink(srcPath, linkPath string) error {
	src, err := img.ResolveEntry(srcPath)
	if err != nil {
		return err
	}

	parent, name, err := img.ResolveParentForCreate(linkPath, src.Name())
	if err != nil {
		return err
	}

	entry, err := img.CreateEntry(parent, 0, name, FileTypeSymlink)
	if err != nil {
		return err
	}

	ino, err := img.Inode(entry.Inode())
	if err != nil {
		return err
	}
	return img.writeSymlinkTarget(ino, srcPath)
}

// Remove deletes the file or symlink at `path`. Directories cannot be
// removed, and a trailing '/' marks the path as naming a directory.
func (img *Image) Remove(path string) error {
	parent, name, err := img.ResolveParentForDelete(path)
	if err != nil {
		return err
	}

	if hasTrailingSlash(path) {
		return ext2img.ErrIsADirectory.WithMessage(path)
	}
	if name == "" {
		name = "."
	}
	return img.DeleteEntry(parent, name)
}
