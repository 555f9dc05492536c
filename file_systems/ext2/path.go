// Path resolution over directory-entry chains.
//
// Paths must be absolute. Components are separated by '/'; empty components
// are skipped, so "." and ".." are looked up like any other name (every
// directory carries both). Symbolic links are never followed: a symlink in
// an intermediate position fails resolution.

package ext2

import (
	"strings"

	"github.com/pzl/ext2img"
)

func splitPath(path string) []string {
	var tokens []string
	for _, tok := range strings.Split(path, "/") {
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

func isAbsolute(path string) bool {
	return strings.HasPrefix(path, "/")
}

func hasTrailingSlash(path string) bool {
	return strings.HasSuffix(path, "/")
}

func (img *Image) rootInode() (Inode, error) {
	return img.Inode(RootInode)
}

// ResolveEntry walks `path` from the root directory and returns the
// directory entry it names. The final component may be of any type, but a
// trailing '/' is only valid when it names a directory. Intermediate
// components must be directories; a symlink encountered mid-path is refused.
func (img *Image) ResolveEntry(path string) (Dirent, error) {
	if !isAbsolute(path) {
		return Dirent{}, ext2img.ErrNotFound.WithMessage("path is not absolute: " + path)
	}

	dir, err := img.rootInode()
	if err != nil {
		return Dirent{}, err
	}

	// The root directory has no record of its own in a parent, so it is
	// represented by its own "." entry.
	entry, found, err := img.FindEntry(dir, ".")
	if err != nil {
		return Dirent{}, err
	}
	if !found {
		return Dirent{}, ext2img.ErrFileSystemCorrupted.WithMessage(
			"root directory has no \".\" entry")
	}

	tokens := splitPath(path)
	for i, tok := range tokens {
		dir, err = img.Inode(entry.Inode())
		if err != nil {
			return Dirent{}, err
		}

		entry, found, err = img.FindEntry(dir, tok)
		if err != nil {
			return Dirent{}, err
		}
		if !found {
			return Dirent{}, ext2img.ErrNotFound.WithMessage(path)
		}
		if i == len(tokens)-1 {
			break
		}
		// Symlink traversal is unsupported; anything that is not a
		// directory cannot be descended into.
		if entry.FileType() != FileTypeDirectory {
			return Dirent{}, ext2img.ErrNotFound.WithMessage(path)
		}
	}

	if hasTrailingSlash(path) && entry.FileType() != FileTypeDirectory {
		return Dirent{}, ext2img.ErrNotFound.WithMessage(path)
	}
	return entry, nil
}

// ResolveParentForCreate consumes `path` until a component fails to
// resolve; that component becomes the name to create inside the last
// directory reached. When every component resolves and the final one is a
// directory, the entry is created inside it under `fallbackName`.
//
// Failure modes: a missing or non-directory intermediate component is
// *not-found*, as is a trailing '/' on the component to create or on a final
// non-directory; a fully resolved path ending in a non-directory without a
// trailing '/' is *exists*.
func (img *Image) ResolveParentForCreate(path, fallbackName string) (Inode, string, error) {
	if !isAbsolute(path) {
		return Inode{}, "", ext2img.ErrNotFound.WithMessage("path is not absolute: " + path)
	}

	dir, err := img.rootInode()
	if err != nil {
		return Inode{}, "", err
	}

	tokens := splitPath(path)
	for i, tok := range tokens {
		entry, found, err := img.FindEntry(dir, tok)
		if err != nil {
			return Inode{}, "", err
		}
		last := i == len(tokens)-1

		if !found {
			if !last || hasTrailingSlash(path) {
				return Inode{}, "", ext2img.ErrNotFound.WithMessage(path)
			}
			return dir, tok, nil
		}

		if entry.FileType() != FileTypeDirectory {
			if !last || hasTrailingSlash(path) {
				return Inode{}, "", ext2img.ErrNotFound.WithMessage(path)
			}
			return Inode{}, "", ext2img.ErrExists.WithMessage(path)
		}

		dir, err = img.Inode(entry.Inode())
		if err != nil {
			return Inode{}, "", err
		}
	}

	// The whole path resolved to a directory; create inside it under the
	// caller-supplied name.
	return dir, fallbackName, nil
}

// ResolveParentForMkdir is the stricter creation walk used by directory
// creation: a fully resolved path is always *exists*, no matter what the
// final component is, and a trailing '/' is tolerated.
func (img *Image) ResolveParentForMkdir(path string) (Inode, string, error) {
	if !isAbsolute(path) {
		return Inode{}, "", ext2img.ErrNotFound.WithMessage("path is not absolute: " + path)
	}

	tokens := splitPath(path)
	if len(tokens) == 0 {
		return Inode{}, "", ext2img.ErrNotFound.WithMessage(path)
	}

	dir, err := img.rootInode()
	if err != nil {
		return Inode{}, "", err
	}

	for i, tok := range tokens {
		entry, found, err := img.FindEntry(dir, tok)
		if err != nil {
			return Inode{}, "", err
		}
		last := i == len(tokens)-1

		if !found {
			if !last {
				return Inode{}, "", ext2img.ErrNotFound.WithMessage(path)
			}
			return dir, tok, nil
		}
		if last {
			return Inode{}, "", ext2img.ErrExists.WithMessage(path)
		}
		if entry.FileType() != FileTypeDirectory {
			return Inode{}, "", ext2img.ErrNotFound.WithMessage(path)
		}

		dir, err = img.Inode(entry.Inode())
		if err != nil {
			return Inode{}, "", err
		}
	}

	// Unreachable: the loop always returns on its last iteration.
	return Inode{}, "", ext2img.ErrNotFound.WithMessage(path)
}

// ResolveParentForDelete walks the whole of `path`, requiring every
// component (the final one included) to exist, and returns the directory
// containing the final component along with that component's name. An empty
// name is returned for the root path itself.
func (img *Image) ResolveParentForDelete(path string) (Inode, string, error) {
	if !isAbsolute(path) {
		return Inode{}, "", ext2img.ErrNotFound.WithMessage("path is not absolute: " + path)
	}

	dir, err := img.rootInode()
	if err != nil {
		return Inode{}, "", err
	}

	tokens := splitPath(path)
	for i, tok := range tokens {
		entry, found, err := img.FindEntry(dir, tok)
		if err != nil {
			return Inode{}, "", err
		}
		if !found {
			return Inode{}, "", ext2img.ErrNotFound.WithMessage(path)
		}
		if i == len(tokens)-1 {
			return dir, tok, nil
		}
		if entry.FileType() != FileTypeDirectory {
			return Inode{}, "", ext2img.ErrNotFound.WithMessage(path)
		}

		dir, err = img.Inode(entry.Inode())
		if err != nil {
			return Inode{}, "", err
		}
	}

	return dir, "", nil
}
