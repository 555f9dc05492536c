// Directory record engine.
//
// A directory's contents is the concatenation of its direct data blocks;
// each block holds a self-contained chain of variable-length records linked
// by rec_len. The rec_len values in a block always sum to the block size,
// and the last record's rec_len extends to the block's end.

package ext2

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pzl/ext2img"
)

// Dirent is a view over one directory-entry record inside a directory's
// data block.
type Dirent struct {
	img      *Image
	blockNum uint32
	offset   int
}

func (d Dirent) record() []byte {
	data, err := d.img.BlockData(d.blockNum)
	if err != nil {
		panic(err)
	}
	return data[d.offset:]
}

// Inode returns the record's inode number; zero marks the record as a hole.
func (d Dirent) Inode() uint32 {
	return binary.LittleEndian.Uint32(d.record()[0:])
}

func (d Dirent) SetInode(num uint32) {
	binary.LittleEndian.PutUint32(d.record()[0:], num)
}

// RecLen is the distance in bytes from this record to the next one.
func (d Dirent) RecLen() uint16 {
	return binary.LittleEndian.Uint16(d.record()[4:])
}

func (d Dirent) SetRecLen(n uint16) {
	binary.LittleEndian.PutUint16(d.record()[4:], n)
}

func (d Dirent) NameLen() uint8 {
	return d.record()[6]
}

func (d Dirent) FileType() FileType {
	return FileType(d.record()[7])
}

// Name returns the record's name bytes (not NUL-terminated on disk).
func (d Dirent) Name() string {
	rec := d.record()
	return string(rec[direntHeaderSize : direntHeaderSize+int(d.NameLen())])
}

// usedLen is the space the record actually occupies: the header plus the
// name, padded to the entry alignment.
func (d Dirent) usedLen() int {
	return alignDirent(direntHeaderSize + int(d.NameLen()))
}

// init writes a complete record header and name in place.
func (d Dirent) init(inode uint32, recLen uint16, name string, ft FileType) {
	rec := d.record()
	binary.LittleEndian.PutUint32(rec[0:], inode)
	binary.LittleEndian.PutUint16(rec[4:], recLen)
	rec[6] = uint8(len(name))
	rec[7] = uint8(ft)
	copy(rec[direntHeaderSize:], name)
}

// direntScanner walks a directory's record chain block by block, stepping by
// rec_len. After each successful Scan, Entry is the current record and Prev
// is the record preceding it in the same block (nil at a block start).
type direntScanner struct {
	img *Image
	dir Inode

	slot     int
	blockNum uint32
	next     int

	entry Dirent
	prev  *Dirent
	err   error
}

func newDirentScanner(img *Image, dir Inode) *direntScanner {
	return &direntScanner{img: img, dir: dir}
}

func (s *direntScanner) Scan() bool {
	if s.err != nil {
		return false
	}

	// Move to the next block once the current one is exhausted.
	for s.blockNum == 0 || s.next == BlockSize {
		if s.slot >= NumDirectBlocks || s.dir.Block(s.slot) == 0 {
			return false
		}
		s.blockNum = s.dir.Block(s.slot)
		s.slot++
		s.next = 0
		s.prev = nil
	}

	if s.next+direntHeaderSize > BlockSize {
		s.err = ext2img.ErrFileSystemCorrupted.WithMessage(fmt.Sprintf(
			"directory inode %d: truncated record at block %d offset %d",
			s.dir.Number(), s.blockNum, s.next))
		return false
	}

	if s.next > 0 {
		prev := s.entry
		s.prev = &prev
	}
	s.entry = Dirent{img: s.img, blockNum: s.blockNum, offset: s.next}

	recLen := int(s.entry.RecLen())
	if recLen < direntHeaderSize || recLen%direntNameAlignment != 0 ||
		s.next+recLen > BlockSize || s.entry.usedLen() > recLen {
		s.err = ext2img.ErrFileSystemCorrupted.WithMessage(fmt.Sprintf(
			"directory inode %d: record at block %d offset %d has rec_len %d",
			s.dir.Number(), s.blockNum, s.next, recLen))
		return false
	}
	s.next += recLen
	return true
}

func (s *direntScanner) Entry() Dirent {
	return s.entry
}

// Prev returns the record before Entry within the same block, or nil if
// Entry starts its block.
func (s *direntScanner) Prev() *Dirent {
	return s.prev
}

func (s *direntScanner) Err() error {
	return s.err
}

func checkName(name string) error {
	if name == "" {
		return ext2img.ErrInvalidArgument.WithMessage("empty entry name")
	}
	if len(name) > maxNameLength {
		return ext2img.ErrNameTooLong.WithMessage(name[:32] + "...")
	}
	return nil
}

// FindEntry locates the record named `name` inside directory `dir`. The
// boolean result reports whether a record was found.
func (img *Image) FindEntry(dir Inode, name string) (Dirent, bool, error) {
	if err := checkName(name); err != nil {
		return Dirent{}, false, err
	}

	scanner := newDirentScanner(img, dir)
	for scanner.Scan() {
		entry := scanner.Entry()
		if entry.Inode() == 0 {
			continue
		}
		if int(entry.NameLen()) != len(name) {
			continue
		}
		if bytes.Equal(entry.record()[direntHeaderSize:direntHeaderSize+len(name)], []byte(name)) {
			return entry, true, nil
		}
	}
	return Dirent{}, false, scanner.Err()
}

// CreateEntry inserts a record named `name` into directory `dir`. A zero
// `linkInode` allocates a fresh inode of the given file type; a non-zero
// value links the new record to that existing inode. Either way the target
// inode's links count is incremented.
//
// Insertion takes the first record, in walk order, that can hold the new
// one: a hole wide enough is reused in place, and a live record with enough
// slack is split. When no record fits, the directory is extended with a new
// block. A directory whose 12 direct blocks are all full cannot grow.
func (img *Image) CreateEntry(dir Inode, linkInode uint32, name string, ft FileType) (Dirent, error) {
	if _, found, err := img.FindEntry(dir, name); err != nil {
		return Dirent{}, err
	} else if found {
		return Dirent{}, ext2img.ErrExists.WithMessage(name)
	}

	needed := alignDirent(direntHeaderSize + len(name))

	scanner := newDirentScanner(img, dir)
	for scanner.Scan() {
		entry := scanner.Entry()

		if entry.Inode() == 0 {
			// A hole: reuse it in place if the new record fits.
			if needed <= int(entry.RecLen()) {
				return img.initEntry(entry, linkInode, entry.RecLen(), name, ft)
			}
			continue
		}

		// A live record: split its slack if the new record fits after it.
		used := entry.usedLen()
		if needed <= int(entry.RecLen())-used {
			newEntry := Dirent{
				img:      img,
				blockNum: entry.blockNum,
				offset:   entry.offset + used,
			}
			recLen := entry.RecLen() - uint16(used)
			entry.SetRecLen(uint16(used))
			return img.initEntry(newEntry, linkInode, recLen, name, ft)
		}
	}
	if err := scanner.Err(); err != nil {
		return Dirent{}, err
	}

	// No room in any existing block; extend the directory if a direct slot
	// is still open.
	for slot := 0; slot < NumDirectBlocks; slot++ {
		if dir.Block(slot) != 0 {
			continue
		}

		blockNum, err := img.AllocateBlock()
		if err != nil {
			return Dirent{}, err
		}
		dir.SetBlock(slot, blockNum)
		dir.SetSize(dir.Size() + BlockSize)
		dir.addSectors(BlockSize)

		entry := Dirent{img: img, blockNum: blockNum, offset: 0}
		return img.initEntry(entry, linkInode, BlockSize, name, ft)
	}

	return Dirent{}, ext2img.ErrNoSpaceOnDevice.WithMessage(
		fmt.Sprintf("directory inode %d cannot grow", dir.Number()))
}

func (img *Image) initEntry(entry Dirent, linkInode uint32, recLen uint16, name string, ft FileType) (Dirent, error) {
	if linkInode == 0 {
		num, err := img.AllocateInode(ft)
		if err != nil {
			return Dirent{}, err
		}
		linkInode = num
	}

	target, err := img.Inode(linkInode)
	if err != nil {
		return Dirent{}, err
	}
	target.SetLinksCount(target.LinksCount() + 1)

	entry.init(linkInode, recLen, name, ft)
	return entry, nil
}

// DeleteEntry removes the record named `name` from directory `dir` and
// unlinks its inode. Directories are refused. A record at the start of its
// block becomes a hole keeping its rec_len; any other record is absorbed
// into its predecessor.
func (img *Image) DeleteEntry(dir Inode, name string) error {
	if err := checkName(name); err != nil {
		return err
	}

	scanner := newDirentScanner(img, dir)
	for scanner.Scan() {
		entry := scanner.Entry()
		if entry.Inode() == 0 || entry.Name() != name {
			continue
		}

		if entry.FileType() == FileTypeDirectory {
			return ext2img.ErrIsADirectory.WithMessage(name)
		}

		if err := img.UnlinkInode(entry.Inode()); err != nil {
			return err
		}

		if prev := scanner.Prev(); prev != nil {
			prev.SetRecLen(prev.RecLen() + entry.RecLen())
		} else {
			entry.SetInode(0)
		}
		return nil
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return ext2img.ErrNotFound.WithMessage(name)
}
