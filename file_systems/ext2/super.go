package ext2

import "encoding/binary"

// Superblock is a view over the superblock bytes inside the image. All
// accessors read and write the backing region directly.
type Superblock struct {
	data []byte
}

func (sb Superblock) InodesCount() uint32 {
	return binary.LittleEndian.Uint32(sb.data[0:])
}

func (sb Superblock) BlocksCount() uint32 {
	return binary.LittleEndian.Uint32(sb.data[4:])
}

func (sb Superblock) FreeBlocksCount() uint32 {
	return binary.LittleEndian.Uint32(sb.data[12:])
}

func (sb Superblock) SetFreeBlocksCount(n uint32) {
	binary.LittleEndian.PutUint32(sb.data[12:], n)
}

func (sb Superblock) FreeInodesCount() uint32 {
	return binary.LittleEndian.Uint32(sb.data[16:])
}

func (sb Superblock) SetFreeInodesCount(n uint32) {
	binary.LittleEndian.PutUint32(sb.data[16:], n)
}

func (sb Superblock) FirstDataBlock() uint32 {
	return binary.LittleEndian.Uint32(sb.data[20:])
}

func (sb Superblock) LogBlockSize() uint32 {
	return binary.LittleEndian.Uint32(sb.data[24:])
}

func (sb Superblock) Magic() uint16 {
	return binary.LittleEndian.Uint16(sb.data[56:])
}

// GroupDescriptor is a view over the single block group's descriptor.
type GroupDescriptor struct {
	data []byte
}

func (gd GroupDescriptor) BlockBitmap() uint32 {
	return binary.LittleEndian.Uint32(gd.data[0:])
}

func (gd GroupDescriptor) InodeBitmap() uint32 {
	return binary.LittleEndian.Uint32(gd.data[4:])
}

func (gd GroupDescriptor) InodeTable() uint32 {
	return binary.LittleEndian.Uint32(gd.data[8:])
}

func (gd GroupDescriptor) FreeBlocksCount() uint16 {
	return binary.LittleEndian.Uint16(gd.data[12:])
}

func (gd GroupDescriptor) SetFreeBlocksCount(n uint16) {
	binary.LittleEndian.PutUint16(gd.data[12:], n)
}

func (gd GroupDescriptor) FreeInodesCount() uint16 {
	return binary.LittleEndian.Uint16(gd.data[14:])
}

func (gd GroupDescriptor) SetFreeInodesCount(n uint16) {
	binary.LittleEndian.PutUint16(gd.data[14:], n)
}

func (gd GroupDescriptor) UsedDirsCount() uint16 {
	return binary.LittleEndian.Uint16(gd.data[16:])
}

func (gd GroupDescriptor) SetUsedDirsCount(n uint16) {
	binary.LittleEndian.PutUint16(gd.data[16:], n)
}
