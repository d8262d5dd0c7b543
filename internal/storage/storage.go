// Package storage owns the page file: fixed-size page I/O, the meta page,
// and the on-disk free list. Everything above it goes through the buffer
// pool; nothing here knows what a B+Tree is.
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"github.com/cespare/xxhash/v2"

	"ridx/internal/base"
)

const (
	// MagicNumber identifies a ridx page file ("ridx" in hex).
	MagicNumber uint32 = 0x72696478

	FormatVersion uint16 = 1

	metaChecksumOffset = 16 // bytes of MetaPage covered by the checksum
)

var (
	ErrInvalidMagicNumber = errors.New("invalid magic number")
	ErrInvalidVersion     = errors.New("unsupported format version")
	ErrInvalidPageSize    = errors.New("page size mismatch")
	ErrInvalidChecksum    = errors.New("meta page checksum mismatch")
	ErrPageOutOfRange     = errors.New("page id out of range")
)

// MetaPage lives in page 0 and records file identity plus allocator state.
// Layout: [Magic:4][Version:2][PageSize:2][NumPages:4][FreeListHead:4][Checksum:8]
type MetaPage struct {
	Magic        uint32
	Version      uint16
	PageSize     uint16
	NumPages     uint32
	FreeListHead base.PageID
	Checksum     uint64
}

// CalculateChecksum hashes every field before Checksum itself.
func (m *MetaPage) CalculateChecksum() uint64 {
	data := unsafe.Slice((*byte)(unsafe.Pointer(m)), metaChecksumOffset)
	return xxhash.Sum64(data)
}

// Validate checks file identity and meta integrity on open.
func (m *MetaPage) Validate() error {
	if m.Magic != MagicNumber {
		return ErrInvalidMagicNumber
	}
	if m.Version != FormatVersion {
		return ErrInvalidVersion
	}
	if m.PageSize != base.PageSize {
		return ErrInvalidPageSize
	}
	if m.Checksum != m.CalculateChecksum() {
		return ErrInvalidChecksum
	}
	return nil
}

// DiskManager reads and writes pages of a single index file. Page N lives
// at byte offset N*PageSize; page 0 is the meta page, so allocation starts
// at 1. Freed pages chain through their first 4 bytes, head in the meta.
type DiskManager struct {
	mu   sync.Mutex // protects meta and the free list
	file *os.File
	path string
	meta MetaPage
}

// NewDiskManager opens or creates the page file at path.
func NewDiskManager(path string) (*DiskManager, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open page file: %w", err)
	}

	dm := &DiskManager{file: file, path: path}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	if info.Size() == 0 {
		if err := dm.initNewFile(); err != nil {
			file.Close()
			return nil, err
		}
	} else {
		if err := dm.loadMeta(); err != nil {
			file.Close()
			return nil, err
		}
	}

	return dm, nil
}

func (dm *DiskManager) initNewFile() error {
	dm.meta = MetaPage{
		Magic:        MagicNumber,
		Version:      FormatVersion,
		PageSize:     base.PageSize,
		NumPages:     1, // meta page itself
		FreeListHead: base.InvalidPageID,
	}
	return dm.writeMeta()
}

func (dm *DiskManager) loadMeta() error {
	var page base.Page
	if err := dm.readAt(0, &page); err != nil {
		return err
	}
	dm.meta = *(*MetaPage)(unsafe.Pointer(&page.Data[0]))
	if err := dm.meta.Validate(); err != nil {
		return err
	}
	return nil
}

// writeMeta stamps the checksum and persists page 0. Caller holds mu (or
// is the constructor).
func (dm *DiskManager) writeMeta() error {
	dm.meta.Checksum = dm.meta.CalculateChecksum()
	var page base.Page
	*(*MetaPage)(unsafe.Pointer(&page.Data[0])) = dm.meta
	return dm.writeAt(0, &page)
}

func (dm *DiskManager) readAt(id base.PageID, p *base.Page) error {
	_, err := dm.file.ReadAt(p.Data[:], int64(id)*base.PageSize)
	if err != nil {
		return fmt.Errorf("read page %d: %w", id, err)
	}
	return nil
}

func (dm *DiskManager) writeAt(id base.PageID, p *base.Page) error {
	_, err := dm.file.WriteAt(p.Data[:], int64(id)*base.PageSize)
	if err != nil {
		return fmt.Errorf("write page %d: %w", id, err)
	}
	return nil
}

// ReadPage fills p with page id's on-disk contents.
func (dm *DiskManager) ReadPage(id base.PageID, p *base.Page) error {
	if id <= 0 || uint32(id) >= dm.numPages() {
		return fmt.Errorf("%w: %d", ErrPageOutOfRange, id)
	}
	return dm.readAt(id, p)
}

// WritePage persists p as page id.
func (dm *DiskManager) WritePage(id base.PageID, p *base.Page) error {
	if id <= 0 || uint32(id) >= dm.numPages() {
		return fmt.Errorf("%w: %d", ErrPageOutOfRange, id)
	}
	return dm.writeAt(id, p)
}

// AllocatePage pops the free list or grows the file by one page.
func (dm *DiskManager) AllocatePage() (base.PageID, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.meta.FreeListHead != base.InvalidPageID {
		id := dm.meta.FreeListHead
		var page base.Page
		if err := dm.readAt(id, &page); err != nil {
			return base.InvalidPageID, err
		}
		dm.meta.FreeListHead = base.PageID(int32(binary.LittleEndian.Uint32(page.Data[:4])))
		// hand out a clean frame
		page.Zero()
		if err := dm.writeAt(id, &page); err != nil {
			return base.InvalidPageID, err
		}
		return id, nil
	}

	id := base.PageID(dm.meta.NumPages)
	dm.meta.NumPages++
	var empty base.Page
	if err := dm.writeAt(id, &empty); err != nil {
		return base.InvalidPageID, err
	}
	return id, nil
}

// FreePage pushes id onto the on-disk free list.
func (dm *DiskManager) FreePage(id base.PageID) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if id <= 0 || uint32(id) >= dm.meta.NumPages {
		return fmt.Errorf("%w: %d", ErrPageOutOfRange, id)
	}

	var page base.Page
	binary.LittleEndian.PutUint32(page.Data[:4], uint32(dm.meta.FreeListHead))
	if err := dm.writeAt(id, &page); err != nil {
		return err
	}
	dm.meta.FreeListHead = id
	return nil
}

func (dm *DiskManager) numPages() uint32 {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.meta.NumPages
}

// NumPages reports the total pages allocated, meta page included.
func (dm *DiskManager) NumPages() uint32 {
	return dm.numPages()
}

// Sync flushes file contents to stable storage.
func (dm *DiskManager) Sync() error {
	return fdatasync(dm.file)
}

// Close persists the meta page and closes the file.
func (dm *DiskManager) Close() error {
	dm.mu.Lock()
	if err := dm.writeMeta(); err != nil {
		dm.mu.Unlock()
		dm.file.Close()
		return err
	}
	dm.mu.Unlock()

	if err := fdatasync(dm.file); err != nil {
		dm.file.Close()
		return err
	}
	return dm.file.Close()
}
