package persistence

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Table file layout (little-endian):
//
//	Header:
//	  Magic (4 bytes) "HHTB"
//	  Version (4 bytes)
//	  Compression (4 bytes)
//	  PageRows (4 bytes)
//	  Codec (u16 length + bytes)
//	  Meta (u32 length + bytes, codec-encoded)
//	  HeaderCRC (4 bytes) - CRC32 of the preceding header bytes
//	Pages: one compressed block per page; decompressed:
//	  RowCount (4 bytes)
//	  Offsets ((RowCount+1) x 4 bytes) - row i spans [Offsets[i], Offsets[i+1])
//	  Row data
//	Index: one entry per page
//	  Offset (8 bytes), Length (4 bytes), CRC32 (4 bytes)
//	Footer (40 bytes):
//	  Rows (8), Pages (4), HeaderLen (4), IndexOffset (8),
//	  IndexCRC (4), FileCRC (4) - CRC32 of header, pages and index,
//	  Magic (4) "HHFT", Version (4)
const (
	tableMagic    = 0x48485442 // "HHTB"
	footerMagic   = 0x48484654 // "HHFT"
	formatVersion = 1

	footerSize     = 40
	indexEntrySize = 16
)

type tableHeader struct {
	compression CompressionType
	pageRows    int
	codec       string
	meta        []byte
}

type pageRef struct {
	offset int64
	length int
	crc    uint32
}

type tableFooter struct {
	rows        int
	pages       int
	headerLen   int
	indexOffset int64
	indexCRC    uint32
	fileCRC     uint32
}

func encodeHeader(h tableHeader) ([]byte, error) {
	p := newPayloadBuffer(nil)
	p.writeUint32(tableMagic)
	p.writeUint32(formatVersion)
	p.writeUint32(uint32(h.compression))
	p.writeUint32(uint32(h.pageRows))
	p.writeString(h.codec)
	p.writeBytes(h.meta)
	if p.err != nil {
		return nil, p.err
	}
	p.writeUint32(CalculateChecksum(p.buf))
	return p.buf, nil
}

func decodeHeader(b []byte) (tableHeader, error) {
	if len(b) < 4 {
		return tableHeader{}, fmt.Errorf("%w: header too short", ErrCorrupt)
	}
	body := b[:len(b)-4]
	if want, got := binary.LittleEndian.Uint32(b[len(b)-4:]), CalculateChecksum(body); want != got {
		return tableHeader{}, fmt.Errorf("header: %w", &ChecksumMismatchError{Expected: want, Actual: got})
	}

	p := newPayloadBuffer(body)
	if p.readUint32() != tableMagic {
		return tableHeader{}, ErrInvalidMagic
	}
	if v := p.readUint32(); v != formatVersion {
		return tableHeader{}, fmt.Errorf("%w: %d", ErrInvalidVersion, v)
	}
	h := tableHeader{
		compression: CompressionType(p.readUint32()),
		pageRows:    int(p.readUint32()),
		codec:       p.readString(),
		meta:        p.readBytes(),
	}
	if p.err != nil {
		return tableHeader{}, fmt.Errorf("%w: header: %v", ErrCorrupt, p.err)
	}
	if h.pageRows <= 0 {
		return tableHeader{}, fmt.Errorf("%w: page rows %d", ErrCorrupt, h.pageRows)
	}
	return h, nil
}

func encodeIndex(pages []pageRef) []byte {
	p := newPayloadBuffer(make([]byte, 0, len(pages)*indexEntrySize))
	for _, ref := range pages {
		p.writeUint64(uint64(ref.offset))
		p.writeUint32(uint32(ref.length))
		p.writeUint32(ref.crc)
	}
	return p.buf
}

func decodeIndex(b []byte, n int) ([]pageRef, error) {
	if len(b) != n*indexEntrySize {
		return nil, fmt.Errorf("%w: index has %d bytes for %d pages", ErrCorrupt, len(b), n)
	}
	p := newPayloadBuffer(b)
	pages := make([]pageRef, n)
	for i := range pages {
		pages[i] = pageRef{
			offset: int64(p.readUint64()),
			length: int(p.readUint32()),
			crc:    p.readUint32(),
		}
	}
	return pages, p.err
}

func encodeFooter(f tableFooter) []byte {
	p := newPayloadBuffer(make([]byte, 0, footerSize))
	p.writeUint64(uint64(f.rows))
	p.writeUint32(uint32(f.pages))
	p.writeUint32(uint32(f.headerLen))
	p.writeUint64(uint64(f.indexOffset))
	p.writeUint32(f.indexCRC)
	p.writeUint32(f.fileCRC)
	p.writeUint32(footerMagic)
	p.writeUint32(formatVersion)
	return p.buf
}

func decodeFooter(b []byte) (tableFooter, error) {
	if len(b) != footerSize {
		return tableFooter{}, fmt.Errorf("%w: footer has %d bytes", ErrCorrupt, len(b))
	}
	p := newPayloadBuffer(b)
	f := tableFooter{
		rows:        int(p.readUint64()),
		pages:       int(p.readUint32()),
		headerLen:   int(p.readUint32()),
		indexOffset: int64(p.readUint64()),
		indexCRC:    p.readUint32(),
		fileCRC:     p.readUint32(),
	}
	if p.readUint32() != footerMagic {
		return tableFooter{}, ErrInvalidMagic
	}
	if v := p.readUint32(); v != formatVersion {
		return tableFooter{}, fmt.Errorf("%w: %d", ErrInvalidVersion, v)
	}
	return f, p.err
}

// encodePage lays out a page payload. ends[i] is the end offset of row i
// within data.
func encodePage(ends []uint32, data []byte) []byte {
	p := newPayloadBuffer(make([]byte, 0, 8+4*len(ends)+len(data)))
	p.writeUint32(uint32(len(ends)))
	p.writeUint32(0)
	for _, e := range ends {
		p.writeUint32(e)
	}
	p.buf = append(p.buf, data...)
	return p.buf
}

// pageRow returns row i of a decoded page payload without copying.
func pageRow(page []byte, i int) ([]byte, error) {
	if len(page) < 4 {
		return nil, fmt.Errorf("%w: page too short", ErrCorrupt)
	}
	n := int(binary.LittleEndian.Uint32(page))
	dataStart := 4 + 4*(n+1)
	if i < 0 || i >= n || dataStart > len(page) {
		return nil, fmt.Errorf("%w: row %d of %d", ErrCorrupt, i, n)
	}
	start := int(binary.LittleEndian.Uint32(page[4+4*i:]))
	end := int(binary.LittleEndian.Uint32(page[8+4*i:]))
	if start > end || dataStart+end > len(page) {
		return nil, fmt.Errorf("%w: row %d spans [%d, %d)", ErrCorrupt, i, start, end)
	}
	return page[dataStart+start : dataStart+end : dataStart+end], nil
}

func pageRowCount(page []byte) int {
	if len(page) < 4 {
		return 0
	}
	return int(binary.LittleEndian.Uint32(page))
}

type payloadBuffer struct {
	buf []byte
	pos int
	err error
}

func newPayloadBuffer(b []byte) *payloadBuffer {
	return &payloadBuffer{buf: b}
}

func (p *payloadBuffer) writeUint64(v uint64) {
	if p.err != nil {
		return
	}
	p.buf = binary.LittleEndian.AppendUint64(p.buf, v)
}

func (p *payloadBuffer) writeUint32(v uint32) {
	if p.err != nil {
		return
	}
	p.buf = binary.LittleEndian.AppendUint32(p.buf, v)
}

func (p *payloadBuffer) writeString(s string) {
	if p.err != nil {
		return
	}
	if len(s) > 65535 {
		p.err = fmt.Errorf("string too long: %d", len(s))
		return
	}
	p.buf = binary.LittleEndian.AppendUint16(p.buf, uint16(len(s)))
	p.buf = append(p.buf, s...)
}

func (p *payloadBuffer) writeBytes(b []byte) {
	if p.err != nil {
		return
	}
	p.buf = binary.LittleEndian.AppendUint32(p.buf, uint32(len(b)))
	p.buf = append(p.buf, b...)
}

func (p *payloadBuffer) readUint64() uint64 {
	if p.err != nil {
		return 0
	}
	if p.pos+8 > len(p.buf) {
		p.err = io.ErrUnexpectedEOF
		return 0
	}
	v := binary.LittleEndian.Uint64(p.buf[p.pos:])
	p.pos += 8
	return v
}

func (p *payloadBuffer) readUint32() uint32 {
	if p.err != nil {
		return 0
	}
	if p.pos+4 > len(p.buf) {
		p.err = io.ErrUnexpectedEOF
		return 0
	}
	v := binary.LittleEndian.Uint32(p.buf[p.pos:])
	p.pos += 4
	return v
}

func (p *payloadBuffer) readString() string {
	if p.err != nil {
		return ""
	}
	if p.pos+2 > len(p.buf) {
		p.err = io.ErrUnexpectedEOF
		return ""
	}
	l := int(binary.LittleEndian.Uint16(p.buf[p.pos:]))
	p.pos += 2
	if p.pos+l > len(p.buf) {
		p.err = io.ErrUnexpectedEOF
		return ""
	}
	s := string(p.buf[p.pos : p.pos+l])
	p.pos += l
	return s
}

func (p *payloadBuffer) readBytes() []byte {
	l := int(p.readUint32())
	if p.err != nil {
		return nil
	}
	if p.pos+l > len(p.buf) {
		p.err = io.ErrUnexpectedEOF
		return nil
	}
	b := make([]byte, l)
	copy(b, p.buf[p.pos:p.pos+l])
	p.pos += l
	return b
}
