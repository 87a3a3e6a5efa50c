package fse

import (
	"encoding/binary"
	"math"
)

// writer lays out little-endian fields into a fixed-capacity buffer. Every
// write validates remaining capacity first, so an output that would exceed
// the original tensor's storage aborts cleanly instead of truncating.
type writer struct {
	buf []byte
	off int
	err error
}

func (w *writer) ensure(n int) bool {
	if w.err != nil {
		return false
	}
	if w.off+n > len(w.buf) {
		w.err = ErrCapacity
		return false
	}
	return true
}

func (w *writer) writeU8(v uint8) {
	if !w.ensure(1) {
		return
	}
	w.buf[w.off] = v
	w.off++
}

func (w *writer) writeU16(v uint16) {
	if !w.ensure(2) {
		return
	}
	binary.LittleEndian.PutUint16(w.buf[w.off:], v)
	w.off += 2
}

func (w *writer) writeU32(v uint32) {
	if !w.ensure(4) {
		return
	}
	binary.LittleEndian.PutUint32(w.buf[w.off:], v)
	w.off += 4
}

func (w *writer) writeU64(v uint64) {
	if !w.ensure(8) {
		return
	}
	binary.LittleEndian.PutUint64(w.buf[w.off:], v)
	w.off += 8
}

func (w *writer) writeF32(v float32) {
	w.writeU32(math.Float32bits(v))
}

// padTo writes zero uint16 words until the offset is n-byte aligned.
func (w *writer) padTo(n int) {
	for w.err == nil && w.off%n != 0 {
		w.writeU16(0)
	}
}

// serialize packs the compressed tensor payload:
//
//	u16        alphabet size
//	u16        table log
//	u32        completed chunk count + 1 (the +1 covers the trailer chunk)
//	u32[size]  normalized frequency table
//	pad to 8
//	f32[size]  centroid table
//	pad to 8
//	u64[...]   completed bitstream chunks, in completion order
//	u64        trailing partial chunk
//	u8         valid bits in the trailing chunk
//
// maxSize is the original tensor byte size; compression must never exceed it.
func serialize(bs *BitStream, q *Quant, tableLog, maxSize int) ([]byte, error) {
	w := &writer{buf: make([]byte, maxSize)}

	w.writeU16(uint16(len(q.Frequency)))
	w.writeU16(uint16(tableLog))
	w.writeU32(uint32(len(bs.Chunks()) + 1))
	for _, f := range q.Frequency {
		w.writeU32(f)
	}
	w.padTo(alignSize)
	for _, c := range q.Centroids {
		w.writeF32(c)
	}
	w.padTo(alignSize)
	for _, chunk := range bs.Chunks() {
		w.writeU64(chunk)
	}
	w.writeU64(bs.CurrChunk())
	w.writeU8(uint8(bs.BitCount()))

	if w.err != nil {
		return nil, w.err
	}
	out := make([]byte, w.off)
	copy(out, w.buf[:w.off])
	return out, nil
}

// Header is the fixed prefix of a serialized FSE payload, enough to describe
// a compressed tensor without decoding it.
type Header struct {
	AlphabetSize uint16
	TableLog     uint16
	ChunkCount   uint32
}

const headerSize = 8

// ParseHeader reads the fixed header from a serialized payload.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < headerSize {
		return Header{}, ErrCapacity
	}
	return Header{
		AlphabetSize: binary.LittleEndian.Uint16(buf[0:2]),
		TableLog:     binary.LittleEndian.Uint16(buf[2:4]),
		ChunkCount:   binary.LittleEndian.Uint32(buf[4:8]),
	}, nil
}
