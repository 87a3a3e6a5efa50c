package fse

const chunkBits = 64

// BitStream packs variable-width values into 64-bit chunks.
//
// Bits only append; the sole rewind is Empty, which discards everything.
// The zero value is ready to use.
type BitStream struct {
	chunks   []uint64
	curr     uint64
	bitCount int
}

// Push appends the low nbits bits of v to the stream. nbits must be at most
// the chunk width; callers splitting wider values do so themselves.
func (b *BitStream) Push(v uint64, nbits int) {
	if nbits <= 0 {
		return
	}
	v &= 1<<uint(nbits) - 1
	if b.bitCount+nbits <= chunkBits {
		b.curr = b.curr<<uint(nbits) | v
		b.bitCount += nbits
		return
	}
	// Split: the high part completes the current chunk, the remainder
	// starts the next one.
	spill := b.bitCount + nbits - chunkBits
	b.curr = b.curr<<uint(nbits-spill) | v>>uint(spill)
	b.chunks = append(b.chunks, b.curr)
	b.curr = v & (1<<uint(spill) - 1)
	b.bitCount = spill
}

// Flush retires the current chunk if it filled exactly. A partially filled
// chunk stays in place; the serializer captures it as the trailer together
// with its valid-bit count.
func (b *BitStream) Flush() {
	if b.bitCount == chunkBits {
		b.chunks = append(b.chunks, b.curr)
		b.curr = 0
		b.bitCount = 0
	}
}

// Empty discards everything accumulated so far.
func (b *BitStream) Empty() {
	b.chunks = b.chunks[:0]
	b.curr = 0
	b.bitCount = 0
}

// Chunks returns the completed chunks in completion order.
func (b *BitStream) Chunks() []uint64 { return b.chunks }

// CurrChunk returns the in-progress chunk.
func (b *BitStream) CurrChunk() uint64 { return b.curr }

// BitCount returns the number of valid bits in the in-progress chunk.
func (b *BitStream) BitCount() int { return b.bitCount }
