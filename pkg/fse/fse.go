// Package fse implements Finite State Entropy compression for quantized
// tensor payloads.
//
// The encoder consumes an already-quantized symbol stream together with its
// occurrence histogram and per-symbol centroid values, and produces a single
// self-describing byte buffer: header, normalized frequency table, centroid
// table and packed bitstream. The binary layout is a contract with the
// paired decoder and must never change.
package fse

const (
	// MaxSymbols bounds the alphabet size. The serialized header stores the
	// alphabet size as a uint16 and reserves the top two values.
	MaxSymbols = 65534

	// MaxTableLog bounds the coding table at 1<<MaxTableLog slots, matching
	// the 16-bit encoder state.
	MaxTableLog = 16

	// tableExtend widens the table beyond the alphabet's bit length. Higher
	// values track the Shannon entropy more closely but grow the table
	// linearly, so +3 is a good compromise.
	tableExtend = 3

	alignSize = 8
)

// Quant is the transient descriptor for one tensor compression.
//
// Frequency holds raw occurrence counts on input and is overwritten in place
// by normalization. Centroids are the quantizer's reconstruction values and
// pass through to the serialized buffer untouched by the coding algorithm.
// Symbols is the quantized symbol stream, each value in [0, len(Frequency)).
type Quant struct {
	Frequency []uint32
	Centroids []float32
	Symbols   []uint16
}

// AlphabetSize returns the number of distinct symbols.
func (q *Quant) AlphabetSize() int { return len(q.Frequency) }

// Compress encodes q and returns the serialized buffer.
//
// maxSize is the byte size of the tensor's original storage; the result is
// guaranteed to fit within it, and ErrCapacity is returned when it cannot.
// Compression is deterministic: identical input yields identical bytes.
func Compress(q *Quant, maxSize int) ([]byte, error) {
	if q == nil || len(q.Symbols) == 0 {
		return nil, ErrEmptyInput
	}
	size := len(q.Frequency)
	if size == 0 {
		return nil, ErrEmptyInput
	}
	if size > MaxSymbols {
		return nil, ErrTooManySymbols
	}
	if len(q.Centroids) != size {
		return nil, ErrCentroidMismatch
	}
	for _, s := range q.Symbols {
		if int(s) >= size {
			return nil, ErrSymbolRange
		}
	}
	if maxSize <= 0 {
		return nil, ErrCapacity
	}

	tableLog, err := Normalize(q.Frequency)
	if err != nil {
		return nil, err
	}

	var bs BitStream
	if err := Encode(&bs, q.Symbols, q.Frequency, tableLog); err != nil {
		return nil, err
	}
	bs.Flush()

	return serialize(&bs, q, tableLog, maxSize)
}
