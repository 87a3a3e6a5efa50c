package tcf

import (
	"encoding/binary"
	"errors"
	"math"
)

// QuantInfoVersion is the on-disk version of the quantisation info section.
const QuantInfoVersion uint32 = 1

const (
	quantInfoHeaderSize = 8
	quantRecordSize     = 16
)

// QuantMethod identifies how a tensor was quantised.
type QuantMethod uint8

const (
	QuantMethodNone QuantMethod = iota
	QuantMethodAffine
	QuantMethodSymmetric
)

func (m QuantMethod) String() string {
	switch m {
	case QuantMethodNone:
		return "none"
	case QuantMethodAffine:
		return "affine"
	case QuantMethodSymmetric:
		return "symmetric"
	default:
		return "unknown"
	}
}

// QuantRecord holds per-tensor quantisation parameters. TensorIndex refers
// to the entry's position in the (name-sorted) tensor index, which stays
// stable across rewrites because the index is always re-encoded in the same
// name order.
type QuantRecord struct {
	TensorIndex uint32
	Method      QuantMethod
	Scale       float32
	ZeroPoint   int32
}

// Dequantise maps a quantised integer value back to its real value.
func (r QuantRecord) Dequantise(v int32) float32 {
	return r.Scale * float32(v-r.ZeroPoint)
}

// EncodeQuantInfoSection builds a quant info section payload (v1).
//
// Layout: u32 version, u32 record count, then per record
// {u32 tensor index, u8 method, 3 reserved zero bytes, f32 scale, i32 zero point}.
func EncodeQuantInfoSection(records []QuantRecord) ([]byte, error) {
	out := make([]byte, quantInfoHeaderSize+quantRecordSize*len(records))
	binary.LittleEndian.PutUint32(out[0:4], QuantInfoVersion)
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(records)))

	off := quantInfoHeaderSize
	for _, r := range records {
		if r.Method > QuantMethodSymmetric {
			return nil, errors.New("tcf: unknown quant method")
		}
		binary.LittleEndian.PutUint32(out[off:off+4], r.TensorIndex)
		out[off+4] = byte(r.Method)
		// off+5..off+8 stay zero (reserved)
		binary.LittleEndian.PutUint32(out[off+8:off+12], math.Float32bits(r.Scale))
		binary.LittleEndian.PutUint32(out[off+12:off+16], uint32(r.ZeroPoint))
		off += quantRecordSize
	}
	return out, nil
}

// ParseQuantInfoSection decodes a quant info section payload.
func ParseQuantInfoSection(sec []byte) ([]QuantRecord, error) {
	if len(sec) < quantInfoHeaderSize {
		return nil, ErrCorruptFile
	}
	version := binary.LittleEndian.Uint32(sec[0:4])
	if version != QuantInfoVersion {
		return nil, ErrUnsupportedMinor
	}
	count := binary.LittleEndian.Uint32(sec[4:8])

	need, ok := mulUint64(uint64(count), quantRecordSize)
	if !ok || uint64(len(sec)-quantInfoHeaderSize) < need {
		return nil, ErrCorruptFile
	}

	records := make([]QuantRecord, 0, count)
	off := quantInfoHeaderSize
	for i := uint32(0); i < count; i++ {
		method := QuantMethod(sec[off+4])
		if method > QuantMethodSymmetric {
			return nil, ErrCorruptFile
		}
		if sec[off+5] != 0 || sec[off+6] != 0 || sec[off+7] != 0 {
			return nil, ErrCorruptFile
		}
		records = append(records, QuantRecord{
			TensorIndex: binary.LittleEndian.Uint32(sec[off : off+4]),
			Method:      method,
			Scale:       math.Float32frombits(binary.LittleEndian.Uint32(sec[off+8 : off+12])),
			ZeroPoint:   int32(binary.LittleEndian.Uint32(sec[off+12 : off+16])),
		})
		off += quantRecordSize
	}
	return records, nil
}

// QuantRecordByTensor returns the first record for the given tensor index
// entry, or false if the tensor carries no quantisation parameters.
func QuantRecordByTensor(records []QuantRecord, tensorIndex int) (QuantRecord, bool) {
	for _, r := range records {
		if int(r.TensorIndex) == tensorIndex {
			return r, true
		}
	}
	return QuantRecord{}, false
}
