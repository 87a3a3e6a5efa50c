// Package squeeze turns quantised tensor payloads into entropy-coded ones.
//
// It builds the per-tensor symbol model (frequencies, centroids, symbol
// stream) from raw int8/int16 payloads and drives the container rewrite that
// swaps raw storage for compressed storage where it pays off.
package squeeze

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/samcharles93/fsepack/pkg/fse"
	"github.com/samcharles93/fsepack/pkg/tcf"
)

var (
	ErrEmptyTensor     = errors.New("squeeze: empty tensor payload")
	ErrOddPayload      = errors.New("squeeze: int16 payload length not a multiple of 2")
	ErrUnsupportedType = errors.New("squeeze: dtype not quantised integer")
)

// BuildQuant derives the symbol model for one tensor payload. Buckets are
// assigned in ascending quantised-value order, so equal payloads always
// produce identical models. Centroids are the dequantised real values of the
// occupied buckets.
func BuildQuant(data []byte, dt tcf.TensorDType, rec tcf.QuantRecord) (*fse.Quant, error) {
	if len(data) == 0 {
		return nil, ErrEmptyTensor
	}

	switch dt {
	case tcf.DTypeI8:
		return buildI8(data, rec)
	case tcf.DTypeI16:
		return buildI16(data, rec)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, dt)
	}
}

func buildI8(data []byte, rec tcf.QuantRecord) (*fse.Quant, error) {
	var counts [256]uint32
	for _, b := range data {
		counts[int(int8(b))+128]++
	}

	symbolOf := make([]uint16, 256)
	q := &fse.Quant{Symbols: make([]uint16, 0, len(data))}
	for v := 0; v < 256; v++ {
		if counts[v] == 0 {
			continue
		}
		symbolOf[v] = uint16(q.AlphabetSize())
		q.Frequency = append(q.Frequency, counts[v])
		q.Centroids = append(q.Centroids, rec.Dequantise(int32(v)-128))
	}

	for _, b := range data {
		q.Symbols = append(q.Symbols, symbolOf[int(int8(b))+128])
	}
	return q, nil
}

func buildI16(data []byte, rec tcf.QuantRecord) (*fse.Quant, error) {
	if len(data)%2 != 0 {
		return nil, ErrOddPayload
	}
	n := len(data) / 2

	counts := make([]uint32, 1<<16)
	for i := 0; i < n; i++ {
		v := int(int16(binary.LittleEndian.Uint16(data[2*i:]))) + 32768
		counts[v]++
	}

	symbolOf := make([]uint16, 1<<16)
	q := &fse.Quant{Symbols: make([]uint16, 0, n)}
	for v := range counts {
		if counts[v] == 0 {
			continue
		}
		if q.AlphabetSize() >= fse.MaxSymbols {
			return nil, fse.ErrTooManySymbols
		}
		symbolOf[v] = uint16(q.AlphabetSize())
		q.Frequency = append(q.Frequency, counts[v])
		q.Centroids = append(q.Centroids, rec.Dequantise(int32(v)-32768))
	}

	for i := 0; i < n; i++ {
		v := int(int16(binary.LittleEndian.Uint16(data[2*i:]))) + 32768
		q.Symbols = append(q.Symbols, symbolOf[v])
	}
	return q, nil
}
