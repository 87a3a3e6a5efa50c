package fse

import (
	"math"
	"math/bits"
)

const upRoundOffset = 0.5

// countBits returns the position of the highest set bit of x, i.e.
// floor(log2(x)). x must be non-zero.
func countBits(x uint32) int { return bits.Len32(x) - 1 }

// Normalize rewrites freq in place so that its entries sum to exactly
// 1<<tableLog with every entry at least 1, and returns the chosen tableLog.
//
// Scaling rounds half-up in float32 and clamps to a minimum of 1 so every
// observed symbol stays encodable. Because independent rounding rarely lands
// on the power of two, the sum is corrected afterwards against the symbol
// holding the largest frequency.
func Normalize(freq []uint32) (int, error) {
	tableLog := countBits(uint32(len(freq))) + tableExtend
	if tableLog > MaxTableLog {
		tableLog = MaxTableLog
	}
	newTableSize := 1 << uint(tableLog)

	currTableSize := 0
	for _, f := range freq {
		currTableSize += int(f)
	}
	if currTableSize == 0 {
		return 0, ErrZeroTotal
	}

	updated := 0
	ratio := float32(newTableSize) / float32(currTableSize)
	for i, f := range freq {
		scaled := int(math.Floor(float64(upRoundOffset + ratio*float32(f))))
		if scaled < 1 {
			scaled = 1
		}
		freq[i] = uint32(scaled)
		updated += scaled
	}

	// shrink
	for updated > newTableSize {
		maxIx := maxIndex(freq)
		if maxIx < 0 || maxIx > MaxSymbols {
			return 0, ErrTableCorrupt
		}
		freq[maxIx]--
		updated--
	}

	// grow
	if updated < newTableSize {
		maxIx := maxIndex(freq)
		if maxIx < 0 || maxIx >= MaxSymbols {
			return 0, ErrTableCorrupt
		}
		freq[maxIx] += uint32(newTableSize - updated)
	}
	return tableLog, nil
}

// maxIndex returns the first index holding the largest value, or -1 for an
// empty slice.
func maxIndex(arr []uint32) int {
	index := -1
	var max uint32
	for i, v := range arr {
		if index < 0 || v > max {
			max = v
			index = i
		}
	}
	return index
}
