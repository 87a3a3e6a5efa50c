package fse

// codingTables holds the per-compression encoding tables. They are built once
// from a normalized frequency table and consumed by every symbol transition.
type codingTables struct {
	// coding maps, per symbol, a contiguous run of transition targets in the
	// order the symbol's slots appear in the spread table.
	coding []uint16

	// deltaBitCount stores a value which, added to the state, leaves the bit
	// budget for the symbol in the top 16 bits: either n or n+1 depending on
	// which side of the symbol's threshold the state falls.
	deltaBitCount []uint32

	// deltaState is the offset locating the symbol's segment in coding.
	deltaState []int16
}

// spreadSymbols distributes each symbol across the table, frequency[sym]
// slots apiece. Separating identical symbols matters: coding is better when
// repeats land evenly across the table instead of clustering.
func spreadSymbols(freq []uint32, tableLog int) ([]uint16, error) {
	tableSize := 1 << uint(tableLog)
	tableMask := tableSize - 1
	step := (tableSize >> 1) + (tableSize >> tableExtend) + tableExtend

	symbolTable := make([]uint16, tableSize)
	pos := 0
	for sym, f := range freq {
		for i := uint32(0); i < f; i++ {
			symbolTable[pos] = uint16(sym)
			pos = (pos + step) & tableMask
			for pos > tableMask {
				pos = (pos + step) & tableMask
			}
		}
	}
	// The walk visits every slot exactly once; anything else means the
	// frequencies and the table size disagree.
	if pos != 0 {
		return nil, ErrTableCorrupt
	}
	return symbolTable, nil
}

// buildStatesForEncoding spreads the symbols across the table and derives the
// coding table plus the per-symbol transition parameters.
func buildStatesForEncoding(freq []uint32, tableLog int) (*codingTables, error) {
	tableSize := 1 << uint(tableLog)
	symbolTable, err := spreadSymbols(freq, tableLog)
	if err != nil {
		return nil, err
	}

	size := len(freq)
	cfreqs := make([]uint32, size+2)
	for i := 1; i <= size; i++ {
		cfreqs[i] = cfreqs[i-1] + freq[i-1]
	}
	cfreqs[size+1] = cfreqs[size] + 1

	ct := &codingTables{
		coding:        make([]uint16, tableSize),
		deltaBitCount: make([]uint32, size),
		deltaState:    make([]int16, size),
	}
	for i := 0; i < tableSize; i++ {
		sym := symbolTable[i]
		ct.coding[cfreqs[sym]] = uint16(tableSize + i)
		cfreqs[sym]++
	}

	total := 0
	for sym, f := range freq {
		if f >= 2 {
			maxBitsOut := tableLog - countBits(f-1)
			minStatePlus := int(f) << uint(maxBitsOut)
			ct.deltaBitCount[sym] = uint32(maxBitsOut<<16 - minStatePlus)
			ct.deltaState[sym] = int16(total - int(f))
			total += int(f)
		} else {
			// Minimum frequency after normalization is 1.
			ct.deltaBitCount[sym] = uint32(tableLog<<16 - 1<<uint(tableLog))
			ct.deltaState[sym] = int16(total - 1)
			total++
		}
	}
	return ct, nil
}
