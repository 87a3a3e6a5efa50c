package fse

// encodeSymbol emits the bit budget for sym at the current state and returns
// the next state. The added deltaBitCount makes the >>16 produce either n or
// n+1 bits as required; state>>bitsOut is the subrange id.
func encodeSymbol(bs *BitStream, sym uint16, state uint16, ct *codingTables) uint16 {
	bitsOut := (uint32(state) + ct.deltaBitCount[sym]) >> 16
	bs.Push(uint64(state), int(bitsOut))
	return ct.coding[int(state>>uint(bitsOut))+int(ct.deltaState[sym])]
}

// Encode runs the state machine over symbols and leaves the packed bitstream
// in bs, finishing with a flush of the final state in exactly tableLog bits.
//
// The first symbol is encoded once with the output discarded, purely to move
// the state off its initial value, and then again as part of the real pass.
// The decoder's bit layout depends on this exact shape; do not fold the two
// passes together.
func Encode(bs *BitStream, symbols []uint16, freq []uint32, tableLog int) error {
	if len(symbols) == 0 {
		return ErrEmptyInput
	}
	ct, err := buildStatesForEncoding(freq, tableLog)
	if err != nil {
		return err
	}

	tableSize := 1 << uint(tableLog)
	state := uint16(tableSize)
	state = encodeSymbol(bs, symbols[0], state, ct)
	bs.Empty()

	for _, sym := range symbols {
		state = encodeSymbol(bs, sym, state, ct)
	}

	bs.Push(uint64(state-uint16(tableSize)), tableLog)
	return nil
}
