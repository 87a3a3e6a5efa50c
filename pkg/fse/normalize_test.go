package fse

import "testing"

func TestNormalizeExactScaling(t *testing.T) {
	t.Parallel()

	freq := []uint32{3, 1}
	tableLog, err := Normalize(freq)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if tableLog != 4 {
		t.Fatalf("table log: got %d want 4", tableLog)
	}
	if freq[0] != 12 || freq[1] != 4 {
		t.Fatalf("normalized frequencies: got %v want [12 4]", freq)
	}
}

func TestNormalizeGrowAddsDeficitToLargest(t *testing.T) {
	t.Parallel()

	// Each entry scales to 5 (sum 15), one short of 16; the deficit goes to
	// the first largest entry in one step.
	freq := []uint32{1, 1, 1}
	tableLog, err := Normalize(freq)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if tableLog != 4 {
		t.Fatalf("table log: got %d want 4", tableLog)
	}
	if freq[0] != 6 || freq[1] != 5 || freq[2] != 5 {
		t.Fatalf("normalized frequencies: got %v want [6 5 5]", freq)
	}
}

func TestNormalizeShrinkDecrementsLargest(t *testing.T) {
	t.Parallel()

	// Scales to [4 4 9] (sum 17); the shrink loop decrements the largest.
	freq := []uint32{2, 2, 5}
	tableLog, err := Normalize(freq)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if tableLog != 4 {
		t.Fatalf("table log: got %d want 4", tableLog)
	}
	if freq[0] != 4 || freq[1] != 4 || freq[2] != 8 {
		t.Fatalf("normalized frequencies: got %v want [4 4 8]", freq)
	}
}

func TestNormalizeClampsRareSymbolToOne(t *testing.T) {
	t.Parallel()

	freq := []uint32{1, 1000}
	if _, err := Normalize(freq); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if freq[0] != 1 {
		t.Fatalf("rare symbol must keep frequency 1, got %d", freq[0])
	}
	if freq[1] != 15 {
		t.Fatalf("dominant symbol: got %d want 15", freq[1])
	}
}

func TestNormalizeSingleSymbolAlphabet(t *testing.T) {
	t.Parallel()

	freq := []uint32{1}
	tableLog, err := Normalize(freq)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if tableLog != 3 {
		t.Fatalf("table log: got %d want 3", tableLog)
	}
	if freq[0] != 8 {
		t.Fatalf("frequency: got %d want 8", freq[0])
	}
}

func TestNormalizeZeroTotalFails(t *testing.T) {
	t.Parallel()

	if _, err := Normalize([]uint32{0, 0, 0}); err != ErrZeroTotal {
		t.Fatalf("error: got %v want %v", err, ErrZeroTotal)
	}
}

func TestNormalizeInvariants(t *testing.T) {
	t.Parallel()

	cases := [][]uint32{
		{1},
		{1, 1},
		{3, 1},
		{7, 13, 1, 1, 900},
		{100, 100, 100, 100, 100, 100, 100},
		{1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024},
	}
	for _, raw := range cases {
		freq := make([]uint32, len(raw))
		copy(freq, raw)

		wantLog := countBits(uint32(len(freq))) + tableExtend
		if wantLog > MaxTableLog {
			wantLog = MaxTableLog
		}

		tableLog, err := Normalize(freq)
		if err != nil {
			t.Fatalf("normalize %v: %v", raw, err)
		}
		if tableLog != wantLog {
			t.Fatalf("normalize %v: table log got %d want %d", raw, tableLog, wantLog)
		}
		sum := 0
		for i, f := range freq {
			if f < 1 {
				t.Fatalf("normalize %v: frequency[%d] = 0", raw, i)
			}
			sum += int(f)
		}
		if sum != 1<<uint(tableLog) {
			t.Fatalf("normalize %v: sum got %d want %d", raw, sum, 1<<uint(tableLog))
		}
	}
}
