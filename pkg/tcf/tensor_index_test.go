package tcf

import (
	"testing"
)

func testRecords() []TensorRecord {
	return []TensorRecord{
		{
			Name:     "model.layers.0.weight",
			DType:    DTypeI8,
			Storage:  StorageRaw,
			Shape:    []uint64{128, 64},
			DataOff:  4096,
			DataSize: 8192,
			RawSize:  8192,
		},
		{
			Name:     "model.layers.0.bias",
			DType:    DTypeF32,
			Storage:  StorageRaw,
			Shape:    []uint64{128},
			DataOff:  12288,
			DataSize: 512,
			RawSize:  512,
		},
		{
			Name:     "model.layers.1.weight",
			DType:    DTypeI16,
			Storage:  StorageFSE,
			Shape:    []uint64{128, 64},
			DataOff:  12800,
			DataSize: 5000,
			RawSize:  16384,
		},
	}
}

func TestTensorIndexRoundTrip(t *testing.T) {
	t.Parallel()

	payload, err := EncodeTensorIndexSection(testRecords())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	ti, err := ParseTensorIndexSection(payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if ti.Count() != 3 {
		t.Fatalf("count: got %d want 3", ti.Count())
	}
	if ti.Flags()&TensorIndexFlagSortedByName == 0 {
		t.Fatalf("sorted flag not set")
	}

	// Entries come back in name order regardless of input order.
	wantNames := []string{
		"model.layers.0.bias",
		"model.layers.0.weight",
		"model.layers.1.weight",
	}
	for i, want := range wantNames {
		name, err := ti.Name(i)
		if err != nil {
			t.Fatalf("name %d: %v", i, err)
		}
		if name != want {
			t.Fatalf("name %d: got %q want %q", i, name, want)
		}
	}

	i, ok := ti.Find("model.layers.1.weight")
	if !ok || i != 2 {
		t.Fatalf("find: got %d, %v", i, ok)
	}
	e, err := ti.Entry(i)
	if err != nil {
		t.Fatalf("entry: %v", err)
	}
	if e.DType != DTypeI16 || e.Storage != StorageFSE {
		t.Fatalf("entry fields: %+v", e)
	}
	if e.DataOff != 12800 || e.DataSize != 5000 || e.RawSize != 16384 {
		t.Fatalf("entry sizes: %+v", e)
	}

	shape, err := ti.Shape(i)
	if err != nil {
		t.Fatalf("shape: %v", err)
	}
	if len(shape) != 2 || shape[0] != 128 || shape[1] != 64 {
		t.Fatalf("shape: got %v", shape)
	}

	if _, ok := ti.Find("missing"); ok {
		t.Fatalf("found nonexistent tensor")
	}
}

func TestTensorIndexEncodeValidation(t *testing.T) {
	t.Parallel()

	if _, err := EncodeTensorIndexSection(nil); err == nil {
		t.Fatalf("empty record list accepted")
	}

	bad := testRecords()
	bad[0].Name = ""
	if _, err := EncodeTensorIndexSection(bad); err == nil {
		t.Fatalf("empty name accepted")
	}

	bad = testRecords()
	bad[0].RawSize = bad[0].DataSize + 1
	if _, err := EncodeTensorIndexSection(bad); err == nil {
		t.Fatalf("raw storage size mismatch accepted")
	}
}

func TestTensorIndexParseRejectsCorrupt(t *testing.T) {
	t.Parallel()

	payload, err := EncodeTensorIndexSection(testRecords())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if _, err := ParseTensorIndexSection(payload[:16]); err != ErrCorruptFile {
		t.Fatalf("short payload: got %v", err)
	}

	// Strings table pushed past the end of the section.
	clipped := make([]byte, len(payload)-4)
	copy(clipped, payload)
	if _, err := ParseTensorIndexSection(clipped); err != ErrCorruptFile {
		t.Fatalf("clipped strings: got %v", err)
	}
}

func TestStorageKindString(t *testing.T) {
	t.Parallel()

	if StorageRaw.String() != "raw" || StorageFSE.String() != "fse" {
		t.Fatalf("storage names: %s %s", StorageRaw, StorageFSE)
	}
	if DTypeI8.String() != "i8" || DTypeUnknown.String() != "unknown" {
		t.Fatalf("dtype names: %s %s", DTypeI8, DTypeUnknown)
	}
}
