package tcf

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func writeTestFile(t *testing.T, build func(w *Writer)) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.tcf")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer func() { _ = f.Close() }()

	w, err := NewWriter(f)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	build(w)
	if err := w.Finalise(); err != nil {
		t.Fatalf("finalise: %v", err)
	}
	return path
}

func TestWriterReaderRoundTrip(t *testing.T) {
	t.Parallel()

	meta := []byte(`{"name":"tiny"}`)
	payload := bytes.Repeat([]byte{0xAB}, 100)

	path := writeTestFile(t, func(w *Writer) {
		if err := w.WriteSection(SectionModelMeta, 1, meta); err != nil {
			t.Fatalf("write meta: %v", err)
		}
		if err := w.WriteSection(SectionTensorData, 1, payload); err != nil {
			t.Fatalf("write data: %v", err)
		}
	})

	f, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = f.Close() }()

	if f.Header.SectionCount != 2 {
		t.Fatalf("section count: got %d want 2", f.Header.SectionCount)
	}
	if !f.Header.Valid() || !f.Header.Compatible() {
		t.Fatalf("header invalid: %+v", f.Header)
	}

	metaSec := f.Section(SectionModelMeta)
	if metaSec == nil {
		t.Fatalf("meta section missing")
	}
	if !bytes.Equal(f.SectionData(metaSec), meta) {
		t.Fatalf("meta payload mismatch")
	}

	dataSec := f.Section(SectionTensorData)
	if dataSec == nil {
		t.Fatalf("data section missing")
	}
	if dataSec.Offset%tcfAlign != 0 {
		t.Fatalf("data section not aligned: %d", dataSec.Offset)
	}
	if !bytes.Equal(f.SectionData(dataSec), payload) {
		t.Fatalf("data payload mismatch")
	}

	if f.Section(SectionQuantInfo) != nil {
		t.Fatalf("unexpected quant info section")
	}
}

func TestWriterStreamingSection(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, func(w *Writer) {
		sw, err := w.BeginSection(SectionTensorData, 1)
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		if _, err := sw.Write([]byte{1, 2, 3}); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := sw.Align(8); err != nil {
			t.Fatalf("align: %v", err)
		}
		off, err := sw.CurrentAbsOffset()
		if err != nil {
			t.Fatalf("offset: %v", err)
		}
		if off%8 != 0 {
			t.Fatalf("offset after align: %d", off)
		}
		if _, err := sw.Write([]byte{4, 5, 6, 7}); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := sw.End(); err != nil {
			t.Fatalf("end: %v", err)
		}
	})

	f, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = f.Close() }()

	sec := f.Section(SectionTensorData)
	if sec == nil {
		t.Fatalf("section missing")
	}
	data := f.SectionData(sec)
	// 3 bytes + 5 padding + 4 bytes.
	if len(data) != 12 {
		t.Fatalf("section size: got %d want 12", len(data))
	}
	if !bytes.Equal(data[:3], []byte{1, 2, 3}) || !bytes.Equal(data[8:], []byte{4, 5, 6, 7}) {
		t.Fatalf("streamed payload mismatch: %x", data)
	}
}

func TestWriterRejectsDuplicateSection(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "dup.tcf")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer func() { _ = f.Close() }()

	w, err := NewWriter(f)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := w.WriteSection(SectionModelMeta, 1, []byte("a")); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := w.WriteSection(SectionModelMeta, 1, []byte("b")); err == nil {
		t.Fatalf("duplicate section accepted")
	}
}

func TestOpenRejectsCorruptMagic(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, func(w *Writer) {
		if err := w.WriteSection(SectionModelMeta, 1, []byte("x")); err != nil {
			t.Fatalf("write: %v", err)
		}
	})

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	raw[0] = 'X'
	bad := filepath.Join(t.TempDir(), "bad.tcf")
	if err := os.WriteFile(bad, raw, 0o644); err != nil {
		t.Fatalf("write bad: %v", err)
	}

	if _, err := Open(bad); err != ErrInvalidMagic {
		t.Fatalf("error: got %v want %v", err, ErrInvalidMagic)
	}
}

func TestOpenRejectsTruncatedFile(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, func(w *Writer) {
		if err := w.WriteSection(SectionModelMeta, 1, []byte("x")); err != nil {
			t.Fatalf("write: %v", err)
		}
	})

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	short := filepath.Join(t.TempDir(), "short.tcf")
	if err := os.WriteFile(short, raw[:len(raw)-8], 0o644); err != nil {
		t.Fatalf("write short: %v", err)
	}

	if _, err := Open(short); err == nil {
		t.Fatalf("truncated file accepted")
	}
}

func TestOpenReaderAt(t *testing.T) {
	t.Parallel()

	payload := []byte("section payload")
	path := writeTestFile(t, func(w *Writer) {
		if err := w.WriteSection(SectionModelMeta, 1, payload); err != nil {
			t.Fatalf("write: %v", err)
		}
	})

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = f.Close() }()
	stat, err := f.Stat()
	if err != nil {
		t.Fatalf("stat: %v", err)
	}

	mf, err := OpenReaderAt(f, stat.Size())
	if err != nil {
		t.Fatalf("open reader at: %v", err)
	}
	defer func() { _ = mf.Close() }()

	if !bytes.Equal(mf.SectionData(mf.Section(SectionModelMeta)), payload) {
		t.Fatalf("payload mismatch")
	}
}
