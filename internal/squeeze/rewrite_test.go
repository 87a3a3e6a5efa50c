package squeeze

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/samcharles93/fsepack/pkg/fse"
	"github.com/samcharles93/fsepack/pkg/tcf"
)

// buildTestContainer writes a two-tensor container: a large int8 weight
// drawn from four distinct values and a small int8 bias.
func buildTestContainer(t *testing.T, dir string) string {
	t.Helper()

	weight := make([]byte, 8192)
	for i := range weight {
		weight[i] = byte(int8(i%4 - 2))
	}
	bias := make([]byte, 64)
	for i := range bias {
		bias[i] = byte(int8(i % 3))
	}

	path := filepath.Join(dir, "in.tcf")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer func() { _ = f.Close() }()

	w, err := tcf.NewWriter(f)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := w.WriteSection(tcf.SectionModelMeta, 1, []byte(`{"name":"test"}`)); err != nil {
		t.Fatalf("meta: %v", err)
	}

	sw, err := w.BeginSection(tcf.SectionTensorData, 1)
	if err != nil {
		t.Fatalf("begin data: %v", err)
	}
	offsets := make([]uint64, 2)
	for i, payload := range [][]byte{bias, weight} {
		if err := sw.Align(tcf.PayloadAlign); err != nil {
			t.Fatalf("align: %v", err)
		}
		offsets[i], err = sw.CurrentAbsOffset()
		if err != nil {
			t.Fatalf("offset: %v", err)
		}
		if _, err := sw.Write(payload); err != nil {
			t.Fatalf("write payload: %v", err)
		}
	}
	if err := sw.End(); err != nil {
		t.Fatalf("end data: %v", err)
	}

	index, err := tcf.EncodeTensorIndexSection([]tcf.TensorRecord{
		{
			Name: "layers.0.bias", DType: tcf.DTypeI8, Storage: tcf.StorageRaw,
			Shape:   []uint64{64},
			DataOff: offsets[0], DataSize: uint64(len(bias)), RawSize: uint64(len(bias)),
		},
		{
			Name: "layers.0.weight", DType: tcf.DTypeI8, Storage: tcf.StorageRaw,
			Shape:   []uint64{128, 64},
			DataOff: offsets[1], DataSize: uint64(len(weight)), RawSize: uint64(len(weight)),
		},
	})
	if err != nil {
		t.Fatalf("encode index: %v", err)
	}
	if err := w.WriteSection(tcf.SectionTensorIndex, tcf.TensorIndexVersion, index); err != nil {
		t.Fatalf("write index: %v", err)
	}

	quant, err := tcf.EncodeQuantInfoSection([]tcf.QuantRecord{
		{TensorIndex: 0, Method: tcf.QuantMethodAffine, Scale: 0.5, ZeroPoint: 0},
		{TensorIndex: 1, Method: tcf.QuantMethodAffine, Scale: 0.5, ZeroPoint: 0},
	})
	if err != nil {
		t.Fatalf("encode quant: %v", err)
	}
	if err := w.WriteSection(tcf.SectionQuantInfo, tcf.QuantInfoVersion, quant); err != nil {
		t.Fatalf("write quant: %v", err)
	}

	if err := w.Finalise(); err != nil {
		t.Fatalf("finalise: %v", err)
	}
	return path
}

func TestRewriteCompressesEligibleTensors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := buildTestContainer(t, dir)
	out := filepath.Join(dir, "out.tcf")

	stats, err := Rewrite(context.Background(), RewriteOptions{
		InputPath:  in,
		OutputPath: out,
	})
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if stats.TensorCount != 2 || stats.Compressed != 1 || stats.RawKept != 1 {
		t.Fatalf("stats: %+v", stats)
	}
	if stats.BytesOut >= stats.BytesIn {
		t.Fatalf("no overall gain: in %d out %d", stats.BytesIn, stats.BytesOut)
	}

	f, err := tcf.Open(out)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer func() { _ = f.Close() }()

	ti, err := f.TensorIndex()
	if err != nil {
		t.Fatalf("tensor index: %v", err)
	}

	wi, ok := ti.Find("layers.0.weight")
	if !ok {
		t.Fatalf("weight missing from output index")
	}
	we, err := ti.Entry(wi)
	if err != nil {
		t.Fatalf("weight entry: %v", err)
	}
	if we.Storage != tcf.StorageFSE {
		t.Fatalf("weight storage: got %s want fse", we.Storage)
	}
	if we.RawSize != 8192 {
		t.Fatalf("weight raw size: got %d want 8192", we.RawSize)
	}
	if we.DataSize >= we.RawSize {
		t.Fatalf("weight did not shrink: %d >= %d", we.DataSize, we.RawSize)
	}

	payload, err := ti.TensorData(f, wi)
	if err != nil {
		t.Fatalf("weight payload: %v", err)
	}
	hdr, err := fse.ParseHeader(payload)
	if err != nil {
		t.Fatalf("parse payload header: %v", err)
	}
	if hdr.AlphabetSize != 4 {
		t.Fatalf("alphabet size: got %d want 4", hdr.AlphabetSize)
	}

	bi, ok := ti.Find("layers.0.bias")
	if !ok {
		t.Fatalf("bias missing from output index")
	}
	be, err := ti.Entry(bi)
	if err != nil {
		t.Fatalf("bias entry: %v", err)
	}
	if be.Storage != tcf.StorageRaw {
		t.Fatalf("bias storage: got %s want raw", be.Storage)
	}
	biasOut, err := ti.TensorData(f, bi)
	if err != nil {
		t.Fatalf("bias payload: %v", err)
	}
	want := make([]byte, 64)
	for i := range want {
		want[i] = byte(int8(i % 3))
	}
	if !bytes.Equal(biasOut, want) {
		t.Fatalf("bias payload changed")
	}

	quant, err := f.QuantInfo()
	if err != nil {
		t.Fatalf("quant info: %v", err)
	}
	if len(quant) != 2 {
		t.Fatalf("quant records: got %d want 2", len(quant))
	}
	if _, ok := tcf.QuantRecordByTensor(quant, wi); !ok {
		t.Fatalf("weight quant record missing after remap")
	}

	if meta := f.Section(tcf.SectionModelMeta); meta == nil {
		t.Fatalf("model meta section dropped")
	} else if !bytes.Equal(f.SectionData(meta), []byte(`{"name":"test"}`)) {
		t.Fatalf("model meta changed")
	}
}

func TestRewriteSkipList(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := buildTestContainer(t, dir)
	out := filepath.Join(dir, "out.tcf")

	stats, err := Rewrite(context.Background(), RewriteOptions{
		InputPath:  in,
		OutputPath: out,
		Skip:       []string{"layers.0.weight"},
	})
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if stats.Compressed != 0 || stats.RawKept != 2 {
		t.Fatalf("stats: %+v", stats)
	}

	for _, r := range stats.Tensors {
		if r.Name == "layers.0.weight" && r.Reason != "skipped" {
			t.Fatalf("weight reason: got %q want skipped", r.Reason)
		}
	}
}

func TestRewriteCancelled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := buildTestContainer(t, dir)
	out := filepath.Join(dir, "out.tcf")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Rewrite(ctx, RewriteOptions{InputPath: in, OutputPath: out}); err == nil {
		t.Fatalf("cancelled rewrite succeeded")
	}
}
