package squeeze

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/samcharles93/fsepack/internal/logger"
	"github.com/samcharles93/fsepack/pkg/fse"
	"github.com/samcharles93/fsepack/pkg/tcf"
)

// Default threshold below which a tensor is never worth compressing: the
// fixed frequency/centroid tables dominate tiny payloads.
const DefaultMinTensorBytes = 4096

// RewriteOptions configures a container rewrite.
type RewriteOptions struct {
	InputPath  string
	OutputPath string

	// MinTensorBytes skips tensors smaller than this; zero applies the
	// default threshold.
	MinTensorBytes int

	// Skip lists tensor names that must stay raw.
	Skip []string

	Log logger.Logger
}

// TensorResult records the per-tensor outcome of a rewrite.
type TensorResult struct {
	Name     string `json:"name"`
	Storage  string `json:"storage"`
	RawSize  uint64 `json:"raw_size"`
	DataSize uint64 `json:"data_size"`
	Reason   string `json:"reason,omitempty"`
}

// RewriteStats summarises a rewrite.
type RewriteStats struct {
	TensorCount int            `json:"tensor_count"`
	Compressed  int            `json:"compressed"`
	RawKept     int            `json:"raw_kept"`
	BytesIn     uint64         `json:"bytes_in"`
	BytesOut    uint64         `json:"bytes_out"`
	Tensors     []TensorResult `json:"tensors"`
}

// Rewrite reads a TCF container and writes a new one in which every eligible
// quantised tensor is stored entropy-coded. A tensor that cannot be
// compressed, or whose compressed form is not smaller than the original,
// keeps its raw payload; a rewrite never fails because one tensor did not
// shrink.
func Rewrite(ctx context.Context, opts RewriteOptions) (*RewriteStats, error) {
	log := opts.Log
	if log == nil {
		log = logger.Default()
	}
	minBytes := opts.MinTensorBytes
	if minBytes <= 0 {
		minBytes = DefaultMinTensorBytes
	}
	skip := make(map[string]struct{}, len(opts.Skip))
	for _, name := range opts.Skip {
		skip[name] = struct{}{}
	}

	in, err := tcf.Open(opts.InputPath)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer func() { _ = in.Close() }()

	ti, err := in.TensorIndex()
	if err != nil {
		return nil, fmt.Errorf("tensor index: %w", err)
	}
	quantRecords, err := in.QuantInfo()
	if err != nil {
		return nil, fmt.Errorf("quant info: %w", err)
	}

	out, err := os.Create(opts.OutputPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = out.Close() }()

	w, err := tcf.NewWriter(out)
	if err != nil {
		return nil, err
	}

	if meta := in.Section(tcf.SectionModelMeta); meta != nil {
		if err := w.WriteSection(tcf.SectionModelMeta, meta.Version, in.SectionData(meta)); err != nil {
			return nil, err
		}
	}

	stats := &RewriteStats{TensorCount: ti.Count()}
	records := make([]tcf.TensorRecord, 0, ti.Count())

	sw, err := w.BeginSection(tcf.SectionTensorData, 1)
	if err != nil {
		return nil, err
	}

	for i := 0; i < ti.Count(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry, err := ti.Entry(i)
		if err != nil {
			return nil, err
		}
		name, err := ti.Name(i)
		if err != nil {
			return nil, err
		}
		shape, err := ti.Shape(i)
		if err != nil {
			return nil, err
		}
		data, err := ti.TensorData(in, i)
		if err != nil {
			return nil, err
		}

		if err := sw.Align(tcf.PayloadAlign); err != nil {
			return nil, err
		}
		off, err := sw.CurrentAbsOffset()
		if err != nil {
			return nil, err
		}

		payload, storage, reason := rewriteTensor(entry, name, data, quantRecords, i, minBytes, skip, log)
		if _, err := sw.Write(payload); err != nil {
			return nil, err
		}

		rawSize := entry.RawSize
		if entry.Storage == tcf.StorageRaw {
			rawSize = uint64(len(data))
		}
		records = append(records, tcf.TensorRecord{
			Name:     name,
			DType:    entry.DType,
			Storage:  storage,
			Shape:    shape,
			DataOff:  off,
			DataSize: uint64(len(payload)),
			RawSize:  rawSize,
		})

		result := TensorResult{
			Name:     name,
			Storage:  storage.String(),
			RawSize:  rawSize,
			DataSize: uint64(len(payload)),
			Reason:   reason,
		}
		stats.Tensors = append(stats.Tensors, result)
		stats.BytesIn += rawSize
		stats.BytesOut += uint64(len(payload))
		if storage == tcf.StorageFSE {
			stats.Compressed++
		} else {
			stats.RawKept++
		}
	}

	if err := sw.End(); err != nil {
		return nil, err
	}

	indexPayload, err := tcf.EncodeTensorIndexSection(records)
	if err != nil {
		return nil, err
	}
	if err := w.WriteSection(tcf.SectionTensorIndex, tcf.TensorIndexVersion, indexPayload); err != nil {
		return nil, err
	}

	if len(quantRecords) > 0 {
		remapped, err := remapQuantRecords(quantRecords, ti, records)
		if err != nil {
			return nil, err
		}
		quantPayload, err := tcf.EncodeQuantInfoSection(remapped)
		if err != nil {
			return nil, err
		}
		if err := w.WriteSection(tcf.SectionQuantInfo, tcf.QuantInfoVersion, quantPayload); err != nil {
			return nil, err
		}
	}

	if err := w.Finalise(); err != nil {
		return nil, err
	}
	if err := out.Close(); err != nil {
		return nil, err
	}

	log.Info("rewrite complete",
		"tensors", stats.TensorCount,
		"compressed", stats.Compressed,
		"raw", stats.RawKept,
		"bytes_in", stats.BytesIn,
		"bytes_out", stats.BytesOut,
	)
	return stats, nil
}

// rewriteTensor decides whether one tensor gets entropy coding. It never
// returns an error: any failure keeps the original payload.
func rewriteTensor(
	entry tcf.TensorEntry,
	name string,
	data []byte,
	quantRecords []tcf.QuantRecord,
	index int,
	minBytes int,
	skip map[string]struct{},
	log logger.Logger,
) ([]byte, tcf.StorageKind, string) {
	if entry.Storage != tcf.StorageRaw {
		// Already compressed in the input; carry it through untouched.
		return data, entry.Storage, "already-compressed"
	}
	if _, ok := skip[name]; ok {
		return data, tcf.StorageRaw, "skipped"
	}
	if entry.DType != tcf.DTypeI8 && entry.DType != tcf.DTypeI16 {
		return data, tcf.StorageRaw, "dtype"
	}
	if len(data) < minBytes {
		return data, tcf.StorageRaw, "below-min-size"
	}

	rec, ok := tcf.QuantRecordByTensor(quantRecords, index)
	if !ok || rec.Method == tcf.QuantMethodNone {
		return data, tcf.StorageRaw, "no-quant-record"
	}

	q, err := BuildQuant(data, entry.DType, rec)
	if err != nil {
		log.Debug("model build failed, keeping raw", "tensor", name, "err", err)
		return data, tcf.StorageRaw, "model-failed"
	}
	compressed, err := fse.Compress(q, len(data))
	if err != nil {
		if !errors.Is(err, fse.ErrCapacity) {
			log.Debug("encode failed, keeping raw", "tensor", name, "err", err)
			return data, tcf.StorageRaw, "encode-failed"
		}
		return data, tcf.StorageRaw, "no-gain"
	}
	if len(compressed) >= len(data) {
		return data, tcf.StorageRaw, "no-gain"
	}

	log.Debug("tensor compressed",
		"tensor", name,
		"raw", len(data),
		"compressed", len(compressed),
	)
	return compressed, tcf.StorageFSE, ""
}

// remapQuantRecords rewrites quant record tensor indices from the input
// index order to the output index order. The output index is name-sorted, so
// indices only move when the input was not.
func remapQuantRecords(in []tcf.QuantRecord, ti *tcf.TensorIndex, records []tcf.TensorRecord) ([]tcf.QuantRecord, error) {
	names := make([]string, len(records))
	for i, r := range records {
		names[i] = r.Name
	}
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)

	newIndex := make(map[string]uint32, len(sorted))
	for i, name := range sorted {
		newIndex[name] = uint32(i)
	}

	out := make([]tcf.QuantRecord, 0, len(in))
	for _, r := range in {
		oldName, err := ti.Name(int(r.TensorIndex))
		if err != nil {
			return nil, fmt.Errorf("quant record %d: %w", r.TensorIndex, err)
		}
		idx, ok := newIndex[oldName]
		if !ok {
			return nil, fmt.Errorf("quant record names missing tensor %q", oldName)
		}
		r.TensorIndex = idx
		out = append(out, r)
	}
	return out, nil
}
