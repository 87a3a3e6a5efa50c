package tcf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sort"
)

// TensorIndexVersion is the on-disk version of the tensor index section.
const TensorIndexVersion uint32 = 1

const (
	tensorIndexHeaderSize = 48
	tensorEntrySize       = 48
)

// TensorIndex flags.
const (
	// TensorIndexFlagSortedByName means entries are sorted by raw name bytes
	// ascending, allowing binary-search lookup without building a map.
	TensorIndexFlagSortedByName uint32 = 1 << 0

	// TensorIndexFlagNamesUTF8 indicates names are valid UTF-8 (advisory).
	TensorIndexFlagNamesUTF8 uint32 = 1 << 1
)

// TensorDType identifies the tensor element encoding.
// Keep these stable forever; add new values only.
type TensorDType uint32

const (
	DTypeUnknown TensorDType = iota
	DTypeF32
	DTypeF16
	DTypeI8
	DTypeI16
	DTypeU8
)

func (dt TensorDType) String() string {
	switch dt {
	case DTypeF32:
		return "f32"
	case DTypeF16:
		return "f16"
	case DTypeI8:
		return "i8"
	case DTypeI16:
		return "i16"
	case DTypeU8:
		return "u8"
	default:
		return "unknown"
	}
}

// StorageKind distinguishes raw tensor payloads from entropy-compressed ones.
type StorageKind uint32

const (
	StorageRaw StorageKind = 0
	StorageFSE StorageKind = 1
)

func (s StorageKind) String() string {
	switch s {
	case StorageRaw:
		return "raw"
	case StorageFSE:
		return "fse"
	default:
		return "unknown"
	}
}

// TensorIndexHeader describes the on-disk layout of the tensor index section.
// Offsets are relative to the start of the section payload.
type TensorIndexHeader struct {
	Version     uint32
	Flags       uint32
	TensorCount uint32
	DimsCount   uint32 // total number of uint64 dims in the dims table

	EntriesOff  uint64 // []TensorEntry (TensorCount)
	DimsOff     uint64 // []uint64 (DimsCount)
	StringsOff  uint64 // []byte (StringsSize)
	StringsSize uint64
}

// TensorEntry is the on-disk fixed-size record for a tensor. Name bytes live
// in the strings table, shape dims in the dims table.
//
// RawSize is the tensor's original (uncompressed) byte size. For StorageRaw
// it equals DataSize; for StorageFSE it records the size the decoder must
// reproduce, which is also the bound the encoder was held to.
type TensorEntry struct {
	NameOff uint32
	NameLen uint32

	DType   TensorDType
	Storage StorageKind

	Rank   uint32
	DimOff uint32 // index into the dims table, in uint64 elements

	// DataOff is an absolute file offset, which makes slicing payloads out
	// of the mmap trivial.
	DataOff  uint64
	DataSize uint64
	RawSize  uint64
}

// TensorIndex is a parsed view over a tensor index section payload. It keeps
// a reference to the raw section bytes, which usually reference the mmap.
type TensorIndex struct {
	raw []byte
	hdr TensorIndexHeader
}

// TensorRecord is the input to EncodeTensorIndexSection.
type TensorRecord struct {
	Name    string
	DType   TensorDType
	Storage StorageKind
	Shape   []uint64

	DataOff  uint64 // absolute file offset
	DataSize uint64
	RawSize  uint64
}

var errBadTensorIndex = errors.New("tcf: corrupt tensor index section")

// ParseTensorIndexSection validates and returns a view over a tensor index
// section payload. Pass it File.SectionData(File.Section(SectionTensorIndex)).
func ParseTensorIndexSection(sec []byte) (*TensorIndex, error) {
	if len(sec) < tensorIndexHeaderSize {
		return nil, ErrCorruptFile
	}

	h := TensorIndexHeader{
		Version:     binary.LittleEndian.Uint32(sec[0:4]),
		Flags:       binary.LittleEndian.Uint32(sec[4:8]),
		TensorCount: binary.LittleEndian.Uint32(sec[8:12]),
		DimsCount:   binary.LittleEndian.Uint32(sec[12:16]),
		EntriesOff:  binary.LittleEndian.Uint64(sec[16:24]),
		DimsOff:     binary.LittleEndian.Uint64(sec[24:32]),
		StringsOff:  binary.LittleEndian.Uint64(sec[32:40]),
		StringsSize: binary.LittleEndian.Uint64(sec[40:48]),
	}
	if h.Version != TensorIndexVersion {
		return nil, ErrUnsupportedMinor
	}
	if h.TensorCount == 0 {
		return nil, ErrCorruptFile
	}

	secLen := uint64(len(sec))
	entriesBytes, ok := mulUint64(uint64(h.TensorCount), tensorEntrySize)
	if !ok {
		return nil, ErrCorruptFile
	}
	dimsBytes, ok := mulUint64(uint64(h.DimsCount), 8)
	if !ok {
		return nil, ErrCorruptFile
	}
	if h.EntriesOff > secLen || h.EntriesOff+entriesBytes > secLen {
		return nil, ErrCorruptFile
	}
	if h.DimsOff > secLen || h.DimsOff+dimsBytes > secLen {
		return nil, ErrCorruptFile
	}
	if h.StringsOff > secLen || h.StringsOff+h.StringsSize > secLen {
		return nil, ErrCorruptFile
	}

	for i := uint32(0); i < h.TensorCount; i++ {
		e, err := readTensorEntry(sec, h.EntriesOff, i)
		if err != nil {
			return nil, ErrCorruptFile
		}
		if uint64(e.NameOff)+uint64(e.NameLen) > h.StringsSize {
			return nil, ErrCorruptFile
		}
		if e.Rank > 0 {
			if uint64(e.DimOff)+uint64(e.Rank) > uint64(h.DimsCount) {
				return nil, ErrCorruptFile
			}
		}
		if e.Storage != StorageRaw && e.Storage != StorageFSE {
			return nil, ErrCorruptFile
		}
		if e.Storage == StorageRaw && e.RawSize != e.DataSize {
			return nil, ErrCorruptFile
		}
	}

	return &TensorIndex{raw: sec, hdr: h}, nil
}

func readTensorEntry(sec []byte, entriesOff uint64, i uint32) (TensorEntry, error) {
	base := entriesOff + uint64(i)*tensorEntrySize
	end := base + tensorEntrySize
	if end > uint64(len(sec)) {
		return TensorEntry{}, errBadTensorIndex
	}
	b := sec[base:end]
	return TensorEntry{
		NameOff:  binary.LittleEndian.Uint32(b[0:4]),
		NameLen:  binary.LittleEndian.Uint32(b[4:8]),
		DType:    TensorDType(binary.LittleEndian.Uint32(b[8:12])),
		Storage:  StorageKind(binary.LittleEndian.Uint32(b[12:16])),
		Rank:     binary.LittleEndian.Uint32(b[16:20]),
		DimOff:   binary.LittleEndian.Uint32(b[20:24]),
		DataOff:  binary.LittleEndian.Uint64(b[24:32]),
		DataSize: binary.LittleEndian.Uint64(b[32:40]),
		RawSize:  binary.LittleEndian.Uint64(b[40:48]),
	}, nil
}

func (ti *TensorIndex) Count() int {
	return int(ti.hdr.TensorCount)
}

func (ti *TensorIndex) Flags() uint32 {
	return ti.hdr.Flags
}

func (ti *TensorIndex) Entry(i int) (TensorEntry, error) {
	if i < 0 || i >= int(ti.hdr.TensorCount) {
		return TensorEntry{}, ErrCorruptFile
	}
	return readTensorEntry(ti.raw, ti.hdr.EntriesOff, uint32(i))
}

func (ti *TensorIndex) NameBytes(i int) ([]byte, error) {
	e, err := ti.Entry(i)
	if err != nil {
		return nil, err
	}
	off := ti.hdr.StringsOff + uint64(e.NameOff)
	end := off + uint64(e.NameLen)
	if end > ti.hdr.StringsOff+ti.hdr.StringsSize || end > uint64(len(ti.raw)) {
		return nil, ErrCorruptFile
	}
	return ti.raw[off:end], nil
}

func (ti *TensorIndex) Name(i int) (string, error) {
	b, err := ti.NameBytes(i)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (ti *TensorIndex) Shape(i int) ([]uint64, error) {
	e, err := ti.Entry(i)
	if err != nil {
		return nil, err
	}
	if e.Rank == 0 {
		return nil, nil
	}
	out := make([]uint64, 0, e.Rank)
	for d := uint32(0); d < e.Rank; d++ {
		val, err := ti.dimAt(e.DimOff + d)
		if err != nil {
			return nil, err
		}
		out = append(out, val)
	}
	return out, nil
}

func (ti *TensorIndex) dimAt(dimIndex uint32) (uint64, error) {
	if dimIndex >= ti.hdr.DimsCount {
		return 0, ErrCorruptFile
	}
	base := ti.hdr.DimsOff + uint64(dimIndex)*8
	if base+8 > uint64(len(ti.raw)) {
		return 0, ErrCorruptFile
	}
	return binary.LittleEndian.Uint64(ti.raw[base : base+8]), nil
}

// Find returns the entry index for the given tensor name. With the sorted
// flag this is O(log n), otherwise a linear scan.
func (ti *TensorIndex) Find(name string) (int, bool) {
	if ti == nil {
		return -1, false
	}
	key := []byte(name)

	if (ti.hdr.Flags & TensorIndexFlagSortedByName) != 0 {
		n := int(ti.hdr.TensorCount)
		i := sort.Search(n, func(i int) bool {
			nb, err := ti.NameBytes(i)
			if err != nil {
				return true
			}
			return bytes.Compare(nb, key) >= 0
		})
		if i < n {
			nb, err := ti.NameBytes(i)
			if err == nil && bytes.Equal(nb, key) {
				return i, true
			}
		}
		return -1, false
	}

	for i := 0; i < int(ti.hdr.TensorCount); i++ {
		nb, err := ti.NameBytes(i)
		if err != nil {
			return -1, false
		}
		if bytes.Equal(nb, key) {
			return i, true
		}
	}
	return -1, false
}

// TensorData returns a zero-copy view of the tensor payload bytes from the
// mapped file. Entry offsets are absolute file offsets.
func (ti *TensorIndex) TensorData(f *File, i int) ([]byte, error) {
	if f == nil || f.Data == nil {
		return nil, ErrCorruptFile
	}
	e, err := ti.Entry(i)
	if err != nil {
		return nil, err
	}
	end := e.DataOff + e.DataSize
	if end < e.DataOff || end > uint64(len(f.Data)) {
		return nil, ErrCorruptFile
	}
	return f.Data[e.DataOff:end], nil
}

// EncodeTensorIndexSection builds a tensor index section payload (v1).
// Records are sorted by name and the sorted flag is set.
func EncodeTensorIndexSection(records []TensorRecord) ([]byte, error) {
	if len(records) == 0 {
		return nil, errors.New("tcf: tensor index requires at least one record")
	}

	recs := make([]TensorRecord, len(records))
	copy(recs, records)
	sort.Slice(recs, func(i, j int) bool { return recs[i].Name < recs[j].Name })

	var (
		dims       []uint64
		stringBlob []byte
		entries    = make([]TensorEntry, 0, len(recs))
	)
	for _, r := range recs {
		if r.Name == "" {
			return nil, errors.New("tcf: tensor name must be non-empty")
		}
		if r.Storage != StorageRaw && r.Storage != StorageFSE {
			return nil, errors.New("tcf: invalid storage kind")
		}
		if r.Storage == StorageRaw && r.RawSize != r.DataSize {
			return nil, errors.New("tcf: raw tensor sizes disagree")
		}

		nameOff := uint32(len(stringBlob))
		stringBlob = append(stringBlob, r.Name...)

		dimOff := uint32(len(dims))
		dims = append(dims, r.Shape...)

		entries = append(entries, TensorEntry{
			NameOff:  nameOff,
			NameLen:  uint32(len(r.Name)),
			DType:    r.DType,
			Storage:  r.Storage,
			Rank:     uint32(len(r.Shape)),
			DimOff:   dimOff,
			DataOff:  r.DataOff,
			DataSize: r.DataSize,
			RawSize:  r.RawSize,
		})
	}

	hdr := TensorIndexHeader{
		Version:     TensorIndexVersion,
		Flags:       TensorIndexFlagSortedByName | TensorIndexFlagNamesUTF8,
		TensorCount: uint32(len(entries)),
		DimsCount:   uint32(len(dims)),
	}
	hdr.EntriesOff = tensorIndexHeaderSize
	hdr.DimsOff = hdr.EntriesOff + tensorEntrySize*uint64(len(entries))
	hdr.StringsOff = hdr.DimsOff + uint64(len(dims))*8
	hdr.StringsSize = uint64(len(stringBlob))

	out := make([]byte, hdr.StringsOff+hdr.StringsSize)

	binary.LittleEndian.PutUint32(out[0:4], hdr.Version)
	binary.LittleEndian.PutUint32(out[4:8], hdr.Flags)
	binary.LittleEndian.PutUint32(out[8:12], hdr.TensorCount)
	binary.LittleEndian.PutUint32(out[12:16], hdr.DimsCount)
	binary.LittleEndian.PutUint64(out[16:24], hdr.EntriesOff)
	binary.LittleEndian.PutUint64(out[24:32], hdr.DimsOff)
	binary.LittleEndian.PutUint64(out[32:40], hdr.StringsOff)
	binary.LittleEndian.PutUint64(out[40:48], hdr.StringsSize)

	ep := int(hdr.EntriesOff)
	for _, e := range entries {
		binary.LittleEndian.PutUint32(out[ep+0:ep+4], e.NameOff)
		binary.LittleEndian.PutUint32(out[ep+4:ep+8], e.NameLen)
		binary.LittleEndian.PutUint32(out[ep+8:ep+12], uint32(e.DType))
		binary.LittleEndian.PutUint32(out[ep+12:ep+16], uint32(e.Storage))
		binary.LittleEndian.PutUint32(out[ep+16:ep+20], e.Rank)
		binary.LittleEndian.PutUint32(out[ep+20:ep+24], e.DimOff)
		binary.LittleEndian.PutUint64(out[ep+24:ep+32], e.DataOff)
		binary.LittleEndian.PutUint64(out[ep+32:ep+40], e.DataSize)
		binary.LittleEndian.PutUint64(out[ep+40:ep+48], e.RawSize)
		ep += tensorEntrySize
	}

	dp := int(hdr.DimsOff)
	for _, d := range dims {
		binary.LittleEndian.PutUint64(out[dp:dp+8], d)
		dp += 8
	}

	copy(out[hdr.StringsOff:], stringBlob)
	return out, nil
}
