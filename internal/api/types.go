package api

type ContainerInfo struct {
	Major       uint16        `json:"major"`
	Minor       uint16        `json:"minor"`
	FileSize    uint64        `json:"file_size"`
	TensorCount int           `json:"tensor_count"`
	Sections    []SectionInfo `json:"sections"`
}

type SectionInfo struct {
	Type    string `json:"type"`
	Version uint32 `json:"version"`
	Offset  uint64 `json:"offset"`
	Size    uint64 `json:"size"`
}

type TensorList struct {
	Tensors []TensorSummary `json:"tensors"`
}

type TensorSummary struct {
	Name     string   `json:"name"`
	DType    string   `json:"dtype"`
	Storage  string   `json:"storage"`
	Shape    []uint64 `json:"shape,omitempty"`
	DataSize uint64   `json:"data_size"`
	RawSize  uint64   `json:"raw_size"`
}

type TensorDetail struct {
	TensorSummary
	Quant      *QuantInfo      `json:"quant,omitempty"`
	Compressed *CompressedInfo `json:"compressed,omitempty"`
}

type QuantInfo struct {
	Method    string  `json:"method"`
	Scale     float32 `json:"scale"`
	ZeroPoint int32   `json:"zero_point"`
}

type CompressedInfo struct {
	AlphabetSize uint16 `json:"alphabet_size"`
	TableLog     uint16 `json:"table_log"`
	ChunkCount   uint32 `json:"chunk_count"`
}

type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}
