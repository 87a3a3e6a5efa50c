// Package api serves a read-only HTTP inspection view over a TCF container.
package api

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/fsepack/internal/logger"
	"github.com/samcharles93/fsepack/pkg/fse"
	"github.com/samcharles93/fsepack/pkg/tcf"
)

type Server struct {
	file  *tcf.File
	index *tcf.TensorIndex
	quant []tcf.QuantRecord
	log   logger.Logger
}

// NewServer builds an inspection server over an already opened container.
// The caller keeps ownership of the file and closes it after shutdown.
func NewServer(f *tcf.File, log logger.Logger) (*Server, error) {
	index, err := f.TensorIndex()
	if err != nil {
		return nil, err
	}
	quant, err := f.QuantInfo()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Default()
	}
	return &Server{file: f, index: index, quant: quant, log: log}, nil
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/v1/container", s.handleContainer)
	e.GET("/v1/tensors", s.handleTensors)
	e.GET("/v1/tensors/:name", s.handleTensor)
}

func (s *Server) handleContainer(c *echo.Context) error {
	hdr := s.file.Header
	info := ContainerInfo{
		Major:       hdr.Major,
		Minor:       hdr.Minor,
		FileSize:    hdr.FileSize,
		TensorCount: s.index.Count(),
	}
	for _, sec := range s.file.Sections {
		info.Sections = append(info.Sections, SectionInfo{
			Type:    sectionTypeName(tcf.SectionType(sec.Type)),
			Version: sec.Version,
			Offset:  sec.Offset,
			Size:    sec.Size,
		})
	}
	return writeJSON(c, http.StatusOK, info)
}

func (s *Server) handleTensors(c *echo.Context) error {
	out := TensorList{Tensors: make([]TensorSummary, 0, s.index.Count())}
	for i := 0; i < s.index.Count(); i++ {
		summary, err := s.tensorSummary(i)
		if err != nil {
			return writeServerError(c, err.Error())
		}
		out.Tensors = append(out.Tensors, summary)
	}
	return writeJSON(c, http.StatusOK, out)
}

func (s *Server) handleTensor(c *echo.Context) error {
	name := c.Param("name")
	i, ok := s.index.Find(name)
	if !ok {
		return writeNotFound(c, "tensor not found")
	}

	summary, err := s.tensorSummary(i)
	if err != nil {
		return writeServerError(c, err.Error())
	}
	detail := TensorDetail{TensorSummary: summary}

	if rec, ok := tcf.QuantRecordByTensor(s.quant, i); ok {
		detail.Quant = &QuantInfo{
			Method:    rec.Method.String(),
			Scale:     rec.Scale,
			ZeroPoint: rec.ZeroPoint,
		}
	}

	entry, err := s.index.Entry(i)
	if err != nil {
		return writeServerError(c, err.Error())
	}
	if entry.Storage == tcf.StorageFSE {
		payload, err := s.index.TensorData(s.file, i)
		if err != nil {
			return writeServerError(c, err.Error())
		}
		hdr, err := fse.ParseHeader(payload)
		if err != nil {
			s.log.Warn("compressed payload header unreadable", "tensor", name, "err", err)
		} else {
			detail.Compressed = &CompressedInfo{
				AlphabetSize: hdr.AlphabetSize,
				TableLog:     hdr.TableLog,
				ChunkCount:   hdr.ChunkCount,
			}
		}
	}

	return writeJSON(c, http.StatusOK, detail)
}

func (s *Server) tensorSummary(i int) (TensorSummary, error) {
	entry, err := s.index.Entry(i)
	if err != nil {
		return TensorSummary{}, err
	}
	name, err := s.index.Name(i)
	if err != nil {
		return TensorSummary{}, err
	}
	shape, err := s.index.Shape(i)
	if err != nil {
		return TensorSummary{}, err
	}
	return TensorSummary{
		Name:     name,
		DType:    entry.DType.String(),
		Storage:  entry.Storage.String(),
		Shape:    shape,
		DataSize: entry.DataSize,
		RawSize:  entry.RawSize,
	}, nil
}

func sectionTypeName(t tcf.SectionType) string {
	switch t {
	case tcf.SectionModelMeta:
		return "model_meta"
	case tcf.SectionQuantInfo:
		return "quant_info"
	case tcf.SectionTensorIndex:
		return "tensor_index"
	case tcf.SectionTensorData:
		return "tensor_data"
	default:
		return "unknown"
	}
}
