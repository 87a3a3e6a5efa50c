package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/fsepack/pkg/fse"
	"github.com/samcharles93/fsepack/pkg/tcf"
)

func inspectCmd() *cli.Command {
	var (
		containerPath string
		showSections  bool
		showTensors   bool
		showQuant     bool
		tensorLimit   int
		tensorFilter  string
	)

	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect the contents of a .tcf container",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "container",
				Aliases:     []string{"c"},
				Usage:       "path to .tcf file",
				Destination: &containerPath,
				Required:    true,
			},
			&cli.BoolFlag{Name: "sections", Usage: "show section directory", Destination: &showSections},
			&cli.BoolFlag{Name: "tensors", Usage: "list tensor index", Destination: &showTensors},
			&cli.BoolFlag{Name: "quant", Usage: "show quantisation parameters per tensor", Destination: &showQuant},
			&cli.IntFlag{Name: "tensors-limit", Usage: "limit tensor listing (0 = no limit)", Value: 50, Destination: &tensorLimit},
			&cli.StringFlag{Name: "tensor-filter", Usage: "substring filter for tensor listing", Destination: &tensorFilter},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			_ = ctx

			stat, err := os.Stat(containerPath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: stat %q: %v", containerPath, err), 1)
			}
			if stat.IsDir() {
				return cli.Exit("error: fsepack inspect expects a .tcf file", 1)
			}

			f, err := tcf.Open(containerPath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open container: %v", err), 1)
			}
			defer func() { _ = f.Close() }()

			fmt.Printf("TCF Inspect: %s\n", containerPath)
			fmt.Printf("File: %s (%s)\n", filepath.Base(containerPath), formatBytes(uint64(stat.Size())))
			fmt.Printf("TCF Header: v%d.%d sections=%d header=%dB\n",
				f.Header.Major, f.Header.Minor, f.Header.SectionCount, f.Header.HeaderSize)

			ti, err := f.TensorIndex()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: tensor index: %v", err), 1)
			}
			quant, err := f.QuantInfo()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: quant info: %v", err), 1)
			}

			printSummary(ti, quant)

			if showSections {
				printSectionDirectory(f.Sections)
			}
			if showTensors {
				printTensorIndex(f, ti, quant, tensorFilter, tensorLimit, showQuant)
			}
			return nil
		},
	}
}

func printSummary(ti *tcf.TensorIndex, quant []tcf.QuantRecord) {
	section("Summary")
	rowInt("tensors", ti.Count())
	rowInt("quant_records", len(quant))

	var rawBytes, dataBytes uint64
	compressed := 0
	for i := 0; i < ti.Count(); i++ {
		entry, err := ti.Entry(i)
		if err != nil {
			continue
		}
		rawBytes += entry.RawSize
		dataBytes += entry.DataSize
		if entry.Storage == tcf.StorageFSE {
			compressed++
		}
	}
	rowInt("compressed_tensors", compressed)
	row("raw_size", formatBytes(rawBytes))
	row("data_size", formatBytes(dataBytes))
	if rawBytes > 0 && dataBytes < rawBytes {
		row("ratio", fmt.Sprintf("%.3f", float64(dataBytes)/float64(rawBytes)))
	}
}

func printSectionDirectory(sections []tcf.Section) {
	section("Sections")
	for _, s := range sections {
		fmt.Printf("%-16s v%-2d off=%-10d size=%s\n",
			sectionTypeName(tcf.SectionType(s.Type)), s.Version, s.Offset, formatBytes(s.Size))
	}
}

func printTensorIndex(f *tcf.File, ti *tcf.TensorIndex, quant []tcf.QuantRecord, filter string, limit int, showQuant bool) {
	section("Tensor Index")
	count := ti.Count()
	printed := 0
	for i := 0; i < count; i++ {
		name, err := ti.Name(i)
		if err != nil {
			continue
		}
		if filter != "" && !strings.Contains(name, filter) {
			continue
		}
		entry, err := ti.Entry(i)
		if err != nil {
			continue
		}
		shape, _ := ti.Shape(i)

		line := fmt.Sprintf("%s  dtype=%s storage=%s shape=%s size=%s",
			name, entry.DType, entry.Storage, formatShape(shape), formatBytes(entry.DataSize))
		if entry.Storage == tcf.StorageFSE {
			line += fmt.Sprintf(" raw=%s", formatBytes(entry.RawSize))
			if payload, err := ti.TensorData(f, i); err == nil {
				if hdr, err := fse.ParseHeader(payload); err == nil {
					line += fmt.Sprintf(" alphabet=%d table_log=%d", hdr.AlphabetSize, hdr.TableLog)
				}
			}
		}
		if showQuant {
			if r, ok := tcf.QuantRecordByTensor(quant, i); ok {
				line += fmt.Sprintf(" quant=%s scale=%g zero_point=%d", r.Method, r.Scale, r.ZeroPoint)
			}
		}
		fmt.Println(line)
		printed++
		if limit > 0 && printed >= limit {
			break
		}
	}
	if limit > 0 && printed < count {
		fmt.Printf("... (%d shown of %d)\n", printed, count)
	}
}

func section(title string) {
	line := strings.Repeat("-", len(title)+8)
	fmt.Printf("\n%s\n--- %s ---\n%s\n", line, title, line)
}

func row(label, value string) {
	if value == "" {
		return
	}
	fmt.Printf("%-24s %s\n", label+":", value)
}

func rowInt(label string, v int) {
	if v == 0 {
		return
	}
	row(label, fmt.Sprintf("%d", v))
}

func formatShape(shape []uint64) string {
	if len(shape) == 0 {
		return "[]"
	}
	parts := make([]string, len(shape))
	for i, v := range shape {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func formatBytes(b uint64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.2f GiB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.2f MiB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.2f KiB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

func sectionTypeName(t tcf.SectionType) string {
	switch t {
	case tcf.SectionModelMeta:
		return "ModelMeta"
	case tcf.SectionQuantInfo:
		return "QuantInfo"
	case tcf.SectionTensorIndex:
		return "TensorIndex"
	case tcf.SectionTensorData:
		return "TensorData"
	default:
		return fmt.Sprintf("Section0x%04x", uint32(t))
	}
}
