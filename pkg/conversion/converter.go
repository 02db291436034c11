// Package conversion turns directories of NIfTI label volumes into one STL
// surface per label.
package conversion

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/stat"

	"niftitostl/internal/models"
	"niftitostl/pkg/config"
	"niftitostl/pkg/labels"
	"niftitostl/pkg/nifti"
	"niftitostl/pkg/smoothing"
	"niftitostl/pkg/stl"
	"niftitostl/pkg/surface"
)

// Params holds the conversion parameters.
type Params struct {
	// SourceDir is scanned (non-recursively) for input volumes.
	SourceDir string

	// DestDir receives one subdirectory per input volume.
	DestDir string

	// Config controls input matching, smoothing, output format and label
	// names. A nil Config uses config.DefaultConfig().
	Config *config.Config

	// Output receives progress lines. Defaults to os.Stdout.
	Output io.Writer

	// OnFile, when set, replaces the per-file progress line.
	OnFile func(path string)
}

// MeshResult describes one written surface.
type MeshResult struct {
	Label     float64
	Path      string
	Voxels    int
	Vertices  int
	Triangles int
	Bytes     int64

	// MeanError is the mean per-vertex displacement caused by smoothing.
	// Zero when error scalars are disabled.
	MeanError float64
}

// FileResult describes the conversion of one input volume.
type FileResult struct {
	Source    string
	OutputDir string
	Labels    []float64
	Meshes    []MeshResult
}

// Triangles returns the total triangle count over all meshes.
func (r FileResult) Triangles() int {
	n := 0
	for _, m := range r.Meshes {
		n += m.Triangles
	}
	return n
}

// Bytes returns the total size of all written meshes.
func (r FileResult) Bytes() int64 {
	var n int64
	for _, m := range r.Meshes {
		n += m.Bytes
	}
	return n
}

// Converter runs the volume to mesh pipeline over a directory.
//
// For every input file the steps are:
// 1. Load the volume and its geometry
// 2. Enumerate the distinct labels
// 3. For each non-background label build a mask, extract its surface,
// smooth it and write it as <DestDir>/<name>/<label>.stl
type Converter struct {
	params  *Params
	cfg     *config.Config
	out     io.Writer
	results []FileResult
}

// NewConverter creates a converter with the provided parameters.
func NewConverter(params *Params) *Converter {
	cfg := params.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	var out io.Writer = os.Stdout
	if params.Output != nil {
		out = params.Output
	}
	return &Converter{params: params, cfg: cfg, out: out}
}

// ConvertDirectory converts every *.nii.gz file in src with the default
// configuration.
func ConvertDirectory(src, dst string) error {
	return NewConverter(&Params{SourceDir: src, DestDir: dst}).Process()
}

// Results returns the per-file reports of the last Process call. Files
// processed before a failure are included.
func (c *Converter) Results() []FileResult {
	return c.results
}

// Process converts all matching files in order. The first failure stops
// the batch; outputs of earlier files are kept.
func (c *Converter) Process() error {
	c.results = nil

	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	frame, err := nifti.ParseFrame(c.cfg.Input.Coordinates)
	if err != nil {
		return err
	}
	format, err := stl.ParseFormat(c.cfg.Output.Format)
	if err != nil {
		return err
	}

	inputs, err := ListInputs(c.params.SourceDir, c.cfg.Input.Pattern)
	if err != nil {
		return fmt.Errorf("failed to list inputs: %w", err)
	}

	namer := labels.NewNamer(c.cfg.Labels)
	opts := c.cfg.SmoothingOptions()
	for _, path := range inputs {
		if c.params.OnFile != nil {
			c.params.OnFile(path)
		} else {
			fmt.Fprintf(c.out, "Generating stls for: %s\n", path)
		}

		result, err := c.convertFile(path, frame, format, namer, opts)
		if err != nil {
			return fmt.Errorf("failed to convert %s: %w", path, err)
		}
		c.results = append(c.results, *result)
	}
	return nil
}

func (c *Converter) convertFile(path string, frame nifti.Frame, format stl.Format,
	namer *labels.Namer, opts smoothing.Options) (*FileResult, error) {
	outDir := filepath.Join(c.params.DestDir, OutputName(path))
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	vol, err := nifti.ReadFile(path, frame)
	if err != nil {
		return nil, err
	}

	result := &FileResult{
		Source:    path,
		OutputDir: outDir,
		Labels:    labels.Foreground(vol.Data),
	}
	if c.cfg.Output.Verbose {
		fmt.Fprintf(c.out, "  %dx%dx%d voxels, %d labels\n",
			vol.Width, vol.Height, vol.Depth, len(result.Labels))
	}

	stems, err := namer.Stems(result.Labels)
	if err != nil {
		return nil, err
	}

	for i, label := range result.Labels {
		stem := stems[i]
		mask := vol.WithData(labels.Mask(vol.Data, label))

		if c.cfg.Output.SaveMasks {
			if err := saveMask(outDir, stem, mask, frame); err != nil {
				return nil, err
			}
		}

		mesh := smoothing.WindowedSinc(surface.ExtractDiscrete(mask, label), opts)
		meshPath := filepath.Join(outDir, stem+".stl")
		if err := stl.SaveToSTL(meshPath, stl.FromMesh(mesh), format); err != nil {
			return nil, fmt.Errorf("label %s: %w", labels.Format(label), err)
		}

		mr := MeshResult{
			Label:     label,
			Path:      meshPath,
			Voxels:    labels.Count(vol.Data, label),
			Vertices:  len(mesh.Vertices),
			Triangles: len(mesh.Faces),
			MeanError: meanError(mesh),
		}
		if info, err := os.Stat(meshPath); err == nil {
			mr.Bytes = info.Size()
		}
		result.Meshes = append(result.Meshes, mr)

		if c.cfg.Output.Verbose {
			fmt.Fprintf(c.out, "  label %s -> %s (%s triangles, %s)\n",
				labels.Format(label), meshPath,
				humanize.Comma(int64(mr.Triangles)), humanize.Bytes(uint64(mr.Bytes)))
		}
	}
	return result, nil
}

func saveMask(outDir, stem string, mask *models.Volume, frame nifti.Frame) error {
	dir := filepath.Join(outDir, "masks")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create mask directory: %w", err)
	}
	if err := nifti.WriteFile(filepath.Join(dir, stem+".nii.gz"), mask, frame); err != nil {
		return fmt.Errorf("failed to save mask: %w", err)
	}
	return nil
}

func meanError(m *models.Mesh) float64 {
	if len(m.Scalars) == 0 {
		return 0
	}
	return stat.Mean(m.Scalars, nil)
}

// ListInputs returns the files in dir whose names match pattern, sorted
// by name. Subdirectories are neither matched nor descended into.
func ListInputs(dir, pattern string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	// os.ReadDir sorts by file name
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ok, err := filepath.Match(pattern, entry.Name())
		if err != nil {
			return nil, err
		}
		if ok {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files, nil
}

// OutputName is the directory name used for an input file: its base name
// without the .nii.gz (or .nii) extension.
func OutputName(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".gz")
	return strings.TrimSuffix(name, ".nii")
}
