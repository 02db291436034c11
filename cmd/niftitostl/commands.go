package main

import (
	"fmt"
	"os"
	"time"

	"niftitostl/pkg/config"
	"niftitostl/pkg/conversion"
	"niftitostl/pkg/labels"
	"niftitostl/pkg/nifti"
	"niftitostl/pkg/stl"
	"niftitostl/pkg/ui"
	"niftitostl/pkg/visualization"
)

// ConvertCmd converts a directory of segmentations
type ConvertCmd struct {
	Source      string  `arg:"" type:"existingdir" help:"Directory containing *.nii.gz label volumes"`
	Destination string  `arg:"" help:"Directory receiving one subdirectory of meshes per volume"`
	Config      string  `help:"YAML configuration file (defaults apply when absent)" short:"c" type:"path"`
	Iterations  int     `help:"Override the number of smoothing iterations"`
	PassBand    float64 `help:"Override the smoothing pass band (0 < f < 2)" name:"pass-band"`
	Coordinates string  `help:"Override the mesh coordinate frame (LPS or RAS)"`
	Binary      bool    `help:"Write binary instead of ASCII STL"`
	SaveMasks   bool    `help:"Also write every label mask as NIfTI under <name>/masks" name:"save-masks"`
	Verbose     bool    `help:"Print one line per label" short:"v"`
}

func (c *ConvertCmd) loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if c.Config != "" {
		var err error
		if cfg, err = config.LoadConfig(c.Config); err != nil {
			return nil, err
		}
	}

	if c.Iterations != 0 {
		cfg.Smoothing.Iterations = c.Iterations
	}
	if c.PassBand != 0 {
		cfg.Smoothing.PassBand = c.PassBand
	}
	if c.Coordinates != "" {
		cfg.Input.Coordinates = c.Coordinates
	}
	if c.Binary {
		cfg.Output.Format = stl.Binary.String()
	}
	cfg.Output.SaveMasks = cfg.Output.SaveMasks || c.SaveMasks
	cfg.Output.Verbose = cfg.Output.Verbose || c.Verbose

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	return cfg, nil
}

func (c *ConvertCmd) Run() error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	ui.PrintTitle("niftitostl")
	ui.PrintKeyValue("Source", c.Source)
	ui.PrintKeyValue("Destination", c.Destination)
	ui.PrintKeyValue("Smoothing", fmt.Sprintf("%d iterations, pass band %g", cfg.Smoothing.Iterations, cfg.Smoothing.PassBand))

	if err := os.MkdirAll(c.Destination, 0755); err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}

	converter := conversion.NewConverter(&conversion.Params{
		SourceDir: c.Source,
		DestDir:   c.Destination,
		Config:    cfg,
		Output:    ui.Writer(),
		OnFile: func(path string) {
			ui.PrintStep("Generating stls for: " + path)
		},
	})

	start := time.Now()
	err = converter.Process()
	results := converter.Results()
	if err != nil {
		if len(results) > 0 {
			ui.PrintWarning(fmt.Sprintf("%d files converted before the failure", len(results)))
		}
		return err
	}

	if len(results) == 0 {
		ui.PrintWarning("No input files matched " + cfg.Input.Pattern)
		return nil
	}

	var meshes, triangles int
	var size int64
	for _, r := range results {
		meshes += len(r.Meshes)
		triangles += r.Triangles()
		size += r.Bytes()
	}
	ui.PrintSuccess(fmt.Sprintf("Converted %d files into %d meshes in %.2f seconds",
		len(results), meshes, time.Since(start).Seconds()))
	for _, r := range results {
		ui.PrintInfo(fmt.Sprintf("%s: %d meshes, %s", r.OutputDir, len(r.Meshes), ui.FormatBytes(r.Bytes())))
	}
	ui.PrintKeyValue("Triangles", ui.FormatCount(triangles))
	ui.PrintKeyValue("Written", ui.FormatBytes(size))
	return nil
}

// InspectCmd summarizes an STL file
type InspectCmd struct {
	File string `arg:"" type:"existingfile" help:"STL file to inspect"`
}

func (c *InspectCmd) Run() error {
	solid, err := stl.ParseFile(c.File)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", c.File, err)
	}
	info, err := os.Stat(c.File)
	if err != nil {
		return err
	}

	box := solid.Bounds()
	ui.PrintHeader(c.File)
	ui.PrintKeyValue("Solid", solid.Name)
	ui.PrintKeyValue("Format", solid.Format.String())
	ui.PrintKeyValue("Size", ui.FormatBytes(info.Size()))
	ui.PrintKeyValue("Triangles", ui.FormatCount(len(solid.Triangles)))
	ui.PrintKeyValue("Min", fmt.Sprintf("%.3f %.3f %.3f", box.Min.X, box.Min.Y, box.Min.Z))
	ui.PrintKeyValue("Max", fmt.Sprintf("%.3f %.3f %.3f", box.Max.X, box.Max.Y, box.Max.Z))
	ui.PrintKeyValue("Extent", fmt.Sprintf("%.3f x %.3f x %.3f",
		box.Max.X-box.Min.X, box.Max.Y-box.Min.Y, box.Max.Z-box.Min.Z))
	return nil
}

// SlicesCmd exports label slices for visual checks
type SlicesCmd struct {
	File   string `arg:"" type:"existingfile" help:"NIfTI label volume"`
	OutDir string `arg:"" help:"Directory receiving the PNG slices"`
	Axis   string `help:"Axis perpendicular to the slices" enum:"x,y,z" default:"z"`
}

func (c *SlicesCmd) Run() error {
	vol, err := nifti.ReadFile(c.File, nifti.LPS)
	if err != nil {
		return err
	}

	viewer := visualization.NewViewer(vol)
	n, err := viewer.SaveSliceSequence(c.Axis, c.OutDir)
	if err != nil {
		return fmt.Errorf("failed to save %s-axis slices: %w", c.Axis, err)
	}

	ui.PrintSuccess(fmt.Sprintf("Saved %d %s-axis slices to %s", n, c.Axis, c.OutDir))
	for _, label := range labels.Foreground(vol.Data) {
		col := visualization.LabelColor(label)
		ui.PrintItem(fmt.Sprintf("label %s: #%02x%02x%02x, %s voxels", labels.Format(label),
			col.R, col.G, col.B, ui.FormatCount(labels.Count(vol.Data, label))))
	}
	return nil
}

// ConfigCmd shows or initializes the configuration
type ConfigCmd struct {
	Init    string `help:"Write the default configuration to this path and exit" type:"path"`
	File    string `arg:"" optional:"" help:"Configuration file to show (defaults apply when absent)" type:"path"`
	NoColor bool   `help:"Disable syntax highlighting" name:"no-color"`
}

func (c *ConfigCmd) Run() error {
	if c.Init != "" {
		if err := config.CreateDefaultConfigFile(c.Init); err != nil {
			return err
		}
		ui.PrintSuccess("Wrote default configuration to " + c.Init)
		return nil
	}

	cfg := config.DefaultConfig()
	if c.File != "" {
		var err error
		if cfg, err = config.LoadConfig(c.File); err != nil {
			return err
		}
	}
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	return ui.PrintYAML(string(data), !c.NoColor)
}
