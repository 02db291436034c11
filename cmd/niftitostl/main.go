package main

import (
	"os"

	"github.com/alecthomas/kong"

	"niftitostl/pkg/ui"
)

// CLI is the command line of niftitostl
type CLI struct {
	Convert *ConvertCmd `cmd:"" help:"Convert every label volume in a directory into per-label STL meshes"`
	Inspect *InspectCmd `cmd:"" help:"Show triangle count and extents of an STL file"`
	Slices  *SlicesCmd  `cmd:"" help:"Export colour-coded label slices of a volume as PNG"`
	Config  *ConfigCmd  `cmd:"" help:"Print the effective configuration or write the default one"`
}

func newParser(cli *CLI, options ...kong.Option) (*kong.Kong, error) {
	options = append([]kong.Option{
		kong.Name("niftitostl"),
		kong.Description("Turn multi-label NIfTI segmentations into smoothed STL surfaces, one per label."),
		kong.UsageOnError(),
	}, options...)
	return kong.New(cli, options...)
}

func main() {
	cli := &CLI{}
	parser, err := newParser(cli)
	if err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}

	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	if err := ctx.Run(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
