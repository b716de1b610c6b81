// meshconv converts RSM models into OBJ/MTL or GLB files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/meshconv/internal/config"
	"github.com/Faultbox/meshconv/internal/convert"
	"github.com/Faultbox/meshconv/internal/fsutil"
	"github.com/Faultbox/meshconv/internal/logger"
	"github.com/Faultbox/meshconv/pkg/grf"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "obj":
		err = cmdConvert(convert.FormatOBJ, args)
	case "glb":
		err = cmdConvert(convert.FormatGLB, args)
	case "info":
		err = cmdInfo(args)
	case "inspect":
		err = cmdInspect(args)
	case "list", "ls":
		err = cmdList(args)
	case "extract", "x":
		err = cmdExtract(args)
	case "init-config":
		err = cmdInitConfig(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`meshconv - RSM model converter

Usage:
  meshconv <command> [options] <args>

Commands:
  obj <input> <out.obj>          Convert to OBJ with an MTL companion
  glb <input> <out.glb>          Convert to binary glTF
  info <input>                   List the mesh instances of a model
  inspect <file.obj|file.glb>    Summarise a converted file
  list <file.grf> [pattern]      List archive entries
  extract <file.grf> <path> [dir] Extract archive entries
  init-config [path]             Write the default config file
  help                           Show this help

Input is a .rsm file or an archive entry written as archive.grf:data/model/x.rsm

Options (obj, glb, info):
  -config <path>     Config file (default: <config dir>/meshconv/meshconv.yaml)
  -scale <n>         Uniform scale (default: 50)
  -normals <policy>  legacy or corrected
  -two-sided         Emit back faces for every face
  -no-dedup          Skip GLB dedup
  -debug             Debug logging
  -log-file <path>   Also log to file

Examples:
  meshconv obj fountain.rsm fountain.obj
  meshconv glb data.grf:data/model/prontera/fountain.rsm fountain.glb
  meshconv list data.grf "*.rsm"
  meshconv inspect fountain.glb`)
}

// setup parses the shared flags, loads the config and starts the logger.
func setup(name string, args []string, minArgs int, usage string) (*flag.FlagSet, *config.Config, error) {
	var flags config.Flags
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	flags.Register(fs)
	fs.Parse(args)

	if fs.NArg() < minArgs {
		fmt.Fprintln(os.Stderr, "Usage: meshconv "+usage)
		os.Exit(1)
	}

	cfg, err := config.Load(&flags)
	if err != nil {
		return nil, nil, err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return nil, nil, err
	}
	logger.Debug("config loaded",
		zap.Float32("scale", cfg.Conversion.ScaleFactor),
		zap.String("normals", cfg.Conversion.NormalPolicy),
		zap.Bool("dedup", cfg.Output.Dedup),
	)
	return fs, cfg, nil
}

func cmdConvert(format convert.Format, args []string) error {
	fs, cfg, err := setup(format.String(), args, 2, format.String()+" [options] <input> <out."+format.String()+">")
	if err != nil {
		return err
	}
	defer logger.Sync()

	output := fs.Arg(1)
	if got, err := convert.FormatFromPath(output); err != nil || got != format {
		return fmt.Errorf("output %s is not a .%s file", output, format)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := convert.Run(ctx, fs.Arg(0), output, format, convert.OptionsFromConfig(cfg), logger.Log)
	if err != nil {
		return err
	}

	fmt.Printf("Wrote %s\n", res.Output)
	fmt.Printf("  Meshes:    %d\n", res.Records)
	fmt.Printf("  Vertices:  %d\n", res.Vertices)
	fmt.Printf("  Triangles: %d\n", res.Triangles)
	if res.Skipped > 0 {
		fmt.Printf("  Skipped:   %d (empty)\n", res.Skipped)
	}
	if res.Failed > 0 {
		fmt.Fprintf(os.Stderr, "\n%d instances failed:\n", res.Failed)
		for _, e := range multierr.Errors(res.Err) {
			fmt.Fprintf(os.Stderr, "  %v\n", e)
		}
	}
	return nil
}

func cmdInfo(args []string) error {
	fs, cfg, err := setup("info", args, 1, "info [options] <input>")
	if err != nil {
		return err
	}
	defer logger.Sync()

	opts := convert.OptionsFromConfig(cfg).Source
	opts.Logger = logger.Named("rsm")
	src, err := convert.Open(fs.Arg(0), opts)
	if err != nil {
		return err
	}
	defer src.Close()

	model := src.Model()
	fmt.Printf("Input:     %s\n", fs.Arg(0))
	fmt.Printf("Version:   %s\n", model.Version)
	fmt.Printf("Root:      %s\n", model.RootNode)
	fmt.Printf("Nodes:     %d\n", len(model.Nodes))
	fmt.Printf("Textures:  %d\n", len(model.Textures))
	fmt.Printf("Vertices:  %d\n", model.TotalVertexCount())
	fmt.Printf("Faces:     %d\n", model.TotalFaceCount())
	fmt.Printf("Animated:  %v\n", model.HasAnimation())
	fmt.Printf("Instances: %d\n\n", src.InstanceCount())

	fmt.Printf("%-12s %-20s %-28s %9s  %s\n", "NAME", "NODE", "TEXTURE", "TRIANGLES", "COLOR")
	for _, in := range src.Describe() {
		fmt.Printf("%-12s %-20s %-28s %9d  %.2f %.2f %.2f %.2f\n",
			in.Name, in.Node, in.Texture, in.Triangles, in.Color.R, in.Color.G, in.Color.B, in.Color.A)
	}
	return nil
}

func cmdInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: meshconv inspect <file.obj|file.glb>")
		os.Exit(1)
	}

	for _, path := range fs.Args() {
		summary, err := convert.Inspect(path)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", path, summary)
	}
	return nil
}

func cmdList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	ext := fs.String("ext", "", "Filter by extension (e.g., .rsm)")
	limit := fs.Int("n", 0, "Limit output (0 = all)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: meshconv list [-ext .rsm] [-n limit] <file.grf> [pattern]")
		os.Exit(1)
	}

	archive, err := grf.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer archive.Close()

	files, err := archive.Match(fs.Arg(1))
	if err != nil {
		return err
	}

	count := 0
	for _, f := range files {
		if *ext != "" && !strings.EqualFold(filepath.Ext(f), *ext) {
			continue
		}
		fmt.Println(f)
		count++
		if *limit > 0 && count >= *limit {
			fmt.Fprintf(os.Stderr, "\n(showing first %d, use -n 0 for all)\n", *limit)
			return nil
		}
	}
	fmt.Fprintf(os.Stderr, "\n(%d files)\n", count)
	return nil
}

func cmdExtract(args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: meshconv extract <file.grf> <path|pattern> [output_dir]")
		os.Exit(1)
	}

	outputDir := "."
	if fs.NArg() > 2 {
		outputDir = fs.Arg(2)
	}

	archive, err := grf.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer archive.Close()

	names := []string{fs.Arg(1)}
	if strings.ContainsAny(fs.Arg(1), "*?[") {
		if names, err = archive.Match(fs.Arg(1)); err != nil {
			return err
		}
	}

	var errs error
	extracted := 0
	for _, name := range names {
		data, err := archive.Read(name)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		out := filepath.Join(outputDir, filepath.FromSlash(name))
		if len(names) == 1 {
			out = filepath.Join(outputDir, filepath.Base(filepath.FromSlash(name)))
		}
		if err := fsutil.WriteFile(out, data); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		fmt.Printf("Extracted: %s (%d bytes)\n", out, len(data))
		extracted++
	}

	fmt.Fprintf(os.Stderr, "\nExtracted %d files\n", extracted)
	return errs
}

func cmdInitConfig(args []string) error {
	fs := flag.NewFlagSet("init-config", flag.ExitOnError)
	force := fs.Bool("f", false, "Overwrite an existing file")
	fs.Parse(args)

	cfg := config.Default()
	path := fs.Arg(0)
	if path == "" {
		path = config.DefaultPath()
	}
	if _, err := os.Stat(path); err == nil && !*force {
		return fmt.Errorf("%s exists, use -f to overwrite", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	var err error
	if fs.Arg(0) == "" {
		err = cfg.Save()
	} else {
		err = cfg.SaveTo(path)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}
