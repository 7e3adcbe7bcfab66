// bwtool is a CLI utility for compiling sector scenes to .bw worlds and back.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/Faultbox/sectorforge/internal/compile"
	"github.com/Faultbox/sectorforge/internal/concave"
	"github.com/Faultbox/sectorforge/internal/config"
	"github.com/Faultbox/sectorforge/internal/connect"
	"github.com/Faultbox/sectorforge/internal/facesplit"
	"github.com/Faultbox/sectorforge/internal/logger"
	"github.com/Faultbox/sectorforge/internal/sector"
	"github.com/Faultbox/sectorforge/pkg/bw"
)

func main() {
	flag.Usage = printUsage
	config.ParseFlags()
	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	command := flag.Arg(0)
	args := flag.Args()[1:]

	code := 0
	switch command {
	case "export":
		code = cmdExport(cfg, args)
	case "import":
		code = cmdImport(cfg, args)
	case "info":
		code = cmdInfo(args)
	case "decompose":
		code = cmdDecompose(cfg, args)
	case "connect":
		code = cmdConnect(cfg, args)
	case "config":
		code = cmdConfig(cfg, args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		code = 1
	}
	logger.Sync()
	os.Exit(code)
}

func printUsage() {
	fmt.Println(`bwtool - sector geometry compiler for .bw worlds

Usage:
  bwtool [global options] <command> [options]

Commands:
  export [-connect] [-decompose] <scene.yaml> <out.bw>   Compile a scene
  import <in.bw> [scene.yaml]                            Decode a world
  info <file.bw>                                         Show world contents
  decompose <scene.yaml> [out.yaml]                      Split concave sectors
  connect <scene.yaml> [out.yaml]                        Link shared walls
  config [-save] [-o <path>]                             Show or write the settings

Global options:
  -config <path>   Config file (default ./sectorforge.yaml)
  -debug           Enable debug logging
  -log <path>      Also write logs to this file
  -tol <value>     Geometry tolerance
  -texture <name>  Default texture name
  -no-fixups       Skip the repair passes after import

Examples:
  bwtool export -connect level.yaml level.bw
  bwtool import level.bw level.yaml
  bwtool info level.bw
  bwtool -tol 0.001 config -o sectorforge.yaml`)
}

func compileOptions(cfg *config.Config) compile.Options {
	g := cfg.Geometry
	opt := compile.DefaultOptions()
	opt.Split = facesplit.Options{Tol: g.Tolerance, NormalEps: g.NormalEpsilon}
	opt.Connect = connectOptions(cfg)
	opt.Meta = bw.Metadata{Tool: cfg.Export.Tool, Version: cfg.Export.Version, URL: cfg.Export.URL}
	opt.SkyTexture = cfg.Export.SkyTexture
	opt.Fixups = cfg.Import.Fixups
	opt.Progress = func(pct float64) {
		fmt.Fprintf(os.Stderr, "\r%3.0f%%", pct)
		if pct >= 100 {
			fmt.Fprintln(os.Stderr)
		}
	}
	return opt
}

func connectOptions(cfg *config.Config) connect.Options {
	g := cfg.Geometry
	return connect.Options{Tol: g.Tolerance, NormalEps: g.NormalEpsilon, AreaTol: g.AreaTolerance}
}

func concaveOptions(cfg *config.Config) concave.Options {
	g := cfg.Geometry
	return concave.Options{Tol: g.Tolerance, ConvexEps: g.ConvexEpsilon, NormalTol: g.ProjectTol}
}

// loadScene reads a scene into a fresh registry.
func loadScene(cfg *config.Config, path string) (*sector.Registry, error) {
	sc, err := compile.LoadScene(path)
	if err != nil {
		return nil, err
	}
	r := sector.NewRegistry(cfg.Export.DefaultTexture)
	if _, err := sc.Apply(r); err != nil {
		return nil, err
	}
	return r, nil
}

func cmdExport(cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	link := fs.Bool("connect", false, "Link shared walls before export")
	split := fs.Bool("decompose", false, "Split concave sectors before export")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: bwtool export [-connect] [-decompose] <scene.yaml> <out.bw>")
		return 1
	}

	r, err := loadScene(cfg, fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *split {
		rep, err := concave.Run(r, nil, concaveOptions(cfg), connectOptions(cfg))
		fmt.Printf("Decompose: %s\n", rep)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}
	if *link {
		res, dropped, err := connect.Link(r, connectOptions(cfg))
		fmt.Printf("Connect:   %d exact, %d clipped, %d dropped\n", res.Exact, res.Clipped, dropped)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}

	stats, err := compile.ExportSectors(r, nil, fs.Arg(1), compileOptions(cfg))
	fmt.Printf("World:     %s\n", fs.Arg(1))
	fmt.Printf("Sectors:   %d\n", stats.Sectors)
	fmt.Printf("Faces:     %d\n", stats.Faces)
	fmt.Printf("Vertices:  %d\n", stats.Vertices)
	if err != nil {
		for _, name := range stats.Failed {
			fmt.Printf("Failed:    %s\n", name)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func cmdImport(cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: bwtool import <in.bw> [scene.yaml]")
		return 1
	}

	r := sector.NewRegistry(cfg.Export.DefaultTexture)
	res, err := compile.ImportBW(fs.Arg(0), r, compileOptions(cfg))
	if res == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Printf("Sectors:   %d\n", len(res.Sectors))
	fmt.Printf("Textures:  %d\n", r.Textures.Len())
	for _, name := range res.NeedsFix {
		fmt.Printf("Needs fix: %s\n", name)
	}
	for _, name := range res.Abnormal {
		fmt.Printf("Abnormal:  %s\n", name)
	}
	if fs.NArg() > 1 {
		if serr := compile.SceneFrom(r, nil).Save(fs.Arg(1)); serr != nil {
			fmt.Fprintf(os.Stderr, "Error writing scene: %v\n", serr)
			return 1
		}
		fmt.Printf("Scene:     %s\n", fs.Arg(1))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func cmdInfo(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: bwtool info <file.bw>")
		return 1
	}

	f, err := bw.ParseFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Printf("World:     %s\n", args[0])
	fmt.Printf("Tool:      %s %s\n", f.Meta.Tool, f.Meta.Version)
	fmt.Printf("Sectors:   %d\n", len(f.Sectors))
	fmt.Printf("Faces:     %d\n", f.FaceCount())
	fmt.Printf("Vertices:  %d\n", len(f.Vertices))
	fmt.Printf("Lights:    %d external, %d bulbs\n", len(f.ExtLights), len(f.Bulbs))
	fmt.Println()
	fmt.Println("Faces by type:")

	counts := f.CountByType()
	types := make([]bw.FaceType, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	for _, t := range types {
		fmt.Printf("  %d %-8s %d\n", uint32(t), t, counts[t])
	}
	return 0
}

func cmdDecompose(cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("decompose", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: bwtool decompose <scene.yaml> [out.yaml]")
		return 1
	}

	r, err := loadScene(cfg, fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	rep, err := concave.Run(r, nil, concaveOptions(cfg), connectOptions(cfg))
	fmt.Printf("Decompose: %s\n", rep)
	for _, name := range rep.Complex {
		fmt.Printf("Complex:   %s\n", name)
	}
	for _, name := range rep.NeedsFix {
		fmt.Printf("Needs fix: %s\n", name)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return saveScene(r, fs.Arg(1))
}

func cmdConnect(cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("connect", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: bwtool connect <scene.yaml> [out.yaml]")
		return 1
	}

	r, err := loadScene(cfg, fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	res, dropped, err := connect.Link(r, connectOptions(cfg))
	fmt.Printf("Connect:   %d exact, %d clipped, %d dropped\n", res.Exact, res.Clipped, dropped)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return saveScene(r, fs.Arg(1))
}

func cmdConfig(cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	save := fs.Bool("save", false, "Write the settings to the user config directory")
	out := fs.String("o", "", "Write the settings to this file")
	fs.Parse(args)

	switch {
	case *out != "":
		if err := cfg.SaveTo(*out); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Printf("Config:    %s\n", *out)
	case *save:
		path, err := cfg.Save()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Printf("Config:    %s\n", path)
	default:
		if err := cfg.Encode(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}
	return 0
}

// saveScene writes r to path; an empty path writes nothing.
func saveScene(r *sector.Registry, path string) int {
	if path == "" {
		return 0
	}
	if err := compile.SceneFrom(r, nil).Save(path); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing scene: %v\n", err)
		return 1
	}
	fmt.Printf("Scene:     %s\n", path)
	return 0
}
