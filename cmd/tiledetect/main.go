// Command tiledetect runs tiled object detection on image files and writes
// the results as annotated images and JSON reports.
//
// Model files can be given in any order; their roles are worked out from the
// extensions. Defaults for the flags can be placed in a .env file or the
// environment using the TILEDETECT_MODEL and TILEDETECT_NAMES variables.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/visionkit/tiledetect/detectors"
	"github.com/visionkit/tiledetect/inference"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is fine; flags and the environment still apply.
	_ = godotenv.Load()

	var (
		modelPath = flag.String("model", os.Getenv("TILEDETECT_MODEL"), "path to the .onnx model file")
		namesPath = flag.String("names", os.Getenv("TILEDETECT_NAMES"), "path to the class names file")
		threshold = flag.Float64("threshold", 0.5, "detection confidence threshold")
		nms       = flag.Float64("nms", 0.45, "per-tile suppression IoU threshold")
		tiles     = flag.Bool("tiles", false, "split large images into tiles")
		snap      = flag.Bool("snap", false, "align nearby detection edges after merging")
		pixelate  = flag.Bool("pixelate", false, "pixelate detected regions in the annotated image")
		outDir    = flag.String("out", "", "directory for annotated images and JSON reports (default: next to the input)")
		jsonOnly  = flag.Bool("json-only", false, "write only the JSON report, no annotated image")
		verbose   = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	if *modelPath == "" {
		return fmt.Errorf("no model given; use -model or TILEDETECT_MODEL")
	}
	if flag.NArg() == 0 {
		return fmt.Errorf("no input images given")
	}

	paths := []string{*modelPath}
	if *namesPath != "" {
		paths = append(paths, *namesPath)
	}
	files, err := inference.ResolveModelFiles(paths...)
	if err != nil {
		return err
	}

	var names []string
	if files.Names != "" {
		if names, err = inference.LoadNames(files.Names); err != nil {
			return err
		}
	}

	backend, err := detectors.NewONNX(detectors.ONNXConfig{
		ModelPath: files.Model,
		Names:     names,
	})
	if err != nil {
		return err
	}

	session, err := inference.NewSession(backend, files)
	if err != nil {
		backend.Close()
		return err
	}
	defer session.Close()
	session.SetLogger(log)

	session.SetThreshold(float32(*threshold))
	session.SetNMSThreshold(float32(*nms))
	session.SetEnableTiles(*tiles)
	session.SetSnapping(*snap)
	session.SetAnnotationPixelate(*pixelate)

	ctx := context.Background()
	for _, input := range flag.Args() {
		if err := process(ctx, session, input, *outDir, *jsonOnly, log); err != nil {
			return err
		}
	}
	return nil
}

func process(ctx context.Context, session *inference.Session, input, outDir string, jsonOnly bool, log *slog.Logger) error {
	set, err := session.InferFile(ctx, input)
	if err != nil {
		return err
	}
	log.Info("processed image",
		"file", input,
		"detections", set.Count(),
		"dropped", set.Dropped,
		"duration", set.Duration)
	fmt.Println(set.String())

	base := strings.TrimSuffix(input, filepath.Ext(input))
	if outDir != "" {
		base = filepath.Join(outDir, filepath.Base(base))
	}

	report, err := session.ResultsJSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(base+".json", report, 0o644); err != nil {
		return err
	}

	if jsonOnly {
		return nil
	}

	return session.AnnotateToFile(base + "_annotated.png")
}
