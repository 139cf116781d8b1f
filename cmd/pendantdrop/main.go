package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"pendantdrop/internal/models"
	"pendantdrop/pkg/acquisition"
	"pendantdrop/pkg/analysis"
	"pendantdrop/pkg/config"
	"pendantdrop/pkg/physics"
	"pendantdrop/pkg/visualization"
	"pendantdrop/pkg/younglaplace"
)

func main() {
	// Parse command line arguments
	input := flag.String("input", "", "Directory containing drop images, or a single image file")
	annotationsPath := flag.String("annotations", "", "YAML file with precomputed contour annotations")
	configPath := flag.String("config", "pendantdrop.yaml", "Configuration file")
	overlayDir := flag.String("overlay-dir", "", "Directory to save fit overlays (empty: disabled)")
	flag.Parse()

	// Validate inputs
	if *input == "" || *annotationsPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	annotations, err := loadAnnotations(*annotationsPath)
	if err != nil {
		log.Fatalf("Failed to load annotations: %v", err)
	}

	paths, err := collectImagePaths(*input)
	if err != nil {
		log.Fatalf("Failed to collect input images: %v", err)
	}

	storage := acquisition.NewLocalStorage(cfg.Acquisition.FrameInterval)
	if err := storage.LoadImagePaths(paths); err != nil {
		log.Fatalf("Failed to load images: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("PENDANT DROP TENSIOMETRY")
	fmt.Printf("Analysing %d frame(s) from %s\n", len(storage.LoadedPaths()), *input)
	fmt.Println("================================")

	for i, scheduled := range storage.ScheduledImages() {
		fmt.Printf("\nFrame %d:\n", i)
		runOne(cfg, annotations, scheduled, *overlayDir, i)
	}
}

// runOne drives a single drop analysis to its terminal state and reports
// the derived quantities.
func runOne(cfg *config.Config, annotations analysis.ImageAnnotations,
	scheduled analysis.ScheduledImage, overlayDir string, index int) {

	phys := analysis.PhysicalParameters{
		InnerDensity: cfg.Physical.InnerDensity,
		OuterDensity: cfg.Physical.OuterDensity,
		NeedleWidth:  cfg.Physical.NeedleWidth,
		Gravity:      cfg.Physical.Gravity,
	}

	// The fit runs in pixel units; the physics formulas expect metres, so
	// the apex radius is rescaled on the way through.
	mPerPx := annotations.MPerPx

	a := analysis.New(context.Background(), analysis.Config{
		ScheduledImage:     scheduled,
		PhysicalParameters: phys,
		Annotate: func(image.Image) (analysis.ImageAnnotations, error) {
			return annotations, nil
		},
		CreateFit: func(contour []models.Point2, hint younglaplace.Hint) (analysis.FitEngine, error) {
			hint.ObjectiveTol = cfg.Fit.ObjectiveTol
			hint.MaxIterations = cfg.Fit.MaxIterations
			hint.ProfileStep = cfg.Fit.ProfileStep
			return younglaplace.NewFit(contour, hint)
		},
		Tension: func(in, out, bond, radiusPx, g float64) float64 {
			return physics.InterfacialTension(in, out, bond, radiusPx*mPerPx, g)
		},
		Volume: func(domain, bond, radiusPx float64) float64 {
			return physics.Volume(domain, bond, radiusPx*mPerPx)
		},
		SurfaceArea: func(domain, bond, radiusPx float64) float64 {
			return physics.SurfaceArea(domain, bond, radiusPx*mPerPx)
		},
		Worthington: physics.Worthington,
	})

	status := awaitTerminal(a)
	fmt.Printf("  Status: %v\n", status)
	if status != analysis.StatusFinished {
		return
	}

	fmt.Printf("  Bond number:         %.4f\n", a.BondNumber.Get())
	fmt.Printf("  Apex radius:         %.4f mm\n", a.ApexRadius.Get()*mPerPx*1e3)
	fmt.Printf("  Apex position:       %v px\n", a.ApexCoordsPx.Get())
	fmt.Printf("  Interfacial tension: %.3f mN/m\n", a.InterfacialTension.Get()*1e3)
	fmt.Printf("  Volume:              %.4f uL\n", a.Volume.Get()*1e9)
	fmt.Printf("  Surface area:        %.4f mm^2\n", a.SurfaceArea.Get()*1e6)
	fmt.Printf("  Worthington number:  %.4f\n", a.Worthington.Get())
	fmt.Printf("  Objective:           %.6f px^2\n", a.Objective.Get())

	if overlayDir == "" {
		return
	}

	fitted, err := a.GenerateDropContourFit(cfg.Output.OverlaySamples)
	if err != nil {
		log.Printf("Warning: failed to generate fitted contour: %v", err)
		return
	}
	overlay := visualization.NewOverlay(a.Image.Get()).
		Render(annotations.DropContourPx, fitted, a.ApexCoordsPx.Get())
	path := filepath.Join(overlayDir, fmt.Sprintf("overlay_%03d.png", index))
	if err := visualization.Save(overlay, path); err != nil {
		log.Printf("Warning: failed to save overlay: %v", err)
		return
	}
	if cfg.Output.Verbose {
		fmt.Printf("  Overlay saved to:    %s\n", path)
	}
}

// awaitTerminal blocks until the analysis reaches a terminal status.
func awaitTerminal(a *analysis.DropAnalysis) analysis.Status {
	for {
		changed := a.Status.Changed()
		if s := a.Status.Get(); s.Terminal() {
			return s
		}
		<-changed
	}
}

// collectImagePaths expands a directory into its entries, or passes a
// file path through unchanged.
func collectImagePaths(input string) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{input}, nil
	}

	entries, err := os.ReadDir(input)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			paths = append(paths, filepath.Join(input, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no image files in %s", input)
	}
	return paths, nil
}

// annotationsFile is the YAML schema for precomputed annotations.
// Contour detection itself is upstream of this tool.
type annotationsFile struct {
	MPerPx         float64      `yaml:"mPerPx"`
	DropRegionPx   rectYAML     `yaml:"dropRegionPx"`
	NeedleRegionPx rectYAML     `yaml:"needleRegionPx"`
	DropContourPx  [][2]float64 `yaml:"dropContourPx"`

	NeedleContoursPx [2][][2]float64 `yaml:"needleContoursPx"`
}

type rectYAML struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	W float64 `yaml:"w"`
	H float64 `yaml:"h"`
}

// loadAnnotations reads a contour annotation file.
func loadAnnotations(path string) (analysis.ImageAnnotations, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return analysis.ImageAnnotations{}, fmt.Errorf("error reading annotations file: %w", err)
	}

	var raw annotationsFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return analysis.ImageAnnotations{}, fmt.Errorf("error parsing annotations file: %w", err)
	}
	if raw.MPerPx <= 0 {
		return analysis.ImageAnnotations{}, fmt.Errorf("annotations file must set a positive mPerPx")
	}
	if len(raw.DropContourPx) == 0 {
		return analysis.ImageAnnotations{}, fmt.Errorf("annotations file has an empty drop contour")
	}

	ann := analysis.ImageAnnotations{
		MPerPx:         raw.MPerPx,
		DropRegionPx:   models.Rect2{X: raw.DropRegionPx.X, Y: raw.DropRegionPx.Y, W: raw.DropRegionPx.W, H: raw.DropRegionPx.H},
		NeedleRegionPx: models.Rect2{X: raw.NeedleRegionPx.X, Y: raw.NeedleRegionPx.Y, W: raw.NeedleRegionPx.W, H: raw.NeedleRegionPx.H},
		DropContourPx:  toPoints(raw.DropContourPx),
	}
	ann.NeedleContoursPx[0] = toPoints(raw.NeedleContoursPx[0])
	ann.NeedleContoursPx[1] = toPoints(raw.NeedleContoursPx[1])
	return ann, nil
}

func toPoints(raw [][2]float64) []models.Point2 {
	pts := make([]models.Point2, len(raw))
	for i, p := range raw {
		pts[i] = models.Point2{X: p[0], Y: p[1]}
	}
	return pts
}
