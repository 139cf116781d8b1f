// Package analysis orchestrates one pendant-drop measurement: it awaits a
// scheduled image, annotates it, drives a Young-Laplace fit over the drop
// contour and republishes the fitted parameters and every derived physical
// quantity as they change.
package analysis

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync"

	"pendantdrop/internal/models"
	"pendantdrop/pkg/bindable"
	"pendantdrop/pkg/younglaplace"
)

// DropAnalysis is a single per-image analysis run. All observable fields
// are written from the orchestration goroutine; consumers read them or
// wait on them from anywhere.
//
// Within one parameter-change cycle the observables update in a fixed
// order: apex pixel coordinates, apex rotation, apex radius, bond number,
// objective, then interfacial tension, then volume and surface area, then
// Worthington number, and finally DropContourFitChanged fires. Dispatch is
// synchronous, so by the time any one notification for a cycle is
// observed, all of the cycle's writes have been issued.
type DropAnalysis struct {
	Status         *bindable.Value[Status]
	Image          *bindable.Value[image.Image]
	ImageTimestamp *bindable.Value[float64]
	Annotations    *bindable.Value[ImageAnnotations]

	Objective          *bindable.Value[float64]
	BondNumber         *bindable.Value[float64]
	InterfacialTension *bindable.Value[float64]
	Volume             *bindable.Value[float64]
	SurfaceArea        *bindable.Value[float64]
	Worthington        *bindable.Value[float64]
	ApexCoordsPx       *bindable.Value[image.Point]
	ApexRot            *bindable.Value[float64]
	ApexRadius         *bindable.Value[float64]

	// DropContourFitChanged fires once per parameter-change cycle, after
	// every derived value has been republished.
	DropContourFitChanged *bindable.Event

	cfg Config

	mu          sync.Mutex
	cancelled   bool
	processing  bool
	frame       models.Frame
	annotations *ImageAnnotations
	fit         FitEngine
	imageHeight int
	residuals   []float64
	unsubscribe func()
}

// New creates a drop analysis in StatusWaitingForImage and starts the
// orchestration goroutine. The context bounds the scheduled-image read;
// the analysis itself imposes no deadline.
func New(ctx context.Context, cfg Config) *DropAnalysis {
	a := &DropAnalysis{
		Status:         bindable.NewValue(StatusWaitingForImage),
		Image:          bindable.NewValue[image.Image](nil),
		ImageTimestamp: bindable.NewValue(0.0),
		Annotations:    bindable.NewValue(ImageAnnotations{}),

		Objective:          bindable.NewValue(0.0),
		BondNumber:         bindable.NewValue(0.0),
		InterfacialTension: bindable.NewValue(0.0),
		Volume:             bindable.NewValue(0.0),
		SurfaceArea:        bindable.NewValue(0.0),
		Worthington:        bindable.NewValue(0.0),
		ApexCoordsPx:       bindable.NewValue(image.Point{}),
		ApexRot:            bindable.NewValue(0.0),
		ApexRadius:         bindable.NewValue(0.0),

		DropContourFitChanged: bindable.NewEvent(),

		cfg: cfg,
	}
	go a.run(ctx)
	return a
}

// run is the image-arrival transition: await the capture, annotate it and
// hand over to the fit.
func (a *DropAnalysis) run(ctx context.Context) {
	frame, err := a.cfg.ScheduledImage.Read(ctx)

	a.mu.Lock()
	if a.cancelled {
		// Cancelled while waiting: the status is already terminal and no
		// further property may be written.
		a.mu.Unlock()
		return
	}
	a.processing = true
	a.mu.Unlock()

	if err != nil {
		a.Status.Set(StatusUnexpectedException)
		return
	}

	a.Image.Set(frame.Image)
	a.ImageTimestamp.Set(frame.Timestamp)

	annotations, err := a.annotate(frame.Image)
	if err != nil {
		a.Status.Set(StatusUnexpectedException)
		return
	}

	a.mu.Lock()
	a.frame = frame
	a.annotations = &annotations
	a.mu.Unlock()
	a.Annotations.Set(annotations)

	if err := a.startFit(); err != nil {
		a.Status.Set(StatusUnexpectedException)
	}
}

// annotate invokes the annotation strategy, converting panics into errors
// so a faulty annotator terminates the analysis instead of the process.
func (a *DropAnalysis) annotate(img image.Image) (ann ImageAnnotations, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("annotate image: %v", r)
		}
	}()
	return a.cfg.Annotate(img)
}

// startFit transforms the drop contour into the fit frame, creates the fit
// engine and launches its optimiser. It fails with ErrNotReady before both
// the image and its annotations are available, leaving the status
// untouched.
func (a *DropAnalysis) startFit() error {
	a.mu.Lock()
	if a.fit != nil {
		a.mu.Unlock()
		return fmt.Errorf("%w: fit already started", ErrInvalidState)
	}
	if a.frame.Image == nil || a.annotations == nil {
		a.mu.Unlock()
		return ErrNotReady
	}
	frame := a.frame
	annotations := *a.annotations
	phys := a.cfg.PhysicalParameters
	a.mu.Unlock()

	// Flip the vertical axis so increasing y opposes gravity, as the
	// physical model expects.
	height := frame.Height()
	contour := make([]models.Point2, len(annotations.DropContourPx))
	for i, p := range annotations.DropContourPx {
		contour[i] = models.Point2{X: p.X, Y: float64(height) - p.Y}
	}

	hint := younglaplace.Hint{
		MPerPx:       annotations.MPerPx,
		DeltaDensity: math.Abs(phys.InnerDensity - phys.OuterDensity),
		Gravity:      phys.Gravity,
	}
	fit, err := a.cfg.CreateFit(contour, hint)
	if err != nil {
		return fmt.Errorf("create fit: %w", err)
	}

	a.mu.Lock()
	a.fit = fit
	a.imageHeight = height
	cancelled := a.cancelled
	a.unsubscribe = fit.ParamsChanged().Subscribe(a.handleParamsChanged)
	a.mu.Unlock()

	a.Status.Set(StatusFitting)
	if cancelled {
		// Cancel arrived between annotation and fit creation; honour it at
		// the optimiser's first iteration boundary.
		fit.Cancel()
	}
	go a.superviseFit(fit)
	return nil
}

// superviseFit awaits optimiser completion and resolves the terminal
// status from the accumulated stop flags, exception taking precedence over
// cancellation.
func (a *DropAnalysis) superviseFit(fit FitEngine) {
	_ = fit.Optimise()

	a.mu.Lock()
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
	a.mu.Unlock()

	flags := fit.StopFlags()
	switch {
	case flags&younglaplace.StopUnexpectedException != 0:
		a.Status.Set(StatusUnexpectedException)
	case flags&younglaplace.StopCancelled != 0:
		a.Status.Set(StatusCancelled)
	default:
		a.Status.Set(StatusFinished)
	}
}

// handleParamsChanged recomputes every derived quantity from one fresh
// parameter snapshot. Interfacial tension and volume publish before the
// Worthington number, which depends on both.
func (a *DropAnalysis) handleParamsChanged() {
	a.mu.Lock()
	fit := a.fit
	height := a.imageHeight
	phys := a.cfg.PhysicalParameters
	a.mu.Unlock()

	params := fit.Params()

	a.ApexCoordsPx.Set(image.Pt(
		int(math.Round(params.ApexX)),
		int(math.Round(float64(height)-params.ApexY)),
	))
	a.ApexRot.Set(params.ApexRot)
	a.ApexRadius.Set(params.ApexRadius)
	a.BondNumber.Set(params.BondNumber)
	a.Objective.Set(fit.Objective())

	a.mu.Lock()
	a.residuals = fit.Residuals()
	a.mu.Unlock()

	tension := a.cfg.Tension(phys.InnerDensity, phys.OuterDensity,
		params.BondNumber, params.ApexRadius, phys.Gravity)
	a.InterfacialTension.Set(tension)

	domain := fit.ProfileDomain()
	volume := a.cfg.Volume(domain, params.BondNumber, params.ApexRadius)
	a.Volume.Set(volume)
	a.SurfaceArea.Set(a.cfg.SurfaceArea(domain, params.BondNumber, params.ApexRadius))

	a.Worthington.Set(a.cfg.Worthington(phys.InnerDensity, phys.OuterDensity,
		phys.Gravity, tension, volume, phys.NeedleWidth))

	a.DropContourFitChanged.Fire()
}

// Cancel requests cancellation. While waiting for the image it terminates
// immediately and suppresses all later publication; while fitting it is
// forwarded to the fit engine once; on a terminal analysis it is a no-op.
func (a *DropAnalysis) Cancel() {
	a.mu.Lock()
	if a.cancelled || a.Status.Get().Terminal() {
		a.mu.Unlock()
		return
	}
	a.cancelled = true
	fit := a.fit
	processing := a.processing
	a.mu.Unlock()

	if fit != nil {
		fit.Cancel()
		return
	}
	if processing {
		// The image-arrival transition is in flight; it will observe the
		// flag and forward the cancellation to the fit it creates.
		return
	}
	a.Status.Set(StatusCancelled)
}

// DropContourFitResiduals returns the residual vector recorded at the most
// recent parameter-change cycle.
func (a *DropAnalysis) DropContourFitResiduals() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.residuals
}

// GenerateDropContourFit samples the fitted drop outline in pixel space:
// samples arclength stations spanning the full mirrored profile, each
// mapped from the rotated apex frame back through the fit frame and the
// vertical flip. It is a pure function of the current parameters and may
// be called in any state once a fit exists.
func (a *DropAnalysis) GenerateDropContourFit(samples int) ([]models.Point2, error) {
	a.mu.Lock()
	fit := a.fit
	height := a.imageHeight
	a.mu.Unlock()

	if fit == nil {
		return nil, ErrNoFit
	}
	if samples < 2 {
		return nil, fmt.Errorf("%w: need at least 2 samples, got %d", ErrInvalidInput, samples)
	}

	params := fit.Params()
	domain := fit.ProfileDomain()

	contour := make([]models.Point2, samples)
	for i := range contour {
		// Stations run from -domain to +domain; negative arclength is the
		// mirrored side of the profile.
		s := -domain + 2*domain*float64(i)/float64(samples-1)
		r, z := fit.ProfilePoint(math.Abs(s))
		if s < 0 {
			r = -r
		}
		x, y := fit.XYFromRZ(r*params.ApexRadius, z*params.ApexRadius)
		x += params.ApexX
		y += params.ApexY
		contour[i] = models.Point2{X: x, Y: float64(height) - y}
	}
	return contour, nil
}
