package analysis

import (
	"context"
	"errors"
	"fmt"
	"image"

	"pendantdrop/internal/models"
	"pendantdrop/pkg/bindable"
	"pendantdrop/pkg/younglaplace"
)

var (
	// ErrInvalidState reports an operation attempted in a state that
	// forbids it.
	ErrInvalidState = errors.New("analysis: invalid state")

	// ErrInvalidInput reports malformed caller input.
	ErrInvalidInput = errors.New("analysis: invalid input")

	// ErrNoFit reports a request for fit-derived data before any fit has
	// been started.
	ErrNoFit = fmt.Errorf("%w: no fit started", ErrInvalidState)

	// ErrNotReady reports an attempt to start fitting before the image and
	// its annotations are available.
	ErrNotReady = fmt.Errorf("%w: image and annotations not yet available", ErrInvalidState)
)

// Status is the lifecycle state of a drop analysis. Transitions only move
// forward; the three terminal states are final.
type Status int

const (
	StatusWaitingForImage Status = iota
	StatusFitting
	StatusFinished
	StatusCancelled
	StatusUnexpectedException
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusFinished, StatusCancelled, StatusUnexpectedException:
		return true
	}
	return false
}

func (s Status) String() string {
	switch s {
	case StatusWaitingForImage:
		return "WAITING_FOR_IMAGE"
	case StatusFitting:
		return "FITTING"
	case StatusFinished:
		return "FINISHED"
	case StatusCancelled:
		return "CANCELLED"
	case StatusUnexpectedException:
		return "UNEXPECTED_EXCEPTION"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// PhysicalParameters are the physical constants of one analysis run.
type PhysicalParameters struct {
	// InnerDensity is the drop-phase density in kg/m^3.
	InnerDensity float64

	// OuterDensity is the surrounding-phase density in kg/m^3.
	OuterDensity float64

	// NeedleWidth is the needle outer diameter in metres.
	NeedleWidth float64

	// Gravity is the gravitational acceleration in m/s^2.
	Gravity float64
}

// ImageAnnotations is the immutable annotation snapshot produced once per
// image: the physical scale, the detected regions and the extracted
// contours, all in pixel space.
type ImageAnnotations struct {
	MPerPx           float64
	DropRegionPx     models.Rect2
	NeedleRegionPx   models.Rect2
	DropContourPx    []models.Point2
	NeedleContoursPx [2][]models.Point2
}

// ScheduledImage is an externally scheduled capture. Read suspends until
// the image is available and may be awaited once per analysis.
type ScheduledImage interface {
	Read(ctx context.Context) (models.Frame, error)
}

// AnnotateFunc extracts annotations from a captured image. A failure
// surfaces as StatusUnexpectedException on the analysis, never as a crash.
type AnnotateFunc func(image.Image) (ImageAnnotations, error)

// FitEngine is the surface the orchestrator needs from a physical-model
// fit. *younglaplace.Fit satisfies it.
type FitEngine interface {
	Params() younglaplace.Params
	Objective() float64
	Residuals() []float64
	ProfileDomain() float64
	ProfilePoint(s float64) (r, z float64)
	ParamsChanged() *bindable.Event
	Optimise() error
	Cancel()
	StopFlags() younglaplace.StopFlag
	RZFromXY(x, y float64) (r, z float64)
	XYFromRZ(r, z float64) (x, y float64)
}

// FitFactory creates a fit engine for a contour already transformed into
// the fit frame.
type FitFactory func(contour []models.Point2, hint younglaplace.Hint) (FitEngine, error)

// The derived-quantity functions are injected pure strategies; their
// argument tuples are fixed contracts.
type (
	TensionFunc     func(innerDensity, outerDensity, bondNumber, apexRadius, gravity float64) float64
	VolumeFunc      func(profileDomain, bondNumber, apexRadius float64) float64
	SurfaceAreaFunc func(profileDomain, bondNumber, apexRadius float64) float64
	WorthingtonFunc func(innerDensity, outerDensity, gravity, interfacialTension, volume, needleWidth float64) float64
)

// Config wires one DropAnalysis: the image source, the annotation
// strategy, the physical constants, the fit-engine factory and the four
// derived-quantity formulas.
type Config struct {
	ScheduledImage     ScheduledImage
	Annotate           AnnotateFunc
	PhysicalParameters PhysicalParameters
	CreateFit          FitFactory

	Tension     TensionFunc
	Volume      VolumeFunc
	SurfaceArea SurfaceAreaFunc
	Worthington WorthingtonFunc
}
