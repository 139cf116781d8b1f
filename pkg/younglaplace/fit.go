// Package younglaplace fits the five-parameter Young-Laplace drop model to
// an observed silhouette contour by iterative nonlinear least squares.
//
// The fit works in the "fit frame": pixel-scaled coordinates whose vertical
// axis increases against gravity. Within that frame the drop profile lives
// in a rotated apex frame; RZFromXY and XYFromRZ convert between the two.
package younglaplace

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/mat"

	"pendantdrop/internal/models"
	"pendantdrop/pkg/bindable"
)

// StopFlag records why the optimiser stopped. Zero means normal
// convergence.
type StopFlag uint

const (
	// StopCancelled is set when Cancel was honoured at an iteration boundary.
	StopCancelled StopFlag = 1 << iota

	// StopUnexpectedException is set when an iteration raised a fault that
	// was not itself cancellation.
	StopUnexpectedException
)

var (
	// ErrInvalidInput reports a contour the fit cannot work with.
	ErrInvalidInput = errors.New("younglaplace: invalid input")

	// ErrInsufficientPoints reports a contour with too few points to
	// constrain the five fit parameters.
	ErrInsufficientPoints = fmt.Errorf("%w: insufficient contour points", ErrInvalidInput)

	// ErrInvalidState reports an operation attempted in a state that
	// forbids it.
	ErrInvalidState = errors.New("younglaplace: invalid state")

	// ErrAlreadyOptimising reports a second call to Optimise on the same
	// fit instance.
	ErrAlreadyOptimising = fmt.Errorf("%w: optimise already called", ErrInvalidState)
)

// minContourPoints is the minimum number of contour points needed to
// constrain the five fit parameters.
const minContourPoints = 5

// Params is one internally consistent snapshot of the five fit parameters.
// The optimiser replaces the whole snapshot per accepted iteration rather
// than mutating fields individually.
type Params struct {
	// ApexX, ApexY locate the drop apex in the fit frame, in pixels.
	ApexX, ApexY float64

	// ApexRadius is the radius of curvature at the apex, in pixels.
	ApexRadius float64

	// BondNumber is the dimensionless gravity/surface-tension shape ratio.
	BondNumber float64

	// ApexRot is the rotation of the fit frame relative to the pixel
	// frame, in radians, accounting for tilted image capture.
	ApexRot float64
}

// Hint seeds and tunes a fit. Zero-valued tuning fields select defaults;
// a nil Initial seeds the parameters from the contour extrema.
type Hint struct {
	// MPerPx, DeltaDensity and Gravity carry the physical scale of the
	// capture for strategies that want a physically informed seed.
	MPerPx       float64
	DeltaDensity float64
	Gravity      float64

	// Initial overrides the contour-derived parameter seed when non-nil.
	Initial *Params

	// ObjectiveTol is the relative objective-improvement convergence
	// threshold.
	ObjectiveTol float64

	// MaxIterations caps the optimisation loop.
	MaxIterations int

	// ProfileStep is the RK4 arclength step used during integration.
	ProfileStep float64
}

const (
	defaultObjectiveTol  = 1e-6
	defaultMaxIterations = 200
	initialBondNumber    = 0.15
	minApexRadius        = 1e-6
	maxDamping           = 1e8
)

type fitState int

const (
	fitCreated fitState = iota
	fitRunning
	fitStopped
)

// Fit owns the parameter snapshot, the integrated profile and the
// asynchronous optimiser for one drop contour. Create one per contour with
// NewFit; instances are not reusable across contours.
type Fit struct {
	// OnParamsChanged fires after every accepted optimiser iteration.
	OnParamsChanged *bindable.Event

	contour []models.Point2

	objectiveTol  float64
	maxIterations int
	profileStep   float64

	mu        sync.Mutex
	state     fitState
	params    Params
	profile   *Profile
	residuals []float64
	objective float64
	stopFlags StopFlag

	cancelled atomic.Bool
}

// NewFit creates a fit engine for a drop contour given in fit-frame
// coordinates. The initial parameter snapshot, profile and residuals are
// available immediately; call Optimise to refine them.
func NewFit(contour []models.Point2, hint Hint) (*Fit, error) {
	if len(contour) < minContourPoints {
		return nil, fmt.Errorf("%w: need at least %d, got %d",
			ErrInsufficientPoints, minContourPoints, len(contour))
	}

	f := &Fit{
		OnParamsChanged: bindable.NewEvent(),
		contour:         append([]models.Point2(nil), contour...),
		objectiveTol:    hint.ObjectiveTol,
		maxIterations:   hint.MaxIterations,
		profileStep:     hint.ProfileStep,
	}
	if f.objectiveTol <= 0 {
		f.objectiveTol = defaultObjectiveTol
	}
	if f.maxIterations <= 0 {
		f.maxIterations = defaultMaxIterations
	}

	seed := f.seedParams(hint)
	ev, err := f.evaluate(seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	f.params = seed
	f.profile = ev.profile
	f.residuals = ev.residuals
	f.objective = ev.objective
	return f, nil
}

// seedParams derives an initial parameter snapshot from the contour
// extrema: the apex sits at the lowest contour point and the apex radius
// starts at half the contour width.
func (f *Fit) seedParams(hint Hint) Params {
	if hint.Initial != nil {
		return *hint.Initial
	}

	minX, maxX := f.contour[0].X, f.contour[0].X
	apex := f.contour[0]
	for _, p := range f.contour {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < apex.Y {
			apex = p
		}
	}

	radius := (maxX - minX) / 2
	if radius < 1 {
		radius = 1
	}
	return Params{
		ApexX:      apex.X,
		ApexY:      apex.Y,
		ApexRadius: radius,
		BondNumber: initialBondNumber,
		ApexRot:    0,
	}
}

// evaluation is the profile, residual vector and objective for one
// parameter snapshot.
type evaluation struct {
	profile   *Profile
	residuals []float64
	objective float64
}

// evaluate integrates the profile for the snapshot and measures each
// contour point's pixel distance to its nearest profile station.
func (f *Fit) evaluate(p Params) (*evaluation, error) {
	if p.ApexRadius < minApexRadius {
		return nil, fmt.Errorf("degenerate apex radius %g", p.ApexRadius)
	}

	sin, cos := math.Sincos(p.ApexRot)

	// Transform the contour into dimensionless apex-frame coordinates and
	// find the arclength needed for the profile to cover it.
	type rz struct{ r, z float64 }
	pts := make([]rz, len(f.contour))
	needed := 0.0
	for i, c := range f.contour {
		dx := c.X - p.ApexX
		dy := c.Y - p.ApexY
		r := (cos*dx - sin*dy) / p.ApexRadius
		z := (sin*dx + cos*dy) / p.ApexRadius
		pts[i] = rz{r: math.Abs(r), z: z}
		if d := math.Hypot(r, z); d > needed {
			needed = d
		}
	}

	profile := IntegrateProfile(p.BondNumber, needed*1.5+0.5, f.profileStep)
	tree := newProfileTree(profile)

	residuals := make([]float64, len(pts))
	objective := 0.0
	for i, q := range pts {
		_, d2 := tree.Nearest(profilePoint{R: q.r, Z: q.z})
		res := math.Sqrt(d2) * p.ApexRadius
		residuals[i] = res
		objective += res * res
	}
	if math.IsNaN(objective) || math.IsInf(objective, 0) {
		return nil, fmt.Errorf("non-finite objective for params %+v", p)
	}
	return &evaluation{profile: profile, residuals: residuals, objective: objective}, nil
}

// Optimise runs the iterative optimisation until convergence, cancellation
// or an internal fault, blocking the calling goroutine. Iteration faults
// never propagate: they stop the loop with StopUnexpectedException set.
// Calling Optimise more than once is a usage error.
func (f *Fit) Optimise() error {
	f.mu.Lock()
	if f.state != fitCreated {
		f.mu.Unlock()
		return ErrAlreadyOptimising
	}
	f.state = fitRunning
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.state = fitStopped
		f.mu.Unlock()
	}()

	lambda := 1e-3
	for iter := 0; iter < f.maxIterations; iter++ {
		if f.cancelled.Load() {
			f.setStopFlag(StopCancelled)
			return nil
		}

		done, err := f.step(&lambda)
		if err != nil {
			f.setStopFlag(StopUnexpectedException)
			return nil
		}
		if done {
			return nil
		}
	}
	return nil
}

// step performs one damped Gauss-Newton iteration. It reports whether the
// optimisation has converged. Panics inside the iteration, including those
// raised by parameter-change observers, are converted to errors.
func (f *Fit) step(lambda *float64) (done bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			done = false
			err = fmt.Errorf("fit iteration fault: %v", r)
		}
	}()

	f.mu.Lock()
	current := f.params
	objective := f.objective
	residuals := append([]float64(nil), f.residuals...)
	f.mu.Unlock()

	jac, err := f.jacobian(current, residuals)
	if err != nil {
		return false, err
	}

	n := len(residuals)
	jtj := mat.NewSymDense(5, nil)
	jtr := mat.NewVecDense(5, nil)
	for a := 0; a < 5; a++ {
		for b := a; b < 5; b++ {
			sum := 0.0
			for i := 0; i < n; i++ {
				sum += jac.At(i, a) * jac.At(i, b)
			}
			jtj.SetSym(a, b, sum)
		}
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += jac.At(i, a) * residuals[i]
		}
		jtr.SetVec(a, -sum)
	}

	for {
		damped := mat.NewSymDense(5, nil)
		damped.CopySym(jtj)
		for a := 0; a < 5; a++ {
			d := jtj.At(a, a)
			if d < 1e-12 {
				d = 1e-12
			}
			damped.SetSym(a, a, d*(1+*lambda))
		}

		var chol mat.Cholesky
		if !chol.Factorize(damped) {
			*lambda *= 10
			if *lambda > maxDamping {
				return true, nil
			}
			continue
		}

		var delta mat.VecDense
		if err := chol.SolveVecTo(&delta, jtr); err != nil {
			return false, err
		}

		candidate := applyDelta(current, &delta)
		ev, evalErr := f.evaluate(candidate)
		if evalErr != nil || ev.objective >= objective {
			// Rejected proposal: increase damping and retry, or give up
			// once the step has shrunk to nothing.
			*lambda *= 10
			if *lambda > maxDamping {
				return true, nil
			}
			continue
		}

		f.mu.Lock()
		f.params = candidate
		f.profile = ev.profile
		f.residuals = ev.residuals
		f.objective = ev.objective
		f.mu.Unlock()
		f.OnParamsChanged.Fire()

		*lambda *= 0.3
		if *lambda < 1e-12 {
			*lambda = 1e-12
		}

		improvement := objective - ev.objective
		return improvement <= f.objectiveTol*(objective+1e-12), nil
	}
}

// jacobian computes the forward-difference Jacobian of the residual vector
// with respect to the five parameters.
func (f *Fit) jacobian(p Params, base []float64) (*mat.Dense, error) {
	jac := mat.NewDense(len(base), 5, nil)
	for j := 0; j < 5; j++ {
		h := paramStep(p, j)
		perturbed := perturb(p, j, h)
		ev, err := f.evaluate(perturbed)
		if err != nil {
			return nil, err
		}
		for i := range base {
			jac.Set(i, j, (ev.residuals[i]-base[i])/h)
		}
	}
	return jac, nil
}

func paramStep(p Params, j int) float64 {
	v := paramAt(p, j)
	switch j {
	case 3, 4: // bond number, rotation: dimensionless, small scale
		return 1e-5 + 1e-4*math.Abs(v)
	default: // pixel-scaled
		return 1e-4 + 1e-4*math.Abs(v)
	}
}

func paramAt(p Params, j int) float64 {
	switch j {
	case 0:
		return p.ApexX
	case 1:
		return p.ApexY
	case 2:
		return p.ApexRadius
	case 3:
		return p.BondNumber
	default:
		return p.ApexRot
	}
}

func perturb(p Params, j int, h float64) Params {
	switch j {
	case 0:
		p.ApexX += h
	case 1:
		p.ApexY += h
	case 2:
		p.ApexRadius += h
	case 3:
		p.BondNumber += h
	case 4:
		p.ApexRot += h
	}
	return clampParams(p)
}

func applyDelta(p Params, delta *mat.VecDense) Params {
	p.ApexX += delta.AtVec(0)
	p.ApexY += delta.AtVec(1)
	p.ApexRadius += delta.AtVec(2)
	p.BondNumber += delta.AtVec(3)
	p.ApexRot += delta.AtVec(4)
	return clampParams(p)
}

// clampParams keeps proposals inside the physically meaningful region so a
// wild step cannot break profile integration.
func clampParams(p Params) Params {
	if p.ApexRadius < minApexRadius {
		p.ApexRadius = minApexRadius
	}
	if p.BondNumber < 0 {
		p.BondNumber = 0
	}
	if p.BondNumber > 10 {
		p.BondNumber = 10
	}
	return p
}

// Cancel requests cooperative termination. The optimiser observes the
// request at the next iteration boundary and stops within one iteration.
func (f *Fit) Cancel() {
	f.cancelled.Store(true)
}

func (f *Fit) setStopFlag(flag StopFlag) {
	f.mu.Lock()
	f.stopFlags |= flag
	f.mu.Unlock()
}

// StopFlags returns the accumulated stop flags. Zero means the optimiser
// converged normally.
func (f *Fit) StopFlags() StopFlag {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopFlags
}

// Params returns the current parameter snapshot.
func (f *Fit) Params() Params {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.params
}

// Objective returns the sum of squared residuals at the current snapshot.
func (f *Fit) Objective() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objective
}

// Residuals returns a copy of the per-point residual vector at the current
// snapshot.
func (f *Fit) Residuals() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64(nil), f.residuals...)
}

// Profile returns the current integrated profile.
func (f *Fit) Profile() *Profile {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profile
}

// ProfileDomain returns the arclength extent of the current profile.
func (f *Fit) ProfileDomain() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profile.Domain()
}

// ProfilePoint evaluates the current profile at arclength s.
func (f *Fit) ProfilePoint(s float64) (r, z float64) {
	f.mu.Lock()
	profile := f.profile
	f.mu.Unlock()
	return profile.Point(s)
}

// ParamsChanged exposes the accepted-iteration event.
func (f *Fit) ParamsChanged() *bindable.Event {
	return f.OnParamsChanged
}

// RZFromXY rotates fit-frame coordinates into the apex-aligned frame:
// rz = R(ApexRot) * xy.
func (f *Fit) RZFromXY(x, y float64) (r, z float64) {
	sin, cos := math.Sincos(f.Params().ApexRot)
	return cos*x - sin*y, sin*x + cos*y
}

// XYFromRZ rotates apex-frame coordinates back into the fit frame:
// xy = R(ApexRot)^T * rz.
func (f *Fit) XYFromRZ(r, z float64) (x, y float64) {
	sin, cos := math.Sincos(f.Params().ApexRot)
	return cos*r + sin*z, -sin*r + cos*z
}
