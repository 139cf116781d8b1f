// Package physics provides the closed-form derived quantities of pendant
// drop tensiometry. Each function is pure and matches the injection
// contract of the analysis orchestrator, so they can be wired in directly
// or swapped for alternatives in tests.
//
// Lengths are in metres, densities in kg/m^3 and gravity in m/s^2, so the
// interfacial tension comes out in N/m, the volume in m^3 and the surface
// area in m^2. The profile domain and Bond number are dimensionless.
package physics

import (
	"math"

	"pendantdrop/pkg/younglaplace"
)

// InterfacialTension computes the interfacial tension from the fitted
// Bond number and apex radius: gamma = delta_rho * g * R0^2 / Bo.
func InterfacialTension(innerDensity, outerDensity, bondNumber, apexRadius, gravity float64) float64 {
	if bondNumber == 0 {
		return math.Inf(1)
	}
	deltaDensity := math.Abs(innerDensity - outerDensity)
	return deltaDensity * gravity * apexRadius * apexRadius / bondNumber
}

// Volume computes the drop volume by integrating dV/ds = pi*r^2*sin(phi)
// along the dimensionless profile and scaling by the apex radius cubed.
func Volume(profileDomain, bondNumber, apexRadius float64) float64 {
	profile := younglaplace.IntegrateProfile(bondNumber, profileDomain, 0)
	return profile.VolumeIntegral() * apexRadius * apexRadius * apexRadius
}

// SurfaceArea computes the drop surface area by integrating
// dA/ds = 2*pi*r along the dimensionless profile and scaling by the apex
// radius squared.
func SurfaceArea(profileDomain, bondNumber, apexRadius float64) float64 {
	profile := younglaplace.IntegrateProfile(bondNumber, profileDomain, 0)
	return profile.SurfaceIntegral() * apexRadius * apexRadius
}

// Worthington computes the Worthington number, the ratio of the actual
// drop volume to the maximum volume a needle of the given width can hold:
// Wo = delta_rho * g * V / (pi * gamma * d_needle).
func Worthington(innerDensity, outerDensity, gravity, interfacialTension, volume, needleWidth float64) float64 {
	if interfacialTension == 0 || needleWidth == 0 {
		return 0
	}
	deltaDensity := math.Abs(innerDensity - outerDensity)
	return deltaDensity * gravity * volume / (math.Pi * interfacialTension * needleWidth)
}
