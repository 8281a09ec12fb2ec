// Package marcus computes charge hop rates from semiclassical Marcus
// theory. Energies are in eV, rates in inverse seconds.
package marcus

import (
	"fmt"
	"math"
	"math/rand"
)

// hbar is the reduced Planck constant in eV*s.
const hbar = 6.582e-16

// Params holds the material constants of the Marcus rate expression.
type Params struct {
	// ReorganizationEnergy is lambda, in eV.
	ReorganizationEnergy float64
	// TransferIntegral is the electronic coupling J, in eV.
	TransferIntegral float64
	// KBT is the thermal energy, in eV.
	KBT float64
}

// Validate checks that every constant is physical.
func (p Params) Validate() error {
	if p.ReorganizationEnergy <= 0 {
		return fmt.Errorf("marcus: reorganization energy %v must be positive", p.ReorganizationEnergy)
	}
	if p.TransferIntegral <= 0 {
		return fmt.Errorf("marcus: transfer integral %v must be positive", p.TransferIntegral)
	}
	if p.KBT <= 0 {
		return fmt.Errorf("marcus: kBT %v must be positive", p.KBT)
	}
	return nil
}

// Coefficient returns the rate prefactor 2*pi/hbar * J^2 / sqrt(4*pi*lambda*kBT).
func (p Params) Coefficient() float64 {
	return 2 * math.Pi / hbar * p.TransferIntegral * p.TransferIntegral /
		math.Sqrt(4*math.Pi*p.ReorganizationEnergy*p.KBT)
}

// Rate returns the hop rate for an energy difference deltaE = E_to - E_from:
// coef * exp(-(lambda-deltaE)^2 / (4*lambda*kBT)).
func (p Params) Rate(deltaE float64) float64 {
	diff := p.ReorganizationEnergy - deltaE
	exponent := -(diff * diff) / (4 * p.ReorganizationEnergy * p.KBT)
	return p.Coefficient() * math.Exp(exponent)
}

// GaussianEnergies samples n site energies from a normal distribution
// centered at zero with the given sigma, modeling a gaussian density of
// states.
func GaussianEnergies(n int, sigma float64, rng *rand.Rand) []float64 {
	energies := make([]float64, n)
	for i := range energies {
		energies[i] = rng.NormFloat64() * sigma
	}
	return energies
}
