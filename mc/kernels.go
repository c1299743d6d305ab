package mc

import (
	"math"

	"github.com/banachtech/seqmc/compute"
)

const (
	KernelBoxMuller   compute.KernelID = "box_muller"
	KernelGBMTerminal compute.KernelID = "gbm_terminal"
	KernelGBMPath     compute.KernelID = "gbm_path"
)

// Kernels returns the CPU implementations of the kernels used by this
// package, for compute.NewCPU.
func Kernels() map[compute.KernelID]compute.Kernel {
	return map[compute.KernelID]compute.Kernel{
		KernelBoxMuller:   boxMuller,
		KernelGBMTerminal: gbmTerminal,
		KernelGBMPath:     gbmPath,
	}
}

// in: ua, ub. out: g1, g2.
func boxMuller(lo, hi int, _ []float64, in, out [][]float64) {
	ua, ub := in[0], in[1]
	g1, g2 := out[0], out[1]
	for i := lo; i < hi; i++ {
		r := math.Sqrt(-2 * math.Log(ua[i]))
		s, c := math.Sincos(2 * math.Pi * ub[i])
		g1[i] = r * c
		g2[i] = r * s
	}
}

// params: S0, drift, sigma, T. in: g. out: terminal price.
func gbmTerminal(lo, hi int, p []float64, in, out [][]float64) {
	s0, drift, sigma, t := p[0], p[1], p[2], p[3]
	mu, vol := drift*t, sigma*math.Sqrt(t)
	g, price := in[0], out[0]
	for i := lo; i < hi; i++ {
		price[i] = s0 * math.Exp(mu+vol*g[i])
	}
}

// params: S0, drift, sigma, dt, steps. in: g (items*steps). out: prices
// (items*steps). One work item is one path; steps within a path are evolved
// in order because each depends on the previous price.
func gbmPath(lo, hi int, p []float64, in, out [][]float64) {
	s0, drift, sigma, dt := p[0], p[1], p[2], p[3]
	steps := int(p[4])
	mu, vol := drift*dt, sigma*math.Sqrt(dt)
	g, price := in[0], out[0]
	for i := lo; i < hi; i++ {
		s := s0
		base := i * steps
		for j := 0; j < steps; j++ {
			s *= math.Exp(mu + vol*g[base+j])
			price[base+j] = s
		}
	}
}
