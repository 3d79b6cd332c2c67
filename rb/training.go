package rb

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// TrainingOptions describes how a training set samples the parameter domain.
type TrainingOptions struct {
	NSamples      int
	Deterministic bool
	// LogScaling samples the named parameters uniformly in log space; their ranges must be positive.
	LogScaling map[string]bool
	// Seed of the random sampler, a negative seed draws one from the clock.
	Seed int64
}

/*
GenerateTrainingSet samples the parameter domain of rp. Random sets draw
every continuous parameter independently. Deterministic sets are tensor
grids with round(n^(1/p)) points per parameter, the last name varying
fastest. Discrete parameters are snapped to their nearest admissible value
in both cases.
*/
func GenerateTrainingSet(rp *RBParametrized, opts TrainingOptions) (samples []*RBParameters) {
	if opts.NSamples < 1 {
		panic(fmt.Errorf("training set needs at least one sample, have %d", opts.NSamples))
	}
	names := rp.ParametersMin().Names()
	if len(names) == 0 {
		panic(fmt.Errorf("training set over an empty parameter domain"))
	}
	for _, name := range names {
		if opts.LogScaling[name] && rp.ParameterMin(name) <= 0 {
			panic(fmt.Errorf("log scaled parameter %s has a non positive minimum %g", name, rp.ParameterMin(name)))
		}
	}
	if opts.Deterministic {
		samples = deterministicSamples(rp, names, opts)
	} else {
		samples = randomSamples(rp, names, opts)
	}
	for _, mu := range samples {
		for name, list := range rp.DiscreteParameterValues() {
			mu.SetValue(name, ClosestValue(mu.Value(name), list))
		}
	}
	return
}

func scaled(lo, hi, t float64, logScale bool) float64 {
	if logScale {
		return math.Exp(math.Log(lo) + t*(math.Log(hi)-math.Log(lo)))
	}
	return lo + t*(hi-lo)
}

func randomSamples(rp *RBParametrized, names []string, opts TrainingOptions) (samples []*RBParameters) {
	seed := uint64(opts.Seed)
	if opts.Seed < 0 {
		seed = uint64(time.Now().UnixNano())
	}
	unit := distuv.Uniform{Min: 0, Max: 1, Src: rand.NewPCG(seed, seed)}
	samples = make([]*RBParameters, opts.NSamples)
	for i := range samples {
		mu := NewRBParameters()
		for _, name := range names {
			mu.SetValue(name, scaled(rp.ParameterMin(name), rp.ParameterMax(name), unit.Rand(), opts.LogScaling[name]))
		}
		samples[i] = mu
	}
	return
}

func deterministicSamples(rp *RBParametrized, names []string, opts TrainingOptions) (samples []*RBParameters) {
	perParam := max(1, int(math.Round(math.Pow(float64(opts.NSamples), 1/float64(len(names))))))
	axes := make([][]float64, len(names))
	for i, name := range names {
		lo, hi := rp.ParameterMin(name), rp.ParameterMax(name)
		axis := make([]float64, perParam)
		if perParam == 1 || lo == hi {
			floats.AddConst(lo, axis)
		} else if opts.LogScaling[name] {
			floats.LogSpan(axis, lo, hi)
		} else {
			floats.Span(axis, lo, hi)
		}
		axes[i] = axis
	}
	index := make([]int, len(names))
	for {
		mu := NewRBParameters()
		for i, name := range names {
			mu.SetValue(name, axes[i][index[i]])
		}
		samples = append(samples, mu)
		k := len(index) - 1
		for ; k >= 0; k-- {
			if index[k]++; index[k] < perParam {
				break
			}
			index[k] = 0
		}
		if k < 0 {
			return
		}
	}
}
