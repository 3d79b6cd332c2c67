package rb

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"math"
	"os"
	"slices"

	"github.com/ghodss/yaml"

	"github.com/mfkiwl/libmesh/types"
)

/*
RBParametrized holds the parameter domain of a parametrized problem: a
box of continuous ranges plus lists of admissible values for the discrete
parameters, and the current parameter within it. Every accessor panics
before InitializeParameters.
*/
type RBParametrized struct {
	parameters, parametersMin, parametersMax *RBParameters
	discrete                                 map[string][]float64
	initialized                              bool
}

func (rp *RBParametrized) mustBeInitialized(op string) {
	if !rp.initialized {
		panic(fmt.Errorf("parameters not initialized in %s", op))
	}
}

func (rp *RBParametrized) Clear() {
	rp.parameters, rp.parametersMin, rp.parametersMax = nil, nil, nil
	rp.discrete = nil
	rp.initialized = false
}

/*
InitializeParameters sets the parameter box. The range of a discrete
parameter is widened to span its list of values. The current parameter is
set to the minimum.
*/
func (rp *RBParametrized) InitializeParameters(muMin, muMax *RBParameters, discrete map[string][]float64) {
	if muMin.NParameters() != muMax.NParameters() {
		panic(fmt.Errorf("invalid mu_min/mu_max: %d and %d parameters", muMin.NParameters(), muMax.NParameters()))
	}
	if muMin.NSamples() > 1 || muMax.NSamples() > 1 {
		panic(fmt.Errorf("invalid mu_min/mu_max: only one sample supported, have %d and %d",
			muMin.NSamples(), muMax.NSamples()))
	}
	for _, name := range muMin.Names() {
		if lo, hi := muMin.Value(name), muMax.Value(name); lo > hi {
			panic(fmt.Errorf("invalid range for parameter %s: min %g > max %g", name, lo, hi))
		}
	}
	rp.parametersMin, rp.parametersMax = muMin.Clone(), muMax.Clone()
	rp.discrete = make(map[string][]float64, len(discrete))
	for name, vals := range discrete {
		if len(vals) == 0 {
			panic(fmt.Errorf("list of discrete values for parameter %s is empty", name))
		}
		rp.parametersMin.SetValue(name, slices.Min(vals))
		rp.parametersMax.SetValue(name, slices.Max(vals))
		rp.discrete[name] = append([]float64(nil), vals...)
	}
	rp.initialized = true
	rp.SetParameters(rp.parametersMin)
}

// InitializeParametersFrom copies the parameter domain of another object.
func (rp *RBParametrized) InitializeParametersFrom(other *RBParametrized) {
	rp.InitializeParameters(other.ParametersMin(), other.ParametersMax(), other.DiscreteParameterValues())
}

func (rp *RBParametrized) NParams() int {
	rp.mustBeInitialized("NParams")
	return rp.parametersMin.NParameters()
}

func (rp *RBParametrized) NDiscreteParams() int {
	rp.mustBeInitialized("NDiscreteParams")
	return len(rp.discrete)
}

func (rp *RBParametrized) NContinuousParams() int { return rp.NParams() - rp.NDiscreteParams() }

/*
SetParameters makes params current and reports whether it lies in the
parameter domain. Out of range values are kept; only the parameter count
is enforced.
*/
func (rp *RBParametrized) SetParameters(params *RBParameters) (valid bool) {
	rp.mustBeInitialized("SetParameters")
	valid = rp.CheckIfValidParams(params)
	rp.parameters = params.Clone()
	return
}

func (rp *RBParametrized) Parameters() *RBParameters {
	rp.mustBeInitialized("Parameters")
	return rp.parameters
}

func (rp *RBParametrized) ParametersMin() *RBParameters {
	rp.mustBeInitialized("ParametersMin")
	return rp.parametersMin
}

func (rp *RBParametrized) ParametersMax() *RBParameters {
	rp.mustBeInitialized("ParametersMax")
	return rp.parametersMax
}

func (rp *RBParametrized) ParameterMin(name string) float64 {
	return rp.ParametersMin().Value(name)
}

func (rp *RBParametrized) ParameterMax(name string) float64 {
	return rp.ParametersMax().Value(name)
}

func (rp *RBParametrized) IsDiscreteParameter(name string) bool {
	rp.mustBeInitialized("IsDiscreteParameter")
	_, ok := rp.discrete[name]
	return ok
}

func (rp *RBParametrized) DiscreteParameterValues() map[string][]float64 {
	rp.mustBeInitialized("DiscreteParameterValues")
	return rp.discrete
}

func (rp *RBParametrized) PrintParameters() { rp.Parameters().Print() }

func (rp *RBParametrized) PrintDiscreteParameterValues() {
	for _, name := range sortedKeys(rp.DiscreteParameterValues()) {
		fmt.Printf("Discrete parameter %s, values: %v\n", name, rp.discrete[name])
	}
}

/*
CheckIfValidParams tests every value of every sample of params against
the parameter box, and the discrete parameters against their value lists
within types.TOLERANCE. Violations are logged as warnings. A parameter
count mismatch is a contract violation.
*/
func (rp *RBParametrized) CheckIfValidParams(params *RBParameters) (valid bool) {
	if n := rp.NParams(); params.NParameters() != n {
		panic(fmt.Errorf("number of parameters don't match; found %d, expected %d", params.NParameters(), n))
	}
	valid = true
	for _, name := range params.Names() {
		lo, hi := rp.ParameterMin(name), rp.ParameterMax(name)
		list, isDiscrete := rp.discrete[name]
		for i, sample := range params.values[name] {
			for _, v := range sample {
				if v < lo || v > hi {
					valid = false
					log.Printf("warning: parameter %s value=%g outside acceptable range: (%g, %g)", name, v, lo, hi)
				}
			}
			if isDiscrete && !IsValueInList(params.SampleValue(name, i), list, types.TOLERANCE) {
				valid = false
				log.Printf("warning: parameter %s value=%g is not in discrete value list", name, params.SampleValue(name, i))
			}
		}
	}
	return
}

// ClosestValue returns the entry of list nearest to v.
func ClosestValue(v float64, list []float64) (closest float64) {
	if len(list) == 0 {
		panic(fmt.Errorf("list of values is empty"))
	}
	minDistance := math.MaxFloat64
	for _, c := range list {
		if d := math.Abs(v - c); d < minDistance {
			minDistance, closest = d, c
		}
	}
	return
}

/*
IsValueInList accepts v when the nearest entry of list is within tol,
relative to |v| or absolute. The absolute test covers values near zero.
*/
func IsValueInList(v float64, list []float64, tol float64) bool {
	diff := math.Abs(v - ClosestValue(v, list))
	if diff/math.Abs(v) <= tol {
		return true
	}
	return diff <= tol
}

type parameterRangesFile struct {
	Min map[string]float64 `json:"min"`
	Max map[string]float64 `json:"max"`
}

type discreteValuesFile struct {
	Discrete map[string][]float64 `json:"discrete"`
}

// WriteParameterRanges stores the ranges of the continuous parameters as YAML.
func (rp *RBParametrized) WriteParameterRanges(filename string) (err error) {
	out := parameterRangesFile{Min: map[string]float64{}, Max: map[string]float64{}}
	for _, name := range rp.ParametersMin().Names() {
		if !rp.IsDiscreteParameter(name) {
			out.Min[name] = rp.ParameterMin(name)
			out.Max[name] = rp.ParameterMax(name)
		}
	}
	return writeYAML(filename, &out)
}

// WriteDiscreteParameterValues stores the discrete value lists as YAML. Nothing is written without discrete parameters.
func (rp *RBParametrized) WriteDiscreteParameterValues(filename string) (err error) {
	if rp.NDiscreteParams() == 0 {
		return
	}
	return writeYAML(filename, &discreteValuesFile{Discrete: rp.discrete})
}

func (rp *RBParametrized) WriteParameterData(rangesFile, discreteFile string) (err error) {
	if err = rp.WriteParameterRanges(rangesFile); err != nil {
		return
	}
	return rp.WriteDiscreteParameterValues(discreteFile)
}

func ReadParameterRanges(filename string) (muMin, muMax *RBParameters, err error) {
	var in parameterRangesFile
	if err = readYAML(filename, &in); err != nil {
		return
	}
	if len(in.Min) != len(in.Max) {
		return nil, nil, fmt.Errorf("%s: %d minimum and %d maximum values", filename, len(in.Min), len(in.Max))
	}
	muMin, muMax = NewRBParameters(), NewRBParameters()
	for name, v := range in.Min {
		hi, ok := in.Max[name]
		if !ok {
			return nil, nil, fmt.Errorf("%s: parameter %s has no maximum", filename, name)
		}
		muMin.SetValue(name, v)
		muMax.SetValue(name, hi)
	}
	return
}

// ReadDiscreteParameterValues returns no values, and no error, when the file does not exist.
func ReadDiscreteParameterValues(filename string) (discrete map[string][]float64, err error) {
	var in discreteValuesFile
	if err = readYAML(filename, &in); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string][]float64{}, nil
		}
		return
	}
	if in.Discrete == nil {
		in.Discrete = map[string][]float64{}
	}
	return in.Discrete, nil
}

// ReadParameterData initializes the parameter domain from the files written by WriteParameterData.
func (rp *RBParametrized) ReadParameterData(rangesFile, discreteFile string) (err error) {
	var muMin, muMax *RBParameters
	if muMin, muMax, err = ReadParameterRanges(rangesFile); err != nil {
		return
	}
	var discrete map[string][]float64
	if discrete, err = ReadDiscreteParameterValues(discreteFile); err != nil {
		return
	}
	rp.InitializeParameters(muMin, muMax, discrete)
	return
}

func writeYAML(filename string, v interface{}) (err error) {
	var data []byte
	if data, err = yaml.Marshal(v); err != nil {
		return
	}
	return os.WriteFile(filename, data, 0644)
}

func readYAML(filename string, v interface{}) (err error) {
	var data []byte
	if data, err = os.ReadFile(filename); err != nil {
		return
	}
	if err = yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", filename, err)
	}
	return
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
