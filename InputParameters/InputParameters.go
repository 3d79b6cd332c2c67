package InputParameters

import (
	"fmt"
	"os"

	"github.com/ghodss/yaml"

	"github.com/mfkiwl/libmesh/estimator"
)

// Parameters of an adaptive solve obtained from the YAML input file
type AdaptivityParameters struct {
	Title             string    `json:"Title"`
	Domainfile        string    `json:"domainfile"` // Gambit neutral file, a generated mesh when empty
	Dim               int       `json:"dimension"`
	Elements          int       `json:"elements"` // Generated mesh elements per direction
	CoarseRefinements int       `json:"coarserefinements"`
	MaxAdaptiveSteps  int       `json:"max_adaptivesteps"`
	GlobalTolerance   float64   `json:"global_tolerance"`
	NelemTarget       int       `json:"nelem_target"`
	RefineFraction    float64   `json:"refine_fraction"`
	CoarsenFraction   float64   `json:"coarsen_fraction"`
	CoarsenThreshold  float64   `json:"coarsen_threshold"`
	MaxHLevel         int       `json:"max_h_level"`
	RefineUniformly   bool      `json:"refine_uniformly"`
	IndicatorType     string    `json:"indicator_type"`
	QoIWeights        []float64 `json:"qoi_weights"`
}

func NewAdaptivityParameters() *AdaptivityParameters {
	return &AdaptivityParameters{
		Dim:              2,
		Elements:         4,
		MaxAdaptiveSteps: 1,
		NelemTarget:      8000,
		RefineFraction:   0.3,
		CoarsenFraction:  0.3,
		CoarsenThreshold: 10,
		IndicatorType:    estimator.Kelly.String(),
	}
}

func (ap *AdaptivityParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, ap)
}

// ReadAdaptivityParameters parses a YAML file over the defaults and validates the result.
func ReadAdaptivityParameters(filename string) (ap *AdaptivityParameters, err error) {
	var data []byte
	if data, err = os.ReadFile(filename); err != nil {
		return nil, fmt.Errorf("reading adaptivity parameters: %w", err)
	}
	ap = NewAdaptivityParameters()
	if err = ap.Parse(data); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filename, err)
	}
	if err = ap.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return
}

/*
Validate checks the ranges of the fractions and that the run adapts to
either a global tolerance or an element count target, never both.
*/
func (ap *AdaptivityParameters) Validate() (err error) {
	switch {
	case ap.Dim < 1 || ap.Dim > 3:
		err = fmt.Errorf("dimension %d is not in [1,3]", ap.Dim)
	case ap.RefineFraction < 0 || ap.RefineFraction > 1:
		err = fmt.Errorf("refine_fraction %g is not in [0,1]", ap.RefineFraction)
	case ap.CoarsenFraction < 0 || ap.CoarsenFraction > 1:
		err = fmt.Errorf("coarsen_fraction %g is not in [0,1]", ap.CoarsenFraction)
	case ap.GlobalTolerance < 0:
		err = fmt.Errorf("global_tolerance %g is negative", ap.GlobalTolerance)
	case ap.GlobalTolerance != 0 && ap.NelemTarget != 0:
		err = fmt.Errorf("cannot adapt to both global_tolerance %g and nelem_target %d",
			ap.GlobalTolerance, ap.NelemTarget)
	case ap.GlobalTolerance == 0 && ap.NelemTarget <= 0 && !ap.RefineUniformly:
		err = fmt.Errorf("adapting to a target mesh size needs a positive nelem_target, have %d", ap.NelemTarget)
	case ap.MaxAdaptiveSteps < 0:
		err = fmt.Errorf("max_adaptivesteps %d is negative", ap.MaxAdaptiveSteps)
	}
	if err != nil {
		return
	}
	_, err = ap.Estimator()
	return
}

func (ap *AdaptivityParameters) Estimator() (estimator.EstimatorType, error) {
	return estimator.NewEstimatorType(ap.IndicatorType)
}

// AdaptToTolerance reports whether flagging is by error tolerance rather than by element count.
func (ap *AdaptivityParameters) AdaptToTolerance() bool {
	return ap.GlobalTolerance > 0 && ap.NelemTarget == 0
}

// QoIWeight is the weight of QoI q, one where none is given.
func (ap *AdaptivityParameters) QoIWeight(q int) float64 {
	if q < len(ap.QoIWeights) {
		return ap.QoIWeights[q]
	}
	return 1
}

func (ap *AdaptivityParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ap.Title)
	if len(ap.Domainfile) != 0 {
		fmt.Printf("[%s]\t\t= Domain File\n", ap.Domainfile)
	} else {
		fmt.Printf("[%d]\t\t\t\t= Dimension\n", ap.Dim)
		fmt.Printf("[%d]\t\t\t\t= Elements per Direction\n", ap.Elements)
	}
	fmt.Printf("[%d]\t\t\t\t= Coarse Refinements\n", ap.CoarseRefinements)
	fmt.Printf("[%d]\t\t\t\t= Max Adaptive Steps\n", ap.MaxAdaptiveSteps)
	fmt.Printf("%8.5f\t\t= Refine Fraction\n", ap.RefineFraction)
	fmt.Printf("%8.5f\t\t= Coarsen Fraction\n", ap.CoarsenFraction)
	fmt.Printf("%8.5f\t\t= Coarsen Threshold\n", ap.CoarsenThreshold)
	if ap.AdaptToTolerance() {
		fmt.Printf("%8.5g\t\t= Global Tolerance\n", ap.GlobalTolerance)
	} else {
		fmt.Printf("[%d]\t\t\t= Nelem Target\n", ap.NelemTarget)
	}
	fmt.Printf("[%s]\t\t\t= Indicator Type\n", ap.IndicatorType)
	if len(ap.QoIWeights) != 0 {
		fmt.Printf("%v\t\t\t= QoI Weights\n", ap.QoIWeights)
	}
}
