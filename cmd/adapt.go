/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mfkiwl/libmesh/InputParameters"
	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/estimator"
	"github.com/mfkiwl/libmesh/refinement"
	"github.com/mfkiwl/libmesh/systems"
)

// AdaptCmd represents the adapt command
var AdaptCmd = &cobra.Command{
	Use:   "adapt",
	Short: "Adaptively solve a Poisson problem with error estimation",
	Long: `
Solves -Laplace(u) = 1 with homogeneous Dirichlet boundaries, then estimates
the error, flags and refines until the step limit, the element target or the
global tolerance is reached. Input parameters come from a YAML file or a
"key = value" .in file.

libmesh adapt -I adapt.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		inputFile, _ := cmd.Flags().GetString("inputParametersFile")
		ap, err := processAdaptInput(inputFile)
		if err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
		ap.Print()
		if err = measured(func() (err error) {
			var steps []AdaptStep
			if steps, err = RunAdapt(ap); err == nil {
				for _, s := range steps {
					s.Print()
				}
			}
			return
		}); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(AdaptCmd)
	AdaptCmd.Flags().StringP("inputParametersFile", "I", "",
		"YAML or .in file of adaptivity parameters like:\n\t- max_adaptivesteps\n\t- nelem_target\n\t- indicator_type")
}

func processAdaptInput(inputFile string) (ap *InputParameters.AdaptivityParameters, err error) {
	switch {
	case len(inputFile) == 0:
		ap = InputParameters.NewAdaptivityParameters()
		err = ap.Validate()
	case strings.EqualFold(filepath.Ext(inputFile), ".in"):
		var in *InputParameters.InFile
		if in, err = InputParameters.ReadInFile(inputFile); err != nil {
			return
		}
		ap, err = InputParameters.AdaptivityParametersFrom(in)
	default:
		ap, err = InputParameters.ReadAdaptivityParameters(inputFile)
	}
	return
}

type AdaptStep struct {
	Step          int
	NActiveElem   int
	NDofs         int
	QoIValues     []float64
	ErrorEstimate float64 // L2 norm of the indicators, zero for uniform steps
}

func (s AdaptStep) Print() {
	fmt.Printf("Adaptive step %d, we have %d active elements and %d active dofs.\n", s.Step, s.NActiveElem, s.NDofs)
	for q, v := range s.QoIValues {
		fmt.Printf("  QoI %d = %.12g\n", q, v)
	}
	if s.ErrorEstimate != 0 {
		fmt.Printf("  Estimated error %.6g\n", s.ErrorEstimate)
	}
}

func lowerCorner(c elem.Point) bool { return c.X < 0.5 && c.Y < 0.5 && c.Z < 0.5 }

func buildEstimator(ap *InputParameters.AdaptivityParameters, qs *systems.QoISet) (est estimator.ErrorEstimator, err error) {
	var et estimator.EstimatorType
	if et, err = ap.Estimator(); err != nil {
		return
	}
	switch et {
	case estimator.Kelly:
		est = estimator.NewKellyErrorEstimator()
	case estimator.Discontinuity:
		est = estimator.NewDiscontinuityMeasure()
	case estimator.AdjointRefinement:
		are := estimator.NewAdjointRefinementEstimator()
		are.QoISet = qs
		est = are
	}
	return
}

/*
RunAdapt solves -Laplace(u) = 1 with u = 0 on every boundary and two QoIs,
the integral of u over the lower corner of the domain and over all of it,
refining the mesh between solves as ap directs. It returns one record per
solve.
*/
func RunAdapt(ap *InputParameters.AdaptivityParameters) (steps []AdaptStep, err error) {
	m, err := BuildMesh(ap.Domainfile, ap.Dim, ap.Elements, "")
	if err != nil {
		return
	}
	mr := refinement.NewMeshRefinement(m)
	mr.UniformlyRefine(ap.CoarseRefinements)
	mr.RefineFraction, mr.CoarsenFraction, mr.CoarsenThreshold = ap.RefineFraction, ap.CoarsenFraction, ap.CoarsenThreshold
	mr.AbsoluteGlobalTolerance, mr.NelemTarget, mr.MaxHLevel = ap.GlobalTolerance, ap.NelemTarget, ap.MaxHLevel

	es := systems.NewEquationSystems(m)
	sys := systems.NewPoissonSystem(es, "u", func(elem.Point) float64 { return 1 })
	es.Init()
	sys.DofMap.AddDirichletBoundary(systems.NewDirichletBoundary(m.Boundary.BoundaryIDSet(), []int{0}, nil))
	sys.AddQoI(&systems.IntegralQoI{Region: lowerCorner})
	sys.AddQoI(&systems.IntegralQoI{})
	qs := systems.NewQoISet(0, 1)
	for q := 0; q < sys.NQoIs(); q++ {
		qs.SetWeight(q, ap.QoIWeight(q))
	}
	est, err := buildEstimator(ap, qs)
	if err != nil {
		return
	}

	solve := func(step int) (s AdaptStep, err error) {
		if err = sys.Solve(); err != nil {
			return s, fmt.Errorf("adaptive step %d: %w", step, err)
		}
		sys.AdjointAlreadySolved = false
		s = AdaptStep{Step: step, NActiveElem: m.NActiveElem(), NDofs: sys.NDofs(),
			QoIValues: append([]float64(nil), sys.QoIValues...)}
		return
	}
	step := 0
	for ; step != ap.MaxAdaptiveSteps; step++ {
		var s AdaptStep
		if s, err = solve(step); err != nil {
			return
		}
		if ap.RefineUniformly {
			steps = append(steps, s)
			mr.UniformlyRefine(1)
			es.Reinit()
			continue
		}
		errors := &estimator.ErrorVector{}
		if err = est.EstimateError(sys, errors, false); err != nil {
			return steps, fmt.Errorf("adaptive step %d: %w", step, err)
		}
		s.ErrorEstimate = errors.L2Norm()
		steps = append(steps, s)
		if ap.AdaptToTolerance() {
			if s.ErrorEstimate <= ap.GlobalTolerance {
				return
			}
			mr.FlagElementsByErrorTolerance(errors.Values)
		} else if mr.FlagElementsByNelemTarget(errors.Values) {
			return
		}
		if !mr.RefineAndCoarsenElements() {
			return
		}
		es.Reinit()
	}
	var s AdaptStep
	if s, err = solve(step); err != nil {
		return
	}
	steps = append(steps, s)
	return
}
