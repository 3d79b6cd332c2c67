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
	"math"
	"os"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/rb"
	"github.com/mfkiwl/libmesh/systems"
)

type RBModel struct {
	Elements      int
	NTrain        int
	Nmax          int
	RelTolerance  float64
	Deterministic bool
	Seed          int64
	RangesFile    string
	Mu            []float64 // Online conductivities of blocks 1, 2 and 3
}

type RBResult struct {
	NBasis        int
	MaxTrainBound float64
	// Online results at the model's Mu
	Output, OutputBound, TruthOutput float64
	ErrorBound, TrueError            float64
}

// RBCmd represents the rb command
var RBCmd = &cobra.Command{
	Use:   "rb",
	Short: "Train a reduced basis for a four block thermal problem",
	Long: `
Trains a reduced basis for -div(k grad u) = 1 on the unit square with u = 0 on
the boundary, where k is one on the lower left block and the parameters k1,
k2 and k3 in [0.1,10] on the other three. The output is the integral of u.
The basis is then evaluated online at one parameter, with its error bounds
checked against the full order solution.

libmesh rb -n 64 --deterministic --mu 0.5,2,8`,
	Run: func(cmd *cobra.Command, args []string) {
		rm := &RBModel{}
		rm.Elements, _ = cmd.Flags().GetInt("elements")
		rm.NTrain, _ = cmd.Flags().GetInt("nTrain")
		rm.Nmax, _ = cmd.Flags().GetInt("nmax")
		rm.RelTolerance, _ = cmd.Flags().GetFloat64("tolerance")
		rm.Deterministic, _ = cmd.Flags().GetBool("deterministic")
		rm.Seed, _ = cmd.Flags().GetInt64("seed")
		rm.RangesFile, _ = cmd.Flags().GetString("rangesFile")
		rm.Mu, _ = cmd.Flags().GetFloat64Slice("mu")
		if err := measured(func() error {
			res, err := RunRB(rm)
			if err == nil {
				res.Print()
			}
			return err
		}); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(RBCmd)
	RBCmd.Flags().IntP("elements", "e", 8, "elements per direction")
	RBCmd.Flags().IntP("nTrain", "n", 50, "number of training parameters")
	RBCmd.Flags().Int("nmax", 20, "maximum number of basis functions")
	RBCmd.Flags().Float64("tolerance", 1.e-4, "relative training tolerance")
	RBCmd.Flags().Bool("deterministic", false, "train on a log spaced grid instead of random samples")
	RBCmd.Flags().Int64("seed", 1, "training set seed, negative to seed from the clock")
	RBCmd.Flags().String("rangesFile", "", "YAML file to write the parameter ranges to")
	RBCmd.Flags().Float64Slice("mu", []float64{0.5, 2, 8}, "online parameter k1,k2,k3")
}

var blockNames = []string{"k1", "k2", "k3"}

// block numbers the quadrants of the unit square, lower left first.
func block(p elem.Point) int {
	b := 0
	if p.X >= 0.5 {
		b++
	}
	if p.Y >= 0.5 {
		b += 2
	}
	return b
}

func RunRB(rm *RBModel) (res *RBResult, err error) {
	if len(rm.Mu) != len(blockNames) {
		return nil, fmt.Errorf("the online parameter needs %d values, have %v", len(blockNames), rm.Mu)
	}
	if rm.NTrain < 1 {
		return nil, fmt.Errorf("need at least one training parameter, have %d", rm.NTrain)
	}
	m, err := BuildMesh("", 2, rm.Elements, "")
	if err != nil {
		return
	}
	es := systems.NewEquationSystems(m)
	sys := systems.NewPoissonSystem(es, "u", nil)
	es.Init()
	sys.DofMap.AddDirichletBoundary(systems.NewDirichletBoundary(m.Boundary.BoundaryIDSet(), []int{0}, nil))

	te := &rb.RBThetaExpansion{}
	aTerms := make([]systems.ElementAssembler, 4)
	for b := range aTerms {
		b := b
		aTerms[b] = &systems.Poisson{Conductivity: func(p elem.Point) float64 {
			if block(p) == b {
				return 1
			}
			return 0
		}}
		if b == 0 {
			te.AttachATheta(func(*rb.RBParameters) float64 { return 1 })
		} else {
			name := blockNames[b-1]
			te.AttachATheta(func(mu *rb.RBParameters) float64 { return mu.Value(name) })
		}
	}
	one := func(*rb.RBParameters) float64 { return 1 }
	te.AttachFTheta(one)
	te.AttachOutputTheta(one)
	ao := rb.AssembleAffineOperators(sys, aTerms,
		[]systems.ElementAssembler{&systems.Poisson{Source: func(elem.Point) float64 { return 1 }}},
		[][]systems.QoI{{&systems.IntegralQoI{}}})

	ev := rb.NewRBEvaluation(te)
	ev.StabilityLowerBound = func(mu *rb.RBParameters) (alpha float64) {
		alpha = 1
		for _, name := range blockNames {
			alpha = math.Min(alpha, mu.Value(name))
		}
		return
	}
	muMin, muMax := rb.NewRBParameters(), rb.NewRBParameters()
	logScaling := make(map[string]bool)
	for _, name := range blockNames {
		muMin.SetValue(name, 0.1)
		muMax.SetValue(name, 10)
		logScaling[name] = true
	}
	ev.InitializeParameters(muMin, muMax, nil)
	rc := rb.NewRBConstruction(ev, ao, rb.Combine(ao.Aq, []float64{1, 1, 1, 1}))
	rc.Nmax, rc.RelTrainingTolerance, rc.Quiet = rm.Nmax, rm.RelTolerance, !rootVerbose()
	rc.TrainingSet = rb.GenerateTrainingSet(&ev.RBParametrized, rb.TrainingOptions{
		NSamples: rm.NTrain, Deterministic: rm.Deterministic, LogScaling: logScaling, Seed: rm.Seed})
	res = &RBResult{MaxTrainBound: rc.TrainReducedBasis(), NBasis: rc.NBasisFunctions()}
	if len(rm.RangesFile) != 0 {
		if err = ev.WriteParameterRanges(rm.RangesFile); err != nil {
			return
		}
	}

	mu := rb.NewRBParameters()
	for i, name := range blockNames {
		mu.SetValue(name, rm.Mu[i])
	}
	if !rc.SetParameters(mu) {
		return nil, fmt.Errorf("online parameter %v is outside the training range", rm.Mu)
	}
	res.ErrorBound = rc.Solve(rc.NBasisFunctions())
	res.Output, res.OutputBound = rc.Outputs[0], rc.OutputErrorBounds[0]
	truth := rc.TruthSolve()
	res.TruthOutput = rc.TruthOutputs(truth)[0]
	var e mat.VecDense
	e.SubVec(truth, rc.Reconstruct())
	res.TrueError = math.Sqrt(mat.Inner(&e, rc.InnerProduct, &e))
	return
}

func (res *RBResult) Print() {
	fmt.Printf("Reduced basis functions: %d, max training error bound %.6g\n", res.NBasis, res.MaxTrainBound)
	fmt.Printf("Online output %.12g, bound %.6g, truth %.12g\n", res.Output, res.OutputBound, res.TruthOutput)
	fmt.Printf("Online error bound %.6g, true error %.6g\n", res.ErrorBound, res.TrueError)
}
