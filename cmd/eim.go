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

	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/rb"
)

type EIMModel struct {
	Elements     int
	NTrain       int
	Nmax         int
	RelTolerance float64
	Seed         int64
	RangesFile   string
	DiscreteFile string
	Mu           []float64 // Online evaluation point, (x0, y0)
}

type EIMResult struct {
	NBasis        int
	MaxTrainError float64
	GreedyParams  []*rb.RBParameters
	// Online results at the model's Mu
	MaxError       float64
	ErrorIndicator float64
	HaveIndicator  bool
}

// EIMCmd represents the eim command
var EIMCmd = &cobra.Command{
	Use:   "eim",
	Short: "Train an empirical interpolation of a parametrized singular function",
	Long: `
Trains an empirical interpolation of f(x, y; x0, y0) = 1/sqrt((x-x0)^2 + (y-y0)^2)
over the unit square for (x0, y0) in [-3,-0.01]^2, then evaluates the
interpolant online at one parameter.

libmesh eim -n 100 --nmax 15 --mu -0.5,-0.5`,
	Run: func(cmd *cobra.Command, args []string) {
		em := &EIMModel{}
		em.Elements, _ = cmd.Flags().GetInt("elements")
		em.NTrain, _ = cmd.Flags().GetInt("nTrain")
		em.Nmax, _ = cmd.Flags().GetInt("nmax")
		em.RelTolerance, _ = cmd.Flags().GetFloat64("tolerance")
		em.Seed, _ = cmd.Flags().GetInt64("seed")
		em.RangesFile, _ = cmd.Flags().GetString("rangesFile")
		em.DiscreteFile, _ = cmd.Flags().GetString("discreteFile")
		em.Mu, _ = cmd.Flags().GetFloat64Slice("mu")
		if err := measured(func() error {
			res, err := RunEIM(em)
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
	rootCmd.AddCommand(EIMCmd)
	EIMCmd.Flags().IntP("elements", "e", 8, "elements per direction of the sampling mesh")
	EIMCmd.Flags().IntP("nTrain", "n", 50, "number of random training parameters")
	EIMCmd.Flags().Int("nmax", 20, "maximum number of basis functions")
	EIMCmd.Flags().Float64("tolerance", 1.e-4, "relative training tolerance")
	EIMCmd.Flags().Int64("seed", 1, "training set seed, negative to seed from the clock")
	EIMCmd.Flags().String("rangesFile", "", "YAML file to write the parameter ranges to")
	EIMCmd.Flags().String("discreteFile", "", "YAML file to write the discrete parameter values to")
	EIMCmd.Flags().Float64Slice("mu", []float64{-0.5, -0.5}, "online parameter x0,y0")
}

func singularFunction(mu *rb.RBParameters, p elem.Point) float64 {
	dx, dy := p.X-mu.Value("x0"), p.Y-mu.Value("y0")
	return 1 / math.Sqrt(dx*dx+dy*dy)
}

func RunEIM(em *EIMModel) (res *EIMResult, err error) {
	if len(em.Mu) != 2 {
		return nil, fmt.Errorf("the online parameter needs two values, have %v", em.Mu)
	}
	if em.NTrain < 1 {
		return nil, fmt.Errorf("need at least one training parameter, have %d", em.NTrain)
	}
	m, err := BuildMesh("", 2, em.Elements, "")
	if err != nil {
		return
	}
	ev := rb.NewRBEIMEvaluation(singularFunction)
	muMin, muMax := rb.NewRBParameters(), rb.NewRBParameters()
	for _, name := range []string{"x0", "y0"} {
		muMin.SetValue(name, -3)
		muMax.SetValue(name, -0.01)
	}
	ev.InitializeParameters(muMin, muMax, nil)
	ec := rb.NewRBEIMConstruction(ev, m)
	ec.Nmax, ec.RelTrainingTolerance = em.Nmax, em.RelTolerance
	ec.TrainingSet = rb.GenerateTrainingSet(&ev.RBParametrized, rb.TrainingOptions{NSamples: em.NTrain, Seed: em.Seed})
	ec.Quiet = !rootVerbose()
	res = &EIMResult{MaxTrainError: ec.TrainEIMApproximation(), NBasis: ec.NBasisFunctions()}
	for _, i := range ec.GreedyIndices {
		res.GreedyParams = append(res.GreedyParams, ec.TrainingSet[i])
	}
	if len(em.RangesFile) != 0 {
		if err = ev.WriteParameterData(em.RangesFile, em.DiscreteFile); err != nil {
			return
		}
	}

	mu := rb.NewRBParameters()
	mu.SetValue("x0", em.Mu[0])
	mu.SetValue("y0", em.Mu[1])
	if !ev.SetParameters(mu) {
		return nil, fmt.Errorf("online parameter %v is outside the training range", em.Mu)
	}
	ev.Solve(ev.NBasisFunctions())
	for k, v := range ev.Approximation() {
		res.MaxError = math.Max(res.MaxError, math.Abs(singularFunction(mu, ev.Points[k])-v))
	}
	res.ErrorIndicator, res.HaveIndicator = ev.ErrorIndicator()
	return
}

func (res *EIMResult) Print() {
	fmt.Printf("EIM basis functions: %d, max training error %.6g\n", res.NBasis, res.MaxTrainError)
	for j, mu := range res.GreedyParams {
		fmt.Printf("  greedy parameter %d: x0 = %.6g, y0 = %.6g\n", j, mu.Value("x0"), mu.Value("y0"))
	}
	fmt.Printf("Online max nodal error %.6g\n", res.MaxError)
	if res.HaveIndicator {
		fmt.Printf("Online error indicator %.6g\n", res.ErrorIndicator)
	}
}
