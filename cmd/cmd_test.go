package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfkiwl/libmesh/InputParameters"
	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/meshio"
	"github.com/mfkiwl/libmesh/rb"
)

func TestBuildMesh(t *testing.T) {
	m, err := BuildMesh("", 3, 2, "Tet4")
	require.NoError(t, err)
	assert.Equal(t, 48, m.NActiveElem())
	m, err = BuildMesh("", 1, 5, "")
	require.NoError(t, err)
	assert.Equal(t, 5, m.NActiveElem())

	_, err = BuildMesh("", 4, 2, "")
	assert.Error(t, err)
	_, err = BuildMesh("", 2, 2, "Hex8")
	assert.Error(t, err)
	_, err = BuildMesh("", 2, 2, "Quad9")
	assert.Error(t, err)
	_, err = BuildMesh("", 2, 0, "")
	assert.Error(t, err)
	_, err = BuildMesh(filepath.Join(t.TempDir(), "missing.neu"), 2, 2, "")
	assert.Error(t, err)

	msh := filepath.Join(t.TempDir(), "line.msh")
	require.NoError(t, os.WriteFile(msh, []byte(`$MeshFormat
2.2 0 8
$EndMeshFormat
$Nodes
3
1 0 0 0
2 0.5 0 0
3 1 0 0
$EndNodes
$Elements
4
1 15 2 4 1 1
2 15 2 5 3 3
3 1 2 1 1 1 2
4 1 2 1 1 2 3
$EndElements
`), 0644))
	m, err = BuildMesh(msh, 2, 2, "")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Dim)
	assert.Equal(t, 2, m.NActiveElem())
	assert.Len(t, m.Boundary.BoundaryIDSet(), 2)
}

func TestRunMesh(t *testing.T) {
	out := filepath.Join(t.TempDir(), "square.neu")
	m, err := RunMesh(&MeshModel{Dim: 2, N: 2, AllTri: true, Refinements: 1, NParts: 2, OutputFile: out})
	require.NoError(t, err)
	// Eight triangles, each refined into four
	assert.Equal(t, 32, m.NActiveElem())
	owners := map[uint16]int{}
	for _, e := range m.ActiveElements() {
		assert.Equal(t, elem.Tri3, e.Type)
		owners[uint16(e.ProcessorID())]++
	}
	assert.Equal(t, map[uint16]int{0: 16, 1: 16}, owners)

	back, err := meshio.ReadGambit(out, false)
	require.NoError(t, err)
	assert.Equal(t, 32, back.NActiveElem())
	assert.Equal(t, m.NNodes(), back.NNodes())

	_, err = RunMesh(&MeshModel{Dim: 2, N: 2, NParts: 0})
	assert.Error(t, err)
}

func TestMeshCommand(t *testing.T) {
	rootCmd.SetArgs([]string{"mesh", "-d", "1", "-n", "3", "-r", "1"})
	require.NoError(t, rootCmd.Execute())
}

func adaptParameters() (ap *InputParameters.AdaptivityParameters) {
	ap = InputParameters.NewAdaptivityParameters()
	ap.CoarsenFraction, ap.CoarsenThreshold = 0, 0
	return
}

func TestRunAdaptToElementTarget(t *testing.T) {
	ap := adaptParameters()
	ap.Elements, ap.NelemTarget, ap.MaxAdaptiveSteps = 4, 60, 8
	require.NoError(t, ap.Validate())
	steps, err := RunAdapt(ap)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(steps), 2)
	assert.Equal(t, 16, steps[0].NActiveElem)
	assert.Greater(t, steps[1].NActiveElem, 16)
	for i, s := range steps {
		require.Len(t, s.QoIValues, 2)
		assert.Greater(t, s.QoIValues[0], 0.)
		assert.Greater(t, s.QoIValues[1], s.QoIValues[0])
		// The Galerkin energy (1, u_h) grows on nested spaces towards 0.0351
		assert.Less(t, s.QoIValues[1], 0.0352)
		if i > 0 {
			assert.GreaterOrEqual(t, s.NDofs, steps[i-1].NDofs)
			assert.GreaterOrEqual(t, s.QoIValues[1], steps[i-1].QoIValues[1]-1.e-12)
		}
	}
	assert.Greater(t, steps[0].ErrorEstimate, 0.)
}

func TestRunAdaptToTolerance(t *testing.T) {
	ap := adaptParameters()
	ap.Elements, ap.NelemTarget, ap.GlobalTolerance, ap.MaxAdaptiveSteps = 2, 0, 1.e-3, 3
	require.NoError(t, ap.Validate())
	steps, err := RunAdapt(ap)
	require.NoError(t, err)
	require.NotEmpty(t, steps)
	assert.LessOrEqual(t, len(steps), 4)
	for i := 1; i < len(steps); i++ {
		assert.GreaterOrEqual(t, steps[i].NActiveElem, steps[i-1].NActiveElem)
	}
}

func TestRunAdaptUniformly(t *testing.T) {
	ap := adaptParameters()
	ap.Dim, ap.Elements, ap.RefineUniformly, ap.MaxAdaptiveSteps = 1, 2, true, 2
	steps, err := RunAdapt(ap)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	for i, n := range []int{2, 4, 8} {
		assert.Equal(t, n, steps[i].NActiveElem)
		assert.Equal(t, n+1, steps[i].NDofs)
		assert.Zero(t, steps[i].ErrorEstimate)
	}
}

func TestRunAdaptWithAdjointEstimator(t *testing.T) {
	ap := adaptParameters()
	ap.Elements, ap.NelemTarget, ap.MaxAdaptiveSteps = 2, 12, 2
	ap.IndicatorType = "adjoint_refinement"
	ap.QoIWeights = []float64{1, 0}
	steps, err := RunAdapt(ap)
	require.NoError(t, err)
	require.NotEmpty(t, steps)
	assert.Greater(t, steps[0].ErrorEstimate, 0.)
}

func TestProcessAdaptInput(t *testing.T) {
	ap, err := processAdaptInput("")
	require.NoError(t, err)
	assert.Equal(t, InputParameters.NewAdaptivityParameters(), ap)

	dir := t.TempDir()
	in := filepath.Join(dir, "general.in")
	require.NoError(t, os.WriteFile(in, []byte("nelem_target = 100 # elements\nindicator_type = 'discontinuity'\n"), 0644))
	ap, err = processAdaptInput(in)
	require.NoError(t, err)
	assert.Equal(t, 100, ap.NelemTarget)
	assert.Equal(t, "discontinuity", ap.IndicatorType)

	yml := filepath.Join(dir, "adapt.yaml")
	require.NoError(t, os.WriteFile(yml, []byte("nelem_target: 0\nglobal_tolerance: 0.01\n"), 0644))
	ap, err = processAdaptInput(yml)
	require.NoError(t, err)
	assert.True(t, ap.AdaptToTolerance())

	require.NoError(t, os.WriteFile(yml, []byte("global_tolerance: 0.01\n"), 0644))
	_, err = processAdaptInput(yml)
	assert.Error(t, err)
}

func TestRunEIM(t *testing.T) {
	ranges := filepath.Join(t.TempDir(), "ranges.yaml")
	res, err := RunEIM(&EIMModel{Elements: 4, NTrain: 20, Nmax: 5, Seed: 3, RangesFile: ranges,
		Mu: []float64{-0.5, -0.5}})
	require.NoError(t, err)
	assert.Equal(t, 5, res.NBasis)
	assert.Len(t, res.GreedyParams, 5)
	assert.Greater(t, res.MaxTrainError, 0.)
	assert.True(t, res.HaveIndicator)
	assert.GreaterOrEqual(t, res.MaxError, 0.)

	muMin, muMax, err := rb.ReadParameterRanges(ranges)
	require.NoError(t, err)
	assert.Equal(t, -3., muMin.Value("x0"))
	assert.Equal(t, -0.01, muMax.Value("y0"))

	_, err = RunEIM(&EIMModel{Elements: 2, NTrain: 4, Nmax: 2, Mu: []float64{1, 1}})
	assert.Error(t, err)
	_, err = RunEIM(&EIMModel{Elements: 2, NTrain: 4, Nmax: 2, Mu: []float64{-1}})
	assert.Error(t, err)
}

func TestRunRB(t *testing.T) {
	res, err := RunRB(&RBModel{Elements: 4, NTrain: 27, Nmax: 6, RelTolerance: 1.e-8, Deterministic: true,
		Mu: []float64{0.5, 2, 8}})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.NBasis, 1)
	assert.LessOrEqual(t, res.NBasis, 6)
	assert.GreaterOrEqual(t, res.ErrorBound*(1+1.e-8)+1.e-12, res.TrueError)
	assert.GreaterOrEqual(t, res.OutputBound*(1+1.e-8)+1.e-12, res.Output-res.TruthOutput)
	assert.GreaterOrEqual(t, res.OutputBound*(1+1.e-8)+1.e-12, res.TruthOutput-res.Output)
	assert.Greater(t, res.TruthOutput, 0.)

	_, err = RunRB(&RBModel{Elements: 2, NTrain: 2, Nmax: 1, Mu: []float64{20, 1, 1}})
	assert.Error(t, err)
	_, err = RunRB(&RBModel{Elements: 2, NTrain: 0, Mu: []float64{1, 1, 1}})
	assert.Error(t, err)
}
