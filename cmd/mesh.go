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
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mfkiwl/libmesh/elem"
	"github.com/mfkiwl/libmesh/mesh"
	"github.com/mfkiwl/libmesh/meshio"
	"github.com/mfkiwl/libmesh/partition"
	"github.com/mfkiwl/libmesh/refinement"
	"github.com/mfkiwl/libmesh/types"
)

type MeshModel struct {
	GridFile    string
	Dim, N      int
	ElemType    string
	AllTri      bool
	Refinements int
	NParts      int
	Metis       bool
	OutputFile  string
}

// MeshCmd represents the mesh command
var MeshCmd = &cobra.Command{
	Use:   "mesh",
	Short: "Generate or read a mesh, then refine, partition and write it",
	Long: `
Generates a structured line, square or cube mesh, or reads a Gambit neutral
file, optionally splits it into simplices, refines it uniformly and partitions
it, then prints its statistics and optionally writes it back out.

libmesh mesh -d 3 -n 4 -t Tet4 -p 4 --metis -o cube.neu`,
	Run: func(cmd *cobra.Command, args []string) {
		mm := &MeshModel{}
		mm.GridFile, _ = cmd.Flags().GetString("gridFile")
		mm.Dim, _ = cmd.Flags().GetInt("dimension")
		mm.N, _ = cmd.Flags().GetInt("elements")
		mm.ElemType, _ = cmd.Flags().GetString("elemType")
		mm.AllTri, _ = cmd.Flags().GetBool("alltri")
		mm.Refinements, _ = cmd.Flags().GetInt("refine")
		mm.NParts, _ = cmd.Flags().GetInt("partitions")
		mm.Metis, _ = cmd.Flags().GetBool("metis")
		mm.OutputFile, _ = cmd.Flags().GetString("output")
		if err := measured(func() error {
			m, err := RunMesh(mm)
			if err == nil {
				m.PrintStatistics()
				printPartition(m)
			}
			return err
		}); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(MeshCmd)
	MeshCmd.Flags().StringP("gridFile", "F", "", "Grid file to read, Gmsh 2.2 (.msh), SU2 (.su2) or Gambit (.neu), a generated mesh when empty")
	MeshCmd.Flags().IntP("dimension", "d", 2, "dimension of the generated mesh")
	MeshCmd.Flags().IntP("elements", "n", 4, "generated elements per direction")
	MeshCmd.Flags().StringP("elemType", "t", "", "generated element type, Edge2, Quad4 or Hex8 by default")
	MeshCmd.Flags().Bool("alltri", false, "split every element into triangles or tetrahedra")
	MeshCmd.Flags().IntP("refine", "r", 0, "number of uniform refinements")
	MeshCmd.Flags().IntP("partitions", "p", 1, "number of partitions")
	MeshCmd.Flags().Bool("metis", false, "partition with METIS instead of in element order")
	MeshCmd.Flags().StringP("output", "o", "", "Gambit neutral file to write")
}

func defaultElemType(dim int) (et elem.ElemType, err error) {
	switch dim {
	case 1:
		et = elem.Edge2
	case 2:
		et = elem.Quad4
	case 3:
		et = elem.Hex8
	default:
		err = fmt.Errorf("dimension %d is not in [1,3]", dim)
	}
	return
}

// BuildMesh reads gridFile when set, else generates n elements per direction on the unit line, square or cube.
func BuildMesh(gridFile string, dim, n int, elemType string) (m *mesh.Mesh, err error) {
	if len(gridFile) != 0 {
		switch strings.ToLower(filepath.Ext(gridFile)) {
		case ".msh":
			return meshio.ReadGmsh(gridFile, false)
		case ".su2":
			return meshio.ReadSU2(gridFile, false)
		default:
			return meshio.ReadGambit(gridFile, false)
		}
	}
	if n < 1 {
		return nil, fmt.Errorf("need at least one element per direction, have %d", n)
	}
	var et elem.ElemType
	if et, err = defaultElemType(dim); err != nil {
		return
	}
	if len(elemType) != 0 {
		if et, err = elem.NewElemType(elemType); err != nil {
			return
		}
		if d := elem.GetTopology(et).Dim; d != dim {
			return nil, fmt.Errorf("%s is a %dD element, the mesh is %dD", et, d, dim)
		}
	}
	switch dim {
	case 1:
		m = mesh.BuildLine(n, 0, 1)
	case 2:
		m = mesh.BuildSquare(n, n, 0, 1, 0, 1, et)
	case 3:
		m = mesh.BuildCube(n, n, n, 0, 1, 0, 1, 0, 1, et)
	}
	return
}

func RunMesh(mm *MeshModel) (m *mesh.Mesh, err error) {
	if m, err = BuildMesh(mm.GridFile, mm.Dim, mm.N, mm.ElemType); err != nil {
		return
	}
	if mm.AllTri {
		mesh.AllTri(m)
	}
	refinement.NewMeshRefinement(m).UniformlyRefine(mm.Refinements)
	if mm.NParts < 1 {
		return nil, fmt.Errorf("number of partitions %d is less than one", mm.NParts)
	}
	var p partition.Partitioner = partition.LinearPartitioner{}
	if mm.Metis {
		p = partition.NewMetisPartitioner(nil)
	}
	if err = p.Partition(m, mm.NParts); err != nil {
		return
	}
	if len(mm.OutputFile) != 0 {
		err = meshio.WriteGambit(m, mm.OutputFile)
	}
	return
}

func printPartition(m *mesh.Mesh) {
	counts := make(map[types.ProcessorID]int)
	for _, e := range m.ActiveElements() {
		counts[e.ProcessorID()]++
	}
	pids := make([]types.ProcessorID, 0, len(counts))
	for pid := range counts {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	for _, pid := range pids {
		fmt.Printf("  Partition %d: %d active elements\n", pid, counts[pid])
	}
}
