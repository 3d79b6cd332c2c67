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

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mfkiwl/libmesh/estimator"
	"github.com/mfkiwl/libmesh/refinement"
	"github.com/mfkiwl/libmesh/systems"
)

var (
	cfgFile  string
	profiler interface{ Stop() }
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "libmesh",
	Short: "Adaptive finite element meshes, systems and reduced basis tools",
	Long: `
Builds, refines and partitions unstructured meshes, solves Poisson problems on
adaptively refined meshes with error estimation, and trains reduced basis and
empirical interpolation approximations.

libmesh mesh -d 2 -n 8 --alltri
libmesh adapt -I adapt.yaml
libmesh eim -n 50`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		verbose := viper.GetBool("verbose")
		estimator.Verbose, refinement.Verbose, systems.Verbose = verbose, verbose, verbose
		switch mode := viper.GetString("profile"); mode {
		case "":
		case "cpu":
			profiler = profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook)
		case "mem":
			profiler = profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook)
		default:
			fmt.Printf("error: unknown profile mode %q, use cpu or mem\n", mode)
			os.Exit(1)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if profiler != nil {
			profiler.Stop()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.libmesh.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "report solver, estimator and refinement progress")
	rootCmd.PersistentFlags().String("profile", "", "write a cpu or mem profile to the current directory")
	rootCmd.PersistentFlags().Bool("perf", false, "count the instructions retired by the run (Linux only)")
	for _, name := range []string{"verbose", "profile", "perf"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		// Search config in home directory with name ".libmesh" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".libmesh")
	}
	viper.SetEnvPrefix("libmesh")
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

// measured runs f, counting its instructions when the perf flag is set.
func measured(f func() error) (err error) {
	if !viper.GetBool("perf") {
		return f()
	}
	var count uint64
	if count, err = countInstructions(f); err != nil {
		return
	}
	fmt.Printf("%d instructions\n", count)
	return
}

func rootVerbose() bool { return viper.GetBool("verbose") }
