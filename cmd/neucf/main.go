// Copyright 2026 neucf Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/gorse-io/neucf/base/log"
	"github.com/gorse-io/neucf/cmd/version"
	"github.com/gorse-io/neucf/config"
	"github.com/gorse-io/neucf/dataset"
)

var rootCommand = &cobra.Command{
	Use:   "neucf",
	Short: "Train and evaluate neural collaborative filtering models.",
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion, _ := cmd.PersistentFlags().GetBool("version"); showVersion {
			fmt.Println(version.BuildInfo())
			return
		}
		_ = cmd.Help()
	},
}

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Print the version of neucf.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.BuildInfo())
	},
}

func init() {
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	rootCommand.PersistentFlags().BoolP("version", "v", false, "neucf version")
	rootCommand.AddCommand(versionCommand)
	rootCommand.AddCommand(trainCommand)
	rootCommand.AddCommand(tuneCommand)
	rootCommand.AddCommand(testCommand)
}

// addDataFlags registers dataset loading flags shared by train and test.
func addDataFlags(flagSet *pflag.FlagSet) {
	flagSet.String("load-builtin", "", "load data from a built-in dataset")
	flagSet.String("load-csv", "", "load data from a CSV file")
	flagSet.String("csv-sep", "\t", "load CSV file with separator")
	flagSet.Bool("csv-header", false, "load CSV file with header")
	flagSet.Float32("train-ratio", 0.8, "fraction of each user's earliest interactions kept for training")
}

// loadData loads a dataset from flags, falling back to the configured source.
func loadData(flagSet *pflag.FlagSet, conf *config.Config) (*dataset.Dataset, error) {
	if flagSet.Changed("load-csv") {
		path, _ := flagSet.GetString("load-csv")
		sep, _ := flagSet.GetString("csv-sep")
		header, _ := flagSet.GetBool("csv-header")
		log.Logger().Info("load dataset from CSV", zap.String("path", path))
		return dataset.LoadDataFromCSV(path, sep, header)
	}
	if flagSet.Changed("load-builtin") {
		name, _ := flagSet.GetString("load-builtin")
		log.Logger().Info("load built-in dataset", zap.String("name", name))
		return dataset.LoadDataFromBuiltIn(name)
	}
	if conf.Dataset.Path != "" {
		log.Logger().Info("load dataset from CSV", zap.String("path", conf.Dataset.Path))
		return dataset.LoadDataFromCSV(conf.Dataset.Path, conf.Dataset.Sep, conf.Dataset.Header)
	}
	log.Logger().Info("load built-in dataset", zap.String("name", conf.Dataset.Name))
	return dataset.LoadDataFromBuiltIn(conf.Dataset.Name)
}

// loadRunConfig loads the configuration file if given, the defaults
// otherwise.
func loadRunConfig(flagSet *pflag.FlagSet) (*config.Config, error) {
	if flagSet.Changed("config") {
		configPath, _ := flagSet.GetString("config")
		log.Logger().Info("load config", zap.String("config", configPath))
		return config.LoadConfig(configPath)
	}
	return config.GetDefaultConfig(), nil
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
