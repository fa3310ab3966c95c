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
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gorse-io/neucf/base/log"
	"github.com/gorse-io/neucf/model"
)

var tuneCommand = &cobra.Command{
	Use:   "tune [gmf|mlp|neumf]",
	Short: "Search hyper-parameters on a chronological split.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		flagSet := cmd.Flags()
		debug, _ := cmd.Root().PersistentFlags().GetBool("debug")
		log.SetLogger(cmd.Root().PersistentFlags(), debug)
		conf, err := loadRunConfig(flagSet)
		if err != nil {
			log.Logger().Fatal("failed to load config", zap.Error(err))
		}
		if len(args) > 0 {
			conf.Model.Variant = args[0]
		}
		if flagSet.Changed("set-n-epochs") {
			conf.Train.NEpochs, _ = flagSet.GetInt("set-n-epochs")
		}
		if flagSet.Changed("random-state") {
			conf.Train.RandomState, _ = flagSet.GetInt64("random-state")
		}
		if flagSet.Changed("train-ratio") {
			conf.Dataset.TrainRatio, _ = flagSet.GetFloat32("train-ratio")
		}
		if flagSet.Changed("top") {
			conf.Eval.TopK, _ = flagSet.GetInt("top")
		}
		if flagSet.Changed("eval-negatives") {
			conf.Eval.NumNegatives, _ = flagSet.GetInt("eval-negatives")
		}
		if flagSet.Changed("jobs") {
			conf.Train.Jobs, _ = flagSet.GetInt("jobs")
		}
		if err := conf.Validate(); err != nil {
			log.Logger().Fatal("invalid config", zap.Error(err))
		}
		// load and split data
		data, err := loadData(flagSet, conf)
		if err != nil {
			log.Logger().Fatal("failed to load dataset", zap.Error(err))
		}
		trainSet, testSet, err := data.SplitChrono(conf.Dataset.TrainRatio)
		if err != nil {
			log.Logger().Fatal("failed to split dataset", zap.Error(err))
		}
		// create model
		m, err := model.NewModel(conf.Model.Variant, conf.Params())
		if err != nil {
			log.Logger().Fatal("failed to create model", zap.Error(err))
		}
		numTrials, _ := flagSet.GetInt("n-trials")
		// search with interrupt support
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		result, err := model.SearchParams(ctx, m, trainSet, testSet,
			m.GetParamsGrid(), numTrials, conf.FitConfig())
		if err != nil {
			log.Logger().Fatal("failed to search hyper-parameters", zap.Error(err))
		}
		// report
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Parameter", "Best Value")
		for name, value := range result.BestParams {
			_ = table.Append([]string{string(name), fmt.Sprintf("%v", value)})
		}
		_ = table.Append([]string{fmt.Sprintf("HR@%d", conf.Eval.TopK), fmt.Sprintf("%f", result.BestScore.HR)})
		_ = table.Append([]string{fmt.Sprintf("NDCG@%d", conf.Eval.TopK), fmt.Sprintf("%f", result.BestScore.NDCG)})
		if err := table.Render(); err != nil {
			log.Logger().Error("failed to render table", zap.Error(err))
		}
	},
}

func init() {
	flagSet := tuneCommand.Flags()
	flagSet.StringP("config", "c", "", "configuration file path")
	addDataFlags(flagSet)
	flagSet.Int("n-trials", 10, "number of search trials")
	flagSet.Int("set-n-epochs", 0, "set number of epochs")
	flagSet.Int64("random-state", 0, "set random state (seed)")
	flagSet.Int("top", 10, "evaluate the model in top N ranking")
	flagSet.Int("eval-negatives", 100, "negatives per leave-one-out group")
	flagSet.Int("jobs", 1, "number of parallel evaluation workers")
}
