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
	"bufio"
	"fmt"
	"os"

	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gorse-io/neucf/base/log"
	"github.com/gorse-io/neucf/dataset"
	"github.com/gorse-io/neucf/model"
)

var testCommand = &cobra.Command{
	Use:   "test MODEL_PATH",
	Short: "Evaluate a saved model on a chronological split.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		flagSet := cmd.Flags()
		debug, _ := cmd.Root().PersistentFlags().GetBool("debug")
		log.SetLogger(cmd.Root().PersistentFlags(), debug)
		conf, err := loadRunConfig(flagSet)
		if err != nil {
			log.Logger().Fatal("failed to load config", zap.Error(err))
		}
		if flagSet.Changed("train-ratio") {
			conf.Dataset.TrainRatio, _ = flagSet.GetFloat32("train-ratio")
		}
		// load checkpoint
		m, err := model.Load(args[0])
		if err != nil {
			log.Logger().Fatal("failed to load model", zap.Error(err))
		}
		log.Logger().Info("model loaded",
			zap.String("path", args[0]),
			zap.String("model", model.GetModelName(m)))
		// load and split data
		data, err := loadData(flagSet, conf)
		if err != nil {
			log.Logger().Fatal("failed to load dataset", zap.Error(err))
		}
		trainSet, testSet, err := data.SplitChrono(conf.Dataset.TrainRatio)
		if err != nil {
			log.Logger().Fatal("failed to split dataset", zap.Error(err))
		}
		if err := model.CheckDataset(m, trainSet); err != nil {
			log.Logger().Fatal("checkpoint does not match dataset", zap.Error(err))
		}
		topK, _ := flagSet.GetInt("top")
		numNegatives, _ := flagSet.GetInt("eval-negatives")
		jobs, _ := flagSet.GetInt("jobs")
		seed, _ := flagSet.GetInt64("random-state")
		// leave-one-out evaluation
		groups := dataset.NewLeaveOneOut(testSet, trainSet, numNegatives, seed)
		score := model.EvaluateLeaveOneOut(m, groups, topK, jobs)
		// full-catalog ranking evaluation
		results := model.Evaluate(m, testSet, trainSet, topK, jobs,
			model.Precision, model.Recall, model.MAP, model.NDCG)
		// report
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Metric", "Value")
		rows := [][]string{
			{fmt.Sprintf("HR@%d", topK), fmt.Sprintf("%f", score.HR)},
			{fmt.Sprintf("NDCG@%d (leave-one-out)", topK), fmt.Sprintf("%f", score.NDCG)},
			{fmt.Sprintf("Precision@%d", topK), fmt.Sprintf("%f", results[0])},
			{fmt.Sprintf("Recall@%d", topK), fmt.Sprintf("%f", results[1])},
			{fmt.Sprintf("MAP@%d", topK), fmt.Sprintf("%f", results[2])},
			{fmt.Sprintf("NDCG@%d", topK), fmt.Sprintf("%f", results[3])},
		}
		for _, row := range rows {
			_ = table.Append(row)
		}
		if err := table.Render(); err != nil {
			log.Logger().Error("failed to render table", zap.Error(err))
		}
		// write per-interaction predictions
		if flagSet.Changed("predictions") {
			path, _ := flagSet.GetString("predictions")
			if err := writePredictions(path, model.PredictAll(m, testSet, jobs)); err != nil {
				log.Logger().Fatal("failed to write predictions", zap.Error(err))
			}
			log.Logger().Info("predictions saved", zap.String("path", path))
		}
	},
}

// writePredictions writes scored test interactions as a CSV file.
func writePredictions(path string, predictions []model.Prediction) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Trace(err)
	}
	defer file.Close()
	writer := bufio.NewWriter(file)
	if _, err := fmt.Fprintln(writer, "user_id,item_id,score"); err != nil {
		return errors.Trace(err)
	}
	for _, prediction := range predictions {
		if _, err := fmt.Fprintf(writer, "%s,%s,%f\n",
			prediction.UserId, prediction.ItemId, prediction.Score); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(writer.Flush())
}

func init() {
	flagSet := testCommand.Flags()
	flagSet.StringP("config", "c", "", "configuration file path")
	addDataFlags(flagSet)
	flagSet.Int("top", 10, "evaluate the model in top N ranking")
	flagSet.Int("eval-negatives", 100, "negatives per leave-one-out group")
	flagSet.Int("jobs", 1, "number of parallel evaluation workers")
	flagSet.Int64("random-state", 0, "seed for leave-one-out negative sampling")
	flagSet.String("predictions", "", "path to save test set predictions as CSV")
}
