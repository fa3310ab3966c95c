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
	"github.com/gorse-io/neucf/config"
	"github.com/gorse-io/neucf/model"
)

var trainCommand = &cobra.Command{
	Use:   "train [gmf|mlp|neumf]",
	Short: "Train a model on a chronological split and report leave-one-out metrics.",
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
		// hyper-parameter overrides
		if flagSet.Changed("set-n-factors") {
			conf.Model.NFactors, _ = flagSet.GetInt("set-n-factors")
		}
		if flagSet.Changed("set-layers") {
			conf.Model.Layers, _ = flagSet.GetIntSlice("set-layers")
		}
		if flagSet.Changed("set-n-epochs") {
			conf.Train.NEpochs, _ = flagSet.GetInt("set-n-epochs")
		}
		if flagSet.Changed("set-lr") {
			lr, _ := flagSet.GetFloat32("set-lr")
			conf.Train.Lr = lr
		}
		if flagSet.Changed("set-reg") {
			reg, _ := flagSet.GetFloat32("set-reg")
			conf.Train.Reg = reg
		}
		if flagSet.Changed("set-n-negatives") {
			conf.Train.NNegatives, _ = flagSet.GetInt("set-n-negatives")
		}
		if flagSet.Changed("set-batch-size") {
			conf.Train.BatchSize, _ = flagSet.GetInt("set-batch-size")
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
		if conf.Pretrain.Enabled() {
			if err := loadPretrained(m.(*model.NeuMF), conf); err != nil {
				log.Logger().Fatal("failed to load pre-trained models", zap.Error(err))
			}
		}
		// train with interrupt support
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		score := m.Fit(ctx, trainSet, testSet, conf.FitConfig())
		// report
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Metric", "Value")
		_ = table.Append([]string{fmt.Sprintf("HR@%d", conf.Eval.TopK), fmt.Sprintf("%f", score.HR)})
		_ = table.Append([]string{fmt.Sprintf("NDCG@%d", conf.Eval.TopK), fmt.Sprintf("%f", score.NDCG)})
		if err := table.Render(); err != nil {
			log.Logger().Error("failed to render table", zap.Error(err))
		}
		// save checkpoint
		if flagSet.Changed("model-path") {
			path, _ := flagSet.GetString("model-path")
			if err := model.Save(path, m); err != nil {
				log.Logger().Fatal("failed to save model", zap.Error(err))
			}
			log.Logger().Info("model saved", zap.String("path", path))
		}
	},
}

// loadPretrained warm-starts a NeuMF model from configured checkpoints. The
// mixing coefficient comes from the model's Alpha hyper-parameter.
func loadPretrained(neumf *model.NeuMF, conf *config.Config) error {
	gmfModel, err := model.Load(conf.Pretrain.GMFPath)
	if err != nil {
		return err
	}
	mlpModel, err := model.Load(conf.Pretrain.MLPPath)
	if err != nil {
		return err
	}
	gmf, ok := gmfModel.(*model.GMF)
	if !ok {
		return fmt.Errorf("%s is not a GMF checkpoint", conf.Pretrain.GMFPath)
	}
	mlp, ok := mlpModel.(*model.MLP)
	if !ok {
		return fmt.Errorf("%s is not an MLP checkpoint", conf.Pretrain.MLPPath)
	}
	alpha := neumf.GetParams().GetFloat32(model.Alpha, 0.5)
	return neumf.LoadPretrained(gmf, mlp, alpha)
}

func init() {
	flagSet := trainCommand.Flags()
	flagSet.StringP("config", "c", "", "configuration file path")
	addDataFlags(flagSet)
	// hyper-parameters
	flagSet.Int("set-n-factors", 0, "set number of latent factors")
	flagSet.IntSlice("set-layers", nil, "set perceptron layer sizes")
	flagSet.Int("set-n-epochs", 0, "set number of epochs")
	flagSet.Float32("set-lr", 0, "set learning rate")
	flagSet.Float32("set-reg", 0, "set regularization strength")
	flagSet.Int("set-n-negatives", 0, "set negative samples per positive")
	flagSet.Int("set-batch-size", 0, "set size of mini-batch")
	flagSet.Int64("random-state", 0, "set random state (seed)")
	// evaluation
	flagSet.Int("top", 10, "evaluate the model in top N ranking")
	flagSet.Int("eval-negatives", 100, "negatives per leave-one-out group")
	flagSet.Int("jobs", 1, "number of parallel evaluation workers")
	// output
	flagSet.String("model-path", "", "path to save the trained model")
}
