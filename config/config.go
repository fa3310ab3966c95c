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

// Package config defines the TOML configuration of training and evaluation
// runs.
package config

import (
	"strings"

	"github.com/juju/errors"
	"github.com/spf13/viper"

	"github.com/gorse-io/neucf/model"
)

// Config is the configuration of a training or evaluation run.
type Config struct {
	Dataset  DatasetConfig  `mapstructure:"dataset"`
	Model    ModelConfig    `mapstructure:"model"`
	Train    TrainConfig    `mapstructure:"train"`
	Eval     EvalConfig     `mapstructure:"eval"`
	Pretrain PretrainConfig `mapstructure:"pretrain"`
}

// DatasetConfig describes the source dataset and the chronological split.
type DatasetConfig struct {
	// name of a built-in dataset, ignored if path is set
	Name string `mapstructure:"name"`
	// path of a CSV file with <user,item,rating,timestamp> records
	Path string `mapstructure:"path"`
	// field separator of the CSV file
	Sep string `mapstructure:"sep"`
	// whether the CSV file has a header line
	Header bool `mapstructure:"header"`
	// fraction of each user's earliest interactions kept for training
	TrainRatio float32 `mapstructure:"train_ratio" validate:"gt=0,lt=1"`
}

// ModelConfig selects the model variant and its shape.
type ModelConfig struct {
	Variant  string `mapstructure:"variant" validate:"oneof=gmf mlp neumf"`
	NFactors int    `mapstructure:"n_factors" validate:"gt=0"`
	Layers   []int  `mapstructure:"layers" validate:"min=1"`
}

// TrainConfig holds training hyper-parameters.
type TrainConfig struct {
	NEpochs     int     `mapstructure:"n_epochs" validate:"gt=0"`
	BatchSize   int     `mapstructure:"batch_size" validate:"gt=0"`
	NNegatives  int     `mapstructure:"n_negatives" validate:"gt=0"`
	Lr          float32 `mapstructure:"lr" validate:"gt=0"`
	Reg         float32 `mapstructure:"reg" validate:"gte=0"`
	InitStdDev  float32 `mapstructure:"init_std" validate:"gt=0"`
	RandomState int64   `mapstructure:"random_state"`
	Verbose     int     `mapstructure:"verbose" validate:"gt=0"`
	Jobs        int     `mapstructure:"jobs" validate:"gt=0"`
}

// EvalConfig holds evaluation settings.
type EvalConfig struct {
	// evaluation cutoff
	TopK int `mapstructure:"top_k" validate:"gt=0"`
	// negatives per leave-one-out group
	NumNegatives int `mapstructure:"n_negatives" validate:"gt=0"`
}

// PretrainConfig points NeuMF at pre-trained GMF and MLP checkpoints.
type PretrainConfig struct {
	GMFPath string  `mapstructure:"gmf_path" validate:"required_with=MLPPath"`
	MLPPath string  `mapstructure:"mlp_path" validate:"required_with=GMFPath"`
	Alpha   float32 `mapstructure:"alpha" validate:"gte=0,lte=1"`
}

// Enabled reports whether both pre-trained checkpoints are configured.
func (config *PretrainConfig) Enabled() bool {
	return config.GMFPath != "" && config.MLPPath != ""
}

// GetDefaultConfig returns a Config with default values.
func GetDefaultConfig() *Config {
	return &Config{
		Dataset: DatasetConfig{
			Name:       "ml-100k",
			Sep:        "\t",
			TrainRatio: 0.8,
		},
		Model: ModelConfig{
			Variant:  "neumf",
			NFactors: 8,
			Layers:   []int{64, 32, 16, 8},
		},
		Train: TrainConfig{
			NEpochs:     20,
			BatchSize:   256,
			NNegatives:  4,
			Lr:          0.05,
			Reg:         0.01,
			InitStdDev:  0.01,
			RandomState: 0,
			Verbose:     10,
			Jobs:        1,
		},
		Eval: EvalConfig{
			TopK:         10,
			NumNegatives: 100,
		},
		Pretrain: PretrainConfig{
			Alpha: 0.5,
		},
	}
}

func setDefault() {
	defaultConfig := GetDefaultConfig()
	// [dataset]
	viper.SetDefault("dataset.name", defaultConfig.Dataset.Name)
	viper.SetDefault("dataset.sep", defaultConfig.Dataset.Sep)
	viper.SetDefault("dataset.header", defaultConfig.Dataset.Header)
	viper.SetDefault("dataset.train_ratio", defaultConfig.Dataset.TrainRatio)
	// [model]
	viper.SetDefault("model.variant", defaultConfig.Model.Variant)
	viper.SetDefault("model.n_factors", defaultConfig.Model.NFactors)
	viper.SetDefault("model.layers", defaultConfig.Model.Layers)
	// [train]
	viper.SetDefault("train.n_epochs", defaultConfig.Train.NEpochs)
	viper.SetDefault("train.batch_size", defaultConfig.Train.BatchSize)
	viper.SetDefault("train.n_negatives", defaultConfig.Train.NNegatives)
	viper.SetDefault("train.lr", defaultConfig.Train.Lr)
	viper.SetDefault("train.reg", defaultConfig.Train.Reg)
	viper.SetDefault("train.init_std", defaultConfig.Train.InitStdDev)
	viper.SetDefault("train.random_state", defaultConfig.Train.RandomState)
	viper.SetDefault("train.verbose", defaultConfig.Train.Verbose)
	viper.SetDefault("train.jobs", defaultConfig.Train.Jobs)
	// [eval]
	viper.SetDefault("eval.top_k", defaultConfig.Eval.TopK)
	viper.SetDefault("eval.n_negatives", defaultConfig.Eval.NumNegatives)
	// [pretrain]
	viper.SetDefault("pretrain.alpha", defaultConfig.Pretrain.Alpha)
}

// LoadConfig loads and validates the configuration from a TOML file.
// Settings may be overridden by NEUCF_* environment variables, for example
// NEUCF_TRAIN_N_EPOCHS.
func LoadConfig(path string) (*Config, error) {
	setDefault()
	viper.SetConfigFile(path)
	viper.SetEnvPrefix("neucf")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		return nil, errors.Trace(err)
	}
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, errors.Trace(err)
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &config, nil
}

// Params converts the configuration to model hyper-parameters.
func (config *Config) Params() model.Params {
	return model.Params{
		model.NFactors:    config.Model.NFactors,
		model.Layers:      config.Model.Layers,
		model.NEpochs:     config.Train.NEpochs,
		model.BatchSize:   config.Train.BatchSize,
		model.NNegatives:  config.Train.NNegatives,
		model.Lr:          config.Train.Lr,
		model.Reg:         config.Train.Reg,
		model.InitStdDev:  config.Train.InitStdDev,
		model.RandomState: config.Train.RandomState,
		model.Alpha:       config.Pretrain.Alpha,
	}
}

// FitConfig converts the configuration to a fit configuration.
func (config *Config) FitConfig() *model.FitConfig {
	return model.NewFitConfig().
		SetJobs(config.Train.Jobs).
		SetVerbose(config.Train.Verbose).
		SetCandidates(config.Eval.NumNegatives).
		SetTopK(config.Eval.TopK)
}
