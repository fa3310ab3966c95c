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

package model

import (
	"context"
	"sort"

	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/gorse-io/neucf/base/log"
	"github.com/gorse-io/neucf/dataset"
)

// ParamsSearchResult contains the result of hyper-parameter search.
type ParamsSearchResult struct {
	BestScore  Score
	BestParams Params
	BestIndex  int
	Scores     []Score
	Params     []Params
}

// AddScore records a trial and keeps the best by NDCG.
func (r *ParamsSearchResult) AddScore(params Params, score Score) {
	r.Scores = append(r.Scores, score)
	r.Params = append(r.Params, params.Copy())
	if len(r.Scores) == 1 || score.NDCG > r.BestScore.NDCG {
		r.BestScore = score
		r.BestParams = params.Copy()
		r.BestIndex = len(r.Params) - 1
	}
}

type paramsSearch struct {
	ctx        context.Context
	estimator  Model
	trainSet   *dataset.Dataset
	testSet    *dataset.Dataset
	grid       ParamsGrid
	paramNames []ParamName
	config     *FitConfig
	result     ParamsSearchResult
}

// Objective fits the estimator with one sampled parameter combination. Each
// grid entry is suggested by index so non-numeric values such as layer shapes
// stay searchable.
func (search *paramsSearch) Objective(trial goptuna.Trial) (float64, error) {
	params := make(Params)
	for _, name := range search.paramNames {
		values := search.grid[name]
		index, err := trial.SuggestInt(string(name), 0, len(values)-1)
		if err != nil {
			return 0, errors.Trace(err)
		}
		params[name] = values[index]
	}
	log.Logger().Info("search trial", zap.Any("params", params))
	search.estimator.Clear()
	search.estimator.SetParams(search.estimator.GetParams().Overwrite(params))
	score := search.estimator.Fit(search.ctx, search.trainSet, search.testSet, search.config)
	search.result.AddScore(params, score)
	return float64(score.NDCG), nil
}

// SearchParams searches hyper-parameters over a grid with the TPE sampler and
// returns the trials with the best combination by NDCG.
func SearchParams(ctx context.Context, estimator Model, trainSet, testSet *dataset.Dataset,
	grid ParamsGrid, numTrials int, config *FitConfig) (ParamsSearchResult, error) {
	paramNames := make([]ParamName, 0, len(grid))
	for name := range grid {
		paramNames = append(paramNames, name)
	}
	sort.Slice(paramNames, func(i, j int) bool {
		return paramNames[i] < paramNames[j]
	})
	search := &paramsSearch{
		ctx:        ctx,
		estimator:  estimator,
		trainSet:   trainSet,
		testSet:    testSet,
		grid:       grid,
		paramNames: paramNames,
		config:     config.LoadDefaultIfNil(),
	}
	study, err := goptuna.CreateStudy(GetModelName(estimator),
		goptuna.StudyOptionDirection(goptuna.StudyDirectionMaximize),
		goptuna.StudyOptionSampler(tpe.NewSampler()))
	if err != nil {
		return ParamsSearchResult{}, errors.Trace(err)
	}
	if err := study.Optimize(search.Objective, numTrials); err != nil {
		return ParamsSearchResult{}, errors.Trace(err)
	}
	log.Logger().Info("search complete",
		zap.Any("best_params", search.result.BestParams),
		zap.Float32(fmtNDCG(search.config.TopK), search.result.BestScore.NDCG))
	return search.result, nil
}
