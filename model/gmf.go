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
	"encoding/binary"
	"io"
	"time"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/gorse-io/neucf/base"
	"github.com/gorse-io/neucf/base/encoding"
	"github.com/gorse-io/neucf/base/log"
	"github.com/gorse-io/neucf/common/floats"
	"github.com/gorse-io/neucf/dataset"
)

// GMF is the generalized matrix factorization model. The interaction between
// a user and an item is the element-wise product of their embeddings, passed
// through a learned output layer with a sigmoid:
//
//	\hat{y}_{ui} = sigmoid(h^T (p_u \odot q_i) + b)
//
// Trained pointwise with binary cross-entropy over observed positives and
// sampled negatives.
type GMF struct {
	BaseNCF
	UserFactor   [][]float32
	ItemFactor   [][]float32
	OutputWeight []float32
	OutputBias   float32
	// Hyper parameters
	nFactors   int
	nEpochs    int
	lr         float32
	reg        float32
	nNegatives int
	batchSize  int
	initMean   float32
	initStdDev float32
}

// NewGMF creates a GMF model.
func NewGMF(params Params) *GMF {
	gmf := new(GMF)
	gmf.SetParams(params)
	return gmf
}

// SetParams sets hyper-parameters of the GMF model.
func (gmf *GMF) SetParams(params Params) {
	gmf.BaseModel.SetParams(params)
	gmf.nFactors = gmf.Params.GetInt(NFactors, 8)
	gmf.nEpochs = gmf.Params.GetInt(NEpochs, 20)
	gmf.lr = gmf.Params.GetFloat32(Lr, 0.05)
	gmf.reg = gmf.Params.GetFloat32(Reg, 0.01)
	gmf.nNegatives = gmf.Params.GetInt(NNegatives, 4)
	gmf.batchSize = gmf.Params.GetInt(BatchSize, 256)
	gmf.initMean = gmf.Params.GetFloat32(InitMean, 0)
	gmf.initStdDev = gmf.Params.GetFloat32(InitStdDev, 0.01)
}

// GetParamsGrid returns the candidates of hyper-parameters.
func (gmf *GMF) GetParamsGrid() ParamsGrid {
	return ParamsGrid{
		NFactors: []interface{}{8, 16, 32, 64},
		Lr:       []interface{}{0.001, 0.005, 0.01, 0.05, 0.1},
		Reg:      []interface{}{0.001, 0.005, 0.01, 0.05, 0.1},
	}
}

// Clear releases the model parameters.
func (gmf *GMF) Clear() {
	gmf.UserFactor = nil
	gmf.ItemFactor = nil
	gmf.OutputWeight = nil
	gmf.OutputBias = 0
}

// Invalid reports whether the model has no trained parameters.
func (gmf *GMF) Invalid() bool {
	return gmf == nil ||
		gmf.UserFactor == nil ||
		gmf.ItemFactor == nil ||
		gmf.OutputWeight == nil
}

// Predict the preference of a user for an item.
func (gmf *GMF) Predict(userId, itemId string) float32 {
	userIndex, itemIndex := gmf.lookup(userId, itemId)
	if userIndex == dataset.NotId || itemIndex == dataset.NotId {
		return 0
	}
	return gmf.InternalPredict(userIndex, itemIndex)
}

// InternalPredict predicts the preference by dense indices.
func (gmf *GMF) InternalPredict(userIndex, itemIndex int32) float32 {
	if !gmf.IsUserPredictable(userIndex) || !gmf.IsItemPredictable(itemIndex) {
		return 0
	}
	return sigmoid(gmf.forward(userIndex, itemIndex))
}

// forward computes the pre-sigmoid output h^T (p_u \odot q_i) + b.
func (gmf *GMF) forward(userIndex, itemIndex int32) float32 {
	var z float32
	userFactor := gmf.UserFactor[userIndex]
	itemFactor := gmf.ItemFactor[itemIndex]
	for k := 0; k < gmf.nFactors; k++ {
		z += gmf.OutputWeight[k] * userFactor[k] * itemFactor[k]
	}
	return z + gmf.OutputBias
}

// Init initializes factors and the output layer before training.
func (gmf *GMF) Init(trainSet *dataset.Dataset) {
	gmf.BaseNCF.Init(trainSet)
	gmf.UserFactor = gmf.GetRandomGenerator().NormalMatrix(
		trainSet.CountUsers(), gmf.nFactors, gmf.initMean, gmf.initStdDev)
	gmf.ItemFactor = gmf.GetRandomGenerator().NormalMatrix(
		trainSet.CountItems(), gmf.nFactors, gmf.initMean, gmf.initStdDev)
	gmf.OutputWeight = gmf.GetRandomGenerator().NormalVector(
		gmf.nFactors, gmf.initMean, gmf.initStdDev)
	gmf.OutputBias = 0
}

// Fit the GMF model. Embedding rows are updated per sample, the shared output
// layer accumulates gradients over a mini-batch and applies the average.
func (gmf *GMF) Fit(ctx context.Context, trainSet, testSet *dataset.Dataset, config *FitConfig) Score {
	config = config.LoadDefaultIfNil()
	log.Logger().Info("fit GMF",
		zap.Int("train_set_size", trainSet.Count()),
		zap.Int("test_set_size", testSet.Count()),
		zap.Any("params", gmf.GetParams()),
		zap.Any("config", config))
	gmf.Init(trainSet)
	sampler := dataset.NewTrainSampler(trainSet, testSet, gmf.nNegatives, gmf.randState)
	var groups []dataset.TestGroup
	if testSet.Count() > 0 {
		groups = dataset.NewLeaveOneOut(testSet, trainSet, config.Candidates, gmf.randState)
	}
	// buffers
	mulBuf := make([]float32, gmf.nFactors)
	userGrad := make([]float32, gmf.nFactors)
	itemGrad := make([]float32, gmf.nFactors)
	weightGrad := make([]float32, gmf.nFactors)
	var score Score
	for epoch := 1; epoch <= gmf.nEpochs; epoch++ {
		select {
		case <-ctx.Done():
			log.Logger().Info("fit GMF canceled", zap.Int("epoch", epoch))
			return score
		default:
		}
		fitStart := time.Now()
		samples := sampler.SampleEpoch()
		cost := float32(0)
		for batchStart := 0; batchStart < samples.Count(); batchStart += gmf.batchSize {
			batchEnd := batchStart + gmf.batchSize
			if batchEnd > samples.Count() {
				batchEnd = samples.Count()
			}
			floats.Zero(weightGrad)
			biasGrad := float32(0)
			for position := batchStart; position < batchEnd; position++ {
				userIndex := samples.Users[position]
				itemIndex := samples.Items[position]
				label := samples.Labels[position]
				userFactor := gmf.UserFactor[userIndex]
				itemFactor := gmf.ItemFactor[itemIndex]
				floats.MulTo(userFactor, itemFactor, mulBuf)
				prediction := sigmoid(floats.Dot(gmf.OutputWeight, mulBuf) + gmf.OutputBias)
				cost += crossEntropy(prediction, label)
				grad := prediction - label
				// output layer: accumulate over the batch
				floats.MulConstAdd(mulBuf, grad, weightGrad)
				biasGrad += grad
				// embeddings: update per sample
				floats.MulTo(gmf.OutputWeight, itemFactor, userGrad)
				floats.MulConst(userGrad, grad)
				floats.MulConstAdd(userFactor, gmf.reg, userGrad)
				floats.MulTo(gmf.OutputWeight, userFactor, itemGrad)
				floats.MulConst(itemGrad, grad)
				floats.MulConstAdd(itemFactor, gmf.reg, itemGrad)
				floats.MulConstAdd(userGrad, -gmf.lr, userFactor)
				floats.MulConstAdd(itemGrad, -gmf.lr, itemFactor)
			}
			// apply the averaged output layer gradient
			batchSize := float32(batchEnd - batchStart)
			floats.MulConst(weightGrad, 1/batchSize)
			floats.MulConstAdd(gmf.OutputWeight, gmf.reg, weightGrad)
			floats.MulConstAdd(weightGrad, -gmf.lr, gmf.OutputWeight)
			gmf.OutputBias -= gmf.lr * biasGrad / batchSize
		}
		fitTime := time.Since(fitStart)
		if epoch%config.Verbose == 0 || epoch == gmf.nEpochs {
			evalStart := time.Now()
			score = EvaluateLeaveOneOut(gmf, groups, config.TopK, config.Jobs)
			evalTime := time.Since(evalStart)
			log.Logger().Info("fit GMF",
				zap.Int("epoch", epoch),
				zap.Int("n_epochs", gmf.nEpochs),
				zap.String("fit_time", fitTime.String()),
				zap.String("eval_time", evalTime.String()),
				zap.Float32("loss", cost/float32(samples.Count())),
				zap.Float32(fmtHR(config.TopK), score.HR),
				zap.Float32(fmtNDCG(config.TopK), score.NDCG))
		}
	}
	return score
}

// Marshal model into byte stream.
func (gmf *GMF) Marshal(w io.Writer) error {
	if err := gmf.BaseNCF.marshal(w); err != nil {
		return errors.Trace(err)
	}
	if err := binary.Write(w, binary.LittleEndian, gmf.OutputBias); err != nil {
		return errors.Trace(err)
	}
	if err := writeVector(w, gmf.OutputWeight); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteMatrix(w, gmf.UserFactor); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteMatrix(w, gmf.ItemFactor); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// Unmarshal model from byte stream.
func (gmf *GMF) Unmarshal(r io.Reader) error {
	params, err := gmf.BaseNCF.unmarshal(r)
	if err != nil {
		return errors.Trace(err)
	}
	gmf.SetParams(params)
	if err := binary.Read(r, binary.LittleEndian, &gmf.OutputBias); err != nil {
		return errors.Trace(err)
	}
	gmf.OutputWeight = make([]float32, gmf.nFactors)
	if err := readVector(r, gmf.OutputWeight); err != nil {
		return errors.Trace(err)
	}
	gmf.UserFactor = base.NewMatrix32(int(gmf.UserDict.Count()), gmf.nFactors)
	if err := encoding.ReadMatrix(r, gmf.UserFactor); err != nil {
		return errors.Trace(err)
	}
	gmf.ItemFactor = base.NewMatrix32(int(gmf.ItemDict.Count()), gmf.nFactors)
	if err := encoding.ReadMatrix(r, gmf.ItemFactor); err != nil {
		return errors.Trace(err)
	}
	return nil
}
