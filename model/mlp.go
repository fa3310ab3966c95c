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

// MLP is the multi-layer perceptron model. User and item embeddings are
// concatenated and passed through a tower of ReLU layers:
//
//	a_0 = [p_u ; q_i]
//	a_l = ReLU(W_l a_{l-1} + b_l)
//	\hat{y}_{ui} = sigmoid(h^T a_L + b)
//
// Layer sizes are given by the Layers hyper-parameter. Layers[0] is the size
// of the concatenated input, so it must be even and the embedding size is
// Layers[0]/2. Trained pointwise with binary cross-entropy.
type MLP struct {
	BaseNCF
	UserFactor   [][]float32
	ItemFactor   [][]float32
	Weights      [][][]float32 // Weights[l][out][in]
	Biases       [][]float32
	OutputWeight []float32
	OutputBias   float32
	// Hyper parameters
	layers     []int
	nEpochs    int
	lr         float32
	reg        float32
	nNegatives int
	batchSize  int
	initMean   float32
	initStdDev float32
}

// NewMLP creates an MLP model.
func NewMLP(params Params) *MLP {
	mlp := new(MLP)
	mlp.SetParams(params)
	return mlp
}

// SetParams sets hyper-parameters of the MLP model.
func (mlp *MLP) SetParams(params Params) {
	mlp.BaseModel.SetParams(params)
	mlp.layers = mlp.Params.GetIntSlice(Layers, []int{64, 32, 16, 8})
	mlp.nEpochs = mlp.Params.GetInt(NEpochs, 20)
	mlp.lr = mlp.Params.GetFloat32(Lr, 0.05)
	mlp.reg = mlp.Params.GetFloat32(Reg, 0.01)
	mlp.nNegatives = mlp.Params.GetInt(NNegatives, 4)
	mlp.batchSize = mlp.Params.GetInt(BatchSize, 256)
	mlp.initMean = mlp.Params.GetFloat32(InitMean, 0)
	mlp.initStdDev = mlp.Params.GetFloat32(InitStdDev, 0.01)
	if len(mlp.layers) == 0 || mlp.layers[0]%2 != 0 {
		log.Logger().Error("Layers[0] must be even, fall back to default layers",
			zap.Ints("layers", mlp.layers))
		mlp.layers = []int{64, 32, 16, 8}
	}
}

// GetParamsGrid returns the candidates of hyper-parameters.
func (mlp *MLP) GetParamsGrid() ParamsGrid {
	return ParamsGrid{
		Layers: []interface{}{
			[]int{32, 16, 8},
			[]int{64, 32, 16, 8},
			[]int{128, 64, 32, 16},
		},
		Lr:  []interface{}{0.001, 0.005, 0.01, 0.05, 0.1},
		Reg: []interface{}{0.001, 0.005, 0.01, 0.05, 0.1},
	}
}

// Clear releases the model parameters.
func (mlp *MLP) Clear() {
	mlp.UserFactor = nil
	mlp.ItemFactor = nil
	mlp.Weights = nil
	mlp.Biases = nil
	mlp.OutputWeight = nil
	mlp.OutputBias = 0
}

// Invalid reports whether the model has no trained parameters.
func (mlp *MLP) Invalid() bool {
	return mlp == nil ||
		mlp.UserFactor == nil ||
		mlp.ItemFactor == nil ||
		mlp.Weights == nil ||
		mlp.OutputWeight == nil
}

// embeddingSize is half of the first tower layer.
func (mlp *MLP) embeddingSize() int {
	return mlp.layers[0] / 2
}

// Predict the preference of a user for an item.
func (mlp *MLP) Predict(userId, itemId string) float32 {
	userIndex, itemIndex := mlp.lookup(userId, itemId)
	if userIndex == dataset.NotId || itemIndex == dataset.NotId {
		return 0
	}
	return mlp.InternalPredict(userIndex, itemIndex)
}

// InternalPredict predicts the preference by dense indices.
func (mlp *MLP) InternalPredict(userIndex, itemIndex int32) float32 {
	if !mlp.IsUserPredictable(userIndex) || !mlp.IsItemPredictable(itemIndex) {
		return 0
	}
	activations := mlp.newActivations()
	return sigmoid(mlp.forward(userIndex, itemIndex, activations))
}

// newActivations allocates one activation vector per tower layer.
func (mlp *MLP) newActivations() [][]float32 {
	activations := make([][]float32, len(mlp.layers))
	for l, size := range mlp.layers {
		activations[l] = make([]float32, size)
	}
	return activations
}

// forward computes the pre-sigmoid output h^T a_L + b, filling activations.
func (mlp *MLP) forward(userIndex, itemIndex int32, activations [][]float32) float32 {
	embeddingSize := mlp.embeddingSize()
	copy(activations[0][:embeddingSize], mlp.UserFactor[userIndex])
	copy(activations[0][embeddingSize:], mlp.ItemFactor[itemIndex])
	for l := 0; l < len(mlp.Weights); l++ {
		for out := range mlp.Weights[l] {
			z := floats.Dot(mlp.Weights[l][out], activations[l]) + mlp.Biases[l][out]
			if z < 0 {
				z = 0
			}
			activations[l+1][out] = z
		}
	}
	last := activations[len(activations)-1]
	return floats.Dot(mlp.OutputWeight, last) + mlp.OutputBias
}

// Init initializes embeddings and the tower before training.
func (mlp *MLP) Init(trainSet *dataset.Dataset) {
	mlp.BaseNCF.Init(trainSet)
	embeddingSize := mlp.embeddingSize()
	mlp.UserFactor = mlp.GetRandomGenerator().NormalMatrix(
		trainSet.CountUsers(), embeddingSize, mlp.initMean, mlp.initStdDev)
	mlp.ItemFactor = mlp.GetRandomGenerator().NormalMatrix(
		trainSet.CountItems(), embeddingSize, mlp.initMean, mlp.initStdDev)
	mlp.Weights = make([][][]float32, len(mlp.layers)-1)
	mlp.Biases = make([][]float32, len(mlp.layers)-1)
	for l := 0; l < len(mlp.layers)-1; l++ {
		mlp.Weights[l] = mlp.GetRandomGenerator().NormalMatrix(
			mlp.layers[l+1], mlp.layers[l], mlp.initMean, mlp.initStdDev)
		mlp.Biases[l] = make([]float32, mlp.layers[l+1])
	}
	mlp.OutputWeight = mlp.GetRandomGenerator().NormalVector(
		mlp.layers[len(mlp.layers)-1], mlp.initMean, mlp.initStdDev)
	mlp.OutputBias = 0
}

// mlpGradients holds accumulated tower gradients over a mini-batch.
type mlpGradients struct {
	weights      [][][]float32
	biases       [][]float32
	outputWeight []float32
	outputBias   float32
}

func (mlp *MLP) newGradients() *mlpGradients {
	gradients := &mlpGradients{
		weights:      make([][][]float32, len(mlp.Weights)),
		biases:       make([][]float32, len(mlp.Biases)),
		outputWeight: make([]float32, len(mlp.OutputWeight)),
	}
	for l := range mlp.Weights {
		gradients.weights[l] = base.NewMatrix32(len(mlp.Weights[l]), len(mlp.Weights[l][0]))
		gradients.biases[l] = make([]float32, len(mlp.Biases[l]))
	}
	return gradients
}

func (gradients *mlpGradients) zero() {
	for l := range gradients.weights {
		floats.MatZero(gradients.weights[l])
		floats.Zero(gradients.biases[l])
	}
	floats.Zero(gradients.outputWeight)
	gradients.outputBias = 0
}

// apply updates tower parameters with the averaged batch gradient. Weights
// are regularized, biases are not.
func (mlp *MLP) apply(gradients *mlpGradients, batchSize float32) {
	scale := 1 / batchSize
	for l := range mlp.Weights {
		for out := range mlp.Weights[l] {
			floats.MulConst(gradients.weights[l][out], scale)
			floats.MulConstAdd(mlp.Weights[l][out], mlp.reg, gradients.weights[l][out])
			floats.MulConstAdd(gradients.weights[l][out], -mlp.lr, mlp.Weights[l][out])
		}
		floats.MulConstAdd(gradients.biases[l], -mlp.lr*scale, mlp.Biases[l])
	}
	floats.MulConst(gradients.outputWeight, scale)
	floats.MulConstAdd(mlp.OutputWeight, mlp.reg, gradients.outputWeight)
	floats.MulConstAdd(gradients.outputWeight, -mlp.lr, mlp.OutputWeight)
	mlp.OutputBias -= mlp.lr * gradients.outputBias * scale
}

// backward propagates the output gradient through the tower, accumulates
// tower gradients and updates the sample's embedding rows in place.
func (mlp *MLP) backward(userIndex, itemIndex int32, grad float32,
	activations, deltas [][]float32, gradients *mlpGradients) {
	last := activations[len(activations)-1]
	// output layer
	floats.MulConstAdd(last, grad, gradients.outputWeight)
	gradients.outputBias += grad
	floats.MulConstTo(mlp.OutputWeight, grad, deltas[len(deltas)-1])
	// tower layers, backwards
	for l := len(mlp.Weights) - 1; l >= 0; l-- {
		// ReLU derivative: post-activation is positive iff pre-activation is
		for out := range deltas[l+1] {
			if activations[l+1][out] <= 0 {
				deltas[l+1][out] = 0
			}
		}
		floats.Zero(deltas[l])
		for out := range mlp.Weights[l] {
			delta := deltas[l+1][out]
			if delta == 0 {
				continue
			}
			floats.MulConstAdd(activations[l], delta, gradients.weights[l][out])
			gradients.biases[l][out] += delta
			floats.MulConstAdd(mlp.Weights[l][out], delta, deltas[l])
		}
	}
	// embeddings: per-sample update with regularization
	embeddingSize := mlp.embeddingSize()
	userFactor := mlp.UserFactor[userIndex]
	itemFactor := mlp.ItemFactor[itemIndex]
	for k := 0; k < embeddingSize; k++ {
		userFactor[k] -= mlp.lr * (deltas[0][k] + mlp.reg*userFactor[k])
		itemFactor[k] -= mlp.lr * (deltas[0][embeddingSize+k] + mlp.reg*itemFactor[k])
	}
}

// Fit the MLP model.
func (mlp *MLP) Fit(ctx context.Context, trainSet, testSet *dataset.Dataset, config *FitConfig) Score {
	config = config.LoadDefaultIfNil()
	log.Logger().Info("fit MLP",
		zap.Int("train_set_size", trainSet.Count()),
		zap.Int("test_set_size", testSet.Count()),
		zap.Any("params", mlp.GetParams()),
		zap.Any("config", config))
	mlp.Init(trainSet)
	sampler := dataset.NewTrainSampler(trainSet, testSet, mlp.nNegatives, mlp.randState)
	var groups []dataset.TestGroup
	if testSet.Count() > 0 {
		groups = dataset.NewLeaveOneOut(testSet, trainSet, config.Candidates, mlp.randState)
	}
	activations := mlp.newActivations()
	deltas := mlp.newActivations()
	gradients := mlp.newGradients()
	var score Score
	for epoch := 1; epoch <= mlp.nEpochs; epoch++ {
		select {
		case <-ctx.Done():
			log.Logger().Info("fit MLP canceled", zap.Int("epoch", epoch))
			return score
		default:
		}
		fitStart := time.Now()
		samples := sampler.SampleEpoch()
		cost := float32(0)
		for batchStart := 0; batchStart < samples.Count(); batchStart += mlp.batchSize {
			batchEnd := batchStart + mlp.batchSize
			if batchEnd > samples.Count() {
				batchEnd = samples.Count()
			}
			gradients.zero()
			for position := batchStart; position < batchEnd; position++ {
				userIndex := samples.Users[position]
				itemIndex := samples.Items[position]
				label := samples.Labels[position]
				prediction := sigmoid(mlp.forward(userIndex, itemIndex, activations))
				cost += crossEntropy(prediction, label)
				mlp.backward(userIndex, itemIndex, prediction-label, activations, deltas, gradients)
			}
			mlp.apply(gradients, float32(batchEnd-batchStart))
		}
		fitTime := time.Since(fitStart)
		if epoch%config.Verbose == 0 || epoch == mlp.nEpochs {
			evalStart := time.Now()
			score = EvaluateLeaveOneOut(mlp, groups, config.TopK, config.Jobs)
			evalTime := time.Since(evalStart)
			log.Logger().Info("fit MLP",
				zap.Int("epoch", epoch),
				zap.Int("n_epochs", mlp.nEpochs),
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
func (mlp *MLP) Marshal(w io.Writer) error {
	if err := mlp.BaseNCF.marshal(w); err != nil {
		return errors.Trace(err)
	}
	if err := binary.Write(w, binary.LittleEndian, mlp.OutputBias); err != nil {
		return errors.Trace(err)
	}
	if err := writeVector(w, mlp.OutputWeight); err != nil {
		return errors.Trace(err)
	}
	for l := range mlp.Weights {
		if err := encoding.WriteMatrix(w, mlp.Weights[l]); err != nil {
			return errors.Trace(err)
		}
		if err := writeVector(w, mlp.Biases[l]); err != nil {
			return errors.Trace(err)
		}
	}
	if err := encoding.WriteMatrix(w, mlp.UserFactor); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteMatrix(w, mlp.ItemFactor); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// Unmarshal model from byte stream.
func (mlp *MLP) Unmarshal(r io.Reader) error {
	params, err := mlp.BaseNCF.unmarshal(r)
	if err != nil {
		return errors.Trace(err)
	}
	mlp.SetParams(params)
	if err := binary.Read(r, binary.LittleEndian, &mlp.OutputBias); err != nil {
		return errors.Trace(err)
	}
	mlp.OutputWeight = make([]float32, mlp.layers[len(mlp.layers)-1])
	if err := readVector(r, mlp.OutputWeight); err != nil {
		return errors.Trace(err)
	}
	mlp.Weights = make([][][]float32, len(mlp.layers)-1)
	mlp.Biases = make([][]float32, len(mlp.layers)-1)
	for l := 0; l < len(mlp.layers)-1; l++ {
		mlp.Weights[l] = base.NewMatrix32(mlp.layers[l+1], mlp.layers[l])
		if err := encoding.ReadMatrix(r, mlp.Weights[l]); err != nil {
			return errors.Trace(err)
		}
		mlp.Biases[l] = make([]float32, mlp.layers[l+1])
		if err := readVector(r, mlp.Biases[l]); err != nil {
			return errors.Trace(err)
		}
	}
	embeddingSize := mlp.embeddingSize()
	mlp.UserFactor = base.NewMatrix32(int(mlp.UserDict.Count()), embeddingSize)
	if err := encoding.ReadMatrix(r, mlp.UserFactor); err != nil {
		return errors.Trace(err)
	}
	mlp.ItemFactor = base.NewMatrix32(int(mlp.ItemDict.Count()), embeddingSize)
	if err := encoding.ReadMatrix(r, mlp.ItemFactor); err != nil {
		return errors.Trace(err)
	}
	return nil
}
