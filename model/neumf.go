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

// NeuMF fuses GMF and MLP. Each pathway keeps its own embeddings, the output
// layer spans the concatenation of the GMF product vector and the last tower
// activation:
//
//	\hat{y}_{ui} = sigmoid(h^T [p^G_u \odot q^G_i ; a_L] + b)
//
// The output layer can be warm-started from pre-trained GMF and MLP models
// with LoadPretrained.
type NeuMF struct {
	BaseNCF
	GMFUserFactor [][]float32
	GMFItemFactor [][]float32
	MLPUserFactor [][]float32
	MLPItemFactor [][]float32
	Weights       [][][]float32 // Weights[l][out][in]
	Biases        [][]float32
	OutputWeight  []float32 // length nFactors + Layers[last]
	OutputBias    float32
	// Hyper parameters
	nFactors   int
	layers     []int
	nEpochs    int
	lr         float32
	reg        float32
	nNegatives int
	batchSize  int
	initMean   float32
	initStdDev float32
}

// NewNeuMF creates a NeuMF model.
func NewNeuMF(params Params) *NeuMF {
	neumf := new(NeuMF)
	neumf.SetParams(params)
	return neumf
}

// SetParams sets hyper-parameters of the NeuMF model.
func (neumf *NeuMF) SetParams(params Params) {
	neumf.BaseModel.SetParams(params)
	neumf.nFactors = neumf.Params.GetInt(NFactors, 8)
	neumf.layers = neumf.Params.GetIntSlice(Layers, []int{64, 32, 16, 8})
	neumf.nEpochs = neumf.Params.GetInt(NEpochs, 20)
	neumf.lr = neumf.Params.GetFloat32(Lr, 0.05)
	neumf.reg = neumf.Params.GetFloat32(Reg, 0.01)
	neumf.nNegatives = neumf.Params.GetInt(NNegatives, 4)
	neumf.batchSize = neumf.Params.GetInt(BatchSize, 256)
	neumf.initMean = neumf.Params.GetFloat32(InitMean, 0)
	neumf.initStdDev = neumf.Params.GetFloat32(InitStdDev, 0.01)
	if len(neumf.layers) == 0 || neumf.layers[0]%2 != 0 {
		log.Logger().Error("Layers[0] must be even, fall back to default layers",
			zap.Ints("layers", neumf.layers))
		neumf.layers = []int{64, 32, 16, 8}
	}
}

// GetParamsGrid returns the candidates of hyper-parameters.
func (neumf *NeuMF) GetParamsGrid() ParamsGrid {
	return ParamsGrid{
		NFactors: []interface{}{8, 16, 32},
		Layers: []interface{}{
			[]int{32, 16, 8},
			[]int{64, 32, 16, 8},
		},
		Lr:  []interface{}{0.001, 0.005, 0.01, 0.05},
		Reg: []interface{}{0.001, 0.005, 0.01, 0.05},
	}
}

// Clear releases the model parameters.
func (neumf *NeuMF) Clear() {
	neumf.GMFUserFactor = nil
	neumf.GMFItemFactor = nil
	neumf.MLPUserFactor = nil
	neumf.MLPItemFactor = nil
	neumf.Weights = nil
	neumf.Biases = nil
	neumf.OutputWeight = nil
	neumf.OutputBias = 0
}

// Invalid reports whether the model has no trained parameters.
func (neumf *NeuMF) Invalid() bool {
	return neumf == nil ||
		neumf.GMFUserFactor == nil ||
		neumf.MLPUserFactor == nil ||
		neumf.Weights == nil ||
		neumf.OutputWeight == nil
}

func (neumf *NeuMF) embeddingSize() int {
	return neumf.layers[0] / 2
}

// Predict the preference of a user for an item.
func (neumf *NeuMF) Predict(userId, itemId string) float32 {
	userIndex, itemIndex := neumf.lookup(userId, itemId)
	if userIndex == dataset.NotId || itemIndex == dataset.NotId {
		return 0
	}
	return neumf.InternalPredict(userIndex, itemIndex)
}

// InternalPredict predicts the preference by dense indices.
func (neumf *NeuMF) InternalPredict(userIndex, itemIndex int32) float32 {
	if !neumf.IsUserPredictable(userIndex) || !neumf.IsItemPredictable(itemIndex) {
		return 0
	}
	activations := neumf.newActivations()
	mulBuf := make([]float32, neumf.nFactors)
	return sigmoid(neumf.forward(userIndex, itemIndex, mulBuf, activations))
}

func (neumf *NeuMF) newActivations() [][]float32 {
	activations := make([][]float32, len(neumf.layers))
	for l, size := range neumf.layers {
		activations[l] = make([]float32, size)
	}
	return activations
}

// forward computes the pre-sigmoid output. mulBuf receives the GMF product
// vector, activations the tower activations.
func (neumf *NeuMF) forward(userIndex, itemIndex int32, mulBuf []float32, activations [][]float32) float32 {
	// GMF pathway
	floats.MulTo(neumf.GMFUserFactor[userIndex], neumf.GMFItemFactor[itemIndex], mulBuf)
	// MLP pathway
	embeddingSize := neumf.embeddingSize()
	copy(activations[0][:embeddingSize], neumf.MLPUserFactor[userIndex])
	copy(activations[0][embeddingSize:], neumf.MLPItemFactor[itemIndex])
	for l := 0; l < len(neumf.Weights); l++ {
		for out := range neumf.Weights[l] {
			z := floats.Dot(neumf.Weights[l][out], activations[l]) + neumf.Biases[l][out]
			if z < 0 {
				z = 0
			}
			activations[l+1][out] = z
		}
	}
	last := activations[len(activations)-1]
	z := floats.Dot(neumf.OutputWeight[:neumf.nFactors], mulBuf)
	z += floats.Dot(neumf.OutputWeight[neumf.nFactors:], last)
	return z + neumf.OutputBias
}

// Init initializes both pathways before training.
func (neumf *NeuMF) Init(trainSet *dataset.Dataset) {
	neumf.BaseNCF.Init(trainSet)
	rng := neumf.GetRandomGenerator()
	neumf.GMFUserFactor = rng.NormalMatrix(trainSet.CountUsers(), neumf.nFactors, neumf.initMean, neumf.initStdDev)
	neumf.GMFItemFactor = rng.NormalMatrix(trainSet.CountItems(), neumf.nFactors, neumf.initMean, neumf.initStdDev)
	embeddingSize := neumf.embeddingSize()
	neumf.MLPUserFactor = rng.NormalMatrix(trainSet.CountUsers(), embeddingSize, neumf.initMean, neumf.initStdDev)
	neumf.MLPItemFactor = rng.NormalMatrix(trainSet.CountItems(), embeddingSize, neumf.initMean, neumf.initStdDev)
	neumf.Weights = make([][][]float32, len(neumf.layers)-1)
	neumf.Biases = make([][]float32, len(neumf.layers)-1)
	for l := 0; l < len(neumf.layers)-1; l++ {
		neumf.Weights[l] = rng.NormalMatrix(neumf.layers[l+1], neumf.layers[l], neumf.initMean, neumf.initStdDev)
		neumf.Biases[l] = make([]float32, neumf.layers[l+1])
	}
	neumf.OutputWeight = rng.NormalVector(
		neumf.nFactors+neumf.layers[len(neumf.layers)-1], neumf.initMean, neumf.initStdDev)
	neumf.OutputBias = 0
}

// LoadPretrained warm-starts NeuMF from pre-trained GMF and MLP models. Both
// pathways copy their embeddings and tower parameters, the fused output layer
// blends the pre-trained output layers with coefficient alpha:
//
//	h = [alpha * h_gmf ; (1-alpha) * h_mlp]
//	b = alpha * b_gmf + (1-alpha) * b_mlp
//
// The pre-trained models must share dictionaries and match the NeuMF
// hyper-parameters in shape.
func (neumf *NeuMF) LoadPretrained(gmf *GMF, mlp *MLP, alpha float32) error {
	if gmf.Invalid() || mlp.Invalid() {
		return errors.Errorf("pre-trained models are not fitted")
	}
	if gmf.nFactors != neumf.nFactors {
		return errors.Errorf("NFactors mismatch: GMF has %d, NeuMF expects %d",
			gmf.nFactors, neumf.nFactors)
	}
	if len(mlp.layers) != len(neumf.layers) {
		return errors.Errorf("Layers mismatch: MLP has %v, NeuMF expects %v",
			mlp.layers, neumf.layers)
	}
	for l := range mlp.layers {
		if mlp.layers[l] != neumf.layers[l] {
			return errors.Errorf("Layers mismatch: MLP has %v, NeuMF expects %v",
				mlp.layers, neumf.layers)
		}
	}
	if !gmf.UserDict.Equal(mlp.UserDict) || !gmf.ItemDict.Equal(mlp.ItemDict) {
		return errors.Errorf("pre-trained models cover different users or items")
	}
	if alpha < 0 || alpha > 1 {
		return errors.Errorf("alpha must be in [0,1], got %v", alpha)
	}
	// dictionaries and trained flags
	neumf.UserDict = gmf.UserDict
	neumf.ItemDict = gmf.ItemDict
	neumf.UserPredictable = gmf.UserPredictable.Intersection(mlp.UserPredictable)
	neumf.ItemPredictable = gmf.ItemPredictable.Intersection(mlp.ItemPredictable)
	// GMF pathway
	neumf.GMFUserFactor = base.CopyMatrix32(gmf.UserFactor)
	neumf.GMFItemFactor = base.CopyMatrix32(gmf.ItemFactor)
	// MLP pathway
	neumf.MLPUserFactor = base.CopyMatrix32(mlp.UserFactor)
	neumf.MLPItemFactor = base.CopyMatrix32(mlp.ItemFactor)
	neumf.Weights = make([][][]float32, len(mlp.Weights))
	neumf.Biases = make([][]float32, len(mlp.Biases))
	for l := range mlp.Weights {
		neumf.Weights[l] = base.CopyMatrix32(mlp.Weights[l])
		neumf.Biases[l] = make([]float32, len(mlp.Biases[l]))
		copy(neumf.Biases[l], mlp.Biases[l])
	}
	// fused output layer
	neumf.OutputWeight = make([]float32, neumf.nFactors+neumf.layers[len(neumf.layers)-1])
	floats.MulConstTo(gmf.OutputWeight, alpha, neumf.OutputWeight[:neumf.nFactors])
	floats.MulConstTo(mlp.OutputWeight, 1-alpha, neumf.OutputWeight[neumf.nFactors:])
	neumf.OutputBias = alpha*gmf.OutputBias + (1-alpha)*mlp.OutputBias
	return nil
}

// neuMFGradients holds accumulated shared-parameter gradients over a
// mini-batch.
type neuMFGradients struct {
	weights      [][][]float32
	biases       [][]float32
	outputWeight []float32
	outputBias   float32
}

func (neumf *NeuMF) newGradients() *neuMFGradients {
	gradients := &neuMFGradients{
		weights:      make([][][]float32, len(neumf.Weights)),
		biases:       make([][]float32, len(neumf.Biases)),
		outputWeight: make([]float32, len(neumf.OutputWeight)),
	}
	for l := range neumf.Weights {
		gradients.weights[l] = base.NewMatrix32(len(neumf.Weights[l]), len(neumf.Weights[l][0]))
		gradients.biases[l] = make([]float32, len(neumf.Biases[l]))
	}
	return gradients
}

func (gradients *neuMFGradients) zero() {
	for l := range gradients.weights {
		floats.MatZero(gradients.weights[l])
		floats.Zero(gradients.biases[l])
	}
	floats.Zero(gradients.outputWeight)
	gradients.outputBias = 0
}

func (neumf *NeuMF) apply(gradients *neuMFGradients, batchSize float32) {
	scale := 1 / batchSize
	for l := range neumf.Weights {
		for out := range neumf.Weights[l] {
			floats.MulConst(gradients.weights[l][out], scale)
			floats.MulConstAdd(neumf.Weights[l][out], neumf.reg, gradients.weights[l][out])
			floats.MulConstAdd(gradients.weights[l][out], -neumf.lr, neumf.Weights[l][out])
		}
		floats.MulConstAdd(gradients.biases[l], -neumf.lr*scale, neumf.Biases[l])
	}
	floats.MulConst(gradients.outputWeight, scale)
	floats.MulConstAdd(neumf.OutputWeight, neumf.reg, gradients.outputWeight)
	floats.MulConstAdd(gradients.outputWeight, -neumf.lr, neumf.OutputWeight)
	neumf.OutputBias -= neumf.lr * gradients.outputBias * scale
}

// backward propagates the output gradient through both pathways.
func (neumf *NeuMF) backward(userIndex, itemIndex int32, grad float32,
	mulBuf []float32, activations, deltas [][]float32, gmfGrad []float32, gradients *neuMFGradients) {
	last := activations[len(activations)-1]
	// output layer: accumulate over the batch
	floats.MulConstAdd(mulBuf, grad, gradients.outputWeight[:neumf.nFactors])
	floats.MulConstAdd(last, grad, gradients.outputWeight[neumf.nFactors:])
	gradients.outputBias += grad
	// GMF pathway: per-sample embedding update
	gmfUserFactor := neumf.GMFUserFactor[userIndex]
	gmfItemFactor := neumf.GMFItemFactor[itemIndex]
	gmfWeight := neumf.OutputWeight[:neumf.nFactors]
	for k := 0; k < neumf.nFactors; k++ {
		gmfGrad[k] = grad * gmfWeight[k]
	}
	for k := 0; k < neumf.nFactors; k++ {
		userGrad := gmfGrad[k]*gmfItemFactor[k] + neumf.reg*gmfUserFactor[k]
		itemGrad := gmfGrad[k]*gmfUserFactor[k] + neumf.reg*gmfItemFactor[k]
		gmfUserFactor[k] -= neumf.lr * userGrad
		gmfItemFactor[k] -= neumf.lr * itemGrad
	}
	// MLP pathway: backpropagate through the tower
	floats.MulConstTo(neumf.OutputWeight[neumf.nFactors:], grad, deltas[len(deltas)-1])
	for l := len(neumf.Weights) - 1; l >= 0; l-- {
		for out := range deltas[l+1] {
			if activations[l+1][out] <= 0 {
				deltas[l+1][out] = 0
			}
		}
		floats.Zero(deltas[l])
		for out := range neumf.Weights[l] {
			delta := deltas[l+1][out]
			if delta == 0 {
				continue
			}
			floats.MulConstAdd(activations[l], delta, gradients.weights[l][out])
			gradients.biases[l][out] += delta
			floats.MulConstAdd(neumf.Weights[l][out], delta, deltas[l])
		}
	}
	embeddingSize := neumf.embeddingSize()
	mlpUserFactor := neumf.MLPUserFactor[userIndex]
	mlpItemFactor := neumf.MLPItemFactor[itemIndex]
	for k := 0; k < embeddingSize; k++ {
		mlpUserFactor[k] -= neumf.lr * (deltas[0][k] + neumf.reg*mlpUserFactor[k])
		mlpItemFactor[k] -= neumf.lr * (deltas[0][embeddingSize+k] + neumf.reg*mlpItemFactor[k])
	}
}

// Fit the NeuMF model. If the model was warm-started with LoadPretrained and
// its parameters cover the train set, fitting continues from the pre-trained
// parameters.
func (neumf *NeuMF) Fit(ctx context.Context, trainSet, testSet *dataset.Dataset, config *FitConfig) Score {
	config = config.LoadDefaultIfNil()
	log.Logger().Info("fit NeuMF",
		zap.Int("train_set_size", trainSet.Count()),
		zap.Int("test_set_size", testSet.Count()),
		zap.Any("params", neumf.GetParams()),
		zap.Any("config", config))
	if neumf.Invalid() {
		neumf.Init(trainSet)
	} else if !neumf.UserDict.Equal(trainSet.UserDict) || !neumf.ItemDict.Equal(trainSet.ItemDict) {
		// equal cardinality is not enough, indices must mean the same ids
		log.Logger().Warn("pre-trained parameters do not cover the train set, reinitialize",
			zap.Int("pretrained_users", len(neumf.GMFUserFactor)),
			zap.Int("train_set_users", trainSet.CountUsers()))
		neumf.Init(trainSet)
	} else {
		neumf.BaseNCF.Init(trainSet)
	}
	sampler := dataset.NewTrainSampler(trainSet, testSet, neumf.nNegatives, neumf.randState)
	var groups []dataset.TestGroup
	if testSet.Count() > 0 {
		groups = dataset.NewLeaveOneOut(testSet, trainSet, config.Candidates, neumf.randState)
	}
	mulBuf := make([]float32, neumf.nFactors)
	gmfGrad := make([]float32, neumf.nFactors)
	activations := neumf.newActivations()
	deltas := neumf.newActivations()
	gradients := neumf.newGradients()
	var score Score
	for epoch := 1; epoch <= neumf.nEpochs; epoch++ {
		select {
		case <-ctx.Done():
			log.Logger().Info("fit NeuMF canceled", zap.Int("epoch", epoch))
			return score
		default:
		}
		fitStart := time.Now()
		samples := sampler.SampleEpoch()
		cost := float32(0)
		for batchStart := 0; batchStart < samples.Count(); batchStart += neumf.batchSize {
			batchEnd := batchStart + neumf.batchSize
			if batchEnd > samples.Count() {
				batchEnd = samples.Count()
			}
			gradients.zero()
			for position := batchStart; position < batchEnd; position++ {
				userIndex := samples.Users[position]
				itemIndex := samples.Items[position]
				label := samples.Labels[position]
				prediction := sigmoid(neumf.forward(userIndex, itemIndex, mulBuf, activations))
				cost += crossEntropy(prediction, label)
				neumf.backward(userIndex, itemIndex, prediction-label,
					mulBuf, activations, deltas, gmfGrad, gradients)
			}
			neumf.apply(gradients, float32(batchEnd-batchStart))
		}
		fitTime := time.Since(fitStart)
		if epoch%config.Verbose == 0 || epoch == neumf.nEpochs {
			evalStart := time.Now()
			score = EvaluateLeaveOneOut(neumf, groups, config.TopK, config.Jobs)
			evalTime := time.Since(evalStart)
			log.Logger().Info("fit NeuMF",
				zap.Int("epoch", epoch),
				zap.Int("n_epochs", neumf.nEpochs),
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
func (neumf *NeuMF) Marshal(w io.Writer) error {
	if err := neumf.BaseNCF.marshal(w); err != nil {
		return errors.Trace(err)
	}
	if err := binary.Write(w, binary.LittleEndian, neumf.OutputBias); err != nil {
		return errors.Trace(err)
	}
	if err := writeVector(w, neumf.OutputWeight); err != nil {
		return errors.Trace(err)
	}
	for l := range neumf.Weights {
		if err := encoding.WriteMatrix(w, neumf.Weights[l]); err != nil {
			return errors.Trace(err)
		}
		if err := writeVector(w, neumf.Biases[l]); err != nil {
			return errors.Trace(err)
		}
	}
	if err := encoding.WriteMatrix(w, neumf.GMFUserFactor); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteMatrix(w, neumf.GMFItemFactor); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteMatrix(w, neumf.MLPUserFactor); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteMatrix(w, neumf.MLPItemFactor); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// Unmarshal model from byte stream.
func (neumf *NeuMF) Unmarshal(r io.Reader) error {
	params, err := neumf.BaseNCF.unmarshal(r)
	if err != nil {
		return errors.Trace(err)
	}
	neumf.SetParams(params)
	if err := binary.Read(r, binary.LittleEndian, &neumf.OutputBias); err != nil {
		return errors.Trace(err)
	}
	neumf.OutputWeight = make([]float32, neumf.nFactors+neumf.layers[len(neumf.layers)-1])
	if err := readVector(r, neumf.OutputWeight); err != nil {
		return errors.Trace(err)
	}
	neumf.Weights = make([][][]float32, len(neumf.layers)-1)
	neumf.Biases = make([][]float32, len(neumf.layers)-1)
	for l := 0; l < len(neumf.layers)-1; l++ {
		neumf.Weights[l] = base.NewMatrix32(neumf.layers[l+1], neumf.layers[l])
		if err := encoding.ReadMatrix(r, neumf.Weights[l]); err != nil {
			return errors.Trace(err)
		}
		neumf.Biases[l] = make([]float32, neumf.layers[l+1])
		if err := readVector(r, neumf.Biases[l]); err != nil {
			return errors.Trace(err)
		}
	}
	numUsers, numItems := int(neumf.UserDict.Count()), int(neumf.ItemDict.Count())
	neumf.GMFUserFactor = base.NewMatrix32(numUsers, neumf.nFactors)
	if err := encoding.ReadMatrix(r, neumf.GMFUserFactor); err != nil {
		return errors.Trace(err)
	}
	neumf.GMFItemFactor = base.NewMatrix32(numItems, neumf.nFactors)
	if err := encoding.ReadMatrix(r, neumf.GMFItemFactor); err != nil {
		return errors.Trace(err)
	}
	embeddingSize := neumf.embeddingSize()
	neumf.MLPUserFactor = base.NewMatrix32(numUsers, embeddingSize)
	if err := encoding.ReadMatrix(r, neumf.MLPUserFactor); err != nil {
		return errors.Trace(err)
	}
	neumf.MLPItemFactor = base.NewMatrix32(numItems, embeddingSize)
	if err := encoding.ReadMatrix(r, neumf.MLPItemFactor); err != nil {
		return errors.Trace(err)
	}
	return nil
}
