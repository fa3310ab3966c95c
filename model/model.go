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

// Package model implements neural collaborative filtering models with
// pointwise SGD training: GMF, MLP and their fusion NeuMF.
package model

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/bits-and-blooms/bitset"
	"github.com/chewxy/math32"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/gorse-io/neucf/base"
	"github.com/gorse-io/neucf/base/encoding"
	"github.com/gorse-io/neucf/base/log"
	"github.com/gorse-io/neucf/dataset"
)

// Score is the leave-one-out evaluation result of a model snapshot.
type Score struct {
	HR   float32
	NDCG float32
}

// FitConfig controls fitting and in-training evaluation.
type FitConfig struct {
	Jobs       int // number of parallel evaluation workers
	Verbose    int // evaluate every Verbose epochs
	Candidates int // number of negatives per leave-one-out group
	TopK       int // evaluation cutoff
}

// NewFitConfig creates a FitConfig with default values.
func NewFitConfig() *FitConfig {
	return &FitConfig{
		Jobs:       1,
		Verbose:    10,
		Candidates: 100,
		TopK:       10,
	}
}

func (config *FitConfig) SetJobs(jobs int) *FitConfig {
	config.Jobs = jobs
	return config
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

func (config *FitConfig) SetTopK(topK int) *FitConfig {
	config.TopK = topK
	return config
}

func (config *FitConfig) SetCandidates(candidates int) *FitConfig {
	config.Candidates = candidates
	return config
}

func (config *FitConfig) LoadDefaultIfNil() *FitConfig {
	if config == nil {
		return NewFitConfig()
	}
	return config
}

// Model is the interface for neural collaborative filtering models.
type Model interface {
	// SetParams sets hyper-parameters.
	SetParams(params Params)
	// GetParams returns all hyper-parameters.
	GetParams() Params
	// GetParamsGrid returns candidates for grid search.
	GetParamsGrid() ParamsGrid
	// Fit a model with a train set. The test set drives in-training evaluation
	// and is excluded from negative sampling.
	Fit(ctx context.Context, trainSet, testSet *dataset.Dataset, config *FitConfig) Score
	// Predict the preference of a user (userId) for an item (itemId).
	Predict(userId, itemId string) float32
	// InternalPredict predicts the preference by dense indices.
	InternalPredict(userIndex, itemIndex int32) float32
	// Marshal model into byte stream.
	Marshal(w io.Writer) error
	// Unmarshal model from byte stream.
	Unmarshal(r io.Reader) error
	// Clear releases the model parameters.
	Clear()
	// Invalid reports whether the model has no trained parameters.
	Invalid() bool
}

// BaseModel hosts hyper-parameters and the seeded random generator.
type BaseModel struct {
	Params    Params
	rng       base.RandomGenerator
	randState int64
}

// SetParams sets hyper-parameters for the BaseModel.
func (baseModel *BaseModel) SetParams(params Params) {
	baseModel.Params = params
	baseModel.randState = baseModel.Params.GetInt64(RandomState, 0)
	baseModel.rng = base.NewRandomGenerator(baseModel.randState)
}

// GetParams returns all hyper-parameters.
func (baseModel *BaseModel) GetParams() Params {
	return baseModel.Params
}

// GetRandomGenerator returns the random generator.
func (baseModel *BaseModel) GetRandomGenerator() base.RandomGenerator {
	return baseModel.rng
}

// BaseNCF is the shared base of GMF, MLP and NeuMF: id dictionaries and
// trained flags for users and items.
type BaseNCF struct {
	BaseModel
	UserDict        *dataset.Dict
	ItemDict        *dataset.Dict
	UserPredictable *bitset.BitSet
	ItemPredictable *bitset.BitSet
}

// Init binds the model to the train set's dictionaries and marks users and
// items with feedback as predictable.
func (baseNCF *BaseNCF) Init(trainSet *dataset.Dataset) {
	baseNCF.UserDict = trainSet.UserDict
	baseNCF.ItemDict = trainSet.ItemDict
	baseNCF.UserPredictable = bitset.New(uint(trainSet.CountUsers()))
	for userIndex := 0; userIndex < trainSet.CountUsers(); userIndex++ {
		if len(trainSet.UserFeedback[userIndex]) > 0 {
			baseNCF.UserPredictable.Set(uint(userIndex))
		}
	}
	baseNCF.ItemPredictable = bitset.New(uint(trainSet.CountItems()))
	for itemIndex := 0; itemIndex < trainSet.CountItems(); itemIndex++ {
		if len(trainSet.ItemFeedback[itemIndex]) > 0 {
			baseNCF.ItemPredictable.Set(uint(itemIndex))
		}
	}
}

// IsUserPredictable returns false if the user has no feedback and the
// embedding vector was never trained.
func (baseNCF *BaseNCF) IsUserPredictable(userIndex int32) bool {
	if userIndex < 0 || userIndex >= baseNCF.UserDict.Count() {
		return false
	}
	return baseNCF.UserPredictable.Test(uint(userIndex))
}

// IsItemPredictable returns false if the item has no feedback and the
// embedding vector was never trained.
func (baseNCF *BaseNCF) IsItemPredictable(itemIndex int32) bool {
	if itemIndex < 0 || itemIndex >= baseNCF.ItemDict.Count() {
		return false
	}
	return baseNCF.ItemPredictable.Test(uint(itemIndex))
}

// dictionaries exposes the trained dictionaries for compatibility checks.
func (baseNCF *BaseNCF) dictionaries() (*dataset.Dict, *dataset.Dict) {
	return baseNCF.UserDict, baseNCF.ItemDict
}

// CheckDataset verifies that a dataset was indexed by the same dictionaries a
// model was trained with. Dense indices only line up when ids match in order.
func CheckDataset(m Model, data *dataset.Dataset) error {
	holder, ok := m.(interface {
		dictionaries() (*dataset.Dict, *dataset.Dict)
	})
	if !ok {
		return errors.NotSupportedf("model %s", GetModelName(m))
	}
	userDict, itemDict := holder.dictionaries()
	if !userDict.Equal(data.UserDict) || !itemDict.Equal(data.ItemDict) {
		return errors.Errorf("checkpoint was trained on different users or items")
	}
	return nil
}

// lookup converts sparse ids to dense indices for prediction.
func (baseNCF *BaseNCF) lookup(userId, itemId string) (int32, int32) {
	userIndex := baseNCF.UserDict.Id(userId)
	itemIndex := baseNCF.ItemDict.Id(itemId)
	if userIndex == dataset.NotId {
		log.Logger().Warn("unknown user", zap.String("user_id", userId))
	}
	if itemIndex == dataset.NotId {
		log.Logger().Warn("unknown item", zap.String("item_id", itemId))
	}
	return userIndex, itemIndex
}

// marshal writes hyper-parameters and dictionaries.
func (baseNCF *BaseNCF) marshal(w io.Writer) error {
	if err := encoding.WriteGob(w, baseNCF.Params); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteGob(w, baseNCF.UserDict.Strings()); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteGob(w, baseNCF.ItemDict.Strings()); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// unmarshal reads hyper-parameters and dictionaries. The returned params must
// be applied by the caller via SetParams before reading weights.
func (baseNCF *BaseNCF) unmarshal(r io.Reader) (Params, error) {
	var params Params
	if err := encoding.ReadGob(r, &params); err != nil {
		return nil, errors.Trace(err)
	}
	var userIds, itemIds []string
	if err := encoding.ReadGob(r, &userIds); err != nil {
		return nil, errors.Trace(err)
	}
	if err := encoding.ReadGob(r, &itemIds); err != nil {
		return nil, errors.Trace(err)
	}
	baseNCF.UserDict = dataset.NewDict()
	for _, id := range userIds {
		baseNCF.UserDict.Add(id)
	}
	baseNCF.ItemDict = dataset.NewDict()
	for _, id := range itemIds {
		baseNCF.ItemDict.Add(id)
	}
	// all persisted embeddings are trained
	baseNCF.UserPredictable = bitset.New(uint(len(userIds)))
	for i := range userIds {
		baseNCF.UserPredictable.Set(uint(i))
	}
	baseNCF.ItemPredictable = bitset.New(uint(len(itemIds)))
	for i := range itemIds {
		baseNCF.ItemPredictable.Set(uint(i))
	}
	return params, nil
}

func sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}

const lossEpsilon = 1e-7

// crossEntropy is the pointwise binary cross-entropy loss.
func crossEntropy(prediction, label float32) float32 {
	return -label*math32.Log(prediction+lossEpsilon) -
		(1-label)*math32.Log(1-prediction+lossEpsilon)
}

// GetModelName returns the checkpoint tag of a model.
func GetModelName(m Model) string {
	switch m.(type) {
	case *GMF:
		return "gmf"
	case *MLP:
		return "mlp"
	case *NeuMF:
		return "neumf"
	default:
		return "unknown"
	}
}

// NewModel creates a model by name.
func NewModel(name string, params Params) (Model, error) {
	switch name {
	case "gmf":
		return NewGMF(params), nil
	case "mlp":
		return NewMLP(params), nil
	case "neumf":
		return NewNeuMF(params), nil
	}
	return nil, errors.NotFoundf("model %v (expect one of gmf, mlp, neumf)", name)
}

// MarshalModel writes a tagged model checkpoint.
func MarshalModel(w io.Writer, m Model) error {
	if err := encoding.WriteString(w, GetModelName(m)); err != nil {
		return errors.Trace(err)
	}
	if err := m.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// UnmarshalModel reads a tagged model checkpoint.
func UnmarshalModel(r io.Reader) (Model, error) {
	name, err := encoding.ReadString(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	switch name {
	case "gmf":
		var gmf GMF
		if err := gmf.Unmarshal(r); err != nil {
			return nil, errors.Trace(err)
		}
		return &gmf, nil
	case "mlp":
		var mlp MLP
		if err := mlp.Unmarshal(r); err != nil {
			return nil, errors.Trace(err)
		}
		return &mlp, nil
	case "neumf":
		var neumf NeuMF
		if err := neumf.Unmarshal(r); err != nil {
			return nil, errors.Trace(err)
		}
		return &neumf, nil
	}
	return nil, errors.Errorf("unknown model %v", name)
}

// Save writes a model checkpoint to a file, creating parent directories.
func Save(path string, m Model) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return errors.Trace(err)
	}
	file, err := os.Create(path)
	if err != nil {
		return errors.Trace(err)
	}
	defer file.Close()
	writer := bufio.NewWriter(file)
	if err := MarshalModel(writer, m); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(writer.Flush())
}

// Load reads a model checkpoint from a file.
func Load(path string) (Model, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	m, err := UnmarshalModel(bufio.NewReader(file))
	if err != nil {
		return nil, errors.Trace(err)
	}
	return m, nil
}

// writeVector writes a vector of 32-bit floats.
func writeVector(w io.Writer, v []float32) error {
	return errors.Trace(binary.Write(w, binary.LittleEndian, v))
}

// readVector reads a vector of 32-bit floats.
func readVector(r io.Reader, v []float32) error {
	return errors.Trace(binary.Read(r, binary.LittleEndian, v))
}
