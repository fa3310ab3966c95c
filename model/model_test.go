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
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gorse-io/neucf/dataset"
)

// newSyntheticSplit builds a parity dataset: user u likes item i iff they
// share parity. Interaction order is shuffled per user so that every item
// lands in the train set of most of its users.
func newSyntheticSplit(t *testing.T, numUsers, numItems int) (*dataset.Dataset, *dataset.Dataset) {
	rng := rand.New(rand.NewSource(42))
	data := dataset.NewDataset()
	for u := 0; u < numUsers; u++ {
		liked := make([]int, 0, numItems/2)
		for i := u % 2; i < numItems; i += 2 {
			liked = append(liked, i)
		}
		rng.Shuffle(len(liked), func(i, j int) {
			liked[i], liked[j] = liked[j], liked[i]
		})
		for position, i := range liked {
			data.AddFeedback(fmt.Sprintf("u%d", u), fmt.Sprintf("i%d", i), 1, int64(position))
		}
	}
	trainSet, testSet, err := data.SplitChrono(0.8)
	assert.NoError(t, err)
	return trainSet, testSet
}

// newReversedSplit mirrors newSyntheticSplit with users inserted in reverse
// order: same ids and cardinalities, different dictionary order.
func newReversedSplit(t *testing.T, numUsers, numItems int) (*dataset.Dataset, *dataset.Dataset) {
	rng := rand.New(rand.NewSource(42))
	data := dataset.NewDataset()
	for u := numUsers - 1; u >= 0; u-- {
		liked := make([]int, 0, numItems/2)
		for i := u % 2; i < numItems; i += 2 {
			liked = append(liked, i)
		}
		rng.Shuffle(len(liked), func(i, j int) {
			liked[i], liked[j] = liked[j], liked[i]
		})
		for position, i := range liked {
			data.AddFeedback(fmt.Sprintf("u%d", u), fmt.Sprintf("i%d", i), 1, int64(position))
		}
	}
	trainSet, testSet, err := data.SplitChrono(0.8)
	assert.NoError(t, err)
	return trainSet, testSet
}

// assertCheckpoint saves and reloads a model, then compares predictions.
func assertCheckpoint(t *testing.T, m Model, testSet *dataset.Dataset) {
	path := filepath.Join(t.TempDir(), "checkpoint")
	assert.NoError(t, Save(path, m))
	loaded, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, GetModelName(m), GetModelName(loaded))
	assert.False(t, loaded.Invalid())
	for position := 0; position < testSet.Count() && position < 100; position++ {
		userIndex, itemIndex := testSet.GetIndex(position)
		assert.Equal(t, m.InternalPredict(userIndex, itemIndex),
			loaded.InternalPredict(userIndex, itemIndex))
	}
}

func TestNewModel(t *testing.T) {
	for _, name := range []string{"gmf", "mlp", "neumf"} {
		m, err := NewModel(name, nil)
		assert.NoError(t, err)
		assert.Equal(t, name, GetModelName(m))
	}
	_, err := NewModel("svd", nil)
	assert.Error(t, err)
}

func TestCheckDataset(t *testing.T) {
	trainSet, testSet := newSyntheticSplit(t, 20, 40)
	gmf := NewGMF(Params{NFactors: 4, NEpochs: 1})
	gmf.Fit(context.Background(), trainSet, testSet, NewFitConfig())
	assert.NoError(t, CheckDataset(gmf, trainSet))
	assert.NoError(t, CheckDataset(gmf, testSet))
	// same cardinalities, different id order
	otherTrain, _ := newReversedSplit(t, 20, 40)
	assert.Equal(t, trainSet.CountUsers(), otherTrain.CountUsers())
	assert.Equal(t, trainSet.CountItems(), otherTrain.CountItems())
	assert.Error(t, CheckDataset(gmf, otherTrain))
}

func TestFitConfigDefaults(t *testing.T) {
	var config *FitConfig
	config = config.LoadDefaultIfNil()
	assert.Equal(t, 1, config.Jobs)
	assert.Equal(t, 10, config.Verbose)
	assert.Equal(t, 100, config.Candidates)
	assert.Equal(t, 10, config.TopK)
}

func TestSigmoid(t *testing.T) {
	assert.InDelta(t, 0.5, sigmoid(0), evalEpsilon)
	assert.Greater(t, sigmoid(10), float32(0.99))
	assert.Less(t, sigmoid(-10), float32(0.01))
}
