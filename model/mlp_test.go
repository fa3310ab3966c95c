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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMLPFit(t *testing.T) {
	trainSet, testSet := newSyntheticSplit(t, 60, 100)
	mlp := NewMLP(Params{
		Layers:      []int{16, 8},
		NEpochs:     50,
		Lr:          0.1,
		Reg:         0.001,
		NNegatives:  4,
		BatchSize:   128,
		InitStdDev:  0.3,
		RandomState: 42,
	})
	score := mlp.Fit(context.Background(), trainSet, testSet,
		NewFitConfig().SetVerbose(25))
	assert.Greater(t, score.HR, float32(0.5))
	assert.Greater(t, score.NDCG, float32(0.2))
	assertCheckpoint(t, mlp, testSet)
}

func TestMLPDefaultLayers(t *testing.T) {
	mlp := NewMLP(nil)
	assert.Equal(t, []int{64, 32, 16, 8}, mlp.layers)
	assert.Equal(t, 32, mlp.embeddingSize())
	// odd first layer falls back to the default
	mlp = NewMLP(Params{Layers: []int{15, 8}})
	assert.Equal(t, []int{64, 32, 16, 8}, mlp.layers)
}

func TestMLPClear(t *testing.T) {
	mlp := NewMLP(Params{Layers: []int{8, 4}, NEpochs: 1})
	assert.True(t, mlp.Invalid())
	trainSet, testSet := newSyntheticSplit(t, 20, 40)
	mlp.Fit(context.Background(), trainSet, testSet, NewFitConfig())
	assert.False(t, mlp.Invalid())
	mlp.Clear()
	assert.True(t, mlp.Invalid())
}
