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
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gorse-io/neucf/dataset"
)

type mockSearchModel struct {
	BaseModel
}

func (m *mockSearchModel) GetParamsGrid() ParamsGrid {
	return ParamsGrid{Lr: []interface{}{0.01, 0.1}}
}

// Fit scores a trial by its learning rate so the best combination is known.
func (m *mockSearchModel) Fit(_ context.Context, _, _ *dataset.Dataset, _ *FitConfig) Score {
	ndcg := m.Params.GetFloat32(Lr, 0)
	return Score{HR: ndcg, NDCG: ndcg}
}

func (m *mockSearchModel) Predict(_, _ string) float32        { panic("don't call me") }
func (m *mockSearchModel) InternalPredict(_, _ int32) float32 { panic("don't call me") }
func (m *mockSearchModel) Marshal(_ io.Writer) error          { panic("don't call me") }
func (m *mockSearchModel) Unmarshal(_ io.Reader) error        { panic("don't call me") }
func (m *mockSearchModel) Invalid() bool                      { panic("don't call me") }
func (m *mockSearchModel) Clear()                             {}

func TestParamsSearchResult(t *testing.T) {
	var result ParamsSearchResult
	result.AddScore(Params{Lr: 0.01}, Score{NDCG: 0.2})
	result.AddScore(Params{Lr: 0.05}, Score{NDCG: 0.5})
	result.AddScore(Params{Lr: 0.1}, Score{NDCG: 0.3})
	assert.Equal(t, 1, result.BestIndex)
	assert.Equal(t, float32(0.5), result.BestScore.NDCG)
	assert.Equal(t, Params{Lr: 0.05}, result.BestParams)
	assert.Len(t, result.Scores, 3)
	assert.Len(t, result.Params, 3)
}

func TestSearchParams(t *testing.T) {
	m := &mockSearchModel{}
	result, err := SearchParams(context.Background(), m, nil, nil,
		m.GetParamsGrid(), 12, NewFitConfig())
	assert.NoError(t, err)
	assert.Len(t, result.Scores, 12)
	assert.Len(t, result.Params, 12)
	assert.InDelta(t, 0.1, result.BestScore.NDCG, evalEpsilon)
	assert.Equal(t, 0.1, result.BestParams[Lr])
	assert.Equal(t, result.BestScore, result.Scores[result.BestIndex])
}
