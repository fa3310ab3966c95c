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

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"

	"github.com/gorse-io/neucf/dataset"
)

const evalEpsilon = 0.00001

type mockModel struct {
	score func(userIndex, itemIndex int32) float32
}

func (m *mockModel) SetParams(params Params)     { panic("don't call me") }
func (m *mockModel) GetParams() Params           { panic("don't call me") }
func (m *mockModel) GetParamsGrid() ParamsGrid   { panic("don't call me") }
func (m *mockModel) Clear()                      { panic("don't call me") }
func (m *mockModel) Invalid() bool               { panic("don't call me") }
func (m *mockModel) Marshal(w io.Writer) error   { panic("don't call me") }
func (m *mockModel) Unmarshal(r io.Reader) error { panic("don't call me") }

func (m *mockModel) Fit(_ context.Context, _, _ *dataset.Dataset, _ *FitConfig) Score {
	panic("don't call me")
}

func (m *mockModel) Predict(_, _ string) float32 {
	panic("don't call me")
}

func (m *mockModel) InternalPredict(userIndex, itemIndex int32) float32 {
	return m.score(userIndex, itemIndex)
}

func TestNDCG(t *testing.T) {
	targetSet := mapset.NewSet[int32](0)
	assert.InDelta(t, 0.6309298, NDCG(targetSet, []int32{1, 0, 2}), evalEpsilon)
	perfectSet := mapset.NewSet[int32](0, 1)
	assert.InDelta(t, 1.0, NDCG(perfectSet, []int32{0, 1}), evalEpsilon)
}

func TestPrecision(t *testing.T) {
	targetSet := mapset.NewSet[int32](0, 2, 4)
	assert.InDelta(t, 0.5, Precision(targetSet, []int32{0, 1, 2, 3}), evalEpsilon)
}

func TestRecall(t *testing.T) {
	targetSet := mapset.NewSet[int32](0, 2, 4)
	assert.InDelta(t, 0.6666667, Recall(targetSet, []int32{0, 1, 2, 3}), evalEpsilon)
}

func TestHR(t *testing.T) {
	targetSet := mapset.NewSet[int32](3)
	assert.Equal(t, float32(1), HR(targetSet, []int32{1, 2, 3}))
	assert.Equal(t, float32(0), HR(targetSet, []int32{4, 5, 6}))
}

func TestMAP(t *testing.T) {
	targetSet := mapset.NewSet[int32](0, 2)
	assert.InDelta(t, 0.8333333, MAP(targetSet, []int32{0, 1, 2}), evalEpsilon)
}

func TestMRR(t *testing.T) {
	targetSet := mapset.NewSet[int32](2)
	assert.InDelta(t, 0.5, MRR(targetSet, []int32{1, 2}), evalEpsilon)
}

func TestRank(t *testing.T) {
	m := &mockModel{score: func(userIndex, itemIndex int32) float32 {
		return float32(itemIndex)
	}}
	items, scores := Rank(m, 0, []int32{3, 1, 2}, 2)
	assert.Equal(t, []int32{3, 2}, items)
	assert.Equal(t, []float32{3, 2}, scores)
}

func TestRankTieBreak(t *testing.T) {
	// equal scores keep candidate order
	m := &mockModel{score: func(userIndex, itemIndex int32) float32 {
		return 0.5
	}}
	items, scores := Rank(m, 0, []int32{5, 3, 8}, 2)
	assert.Equal(t, []int32{5, 3}, items)
	assert.Equal(t, []float32{0.5, 0.5}, scores)
}

func TestEvaluate(t *testing.T) {
	// one user, ten items, timestamps follow item order
	data := dataset.NewDataset()
	for i := 0; i < 10; i++ {
		data.AddFeedback("0", string(rune('a'+i)), 1, int64(i))
	}
	trainSet, testSet, err := data.SplitChrono(0.6)
	assert.NoError(t, err)
	// the model prefers low item indices, so the four test items (6..9) are
	// ranked in index order among candidates 6..9
	m := &mockModel{score: func(userIndex, itemIndex int32) float32 {
		return -float32(itemIndex)
	}}
	results := Evaluate(m, testSet, trainSet, 4, 1, Precision, Recall, NDCG)
	assert.Len(t, results, 3)
	assert.InDelta(t, 1.0, results[0], evalEpsilon)
	assert.InDelta(t, 1.0, results[1], evalEpsilon)
	assert.InDelta(t, 1.0, results[2], evalEpsilon)
}

func TestEvaluateConstantModel(t *testing.T) {
	// a constant model ranks candidates in index order, so metrics are decided
	// purely by which items overlap the head of each user's candidate list
	data := dataset.NewDataset()
	for i := 0; i < 10; i++ {
		data.AddFeedback("0", string(rune('a'+i)), 1, int64(i))
	}
	data.AddFeedback("1", "k", 1, 0)
	data.AddFeedback("1", "l", 1, 1)
	trainSet, testSet, err := data.SplitChrono(0.6)
	assert.NoError(t, err)
	m := &mockModel{score: func(userIndex, itemIndex int32) float32 {
		return 1.0
	}}
	// user 0: candidates 6..11, targets 6..9, top 2 is [6 7]
	// user 1: candidates 0..9 and 11, target 11, top 2 is [0 1]
	results := Evaluate(m, testSet, trainSet, 2, 1, Precision, Recall)
	assert.Len(t, results, 2)
	assert.InDelta(t, 0.5, results[0], evalEpsilon)
	assert.InDelta(t, 0.25, results[1], evalEpsilon)
	// user 0: all six candidates returned, four of them targets
	// user 1: top 10 is 0..9, the target misses
	results = Evaluate(m, testSet, trainSet, 10, 1, Precision, Recall)
	assert.InDelta(t, 1.0/3.0, results[0], evalEpsilon)
	assert.InDelta(t, 0.5, results[1], evalEpsilon)
}

func TestEvaluateEmptyTestSet(t *testing.T) {
	data := dataset.NewDataset()
	data.AddFeedback("0", "a", 1, 1)
	emptyTest := dataset.NewDataset()
	m := &mockModel{score: func(userIndex, itemIndex int32) float32 { return 0 }}
	results := Evaluate(m, emptyTest, data, 10, 1, Precision, Recall)
	assert.Equal(t, []float32{0, 0}, results)
}

func newLeaveOneOutGroup(numNegatives int) []dataset.TestGroup {
	items := make([]int32, 0, numNegatives+1)
	for i := 0; i <= numNegatives; i++ {
		items = append(items, int32(i))
	}
	return []dataset.TestGroup{{UserIndex: 0, Items: items}}
}

func TestEvaluateLeaveOneOut(t *testing.T) {
	groups := newLeaveOneOutGroup(100)
	// the positive scores highest: rank 1
	best := &mockModel{score: func(userIndex, itemIndex int32) float32 {
		if itemIndex == 0 {
			return 1
		}
		return 0
	}}
	score := EvaluateLeaveOneOut(best, groups, 10, 1)
	assert.InDelta(t, 1.0, score.HR, evalEpsilon)
	assert.InDelta(t, 1.0, score.NDCG, evalEpsilon)

	// constant scores: every negative ties with the positive, rank 101
	constant := &mockModel{score: func(userIndex, itemIndex int32) float32 {
		return 0.5
	}}
	score = EvaluateLeaveOneOut(constant, groups, 10, 1)
	assert.Zero(t, score.HR)
	assert.Zero(t, score.NDCG)

	// five negatives tie with the positive: rank 6
	tied := &mockModel{score: func(userIndex, itemIndex int32) float32 {
		if itemIndex <= 5 {
			return 1
		}
		return 0
	}}
	score = EvaluateLeaveOneOut(tied, groups, 10, 1)
	assert.InDelta(t, 1.0, score.HR, evalEpsilon)
	assert.InDelta(t, 0.3562072, score.NDCG, evalEpsilon)
}

func TestPredictAll(t *testing.T) {
	data := dataset.NewDataset()
	data.AddFeedback("1", "a", 1, 100)
	data.AddFeedback("1", "b", 1, 200)
	data.AddFeedback("2", "a", 1, 300)
	m := &mockModel{score: func(userIndex, itemIndex int32) float32 {
		return float32(userIndex*10 + itemIndex)
	}}
	predictions := PredictAll(m, data, 2)
	assert.Equal(t, []Prediction{
		{UserId: "1", ItemId: "a", Score: 0},
		{UserId: "1", ItemId: "b", Score: 1},
		{UserId: "2", ItemId: "a", Score: 10},
	}, predictions)
}

func TestEvaluateLeaveOneOutEmpty(t *testing.T) {
	m := &mockModel{score: func(userIndex, itemIndex int32) float32 { return 0 }}
	score := EvaluateLeaveOneOut(m, nil, 10, 1)
	assert.Zero(t, score.HR)
	assert.Zero(t, score.NDCG)
}
