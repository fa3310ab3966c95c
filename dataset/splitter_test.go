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

package dataset

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newToyDataset(numUsers, numItemsPerUser int) *Dataset {
	data := NewDataset()
	for u := 0; u < numUsers; u++ {
		for i := 0; i < numItemsPerUser; i++ {
			data.AddFeedback(fmt.Sprintf("u%d", u), fmt.Sprintf("i%d_%d", u, i), 1, int64(i))
		}
	}
	return data
}

func TestSplitChrono(t *testing.T) {
	data := newToyDataset(3, 5)
	trainSet, testSet, err := data.SplitChrono(0.75)
	assert.NoError(t, err)
	// ceil(0.75*5) = 4 train records per user
	assert.Equal(t, 12, trainSet.Count())
	assert.Equal(t, 3, testSet.Count())
	// partitions share dictionaries with the source
	assert.Same(t, data.UserDict, trainSet.UserDict)
	assert.Same(t, data.ItemDict, testSet.ItemDict)
	// the most recent interaction of every user lands in the test set
	for position := 0; position < testSet.Count(); position++ {
		assert.Equal(t, int64(4), testSet.Timestamps[position])
	}
	for position := 0; position < trainSet.Count(); position++ {
		assert.Less(t, trainSet.Timestamps[position], int64(4))
	}
}

func TestSplitChronoInvalidRatio(t *testing.T) {
	data := newToyDataset(1, 2)
	for _, ratio := range []float32{0, 1, -0.5, 1.5} {
		_, _, err := data.SplitChrono(ratio)
		assert.Error(t, err)
	}
}

func TestSplitChronoSingleInteraction(t *testing.T) {
	data := NewDataset()
	data.AddFeedback("lonely", "a", 1, 100)
	data.AddFeedback("active", "a", 1, 100)
	data.AddFeedback("active", "b", 1, 200)
	trainSet, testSet, err := data.SplitChrono(0.5)
	assert.NoError(t, err)
	// the single interaction stays in train, so every test user is a train user
	assert.Equal(t, 2, trainSet.Count())
	assert.Equal(t, 1, testSet.Count())
	lonely := data.UserDict.Id("lonely")
	assert.Len(t, trainSet.UserFeedback[lonely], 1)
	assert.Empty(t, testSet.UserFeedback[lonely])
}

func TestSplitChronoHighRatioKeepsTest(t *testing.T) {
	// ceil(0.9*2) = 2 would leave no test record, the split clamps to 1
	data := newToyDataset(1, 2)
	trainSet, testSet, err := data.SplitChrono(0.9)
	assert.NoError(t, err)
	assert.Equal(t, 1, trainSet.Count())
	assert.Equal(t, 1, testSet.Count())
}

func TestSplitChronoReconstruct(t *testing.T) {
	data := newToyDataset(4, 7)
	trainSet, testSet, err := data.SplitChrono(0.6)
	assert.NoError(t, err)
	assert.Equal(t, data.Count(), trainSet.Count()+testSet.Count())
	// every record appears in exactly one partition
	seen := make(map[string]int)
	count := func(s *Dataset) {
		for position := 0; position < s.Count(); position++ {
			userIndex, itemIndex := s.GetIndex(position)
			seen[fmt.Sprintf("%d:%d", userIndex, itemIndex)]++
		}
	}
	count(trainSet)
	count(testSet)
	assert.Len(t, seen, data.Count())
	for _, n := range seen {
		assert.Equal(t, 1, n)
	}
}

func TestSplitChronoTieBreak(t *testing.T) {
	// equal timestamps keep input order: the earliest inserted records train
	data := NewDataset()
	data.AddFeedback("u", "a", 1, 100)
	data.AddFeedback("u", "b", 1, 100)
	data.AddFeedback("u", "c", 1, 100)
	trainSet, testSet, err := data.SplitChrono(0.5)
	assert.NoError(t, err)
	// ceil(0.5*3) = 2
	assert.Equal(t, []int32{0, 1}, trainSet.FeedbackItems)
	assert.Equal(t, []int32{2}, testSet.FeedbackItems)
}

func TestSplitChronoDeterministic(t *testing.T) {
	data := newToyDataset(5, 9)
	firstTrain, firstTest, err := data.SplitChrono(0.8)
	assert.NoError(t, err)
	secondTrain, secondTest, err := data.SplitChrono(0.8)
	assert.NoError(t, err)
	assert.Equal(t, firstTrain.FeedbackUsers, secondTrain.FeedbackUsers)
	assert.Equal(t, firstTrain.FeedbackItems, secondTrain.FeedbackItems)
	assert.Equal(t, firstTest.FeedbackUsers, secondTest.FeedbackUsers)
	assert.Equal(t, firstTest.FeedbackItems, secondTest.FeedbackItems)
}
