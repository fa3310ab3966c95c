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

// newSamplerSplit builds a dataset where each of the users interacted with
// half of the catalog, then splits it chronologically.
func newSamplerSplit(t *testing.T, numUsers, numItems int) (*Dataset, *Dataset) {
	data := NewDataset()
	for u := 0; u < numUsers; u++ {
		for i := 0; i < numItems/2; i++ {
			// staggered windows so that every item gets feedback
			item := (u*numItems/numUsers + i) % numItems
			data.AddFeedback(fmt.Sprintf("u%d", u), fmt.Sprintf("i%d", item), 1, int64(i))
		}
	}
	trainSet, testSet, err := data.SplitChrono(0.8)
	assert.NoError(t, err)
	return trainSet, testSet
}

func TestTrainSampler(t *testing.T) {
	trainSet, testSet := newSamplerSplit(t, 10, 20)
	sampler := NewTrainSampler(trainSet, testSet, 3, 42)
	epoch := sampler.SampleEpoch()
	// every positive is paired with three negatives
	assert.Equal(t, trainSet.Count()*4, epoch.Count())
	positives := 0
	trainSets := trainSet.UserFeedbackSets()
	testSets := testSet.UserFeedbackSets()
	for position := 0; position < epoch.Count(); position++ {
		userIndex := epoch.Users[position]
		itemIndex := epoch.Items[position]
		switch epoch.Labels[position] {
		case 1:
			positives++
			assert.True(t, trainSets[userIndex].Contains(itemIndex))
		case 0:
			// negatives never collide with train or test positives
			assert.False(t, trainSets[userIndex].Contains(itemIndex))
			assert.False(t, testSets[userIndex].Contains(itemIndex))
		default:
			t.Fatalf("unexpected label %v", epoch.Labels[position])
		}
	}
	assert.Equal(t, trainSet.Count(), positives)
}

func TestTrainSamplerShrink(t *testing.T) {
	// the user interacted with 4 of 5 items, only one negative is available
	data := NewDataset()
	for i := 0; i < 5; i++ {
		data.AddFeedback("other", fmt.Sprintf("i%d", i), 1, int64(i))
	}
	for i := 0; i < 4; i++ {
		data.AddFeedback("u", fmt.Sprintf("i%d", i), 1, int64(i))
	}
	trainSet, testSet, err := data.SplitChrono(0.8)
	assert.NoError(t, err)
	sampler := NewTrainSampler(trainSet, testSet, 3, 42)
	epoch := sampler.SampleEpoch()
	// shrunk samples yield fewer than nNegatives per positive
	assert.Less(t, epoch.Count(), trainSet.Count()*4)
	for position := 0; position < epoch.Count(); position++ {
		if epoch.Labels[position] == 0 {
			assert.GreaterOrEqual(t, epoch.Items[position], int32(0))
			assert.Less(t, epoch.Items[position], int32(trainSet.CountItems()))
		}
	}
}

func TestTrainSamplerDeterministic(t *testing.T) {
	trainSet, testSet := newSamplerSplit(t, 10, 20)
	first := NewTrainSampler(trainSet, testSet, 3, 42).SampleEpoch()
	second := NewTrainSampler(trainSet, testSet, 3, 42).SampleEpoch()
	assert.Equal(t, first.Users, second.Users)
	assert.Equal(t, first.Items, second.Items)
	assert.Equal(t, first.Labels, second.Labels)
	// consecutive epochs from one sampler differ
	third := NewTrainSampler(trainSet, testSet, 3, 42)
	a, b := third.SampleEpoch(), third.SampleEpoch()
	assert.NotEqual(t, a.Items, b.Items)
}

func TestNewLeaveOneOut(t *testing.T) {
	trainSet, testSet := newSamplerSplit(t, 10, 40)
	groups := NewLeaveOneOut(testSet, trainSet, 10, 42)
	assert.Len(t, groups, testSet.Count())
	trainSets := trainSet.UserFeedbackSets()
	testSets := testSet.UserFeedbackSets()
	for position, group := range groups {
		userIndex, itemIndex := testSet.GetIndex(position)
		// groups follow the input order of the test set
		assert.Equal(t, userIndex, group.UserIndex)
		// the positive sits at index 0
		assert.Equal(t, itemIndex, group.Items[0])
		assert.Len(t, group.Items, 11)
		for _, negativeIndex := range group.Items[1:] {
			assert.False(t, trainSets[userIndex].Contains(negativeIndex))
			assert.False(t, testSets[userIndex].Contains(negativeIndex))
		}
	}
}

func TestNewLeaveOneOutShrink(t *testing.T) {
	trainSet, testSet := newSamplerSplit(t, 10, 20)
	// each user has 10 unseen items, requesting 100 shrinks to the pool size
	groups := NewLeaveOneOut(testSet, trainSet, 100, 42)
	for _, group := range groups {
		assert.Len(t, group.Items, 11)
	}
}

func TestNewLeaveOneOutDeterministic(t *testing.T) {
	trainSet, testSet := newSamplerSplit(t, 10, 40)
	first := NewLeaveOneOut(testSet, trainSet, 10, 42)
	second := NewLeaveOneOut(testSet, trainSet, 10, 42)
	assert.Equal(t, first, second)
	// a different seed samples different negatives
	other := NewLeaveOneOut(testSet, trainSet, 10, 43)
	assert.NotEqual(t, first, other)
}
