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
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/gorse-io/neucf/base"
)

// TrainEpoch is one epoch of shuffled pointwise training triples. Labels are
// 1 for observed positives and 0 for sampled negatives.
type TrainEpoch struct {
	Users  []int32
	Items  []int32
	Labels []float32
}

// Count returns the number of triples in the epoch.
func (epoch *TrainEpoch) Count() int {
	return len(epoch.Users)
}

// TrainSampler pairs every positive interaction of the train set with
// uniformly sampled negatives. Negatives exclude the user's positives in both
// the train and the test set, and never repeat for the same positive within
// an epoch. If a user's unseen-item pool is smaller than the requested count,
// the sample shrinks to the pool size. Sampling is driven by a seeded
// generator: the same seed yields the same epochs.
type TrainSampler struct {
	trainSet   *Dataset
	exclude    []mapset.Set[int32]
	nNegatives int
	rng        base.RandomGenerator
}

// NewTrainSampler creates a TrainSampler over positives of the train set.
func NewTrainSampler(trainSet, testSet *Dataset, nNegatives int, seed int64) *TrainSampler {
	exclude := trainSet.UserFeedbackSets()
	if testSet != nil {
		for userIndex, items := range testSet.UserFeedback {
			if userIndex < len(exclude) {
				for _, itemIndex := range items {
					exclude[userIndex].Add(itemIndex)
				}
			}
		}
	}
	return &TrainSampler{
		trainSet:   trainSet,
		exclude:    exclude,
		nNegatives: nNegatives,
		rng:        base.NewRandomGenerator(seed),
	}
}

// SampleEpoch generates a shuffled training epoch.
func (sampler *TrainSampler) SampleEpoch() *TrainEpoch {
	trainSet := sampler.trainSet
	numItems := int32(trainSet.CountItems())
	epoch := &TrainEpoch{
		Users:  make([]int32, 0, trainSet.Count()*(sampler.nNegatives+1)),
		Items:  make([]int32, 0, trainSet.Count()*(sampler.nNegatives+1)),
		Labels: make([]float32, 0, trainSet.Count()*(sampler.nNegatives+1)),
	}
	for position := 0; position < trainSet.Count(); position++ {
		userIndex, itemIndex := trainSet.GetIndex(position)
		epoch.Users = append(epoch.Users, userIndex)
		epoch.Items = append(epoch.Items, itemIndex)
		epoch.Labels = append(epoch.Labels, 1)
		negatives := sampler.rng.SampleInt32(0, numItems, sampler.nNegatives, sampler.exclude[userIndex])
		for _, negativeIndex := range negatives {
			epoch.Users = append(epoch.Users, userIndex)
			epoch.Items = append(epoch.Items, negativeIndex)
			epoch.Labels = append(epoch.Labels, 0)
		}
	}
	sampler.rng.Shuffle(epoch.Count(), func(i, j int) {
		epoch.Users[i], epoch.Users[j] = epoch.Users[j], epoch.Users[i]
		epoch.Items[i], epoch.Items[j] = epoch.Items[j], epoch.Items[i]
		epoch.Labels[i], epoch.Labels[j] = epoch.Labels[j], epoch.Labels[i]
	})
	return epoch
}

// TestGroup is a leave-one-out evaluation group: one positive test
// interaction followed by sampled negatives. Items[0] is always the positive.
type TestGroup struct {
	UserIndex int32
	Items     []int32
}

// NewLeaveOneOut builds one TestGroup per positive test interaction. For each
// group, numNegatives items the user never interacted with (in train or test)
// are sampled once with the given seed and then frozen, so evaluation results
// are reproducible across runs. Groups follow the input order of the test
// set.
func NewLeaveOneOut(testSet, trainSet *Dataset, numNegatives int, seed int64) []TestGroup {
	rng := base.NewRandomGenerator(seed)
	numItems := int32(trainSet.CountItems())
	excludeTrain := trainSet.UserFeedbackSets()
	excludeTest := testSet.UserFeedbackSets()
	groups := make([]TestGroup, 0, testSet.Count())
	for position := 0; position < testSet.Count(); position++ {
		userIndex, itemIndex := testSet.GetIndex(position)
		items := make([]int32, 0, numNegatives+1)
		items = append(items, itemIndex)
		items = append(items, rng.SampleInt32(0, numItems, numNegatives,
			excludeTrain[userIndex], excludeTest[userIndex])...)
		groups = append(groups, TestGroup{UserIndex: userIndex, Items: items})
	}
	return groups
}
