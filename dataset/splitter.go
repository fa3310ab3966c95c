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
	"sort"

	"github.com/chewxy/math32"
	"github.com/juju/errors"
)

// SplitChrono partitions each user's interactions by timestamp: the earliest
// trainRatio fraction goes to the train set and the most recent remainder to
// the test set. The split is a deterministic function of timestamp ordering,
// ties are broken by input order. Guarantees:
//
//   - train and test are disjoint and reconstruct the original records exactly;
//   - a user with a single interaction is entirely assigned to train;
//   - a user with two or more interactions contributes at least one train and
//     at least one test record, so every test user is also a train user.
//
// Both partitions share the user and item dictionaries of the receiver.
func (dataset *Dataset) SplitChrono(trainRatio float32) (*Dataset, *Dataset, error) {
	if trainRatio <= 0 || trainRatio >= 1 {
		return nil, nil, errors.Errorf("train ratio must be in (0,1), got %v", trainRatio)
	}
	trainSet, testSet := newSharedDataset(dataset), newSharedDataset(dataset)
	// Group record positions by user.
	positions := make([][]int, dataset.CountUsers())
	for i, userIndex := range dataset.FeedbackUsers {
		positions[userIndex] = append(positions[userIndex], i)
	}
	for userIndex := range positions {
		records := positions[userIndex]
		if len(records) == 0 {
			continue
		}
		// Stable sort by timestamp keeps input order on ties.
		sort.SliceStable(records, func(i, j int) bool {
			return dataset.Timestamps[records[i]] < dataset.Timestamps[records[j]]
		})
		trainCount := int(math32.Ceil(trainRatio * float32(len(records))))
		if trainCount >= len(records) {
			trainCount = len(records) - 1
		}
		if trainCount < 1 {
			trainCount = 1
		}
		if len(records) == 1 {
			trainCount = 1
		}
		for i, position := range records {
			target := trainSet
			if i >= trainCount {
				target = testSet
			}
			target.addIndexedFeedback(
				dataset.FeedbackUsers[position],
				dataset.FeedbackItems[position],
				dataset.Ratings[position],
				dataset.Timestamps[position])
		}
	}
	return trainSet, testSet, nil
}
