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
	"bufio"
	"os"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
)

// Dataset holds implicit feedback between users and items. Users and items
// are mapped to dense indices by shared dictionaries. Explicit ratings and
// timestamps are kept as columns parallel to the feedback pairs: ratings are
// treated as binary positive signals, timestamps drive the chronological
// split.
type Dataset struct {
	UserDict *Dict
	ItemDict *Dict
	// feedback columns
	FeedbackUsers []int32
	FeedbackItems []int32
	Ratings       []float32
	Timestamps    []int64
	// inverted indices
	UserFeedback [][]int32
	ItemFeedback [][]int32
}

// NewDataset creates an empty dataset.
func NewDataset() *Dataset {
	dataset := new(Dataset)
	dataset.UserDict = NewDict()
	dataset.ItemDict = NewDict()
	dataset.UserFeedback = make([][]int32, 0)
	dataset.ItemFeedback = make([][]int32, 0)
	return dataset
}

// newSharedDataset creates an empty dataset sharing dictionaries with its
// parent, sized for the parent's users and items. Used by splitters so that
// dense indices stay comparable between partitions.
func newSharedDataset(parent *Dataset) *Dataset {
	dataset := new(Dataset)
	dataset.UserDict = parent.UserDict
	dataset.ItemDict = parent.ItemDict
	dataset.UserFeedback = make([][]int32, parent.CountUsers())
	for i := range dataset.UserFeedback {
		dataset.UserFeedback[i] = make([]int32, 0)
	}
	dataset.ItemFeedback = make([][]int32, parent.CountItems())
	for i := range dataset.ItemFeedback {
		dataset.ItemFeedback[i] = make([]int32, 0)
	}
	return dataset
}

// AddFeedback appends an interaction record.
func (dataset *Dataset) AddFeedback(userId, itemId string, rating float32, timestamp int64) {
	userIndex := dataset.UserDict.Add(userId)
	itemIndex := dataset.ItemDict.Add(itemId)
	dataset.addIndexedFeedback(userIndex, itemIndex, rating, timestamp)
}

func (dataset *Dataset) addIndexedFeedback(userIndex, itemIndex int32, rating float32, timestamp int64) {
	dataset.FeedbackUsers = append(dataset.FeedbackUsers, userIndex)
	dataset.FeedbackItems = append(dataset.FeedbackItems, itemIndex)
	dataset.Ratings = append(dataset.Ratings, rating)
	dataset.Timestamps = append(dataset.Timestamps, timestamp)
	for int(userIndex) >= len(dataset.UserFeedback) {
		dataset.UserFeedback = append(dataset.UserFeedback, make([]int32, 0))
	}
	dataset.UserFeedback[userIndex] = append(dataset.UserFeedback[userIndex], itemIndex)
	for int(itemIndex) >= len(dataset.ItemFeedback) {
		dataset.ItemFeedback = append(dataset.ItemFeedback, make([]int32, 0))
	}
	dataset.ItemFeedback[itemIndex] = append(dataset.ItemFeedback[itemIndex], userIndex)
}

// Count returns the number of interaction records.
func (dataset *Dataset) Count() int {
	if len(dataset.FeedbackUsers) != len(dataset.FeedbackItems) {
		panic("dataset: feedback columns have different lengths")
	}
	return len(dataset.FeedbackUsers)
}

// CountUsers returns the number of users.
func (dataset *Dataset) CountUsers() int {
	return int(dataset.UserDict.Count())
}

// CountItems returns the number of items.
func (dataset *Dataset) CountItems() int {
	return int(dataset.ItemDict.Count())
}

// GetIndex gets the i-th record by <user index, item index>.
func (dataset *Dataset) GetIndex(i int) (int32, int32) {
	return dataset.FeedbackUsers[i], dataset.FeedbackItems[i]
}

// UserFeedbackSets converts per-user feedback lists to sets.
func (dataset *Dataset) UserFeedbackSets() []mapset.Set[int32] {
	sets := make([]mapset.Set[int32], dataset.CountUsers())
	for userIndex := range sets {
		sets[userIndex] = mapset.NewSet[int32]()
		if userIndex < len(dataset.UserFeedback) {
			for _, itemIndex := range dataset.UserFeedback[userIndex] {
				sets[userIndex].Add(itemIndex)
			}
		}
	}
	return sets
}

// LoadDataFromCSV loads a dataset from a CSV file. Each line is:
//
//	<userId> <sep> <itemId> <sep> <rating> <sep> <timestamp>
//
// For example, the `u.data` from MovieLens 100K is:
//
//	196\t242\t3\t881250949
//	186\t302\t3\t891717742
//	22\t377\t1\t878887116
//
// Malformed records fail fast with a descriptive error.
func LoadDataFromCSV(fileName, sep string, hasHeader bool) (*Dataset, error) {
	dataset := NewDataset()
	// Open file
	file, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	// Read CSV file
	lineNumber := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		lineNumber++
		// Ignore header
		if hasHeader {
			hasHeader = false
			continue
		}
		// Ignore empty line
		if len(strings.TrimSpace(line)) == 0 {
			continue
		}
		fields := strings.Split(line, sep)
		if len(fields) < 4 {
			return nil, errors.Errorf("%s:%d: expect 4 fields <user,item,rating,timestamp>, got %d",
				fileName, lineNumber, len(fields))
		}
		rating, err := strconv.ParseFloat(fields[2], 32)
		if err != nil {
			return nil, errors.Annotatef(err, "%s:%d: malformed rating %q", fileName, lineNumber, fields[2])
		}
		timestamp, err := strconv.ParseInt(strings.TrimSpace(fields[3]), 10, 64)
		if err != nil {
			return nil, errors.Annotatef(err, "%s:%d: malformed timestamp %q", fileName, lineNumber, fields[3])
		}
		dataset.AddFeedback(fields[0], fields[1], float32(rating), timestamp)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	return dataset, nil
}
