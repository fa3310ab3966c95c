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
	"fmt"

	"github.com/chewxy/math32"
	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"

	"github.com/gorse-io/neucf/base"
	"github.com/gorse-io/neucf/base/log"
	"github.com/gorse-io/neucf/common/parallel"
	"github.com/gorse-io/neucf/dataset"
)

func fmtHR(topK int) string {
	return fmt.Sprintf("HR@%d", topK)
}

func fmtNDCG(topK int) string {
	return fmt.Sprintf("NDCG@%d", topK)
}

/* Evaluate Item Ranking */

// Metric is used by Evaluate to score a ranked list against the target set.
type Metric func(targetSet mapset.Set[int32], rankList []int32) float32

// NDCG means Normalized Discounted Cumulative Gain.
func NDCG(targetSet mapset.Set[int32], rankList []int32) float32 {
	if targetSet.Cardinality() == 0 {
		return 0
	}
	// IDCG
	idcg := float32(0)
	for i := 0; i < targetSet.Cardinality() && i < len(rankList); i++ {
		idcg += 1.0 / math32.Log2(float32(i)+2.0)
	}
	// DCG
	dcg := float32(0)
	for i, itemId := range rankList {
		if targetSet.Contains(itemId) {
			dcg += 1.0 / math32.Log2(float32(i)+2.0)
		}
	}
	return dcg / idcg
}

// Precision is the fraction of recommended items that are relevant.
func Precision(targetSet mapset.Set[int32], rankList []int32) float32 {
	hit := float32(0)
	for _, itemId := range rankList {
		if targetSet.Contains(itemId) {
			hit++
		}
	}
	return hit / float32(len(rankList))
}

// Recall is the fraction of relevant items that are recommended.
func Recall(targetSet mapset.Set[int32], rankList []int32) float32 {
	hit := 0
	for _, itemId := range rankList {
		if targetSet.Contains(itemId) {
			hit++
		}
	}
	return float32(hit) / float32(targetSet.Cardinality())
}

// HR means Hit Ratio: whether at least one relevant item is recommended.
func HR(targetSet mapset.Set[int32], rankList []int32) float32 {
	for _, itemId := range rankList {
		if targetSet.Contains(itemId) {
			return 1
		}
	}
	return 0
}

// MAP means Mean Average Precision.
func MAP(targetSet mapset.Set[int32], rankList []int32) float32 {
	sumPrecision := float32(0)
	hit := 0
	for i, itemId := range rankList {
		if targetSet.Contains(itemId) {
			hit++
			sumPrecision += float32(hit) / float32(i+1)
		}
	}
	if targetSet.Cardinality() == 0 {
		return 0
	}
	return sumPrecision / float32(targetSet.Cardinality())
}

// MRR means Mean Reciprocal Rank.
//
// The mean reciprocal rank is a statistic measure for evaluating any process
// that produces a list of possible responses to a sample of queries, ordered
// by probability of correctness. The reciprocal rank of a query response is
// the multiplicative inverse of the rank of the first correct answer.
func MRR(targetSet mapset.Set[int32], rankList []int32) float32 {
	for i, itemId := range rankList {
		if targetSet.Contains(itemId) {
			return 1 / float32(i+1)
		}
	}
	return 0
}

// Evaluate the model on full-catalog item ranking. For every user with test
// feedback, candidates are all items except the user's train positives. The
// user's top-K ranked candidates are scored by each metric and results are
// averaged over users.
func Evaluate(estimator Model, testSet, trainSet *dataset.Dataset, topK, nJobs int, scorers ...Metric) []float32 {
	testUsers := make([]int32, 0, testSet.CountUsers())
	for userIndex := 0; userIndex < len(testSet.UserFeedback); userIndex++ {
		if len(testSet.UserFeedback[userIndex]) > 0 {
			testUsers = append(testUsers, int32(userIndex))
		}
	}
	if len(testUsers) == 0 {
		return make([]float32, len(scorers))
	}
	partSum := make([][]float32, nJobs)
	for i := range partSum {
		partSum[i] = make([]float32, len(scorers))
	}
	partCount := make([]int, nJobs)
	trainSets := trainSet.UserFeedbackSets()
	numItems := int32(trainSet.CountItems())
	err := parallel.Parallel(len(testUsers), nJobs, func(workerId, jobId int) error {
		userIndex := testUsers[jobId]
		// target set
		targetSet := mapset.NewThreadUnsafeSet[int32]()
		for _, itemIndex := range testSet.UserFeedback[userIndex] {
			targetSet.Add(itemIndex)
		}
		// full catalog minus train positives
		candidates := make([]int32, 0, numItems)
		for itemIndex := int32(0); itemIndex < numItems; itemIndex++ {
			if !trainSets[userIndex].Contains(itemIndex) {
				candidates = append(candidates, itemIndex)
			}
		}
		rankList, _ := Rank(estimator, userIndex, candidates, topK)
		for i, scorer := range scorers {
			partSum[workerId][i] += scorer(targetSet, rankList)
		}
		partCount[workerId]++
		return nil
	})
	if err != nil {
		log.Logger().Error("failed to evaluate", zap.Error(err))
		return make([]float32, len(scorers))
	}
	results := make([]float32, len(scorers))
	count := 0
	for workerId := 0; workerId < nJobs; workerId++ {
		count += partCount[workerId]
		for i := range results {
			results[i] += partSum[workerId][i]
		}
	}
	for i := range results {
		results[i] /= float32(count)
	}
	return results
}

// Rank scores candidate items for a user and returns the top N items with
// their scores in decreasing order.
func Rank(model Model, userIndex int32, candidates []int32, topN int) ([]int32, []float32) {
	topItems := base.NewTopKFilter(topN)
	for _, itemIndex := range candidates {
		topItems.Push(itemIndex, model.InternalPredict(userIndex, itemIndex))
	}
	return topItems.PopAll()
}

/* Evaluate Leave-One-Out */

// EvaluateLeaveOneOut evaluates a model on leave-one-out test groups. For
// each group the positive item (Items[0]) is ranked against the sampled
// negatives: its rank is the count of items scoring greater than or equal to
// the positive's score, the positive itself included, so tied negatives push
// the positive down. A group contributes to HR if the rank is within topK and
// contributes 1/log2(rank+1) to NDCG. Results are averaged over groups.
func EvaluateLeaveOneOut(estimator Model, groups []dataset.TestGroup, topK, nJobs int) Score {
	if len(groups) == 0 {
		return Score{}
	}
	partHR := make([]float32, nJobs)
	partNDCG := make([]float32, nJobs)
	err := parallel.Parallel(len(groups), nJobs, func(workerId, jobId int) error {
		group := groups[jobId]
		positiveScore := estimator.InternalPredict(group.UserIndex, group.Items[0])
		rank := 0
		for _, itemIndex := range group.Items {
			if estimator.InternalPredict(group.UserIndex, itemIndex) >= positiveScore {
				rank++
			}
		}
		if rank <= topK {
			partHR[workerId]++
			partNDCG[workerId] += 1 / math32.Log2(float32(rank)+1)
		}
		return nil
	})
	if err != nil {
		log.Logger().Error("failed to evaluate", zap.Error(err))
		return Score{}
	}
	var score Score
	for workerId := 0; workerId < nJobs; workerId++ {
		score.HR += partHR[workerId]
		score.NDCG += partNDCG[workerId]
	}
	score.HR /= float32(len(groups))
	score.NDCG /= float32(len(groups))
	return score
}

/* Predictions */

// Prediction is one scored user-item pair.
type Prediction struct {
	UserId string
	ItemId string
	Score  float32
}

// PredictAll scores every test interaction of a dataset by sparse ids.
// Predictions keep the dataset's interaction order.
func PredictAll(estimator Model, testSet *dataset.Dataset, nJobs int) []Prediction {
	predictions := make([]Prediction, testSet.Count())
	_ = parallel.BatchParallel(testSet.Count(), nJobs, 128, func(workerId, beginJobId, endJobId int) error {
		for position := beginJobId; position < endJobId; position++ {
			userIndex, itemIndex := testSet.GetIndex(position)
			userId, _ := testSet.UserDict.String(userIndex)
			itemId, _ := testSet.ItemDict.String(itemIndex)
			predictions[position] = Prediction{
				UserId: userId,
				ItemId: itemId,
				Score:  estimator.InternalPredict(userIndex, itemIndex),
			}
		}
		return nil
	})
	return predictions
}
