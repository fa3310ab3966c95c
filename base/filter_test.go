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

package base

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopKFilter(t *testing.T) {
	filter := NewTopKFilter(3)
	filter.Push(10, 1)
	filter.Push(20, 8)
	filter.Push(30, 5)
	filter.Push(40, 7)
	filter.Push(50, 0)
	items, weights := filter.PopAll()
	assert.Equal(t, []int32{20, 40, 30}, items)
	assert.Equal(t, []float32{8, 7, 5}, weights)
}

func TestTopKFilterTieBreak(t *testing.T) {
	// equal weights keep push order: the last pushed item is evicted first
	filter := NewTopKFilter(2)
	filter.Push(5, 0.5)
	filter.Push(3, 0.5)
	filter.Push(8, 0.5)
	items, weights := filter.PopAll()
	assert.Equal(t, []int32{5, 3}, items)
	assert.Equal(t, []float32{0.5, 0.5}, weights)
}

func TestTopKFilterFewerThanK(t *testing.T) {
	filter := NewTopKFilter(10)
	filter.Push(1, 1)
	filter.Push(2, 2)
	items, weights := filter.PopAll()
	assert.Equal(t, []int32{2, 1}, items)
	assert.Equal(t, []float32{2, 1}, weights)
}
