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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParams(t *testing.T) {
	p := Params{
		NFactors:    16,
		Lr:          0.1,
		RandomState: 42,
		Layers:      []int{32, 16, 8},
	}
	assert.Equal(t, 16, p.GetInt(NFactors, 8))
	assert.Equal(t, 8, p.GetInt(NEpochs, 8))
	assert.Equal(t, float32(0.1), p.GetFloat32(Lr, 0.05))
	assert.Equal(t, int64(42), p.GetInt64(RandomState, 0))
	assert.Equal(t, []int{32, 16, 8}, p.GetIntSlice(Layers, nil))
	// type mismatch falls back to the default
	assert.Equal(t, 8, Params{NFactors: "a lot"}.GetInt(NFactors, 8))
}

func TestParamsCopy(t *testing.T) {
	p := Params{NFactors: 16}
	q := p.Copy()
	q[NFactors] = 32
	assert.Equal(t, 16, p.GetInt(NFactors, 0))
	assert.Equal(t, 32, q.GetInt(NFactors, 0))
}

func TestParamsOverwrite(t *testing.T) {
	p := Params{NFactors: 16, Lr: 0.1}
	merged := p.Overwrite(Params{NFactors: 32, NEpochs: 5})
	assert.Equal(t, 32, merged.GetInt(NFactors, 0))
	assert.Equal(t, 5, merged.GetInt(NEpochs, 0))
	assert.Equal(t, float32(0.1), merged.GetFloat32(Lr, 0))
	// the receiver is unchanged
	assert.Equal(t, 16, p.GetInt(NFactors, 0))
}

func TestParamsGridFill(t *testing.T) {
	grid := ParamsGrid{NFactors: []interface{}{8, 16}}
	grid.Fill(ParamsGrid{NFactors: []interface{}{32}, Lr: []interface{}{0.1}})
	assert.Equal(t, []interface{}{8, 16}, grid[NFactors])
	assert.Equal(t, []interface{}{0.1}, grid[Lr])
	assert.Equal(t, 2, grid.Len())
}
