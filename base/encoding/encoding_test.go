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

package encoding

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatrix(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	source := [][]float32{{1, 2, 3}, {4, 5, 6}}
	assert.NoError(t, WriteMatrix(buf, source))
	target := [][]float32{make([]float32, 3), make([]float32, 3)}
	assert.NoError(t, ReadMatrix(buf, target))
	assert.Equal(t, source, target)
}

func TestString(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, WriteString(buf, "neucf"))
	s, err := ReadString(buf)
	assert.NoError(t, err)
	assert.Equal(t, "neucf", s)
}

func TestGob(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	source := map[string]int{"a": 1, "b": 2}
	assert.NoError(t, WriteGob(buf, source))
	var target map[string]int
	assert.NoError(t, ReadGob(buf, &target))
	assert.Equal(t, source, target)
}

func TestReadStringTruncated(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, WriteString(buf, "neucf"))
	truncated := bytes.NewBuffer(buf.Bytes()[:4])
	_, err := ReadString(truncated)
	assert.Error(t, err)
}
