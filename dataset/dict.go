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

// NotId is the dense index of an unknown user or item.
const NotId = int32(-1)

// Dict maps sparse string ids to dense int32 indices. Indices are assigned in
// insertion order.
type Dict struct {
	si map[string]int32
	is []string
}

// NewDict creates a Dict.
func NewDict() *Dict {
	return &Dict{
		si: make(map[string]int32),
		is: make([]string, 0),
	}
}

// Add inserts a string id if missing and returns its dense index.
func (d *Dict) Add(s string) int32 {
	if id, ok := d.si[s]; ok {
		return id
	}
	id := int32(len(d.is))
	d.si[s] = id
	d.is = append(d.is, s)
	return id
}

// Id returns the dense index of a string id, or NotId if unknown.
func (d *Dict) Id(s string) int32 {
	if id, ok := d.si[s]; ok {
		return id
	}
	return NotId
}

// String returns the string id of a dense index.
func (d *Dict) String(id int32) (string, bool) {
	if id < 0 || int(id) >= len(d.is) {
		return "", false
	}
	return d.is[id], true
}

// Equal reports whether two dictionaries hold the same ids in the same order,
// so dense indices are interchangeable between them.
func (d *Dict) Equal(other *Dict) bool {
	if d == other {
		return true
	}
	if other == nil || len(d.is) != len(other.is) {
		return false
	}
	for i := range d.is {
		if d.is[i] != other.is[i] {
			return false
		}
	}
	return true
}

// Count returns the number of ids in the dictionary.
func (d *Dict) Count() int32 {
	return int32(len(d.is))
}

// Strings returns all string ids in index order. The returned slice is shared
// with the dictionary and must not be modified.
func (d *Dict) Strings() []string {
	return d.is
}
