// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package adaptiveengine

// ParamRegistry maps parameter names to dense, stable ids. It is built once
// and never mutated afterward.
type ParamRegistry struct {
	nameToID map[string]ParamID
	idToName []string
}

// NewParamRegistry assigns ids 0..len(names)-1 in the given order.
func NewParamRegistry(names []string) *ParamRegistry {
	idToName := make([]string, len(names))
	copy(idToName, names)
	nameToID := make(map[string]ParamID, len(names))
	for i, name := range idToName {
		nameToID[name] = ParamID(i)
	}
	return &ParamRegistry{nameToID: nameToID, idToName: idToName}
}

// IDOf looks up the id for a name.
func (r *ParamRegistry) IDOf(name string) (ParamID, bool) {
	id, ok := r.nameToID[name]
	return id, ok
}

// NameOf looks up the name for an id.
func (r *ParamRegistry) NameOf(id ParamID) (string, bool) {
	if int(id) >= len(r.idToName) {
		return "", false
	}
	return r.idToName[id], true
}

// Len returns the number of registered parameters.
func (r *ParamRegistry) Len() int {
	return len(r.idToName)
}

// ToParamVec converts a name->value map into a dense vector in registry
// order, defaulting absent names to 0.0.
func (r *ParamRegistry) ToParamVec(values map[string]float64) ParamVec {
	vec := make(ParamVec, len(r.idToName))
	for i, name := range r.idToName {
		vec[i] = values[name]
	}
	return vec
}

// ToMap converts a dense vector back into a name->value map.
func (r *ParamRegistry) ToMap(vec ParamVec) map[string]float64 {
	out := make(map[string]float64, len(r.idToName))
	for i, name := range r.idToName {
		if i < len(vec) {
			out[name] = vec[i]
		}
	}
	return out
}
