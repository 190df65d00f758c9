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

package auditsink

import (
	"fmt"

	"github.com/novelbytelabs/adaptive-engine/pkg/adaptiveengine"
)

func commitKey(runID string, eventType adaptiveengine.EventType, proposalID uint64) string {
	return fmt.Sprintf("%s:%s:%d", runID, eventType, proposalID)
}

func commitKeyTimestamp(runID string, eventType adaptiveengine.EventType, timestampUS uint64) string {
	return fmt.Sprintf("%s:%s:ts:%d", runID, eventType, timestampUS)
}
