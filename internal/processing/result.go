/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements. See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License. You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package processing

import (
	"fmt"

	"github.com/noctarius/cdc-relay/spi/changeevent"
)

const (
	StageNormalize = "normalize"
	StageFilter    = "filter"
	StagePublish   = "publish"
)

// ProcessingError reports an event which wasn't delivered.
// Such an event isn't checkpointed and is captured again
// after a restart.
type ProcessingError struct {
	Stage string
	Event *changeevent.ChangeEvent
	Cause error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("failed to %s event %s: %s", e.Stage, e.Event, e.Cause)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

type BatchResult struct {
	SuccessCount   int
	FailureCount   int
	TotalProcessed int
	Failures       []*ProcessingError
}

// SuccessRate is the share of successfully processed events,
// zero for an empty batch.
func (b BatchResult) SuccessRate() float64 {
	if b.TotalProcessed == 0 {
		return 0
	}
	return float64(b.SuccessCount) / float64(b.TotalProcessed)
}
