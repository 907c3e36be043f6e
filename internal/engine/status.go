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

package engine

import (
	stderrors "errors"
	"time"

	"github.com/noctarius/cdc-relay/spi/statestorage"
)

var ErrIllegalState = stderrors.New("illegal engine state")

type State string

const (
	Stopped  State = "STOPPED"
	Starting State = "STARTING"
	Running  State = "RUNNING"
	Stopping State = "STOPPING"
	Failed   State = "FAILED"
)

type StopReason string

const (
	GracefulShutdown    StopReason = "GRACEFUL_SHUTDOWN"
	ConfigurationChange StopReason = "CONFIGURATION_CHANGE"
	ErrorStop           StopReason = "ERROR"
	ApplicationShutdown StopReason = "APPLICATION_SHUTDOWN"
	ManualStop          StopReason = "MANUAL_STOP"
)

// Status is an immutable snapshot of the engine state. It is
// only ever mutated by the engine itself, readers receive
// copies.
type Status struct {
	State           State                  `json:"state"`
	RunId           string                 `json:"runId,omitempty"`
	StartedAt       *time.Time             `json:"startedAt,omitempty"`
	StoppedAt       *time.Time             `json:"stoppedAt,omitempty"`
	EventsCaptured  uint64                 `json:"eventsCaptured"`
	CurrentPosition *statestorage.Position `json:"currentPosition,omitempty"`
	ErrorMessage    string                 `json:"errorMessage,omitempty"`
}

func (s Status) clone() Status {
	if s.StartedAt != nil {
		startedAt := *s.StartedAt
		s.StartedAt = &startedAt
	}
	if s.StoppedAt != nil {
		stoppedAt := *s.StoppedAt
		s.StoppedAt = &stoppedAt
	}
	return s
}
