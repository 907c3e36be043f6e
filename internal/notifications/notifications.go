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

package notifications

import (
	"time"

	"github.com/noctarius/cdc-relay/spi/changeevent"
	"github.com/noctarius/cdc-relay/spi/statestorage"
	"github.com/noctarius/cdc-relay/spi/systemcatalog"
)

type EventPublished struct {
	Event     *changeevent.CanonicalEvent
	Duration  time.Duration
	Timestamp time.Time
}

type EventFailed struct {
	Event *changeevent.ChangeEvent
	Stage string
	Err   error
}

type EventFiltered struct {
	Event  *changeevent.CanonicalEvent
	Filter string
}

type CheckpointFailed struct {
	Position *statestorage.Position
	Err      error
}

type EngineStateChanged struct {
	Previous string
	Current  string
	Err      error
}

type ConfigurationChanged struct {
	Added   []systemcatalog.TableIdentifier
	Removed []systemcatalog.TableIdentifier
	Changed bool
}

// Listener is the marker for all notification listeners.
// A listener implements any combination of the specific
// listener interfaces below.
type Listener interface{}

type EventListener interface {
	OnEventPublished(
		notification EventPublished,
	) error
	OnEventFailed(
		notification EventFailed,
	) error
	OnEventFiltered(
		notification EventFiltered,
	) error
}

type CheckpointListener interface {
	OnCheckpointFailed(
		notification CheckpointFailed,
	) error
}

type EngineListener interface {
	OnEngineStateChanged(
		notification EngineStateChanged,
	) error
}

type ConfigurationListener interface {
	OnConfigurationChanged(
		notification ConfigurationChanged,
	) error
}
