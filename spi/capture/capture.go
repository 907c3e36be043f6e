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

package capture

import (
	"context"

	"github.com/noctarius/cdc-relay/spi/changeevent"
	"github.com/noctarius/cdc-relay/spi/config"
	"github.com/noctarius/cdc-relay/spi/statestorage"
	"github.com/noctarius/cdc-relay/spi/systemcatalog"
)

type Provider = func(config *config.Config) (Source, error)

// Handler receives the raw events of a Source. Events of
// the same source partition are delivered in order and
// never concurrently.
type Handler interface {
	OnEvent(
		ctx context.Context, event *changeevent.ChangeEvent,
	) error
	// OnFailure is called once when the source cannot
	// continue capturing. The source is stopped afterward.
	OnFailure(
		err error,
	)
}

// Source is the upstream change-capture collaborator.
// Resume positions are handed over on start; the source
// skips everything at or before the position of its
// partition.
type Source interface {
	Start(
		ctx context.Context, tables []systemcatalog.TableIdentifier,
		positions map[string]*statestorage.Position, handler Handler,
	) error
	Stop() error
	IsRunning() bool
}

type HandlerFuncs struct {
	OnEventFunc   func(ctx context.Context, event *changeevent.ChangeEvent) error
	OnFailureFunc func(err error)
}

func (h HandlerFuncs) OnEvent(
	ctx context.Context, event *changeevent.ChangeEvent,
) error {

	if h.OnEventFunc == nil {
		return nil
	}
	return h.OnEventFunc(ctx, event)
}

func (h HandlerFuncs) OnFailure(
	err error,
) {

	if h.OnFailureFunc != nil {
		h.OnFailureFunc(err)
	}
}
