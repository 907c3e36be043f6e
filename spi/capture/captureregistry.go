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
	"sync"

	"github.com/go-errors/errors"
	"github.com/noctarius/cdc-relay/spi/config"
)

var captureRegistry *registry

func init() {
	captureRegistry = &registry{
		mutex:     sync.Mutex{},
		providers: make(map[config.CaptureType]Provider),
	}
}

type registry struct {
	mutex     sync.Mutex
	providers map[config.CaptureType]Provider
}

// RegisterSource registers a config.CaptureType to a
// Provider implementation which creates the Source
// when requested
func RegisterSource(
	name config.CaptureType, provider Provider,
) bool {

	captureRegistry.mutex.Lock()
	defer captureRegistry.mutex.Unlock()
	if _, present := captureRegistry.providers[name]; !present {
		captureRegistry.providers[name] = provider
		return true
	}
	return false
}

// NewSource instantiates a new instance of the requested
// Source when available, otherwise returns an error.
func NewSource(
	name config.CaptureType, config *config.Config,
) (Source, error) {

	captureRegistry.mutex.Lock()
	defer captureRegistry.mutex.Unlock()
	if p, present := captureRegistry.providers[name]; present {
		return p(config)
	}
	return nil, errors.Errorf("CaptureType '%s' doesn't exist", name)
}
