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

package statestorage

import (
	"github.com/noctarius/cdc-relay/spi/config"
)

// Provider creates a Storage from the given configuration
type Provider = func(config *config.Config) (Storage, error)

// Storage durably maps source partitions to their last saved
// Position. Implementations must be safe for concurrent use
// across partitions.
type Storage interface {
	Start() error
	Stop() error
	// Save stores the position under its source partition,
	// replacing any previously stored position
	Save(position *Position) error
	// Load returns the position stored for the source
	// partition and whether one was present
	Load(sourcePartition string) (position *Position, present bool, err error)
	LoadAll() (map[string]*Position, error)
	Delete(sourcePartition string) error
}
