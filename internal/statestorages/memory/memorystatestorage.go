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

package memory

import (
	"github.com/go-errors/errors"
	spiconfig "github.com/noctarius/cdc-relay/spi/config"
	"github.com/noctarius/cdc-relay/spi/statestorage"
	"github.com/puzpuzpuz/xsync/v3"
)

func init() {
	statestorage.RegisterStateStorage(spiconfig.MemoryStorage, func(_ *spiconfig.Config) (statestorage.Storage, error) {
		return NewMemoryStateStorage(), nil
	})
}

// memoryStateStorage is a process-local Storage, positions
// do not survive a restart
type memoryStateStorage struct {
	positions *xsync.MapOf[string, *statestorage.Position]
}

func NewMemoryStateStorage() statestorage.Storage {
	return &memoryStateStorage{
		positions: xsync.NewMapOf[string, *statestorage.Position](),
	}
}

func (m *memoryStateStorage) Start() error {
	return nil
}

func (m *memoryStateStorage) Stop() error {
	return nil
}

func (m *memoryStateStorage) Save(
	position *statestorage.Position,
) error {

	if position == nil {
		return errors.Errorf("position must not be nil")
	}
	m.positions.Store(position.SourcePartition(), position)
	return nil
}

func (m *memoryStateStorage) Load(
	sourcePartition string,
) (*statestorage.Position, bool, error) {

	position, present := m.positions.Load(sourcePartition)
	return position, present, nil
}

func (m *memoryStateStorage) LoadAll() (map[string]*statestorage.Position, error) {
	positions := make(map[string]*statestorage.Position, m.positions.Size())
	m.positions.Range(func(key string, value *statestorage.Position) bool {
		positions[key] = value
		return true
	})
	return positions, nil
}

func (m *memoryStateStorage) Delete(
	sourcePartition string,
) error {

	m.positions.Delete(sourcePartition)
	return nil
}
