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

package file

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"

	"github.com/docker/docker/pkg/ioutils"
	"github.com/go-errors/errors"
	"github.com/noctarius/cdc-relay/internal/logging"
	spiconfig "github.com/noctarius/cdc-relay/spi/config"
	"github.com/noctarius/cdc-relay/spi/statestorage"
	"github.com/noctarius/cdc-relay/spi/values"
)

const defaultPath = "/tmp/cdc-relay.offsets"

func init() {
	statestorage.RegisterStateStorage(spiconfig.FileStorage, newFileStateStorage)
}

// fileStateStorage keeps all positions in memory and writes
// the full set through to disk on every change. Every write
// goes to a temporary file which atomically replaces the
// previous one.
type fileStateStorage struct {
	path      string
	mutex     sync.Mutex
	logger    *logging.Logger
	positions map[string]*statestorage.Position
}

func newFileStateStorage(
	config *spiconfig.Config,
) (statestorage.Storage, error) {

	path := spiconfig.GetOrDefault(config, spiconfig.PropertyFileStateStoragePath, defaultPath)
	if path == "" {
		return nil, errors.Errorf("FileStateStorage needs a path to be configured")
	}
	return NewFileStateStorage(path)
}

func NewFileStateStorage(
	path string,
) (statestorage.Storage, error) {

	logger, err := logging.NewLogger("FileStateStorage")
	if err != nil {
		return nil, err
	}

	directory := filepath.Dir(path)
	fi, err := os.Stat(directory)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(directory, 0777); err != nil {
				return nil, errors.Wrap(err, 0)
			}
			if fi, err = os.Stat(directory); err != nil {
				return nil, errors.Wrap(err, 0)
			}
		} else {
			return nil, errors.Wrap(err, 0)
		}
	}

	if !fi.IsDir() {
		return nil, errors.Errorf(
			"path '%s' cannot be created since the parent-path '%s' is no directory", path, directory,
		)
	}

	fi, err = os.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.Wrap(err, 0)
		}
	}

	if fi != nil && fi.IsDir() {
		return nil, errors.Errorf("path '%s' exists already but is not a file", path)
	}

	return &fileStateStorage{
		path:      path,
		logger:    logger,
		positions: make(map[string]*statestorage.Position),
	}, nil
}

func (f *fileStateStorage) Start() error {
	f.logger.Infof("Starting FileStateStorage at %s", f.path)
	return f.load()
}

func (f *fileStateStorage) Stop() error {
	f.logger.Infof("Stopping FileStateStorage at %s", f.path)

	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.logger.Debugln("Last saved positions:")
	for name, position := range f.positions {
		f.logger.Debugf("  * %s: %s", name, position)
	}
	return f.store()
}

func (f *fileStateStorage) Save(
	position *statestorage.Position,
) error {

	if position == nil {
		return errors.Errorf("position must not be nil")
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	previous, present := f.positions[position.SourcePartition()]
	f.positions[position.SourcePartition()] = position
	if err := f.store(); err != nil {
		if present {
			f.positions[position.SourcePartition()] = previous
		} else {
			delete(f.positions, position.SourcePartition())
		}
		return err
	}
	return nil
}

func (f *fileStateStorage) Load(
	sourcePartition string,
) (*statestorage.Position, bool, error) {

	f.mutex.Lock()
	defer f.mutex.Unlock()

	position, present := f.positions[sourcePartition]
	return position, present, nil
}

func (f *fileStateStorage) LoadAll() (map[string]*statestorage.Position, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	positions := make(map[string]*statestorage.Position, len(f.positions))
	for sourcePartition, position := range f.positions {
		positions[sourcePartition] = position
	}
	return positions, nil
}

func (f *fileStateStorage) Delete(
	sourcePartition string,
) error {

	f.mutex.Lock()
	defer f.mutex.Unlock()

	previous, present := f.positions[sourcePartition]
	if !present {
		return nil
	}

	delete(f.positions, sourcePartition)
	if err := f.store(); err != nil {
		f.positions[sourcePartition] = previous
		return err
	}
	return nil
}

// store must be called while holding the mutex
func (f *fileStateStorage) store() error {
	data := make([]byte, 0, 256)
	data = binary.BigEndian.AppendUint32(data, uint32(len(f.positions)))
	for sourcePartition, position := range f.positions {
		data = values.AppendString(data, sourcePartition)

		positionBytes, err := position.MarshalBinary()
		if err != nil {
			return err
		}
		data = binary.BigEndian.AppendUint32(data, uint32(len(positionBytes)))
		data = append(data, positionBytes...)
	}

	writer, err := ioutils.NewAtomicFileWriter(f.path, 0777)
	if err != nil {
		return errors.Wrap(err, 0)
	}

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return errors.Wrap(err, 0)
	}
	if err := writer.Close(); err != nil {
		return errors.Wrap(err, 0)
	}
	return nil
}

func (f *fileStateStorage) load() error {
	f.logger.Infof("Loading FileStateStorage at %s", f.path)

	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.positions = make(map[string]*statestorage.Position)

	fi, err := os.Stat(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, 0)
	}

	if fi.IsDir() {
		return errors.Errorf("path '%s' exists already but is not a file", f.path)
	}

	if fi.Size() == 0 {
		return nil
	}

	buffer, err := os.ReadFile(f.path)
	if err != nil {
		return errors.Wrap(err, 0)
	}

	if len(buffer) < 4 {
		return errors.Errorf("offset file '%s' is corrupted", f.path)
	}
	numOfPositions := binary.BigEndian.Uint32(buffer[:4])
	buffer = buffer[4:]

	for i := uint32(0); i < numOfPositions; i++ {
		sourcePartition, remaining, err := values.ReadString(buffer)
		if err != nil {
			return err
		}
		if len(remaining) < 4 {
			return errors.Errorf("offset file '%s' is corrupted", f.path)
		}
		length := binary.BigEndian.Uint32(remaining[:4])
		remaining = remaining[4:]
		if uint32(len(remaining)) < length {
			return errors.Errorf("offset file '%s' is corrupted", f.path)
		}

		position := &statestorage.Position{}
		if err := position.UnmarshalBinary(remaining[:length]); err != nil {
			return err
		}
		f.positions[sourcePartition] = position
		buffer = remaining[length:]
	}
	return nil
}
