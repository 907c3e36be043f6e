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

package pebble

import (
	stderrors "errors"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/go-errors/errors"
	"github.com/noctarius/cdc-relay/internal/logging"
	spiconfig "github.com/noctarius/cdc-relay/spi/config"
	"github.com/noctarius/cdc-relay/spi/statestorage"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	prefixOffset = "offset/"
	defaultPath  = "/tmp/cdc-relay.pebble"
)

func init() {
	statestorage.RegisterStateStorage(spiconfig.PebbleStorage, newPebbleStateStorage)
}

// record is the msgpack encoded value stored per source partition
type record struct {
	Partition string    `msgpack:"partition"`
	Offset    []byte    `msgpack:"offset"`
	SavedAt   time.Time `msgpack:"saved_at"`
}

// pebbleStateStorage stores one key per source partition
// (offset/<partition>) in an embedded pebble database. Every
// write is synced before returning.
type pebbleStateStorage struct {
	path   string
	db     *pebble.DB
	logger *logging.Logger
}

func newPebbleStateStorage(
	config *spiconfig.Config,
) (statestorage.Storage, error) {

	path := spiconfig.GetOrDefault(config, spiconfig.PropertyPebbleStateStoragePath, defaultPath)
	return NewPebbleStateStorage(path)
}

func NewPebbleStateStorage(
	path string,
) (statestorage.Storage, error) {

	logger, err := logging.NewLogger("PebbleStateStorage")
	if err != nil {
		return nil, err
	}

	return &pebbleStateStorage{
		path:   path,
		logger: logger,
	}, nil
}

func (p *pebbleStateStorage) Start() error {
	p.logger.Infof("Starting PebbleStateStorage at %s", p.path)
	db, err := pebble.Open(p.path, &pebble.Options{})
	if err != nil {
		return errors.WrapPrefix(err, "failed to open offset database at "+p.path, 0)
	}
	p.db = db
	return nil
}

func (p *pebbleStateStorage) Stop() error {
	p.logger.Infof("Stopping PebbleStateStorage at %s", p.path)
	if p.db == nil {
		return nil
	}
	db := p.db
	p.db = nil
	if err := db.Close(); err != nil {
		return errors.Wrap(err, 0)
	}
	return nil
}

func (p *pebbleStateStorage) Save(
	position *statestorage.Position,
) error {

	if err := p.ensureOpen(); err != nil {
		return err
	}

	offset, err := position.MarshalBinary()
	if err != nil {
		return err
	}

	value, err := msgpack.Marshal(&record{
		Partition: position.SourcePartition(),
		Offset:    offset,
		SavedAt:   time.Now().UTC(),
	})
	if err != nil {
		return errors.Wrap(err, 0)
	}

	if err := p.db.Set(offsetKey(position.SourcePartition()), value, pebble.Sync); err != nil {
		return errors.Wrap(err, 0)
	}
	return nil
}

func (p *pebbleStateStorage) Load(
	sourcePartition string,
) (*statestorage.Position, bool, error) {

	if err := p.ensureOpen(); err != nil {
		return nil, false, err
	}

	value, closer, err := p.db.Get(offsetKey(sourcePartition))
	if err != nil {
		if stderrors.Is(err, pebble.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, 0)
	}
	defer closer.Close()

	position, err := decodeRecord(value)
	if err != nil {
		return nil, false, err
	}
	return position, true, nil
}

func (p *pebbleStateStorage) LoadAll() (map[string]*statestorage.Position, error) {
	if err := p.ensureOpen(); err != nil {
		return nil, err
	}

	prefix := []byte(prefixOffset)
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	defer iter.Close()

	positions := make(map[string]*statestorage.Position)
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		value, err := iter.ValueAndErr()
		if err != nil {
			return nil, errors.Wrap(err, 0)
		}
		position, err := decodeRecord(value)
		if err != nil {
			return nil, err
		}
		positions[position.SourcePartition()] = position
	}

	if err := iter.Error(); err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return positions, nil
}

func (p *pebbleStateStorage) Delete(
	sourcePartition string,
) error {

	if err := p.ensureOpen(); err != nil {
		return err
	}
	if err := p.db.Delete(offsetKey(sourcePartition), pebble.Sync); err != nil {
		return errors.Wrap(err, 0)
	}
	return nil
}

func (p *pebbleStateStorage) ensureOpen() error {
	if p.db == nil {
		return errors.Errorf("PebbleStateStorage at %s isn't started", p.path)
	}
	return nil
}

func decodeRecord(
	value []byte,
) (*statestorage.Position, error) {

	r := record{}
	if err := msgpack.Unmarshal(value, &r); err != nil {
		return nil, errors.Wrap(err, 0)
	}

	position := &statestorage.Position{}
	if err := position.UnmarshalBinary(r.Offset); err != nil {
		return nil, err
	}
	return position, nil
}

func offsetKey(
	sourcePartition string,
) []byte {

	return []byte(prefixOffset + sourcePartition)
}

func prefixUpperBound(
	prefix []byte,
) []byte {

	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}
	return nil
}
