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
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-errors/errors"
	"github.com/goccy/go-json"
	"github.com/noctarius/cdc-relay/internal/eventfiltering"
	"github.com/noctarius/cdc-relay/internal/logging"
	"github.com/noctarius/cdc-relay/internal/notifications"
	"github.com/noctarius/cdc-relay/spi/changeevent"
	"github.com/noctarius/cdc-relay/spi/config"
	"github.com/noctarius/cdc-relay/spi/statestorage"
	"github.com/noctarius/cdc-relay/spi/systemcatalog"
	"github.com/noctarius/cdc-relay/spi/values"
	"github.com/puzpuzpuz/xsync/v3"
)

type Normalizer interface {
	Normalize(
		kind config.DatabaseKind, row changeevent.Row,
	) (*changeevent.RowData, error)
}

type Publisher interface {
	Publish(
		ctx context.Context, event *changeevent.CanonicalEvent,
	) error
}

// Pipeline runs normalize, publish and checkpoint for change
// events. Events of different source partitions may be
// processed concurrently, events of the same partition are
// serialized.
type Pipeline struct {
	kind         config.DatabaseKind
	normalizer   Normalizer
	publisher    Publisher
	stateStorage statestorage.Storage
	filter       eventfiltering.EventFilter
	dispatcher   *notifications.Dispatcher
	tables       *xsync.MapOf[systemcatalog.TableIdentifier, *systemcatalog.TableConfig]
	partitions   *xsync.MapOf[string, *sync.Mutex]
	positions    *xsync.MapOf[string, *statestorage.Position]
	processed    atomic.Uint64
	logger       *logging.Logger
}

func NewPipeline(
	kind config.DatabaseKind, normalizer Normalizer, publisher Publisher, stateStorage statestorage.Storage,
	filter eventfiltering.EventFilter, dispatcher *notifications.Dispatcher,
) (*Pipeline, error) {

	logger, err := logging.NewLogger("Pipeline")
	if err != nil {
		return nil, err
	}

	if filter == nil {
		if filter, err = eventfiltering.NewEventFilter(nil); err != nil {
			return nil, err
		}
	}

	return &Pipeline{
		kind:         kind,
		normalizer:   normalizer,
		publisher:    publisher,
		stateStorage: stateStorage,
		filter:       filter,
		dispatcher:   dispatcher,
		tables:       xsync.NewMapOf[systemcatalog.TableIdentifier, *systemcatalog.TableConfig](),
		partitions:   xsync.NewMapOf[string, *sync.Mutex](),
		positions:    xsync.NewMapOf[string, *statestorage.Position](),
		logger:       logger,
	}, nil
}

// SetTables replaces the table configurations used for
// column filtering and composite keys.
func (p *Pipeline) SetTables(
	tables []*systemcatalog.TableConfig,
) {

	known := make(map[systemcatalog.TableIdentifier]bool, len(tables))
	for _, table := range tables {
		known[table.Table()] = true
		p.tables.Store(table.Table(), table)
	}
	p.tables.Range(func(table systemcatalog.TableIdentifier, _ *systemcatalog.TableConfig) bool {
		if !known[table] {
			p.tables.Delete(table)
		}
		return true
	})
}

// LastPositions returns the position of the last published
// event per source partition.
func (p *Pipeline) LastPositions() map[string]*statestorage.Position {
	result := make(map[string]*statestorage.Position)
	p.positions.Range(func(partition string, position *statestorage.Position) bool {
		result[partition] = position
		return true
	})
	return result
}

func (p *Pipeline) EventsProcessed() uint64 {
	return p.processed.Load()
}

// Process delivers a single event. Normalization, filter and
// publish failures are returned as *ProcessingError and leave
// the checkpoint untouched. A failing checkpoint write after a
// successful publish is logged only, the event already being
// on the bus.
func (p *Pipeline) Process(
	ctx context.Context, event *changeevent.ChangeEvent,
) error {

	partition := event.Position().SourcePartition()
	lock, _ := p.partitions.LoadOrCompute(partition, func() *sync.Mutex {
		return &sync.Mutex{}
	})
	lock.Lock()
	defer lock.Unlock()

	p.processed.Add(1)

	canonical, err := p.canonicalize(event)
	if err != nil {
		return p.fail(StageNormalize, event, err)
	}

	accepted, filterName, err := p.filter.Evaluate(canonical)
	if err != nil {
		return p.fail(StageFilter, event, err)
	}
	if !accepted {
		p.logger.Debugf("Event %s dropped by filter '%s'", event, filterName)
		p.dispatcher.NotifyEventListeners(func(listener notifications.EventListener) error {
			return listener.OnEventFiltered(notifications.EventFiltered{Event: canonical, Filter: filterName})
		})
		p.checkpoint(event.Position())
		return nil
	}

	start := time.Now()
	if err := p.publisher.Publish(ctx, canonical); err != nil {
		return p.fail(StagePublish, event, err)
	}

	p.dispatcher.NotifyEventListeners(func(listener notifications.EventListener) error {
		return listener.OnEventPublished(notifications.EventPublished{
			Event:     canonical,
			Duration:  time.Since(start),
			Timestamp: time.Now(),
		})
	})
	p.checkpoint(event.Position())
	return nil
}

// ProcessBatch processes all events, continuing past failed
// ones, and reports the aggregated outcome.
func (p *Pipeline) ProcessBatch(
	ctx context.Context, events []*changeevent.ChangeEvent,
) BatchResult {

	result := BatchResult{
		Failures: make([]*ProcessingError, 0),
	}
	for _, event := range events {
		result.TotalProcessed++
		if err := p.Process(ctx, event); err != nil {
			result.FailureCount++
			var processingError *ProcessingError
			if stderrors.As(err, &processingError) {
				result.Failures = append(result.Failures, processingError)
			}
			continue
		}
		result.SuccessCount++
	}
	return result
}

func (p *Pipeline) canonicalize(
	event *changeevent.ChangeEvent,
) (*changeevent.CanonicalEvent, error) {

	tableConfig, _ := p.tables.Load(event.Table())

	var before, after *changeevent.RowData
	var err error
	if event.HasBefore() {
		if before, err = p.normalizer.Normalize(p.kind, filterColumns(tableConfig, event.Before())); err != nil {
			return nil, err
		}
	}
	if event.HasAfter() {
		if after, err = p.normalizer.Normalize(p.kind, filterColumns(tableConfig, event.After())); err != nil {
			return nil, err
		}
	}

	metadata, err := compositeKeyMetadata(tableConfig, event, before, after)
	if err != nil {
		return nil, err
	}
	return changeevent.NewCanonicalEvent(event, before, after, metadata), nil
}

// checkpoint stores the position unless the last stored one of
// the same partition is later. Equal positions, including those
// which can't be ordered, are stored again.
func (p *Pipeline) checkpoint(
	position *statestorage.Position,
) {

	partition := position.SourcePartition()
	if last, present := p.positions.Load(partition); present && position.IsBefore(last) {
		p.logger.Warnf("Skipping checkpoint %s, partition already at %s", position, last)
		return
	}
	p.positions.Store(partition, position)

	if err := p.stateStorage.Save(position); err != nil {
		p.logger.Warnf("Failed storing checkpoint %s: %+v", position, err)
		p.dispatcher.NotifyCheckpointListeners(func(listener notifications.CheckpointListener) error {
			return listener.OnCheckpointFailed(notifications.CheckpointFailed{Position: position, Err: err})
		})
	}
}

func (p *Pipeline) fail(
	stage string, event *changeevent.ChangeEvent, cause error,
) error {

	err := &ProcessingError{
		Stage: stage,
		Event: event,
		Cause: cause,
	}
	p.logger.Errorf("%s", err)
	p.dispatcher.NotifyEventListeners(func(listener notifications.EventListener) error {
		return listener.OnEventFailed(notifications.EventFailed{Event: event, Stage: stage, Err: cause})
	})
	return err
}

func filterColumns(
	tableConfig *systemcatalog.TableConfig, row changeevent.Row,
) changeevent.Row {

	if tableConfig == nil || tableConfig.IncludeMode() == systemcatalog.IncludeAll {
		return row
	}

	filtered := make(changeevent.Row, len(row))
	for column, value := range row {
		if tableConfig.IncludesColumn(column) {
			filtered[column] = value
		}
	}
	return filtered
}

func compositeKeyMetadata(
	tableConfig *systemcatalog.TableConfig, event *changeevent.ChangeEvent, before, after *changeevent.RowData,
) (map[string]string, error) {

	if tableConfig == nil || !tableConfig.HasCompositeKey() {
		return nil, nil
	}

	source := after
	if event.Operation() == changeevent.Delete {
		source = before
	}

	columns := tableConfig.CompositeKey()
	keyValues := make([]values.Value, 0, len(columns))
	for _, column := range columns {
		value, present := source.Get(column)
		if !present {
			return nil, errors.Errorf("composite key column '%s' is missing in %s", column, event)
		}
		keyValues = append(keyValues, value)
	}

	encodedValues, err := json.Marshal(keyValues)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}

	return map[string]string{
		changeevent.MetadataKeyColumns: strings.Join(columns, ","),
		changeevent.MetadataKeyValues:  string(encodedValues),
	}, nil
}
