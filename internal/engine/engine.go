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
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-errors/errors"
	"github.com/hashicorp/go-uuid"
	"github.com/noctarius/cdc-relay/internal/logging"
	"github.com/noctarius/cdc-relay/internal/notifications"
	"github.com/noctarius/cdc-relay/internal/waiting"
	"github.com/noctarius/cdc-relay/spi/capture"
	"github.com/noctarius/cdc-relay/spi/changeevent"
	"github.com/noctarius/cdc-relay/spi/config"
	"github.com/noctarius/cdc-relay/spi/statestorage"
	"github.com/noctarius/cdc-relay/spi/systemcatalog"
)

const defaultDrainTimeout = 30 * time.Second

type Pipeline interface {
	Process(
		ctx context.Context, event *changeevent.ChangeEvent,
	) error
	SetTables(
		tables []*systemcatalog.TableConfig,
	)
	LastPositions() map[string]*statestorage.Position
}

// Engine owns the capture lifecycle. Lifecycle operations are
// serialized, the status is only mutated by the engine and
// handed out as snapshots.
type Engine struct {
	operationMutex sync.Mutex
	statusMutex    sync.RWMutex
	status         Status

	source       capture.Source
	pipeline     Pipeline
	stateStorage statestorage.Storage
	notifier     LifecycleNotifier
	dispatcher   *notifications.Dispatcher
	drainTimeout time.Duration

	tables     []*systemcatalog.TableConfig
	partitions map[systemcatalog.TableIdentifier]string
	inflight   sync.WaitGroup
	cancel     context.CancelFunc
	logger     *logging.Logger
}

func NewEngineWithConfig(
	c *config.Config, source capture.Source, pipeline Pipeline, stateStorage statestorage.Storage,
	notifier LifecycleNotifier, dispatcher *notifications.Dispatcher,
) (*Engine, error) {

	drainTimeout := config.GetOrDefault(c, config.PropertyEngineDrainTimeout, defaultDrainTimeout)
	return NewEngine(source, pipeline, stateStorage, notifier, dispatcher, drainTimeout)
}

func NewEngine(
	source capture.Source, pipeline Pipeline, stateStorage statestorage.Storage,
	notifier LifecycleNotifier, dispatcher *notifications.Dispatcher, drainTimeout time.Duration,
) (*Engine, error) {

	logger, err := logging.NewLogger("CaptureEngine")
	if err != nil {
		return nil, err
	}

	if drainTimeout <= 0 {
		drainTimeout = defaultDrainTimeout
	}

	return &Engine{
		status:       Status{State: Stopped},
		source:       source,
		pipeline:     pipeline,
		stateStorage: stateStorage,
		notifier:     notifier,
		dispatcher:   dispatcher,
		drainTimeout: drainTimeout,
		tables:       make([]*systemcatalog.TableConfig, 0),
		partitions:   make(map[systemcatalog.TableIdentifier]string),
		logger:       logger,
	}, nil
}

// SetTables replaces the set of monitored tables. The new
// set is used on the next start.
func (e *Engine) SetTables(
	tables []*systemcatalog.TableConfig,
) {

	e.operationMutex.Lock()
	defer e.operationMutex.Unlock()

	e.tables = append(make([]*systemcatalog.TableConfig, 0, len(tables)), tables...)
	e.pipeline.SetTables(e.tables)
}

func (e *Engine) Tables() []systemcatalog.TableIdentifier {
	e.operationMutex.Lock()
	defer e.operationMutex.Unlock()
	return e.tableIdentifiers()
}

func (e *Engine) Status() Status {
	e.statusMutex.RLock()
	defer e.statusMutex.RUnlock()
	return e.status.clone()
}

func (e *Engine) IsRunning() bool {
	return e.Status().State == Running
}

// Start begins capturing from the stored positions. Starting
// an engine which is starting, running or stopping fails with
// ErrIllegalState. A failed engine can be started again.
func (e *Engine) Start(
	ctx context.Context,
) error {

	e.operationMutex.Lock()
	defer e.operationMutex.Unlock()

	previous := e.Status().State
	if previous != Stopped && previous != Failed {
		return errors.WrapPrefix(ErrIllegalState, fmt.Sprintf("cannot start engine in state %s", previous), 0)
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, 0)
	}

	runId, err := uuid.GenerateUUID()
	if err != nil {
		return errors.Wrap(err, 0)
	}

	e.transition(func(status *Status) {
		*status = Status{State: Starting, RunId: runId}
	})

	positions, err := e.stateStorage.LoadAll()
	if err != nil {
		return e.startFailed(errors.WrapPrefix(err, "failed loading stored positions", 0))
	}

	for partition, position := range positions {
		e.logger.Infof("Resuming partition '%s' after %s", partition, position)
	}

	// Capture outlives the start call, only the values of ctx are kept.
	captureCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := e.source.Start(captureCtx, e.tableIdentifiers(), positions, &engineHandler{engine: e}); err != nil {
		cancel()
		return e.startFailed(errors.WrapPrefix(err, "failed starting capture source", 0))
	}
	e.cancel = cancel

	startedAt := time.Now()
	e.transition(func(status *Status) {
		// The source may already have failed
		if status.State != Starting {
			return
		}
		status.State = Running
		status.StartedAt = &startedAt
	})
	e.logger.Infof("Capture engine started (run %s) for %d table(s)", runId, len(e.tables))
	return nil
}

// Stop drains the engine. The last published position of
// each source partition is persisted first, failures being
// logged only. The capture source is stopped afterward and
// its failure is returned. Finally, one lifecycle notification
// per monitored table is sent.
func (e *Engine) Stop(
	ctx context.Context, reason StopReason,
) (Status, error) {

	e.operationMutex.Lock()
	defer e.operationMutex.Unlock()

	if state := e.Status().State; state != Running {
		return Status{}, errors.WrapPrefix(ErrIllegalState, fmt.Sprintf("cannot stop engine in state %s", state), 0)
	}

	e.transition(func(status *Status) {
		status.State = Stopping
	})
	snapshot := e.Status()
	e.logger.Infof("Stopping capture engine (reason: %s, events: %d)", reason, snapshot.EventsCaptured)

	e.persistPositions()

	stopErr := e.source.Stop()
	if stopErr != nil {
		stopErr = errors.WrapPrefix(stopErr, "failed stopping capture source", 0)
		e.logger.Errorf("%+v", stopErr)
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}

	if err := waiting.AwaitWaitGroup(&e.inflight, e.drainTimeout); err != nil {
		e.logger.Warnf("In-flight events didn't drain within %s, proceeding", e.drainTimeout)
	}

	stoppedAt := time.Now()
	e.transition(func(status *Status) {
		status.StoppedAt = &stoppedAt
		if stopErr != nil {
			status.State = Failed
			status.ErrorMessage = stopErr.Error()
		} else {
			status.State = Stopped
		}
	})

	e.notifyStopped(ctx, snapshot, reason)
	return e.Status(), stopErr
}

// ForceStop stops the capture source immediately. Positions
// aren't persisted and in-flight events aren't awaited, events
// published since the last stored checkpoint are captured and
// delivered again on the next start.
func (e *Engine) ForceStop(
	ctx context.Context, reason StopReason,
) (Status, error) {

	e.operationMutex.Lock()
	defer e.operationMutex.Unlock()

	snapshot := e.Status()
	if snapshot.State == Stopped {
		return Status{}, errors.WrapPrefix(ErrIllegalState, "engine is already stopped", 0)
	}

	e.logger.Warnf("Force stopping capture engine (reason: %s), unsaved positions may be lost", reason)

	stopErr := e.source.Stop()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}

	stoppedAt := time.Now()
	e.transition(func(status *Status) {
		status.State = Stopped
		status.StoppedAt = &stoppedAt
	})

	e.notifyStopped(ctx, snapshot, reason)
	if stopErr != nil {
		return e.Status(), errors.WrapPrefix(stopErr, "failed stopping capture source", 0)
	}
	return e.Status(), nil
}

func (e *Engine) persistPositions() {
	for partition, position := range e.pipeline.LastPositions() {
		if err := e.stateStorage.Save(position); err != nil {
			e.logger.Warnf("Failed persisting final position of partition '%s': %+v", partition, err)
		}
	}
}

func (e *Engine) notifyStopped(
	ctx context.Context, snapshot Status, reason StopReason,
) {

	timestamp := time.Now()
	for _, table := range e.tableIdentifiers() {
		notification := LifecycleNotification{
			RunId:          snapshot.RunId,
			Table:          table,
			Reason:         reason,
			Position:       e.reloadPosition(table),
			EventsCaptured: snapshot.EventsCaptured,
			Timestamp:      timestamp,
		}
		if err := e.notifier.NotifyStopped(ctx, notification); err != nil {
			e.logger.Warnf("Failed sending lifecycle notification for %s: %+v", table, err)
		}
	}
}

// reloadPosition reads the stored position of the table's
// source partition, nil if it can't be determined.
func (e *Engine) reloadPosition(
	table systemcatalog.TableIdentifier,
) *statestorage.Position {

	e.statusMutex.RLock()
	partition, present := e.partitions[table]
	e.statusMutex.RUnlock()
	if !present {
		partition = table.Database()
	}

	position, found, err := e.stateStorage.Load(partition)
	if err != nil {
		e.logger.Warnf("Failed reloading position of partition '%s': %+v", partition, err)
		return nil
	}
	if !found {
		return nil
	}
	return position
}

func (e *Engine) startFailed(
	err error,
) error {

	e.logger.Errorf("%+v", err)
	stoppedAt := time.Now()
	e.transition(func(status *Status) {
		status.State = Failed
		status.StoppedAt = &stoppedAt
		status.ErrorMessage = err.Error()
	})
	return err
}

func (e *Engine) fail(
	err error,
) {

	stoppedAt := time.Now()
	var state State
	e.transition(func(status *Status) {
		state = status.State
		if state != Starting && state != Running {
			return
		}
		status.State = Failed
		status.StoppedAt = &stoppedAt
		status.ErrorMessage = err.Error()
	})

	if state != Starting && state != Running {
		e.logger.Warnf("Capture source failed while %s: %+v", state, err)
		return
	}
	e.logger.Errorf("Capture source failed, engine requires a restart: %+v", err)
}

func (e *Engine) transition(
	fn func(status *Status),
) {

	e.statusMutex.Lock()
	previous := e.status.State
	fn(&e.status)
	current := e.status.State
	var err error
	if e.status.ErrorMessage != "" {
		err = errors.New(e.status.ErrorMessage)
	}
	e.statusMutex.Unlock()

	if previous != current {
		e.dispatcher.NotifyEngineListeners(func(listener notifications.EngineListener) error {
			return listener.OnEngineStateChanged(notifications.EngineStateChanged{
				Previous: string(previous),
				Current:  string(current),
				Err:      err,
			})
		})
	}
}

func (e *Engine) tableIdentifiers() []systemcatalog.TableIdentifier {
	identifiers := make([]systemcatalog.TableIdentifier, 0, len(e.tables))
	for _, table := range e.tables {
		identifiers = append(identifiers, table.Table())
	}
	return identifiers
}

type engineHandler struct {
	engine *Engine
}

// OnEvent hands the event to the pipeline. A processing error
// is returned to the source, which stops capturing rather than
// moving past the undelivered event.
func (h *engineHandler) OnEvent(
	ctx context.Context, event *changeevent.ChangeEvent,
) error {

	e := h.engine
	e.inflight.Add(1)
	defer e.inflight.Done()

	e.statusMutex.Lock()
	e.status.EventsCaptured++
	e.status.CurrentPosition = event.Position()
	e.partitions[event.Table()] = event.Position().SourcePartition()
	e.statusMutex.Unlock()

	return e.pipeline.Process(ctx, event)
}

func (h *engineHandler) OnFailure(
	err error,
) {

	h.engine.fail(err)
}
