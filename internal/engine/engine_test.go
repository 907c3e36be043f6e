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
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/go-errors/errors"
	"github.com/noctarius/cdc-relay/internal/notifications"
	"github.com/noctarius/cdc-relay/internal/statestorages/memory"
	"github.com/noctarius/cdc-relay/spi/capture"
	"github.com/noctarius/cdc-relay/spi/changeevent"
	"github.com/noctarius/cdc-relay/spi/statestorage"
	"github.com/noctarius/cdc-relay/spi/systemcatalog"
	"github.com/noctarius/cdc-relay/spi/values"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tableA = systemcatalog.MustTableIdentifier("shop", "public", "a")
	tableB = systemcatalog.MustTableIdentifier("shop", "public", "b")
)

type stubSource struct {
	mutex       sync.Mutex
	handler     capture.Handler
	positions   map[string]*statestorage.Position
	running     bool
	startCalls  int
	stopCalls   int
	startErr    error
	stopErr     error
	failOnStart error
	ctx         context.Context
}

func (s *stubSource) Start(
	ctx context.Context, _ []systemcatalog.TableIdentifier,
	positions map[string]*statestorage.Position, handler capture.Handler,
) error {

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.startCalls++
	if s.startErr != nil {
		return s.startErr
	}
	s.ctx = ctx
	s.handler = handler
	s.positions = positions
	s.running = true
	if s.failOnStart != nil {
		s.running = false
		handler.OnFailure(s.failOnStart)
	}
	return nil
}

func (s *stubSource) Stop() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.stopCalls++
	s.running = false
	return s.stopErr
}

func (s *stubSource) IsRunning() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.running
}

type stubPipeline struct {
	mutex     sync.Mutex
	positions map[string]*statestorage.Position
	processed int
	err       error
}

func (p *stubPipeline) Process(
	_ context.Context, event *changeevent.ChangeEvent,
) error {

	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.processed++
	if p.err != nil {
		return p.err
	}
	p.positions[event.Position().SourcePartition()] = event.Position()
	return nil
}

func (p *stubPipeline) SetTables(
	_ []*systemcatalog.TableConfig,
) {
}

func (p *stubPipeline) LastPositions() map[string]*statestorage.Position {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	result := make(map[string]*statestorage.Position, len(p.positions))
	for k, v := range p.positions {
		result[k] = v
	}
	return result
}

type countingStorage struct {
	statestorage.Storage
	saves int
}

func (c *countingStorage) Save(
	position *statestorage.Position,
) error {

	c.saves++
	return c.Storage.Save(position)
}

type recordingNotifier struct {
	mutex         sync.Mutex
	notifications []LifecycleNotification
	failFor       *systemcatalog.TableIdentifier
}

func (r *recordingNotifier) NotifyStopped(
	_ context.Context, notification LifecycleNotification,
) error {

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.failFor != nil && *r.failFor == notification.Table {
		return errors.Errorf("notification for %s failed", notification.Table)
	}
	r.notifications = append(r.notifications, notification)
	return nil
}

type fixture struct {
	engine   *Engine
	source   *stubSource
	pipeline *stubPipeline
	storage  *countingStorage
	notifier *recordingNotifier
}

func newFixture(
	t *testing.T,
) *fixture {

	f := &fixture{
		source:   &stubSource{},
		pipeline: &stubPipeline{positions: make(map[string]*statestorage.Position)},
		storage:  &countingStorage{Storage: memory.NewMemoryStateStorage()},
		notifier: &recordingNotifier{},
	}

	engine, err := NewEngine(f.source, f.pipeline, f.storage, f.notifier, nil, time.Second)
	require.NoError(t, err)
	engine.SetTables(tableConfigs(t, tableA, tableB))
	f.engine = engine
	return f
}

func tableConfigs(
	t *testing.T, tables ...systemcatalog.TableIdentifier,
) []*systemcatalog.TableConfig {

	configs := make([]*systemcatalog.TableConfig, 0, len(tables))
	for _, table := range tables {
		tableConfig, err := systemcatalog.NewTableConfig(table, systemcatalog.IncludeAll, nil, nil)
		require.NoError(t, err)
		configs = append(configs, tableConfig)
	}
	return configs
}

func event(
	t *testing.T, table systemcatalog.TableIdentifier, lsn int64,
) *changeevent.ChangeEvent {

	position, err := statestorage.NewPosition("shop", statestorage.OffsetEntry{Key: "lsn", Value: values.Integer(lsn)})
	require.NoError(t, err)
	e, err := changeevent.NewChangeEvent(table, changeevent.Insert, time.Now(), position, nil, changeevent.Row{"id": lsn}, nil)
	require.NoError(t, err)
	return e
}

func Test_Stop_While_Stopped_Is_Illegal(
	t *testing.T,
) {

	f := newFixture(t)

	_, err := f.engine.Stop(context.Background(), ManualStop)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, ErrIllegalState))

	assert.Equal(t, 0, f.storage.saves)
	assert.Equal(t, 0, f.source.stopCalls)
	assert.Empty(t, f.notifier.notifications)
	assert.Equal(t, Stopped, f.engine.Status().State)
}

func Test_Start_While_Running_Is_Illegal(
	t *testing.T,
) {

	f := newFixture(t)
	require.NoError(t, f.engine.Start(context.Background()))

	err := f.engine.Start(context.Background())
	assert.True(t, stderrors.Is(err, ErrIllegalState))
	assert.Equal(t, 1, f.source.startCalls)
	assert.Equal(t, Running, f.engine.Status().State)
}

func Test_Start_Stop_Lifecycle(
	t *testing.T,
) {

	f := newFixture(t)

	dispatcher, err := notifications.NewDispatcher()
	require.NoError(t, err)
	states := &stateRecorder{}
	dispatcher.RegisterListener(states)
	f.engine.dispatcher = dispatcher

	require.NoError(t, f.engine.Start(context.Background()))
	status := f.engine.Status()
	assert.Equal(t, Running, status.State)
	assert.NotNil(t, status.StartedAt)
	assert.NotEmpty(t, status.RunId)

	require.NoError(t, f.source.handler.OnEvent(context.Background(), event(t, tableA, 1)))
	require.NoError(t, f.source.handler.OnEvent(context.Background(), event(t, tableB, 2)))

	status = f.engine.Status()
	assert.Equal(t, uint64(2), status.EventsCaptured)
	lsn, _ := status.CurrentPosition.Get("lsn")
	assert.True(t, lsn.Equal(values.Integer(2)))

	status, err = f.engine.Stop(context.Background(), GracefulShutdown)
	require.NoError(t, err)
	assert.Equal(t, Stopped, status.State)
	assert.NotNil(t, status.StoppedAt)
	assert.Equal(t, 1, f.storage.saves)
	assert.Equal(t, 1, f.source.stopCalls)

	require.Len(t, f.notifier.notifications, 2)
	for _, notification := range f.notifier.notifications {
		assert.Equal(t, GracefulShutdown, notification.Reason)
		assert.Equal(t, uint64(2), notification.EventsCaptured)
		require.NotNil(t, notification.Position)
		lsn, _ := notification.Position.Get("lsn")
		assert.True(t, lsn.Equal(values.Integer(2)))
	}

	assert.Equal(t, []string{"STARTING", "RUNNING", "STOPPING", "STOPPED"}, states.states)
}

func Test_Notification_Failure_Is_Isolated(
	t *testing.T,
) {

	f := newFixture(t)
	f.notifier.failFor = &tableA

	require.NoError(t, f.engine.Start(context.Background()))
	_, err := f.engine.Stop(context.Background(), ConfigurationChange)
	require.NoError(t, err)

	require.Len(t, f.notifier.notifications, 1)
	assert.Equal(t, tableB, f.notifier.notifications[0].Table)
	assert.Equal(t, ConfigurationChange, f.notifier.notifications[0].Reason)
	assert.Nil(t, f.notifier.notifications[0].Position)
}

func Test_Checkpoint_Failure_Does_Not_Abort_Stop(
	t *testing.T,
) {

	f := newFixture(t)
	require.NoError(t, f.engine.Start(context.Background()))
	require.NoError(t, f.source.handler.OnEvent(context.Background(), event(t, tableA, 1)))

	f.engine.stateStorage = &failingStorage{Storage: f.storage}
	status, err := f.engine.Stop(context.Background(), ManualStop)
	require.NoError(t, err)
	assert.Equal(t, Stopped, status.State)
	assert.Equal(t, 1, f.source.stopCalls)
	assert.Len(t, f.notifier.notifications, 2)
}

func Test_Source_Stop_Failure_Is_Surfaced(
	t *testing.T,
) {

	f := newFixture(t)
	f.source.stopErr = errors.Errorf("connection lost")

	require.NoError(t, f.engine.Start(context.Background()))
	status, err := f.engine.Stop(context.Background(), ManualStop)
	assert.ErrorContains(t, err, "connection lost")
	assert.Equal(t, Failed, status.State)
	assert.Len(t, f.notifier.notifications, 2)
}

func Test_Start_Failure_And_Restart(
	t *testing.T,
) {

	f := newFixture(t)
	f.source.startErr = errors.Errorf("replication slot missing")

	err := f.engine.Start(context.Background())
	assert.ErrorContains(t, err, "replication slot missing")
	status := f.engine.Status()
	assert.Equal(t, Failed, status.State)
	assert.Contains(t, status.ErrorMessage, "replication slot missing")

	f.source.startErr = nil
	require.NoError(t, f.engine.Start(context.Background()))
	status = f.engine.Status()
	assert.Equal(t, Running, status.State)
	assert.Empty(t, status.ErrorMessage)
}

func Test_Start_Hands_Over_Stored_Positions(
	t *testing.T,
) {

	f := newFixture(t)
	stored := event(t, tableA, 42).Position()
	require.NoError(t, f.storage.Storage.Save(stored))

	require.NoError(t, f.engine.Start(context.Background()))
	require.Contains(t, f.source.positions, "shop")
	assert.True(t, stored.Equal(f.source.positions["shop"]))
}

func Test_Source_Failure_Moves_To_Failed(
	t *testing.T,
) {

	f := newFixture(t)
	require.NoError(t, f.engine.Start(context.Background()))

	f.source.handler.OnFailure(errors.Errorf("wal segment removed"))
	status := f.engine.Status()
	assert.Equal(t, Failed, status.State)
	assert.Contains(t, status.ErrorMessage, "wal segment removed")

	_, err := f.engine.Stop(context.Background(), ManualStop)
	assert.True(t, stderrors.Is(err, ErrIllegalState))

	status, err = f.engine.ForceStop(context.Background(), ErrorStop)
	require.NoError(t, err)
	assert.Equal(t, Stopped, status.State)
}

func Test_Force_Stop_Skips_Checkpoint(
	t *testing.T,
) {

	f := newFixture(t)
	require.NoError(t, f.engine.Start(context.Background()))
	require.NoError(t, f.source.handler.OnEvent(context.Background(), event(t, tableA, 1)))

	status, err := f.engine.ForceStop(context.Background(), ApplicationShutdown)
	require.NoError(t, err)
	assert.Equal(t, Stopped, status.State)
	assert.Equal(t, 0, f.storage.saves)
	assert.Equal(t, 1, f.source.stopCalls)
	assert.Len(t, f.notifier.notifications, 2)

	_, err = f.engine.ForceStop(context.Background(), ApplicationShutdown)
	assert.True(t, stderrors.Is(err, ErrIllegalState))
}

func Test_Composite_Lifecycle_Notifier(
	t *testing.T,
) {

	failing := LifecycleNotifierFunc(func(_ context.Context, _ LifecycleNotification) error {
		return errors.Errorf("failed")
	})
	recording := &recordingNotifier{}

	err := NewCompositeLifecycleNotifier(failing, recording).
		NotifyStopped(context.Background(), LifecycleNotification{Table: tableA})
	assert.ErrorContains(t, err, "failed")
	assert.Len(t, recording.notifications, 1)
}

type failingStorage struct {
	statestorage.Storage
}

func (f *failingStorage) Save(
	_ *statestorage.Position,
) error {

	return errors.Errorf("disk full")
}

type stateRecorder struct {
	states []string
}

func (s *stateRecorder) OnEngineStateChanged(
	notification notifications.EngineStateChanged,
) error {

	s.states = append(s.states, notification.Current)
	return nil
}

func Test_Source_Failure_While_Starting_Moves_To_Failed(
	t *testing.T,
) {

	f := newFixture(t)
	f.source.failOnStart = errors.Errorf("replication slot in use")

	require.NoError(t, f.engine.Start(context.Background()))
	status := f.engine.Status()
	assert.Equal(t, Failed, status.State)
	assert.Contains(t, status.ErrorMessage, "replication slot in use")
	assert.Nil(t, status.StartedAt)
}

func Test_Source_Failure_While_Stopped_Is_Ignored(
	t *testing.T,
) {

	f := newFixture(t)
	require.NoError(t, f.engine.Start(context.Background()))
	handler := f.source.handler

	_, err := f.engine.Stop(context.Background(), ManualStop)
	require.NoError(t, err)

	handler.OnFailure(errors.Errorf("late failure"))
	status := f.engine.Status()
	assert.Equal(t, Stopped, status.State)
	assert.Empty(t, status.ErrorMessage)
}

func Test_Start_With_Cancelled_Context(
	t *testing.T,
) {

	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.engine.Start(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.source.startCalls)
	assert.Equal(t, Stopped, f.engine.Status().State)
}

func Test_Capture_Outlives_Start_Context(
	t *testing.T,
) {

	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, f.engine.Start(ctx))
	cancel()

	assert.NoError(t, f.source.ctx.Err())

	_, err := f.engine.Stop(context.Background(), ManualStop)
	require.NoError(t, err)
	assert.Error(t, f.source.ctx.Err())
}
