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

package relay

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/go-errors/errors"
	"github.com/noctarius/cdc-relay/internal/configwatching"
	"github.com/noctarius/cdc-relay/internal/engine"
	"github.com/noctarius/cdc-relay/internal/logging"
	"github.com/noctarius/cdc-relay/internal/notifications"
	"github.com/noctarius/cdc-relay/internal/stats"
	"github.com/noctarius/cdc-relay/spi/config"
	"github.com/noctarius/cdc-relay/spi/sink"
	"github.com/noctarius/cdc-relay/spi/statestorage"
	"github.com/samber/do"
)

const reloadStopTimeout = time.Minute

type stopper struct {
	name string
	stop func(ctx context.Context) error
}

// Relay owns all components of a running relay and applies
// configuration changes by restarting the capture engine.
type Relay struct {
	mutex        sync.Mutex
	injector     *do.Injector
	config       *config.Config
	watcher      *configwatching.Watcher
	dispatcher   *notifications.Dispatcher
	engine       *engine.Engine
	stateStorage statestorage.Storage
	sink         sink.Sink
	stats        *stats.Service
	started      bool
	stoppers     []stopper
	failures     chan error
	logger       *logging.Logger
}

// NewRelay loads and validates the initial configuration and
// builds all components. Nothing is started yet.
func NewRelay(
	loader configwatching.Loader, options ...Option,
) (*Relay, error) {

	logger, err := logging.NewLogger("Relay")
	if err != nil {
		return nil, err
	}

	dispatcher, err := notifications.NewDispatcher()
	if err != nil {
		return nil, err
	}

	watcher, err := configwatching.NewWatcher(loader, 0, dispatcher)
	if err != nil {
		return nil, err
	}

	aggregate, err := watcher.Load()
	if err != nil {
		return nil, err
	}

	injector := newInjector(aggregate.Config(), watcher, dispatcher, options...)

	captureEngine, err := do.Invoke[*engine.Engine](injector)
	if err != nil {
		return nil, errors.WrapPrefix(err, "failed building capture engine", 0)
	}
	stateStorage, err := do.Invoke[statestorage.Storage](injector)
	if err != nil {
		return nil, err
	}
	s, err := do.Invoke[sink.Sink](injector)
	if err != nil {
		return nil, err
	}
	statsService, err := do.Invoke[*stats.Service](injector)
	if err != nil {
		return nil, err
	}

	captureEngine.SetTables(aggregate.Tables())

	relay := &Relay{
		injector:     injector,
		config:       aggregate.Config(),
		watcher:      watcher,
		dispatcher:   dispatcher,
		engine:       captureEngine,
		stateStorage: stateStorage,
		sink:         s,
		stats:        statsService,
		failures:     make(chan error, 1),
		logger:       logger,
	}

	dispatcher.RegisterListener(statsService.NewReporter("relay"))
	dispatcher.RegisterListener(relay)
	return relay, nil
}

// Start brings up all components in dependency order. If any
// component fails to start, the already started ones are
// stopped again.
func (r *Relay) Start(
	ctx context.Context,
) error {

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.started {
		return errors.Errorf("relay is already running")
	}

	steps := []struct {
		name  string
		start func() error
		stop  func(ctx context.Context) error
	}{
		{"state storage", r.stateStorage.Start, func(context.Context) error { return r.stateStorage.Stop() }},
		{"sink", r.sink.Start, func(context.Context) error { return r.sink.Stop() }},
		{"stats", r.stats.Start, func(context.Context) error { return r.stats.Stop() }},
		{"capture engine", func() error { return r.engine.Start(ctx) }, r.stopEngine},
		{"configuration watcher", r.watcher.Start, func(context.Context) error { return r.watcher.Stop() }},
	}

	r.stoppers = make([]stopper, 0, len(steps))
	for _, step := range steps {
		if err := step.start(); err != nil {
			r.logger.Errorf("Failed starting %s: %+v", step.name, err)
			r.runStoppers(ctx, r.stoppers)
			r.stoppers = nil
			return errors.WrapPrefix(err, "failed starting "+step.name, 0)
		}
		r.stoppers = append(r.stoppers, stopper{name: step.name, stop: step.stop})
	}

	r.started = true
	r.logger.Infof("Relay started, monitoring %d table(s)", len(r.engine.Tables()))
	return nil
}

// Stop shuts down all components in reverse start order. The
// capture engine is stopped with APPLICATION_SHUTDOWN.
func (r *Relay) Stop(
	ctx context.Context,
) error {

	r.mutex.Lock()
	if !r.started {
		r.mutex.Unlock()
		return nil
	}
	r.started = false
	stoppers := r.stoppers
	r.stoppers = nil
	r.mutex.Unlock()

	return r.runStoppers(ctx, stoppers)
}

// Failures delivers the error of an engine that failed while
// running.
func (r *Relay) Failures() <-chan error {
	return r.failures
}

func (r *Relay) Status() engine.Status {
	return r.engine.Status()
}

func (r *Relay) OnEngineStateChanged(
	notification notifications.EngineStateChanged,
) error {

	if notification.Current != string(engine.Failed) {
		return nil
	}

	err := notification.Err
	if err == nil {
		err = errors.Errorf("capture engine failed")
	}
	select {
	case r.failures <- err:
	default:
	}
	return nil
}

// OnConfigurationChanged applies the new table set. A running
// engine is stopped with CONFIGURATION_CHANGE and started again,
// any other engine only takes the tables for its next start.
func (r *Relay) OnConfigurationChanged(
	notification notifications.ConfigurationChanged,
) error {

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.started {
		return nil
	}

	aggregate := r.watcher.Current()
	if !configwatching.SettingsEqual(r.config, aggregate.Config()) {
		r.logger.Warnf("Only table changes are applied at runtime, restart the relay to apply the remaining settings")
	}

	r.logger.Infof(
		"Applying configuration change (added tables: %v, removed tables: %v)",
		notification.Added, notification.Removed,
	)

	if !r.engine.IsRunning() {
		// A failed or stopped engine only picks up the new tables,
		// restarting it is left to the operator.
		r.engine.SetTables(aggregate.Tables())
		r.logger.Warnf(
			"Capture engine is %s, table changes apply on the next start", r.engine.Status().State,
		)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), reloadStopTimeout)
	defer cancel()

	status, err := r.engine.Stop(ctx, engine.ConfigurationChange)
	r.engine.SetTables(aggregate.Tables())
	if err != nil {
		r.logger.Errorf("Failed stopping capture engine for configuration change: %+v", err)
	}
	if status.State != engine.Stopped {
		return nil
	}
	return r.engine.Start(context.Background())
}

func (r *Relay) stopEngine(
	ctx context.Context,
) error {

	if !r.engine.IsRunning() {
		return nil
	}
	_, err := r.engine.Stop(ctx, engine.ApplicationShutdown)
	return err
}

func (r *Relay) runStoppers(
	ctx context.Context, stoppers []stopper,
) error {

	var errs []error
	for i := len(stoppers) - 1; i >= 0; i-- {
		if err := stoppers[i].stop(ctx); err != nil {
			r.logger.Errorf("Failed stopping %s: %+v", stoppers[i].name, err)
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
