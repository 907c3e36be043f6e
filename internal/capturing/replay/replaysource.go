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

package replay

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/go-errors/errors"
	"github.com/noctarius/cdc-relay/internal/logging"
	"github.com/noctarius/cdc-relay/spi/capture"
	"github.com/noctarius/cdc-relay/spi/changeevent"
	spiconfig "github.com/noctarius/cdc-relay/spi/config"
	"github.com/noctarius/cdc-relay/spi/encoding"
	"github.com/noctarius/cdc-relay/spi/statestorage"
	"github.com/noctarius/cdc-relay/spi/systemcatalog"
	"github.com/samber/lo"
)

const maxLineSize = 16 * 1024 * 1024

func init() {
	capture.RegisterSource(spiconfig.ReplayCapture, func(c *spiconfig.Config) (capture.Source, error) {
		path := spiconfig.GetOrDefault(c, spiconfig.PropertyCaptureReplayPath, "")
		if path == "" {
			return nil, errors.Errorf("%s is required for the replay capture", spiconfig.PropertyCaptureReplayPath)
		}
		return NewReplaySource(path)
	})
}

// replaySource reads raw change events from a newline delimited
// JSON file. After the last line the source stays idle until it
// is stopped.
type replaySource struct {
	mutex   sync.Mutex
	path    string
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	decoder *encoding.JsonDecoder
	logger  *logging.Logger
}

func NewReplaySource(
	path string,
) (capture.Source, error) {

	logger, err := logging.NewLogger("ReplaySource")
	if err != nil {
		return nil, err
	}

	return &replaySource{
		path:    path,
		decoder: encoding.NewJsonDecoder(false),
		logger:  logger,
	}, nil
}

func (r *replaySource) Start(
	ctx context.Context, tables []systemcatalog.TableIdentifier,
	positions map[string]*statestorage.Position, handler capture.Handler,
) error {

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.running {
		return errors.Errorf("replay source is already running")
	}

	file, err := os.Open(r.path)
	if err != nil {
		return errors.WrapPrefix(err, "failed opening replay file", 0)
	}

	replayCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true

	monitored := lo.SliceToMap(tables, func(table systemcatalog.TableIdentifier) (systemcatalog.TableIdentifier, bool) {
		return table, true
	})

	go func(done chan struct{}) {
		defer close(done)
		defer file.Close()

		if err := r.replay(replayCtx, file, monitored, positions, handler); err != nil {
			r.markStopped()
			handler.OnFailure(err)
			return
		}
		<-replayCtx.Done()
	}(r.done)

	r.logger.Infof("Replaying change events from %s for %d table(s)", r.path, len(tables))
	return nil
}

func (r *replaySource) Stop() error {
	r.mutex.Lock()
	cancel := r.cancel
	done := r.done
	r.running = false
	r.mutex.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (r *replaySource) IsRunning() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.running
}

func (r *replaySource) markStopped() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.running = false
}

func (r *replaySource) replay(
	ctx context.Context, file *os.File, monitored map[systemcatalog.TableIdentifier]bool,
	positions map[string]*statestorage.Position, handler capture.Handler,
) error {

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNumber := 0
	delivered := 0
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		lineNumber++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		event := &changeevent.ChangeEvent{}
		if err := r.decoder.Unmarshal(line, event); err != nil {
			return errors.WrapPrefix(err, fmt.Sprintf("failed decoding replay line %d", lineNumber), 0)
		}

		if !monitored[event.Table()] {
			r.logger.Tracef("Skipping event of unmonitored table %s", event.Table())
			continue
		}

		position := event.Position()
		if stored, present := positions[position.SourcePartition()]; present && stored != nil {
			// Positions which can't be ordered are delivered again
			if position.Equal(stored) || position.IsBefore(stored) {
				r.logger.Tracef("Skipping already processed event at %s", position)
				continue
			}
		}

		if err := handler.OnEvent(ctx, event); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		delivered++
	}
	if err := scanner.Err(); err != nil {
		return errors.WrapPrefix(err, "failed reading replay file", 0)
	}

	r.logger.Infof("Replay of %s finished, %d event(s) delivered", r.path, delivered)
	return nil
}
