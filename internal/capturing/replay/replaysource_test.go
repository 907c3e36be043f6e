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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-errors/errors"
	"github.com/noctarius/cdc-relay/spi/capture"
	"github.com/noctarius/cdc-relay/spi/changeevent"
	spiconfig "github.com/noctarius/cdc-relay/spi/config"
	"github.com/noctarius/cdc-relay/spi/statestorage"
	"github.com/noctarius/cdc-relay/spi/systemcatalog"
	"github.com/noctarius/cdc-relay/spi/values"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orders = systemcatalog.MustTableIdentifier("shop", "public", "orders")

type recordingHandler struct {
	mutex    sync.Mutex
	events   []*changeevent.ChangeEvent
	failures []error
	failAt   int
}

func (h *recordingHandler) OnEvent(
	_ context.Context, event *changeevent.ChangeEvent,
) error {

	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.failAt > 0 && len(h.events)+1 == h.failAt {
		return errors.Errorf("sink unavailable")
	}
	h.events = append(h.events, event)
	return nil
}

func (h *recordingHandler) OnFailure(
	err error,
) {

	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.failures = append(h.failures, err)
}

func (h *recordingHandler) snapshot() ([]*changeevent.ChangeEvent, []error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return append([]*changeevent.ChangeEvent(nil), h.events...), append([]error(nil), h.failures...)
}

func eventLine(
	table string, lsn int,
) string {

	return fmt.Sprintf(
		`{"table":{"database":"shop","schema":"public","table":"%s"},"operation":"c",`+
			`"timestamp":"2024-03-01T11:30:00Z","position":{"sourcePartition":"shop","offset":{"lsn":%d}},`+
			`"after":{"id":%d}}`,
		table, lsn, lsn,
	)
}

func writeReplayFile(
	t *testing.T, lines ...string,
) string {

	path := filepath.Join(t.TempDir(), "events.ndjson")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))
	return path
}

func Test_Replay_Delivers_Monitored_Events_In_Order(
	t *testing.T,
) {

	path := writeReplayFile(t, eventLine("orders", 1), "", eventLine("customers", 2), eventLine("orders", 3))
	source, err := NewReplaySource(path)
	require.NoError(t, err)

	handler := &recordingHandler{}
	require.NoError(t, source.Start(context.Background(), []systemcatalog.TableIdentifier{orders}, nil, handler))
	assert.True(t, source.IsRunning())

	assert.Eventually(t, func() bool {
		events, _ := handler.snapshot()
		return len(events) == 2
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, source.Stop())
	assert.False(t, source.IsRunning())

	events, failures := handler.snapshot()
	assert.Empty(t, failures)
	assert.Equal(t, orders, events[0].Table())
	lsn, _ := events[1].Position().Get("lsn")
	assert.True(t, lsn.Equal(values.Integer(3)))
}

func Test_Replay_Skips_Processed_Positions(
	t *testing.T,
) {

	path := writeReplayFile(t, eventLine("orders", 1), eventLine("orders", 2), eventLine("orders", 3))
	source, err := NewReplaySource(path)
	require.NoError(t, err)

	stored, err := statestorage.NewPosition("shop", statestorage.OffsetEntry{Key: "lsn", Value: values.Integer(2)})
	require.NoError(t, err)

	handler := &recordingHandler{}
	require.NoError(t, source.Start(
		context.Background(), []systemcatalog.TableIdentifier{orders},
		map[string]*statestorage.Position{"shop": stored}, handler,
	))

	assert.Eventually(t, func() bool {
		events, _ := handler.snapshot()
		return len(events) == 1
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, source.Stop())

	events, _ := handler.snapshot()
	require.Len(t, events, 1)
	assert.True(t, events[0].Position().IsAfter(stored))
}

func binlogLine(
	file string, offset int,
) string {

	return fmt.Sprintf(
		`{"table":{"database":"shop","schema":"public","table":"orders"},"operation":"c",`+
			`"timestamp":"2024-03-01T11:30:00Z","position":{"sourcePartition":"shop",`+
			`"offset":{"file":"%s","offset":%d}},"after":{"id":%d}}`,
		file, offset, offset,
	)
}

func Test_Replay_Redelivers_Unordered_Positions(
	t *testing.T,
) {

	path := writeReplayFile(t, binlogLine("binlog.000001", 100), binlogLine("binlog.000002", 900))
	source, err := NewReplaySource(path)
	require.NoError(t, err)

	stored, err := statestorage.NewPosition("shop",
		statestorage.OffsetEntry{Key: "file", Value: values.String("binlog.000001")},
		statestorage.OffsetEntry{Key: "offset", Value: values.Integer(100)},
	)
	require.NoError(t, err)

	handler := &recordingHandler{}
	require.NoError(t, source.Start(
		context.Background(), []systemcatalog.TableIdentifier{orders},
		map[string]*statestorage.Position{"shop": stored}, handler,
	))

	assert.Eventually(t, func() bool {
		events, _ := handler.snapshot()
		return len(events) == 1
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, source.Stop())

	events, failures := handler.snapshot()
	assert.Empty(t, failures)
	require.Len(t, events, 1)
	file, _ := events[0].Position().Get("file")
	assert.True(t, file.Equal(values.String("binlog.000002")))
}

func Test_Replay_Handler_Error_Stops_Source(
	t *testing.T,
) {

	path := writeReplayFile(t, eventLine("orders", 1), eventLine("orders", 2), eventLine("orders", 3))
	source, err := NewReplaySource(path)
	require.NoError(t, err)

	handler := &recordingHandler{failAt: 2}
	require.NoError(t, source.Start(context.Background(), []systemcatalog.TableIdentifier{orders}, nil, handler))

	assert.Eventually(t, func() bool {
		_, failures := handler.snapshot()
		return len(failures) == 1
	}, time.Second, 10*time.Millisecond)

	assert.False(t, source.IsRunning())
	events, failures := handler.snapshot()
	assert.Len(t, events, 1)
	assert.ErrorContains(t, failures[0], "sink unavailable")
	require.NoError(t, source.Stop())
}

func Test_Replay_Malformed_Line_Fails(
	t *testing.T,
) {

	path := writeReplayFile(t, eventLine("orders", 1), `{"table": `)
	source, err := NewReplaySource(path)
	require.NoError(t, err)

	handler := &recordingHandler{}
	require.NoError(t, source.Start(context.Background(), []systemcatalog.TableIdentifier{orders}, nil, handler))

	assert.Eventually(t, func() bool {
		_, failures := handler.snapshot()
		return len(failures) == 1
	}, time.Second, 10*time.Millisecond)

	_, failures := handler.snapshot()
	assert.ErrorContains(t, failures[0], "replay line 2")
}

func Test_Replay_Start_Twice_And_Missing_File(
	t *testing.T,
) {

	source, err := NewReplaySource(writeReplayFile(t, eventLine("orders", 1)))
	require.NoError(t, err)

	handler := &recordingHandler{}
	require.NoError(t, source.Start(context.Background(), nil, nil, handler))
	assert.Error(t, source.Start(context.Background(), nil, nil, handler))
	require.NoError(t, source.Stop())

	missing, err := NewReplaySource(filepath.Join(t.TempDir(), "missing.ndjson"))
	require.NoError(t, err)
	assert.Error(t, missing.Start(context.Background(), nil, nil, handler))
	assert.False(t, missing.IsRunning())
}

func Test_Replay_Registered_Provider(
	t *testing.T,
) {

	_, err := capture.NewSource(spiconfig.ReplayCapture, &spiconfig.Config{})
	assert.ErrorContains(t, err, spiconfig.PropertyCaptureReplayPath)

	path := writeReplayFile(t, eventLine("orders", 7))
	source, err := capture.NewSource(spiconfig.ReplayCapture, &spiconfig.Config{
		Capture: spiconfig.CaptureConfig{Replay: spiconfig.ReplayConfig{Path: path}},
	})
	require.NoError(t, err)

	delivered := make(chan *changeevent.ChangeEvent, 1)
	handler := capture.HandlerFuncs{
		OnEventFunc: func(_ context.Context, event *changeevent.ChangeEvent) error {
			delivered <- event
			return nil
		},
	}
	require.NoError(t, source.Start(context.Background(), []systemcatalog.TableIdentifier{orders}, nil, handler))
	defer func() {
		assert.NoError(t, source.Stop())
	}()

	select {
	case event := <-delivered:
		assert.Equal(t, orders, event.Table())
	case <-time.After(time.Second):
		t.Fatal("expected a replayed event")
	}
}
