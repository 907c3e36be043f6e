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

package stats

import (
	"testing"
	"time"

	"github.com/noctarius/cdc-relay/internal/notifications"
	"github.com/noctarius/cdc-relay/spi/changeevent"
	"github.com/noctarius/cdc-relay/spi/config"
	"github.com/noctarius/cdc-relay/spi/statestorage"
	"github.com/noctarius/cdc-relay/spi/systemcatalog"
	"github.com/noctarius/cdc-relay/spi/values"
	"github.com/samber/lo"
	"github.com/segmentio/stats/v4"
	"github.com/segmentio/stats/v4/statstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent(
	t *testing.T,
) *changeevent.CanonicalEvent {

	position, err := statestorage.NewPosition("shop", statestorage.OffsetEntry{Key: "lsn", Value: values.Integer(1)})
	require.NoError(t, err)
	table := systemcatalog.MustTableIdentifier("shop", "public", "orders")
	raw, err := changeevent.NewChangeEvent(
		table, changeevent.Insert, time.Now(), position, nil, changeevent.Row{"id": 1}, nil,
	)
	require.NoError(t, err)
	event := changeevent.NewCanonicalEvent(
		raw, nil, changeevent.NewRowData(map[string]values.Value{"id": values.Integer(1)}), nil,
	)
	return event
}

func hasTag(
	measures []stats.Measure, name, value string,
) bool {

	return lo.ContainsBy(measures, func(measure stats.Measure) bool {
		return lo.ContainsBy(measure.Tags, func(tag stats.Tag) bool {
			return tag.Name == name && tag.Value == value
		})
	})
}

func Test_Reporter_Counts_Notifications(
	t *testing.T,
) {

	handler := &statstest.Handler{}
	reporter := newReporter(stats.NewEngine("cdc-relay", handler))

	dispatcher, err := notifications.NewDispatcher()
	require.NoError(t, err)
	dispatcher.RegisterListener(reporter)

	event := testEvent(t)
	dispatcher.NotifyEventListeners(func(listener notifications.EventListener) error {
		return listener.OnEventPublished(notifications.EventPublished{Event: event, Duration: time.Millisecond})
	})
	dispatcher.NotifyEventListeners(func(listener notifications.EventListener) error {
		return listener.OnEventFiltered(notifications.EventFiltered{Event: event, Filter: "drop_deletes"})
	})
	dispatcher.NotifyEventListeners(func(listener notifications.EventListener) error {
		return listener.OnEventFailed(notifications.EventFailed{Stage: "publish"})
	})
	dispatcher.NotifyEngineListeners(func(listener notifications.EngineListener) error {
		return listener.OnEngineStateChanged(notifications.EngineStateChanged{Previous: "STARTING", Current: "RUNNING"})
	})

	measures := handler.Measures()
	assert.NotEmpty(t, measures)
	assert.True(t, hasTag(measures, "table", "shop.public.orders"))
	assert.True(t, hasTag(measures, "filter", "drop_deletes"))
	assert.True(t, hasTag(measures, "stage", "publish"))
	assert.True(t, hasTag(measures, "state", "RUNNING"))
}

func Test_Disabled_Reporter_Is_Silent(
	t *testing.T,
) {

	enabled := false
	service, err := NewStatsService(&config.Config{
		Stats: config.StatsConfig{Enabled: &enabled},
	})
	require.NoError(t, err)
	require.NoError(t, service.Start())

	reporter := service.NewReporter("relay")
	assert.NoError(t, reporter.OnCheckpointFailed(notifications.CheckpointFailed{}))
	assert.NoError(t, service.Stop())
}
