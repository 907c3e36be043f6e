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
	"github.com/noctarius/cdc-relay/internal/notifications"
	"github.com/segmentio/stats/v4"
)

// Reporter turns relay notifications into metrics. It is
// registered as a listener with the notification dispatcher.
type Reporter struct {
	statsEnabled bool
	engine       *stats.Engine
}

func newReporter(
	engine *stats.Engine,
) *Reporter {

	return &Reporter{
		statsEnabled: true,
		engine:       engine,
	}
}

func (r *Reporter) OnEventPublished(
	notification notifications.EventPublished,
) error {

	if !r.statsEnabled {
		return nil
	}
	tags := []stats.Tag{
		stats.T("table", notification.Event.Table().CanonicalName()),
		stats.T("operation", notification.Event.Operation().String()),
	}
	r.engine.Incr("events.published", tags...)
	r.engine.Observe("events.publish_seconds", notification.Duration.Seconds(), tags...)
	return nil
}

func (r *Reporter) OnEventFailed(
	notification notifications.EventFailed,
) error {

	if !r.statsEnabled {
		return nil
	}
	tags := []stats.Tag{stats.T("stage", notification.Stage)}
	if notification.Event != nil {
		tags = append(tags, stats.T("table", notification.Event.Table().CanonicalName()))
	}
	r.engine.Incr("events.failed", tags...)
	return nil
}

func (r *Reporter) OnEventFiltered(
	notification notifications.EventFiltered,
) error {

	if !r.statsEnabled {
		return nil
	}
	r.engine.Incr("events.filtered",
		stats.T("table", notification.Event.Table().CanonicalName()),
		stats.T("filter", notification.Filter),
	)
	return nil
}

func (r *Reporter) OnCheckpointFailed(
	notification notifications.CheckpointFailed,
) error {

	if !r.statsEnabled {
		return nil
	}
	partition := "unknown"
	if notification.Position != nil {
		partition = notification.Position.SourcePartition()
	}
	r.engine.Incr("checkpoints.failed", stats.T("partition", partition))
	return nil
}

func (r *Reporter) OnEngineStateChanged(
	notification notifications.EngineStateChanged,
) error {

	if !r.statsEnabled {
		return nil
	}
	running := 0
	if notification.Current == "RUNNING" {
		running = 1
	}
	r.engine.Set("engine.running", running)
	r.engine.Incr("engine.transitions", stats.T("state", notification.Current))
	return nil
}

func (r *Reporter) OnConfigurationChanged(
	notification notifications.ConfigurationChanged,
) error {

	if !r.statsEnabled {
		return nil
	}
	r.engine.Incr("configuration.changes")
	r.engine.Set("configuration.tables_added", len(notification.Added))
	r.engine.Set("configuration.tables_removed", len(notification.Removed))
	return nil
}
