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

package configwatching

import (
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/noctarius/cdc-relay/spi/config"
	"github.com/noctarius/cdc-relay/spi/systemcatalog"
	"github.com/noctarius/cdc-relay/spi/topic"
	"github.com/samber/lo"
)

// Aggregate is one validated configuration revision. Tables
// are keyed and ordered by their canonical name.
type Aggregate struct {
	config   *config.Config
	tables   []*systemcatalog.TableConfig
	loadedAt time.Time
}

// NewAggregate builds and validates a configuration revision.
// The configuration itself is never modified; all problems are
// collected instead of stopping at the first one.
func NewAggregate(
	c *config.Config, loadedAt time.Time,
) (*Aggregate, *ValidationResult) {

	result := &ValidationResult{}
	aggregate := &Aggregate{
		config:   c,
		tables:   make([]*systemcatalog.TableConfig, 0, len(c.Tables)),
		loadedAt: loadedAt,
	}

	databaseName := strings.TrimSpace(config.GetOrDefault(c, config.PropertyDatabaseName, ""))
	if databaseName == "" {
		result.warnf("database.name is not set, tables must name their database explicitly")
	}

	switch kind := config.GetOrDefault(c, config.PropertyDatabaseKind, config.Generic); kind {
	case config.PostgreSQL, config.MySQL, config.Generic:
	default:
		result.errorf("unknown database kind '%s'", kind)
	}

	if len(c.Tables) == 0 {
		result.errorf("at least one table must be configured")
	}

	seen := make(map[systemcatalog.TableIdentifier]bool)
	for i, tableDef := range c.Tables {
		database := tableDef.Database
		if strings.TrimSpace(database) == "" {
			database = databaseName
		}

		table, err := systemcatalog.NewTableIdentifier(database, tableDef.Schema, tableDef.Table)
		if err != nil {
			result.errorf("tables[%d]: %s", i, err)
			continue
		}

		if seen[table] {
			result.errorf("tables[%d]: %s is configured more than once", i, table)
			continue
		}
		seen[table] = true

		includeMode := systemcatalog.IncludeMode(strings.ToUpper(strings.TrimSpace(tableDef.IncludeMode)))
		tableConfig, err := systemcatalog.NewTableConfig(
			table, includeMode, tableDef.ColumnFilter, tableDef.CompositeKey,
		)
		if err != nil {
			result.errorf("tables[%d]: %s", i, err)
			continue
		}

		switch {
		case tableConfig.IncludeMode() == systemcatalog.ExcludeSpecified && len(tableConfig.ColumnFilter()) == 0:
			result.warnf("%s excludes specified columns but the column filter is empty", table)
		case tableConfig.IncludeMode() == systemcatalog.IncludeAll && len(tableConfig.ColumnFilter()) > 0:
			result.warnf("%s includes all columns, the column filter is ignored", table)
		}
		if databaseName != "" && table.Database() != databaseName {
			result.warnf("%s doesn't belong to the configured database '%s'", table, databaseName)
		}

		aggregate.tables = append(aggregate.tables, tableConfig)
	}

	sort.Slice(aggregate.tables, func(i, j int) bool {
		return aggregate.tables[i].Table().CanonicalName() < aggregate.tables[j].Table().CanonicalName()
	})

	validateSink(c, result)

	pattern := config.GetOrDefault(c, config.PropertyTopicPattern, topic.DefaultPattern)
	if !topic.HasPlaceholders(pattern) {
		result.errorf("topic pattern '%s' must contain the {database} and {table} placeholders", pattern)
	}

	lifecycleTopic := config.GetOrDefault(c, config.PropertyTopicLifecycle, topic.DefaultLifecycle)
	if err := topic.ValidateTopicName(lifecycleTopic); err != nil {
		result.errorf("lifecycle topic: %s", err)
	}

	if attempts := config.GetOrDefault(c, config.PropertyPublisherAttempts, 3); attempts < 1 {
		result.errorf("publisher.attempts must be at least 1, got %d", attempts)
	}

	return aggregate, result
}

func validateSink(
	c *config.Config, result *ValidationResult,
) {

	sinkType := config.GetOrDefault(c, config.PropertySink, config.Kafka)
	switch sinkType {
	case config.Kafka:
		brokers := lo.Filter(config.GetOrDefault(c, config.PropertyKafkaBrokers, []string{}),
			func(broker string, _ int) bool {
				return strings.TrimSpace(broker) != ""
			},
		)
		if len(brokers) == 0 {
			result.errorf("sink.kafka.brokers must list at least one broker")
		}
	case config.NATS:
		if config.GetOrDefault(c, config.PropertyNatsAddress, "") == "" {
			result.errorf("sink.nats.address is required")
		}
	case config.Redis:
		if config.GetOrDefault(c, config.PropertyRedisAddress, "") == "" {
			result.warnf("sink.redis.address is not set, using localhost:6379")
		}
	case config.AwsKinesis:
		if config.GetOrDefault[*string](c, config.PropertyKinesisStreamName, nil) == nil {
			result.errorf("sink.kinesis.stream.name is required")
		}
	case config.AwsSQS:
		if config.GetOrDefault[*string](c, config.PropertySqsQueueUrl, nil) == nil {
			result.errorf("sink.sqs.queue.url is required")
		}
	case config.Http:
		if config.GetOrDefault(c, config.PropertyHttpUrl, "") == "" {
			result.errorf("sink.http.url is required")
		}
	case config.Stdout:
	default:
		result.errorf("unknown sink type '%s'", sinkType)
	}
}

func (a *Aggregate) Config() *config.Config {
	return a.config
}

func (a *Aggregate) Tables() []*systemcatalog.TableConfig {
	return append([]*systemcatalog.TableConfig(nil), a.tables...)
}

func (a *Aggregate) TableIdentifiers() []systemcatalog.TableIdentifier {
	return lo.Map(a.tables, func(table *systemcatalog.TableConfig, _ int) systemcatalog.TableIdentifier {
		return table.Table()
	})
}

func (a *Aggregate) LoadedAt() time.Time {
	return a.loadedAt
}

type Diff struct {
	Added   []systemcatalog.TableIdentifier
	Removed []systemcatalog.TableIdentifier
	// Changed is set when anything besides the table set
	// differs, including settings of retained tables.
	Changed bool
}

func (d Diff) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || d.Changed
}

// Compare computes the difference from the previous revision
// to this one. Tables are compared by identifier.
func (a *Aggregate) Compare(
	previous *Aggregate,
) Diff {

	if previous == nil {
		return Diff{Added: a.TableIdentifiers(), Changed: true}
	}

	oldTables := lo.SliceToMap(previous.tables, func(table *systemcatalog.TableConfig) (systemcatalog.TableIdentifier, *systemcatalog.TableConfig) {
		return table.Table(), table
	})
	newTables := lo.SliceToMap(a.tables, func(table *systemcatalog.TableConfig) (systemcatalog.TableIdentifier, *systemcatalog.TableConfig) {
		return table.Table(), table
	})

	removed, added := lo.Difference(previous.TableIdentifiers(), a.TableIdentifiers())
	diff := Diff{
		Added:   added,
		Removed: removed,
	}

	for table, newTable := range newTables {
		if oldTable, present := oldTables[table]; present && !oldTable.Equal(newTable) {
			diff.Changed = true
		}
	}

	if !diff.Changed {
		diff.Changed = !SettingsEqual(previous.config, a.config)
	}
	return diff
}

// SettingsEqual returns true if both configurations are equal
// apart from their table definitions.
func SettingsEqual(
	a, b *config.Config,
) bool {

	return reflect.DeepEqual(withoutTables(a), withoutTables(b))
}

func withoutTables(
	c *config.Config,
) config.Config {

	copied := *c
	copied.Tables = nil
	return copied
}
