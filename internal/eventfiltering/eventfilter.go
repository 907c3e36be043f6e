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

package eventfiltering

import (
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/go-errors/errors"
	"github.com/gobwas/glob"
	"github.com/noctarius/cdc-relay/spi/changeevent"
	"github.com/noctarius/cdc-relay/spi/config"
)

// EventFilter decides if a canonical event is published. When
// an event is rejected, the name of the rejecting filter is
// returned alongside.
type EventFilter interface {
	Evaluate(
		event *changeevent.CanonicalEvent,
	) (accepted bool, filterName string, err error)
}

type eventFilterFunc func(event *changeevent.CanonicalEvent) (bool, string, error)

func (eff eventFilterFunc) Evaluate(
	event *changeevent.CanonicalEvent,
) (bool, string, error) {

	return eff(event)
}

func NewEventFilterWithConfig(
	c *config.Config,
) (EventFilter, error) {

	return NewEventFilter(c.Filters)
}

func NewEventFilter(
	filterDefinitions map[string]config.EventFilterConfig,
) (EventFilter, error) {

	if len(filterDefinitions) == 0 {
		return acceptAllFilter, nil
	}

	names := make([]string, 0, len(filterDefinitions))
	for name := range filterDefinitions {
		names = append(names, name)
	}
	sort.Strings(names)

	filters := make([]*eventFilter, 0, len(names))
	for _, name := range names {
		def := filterDefinitions[name]

		defaultValue := true
		if def.DefaultValue != nil {
			defaultValue = *def.DefaultValue
		}

		tables := make([]glob.Glob, 0, len(def.Tables))
		for _, pattern := range def.Tables {
			g, err := glob.Compile(strings.TrimSpace(pattern), '.')
			if err != nil {
				return nil, errors.WrapPrefix(err, "filter '"+name+"' has an invalid table pattern", 0)
			}
			tables = append(tables, g)
		}

		prog, err := expr.Compile(def.Condition, expr.AsBool())
		if err != nil {
			return nil, errors.WrapPrefix(err, "filter '"+name+"' has an invalid condition", 0)
		}

		filters = append(filters, &eventFilter{
			name:         name,
			defaultValue: defaultValue,
			condition:    def.Condition,
			tables:       tables,
			prog:         prog,
		})
	}
	return compositeFilter(filters), nil
}

var acceptAllFilter eventFilterFunc = func(_ *changeevent.CanonicalEvent) (bool, string, error) {
	return true, "", nil
}

var compositeFilter = func(filters []*eventFilter) EventFilter {
	return eventFilterFunc(func(event *changeevent.CanonicalEvent) (bool, string, error) {
		var env map[string]any
		for _, filter := range filters {
			if !filter.enabled(event) {
				continue
			}
			if env == nil {
				env = event.Environment()
			}
			success, err := filter.evaluate(env)
			if err != nil {
				return false, filter.name, err
			}
			if !success {
				return false, filter.name, nil
			}
		}
		return true, "", nil
	})
}

type eventFilter struct {
	name         string
	defaultValue bool
	condition    string
	tables       []glob.Glob
	prog         *vm.Program
}

// enabled reports if the filter applies to the event's
// table, no table patterns meaning all tables.
func (f *eventFilter) enabled(
	event *changeevent.CanonicalEvent,
) bool {

	if len(f.tables) == 0 {
		return true
	}
	canonicalName := event.Table().CanonicalName()
	for _, table := range f.tables {
		if table.Match(canonicalName) {
			return true
		}
	}
	return false
}

func (f *eventFilter) evaluate(
	env map[string]any,
) (bool, error) {

	result, err := expr.Run(f.prog, env)
	if err != nil {
		return false, errors.Wrap(err, 0)
	}

	r, ok := result.(bool)
	if !ok {
		return false, errors.Errorf("result of filter «%s» isn't a boolean", f.condition)
	}

	if r {
		return f.defaultValue, nil
	}
	return !f.defaultValue, nil
}
