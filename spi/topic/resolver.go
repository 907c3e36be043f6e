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

package topic

import (
	"strings"

	"github.com/go-errors/errors"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/noctarius/cdc-relay/spi/config"
	"github.com/noctarius/cdc-relay/spi/systemcatalog"
)

const (
	DefaultPattern   = "cdc.{database}.{schema}.{table}"
	DefaultLifecycle = "cdc.lifecycle"
	defaultCacheSize = 1024

	placeholderDatabase = "{database}"
	placeholderSchema   = "{schema}"
	placeholderTable    = "{table}"

	unknownComponent = "unknown"
	defaultSchema    = "public"
)

// Resolver derives destination names from table identifiers
// using a naming pattern. Resolved names are cached per table.
type Resolver struct {
	pattern string
	cache   *lru.Cache[systemcatalog.TableIdentifier, string]
}

func NewResolverWithConfig(
	c *config.Config,
) (*Resolver, error) {

	pattern := config.GetOrDefault(c, config.PropertyTopicPattern, DefaultPattern)
	cacheSize := config.GetOrDefault(c, config.PropertyTopicCacheSize, defaultCacheSize)
	return NewResolver(pattern, cacheSize)
}

func NewResolver(
	pattern string, cacheSize int,
) (*Resolver, error) {

	if strings.TrimSpace(pattern) == "" {
		return nil, errors.Errorf("topic pattern must not be empty")
	}
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}

	cache, err := lru.New[systemcatalog.TableIdentifier, string](cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}

	return &Resolver{
		pattern: pattern,
		cache:   cache,
	}, nil
}

func (r *Resolver) Pattern() string {
	return r.pattern
}

// Resolve returns the validated topic name for the given
// table or an *InvalidTopicNameError.
func (r *Resolver) Resolve(
	table systemcatalog.TableIdentifier,
) (string, error) {

	if topicName, present := r.cache.Get(table); present {
		return topicName, nil
	}

	topicName, err := Resolve(r.pattern, table)
	if err != nil {
		return "", err
	}
	r.cache.Add(table, topicName)
	return topicName, nil
}

// Resolve substitutes the {database}, {schema} and {table}
// placeholders of the pattern with the sanitized components
// of the table identifier and validates the result.
func Resolve(
	pattern string, table systemcatalog.TableIdentifier,
) (string, error) {

	replacer := strings.NewReplacer(
		placeholderDatabase, component(table.Database(), unknownComponent),
		placeholderSchema, component(table.Schema(), defaultSchema),
		placeholderTable, component(table.Table(), unknownComponent),
	)

	topicName := replacer.Replace(pattern)
	if err := ValidateTopicName(topicName); err != nil {
		return "", err
	}
	return topicName, nil
}

// HasPlaceholders reports if the pattern references the
// database and the table, which is required to keep topics
// of different tables apart.
func HasPlaceholders(
	pattern string,
) bool {

	return strings.Contains(pattern, placeholderDatabase) &&
		strings.Contains(pattern, placeholderTable)
}

func component(
	value, defaultValue string,
) string {

	sanitized, _ := SanitizeTopicName(strings.TrimSpace(value))
	if sanitized == "" {
		return defaultValue
	}
	return sanitized
}
