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
	"fmt"
	"strings"
)

const maxTopicNameLength = 249

type InvalidTopicNameError struct {
	Name   string
	Reason string
}

func (e *InvalidTopicNameError) Error() string {
	return fmt.Sprintf("invalid topic name '%s': %s", e.Name, e.Reason)
}

// ValidateTopicName checks the name against the rules shared
// by the supported transports (Kafka being the strictest).
func ValidateTopicName(
	name string,
) error {

	switch {
	case name == "":
		return &InvalidTopicNameError{Name: name, Reason: "name is empty"}
	case name == "." || name == "..":
		return &InvalidTopicNameError{Name: name, Reason: "'.' and '..' are reserved"}
	case len(name) > maxTopicNameLength:
		return &InvalidTopicNameError{
			Name:   name,
			Reason: fmt.Sprintf("name is longer than %d characters", maxTopicNameLength),
		}
	}

	for _, r := range name {
		if !isValidCharacter(r) {
			return &InvalidTopicNameError{Name: name, Reason: fmt.Sprintf("illegal character '%c'", r)}
		}
	}
	return nil
}

// SanitizeTopicName is a helper to sanitize topic names
// to be as compatible as possible. Illegal characters are
// replaced by underscores, runs of underscores collapse
// into one, and leading or trailing underscores are cut.
func SanitizeTopicName(
	topicName string,
) (topic string, changed bool) {

	builder := strings.Builder{}
	lastUnderscore := false
	for _, r := range topicName {
		if !isValidCharacter(r) {
			changed = true
			r = '_'
		}
		if r == '_' {
			if lastUnderscore {
				changed = true
				continue
			}
			lastUnderscore = true
		} else {
			lastUnderscore = false
		}
		builder.WriteRune(r)
	}

	topic = strings.Trim(builder.String(), "_")
	if len(topic) != builder.Len() {
		changed = true
	}
	return topic, changed
}

func isValidCharacter(
	r rune,
) bool {

	return r == '.' ||
		r == '_' ||
		r == '-' ||
		(r >= 'A' && r <= 'Z') ||
		(r >= 'a' && r <= 'z') ||
		(r >= '0' && r <= '9')
}
