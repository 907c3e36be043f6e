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

package changeevent

import (
	"strings"

	"github.com/go-errors/errors"
)

type Operation string

const (
	Insert Operation = "INSERT"
	Update Operation = "UPDATE"
	Delete Operation = "DELETE"
)

func (o Operation) IsValid() bool {
	switch o {
	case Insert, Update, Delete:
		return true
	}
	return false
}

func (o Operation) String() string {
	return string(o)
}

// ParseOperation parses an operation name. Besides the operation
// names, the single letter codes c, u, d and r (snapshot read,
// relayed as an insert) are accepted.
func ParseOperation(
	value string,
) (Operation, error) {

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "insert", "c", "r":
		return Insert, nil
	case "update", "u":
		return Update, nil
	case "delete", "d":
		return Delete, nil
	}
	return "", errors.WrapPrefix(ErrInvalidChangeEvent, "unknown operation '"+value+"'", 0)
}
