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
	"fmt"
	"strings"
)

// ValidationError carries every problem found in a
// configuration revision.
type ValidationError struct {
	Problems []string
}

func (v *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(v.Problems, "; "))
}

type ValidationResult struct {
	Errors   []string
	Warnings []string
}

func (v *ValidationResult) Valid() bool {
	return len(v.Errors) == 0
}

// Err returns a *ValidationError if any error was found.
func (v *ValidationResult) Err() error {
	if v.Valid() {
		return nil
	}
	return &ValidationError{Problems: append([]string(nil), v.Errors...)}
}

func (v *ValidationResult) errorf(
	format string, args ...any,
) {

	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

func (v *ValidationResult) warnf(
	format string, args ...any,
) {

	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
