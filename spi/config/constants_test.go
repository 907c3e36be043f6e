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
package config

import (
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Constants_Properties(
	t *testing.T,
) {

	properties := parseProperties(t)
	require.NotEmpty(t, properties)

	for name, property := range properties {
		element := reflect.TypeOf(Config{})
		for _, segment := range strings.Split(property, ".") {
			field, ok := findPropertyType(element, segment)
			if !ok {
				t.Errorf("Property %s (%s) isn't defined in Config", name, property)
				break
			}
			element = field
		}
	}
}

func Test_Constants_Unique(
	t *testing.T,
) {

	seen := make(map[string]string)
	for name, property := range parseProperties(t) {
		if other, present := seen[property]; present {
			t.Errorf("Property %s is declared by both %s and %s", property, name, other)
		}
		seen[property] = name
	}
}

func parseProperties(
	t *testing.T,
) map[string]string {

	file, err := parser.ParseFile(token.NewFileSet(), "./constants.go", nil, 0)
	require.NoError(t, err)

	properties := make(map[string]string)
	ast.Inspect(file, func(node ast.Node) bool {
		valueSpec, ok := node.(*ast.ValueSpec)
		if !ok || len(valueSpec.Values) == 0 {
			return true
		}

		name := valueSpec.Names[0].Name
		if !strings.HasPrefix(name, "Property") {
			return true
		}

		literal, ok := valueSpec.Values[0].(*ast.BasicLit)
		if !ok || literal.Kind != token.STRING {
			t.Errorf("Property %s isn't a string literal", name)
			return true
		}

		value, err := strconv.Unquote(literal.Value)
		require.NoError(t, err)
		properties[name] = value
		return true
	})
	return properties
}

func findPropertyType(
	element reflect.Type, property string,
) (reflect.Type, bool) {

	for element.Kind() == reflect.Pointer {
		element = element.Elem()
	}
	if element.Kind() != reflect.Struct {
		return nil, false
	}

	for i := 0; i < element.NumField(); i++ {
		f := element.Field(i)
		if f.PkgPath != "" && !f.Anonymous {
			continue
		}
		if f.Tag.Get("toml") == property {
			return f.Type, true
		}
	}
	return nil, false
}
