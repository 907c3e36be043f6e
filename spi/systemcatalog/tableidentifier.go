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

package systemcatalog

import (
	stderrors "errors"
	"strings"

	"github.com/go-errors/errors"
	"github.com/goccy/go-json"
)

var ErrInvalidTableIdentifier = stderrors.New("invalid table identifier")

// TableIdentifier identifies a monitored table by database,
// optional schema and table name. Instances are immutable.
type TableIdentifier struct {
	database string
	schema   string
	table    string
}

// NewTableIdentifier creates a new TableIdentifier. The database
// and table names must not be blank, the schema is optional.
func NewTableIdentifier(
	database, schema, table string,
) (TableIdentifier, error) {

	database = strings.TrimSpace(database)
	schema = strings.TrimSpace(schema)
	table = strings.TrimSpace(table)

	if database == "" {
		return TableIdentifier{}, errors.WrapPrefix(ErrInvalidTableIdentifier, "database must not be blank", 0)
	}
	if table == "" {
		return TableIdentifier{}, errors.WrapPrefix(ErrInvalidTableIdentifier, "table must not be blank", 0)
	}

	return TableIdentifier{
		database: database,
		schema:   schema,
		table:    table,
	}, nil
}

// MustTableIdentifier is like NewTableIdentifier but panics
// on invalid input
func MustTableIdentifier(
	database, schema, table string,
) TableIdentifier {

	tableId, err := NewTableIdentifier(database, schema, table)
	if err != nil {
		panic(err)
	}
	return tableId
}

// ParseTableIdentifier parses a canonical name in the form of
// database.table or database.schema.table
func ParseTableIdentifier(
	canonicalName string,
) (TableIdentifier, error) {

	tokens := strings.Split(canonicalName, ".")
	switch len(tokens) {
	case 2:
		return NewTableIdentifier(tokens[0], "", tokens[1])
	case 3:
		return NewTableIdentifier(tokens[0], tokens[1], tokens[2])
	}
	return TableIdentifier{}, errors.WrapPrefix(
		ErrInvalidTableIdentifier, "failed parsing canonical name '"+canonicalName+"'", 0,
	)
}

func (t TableIdentifier) Database() string {
	return t.database
}

// Schema returns the schema name, or an empty
// string when no schema is present
func (t TableIdentifier) Schema() string {
	return t.schema
}

func (t TableIdentifier) HasSchema() bool {
	return t.schema != ""
}

func (t TableIdentifier) Table() string {
	return t.table
}

func (t TableIdentifier) IsZero() bool {
	return t.database == "" && t.table == ""
}

// CanonicalName returns the fully qualified name of the
// table, database.schema.table if a schema is present,
// otherwise database.table
func (t TableIdentifier) CanonicalName() string {
	if t.schema == "" {
		return t.database + "." + t.table
	}
	return t.database + "." + t.schema + "." + t.table
}

func (t TableIdentifier) String() string {
	return t.CanonicalName()
}

type tableIdentifierJson struct {
	Database string  `json:"database"`
	Schema   *string `json:"schema"`
	Table    string  `json:"table"`
}

func (t TableIdentifier) MarshalJSON() ([]byte, error) {
	var schema *string
	if t.schema != "" {
		schema = &t.schema
	}
	return json.Marshal(tableIdentifierJson{
		Database: t.database,
		Schema:   schema,
		Table:    t.table,
	})
}

func (t *TableIdentifier) UnmarshalJSON(
	data []byte,
) error {

	var raw tableIdentifierJson
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, 0)
	}

	schema := ""
	if raw.Schema != nil {
		schema = *raw.Schema
	}

	tableId, err := NewTableIdentifier(raw.Database, schema, raw.Table)
	if err != nil {
		return err
	}
	*t = tableId
	return nil
}
