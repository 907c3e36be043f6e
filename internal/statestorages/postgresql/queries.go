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

package postgresql

const (
	probeTableQuery = `SELECT 1 FROM %s LIMIT 1`

	createTableQuery = `
CREATE TABLE IF NOT EXISTS %s (
    source_partition TEXT PRIMARY KEY,
    offset_data      BYTEA NOT NULL,
    saved_at         TIMESTAMPTZ NOT NULL
)`

	upsertPositionQuery = `
INSERT INTO %s (source_partition, offset_data, saved_at)
VALUES ($1, $2, $3)
ON CONFLICT (source_partition) DO UPDATE
SET offset_data = EXCLUDED.offset_data, saved_at = EXCLUDED.saved_at`

	selectPositionQuery = `SELECT offset_data FROM %s WHERE source_partition = $1`

	selectPositionsQuery = `SELECT source_partition, offset_data FROM %s`

	deletePositionQuery = `DELETE FROM %s WHERE source_partition = $1`
)
