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

package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/noctarius/cdc-relay/spi/statestorage"
	"github.com/noctarius/cdc-relay/spi/values"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePosition(
	t *testing.T, sourcePartition string, entries ...statestorage.OffsetEntry,
) *statestorage.Position {

	position, err := statestorage.NewPosition(sourcePartition, entries...)
	require.NoError(t, err)
	return position
}

func Test_Writing_Reading_Positions(
	t *testing.T,
) {

	path := filepath.Join(t.TempDir(), "offsets")

	foo := makePosition(t, "foo",
		statestorage.OffsetEntry{Key: "lsn", Value: values.Integer(1000000)},
		statestorage.OffsetEntry{Key: "ts_ms", Value: values.Integer(1672531200000)},
		statestorage.OffsetEntry{Key: "snapshot", Value: values.Boolean(true)},
	)
	bar := makePosition(t, "bar",
		statestorage.OffsetEntry{Key: "file", Value: values.String("binlog.000003")},
		statestorage.OffsetEntry{Key: "pos", Value: values.Integer(4711)},
	)
	baz := makePosition(t, "baz",
		statestorage.OffsetEntry{Key: "sequence", Value: values.Float(3000.5)},
		statestorage.OffsetEntry{Key: "extra", Value: values.Null()},
	)

	offsetStorage, err := NewFileStateStorage(path)
	require.NoError(t, err, "failed to instantiate FileStateStorage")
	require.NoError(t, offsetStorage.Start(), "failed starting FileStateStorage")

	require.NoError(t, offsetStorage.Save(foo), "failed saving foo")
	require.NoError(t, offsetStorage.Save(bar), "failed saving bar")
	require.NoError(t, offsetStorage.Save(baz), "failed saving baz")

	// write through, the file exists before stopping
	_, err = os.Stat(path)
	require.NoError(t, err)

	positions, err := offsetStorage.LoadAll()
	require.NoError(t, err, "failed loading positions")
	assert.Equal(t, 3, len(positions), "positions has unexpected length")

	require.NoError(t, offsetStorage.Stop(), "failed stopping FileStateStorage")

	secondOffsetStorage, err := NewFileStateStorage(path)
	require.NoError(t, err, "failed to instantiate FileStateStorage")
	require.NoError(t, secondOffsetStorage.Start(), "failed starting FileStateStorage")

	for _, expected := range []*statestorage.Position{foo, bar, baz} {
		position, present, err := secondOffsetStorage.Load(expected.SourcePartition())
		require.NoError(t, err)
		require.True(t, present)
		assert.True(t, expected.Equal(position), "expected %s, got %s", expected, position)
		assert.Equal(t, expected.Keys(), position.Keys())
	}
}

func Test_Save_Replaces_And_Delete_Removes(
	t *testing.T,
) {

	path := filepath.Join(t.TempDir(), "nested", "offsets")

	offsetStorage, err := NewFileStateStorage(path)
	require.NoError(t, err)
	require.NoError(t, offsetStorage.Start())

	first := makePosition(t, "shop", statestorage.OffsetEntry{Key: "lsn", Value: values.Integer(1)})
	second := makePosition(t, "shop", statestorage.OffsetEntry{Key: "lsn", Value: values.Integer(2)})

	require.NoError(t, offsetStorage.Save(first))
	require.NoError(t, offsetStorage.Save(second))

	position, present, err := offsetStorage.Load("shop")
	require.NoError(t, err)
	require.True(t, present)
	assert.True(t, second.Equal(position))

	require.NoError(t, offsetStorage.Delete("shop"))
	_, present, err = offsetStorage.Load("shop")
	require.NoError(t, err)
	assert.False(t, present)

	reopened, err := NewFileStateStorage(path)
	require.NoError(t, err)
	require.NoError(t, reopened.Start())
	positions, err := reopened.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func Test_Path_Is_Directory(
	t *testing.T,
) {

	_, err := NewFileStateStorage(t.TempDir())
	assert.ErrorContains(t, err, "exists already but is not a file")
}
