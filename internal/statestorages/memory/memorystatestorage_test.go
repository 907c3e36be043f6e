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

package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/noctarius/cdc-relay/spi/statestorage"
	"github.com/noctarius/cdc-relay/spi/values"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Concurrent_Saves_Across_Partitions(
	t *testing.T,
) {

	storage := NewMemoryStateStorage()
	require.NoError(t, storage.Start())

	group := sync.WaitGroup{}
	for p := 0; p < 8; p++ {
		group.Add(1)
		go func(partition string) {
			defer group.Done()
			for i := 1; i <= 100; i++ {
				position, err := statestorage.NewPosition(
					partition, statestorage.OffsetEntry{Key: "lsn", Value: values.Integer(int64(i))},
				)
				if err != nil {
					t.Error(err)
					return
				}
				if err := storage.Save(position); err != nil {
					t.Error(err)
					return
				}
			}
		}(fmt.Sprintf("db%d", p))
	}
	group.Wait()

	positions, err := storage.LoadAll()
	require.NoError(t, err)
	assert.Len(t, positions, 8)
	for _, position := range positions {
		lsn, present := position.Get("lsn")
		require.True(t, present)
		assert.Equal(t, values.Integer(100), lsn)
	}

	require.NoError(t, storage.Delete("db0"))
	_, present, err := storage.Load("db0")
	require.NoError(t, err)
	assert.False(t, present)
}
