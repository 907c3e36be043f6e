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

package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/noctarius/cdc-relay/spi/config"
	"github.com/noctarius/cdc-relay/spi/sink"
)

func init() {
	sink.RegisterSink(config.Stdout, func(_ *config.Config) (sink.Sink, error) {
		return newStdoutSink(os.Stdout), nil
	})
}

// stdoutSink prints one line per event in the form
// "topic<TAB>key<TAB>payload".
type stdoutSink struct {
	mutex  sync.Mutex
	writer io.Writer
}

func newStdoutSink(
	writer io.Writer,
) *stdoutSink {

	return &stdoutSink{
		writer: writer,
	}
}

func (s *stdoutSink) Start() error {
	return nil
}

func (s *stdoutSink) Stop() error {
	return nil
}

func (s *stdoutSink) Emit(
	_ context.Context, _ time.Time, topicName string, key string, payload []byte,
) error {

	s.mutex.Lock()
	defer s.mutex.Unlock()
	_, err := fmt.Fprintf(s.writer, "%s\t%s\t%s\n", topicName, key, payload)
	return err
}
