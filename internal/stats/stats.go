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

package stats

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-errors/errors"
	"github.com/noctarius/cdc-relay/internal/logging"
	"github.com/noctarius/cdc-relay/internal/version"
	"github.com/noctarius/cdc-relay/spi/config"
	"github.com/segmentio/stats/v4"
	"github.com/segmentio/stats/v4/procstats"
	"github.com/segmentio/stats/v4/prometheus"
)

const defaultAddress = ":8081"

// Service exposes the relay metrics in the prometheus text
// format on /metrics.
type Service struct {
	statsEnabled     bool
	runtimeEnabled   bool
	handler          *prometheus.Handler
	engine           *stats.Engine
	server           *http.Server
	runtimeCollector io.Closer
	logger           *logging.Logger
}

func NewStatsService(
	c *config.Config,
) (*Service, error) {

	logger, err := logging.NewLogger("StatsService")
	if err != nil {
		return nil, err
	}

	statsHandler := &prometheus.Handler{
		TrimPrefix: version.BinName,
	}

	statsEnabled := config.GetOrDefault(c, config.PropertyStatsEnabled, true)
	runtimeEnabled := config.GetOrDefault(c, config.PropertyRuntimeStatsEnabled, true)
	address := config.GetOrDefault(c, config.PropertyStatsAddress, defaultAddress)

	engine := stats.NewEngine(version.BinName, statsHandler)

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", statsHandler.ServeHTTP)

	return &Service{
		statsEnabled:   statsEnabled,
		runtimeEnabled: runtimeEnabled,
		handler:        statsHandler,
		engine:         engine,
		server: &http.Server{
			Addr:              address,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}, nil
}

func (s *Service) Start() error {
	if !s.statsEnabled {
		return nil
	}

	if s.runtimeEnabled {
		s.runtimeCollector = procstats.StartCollector(procstats.NewGoMetricsWith(s.engine))
	}

	go func() {
		s.logger.Infof("Serving metrics on %s/metrics", s.server.Addr)
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("Metrics endpoint failed: %+v", err)
		}
	}()
	return nil
}

func (s *Service) Stop() error {
	if !s.statsEnabled {
		return nil
	}
	if s.runtimeCollector != nil {
		if err := s.runtimeCollector.Close(); err != nil {
			s.logger.Warnf("Failed stopping runtime metrics collector: %+v", err)
		}
	}
	s.engine.Flush()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Handler returns the prometheus handler, serving the
// same content as the /metrics endpoint.
func (s *Service) Handler() http.Handler {
	return s.handler
}

func (s *Service) NewReporter(
	prefix string,
) *Reporter {

	return &Reporter{
		statsEnabled: s.statsEnabled,
		engine:       s.engine.WithPrefix(prefix),
	}
}
