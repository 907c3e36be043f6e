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

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/noctarius/cdc-relay/internal/configwatching"
	"github.com/noctarius/cdc-relay/internal/logging"
	"github.com/noctarius/cdc-relay/internal/relay"
	"github.com/noctarius/cdc-relay/internal/supporting"
	"github.com/noctarius/cdc-relay/internal/version"
	spiconfig "github.com/noctarius/cdc-relay/spi/config"
	"github.com/urfave/cli"
)

const shutdownTimeout = 2 * time.Minute

var (
	configurationFile string
	verbose           bool
	withCaller        bool
	logToStdErr       bool
	versionOnly       bool
	profiling         bool
)

func main() {
	app := &cli.App{
		Name:  version.BinName,
		Usage: "CDC (Change Data Capture) relay from database change streams to message buses",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config,c",
				Value:       "",
				Usage:       "Load configuration from `FILE`",
				Destination: &configurationFile,
			},
			&cli.BoolFlag{
				Name:        "verbose",
				Usage:       "Show verbose output",
				Destination: &verbose,
			},
			&cli.BoolFlag{
				Name:        "caller",
				Usage:       "Collect caller information for log messages",
				Destination: &withCaller,
			},
			&cli.BoolFlag{
				Name:        "log-to-stderr",
				Usage:       "Redirects logging output to stderr, necessary when using StdOut as the sink",
				Destination: &logToStdErr,
			},
			&cli.BoolFlag{
				Name:        "version",
				Usage:       "Prints the version and exits",
				Destination: &versionOnly,
			},
			&cli.BoolFlag{
				Name:        "profiling",
				Usage:       "Enables the Go profiler",
				Destination: &profiling,
			},
		},
		Action: start,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func start(*cli.Context) error {
	fmt.Fprintf(os.Stderr, "%s version %s (git revision %s; branch %s)\n",
		version.BinName, version.Version, version.CommitHash, version.Branch,
	)

	if versionOnly {
		return nil
	}

	if profiling {
		cpuProfile, err := os.Create("cpu.prof")
		if err != nil {
			return supporting.AdaptError(err, 2)
		}
		if err := pprof.StartCPUProfile(cpuProfile); err != nil {
			return supporting.AdaptError(err, 2)
		}
		defer pprof.StopCPUProfile()
	}

	logging.WithCaller = withCaller
	logging.WithVerbose = verbose

	// No configuration file set? Try env variable!
	if configurationFile == "" {
		if cf, present := os.LookupEnv("CDC_RELAY_CONFIG"); present {
			fmt.Fprintf(os.Stderr, "Using configuration file from environment variable\n")
			configurationFile = cf
		}
	}

	if configurationFile == "" {
		return cli.NewExitError("Configuration file required (--config or CDC_RELAY_CONFIG)", 3)
	}

	fmt.Fprintf(os.Stderr, "Loading configuration file: %s\n", configurationFile)
	config, err := spiconfig.LoadFile(configurationFile)
	if err != nil {
		return supporting.AdaptErrorWithMessage(err, "Configuration file couldn't be loaded", 4)
	}

	if err := logging.InitializeLogging(config, logToStdErr); err != nil {
		return supporting.AdaptError(err, 5)
	}

	r, err := relay.NewRelay(configwatching.FileLoader(configurationFile))
	if err != nil {
		return supporting.AdaptErrorWithMessage(err, "Relay couldn't be created", 6)
	}

	if err := r.Start(context.Background()); err != nil {
		return supporting.AdaptErrorWithMessage(err, "Relay couldn't be started", 7)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	var failure error
	select {
	case <-signals:
	case failure = <-r.Failures():
		fmt.Fprintf(os.Stderr, "Capture engine failed: %v\n", failure)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := r.Stop(ctx); err != nil {
		return supporting.AdaptErrorWithMessage(err, "Hard error when stopping the relay", 1)
	}
	if failure != nil {
		return supporting.AdaptError(failure, 10)
	}
	return nil
}
