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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-errors/errors"
	"gopkg.in/yaml.v3"
)

// LoadFile reads and decodes a configuration file. Files
// ending in .toml are read as TOML, anything else as YAML.
func LoadFile(
	path string,
) (*Config, error) {

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}

	config := &Config{}
	isToml := strings.EqualFold(filepath.Ext(path), ".toml")
	if err := Unmarshall(content, config, isToml); err != nil {
		return nil, errors.WrapPrefix(err, fmt.Sprintf("failed decoding configuration file '%s'", path), 0)
	}
	return config, nil
}

func Unmarshall(
	content []byte, config *Config, toml bool,
) error {

	if toml {
		return fromToml(content, config)
	}
	return fromYaml(content, config)
}

func fromToml(
	content []byte, config *Config,
) error {

	if _, err := toml.Decode(string(content), config); err != nil {
		return errors.Wrap(err, 0)
	}
	return nil
}

func fromYaml(
	content []byte, config *Config,
) error {

	if err := yaml.Unmarshal(content, config); err != nil {
		return errors.Wrap(err, 0)
	}
	return nil
}
