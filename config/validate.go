// Copyright 2026 neucf Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"github.com/go-playground/validator/v10"
	"github.com/juju/errors"
)

// Validate checks field constraints and cross-field rules the tags cannot
// express.
func (config *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return errors.Annotate(err, "invalid config")
	}
	if config.Dataset.Name == "" && config.Dataset.Path == "" {
		return errors.Errorf("invalid config: either dataset.name or dataset.path is required")
	}
	if config.Model.Layers[0]%2 != 0 {
		return errors.Errorf("invalid config: model.layers[0] must be even, got %d",
			config.Model.Layers[0])
	}
	if config.Pretrain.Enabled() && config.Model.Variant != "neumf" {
		return errors.Errorf("invalid config: pretrain requires model.variant = neumf, got %s",
			config.Model.Variant)
	}
	return nil
}
