// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cfg

import (
	"testing"

	"github.com/mitchellh/mapstructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, input map[string]interface{}) Config {
	t.Helper()
	var out Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: DecodeHook(),
		Result:     &out,
	})
	require.NoError(t, err)
	require.NoError(t, decoder.Decode(input))
	return out
}

func TestDecodeHookUppercasesLowercaseLogSeverity(t *testing.T) {
	out := decode(t, map[string]interface{}{
		"logging": map[string]interface{}{"severity": "warning"},
	})
	assert.Equal(t, WarningLogSeverity, out.Logging.Severity)
}

func TestDecodeHookRejectsUnknownLogSeverity(t *testing.T) {
	var out Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: DecodeHook(),
		Result:     &out,
	})
	require.NoError(t, err)
	err = decoder.Decode(map[string]interface{}{
		"logging": map[string]interface{}{"severity": "VERBOSE"},
	})
	assert.Error(t, err)
}
