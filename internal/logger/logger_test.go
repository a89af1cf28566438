// Copyright 2023 Google Inc. All Rights Reserved.
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

package logger

import (
	"bytes"
	"log/slog"
	"regexp"
	"testing"

	"github.com/pintosfs/filesys/cfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

const (
	textInfoString  = "^time=[a-zA-Z0-9/:.+\\-]+ severity=INFO msg=www.infoExample.com"
	textErrorString = "^time=[a-zA-Z0-9/:.+\\-]+ severity=ERROR msg=www.errorExample.com"
)

type LoggerTest struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTest))
}

func redirectLogsToGivenBuffer(buf *bytes.Buffer, level cfg.LogSeverity) {
	var programLevel = new(slog.LevelVar)
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(buf, programLevel, ""))
	setLoggingLevel(level, programLevel)
}

func (t *LoggerTest) TestTextFormatLogs_LogLevelERROR() {
	defaultLoggerFactory.format = "text"
	var buf bytes.Buffer
	redirectLogsToGivenBuffer(&buf, cfg.ErrorLogSeverity)

	Infof("www.infoExample.com")
	assert.Equal(t.T(), "", buf.String())

	buf.Reset()
	Errorf("www.errorExample.com")
	assert.True(t.T(), regexp.MustCompile(textErrorString).MatchString(buf.String()))
}

func (t *LoggerTest) TestTextFormatLogs_LogLevelINFO() {
	defaultLoggerFactory.format = "text"
	var buf bytes.Buffer
	redirectLogsToGivenBuffer(&buf, cfg.InfoLogSeverity)

	Infof("www.infoExample.com")
	assert.True(t.T(), regexp.MustCompile(textInfoString).MatchString(buf.String()))
}

func (t *LoggerTest) TestSetLoggingLevel() {
	testData := []struct {
		inputLevel    cfg.LogSeverity
		expectedLevel slog.Level
	}{
		{cfg.TraceLogSeverity, LevelTrace},
		{cfg.DebugLogSeverity, LevelDebug},
		{cfg.WarningLogSeverity, LevelWarn},
		{cfg.ErrorLogSeverity, LevelError},
		{cfg.OffLogSeverity, LevelOff},
	}

	for _, test := range testData {
		v := new(slog.LevelVar)
		setLoggingLevel(test.inputLevel, v)
		assert.Equal(t.T(), test.expectedLevel, v.Level())
	}
}

func (t *LoggerTest) TestSetLogFormatToText() {
	SetLogFormat("text")
	assert.Equal(t.T(), "text", defaultLoggerFactory.format)

	SetLogFormat("bogus")
	assert.Equal(t.T(), "json", defaultLoggerFactory.format)
}
