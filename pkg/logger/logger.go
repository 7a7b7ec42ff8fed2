/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package logger provides JSON structured logging using zerolog
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level      string `json:"level"`
	Debug      bool   `json:"debug"`
	Output     string `json:"output"`
	TimeFormat string `json:"time_format"`
}

// zeroLogger implements the Logger interface without global state.
type zeroLogger struct {
	logger zerolog.Logger
}

// New creates a logger instance that can be injected into services.
func New(config *Config) (Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	var output io.Writer = os.Stdout
	if config.Output == "stderr" {
		output = os.Stderr
	}

	level := zerolog.InfoLevel
	if config.Debug {
		level = zerolog.DebugLevel
	} else if config.Level != "" {
		var err error

		level, err = zerolog.ParseLevel(config.Level)
		if err != nil {
			return nil, err
		}
	}

	timeFormat := time.RFC3339
	if config.TimeFormat != "" {
		timeFormat = config.TimeFormat
	}

	zerolog.TimeFieldFormat = timeFormat

	zlog := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &zeroLogger{logger: zlog}, nil
}

// NewWithComponent creates a logger with a component field attached to every event.
func NewWithComponent(component string, config *Config) (Logger, error) {
	base, err := New(config)
	if err != nil {
		return nil, err
	}

	zl := base.(*zeroLogger)

	return &zeroLogger{
		logger: zl.logger.With().Str("component", component).Logger(),
	}, nil
}

func (l *zeroLogger) Trace() *zerolog.Event {
	return l.logger.Trace()
}

func (l *zeroLogger) Debug() *zerolog.Event {
	return l.logger.Debug()
}

func (l *zeroLogger) Info() *zerolog.Event {
	return l.logger.Info()
}

func (l *zeroLogger) Warn() *zerolog.Event {
	return l.logger.Warn()
}

func (l *zeroLogger) Error() *zerolog.Event {
	return l.logger.Error()
}

func (l *zeroLogger) Fatal() *zerolog.Event {
	return l.logger.Fatal()
}

func (l *zeroLogger) Panic() *zerolog.Event {
	return l.logger.Panic()
}

func (l *zeroLogger) With() zerolog.Context {
	return l.logger.With()
}

func (l *zeroLogger) WithComponent(component string) zerolog.Logger {
	return l.logger.With().Str("component", component).Logger()
}

func (l *zeroLogger) WithFields(fields map[string]interface{}) zerolog.Logger {
	ctx := l.logger.With()
	for key, value := range fields {
		ctx = ctx.Interface(key, value)
	}

	return ctx.Logger()
}

func (l *zeroLogger) SetLevel(level zerolog.Level) {
	l.logger = l.logger.Level(level)
}

func (l *zeroLogger) SetDebug(debug bool) {
	if debug {
		l.SetLevel(zerolog.DebugLevel)
	} else {
		l.SetLevel(zerolog.InfoLevel)
	}
}
