// Copyright 2019 The Mangos Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logging configures the ambient structured logger that
// cmd/someipd logs through. The core codec packages (wire, someip, sd,
// tp) and the protocol/transport packages do not import this package.
package logging

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Environment variable overrides, checked once at Configure time.
const (
	EnvLogLevel     = "SOMEIP_LOG_LEVEL"
	EnvLogNoColor   = "SOMEIP_LOG_NOCOLOR"
	EnvLogTimestamp = "SOMEIP_LOG_TIMESTAMP"
)

// Profile selects the default level/format pair Configure starts from
// before env overrides are applied.
type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

var (
	configureOnce sync.Once
	logger        zerolog.Logger
)

// ConfigureRuntime configures the package logger for normal operation:
// info level, timestamps on.
func ConfigureRuntime() { Configure(ProfileRuntime) }

// ConfigureTests configures the package logger for test runs: debug
// level, no timestamps (keeps `go test -v` output diffable).
func ConfigureTests() { Configure(ProfileTest) }

// Configure sets up the global logger exactly once; later calls in the
// same process are no-ops, matching zerolog's own global-logger idiom.
func Configure(profile Profile) {
	configureOnce.Do(func() {
		level := zerolog.InfoLevel
		timestamp := true
		if profile == ProfileTest {
			level = zerolog.DebugLevel
			timestamp = false
		}
		if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
			level = lvl
		}
		if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
			timestamp = v
		}
		noColor := !isatty.IsTerminal(os.Stderr.Fd())
		if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
			noColor = v
		}

		out := colorable.NewColorable(os.Stderr)
		writer := zerolog.ConsoleWriter{Out: out, NoColor: noColor}
		if !timestamp {
			writer.PartsExclude = []string{zerolog.TimestampFieldName}
		}

		zerolog.SetGlobalLevel(level)
		logger = zerolog.New(writer).With().Logger()
		if timestamp {
			logger = logger.With().Timestamp().Logger()
		}
	})
}

// Get returns the configured logger, configuring it for runtime use on
// first call if no earlier Configure call has run.
func Get() *zerolog.Logger {
	ConfigureRuntime()
	return &logger
}

// Named returns a child logger tagged with a "component" field, the
// convention every boundary package uses to identify its log lines
// (e.g. logging.Named("xreq_someip")).
func Named(component string) zerolog.Logger {
	return Get().With().Str("component", component).Logger()
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
