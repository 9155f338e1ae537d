/*
 * Copyright 2024 The Strata Authors
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

// Package logging provides a structured logger for application-wide use
package logging

import (
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/stratacache/strata/pkg/observability/logging/level"
	"github.com/stratacache/strata/pkg/observability/logging/options"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

var _ Logger = &logger{}

// Logger describes the logging surface used throughout Strata
type Logger interface {
	SetLogLevel(level.Level)
	Level() level.Level
	Close()
	//
	Log(logLevel level.Level, event string, detail Pairs)
	Debug(event string, detail Pairs)
	Info(event string, detail Pairs)
	Warn(event string, detail Pairs)
	Error(event string, detail Pairs)
	Fatal(code int, event string, detail Pairs)
	//
	WarnOnce(key, event string, detail Pairs) bool
	HasWarnedOnce(key string) bool
}

// Pairs represents a key=value pair that helps to describe a log event
type Pairs map[string]any

// New returns a Logger for the provided logging configuration
func New(o *options.Options) Logger {
	l := &logger{now: time.Now}
	if o.LogFile == "" {
		l.writer = os.Stdout
	} else {
		lj := &lumberjack.Logger{
			Filename:   o.LogFile,
			MaxSize:    256, // megabytes
			MaxBackups: 80,
			MaxAge:     7, // days
			Compress:   true,
		}
		l.writer = lj
		l.closer = lj
	}
	l.SetLogLevel(level.Level(o.LogLevel))
	return l
}

// ConsoleLogger returns a Logger that writes to stdout at the given level
func ConsoleLogger(logLevel level.Level) Logger {
	l := &logger{
		writer: os.Stdout,
		now:    time.Now,
	}
	l.SetLogLevel(logLevel)
	return l
}

// StreamLogger returns a Logger that writes to the provided writer
func StreamLogger(w io.Writer, logLevel level.Level) Logger {
	l := &logger{
		writer: w,
		now:    time.Now,
	}
	if c, ok := w.(io.Closer); ok && w != os.Stdout && w != os.Stderr {
		l.closer = c
	}
	l.SetLogLevel(logLevel)
	return l
}

// NoopLogger returns a Logger that discards all events
func NoopLogger() Logger {
	return &logger{
		levelID: level.InfoID,
		level:   level.Info,
		now:     time.Now,
	}
}

type logger struct {
	level          level.Level
	levelID        level.ID
	writer         io.Writer
	closer         io.Closer
	mtx            sync.Mutex
	onceRanEntries sync.Map
	now            func() time.Time
}

func (l *logger) SetLogLevel(logLevel level.Level) {
	id := level.GetID(logLevel)
	if id == 0 {
		l.WarnOnce("loglevel."+string(logLevel),
			"unknown log level; using INFO",
			Pairs{"providedLevel": logLevel})
		logLevel = level.Info
		id = level.InfoID
	}
	l.level = logLevel
	l.levelID = id
}

func (l *logger) Level() level.Level {
	return l.level
}

func (l *logger) Log(logLevel level.Level, event string, detail Pairs) {
	lid := level.GetID(logLevel)
	if lid == 0 || lid < l.levelID {
		return
	}
	l.log(logLevel, event, detail)
}

func (l *logger) logConditionally(logLevel level.Level, levelID level.ID, event string, detail Pairs) {
	if l.levelID > levelID {
		return
	}
	l.log(logLevel, event, detail)
}

func (l *logger) Debug(event string, detail Pairs) {
	l.logConditionally(level.Debug, level.DebugID, event, detail)
}

func (l *logger) Info(event string, detail Pairs) {
	l.logConditionally(level.Info, level.InfoID, event, detail)
}

func (l *logger) Warn(event string, detail Pairs) {
	l.logConditionally(level.Warn, level.WarnID, event, detail)
}

func (l *logger) Error(event string, detail Pairs) {
	l.logConditionally(level.Error, level.ErrorID, event, detail)
}

func (l *logger) Fatal(code int, event string, detail Pairs) {
	l.log(level.Fatal, event, detail)
	if code < 0 {
		// tests send a negative code to avoid exiting the test process
		return
	}
	if code == 0 {
		code = 1
	}
	os.Exit(code)
}

// WarnOnce logs the event at Warn no more than once per key
func (l *logger) WarnOnce(key, event string, detail Pairs) bool {
	if level.WarnID < l.levelID || l.HasWarnedOnce(key) {
		return false
	}
	_, loaded := l.onceRanEntries.LoadOrStore("warn."+key, true)
	if !loaded {
		l.log(level.Warn, event, detail)
	}
	return !loaded
}

func (l *logger) HasWarnedOnce(key string) bool {
	_, ok := l.onceRanEntries.Load("warn." + key)
	return ok
}

const (
	space   = " "
	equal   = "="
	newline = "\n"
)

func (l *logger) log(logLevel level.Level, event string, detail Pairs) {
	if l.writer == nil {
		return
	}
	ts := l.now()
	keys := make([]string, 0, len(detail))
	for k := range detail {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	sb := &strings.Builder{}
	sb.WriteString("time=" + ts.UTC().Format(time.RFC3339Nano))
	sb.WriteString(space + "app=strata")
	sb.WriteString(space + "level=" + string(logLevel))
	sb.WriteString(space + "event=" + quoteIfNeeded(event))
	for _, k := range keys {
		sb.WriteString(space + k + equal + quoteIfNeeded(formatValue(detail[k])))
	}
	sb.WriteString(newline)

	l.mtx.Lock()
	l.writer.Write([]byte(sb.String()))
	l.mtx.Unlock()
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case error:
		return t.Error()
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Duration:
		return t.String()
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		if s, ok := v.(interface{ String() string }); ok {
			return s.String()
		}
		return "<unsupported>"
	}
}

func quoteIfNeeded(s string) string {
	if strings.ContainsAny(s, " \t\"") {
		return strconv.Quote(s)
	}
	return s
}

// Close releases the logger's underlying writer when it holds one
func (l *logger) Close() {
	if l.closer != nil {
		l.closer.Close()
	}
}
