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

// Package level defines the supported logging levels and their severity
// ordering
package level

// Level is the name of a logging level
type Level string

// ID is the numeric severity of a logging level; higher is more severe
type ID int

const (
	Debug = Level("debug")
	Info  = Level("info")
	Warn  = Level("warn")
	Error = Level("error")
	Fatal = Level("fatal")
)

const (
	DebugID = ID(iota + 1)
	InfoID
	WarnID
	ErrorID
	FatalID
)

var ids = map[Level]ID{
	Debug: DebugID,
	Info:  InfoID,
	Warn:  WarnID,
	Error: ErrorID,
	Fatal: FatalID,
}

// GetID returns the severity for the named level, or 0 when the name is not
// a supported level
func GetID(logLevel Level) ID {
	return ids[logLevel]
}
