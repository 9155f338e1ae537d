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

package options

// DefaultLogLevel is the default logging level
const DefaultLogLevel = "info"

// Options is a collection of logging configurations
type Options struct {
	// LogFile provides the filepath to the instance's logfile; empty logs
	// to the console
	LogFile string `yaml:"log_file,omitempty"`
	// LogLevel provides the level of verbosity for the instance's logger
	LogLevel string `yaml:"log_level,omitempty"`
}

// New returns a new logging Options reference with default values set
func New() *Options {
	return &Options{
		LogLevel: DefaultLogLevel,
	}
}

// Clone returns an exact copy of the subject Options
func (o *Options) Clone() *Options {
	return &Options{
		LogFile:  o.LogFile,
		LogLevel: o.LogLevel,
	}
}

// Equal returns true if all members of the subject and provided Options are identical
func (o *Options) Equal(o2 *Options) bool {
	if o2 == nil {
		return false
	}
	return o.LogFile == o2.LogFile && o.LogLevel == o2.LogLevel
}
