// Copyright 2025 The Autopeer Authors.
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

package log

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Options contains configuration settings for the logger.
type Options struct {
	// Name is an optional name for the logger, which will be added as a field to each log entry.
	Name string `json:"name,omitempty" mapstructure:"name"`

	// Level is the minimum log level to output. Can be 'debug', 'info', 'warn', 'error'.
	Level string `json:"level,omitempty" mapstructure:"level"`

	// Format specifies the log output format. Can be 'json' or 'console'.
	Format string `json:"format,omitempty" mapstructure:"format"`

	// EnableColor enables colorized output for console format.
	EnableColor bool `json:"enable-color,omitempty" mapstructure:"enable-color"`

	// DisableCaller stops annotating logs with the calling function's file name and line number.
	DisableCaller bool `json:"disable-caller,omitempty" mapstructure:"disable-caller"`

	// CallerSkip increases the number of callers skipped by caller annotation.
	// This is useful for building wrappers around the logger.
	CallerSkip int `json:"caller-skip,omitempty" mapstructure:"caller-skip"`

	// OutputPaths is a list of paths to write logs to. Use "stdout" or "stderr" for console output.
	// Defaults to ["stdout"].
	OutputPaths []string `json:"output-paths,omitempty" mapstructure:"output-paths"`

	// Rotate additionally writes JSON logs to a size-rotated file. Disabled when Filename is empty.
	Rotate *RotateOptions `json:"rotate,omitempty" mapstructure:"rotate"`
}

// RotateOptions configures the rotated log file. Companion computers on a
// vehicle have small disks, so the file is capped rather than left to grow.
type RotateOptions struct {
	Filename   string `json:"filename,omitempty" mapstructure:"filename"`
	MaxSize    int    `json:"max-size,omitempty" mapstructure:"max-size"` // megabytes
	MaxBackups int    `json:"max-backups,omitempty" mapstructure:"max-backups"`
	MaxAge     int    `json:"max-age,omitempty" mapstructure:"max-age"` // days
	Compress   bool   `json:"compress,omitempty" mapstructure:"compress"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Level:       "info",
		Format:      "console",
		EnableColor: true,
		CallerSkip:  2, // Default to 2, which is correct for direct usage of the log package.
		OutputPaths: []string{"stdout"},
		Rotate: &RotateOptions{
			MaxSize:    32,
			MaxBackups: 3,
			MaxAge:     14,
		},
	}
}

// Validate validates all the required options.
func (o *Options) Validate() []error {
	var errs []error

	switch o.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("--log.format must be 'console' or 'json', got %q", o.Format))
	}

	if o.Rotate != nil && o.Rotate.Filename != "" && o.Rotate.MaxSize <= 0 {
		errs = append(errs, fmt.Errorf("--log.rotate.max-size must be positive"))
	}

	return errs
}

// AddFlags binds command-line flags to the Options fields.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Name, "log.name", o.Name, "An optional name for the logger.")
	fs.StringVar(&o.Format, "log.format", o.Format, "The log output format ('json' or 'console').")
	fs.BoolVar(&o.EnableColor, "log.enable-color", o.EnableColor, "Enable colorized output for the console format.")
	fs.IntVar(&o.CallerSkip, "log.caller-skip", o.CallerSkip, "The number of caller frames to skip.")

	usage := "The minimum log level to output (e.g., 'debug', 'info', 'warn', 'error')."
	fs.StringVar(&o.Level, "log.level", o.Level, usage)

	usage = "Disable the caller field in logs (file and line number)."
	fs.BoolVar(&o.DisableCaller, "log.disable-caller", o.DisableCaller, usage)

	usage = "A list of log output paths (e.g., 'stdout', '/var/log/app.log')."
	fs.StringSliceVar(&o.OutputPaths, "log.output-paths", o.OutputPaths, usage)

	if o.Rotate == nil {
		o.Rotate = &RotateOptions{}
	}
	fs.StringVar(&o.Rotate.Filename, "log.rotate.filename", o.Rotate.Filename, "Also write JSON logs to this size-rotated file.")
	fs.IntVar(&o.Rotate.MaxSize, "log.rotate.max-size", o.Rotate.MaxSize, "Megabytes before the rotated log file is rolled.")
	fs.IntVar(&o.Rotate.MaxBackups, "log.rotate.max-backups", o.Rotate.MaxBackups, "Number of rolled log files to keep.")
	fs.IntVar(&o.Rotate.MaxAge, "log.rotate.max-age", o.Rotate.MaxAge, "Days to keep rolled log files.")
	fs.BoolVar(&o.Rotate.Compress, "log.rotate.compress", o.Rotate.Compress, "Gzip rolled log files.")
}
