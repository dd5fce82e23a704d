// Copyright 2023 The locpub Authors
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
	"io"

	kitlog "github.com/go-kit/log"
	kitlevel "github.com/go-kit/log/level"
)

// NewDefaultLogger creates a new go-kit backed logger with the configured format.
func NewDefaultLogger(w io.Writer, format string) Logger {
	var logger kitlog.Logger

	sw := kitlog.NewSyncWriter(w)
	if format == "json" {
		logger = kitlog.NewJSONLogger(sw)
	} else {
		logger = kitlog.NewLogfmtLogger(sw)
	}
	logger = kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC)
	return &kitLogger{logger: logger}
}

type kitLogger struct {
	logger kitlog.Logger
}

func (l *kitLogger) Debugf(msg string, args ...interface{}) {
	_ = kitlevel.Debug(l.logger).Log("msg", fmt.Sprintf(msg, args...))
}

func (l *kitLogger) Debugw(msg string, keysAndValues ...interface{}) {
	_ = kitlevel.Debug(l.logger).Log(append([]interface{}{"msg", msg}, keysAndValues...)...)
}

func (l *kitLogger) Infof(msg string, args ...interface{}) {
	_ = kitlevel.Info(l.logger).Log("msg", fmt.Sprintf(msg, args...))
}

func (l *kitLogger) Infow(msg string, keysAndValues ...interface{}) {
	_ = kitlevel.Info(l.logger).Log(append([]interface{}{"msg", msg}, keysAndValues...)...)
}

func (l *kitLogger) Warnf(msg string, args ...interface{}) {
	_ = kitlevel.Warn(l.logger).Log("msg", fmt.Sprintf(msg, args...))
}

func (l *kitLogger) Warnw(msg string, keysAndValues ...interface{}) {
	_ = kitlevel.Warn(l.logger).Log(append([]interface{}{"msg", msg}, keysAndValues...)...)
}

func (l *kitLogger) Errorf(msg string, args ...interface{}) {
	_ = kitlevel.Error(l.logger).Log("msg", fmt.Sprintf(msg, args...))
}

func (l *kitLogger) Errorw(msg string, keysAndValues ...interface{}) {
	_ = kitlevel.Error(l.logger).Log(append([]interface{}{"msg", msg}, keysAndValues...)...)
}
