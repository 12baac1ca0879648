/*
 * TableVisor - A Multi-Switch OpenFlow Table Virtualizer
 *
 * Copyright (C) 2015 Samjung Data Service, Inc. All rights reserved.
 * Kitae Kim <superkkt@sds.co.kr>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

package log

import (
	"bytes"
	"fmt"
	slog "log/syslog"
	"runtime"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

// syslogWriter is the part of the syslog writer used by the backend.
type syslogWriter interface {
	Crit(string) error
	Err(string) error
	Warning(string) error
	Notice(string) error
	Info(string) error
	Debug(string) error
}

// severities maps the go-logging levels onto the syslog severities.
var severities = map[logging.Level]func(syslogWriter, string) error{
	logging.CRITICAL: syslogWriter.Crit,
	logging.ERROR:    syslogWriter.Err,
	logging.WARNING:  syslogWriter.Warning,
	logging.NOTICE:   syslogWriter.Notice,
	logging.INFO:     syslogWriter.Info,
	logging.DEBUG:    syslogWriter.Debug,
}

type syslog struct {
	writer syslogWriter
}

// NewSyslog returns a backend writing to the local syslog daemon with the
// daemon facility.
func NewSyslog(prefix string) (logging.Backend, error) {
	w, err := slog.New(slog.LOG_CRIT|slog.LOG_DAEMON, prefix)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to the syslog daemon")
	}

	return &syslog{writer: w}, nil
}

// Log writes the record tagged with its module and the goroutine ID.
func (r *syslog) Log(level logging.Level, calldepth int, record *logging.Record) error {
	write, ok := severities[level]
	if !ok {
		return errors.Errorf("unexpected log level: %v", level)
	}

	return write(r.writer, fmt.Sprintf("[%v] %v (TID=%v)", record.Module, record.Formatted(calldepth+1), goroutineID()))
}

func goroutineID() string {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// The stack trace starts with "goroutine <ID> [running]:".
	fields := bytes.Fields(bytes.TrimPrefix(buf[:n], []byte("goroutine ")))
	if len(fields) == 0 {
		return "?"
	}

	return string(fields[0])
}
