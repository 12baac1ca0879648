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

// Package log sets up the go-logging backends of the program.
package log

import (
	"os"
	"strings"

	"github.com/op/go-logging"
)

const DefaultLevel = logging.INFO

var (
	logger = logging.MustGetLogger("log")

	syslogFormat  = logging.MustStringFormatter(`%{level}: %{shortpkg}.%{shortfunc}: %{message}`)
	consoleFormat = logging.MustStringFormatter(`%{color}%{time:15:04:05.000} %{level:.4s} %{shortpkg}.%{shortfunc}%{color:reset}: %{message}`)
)

// NewConsole returns a backend writing to the standard error.
func NewConsole() logging.Backend {
	return logging.NewLogBackend(os.Stderr, "", 0)
}

// Init installs the syslog backend, or the console backend if foreground is
// true, as the backend of all modules.
func Init(prefix string, foreground bool, level logging.Level) (logging.LeveledBackend, error) {
	var backend logging.Backend
	if foreground {
		backend = logging.NewBackendFormatter(NewConsole(), consoleFormat)
	} else {
		b, err := NewSyslog(prefix)
		if err != nil {
			return nil, err
		}
		backend = logging.NewBackendFormatter(b, syslogFormat)
	}

	leveled := logging.AddModuleLevel(backend)
	// Set log level for all modules
	leveled.SetLevel(level, "")
	logging.SetBackend(leveled)

	return leveled, nil
}

// ParseLevel converts a level name into a log level. An invalid name yields
// DefaultLevel.
func ParseLevel(level string) logging.Level {
	level = strings.ToUpper(level)
	ret, err := logging.LogLevel(level)
	if err != nil {
		logger.Infof("invalid log level=%v, defaulting to %v..", level, DefaultLevel)
		return DefaultLevel
	}

	return ret
}
