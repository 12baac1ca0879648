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
	"testing"

	"github.com/op/go-logging"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logging.DEBUG, ParseLevel("debug"))
	assert.Equal(t, logging.WARNING, ParseLevel("Warning"))
	assert.Equal(t, logging.ERROR, ParseLevel("ERROR"))
	assert.Equal(t, DefaultLevel, ParseLevel("verbose"))
	assert.Equal(t, DefaultLevel, ParseLevel(""))
}

func TestInitConsole(t *testing.T) {
	leveled, err := Init("tablevisor", true, logging.WARNING)
	assert.NoError(t, err)
	assert.Equal(t, logging.WARNING, leveled.GetLevel("pipeline"))

	leveled.SetLevel(logging.DEBUG, "")
	assert.True(t, leveled.IsEnabledFor(logging.DEBUG, "device"))
}
