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

package p4

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superkkt/tablevisor/openflow/of13"
)

func TestFieldText(t *testing.T) {
	tests := []struct {
		name  string
		value []byte
		text  string
	}{
		{"in_port", []byte{0, 0, 0, 7}, "7"},
		{"eth_dst", []byte{0, 0x11, 0x22, 0x33, 0x44, 0x55}, "00:11:22:33:44:55"},
		{"eth_type", []byte{0x08, 0x00}, "0x800"},
		{"ipv4_dst", []byte{10, 0, 0, 1}, "10.0.0.1"},
		{"tcp_dst", []byte{0, 80}, "80"},
	}

	for _, test := range tests {
		f, ok := fieldByName(test.name)
		require.True(t, ok, test.name)

		s, err := f.text(test.value)
		require.NoError(t, err, test.name)
		assert.Equal(t, test.text, s, test.name)

		oxm, err := f.parse(s)
		require.NoError(t, err, test.name)
		assert.Equal(t, test.value, oxm.Value, test.name)
		assert.Equal(t, f.oxm, oxm.Field, test.name)
	}
}

func TestFieldTextInvalidLength(t *testing.T) {
	f, ok := fieldByOXM(of13.NewOXM(of13.OFPXMT_OFB_ETH_DST, nil))
	require.True(t, ok)
	_, err := f.text([]byte{1, 2, 3})
	assert.Error(t, err)

	_, err = f.parse("not-a-mac")
	assert.Error(t, err)
}
