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

package config

import (
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
default:
  datapath_id: "00:00:00:00:00:00:00:01"
  stages: [controller-log, multiswitch, p4-control, device-log]
  startup_timeout: 30s
rest:
  address: 127.0.0.1
  port: 7070
controllers:
  - name: onos
    address: 127.0.0.1
    port: 6653
endpoints:
  - name: switches
    type: openflow
    address: 0.0.0.0
    port: 6654
    devices:
      - id: 1
        datapath_id: "00:00:00:00:00:00:00:0a"
        tables:
          - {logical: 0, physical: 0}
          - {logical: 1, physical: 1}
          - {logical: 4, physical: 0}
        links:
          - {neighbor: 2, port: 5}
          - {neighbor: 2, port: 6}
      - id: 2
        datapath_id: "0xb"
        tables:
          - {logical: 2, physical: 0}
          - {logical: 3, physical: 1}
        links:
          - {neighbor: 1, port: 1}
          - {neighbor: 3, port: 2}
  - name: netronome
    type: P4
    cli: /opt/netronome/p4/bin/rtecli
    devices:
      - id: 3
        rte_host: 10.0.0.5
        rte_port: 20206
        ports: 4
        dictionary: /etc/tablevisor/program.p4
        tables:
          - {logical: 5, physical: 0}
        links:
          - {neighbor: 2, port: 3}
`

func load(t *testing.T, doc string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(doc)))

	return Load(v)
}

func TestLoad(t *testing.T) {
	c, err := load(t, sample)
	require.NoError(t, err)

	assert.Equal(t, "info", c.Default.LogLevel)
	assert.Equal(t, 30*time.Second, c.Default.StartupTimeout)
	assert.Equal(t, []string{"controller-log", "multiswitch", "p4-control", "device-log"}, c.Default.Stages)
	assert.Equal(t, 7070, c.REST.Port)
	require.Len(t, c.Controllers, 1)
	assert.Equal(t, defaultReconnectInterval, c.Controllers[0].ReconnectInterval)

	devices := c.Devices()
	require.Len(t, devices, 3)
	for i, v := range devices {
		assert.Equal(t, i+1, v.ID)
	}
	assert.Equal(t, EndpointOpenFlow, devices[0].Type)
	assert.Equal(t, "switches", devices[0].Endpoint)
	assert.Equal(t, EndpointP4, devices[2].Type)
	assert.Equal(t, "netronome", devices[2].Endpoint)
	assert.Equal(t, []Link{{Neighbor: 2, Port: 5}, {Neighbor: 2, Port: 6}}, devices[0].Links)

	d, ok := c.Device(3)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.5", d.RTEHost)
	_, ok = c.Device(9)
	assert.False(t, ok)
}

func TestValidateErrors(t *testing.T) {
	samples := []struct {
		Name    string
		Replace [2]string
	}{
		{Name: "bad datapath id", Replace: [2]string{`"00:00:00:00:00:00:00:01"`, `"zz"`}},
		{Name: "unknown endpoint type", Replace: [2]string{"type: openflow", "type: netconf"}},
		{Name: "duplicated device id", Replace: [2]string{"- id: 2", "- id: 1"}},
		{Name: "unknown neighbor", Replace: [2]string{"{neighbor: 3, port: 2}", "{neighbor: 7, port: 2}"}},
		{Name: "link to itself", Replace: [2]string{"{neighbor: 3, port: 2}", "{neighbor: 2, port: 2}"}},
		{Name: "table out of range", Replace: [2]string{"{logical: 5, physical: 0}", "{logical: 255, physical: 0}"}},
		{Name: "duplicated logical id in a device", Replace: [2]string{"{logical: 3, physical: 1}", "{logical: 2, physical: 1}"}},
		{Name: "same datapath id", Replace: [2]string{`"0xb"`, `"00:00:00:00:00:00:00:0a"`}},
		{Name: "too few p4 ports", Replace: [2]string{"ports: 4", "ports: 1"}},
		{Name: "controller port", Replace: [2]string{"port: 6653", "port: 70000"}},
		{Name: "empty stages", Replace: [2]string{"stages: [controller-log, multiswitch, p4-control, device-log]", "stages: []"}},
	}

	for _, v := range samples {
		doc := strings.Replace(sample, v.Replace[0], v.Replace[1], 1)
		require.NotEqual(t, sample, doc, v.Name)

		_, err := load(t, doc)
		assert.Error(t, err, v.Name)
		assert.Equal(t, ErrInvalidConfig, errors.Cause(err), v.Name)
	}
}

func TestDevicePorts(t *testing.T) {
	d := DeviceConfig{
		ID: 2,
		Tables: []TableBinding{
			{Logical: 3, Physical: 1},
			{Logical: 2, Physical: 0},
			{Logical: 7, Physical: 0},
		},
		Links: []Link{
			{Neighbor: 3, Port: 9},
			{Neighbor: 1, Port: 4},
			{Neighbor: 3, Port: 7},
		},
	}

	port, ok := d.OutPort(3)
	assert.True(t, ok)
	assert.Equal(t, uint32(7), port)
	port, ok = d.InPort(3)
	assert.True(t, ok)
	assert.Equal(t, uint32(9), port)
	port, ok = d.InPort(1)
	assert.True(t, ok)
	assert.Equal(t, uint32(4), port)
	_, ok = d.OutPort(5)
	assert.False(t, ok)

	neighbor, ok := d.NeighborOf(9)
	assert.True(t, ok)
	assert.Equal(t, 3, neighbor)
	assert.False(t, d.IsLinkPort(1))

	assert.Equal(t, []uint8{2, 7}, d.LogicalTables(0))
	assert.Equal(t, []uint8{0, 1}, d.PhysicalTables())
}

func TestDatapathID(t *testing.T) {
	samples := []struct {
		Input    string
		Expected uint64
		Error    bool
	}{
		{Input: "00:00:00:00:00:00:00:01", Expected: 1},
		{Input: "0x0000000000000aBc", Expected: 0xABC},
		{Input: "ff", Expected: 0xFF},
		{Input: "", Error: true},
		{Input: "01:00:00:00:00:00:00:00:01", Error: true},
		{Input: "xyz", Error: true},
	}

	for _, v := range samples {
		dpid, err := ParseDatapathID(v.Input)
		if v.Error {
			assert.Error(t, err, v.Input)
			continue
		}
		require.NoError(t, err, v.Input)
		assert.Equal(t, v.Expected, dpid, v.Input)
	}

	assert.Equal(t, "00:00:00:00:00:00:0a:bc", FormatDatapathID(0xABC))
}
