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

package status

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superkkt/tablevisor/api"
	"github.com/superkkt/tablevisor/config"
	"github.com/superkkt/tablevisor/device"
	"github.com/superkkt/tablevisor/metrics"
	"github.com/superkkt/tablevisor/multiswitch"
	"github.com/superkkt/tablevisor/registry"
)

type devices []device.Status

func (r devices) Status() []device.Status {
	return r
}

type tables []registry.Binding

func (r tables) Bindings() []registry.Binding {
	return r
}

type rounds []multiswitch.Round

func (r rounds) Pending() []multiswitch.Round {
	return r
}

type response struct {
	Status  api.Status      `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func serve(t *testing.T, a *API) *httptest.Server {
	handler, err := a.Handler()
	require.NoError(t, err)
	s := httptest.NewServer(handler)
	t.Cleanup(s.Close)

	return s
}

func get(t *testing.T, s *httptest.Server, path string, data interface{}) response {
	resp, err := http.Get(s.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	var v response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	if data != nil && v.Status == api.StatusOkay {
		require.NoError(t, json.Unmarshal(v.Data, data))
	}

	return v
}

func testAPI() *API {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &API{
		Devices: devices{
			{ID: 1, Kind: config.EndpointOpenFlow, Endpoint: "switches", Connected: true, Address: "10.0.0.1:40000", ConnectedAt: &now},
			{ID: 2, Kind: config.EndpointP4, Endpoint: "netronome", Connected: true, ConnectedAt: &now},
		},
		Tables: tables{
			{Logical: 0, Device: 1, Physical: 0},
			{Logical: 1, Device: 2, Physical: 0},
		},
	}
}

func TestDevices(t *testing.T) {
	s := serve(t, testAPI())

	var list []device.Status
	resp := get(t, s, "/api/v1/devices", &list)
	assert.Equal(t, api.Status(api.StatusOkay), resp.Status)
	require.Len(t, list, 2)
	assert.Equal(t, 1, list[0].ID)
	assert.Equal(t, "10.0.0.1:40000", list[0].Address)
	assert.Equal(t, config.EndpointP4, list[1].Kind)

	var d device.Status
	resp = get(t, s, "/api/v1/devices/2", &d)
	assert.Equal(t, api.Status(api.StatusOkay), resp.Status)
	assert.Equal(t, "netronome", d.Endpoint)

	resp = get(t, s, "/api/v1/devices/7", nil)
	assert.Equal(t, api.Status(api.StatusNotFound), resp.Status)
	resp = get(t, s, "/api/v1/devices/x", nil)
	assert.Equal(t, api.Status(api.StatusInvalidParameter), resp.Status)
}

func TestTables(t *testing.T) {
	s := serve(t, testAPI())

	var list []registry.Binding
	resp := get(t, s, "/api/v1/tables", &list)
	assert.Equal(t, api.Status(api.StatusOkay), resp.Status)
	assert.Equal(t, []registry.Binding{{Logical: 0, Device: 1, Physical: 0}, {Logical: 1, Device: 2, Physical: 0}}, list)
}

func TestRounds(t *testing.T) {
	a := testAPI()
	resp := get(t, serve(t, a), "/api/v1/rounds", nil)
	assert.Equal(t, api.Status(api.StatusServiceUnavailable), resp.Status)

	a.Rounds = rounds{{Category: "Stats", Kind: "FLOW", TransactionID: 9, Replied: []int{1}, Waiting: []int{2}}}
	var list []multiswitch.Round
	resp = get(t, serve(t, a), "/api/v1/rounds", &list)
	assert.Equal(t, api.Status(api.StatusOkay), resp.Status)
	require.Len(t, list, 1)
	assert.Equal(t, uint32(9), list[0].TransactionID)
	assert.Equal(t, []int{2}, list[0].Waiting)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	m.SetConnectedDevices(2)

	a := testAPI()
	a.Gatherer = reg
	s := serve(t, a)

	resp, err := http.Get(s.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "tablevisor_device_connected 2")
}
