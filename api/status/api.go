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

// Package status serves the state of the devices, the table bindings and the
// aggregation rounds.
package status

import (
	"context"
	"net/http"
	"strconv"

	"github.com/superkkt/tablevisor/api"
	"github.com/superkkt/tablevisor/device"
	"github.com/superkkt/tablevisor/multiswitch"
	"github.com/superkkt/tablevisor/registry"

	"github.com/ant0ine/go-json-rest/rest"
	"github.com/davecgh/go-spew/spew"
	"github.com/op/go-logging"
)

var (
	logger = logging.MustGetLogger("status")
)

type Devices interface {
	Status() []device.Status
}

type Tables interface {
	Bindings() []registry.Binding
}

type Rounds interface {
	Pending() []multiswitch.Round
}

type API struct {
	api.Server
	Devices Devices
	Tables  Tables
	// Rounds is nil if the aggregation stage is not configured.
	Rounds Rounds
}

func (r *API) routes() []*rest.Route {
	return []*rest.Route{
		rest.Get("/api/v1/devices", r.listDevices),
		rest.Get("/api/v1/devices/:id", r.getDevice),
		rest.Get("/api/v1/tables", r.listTables),
		rest.Get("/api/v1/rounds", r.listRounds),
	}
}

func (r *API) Handler() (http.Handler, error) {
	if r.Devices == nil {
		panic("nil devices")
	}
	if r.Tables == nil {
		panic("nil tables")
	}

	return r.Server.Handler(r.routes()...)
}

func (r *API) Serve(ctx context.Context) error {
	if r.Devices == nil {
		panic("nil devices")
	}
	if r.Tables == nil {
		panic("nil tables")
	}

	return r.Server.Serve(ctx, r.routes()...)
}

func (r *API) listDevices(w rest.ResponseWriter, req *rest.Request) {
	logger.Debugf("device list request from %v", req.RemoteAddr)
	w.WriteJson(api.Response{Status: api.StatusOkay, Data: r.Devices.Status()})
}

func (r *API) getDevice(w rest.ResponseWriter, req *rest.Request) {
	id, err := strconv.Atoi(req.PathParam("id"))
	if err != nil {
		w.WriteJson(api.Response{Status: api.StatusInvalidParameter, Message: "invalid device ID"})
		return
	}

	for _, v := range r.Devices.Status() {
		if v.ID == id {
			logger.Debugf("device %v: %v", id, spew.Sdump(v))
			w.WriteJson(api.Response{Status: api.StatusOkay, Data: v})
			return
		}
	}
	w.WriteJson(api.Response{Status: api.StatusNotFound, Message: "unknown device ID"})
}

func (r *API) listTables(w rest.ResponseWriter, req *rest.Request) {
	logger.Debugf("table list request from %v", req.RemoteAddr)
	w.WriteJson(api.Response{Status: api.StatusOkay, Data: r.Tables.Bindings()})
}

func (r *API) listRounds(w rest.ResponseWriter, req *rest.Request) {
	logger.Debugf("round list request from %v", req.RemoteAddr)
	if r.Rounds == nil {
		w.WriteJson(api.Response{Status: api.StatusServiceUnavailable, Message: "aggregation stage is not configured"})
		return
	}
	w.WriteJson(api.Response{Status: api.StatusOkay, Data: r.Rounds.Pending()})
}
