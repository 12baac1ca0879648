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

package pipeline

import (
	"fmt"

	"github.com/superkkt/tablevisor/message"
	"github.com/superkkt/tablevisor/openflow/of13"

	"github.com/davecgh/go-spew/spew"
	"github.com/op/go-logging"
)

func init() {
	Register("controller-log", func(env *Env) (Stage, error) {
		return NewLogStage(SideController), nil
	})
	Register("device-log", func(env *Env) (Stage, error) {
		return NewLogStage(SideDevice), nil
	})
	Register("transparent", func(env *Env) (Stage, error) {
		if env.Devices == nil {
			return nil, fmt.Errorf("nil device set")
		}
		return NewTransparent(env.Devices), nil
	})
}

// Side is the end of the chain a log stage is placed at.
type Side int

const (
	SideController Side = iota
	SideDevice
)

// LogStage logs every message crossing it. Unrecognized messages coming from
// its side are logged as warnings.
type LogStage struct {
	Base
	side Side
}

func NewLogStage(side Side) *LogStage {
	return &LogStage{side: side}
}

func (r *LogStage) String() string {
	if r.side == SideController {
		return "controller-log"
	}
	return "device-log"
}

func (r *LogStage) Observe(d Direction, c Category, m *message.Message) {
	var route string
	switch {
	case r.side == SideController && d == DirToDevice:
		route = "[controller -> ...]"
	case r.side == SideController && d == DirToController:
		route = "[... -> controller]"
	case r.side == SideDevice && d == DirToDevice:
		route = fmt.Sprintf("[... -> device(%v)]", m.Device)
	default:
		route = fmt.Sprintf("[device(%v) -> ...]", m.Device)
	}
	logger.Infof("%v %v: %v%v", route, c, m, statsKind(m))

	if logger.IsEnabledFor(logging.DEBUG) && m.IsOpenFlow() {
		logger.Debugf("message dump: %v", spew.Sdump(m.OpenFlow))
	}
}

func (r *LogStage) MiscToDevice(m *message.Message) {
	if r.side == SideController {
		warnUnrecognized(m)
	}
	r.Base.MiscToDevice(m)
}

func (r *LogStage) MiscToController(m *message.Message) {
	if r.side == SideDevice {
		warnUnrecognized(m)
	}
	r.Base.MiscToController(m)
}

func warnUnrecognized(m *message.Message) {
	if t, ok := m.Type(); ok {
		logger.Warningf("OpenFlow message type %v is not recognized and forwarded as misc: %v", t, m)
		return
	}
	logger.Warningf("unrecognized message is forwarded as misc: %v", m)
}

func statsKind(m *message.Message) string {
	var kind uint16
	switch v := m.OpenFlow.(type) {
	case *of13.MultipartRequest:
		kind = v.Kind
	case *of13.MultipartReply:
		kind = v.Kind
	default:
		return ""
	}
	return fmt.Sprintf(" (%v)", of13.MultipartName(kind))
}

// Transparent binds every message moving toward the devices to the first
// connected device. It serves a virtual switch made of a single device.
type Transparent struct {
	Base
	devices DeviceSet
}

func NewTransparent(devices DeviceSet) *Transparent {
	if devices == nil {
		panic("nil device set")
	}
	return &Transparent{devices: devices}
}

func (r *Transparent) String() string {
	return "transparent"
}

func (r *Transparent) bind(m *message.Message) *message.Message {
	connected := r.devices.Connected()
	if len(connected) == 0 {
		return m
	}

	return m.WithDevice(connected[0])
}

func (r *Transparent) FeaturesToDevice(m *message.Message) {
	r.Base.FeaturesToDevice(r.bind(m))
}

func (r *Transparent) GetConfigToDevice(m *message.Message) {
	r.Base.GetConfigToDevice(r.bind(m))
}

func (r *Transparent) SetConfigToDevice(m *message.Message) {
	r.Base.SetConfigToDevice(r.bind(m))
}

func (r *Transparent) StatsToDevice(m *message.Message) {
	r.Base.StatsToDevice(r.bind(m))
}

func (r *Transparent) TableModToDevice(m *message.Message) {
	r.Base.TableModToDevice(r.bind(m))
}

func (r *Transparent) FlowModToDevice(m *message.Message) {
	r.Base.FlowModToDevice(r.bind(m))
}

func (r *Transparent) GroupModToDevice(m *message.Message) {
	r.Base.GroupModToDevice(r.bind(m))
}

func (r *Transparent) PortModToDevice(m *message.Message) {
	r.Base.PortModToDevice(r.bind(m))
}

func (r *Transparent) MeterModToDevice(m *message.Message) {
	r.Base.MeterModToDevice(r.bind(m))
}

func (r *Transparent) RoleToDevice(m *message.Message) {
	r.Base.RoleToDevice(r.bind(m))
}

func (r *Transparent) BarrierToDevice(m *message.Message) {
	r.Base.BarrierToDevice(r.bind(m))
}

func (r *Transparent) PacketToDevice(m *message.Message) {
	r.Base.PacketToDevice(r.bind(m))
}

func (r *Transparent) MiscToDevice(m *message.Message) {
	r.Base.MiscToDevice(r.bind(m))
}

func (r *Transparent) ErrorToDevice(m *message.Message) {
	r.Base.ErrorToDevice(r.bind(m))
}

func (r *Transparent) CLIToDevice(m *message.Message) {
	r.Base.CLIToDevice(r.bind(m))
}
