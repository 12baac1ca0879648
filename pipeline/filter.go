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

	"github.com/superkkt/tablevisor/config"
	"github.com/superkkt/tablevisor/message"
)

// KindLookup returns the endpoint type of a device.
type KindLookup interface {
	Kind(device int) (config.EndpointType, bool)
}

// filter applies the inner stage only to the messages bound to (or coming
// from) a device of one endpoint type. All other messages pass through.
type filter struct {
	inner  Stage
	bypass Base
	kinds  KindLookup
	want   config.EndpointType
}

// OpenFlowOnly restricts the stage to the messages of OpenFlow devices.
func OpenFlowOnly(s Stage, kinds KindLookup) Stage {
	return newFilter(s, kinds, config.EndpointOpenFlow)
}

// CLIOnly restricts the stage to the messages of command line driven devices.
func CLIOnly(s Stage, kinds KindLookup) Stage {
	return newFilter(s, kinds, config.EndpointP4)
}

func newFilter(s Stage, kinds KindLookup, want config.EndpointType) *filter {
	if s == nil {
		panic("nil stage")
	}
	if kinds == nil {
		panic("nil kind lookup")
	}

	return &filter{inner: s, kinds: kinds, want: want}
}

func (r *filter) Link(controller, device Stage) {
	r.inner.Link(controller, device)
	r.bypass.Link(controller, device)
}

func (r *filter) applies(m *message.Message) bool {
	if m.Device == message.Unbound {
		return false
	}
	kind, ok := r.kinds.Kind(m.Device)
	return ok && kind == r.want
}

func (r *filter) String() string {
	return fmt.Sprintf("%v only: %v", r.want, r.inner)
}

// Unwrap returns the filtered stage.
func (r *filter) Unwrap() Stage {
	return r.inner
}

func (r *filter) FeaturesToDevice(m *message.Message) {
	if r.applies(m) {
		r.inner.FeaturesToDevice(m)
		return
	}
	r.bypass.FeaturesToDevice(m)
}

func (r *filter) FeaturesToController(m *message.Message) {
	if r.applies(m) {
		r.inner.FeaturesToController(m)
		return
	}
	r.bypass.FeaturesToController(m)
}

func (r *filter) GetConfigToDevice(m *message.Message) {
	if r.applies(m) {
		r.inner.GetConfigToDevice(m)
		return
	}
	r.bypass.GetConfigToDevice(m)
}

func (r *filter) GetConfigToController(m *message.Message) {
	if r.applies(m) {
		r.inner.GetConfigToController(m)
		return
	}
	r.bypass.GetConfigToController(m)
}

func (r *filter) SetConfigToDevice(m *message.Message) {
	if r.applies(m) {
		r.inner.SetConfigToDevice(m)
		return
	}
	r.bypass.SetConfigToDevice(m)
}

func (r *filter) SetConfigToController(m *message.Message) {
	if r.applies(m) {
		r.inner.SetConfigToController(m)
		return
	}
	r.bypass.SetConfigToController(m)
}

func (r *filter) StatsToDevice(m *message.Message) {
	if r.applies(m) {
		r.inner.StatsToDevice(m)
		return
	}
	r.bypass.StatsToDevice(m)
}

func (r *filter) StatsToController(m *message.Message) {
	if r.applies(m) {
		r.inner.StatsToController(m)
		return
	}
	r.bypass.StatsToController(m)
}

func (r *filter) TableModToDevice(m *message.Message) {
	if r.applies(m) {
		r.inner.TableModToDevice(m)
		return
	}
	r.bypass.TableModToDevice(m)
}

func (r *filter) TableModToController(m *message.Message) {
	if r.applies(m) {
		r.inner.TableModToController(m)
		return
	}
	r.bypass.TableModToController(m)
}

func (r *filter) FlowModToDevice(m *message.Message) {
	if r.applies(m) {
		r.inner.FlowModToDevice(m)
		return
	}
	r.bypass.FlowModToDevice(m)
}

func (r *filter) FlowModToController(m *message.Message) {
	if r.applies(m) {
		r.inner.FlowModToController(m)
		return
	}
	r.bypass.FlowModToController(m)
}

func (r *filter) GroupModToDevice(m *message.Message) {
	if r.applies(m) {
		r.inner.GroupModToDevice(m)
		return
	}
	r.bypass.GroupModToDevice(m)
}

func (r *filter) GroupModToController(m *message.Message) {
	if r.applies(m) {
		r.inner.GroupModToController(m)
		return
	}
	r.bypass.GroupModToController(m)
}

func (r *filter) PortModToDevice(m *message.Message) {
	if r.applies(m) {
		r.inner.PortModToDevice(m)
		return
	}
	r.bypass.PortModToDevice(m)
}

func (r *filter) PortModToController(m *message.Message) {
	if r.applies(m) {
		r.inner.PortModToController(m)
		return
	}
	r.bypass.PortModToController(m)
}

func (r *filter) MeterModToDevice(m *message.Message) {
	if r.applies(m) {
		r.inner.MeterModToDevice(m)
		return
	}
	r.bypass.MeterModToDevice(m)
}

func (r *filter) MeterModToController(m *message.Message) {
	if r.applies(m) {
		r.inner.MeterModToController(m)
		return
	}
	r.bypass.MeterModToController(m)
}

func (r *filter) RoleToDevice(m *message.Message) {
	if r.applies(m) {
		r.inner.RoleToDevice(m)
		return
	}
	r.bypass.RoleToDevice(m)
}

func (r *filter) RoleToController(m *message.Message) {
	if r.applies(m) {
		r.inner.RoleToController(m)
		return
	}
	r.bypass.RoleToController(m)
}

func (r *filter) BarrierToDevice(m *message.Message) {
	if r.applies(m) {
		r.inner.BarrierToDevice(m)
		return
	}
	r.bypass.BarrierToDevice(m)
}

func (r *filter) BarrierToController(m *message.Message) {
	if r.applies(m) {
		r.inner.BarrierToController(m)
		return
	}
	r.bypass.BarrierToController(m)
}

func (r *filter) PacketToDevice(m *message.Message) {
	if r.applies(m) {
		r.inner.PacketToDevice(m)
		return
	}
	r.bypass.PacketToDevice(m)
}

func (r *filter) PacketToController(m *message.Message) {
	if r.applies(m) {
		r.inner.PacketToController(m)
		return
	}
	r.bypass.PacketToController(m)
}

func (r *filter) MiscToDevice(m *message.Message) {
	if r.applies(m) {
		r.inner.MiscToDevice(m)
		return
	}
	r.bypass.MiscToDevice(m)
}

func (r *filter) MiscToController(m *message.Message) {
	if r.applies(m) {
		r.inner.MiscToController(m)
		return
	}
	r.bypass.MiscToController(m)
}

func (r *filter) ErrorToDevice(m *message.Message) {
	if r.applies(m) {
		r.inner.ErrorToDevice(m)
		return
	}
	r.bypass.ErrorToDevice(m)
}

func (r *filter) ErrorToController(m *message.Message) {
	if r.applies(m) {
		r.inner.ErrorToController(m)
		return
	}
	r.bypass.ErrorToController(m)
}

func (r *filter) CLIToDevice(m *message.Message) {
	if r.applies(m) {
		r.inner.CLIToDevice(m)
		return
	}
	r.bypass.CLIToDevice(m)
}

func (r *filter) CLIToController(m *message.Message) {
	if r.applies(m) {
		r.inner.CLIToController(m)
		return
	}
	r.bypass.CLIToController(m)
}
