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
	"github.com/superkkt/tablevisor/message"
)

// Tap is implemented by stages that observe every message before it is
// dispatched to one of their entry points.
type Tap interface {
	Observe(d Direction, c Category, m *message.Message)
}

// endpoint is implemented by the stages at both ends of a chain. Messages
// moving in the exit direction leave the chain through send.
type endpoint interface {
	exit() Direction
	send(m *message.Message)
}

// ToDevice hands the message to the entry point of s that matches its
// category in the controller to device direction.
func ToDevice(s Stage, m *message.Message) {
	deliver(s, Classify(m, DirToDevice), DirToDevice, m)
}

// ToController hands the message to the entry point of s that matches its
// category in the device to controller direction.
func ToController(s Stage, m *message.Message) {
	deliver(s, Classify(m, DirToController), DirToController, m)
}

func deliver(s Stage, c Category, d Direction, m *message.Message) {
	if s == nil {
		logger.Errorf("no next stage for %v %v message: %v", d, c, m)
		return
	}
	if t, ok := s.(Tap); ok {
		t.Observe(d, c, m)
	}
	if e, ok := s.(endpoint); ok && e.exit() == d {
		e.send(m)
		return
	}

	if d == DirToDevice {
		dispatchToDevice(s, c, m)
	} else {
		dispatchToController(s, c, m)
	}
}

func dispatchToDevice(s Stage, c Category, m *message.Message) {
	switch c {
	case CategoryFeatures:
		s.FeaturesToDevice(m)
	case CategoryGetConfig:
		s.GetConfigToDevice(m)
	case CategorySetConfig:
		s.SetConfigToDevice(m)
	case CategoryStats:
		s.StatsToDevice(m)
	case CategoryTableMod:
		s.TableModToDevice(m)
	case CategoryFlowMod:
		s.FlowModToDevice(m)
	case CategoryGroupMod:
		s.GroupModToDevice(m)
	case CategoryPortMod:
		s.PortModToDevice(m)
	case CategoryMeterMod:
		s.MeterModToDevice(m)
	case CategoryRole:
		s.RoleToDevice(m)
	case CategoryBarrier:
		s.BarrierToDevice(m)
	case CategoryPacket:
		s.PacketToDevice(m)
	case CategoryError:
		s.ErrorToDevice(m)
	case CategoryCLI:
		s.CLIToDevice(m)
	case CategoryMisc:
		s.MiscToDevice(m)
	default:
		logger.Warningf("unknown category %v: %v", c, m)
		s.MiscToDevice(m)
	}
}

func dispatchToController(s Stage, c Category, m *message.Message) {
	switch c {
	case CategoryFeatures:
		s.FeaturesToController(m)
	case CategoryGetConfig:
		s.GetConfigToController(m)
	case CategorySetConfig:
		s.SetConfigToController(m)
	case CategoryStats:
		s.StatsToController(m)
	case CategoryTableMod:
		s.TableModToController(m)
	case CategoryFlowMod:
		s.FlowModToController(m)
	case CategoryGroupMod:
		s.GroupModToController(m)
	case CategoryPortMod:
		s.PortModToController(m)
	case CategoryMeterMod:
		s.MeterModToController(m)
	case CategoryRole:
		s.RoleToController(m)
	case CategoryBarrier:
		s.BarrierToController(m)
	case CategoryPacket:
		s.PacketToController(m)
	case CategoryError:
		s.ErrorToController(m)
	case CategoryCLI:
		s.CLIToController(m)
	case CategoryMisc:
		s.MiscToController(m)
	default:
		logger.Warningf("unknown category %v: %v", c, m)
		s.MiscToController(m)
	}
}
