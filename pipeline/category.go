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
)

// Category groups the messages that a stage handles with the same entry point.
type Category int

const (
	CategoryFeatures Category = iota
	CategoryGetConfig
	CategorySetConfig
	CategoryStats
	CategoryTableMod
	CategoryFlowMod
	CategoryGroupMod
	CategoryPortMod
	CategoryMeterMod
	CategoryRole
	CategoryBarrier
	CategoryPacket
	CategoryMisc
	CategoryError
	CategoryCLI
)

var categoryNames = map[Category]string{
	CategoryFeatures:  "features",
	CategoryGetConfig: "get-config",
	CategorySetConfig: "set-config",
	CategoryStats:     "stats",
	CategoryTableMod:  "table-mod",
	CategoryFlowMod:   "flow-mod",
	CategoryGroupMod:  "group-mod",
	CategoryPortMod:   "port-mod",
	CategoryMeterMod:  "meter-mod",
	CategoryRole:      "role",
	CategoryBarrier:   "barrier",
	CategoryPacket:    "packet",
	CategoryMisc:      "misc",
	CategoryError:     "error",
	CategoryCLI:       "cli",
}

func (r Category) String() string {
	if v, ok := categoryNames[r]; ok {
		return v
	}
	return fmt.Sprintf("Category(%d)", int(r))
}

type Direction int

const (
	// DirToDevice is the direction from the controller to the devices.
	DirToDevice Direction = iota
	// DirToController is the direction from the devices to the controller.
	DirToController
)

func (r Direction) String() string {
	switch r {
	case DirToDevice:
		return "to-device"
	case DirToController:
		return "to-controller"
	default:
		return fmt.Sprintf("Direction(%d)", int(r))
	}
}

// toDevice and toController map the OpenFlow message types that may appear in
// each direction to their categories. Everything else is misc.
var (
	toDevice = map[uint8]Category{
		of13.OFPT_FEATURES_REQUEST:   CategoryFeatures,
		of13.OFPT_GET_CONFIG_REQUEST: CategoryGetConfig,
		of13.OFPT_SET_CONFIG:         CategorySetConfig,
		of13.OFPT_MULTIPART_REQUEST:  CategoryStats,
		of13.OFPT_TABLE_MOD:          CategoryTableMod,
		of13.OFPT_FLOW_MOD:           CategoryFlowMod,
		of13.OFPT_GROUP_MOD:          CategoryGroupMod,
		of13.OFPT_PORT_MOD:           CategoryPortMod,
		of13.OFPT_METER_MOD:          CategoryMeterMod,
		of13.OFPT_ROLE_REQUEST:       CategoryRole,
		of13.OFPT_BARRIER_REQUEST:    CategoryBarrier,
		of13.OFPT_PACKET_OUT:         CategoryPacket,
	}
	toController = map[uint8]Category{
		of13.OFPT_FEATURES_REPLY:   CategoryFeatures,
		of13.OFPT_GET_CONFIG_REPLY: CategoryGetConfig,
		of13.OFPT_SET_CONFIG:       CategorySetConfig,
		of13.OFPT_MULTIPART_REPLY:  CategoryStats,
		of13.OFPT_TABLE_MOD:        CategoryTableMod,
		of13.OFPT_FLOW_MOD:         CategoryFlowMod,
		of13.OFPT_FLOW_REMOVED:     CategoryFlowMod,
		of13.OFPT_GROUP_MOD:        CategoryGroupMod,
		of13.OFPT_PORT_MOD:         CategoryPortMod,
		of13.OFPT_METER_MOD:        CategoryMeterMod,
		of13.OFPT_ROLE_REPLY:       CategoryRole,
		of13.OFPT_BARRIER_REPLY:    CategoryBarrier,
		of13.OFPT_PACKET_IN:        CategoryPacket,
	}
)

// Classify returns the category of the message moving in the direction. OpenFlow
// errors, port status and other unlisted messages are misc.
func Classify(m *message.Message, d Direction) Category {
	switch m.Kind {
	case message.KindParseError:
		return CategoryError
	case message.KindCLI:
		return CategoryCLI
	}

	t, ok := m.Type()
	if !ok {
		return CategoryMisc
	}
	table := toDevice
	if d == DirToController {
		table = toController
	}
	if c, ok := table[t]; ok {
		return c
	}

	return CategoryMisc
}
