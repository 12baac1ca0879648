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
	"sort"
)

// OutPort returns the port used to send traffic downstream to neighbor. When
// parallel links exist the lowest port number is used.
func (r *DeviceConfig) OutPort(neighbor int) (uint32, bool) {
	ports := r.linkPorts(neighbor)
	if len(ports) == 0 {
		return 0, false
	}

	return ports[0], true
}

// InPort returns the port used to send traffic upstream to neighbor, which is
// also the port traffic from neighbor arrives on. When parallel links exist
// the highest port number is used.
func (r *DeviceConfig) InPort(neighbor int) (uint32, bool) {
	ports := r.linkPorts(neighbor)
	if len(ports) == 0 {
		return 0, false
	}

	return ports[len(ports)-1], true
}

func (r *DeviceConfig) linkPorts(neighbor int) []uint32 {
	ports := make([]uint32, 0)
	for _, v := range r.Links {
		if v.Neighbor == neighbor {
			ports = append(ports, v.Port)
		}
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i] < ports[j] })

	return ports
}

// NeighborOf returns the device reached through the local port.
func (r *DeviceConfig) NeighborOf(port uint32) (int, bool) {
	for _, v := range r.Links {
		if v.Port == port {
			return v.Neighbor, true
		}
	}

	return 0, false
}

func (r *DeviceConfig) IsLinkPort(port uint32) bool {
	_, ok := r.NeighborOf(port)
	return ok
}

// LogicalTables returns the logical IDs bound to the physical table in ascending order.
func (r *DeviceConfig) LogicalTables(physical uint8) []uint8 {
	ids := make([]uint8, 0)
	for _, v := range r.Tables {
		if v.Physical == int(physical) {
			ids = append(ids, uint8(v.Logical))
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

// PhysicalTables returns the distinct physical table IDs of the device in ascending order.
func (r *DeviceConfig) PhysicalTables() []uint8 {
	seen := make(map[int]bool)
	ids := make([]uint8, 0)
	for _, v := range r.Tables {
		if seen[v.Physical] {
			continue
		}
		seen[v.Physical] = true
		ids = append(ids, uint8(v.Physical))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}
