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

// Package registry translates logical table IDs, which the controller sees,
// into physical (device, table) locations and back.
package registry

import (
	"fmt"
	"sort"

	"github.com/superkkt/tablevisor/config"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var logger = logging.MustGetLogger("registry")

var (
	ErrUnroutable         = errors.New("unroutable logical table")
	ErrDuplicateLogicalID = errors.New("duplicated logical table ID")
	ErrDuplicateBinding   = errors.New("invalid duplicated physical table binding")
	ErrEmptyDevice        = errors.New("no device")
	ErrMissingLogicalID   = errors.New("missing logical table ID")
)

type Location struct {
	Device int
	Table  uint8
}

func (r Location) String() string {
	return fmt.Sprintf("(device=%v, table=%v)", r.Device, r.Table)
}

type Binding struct {
	Logical  uint8 `json:"logical"`
	Device   int   `json:"device"`
	Physical uint8 `json:"physical"`
}

// Registry is immutable after Build, so it is safe for concurrent use.
type Registry struct {
	forward    map[uint8]Location
	reverse    map[Location][]uint8
	devices    []config.DeviceConfig
	index      map[int]int
	maxLogical uint8
}

func Build(devices []config.DeviceConfig) (*Registry, error) {
	if len(devices) == 0 {
		return nil, ErrEmptyDevice
	}

	r := &Registry{
		forward: make(map[uint8]Location),
		reverse: make(map[Location][]uint8),
		devices: make([]config.DeviceConfig, len(devices)),
		index:   make(map[int]int),
	}
	copy(r.devices, devices)
	sort.Slice(r.devices, func(i, j int) bool { return r.devices[i].ID < r.devices[j].ID })
	for i, d := range r.devices {
		if _, ok := r.index[d.ID]; ok {
			return nil, fmt.Errorf("duplicated device ID: %v", d.ID)
		}
		r.index[d.ID] = i
		for _, t := range d.Tables {
			if uint8(t.Logical) > r.maxLogical {
				r.maxLogical = uint8(t.Logical)
			}
		}
	}

	smallest := r.devices[0].ID
	for _, d := range r.devices {
		for _, t := range d.Tables {
			logical := uint8(t.Logical)
			loc := Location{Device: d.ID, Table: uint8(t.Physical)}

			if prev, ok := r.forward[logical]; ok {
				return nil, errors.Wrapf(ErrDuplicateLogicalID, "logical table %v is bound to %v and %v", logical, prev, loc)
			}
			r.forward[logical] = loc

			if existing, ok := r.reverse[loc]; ok {
				candidate := append(append([]uint8(nil), existing...), logical)
				if !r.isSharedBinding(smallest, loc, candidate) {
					return nil, errors.Wrapf(ErrDuplicateBinding, "logical tables %v and %v are bound to %v", existing, logical, loc)
				}
				logger.Debugf("shared binding: logical tables %v and %v on %v", existing, logical, loc)
			}
			ids := append(r.reverse[loc], logical)
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			r.reverse[loc] = ids
		}
	}

	// The controller addresses the logical tables from 0 to the maximum without gaps.
	for i := 0; i <= int(r.maxLogical); i++ {
		if _, ok := r.forward[uint8(i)]; !ok {
			return nil, errors.Wrapf(ErrMissingLogicalID, "logical table %v is not bound to any device", i)
		}
	}

	return r, nil
}

// isSharedBinding reports whether the logical IDs may share the physical
// location. Only the entry and the exit tables of the whole pipeline may share
// table 0 of the smallest device.
func (r *Registry) isSharedBinding(smallest int, loc Location, logical []uint8) bool {
	if loc.Device != smallest || loc.Table != 0 {
		return false
	}
	for _, v := range logical {
		if v != 0 && v != r.maxLogical {
			return false
		}
	}

	return true
}

// Resolve returns the physical location of the logical table. ErrUnroutable is
// returned if the logical table is not defined.
func (r *Registry) Resolve(logical uint8) (Location, error) {
	loc, ok := r.forward[logical]
	if !ok {
		return Location{}, errors.Wrapf(ErrUnroutable, "logical table %v", logical)
	}

	return loc, nil
}

// ResolvePhysical returns the logical IDs bound to the physical table in
// ascending order. The list has two elements only for the shared binding of
// the entry and the exit tables, and it is nil if nothing is bound.
func (r *Registry) ResolvePhysical(device int, table uint8) []uint8 {
	ids := r.reverse[Location{Device: device, Table: table}]
	if ids == nil {
		return nil
	}

	return append([]uint8(nil), ids...)
}

func (r *Registry) MaxLogicalTable() uint8 {
	return r.maxLogical
}

// TotalTables returns the number of logical tables of the virtual switch.
func (r *Registry) TotalTables() int {
	return len(r.forward)
}

func (r *Registry) Smallest() int {
	return r.devices[0].ID
}

func (r *Registry) Biggest() int {
	return r.devices[len(r.devices)-1].ID
}

// IsMiddle reports whether the device is neither the smallest nor the biggest.
func (r *Registry) IsMiddle(device int) bool {
	_, ok := r.index[device]
	return ok && device != r.Smallest() && device != r.Biggest()
}

func (r *Registry) NextSmaller(device int) (int, bool) {
	i, ok := r.index[device]
	if !ok || i == 0 {
		return 0, false
	}

	return r.devices[i-1].ID, true
}

func (r *Registry) NextBigger(device int) (int, bool) {
	i, ok := r.index[device]
	if !ok || i == len(r.devices)-1 {
		return 0, false
	}

	return r.devices[i+1].ID, true
}

// Devices returns all device IDs in ascending order.
func (r *Registry) Devices() []int {
	ids := make([]int, len(r.devices))
	for i, d := range r.devices {
		ids[i] = d.ID
	}

	return ids
}

func (r *Registry) Device(id int) (config.DeviceConfig, bool) {
	i, ok := r.index[id]
	if !ok {
		return config.DeviceConfig{}, false
	}

	return r.devices[i], true
}

// Bindings returns every logical table binding in ascending order of the logical IDs.
func (r *Registry) Bindings() []Binding {
	result := make([]Binding, 0, len(r.forward))
	for logical, loc := range r.forward {
		result = append(result, Binding{Logical: logical, Device: loc.Device, Physical: loc.Table})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Logical < result[j].Logical })

	return result
}
