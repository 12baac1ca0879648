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

package multiswitch

import (
	"github.com/superkkt/tablevisor/config"
	"github.com/superkkt/tablevisor/openflow/of13"
	"github.com/superkkt/tablevisor/registry"

	"github.com/pkg/errors"
)

// rewriter translates table IDs, jumps and ports between the logical switch
// and the physical devices.
type rewriter struct {
	registry *registry.Registry
}

func (r *rewriter) device(id int) (config.DeviceConfig, error) {
	dev, ok := r.registry.Device(id)
	if !ok {
		return config.DeviceConfig{}, errors.Wrapf(registry.ErrUnroutable, "unknown device %v", id)
	}

	return dev, nil
}

// flowModToDevice returns a copy of the logical flow-mod that can be installed
// into the device owning its table, and the ID of the device.
func (r *rewriter) flowModToDevice(flow *of13.FlowMod) (*of13.FlowMod, int, error) {
	dest, err := r.registry.Resolve(flow.TableID)
	if err != nil {
		return nil, 0, err
	}
	src, err := r.device(dest.Device)
	if err != nil {
		return nil, 0, err
	}

	instructions := make([]of13.Instruction, 0, len(flow.Instructions))
	actions := make([]of13.Action, 0)
	// Jumps to other devices become outputs that follow the applied actions.
	outputs := make([]of13.Action, 0)
	position := -1
	for _, inst := range flow.Instructions {
		switch v := inst.(type) {
		case *of13.GotoTable:
			target, err := r.registry.Resolve(v.TableID)
			if err != nil {
				return nil, 0, err
			}
			if target.Device == dest.Device {
				instructions = append(instructions, &of13.GotoTable{TableID: target.Table})
				continue
			}
			port, err := linkPort(src, target.Device)
			if err != nil {
				return nil, 0, err
			}
			outputs = append(outputs, of13.NewOutput(port))
		case *of13.ApplyActions:
			if v.Kind != of13.OFPIT_APPLY_ACTIONS {
				instructions = append(instructions, inst)
				continue
			}
			actions = append(actions, v.Actions...)
			if position == -1 {
				position = len(instructions)
			}
		default:
			instructions = append(instructions, inst)
		}
	}

	actions = append(actions, outputs...)
	if len(actions) > 0 {
		if position == -1 {
			position = len(instructions)
		}
		instructions = append(instructions, nil)
		copy(instructions[position+1:], instructions[position:])
		instructions[position] = of13.NewApplyActions(actions...)
	}

	result := flow.Clone()
	result.TableID = dest.Table
	result.Instructions = instructions
	if flow.TableID == r.registry.MaxLogicalTable() {
		if port, ok := r.feedingPort(src); ok {
			if prev, ok := result.Match.InPort(); ok && prev != port {
				logger.Warningf("IN_PORT %v cannot be matched in the last logical table %v: overwritten by %v", prev, flow.TableID, port)
			}
			result.Match.SetInPort(port)
		}
	}

	return result, dest.Device, nil
}

// feedingPort returns the port of dev through which packets arrive at the last
// logical table. The exit table shared with the smallest device is fed by the
// next bigger device, otherwise the table is fed by the next smaller one.
func (r *rewriter) feedingPort(dev config.DeviceConfig) (uint32, bool) {
	if next, ok := r.registry.NextBigger(dev.ID); ok {
		return dev.InPort(next)
	}
	if prev, ok := r.registry.NextSmaller(dev.ID); ok {
		return dev.InPort(prev)
	}

	return 0, false
}

// linkPort returns the port of src that leads to the target device. The lowest
// port is used downstream and the highest one upstream.
func linkPort(src config.DeviceConfig, target int) (uint32, error) {
	var port uint32
	var ok bool
	if src.ID < target {
		port, ok = src.OutPort(target)
	} else {
		port, ok = src.InPort(target)
	}
	if !ok {
		return 0, errors.Wrapf(registry.ErrUnroutable, "no link from device %v to device %v", src.ID, target)
	}

	return port, nil
}

// logicalTable returns the first logical ID of the physical table.
func (r *rewriter) logicalTable(device int, table uint8) (uint8, error) {
	ids := r.registry.ResolvePhysical(device, table)
	if len(ids) == 0 {
		return 0, errors.Wrapf(registry.ErrUnroutable, "physical table %v of device %v", table, device)
	}

	return ids[0], nil
}

// flowStatsToController translates the flow entries reported by the device.
// Entries installed by the virtualizer itself are left out.
func (r *rewriter) flowStatsToController(device int, flows []*of13.FlowStats) []*of13.FlowStats {
	dev, err := r.device(device)
	if err != nil {
		logger.Errorf("failed to translate flow stats: %v", err)
		return nil
	}

	result := make([]*of13.FlowStats, 0, len(flows))
	for _, f := range flows {
		if r.isHidden(dev, f) {
			logger.Debugf("hidden flow entry is skipped: device=%v, table=%v, match=%v", device, f.TableID, f.Match)
			continue
		}
		ids := r.registry.ResolvePhysical(device, f.TableID)
		if len(ids) == 0 {
			logger.Warningf("flow entry in unbound physical table %v of device %v is skipped", f.TableID, device)
			continue
		}

		entry := f.Clone()
		entry.TableID = ids[0]
		if last := ids[len(ids)-1]; last == r.registry.MaxLogicalTable() && fedByLink(dev, f.Match) {
			// The IN_PORT was added for the last logical table, which may
			// share the physical table with the entry table.
			entry.Match.RemoveInPort()
			entry.TableID = last
		}
		entry.Instructions = r.instructionsToController(dev, f.Instructions)
		result = append(result, entry)
	}

	return result
}

// fedByLink reports whether the match requires packets coming from another device.
func fedByLink(dev config.DeviceConfig, match *of13.Match) bool {
	port, ok := match.InPort()

	return ok && dev.IsLinkPort(port)
}

func (r *rewriter) isHidden(dev config.DeviceConfig, f *of13.FlowStats) bool {
	if f.Cookie == StitchCookie {
		return true
	}
	if !r.registry.IsMiddle(dev.ID) || f.TableID != 0 || f.Match.Len() != 1 {
		return false
	}
	next, ok := r.registry.NextBigger(dev.ID)
	if !ok {
		return false
	}
	stitch, ok := dev.InPort(next)
	if !ok {
		return false
	}
	port, ok := f.Match.InPort()

	return ok && port == stitch
}

func (r *rewriter) instructionsToController(dev config.DeviceConfig, instructions []of13.Instruction) []of13.Instruction {
	result := make([]of13.Instruction, 0, len(instructions))
	for _, inst := range instructions {
		switch v := inst.(type) {
		case *of13.ApplyActions:
			if v.Kind != of13.OFPIT_APPLY_ACTIONS {
				result = append(result, inst)
				continue
			}
			actions, jump := r.actionsToController(dev, v.Actions)
			if len(actions) > 0 {
				result = append(result, &of13.ApplyActions{Kind: v.Kind, Actions: actions})
			}
			if jump != nil {
				result = append(result, jump)
			}
		case *of13.GotoTable:
			ids := dev.LogicalTables(v.TableID)
			if len(ids) == 0 {
				logger.Warningf("jump to unbound physical table %v of device %v is skipped", v.TableID, dev.ID)
				continue
			}
			// A jump never targets the entry table.
			result = append(result, &of13.GotoTable{TableID: ids[len(ids)-1]})
		default:
			result = append(result, inst)
		}
	}

	return result
}

// actionsToController removes the outputs toward the other devices and
// returns a jump to the table receiving the packets on the other side.
func (r *rewriter) actionsToController(dev config.DeviceConfig, actions []of13.Action) ([]of13.Action, *of13.GotoTable) {
	result := make([]of13.Action, 0, len(actions))
	var jump *of13.GotoTable
	for _, a := range actions {
		out, ok := a.(*of13.Output)
		if !ok {
			result = append(result, a)
			continue
		}
		neighbor, ok := dev.NeighborOf(out.Port)
		if !ok {
			result = append(result, a)
			continue
		}
		ids := r.registry.ResolvePhysical(neighbor, 0)
		if len(ids) == 0 {
			logger.Warningf("no logical table is bound to table 0 of device %v", neighbor)
			continue
		}
		jump = &of13.GotoTable{TableID: ids[len(ids)-1]}
	}

	return result, jump
}
