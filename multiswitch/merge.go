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
	"encoding/binary"
	"fmt"

	"github.com/superkkt/tablevisor/openflow"
	"github.com/superkkt/tablevisor/openflow/of13"
	"github.com/superkkt/tablevisor/registry"
)

// merger accumulates the replies of one round.
type merger interface {
	// merge folds a reply, or a part of it, of the device into the accumulator.
	merge(device int, p openflow.Packet) error
	// result returns the logical reply once every device has replied.
	result(xid uint32) openflow.Packet
}

func unexpected(p openflow.Packet) error {
	return fmt.Errorf("unexpected message type: %T", p)
}

type featuresMerger struct {
	dpid         uint64
	tables       int
	buffers      uint32
	capabilities uint32
}

func (r *featuresMerger) merge(device int, p openflow.Packet) error {
	v, ok := p.(*of13.FeaturesReply)
	if !ok {
		return unexpected(p)
	}

	r.capabilities |= v.Capabilities
	// Zero means the device does not buffer packets at all.
	if v.NumBuffers != 0 && (r.buffers == 0 || v.NumBuffers < r.buffers) {
		r.buffers = v.NumBuffers
	}

	return nil
}

func (r *featuresMerger) result(xid uint32) openflow.Packet {
	reply := of13.NewFeaturesReply(xid)
	reply.DPID = r.dpid
	reply.NumBuffers = r.buffers
	reply.Capabilities = r.capabilities
	if r.tables > 0xFF {
		reply.NumTables = 0xFF
	} else {
		reply.NumTables = uint8(r.tables)
	}

	return reply
}

type configMerger struct {
	flags       uint16
	missSendLen uint16
	merged      bool
}

func (r *configMerger) merge(device int, p openflow.Packet) error {
	v, ok := p.(*of13.SwitchConfig)
	if !ok {
		return unexpected(p)
	}

	r.flags |= v.Flags
	if !r.merged {
		r.missSendLen = v.MissSendLen
		r.merged = true
	} else if r.missSendLen != v.MissSendLen {
		logger.Warningf("device %v has a different miss_send_len: expected=%v, got=%v", device, r.missSendLen, v.MissSendLen)
	}

	return nil
}

func (r *configMerger) result(xid uint32) openflow.Packet {
	reply := of13.NewGetConfigReply(xid)
	reply.Flags = r.flags
	reply.MissSendLen = r.missSendLen

	return reply
}

// multipart keeps the fields common to all multipart mergers.
type multipart struct {
	kind  uint16
	flags uint16
}

func (r *multipart) reply(p openflow.Packet) (*of13.MultipartReply, error) {
	v, ok := p.(*of13.MultipartReply)
	if !ok || v.Kind != r.kind {
		return nil, unexpected(p)
	}
	r.flags |= v.Flags &^ of13.OFPMPF_REPLY_MORE

	return v, nil
}

func (r *multipart) newReply(xid uint32) *of13.MultipartReply {
	reply := of13.NewMultipartReply(xid, r.kind)
	reply.Flags = r.flags

	return reply
}

// entriesMerger concatenates the entries of port stats, port descriptions,
// queue stats, meter stats, group stats and group descriptions.
type entriesMerger struct {
	multipart
	entries [][]byte
}

func (r *entriesMerger) merge(device int, p openflow.Packet) error {
	v, err := r.reply(p)
	if err != nil {
		return err
	}
	r.entries = append(r.entries, v.Entries...)

	return nil
}

func (r *entriesMerger) result(xid uint32) openflow.Packet {
	reply := r.newReply(xid)
	reply.Entries = r.entries

	return reply
}

// tableStatsMerger concatenates the table stats after translating the
// physical table IDs. A physical table bound to two logical tables is
// reported twice.
type tableStatsMerger struct {
	multipart
	registry *registry.Registry
	tables   []*of13.TableStats
}

func (r *tableStatsMerger) merge(device int, p openflow.Packet) error {
	v, err := r.reply(p)
	if err != nil {
		return err
	}
	for _, t := range v.Tables {
		for _, id := range r.registry.ResolvePhysical(device, t.TableID) {
			c := *t
			c.TableID = id
			r.tables = append(r.tables, &c)
		}
	}

	return nil
}

func (r *tableStatsMerger) result(xid uint32) openflow.Packet {
	reply := r.newReply(xid)
	reply.Tables = r.tables

	return reply
}

type groupFeaturesMerger struct {
	multipart
	features *of13.GroupFeatures
}

func (r *groupFeaturesMerger) merge(device int, p openflow.Packet) error {
	v, err := r.reply(p)
	if err != nil {
		return err
	}
	if v.GroupFeatures == nil {
		return fmt.Errorf("empty group features")
	}

	if r.features == nil {
		c := *v.GroupFeatures
		r.features = &c
		return nil
	}
	r.features.Types |= v.GroupFeatures.Types
	r.features.Capabilities |= v.GroupFeatures.Capabilities
	for i := range r.features.MaxGroups {
		r.features.MaxGroups[i] = min32(r.features.MaxGroups[i], v.GroupFeatures.MaxGroups[i])
		r.features.Actions[i] |= v.GroupFeatures.Actions[i]
	}

	return nil
}

func (r *groupFeaturesMerger) result(xid uint32) openflow.Packet {
	reply := r.newReply(xid)
	reply.GroupFeatures = r.features
	if reply.GroupFeatures == nil {
		reply.GroupFeatures = new(of13.GroupFeatures)
	}

	return reply
}

type meterFeaturesMerger struct {
	multipart
	features *of13.MeterFeatures
}

func (r *meterFeaturesMerger) merge(device int, p openflow.Packet) error {
	v, err := r.reply(p)
	if err != nil {
		return err
	}
	if v.MeterFeatures == nil {
		return fmt.Errorf("empty meter features")
	}

	if r.features == nil {
		c := *v.MeterFeatures
		r.features = &c
		return nil
	}
	r.features.BandTypes |= v.MeterFeatures.BandTypes
	r.features.Capabilities |= v.MeterFeatures.Capabilities
	r.features.MaxMeter = min32(r.features.MaxMeter, v.MeterFeatures.MaxMeter)
	if v.MeterFeatures.MaxBands < r.features.MaxBands {
		r.features.MaxBands = v.MeterFeatures.MaxBands
	}
	if v.MeterFeatures.MaxColor < r.features.MaxColor {
		r.features.MaxColor = v.MeterFeatures.MaxColor
	}

	return nil
}

func (r *meterFeaturesMerger) result(xid uint32) openflow.Packet {
	reply := r.newReply(xid)
	reply.MeterFeatures = r.features
	if reply.MeterFeatures == nil {
		reply.MeterFeatures = new(of13.MeterFeatures)
	}

	return reply
}

// descMerger ignores the device descriptions. The logical switch describes itself.
type descMerger struct {
	multipart
	version string
}

func (r *descMerger) merge(device int, p openflow.Packet) error {
	_, err := r.reply(p)
	return err
}

func (r *descMerger) result(xid uint32) openflow.Packet {
	reply := r.newReply(xid)
	reply.Desc = &of13.DescStats{
		Manufacturer: Manufacturer,
		Hardware:     Hardware,
		Software:     r.version,
		SerialNumber: "None",
		Datapath:     "None",
	}

	return reply
}

// aggregateMerger sums the packet, byte and flow counters.
type aggregateMerger struct {
	multipart
	packets, bytes uint64
	flows          uint32
}

func (r *aggregateMerger) merge(device int, p openflow.Packet) error {
	v, err := r.reply(p)
	if err != nil {
		return err
	}
	if len(v.Body) < 24 {
		return openflow.ErrInvalidPacketLength
	}
	r.packets += binary.BigEndian.Uint64(v.Body[0:8])
	r.bytes += binary.BigEndian.Uint64(v.Body[8:16])
	r.flows += binary.BigEndian.Uint32(v.Body[16:20])

	return nil
}

func (r *aggregateMerger) result(xid uint32) openflow.Packet {
	reply := r.newReply(xid)
	reply.Body = make([]byte, 24)
	binary.BigEndian.PutUint64(reply.Body[0:8], r.packets)
	binary.BigEndian.PutUint64(reply.Body[8:16], r.bytes)
	binary.BigEndian.PutUint32(reply.Body[16:20], r.flows)
	// reply.Body[20:24] is padding

	return reply
}

// lastMerger reuses the reply of the last device, e.g., for role and barrier
// replies that carry nothing to merge.
type lastMerger struct {
	last openflow.Packet
}

func (r *lastMerger) merge(device int, p openflow.Packet) error {
	r.last = p
	return nil
}

func (r *lastMerger) result(xid uint32) openflow.Packet {
	return r.last
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
