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

// Package multiswitch implements the stage that presents a chain of devices to
// the controller as one switch. Requests are fanned out to every device, the
// replies are merged into one logical reply, and flow tables are translated
// between the logical and the physical numbering.
package multiswitch

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/superkkt/tablevisor/config"
	"github.com/superkkt/tablevisor/message"
	"github.com/superkkt/tablevisor/metrics"
	"github.com/superkkt/tablevisor/openflow/of13"
	"github.com/superkkt/tablevisor/pipeline"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var logger = logging.MustGetLogger("multiswitch")

const (
	Manufacturer = "TableVisor"
	Hardware     = "Emulated MultiSwitch"
)

func init() {
	pipeline.Register("multiswitch", func(env *pipeline.Env) (pipeline.Stage, error) {
		return New(env)
	})
}

// roundKey identifies an aggregation round. Kind is the multipart type of
// stats rounds and zero otherwise.
type roundKey struct {
	category pipeline.Category
	kind     uint16
	xid      uint32
}

func (r roundKey) String() string {
	if r.category == pipeline.CategoryStats {
		return fmt.Sprintf("%v(%v, xid=%v)", r.category, of13.MultipartName(r.kind), r.xid)
	}
	return fmt.Sprintf("%v(xid=%v)", r.category, r.xid)
}

type round struct {
	started time.Time
	// replied holds the devices whose final reply has been merged.
	replied map[int]bool
	merger  merger
}

// Round describes an open aggregation round.
type Round struct {
	Category      string    `json:"category"`
	Kind          string    `json:"kind,omitempty"`
	TransactionID uint32    `json:"xid"`
	Started       time.Time `json:"started"`
	Replied       []int     `json:"replied"`
	Waiting       []int     `json:"waiting"`
}

// Aggregator fans requests out to all connected devices and merges their
// replies into one reply for the controller.
type Aggregator struct {
	pipeline.Base
	rewriter
	devices pipeline.DeviceSet
	metrics *metrics.Metrics
	dpid    uint64
	version string

	mutex  sync.Mutex
	rounds map[roundKey]*round
	// tables holds the logical table of the pending flow stats requests that
	// ask for a single table.
	tables map[uint32]uint8
	// expected holds the devices of the rounds that do not involve all devices.
	expected map[roundKey][]int
}

func New(env *pipeline.Env) (*Aggregator, error) {
	if env == nil {
		panic("nil stage environment")
	}
	if env.Config == nil {
		return nil, errors.New("nil configuration")
	}
	if env.Registry == nil {
		return nil, errors.New("nil registry")
	}
	if env.Devices == nil {
		return nil, errors.New("nil device set")
	}

	dpid, err := config.ParseDatapathID(env.Config.Default.DatapathID)
	if err != nil {
		return nil, errors.Wrap(err, "parsing the logical datapath ID")
	}

	return &Aggregator{
		rewriter: rewriter{registry: env.Registry},
		devices:  env.Devices,
		metrics:  env.Metrics,
		dpid:     dpid,
		version:  env.Version,
		rounds:   make(map[roundKey]*round),
		tables:   make(map[uint32]uint8),
		expected: make(map[roundKey][]int),
	}, nil
}

func (r *Aggregator) String() string {
	return "multiswitch"
}

// Pending returns the open aggregation rounds.
func (r *Aggregator) Pending() []Round {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	result := make([]Round, 0, len(r.rounds))
	for k, v := range r.rounds {
		p := Round{
			Category:      k.category.String(),
			TransactionID: k.xid,
			Started:       v.started,
			Replied:       make([]int, 0),
			Waiting:       make([]int, 0),
		}
		if k.category == pipeline.CategoryStats {
			p.Kind = of13.MultipartName(k.kind)
		}
		for _, id := range r.participants(k) {
			if v.replied[id] {
				p.Replied = append(p.Replied, id)
			} else {
				p.Waiting = append(p.Waiting, id)
			}
		}
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Started.Before(result[j].Started) })

	return result
}

// participants returns the devices that should reply in the round. It should
// be called with the mutex locked.
func (r *Aggregator) participants(k roundKey) []int {
	if v, ok := r.expected[k]; ok {
		return v
	}
	return r.devices.Connected()
}

// answered reports whether every participant of the round has replied. It
// should be called with the mutex locked.
func (r *Aggregator) answered(k roundKey, rnd *round) bool {
	for _, id := range r.participants(k) {
		if !rnd.replied[id] {
			return false
		}
	}

	return true
}

// finish removes the completed round. It should be called with the mutex locked.
func (r *Aggregator) finish(k roundKey, rnd *round) {
	delete(r.rounds, k)
	delete(r.expected, k)
	if k.category == pipeline.CategoryStats && k.kind == of13.OFPMP_FLOW {
		delete(r.tables, k.xid)
	}
	r.metrics.RecordRoundCompleted(k.category.String(), time.Since(rnd.started))
	r.metrics.SetOpenRounds(len(r.rounds))
	logger.Debugf("aggregation round %v is completed", k)
}

// lookup returns the round of the key, creating it if it does not exist. It
// should be called with the mutex locked.
func (r *Aggregator) lookup(k roundKey, create func() merger) *round {
	rnd, ok := r.rounds[k]
	if ok {
		return rnd
	}

	rnd = &round{
		started: time.Now(),
		replied: make(map[int]bool),
	}
	if create != nil {
		rnd.merger = create()
	}
	r.rounds[k] = rnd
	r.metrics.SetOpenRounds(len(r.rounds))

	return rnd
}

func (r *Aggregator) duplicated(k roundKey, device int) {
	logger.Warningf("duplicated %v reply from device %v: devices are out of sync", k, device)
	r.metrics.RecordDuplicate(k.category.String())
}

// gather merges the device reply into its round and sends the logical reply
// to the controller once every device has replied. It returns false if the
// reply is discarded.
func (r *Aggregator) gather(category pipeline.Category, kind uint16, m *message.Message, create func() merger) bool {
	xid := m.OpenFlow.TransactionID()
	k := roundKey{category: category, kind: kind, xid: xid}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	rnd := r.lookup(k, create)
	if rnd.replied[m.Device] {
		r.duplicated(k, m.Device)
		return false
	}
	if err := rnd.merger.merge(m.Device, m.OpenFlow); err != nil {
		logger.Errorf("failed to merge %v reply from device %v: %v", k, m.Device, err)
		return false
	}
	if v, ok := m.OpenFlow.(*of13.MultipartReply); ok && v.More() {
		// Wait for the remaining parts of this device.
		return true
	}
	rnd.replied[m.Device] = true
	if !r.answered(k, rnd) {
		return true
	}

	r.finish(k, rnd)
	r.SendToController(message.NewOpenFlow(m.Device, rnd.merger.result(xid)))

	return true
}

// broadcast hands a copy of the message bound to each connected device to next.
// It returns false if no device is connected and the message is dropped.
func (r *Aggregator) broadcast(m *message.Message, next func(*message.Message)) bool {
	devices := r.devices.Connected()
	if len(devices) == 0 {
		logger.Warningf("no connected device: %v is dropped", m)
		return false
	}
	for _, id := range devices {
		next(m.WithDevice(id))
	}

	return true
}

func (r *Aggregator) unroutable(c pipeline.Category, m *message.Message, err error) {
	logger.Errorf("%v is dropped: %v", m, err)
	r.metrics.RecordUnroutable(c.String())
}

func (r *Aggregator) FeaturesToDevice(m *message.Message) {
	r.broadcast(m, r.Base.FeaturesToDevice)
}

func (r *Aggregator) FeaturesToController(m *message.Message) {
	if !m.IsOpenFlow() {
		r.Base.FeaturesToController(m)
		return
	}
	r.gather(pipeline.CategoryFeatures, 0, m, func() merger {
		return &featuresMerger{dpid: r.dpid, tables: r.registry.TotalTables()}
	})
}

func (r *Aggregator) GetConfigToDevice(m *message.Message) {
	r.broadcast(m, r.Base.GetConfigToDevice)
}

func (r *Aggregator) GetConfigToController(m *message.Message) {
	if !m.IsOpenFlow() {
		r.Base.GetConfigToController(m)
		return
	}
	r.gather(pipeline.CategoryGetConfig, 0, m, func() merger { return new(configMerger) })
}

func (r *Aggregator) SetConfigToDevice(m *message.Message) {
	r.broadcast(m, r.Base.SetConfigToDevice)
}

func (r *Aggregator) StatsToDevice(m *message.Message) {
	req, ok := m.OpenFlow.(*of13.MultipartRequest)
	if !ok || req.Flow == nil || req.Flow.TableID == of13.OFPTT_ALL {
		r.broadcast(m, r.Base.StatsToDevice)
		return
	}

	switch req.Kind {
	case of13.OFPMP_FLOW:
		// Devices are asked for all their tables and the entries of the other
		// logical tables are dropped from the replies.
		if _, err := r.registry.Resolve(req.Flow.TableID); err != nil {
			r.unroutable(pipeline.CategoryStats, m, err)
			return
		}
		r.mutex.Lock()
		r.tables[req.TransactionID()] = req.Flow.TableID
		r.mutex.Unlock()

		c := req.Clone()
		c.Flow.TableID = of13.OFPTT_ALL
		if !r.broadcast(message.NewOpenFlow(m.Device, c), r.Base.StatsToDevice) {
			// No reply will ever complete this round.
			r.mutex.Lock()
			delete(r.tables, req.TransactionID())
			r.mutex.Unlock()
		}
	case of13.OFPMP_AGGREGATE:
		loc, err := r.registry.Resolve(req.Flow.TableID)
		if err != nil {
			r.unroutable(pipeline.CategoryStats, m, err)
			return
		}
		k := roundKey{category: pipeline.CategoryStats, kind: of13.OFPMP_AGGREGATE, xid: req.TransactionID()}
		r.mutex.Lock()
		r.expected[k] = []int{loc.Device}
		r.mutex.Unlock()

		c := req.Clone()
		c.Flow.TableID = loc.Table
		r.Base.StatsToDevice(message.NewOpenFlow(loc.Device, c))
	default:
		r.broadcast(m, r.Base.StatsToDevice)
	}
}

func (r *Aggregator) StatsToController(m *message.Message) {
	reply, ok := m.OpenFlow.(*of13.MultipartReply)
	if !ok {
		r.Base.StatsToController(m)
		return
	}

	kind := reply.Kind
	base := multipart{kind: kind}
	switch kind {
	case of13.OFPMP_FLOW:
		r.flowStats(m, reply)
	case of13.OFPMP_DESC:
		accepted := r.gather(pipeline.CategoryStats, kind, m, func() merger {
			return &descMerger{multipart: base, version: r.version}
		})
		// The description is the signal that the device is ready.
		if accepted {
			r.stitch(m.Device)
		}
	case of13.OFPMP_TABLE:
		r.gather(pipeline.CategoryStats, kind, m, func() merger {
			return &tableStatsMerger{multipart: base, registry: r.registry}
		})
	case of13.OFPMP_PORT_STATS, of13.OFPMP_PORT_DESC, of13.OFPMP_QUEUE, of13.OFPMP_METER, of13.OFPMP_GROUP, of13.OFPMP_GROUP_DESC:
		r.gather(pipeline.CategoryStats, kind, m, func() merger {
			return &entriesMerger{multipart: base}
		})
	case of13.OFPMP_GROUP_FEATURES:
		r.gather(pipeline.CategoryStats, kind, m, func() merger {
			return &groupFeaturesMerger{multipart: base}
		})
	case of13.OFPMP_METER_FEATURES:
		r.gather(pipeline.CategoryStats, kind, m, func() merger {
			return &meterFeaturesMerger{multipart: base}
		})
	case of13.OFPMP_AGGREGATE:
		r.gather(pipeline.CategoryStats, kind, m, func() merger {
			return &aggregateMerger{multipart: base}
		})
	default:
		logger.Warningf("unrecognized stats reply type %v from device %v: passed through", of13.MultipartName(kind), m.Device)
		r.Base.StatsToController(m)
	}
}

// flowStats forwards every part of the flow stats replies as soon as it
// arrives. The parts carry the REPLY_MORE flag until the final part of the
// last device.
func (r *Aggregator) flowStats(m *message.Message, reply *of13.MultipartReply) {
	flows := r.flowStatsToController(m.Device, reply.Flows)
	k := roundKey{category: pipeline.CategoryStats, kind: of13.OFPMP_FLOW, xid: reply.TransactionID()}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	rnd := r.lookup(k, nil)
	if rnd.replied[m.Device] {
		r.duplicated(k, m.Device)
		return
	}
	if table, ok := r.tables[k.xid]; ok {
		flows = filterTable(flows, table)
	}
	if !reply.More() {
		rnd.replied[m.Device] = true
	}

	result := of13.NewMultipartReply(k.xid, of13.OFPMP_FLOW)
	result.Flows = flows
	result.Flags = reply.Flags | of13.OFPMPF_REPLY_MORE
	if r.answered(k, rnd) {
		result.Flags &^= of13.OFPMPF_REPLY_MORE
		r.finish(k, rnd)
	}
	r.SendToController(message.NewOpenFlow(m.Device, result))
}

func filterTable(flows []*of13.FlowStats, table uint8) []*of13.FlowStats {
	result := make([]*of13.FlowStats, 0, len(flows))
	for _, f := range flows {
		if f.TableID == table {
			result = append(result, f)
		}
	}

	return result
}

// stitch installs the stitching flow into the device if it is in the middle of the chain.
func (r *Aggregator) stitch(device int) {
	flow, ok := r.stitchFlow(device)
	if !ok {
		return
	}
	logger.Infof("installing the stitching flow into device %v: match=%v", device, flow.Match)
	r.Base.FlowModToDevice(message.NewOpenFlow(device, flow))
}

func (r *Aggregator) TableModToDevice(m *message.Message) {
	mod, ok := m.OpenFlow.(*of13.TableMod)
	if !ok {
		r.broadcast(m, r.Base.TableModToDevice)
		return
	}
	if mod.TableID == of13.OFPTT_ALL {
		r.broadcast(m, r.Base.TableModToDevice)
		return
	}

	loc, err := r.registry.Resolve(mod.TableID)
	if err != nil {
		r.unroutable(pipeline.CategoryTableMod, m, err)
		return
	}
	c := *mod
	c.TableID = loc.Table
	r.Base.TableModToDevice(message.NewOpenFlow(loc.Device, &c))
}

func (r *Aggregator) FlowModToDevice(m *message.Message) {
	flow, ok := m.OpenFlow.(*of13.FlowMod)
	if !ok {
		logger.Warningf("unexpected flow-mod message: %v", m)
		r.broadcast(m, r.Base.FlowModToDevice)
		return
	}
	if flow.TableID == of13.OFPTT_ALL {
		r.broadcast(m, r.Base.FlowModToDevice)
		return
	}

	result, device, err := r.flowModToDevice(flow)
	if err != nil {
		r.unroutable(pipeline.CategoryFlowMod, m, err)
		return
	}
	r.Base.FlowModToDevice(message.NewOpenFlow(device, result))
}

func (r *Aggregator) FlowModToController(m *message.Message) {
	removed, ok := m.OpenFlow.(*of13.FlowRemoved)
	if !ok {
		r.Base.FlowModToController(m)
		return
	}
	if removed.Cookie == StitchCookie {
		logger.Infof("stitching flow of device %v is removed", m.Device)
		return
	}

	table, err := r.logicalTable(m.Device, removed.TableID)
	if err != nil {
		r.unroutable(pipeline.CategoryFlowMod, m, err)
		return
	}
	c := *removed
	c.TableID = table
	r.Base.FlowModToController(message.NewOpenFlow(m.Device, &c))
}

func (r *Aggregator) GroupModToDevice(m *message.Message) {
	r.broadcast(m, r.Base.GroupModToDevice)
}

func (r *Aggregator) PortModToDevice(m *message.Message) {
	r.broadcast(m, r.Base.PortModToDevice)
}

func (r *Aggregator) MeterModToDevice(m *message.Message) {
	r.broadcast(m, r.Base.MeterModToDevice)
}

func (r *Aggregator) RoleToDevice(m *message.Message) {
	r.broadcast(m, r.Base.RoleToDevice)
}

func (r *Aggregator) RoleToController(m *message.Message) {
	if !m.IsOpenFlow() {
		r.Base.RoleToController(m)
		return
	}
	r.gather(pipeline.CategoryRole, 0, m, func() merger { return new(lastMerger) })
}

func (r *Aggregator) BarrierToDevice(m *message.Message) {
	r.broadcast(m, r.Base.BarrierToDevice)
}

func (r *Aggregator) BarrierToController(m *message.Message) {
	if !m.IsOpenFlow() {
		r.Base.BarrierToController(m)
		return
	}
	r.gather(pipeline.CategoryBarrier, 0, m, func() merger { return new(lastMerger) })
}

func (r *Aggregator) PacketToDevice(m *message.Message) {
	// Packets enter the logical switch at its first table.
	loc, err := r.registry.Resolve(0)
	if err != nil {
		r.unroutable(pipeline.CategoryPacket, m, err)
		return
	}
	r.Base.PacketToDevice(m.WithDevice(loc.Device))
}

func (r *Aggregator) PacketToController(m *message.Message) {
	in, ok := m.OpenFlow.(*of13.PacketIn)
	if !ok {
		r.Base.PacketToController(m)
		return
	}

	table, err := r.logicalTable(m.Device, in.TableID)
	if err != nil {
		r.unroutable(pipeline.CategoryPacket, m, err)
		return
	}
	c := *in
	c.TableID = table
	r.Base.PacketToController(message.NewOpenFlow(m.Device, &c))
}

func (r *Aggregator) MiscToDevice(m *message.Message) {
	r.broadcast(m, r.Base.MiscToDevice)
}

func (r *Aggregator) CLIToDevice(m *message.Message) {
	r.broadcast(m, r.Base.CLIToDevice)
}

// ErrorToDevice and ErrorToController swallow parse errors.
func (r *Aggregator) ErrorToDevice(m *message.Message) {
	logger.Debugf("error is dropped: %v", m)
}

func (r *Aggregator) ErrorToController(m *message.Message) {
	logger.Debugf("error is dropped: %v", m)
}
