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

// Package p4 drives P4 programmable devices that only offer a command line
// interface. The control stage answers the OpenFlow requests such a device
// cannot answer itself and translates flow tables into CLI invocations.
package p4

import (
	"fmt"
	"sync"

	"github.com/superkkt/tablevisor/config"
	"github.com/superkkt/tablevisor/message"
	"github.com/superkkt/tablevisor/openflow/of13"
	"github.com/superkkt/tablevisor/pipeline"

	lru "github.com/hashicorp/golang-lru"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var logger = logging.MustGetLogger("p4")

const (
	Manufacturer = "TableVisor"
	Hardware     = "P4_Netronome"
	// Maximum number of flow stats requests waiting for their CLI replies.
	maxCollections = 1024
	portSpeed      = 10000000
)

func init() {
	pipeline.Register("p4-control", func(env *pipeline.Env) (pipeline.Stage, error) {
		c, err := New(env)
		if err != nil {
			return nil, err
		}
		return pipeline.CLIOnly(c, env.Devices), nil
	})
}

type target struct {
	config config.DeviceConfig
	dict   *Dictionary
}

type collectionKey struct {
	device int
	xid    uint32
}

// collection gathers the list-rules replies of the tables a flow stats request spans.
type collection struct {
	expected int
	received int
	flows    []*of13.FlowStats
}

// Control answers the requests sent to P4 devices on their behalf and turns
// flow-mods and flow stats requests into CLI invocations.
type Control struct {
	pipeline.Base
	targets map[int]*target
	dpid    uint64
	version string

	mutex       sync.Mutex
	collections *lru.Cache
}

func New(env *pipeline.Env) (*Control, error) {
	if env == nil {
		panic("nil stage environment")
	}
	if env.Config == nil {
		return nil, errors.New("nil configuration")
	}
	if env.Devices == nil {
		return nil, errors.New("nil device set")
	}

	dpid, err := config.ParseDatapathID(env.Config.Default.DatapathID)
	if err != nil {
		return nil, errors.Wrap(err, "parsing the logical datapath ID")
	}
	targets := make(map[int]*target)
	for _, v := range env.Config.Devices() {
		if v.Type != config.EndpointP4 {
			continue
		}
		dict, err := LoadDictionary(v.Dictionary)
		if err != nil {
			return nil, errors.Wrapf(err, "loading the dictionary of device %v", v.ID)
		}
		targets[v.ID] = &target{config: v, dict: dict}
		logger.Infof("device %v: %v tables are annotated in %v", v.ID, len(dict.Tables()), v.Dictionary)
	}
	cache, err := lru.New(maxCollections)
	if err != nil {
		return nil, err
	}

	return &Control{
		targets:     targets,
		dpid:        dpid,
		version:     env.Version,
		collections: cache,
	}, nil
}

func (r *Control) String() string {
	return "p4-control"
}

func (r *Control) target(m *message.Message) (*target, bool) {
	t, ok := r.targets[m.Device]
	if !ok {
		logger.Errorf("unknown P4 device: %v", m)
	}

	return t, ok
}

func (r *Control) FeaturesToDevice(m *message.Message) {
	t, ok := r.target(m)
	if !ok {
		return
	}
	reply := of13.NewFeaturesReply(m.OpenFlow.TransactionID())
	reply.DPID = r.dpid
	reply.NumBuffers = 1
	reply.NumTables = uint8(len(t.config.Tables))
	r.SendToController(message.NewOpenFlow(m.Device, reply))
}

func (r *Control) GetConfigToDevice(m *message.Message) {
	reply := of13.NewGetConfigReply(m.OpenFlow.TransactionID())
	reply.MissSendLen = of13.OFPCML_DEFAULT
	r.SendToController(message.NewOpenFlow(m.Device, reply))
}

func (r *Control) SetConfigToDevice(m *message.Message) {
	logger.Warningf("discarding set-config of P4 device %v", m.Device)
}

func (r *Control) RoleToDevice(m *message.Message) {
	reply := of13.NewRoleReply(m.OpenFlow.TransactionID(), of13.OFPCR_ROLE_MASTER)
	r.SendToController(message.NewOpenFlow(m.Device, reply))
}

// BarrierToDevice replies immediately. CLI invocations are not reordered.
func (r *Control) BarrierToDevice(m *message.Message) {
	r.SendToController(message.NewOpenFlow(m.Device, of13.NewBarrierReply(m.OpenFlow.TransactionID())))
}

func (r *Control) unsupported(m *message.Message) {
	logger.Warningf("discarding a message P4 devices do not support: %v", m)
}

func (r *Control) TableModToDevice(m *message.Message) {
	r.unsupported(m)
}

func (r *Control) GroupModToDevice(m *message.Message) {
	r.unsupported(m)
}

func (r *Control) PortModToDevice(m *message.Message) {
	r.unsupported(m)
}

func (r *Control) MeterModToDevice(m *message.Message) {
	r.unsupported(m)
}

func (r *Control) PacketToDevice(m *message.Message) {
	r.unsupported(m)
}

func (r *Control) MiscToDevice(m *message.Message) {
	r.unsupported(m)
}

func (r *Control) FlowModToDevice(m *message.Message) {
	t, ok := r.target(m)
	if !ok {
		return
	}
	fm, ok := m.OpenFlow.(*of13.FlowMod)
	if !ok {
		logger.Errorf("unexpected flow-mod message: %v", m)
		return
	}

	table, ok := t.dict.TableName(fm.TableID)
	if !ok {
		logger.Errorf("discarding flow-mod to unknown table %v of P4 device %v", fm.TableID, m.Device)
		return
	}
	args, err := flowModArgs(t.dict, table, fm)
	if err != nil {
		logger.Warningf("discarding flow-mod to P4 device %v: %v", m.Device, err)
		return
	}
	r.SendToDevice(message.NewCLIRequest(m.Device, args, nil))
}

func (r *Control) StatsToDevice(m *message.Message) {
	t, ok := r.target(m)
	if !ok {
		return
	}
	req, ok := m.OpenFlow.(*of13.MultipartRequest)
	if !ok {
		logger.Errorf("unexpected stats request: %v", m)
		return
	}

	xid := req.TransactionID()
	reply := of13.NewMultipartReply(xid, req.Kind)
	switch req.Kind {
	case of13.OFPMP_FLOW:
		r.flowStats(m, t, req)
		return
	case of13.OFPMP_DESC:
		reply.Desc = &of13.DescStats{
			Manufacturer: Manufacturer,
			Hardware:     Hardware,
			Software:     r.version,
			SerialNumber: "None",
			Datapath:     "None",
		}
	case of13.OFPMP_PORT_DESC:
		entries, err := portDescs(m.Device, t.config)
		if err != nil {
			logger.Errorf("building port descriptions of device %v: %v", m.Device, err)
			return
		}
		reply.Entries = entries
	case of13.OFPMP_METER_FEATURES:
		reply.MeterFeatures = new(of13.MeterFeatures)
	case of13.OFPMP_GROUP_FEATURES:
		reply.GroupFeatures = new(of13.GroupFeatures)
	case of13.OFPMP_AGGREGATE:
		reply.Body = make([]byte, 24)
	default:
		logger.Debugf("empty %v reply for P4 device %v", of13.MultipartName(req.Kind), m.Device)
	}
	r.SendToController(message.NewOpenFlow(m.Device, reply))
}

func portDescs(device int, c config.DeviceConfig) ([][]byte, error) {
	entries := make([][]byte, 0)
	for i := 0; i < c.Ports-len(c.Links); i++ {
		p := &of13.PortDesc{
			PortNo:   uint32(i),
			HWAddr:   [6]byte{byte(device), 0, 0, 0, 0, byte(i)},
			Name:     fmt.Sprintf("%v_%v", device, i),
			Current:  of13.OFPPF_10GB_FD | of13.OFPPF_COPPER,
			CurSpeed: portSpeed,
		}
		v, err := p.MarshalBinary()
		if err != nil {
			return nil, err
		}
		entries = append(entries, v)
	}

	return entries, nil
}

// flowStats lists the rules of every requested table. The reply is sent once
// all the tables have answered.
func (r *Control) flowStats(m *message.Message, t *target, req *of13.MultipartRequest) {
	tables := t.config.PhysicalTables()
	if req.Flow != nil && req.Flow.TableID != of13.OFPTT_ALL {
		tables = []uint8{req.Flow.TableID}
	}

	requests := make([]*message.Message, 0, len(tables))
	for _, id := range tables {
		name, ok := t.dict.TableName(id)
		if !ok {
			logger.Warningf("table %v of P4 device %v is not annotated", id, m.Device)
			continue
		}
		sub := req.Clone()
		if sub.Flow == nil {
			sub.Flow = &of13.FlowStatsRequest{}
		}
		sub.Flow.TableID = id
		args := []string{"tables", "--table-name " + name, "list-rules"}
		requests = append(requests, message.NewCLIRequest(m.Device, args, message.NewOpenFlow(m.Device, sub)))
	}
	if len(requests) == 0 {
		r.SendToController(message.NewOpenFlow(m.Device, of13.NewMultipartReply(req.TransactionID(), of13.OFPMP_FLOW)))
		return
	}

	key := collectionKey{device: m.Device, xid: req.TransactionID()}
	r.mutex.Lock()
	if r.collections.Contains(key) {
		logger.Warningf("flow stats request %v of P4 device %v is already in progress", key.xid, key.device)
	}
	if evicted := r.collections.Add(key, &collection{expected: len(requests)}); evicted {
		logger.Warningf("too many pending flow stats requests: the oldest one is dropped")
	}
	r.mutex.Unlock()

	for _, v := range requests {
		r.SendToDevice(v)
	}
}

func (r *Control) CLIToController(m *message.Message) {
	if m.CLI == nil {
		logger.Errorf("CLI message without exchange: %v", m)
		return
	}
	if m.CLI.Request == nil {
		if m.Err != nil {
			logger.Errorf("CLI invocation on device %v failed: args=%v, err=%v", m.Device, m.CLI.Args, m.Err)
		} else {
			logger.Debugf("CLI invocation on device %v: args=%v, reply=%v", m.Device, m.CLI.Args, m.CLI.Reply)
		}
		return
	}

	req, ok := m.CLI.Request.OpenFlow.(*of13.MultipartRequest)
	if !ok || req.Kind != of13.OFPMP_FLOW || req.Flow == nil {
		logger.Warningf("unexpected request of CLI reply: %v", m.CLI.Request)
		return
	}
	r.collect(m, req)
}

func (r *Control) collect(m *message.Message, req *of13.MultipartRequest) {
	t, ok := r.target(m)
	if !ok {
		return
	}

	var flows []*of13.FlowStats
	if m.Err != nil {
		logger.Errorf("listing rules of table %v on device %v: %v", req.Flow.TableID, m.Device, m.Err)
	} else {
		v, err := parseRules(t.dict, req.Flow.TableID, m.CLI.Reply)
		if err != nil {
			logger.Errorf("parsing rules of table %v on device %v: %v", req.Flow.TableID, m.Device, err)
		}
		flows = v
	}

	key := collectionKey{device: m.Device, xid: req.TransactionID()}
	r.mutex.Lock()
	v, ok := r.collections.Get(key)
	if !ok {
		r.mutex.Unlock()
		logger.Warningf("unexpected rule list of device %v: xid=%v", m.Device, key.xid)
		return
	}
	c := v.(*collection)
	c.received++
	c.flows = append(c.flows, flows...)
	done := c.received >= c.expected
	if done {
		r.collections.Remove(key)
	}
	r.mutex.Unlock()

	if !done {
		return
	}
	reply := of13.NewMultipartReply(key.xid, of13.OFPMP_FLOW)
	reply.Flows = c.flows
	r.SendToController(message.NewOpenFlow(m.Device, reply))
}
