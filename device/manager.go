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

// Package device is the transport toward the physical devices. OpenFlow
// switches connect to the listeners of their endpoints and are bound to the
// configured device IDs by datapath ID. P4 devices are driven through their
// command line tool and are available from the start.
package device

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/superkkt/tablevisor/config"
	"github.com/superkkt/tablevisor/message"
	"github.com/superkkt/tablevisor/metrics"
	"github.com/superkkt/tablevisor/p4"

	lru "github.com/hashicorp/golang-lru"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var (
	logger = logging.MustGetLogger("device")
)

// Maximum number of unknown datapath IDs remembered to suppress repeated warnings.
const maxRejected = 256

var (
	ErrNotConnected = errors.New("device is not connected")
	ErrUnknown      = errors.New("unknown device")
)

// Receiver takes the messages coming from the devices.
type Receiver interface {
	ToController(m *message.Message)
}

type Status struct {
	ID          int                 `json:"id"`
	Kind        config.EndpointType `json:"kind"`
	Endpoint    string              `json:"endpoint"`
	Connected   bool                `json:"connected"`
	Address     string              `json:"address,omitempty"`
	ConnectedAt *time.Time          `json:"connected_at,omitempty"`
}

type Manager struct {
	config  *config.Config
	metrics *metrics.Metrics
	devices map[int]config.DeviceConfig
	dpids   map[uint64]int
	runners map[int]*p4.Runner

	mutex    sync.Mutex
	receiver Receiver
	sessions map[int]*session
	since    map[int]time.Time
	// changed is closed and replaced whenever a device connects or disconnects.
	changed  chan struct{}
	rejected *lru.Cache
}

func NewManager(conf *config.Config, m *metrics.Metrics) (*Manager, error) {
	if conf == nil {
		panic("nil configuration")
	}

	rejected, err := lru.New(maxRejected)
	if err != nil {
		return nil, err
	}
	r := &Manager{
		config:   conf,
		metrics:  m,
		devices:  make(map[int]config.DeviceConfig),
		dpids:    make(map[uint64]int),
		runners:  make(map[int]*p4.Runner),
		sessions: make(map[int]*session),
		since:    make(map[int]time.Time),
		changed:  make(chan struct{}),
		rejected: rejected,
	}

	for _, d := range conf.Devices() {
		r.devices[d.ID] = d
		if d.Type != config.EndpointOpenFlow {
			continue
		}
		dpid, err := config.ParseDatapathID(d.DatapathID)
		if err != nil {
			return nil, errors.Wrapf(err, "datapath ID of device %v", d.ID)
		}
		r.dpids[dpid] = d.ID
	}
	now := time.Now()
	for _, e := range conf.Endpoints {
		if e.Type != config.EndpointP4 {
			continue
		}
		runner := p4.NewRunner(e, m, r.deliver)
		for _, id := range runner.Devices() {
			r.runners[id] = runner
			r.since[id] = now
			logger.Infof("P4 device %v is ready on endpoint %v", id, e.Name)
		}
	}
	r.metrics.SetConnectedDevices(len(r.runners))

	return r, nil
}

// SetReceiver sets the destination of the messages coming from the devices.
func (r *Manager) SetReceiver(recv Receiver) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.receiver = recv
}

func (r *Manager) deliver(m *message.Message) {
	r.mutex.Lock()
	recv := r.receiver
	r.mutex.Unlock()

	if recv == nil {
		logger.Warningf("dropping a message from device %v: no receiver", m.Device)
		return
	}
	recv.ToController(m)
}

func (r *Manager) Kind(device int) (config.EndpointType, bool) {
	d, ok := r.devices[device]
	if !ok {
		return "", false
	}

	return d.Type, true
}

// Connected returns the IDs of the connected devices in ascending order.
func (r *Manager) Connected() []int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.connected()
}

// NOTE: The caller should lock the mutex before calling this function.
func (r *Manager) connected() []int {
	ids := make([]int, 0, len(r.sessions)+len(r.runners))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	for id := range r.runners {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	return ids
}

func (r *Manager) IsConnected(device int) bool {
	if _, ok := r.runners[device]; ok {
		return true
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	_, ok := r.sessions[device]
	return ok
}

// Send writes the message to its device. OpenFlow messages are serialized in
// the caller's goroutine.
func (r *Manager) Send(m *message.Message) error {
	if runner, ok := r.runners[m.Device]; ok {
		return runner.Send(m)
	}
	if _, ok := r.devices[m.Device]; !ok {
		return ErrUnknown
	}
	if !m.IsOpenFlow() {
		return fmt.Errorf("OpenFlow device %v cannot take %v", m.Device, m)
	}

	r.mutex.Lock()
	s, ok := r.sessions[m.Device]
	r.mutex.Unlock()
	if !ok {
		return ErrNotConnected
	}

	return s.transceiver.Write(m.OpenFlow)
}

// WaitAll blocks until every configured device is connected.
func (r *Manager) WaitAll(ctx context.Context) error {
	for {
		r.mutex.Lock()
		n := len(r.sessions) + len(r.runners)
		changed := r.changed
		r.mutex.Unlock()

		if n == len(r.devices) {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "%v of %v devices are connected", n, len(r.devices))
		case <-changed:
		}
	}
}

// NOTE: The caller should lock the mutex before calling this function.
func (r *Manager) notify() {
	close(r.changed)
	r.changed = make(chan struct{})
	r.metrics.SetConnectedDevices(len(r.sessions) + len(r.runners))
}

// bind registers the session of the switch whose datapath ID is dpid. A
// previous session of the same switch is disconnected, and the switch is
// expected to connect again.
func (r *Manager) bind(dpid uint64, s *session) (int, error) {
	id, ok := r.dpids[dpid]
	if !ok {
		if _, seen := r.rejected.Get(dpid); !seen {
			logger.Warningf("rejecting unknown datapath ID %v from %v", config.FormatDatapathID(dpid), s.remoteAddr())
		}
		r.rejected.Add(dpid, time.Now())
		return 0, fmt.Errorf("unknown datapath ID: %v", config.FormatDatapathID(dpid))
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if prev, ok := r.sessions[id]; ok {
		prev.cancel()
		delete(r.sessions, id)
		delete(r.since, id)
		r.notify()
		return 0, fmt.Errorf("duplicated connection of device %v", id)
	}
	r.sessions[id] = s
	r.since[id] = time.Now()
	r.notify()
	logger.Infof("device %v (%v) is connected from %v", id, config.FormatDatapathID(dpid), s.remoteAddr())

	return id, nil
}

func (r *Manager) unbind(id int, s *session) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.sessions[id] != s {
		return
	}
	delete(r.sessions, id)
	delete(r.since, id)
	r.notify()
	logger.Warningf("device %v is disconnected", id)
}

// Status returns the state of all configured devices in ascending order of their IDs.
func (r *Manager) Status() []Status {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	result := make([]Status, 0, len(r.devices))
	for _, d := range r.devices {
		s := Status{
			ID:       d.ID,
			Kind:     d.Type,
			Endpoint: d.Endpoint,
		}
		if t, ok := r.since[d.ID]; ok {
			s.Connected = true
			s.ConnectedAt = &t
		}
		if sess, ok := r.sessions[d.ID]; ok {
			s.Address = sess.remoteAddr()
		}
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return result
}

func (r *Manager) String() string {
	return fmt.Sprintf("devices: configured=%v, connected=%v", len(r.devices), r.Connected())
}

// Wait blocks until the running CLI invocations have finished.
func (r *Manager) Wait() {
	seen := make(map[*p4.Runner]bool)
	for _, runner := range r.runners {
		if seen[runner] {
			continue
		}
		seen[runner] = true
		runner.Wait()
	}
}
