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

// Package controller connects the logical switch to the SDN controllers.
package controller

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/superkkt/tablevisor/config"
	"github.com/superkkt/tablevisor/message"

	"github.com/op/go-logging"
)

var (
	logger = logging.MustGetLogger("controller")

	ErrNotConnected = errors.New("not connected to any controller")
)

const dialTimeout = 5 * time.Second

// Receiver takes the messages coming from the controllers.
type Receiver interface {
	ToDevice(m *message.Message)
}

type dialer func(ctx context.Context, address string) (net.Conn, error)

func dial(ctx context.Context, address string) (net.Conn, error) {
	d := net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}
	return d.DialContext(ctx, "tcp", address)
}

// Manager keeps a session with every configured controller.
type Manager struct {
	sessions []*Session

	mutex    sync.Mutex
	receiver Receiver
}

func NewManager(conf []config.ControllerConfig) *Manager {
	r := new(Manager)
	for _, c := range conf {
		r.sessions = append(r.sessions, newSession(r, c, dial))
	}

	return r
}

// SetReceiver sets the destination of the messages coming from the controllers.
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
		logger.Warningf("dropping a message from the controller: no receiver: %v", m)
		return
	}
	recv.ToDevice(m)
}

// Serve runs the sessions until ctx is canceled.
func (r *Manager) Serve(ctx context.Context) {
	var wg sync.WaitGroup
	for _, s := range r.sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Run(ctx)
		}(s)
	}
	wg.Wait()
}

// Send writes the message to every connected controller.
func (r *Manager) Send(m *message.Message) error {
	sent := false
	var lastErr error
	for _, s := range r.sessions {
		err := s.Send(m)
		if err == ErrNotConnected {
			continue
		}
		if err != nil {
			logger.Errorf("failed to send a message to controller %v: %v", s.name, err)
			lastErr = err
			continue
		}
		sent = true
	}
	if sent {
		return nil
	}
	if lastErr != nil {
		return lastErr
	}

	return ErrNotConnected
}

// Connected returns the names of the connected controllers.
func (r *Manager) Connected() []string {
	names := make([]string, 0)
	for _, s := range r.sessions {
		if s.Connected() {
			names = append(names, s.name)
		}
	}

	return names
}

func (r *Manager) String() string {
	return fmt.Sprintf("controllers: configured=%v, connected=%v", len(r.sessions), r.Connected())
}

func address(c config.ControllerConfig) string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}
