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

package device

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/superkkt/tablevisor/config"

	"github.com/pkg/errors"
)

type keepAliver interface {
	SetKeepAlive(keepalive bool) error
	SetKeepAlivePeriod(d time.Duration) error
}

// Serve listens on every OpenFlow endpoint and serves the switch connections
// until ctx is canceled.
func (r *Manager) Serve(ctx context.Context) error {
	listeners := make([]net.Listener, 0)
	for _, e := range r.config.Endpoints {
		if e.Type != config.EndpointOpenFlow {
			continue
		}
		l, err := net.Listen("tcp", net.JoinHostPort(e.Address, fmt.Sprint(e.Port)))
		if err != nil {
			for _, v := range listeners {
				v.Close()
			}
			return errors.Wrapf(err, "listening on endpoint %v", e.Name)
		}
		logger.Infof("endpoint %v is listening on %v", e.Name, l.Addr())
		listeners = append(listeners, l)
	}

	var wg sync.WaitGroup
	for _, l := range listeners {
		wg.Add(1)
		go func(l net.Listener) {
			defer wg.Done()
			r.listen(ctx, l)
		}(l)
	}
	<-ctx.Done()
	for _, l := range listeners {
		l.Close()
	}
	wg.Wait()

	return nil
}

func (r *Manager) listen(ctx context.Context, l net.Listener) {
	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			logger.Errorf("failed to accept a new connection: %v", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		logger.Debugf("new switch is connected from %v", conn.RemoteAddr())

		if v, ok := conn.(keepAliver); ok {
			if err := v.SetKeepAlive(true); err == nil {
				// A broken connection will be disconnected within 45 seconds.
				v.SetKeepAlivePeriod(5 * time.Second)
			} else {
				logger.Errorf("failed to enable socket keepalive: %v", err)
			}
		}
		r.accept(ctx, conn)
	}
}

// accept serves the connection in a new goroutine.
func (r *Manager) accept(ctx context.Context, conn net.Conn) {
	s := newSession(r, conn)
	go s.run(ctx)
}
