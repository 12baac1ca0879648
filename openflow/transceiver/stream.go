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

package transceiver

import (
	"bufio"
	"io"
	"net"
	"sync"
	"time"

	"github.com/superkkt/tablevisor/openflow"
)

// Stream is a buffered OpenFlow channel whose reads and writes are bounded by timeouts.
type Stream struct {
	channel io.ReadWriteCloser

	reader struct {
		mutex sync.Mutex
		// Peek returns a slice of the internal buffer of rd, so rd is
		// locked until the caller gets its own copy.
		rd        *bufio.Reader
		timeout   time.Duration
		timestamp time.Time
	}

	writer struct {
		mutex     sync.Mutex
		timeout   time.Duration
		timestamp time.Time
	}
}

type deadline interface {
	SetReadDeadline(time.Time) error
	SetWriteDeadline(time.Time) error
}

func NewStream(channel io.ReadWriteCloser, bufSize int) *Stream {
	if channel == nil {
		panic("nil channel")
	}

	// The buffer should hold the longest possible message.
	if bufSize < 0xFFFF {
		bufSize = 0xFFFF
	}
	s := &Stream{channel: channel}
	s.reader.rd = bufio.NewReaderSize(channel, bufSize)

	return s
}

// RemoteAddr returns the peer address, or nil if the channel is not a network connection.
func (r *Stream) RemoteAddr() net.Addr {
	v, ok := r.channel.(interface {
		RemoteAddr() net.Addr
	})
	if !ok {
		return nil
	}

	return v.RemoteAddr()
}

func (r *Stream) SetReadTimeout(t time.Duration) {
	r.reader.mutex.Lock()
	defer r.reader.mutex.Unlock()

	r.reader.timeout = t
}

func (r *Stream) SetWriteTimeout(t time.Duration) {
	r.writer.mutex.Lock()
	defer r.writer.mutex.Unlock()

	r.writer.timeout = t
}

// ReadPacket reads the next framed OpenFlow message.
func (r *Stream) ReadPacket() ([]byte, error) {
	r.reader.mutex.Lock()
	defer r.reader.mutex.Unlock()

	r.setReadDeadline()
	header, err := r.reader.rd.Peek(openflow.HeaderLength)
	if err != nil {
		return nil, err
	}
	length, err := openflow.PeekLength(header)
	if err != nil {
		return nil, err
	}

	// Wait until the whole message is buffered, so that a timeout never
	// leaves a partially consumed message behind.
	if _, err := r.reader.rd.Peek(length); err != nil {
		return nil, err
	}
	packet := make([]byte, length)
	if _, err := io.ReadFull(r.reader.rd, packet); err != nil {
		return nil, err
	}
	r.reader.timestamp = time.Now()

	return packet, nil
}

// NOTE: The caller should lock the reader mutex before calling this function.
func (r *Stream) setReadDeadline() {
	d, ok := r.channel.(deadline)
	if !ok {
		return
	}

	if r.reader.timeout > 0 {
		d.SetReadDeadline(time.Now().Add(r.reader.timeout))
	} else {
		d.SetReadDeadline(time.Time{})
	}
}

// LastRead returns the timestamp of the last successful read.
func (r *Stream) LastRead() time.Time {
	r.reader.mutex.Lock()
	defer r.reader.mutex.Unlock()

	return r.reader.timestamp
}

func (r *Stream) Write(p []byte) (n int, err error) {
	r.writer.mutex.Lock()
	defer r.writer.mutex.Unlock()

	if d, ok := r.channel.(deadline); ok {
		if r.writer.timeout > 0 {
			d.SetWriteDeadline(time.Now().Add(r.writer.timeout))
		} else {
			d.SetWriteDeadline(time.Time{})
		}
	}
	n, err = r.channel.Write(p)
	if err != nil {
		return n, err
	}
	r.writer.timestamp = time.Now()

	return n, nil
}

// LastWrite returns the timestamp of the last successful write.
func (r *Stream) LastWrite() time.Time {
	r.writer.mutex.Lock()
	defer r.writer.mutex.Unlock()

	return r.writer.timestamp
}

func (r *Stream) Close() error {
	return r.channel.Close()
}
