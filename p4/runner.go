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

package p4

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/superkkt/tablevisor/config"
	"github.com/superkkt/tablevisor/message"
	"github.com/superkkt/tablevisor/metrics"

	"github.com/pkg/errors"
)

const defaultTimeout = 30 * time.Second

// Executor runs the command and returns its standard output.
type Executor func(ctx context.Context, name string, args []string) (string, error)

func execute(ctx context.Context, name string, args []string) (string, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if stderr.Len() > 0 {
			return "", fmt.Errorf("%v: %v", err, strings.TrimSpace(stderr.String()))
		}
		return "", err
	}

	return string(out), nil
}

// Runner is the transport of the devices of a P4 endpoint. Every CLI request
// sent to it runs the endpoint's tool in its own goroutine, and the output is
// handed to the reply handler as a CLI reply.
type Runner struct {
	cli     string
	devices map[int]config.DeviceConfig
	metrics *metrics.Metrics
	handler func(*message.Message)
	timeout time.Duration
	exec    Executor
	wg      sync.WaitGroup
}

func NewRunner(endpoint config.EndpointConfig, m *metrics.Metrics, handler func(*message.Message)) *Runner {
	if handler == nil {
		panic("nil CLI reply handler")
	}

	devices := make(map[int]config.DeviceConfig)
	for _, v := range endpoint.Devices {
		devices[v.ID] = v
	}

	return &Runner{
		cli:     endpoint.CLI,
		devices: devices,
		metrics: m,
		handler: handler,
		timeout: defaultTimeout,
		exec:    execute,
	}
}

// Devices returns the IDs of the devices driven by this runner.
func (r *Runner) Devices() []int {
	ids := make([]int, 0, len(r.devices))
	for k := range r.devices {
		ids = append(ids, k)
	}

	return ids
}

func (r *Runner) Send(m *message.Message) error {
	if m.Kind != message.KindCLI || m.CLI == nil {
		return fmt.Errorf("P4 devices only accept CLI requests: %v", m)
	}
	d, ok := r.devices[m.Device]
	if !ok {
		return fmt.Errorf("unknown P4 device: %v", m.Device)
	}

	args := Args(d, m.CLI.Args)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		logger.Debugf("running %v %v", r.cli, args)
		out, err := r.exec(ctx, r.cli, args)
		r.metrics.RecordCLI(err == nil)
		reply := message.NewCLIReply(m, out)
		if err != nil {
			reply.Err = errors.Wrapf(err, "running %v", r.cli)
		}
		r.handler(reply)
	}()

	return nil
}

// Wait blocks until all the running invocations have finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Args returns the command line of a request to the device. Arguments in the
// "--name value" form are split into two.
func Args(d config.DeviceConfig, args []string) []string {
	v := []string{"--rte-host", d.RTEHost, "--rte-port", strconv.Itoa(d.RTEPort)}
	for _, a := range args {
		if strings.HasPrefix(a, "--") {
			if i := strings.Index(a, " "); i > 0 {
				v = append(v, a[:i], a[i+1:])
				continue
			}
		}
		v = append(v, a)
	}

	return v
}
