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

package pipeline

import (
	"fmt"
	"sort"
	"sync"

	"github.com/superkkt/tablevisor/config"
	"github.com/superkkt/tablevisor/metrics"
	"github.com/superkkt/tablevisor/registry"

	"github.com/pkg/errors"
)

// DeviceSet is the view of the device transport that stages need.
type DeviceSet interface {
	KindLookup
	// Connected returns the IDs of the connected devices in ascending order.
	Connected() []int
	IsConnected(device int) bool
}

// Env is handed to every stage constructor.
type Env struct {
	Config   *config.Config
	Registry *registry.Registry
	Devices  DeviceSet
	Metrics  *metrics.Metrics
	Version  string
}

type Constructor func(env *Env) (Stage, error)

var (
	mutex        sync.Mutex
	constructors = make(map[string]Constructor)
)

// Register makes a stage constructor available under the tag. It panics if the
// tag is already registered.
func Register(tag string, c Constructor) {
	mutex.Lock()
	defer mutex.Unlock()

	if c == nil {
		panic("nil stage constructor")
	}
	if _, ok := constructors[tag]; ok {
		panic(fmt.Sprintf("duplicated stage tag: %v", tag))
	}
	constructors[tag] = c
}

// Registered returns the registered tags in ascending order.
func Registered() []string {
	mutex.Lock()
	defer mutex.Unlock()

	tags := make([]string, 0, len(constructors))
	for k := range constructors {
		tags = append(tags, k)
	}
	sort.Strings(tags)

	return tags
}

// New creates the stage registered under the tag.
func New(tag string, env *Env) (Stage, error) {
	mutex.Lock()
	c, ok := constructors[tag]
	mutex.Unlock()

	if !ok {
		return nil, fmt.Errorf("unknown stage: %v", tag)
	}
	s, err := c(env)
	if err != nil {
		return nil, errors.Wrapf(err, "creating %v stage", tag)
	}

	return s, nil
}

// Build creates the stages of the tags and links them into a chain in order.
func Build(tags []string, env *Env, controller, device Sender) (*Chain, error) {
	if env == nil {
		panic("nil stage environment")
	}

	stages := make([]Stage, 0, len(tags))
	for _, tag := range tags {
		s, err := New(tag, env)
		if err != nil {
			return nil, err
		}
		logger.Infof("stage %v is created", tag)
		stages = append(stages, s)
	}

	return NewChain(controller, device, stages, env.Metrics), nil
}
