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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/superkkt/tablevisor/api"
	"github.com/superkkt/tablevisor/api/status"
	"github.com/superkkt/tablevisor/config"
	"github.com/superkkt/tablevisor/controller"
	"github.com/superkkt/tablevisor/device"
	"github.com/superkkt/tablevisor/log"
	"github.com/superkkt/tablevisor/metrics"
	"github.com/superkkt/tablevisor/pipeline"
	"github.com/superkkt/tablevisor/registry"

	// Stages registered to the pipeline factory.
	_ "github.com/superkkt/tablevisor/multiswitch"
	_ "github.com/superkkt/tablevisor/p4"

	"github.com/davecgh/go-spew/spew"
	"github.com/fsnotify/fsnotify"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"
)

const (
	programName    = "tablevisor"
	programVersion = "1.0.0"
	// Time to finish the running CLI invocations on shutdown.
	shutdownTimeout = 5 * time.Second
)

var (
	logger            = logging.MustGetLogger("main")
	loggerLeveled     logging.LeveledBackend
	showVersion       = flag.Bool("version", false, "Show program version and exit")
	foreground        = flag.Bool("foreground", false, "Write the log to the standard error instead of syslog")
	defaultConfigFile = flag.String("config", fmt.Sprintf("/usr/local/etc/%v.yaml", programName), "absolute path of the configuration file")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Printf("Version: %v\n", programVersion)
		os.Exit(0)
	}

	v := viper.New()
	conf, err := initConfig(v)
	if err != nil {
		logger.Fatalf("failed to load the configuration: %v", err)
	}
	if loggerLeveled, err = log.Init(programName, *foreground, log.ParseLevel(conf.Default.LogLevel)); err != nil {
		logger.Fatalf("failed to init log: %v", err)
	}
	watchConfig(v)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		logger.Fatalf("failed to create metrics: %v", err)
	}

	tables, err := registry.Build(conf.Devices())
	if err != nil {
		logger.Fatalf("failed to build the table registry: %v", err)
	}
	devices, err := device.NewManager(conf, m)
	if err != nil {
		logger.Fatalf("failed to create the device manager: %v", err)
	}
	controllers := controller.NewManager(conf.Controllers)

	env := &pipeline.Env{
		Config:   conf,
		Registry: tables,
		Devices:  devices,
		Metrics:  m,
		Version:  programVersion,
	}
	chain, err := pipeline.Build(conf.Default.Stages, env, controllers, devices)
	if err != nil {
		logger.Fatalf("failed to build the stage pipeline: %v", err)
	}
	logger.Infof("stage pipeline:\n%v", chain)
	devices.SetReceiver(chain)
	controllers.SetReceiver(chain)

	ctx, cancel := context.WithCancel(context.Background())
	initSignalHandler(chain, devices, controllers, cancel)
	go func() {
		if err := devices.Serve(ctx); err != nil {
			logger.Fatalf("failed to serve the devices: %v", err)
		}
	}()
	initAPIServer(ctx, conf.REST, reg, devices, tables, chain)

	if err := waitDevices(ctx, devices, conf.Default.StartupTimeout); err != nil {
		logger.Fatalf("failed to wait for the devices: %v", err)
	}
	logger.Infof("all devices are connected: %v", devices.Connected())
	controllers.Serve(ctx)
}

func initConfig(v *viper.Viper) (*config.Config, error) {
	v.SetConfigFile(*defaultConfigFile)
	// Read the config file.
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "failed to read the config file")
	}

	return config.Load(v)
}

// watchConfig applies the log level whenever the config file changes. The
// other settings take effect on restart.
func watchConfig(v *viper.Viper) {
	v.OnConfigChange(func(e fsnotify.Event) {
		// Ignore the WRITE operation to avoid reading empty config.
		if e.Op != fsnotify.Write {
			return
		}

		if loggerLeveled != nil {
			// Set log level for all modules
			loggerLeveled.SetLevel(log.ParseLevel(v.GetString("default.log_level")), "")
		}
	})
	v.WatchConfig()
}

func waitDevices(ctx context.Context, devices *device.Manager, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	logger.Infof("waiting for the devices...")

	return devices.WaitAll(ctx)
}

// findRounds returns the stage keeping the aggregation rounds, or nil if the
// chain has no such stage.
func findRounds(chain *pipeline.Chain) status.Rounds {
	type unwrapper interface {
		Unwrap() pipeline.Stage
	}

	for _, s := range chain.Stages() {
		if v, ok := s.(unwrapper); ok {
			s = v.Unwrap()
		}
		if v, ok := s.(status.Rounds); ok {
			return v
		}
	}

	return nil
}

func initAPIServer(ctx context.Context, conf config.RESTConfig, reg *prometheus.Registry, devices *device.Manager, tables *registry.Registry, chain *pipeline.Chain) {
	if conf.Port == 0 {
		logger.Info("REST API is disabled")
		return
	}

	srv := &status.API{
		Server: api.Server{
			Address:  conf.Address,
			Port:     conf.Port,
			Gatherer: reg,
		},
		Devices: devices,
		Tables:  tables,
	}
	// Keep the interface nil if there is no aggregation stage.
	if rounds := findRounds(chain); rounds != nil {
		srv.Rounds = rounds
	}
	go func() {
		if err := srv.Serve(ctx); err != nil {
			logger.Fatalf("failed to run the API server: %v", err)
		}
	}()
}

func initSignalHandler(chain *pipeline.Chain, devices *device.Manager, controllers *controller.Manager, cancel context.CancelFunc) {
	go func() {
		c := make(chan os.Signal, 5)
		signal.Notify(c, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

		// Infinite loop.
		for {
			s := <-c
			if s == syscall.SIGTERM || s == syscall.SIGINT {
				// Graceful shutdown
				logger.Warning("Shutting down...")
				cancel()
				done := make(chan struct{})
				go func() {
					devices.Wait()
					close(done)
				}()
				select {
				case <-done:
				case <-time.After(shutdownTimeout):
					logger.Warning("CLI invocations are still running")
				}
				os.Exit(0)
			} else if s == syscall.SIGHUP {
				fmt.Println("* Pipeline:")
				fmt.Println(chain.String())
				fmt.Println("* Devices:")
				fmt.Println(devices.String())
				fmt.Println(spew.Sdump(devices.Status()))
				fmt.Println("* Controllers:")
				fmt.Println(controllers.String())
				if rounds := findRounds(chain); rounds != nil {
					fmt.Println("* Aggregation rounds:")
					fmt.Println(spew.Sdump(rounds.Pending()))
				}
			}
		}
	}()
}
