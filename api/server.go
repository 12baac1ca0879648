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

// Package api serves the status of the virtualizer over HTTP.
package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ant0ine/go-json-rest/rest"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	logger = logging.MustGetLogger("api")
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	Address string
	Port    int
	// Gatherer exposes the metrics on /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// Handler returns the HTTP handler serving the routes and the metrics.
func (r *Server) Handler(routes ...*rest.Route) (http.Handler, error) {
	api := rest.NewApi()
	// Middleware to set the CORS header.
	api.Use(rest.MiddlewareSimple(func(handler rest.HandlerFunc) rest.HandlerFunc {
		return func(writer rest.ResponseWriter, request *rest.Request) {
			writer.Header().Set("Access-Control-Allow-Origin", "*")
			handler(writer, request)
		}
	}))
	api.Use(&rest.RecoverMiddleware{EnableResponseStackTrace: false})
	router, err := rest.MakeRouter(routes...)
	if err != nil {
		return nil, err
	}
	api.SetApp(router)

	mux := http.NewServeMux()
	mux.Handle("/api/", api.MakeHandler())
	if r.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(r.Gatherer, promhttp.HandlerOpts{}))
	}

	return mux, nil
}

// Serve listens on the configured address until ctx is canceled.
func (r *Server) Serve(ctx context.Context, routes ...*rest.Route) error {
	handler, err := r.Handler(routes...)
	if err != nil {
		return err
	}

	s := &http.Server{
		Addr:    net.JoinHostPort(r.Address, strconv.Itoa(r.Port)),
		Handler: handler,
	}
	go func() {
		<-ctx.Done()
		c, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.Shutdown(c); err != nil {
			logger.Errorf("failed to shutdown the REST server: %v", err)
		}
	}()

	logger.Infof("REST API is listening on %v", s.Addr)
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "failed to listen on HTTP")
	}

	return nil
}
