// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package runtimeenv is the ambient process-lifecycle wiring: turning
// OS signals into a canceled context, and logging shutdown.
package runtimeenv

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ClusterCockpit/decoderuntime/pkg/rlog"
)

// WithShutdownSignal returns a context canceled on SIGINT/SIGTERM, and a
// stop function releasing the signal handler. Callers pass the context
// to registry.WatchSearchPaths, whose watch loop exits once the context
// is canceled; session teardown is not tied to it.
func WithShutdownSignal(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	return ctx, cancel
}

// LogShutdown is a small convenience so every shutdown path logs
// identically.
func LogShutdown(reason string) {
	rlog.Infof("runtimeenv: shutting down (%s)", reason)
}
