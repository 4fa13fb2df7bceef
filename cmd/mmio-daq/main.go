// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command mmio-daq exposes register banks to a TDAQ run control and,
// while running, publishes sampled field values on its /regs output.
package main // import "github.com/go-lpc/mmio/cmd/mmio-daq"

import (
	"context"
	"log"
	"os"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
	"github.com/go-lpc/mmio/bank"
	"github.com/go-lpc/mmio/daq"
	"github.com/go-lpc/mmio/export"
)

func main() {
	cmd := flags.New()

	var (
		addr   = ":8877"
		dbname = "mmio"
	)
	switch len(cmd.Args) {
	case 0:
		// defaults
	case 1:
		addr = cmd.Args[0]
	default:
		addr = cmd.Args[0]
		dbname = cmd.Args[1]
	}

	xsrv, err := export.New(addr)
	if err != nil {
		log.Panicf("error: %+v", err)
	}
	defer xsrv.Close()
	go func() { _ = xsrv.Serve() }()

	dev := daq.New("mmio-daq", "/dev/mem", dbname, bank.NewRegistry(), xsrv)

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)

	srv.OutputHandle("/regs", dev.Regs)

	srv.RunHandle(dev.Run)

	err = srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}
