// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package daq drives register banks from a TDAQ finite state machine:
// /config fetches the register layout from the conditions database,
// /init maps the hardware windows and registers the banks, /start and
// /stop gate the sampling loop publishing field values downstream.
package daq // import "github.com/go-lpc/mmio/daq"

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-daq/tdaq"
	"github.com/go-lpc/mmio/bank"
	"github.com/go-lpc/mmio/conddb"
	"github.com/go-lpc/mmio/internal/mmap"
)

// span of the window mapped for each bank. Register banks sit within
// one page of their base address.
const memSpan = 4096

// Server exposes a set of register banks to a TDAQ run control.
type Server struct {
	name   string
	devmem string
	dbname string

	registry *bank.Registry
	adapter  bank.Adapter

	newDB   func(name string) (db, error)
	openMem func(base int64) (*mmap.Handle, error)

	layout uint32
	cfgs   []conddb.Bank

	mems  []*mmap.Handle
	banks []*bank.Bank

	daq struct {
		run  uint32
		data chan []byte
	}
}

type db interface {
	LastLayoutID(ctx context.Context) (uint32, error)
	Banks(ctx context.Context, layout uint32) ([]conddb.Bank, error)
	Close() error
}

// New creates a Server reading registers of the device file devmem,
// configured from the conditions database dbname.
func New(name, devmem, dbname string, registry *bank.Registry, adapter bank.Adapter) *Server {
	return &Server{
		name:     name,
		devmem:   devmem,
		dbname:   dbname,
		registry: registry,
		adapter:  adapter,
		newDB: func(name string) (db, error) {
			return conddb.Open(name)
		},
		openMem: func(base int64) (*mmap.Handle, error) {
			return mmap.Open(devmem, base, memSpan)
		},
	}
}

// OnConfig fetches the latest register layout from the conditions db.
func (srv *Server) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")

	err := srv.config(ctx.Ctx)
	if err != nil {
		ctx.Msg.Errorf("could not configure: %+v", err)
		return err
	}
	ctx.Msg.Infof("configured %d bank(s) from layout %d", len(srv.cfgs), srv.layout)
	return nil
}

func (srv *Server) config(ctx context.Context) error {
	dbc, err := srv.newDB(srv.dbname)
	if err != nil {
		return fmt.Errorf("daq: could not open conddb %q: %w", srv.dbname, err)
	}
	defer dbc.Close()

	layout, err := dbc.LastLayoutID(ctx)
	if err != nil {
		return fmt.Errorf("daq: could not fetch layout-id: %w", err)
	}

	cfgs, err := dbc.Banks(ctx, layout)
	if err != nil {
		return fmt.Errorf("daq: could not fetch banks for layout %d: %w", layout, err)
	}

	srv.layout = layout
	srv.cfgs = cfgs
	return nil
}

// OnInit maps the hardware windows and registers every configured bank.
func (srv *Server) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")

	err := srv.init(ctx.Ctx)
	if err != nil {
		ctx.Msg.Errorf("could not initialize: %+v", err)
		return err
	}
	ctx.Msg.Infof("registered %d bank(s)", len(srv.banks))
	return nil
}

func (srv *Server) init(ctx context.Context) error {
	if len(srv.cfgs) == 0 {
		return fmt.Errorf("daq: no configured banks (missing /config?)")
	}

	srv.daq.data = make(chan []byte, 1024)
	for _, cfg := range srv.cfgs {
		mem, err := srv.openMem(int64(cfg.Base))
		if err != nil {
			srv.unwind()
			return fmt.Errorf("daq: could not map window for bank %q: %w", cfg.Name, err)
		}

		bk, err := cfg.Build(mem)
		if err != nil {
			_ = mem.Close()
			srv.unwind()
			return fmt.Errorf("daq: could not build bank %q: %w", cfg.Name, err)
		}

		err = srv.registry.Register(ctx, srv.adapter, bk)
		if err != nil {
			_ = mem.Close()
			srv.unwind()
			return fmt.Errorf("daq: could not register bank %q: %w", cfg.Name, err)
		}

		srv.mems = append(srv.mems, mem)
		srv.banks = append(srv.banks, bk)
	}

	return nil
}

// OnReset unregisters every bank and unmaps the hardware windows.
func (srv *Server) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	srv.daq.run = 0
	srv.unwind()
	return nil
}

func (srv *Server) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	dec := tdaq.NewDecoder(bytes.NewReader(req.Body))
	run := dec.ReadU32()
	srv.daq.run = run
	ctx.Msg.Debugf("received /start command... (run=%d)", run)
	return nil
}

func (srv *Server) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /stop command... (run=%d)", srv.daq.run)
	srv.daq.run = 0
	return nil
}

func (srv *Server) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	srv.unwind()
	return nil
}

// Regs streams sampled field values downstream.
func (srv *Server) Regs(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-srv.daq.data:
		dst.Body = data
	}
	return nil
}

// Run samples every readable field of every registered bank while a
// run is in progress.
func (srv *Server) Run(ctx tdaq.Context) error {
	for {
		select {
		case <-ctx.Ctx.Done():
			return nil
		default:
			if srv.daq.run != 0 {
				srv.sample()
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func (srv *Server) sample() {
	var buf []byte
	for _, bk := range srv.registry.Banks() {
		for i := range bk.Fields {
			f := &bk.Fields[i]
			mode := f.Mode
			if mode == 0 {
				mode = bank.PermRW
			}
			if f.Mask == 0 || mode&bank.PermRead == 0 {
				continue
			}
			v, err := bk.Get(f)
			if err != nil {
				continue
			}
			buf = append(buf, fmt.Sprintf("%s/%s %d\n", bk.Name, f.Name, v)...)
		}
	}
	if buf == nil {
		return
	}
	select {
	case srv.daq.data <- buf:
	default:
	}
}

func (srv *Server) unwind() {
	for i := len(srv.banks) - 1; i >= 0; i-- {
		srv.registry.Unregister(srv.adapter, srv.banks[i])
	}
	srv.banks = nil
	for i := len(srv.mems) - 1; i >= 0; i-- {
		_ = srv.mems[i].Close()
	}
	srv.mems = nil
}
