// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command mmio-srv serves the register banks of a device over the
// export protocol. The bank layout is fetched from the conditions
// database; registers are accessed through /dev/mem or, with -i2c,
// through an SMBus device.
package main // import "github.com/go-lpc/mmio/cmd/mmio-srv"

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/go-lpc/mmio/bank"
	"github.com/go-lpc/mmio/conddb"
	"github.com/go-lpc/mmio/export"
	"github.com/go-lpc/mmio/internal/i2cbus"
	"github.com/go-lpc/mmio/internal/mmap"
)

const memSpan = 4096

func main() {
	var (
		addr   = flag.String("addr", ":8877", "[ip]:port to serve on")
		dev    = flag.String("dev", "/dev/mem", "device file to map registers from")
		dbname = flag.String("db", "mmio", "name of the conditions database")
		i2c    = flag.String("i2c", "", "SMBus device to use instead of -dev (e.g. 1:0x48)")
	)

	flag.Parse()

	log.SetPrefix("mmio-srv: ")
	log.SetFlags(0)

	err := run(*addr, *dev, *dbname, *i2c)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(addr, dev, dbname, i2c string) error {
	db, err := conddb.Open(dbname)
	if err != nil {
		return fmt.Errorf("could not open conddb %q: %w", dbname, err)
	}
	defer db.Close()

	ctx := context.Background()
	layout, err := db.LastLayoutID(ctx)
	if err != nil {
		return fmt.Errorf("could not fetch layout-id: %w", err)
	}
	cfgs, err := db.Banks(ctx, layout)
	if err != nil {
		return fmt.Errorf("could not fetch banks for layout %d: %w", layout, err)
	}
	if len(cfgs) == 0 {
		return fmt.Errorf("no banks in layout %d", layout)
	}

	srv, err := export.New(addr)
	if err != nil {
		return fmt.Errorf("could not create export server: %w", err)
	}
	defer srv.Close()

	reg := bank.NewRegistry()
	for _, cfg := range cfgs {
		mem, err := openWindow(dev, i2c, int64(cfg.Base))
		if err != nil {
			return fmt.Errorf("could not open window for bank %q: %w", cfg.Name, err)
		}
		defer mem.Close()

		bk, err := cfg.Build(mem)
		if err != nil {
			return fmt.Errorf("could not build bank %q: %w", cfg.Name, err)
		}
		err = reg.Register(ctx, srv, bk)
		if err != nil {
			return fmt.Errorf("could not register bank %q: %w", cfg.Name, err)
		}
		defer reg.Unregister(srv, bk)
	}

	log.Printf("serving %d bank(s) on %q...", len(cfgs), srv.Addr())
	return srv.Serve()
}

type window interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
}

func openWindow(dev, i2c string, base int64) (window, error) {
	if i2c == "" {
		return mmap.Open(dev, base, memSpan)
	}
	bus, addr, err := parseI2C(i2c)
	if err != nil {
		return nil, err
	}
	return i2cbus.Open(bus, addr)
}

func parseI2C(s string) (bus int, addr uint8, err error) {
	toks := strings.Split(s, ":")
	if len(toks) != 2 {
		return 0, 0, fmt.Errorf("invalid i2c device %q (want bus:addr)", s)
	}
	bus, err = strconv.Atoi(toks[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid i2c bus in %q: %w", s, err)
	}
	v, err := strconv.ParseUint(toks[1], 0, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid i2c address in %q: %w", s, err)
	}
	return bus, uint8(v), nil
}
