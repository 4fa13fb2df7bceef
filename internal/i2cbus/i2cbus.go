// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package i2cbus exposes the byte registers of an SMBus device as a
// register window, so banks can describe I2C peripherals the same way
// they describe memory-mapped ones.
package i2cbus // import "github.com/go-lpc/mmio/internal/i2cbus"

import (
	"fmt"
	"io"
	"sync"

	"github.com/go-daq/smbus"
)

// regSpan is the register address space of an SMBus device.
const regSpan = 256

// Conn is a register window over one SMBus device.
type Conn struct {
	mu   sync.Mutex
	conn *smbus.Conn
	addr uint8
}

// Open connects to the SMBus device addr on the given bus.
func Open(bus int, addr uint8) (*Conn, error) {
	conn, err := smbus.Open(bus, addr)
	if err != nil {
		return nil, fmt.Errorf("i2cbus: could not open bus %d, addr 0x%x: %w", bus, addr, err)
	}
	return &Conn{conn: conn, addr: addr}, nil
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

// ReadAt reads len(p) consecutive byte registers starting at off.
func (c *Conn) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > regSpan {
		return 0, fmt.Errorf("i2cbus: invalid ReadAt offset %d", off)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range p {
		v, err := c.conn.ReadReg(c.addr, uint8(off)+uint8(i))
		if err != nil {
			return i, fmt.Errorf("i2cbus: could not read register 0x%x: %w", uint8(off)+uint8(i), err)
		}
		p[i] = v
	}
	return len(p), nil
}

// WriteAt writes len(p) consecutive byte registers starting at off.
func (c *Conn) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > regSpan {
		return 0, fmt.Errorf("i2cbus: invalid WriteAt offset %d", off)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, v := range p {
		err := c.conn.WriteReg(c.addr, uint8(off)+uint8(i), v)
		if err != nil {
			return i, fmt.Errorf("i2cbus: could not write register 0x%x: %w", uint8(off)+uint8(i), err)
		}
	}
	return len(p), nil
}

var (
	_ io.ReaderAt = (*Conn)(nil)
	_ io.WriterAt = (*Conn)(nil)
	_ io.Closer   = (*Conn)(nil)
)
