// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bank describes a single hardware register as a bank of named,
// bit-masked fields, and provides masked read-modify-write access to them.
package bank // import "github.com/go-lpc/mmio/bank"

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"
	"sync"
)

// Perm describes the access mode of a field.
type Perm uint8

const (
	PermRead Perm = 1 << iota
	PermWrite

	PermRW = PermRead | PermWrite
)

func (p Perm) String() string {
	switch p {
	case PermRead:
		return "r"
	case PermWrite:
		return "w"
	case PermRW, 0:
		return "rw"
	}
	return fmt.Sprintf("Perm(0x%x)", uint8(p))
}

// Field names a masked sub-range of bits inside a register bank.
//
// A Field with a zero mask is a reserved placeholder: it is skipped
// during registration and never exposed.
type Field struct {
	Name string
	Mask uint32
	Mode Perm // zero value means read+write
}

func (f *Field) mode() Perm {
	if f.Mode == 0 {
		return PermRW
	}
	return f.Mode
}

type rwer interface {
	io.ReaderAt
	io.WriterAt
}

// Bank models exactly one hardware register of Width bytes located at
// Base+Offset, sliced into named fields. All fields share the register
// and the bank-wide lock: every Set is a read-modify-write of the whole
// register, so there is no finer, per-field locking.
type Bank struct {
	Name   string
	Width  uint8 // hardware access granularity: 1, 2 or 4 bytes
	Base   uint32
	Offset uint32
	Mem    rwer // mapped window holding the register
	Fields []Field

	mu         sync.RWMutex
	node       Node // presentation handle, valid while registered
	registered bool
}

// Get returns the current value of f, right-aligned to bit 0.
//
// The raw register read is performed under the bank's read lock;
// normalization happens on a local copy.
func (bk *Bank) Get(f *Field) (uint32, error) {
	if bk == nil || f == nil {
		return 0, fmt.Errorf("bank: nil bank or field: %w", ErrInvalidArgument)
	}

	bk.mu.RLock()
	reg, err := bk.read()
	bk.mu.RUnlock()
	if err != nil {
		return 0, err
	}

	reg &= f.Mask
	if f.Mask != 0 {
		reg >>= uint(bits.TrailingZeros32(f.Mask))
	}
	return reg, nil
}

// Set stores the right-aligned value v into f, leaving all bits outside
// f's mask untouched. The whole read-modify-write cycle runs under the
// bank's write lock. Values wider than the field fail with ErrOverflow
// and leave the register unmodified.
func (bk *Bank) Set(f *Field, v uint32) error {
	if bk == nil || f == nil {
		return fmt.Errorf("bank: nil bank or field: %w", ErrInvalidArgument)
	}

	bk.mu.Lock()
	defer bk.mu.Unlock()

	reg, err := bk.read()
	if err != nil {
		return err
	}

	// Align v into the field's bit position. The shift is computed in
	// 64 bits so bits pushed past the register width still fail the
	// mask comparison below.
	vv := uint64(v)
	if v != 0 {
		vv <<= uint(bits.TrailingZeros32(f.Mask))
	}
	if vv&uint64(f.Mask) != vv {
		return fmt.Errorf(
			"bank: value 0x%x does not fit field %q (mask=0x%x): %w",
			v, f.Name, f.Mask, ErrOverflow,
		)
	}

	reg &^= f.Mask
	reg |= uint32(vv)

	return bk.write(reg)
}

func (bk *Bank) read() (uint32, error) {
	var buf [4]byte
	_, err := bk.Mem.ReadAt(buf[:bk.Width], int64(bk.Offset))
	if err != nil {
		return 0, fmt.Errorf(
			"bank: could not read register %q at 0x%x: %w",
			bk.Name, bk.Base+bk.Offset, err,
		)
	}
	switch bk.Width {
	case 1:
		return uint32(buf[0]), nil
	case 2:
		return uint32(binary.LittleEndian.Uint16(buf[:2])), nil
	default:
		return binary.LittleEndian.Uint32(buf[:4]), nil
	}
}

func (bk *Bank) write(reg uint32) error {
	var buf [4]byte
	switch bk.Width {
	case 1:
		buf[0] = uint8(reg)
	case 2:
		binary.LittleEndian.PutUint16(buf[:2], uint16(reg))
	default:
		binary.LittleEndian.PutUint32(buf[:4], reg)
	}
	_, err := bk.Mem.WriteAt(buf[:bk.Width], int64(bk.Offset))
	if err != nil {
		return fmt.Errorf(
			"bank: could not write register %q at 0x%x: %w",
			bk.Name, bk.Base+bk.Offset, err,
		)
	}
	return nil
}
