// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package conddb // import "github.com/go-lpc/mmio/conddb"

import (
	"fmt"
	"io"

	"github.com/go-lpc/mmio/bank"
)

// Bank describes one register bank row of the conditions database.
type Bank struct {
	Name   string `json:"name"`
	Base   uint32 `json:"base"`
	Offset uint32 `json:"offset"`
	Width  uint8  `json:"width"`
	Fields []Field
}

// Field describes one bit-field row of the conditions database.
type Field struct {
	Name string `json:"name"`
	Mask uint32 `json:"mask"`
	Mode string `json:"mode"` // "r", "w" or "rw"
}

type rwer interface {
	io.ReaderAt
	io.WriterAt
}

// Build assembles the bank.Bank described by cfg, reading and writing
// its register through mem.
func (cfg Bank) Build(mem rwer) (*bank.Bank, error) {
	bk := &bank.Bank{
		Name:   cfg.Name,
		Width:  cfg.Width,
		Base:   cfg.Base,
		Offset: cfg.Offset,
		Mem:    mem,
		Fields: make([]bank.Field, 0, len(cfg.Fields)),
	}
	for _, f := range cfg.Fields {
		mode, err := parseMode(f.Mode)
		if err != nil {
			return nil, fmt.Errorf("conddb: invalid field %q of bank %q: %w", f.Name, cfg.Name, err)
		}
		bk.Fields = append(bk.Fields, bank.Field{
			Name: f.Name,
			Mask: f.Mask,
			Mode: mode,
		})
	}
	return bk, nil
}

func parseMode(mode string) (bank.Perm, error) {
	switch mode {
	case "r":
		return bank.PermRead, nil
	case "w":
		return bank.PermWrite, nil
	case "rw", "":
		return bank.PermRW, nil
	}
	return 0, fmt.Errorf("conddb: unknown mode %q", mode)
}
