// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bank

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
)

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for registration diagnostics.
func WithLogger(msg *log.Logger) Option {
	return func(reg *Registry) {
		reg.msg = msg
	}
}

// Registry tracks the set of currently registered banks.
type Registry struct {
	msg *log.Logger

	mu    sync.RWMutex
	banks []*Bank
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	reg := &Registry{
		msg: log.New(os.Stdout, "mmio: ", 0),
	}
	for _, opt := range opts {
		opt(reg)
	}
	return reg
}

// Banks returns a snapshot of the registered banks, in registration order.
func (reg *Registry) Banks() []*Bank {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return append([]*Bank(nil), reg.banks...)
}

// Register validates bk, creates its external presentation and exposes
// every non-reserved field through ad, then inserts bk into the registry.
//
// A failure to expose a field unwinds every exposure already bound for
// bk (in reverse order) and destroys the presentation: a bank is never
// left half-exposed. Errors from the adapter propagate unchanged.
func (reg *Registry) Register(ctx context.Context, ad Adapter, bk *Bank) error {
	if bk == nil || bk.Mem == nil || len(bk.Fields) == 0 || bk.Name == "" {
		return fmt.Errorf("bank: missing name, fields or memory window: %w", ErrInvalidArgument)
	}
	switch bk.Width {
	case 1, 2, 4:
		// ok
	default:
		return fmt.Errorf("bank: invalid width %d for bank %q: %w", bk.Width, bk.Name, ErrInvalidArgument)
	}
	if bk.Width > 1 && (bk.Base+bk.Offset)&uint32(bk.Width-1) != 0 {
		return fmt.Errorf(
			"bank: register address 0x%x of bank %q not aligned to %d bytes: %w",
			bk.Base+bk.Offset, bk.Name, bk.Width, ErrInvalidArgument,
		)
	}

	node, err := ad.Present(ctx, bk.Name)
	if err != nil {
		return err
	}

	var bound []string
	for i := range bk.Fields {
		f := &bk.Fields[i]
		if f.Mask == 0 {
			reg.msg.Printf("skipping field %d (%s) of bank %q: mask is zero", i, f.Name, bk.Name)
			continue
		}
		err := ad.Expose(node, reg.attrFor(bk, f))
		if err != nil {
			reg.msg.Printf("could not expose field %q of bank %q: %+v", f.Name, bk.Name, err)
			for j := len(bound) - 1; j >= 0; j-- {
				ad.Unexpose(node, bound[j])
			}
			ad.Destroy(node)
			return err
		}
		bound = append(bound, f.Name)
	}

	reg.mu.Lock()
	reg.banks = append(reg.banks, bk)
	reg.mu.Unlock()

	bk.node = node
	bk.registered = true

	reg.msg.Printf(
		"registered bank %q at 0x%x, offset 0x%x, width %d B",
		bk.Name, bk.Base, bk.Offset, bk.Width,
	)
	return nil
}

// Unregister unwinds the state created by a successful Register: it
// removes every exposed field, destroys the bank's presentation and
// drops bk from the registry.
func (reg *Registry) Unregister(ad Adapter, bk *Bank) {
	for i := range bk.Fields {
		f := &bk.Fields[i]
		if f.Mask == 0 {
			continue
		}
		ad.Unexpose(bk.node, f.Name)
	}
	ad.Destroy(bk.node)

	reg.mu.Lock()
	for i, b := range reg.banks {
		if b == bk {
			reg.banks = append(reg.banks[:i], reg.banks[i+1:]...)
			break
		}
	}
	reg.mu.Unlock()

	bk.node = nil
	bk.registered = false
}

// attrFor builds the exposure attribute for f, with the field's mode
// enforced in the handlers themselves.
func (reg *Registry) attrFor(bk *Bank, f *Field) Attr {
	return Attr{
		Name: f.Name,
		Mode: f.mode(),
		Get: func() (uint32, error) {
			if f.mode()&PermRead == 0 {
				return 0, fmt.Errorf("bank: field %q of bank %q is not readable: %w", f.Name, bk.Name, ErrPermission)
			}
			return bk.Get(f)
		},
		Set: func(v uint32) error {
			if f.mode()&PermWrite == 0 {
				return fmt.Errorf("bank: field %q of bank %q is not writable: %w", f.Name, bk.Name, ErrPermission)
			}
			return bk.Set(f, v)
		},
	}
}
