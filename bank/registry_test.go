// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bank

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"

	"github.com/go-lpc/mmio/internal/mmap"
)

// fakeAdapter records presentation and exposure calls, and can be told
// to fail at a given point.
type fakeAdapter struct {
	nodes map[string]map[string]Attr

	presentErr error
	failAt     string // field name whose Expose call fails

	calls []string
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{nodes: make(map[string]map[string]Attr)}
}

func (ad *fakeAdapter) Present(ctx context.Context, name string) (Node, error) {
	if ad.presentErr != nil {
		return nil, ad.presentErr
	}
	ad.calls = append(ad.calls, "present:"+name)
	ad.nodes[name] = make(map[string]Attr)
	return name, nil
}

func (ad *fakeAdapter) Destroy(node Node) {
	name := node.(string)
	ad.calls = append(ad.calls, "destroy:"+name)
	delete(ad.nodes, name)
}

func (ad *fakeAdapter) Expose(node Node, attr Attr) error {
	name := node.(string)
	if attr.Name == ad.failAt {
		return fmt.Errorf("fake: could not expose %q", attr.Name)
	}
	ad.calls = append(ad.calls, "expose:"+name+"/"+attr.Name)
	ad.nodes[name][attr.Name] = attr
	return nil
}

func (ad *fakeAdapter) Unexpose(node Node, name string) {
	bank := node.(string)
	ad.calls = append(ad.calls, "unexpose:"+bank+"/"+name)
	delete(ad.nodes[bank], name)
}

func newTestBank() *Bank {
	return &Bank{
		Name:  "gpio",
		Width: 4,
		Base:  0x1000,
		Mem:   mmap.HandleFrom(make([]byte, 4)),
		Fields: []Field{
			{Name: "mode", Mask: 0x00000003},
			{Name: "rsvd", Mask: 0},
			{Name: "level", Mask: 0x00000ff0, Mode: PermRead},
			{Name: "drive", Mask: 0x000ff000, Mode: PermWrite},
		},
	}
}

func TestRegisterInvalid(t *testing.T) {
	mem := mmap.HandleFrom(make([]byte, 4))
	fields := []Field{{Name: "f", Mask: 0x1}}

	for _, tc := range []struct {
		name string
		bank *Bank
	}{
		{name: "nil-bank", bank: nil},
		{name: "no-name", bank: &Bank{Width: 1, Mem: mem, Fields: fields}},
		{name: "no-mem", bank: &Bank{Name: "b", Width: 1, Fields: fields}},
		{name: "no-fields", bank: &Bank{Name: "b", Width: 1, Mem: mem}},
		{name: "bad-width", bank: &Bank{Name: "b", Width: 3, Mem: mem, Fields: fields}},
		{name: "w2-misaligned", bank: &Bank{Name: "b", Width: 2, Base: 0x1000, Offset: 0x1, Mem: mem, Fields: fields}},
		{name: "w4-misaligned", bank: &Bank{Name: "b", Width: 4, Base: 0x1002, Offset: 0x0, Mem: mem, Fields: fields}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var (
				reg = NewRegistry(WithLogger(log.New(io.Discard, "", 0)))
				ad  = newFakeAdapter()
			)
			err := reg.Register(context.Background(), ad, tc.bank)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("invalid error: got=%+v, want=%+v", err, ErrInvalidArgument)
			}
			if got, want := len(ad.calls), 0; got != want {
				t.Fatalf("adapter called on invalid bank: %v", ad.calls)
			}
			if got, want := len(reg.Banks()), 0; got != want {
				t.Fatalf("invalid registry size: got=%d, want=%d", got, want)
			}
		})
	}
}

func TestRegisterOK(t *testing.T) {
	var (
		reg = NewRegistry(WithLogger(log.New(io.Discard, "", 0)))
		ad  = newFakeAdapter()
		bk  = newTestBank()
	)

	err := reg.Register(context.Background(), ad, bk)
	if err != nil {
		t.Fatalf("could not register bank: %+v", err)
	}

	if got, want := len(reg.Banks()), 1; got != want {
		t.Fatalf("invalid registry size: got=%d, want=%d", got, want)
	}
	if got, want := reg.Banks()[0], bk; got != want {
		t.Fatalf("invalid registered bank: got=%v, want=%v", got, want)
	}

	// zero-mask field skipped, others exposed.
	attrs := ad.nodes["gpio"]
	if got, want := len(attrs), 3; got != want {
		t.Fatalf("invalid number of exposed fields: got=%d, want=%d", got, want)
	}
	if _, ok := attrs["rsvd"]; ok {
		t.Fatalf("reserved field exposed")
	}
	if got, want := attrs["level"].Mode, PermRead; got != want {
		t.Fatalf("invalid mode for level: got=%v, want=%v", got, want)
	}
	if got, want := attrs["mode"].Mode, PermRW; got != want {
		t.Fatalf("invalid mode for mode: got=%v, want=%v", got, want)
	}

	reg.Unregister(ad, bk)
	if got, want := len(reg.Banks()), 0; got != want {
		t.Fatalf("invalid registry size after unregister: got=%d, want=%d", got, want)
	}
	if _, ok := ad.nodes["gpio"]; ok {
		t.Fatalf("presentation not destroyed")
	}
}

func TestRegisterPresentError(t *testing.T) {
	var (
		reg     = NewRegistry(WithLogger(log.New(io.Discard, "", 0)))
		ad      = newFakeAdapter()
		bk      = newTestBank()
		errHost = errors.New("host: no class device")
	)
	ad.presentErr = errHost

	err := reg.Register(context.Background(), ad, bk)
	if !errors.Is(err, errHost) {
		t.Fatalf("host error not propagated: got=%+v, want=%+v", err, errHost)
	}
	if got, want := len(reg.Banks()), 0; got != want {
		t.Fatalf("invalid registry size: got=%d, want=%d", got, want)
	}
}

func TestRegisterRollback(t *testing.T) {
	var (
		reg = NewRegistry(WithLogger(log.New(io.Discard, "", 0)))
		ad  = newFakeAdapter()
		bk  = newTestBank()
	)
	ad.failAt = "drive" // last field: mode and level bound first

	err := reg.Register(context.Background(), ad, bk)
	if err == nil {
		t.Fatalf("expected an error")
	}

	if got, want := len(reg.Banks()), 0; got != want {
		t.Fatalf("bank registered despite rollback: got=%d, want=%d", got, want)
	}
	if _, ok := ad.nodes["gpio"]; ok {
		t.Fatalf("presentation not destroyed on rollback")
	}

	want := []string{
		"present:gpio",
		"expose:gpio/mode",
		"expose:gpio/level",
		"unexpose:gpio/level",
		"unexpose:gpio/mode",
		"destroy:gpio",
	}
	if got := ad.calls; len(got) != len(want) {
		t.Fatalf("invalid calls:\ngot= %v\nwant=%v", got, want)
	}
	for i := range want {
		if ad.calls[i] != want[i] {
			t.Fatalf("invalid call %d:\ngot= %v\nwant=%v", i, ad.calls, want)
		}
	}
}

func TestAttrPermissions(t *testing.T) {
	var (
		reg = NewRegistry(WithLogger(log.New(io.Discard, "", 0)))
		ad  = newFakeAdapter()
		bk  = newTestBank()
	)

	err := reg.Register(context.Background(), ad, bk)
	if err != nil {
		t.Fatalf("could not register bank: %+v", err)
	}
	defer reg.Unregister(ad, bk)

	attrs := ad.nodes["gpio"]

	err = attrs["level"].Set(1)
	if !errors.Is(err, ErrPermission) {
		t.Fatalf("write to read-only field: got=%+v, want=%+v", err, ErrPermission)
	}

	_, err = attrs["drive"].Get()
	if !errors.Is(err, ErrPermission) {
		t.Fatalf("read of write-only field: got=%+v, want=%+v", err, ErrPermission)
	}

	err = attrs["mode"].Set(0x2)
	if err != nil {
		t.Fatalf("could not set rw field: %+v", err)
	}
	v, err := attrs["mode"].Get()
	if err != nil {
		t.Fatalf("could not get rw field: %+v", err)
	}
	if got, want := v, uint32(0x2); got != want {
		t.Fatalf("invalid value: got=0x%x, want=0x%x", got, want)
	}
}
