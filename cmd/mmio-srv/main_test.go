// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import "testing"

func TestParseI2C(t *testing.T) {
	for _, tc := range []struct {
		input string
		bus   int
		addr  uint8
		err   bool
	}{
		{input: "1:0x48", bus: 1, addr: 0x48},
		{input: "0:72", bus: 0, addr: 72},
		{input: "2:0b1001000", bus: 2, addr: 0x48},
		{input: "", err: true},
		{input: "1", err: true},
		{input: "1:2:3", err: true},
		{input: "x:0x48", err: true},
		{input: "1:0x148", err: true}, // > 8 bits
		{input: "1:nope", err: true},
	} {
		t.Run(tc.input, func(t *testing.T) {
			bus, addr, err := parseI2C(tc.input)
			switch {
			case tc.err:
				if err == nil {
					t.Fatalf("expected an error, got bus=%d addr=0x%x", bus, addr)
				}
			default:
				if err != nil {
					t.Fatalf("could not parse %q: %+v", tc.input, err)
				}
				if got, want := bus, tc.bus; got != want {
					t.Fatalf("invalid bus: got=%d, want=%d", got, want)
				}
				if got, want := addr, tc.addr; got != want {
					t.Fatalf("invalid addr: got=0x%x, want=0x%x", got, want)
				}
			}
		})
	}
}
