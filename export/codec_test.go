// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package export

import (
	"testing"
)

func TestParseValue(t *testing.T) {
	for _, tc := range []struct {
		input string
		want  uint32
		err   bool
	}{
		{input: "0", want: 0},
		{input: "42", want: 42},
		{input: "4294967295", want: 4294967295},
		{input: "42\n", want: 42},
		{input: "42 ", want: 42},
		{input: "42\t", want: 42},
		{input: "", err: true},
		{input: " 42", err: true},
		{input: "42  ", err: true},   // two trailing separators
		{input: "42\n\n", err: true}, // two trailing separators
		{input: "42x", err: true},
		{input: "0x2a", err: true}, // decimal only
		{input: "-1", err: true},
		{input: "4294967296", err: true}, // > 32 bits
		{input: "12 34", err: true},
		{input: "abc", err: true},
	} {
		t.Run(tc.input, func(t *testing.T) {
			v, err := parseValue(tc.input)
			switch {
			case tc.err:
				if err == nil {
					t.Fatalf("expected an error, got v=%d", v)
				}
			default:
				if err != nil {
					t.Fatalf("could not parse %q: %+v", tc.input, err)
				}
				if got, want := v, tc.want; got != want {
					t.Fatalf("invalid value: got=%d, want=%d", got, want)
				}
			}
		})
	}
}

func TestRenderValue(t *testing.T) {
	for _, tc := range []struct {
		value uint32
		want  string
	}{
		{value: 0, want: "0"},
		{value: 42, want: "42"},
		{value: 0x2a, want: "42"},
		{value: 4294967295, want: "4294967295"},
	} {
		t.Run(tc.want, func(t *testing.T) {
			if got, want := renderValue(tc.value), tc.want; got != want {
				t.Fatalf("invalid rendering: got=%q, want=%q", got, want)
			}
		})
	}
}
