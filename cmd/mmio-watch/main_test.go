// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"net"
	"testing"
)

func TestProbe(t *testing.T) {
	for _, tc := range []struct {
		name  string
		reply string
		want  uint32
		err   bool
	}{
		{name: "ok", reply: "42\n", want: 42},
		{name: "zero", reply: "0\n", want: 0},
		{name: "srv-error", reply: "err: export: unknown bank \"gpio\"\n", err: true},
		{name: "garbage", reply: "pink elephants\n", err: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cli, srv := net.Pipe()
			defer cli.Close()
			defer srv.Close()

			go func() {
				buf := make([]byte, 64)
				_, _ = srv.Read(buf)
				_, _ = srv.Write([]byte(tc.reply))
			}()

			v, err := probe(cli, bufio.NewReader(cli), "gpio", "mode")
			switch {
			case tc.err:
				if err == nil {
					t.Fatalf("expected an error, got v=%d", v)
				}
			default:
				if err != nil {
					t.Fatalf("could not probe: %+v", err)
				}
				if got, want := v, tc.want; got != want {
					t.Fatalf("invalid value: got=%d, want=%d", got, want)
				}
			}
		})
	}
}
