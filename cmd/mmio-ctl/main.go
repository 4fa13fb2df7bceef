// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command mmio-ctl provides an interactive shell to inspect and modify
// the register fields served by mmio-srv:
//
//	$> mmio-ctl -addr localhost:8877
//	mmio> list
//	gpio/mode rw
//	gpio/level r
//	mmio> get gpio mode
//	2
//	mmio> set gpio mode 3
//	mmio> quit
package main // import "github.com/go-lpc/mmio/cmd/mmio-ctl"

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"strings"

	"github.com/peterh/liner"
)

func main() {
	addr := flag.String("addr", "localhost:8877", "address of the mmio-srv server")

	flag.Parse()

	log.SetPrefix("mmio-ctl: ")
	log.SetFlags(0)

	err := run(*addr)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(addr string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("could not dial %q: %w", addr, err)
	}
	defer conn.Close()

	term := liner.NewLiner()
	defer term.Close()
	term.SetCtrlCAborts(true)

	cli := &client{conn: conn, rd: bufio.NewReader(conn)}
	for {
		req, err := term.Prompt("mmio> ")
		switch err {
		case nil:
			// ok
		case liner.ErrPromptAborted, io.EOF:
			return nil
		default:
			return fmt.Errorf("could not read command: %w", err)
		}

		req = strings.TrimSpace(req)
		if req == "" {
			continue
		}
		term.AppendHistory(req)
		if req == "quit" {
			return nil
		}

		err = cli.send(req)
		if err != nil {
			return err
		}
	}
}

type client struct {
	conn net.Conn
	rd   *bufio.Reader
}

func (cli *client) send(req string) error {
	_, err := cli.conn.Write([]byte(req + "\n"))
	if err != nil {
		return fmt.Errorf("could not send %q: %w", req, err)
	}

	multi := strings.HasPrefix(req, "list")
	for {
		line, err := cli.rd.ReadString('\n')
		if err != nil {
			return fmt.Errorf("could not read reply to %q: %w", req, err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "ok":
			return nil
		case strings.HasPrefix(line, "err: "):
			log.Printf("%s", line)
			return nil
		default:
			fmt.Println(line)
		}
		if !multi {
			return nil
		}
	}
}
