// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package export presents register banks over a line-oriented TCP
// protocol with sysfs-like show/store semantics:
//
//	get <bank> <field>          -> <decimal value>
//	set <bank> <field> <value>  -> ok
//	list                        -> <bank>/<field> <mode> lines, then ok
//
// Failures are reported as "err: <reason>" lines.
package export // import "github.com/go-lpc/mmio/export"

import (
	"bufio"
	"context"
	"log"
	"net"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/go-lpc/mmio/bank"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used by the server.
func WithLogger(msg *log.Logger) Option {
	return func(srv *Server) {
		srv.msg = msg
	}
}

// Server binds bank fields to network-reachable attributes. It is the
// exposure adapter handed to bank.Registry.Register.
type Server struct {
	lis net.Listener
	msg *log.Logger

	mu    sync.RWMutex
	nodes map[string]*node
}

type node struct {
	name string

	mu    sync.RWMutex
	attrs map[string]bank.Attr
	order []string
}

// New creates a Server listening on addr.
func New(addr string, opts ...Option) (*Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, xerrors.Errorf("export: could not listen on %q: %w", addr, err)
	}

	srv := &Server{
		lis:   lis,
		msg:   log.New(os.Stdout, "export: ", 0),
		nodes: make(map[string]*node),
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv, nil
}

// Addr returns the address the server listens on.
func (srv *Server) Addr() string {
	return srv.lis.Addr().String()
}

// Serve accepts and handles client connections until Close is called
// or the listener fails.
func (srv *Server) Serve() error {
	var grp errgroup.Group
	for {
		conn, err := srv.lis.Accept()
		if err != nil {
			_ = grp.Wait()
			return xerrors.Errorf("export: could not accept connection: %w", err)
		}
		grp.Go(func() error {
			srv.handle(conn)
			return nil
		})
	}
}

// Close stops the server. Exposed attributes are kept: banks are
// unwound by their owner through bank.Registry.Unregister.
func (srv *Server) Close() error {
	return srv.lis.Close()
}

func (srv *Server) handle(conn net.Conn) {
	defer conn.Close()
	srv.msg.Printf("serving %v...", conn.RemoteAddr())
	defer srv.msg.Printf("serving %v... [done]", conn.RemoteAddr())

	w := bufio.NewWriter(conn)
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "quit" {
			return
		}
		for _, reply := range srv.process(line) {
			_, err := w.WriteString(reply + "\n")
			if err != nil {
				srv.msg.Printf("could not reply to %v: %+v", conn.RemoteAddr(), err)
				return
			}
		}
		err := w.Flush()
		if err != nil {
			srv.msg.Printf("could not reply to %v: %+v", conn.RemoteAddr(), err)
			return
		}
	}
}

func (srv *Server) process(line string) []string {
	toks := strings.SplitN(line, " ", 4)
	switch toks[0] {
	case "get":
		if len(toks) != 3 {
			return []string{"err: usage: get <bank> <field>"}
		}
		attr, err := srv.lookup(toks[1], toks[2])
		if err != nil {
			return []string{"err: " + err.Error()}
		}
		v, err := attr.Get()
		if err != nil {
			return []string{"err: " + err.Error()}
		}
		return []string{renderValue(v)}

	case "set":
		if len(toks) != 4 {
			return []string{"err: usage: set <bank> <field> <value>"}
		}
		attr, err := srv.lookup(toks[1], toks[2])
		if err != nil {
			return []string{"err: " + err.Error()}
		}
		v, err := parseValue(toks[3])
		if err != nil {
			return []string{"err: " + err.Error()}
		}
		err = attr.Set(v)
		if err != nil {
			return []string{"err: " + err.Error()}
		}
		return []string{"ok"}

	case "list":
		return srv.list()
	}
	return []string{"err: unknown command " + toks[0]}
}

func (srv *Server) lookup(bnk, field string) (bank.Attr, error) {
	srv.mu.RLock()
	nd, ok := srv.nodes[bnk]
	srv.mu.RUnlock()
	if !ok {
		return bank.Attr{}, xerrors.Errorf("export: unknown bank %q", bnk)
	}

	nd.mu.RLock()
	attr, ok := nd.attrs[field]
	nd.mu.RUnlock()
	if !ok {
		return bank.Attr{}, xerrors.Errorf("export: unknown field %q of bank %q", field, bnk)
	}
	return attr, nil
}

func (srv *Server) list() []string {
	srv.mu.RLock()
	names := make([]string, 0, len(srv.nodes))
	for name := range srv.nodes {
		names = append(names, name)
	}
	srv.mu.RUnlock()
	sort.Strings(names)

	var out []string
	for _, name := range names {
		srv.mu.RLock()
		nd, ok := srv.nodes[name]
		srv.mu.RUnlock()
		if !ok {
			continue
		}
		nd.mu.RLock()
		for _, field := range nd.order {
			attr, ok := nd.attrs[field]
			if !ok {
				continue
			}
			out = append(out, name+"/"+field+" "+attr.Mode.String())
		}
		nd.mu.RUnlock()
	}
	return append(out, "ok")
}

// Present implements bank.Adapter.
func (srv *Server) Present(ctx context.Context, name string) (bank.Node, error) {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if _, dup := srv.nodes[name]; dup {
		return nil, xerrors.Errorf("export: bank %q already presented", name)
	}
	nd := &node{name: name, attrs: make(map[string]bank.Attr)}
	srv.nodes[name] = nd
	return nd, nil
}

// Destroy implements bank.Adapter.
func (srv *Server) Destroy(n bank.Node) {
	nd, ok := n.(*node)
	if !ok || nd == nil {
		return
	}
	srv.mu.Lock()
	delete(srv.nodes, nd.name)
	srv.mu.Unlock()
}

// Expose implements bank.Adapter.
func (srv *Server) Expose(n bank.Node, attr bank.Attr) error {
	nd, ok := n.(*node)
	if !ok || nd == nil {
		return xerrors.Errorf("export: invalid node")
	}

	nd.mu.Lock()
	defer nd.mu.Unlock()
	if _, dup := nd.attrs[attr.Name]; dup {
		return xerrors.Errorf("export: field %q of bank %q already exposed", attr.Name, nd.name)
	}
	nd.attrs[attr.Name] = attr
	nd.order = append(nd.order, attr.Name)
	return nil
}

// Unexpose implements bank.Adapter.
func (srv *Server) Unexpose(n bank.Node, name string) {
	nd, ok := n.(*node)
	if !ok || nd == nil {
		return
	}

	nd.mu.Lock()
	defer nd.mu.Unlock()
	delete(nd.attrs, name)
}

var _ bank.Adapter = (*Server)(nil)
