// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bank

import "context"

// Node is the opaque presentation handle an Adapter returns for a bank.
// The core never inspects it; it is only handed back to the adapter.
type Node any

// Attr is one user-facing access point for a field. Get and Set forward
// directly to the bank with no caching; both enforce the field's mode.
type Attr struct {
	Name string
	Mode Perm
	Get  func() (uint32, error)
	Set  func(v uint32) error
}

// Adapter binds banks and fields to an external presentation, e.g. a
// sysfs-like show/store interface.
type Adapter interface {
	// Present creates the bank's external identity.
	Present(ctx context.Context, name string) (Node, error)
	// Destroy releases an identity created by Present.
	Destroy(node Node)
	// Expose binds one attribute under node.
	Expose(node Node, attr Attr) error
	// Unexpose removes a previously bound attribute. It is idempotent.
	Unexpose(node Node, name string)
}
