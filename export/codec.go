// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package export

import (
	"strconv"

	"golang.org/x/xerrors"
)

// parseValue parses the textual representation of a field value: leading
// decimal digits, followed by at most one whitespace or terminator byte.
// Anything else after the digits rejects the whole input.
func parseValue(s string) (uint32, error) {
	i := 0
	for i < len(s) && '0' <= s[i] && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, xerrors.Errorf("export: invalid value %q", s)
	}

	v, err := strconv.ParseUint(s[:i], 10, 32)
	if err != nil {
		return 0, xerrors.Errorf("export: invalid value %q: %w", s, err)
	}

	if i < len(s) && isSpace(s[i]) {
		i++
	}
	if i != len(s) {
		return 0, xerrors.Errorf("export: trailing garbage in value %q", s)
	}

	return uint32(v), nil
}

// renderValue renders a field value as its decimal text representation.
func renderValue(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
