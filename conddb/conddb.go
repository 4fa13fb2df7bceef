// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package conddb retrieves register-bank layouts from the conditions
// database: which banks a board carries, where their registers live and
// how their bit fields are named, masked and protected.
package conddb // import "github.com/go-lpc/mmio/conddb"

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

const (
	host = "localhost"
)

var (
	usr = "username"
	pwd = "s3cr3t"

	drvName = "mysql"
)

// DB exposes convenience methods to retrieve register layouts from the
// conditions database.
type DB struct {
	db   *sql.DB
	name string
}

// Open opens a connection to the conditions database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("conddb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		return nil, fmt.Errorf("conddb: could not ping %q db: %w", dbname, err)
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s", usr, pwd, host, db)
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("conddb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// LastLayoutID returns the identifier of the most recent register
// layout stored in the database.
func (db *DB) LastLayoutID(ctx context.Context) (uint32, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var layout uint32
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT identifier FROM layouts ORDER BY datetime DESC LIMIT 1",
	)
	if err != nil {
		return layout, fmt.Errorf("conddb: could not query layout-id: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		err = rows.Scan(&layout)
		if err != nil {
			return layout, fmt.Errorf("conddb: could not get layout-id value: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return layout, fmt.Errorf("conddb: could not scan db for layout-id: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return layout, fmt.Errorf("conddb: context error while retrieving layout-id: %w", err)
	}

	return layout, nil
}

// Banks returns the register banks of the given layout, with their
// fields, in database order.
func (db *DB) Banks(ctx context.Context, layoutID uint32) ([]Bank, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var cfg []Bank
	rows, err := db.db.QueryContext(
		ctx,
		`
SELECT banks.name, banks.base, banks.offset, banks.width,
       fields.name, fields.mask, fields.mode
FROM fields
JOIN banks ON fields.bank=banks.identifier
WHERE banks.layout=?
ORDER BY banks.identifier, fields.identifier
`,
		layoutID,
	)
	if err != nil {
		return cfg, fmt.Errorf("conddb: could not run banks query: %w", err)
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		var (
			bnk   Bank
			field Field
		)
		err = rows.Scan(
			&bnk.Name, &bnk.Base, &bnk.Offset, &bnk.Width,
			&field.Name, &field.Mask, &field.Mode,
		)
		if err != nil {
			return cfg, fmt.Errorf("conddb: could not scan row %d for banks: %w", i, err)
		}
		i++

		n := len(cfg)
		if n == 0 || cfg[n-1].Name != bnk.Name {
			cfg = append(cfg, bnk)
			n++
		}
		cfg[n-1].Fields = append(cfg[n-1].Fields, field)
	}

	if err := rows.Err(); err != nil {
		return cfg, fmt.Errorf("conddb: could not scan db for banks: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return cfg, fmt.Errorf("conddb: context error while retrieving banks: %w", err)
	}

	return cfg, nil
}
