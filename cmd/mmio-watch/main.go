// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command mmio-watch polls one register field served by mmio-srv and
// sends a mail alert when its value stays above a threshold.
package main // import "github.com/go-lpc/mmio/cmd/mmio-watch"

import (
	"bufio"
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	mail "gopkg.in/gomail.v2"
)

var (
	alertMailSrv  = os.Getenv("MMIO_MAIL_SRV")
	alertMailUsr  = os.Getenv("MMIO_MAIL_USR")
	alertMailPwd  = os.Getenv("MMIO_MAIL_PWD")
	alertMailPort = 587
)

func main() {
	var (
		addr    = flag.String("addr", "localhost:8877", "address of the mmio-srv server")
		bank    = flag.String("bank", "", "name of the bank to watch")
		field   = flag.String("field", "", "name of the field to watch")
		max     = flag.Uint64("max", 0, "alert threshold")
		nalerts = flag.Int("nalerts", 3, "consecutive crossings before alerting")
		freq    = flag.Duration("freq", 30*time.Second, "probing interval")
		to      = flag.String("to", "", "comma-separated alert recipients")
	)

	flag.Parse()

	log.SetPrefix("mmio-watch: ")
	log.SetFlags(0)

	if *bank == "" || *field == "" {
		flag.Usage()
		log.Fatalf("missing -bank or -field")
	}

	err := run(*addr, *bank, *field, uint32(*max), *nalerts, *freq, strings.Split(*to, ","))
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(addr, bank, field string, max uint32, nalerts int, freq time.Duration, tgts []string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("could not dial %q: %w", addr, err)
	}
	defer conn.Close()

	var (
		rd    = bufio.NewReader(conn)
		count = 0
		tick  = time.NewTicker(freq)
	)
	defer tick.Stop()

	log.Printf("watching %s/%s on %q (max=%d)...", bank, field, addr, max)
	for range tick.C {
		v, err := probe(conn, rd, bank, field)
		if err != nil {
			return err
		}

		if v <= max {
			count = 0
			continue
		}

		count++
		log.Printf("%s/%s = %d > %d (%d/%d)", bank, field, v, max, count, nalerts)
		if count < nalerts {
			continue
		}
		alertMail(bank, field, v, max, freq, tgts)
		count = 0
	}
	return nil
}

func probe(conn net.Conn, rd *bufio.Reader, bank, field string) (uint32, error) {
	_, err := fmt.Fprintf(conn, "get %s %s\n", bank, field)
	if err != nil {
		return 0, fmt.Errorf("could not probe %s/%s: %w", bank, field, err)
	}

	line, err := rd.ReadString('\n')
	if err != nil {
		return 0, fmt.Errorf("could not read reply for %s/%s: %w", bank, field, err)
	}
	line = strings.TrimRight(line, "\n")
	if strings.HasPrefix(line, "err: ") {
		return 0, fmt.Errorf("could not probe %s/%s: %s", bank, field, line)
	}

	v, err := strconv.ParseUint(line, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid reply %q for %s/%s: %w", line, bank, field, err)
	}
	return uint32(v), nil
}

func alertMail(bank, field string, v, max uint32, freq time.Duration, tgts []string) {
	if alertMailSrv == "" || len(tgts) == 0 || tgts[0] == "" {
		log.Printf("could not send mail alert: no mail server or recipients")
		return
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", alertMailUsr)
	msg.SetHeader("Bcc", tgts...)
	msg.SetHeader("Subject", fmt.Sprintf("[mmio-watch] field alert: %s/%s", bank, field))
	msg.SetBody("text/plain", fmt.Sprintf("field: %s/%s\nvalue: %d\nmax: %d\nfreq: %v",
		bank, field, v, max, freq,
	))

	dial := mail.NewDialer(alertMailSrv, alertMailPort, alertMailUsr, alertMailPwd)
	dial.TLSConfig = &tls.Config{
		InsecureSkipVerify: true,
	}
	err := dial.DialAndSend(msg)
	if err != nil {
		log.Printf("could not send mail alert: %+v", err)
	}
}
