// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// pcf857x reads and writes the pins of a PCF8574, PCF8574A or PCF8575 I/O
// expander.
//
// Usage:
//
//	pcf857x [flags] set VALUE     write all the pins
//	pcf857x [flags] get MASK      read the pins in MASK
//	pcf857x [flags] high MASK     drive the pins in MASK high
//	pcf857x [flags] low MASK      drive the pins in MASK low
//	pcf857x [flags] watch MASK    read the pins in MASK repeatedly
//	pcf857x [flags] snapshot FILE read all the pins and save them as a PNG
//
// MASK is a number (0x81) or pin names (P0|P7).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	prefixed "github.com/BertoldVdb/logrus-prefixed-formatter"
	"github.com/GermanBionicSystems/expanders/pcf857x"
	"github.com/GermanBionicSystems/expanders/pcf857x/pcf857xtest"
	"github.com/GermanBionicSystems/expanders/portview"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

type config struct {
	bus      string
	chip     pcf857x.Variant
	addr     pcf857x.Addr
	interval time.Duration
	count    int
	sim      bool
	loglevel int
}

func newLogger(level int, w io.Writer) *logrus.Entry {
	logrus.ErrorKey = "$error"
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(logrus.Level(level))
	customFormatter := new(prefixed.TextFormatter)
	customFormatter.TimestampFormat = "2006-01-02 15:04:05"
	customFormatter.FullTimestamp = true
	customFormatter.PrefixPadding = 20
	customFormatter.SpacePadding = 50
	logger.SetFormatter(customFormatter)
	return logrus.NewEntry(logger)
}

func parseFlags(args []string, stderr io.Writer) (*config, []string, error) {
	c := &config{}
	fs := flag.NewFlagSet("pcf857x", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&c.bus, "bus", "", "I²C bus to use")
	chip := fs.String("chip", string(pcf857x.PCF8574), "chip model: PCF8574, PCF8574A or PCF8575")
	fs.BoolVar(&c.addr.A2, "a2", false, "A2 address pin is tied high")
	fs.BoolVar(&c.addr.A1, "a1", false, "A1 address pin is tied high")
	fs.BoolVar(&c.addr.A0, "a0", false, "A0 address pin is tied high")
	fs.DurationVar(&c.interval, "interval", 500*time.Millisecond, "delay between reads for watch")
	fs.IntVar(&c.count, "count", 0, "number of reads for watch, 0 to run until interrupted")
	fs.BoolVar(&c.sim, "sim", false, "use a simulated chip instead of the I²C bus")
	fs.IntVar(&c.loglevel, "loglevel", int(logrus.InfoLevel), "The loglevel to use. Valid values are from 0 to 6. Higher values output more information")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	c.chip = pcf857x.Variant(strings.ToUpper(*chip))
	if c.chip.Width() == 0 {
		return nil, nil, fmt.Errorf("unknown chip %q", *chip)
	}
	if fs.NArg() != 2 {
		return nil, nil, errors.New("expected a command and its argument; see -help")
	}
	return c, fs.Args(), nil
}

func openBus(c *config) (i2c.BusCloser, error) {
	if c.sim {
		addr, err := pcf857x.Address(c.chip, c.addr)
		if err != nil {
			return nil, err
		}
		sim := pcf857xtest.New(addr, c.chip.Width())
		// watch may run until interrupted.
		sim.MaxWrites = 1
		return sim, nil
	}
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	return i2creg.Open(c.bus)
}

// printer shows a port value, with colors on a terminal.
type printer struct {
	w    io.Writer
	term *portview.Terminal
}

func newPrinter(w io.Writer) *printer {
	p := &printer{w: w}
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		p.term = portview.NewTerminal(nil)
	}
	return p
}

func (p *printer) show(dev *pcf857x.Dev, mask pcf857x.PinFlag, v uint16) error {
	if p.term != nil {
		if err := p.term.Show(dev.String(), v, dev.Width()); err != nil {
			return err
		}
		_, err := fmt.Fprintf(p.w, " %s=0x%04x", mask, v)
		return err
	}
	_, err := fmt.Fprintf(p.w, "%s %s 0x%04x 0b%0*b\n", dev, mask, v, dev.Width(), v)
	return err
}

func (p *printer) done() error {
	if p.term != nil {
		return p.term.Halt()
	}
	return nil
}

func watch(ctx context.Context, c *config, dev *pcf857x.Dev, mask pcf857x.PinFlag, p *printer) error {
	t := time.NewTicker(c.interval)
	defer t.Stop()
	for n := 0; c.count == 0 || n < c.count; n++ {
		if n != 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
			}
		}
		v, err := dev.Get(mask)
		if err != nil {
			return err
		}
		if err := p.show(dev, mask, v); err != nil {
			return err
		}
	}
	return nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	c, cmd, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	log := newLogger(c.loglevel, stderr).WithField("prefix", "pcf857x")
	pcf857x.SetLogger(log)

	bus, err := openBus(c)
	if err != nil {
		return err
	}
	defer bus.Close()
	return runOn(ctx, c, cmd, bus, log, stdout)
}

// runOn executes cmd against the chip on bus.
func runOn(ctx context.Context, c *config, cmd []string, bus i2c.Bus, log logrus.FieldLogger, stdout io.Writer) error {
	dev, err := pcf857x.New(bus, c.chip, c.addr)
	if err != nil {
		return err
	}
	defer dev.Halt()
	log.WithField("bus", bus.String()).Debugf("using %s", dev)

	if cmd[0] != "set" {
		// Keep the pins set by a previous run.
		if err := dev.Refresh(); err != nil {
			return err
		}
	}
	p := newPrinter(stdout)
	defer p.done()
	switch cmd[0] {
	case "set":
		v, err := strconv.ParseUint(cmd[1], 0, 16)
		if err != nil {
			return fmt.Errorf("invalid value %q: %w", cmd[1], err)
		}
		if err := dev.Set(uint16(v)); err != nil {
			return err
		}
		log.Debugf("set 0x%04x", v)
		return nil
	case "snapshot":
		all := pcf857x.PinFlag(uint32(1)<<dev.Width() - 1)
		v, err := dev.Get(all)
		if err != nil {
			return err
		}
		if err := portview.SavePNG(cmd[1], dev.String(), v, dev.Width(), nil); err != nil {
			return err
		}
		log.Infof("saved %s", cmd[1])
		return nil
	}

	mask, err := pcf857x.ParsePinFlag(cmd[1])
	if err != nil {
		return err
	}
	switch cmd[0] {
	case "get":
		v, err := dev.Get(mask)
		if err != nil {
			return err
		}
		return p.show(dev, mask, v)
	case "high":
		return dev.SetBitsHigh(mask)
	case "low":
		return dev.SetBitsLow(mask)
	case "watch":
		return watch(ctx, c, dev, mask, p)
	}
	return fmt.Errorf("unknown command %q", cmd[0])
}

func mainImpl() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "pcf857x: %s.\n", err)
		os.Exit(1)
	}
}
