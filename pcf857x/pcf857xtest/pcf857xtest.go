// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package pcf857xtest is meant to be used to test drivers and programs using
// PCF857x expanders without the hardware.
//
// Chip simulates the port of one expander on an i2c.Bus. Use
// periph.io/x/conn/v3/i2c/i2ctest when the exact bus transcript matters.
package pcf857xtest

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// ErrNoAck is returned by Tx when nothing answers at the address.
var ErrNoAck = errors.New("pcf857xtest: no acknowledge")

// Chip simulates a PCF8574, PCF8574A or PCF8575 on an I²C bus.
//
// Each pin is an open drain with a weak pull-up: the level read back is the
// latch ANDed with Inputs, the levels the external circuit allows. Inputs
// bits set to 1 leave the pin to the chip, bits set to 0 pull it to ground.
//
// Chip is safe for concurrent use. Lock it to access the fields directly while
// the bus is in use.
type Chip struct {
	sync.Mutex
	// Address is the 7 bit address the chip answers to.
	Address uint16
	// Width is 8 or 16.
	Width int
	// Latch is the output latch, written by bus writes. It is all high at
	// power on.
	Latch uint16
	// Inputs is the level the external circuit drives onto each pin.
	Inputs uint16
	// Circuit, when set, replaces Inputs by a function of the latch. It
	// models pins wired to each other.
	Circuit func(latch uint16) uint16
	// Writes is the log of the data of every write, in order.
	Writes [][]byte
	// MaxWrites, when above 0, limits Writes to the most recent entries.
	MaxWrites int
	// Err, when set, fails every transaction without touching the chip.
	Err error
}

// New returns a powered on chip with nothing connected to its pins.
func New(address uint16, width int) *Chip {
	all := uint16(uint32(1)<<width - 1)
	return &Chip{Address: address, Width: width, Latch: all, Inputs: all}
}

// Port returns the levels of the pins as the chip would read them.
func (c *Chip) Port() uint16 {
	c.Lock()
	defer c.Unlock()
	return c.port()
}

// SetInputs changes the levels driven onto the pins by the external circuit.
func (c *Chip) SetInputs(v uint16) {
	c.Lock()
	defer c.Unlock()
	c.Inputs = v
}

// LastWrite returns a copy of the data of the last write, or nil.
func (c *Chip) LastWrite() []byte {
	c.Lock()
	defer c.Unlock()
	if len(c.Writes) == 0 {
		return nil
	}
	return append([]byte(nil), c.Writes[len(c.Writes)-1]...)
}

// Tx implements i2c.Bus.
//
// Every complete word written updates the latch, so a multi word write leaves
// the last one. Reads return the port, repeated as many times as r holds
// words.
func (c *Chip) Tx(addr uint16, w, r []byte) error {
	c.Lock()
	defer c.Unlock()
	if c.Err != nil {
		return c.Err
	}
	if addr != c.Address {
		return fmt.Errorf("%w at 0x%02x", ErrNoAck, addr)
	}
	n := c.bytes()
	if len(w) != 0 {
		c.Writes = append(c.Writes, append([]byte(nil), w...))
		if c.MaxWrites > 0 && len(c.Writes) > c.MaxWrites {
			c.Writes = append(c.Writes[:0], c.Writes[len(c.Writes)-c.MaxWrites:]...)
		}
		for i := 0; i+n <= len(w); i += n {
			v := uint16(w[i])
			if n > 1 {
				v |= uint16(w[i+1]) << 8
			}
			c.Latch = v
		}
	}
	p := c.port()
	for i := range r {
		r[i] = byte(p >> (8 * (i % n)))
	}
	return nil
}

// SetSpeed implements i2c.Bus.
func (c *Chip) SetSpeed(f physic.Frequency) error {
	return nil
}

// Close implements i2c.BusCloser.
func (c *Chip) Close() error {
	return nil
}

func (c *Chip) String() string {
	return fmt.Sprintf("pcf857xtest(0x%02x)", c.Address)
}

func (c *Chip) port() uint16 {
	if c.Circuit != nil {
		return c.Latch & c.Circuit(c.Latch)
	}
	return c.Latch & c.Inputs
}

// Jumpered is a Circuit for a PCF8575 with P0-P7 wired to P10-P17: each pair
// reads low when either side drives it low.
func Jumpered(latch uint16) uint16 {
	low := latch & (latch >> 8) & 0xff
	return low | low<<8
}

func (c *Chip) bytes() int {
	if c.Width > 8 {
		return 2
	}
	return 1
}

var _ i2c.BusCloser = &Chip{}
