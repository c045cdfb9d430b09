// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package pcf857x

import (
	"fmt"
	"strings"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/pin"
)

// Group is a set of pins of one device that are written and read in a single
// bus transaction. Bit N of the group values maps to the Nth pin passed to
// Dev.Group().
//
// The group is guarded by the device mutex, it may be used from several
// goroutines.
type Group struct {
	dev *Dev
	// pins is nil once halted.
	pins []*Pin
}

// Pins returns the set of pins that make up this group.
func (gr *Group) Pins() []pin.Pin {
	gr.dev.mu.Lock()
	defer gr.dev.mu.Unlock()
	pins := make([]pin.Pin, len(gr.pins))
	for ix, p := range gr.pins {
		pins[ix] = p
	}
	return pins
}

// groupMaskToDevMask converts a mask of group offsets into a mask of device
// pins.
func (gr *Group) groupMaskToDevMask(mask gpio.GPIOValue) uint16 {
	m := uint16(0)
	for ix, p := range gr.pins {
		if mask&(gpio.GPIOValue(1)<<ix) != 0 {
			m |= uint16(p.flag)
		}
	}
	return m
}

// Return the GPIO pin by offset within the group.
func (gr *Group) ByOffset(offset int) pin.Pin {
	gr.dev.mu.Lock()
	defer gr.dev.mu.Unlock()
	if offset < 0 || offset >= len(gr.pins) {
		return nil
	}
	return gr.pins[offset]
}

// Return the GPIO pin by name.
func (gr *Group) ByName(name string) pin.Pin {
	gr.dev.mu.Lock()
	defer gr.dev.mu.Unlock()
	for _, p := range gr.pins {
		if p.name == name {
			return p
		}
	}
	return nil
}

// Return the GPIO pin by its pin number on the device.
func (gr *Group) ByNumber(number int) pin.Pin {
	gr.dev.mu.Lock()
	defer gr.dev.mu.Unlock()
	for _, p := range gr.pins {
		if p.number == number {
			return p
		}
	}
	return nil
}

// Out writes the specified value to the device. Only pins identified by mask
// are modified. A mask of 0 selects every pin of the group.
func (gr *Group) Out(value, mask gpio.GPIOValue) error {
	gr.dev.mu.Lock()
	defer gr.dev.mu.Unlock()
	if gr.pins == nil {
		return ErrInvalidPin
	}
	if mask == 0 {
		mask = gpio.GPIOValue(1)<<len(gr.pins) - 1
	}
	wrMask := gr.groupMaskToDevMask(mask)
	wr := gr.groupMaskToDevMask(value)
	return gr.dev.modifyLocked(wr, wrMask)
}

// Read returns the current values of the pins within the group identified by
// mask. A mask of 0 selects every pin of the group.
func (gr *Group) Read(mask gpio.GPIOValue) (gpio.GPIOValue, error) {
	gr.dev.mu.Lock()
	defer gr.dev.mu.Unlock()
	if gr.pins == nil {
		return 0, ErrInvalidPin
	}
	if mask == 0 {
		mask = gpio.GPIOValue(1)<<len(gr.pins) - 1
	}
	v, err := gr.dev.getLocked(PinFlag(gr.groupMaskToDevMask(mask)))
	if err != nil {
		return 0, err
	}

	// Now, convert it back to a group value.
	result := gpio.GPIOValue(0)
	for ix, p := range gr.pins {
		if v&uint16(p.flag) != 0 {
			result |= gpio.GPIOValue(1) << ix
		}
	}
	return result, nil
}

// This chip does not support waiting for edge on either a pin or a group. To
// do that, connect the INT pin to a host GPIO pin that supports WaitForEdge.
func (gr *Group) WaitForEdge(timeout time.Duration) (number int, edge gpio.Edge, err error) {
	return 0, gpio.NoEdge, ErrNotImplemented
}

// Halt stops the pin group. It cannot be used after this call.
func (gr *Group) Halt() error {
	gr.dev.mu.Lock()
	defer gr.dev.mu.Unlock()
	gr.haltLocked()
	return nil
}

func (gr *Group) haltLocked() {
	gr.pins = nil
}

func (gr *Group) String() string {
	gr.dev.mu.Lock()
	defer gr.dev.mu.Unlock()
	var sb strings.Builder
	if gr.pins != nil {
		sb.WriteString(gr.dev.String())
	}
	sb.WriteString("[ ")
	for _, p := range gr.pins {
		fmt.Fprintf(&sb, "%d ", p.number)
	}
	sb.WriteString("]")
	return sb.String()
}

var _ gpio.Group = &Group{}
