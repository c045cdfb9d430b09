// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package pcf857x

import (
	"errors"
	"testing"

	"periph.io/x/conn/v3/gpio"
)

// This tests the group functionality.
func TestGroup(t *testing.T) {
	dev, _ := getDev(t)
	defer func() { _ = dev.Halt() }()

	set1 := make([]int, dev.Width()>>1)
	set2 := make([]int, dev.Width()>>1)
	for ix := range len(set1) {
		set1[ix] = ix
		set2[ix] = ix + len(set1)
	}
	gr1, err := dev.Group(set1...)
	if err != nil {
		t.Fatal(err)
	}
	gr2, err := dev.Group(set2...)
	if err != nil {
		t.Fatal(err)
	}
	// Test the basic group functionality. Note that for group1, pinOffset==pin.Number, but
	// for group2, pinOffset!=pin.Number
	grTest := gr1
	for range 2 {
		for pinNumber, pin := range grTest.Pins() {
			x := grTest.ByNumber(pin.Number())
			if x == nil {
				t.Errorf("group.ByNumber() returned nil for pin %d", pin.Number())
			}
			x = grTest.ByOffset(pinNumber)
			if x == nil {
				t.Errorf("group.ByOffset returned nil for pin number %d", pinNumber)
			} else if x.Number() != pin.Number() {
				t.Errorf("group.ByOffset() didn't return the expected pin. Expected %d, found %d", pin.Number(), x.Number())
			}
			x = grTest.ByName(pin.Name())
			if x == nil || x.Name() != pin.Name() {
				t.Error("group.ByName() didn't find a pin or returned the wrong pin!")
			}
		}
		grTest = gr2
	}
	if gr1.ByOffset(99) != nil || gr1.ByName("nope") != nil || gr1.ByNumber(15) != nil {
		t.Error("lookup of a pin outside the group succeeded")
	}
	if gr1.String() != "PCF8575_24[ 0 1 2 3 4 5 6 7 ]" {
		t.Errorf("group.String()=%q", gr1.String())
	}
	if _, _, err := gr1.WaitForEdge(0); !errors.Is(err, ErrNotImplemented) {
		t.Errorf("WaitForEdge() expected ErrNotImplemented, got %v", err)
	}
	// Test the read/write functionality.
	limit := 1 << len(set1)
	for groupNumber := range 2 {
		for val := range limit {
			err = gr1.Out(gpio.GPIOValue(val), 0)
			if err != nil {
				t.Error(err)
			}
			read, err := gr2.Read(0)
			if err != nil {
				t.Error(err)
			}
			if read != gpio.GPIOValue(val) {
				t.Errorf("Error writing/reading groups. Wrote %d on write group %s, read %d on read group%s", val, gr1, read, gr2)
			}
		}
		if groupNumber == 0 {
			gr1, gr2 = gr2, gr1
		}
	}
	err = gr1.Halt()
	if err != nil {
		t.Error(err)
	}
	err = gr2.Halt()
	if err != nil {
		t.Error(err)
	}
}

// Group pins don't have to be in device order.
func TestGroupMasked(t *testing.T) {
	dev, chip := getDev(t)
	gr, err := dev.Group(15, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := dev.Set(0xffff); err != nil {
		t.Fatal(err)
	}
	// Only offset 1, pin 0, is written.
	if err := gr.Out(0, 0b10); err != nil {
		t.Fatal(err)
	}
	if dev.Last() != 0xfffe {
		t.Errorf("Last()=0x%x, expected 0xfffe", dev.Last())
	}
	v, err := gr.Read(0b01)
	if err != nil {
		t.Fatal(err)
	}
	// Pin 0 is low, and jumpered to pin 8, not to pin 15.
	if v != 0b01 {
		t.Errorf("Read()=0b%b, expected 0b01", v)
	}
	if chip.Latch != 0xfffe {
		t.Errorf("latch=0x%x", chip.Latch)
	}
	if v, err := dev.Get(P10); err != nil || v != 0 {
		t.Errorf("Get(P10)=0x%x, %v; expected 0", v, err)
	}
	// Reading pin 0 releases it.
	if v, err = gr.Read(0b10); err != nil || v != 0b10 {
		t.Errorf("Read()=0b%b, %v; expected 0b10", v, err)
	}
	if _, err := dev.Group(3, 16); !errors.Is(err, ErrInvalidPin) {
		t.Errorf("expected ErrInvalidPin, got %v", err)
	}
}
