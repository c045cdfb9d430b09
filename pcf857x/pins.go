// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package pcf857x

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// PinFlag selects pins, one bit per pin. Flags are combined with the binary
// or operator:
//
//	mask := pcf857x.P0 | pcf857x.P7
//
// P10 to P17 can only be used with the PCF8575.
type PinFlag uint16

const (
	P0 PinFlag = 1 << iota
	P1
	P2
	P3
	P4
	P5
	P6
	P7
	P10
	P11
	P12
	P13
	P14
	P15
	P16
	P17
)

// pinLabel returns the datasheet name of the pin with the ordinal number.
func pinLabel(number int) string {
	if number < 8 {
		return "P" + strconv.Itoa(number)
	}
	return "P1" + strconv.Itoa(number-8)
}

func (f PinFlag) String() string {
	if f == 0 {
		return "0"
	}
	var names []string
	for ix := range 16 {
		if f&(1<<ix) != 0 {
			names = append(names, pinLabel(ix))
		}
	}
	return strings.Join(names, "|")
}

// ParsePinFlag parses a mask written either as a number (0x81, 0b1000_0001,
// 129) or as pin names joined by "|" or "," (P0|P7).
func ParsePinFlag(s string) (PinFlag, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseUint(s, 0, 16); err == nil {
		return PinFlag(v), nil
	}
	var f PinFlag
	for _, name := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' }) {
		name = strings.ToUpper(strings.TrimSpace(name))
		found := false
		for ix := range 16 {
			if pinLabel(ix) == name {
				f |= 1 << ix
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("pcf857x: unknown pin %q", name)
		}
	}
	if f == 0 {
		return 0, fmt.Errorf("pcf857x: invalid pin mask %q", s)
	}
	return f, nil
}

// Pin is a single I/O pin of the device. It implements gpio.PinIO.
type Pin struct {
	dev    *Dev
	number int
	flag   PinFlag
	name   string
	// registered is set when gpioreg holds this pin. Guarded by dev.mu.
	registered bool
}

// SetHigh releases the pin to its weak pull-up.
func (pin *Pin) SetHigh() error {
	return pin.dev.modify(uint16(pin.flag), uint16(pin.flag))
}

// SetLow drives the pin to ground.
func (pin *Pin) SetLow() error {
	return pin.dev.modify(0, uint16(pin.flag))
}

// IsHigh reads the pin and returns whether it is high.
func (pin *Pin) IsHigh() (bool, error) {
	v, err := pin.dev.Get(pin.flag)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// IsLow reads the pin and returns whether it is low.
func (pin *Pin) IsLow() (bool, error) {
	high, err := pin.IsHigh()
	return !high, err
}

// Flag returns the mask selecting this pin.
func (pin *Pin) Flag() PinFlag {
	return pin.flag
}

// DefaultPull returns gpio.PullUp, the chip's fixed weak pull-up.
func (pin *Pin) DefaultPull() gpio.Pull {
	return gpio.PullUp
}

// Function returns "In/Out", the pins are quasi-bidirectional.
func (pin *Pin) Function() string {
	return "In/Out"
}

// Halt does nothing, the pin keeps its level.
func (pin *Pin) Halt() error {
	return nil
}

// In prepares the pin for input by writing a High to it. The chip has a
// fixed weak pull-up, so pull and edge are ignored.
//
// Refer to the datasheet for more information.
func (pin *Pin) In(pull gpio.Pull, edge gpio.Edge) error {
	return pin.SetHigh()
}

// Name returns the device name followed by the datasheet pin name.
func (pin *Pin) Name() string {
	return pin.name
}

// Number returns the ordinal position of the pin on the device, 0 for P0 up
// to 15 for P17.
func (pin *Pin) Number() int {
	return pin.number
}

// Out drives the pin low, or releases it to its pull-up for gpio.High.
func (pin *Pin) Out(l gpio.Level) error {
	if l {
		return pin.SetHigh()
	}
	return pin.SetLow()
}

// Pull returns gpio.PullUp.
func (pin *Pin) Pull() gpio.Pull {
	return gpio.PullUp
}

// Read returns the level of the pin. gpio.PinIn has no way to report a bus
// error, so it is logged and gpio.Low is returned. Use IsHigh() to get the
// error.
func (pin *Pin) Read() gpio.Level {
	high, err := pin.IsHigh()
	if err != nil {
		logger.WithField("pin", pin.name).WithError(err).Error("read failed")
		return gpio.Low
	}
	return gpio.Level(high)
}

// PWM is not supported by the chip.
func (pin *Pin) PWM(duty gpio.Duty, f physic.Frequency) error {
	return ErrNotImplemented
}

// String returns Name().
func (pin *Pin) String() string {
	return pin.name
}

// This device has an interrupt pin that can detect a change on the GPIO lines,
// however it doesn't let you detect a change on a specific pin.
func (pin *Pin) WaitForEdge(timeout time.Duration) bool {
	return false
}

var _ gpio.PinIO = &Pin{}
