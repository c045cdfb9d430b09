// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package pcf857x provides a driver for the NXP/TI PCF8574, PCF8574A and
// PCF8575 I²C I/O expanders. These devices provide 8 pins (PCF8574,
// PCF8574A) or 16 pins (PCF8575) of "quasi-bidirectional" input/output.
//
// The PCF8575 is functionally identical to the PCF8574. Reads and writes are
// two bytes wide, least significant byte first, while they're one byte wide
// with the PCF8574. The PCF8574A only differs by its base address.
//
// # Datasheet
//
// https://www.nxp.com/docs/en/data-sheet/PCF8574_PCF8574A.pdf
//
// https://www.nxp.com/documents/data_sheet/PCF8575.pdf
//
// # Notes
//
// This chip doesn't implement normal i2c register architectures. You write 8
// or 16 bits out, and that sets the corresponding pins, or you read 8/16 bits
// and get the state of the pins.
//
// Setting a pin to Low activates an open drain to ground. Setting it High
// releases it to a weak pull-up, which is how a pin is used as an input: if
// nothing pulls it down, it reads high. Get() therefore writes the masked pins
// high before reading them, while conserving the pins last set high.
//
// The interrupt output is not handled by this driver.
package pcf857x

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
)

// Variant represents the actual chip model.
type Variant string

const (
	PCF8574  Variant = "PCF8574"
	PCF8574A Variant = "PCF8574A"
	PCF8575  Variant = "PCF8575"

	// DefaultAddress is the address of a PCF8574 or PCF8575 with A2, A1 and
	// A0 tied low.
	DefaultAddress uint16 = 0x20
	// DefaultAddressA is the address of a PCF8574A with A2, A1 and A0 tied
	// low.
	DefaultAddressA uint16 = 0x38
)

var (
	ErrInvalidInputData = errors.New("pcf857x: invalid input data")
	ErrUnknownVariant   = errors.New("pcf857x: unknown variant")
	ErrInvalidPin       = errors.New("pcf857x: invalid pin number")
	ErrNotImplemented   = errors.New("pcf857x: not implemented")
)

var logger logrus.FieldLogger = logrus.WithField("prefix", "pcf857x")

// SetLogger replaces the logger used to report the errors that gpio.PinIO
// methods have no way to return.
func SetLogger(l logrus.FieldLogger) {
	logger = l
}

// Width returns the number of pins of the chip, or 0 for an unknown variant.
func (v Variant) Width() int {
	switch v {
	case PCF8574, PCF8574A:
		return 8
	case PCF8575:
		return 16
	}
	return 0
}

// BaseAddress returns the address of the chip when all hardware address pins
// are low.
func (v Variant) BaseAddress() (uint16, error) {
	switch v {
	case PCF8574, PCF8575:
		return DefaultAddress, nil
	case PCF8574A:
		return DefaultAddressA, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownVariant, string(v))
}

// Addr is the level of the A2, A1 and A0 hardware address pins.
//
// The zero value is the default address.
type Addr struct {
	A2, A1, A0 bool
}

// DefaultAddr selects the address with all hardware address pins low.
var DefaultAddr = Addr{}

// Resolve returns the 7 bit slave address for a chip with the given base
// address.
func (a Addr) Resolve(base uint16) uint16 {
	addr := base
	if a.A2 {
		addr |= 1 << 2
	}
	if a.A1 {
		addr |= 1 << 1
	}
	if a.A0 {
		addr |= 1
	}
	return addr
}

// Address returns the slave address of chip when its hardware address pins
// are wired as a.
func Address(chip Variant, a Addr) (uint16, error) {
	base, err := chip.BaseAddress()
	if err != nil {
		return 0, err
	}
	return a.Resolve(base), nil
}

// Dev is representation of a PCF857x device.
type Dev struct {
	chip  Variant
	width int
	// all is the mask of the pins the chip has.
	all uint16

	mu sync.Mutex
	d  *i2c.Dev
	// last is the value last set on the output pins. It is only updated by
	// successful writes, never by reads.
	last uint16
	// latch is what the chip holds, which differs from last after a read
	// released the masked pins. It is only meaningful when synced.
	latch  uint16
	synced bool
	pins   []*Pin
	groups []*Group
}

// New creates a new PCF857x io expander and returns it. chip should be one of
// the Variant constants above.
//
// No bus transaction happens until the first operation.
func New(bus i2c.Bus, chip Variant, addr Addr) (*Dev, error) {
	address, err := Address(chip, addr)
	if err != nil {
		return nil, err
	}
	dev := &Dev{
		d:     &i2c.Dev{Bus: bus, Addr: address},
		chip:  chip,
		width: chip.Width(),
	}
	dev.all = uint16(uint32(1)<<dev.width - 1)
	dev.pins = make([]*Pin, dev.width)
	sDev := dev.String()
	for ix := range dev.width {
		p := &Pin{
			dev:    dev,
			number: ix,
			flag:   PinFlag(1) << ix,
			name:   sDev + "_" + pinLabel(ix),
		}
		dev.pins[ix] = p
		if err := gpioreg.Register(p); err != nil {
			// Another live device already holds the name. The pin still works
			// through Split(), Pin() and Group().
			logger.WithField("pin", p.name).WithError(err).Warn("not registered in gpioreg")
			continue
		}
		p.registered = true
	}
	return dev, nil
}

// Refresh reads the port without releasing any pin and adopts the result as
// the value returned by Last(), so that later masked writes keep the pins
// another program left set.
//
// A pin held low by the external circuit reads as 0 and is driven low by the
// next write.
func (dev *Dev) Refresh() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	r := make([]byte, dev.byteCount())
	if err := dev.d.Tx(nil, r); err != nil {
		dev.synced = false
		return fmt.Errorf("pcf857x: %w", err)
	}
	dev.last = dev.decode(r)
	// The latch may hold 1 where the port read 0, so the next write is never
	// skipped.
	dev.synced = false
	return nil
}

// Set writes the status of all I/O pins in one bus transaction.
//
// A 1 bit releases the pin to its weak pull-up, a 0 bit drives it low.
func (dev *Dev) Set(bits uint16) error {
	if bits&^dev.all != 0 {
		return ErrInvalidInputData
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.writeLocked(bits)
}

// Get returns the status of the pins selected by mask. Bits outside of mask
// are always 0.
//
// The selected pins are written high together with the pins last set high
// before the port is read. The value remembered by Last() is not changed.
func (dev *Dev) Get(mask PinFlag) (uint16, error) {
	if err := dev.checkMask(mask); err != nil {
		return 0, err
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.getLocked(mask)
}

func (dev *Dev) getLocked(mask PinFlag) (uint16, error) {
	r := make([]byte, dev.byteCount())
	if err := dev.readLocked(mask, r); err != nil {
		return 0, err
	}
	return dev.decode(r) & uint16(mask), nil
}

// WriteArray sets the status of all I/O pins repeatedly, once per element
// for 8 pin chips, or once per pair of elements for the PCF8575. With the
// PCF8575 the even elements are P0-P7 and the odd ones P10-P17, so the number
// of elements must be even.
//
// All the data is sent in a single bus transaction. The last word becomes
// the value returned by Last().
func (dev *Dev) WriteArray(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	n := dev.byteCount()
	if len(data)%n != 0 {
		return ErrInvalidInputData
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if err := dev.d.Tx(data, nil); err != nil {
		dev.synced = false
		return fmt.Errorf("pcf857x: %w", err)
	}
	dev.last = dev.decode(data[len(data)-n:])
	dev.latch = dev.last
	dev.synced = true
	return nil
}

// ReadArray reads the status of the selected I/O pins repeatedly and puts the
// raw port words in data. With the PCF8575 the number of elements must be
// even.
//
// Unlike Get(), the words are not masked.
func (dev *Dev) ReadArray(mask PinFlag, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := dev.checkMask(mask); err != nil {
		return err
	}
	if len(data)%dev.byteCount() != 0 {
		return ErrInvalidInputData
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.readLocked(mask, data)
}

// SetBitsHigh drives the pins selected by mask high, leaving the others as
// they were last set.
func (dev *Dev) SetBitsHigh(mask PinFlag) error {
	return dev.modify(uint16(mask), uint16(mask))
}

// SetBitsLow drives the pins selected by mask low, leaving the others as they
// were last set.
func (dev *Dev) SetBitsLow(mask PinFlag) error {
	return dev.modify(0, uint16(mask))
}

// Split returns the individual pins of the device, P0 first. The pins share
// the device and may be used from several goroutines.
func (dev *Dev) Split() []*Pin {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	pins := make([]*Pin, len(dev.pins))
	copy(pins, dev.pins)
	return pins
}

// Pin returns the pin with the ordinal number, 0 to Width()-1.
func (dev *Dev) Pin(number int) (*Pin, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if number < 0 || number >= len(dev.pins) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPin, number)
	}
	return dev.pins[number], nil
}

// Group returns a GPIO Group comprised of the specified pin numbers. A
// gpio.Group allows you to perform writes to multiple pins in one operation.
func (dev *Dev) Group(pinNumbers ...int) (gpio.Group, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	gr := &Group{dev: dev, pins: make([]*Pin, len(pinNumbers))}
	for ix, pinNumber := range pinNumbers {
		if pinNumber < 0 || pinNumber >= len(dev.pins) {
			return nil, fmt.Errorf("%w: %d", ErrInvalidPin, pinNumber)
		}
		gr.pins[ix] = dev.pins[pinNumber]
	}
	dev.groups = append(dev.groups, gr)
	return gr, nil
}

// Last returns the value last written to the pins.
func (dev *Dev) Last() uint16 {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.last
}

// Width returns the number of pins of the device.
func (dev *Dev) Width() int {
	return dev.width
}

// Addr returns the I²C address of the device.
func (dev *Dev) Addr() uint16 {
	return dev.d.Addr
}

// Variant returns the chip model.
func (dev *Dev) Variant() Variant {
	return dev.chip
}

// Halt shuts down the device, frees any pin groups and removes the pins from
// gpioreg. The bus is not closed, it is owned by the caller.
func (dev *Dev) Halt() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	for _, gr := range dev.groups {
		gr.haltLocked()
	}
	var err error
	for _, p := range dev.pins {
		if !p.registered {
			continue
		}
		if err2 := gpioreg.Unregister(p.name); err2 != nil && err == nil {
			err = fmt.Errorf("pcf857x: %w", err2)
		}
		p.registered = false
	}
	dev.groups = nil
	dev.pins = nil
	return err
}

func (dev *Dev) String() string {
	return fmt.Sprintf("%s_%x", dev.chip, dev.d.Addr)
}

// modify replaces the bits selected by mask with value. The write is skipped
// when the chip already holds the result.
func (dev *Dev) modify(value, mask uint16) error {
	if mask&^dev.all != 0 {
		return ErrInvalidInputData
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.modifyLocked(value, mask)
}

func (dev *Dev) modifyLocked(value, mask uint16) error {
	wrValue := dev.last&^mask | value&mask
	if dev.synced && wrValue == dev.latch {
		dev.last = wrValue
		return nil
	}
	return dev.writeLocked(wrValue)
}

// writeLocked performs the low-level write of the output latch.
func (dev *Dev) writeLocked(value uint16) error {
	if err := dev.d.Tx(dev.encode(value), nil); err != nil {
		dev.synced = false
		return fmt.Errorf("pcf857x: %w", err)
	}
	dev.last = value
	dev.latch = value
	dev.synced = true
	return nil
}

// readLocked releases the masked pins and reads the port into r, in a single
// write-then-read transaction.
func (dev *Dev) readLocked(mask PinFlag, r []byte) error {
	// Before you can read a pin, you must have set it to high. If nothing
	// pulls that down, then it's high. If it's pulled down, it's low.
	latch := dev.last | uint16(mask)
	if err := dev.d.Tx(dev.encode(latch), r); err != nil {
		dev.synced = false
		return fmt.Errorf("pcf857x: %w", err)
	}
	dev.latch = latch
	dev.synced = true
	return nil
}

func (dev *Dev) checkMask(mask PinFlag) error {
	if uint16(mask)&^dev.all != 0 {
		return ErrInvalidInputData
	}
	return nil
}

func (dev *Dev) byteCount() int {
	return dev.width / 8
}

func (dev *Dev) encode(value uint16) []byte {
	w := make([]byte, dev.byteCount())
	for ix := range w {
		w[ix] = byte(value >> (ix * 8))
	}
	return w
}

func (dev *Dev) decode(b []byte) uint16 {
	result := uint16(b[0])
	if len(b) > 1 {
		result |= uint16(b[1]) << 8
	}
	return result
}
