// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package portview renders the state of an expander port, one cell per pin.
//
// Terminal draws on the console using ANSI color codes. Render and SavePNG
// draw a labelled diagram into an image.
package portview

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"sync"

	"github.com/GermanBionicSystems/expanders/pcf857x"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// ErrWidth is returned for a port that is not 8 or 16 pins wide.
var ErrWidth = errors.New("portview: width must be 8 or 16")

var (
	// DefaultHigh is the color of a high pin.
	DefaultHigh = color.NRGBA{0x20, 0xc0, 0x40, 0xff}
	// DefaultLow is the color of a low pin.
	DefaultLow = color.NRGBA{0x80, 0x10, 0x10, 0xff}
)

// Opts represents the options available for the renderers.
type Opts struct {
	// Palette used by Terminal. Defaults to ansi256.Default.
	Palette *ansi256.Palette
	// High and Low colors. The zero value selects the defaults.
	High color.NRGBA
	Low  color.NRGBA

	_ struct{}
}

func (o *Opts) colors() (color.NRGBA, color.NRGBA) {
	high, low := DefaultHigh, DefaultLow
	if o == nil {
		return high, low
	}
	if o.High != (color.NRGBA{}) {
		high = o.High
	}
	if o.Low != (color.NRGBA{}) {
		low = o.Low
	}
	return high, low
}

// Terminal is a port view that outputs to the console.
type Terminal struct {
	w         io.Writer
	palette   ansi256.Palette
	high, low color.NRGBA

	buf bytes.Buffer
}

// NewTerminal returns a Terminal that displays on stdout.
func NewTerminal(opts *Opts) *Terminal {
	return NewTerminalWriter(colorable.NewColorableStdout(), opts)
}

// NewTerminalWriter returns a Terminal that writes to w.
func NewTerminalWriter(w io.Writer, opts *Opts) *Terminal {
	p := ansi256.Default
	if opts != nil && opts.Palette != nil {
		p = opts.Palette
	}
	t := &Terminal{w: w, palette: *p}
	t.high, t.low = opts.colors()
	return t
}

func (t *Terminal) String() string {
	return "PortView"
}

// Show redraws the current line with label followed by one block per pin,
// P0 first.
func (t *Terminal) Show(label string, value uint16, width int) error {
	if width != 8 && width != 16 {
		return ErrWidth
	}
	// This code is designed to minimize the amount of memory allocated per call.
	t.buf.Reset()
	_, _ = t.buf.WriteString("\r\033[0m")
	_, _ = t.buf.WriteString(label)
	_, _ = t.buf.WriteString(" ")
	for ix := range width {
		c := t.low
		if value&(1<<ix) != 0 {
			c = t.high
		}
		_, _ = io.WriteString(&t.buf, t.palette.Block(c))
	}
	_, _ = t.buf.WriteString("\033[0m ")
	_, err := t.buf.WriteTo(t.w)
	return err
}

// Halt implements conn.Resource.
//
// It resets the colors and ends the line so the console is not corrupted.
func (t *Terminal) Halt() error {
	_, err := t.w.Write([]byte("\n\033[0m"))
	return err
}

const (
	cellSize    = 48
	margin      = 12
	titleHeight = 28
	labelHeight = 18
)

var (
	fontOnce sync.Once
	goFont   *truetype.Font
	fontErr  error
)

func fontFace(points float64) (font.Face, error) {
	fontOnce.Do(func() {
		goFont, fontErr = truetype.Parse(goregular.TTF)
	})
	if fontErr != nil {
		return nil, fontErr
	}
	return truetype.NewFace(goFont, &truetype.Options{Size: points}), nil
}

// cellRect returns the area filled for the pin with the ordinal number. Pins
// are laid out eight per row.
func cellRect(number int) image.Rectangle {
	row, col := number/8, number%8
	x := margin + col*cellSize
	y := titleHeight + row*(cellSize+labelHeight)
	return image.Rect(x+4, y+4, x+cellSize-4, y+cellSize-4)
}

// Render draws the port as an image: the title on top, then one square per
// pin colored by its level, each labelled with its datasheet name.
func Render(title string, value uint16, width int, opts *Opts) (image.Image, error) {
	dc, err := draw(title, value, width, opts)
	if err != nil {
		return nil, err
	}
	return dc.Image(), nil
}

// SavePNG renders the port and writes it to path as a PNG file.
func SavePNG(path, title string, value uint16, width int, opts *Opts) error {
	dc, err := draw(title, value, width, opts)
	if err != nil {
		return err
	}
	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("portview: %w", err)
	}
	return nil
}

func draw(title string, value uint16, width int, opts *Opts) (*gg.Context, error) {
	if width != 8 && width != 16 {
		return nil, ErrWidth
	}
	high, low := opts.colors()
	rows := width / 8
	dc := gg.NewContext(2*margin+8*cellSize, titleHeight+rows*(cellSize+labelHeight)+margin)
	dc.SetColor(color.White)
	dc.Clear()

	face, err := fontFace(13)
	if err != nil {
		return nil, fmt.Errorf("portview: %w", err)
	}
	dc.SetFontFace(face)
	dc.SetColor(color.Black)
	dc.DrawStringAnchored(title, margin, titleHeight/2, 0, 0.5)

	for ix := range width {
		r := cellRect(ix)
		c := low
		if value&(1<<ix) != 0 {
			c = high
		}
		dc.SetColor(c)
		dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
		dc.Fill()
		dc.SetColor(color.Black)
		name := pcf857x.PinFlag(1 << ix).String()
		dc.DrawStringAnchored(name, float64(r.Min.X+r.Dx()/2), float64(r.Max.Y+4+labelHeight/2), 0.5, 0.5)
	}
	return dc, nil
}
