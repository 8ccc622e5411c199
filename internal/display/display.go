// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package display renders the latest reading on an SSD1306 OLED.
package display

import (
	"fmt"
	"image"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/climate_node/internal/env"
)

// Address is where the ssd1306 driver talks to the panel.
const Address = 0x3C

const lineHeight = 13

// Panel is the drawable surface. *ssd1306.Dev satisfies it.
type Panel interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// Display shows the source label and the last reading.
type Display struct {
	mu     sync.Mutex
	panel  Panel
	source string
	failed bool
}

// Open initializes the SSD1306 on b and shows the splash screen.
func Open(b i2c.Bus, source string) (*Display, error) {
	dev, err := ssd1306.NewI2C(b, &ssd1306.DefaultOpts)
	if err != nil {
		return nil, errors.Wrapf(err, "display: init at 0x%02X", Address)
	}
	log.Infof("display: initialized at 0x%02X on %s", Address, b)
	return New(dev, source), nil
}

// New wraps panel and shows the splash screen.
func New(panel Panel, source string) *Display {
	d := &Display{panel: panel, source: source}
	d.show(Splash(panel.Bounds(), source))
	return d
}

// ObserveSample draws s.
func (d *Display) ObserveSample(s env.Sample) {
	d.mu.Lock()
	d.failed = false
	d.mu.Unlock()
	d.show(RenderSample(d.panel.Bounds(), d.source, s))
}

// ObserveFailure marks the screen so a stale reading is visible as such.
func (d *Display) ObserveFailure(stage string, _ error) {
	d.mu.Lock()
	already := d.failed
	d.failed = true
	d.mu.Unlock()
	if !already {
		d.show(RenderLines(d.panel.Bounds(), d.source, "Error:", stage))
	}
}

func (d *Display) show(img image.Image) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.panel.Draw(d.panel.Bounds(), img, image.Point{}); err != nil {
		log.Warnf("display: draw: %v", err)
	}
}

// Splash is the screen shown until the first reading.
func Splash(bounds image.Rectangle, source string) *image1bit.VerticalLSB {
	return RenderLines(bounds, "Climate node", source, "Waiting...")
}

// RenderSample lays out one reading.
func RenderSample(bounds image.Rectangle, source string, s env.Sample) *image1bit.VerticalLSB {
	return RenderLines(bounds,
		source,
		s.Sensor,
		fmt.Sprintf("T: %5.1f C", s.Temperature),
		fmt.Sprintf("RH:%5.1f %%", s.Humidity),
	)
}

// RenderLines draws one text line per row in the 7x13 font.
func RenderLines(bounds image.Rectangle, lines ...string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(bounds)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		drawer.Dot = fixed.P(0, lineHeight*(i+1))
		drawer.DrawString(line)
	}
	return img
}
