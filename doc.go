// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package expanders is a container for I²C I/O expander drivers and the
// tools built on them.
//
// The driver lives in pcf857x; pcf857x/pcf857xtest simulates a chip for
// tests, portview renders port states and cmd/pcf857x is a command line front
// end.
package expanders
