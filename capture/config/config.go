/*
NAME
  config.go

DESCRIPTION
  config.go defines Config, the capture session's settings, and
  Validate, which enforces spec.md §6.4's option table and §7's
  invalid-settings error class before a Session is started.

AUTHORS
  MISRC Go port contributors

LICENSE
  Copyright (C) 2024-2025 vrunk11, stefan_o and contributors.

  This program is free software: you can redistribute it and/or modify
  it under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.
*/

// Package config defines the capture session's configuration surface
// (spec.md §6.4), modeled on the teacher's revid/config package: a
// flat struct plus a Validate pass, rather than a dynamic key/value
// store, since spec.md's CLI surface is fixed and closed rather than
// cloud-updatable.
package config

import (
	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"

	"github.com/stefan-olt/misrc-go/device"
)

// Exit codes (spec.md §7).
const (
	ExitOK             = 0
	ExitInvalidSettings = -1
	ExitHardwareError   = -2
	ExitFileError       = -3
	ExitUserAbort       = -4
	ExitThreadError     = -5
	ExitMemoryError     = -6
)

// RFChannel carries one RF output channel's options (spec.md §6.4:
// rf-a/rf-b, resample-rf-*, 8bit-rf-*, rf-flac*).
type RFChannel struct {
	Sink string // output path; "-" means stdout

	SuppressClip bool

	ResampleRateHz int // target Hz; 0 or 40000 disables resampling
	ResampleQuality int // 0..4 (QQ, LQ, MQ, HQ, VHQ)
	ResampleGainDB  float64

	Reduce8Bit bool

	FLAC          bool
	FLACBitsOpt   string // "auto", "12", "16"
	FLACLevel     int    // 0..8
	FLACThreads   int    // 0 = auto
}

// AudioSinks carries the audio output file paths the CLI selected
// (spec.md §6.4: audio-4ch / audio-2ch-{12,34} / audio-1ch-{1..4}).
type AudioSinks struct {
	FourCh    string
	TwoCh12   string
	TwoCh34   string
	OneCh     [4]string
}

// Config is the fully-parsed capture session configuration.
type Config struct {
	Logger logging.Logger

	// Device identifies the capture source: a decimal index for the
	// vendor backend, or "<impl>://<opaque>" for a generic one.
	Device string

	// TargetSamples is the sample-count budget; 0 means unbounded
	// (spec.md §6.4 "count / time").
	TargetSamples uint64

	Overwrite bool

	RFA, RFB *RFChannel // nil if that channel's output is disabled

	AuxSink string
	RawSink string

	Pad   bool
	Level bool // emit peak-level stats

	Audio AudioSinks
}

// AudioEnabled reports whether any audio sink is configured.
func (c *Config) AudioEnabled() bool {
	return c.Audio.FourCh != "" || c.Audio.TwoCh12 != "" || c.Audio.TwoCh34 != "" ||
		c.Audio.OneCh[0] != "" || c.Audio.OneCh[1] != "" || c.Audio.OneCh[2] != "" || c.Audio.OneCh[3] != ""
}

// Validate checks the configuration for the contradictions spec.md
// §7 names ("invalid settings... contradictory combinations (e.g.,
// pad + 12-bit FLAC)"), returning a device.MultiError aggregating
// every problem found.
func (c *Config) Validate() error {
	var errs device.MultiError

	if c.Device == "" {
		errs = append(errs, errors.New("config: device is required"))
	}
	if c.RFA == nil && c.RFB == nil && !c.AudioEnabled() && c.RawSink == "" && c.AuxSink == "" {
		errs = append(errs, errors.New("config: no output sink configured"))
	}

	for name, ch := range map[string]*RFChannel{"rf-a": c.RFA, "rf-b": c.RFB} {
		if ch == nil {
			continue
		}
		if err := validateRFChannel(name, ch, c.Pad); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func validateRFChannel(name string, ch *RFChannel, pad bool) error {
	if ch.FLAC {
		bits := 16
		switch ch.FLACBitsOpt {
		case "12":
			bits = 12
		case "16", "", "auto":
			bits = 16
		default:
			return errors.Errorf("config: %s: invalid rf-flac-bits %q", name, ch.FLACBitsOpt)
		}
		if pad && bits == 12 {
			return errors.Errorf("config: %s: pad is incompatible with 12-bit FLAC", name)
		}
		if ch.FLACLevel < 0 || ch.FLACLevel > 8 {
			return errors.Errorf("config: %s: rf-flac-level %d out of range [0,8]", name, ch.FLACLevel)
		}
	}
	if ch.ResampleQuality < 0 || ch.ResampleQuality > 4 {
		return errors.Errorf("config: %s: resample quality %d out of range [0,4]", name, ch.ResampleQuality)
	}
	if ch.ResampleRateHz < 0 {
		return errors.Errorf("config: %s: negative resample rate", name)
	}
	return nil
}
