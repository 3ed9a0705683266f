/*
NAME
  capture.go

DESCRIPTION
  capture.go provides Session, the top-level type gluing the capture
  source, framing decoder, pipeline coordinator, and writers into one
  controllable unit (spec.md §4.6), analogous to the teacher's Revid.

AUTHORS
  MISRC Go port contributors

LICENSE
  Copyright (C) 2024-2025 vrunk11, stefan_o and contributors.

  This program is free software: you can redistribute it and/or modify
  it under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.
*/

// Package capture provides Session: the glue between a device.Source,
// protocol/framing's Decoder, pipeline's Coordinator and writer's RF
// and audio sinks, controlled via Start/Stop/Burst/Running (spec.md
// §4.6).
package capture

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/stefan-olt/misrc-go/capture/config"
	"github.com/stefan-olt/misrc-go/codec/extract"
	"github.com/stefan-olt/misrc-go/device"
	"github.com/stefan-olt/misrc-go/device/hsdaoh"
	"github.com/stefan-olt/misrc-go/device/v4l2"
	"github.com/stefan-olt/misrc-go/pipeline"
	"github.com/stefan-olt/misrc-go/protocol/framing"
	"github.com/stefan-olt/misrc-go/ringbuffer"
	"github.com/stefan-olt/misrc-go/writer"
)

// Ring capacities (spec.md §4.6 "recommended minima").
const (
	rfRingBytes    = 64 << 20
	audioRingBytes = 16 << 20
	outRingBytes   = 32 << 20
)

// Session is a single capture run: one opened device, one framing
// decoder, one pipeline coordinator, and the RF/audio writers its
// Config selected.
type Session struct {
	cfg config.Config

	src     device.Source
	decoder *framing.Decoder
	coord   *pipeline.Coordinator

	rfRing, audioRing           *ringbuffer.Buffer
	chanARing, chanBRing        *ringbuffer.Buffer
	rawWriters                  []runner
	audioWriter                 *writer.AudioWriter

	wg      sync.WaitGroup
	running bool
}

// runner is the minimal interface Session needs to start and stop a
// writer goroutine uniformly, regardless of concrete type.
type runner interface {
	RequestStop()
}

// New constructs a Session for cfg without opening the device.
func New(cfg config.Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Session{cfg: cfg}, nil
}

// Running reports whether the session is currently capturing.
func (s *Session) Running() bool { return s.running }

// openDevice selects the hsdaoh or v4l2 backend based on the device
// identifier's shape (spec.md §4.5: decimal index vs "impl://").
func openDevice(id string) (device.Source, error) {
	if strings.Contains(id, "://") {
		src, err := v4l2.New()
		if err != nil {
			return nil, err
		}
		if err := src.Open(id); err != nil {
			return nil, err
		}
		return src, nil
	}
	src, err := hsdaoh.New()
	if err != nil {
		return nil, err
	}
	if err := src.Open(id); err != nil {
		return nil, err
	}
	return src, nil
}

// Start opens the device, wires the rings, framing decoder, pipeline
// coordinator and writers per cfg, and begins capturing.
func (s *Session) Start() error {
	if s.running {
		s.cfg.Logger.Warning("start called, but capture already running")
		return nil
	}

	src, err := openDevice(s.cfg.Device)
	if err != nil {
		return fmt.Errorf("capture: opening device: %w", err)
	}
	s.src = src

	s.rfRing, err = ringbuffer.New(rfRingBytes)
	if err != nil {
		return fmt.Errorf("capture: rf ring: %w", err)
	}
	wantAudio := s.cfg.AudioEnabled()

	s.decoder = &framing.Decoder{Log: s.cfg.Logger}
	s.decoder.SetSinks(framing.Sinks{
		WantAudio: wantAudio,
		RFWrite:   s.rfRing.Put,
		AudioWrite: func(p []byte) bool {
			if s.audioRing == nil {
				return true
			}
			return s.audioRing.Put(p)
		},
	})

	s.src.SetFrameCallback(func(f device.Frame) {
		s.decoder.Decode(framing.Frame{Buf: f.Buf, Width: f.Width, Height: f.Height})
	})
	s.src.SetMessageCallback(func(level device.MessageLevel, msg string) {
		logAtLevel(s.cfg.Logger, level, msg)
	})

	coord := &pipeline.Coordinator{
		Log:    s.cfg.Logger,
		RFRing: s.rfRing,
		Opts:   s.extractOptions(),
		Target: s.cfg.TargetSamples,
	}
	if s.cfg.Level {
		coord.Stats = newLevelReporter(s.cfg.Logger).Report
	}
	if s.cfg.RawSink != "" {
		sink, err := openWriteSink(s.cfg.RawSink, s.cfg.Overwrite)
		if err != nil {
			return err
		}
		coord.RawSink = sink
	}
	if s.cfg.AuxSink != "" {
		sink, err := openWriteSink(s.cfg.AuxSink, s.cfg.Overwrite)
		if err != nil {
			return err
		}
		coord.AuxSink = sink
	}

	if err := s.wireChannel(coord, true); err != nil {
		return err
	}
	if err := s.wireChannel(coord, false); err != nil {
		return err
	}
	if wantAudio {
		if err := s.wireAudio(); err != nil {
			return err
		}
	}

	s.coord = coord
	s.wg.Add(1)
	go func() { defer s.wg.Done(); s.coord.Run() }()

	if err := s.src.Start(); err != nil {
		return fmt.Errorf("capture: starting source: %w", err)
	}

	s.running = true
	return nil
}

// extractOptions derives the kernel invocation options for the whole
// session from which RF channels are enabled (spec.md §4.2/§4.6).
func (s *Session) extractOptions() extract.Options {
	var ch extract.Channels
	if s.cfg.RFA != nil {
		ch |= extract.ChanA
	}
	if s.cfg.RFB != nil {
		ch |= extract.ChanB
	}
	return extract.Options{Channels: ch, Pad: s.cfg.Pad, Peak: s.cfg.Level}
}

func logAtLevel(log interface {
	Debug(string, ...interface{})
	Info(string, ...interface{})
	Warning(string, ...interface{})
	Error(string, ...interface{})
}, level device.MessageLevel, msg string) {
	switch level {
	case device.LevelDebug:
		log.Debug(msg)
	case device.LevelInfo:
		log.Info(msg)
	case device.LevelWarning:
		log.Warning(msg)
	default:
		log.Error(msg)
	}
}

// Stop signals the source and coordinator to halt, waits for every
// writer to drain and finish, and closes the device (spec.md §4.6
// "Shutdown").
func (s *Session) Stop() {
	if !s.running {
		s.cfg.Logger.Warning("stop called but capture isn't running")
		return
	}

	if err := s.src.Stop(); err != nil {
		s.cfg.Logger.Error("failed to stop source", "error", err.Error())
	}
	s.coord.RequestStop()
	for _, w := range s.rawWriters {
		w.RequestStop()
	}
	if s.audioWriter != nil {
		s.audioWriter.RequestStop()
	}

	s.wg.Wait()

	if err := s.src.Close(); err != nil {
		s.cfg.Logger.Error("failed to close source", "error", err.Error())
	}
	if err := s.rfRing.Close(); err != nil {
		s.cfg.Logger.Error("failed to close rf ring", "error", err.Error())
	}
	if s.audioRing != nil {
		if err := s.audioRing.Close(); err != nil {
			s.cfg.Logger.Error("failed to close audio ring", "error", err.Error())
		}
	}

	s.running = false
}

// Burst starts the session, sleeps for d, then stops. It always waits
// the full duration; reaching the target sample count does not end the
// wait early.
func (s *Session) Burst(d time.Duration) error {
	if err := s.Start(); err != nil {
		return fmt.Errorf("capture: could not start: %w", err)
	}
	time.Sleep(d)
	s.Stop()
	return nil
}
