/*
NAME
  wire.go

DESCRIPTION
  wire.go wires one RF channel's and the audio sinks' output rings,
  sink files, and writer goroutines into a Session (spec.md §4.6-4.9).

AUTHORS
  MISRC Go port contributors

LICENSE
  Copyright (C) 2024-2025 vrunk11, stefan_o and contributors.

  This program is free software: you can redistribute it and/or modify
  it under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.
*/

package capture

import (
	"fmt"
	"io"
	"os"

	"github.com/zaf/resample"

	"github.com/stefan-olt/misrc-go/capture/config"
	"github.com/stefan-olt/misrc-go/pipeline"
	"github.com/stefan-olt/misrc-go/ringbuffer"
	"github.com/stefan-olt/misrc-go/writer"
)

// stdoutSink wraps os.Stdout so it satisfies io.WriteCloser without
// Close ever closing the process's actual stdout descriptor.
type stdoutSink struct{ io.Writer }

func (stdoutSink) Close() error { return nil }

func openWriteSink(path string, overwrite bool) (io.WriteCloser, error) {
	if path == "-" {
		return stdoutSink{os.Stdout}, nil
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("capture: opening sink %q: %w", path, err)
	}
	return f, nil
}

// wireChannel opens ch's sink (if configured), creates its output
// ring, and spawns the raw or FLAC writer goroutine that drains it.
func (s *Session) wireChannel(coord *pipeline.Coordinator, isA bool) error {
	ch := s.cfg.RFB
	field := &coord.ChanB
	if isA {
		ch = s.cfg.RFA
		field = &coord.ChanA
	}
	if ch == nil || ch.Sink == "" {
		return nil
	}

	outSize := 2
	if ch.FLAC {
		outSize = 4
	}

	ring, err := ringbuffer.New(outRingBytes)
	if err != nil {
		return fmt.Errorf("capture: output ring: %w", err)
	}
	*field = &pipeline.Channel{Ring: ring, OutSize: outSize, SuppressClip: ch.SuppressClip}

	sink, err := openWriteSink(ch.Sink, s.cfg.Overwrite)
	if err != nil {
		return err
	}

	if ch.FLAC {
		fw := &writer.FlacWriter{
			Log:              s.cfg.Logger,
			Ring:             ring,
			SampleRate:       resolvedRate(ch),
			Bits:             writer.FlacBits(ch.Reduce8Bit, ch.FLACBitsOpt),
			CompressionLevel: ch.FLACLevel,
			Threads:          ch.FLACThreads,
			NumRFOutputs:     numRFOutputs(s.cfg),
			Path:             ch.Sink,
		}
		s.rawWriters = append(s.rawWriters, fw)
		s.wg.Add(1)
		go func() { defer s.wg.Done(); fw.Run(sink) }()
		return nil
	}

	rw := &writer.RawWriter{
		Log:             s.cfg.Logger,
		Ring:            ring,
		Sink:            sink,
		Reduce8Bit:      ch.Reduce8Bit,
		Pad:             s.cfg.Pad,
		ResampleRate:    ch.ResampleRateHz,
		ResampleQuality: resample.Quality(ch.ResampleQuality),
		GainDB:          ch.ResampleGainDB,
	}
	s.rawWriters = append(s.rawWriters, rw)
	s.wg.Add(1)
	go func() { defer s.wg.Done(); rw.Run() }()
	return nil
}

func resolvedRate(ch *config.RFChannel) int {
	if ch.ResampleRateHz != 0 && ch.ResampleRateHz != 40000 {
		return ch.ResampleRateHz
	}
	return 40000
}

func numRFOutputs(cfg config.Config) int {
	n := 0
	if cfg.RFA != nil {
		n++
	}
	if cfg.RFB != nil {
		n++
	}
	return n
}

// wireAudio opens the configured audio sinks and spawns the audio
// demux writer (spec.md §4.9).
func (s *Session) wireAudio() error {
	var sinks []writer.AudioSink

	open := func(path string) (writer.Sink, error) {
		if path == "-" {
			return nil, fmt.Errorf("capture: audio sinks must be seekable files, not stdout")
		}
		flags := os.O_RDWR | os.O_CREATE | os.O_TRUNC
		if !s.cfg.Overwrite {
			flags |= os.O_EXCL
		}
		return os.OpenFile(path, flags, 0644)
	}

	if p := s.cfg.Audio.FourCh; p != "" {
		f, err := open(p)
		if err != nil {
			return err
		}
		sinks = append(sinks, writer.NewSink4(f))
	}
	if p := s.cfg.Audio.TwoCh12; p != "" {
		f, err := open(p)
		if err != nil {
			return err
		}
		sinks = append(sinks, writer.NewSinkPair(f, 0))
	}
	if p := s.cfg.Audio.TwoCh34; p != "" {
		f, err := open(p)
		if err != nil {
			return err
		}
		sinks = append(sinks, writer.NewSinkPair(f, 1))
	}
	for i, p := range s.cfg.Audio.OneCh {
		if p == "" {
			continue
		}
		f, err := open(p)
		if err != nil {
			return err
		}
		sinks = append(sinks, writer.NewSink1(f, i))
	}

	ring, err := ringbuffer.New(audioRingBytes)
	if err != nil {
		return fmt.Errorf("capture: audio ring: %w", err)
	}
	s.audioRing = ring

	aw := &writer.AudioWriter{Log: s.cfg.Logger, Ring: ring, Sinks: sinks}
	if err := aw.Open(); err != nil {
		return err
	}
	s.audioWriter = aw
	s.wg.Add(1)
	go func() { defer s.wg.Done(); aw.Run() }()
	return nil
}
