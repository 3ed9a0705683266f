/*
NAME
  misrc-capture - captures RF and audio from the HDMI/USB3 acquisition
  hardware or a generic V4L2 source.

AUTHORS
  MISRC Go port contributors

LICENSE
  Copyright (C) 2024-2025 vrunk11, stefan_o and contributors.

  This program is free software: you can redistribute it and/or modify
  it under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.
*/

// Command misrc-capture is the CLI front end for a capture session:
// it parses spec.md §6.4's option surface into a config.Config,
// starts a capture.Session, and runs until the sample budget is
// reached or the process is signaled.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/utils/logging"

	"github.com/stefan-olt/misrc-go/capture"
	"github.com/stefan-olt/misrc-go/capture/config"
)

const (
	progName     = "misrc-capture"
	logPath      = "/var/log/misrc/capture.log"
	logMaxSize   = 10 // MB
	logMaxBackup = 5
	logMaxAge    = 30 // days
)

func main() {
	os.Exit(run())
}

func run() int {
	fileLog := &lumberjack.Logger{Filename: logPath, MaxSize: logMaxSize, MaxBackups: logMaxBackup, MaxAge: logMaxAge}
	log := logging.New(logging.Debug, io.MultiWriter(fileLog, os.Stderr), false)

	cfg, err := parseFlags(log)
	if err != nil {
		log.Error("invalid settings", "error", err.Error())
		fmt.Fprintln(os.Stderr, err)
		return config.ExitInvalidSettings
	}

	sess, err := capture.New(*cfg)
	if err != nil {
		log.Error("invalid settings", "error", err.Error())
		return config.ExitInvalidSettings
	}

	if err := sess.Start(); err != nil {
		log.Error("could not start capture", "error", err.Error())
		return config.ExitHardwareError
	}
	log.Info("capture started")

	watchOutputDirs(log, *cfg)

	daemon.SdNotify(false, daemon.SdNotifyReady)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGPIPE)

	interval, _ := daemon.SdWatchdogEnabled(false)
	var watchdogTick <-chan time.Time
	if interval > 0 {
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		watchdogTick = t.C
	}

	for {
		select {
		case <-sigCh:
			log.Info("signal received, stopping")
			sess.Stop()
			return config.ExitOK
		case <-watchdogTick:
			daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		case <-time.After(200 * time.Millisecond):
			if !sess.Running() {
				return config.ExitOK
			}
		}
	}
}

// watchOutputDirs starts a best-effort fsnotify watch over every
// configured sink's directory, logging a warning if a sink is removed
// or renamed out from under a running capture (not itself fatal: the
// writer's next write surfaces the real I/O error).
func watchOutputDirs(log logging.Logger, cfg config.Config) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warning("fsnotify unavailable, output directories will not be watched", "error", err.Error())
		return
	}

	dirs := map[string]bool{}
	add := func(path string) {
		if path == "" || path == "-" {
			return
		}
		if dir := dirOf(path); dir != "" {
			dirs[dir] = true
		}
	}
	if cfg.RFA != nil {
		add(cfg.RFA.Sink)
	}
	if cfg.RFB != nil {
		add(cfg.RFB.Sink)
	}
	add(cfg.Audio.FourCh)
	add(cfg.Audio.TwoCh12)
	add(cfg.Audio.TwoCh34)
	for _, p := range cfg.Audio.OneCh {
		add(p)
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			log.Warning("could not watch output directory", "dir", dir, "error", err.Error())
		}
	}

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					log.Warning("output path removed or renamed during capture", "path", ev.Name)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warning("fsnotify error", "error", err.Error())
			}
		}
	}()
}

func dirOf(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "."
	}
	return path[:i]
}

// parseFlags implements spec.md §6.4's capture option table.
func parseFlags(log logging.Logger) (*config.Config, error) {
	fs := flag.NewFlagSet(progName, flag.ContinueOnError)

	device := fs.String("device", "", "capture device: decimal index (vendor) or \"impl://opaque\" (generic)")
	countStr := fs.String("count", "", "sample budget (overrides -time)")
	timeStr := fs.String("time", "", "capture duration: s, m:s, or h:m:s")
	overwrite := fs.Bool("overwrite", false, "overwrite existing output files without asking")

	rfA := fs.String("rf-a", "", "channel A output sink (\"-\" for stdout)")
	rfB := fs.String("rf-b", "", "channel B output sink (\"-\" for stdout)")
	aux := fs.String("aux", "", "AUX byte stream sink")
	raw := fs.String("raw", "", "raw packed-word sink")
	pad := fs.Bool("pad", false, "shift samples into high bits")
	level := fs.Bool("level", false, "emit peak-level stats")

	suppressClipA := fs.Bool("suppress-clip-a", false, "suppress channel A clip messages")
	suppressClipB := fs.Bool("suppress-clip-b", false, "suppress channel B clip messages")

	resampleA := fs.Int("resample-rf-a", 40000, "channel A output rate in Hz; 40000 disables resampling")
	resampleB := fs.Int("resample-rf-b", 40000, "channel B output rate in Hz; 40000 disables resampling")
	resampleQA := fs.Int("resample-rf-quality-a", 2, "channel A resample quality 0..4")
	resampleQB := fs.Int("resample-rf-quality-b", 2, "channel B resample quality 0..4")
	gainA := fs.Float64("resample-rf-gain-a", 0, "channel A gain in dB")
	gainB := fs.Float64("resample-rf-gain-b", 0, "channel B gain in dB")

	bit8A := fs.Bool("8bit-rf-a", false, "reduce channel A to 8-bit")
	bit8B := fs.Bool("8bit-rf-b", false, "reduce channel B to 8-bit")

	rfFLAC := fs.Bool("rf-flac", false, "enable FLAC encoding for RF outputs")
	rfFLACBits := fs.String("rf-flac-bits", "auto", "FLAC bit depth: auto, 12, or 16")
	rfFLACLevel := fs.Int("rf-flac-level", 5, "FLAC compression level 0..8")
	rfFLACThreads := fs.Int("rf-flac-threads", 0, "FLAC encoder threads per file; 0 = auto")

	audio4ch := fs.String("audio-4ch", "", "4-channel audio sink")
	audio2ch12 := fs.String("audio-2ch-12", "", "channels 1-2 audio sink")
	audio2ch34 := fs.String("audio-2ch-34", "", "channels 3-4 audio sink")
	audio1ch1 := fs.String("audio-1ch-1", "", "channel 1 audio sink")
	audio1ch2 := fs.String("audio-1ch-2", "", "channel 2 audio sink")
	audio1ch3 := fs.String("audio-1ch-3", "", "channel 3 audio sink")
	audio1ch4 := fs.String("audio-1ch-4", "", "channel 4 audio sink")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, err
	}

	cfg := &config.Config{
		Logger:    log,
		Device:    *device,
		Overwrite: *overwrite,
		AuxSink:   *aux,
		RawSink:   *raw,
		Pad:       *pad,
		Level:     *level,
		Audio: config.AudioSinks{
			FourCh:  *audio4ch,
			TwoCh12: *audio2ch12,
			TwoCh34: *audio2ch34,
			OneCh:   [4]string{*audio1ch1, *audio1ch2, *audio1ch3, *audio1ch4},
		},
	}

	if *countStr != "" {
		n, err := strconv.ParseUint(*countStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid -count %q: %w", *countStr, err)
		}
		cfg.TargetSamples = n
	} else if *timeStr != "" {
		d, err := parseDuration(*timeStr)
		if err != nil {
			return nil, err
		}
		cfg.TargetSamples = uint64(d.Seconds() * 40000)
	}

	if *rfA != "" {
		cfg.RFA = &config.RFChannel{
			Sink: *rfA, SuppressClip: *suppressClipA,
			ResampleRateHz: *resampleA, ResampleQuality: *resampleQA, ResampleGainDB: *gainA,
			Reduce8Bit: *bit8A, FLAC: *rfFLAC, FLACBitsOpt: *rfFLACBits,
			FLACLevel: *rfFLACLevel, FLACThreads: *rfFLACThreads,
		}
	}
	if *rfB != "" {
		cfg.RFB = &config.RFChannel{
			Sink: *rfB, SuppressClip: *suppressClipB,
			ResampleRateHz: *resampleB, ResampleQuality: *resampleQB, ResampleGainDB: *gainB,
			Reduce8Bit: *bit8B, FLAC: *rfFLAC, FLACBitsOpt: *rfFLACBits,
			FLACLevel: *rfFLACLevel, FLACThreads: *rfFLACThreads,
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration accepts spec.md §6.4's "s", "m:s", "h:m:s" forms.
func parseDuration(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	var h, m, sec int
	var err error
	switch len(parts) {
	case 1:
		sec, err = strconv.Atoi(parts[0])
	case 2:
		m, err = strconv.Atoi(parts[0])
		if err == nil {
			sec, err = strconv.Atoi(parts[1])
		}
	case 3:
		h, err = strconv.Atoi(parts[0])
		if err == nil {
			m, err = strconv.Atoi(parts[1])
		}
		if err == nil {
			sec, err = strconv.Atoi(parts[2])
		}
	default:
		return 0, fmt.Errorf("invalid -time %q", s)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid -time %q: %w", s, err)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}
