/*
NAME
  misrc-extract - offline sample extraction from a file or stream of
  packed ADC words.

AUTHORS
  MISRC Go port contributors

LICENSE
  Copyright (C) 2024-2025 vrunk11, stefan_o and contributors.

  This program is free software: you can redistribute it and/or modify
  it under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.
*/

// Command misrc-extract runs the extraction kernels over stdin or a
// file of already-captured packed words, writing the same A/B/aux/pad
// variants the capture pipeline would, plus the single-channel 16-bit
// mode (spec.md §6.4, §9's open question).
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/stefan-olt/misrc-go/capture/config"
	"github.com/stefan-olt/misrc-go/codec/extract"
)

const progName = "misrc-extract"

// readChunkWords bounds how many input words are processed per
// extraction-kernel call, matching the capture pipeline's chunking
// without depending on its ring buffer.
const readChunkWords = 1 << 18

func main() {
	os.Exit(run())
}

func run() int {
	in := flag.String("in", "-", "input file of packed words (\"-\" for stdin)")
	rfA := flag.String("rf-a", "", "channel A output sink (\"-\" for stdout)")
	rfB := flag.String("rf-b", "", "channel B output sink")
	aux := flag.String("aux", "", "AUX byte stream sink")
	pad := flag.Bool("pad", false, "shift samples into high bits")
	level := flag.Bool("level", false, "emit peak-level stats")
	single := flag.Bool("single", false, "input is 16-bit single-channel words, not 32-bit packed words")
	flag.Parse()

	if err := extractMain(*in, *rfA, *rfB, *aux, *pad, *level, *single); err != nil {
		fmt.Fprintln(os.Stderr, progName+":", err)
		if os.IsNotExist(err) {
			return config.ExitFileError
		}
		return config.ExitInvalidSettings
	}
	return config.ExitOK
}

func extractMain(inPath, rfAPath, rfBPath, auxPath string, pad, level, single bool) error {
	src, err := openRead(inPath)
	if err != nil {
		return err
	}
	defer src.Close()

	var outA, outB, auxOut io.WriteCloser
	if rfAPath != "" {
		if outA, err = openWrite(rfAPath); err != nil {
			return err
		}
		defer outA.Close()
	}
	if rfBPath != "" {
		if outB, err = openWrite(rfBPath); err != nil {
			return err
		}
		defer outB.Close()
	}
	if auxPath != "" {
		if auxOut, err = openWrite(auxPath); err != nil {
			return err
		}
		defer auxOut.Close()
	}

	if single {
		return extractSingleLoop(src, outA, auxOut, pad, level)
	}
	return extractPackedLoop(src, outA, outB, auxOut, pad, level)
}

func openRead(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(bufio.NewReader(os.Stdin)), nil
	}
	return os.Open(path)
}

func openWrite(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// extractPackedLoop runs the 32-bit-word kernel over src in bounded
// chunks, writing 16-bit samples and an optional clip/peak summary.
func extractPackedLoop(src io.Reader, outA, outB, auxOut io.WriteCloser, pad, level bool) error {
	r := bufio.NewReaderSize(src, readChunkWords*4)
	var clip [2]uint64
	var peak [2]uint16
	var total uint64

	opts := extract.Options{Pad: pad, Peak: level}
	if outA != nil {
		opts.Channels |= extract.ChanA
	}
	if outB != nil {
		opts.Channels |= extract.ChanB
	}

	rawBuf := make([]byte, readChunkWords*4)
	words := make([]uint32, readChunkWords)
	sampA := make([]int16, readChunkWords)
	sampB := make([]int16, readChunkWords)
	auxBuf := make([]uint8, readChunkWords)

	for {
		n, err := io.ReadFull(r, rawBuf)
		if n == 0 {
			if err == io.EOF {
				break
			}
			if err != nil && err != io.ErrUnexpectedEOF {
				return err
			}
		}
		n -= n % 4
		if n == 0 {
			break
		}
		nWords := n / 4
		for i := 0; i < nWords; i++ {
			words[i] = uint32(rawBuf[i*4]) | uint32(rawBuf[i*4+1])<<8 | uint32(rawBuf[i*4+2])<<16 | uint32(rawBuf[i*4+3])<<24
		}

		var auxSlice []uint8
		if auxOut != nil {
			auxSlice = auxBuf[:nWords]
		}
		extract.Extract16(words[:nWords], opts, &clip, auxSlice, sampA[:nWords], sampB[:nWords], &peak)

		if outA != nil {
			if err := writeInt16LE(outA, sampA[:nWords]); err != nil {
				return err
			}
		}
		if outB != nil {
			if err := writeInt16LE(outB, sampB[:nWords]); err != nil {
				return err
			}
		}
		if auxOut != nil {
			if _, err := auxOut.Write(auxBuf[:nWords]); err != nil {
				return err
			}
		}

		total += uint64(nWords)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
	}

	reportStats(total, clip, peak, level)
	return nil
}

// extractSingleLoop runs the 16-bit single-channel kernel (spec.md
// §9's open question), used only by this command.
func extractSingleLoop(src io.Reader, outA, auxOut io.WriteCloser, pad, level bool) error {
	r := bufio.NewReaderSize(src, readChunkWords*2)
	var clip uint64
	var peak uint16
	var total uint64

	rawBuf := make([]byte, readChunkWords*2)
	words := make([]uint16, readChunkWords)
	samp := make([]int16, readChunkWords)
	auxBuf := make([]uint8, readChunkWords)

	for {
		n, err := io.ReadFull(r, rawBuf)
		if n == 0 {
			if err == io.EOF {
				break
			}
			if err != nil && err != io.ErrUnexpectedEOF {
				return err
			}
		}
		n -= n % 2
		if n == 0 {
			break
		}
		nWords := n / 2
		for i := 0; i < nWords; i++ {
			words[i] = uint16(rawBuf[i*2]) | uint16(rawBuf[i*2+1])<<8
		}

		var auxSlice []uint8
		if auxOut != nil {
			auxSlice = auxBuf[:nWords]
		}
		var outSlice []int16
		if outA != nil {
			outSlice = samp[:nWords]
		}
		extract.ExtractSingle(words[:nWords], pad, level, &clip, auxSlice, outSlice, &peak)

		if outA != nil {
			if err := writeInt16LE(outA, samp[:nWords]); err != nil {
				return err
			}
		}
		if auxOut != nil {
			if _, err := auxOut.Write(auxBuf[:nWords]); err != nil {
				return err
			}
		}

		total += uint64(nWords)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
	}

	reportStats(total, [2]uint64{clip, 0}, [2]uint16{peak, 0}, level)
	return nil
}

func writeInt16LE(w io.Writer, samples []int16) error {
	buf := make([]byte, len(samples)*2)
	for i, v := range samples {
		buf[i*2] = byte(v)
		buf[i*2+1] = byte(v >> 8)
	}
	_, err := w.Write(buf)
	return err
}

func reportStats(total uint64, clip [2]uint64, peak [2]uint16, level bool) {
	fmt.Fprintf(os.Stderr, "%s: %d samples, clip-a=%d clip-b=%d\n", progName, total, clip[0], clip[1])
	if level {
		fmt.Fprintf(os.Stderr, "%s: peak-a=%d peak-b=%d\n", progName, peak[0], peak[1])
	}
}
