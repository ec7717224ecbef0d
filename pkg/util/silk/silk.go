//go:build cgo

// Package silk decodes SILK voice notes as produced by messaging apps.
package silk

import (
	"encoding/binary"
	"fmt"

	"github.com/sjzar/go-silk"
)

// SampleRate is the rate go-silk decodes voice notes at.
const SampleRate = 24000

// Decode returns the note as mono 16-bit samples at SampleRate.
func Decode(data []byte) ([]int16, error) {
	dec := silk.SilkInit()
	defer dec.Close()

	raw := dec.Decode(data)
	switch {
	case len(raw) == 0:
		return nil, fmt.Errorf("silk: no audio decoded from %d bytes", len(data))
	case len(raw)%2 != 0:
		return nil, fmt.Errorf("silk: odd pcm length %d", len(raw))
	}

	pcm := make([]int16, 0, len(raw)/2)
	for off := 0; off < len(raw); off += 2 {
		pcm = append(pcm, int16(binary.LittleEndian.Uint16(raw[off:off+2])))
	}
	return pcm, nil
}
