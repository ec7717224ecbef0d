//go:build !cgo

package silk

import "fmt"

const SampleRate = 24000

// Decode needs the cgo decoder.
func Decode(data []byte) ([]int16, error) {
	return nil, fmt.Errorf("silk decoding unavailable: built without cgo")
}
