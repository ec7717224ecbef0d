package audio

import "math"

// Int16ToFloat32 scales signed 16-bit samples into [-1, 1).
func Int16ToFloat32(src []int16) []float32 {
	const scale = 1.0 / 32768.0
	out := make([]float32, len(src))
	for i, s := range src {
		out[i] = float32(float64(s) * scale)
	}
	return out
}

// Float32ToPCM16 clips and scales samples to signed 16-bit.
func Float32ToPCM16(src []float32) []int16 {
	if len(src) == 0 {
		return nil
	}
	dst := make([]int16, len(src))
	for i, sample := range src {
		v := float64(sample)
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		dst[i] = int16(math.Round(v * 32767))
	}
	return dst
}

// Resample converts src from srcRate to dstRate with linear interpolation.
func Resample(src []float32, srcRate, dstRate int) []float32 {
	if len(src) == 0 {
		return nil
	}
	if srcRate <= 0 {
		srcRate = dstRate
	}
	if dstRate <= 0 || srcRate == dstRate {
		out := make([]float32, len(src))
		copy(out, src)
		return out
	}

	ratio := float64(srcRate) / float64(dstRate)
	targetLen := int(math.Ceil(float64(len(src)) / ratio))
	if targetLen <= 0 {
		targetLen = 1
	}

	out := make([]float32, targetLen)
	for i := 0; i < targetLen; i++ {
		srcPos := float64(i) * ratio
		idx := int(srcPos)
		frac := float32(srcPos - float64(idx))
		if idx >= len(src)-1 {
			out[i] = src[len(src)-1]
			continue
		}
		val := src[idx]
		out[i] = val + (src[idx+1]-val)*frac
	}
	return out
}

func downmix(data []int, channels int, scale float64) []float32 {
	if channels <= 1 {
		out := make([]float32, len(data))
		for i, v := range data {
			out[i] = float32(float64(v) / scale)
		}
		return out
	}
	frames := len(data) / channels
	out := make([]float32, frames)
	for f := 0; f < frames; f++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(data[f*channels+c])
		}
		out[f] = float32(sum / float64(channels) / scale)
	}
	return out
}
