package xic

import (
	"github.com/524D/mzxic/internal/binarray"
)

// Encode builds the result for a signal. With base64 set, both sequences
// are packed as little-endian 64-bit floats and base64 encoded.
func Encode(times, intensities []float64, base64 bool) Result {
	if !base64 {
		return Raw{Times: times, Intensities: intensities}
	}
	return Encoded{
		Times:       binarray.EncodeBase64(times),
		Intensities: binarray.EncodeBase64(intensities),
	}
}

// Decode reverses Encode
func (e Encoded) Decode() (Raw, error) {
	times, err := binarray.DecodeBase64(e.Times)
	if err != nil {
		return Raw{}, err
	}
	intensities, err := binarray.DecodeBase64(e.Intensities)
	if err != nil {
		return Raw{}, err
	}
	return Raw{Times: times, Intensities: intensities}, nil
}
