// Package binarray converts numeric arrays to and from the packed binary
// representation used by mzML binaryDataArray elements and by base64 XIC
// output: little-endian IEEE-754 values, optionally zlib compressed, base64
// encoded.
package binarray

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/klauspost/compress/zlib"
)

// Format describes how an array is packed
type Format struct {
	Bits64 bool // 64-bit floats, otherwise 32-bit
	Zlib   bool // zlib compression applied before base64
}

// Float64 is the format of base64 XIC output: uncompressed 64-bit floats
var Float64 = Format{Bits64: true}

var (
	// ErrLength means the decoded data is not a whole number of values
	ErrLength = errors.New("binarray: data length is not a multiple of the value size")
)

// Pack packs values as little-endian 64-bit floats
func Pack(values []float64) []byte {
	buf := make([]byte, 0, len(values)*8)
	for _, v := range values {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
	}
	return buf
}

// Unpack is the inverse of Pack
func Unpack(data []byte) ([]float64, error) {
	if len(data)%8 != 0 {
		return nil, ErrLength
	}
	cnt := len(data) / 8
	values := make([]float64, cnt)
	for i := 0; i < cnt; i++ {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return values, nil
}

// EncodeBase64 packs values as 64-bit little-endian floats and returns
// the standard (padded) base64 encoding
func EncodeBase64(values []float64) string {
	return base64.StdEncoding.EncodeToString(Pack(values))
}

// DecodeBase64 is the inverse of EncodeBase64
func DecodeBase64(s string) ([]float64, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return Unpack(data)
}

// Encode packs values according to f and returns the base64 string
func Encode(values []float64, f Format) (string, error) {
	var raw []byte
	if f.Bits64 {
		raw = Pack(values)
	} else {
		raw = make([]byte, 0, len(values)*4)
		for _, v := range values {
			raw = binary.LittleEndian.AppendUint32(raw, math.Float32bits(float32(v)))
		}
	}
	if f.Zlib {
		var b bytes.Buffer
		z := zlib.NewWriter(&b)
		if _, err := z.Write(raw); err != nil {
			z.Close()
			return "", err
		}
		// The zlib writer must be closed before reading b, otherwise the stream is incomplete
		if err := z.Close(); err != nil {
			return "", err
		}
		raw = b.Bytes()
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decode decodes a base64 string packed according to f
func Decode(s string, f Format) ([]float64, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if f.Zlib {
		z, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer z.Close()
		d, err := io.ReadAll(z)
		if err != nil {
			return nil, err
		}
		data = d
	}
	if f.Bits64 {
		return Unpack(data)
	}
	if len(data)%4 != 0 {
		return nil, ErrLength
	}
	cnt := len(data) / 4
	values := make([]float64, cnt)
	for i := 0; i < cnt; i++ {
		values[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
	}
	return values, nil
}
