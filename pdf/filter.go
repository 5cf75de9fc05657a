package pdf

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// decodeStream decodes data of internal container streams (object streams and
// cross-reference streams). Only FlateDecode with optional PNG/TIFF predictors
// is supported, this is what producers use for these containers in practice.
func decodeStream(s *Stream) ([]byte, error) {
	var filters []Name
	switch f := s.Dict.Get("Filter").(type) {
	case nil:
	case Name:
		filters = []Name{f}
	case Array:
		for _, o := range f {
			if n, ok := o.(Name); ok {
				filters = append(filters, n)
			}
		}
	default:
		return nil, fmt.Errorf("unexpected filter specification %T", f)
	}

	var params []Dict
	switch p := s.Dict.Get("DecodeParms").(type) {
	case Dict:
		params = []Dict{p}
	case Array:
		for _, o := range p {
			d, _ := o.(Dict)
			params = append(params, d)
		}
	}

	data := s.Data
	for i, f := range filters {
		if f != "FlateDecode" && f != "Fl" {
			return nil, fmt.Errorf("unsupported filter /%s", f)
		}
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("flate: %w", err)
		}
		out, err := io.ReadAll(r)
		r.Close()
		if err != nil && len(out) == 0 {
			return nil, fmt.Errorf("flate: %w", err)
		}
		data = out
		if i < len(params) && params[i] != nil {
			if data, err = unpredict(data, params[i]); err != nil {
				return nil, err
			}
		}
	}
	return data, nil
}

// unpredict reverses PNG predictors (10-15) and TIFF predictor 2 for 8 bit
// components.
func unpredict(data []byte, parms Dict) ([]byte, error) {
	predictor, _ := parms.Int("Predictor")
	if predictor <= 1 {
		return data, nil
	}
	columns, ok := parms.Int("Columns")
	if !ok || columns <= 0 {
		columns = 1
	}
	colors, ok := parms.Int("Colors")
	if !ok || colors <= 0 {
		colors = 1
	}
	bpc, ok := parms.Int("BitsPerComponent")
	if !ok || bpc <= 0 {
		bpc = 8
	}
	if columns > len(data) || colors > 32 || bpc > 16 {
		return nil, fmt.Errorf("predictor parameters do not fit %d bytes of data", len(data))
	}
	bpp := (colors*bpc + 7) / 8
	rowLen := (columns*colors*bpc + 7) / 8

	if predictor == 2 {
		if bpc != 8 {
			return nil, fmt.Errorf("unsupported TIFF predictor with %d bits per component", bpc)
		}
		out := append([]byte(nil), data...)
		for row := 0; row+rowLen <= len(out); row += rowLen {
			for i := bpp; i < rowLen; i++ {
				out[row+i] += out[row+i-bpp]
			}
		}
		return out, nil
	}

	out := make([]byte, 0, len(data))
	prev := make([]byte, rowLen)
	for pos := 0; pos+1+rowLen <= len(data); pos += rowLen + 1 {
		kind := data[pos]
		cur := append([]byte(nil), data[pos+1:pos+1+rowLen]...)
		for i := range cur {
			var left, up, upLeft byte
			if i >= bpp {
				left = cur[i-bpp]
				upLeft = prev[i-bpp]
			}
			up = prev[i]
			switch kind {
			case 0:
			case 1:
				cur[i] += left
			case 2:
				cur[i] += up
			case 3:
				cur[i] += byte((int(left) + int(up)) / 2)
			case 4:
				cur[i] += paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("unknown PNG filter type %d", kind)
			}
		}
		out = append(out, cur...)
		prev = cur
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	}
	return c
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Compress returns stream with data flate compressed.
func Compress(dict Dict, data []byte) *Stream {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, _ = w.Write(data)
	_ = w.Close()
	d := dict.Clone()
	d["Filter"] = Name("FlateDecode")
	return &Stream{Dict: d, Data: buf.Bytes()}
}
