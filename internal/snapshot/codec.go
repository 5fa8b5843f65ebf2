package snapshot

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

type wireSnapshot struct {
	Columns []Column `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// taggedFloat carries a float the column kind alone cannot restore: NaN and
// the infinities, which JSON has no number for, and floats in mixed columns,
// which would otherwise come back as integers.
type taggedFloat struct {
	F string `json:"$f"`
}

const floatTag = "$f"

// Marshal encodes a snapshot to JSON, keeping enough type information for
// Unmarshal to restore every cell to its original Go type.
func Marshal(s *Snapshot) ([]byte, error) {
	if s == nil {
		s = Empty()
	}
	data, err := json.Marshal(wireSnapshot{Columns: s.Columns, Rows: encodeRows(s)})
	if err != nil {
		return nil, fmt.Errorf("snapshot: marshal: %w", err)
	}
	return data, nil
}

// Unmarshal decodes data produced by Marshal.
func Unmarshal(data []byte) (*Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var wire wireSnapshot
	if err := dec.Decode(&wire); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal: %w", err)
	}

	s := &Snapshot{Columns: wire.Columns, Rows: wire.Rows}
	if s.Columns == nil {
		s.Columns = []Column{}
	}
	if s.Rows == nil {
		s.Rows = [][]any{}
	}
	for _, row := range s.Rows {
		for i := range row {
			if i >= len(s.Columns) {
				break
			}
			v, err := decodeCell(row[i], s.Columns[i].Kind)
			if err != nil {
				return nil, fmt.Errorf("snapshot: unmarshal column %q: %w", s.Columns[i].Name, err)
			}
			row[i] = v
		}
	}
	return s, nil
}

// encodeRows returns s.Rows with floats that need it replaced by taggedFloat.
// Rows without such cells are shared with s.
func encodeRows(s *Snapshot) [][]any {
	var out [][]any
	for r, row := range s.Rows {
		var enc []any
		for i, v := range row {
			kind := KindUnknown
			if i < len(s.Columns) {
				kind = s.Columns[i].Kind
			}
			tagged, ok := tagFloat(v, kind)
			if !ok {
				continue
			}
			if enc == nil {
				enc = slices.Clone(row)
			}
			enc[i] = tagged
		}
		if enc == nil {
			continue
		}
		if out == nil {
			out = slices.Clone(s.Rows)
		}
		out[r] = enc
	}
	if out == nil {
		return s.Rows
	}
	return out
}

func tagFloat(v any, kind Kind) (taggedFloat, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	default:
		return taggedFloat{}, false
	}
	if kind == KindFloat && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return taggedFloat{}, false
	}
	return taggedFloat{F: strconv.FormatFloat(f, 'g', -1, 64)}, true
}

func decodeCell(v any, kind Kind) (any, error) {
	if v == nil {
		return nil, nil
	}
	if m, ok := v.(map[string]any); ok && len(m) == 1 {
		if str, ok := m[floatTag].(string); ok {
			return strconv.ParseFloat(str, 64)
		}
	}
	switch kind {
	case KindTime:
		if str, ok := v.(string); ok {
			return time.Parse(time.RFC3339Nano, str)
		}
	case KindInt:
		if n, ok := v.(json.Number); ok {
			return n.Int64()
		}
	case KindFloat:
		if n, ok := v.(json.Number); ok {
			return n.Float64()
		}
	case KindBytes:
		if str, ok := v.(string); ok {
			return base64.StdEncoding.DecodeString(str)
		}
	}
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		return n.Float64()
	}
	return v, nil
}

// Compress marshals and gzips a snapshot.
func Compress(s *Snapshot) ([]byte, error) {
	data, err := Marshal(s)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		_ = zw.Close()
		return nil, fmt.Errorf("snapshot: compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("snapshot: compress: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func Decompress(payload []byte) (*Snapshot, error) {
	zr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("snapshot: decompress: %w", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("snapshot: decompress: %w", err)
	}
	return Unmarshal(data)
}
