package pool

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// tensorMeta is one entry of a safetensors header.
type tensorMeta struct {
	Dtype       string `json:"dtype"`
	Shape       []int  `json:"shape"`
	DataOffsets [2]int `json:"data_offsets"`
}

// LoadParameters fills the given parameters from a safetensors file,
// matching tensors by name. Every parameter must be present in the file with
// dtype F32 and the exact shape; extra tensors in the file are ignored.
func LoadParameters(path string, params []Parameter) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	if len(data) < 8 {
		return fmt.Errorf("pool: safetensors file too small: %d bytes", len(data))
	}

	// 8-byte LE header length, then a JSON map of tensor name → metadata.
	headerLen := binary.LittleEndian.Uint64(data[:8])
	if uint64(len(data)) < 8+headerLen {
		return fmt.Errorf("pool: safetensors header length %d exceeds file size", headerLen)
	}
	var header map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+headerLen], &header); err != nil {
		return fmt.Errorf("pool: failed to parse safetensors header: %w", err)
	}
	payload := data[8+headerLen:]

	for _, p := range params {
		raw, ok := header[p.Name]
		if !ok {
			return fmt.Errorf("pool: tensor %q not found in %s", p.Name, path)
		}
		var meta tensorMeta
		if err := json.Unmarshal(raw, &meta); err != nil {
			return fmt.Errorf("pool: tensor %q: bad metadata: %w", p.Name, err)
		}
		if meta.Dtype != "F32" {
			return fmt.Errorf("pool: tensor %q: expected dtype F32, got %s", p.Name, meta.Dtype)
		}
		if !shapeEqual(meta.Shape, p.Shape) {
			return fmt.Errorf("pool: tensor %q: shape %v does not match expected %v",
				p.Name, meta.Shape, p.Shape)
		}
		start, end := meta.DataOffsets[0], meta.DataOffsets[1]
		if end-start != p.numel()*4 || start < 0 || end > len(payload) {
			return fmt.Errorf("pool: tensor %q: data range [%d:%d] invalid for %d elements",
				p.Name, start, end, p.numel())
		}
		for i := range p.Data {
			bits := binary.LittleEndian.Uint32(payload[start+i*4 : start+i*4+4])
			p.Data[i] = math.Float32frombits(bits)
		}
	}
	return nil
}

// SaveParameters writes the given parameters to a safetensors file.
func SaveParameters(path string, params []Parameter) error {
	header := make(map[string]tensorMeta, len(params))
	offset := 0
	for _, p := range params {
		n := p.numel() * 4
		header[p.Name] = tensorMeta{
			Dtype:       "F32",
			Shape:       p.Shape,
			DataOffsets: [2]int{offset, offset + n},
		}
		offset += n
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("pool: %w", err)
	}

	buf := make([]byte, 0, 8+len(headerJSON)+offset)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(headerJSON)))
	buf = append(buf, headerJSON...)
	for _, p := range params {
		for _, v := range p.Data {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
		}
	}

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	return nil
}

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
