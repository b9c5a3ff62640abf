// Package checkpoint reads and writes model parameters in the safetensors
// container format: an 8-byte little-endian header length, a JSON header that
// maps tensor names to dtype/shape/byte ranges, then the raw tensor bytes.
//
// Checkpoints exported from PyTorch keep their state_dict key names, so the
// models in this module load them without any renaming.
package checkpoint

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/x448/float16"

	"neurod/internal/tensor"
)

// Supported element types.
const (
	DTypeF64  = "F64"
	DTypeF32  = "F32"
	DTypeF16  = "F16"
	DTypeBF16 = "BF16"
	DTypeI64  = "I64"
	DTypeI32  = "I32"
)

const metadataKey = "__metadata__"

// maxHeaderBytes bounds the JSON header so a corrupt length prefix cannot make
// us allocate gigabytes.
const maxHeaderBytes = 100 << 20

type headerEntry struct {
	DType       string   `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// File is a decoded checkpoint.
type File struct {
	Tensors  StateDict
	Metadata map[string]string
	// DTypes records the on-disk element type of every tensor.
	DTypes map[string]string
	// SHA256 is the hex digest of the raw file bytes.
	SHA256 string
	Size   int64
}

// Open reads and decodes the checkpoint at path.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// ReadMetadata returns the __metadata__ map of the checkpoint at path without
// reading tensor data.
func ReadMetadata(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()
	var prefix [8]byte
	if _, err := io.ReadFull(f, prefix[:]); err != nil {
		return nil, fmt.Errorf("read header length: %w", err)
	}
	n := binary.LittleEndian.Uint64(prefix[:])
	if n > maxHeaderBytes {
		return nil, fmt.Errorf("checkpoint header length %d out of range", n)
	}
	header := make([]byte, n)
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	var fields struct {
		Metadata map[string]string `json:"__metadata__"`
	}
	if err := json.Unmarshal(header, &fields); err != nil {
		return nil, fmt.Errorf("checkpoint header: %w", err)
	}
	if fields.Metadata == nil {
		fields.Metadata = map[string]string{}
	}
	return fields.Metadata, nil
}

// Decode reads a whole safetensors stream.
func Decode(r io.Reader) (*File, error) {
	h := sha256.New()
	raw, err := io.ReadAll(io.TeeReader(r, h))
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	if len(raw) < 8 {
		return nil, fmt.Errorf("checkpoint too short (%d bytes)", len(raw))
	}
	n := binary.LittleEndian.Uint64(raw[:8])
	if n > maxHeaderBytes || int64(n) > int64(len(raw)-8) {
		return nil, fmt.Errorf("checkpoint header length %d out of range", n)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw[8:8+n], &fields); err != nil {
		return nil, fmt.Errorf("checkpoint header: %w", err)
	}
	body := raw[8+n:]
	out := &File{
		Tensors:  make(StateDict, len(fields)),
		Metadata: map[string]string{},
		DTypes:   make(map[string]string, len(fields)),
		SHA256:   hex.EncodeToString(h.Sum(nil)),
		Size:     int64(len(raw)),
	}
	for name, msg := range fields {
		if name == metadataKey {
			if err := json.Unmarshal(msg, &out.Metadata); err != nil {
				return nil, fmt.Errorf("checkpoint metadata: %w", err)
			}
			continue
		}
		var e headerEntry
		if err := json.Unmarshal(msg, &e); err != nil {
			return nil, fmt.Errorf("checkpoint entry %q: %w", name, err)
		}
		t, err := decodeTensor(e, body)
		if err != nil {
			return nil, fmt.Errorf("checkpoint entry %q: %w", name, err)
		}
		out.Tensors[name] = t
		out.DTypes[name] = e.DType
	}
	return out, nil
}

func elemSize(dtype string) (int, error) {
	switch dtype {
	case DTypeF64, DTypeI64:
		return 8, nil
	case DTypeF32, DTypeI32:
		return 4, nil
	case DTypeF16, DTypeBF16:
		return 2, nil
	default:
		return 0, fmt.Errorf("unsupported dtype %q", dtype)
	}
}

func decodeTensor(e headerEntry, body []byte) (*tensor.Tensor, error) {
	size, err := elemSize(e.DType)
	if err != nil {
		return nil, err
	}
	begin, end := e.DataOffsets[0], e.DataOffsets[1]
	if begin < 0 || end < begin || end > int64(len(body)) {
		return nil, fmt.Errorf("data offsets [%d,%d] outside %d byte body", begin, end, len(body))
	}
	for _, d := range e.Shape {
		if d < 0 {
			return nil, fmt.Errorf("negative dimension in shape %v", e.Shape)
		}
	}
	n := tensor.Numel(e.Shape)
	if int64(n*size) != end-begin {
		return nil, fmt.Errorf("shape %v with dtype %s needs %d bytes, have %d", e.Shape, e.DType, n*size, end-begin)
	}
	buf := body[begin:end]
	data := make([]float64, n)
	le := binary.LittleEndian
	for i := range data {
		b := buf[i*size:]
		switch e.DType {
		case DTypeF64:
			data[i] = math.Float64frombits(le.Uint64(b))
		case DTypeF32:
			data[i] = float64(math.Float32frombits(le.Uint32(b)))
		case DTypeF16:
			data[i] = float64(float16.Frombits(le.Uint16(b)).Float32())
		case DTypeBF16:
			data[i] = float64(math.Float32frombits(uint32(le.Uint16(b)) << 16))
		case DTypeI64:
			data[i] = float64(int64(le.Uint64(b)))
		case DTypeI32:
			data[i] = float64(int32(le.Uint32(b)))
		}
	}
	return tensor.FromData(data, e.Shape...)
}

// Encode writes sd as a safetensors stream with every tensor stored as dtype
// (F64, F32 or F16). Keys are written in sorted order so output is stable.
func Encode(w io.Writer, sd StateDict, metadata map[string]string, dtype string) error {
	size, err := elemSize(dtype)
	if err != nil {
		return err
	}
	if dtype != DTypeF64 && dtype != DTypeF32 && dtype != DTypeF16 {
		return fmt.Errorf("cannot encode dtype %q", dtype)
	}
	names := sd.Names()
	header := make(map[string]any, len(names)+1)
	if len(metadata) > 0 {
		header[metadataKey] = metadata
	}
	var body bytes.Buffer
	le := binary.LittleEndian
	var scratch [8]byte
	for _, name := range names {
		t := sd[name]
		begin := int64(body.Len())
		for _, v := range t.Data {
			switch dtype {
			case DTypeF64:
				le.PutUint64(scratch[:], math.Float64bits(v))
			case DTypeF32:
				le.PutUint32(scratch[:], math.Float32bits(float32(v)))
			case DTypeF16:
				le.PutUint16(scratch[:], float16.Fromfloat32(float32(v)).Bits())
			}
			body.Write(scratch[:size])
		}
		shape := t.Shape
		if shape == nil {
			shape = []int{}
		}
		header[name] = headerEntry{DType: dtype, Shape: shape, DataOffsets: [2]int64{begin, int64(body.Len())}}
	}
	hb, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	// Pad the header with spaces so tensor data starts 8-byte aligned.
	for len(hb)%8 != 0 {
		hb = append(hb, ' ')
	}
	le.PutUint64(scratch[:], uint64(len(hb)))
	if _, err := w.Write(scratch[:8]); err != nil {
		return err
	}
	if _, err := w.Write(hb); err != nil {
		return err
	}
	_, err = body.WriteTo(w)
	return err
}

// Save writes sd to path as F32.
func Save(path string, sd StateDict, metadata map[string]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}
	if err := Encode(f, sd, metadata, DTypeF32); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// sortedKeys returns map keys in lexical order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
