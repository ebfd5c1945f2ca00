package value

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"
)

// ErrNotEncodable marks values that have no canonical tagged encoding.
var ErrNotEncodable = errors.New("value has no canonical encoding")

// Encode converts v into its tagged form {"type":..., "value":...} as a
// plain Go tree ready for MarshalCanonical.
//
// Returns an error wrapping ErrNotEncodable for Unsupported values,
// non-finite floats, text that is not valid UTF-8 and references that were
// never resolved to a path.
func Encode(v Value) (map[string]any, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil value", ErrNotEncodable)
	}
	raw, err := encodeRaw(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", v.Type(), err)
	}
	return map[string]any{
		"type":  string(v.Type()),
		"value": raw,
	}, nil
}

func encodeRaw(v Value) (any, error) {
	switch val := v.(type) {
	case String:
		return checkedText(string(val))
	case Content:
		return checkedText(string(val))
	case Bool:
		return bool(val), nil
	case Int32:
		return int64(val), nil
	case Int64:
		return int64(val), nil
	case Enum:
		return int64(val), nil
	case Float32:
		return checkedFloat32(float32(val))
	case Float64:
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			return nil, fmt.Errorf("%w: non-finite number", ErrNotEncodable)
		}
		return float64(val), nil
	case Vector2:
		return float32s(val.X, val.Y)
	case Vector3:
		return float32s(val.X, val.Y, val.Z)
	case Color3:
		return float32s(val.R, val.G, val.B)
	case Color3uint8:
		return []any{int64(val.R), int64(val.G), int64(val.B)}, nil
	case NumberRange:
		return float32s(val.Min, val.Max)
	case UDim:
		return encodeUDim(val)
	case UDim2:
		x, err := encodeUDim(val.X)
		if err != nil {
			return nil, err
		}
		y, err := encodeUDim(val.Y)
		if err != nil {
			return nil, err
		}
		return []any{x, y}, nil
	case CFrame:
		pos, err := float32s(val.Position.X, val.Position.Y, val.Position.Z)
		if err != nil {
			return nil, err
		}
		rows := make([]any, 3)
		for i, row := range val.Orientation {
			if rows[i], err = float32s(row.X, row.Y, row.Z); err != nil {
				return nil, err
			}
		}
		return map[string]any{"position": pos, "orientation": rows}, nil
	case BinaryString:
		return base64.StdEncoding.EncodeToString(val), nil
	case Ref:
		if val.IsNil() {
			return nil, nil
		}
		if val.Path == "" {
			return nil, fmt.Errorf("%w: reference %q not resolved to a path", ErrNotEncodable, val.ID)
		}
		return val.Path, nil
	case Unsupported:
		return nil, fmt.Errorf("%w: unrecognized type %q", ErrNotEncodable, val.TypeName)
	default:
		return nil, fmt.Errorf("%w: %T", ErrNotEncodable, v)
	}
}

func encodeUDim(u UDim) ([]any, error) {
	scale, err := checkedFloat32(u.Scale)
	if err != nil {
		return nil, err
	}
	return []any{scale, int64(u.Offset)}, nil
}

// checkedText rejects strings JSON cannot carry byte for byte.
func checkedText(s string) (any, error) {
	if !utf8.ValidString(s) {
		return nil, fmt.Errorf("%w: invalid UTF-8", ErrNotEncodable)
	}
	return s, nil
}

func checkedFloat32(f float32) (any, error) {
	if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
		return nil, fmt.Errorf("%w: non-finite number", ErrNotEncodable)
	}
	return f, nil
}

func float32s(fs ...float32) ([]any, error) {
	out := make([]any, len(fs))
	for i, f := range fs {
		v, err := checkedFloat32(f)
		if err != nil {
			return nil, fmt.Errorf("component %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// MarshalTagged is Encode followed by MarshalCanonical.
func MarshalTagged(v Value) ([]byte, error) {
	tagged, err := Encode(v)
	if err != nil {
		return nil, err
	}
	return MarshalCanonical(tagged)
}

// UnmarshalTagged parses one tagged value from JSON.
// Numbers are decoded exactly (json.Number), never through float64 first.
func UnmarshalTagged(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode tagged value: %w", err)
	}
	return Decode(raw)
}

// Decode converts a tagged tree back into a Value. It accepts the trees
// produced by encoding/json with UseNumber, by yaml.v3 and by CUE exports,
// so numbers may arrive as json.Number, int, int64, uint64 or float64.
//
// A tag outside KnownTypes yields an Unsupported value rather than an
// error, so callers can report and drop it like any other unencodable value.
func Decode(tagged map[string]any) (Value, error) {
	typeName, ok := tagged["type"].(string)
	if !ok {
		return nil, fmt.Errorf("tagged value: missing string \"type\"")
	}
	raw, ok := tagged["value"]
	if !ok {
		return nil, fmt.Errorf("tagged value %s: missing \"value\"", typeName)
	}
	v, err := decodeRaw(Type(typeName), raw)
	if err != nil {
		return nil, fmt.Errorf("tagged value %s: %w", typeName, err)
	}
	return v, nil
}

func decodeRaw(t Type, raw any) (Value, error) {
	switch t {
	case TypeString:
		s, err := toString(raw)
		return String(s), err
	case TypeContent:
		s, err := toString(raw)
		return Content(s), err
	case TypeBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", raw)
		}
		return Bool(b), nil
	case TypeInt32:
		n, err := toInt(raw, 32)
		return Int32(n), err
	case TypeInt64:
		n, err := toInt(raw, 64)
		return Int64(n), err
	case TypeEnum:
		n, err := toInt(raw, 64)
		if err == nil && (n < 0 || n > math.MaxUint32) {
			err = fmt.Errorf("enum value %d out of range", n)
		}
		return Enum(n), err
	case TypeFloat32:
		f, err := toFloat(raw, 32)
		return Float32(f), err
	case TypeFloat64:
		f, err := toFloat(raw, 64)
		return Float64(f), err
	case TypeVector2:
		fs, err := toFloat32s(raw, 2)
		if err != nil {
			return nil, err
		}
		return Vector2{fs[0], fs[1]}, nil
	case TypeVector3:
		fs, err := toFloat32s(raw, 3)
		if err != nil {
			return nil, err
		}
		return Vector3{fs[0], fs[1], fs[2]}, nil
	case TypeColor3:
		fs, err := toFloat32s(raw, 3)
		if err != nil {
			return nil, err
		}
		return Color3{fs[0], fs[1], fs[2]}, nil
	case TypeColor3uint8:
		items, err := toArray(raw, 3)
		if err != nil {
			return nil, err
		}
		var c [3]uint8
		for i, item := range items {
			n, err := toInt(item, 64)
			if err != nil {
				return nil, err
			}
			if n < 0 || n > 255 {
				return nil, fmt.Errorf("color component %d out of range", n)
			}
			c[i] = uint8(n)
		}
		return Color3uint8{c[0], c[1], c[2]}, nil
	case TypeNumberRange:
		fs, err := toFloat32s(raw, 2)
		if err != nil {
			return nil, err
		}
		return NumberRange{fs[0], fs[1]}, nil
	case TypeUDim:
		return decodeUDim(raw)
	case TypeUDim2:
		items, err := toArray(raw, 2)
		if err != nil {
			return nil, err
		}
		x, err := decodeUDim(items[0])
		if err != nil {
			return nil, err
		}
		y, err := decodeUDim(items[1])
		if err != nil {
			return nil, err
		}
		return UDim2{X: x, Y: y}, nil
	case TypeCFrame:
		return decodeCFrame(raw)
	case TypeBinaryString:
		s, err := toString(raw)
		if err != nil {
			return nil, err
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("base64: %w", err)
		}
		return BinaryString(b), nil
	case TypeRef:
		if raw == nil {
			return Ref{}, nil
		}
		s, err := toString(raw)
		if err != nil {
			return nil, err
		}
		return Ref{ID: s, Path: s}, nil
	default:
		return Unsupported{TypeName: string(t), Raw: raw}, nil
	}
}

func decodeUDim(raw any) (UDim, error) {
	items, err := toArray(raw, 2)
	if err != nil {
		return UDim{}, err
	}
	scale, err := toFloat(items[0], 32)
	if err != nil {
		return UDim{}, err
	}
	offset, err := toInt(items[1], 32)
	if err != nil {
		return UDim{}, err
	}
	return UDim{Scale: float32(scale), Offset: int32(offset)}, nil
}

func decodeCFrame(raw any) (CFrame, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return CFrame{}, fmt.Errorf("expected object, got %T", raw)
	}
	pos, err := toFloat32s(obj["position"], 3)
	if err != nil {
		return CFrame{}, fmt.Errorf("position: %w", err)
	}
	rows, err := toArray(obj["orientation"], 3)
	if err != nil {
		return CFrame{}, fmt.Errorf("orientation: %w", err)
	}
	cf := CFrame{Position: Vector3{pos[0], pos[1], pos[2]}}
	for i, row := range rows {
		fs, err := toFloat32s(row, 3)
		if err != nil {
			return CFrame{}, fmt.Errorf("orientation[%d]: %w", i, err)
		}
		cf.Orientation[i] = Vector3{fs[0], fs[1], fs[2]}
	}
	return cf, nil
}

func toString(raw any) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", raw)
	}
	return s, nil
}

func toArray(raw any, n int) ([]any, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected array, got %T", raw)
	}
	if len(items) != n {
		return nil, fmt.Errorf("expected %d elements, got %d", n, len(items))
	}
	return items, nil
}

func toFloat32s(raw any, n int) ([]float32, error) {
	items, err := toArray(raw, n)
	if err != nil {
		return nil, err
	}
	out := make([]float32, n)
	for i, item := range items {
		f, err := toFloat(item, 32)
		if err != nil {
			return nil, fmt.Errorf("component %d: %w", i, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}

// toFloat parses numbers at the requested precision. Textual numbers are
// parsed directly at bitSize so a float32 printed by formatFloat comes back
// with the identical bits.
func toFloat(raw any, bitSize int) (float64, error) {
	switch n := raw.(type) {
	case json.Number:
		return strconv.ParseFloat(string(n), bitSize)
	case float64:
		if bitSize == 32 {
			return float64(float32(n)), nil
		}
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected number, got %T", raw)
	}
}

func toInt(raw any, bitSize int) (int64, error) {
	var n int64
	switch v := raw.(type) {
	case json.Number:
		parsed, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("expected integer: %w", err)
		}
		n = parsed
	case int:
		n = int64(v)
	case int64:
		n = v
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("integer %d out of range", v)
		}
		n = int64(v)
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("expected integer, got %v", v)
		}
		n = int64(v)
	default:
		return 0, fmt.Errorf("expected integer, got %T", raw)
	}
	if bitSize == 32 && (n < math.MinInt32 || n > math.MaxInt32) {
		return 0, fmt.Errorf("integer %d out of int32 range", n)
	}
	return n, nil
}
