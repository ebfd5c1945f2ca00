package value

import (
	"bytes"
	"reflect"
)

// Type is the semantic type name used as the tag of an encoded value.
type Type string

const (
	TypeString       Type = "string"
	TypeBool         Type = "bool"
	TypeInt32        Type = "int32"
	TypeInt64        Type = "int64"
	TypeFloat32      Type = "float32"
	TypeFloat64      Type = "float64"
	TypeVector2      Type = "vector2"
	TypeVector3      Type = "vector3"
	TypeColor3       Type = "color3"
	TypeColor3uint8  Type = "color3uint8"
	TypeUDim         Type = "udim"
	TypeUDim2        Type = "udim2"
	TypeNumberRange  Type = "numberRange"
	TypeCFrame       Type = "cframe"
	TypeEnum         Type = "enum"
	TypeContent      Type = "content"
	TypeBinaryString Type = "binaryString"
	TypeRef          Type = "ref"
)

// KnownTypes lists every type with a canonical encoding, in tag order.
var KnownTypes = []Type{
	TypeBinaryString, TypeBool, TypeCFrame, TypeColor3, TypeColor3uint8,
	TypeContent, TypeEnum, TypeFloat32, TypeFloat64, TypeInt32, TypeInt64,
	TypeNumberRange, TypeRef, TypeString, TypeUDim, TypeUDim2, TypeVector2,
	TypeVector3,
}

// Value is a sealed interface over the property value types.
// Only the types declared in this package implement it.
type Value interface {
	Type() Type
	value() // sealed
}

// String is a plain text property.
type String string

// Bool is a boolean property.
type Bool bool

// Int32 is a 32-bit integer property.
type Int32 int32

// Int64 is a 64-bit integer property.
type Int64 int64

// Float32 is a single precision number property.
type Float32 float32

// Float64 is a double precision number property.
type Float64 float64

// Vector2 is a 2-component vector.
type Vector2 struct {
	X, Y float32
}

// Vector3 is a 3-component vector.
type Vector3 struct {
	X, Y, Z float32
}

// Color3 is a color with float components in [0,1].
type Color3 struct {
	R, G, B float32
}

// Color3uint8 is a color with byte components.
type Color3uint8 struct {
	R, G, B uint8
}

// UDim is a one-dimensional scale/offset pair.
type UDim struct {
	Scale  float32
	Offset int32
}

// UDim2 is a two-dimensional UDim.
type UDim2 struct {
	X, Y UDim
}

// NumberRange is a closed numeric interval.
type NumberRange struct {
	Min, Max float32
}

// CFrame is a position plus a 3x3 rotation matrix, row major.
type CFrame struct {
	Position    Vector3
	Orientation [3]Vector3
}

// Enum is an enum item stored by its numeric value.
type Enum uint32

// Content is an asset reference string.
type Content string

// BinaryString is an opaque byte blob.
type BinaryString []byte

// Ref is a non-owning reference to another node.
//
// ID is the identity token of the target as produced by the decoder; an
// empty ID is the nil reference. Path is the target's layout path and is
// only known once the whole write plan has been resolved. Encoding a
// non-nil Ref without a Path fails.
type Ref struct {
	ID   string
	Path string
}

// Unsupported carries a decoded value whose type has no canonical encoding.
// Decoders produce it instead of failing so the node can still be emitted.
type Unsupported struct {
	TypeName string
	Raw      any
}

func (String) Type() Type { return TypeString }
func (Bool) Type() Type { return TypeBool }
func (Int32) Type() Type { return TypeInt32 }
func (Int64) Type() Type { return TypeInt64 }
func (Float32) Type() Type { return TypeFloat32 }
func (Float64) Type() Type { return TypeFloat64 }
func (Vector2) Type() Type { return TypeVector2 }
func (Vector3) Type() Type { return TypeVector3 }
func (Color3) Type() Type { return TypeColor3 }
func (Color3uint8) Type() Type { return TypeColor3uint8 }
func (UDim) Type() Type { return TypeUDim }
func (UDim2) Type() Type { return TypeUDim2 }
func (NumberRange) Type() Type { return TypeNumberRange }
func (CFrame) Type() Type { return TypeCFrame }
func (Enum) Type() Type { return TypeEnum }
func (Content) Type() Type { return TypeContent }
func (BinaryString) Type() Type { return TypeBinaryString }
func (Ref) Type() Type { return TypeRef }
func (u Unsupported) Type() Type {
	return Type(u.TypeName)
}

func (String) value() {}
func (Bool) value() {}
func (Int32) value() {}
func (Int64) value() {}
func (Float32) value() {}
func (Float64) value() {}
func (Vector2) value() {}
func (Vector3) value() {}
func (Color3) value() {}
func (Color3uint8) value() {}
func (UDim) value() {}
func (UDim2) value() {}
func (NumberRange) value() {}
func (CFrame) value() {}
func (Enum) value() {}
func (Content) value() {}
func (BinaryString) value() {}
func (Ref) value() {}
func (Unsupported) value() {}

// IsNil reports whether the reference points nowhere.
func (r Ref) IsNil() bool {
	return r.ID == ""
}

// Equal reports whether a and b hold the same type and value.
// References compare by target identity only.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Type() != b.Type() {
		return false
	}
	switch av := a.(type) {
	case Ref:
		bv, ok := b.(Ref)
		return ok && av.ID == bv.ID
	case BinaryString:
		bv, ok := b.(BinaryString)
		return ok && bytes.Equal(av, bv)
	case Unsupported:
		return false
	}
	return reflect.DeepEqual(a, b)
}
