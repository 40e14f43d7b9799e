package serializer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"
	"reflect"

	"github.com/near-tools/txreplay-go/pkg/schema"
)

// EnumVariant is implemented by every value that serializes as a tagged union
// arm. The returned name selects the wire discriminant from the enum's schema.
type EnumVariant interface {
	VariantName() string
}

// EncodingError reports a value that does not satisfy its schema: a missing
// field, a Go type that does not match the declared wire type, or an
// out-of-range number.
type EncodingError struct {
	Struct string
	Field  string
	Reason string
}

func (e *EncodingError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("serializer: cannot encode %s: %s", e.Struct, e.Reason)
	}
	return fmt.Sprintf("serializer: cannot encode %s.%s: %s", e.Struct, e.Field, e.Reason)
}

// BinarySerializer encodes values into their canonical byte sequence against a
// schema registry. Encoding is deterministic and side-effect free: the same
// value always produces the same bytes, which is what makes hashing over the
// output stable.
type BinarySerializer struct {
	registry *schema.Registry
}

// NewBinarySerializer creates a serializer over a validated registry
func NewBinarySerializer(registry *schema.Registry) *BinarySerializer {
	return &BinarySerializer{registry: registry}
}

// Serialize encodes value against the named struct schema. Fields are written
// strictly in schema-declared order; no field may be skipped or reordered.
func (s *BinarySerializer) Serialize(structName string, value interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := s.writeStruct(buf, structName, reflect.ValueOf(value)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *BinarySerializer) writeStruct(buf *bytes.Buffer, structName string, v reflect.Value) error {
	fields, ok := s.registry.StructFields(structName)
	if !ok {
		return &EncodingError{Struct: structName, Reason: "struct not declared in schema registry"}
	}

	v = indirect(v)
	if !v.IsValid() {
		return &EncodingError{Struct: structName, Reason: "value is nil"}
	}
	if v.Kind() != reflect.Struct {
		return &EncodingError{Struct: structName, Reason: fmt.Sprintf("value is %s, want struct", v.Kind())}
	}

	for _, f := range fields {
		fv := v.FieldByName(f.Name)
		if !fv.IsValid() {
			return &EncodingError{Struct: structName, Field: f.Name, Reason: "value has no such field"}
		}
		if err := s.writeValue(buf, f.Type, fv, structName, f.Name); err != nil {
			return err
		}
	}
	return nil
}

func (s *BinarySerializer) writeValue(buf *bytes.Buffer, tag schema.TypeTag, fv reflect.Value, structName, fieldName string) error {
	switch tag.Kind {
	case schema.KindU8:
		if fv.Kind() != reflect.Uint8 {
			return s.typeMismatch(structName, fieldName, tag, fv)
		}
		buf.WriteByte(byte(fv.Uint()))

	case schema.KindU32:
		if fv.Kind() != reflect.Uint32 {
			return s.typeMismatch(structName, fieldName, tag, fv)
		}
		writeUint32(buf, uint32(fv.Uint()))

	case schema.KindU64:
		if fv.Kind() != reflect.Uint64 {
			return s.typeMismatch(structName, fieldName, tag, fv)
		}
		writeUint64(buf, fv.Uint())

	case schema.KindU128:
		n, ok := fv.Interface().(*big.Int)
		if !ok {
			return s.typeMismatch(structName, fieldName, tag, fv)
		}
		return s.writeU128(buf, n, structName, fieldName)

	case schema.KindString:
		if fv.Kind() != reflect.String {
			return s.typeMismatch(structName, fieldName, tag, fv)
		}
		str := fv.String()
		writeUint32(buf, uint32(len(str)))
		buf.WriteString(str)

	case schema.KindBytes:
		if fv.Kind() != reflect.Slice || fv.Type().Elem().Kind() != reflect.Uint8 {
			return s.typeMismatch(structName, fieldName, tag, fv)
		}
		writeUint32(buf, uint32(fv.Len()))
		buf.Write(fv.Bytes())

	case schema.KindFixedBytes:
		return s.writeFixedBytes(buf, tag.Size, fv, structName, fieldName)

	case schema.KindStruct:
		return s.writeStruct(buf, tag.Ref, fv)

	case schema.KindEnum:
		return s.writeEnum(buf, tag.Ref, fv, structName, fieldName)

	case schema.KindSlice:
		fv = indirect(fv)
		if fv.Kind() != reflect.Slice {
			return s.typeMismatch(structName, fieldName, tag, fv)
		}
		writeUint32(buf, uint32(fv.Len()))
		for i := 0; i < fv.Len(); i++ {
			if err := s.writeValue(buf, *tag.Elem, fv.Index(i), structName, fieldName); err != nil {
				return err
			}
		}

	case schema.KindOption:
		return s.writeOption(buf, *tag.Elem, fv, structName, fieldName)

	default:
		return &EncodingError{Struct: structName, Field: fieldName, Reason: fmt.Sprintf("unsupported type kind %s", tag.Kind)}
	}
	return nil
}

func (s *BinarySerializer) writeU128(buf *bytes.Buffer, n *big.Int, structName, fieldName string) error {
	if n == nil {
		return &EncodingError{Struct: structName, Field: fieldName, Reason: "u128 value is nil"}
	}
	if n.Sign() < 0 {
		return &EncodingError{Struct: structName, Field: fieldName, Reason: "u128 value is negative"}
	}
	if n.BitLen() > 128 {
		return &EncodingError{Struct: structName, Field: fieldName, Reason: "value exceeds u128 range"}
	}

	// big.Int yields big-endian bytes; the wire wants 16 bytes little-endian.
	be := n.Bytes()
	var le [16]byte
	for i, b := range be {
		le[len(be)-1-i] = b
	}
	buf.Write(le[:])
	return nil
}

func (s *BinarySerializer) writeFixedBytes(buf *bytes.Buffer, size int, fv reflect.Value, structName, fieldName string) error {
	fv = indirect(fv)
	switch fv.Kind() {
	case reflect.Array:
		if fv.Type().Elem().Kind() != reflect.Uint8 || fv.Len() != size {
			return &EncodingError{Struct: structName, Field: fieldName,
				Reason: fmt.Sprintf("want [%d]byte, got %s", size, fv.Type())}
		}
		for i := 0; i < size; i++ {
			buf.WriteByte(byte(fv.Index(i).Uint()))
		}
	case reflect.Slice:
		if fv.Type().Elem().Kind() != reflect.Uint8 {
			return &EncodingError{Struct: structName, Field: fieldName,
				Reason: fmt.Sprintf("want %d bytes, got %s", size, fv.Type())}
		}
		if fv.Len() != size {
			return &EncodingError{Struct: structName, Field: fieldName,
				Reason: fmt.Sprintf("want %d bytes, got %d", size, fv.Len())}
		}
		buf.Write(fv.Bytes())
	default:
		return &EncodingError{Struct: structName, Field: fieldName,
			Reason: fmt.Sprintf("want %d bytes, got %s", size, fv.Kind())}
	}
	return nil
}

func (s *BinarySerializer) writeEnum(buf *bytes.Buffer, enumName string, fv reflect.Value, structName, fieldName string) error {
	variants, ok := s.registry.EnumVariants(enumName)
	if !ok {
		return &EncodingError{Struct: structName, Field: fieldName,
			Reason: fmt.Sprintf("enum %q not declared in schema registry", enumName)}
	}

	fv = indirect(fv)
	if !fv.IsValid() {
		return &EncodingError{Struct: structName, Field: fieldName, Reason: "enum value is nil"}
	}
	variant, ok := fv.Interface().(EnumVariant)
	if !ok {
		return &EncodingError{Struct: structName, Field: fieldName,
			Reason: fmt.Sprintf("%s does not implement EnumVariant", fv.Type())}
	}

	name := variant.VariantName()
	for i, v := range variants {
		if v.Name == name {
			buf.WriteByte(byte(i))
			return s.writeStruct(buf, v.Payload, fv)
		}
	}
	return &EncodingError{Struct: structName, Field: fieldName,
		Reason: fmt.Sprintf("enum %s has no variant %q", enumName, name)}
}

func (s *BinarySerializer) writeOption(buf *bytes.Buffer, elem schema.TypeTag, fv reflect.Value, structName, fieldName string) error {
	if fv.Kind() != reflect.Ptr && fv.Kind() != reflect.Interface {
		return &EncodingError{Struct: structName, Field: fieldName,
			Reason: fmt.Sprintf("option value must be nilable, got %s", fv.Kind())}
	}
	if fv.IsNil() {
		buf.WriteByte(0)
		return nil
	}
	buf.WriteByte(1)
	// u128 values are themselves *big.Int, so the pointer passes through as is
	if elem.Kind == schema.KindU128 || elem.Kind == schema.KindStruct || elem.Kind == schema.KindEnum {
		return s.writeValue(buf, elem, fv, structName, fieldName)
	}
	return s.writeValue(buf, elem, fv.Elem(), structName, fieldName)
}

func (s *BinarySerializer) typeMismatch(structName, fieldName string, tag schema.TypeTag, fv reflect.Value) error {
	return &EncodingError{Struct: structName, Field: fieldName,
		Reason: fmt.Sprintf("schema declares %s, value is %s", tag.Kind, fv.Type())}
}

func indirect(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func writeUint32(buf *bytes.Buffer, n uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], n)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, n uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], n)
	buf.Write(b[:])
}
