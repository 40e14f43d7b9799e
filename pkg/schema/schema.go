package schema

import (
	"fmt"
)

// Kind identifies the wire encoding of a field type
type Kind int

const (
	KindU8 Kind = iota
	KindU32
	KindU64
	KindU128
	KindString
	KindBytes
	KindFixedBytes
	KindStruct
	KindEnum
	KindSlice
	KindOption
)

func (k Kind) String() string {
	switch k {
	case KindU8:
		return "u8"
	case KindU32:
		return "u32"
	case KindU64:
		return "u64"
	case KindU128:
		return "u128"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindFixedBytes:
		return "fixed_bytes"
	case KindStruct:
		return "struct"
	case KindEnum:
		return "enum"
	case KindSlice:
		return "slice"
	case KindOption:
		return "option"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// TypeTag describes how a single value is encoded. Size is set for
// KindFixedBytes, Ref for KindStruct/KindEnum, Elem for KindSlice/KindOption.
type TypeTag struct {
	Kind Kind
	Size int
	Ref  string
	Elem *TypeTag
}

func U8() TypeTag     { return TypeTag{Kind: KindU8} }
func U32() TypeTag    { return TypeTag{Kind: KindU32} }
func U64() TypeTag    { return TypeTag{Kind: KindU64} }
func U128() TypeTag   { return TypeTag{Kind: KindU128} }
func String() TypeTag { return TypeTag{Kind: KindString} }
func Bytes() TypeTag  { return TypeTag{Kind: KindBytes} }

func FixedBytes(size int) TypeTag { return TypeTag{Kind: KindFixedBytes, Size: size} }
func Struct(name string) TypeTag  { return TypeTag{Kind: KindStruct, Ref: name} }
func Enum(name string) TypeTag    { return TypeTag{Kind: KindEnum, Ref: name} }

func Slice(elem TypeTag) TypeTag  { return TypeTag{Kind: KindSlice, Elem: &elem} }
func Option(elem TypeTag) TypeTag { return TypeTag{Kind: KindOption, Elem: &elem} }

// Field is one schema-ordered struct field. Name must match the Go struct
// field name of the value being serialized.
type Field struct {
	Name string
	Type TypeTag
}

// Variant is one enum arm. The slice index of a variant within its enum is the
// wire discriminant; Payload names the struct encoded after the discriminant.
type Variant struct {
	Name    string
	Payload string
}

// StructDef declares one struct layout
type StructDef struct {
	Name   string
	Fields []Field
}

// EnumDef declares one tagged union layout
type EnumDef struct {
	Name     string
	Variants []Variant
}

// Group is a set of related declarations. Groups are composed into a single
// Registry before use so that cross-group references resolve.
type Group struct {
	Structs []StructDef
	Enums   []EnumDef
}

// Compose concatenates schema groups into one
func Compose(groups ...Group) Group {
	var out Group
	for _, g := range groups {
		out.Structs = append(out.Structs, g.Structs...)
		out.Enums = append(out.Enums, g.Enums...)
	}
	return out
}

// UnknownTypeError reports a schema declaration referencing a type name that
// no composed group declares. It indicates a schema/code mismatch and is
// raised at registry build time, never at first serialization.
type UnknownTypeError struct {
	Name     string
	Referrer string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("schema: unknown type %q referenced by %q", e.Name, e.Referrer)
}

// Registry is the immutable structure-to-field-list mapping evaluated once at
// startup. All lookups hit the union of the composed groups.
type Registry struct {
	structs map[string][]Field
	enums   map[string][]Variant
}

// NewRegistry builds a registry from a composed group and verifies that every
// struct, enum and variant-payload reference resolves.
func NewRegistry(group Group) (*Registry, error) {
	r := &Registry{
		structs: make(map[string][]Field, len(group.Structs)),
		enums:   make(map[string][]Variant, len(group.Enums)),
	}

	for _, s := range group.Structs {
		if _, exists := r.structs[s.Name]; exists {
			return nil, fmt.Errorf("schema: duplicate struct declaration %q", s.Name)
		}
		r.structs[s.Name] = s.Fields
	}
	for _, e := range group.Enums {
		if _, exists := r.enums[e.Name]; exists {
			return nil, fmt.Errorf("schema: duplicate enum declaration %q", e.Name)
		}
		r.enums[e.Name] = e.Variants
	}

	for _, s := range group.Structs {
		for _, f := range s.Fields {
			if err := r.checkTag(f.Type, s.Name+"."+f.Name); err != nil {
				return nil, err
			}
		}
	}
	for _, e := range group.Enums {
		for _, v := range e.Variants {
			if _, ok := r.structs[v.Payload]; !ok {
				return nil, &UnknownTypeError{Name: v.Payload, Referrer: e.Name + "." + v.Name}
			}
		}
	}

	return r, nil
}

func (r *Registry) checkTag(tag TypeTag, referrer string) error {
	switch tag.Kind {
	case KindStruct:
		if _, ok := r.structs[tag.Ref]; !ok {
			return &UnknownTypeError{Name: tag.Ref, Referrer: referrer}
		}
	case KindEnum:
		if _, ok := r.enums[tag.Ref]; !ok {
			return &UnknownTypeError{Name: tag.Ref, Referrer: referrer}
		}
	case KindSlice, KindOption:
		return r.checkTag(*tag.Elem, referrer)
	}
	return nil
}

// StructFields returns the ordered field list for a struct name
func (r *Registry) StructFields(name string) ([]Field, bool) {
	fields, ok := r.structs[name]
	return fields, ok
}

// EnumVariants returns the ordered variant list for an enum name
func (r *Registry) EnumVariants(name string) ([]Variant, bool) {
	variants, ok := r.enums[name]
	return variants, ok
}
