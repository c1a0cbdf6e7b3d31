package ccx

// Location identifies a content block. It is opaque to this package.
type Location string

func (l Location) String() string {
	return string(l)
}

// Block is the part of a course content block that override resolution needs:
// its location and the codecs of the fields it defines.
type Block interface {
	Location() Location
	Field(name string) (FieldCodec, bool)
}

// BasicBlock is a minimal Block backed by a field map.
type BasicBlock struct {
	location Location
	fields   map[string]FieldCodec
}

// NewBlock builds a BasicBlock. The fields map is copied.
func NewBlock(location Location, fields map[string]FieldCodec) *BasicBlock {
	copied := make(map[string]FieldCodec, len(fields))
	for name, codec := range fields {
		if codec != nil {
			copied[name] = codec
		}
	}
	return &BasicBlock{location: location, fields: copied}
}

// Location implements Block.
func (b *BasicBlock) Location() Location {
	return b.location
}

// Field implements Block.
func (b *BasicBlock) Field(name string) (FieldCodec, bool) {
	codec, ok := b.fields[name]
	return codec, ok
}
