package objfile

// Binding classifies a symbol-table entry.
type Binding uint16

const (
	BindingLocal Binding = iota
	BindingGlobal
	BindingWeak
)

func (b Binding) String() string {
	switch b {
	case BindingLocal:
		return "LOCAL"
	case BindingGlobal:
		return "GLOBAL"
	case BindingWeak:
		return "WEAK"
	default:
		return "?binding?"
	}
}

// SectionNone marks a symbol that is not defined in any section of this
// object file (used for WEAK placeholders).
const SectionNone int32 = -1

// Symbol is one symbol-table entry: a string-table index for its
// (possibly scope-mangled) name, its value, binding, and defining
// section index (or SectionNone).
type Symbol struct {
	Name    uint32 // string table index
	Value   uint32
	Binding Binding
	Section int32
}
