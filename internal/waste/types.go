package waste

// Type identifies a waste category.
//
// The canonical set below is closed; the classifier may still emit other
// values (an unrecognized source label passes through unchanged so it stays
// visible to the user instead of being dropped).
type Type string

const (
	TypeGeneral       Type = "general-waste"
	TypeOrganic       Type = "organic"
	TypePaper         Type = "paper"
	TypeRecyclableBag Type = "recyclable-bag"
	TypePlastic       Type = "plastic"
	TypeGlass         Type = "glass"
)

// TypeInfo is display metadata for a type. Config-owned, read-only at runtime.
type TypeInfo struct {
	Label string `json:"label"`
	Icon  string `json:"icon,omitempty"`
}

// TypeTable maps canonical types to display metadata.
type TypeTable map[Type]TypeInfo

// DefaultTypeTable returns the built-in German display names.
func DefaultTypeTable() TypeTable {
	return TypeTable{
		TypeGeneral:       {Label: "Restmüll"},
		TypeOrganic:       {Label: "Bio"},
		TypePaper:         {Label: "Papier"},
		TypeRecyclableBag: {Label: "Gelber Sack"},
		TypePlastic:       {Label: "Plastik"},
		TypeGlass:         {Label: "Glas"},
	}
}

// Label returns the display name for t, falling back to the raw identifier
// for pseudo-types the table doesn't know.
func (tt TypeTable) Label(t Type) string {
	if info, ok := tt[t]; ok && info.Label != "" {
		return info.Label
	}
	return string(t)
}

// Occurrence is a single raw (day, type) fact produced by one source,
// prior to merging. Free-text sources classify their labels before emitting.
type Occurrence struct {
	Day  Date
	Type Type
}

// Event is one merged calendar day with the union of all types collected on
// it. Within a merged list, days are unique and strictly ascending and
// Types is non-empty with no duplicates.
type Event struct {
	Day   Date   `json:"day"`
	Types []Type `json:"types"`
}

// HasType reports whether the event already carries t.
func (e Event) HasType(t Type) bool {
	for _, have := range e.Types {
		if have == t {
			return true
		}
	}
	return false
}
