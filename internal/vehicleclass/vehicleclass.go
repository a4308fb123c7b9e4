package vehicleclass

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnknownClassLabel = errors.New("unknown vehicle class label")
	ErrInvalidTable      = errors.New("invalid vehicle class table")
	ErrClassCodeMismatch = errors.New("vehicle class code not present in source")
)

// Class is the user-facing vehicle category. The set is closed.
type Class int

const (
	BusTruck Class = iota
	Car
	Motorcycle
	Undefined
)

// All lists every class in display order.
var All = []Class{BusTruck, Car, Motorcycle, Undefined}

var labels = [...]string{
	BusTruck:   "BUS/TRUCK",
	Car:        "CAR",
	Motorcycle: "MOTORCYCLE",
	Undefined:  "UNDEFINED",
}

func (c Class) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Class(%d)", int(c))
	}
	return labels[c]
}

func (c Class) Valid() bool {
	return c >= BusTruck && c <= Undefined
}

// MarshalText lets a Class travel as its label in JSON and config.
func (c Class) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownClassLabel, int(c))
	}
	return []byte(labels[c]), nil
}

func (c *Class) UnmarshalText(text []byte) error {
	parsed, err := ParseLabel(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseLabel maps a user-facing label to its Class. Matching ignores case and
// surrounding whitespace.
func ParseLabel(label string) (Class, error) {
	normalized := strings.ToUpper(strings.TrimSpace(label))
	for c, l := range labels {
		if l == normalized {
			return Class(c), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownClassLabel, label)
}

// ParseLabels parses every label and fails on the first unknown one.
func ParseLabels(in []string) ([]Class, error) {
	out := make([]Class, 0, len(in))
	for _, l := range in {
		c, err := ParseLabel(l)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Table maps each Class to the code used by the storage layer.
type Table struct {
	codes  [len(labels)]string
	byCode map[string]Class
}

// DefaultCodes are the codes of the Belo Horizonte sensor export.
var DefaultCodes = map[Class]string{
	BusTruck:   "CAMINHAO_ONIBUS",
	Car:        "AUTOMOVEL",
	Motorcycle: "MOTOCICLETA",
	Undefined:  "INDEFINIDO",
}

func DefaultTable() *Table {
	t, err := NewTable(DefaultCodes)
	if err != nil {
		panic(err)
	}
	return t
}

// NewTable builds a validated table. Every class needs a non-empty code and
// no two classes may share one.
func NewTable(codes map[Class]string) (*Table, error) {
	t := &Table{byCode: make(map[string]Class, len(codes))}
	for c, code := range codes {
		if !c.Valid() {
			return nil, fmt.Errorf("%w: class %d", ErrInvalidTable, int(c))
		}
		code = strings.TrimSpace(code)
		if code == "" {
			return nil, fmt.Errorf("%w: empty code for %s", ErrInvalidTable, c)
		}
		if other, dup := t.byCode[code]; dup {
			return nil, fmt.Errorf("%w: code %q used by both %s and %s", ErrInvalidTable, code, other, c)
		}
		t.codes[c] = code
		t.byCode[code] = c
	}
	for _, c := range All {
		if t.codes[c] == "" {
			return nil, fmt.Errorf("%w: no code for %s", ErrInvalidTable, c)
		}
	}
	return t, nil
}

// TableFromLabels builds a table from label keyed config, e.g.
// {"MOTORCYCLE": "MOTO"}. Classes missing from the map keep their default code.
func TableFromLabels(overrides map[string]string) (*Table, error) {
	codes := make(map[Class]string, len(DefaultCodes))
	for c, code := range DefaultCodes {
		codes[c] = code
	}
	for label, code := range overrides {
		c, err := ParseLabel(label)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
		}
		codes[c] = code
	}
	return NewTable(codes)
}

func (t *Table) Code(c Class) string {
	if !c.Valid() {
		return ""
	}
	return t.codes[c]
}

// Translate returns the sorted, de-duplicated storage codes for classes.
func (t *Table) Translate(classes []Class) ([]string, error) {
	seen := make(map[string]struct{}, len(classes))
	out := make([]string, 0, len(classes))
	for _, c := range classes {
		if !c.Valid() {
			return nil, fmt.Errorf("%w: %d", ErrUnknownClassLabel, int(c))
		}
		code := t.codes[c]
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	sort.Strings(out)
	return out, nil
}

// Resolve maps a storage code back to its Class. Codes the table does not know
// belong to Undefined.
func (t *Table) Resolve(code string) Class {
	if c, ok := t.byCode[code]; ok {
		return c
	}
	return Undefined
}

// Known reports whether code is one of the table's codes.
func (t *Table) Known(code string) bool {
	_, ok := t.byCode[code]
	return ok
}

// CheckSource compares the table with the distinct codes found in a source.
// A configured code missing from the source is an error; codes the table does
// not know are returned so the caller can warn about them.
func (t *Table) CheckSource(sourceCodes []string) (unknown []string, err error) {
	present := make(map[string]struct{}, len(sourceCodes))
	for _, code := range sourceCodes {
		present[code] = struct{}{}
		if !t.Known(code) {
			unknown = append(unknown, code)
		}
	}
	sort.Strings(unknown)

	var missing []string
	for _, c := range All {
		if _, ok := present[t.codes[c]]; !ok {
			missing = append(missing, fmt.Sprintf("%s=%q", c, t.codes[c]))
		}
	}
	if len(missing) > 0 {
		sorted := append([]string(nil), sourceCodes...)
		sort.Strings(sorted)
		return unknown, fmt.Errorf("%w: %s (source has %s)", ErrClassCodeMismatch,
			strings.Join(missing, ", "), strings.Join(sorted, ", "))
	}
	return unknown, nil
}

// Entries returns label/code pairs in display order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(All))
	for _, c := range All {
		out = append(out, Entry{Class: c, Code: t.codes[c]})
	}
	return out
}

type Entry struct {
	Class Class  `json:"label"`
	Code  string `json:"code"`
}
