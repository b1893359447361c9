package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Known attribute keys. Values are free-form JSON scalars; the keys below are
// the ones the prompts and the UI understand.
const (
	AttrAuthor      = "author"      // book
	AttrYear        = "year"        // book, film, paper
	AttrISBN        = "isbn"        // book
	AttrPublisher   = "publisher"   // book
	AttrGenre       = "genre"       // book, film
	AttrCreator     = "creator"     // any creative work
	AttrOccupation  = "occupation"  // person
	AttrBirthYear   = "birth_year"  // person
	AttrNationality = "nationality" // person
	AttrDirector    = "director"    // film
	AttrDOI         = "doi"         // paper
	AttrJournal     = "journal"     // paper
	AttrURL         = "url"         // any
)

// KnownAttributes is the rendering order of known keys.
var KnownAttributes = []string{
	AttrAuthor, AttrCreator, AttrDirector, AttrYear, AttrGenre, AttrPublisher,
	AttrISBN, AttrOccupation, AttrBirthYear, AttrNationality, AttrJournal,
	AttrDOI, AttrURL,
}

var knownAttributeSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(KnownAttributes))
	for _, k := range KnownAttributes {
		set[k] = struct{}{}
	}
	return set
}()

func IsKnownAttribute(key string) bool {
	_, ok := knownAttributeSet[key]
	return ok
}

// Attributes is the open key/value bag of an entity.
type Attributes map[string]any

// String returns the value of key rendered as text, or "" when absent.
func (a Attributes) String(key string) string {
	v, ok := a[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// Int returns the value of key as an integer. Strings holding digits are
// accepted since imported data often carries years as text.
func (a Attributes) Int(key string) (int64, bool) {
	switch t := a[key].(type) {
	case int:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		if t != float64(int64(t)) {
			return 0, false
		}
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// Keys lists known keys in KnownAttributes order followed by the remaining
// keys sorted.
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a))
	for _, k := range KnownAttributes {
		if _, ok := a[k]; ok {
			keys = append(keys, k)
		}
	}
	var extra []string
	for k := range a {
		if !IsKnownAttribute(k) {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}

// Extra returns the attributes outside the known vocabulary.
func (a Attributes) Extra() Attributes {
	out := Attributes{}
	for k, v := range a {
		if !IsKnownAttribute(k) {
			out[k] = v
		}
	}
	return out
}

// Format renders the attributes as "key: value" pairs in Keys order. It never
// fails, whatever the values hold.
func (a Attributes) Format() string {
	if len(a) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(a))
	for _, k := range a.Keys() {
		parts = append(parts, fmt.Sprintf("%s: %s", k, a.String(k)))
	}
	return strings.Join(parts, ", ")
}

// Merge applies patch in place. A nil value removes the key.
func (a Attributes) Merge(patch Attributes) {
	for k, v := range patch {
		if v == nil {
			delete(a, k)
			continue
		}
		a[k] = v
	}
}

func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
