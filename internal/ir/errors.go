package ir

import (
	"fmt"
	"strings"

	"github.com/hanpama/shapegen/internal/language"
)

// Location points at the source of an error or diagnostic.
type Location struct {
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

func locationOf(pos *language.Position) Location {
	if pos == nil {
		return Location{}
	}
	loc := Location{Line: pos.Line, Column: pos.Column}
	if pos.Src != nil {
		loc.File = pos.Src.Name
	}
	return loc
}

func (l Location) String() string {
	if l.File == "" {
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

func (l Location) suffix() string {
	if l.Line == 0 {
		return ""
	}
	return " at " + l.String()
}

// FragmentCycleError reports a fragment that spreads itself transitively.
// Cycle starts and ends with the same fragment name.
type FragmentCycleError struct {
	Location Location
	Cycle    []string
}

func (e *FragmentCycleError) Error() string {
	return "fragment cycle " + strings.Join(e.Cycle, " -> ") + e.Location.suffix()
}

// ResponseKeyConflictError reports two different fields selected under one
// response key in overlapping scopes.
type ResponseKeyConflictError struct {
	Location    Location
	ResponseKey string
	Existing    string
	Conflicting string
}

func (e *ResponseKeyConflictError) Error() string {
	return fmt.Sprintf("response key %q selects both %s and %s, use distinct aliases%s",
		e.ResponseKey, e.Existing, e.Conflicting, e.Location.suffix())
}

// SchemaMismatchError reports one field identity with incompatible types.
type SchemaMismatchError struct {
	Location    Location
	ResponseKey string
	Existing    string
	Conflicting string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("field %q cannot be both %s and %s%s",
		e.ResponseKey, e.Existing, e.Conflicting, e.Location.suffix())
}

type UnknownTypeError struct {
	Location Location
	TypeName string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown type %q%s", e.TypeName, e.Location.suffix())
}

type UnknownFieldError struct {
	Location  Location
	TypeName  string
	FieldName string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("type %q has no field %q%s", e.TypeName, e.FieldName, e.Location.suffix())
}

type UnknownFragmentError struct {
	Location Location
	Name     string
}

func (e *UnknownFragmentError) Error() string {
	return fmt.Sprintf("unknown fragment %q%s", e.Name, e.Location.suffix())
}
