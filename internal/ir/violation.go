package ir

import (
	"fmt"

	"github.com/hanpama/shapegen/internal/language"
)

type DiagnosticKind string

const (
	DiagnosticDeadBranch DiagnosticKind = "DeadBranch"
	DiagnosticValidation DiagnosticKind = "Validation"
)

// Violation is a non-fatal diagnostic attached to a compiled unit.
type Violation struct {
	Kind    DiagnosticKind `json:"kind"`
	Message string         `json:"message"`
	File    string         `json:"file,omitempty"`
	Line    int            `json:"line,omitempty"`
	Column  int            `json:"column,omitempty"`
}

func (v *Violation) String() string {
	if v.Line == 0 {
		return v.Message
	}
	return v.Message + " " + v.Location().String()
}

func (v *Violation) Location() Location {
	return Location{File: v.File, Line: v.Line, Column: v.Column}
}

type ValidationError []*Violation

func (e ValidationError) Error() string {
	msg := "violations found:\n"
	for _, v := range e {
		msg += "- " + v.String() + "\n"
	}
	return msg
}

// ValidationErrorFromList converts gqlparser validation errors.
func ValidationErrorFromList(errs language.ErrorList) ValidationError {
	if len(errs) == 0 {
		return nil
	}
	out := make(ValidationError, 0, len(errs))
	for _, err := range errs {
		v := &Violation{Kind: DiagnosticValidation, Message: err.Message}
		if len(err.Locations) > 0 {
			v.Line = err.Locations[0].Line
			v.Column = err.Locations[0].Column
		}
		if err.Rule != "" {
			v.Message = fmt.Sprintf("%s (%s)", err.Message, err.Rule)
		}
		out = append(out, v)
	}
	return out
}

func violationWithPosition(kind DiagnosticKind, message string, pos *language.Position) *Violation {
	loc := locationOf(pos)
	return &Violation{
		Kind:    kind,
		Message: message,
		File:    loc.File,
		Line:    loc.Line,
		Column:  loc.Column,
	}
}
