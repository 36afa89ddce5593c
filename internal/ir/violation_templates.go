package ir

import (
	"fmt"

	"github.com/hanpama/shapegen/internal/language"
)

// Keep messages stable, snapshot tests depend on them.

func violationDeadTypeCondition(typeName string, enclosing TypeSet, pos *language.Position) *Violation {
	return violationWithPosition(DiagnosticDeadBranch,
		fmt.Sprintf("Type condition %q can never match the enclosing scope %v", typeName, []string(enclosing)),
		pos,
	)
}

func violationDeadConditions(conds, active ConditionSet, pos *language.Position) *Violation {
	msg := fmt.Sprintf("Conditions %q contradict the enclosing conditions %q", conds.String(), active.String())
	if active.IsEmpty() {
		msg = fmt.Sprintf("Conditions %q can never hold", conds.String())
	}
	return violationWithPosition(DiagnosticDeadBranch, msg, pos)
}

func violationLiteralFalse(directive string, pos *language.Position) *Violation {
	return violationWithPosition(DiagnosticDeadBranch,
		fmt.Sprintf("Selection is always excluded by a literal @%s", directive),
		pos,
	)
}
