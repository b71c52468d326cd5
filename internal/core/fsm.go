package core

import (
	"fmt"
	"slices"

	"github.com/joseph-ayodele/triplelock/constants"
	"github.com/joseph-ayodele/triplelock/internal/common"
	"github.com/joseph-ayodele/triplelock/internal/entity"
)

// transitions is the full lifecycle graph. Anything not listed is illegal;
// terminal states have no outgoing edges.
var transitions = map[constants.ExpenditureStatus][]constants.ExpenditureStatus{
	constants.StatusPending:             {constants.StatusVendorSubmitted, constants.StatusRejected},
	constants.StatusVendorSubmitted:     {constants.StatusAIVerified, constants.StatusRejected},
	constants.StatusAIVerified:          {constants.StatusBeneficiaryApproved, constants.StatusRejected},
	constants.StatusBeneficiaryApproved: {constants.StatusCompleted, constants.StatusRejected},
}

// CanTransition reports whether from -> to is an edge of the lifecycle graph.
func CanTransition(from, to constants.ExpenditureStatus) bool {
	return slices.Contains(transitions[from], to)
}

// transition is the only place an expenditure's status is assigned.
func transition(exp *entity.Expenditure, to constants.ExpenditureStatus) error {
	if !CanTransition(exp.Status, to) {
		return common.NewInvalidStateError(fmt.Sprintf("illegal transition %s -> %s", exp.Status, to)).
			WithExpenditure(exp.ID.String(), exp.Status.String())
	}
	exp.Status = to
	return nil
}

// requireStatus fails with InvalidState unless exp is in one of allowed.
func requireStatus(exp *entity.Expenditure, op string, allowed ...constants.ExpenditureStatus) error {
	if slices.Contains(allowed, exp.Status) {
		return nil
	}
	return common.NewInvalidStateError(fmt.Sprintf("%s not allowed in status %s", op, exp.Status)).
		WithExpenditure(exp.ID.String(), exp.Status.String())
}
