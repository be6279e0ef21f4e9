package resolve

import (
	"fmt"

	"github.com/Veraticus/contact-sync/internal/common"
	"github.com/Veraticus/contact-sync/internal/model"
	"github.com/Veraticus/contact-sync/internal/normalize"
)

// PropagationResult reports which records took the new phone.
type PropagationResult struct {
	UpdatedIndices []int
	AffectedCount  int
}

// Propagate sets newPhone on every record whose normalized final name equals
// the normalized identityName. Nothing is modified when validation fails.
func Propagate(identityName, newPhone string, records []model.ReconciledRecord) (PropagationResult, error) {
	key := normalize.Name(identityName)
	if key == "" {
		return PropagationResult{}, common.NewValidationError("name", "empty identity name")
	}
	if err := normalize.PhoneError(newPhone); err != nil {
		return PropagationResult{}, err
	}

	phone := normalize.Phone(newPhone)
	var result PropagationResult
	for i := range records {
		if normalize.Name(records[i].FinalName) != key {
			continue
		}
		records[i].FinalPhone = phone
		result.UpdatedIndices = append(result.UpdatedIndices, i)
	}
	result.AffectedCount = len(result.UpdatedIndices)

	if err := checkPropagated(identityName, phone, result, records); err != nil {
		common.LogError(err, "Phone propagation incomplete", common.Fields{"identity": identityName})
		return result, err
	}
	return result, nil
}

// checkPropagated verifies the outcome of a propagation: every record carrying
// the identity's name holds phone, and the identity being present implies at
// least one update.
func checkPropagated(identityName, phone string, result PropagationResult, records []model.ReconciledRecord) error {
	key := normalize.Name(identityName)
	present := 0
	for i := range records {
		if normalize.Name(records[i].FinalName) != key {
			continue
		}
		present++
		if records[i].FinalPhone != phone {
			return &common.InvariantViolationError{
				Invariant: "propagation-complete",
				Detail:    fmt.Sprintf("record %d of identity %q still has phone %q", i, identityName, records[i].FinalPhone),
			}
		}
	}
	if present > 0 && result.AffectedCount == 0 {
		return &common.InvariantViolationError{
			Invariant: "propagation-complete",
			Detail:    fmt.Sprintf("identity %q is in the record set but no record was updated", identityName),
		}
	}
	return nil
}
