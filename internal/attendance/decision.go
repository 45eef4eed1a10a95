// Package attendance holds the pure admit/deny decision applied at the gate.
package attendance

import (
	"fmt"

	"symposium/internal/model"
)

// Input gathers everything the gate rule needs about one registration.
type Input struct {
	Cohort          model.Cohort
	EventType       model.EventType
	Year            int
	AmountPaid      float64
	PaymentStatus   model.PaymentStatus
	VerifiedByAdmin bool
}

type Decision struct {
	Admit      bool
	Reason     string
	Suggestion string
}

// Decide applies the gate rules:
//
//	partner / event, years 2-4        -> admit, no checks (free entry)
//	partner / event, year 1           -> admin-verified; paid lines also need payment Success
//	partner / workshop (all years)    -> admin-verified AND payment Success
//	general / event                   -> admin-verified
//	general / workshop                -> admin-verified AND payment Success
func Decide(in Input) Decision {
	if in.Cohort == model.CohortPartner && in.EventType != model.TypeWorkshop {
		if in.Year >= 2 && in.Year <= 4 {
			return Decision{Admit: true}
		}
		if !in.VerifiedByAdmin {
			return deny(in, "payment has not been verified by an admin")
		}
		if in.AmountPaid > 0 && in.PaymentStatus != model.PaymentSuccess {
			return deny(in, "payment for this registration is still pending")
		}
		return Decision{Admit: true}
	}

	if !in.VerifiedByAdmin {
		return deny(in, "payment has not been verified by an admin")
	}
	if in.EventType == model.TypeWorkshop && in.PaymentStatus != model.PaymentSuccess {
		return deny(in, "workshop payment is still pending")
	}
	return Decision{Admit: true}
}

func deny(in Input, reason string) Decision {
	return Decision{
		Reason: reason,
		Suggestion: fmt.Sprintf(
			"cohort=%s type=%s year=%d amount=%.2f status=%s verified=%t; resolve at the help desk",
			in.Cohort, in.EventType, in.Year, in.AmountPaid, in.PaymentStatus, in.VerifiedByAdmin,
		),
	}
}
