// Package pricing computes the fee owed for a selection of workshops and
// events. It is pure: the same cohort, year and selection always produce the
// same per-line amounts.
package pricing

import "symposium/internal/model"

// Policy holds the fee schedule for one edition of the symposium.
type Policy struct {
	// One flat fee covering every non-workshop event a general participant
	// selects, charged once.
	GeneralEventPackage float64
	// Package fee for partner-cohort first years; years 2-4 attend events free.
	PartnerEventPackage float64
	// Partner cohort pays a flat discounted rate per workshop regardless of
	// the workshop's listed fee.
	PartnerWorkshopRate float64
}

func DefaultPolicy() Policy {
	return Policy{
		GeneralEventPackage: 300,
		PartnerEventPackage: 250,
		PartnerWorkshopRate: 300,
	}
}

// Line is one priced registration row. The package fee is attributed to a
// single representative line and the rest carry zero, so the sum of persisted
// lines always equals the quoted total.
type Line struct {
	Event  model.Event
	Amount float64
	// Free marks lines that owe nothing by policy (partner years 2-4 events).
	// Zero-amount lines covered by a package on a sibling line are not free.
	Free bool
}

type Quote struct {
	Lines []Line
	Total float64
}

// Price computes the quote. Workshops and events arrive already resolved to
// fee-bearing records; selection validity (existence, type, seats) is the
// caller's concern.
func (p Policy) Price(cohort model.Cohort, year int, workshops, events []model.Event) Quote {
	var q Quote

	eventsFree := cohort == model.CohortPartner && year >= 2
	for i, ev := range events {
		amount := 0.0
		if i == 0 && !eventsFree {
			if cohort == model.CohortGeneral {
				amount = p.GeneralEventPackage
			} else {
				amount = p.PartnerEventPackage
			}
		}
		q.Lines = append(q.Lines, Line{Event: ev, Amount: amount, Free: eventsFree})
		q.Total += amount
	}

	for _, ws := range workshops {
		amount := ws.Fee
		if cohort == model.CohortPartner {
			amount = p.PartnerWorkshopRate
		}
		q.Lines = append(q.Lines, Line{Event: ws, Amount: amount})
		q.Total += amount
	}

	return q
}
