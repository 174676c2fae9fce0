// Package slots maps a submission's position inside a form to its arrival time.
//
// Positions 1..limit are spread evenly over the form window minus one slot, and each
// result is floored to a multiple of the slot duration counted from the Unix epoch, so
// slot boundaries line up with absolute time rather than with the form start.
package slots

import (
	"errors"
	"math"
	"time"

	"github.com/Genzhalo/idp-console/internal/model"
)

var ErrCapacityExceeded = errors.New("form capacity exceeded")

// Assign returns the arrival time for position within form. It has no side effects.
func Assign(form model.Form, position int) time.Time {
	start := form.StartDate.Unix()
	duration := int64(form.TimeFrameDuration)
	usable := form.EndDate.Unix() - start - duration

	fraction := float64(position) / float64(form.Limit)
	// The -1 keeps an exact boundary inside the slot it opens.
	raw := int64(math.Floor(fraction*float64(usable)+float64(start))) - 1
	return time.Unix(raw-raw%duration, 0).UTC()
}

// Next allocates the position after lastOrder for a form that currently holds count
// submissions. Deleted positions are never handed out again, so the next position
// follows the highest one ever stored rather than the live count.
func Next(form model.Form, lastOrder, count int) (model.NewSubmission, error) {
	position := lastOrder + 1
	if count >= form.Limit || position > form.Limit {
		return model.NewSubmission{}, ErrCapacityExceeded
	}
	return model.NewSubmission{
		ArrivalDate: Assign(form, position),
		SubOrder:    position,
		Status:      model.SubmissionReceived,
	}, nil
}
