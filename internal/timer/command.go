package timer

import (
	"math"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/calendle/internal/apperr"
)

// Timer actions.
const (
	ActionStart    = "start"
	ActionPause    = "pause"
	ActionContinue = "continue"
	ActionDelete   = "delete"
)

// Command is one message of the timer command stream.
type Command struct {
	Action  string  `json:"action"`
	Minutes float64 `json:"minutes,omitempty"`
}

// Validate checks the action name and, for start, the duration.
func (c Command) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Action, validation.Required,
			validation.In(ActionStart, ActionPause, ActionContinue, ActionDelete)),
		validation.Field(&c.Minutes, validation.Min(0.0)),
	)
	if err == nil && (math.IsNaN(c.Minutes) || math.IsInf(c.Minutes, 0)) {
		err = validation.Errors{"minutes": validation.NewError("validation_minutes_finite", "must be a finite number")}
	}
	if err != nil {
		return &apperr.ValidationError{Field: "timer", Reason: err.Error(), Err: err}
	}
	return nil
}

// Duration converts Minutes to a duration rounded to the millisecond.
func (c Command) Duration() time.Duration {
	return time.Duration(math.Round(c.Minutes*60000)) * time.Millisecond
}
