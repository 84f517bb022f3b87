// Package presenter turns the registration read model into what a UI shows:
// a banner, the primary button and the manual check button.
package presenter

import (
	"fmt"
	"time"

	"hackmate/internal/hackathon"
	"hackmate/internal/registration/models"
)

// Button labels.
const (
	LabelChecking     = "Checking Registration..."
	LabelJoin         = "Join Hackathon"
	LabelClosed       = "Registration Closed"
	LabelSubmitting   = "Submitting..."
	LabelVerifying    = "Verifying Registration..."
	LabelRegistered   = "Registered ✓"
	LabelRetry        = "Registration Failed - Retry"
	LabelContact      = "Contact Support"
	LabelCheckNow     = "Check Status"
	LabelCheckRunning = "Checking..."
)

// UnknownStatusMessage is shown when the backend reports a status this client
// cannot interpret.
const UnknownStatusMessage = "Unable to determine status, please contact support"

type Tone string

const (
	ToneNone    Tone = ""
	ToneInfo    Tone = "info"
	ToneWarning Tone = "warning"
	ToneSuccess Tone = "success"
	ToneDanger  Tone = "danger"
)

// Action is what pressing a button should trigger.
type Action string

const (
	ActionNone     Action = ""
	ActionOpenForm Action = "open_form"
	ActionRetry    Action = "retry"
	ActionCheckNow Action = "check_now"
	ActionSupport  Action = "contact_support"
)

type Banner struct {
	Title   string
	Message string
	Tone    Tone
}

type Button struct {
	Label   string
	Enabled bool
	Action  Action
	Visible bool
}

// View is everything a presentation layer renders for one participant and event.
type View struct {
	Status      models.Status
	Banner      Banner
	Primary     Button
	CheckNow    Button
	OrderID     string
	LastChecked string
	Fee         string
	Venue       string
}

// Input collects what Render needs.
type Input struct {
	Snapshot   models.Snapshot
	Details    *hackathon.Details
	Submitting bool
	Checking   bool
	Now        time.Time
}

// Render is pure: the same input always yields the same view.
func Render(in Input) View {
	snap := in.Snapshot
	v := View{
		Status:  snap.Status,
		OrderID: snap.OrderID,
	}
	if snap.HasChecked() {
		v.LastChecked = FormatLastChecked(in.Now, snap.LastChecked)
	}
	if in.Details != nil {
		v.Fee = FormatFee(in.Details.RegistrationFee)
		v.Venue = in.Details.Venue
	}

	switch snap.Status {
	case models.StatusUnresolved:
		v.Primary = Button{Label: LabelChecking, Visible: true}

	case models.StatusNotRegistered:
		v.Primary = joinButton(in)

	case models.StatusPending:
		v.Banner = Banner{
			Title:   "Payment under verification",
			Message: orDefault(snap.Message, "Your payment is being verified. This usually takes up to 24 hours."),
			Tone:    ToneWarning,
		}
		v.Primary = Button{Label: LabelVerifying, Visible: true}
		v.CheckNow = Button{Label: LabelCheckNow, Enabled: true, Action: ActionCheckNow, Visible: true}
		if in.Checking {
			v.CheckNow.Label = LabelCheckRunning
			v.CheckNow.Enabled = false
		}

	case models.StatusRegistered:
		msg := "You are registered for this hackathon."
		if in.Details != nil && in.Details.Venue != "" {
			msg = fmt.Sprintf("You are registered. See you at %s.", in.Details.Venue)
		}
		v.Banner = Banner{Title: "Registration confirmed", Message: msg, Tone: ToneSuccess}
		v.Primary = Button{Label: LabelRegistered, Visible: true}

	case models.StatusCancelled:
		v.Banner = Banner{
			Title:   "Registration failed",
			Message: orDefault(snap.Message, "Your payment could not be verified. Please retry with a new transaction reference."),
			Tone:    ToneDanger,
		}
		v.Primary = Button{Label: LabelRetry, Enabled: true, Action: ActionRetry, Visible: true}
		if in.Submitting {
			v.Primary = Button{Label: LabelSubmitting, Visible: true}
		}

	default:
		v.Banner = Banner{Title: "Status unavailable", Message: UnknownStatusMessage, Tone: ToneDanger}
		v.Primary = Button{Label: LabelContact, Enabled: true, Action: ActionSupport, Visible: true}
	}
	return v
}

func joinButton(in Input) Button {
	if in.Submitting {
		return Button{Label: LabelSubmitting, Visible: true}
	}
	// Without details the gate stays open; the backend still enforces it.
	if in.Details != nil && !in.Details.AcceptsRegistrations(in.Now) {
		return Button{Label: LabelClosed, Visible: true}
	}
	return Button{Label: LabelJoin, Enabled: true, Action: ActionOpenForm, Visible: true}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// FormatFee renders a fee in whole rupees.
func FormatFee(amount int64) string {
	if amount <= 0 {
		return "Free"
	}
	return fmt.Sprintf("₹%d", amount)
}

// FormatLastChecked renders how long ago the status was read.
func FormatLastChecked(now, at time.Time) string {
	if now.IsZero() {
		now = time.Now()
	}
	d := now.Sub(at)
	switch {
	case d < 10*time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return at.Format("15:04")
	}
}
