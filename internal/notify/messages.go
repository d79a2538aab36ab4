package notify

import (
	"fmt"
	"strings"
	"time"
)

const signature = "\n\nThe Smart Coop team\n(automatic message, do not reply)"

// Links builds the URLs placed in e-mails.
type Links struct {
	FrontendURL string
}

func (l Links) base() string { return strings.TrimRight(l.FrontendURL, "/") }

func (l Links) ConfirmPasswordChange(token string) string {
	return l.base() + "/api/auth/confirm-password-change/" + token
}

func (l Links) CancelPasswordChange(token string) string {
	return l.base() + "/api/auth/cancel-password-change/" + token
}

func (l Links) ResetPassword(token string) string {
	return l.base() + "/reset-password/" + token
}

func Credentials(to, username, code string) Message {
	return Message{
		To:      to,
		Subject: "Your Smart Coop account",
		Body: fmt.Sprintf("Hello %s,\n\nYour account has been created.\n\nE-mail: %s\nLogin code: %s\n\n"+
			"Keep this code private; it lets you sign in without your password.%s", username, to, code, signature),
	}
}

func PasswordChangeRequested(to, username, confirmURL, cancelURL string, at time.Time, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: "Confirm your password change",
		Body: fmt.Sprintf("Hello %s,\n\nA password change was requested on %s.\n\n"+
			"Confirm: %s\nCancel: %s\n\n"+
			"If you did not ask for this, cancel it now. The request expires in %s. "+
			"Either way your current session will be closed.%s",
			username, at.Format("2006-01-02 15:04 MST"), confirmURL, cancelURL, ttl, signature),
	}
}

func PasswordChanged(to, username string) Message {
	return Message{
		To:      to,
		Subject: "Your password was changed",
		Body:    fmt.Sprintf("Hello %s,\n\nYour password has been changed. Please log in again with the new one.%s", username, signature),
	}
}

func PasswordChangeCancelled(to, username string) Message {
	return Message{
		To:      to,
		Subject: "Password change cancelled",
		Body:    fmt.Sprintf("Hello %s,\n\nThe pending password change was cancelled. Your current password is unchanged.%s", username, signature),
	}
}

func LoginCode(to, username, code string) Message {
	return Message{
		To:      to,
		Subject: "Your new login code",
		Body:    fmt.Sprintf("Hello %s,\n\nYour new login code is %s.%s", username, code, signature),
	}
}

func ResetLink(to, username, link string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: "Reset your password",
		Body: fmt.Sprintf("Hello %s,\n\nOpen the link below to choose a new password:\n\n%s\n\n"+
			"The link is valid for %s. If you did not ask for a reset you can ignore this message.%s",
			username, link, ttl, signature),
	}
}

// DueVaccine is one line of a vaccination reminder.
type DueVaccine struct {
	Name     string
	DueDate  time.Time
	Chickens int
}

func (v DueVaccine) line() string {
	s := fmt.Sprintf("- %s on %s", v.Name, v.DueDate.Format("2006-01-02"))
	if v.Chickens > 0 {
		s += fmt.Sprintf(" (%d chickens)", v.Chickens)
	}
	return s
}

func VaccineReminder(to, username string, v DueVaccine, daysLeft int) Message {
	when := fmt.Sprintf("in %d day(s)", daysLeft)
	if daysLeft <= 0 {
		when = "today"
	}
	return Message{
		To:      to,
		Subject: "Vaccination reminder: " + v.Name,
		Body:    fmt.Sprintf("Hello %s,\n\nA vaccination is due %s:\n\n%s%s", username, when, v.line(), signature),
	}
}

// VaccineSummary lists every upcoming vaccination of the day in one message.
func VaccineSummary(to, username string, vaccines []DueVaccine) Message {
	lines := make([]string, 0, len(vaccines))
	for _, v := range vaccines {
		lines = append(lines, v.line())
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Upcoming vaccinations (%d)", len(vaccines)),
		Body:    fmt.Sprintf("Hello %s,\n\nThe following vaccinations are coming up:\n\n%s%s", username, strings.Join(lines, "\n"), signature),
	}
}

func FeedingReminder(to, username, feedType, start, end string, remaining float64) Message {
	window := start
	if end != "" {
		window += " to " + end
	}
	return Message{
		To:      to,
		Subject: "Feeding program starts at " + start,
		Body: fmt.Sprintf("Hello %s,\n\nThe %s feeding program runs %s.\nRemaining stock: %.1f kg.%s",
			username, feedType, window, remaining, signature),
	}
}

func LowStock(to, username, feedType string, remaining float64) Message {
	return Message{
		To:      to,
		Subject: "Low feed stock: " + feedType,
		Body: fmt.Sprintf("Hello %s,\n\nOnly %.1f kg of %s is left. Plan a restock soon.%s",
			username, remaining, feedType, signature),
	}
}
