package bot

// User-facing message texts. Keep wording stable: people recognize
// these strings, and tests assert on fragments of them.
const (
	msgReminderHelp = "To schedule a reminder:\n'!reminder <reminder time>; <reminder text>'"
	msgCancelHelp   = "To cancel a reminder:\n'!cancel <reminder_id>'"

	msgHelp = "Could not parse the message. " +
		msgReminderHelp + "\n" +
		"To list all reminders:\n'!list'\n" +
		msgCancelHelp + "\n" +
		"To clear all reminders:\n'!clear'"

	msgGetStarted = "Hi! I can remind you of things.\n" + msgReminderHelp

	msgUnparsableDate   = "Could not parse the date. Please try again."
	msgDateMustBeFuture = "Date for the reminder has to be in the future."
	msgSchedulingError  = "Error when scheduling the reminder. Please try again."
	msgUnexpectedError  = "Unexpected error. Please try again."

	msgUserConfirmation = "Set reminder '%s' for '%s'?"
	msgScheduled        = "Reminder scheduled successfully."
	msgCancelledDraft   = "Cancelled."

	msgNoReminders = "No reminders scheduled."
	msgListEntry   = "id: %s\ntext: %s\ndate: %s"

	msgCancelled      = "Successfully cancelled the reminder."
	msgCancelNotFound = "Could not cancel reminder with that id."
	msgCleared        = "Successfully cleared all reminders."
	msgClearFailed    = "Could not clear all reminders."
)

// humanDateFormat renders the resolved time in the confirmation prompt.
const humanDateFormat = "Mon, 02/Jan/2006 15:04:05 MST"

// truncateText caps list output at 17 visible characters plus an
// ellipsis when the original exceeds 20.
func truncateText(s string) string {
	r := []rune(s)
	if len(r) <= 20 {
		return s
	}
	return string(r[:17]) + "..."
}
