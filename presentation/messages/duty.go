package messages

import (
	"fmt"
	"strings"
)

func DutyComing(role string) (string, string) {
	return "Your duty starts today", fmt.Sprintf("Duty role: %s", role)
}

func DutyReminder(role string) (string, string) {
	return "Reminder: open your duty", fmt.Sprintf("Your duty as %s has started. Please open it.", role)
}

func DutyForcedOpen(role string) (string, string) {
	return "Duty opened automatically", fmt.Sprintf("Duty role: %s", role)
}

func DutyNotOpenedByUser(user, role string) (string, string) {
	return fmt.Sprintf("%s did not open the duty", user),
		fmt.Sprintf("%s did not open the duty as %s, it was opened automatically.", user, role)
}

func DutyRefused(user, role, point, reason string) (string, string) {
	return fmt.Sprintf("%s cannot take the duty", user),
		fmt.Sprintf("A replacement is needed for %s at duty point %s. Reason: %s", role, point, reason)
}

func DutyTransferredToYou(from string) (string, string) {
	return "A duty was transferred to you", fmt.Sprintf("%s transferred the duty to you", from)
}

func DutyTransferred(from, to, role, point, reason string) (string, string) {
	return fmt.Sprintf("%s cannot take the duty", from),
		fmt.Sprintf("%s transferred the duty %s at duty point %s to %s. Reason: %s", from, role, point, to, reason)
}

func DutyReassignedToYou(admin, role, date string) (string, string) {
	return "A duty was assigned to you", fmt.Sprintf("%s assigned you the duty %s on %s", admin, role, date)
}

func DutyReassignedFromYou(admin, role, date string) (string, string) {
	return "Your duty was reassigned", fmt.Sprintf("%s reassigned your duty %s on %s", admin, role, date)
}

func DutyScheduled(role, from, to string) (string, string) {
	if from == to {
		return "You were scheduled for a duty", fmt.Sprintf("Duty %s on %s", role, from)
	}
	return "You were scheduled for duties", fmt.Sprintf("Duties %s from %s to %s", role, from, to)
}

// CoverageGaps は割り当て設定が無かった期間を1通にまとめる
func CoverageGaps(gaps []string) (string, string) {
	return "Weekend duties are not assigned",
		"No default weekend assignment is configured for:\n" + strings.Join(gaps, "\n")
}

func MissingDuties(lines []string) (string, string) {
	return "Duties are running out",
		"The following roles are scheduled for too few days ahead:\n" + strings.Join(lines, "\n")
}
