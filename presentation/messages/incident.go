package messages

import "fmt"

func IncidentAssigned(point string) string {
	return fmt.Sprintf("You are responsible for the incident at duty point %s", point)
}

func IncidentEscalated(level int) string {
	return fmt.Sprintf("The incident was escalated to level %d", level)
}

func IncidentCritical(point string) string {
	return fmt.Sprintf("The incident at duty point %s became critical", point)
}

func EscalationPending(level int, user string) string {
	return fmt.Sprintf("Escalated to level %d. Waiting for %s to accept the incident.", level, user)
}

func EscalationCritical(actor string) string {
	return fmt.Sprintf("%s escalated the incident to level 4. The incident is critical.", actor)
}

func EscalationDutyNotOpened(level int, user, role string) string {
	return fmt.Sprintf("Cannot escalate to level %d: %s has not opened the duty %s.", level, user, role)
}

func IncidentClosed(actor string) string {
	return fmt.Sprintf("%s closed the incident.", actor)
}

func IncidentForceClosed(actor string) string {
	return fmt.Sprintf("%s force closed the incident.", actor)
}

func IncidentReopened(actor string) string {
	return fmt.Sprintf("%s reopened the incident.", actor)
}

func IncidentAccepted(actor string) string {
	return fmt.Sprintf("%s accepted the incident.", actor)
}
