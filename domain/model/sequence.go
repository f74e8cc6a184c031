package model

// Sequence は DynamoDB 上の採番カウンタ
type Sequence struct {
	Name  string `dynamo:"name,hash"`
	Value int64  `dynamo:"value"`
}

const (
	SequenceDuty         = "duty"
	SequenceDutyAction   = "duty_action"
	SequenceIncident     = "incident"
	SequenceMessage      = "incident_message"
	SequenceNotification = "notification"
)
