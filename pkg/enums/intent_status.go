package enums

// IntentStatus mirrors the processor-side payment intent vocabulary.
type IntentStatus string

const (
	IntentStatusRequiresAction    IntentStatus = "requires_action"
	IntentStatusProcessing        IntentStatus = "processing"
	IntentStatusSucceeded         IntentStatus = "succeeded"
	IntentStatusFailed            IntentStatus = "failed"
	IntentStatusRefunded          IntentStatus = "refunded"
	IntentStatusPartiallyRefunded IntentStatus = "partially_refunded"
)

var validIntentStatuses = []IntentStatus{
	IntentStatusRequiresAction,
	IntentStatusProcessing,
	IntentStatusSucceeded,
	IntentStatusFailed,
	IntentStatusRefunded,
	IntentStatusPartiallyRefunded,
}

func (s IntentStatus) String() string {
	return string(s)
}

func (s IntentStatus) IsValid() bool {
	return oneOf(s, validIntentStatuses)
}

func ParseIntentStatus(value string) (IntentStatus, error) {
	return parse("intent status", value, validIntentStatuses)
}

// IsFinal reports whether the processor will not move the intent again on its own.
func (s IntentStatus) IsFinal() bool {
	switch s {
	case IntentStatusSucceeded, IntentStatusFailed, IntentStatusRefunded, IntentStatusPartiallyRefunded:
		return true
	default:
		return false
	}
}
