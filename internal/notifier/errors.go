package notifier

import "fmt"

// DeliveryError is a failed send of one notification to one recipient.
type DeliveryError struct {
	Kind      string // "warning" or "clear"
	Recipient string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s to %s: %v", e.Kind, e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
