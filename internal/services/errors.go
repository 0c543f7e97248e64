package services

import "fmt"

// ValidationError describes input a step could not accept
type ValidationError struct {
	Step   Step
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input at step %s: %s", e.Step, e.Reason)
}

// FinalizeError wraps a persistence failure while creating a listing
type FinalizeError struct {
	ChatID string
	Err    error
}

func (e *FinalizeError) Error() string {
	return fmt.Sprintf("finalize listing for chat %s: %v", e.ChatID, e.Err)
}

func (e *FinalizeError) Unwrap() error { return e.Err }

// DeliveryError records a notification that could not be sent to one recipient
type DeliveryError struct {
	ChannelID string
	ListingID uint
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s (listing %d): %v", e.ChannelID, e.ListingID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
