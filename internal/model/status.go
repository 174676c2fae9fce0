package model

import "fmt"

type FormStatus string

const (
	FormDraft FormStatus = "draft"
	FormOpen  FormStatus = "open"
	FormClose FormStatus = "close"
)

func ParseFormStatus(value string) (FormStatus, error) {
	switch FormStatus(value) {
	case FormDraft, FormOpen, FormClose:
		return FormStatus(value), nil
	default:
		return "", fmt.Errorf("unknown form status %q", value)
	}
}

type SubmissionStatus string

const (
	SubmissionReceived  SubmissionStatus = "received"
	SubmissionConfirmed SubmissionStatus = "confirmed"
	SubmissionCompleted SubmissionStatus = "completed"
)

func ParseSubmissionStatus(value string) (SubmissionStatus, error) {
	switch SubmissionStatus(value) {
	case SubmissionReceived, SubmissionConfirmed, SubmissionCompleted:
		return SubmissionStatus(value), nil
	default:
		return "", fmt.Errorf("unknown submission status %q", value)
	}
}
