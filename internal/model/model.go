package model

import "time"

type User struct {
	ID           string
	Email        string
	PasswordAlg  string
	PasswordHash string
	CreatedAt    time.Time
}

type UserToken struct {
	Token   string
	UsedFor string
}

type Form struct {
	ID                string
	Name              string
	Limit             int
	Status            FormStatus
	TimeFrameDuration int
	StartDate         time.Time
	EndDate           time.Time
	CreatedAt         time.Time
	ExcludeFormIDs    []string
}

type FormPatch struct {
	Name              *string
	Limit             *int
	Status            *FormStatus
	TimeFrameDuration *int
	StartDate         *time.Time
	EndDate           *time.Time
	ExcludeFormIDs    *[]string
}

func (p FormPatch) Empty() bool {
	return p.Name == nil && p.Limit == nil && p.Status == nil && p.TimeFrameDuration == nil &&
		p.StartDate == nil && p.EndDate == nil && p.ExcludeFormIDs == nil
}

type Respondent struct {
	ID         string
	PassportID string
	IDPCode    *string
	FirstName  string
	LastName   string
	Phone      string
	Region     string
	Children   int
	CreatedAt  time.Time
}

type RespondentPatch struct {
	PassportID *string
	IDPCode    *string
	FirstName  *string
	LastName   *string
	Phone      *string
	Region     *string
	Children   *int
}

func (p RespondentPatch) Empty() bool {
	return p.PassportID == nil && p.IDPCode == nil && p.FirstName == nil && p.LastName == nil &&
		p.Phone == nil && p.Region == nil && p.Children == nil
}

type RespondentFilter struct {
	Name       string
	PassportID string
}

// Submission carries the form and respondent as they were when the row was read.
type Submission struct {
	ID          string
	Form        Form
	Respondent  Respondent
	ArrivalDate time.Time
	SubOrder    int
	Status      SubmissionStatus
	CreatedAt   time.Time
}

type NewSubmission struct {
	ArrivalDate time.Time
	SubOrder    int
	Status      SubmissionStatus
}

type SubmissionFilter struct {
	FormID       string
	RespondentID string
}
