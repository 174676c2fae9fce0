package http

import (
	"time"

	"github.com/Genzhalo/idp-console/internal/model"
)

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type formRequest struct {
	Name              string    `json:"name"`
	Limit             int       `json:"limit"`
	TimeFrameDuration int       `json:"timeFrameDuration"`
	StartDate         time.Time `json:"startDate"`
	EndDate           time.Time `json:"endDate"`
	ExcludeFormIDs    []string  `json:"excludeFormIds"`
}

func (req formRequest) toModel() model.Form {
	return model.Form{
		Name:              req.Name,
		Limit:             req.Limit,
		TimeFrameDuration: req.TimeFrameDuration,
		StartDate:         req.StartDate,
		EndDate:           req.EndDate,
		ExcludeFormIDs:    req.ExcludeFormIDs,
	}
}

type formPatchRequest struct {
	Name              *string    `json:"name"`
	Limit             *int       `json:"limit"`
	TimeFrameDuration *int       `json:"timeFrameDuration"`
	StartDate         *time.Time `json:"startDate"`
	EndDate           *time.Time `json:"endDate"`
	ExcludeFormIDs    *[]string  `json:"excludeFormIds"`
}

func (req formPatchRequest) toModel() model.FormPatch {
	return model.FormPatch{
		Name:              req.Name,
		Limit:             req.Limit,
		TimeFrameDuration: req.TimeFrameDuration,
		StartDate:         req.StartDate,
		EndDate:           req.EndDate,
		ExcludeFormIDs:    req.ExcludeFormIDs,
	}
}

type formResponse struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Limit             int       `json:"limit"`
	Status            string    `json:"status"`
	TimeFrameDuration int       `json:"timeFrameDuration"`
	StartDate         time.Time `json:"startDate"`
	EndDate           time.Time `json:"endDate"`
	CreatedAt         time.Time `json:"createdAt"`
	ExcludeFormIDs    []string  `json:"excludeFormIds"`
}

func mapForm(form model.Form) formResponse {
	excludes := form.ExcludeFormIDs
	if excludes == nil {
		excludes = []string{}
	}
	return formResponse{
		ID:                form.ID,
		Name:              form.Name,
		Limit:             form.Limit,
		Status:            string(form.Status),
		TimeFrameDuration: form.TimeFrameDuration,
		StartDate:         form.StartDate,
		EndDate:           form.EndDate,
		CreatedAt:         form.CreatedAt,
		ExcludeFormIDs:    excludes,
	}
}

type respondentRequest struct {
	PassportID string  `json:"passportId"`
	IDPCode    *string `json:"IDPCode"`
	FirstName  string  `json:"firstName"`
	LastName   string  `json:"lastName"`
	Phone      string  `json:"phone"`
	Region     string  `json:"region"`
	Children   int     `json:"children"`
}

func (req respondentRequest) toModel() model.Respondent {
	return model.Respondent{
		PassportID: req.PassportID,
		IDPCode:    req.IDPCode,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Phone:      req.Phone,
		Region:     req.Region,
		Children:   req.Children,
	}
}

type respondentPatchRequest struct {
	PassportID *string `json:"passportId"`
	IDPCode    *string `json:"IDPCode"`
	FirstName  *string `json:"firstName"`
	LastName   *string `json:"lastName"`
	Phone      *string `json:"phone"`
	Region     *string `json:"region"`
	Children   *int    `json:"children"`
}

func (req respondentPatchRequest) toModel() model.RespondentPatch {
	return model.RespondentPatch{
		PassportID: req.PassportID,
		IDPCode:    req.IDPCode,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Phone:      req.Phone,
		Region:     req.Region,
		Children:   req.Children,
	}
}

type respondentResponse struct {
	ID         string    `json:"id"`
	PassportID string    `json:"passportId"`
	IDPCode    *string   `json:"IDPCode"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Phone      string    `json:"phone"`
	Region     string    `json:"region"`
	Children   int       `json:"children"`
	CreatedAt  time.Time `json:"createdAt"`
}

func mapRespondent(respondent model.Respondent) respondentResponse {
	return respondentResponse{
		ID:         respondent.ID,
		PassportID: respondent.PassportID,
		IDPCode:    respondent.IDPCode,
		FirstName:  respondent.FirstName,
		LastName:   respondent.LastName,
		Phone:      respondent.Phone,
		Region:     respondent.Region,
		Children:   respondent.Children,
		CreatedAt:  respondent.CreatedAt,
	}
}

// mergeRequest names the other respondent formId, matching what existing clients send.
type mergeRequest struct {
	OtherID string `json:"formId"`
}

type createSubmissionRequest struct {
	RespondentID string `json:"respondentId"`
}

type submissionStatusRequest struct {
	Status string `json:"status"`
}

type submissionResponse struct {
	ID          string             `json:"id"`
	Form        formResponse       `json:"form"`
	Respondent  respondentResponse `json:"respondent"`
	ArrivalDate time.Time          `json:"arrivalDate"`
	SubOrder    int                `json:"subOrder"`
	Status      string             `json:"status"`
	CreatedAt   time.Time          `json:"createdAt"`
}

func mapSubmission(sub model.Submission) submissionResponse {
	return submissionResponse{
		ID:          sub.ID,
		Form:        mapForm(sub.Form),
		Respondent:  mapRespondent(sub.Respondent),
		ArrivalDate: sub.ArrivalDate,
		SubOrder:    sub.SubOrder,
		Status:      string(sub.Status),
		CreatedAt:   sub.CreatedAt,
	}
}

type idResponse struct {
	ID string `json:"id"`
}

type emptyResponse struct{}
