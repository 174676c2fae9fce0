// Package validate checks request payloads and reports problems per field, keyed by
// the JSON field name the client sent.
package validate

import (
	"net/mail"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/Genzhalo/idp-console/internal/model"
)

// Fields maps a JSON field name to a human readable message. A nil or empty value
// means the input is valid.
type Fields map[string]string

func (f Fields) set(field, message string) {
	if _, ok := f[field]; !ok {
		f[field] = message
	}
}

func (f Fields) orNil() Fields {
	if len(f) == 0 {
		return nil
	}
	return f
}

const (
	msgEmail      = "Email is invalid"
	msgPassword   = "Password is invalid"
	msgName       = "The name length should be min 1 symbols"
	msgLimit      = "Limit should be greater than 0"
	msgDuration   = "Time frame duration should be greater than 0"
	msgDate       = "Date is not valid"
	msgDateOrder  = "End date should be after start date"
	msgWindow     = "The window should be longer than one time frame"
	msgAlign      = "Start date should be a multiple of the time frame duration"
	msgFirstName  = "Ім'я містить заборонені символи"
	msgLastName   = "Прізвище містить заборонені символи"
	msgPhone      = "Номер телефону неправильний"
	msgPassport   = "Паспортні дані неправильні"
	msgRegion     = "Область є обов'язковою"
	msgIDPCode    = "Код ВПО не повинен перевищувати 32-ох символів"
	msgChildren   = "Кількість дітей не може бути від'ємною"
	msgStatus     = "Status is not valid"
	minPassword   = 6
	maxIDPCodeLen = 32
)

var (
	namePattern     = regexp.MustCompile("^([Є-Яа-яіїєёЁґҐ][Є-Яа-яіїєёЁґҐ'ʼ`-]{0,62}[Є-Яа-яіїєёЁґҐ])$")
	passportPattern = regexp.MustCompile(`^[Є-ЯЁҐ]{2}\d{6}$|^\d{9}$`)
	phonePattern    = regexp.MustCompile(`^(\+38)?\d{10}$`)
)

var regions = map[string]struct{}{
	"АР Крим":          {},
	"Вінницька":        {},
	"Волинська":        {},
	"Дніпропетровська": {},
	"Донецька":         {},
	"Житомирська":      {},
	"Закарпатська":     {},
	"Запорізька":       {},
	"ІваноФранківська": {},
	"Київська":         {},
	"Кіровоградська":   {},
	"Луганська":        {},
	"Львівська":        {},
	"Миколаївська":     {},
	"Одеська":          {},
	"Полтавська":       {},
	"Рівненська":       {},
	"Сумська":          {},
	"Тернопільська":    {},
	"Харківська":       {},
	"Херсонська":       {},
	"Хмельницька":      {},
	"Черкаська":        {},
	"Чернівецька":      {},
	"Чернігівська":     {},
}

func Credentials(email, password string) Fields {
	fields := Fields{}
	if !validEmail(email) {
		fields.set("email", msgEmail)
	}
	if utf8.RuneCountInString(password) < minPassword {
		fields.set("password", msgPassword)
	}
	return fields.orNil()
}

// Form checks a complete form about to be created.
func Form(form model.Form, now time.Time) Fields {
	fields := Fields{}
	checkFormName(fields, form.Name)
	checkLimit(fields, form.Limit)
	checkDuration(fields, form.TimeFrameDuration)
	checkNotPast(fields, "startDate", form.StartDate, now)
	checkNotPast(fields, "endDate", form.EndDate, now)
	checkWindow(fields, form)
	return fields.orNil()
}

// FormPatch checks the fields present in patch, then the window of merged, which is
// the stored form with patch applied.
func FormPatch(patch model.FormPatch, merged model.Form, now time.Time) Fields {
	fields := Fields{}
	if patch.Name != nil {
		checkFormName(fields, *patch.Name)
	}
	if patch.Limit != nil {
		checkLimit(fields, *patch.Limit)
	}
	if patch.TimeFrameDuration != nil {
		checkDuration(fields, *patch.TimeFrameDuration)
	}
	if patch.StartDate != nil {
		checkNotPast(fields, "startDate", *patch.StartDate, now)
	}
	if patch.EndDate != nil {
		checkNotPast(fields, "endDate", *patch.EndDate, now)
	}
	if patch.StartDate != nil || patch.EndDate != nil || patch.TimeFrameDuration != nil {
		checkWindow(fields, merged)
	}
	return fields.orNil()
}

func Respondent(respondent model.Respondent) Fields {
	fields := Fields{}
	checkName(fields, "firstName", respondent.FirstName, msgFirstName)
	checkName(fields, "lastName", respondent.LastName, msgLastName)
	checkPassport(fields, respondent.PassportID)
	checkPhone(fields, respondent.Phone)
	checkRegion(fields, respondent.Region)
	if respondent.IDPCode != nil {
		checkIDPCode(fields, *respondent.IDPCode)
	}
	checkChildren(fields, respondent.Children)
	return fields.orNil()
}

func RespondentPatch(patch model.RespondentPatch) Fields {
	fields := Fields{}
	if patch.FirstName != nil {
		checkName(fields, "firstName", *patch.FirstName, msgFirstName)
	}
	if patch.LastName != nil {
		checkName(fields, "lastName", *patch.LastName, msgLastName)
	}
	if patch.PassportID != nil {
		checkPassport(fields, *patch.PassportID)
	}
	if patch.Phone != nil {
		checkPhone(fields, *patch.Phone)
	}
	if patch.Region != nil {
		checkRegion(fields, *patch.Region)
	}
	if patch.IDPCode != nil {
		checkIDPCode(fields, *patch.IDPCode)
	}
	if patch.Children != nil {
		checkChildren(fields, *patch.Children)
	}
	return fields.orNil()
}

// SubmissionStatus parses a requested submission status.
func SubmissionStatus(value string) (model.SubmissionStatus, Fields) {
	status, err := model.ParseSubmissionStatus(value)
	if err != nil {
		return "", Fields{"status": msgStatus}
	}
	return status, nil
}

func validEmail(value string) bool {
	addr, err := mail.ParseAddress(value)
	return err == nil && addr.Address == value
}

func checkFormName(fields Fields, name string) {
	if utf8.RuneCountInString(name) < 1 {
		fields.set("name", msgName)
	}
}

func checkLimit(fields Fields, limit int) {
	if limit < 1 {
		fields.set("limit", msgLimit)
	}
}

func checkDuration(fields Fields, duration int) {
	if duration < 1 {
		fields.set("timeFrameDuration", msgDuration)
	}
}

func checkNotPast(fields Fields, field string, value, now time.Time) {
	if value.IsZero() || value.Before(now) {
		fields.set(field, msgDate)
	}
}

// checkWindow also requires the start to sit on a slot boundary counted from the Unix
// epoch. Arrival times are floored to such boundaries, so an unaligned start would let
// the first position land before the form opens.
func checkWindow(fields Fields, form model.Form) {
	if form.TimeFrameDuration > 0 && form.StartDate.Unix()%int64(form.TimeFrameDuration) != 0 {
		fields.set("startDate", msgAlign)
	}
	if !form.EndDate.After(form.StartDate) {
		fields.set("endDate", msgDateOrder)
		return
	}
	if form.TimeFrameDuration > 0 && form.EndDate.Sub(form.StartDate) <= time.Duration(form.TimeFrameDuration)*time.Second {
		fields.set("timeFrameDuration", msgWindow)
	}
}

func checkName(fields Fields, field, value, message string) {
	if !namePattern.MatchString(value) {
		fields.set(field, message)
	}
}

func checkPassport(fields Fields, value string) {
	if !passportPattern.MatchString(value) {
		fields.set("passportId", msgPassport)
	}
}

func checkPhone(fields Fields, value string) {
	if !phonePattern.MatchString(value) {
		fields.set("phone", msgPhone)
	}
}

func checkRegion(fields Fields, value string) {
	if _, ok := regions[value]; !ok {
		fields.set("region", msgRegion)
	}
}

func checkIDPCode(fields Fields, value string) {
	if len(value) > maxIDPCodeLen {
		fields.set("IDPCode", msgIDPCode)
	}
}

func checkChildren(fields Fields, value int) {
	if value < 0 {
		fields.set("children", msgChildren)
	}
}
