package entity

import "errors"

type TranscriptionRequest struct {
	MediaURL  string `json:"MediaUrl0" validate:"required,url"`
	MessageID string `json:"MessageSid" validate:"required"`
}

type TranscriptionResult struct {
	Transcript string
	StorageURI string
}

// StepStatus is the result of one record patch.
type StepStatus string

const (
	StepUpdated  StepStatus = "updated"
	StepNotFound StepStatus = "not_found"
	StepFailed   StepStatus = "failed"
)

type StepOutcome struct {
	Status StepStatus `json:"status"`
	Error  string     `json:"error,omitempty"`

	err error
}

func NewStepOutcome(matched bool, err error) StepOutcome {
	switch {
	case err != nil:
		return StepOutcome{Status: StepFailed, Error: err.Error(), err: err}
	case matched:
		return StepOutcome{Status: StepUpdated}
	default:
		return StepOutcome{Status: StepNotFound}
	}
}

func (o StepOutcome) Err() error { return o.err }

// UpdateOutcome reports each of the three record patches of one transcription.
type UpdateOutcome struct {
	Message     StepOutcome `json:"messages"`
	FlowHistory StepOutcome `json:"flow_history"`
	Contact     StepOutcome `json:"contacts"`
}

func (o UpdateOutcome) Failed() bool {
	return o.Message.Status == StepFailed ||
		o.FlowHistory.Status == StepFailed ||
		o.Contact.Status == StepFailed
}

// Err joins the errors of every failed step, nil when none failed.
func (o UpdateOutcome) Err() error {
	return errors.Join(o.Message.err, o.FlowHistory.err, o.Contact.err)
}

type TranscriptionResponse struct {
	Message string        `json:"message"`
	Status  int           `json:"status"`
	Updates UpdateOutcome `json:"updates"`
}

// SignpostingOption describes one support organisation sent by the flow service.
// Text fields may be empty; directory entries often lack an email or postcode.
type SignpostingOption struct {
	CommunityGroup   *string  `json:"community_group,omitempty"`
	LocationScope    string   `json:"location_scope"`
	CategoryTags     []string `json:"category_tags" validate:"required"`
	DescriptionShort string   `json:"description_short"`
	DescriptionLong  *string  `json:"description_long,omitempty"`
	Postcode         string   `json:"postcode"`
	AreaCovered      string   `json:"area_covered"`
	ExternalURL      string   `json:"external_url"`
	Email            string   `json:"email"`
	Name             string   `json:"name"`
	OrganizationName string   `json:"organizationName"`
}

type SignpostingRequest struct {
	Options  []SignpostingOption `json:"options" validate:"required,dive"`
	Language string              `json:"language" validate:"required"`
	Category string              `json:"category" validate:"required"`
}

type SignpostingResponse struct {
	Message string   `json:"message"`
	Data    []string `json:"data"`
}

type QuestionRequest struct {
	UserMessage string `json:"user_message" validate:"required"`
}

type QuestionResponse struct {
	Message string  `json:"message"`
	Data    *string `json:"data"`
}
