// internal/errors/errors.go
package appErrors

import "fmt"

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrTemplateNotFound covers campaigns referencing a missing template as well
// as direct template lookups.
type ErrTemplateNotFound struct {
	TemplateID int
}

func (e *ErrTemplateNotFound) Error() string {
	return fmt.Sprintf("template with ID %d not found", e.TemplateID)
}

func NewTemplateNotFound(id int) error {
	return &ErrTemplateNotFound{TemplateID: id}
}

// ErrInvalidCampaignState is returned when an operation is not allowed for the
// campaign's current lifecycle status, e.g. dispatching an already-sent one.
type ErrInvalidCampaignState struct {
	CampaignID int
	Status     string
}

func (e *ErrInvalidCampaignState) Error() string {
	return fmt.Sprintf("campaign %d cannot be sent in status %q", e.CampaignID, e.Status)
}

func NewInvalidCampaignState(id int, status string) error {
	return &ErrInvalidCampaignState{CampaignID: id, Status: status}
}

// ErrValidation marks bad request input so the HTTP layer can answer 400.
type ErrValidation struct {
	Msg string
}

func (e *ErrValidation) Error() string {
	return e.Msg
}

func NewValidation(msg string) error {
	return &ErrValidation{Msg: msg}
}
