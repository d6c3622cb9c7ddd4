// internal/service/campaign_service.go
package service

import (
	"strings"

	appErrors "github.com/wanzami/mailblast-backend/internal/errors"
	"github.com/wanzami/mailblast-backend/internal/model"
	"github.com/wanzami/mailblast-backend/internal/repository"
)

// CampaignService owns campaign CRUD around the dispatch pipeline.
type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	TemplateRepo repository.TemplateRepositoryInterface
	LedgerRepo   repository.LedgerRepositoryInterface
}

type CampaignInput struct {
	Name          string `json:"name"`
	Subject       string `json:"subject"`
	Body          string `json:"body"`
	TemplateID    *int   `json:"template_id"`
	SubscriberIDs []int  `json:"subscriber_ids"`
}

// Create builds a draft campaign. A referenced template fills in subject and
// body when the input leaves them blank. An explicit subscriber id list links
// those recipients up front; dispatch snapshots the full audience later
// either way.
func (s *CampaignService) Create(in CampaignInput) (*model.Campaign, error) {
	if in.TemplateID != nil {
		tmpl, err := s.TemplateRepo.GetByID(*in.TemplateID)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(in.Subject) == "" {
			in.Subject = tmpl.Subject
		}
		if strings.TrimSpace(in.Body) == "" {
			in.Body = tmpl.Body
		}
	}
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Subject) == "" || strings.TrimSpace(in.Body) == "" {
		return nil, appErrors.NewValidation("missing required fields: name, subject, body")
	}

	campaign := &model.Campaign{
		Name:       in.Name,
		Subject:    in.Subject,
		Body:       in.Body,
		TemplateID: in.TemplateID,
		Status:     model.CampaignStatusDraft,
	}
	if err := s.CampaignRepo.Create(campaign); err != nil {
		return nil, err
	}

	if len(in.SubscriberIDs) > 0 {
		if _, err := s.LedgerRepo.LinkSubscribers(campaign.ID, in.SubscriberIDs); err != nil {
			return nil, err
		}
	}
	return campaign, nil
}

func (s *CampaignService) List() ([]*model.CampaignSummary, error) {
	return s.CampaignRepo.List()
}

func (s *CampaignService) Get(id int) (*model.Campaign, error) {
	return s.CampaignRepo.GetByID(id)
}

func (s *CampaignService) Update(id int, in CampaignInput) (*model.Campaign, error) {
	campaign, err := s.CampaignRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(in.Name) != "" {
		campaign.Name = in.Name
	}
	if strings.TrimSpace(in.Subject) != "" {
		campaign.Subject = in.Subject
	}
	if strings.TrimSpace(in.Body) != "" {
		campaign.Body = in.Body
	}
	if in.TemplateID != nil {
		if _, err := s.TemplateRepo.GetByID(*in.TemplateID); err != nil {
			return nil, err
		}
		campaign.TemplateID = in.TemplateID
	}

	if err := s.CampaignRepo.Update(campaign); err != nil {
		return nil, err
	}
	return campaign, nil
}

// Delete removes the campaign and its ledger links. Queue entries are left
// to drain; completed and failed leftovers go with the retention trim.
func (s *CampaignService) Delete(id int) error {
	if _, err := s.CampaignRepo.GetByID(id); err != nil {
		return err
	}
	if err := s.LedgerRepo.Unlink(id); err != nil {
		return err
	}
	return s.CampaignRepo.Delete(id)
}
