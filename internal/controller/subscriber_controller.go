// internal/controller/subscriber_controller.go
package controller

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/wanzami/mailblast-backend/internal/model"
	"github.com/wanzami/mailblast-backend/internal/repository"
)

type SubscriberController struct {
	Repo repository.SubscriberRepositoryInterface
}

func (c *SubscriberController) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	search := r.URL.Query().Get("search")

	subscribers, total, err := c.Repo.List(search, (page-1)*limit, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"subscribers": subscribers,
		"total":       total,
		"page":        page,
		"limit":       limit,
	})
}

// Upload batch-upserts subscribers keyed by email. This backs the CSV import.
func (c *SubscriberController) Upload(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Subscribers []model.Subscriber `json:"subscribers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if len(body.Subscribers) == 0 {
		writeError(w, http.StatusBadRequest, "no subscribers provided")
		return
	}

	// Dedupe by email within the batch; a multi-row upsert cannot touch the
	// same row twice.
	seen := map[string]bool{}
	subs := make([]model.Subscriber, 0, len(body.Subscribers))
	for _, s := range body.Subscribers {
		email := strings.ToLower(strings.TrimSpace(s.Email))
		if email == "" || seen[email] {
			continue
		}
		seen[email] = true
		s.Email = email
		subs = append(subs, s)
	}
	if len(subs) == 0 {
		writeError(w, http.StatusBadRequest, "no valid subscriber emails provided")
		return
	}

	inserted, err := c.Repo.UpsertBatch(subs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"inserted": inserted})
}

// Delete unsubscribes by id; the subscriber's ledger rows cascade with it.
func (c *SubscriberController) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.URL.Query().Get("id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "subscriber id required")
		return
	}
	if err := c.Repo.Delete(id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "subscriber removed",
	})
}
