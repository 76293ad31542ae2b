package domain

import (
	"time"

	"github.com/google/uuid"
)

type JobKind string

const (
	JobWebhooksInstaller         JobKind = "webhooks_installer"
	JobScriptTagsInstaller       JobKind = "script_tags_installer"
	JobStorefrontTokensInstaller JobKind = "storefront_tokens_installer"
	JobWebhook                   JobKind = "webhook"
	JobAfterAuthenticate         JobKind = "after_authenticate"
)

// Job is one unit of background work for a shop.
// Name carries the webhook topic or the after-authenticate job name.
type Job struct {
	ID         string    `json:"id"`
	Kind       JobKind   `json:"kind"`
	Shop       string    `json:"shop"`
	Name       string    `json:"name,omitempty"`
	Payload    []byte    `json:"payload,omitempty"`
	Attempts   int       `json:"attempts"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// NewJob creates a job with a fresh id
func NewJob(kind JobKind, shop, name string, payload []byte) *Job {
	return &Job{
		ID:         uuid.NewString(),
		Kind:       kind,
		Shop:       shop,
		Name:       name,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Tags labels the job for logs
func (j *Job) Tags() []string {
	tags := []string{"shop:" + j.Shop, "kind:" + string(j.Kind)}
	if j.Name != "" {
		tags = append(tags, "name:"+j.Name)
	}
	return tags
}
