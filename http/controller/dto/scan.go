package dto

import (
	"fmt"
	"net/url"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/autonmap/scan-orchestrator/entity"
)

const (
	MaxTargets     = 50
	MaxNotesLength = 512
)

// Restricted so the filter can never smuggle extra engine arguments.
var portsPattern = regexp.MustCompile(`^[0-9,-]+$`)

type CreateScanRequestDTO struct {
	Targets        []string `json:"targets" binding:"required"`
	Profile        string   `json:"profile" binding:"required"`
	Ports          *string  `json:"ports,omitempty"`
	TimingTemplate *string  `json:"timing_template,omitempty"`
	Notes          *string  `json:"notes,omitempty"`
	CallbackURL    *string  `json:"callback_url,omitempty"`
	Tags           []string `json:"tags,omitempty"`
}

// Validate enforces the submission contract. Anything rejected here never
// reaches the database or the queue.
func (r *CreateScanRequestDTO) Validate() error {
	if len(r.Targets) == 0 {
		return fmt.Errorf("targets must not be empty")
	}
	if len(r.Targets) > MaxTargets {
		return fmt.Errorf("at most %d targets per scan", MaxTargets)
	}
	if !entity.ValidProfile(r.Profile) {
		return fmt.Errorf("unsupported scan profile %q", r.Profile)
	}
	if r.Ports != nil && *r.Ports != "" && !portsPattern.MatchString(*r.Ports) {
		return fmt.Errorf("ports filter may contain only digits, commas and hyphens")
	}
	if r.TimingTemplate != nil && *r.TimingTemplate != "" && !entity.ValidTimingTemplate(*r.TimingTemplate) {
		return fmt.Errorf("timing template must be T0 through T5")
	}
	if r.Notes != nil && utf8.RuneCountInString(*r.Notes) > MaxNotesLength {
		return fmt.Errorf("notes must be at most %d characters", MaxNotesLength)
	}
	if r.CallbackURL != nil && *r.CallbackURL != "" {
		u, err := url.Parse(*r.CallbackURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("callback_url must be a valid http(s) URL")
		}
	}
	return nil
}

// Timing returns the requested timing template, defaulting to nmap's
// normal timing.
func (r *CreateScanRequestDTO) Timing() string {
	if r.TimingTemplate != nil && *r.TimingTemplate != "" {
		return *r.TimingTemplate
	}
	return entity.DefaultTimingTemplate
}

// ScanAcceptedDTO is the asynchronous-acceptance response: the scan is
// queued, not done.
type ScanAcceptedDTO struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Profile   string    `json:"profile"`
	Targets   []string  `json:"targets"`
	CreatedAt time.Time `json:"created_at"`
}
