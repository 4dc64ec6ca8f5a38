// Package seed loads a partner registry from YAML. It backs PARTNER_SEED_FILE
// at server start and `beaconctl partners import`.
package seed

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"beacon/internal/jurisdiction"
	"beacon/internal/partner/models"
	"beacon/internal/partner/service"
	dErrors "beacon/pkg/domain-errors"
)

type File struct {
	Partners []Partner `yaml:"partners"`
}

type Partner struct {
	ID                 string              `yaml:"id"`
	Name               string              `yaml:"name"`
	WebhookURL         string              `yaml:"webhook_url"`
	APIKeyEnv          string              `yaml:"api_key_env"`
	Jurisdictions      []string            `yaml:"jurisdictions"`
	Priority           int                 `yaml:"priority"`
	Capabilities       []string            `yaml:"capabilities"`
	MandatoryReporting *MandatoryReporting `yaml:"mandatory_reporting"`
}

type MandatoryReporting struct {
	Protocol                 string                  `yaml:"protocol"`
	RequiresExtendedBlackout bool                    `yaml:"requires_extended_blackout"`
	AverageResponseTimeHours *float64                `yaml:"average_response_time_hours"`
	Jurisdictions            []jurisdiction.Coverage `yaml:"jurisdictions"`
}

// Parse decodes a seed file; unknown keys are errors so typos in
// capability blocks are caught before routing depends on them.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid partner seed file")
	}
	return &f, nil
}

func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read partner seed %s: %w", path, err)
	}
	return Parse(data)
}

// Requests converts seed entries to registration requests. Raw keys are
// read from the environment variable each entry names; they never live in
// the file.
func (f *File) Requests(getenv func(string) string) []service.RegisterRequest {
	out := make([]service.RegisterRequest, 0, len(f.Partners))
	for _, p := range f.Partners {
		req := service.RegisterRequest{
			ID:            p.ID,
			Name:          p.Name,
			WebhookURL:    p.WebhookURL,
			Jurisdictions: p.Jurisdictions,
			Priority:      p.Priority,
			Capabilities:  p.Capabilities,
		}
		if p.APIKeyEnv != "" {
			req.APIKey = getenv(p.APIKeyEnv)
		}
		if m := p.MandatoryReporting; m != nil {
			req.MandatoryReporting = &models.MandatoryReportingCapability{
				SupportedJurisdictions:   m.Jurisdictions,
				ReportingProtocol:        models.ReportingProtocol(m.Protocol),
				RequiresExtendedBlackout: m.RequiresExtendedBlackout,
				AverageResponseTimeHours: m.AverageResponseTimeHours,
			}
		}
		out = append(out, req)
	}
	return out
}

// Result reports one imported partner. GeneratedKey is set only when the
// seed did not supply a key.
type Result struct {
	PartnerID    string `json:"partnerId"`
	GeneratedKey string `json:"generatedKey,omitempty"`
	Skipped      bool   `json:"skipped"`
}

type Registrar interface {
	Register(ctx context.Context, req service.RegisterRequest) (*models.Partner, string, error)
}

// Apply registers each request. Already-registered partners are skipped so
// the seed can be re-applied on every start.
func Apply(ctx context.Context, reg Registrar, reqs []service.RegisterRequest) ([]Result, error) {
	results := make([]Result, 0, len(reqs))
	for _, req := range reqs {
		p, key, err := reg.Register(ctx, req)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeConflict) {
				results = append(results, Result{PartnerID: req.ID, Skipped: true})
				continue
			}
			return results, fmt.Errorf("register partner %s: %w", req.ID, err)
		}
		r := Result{PartnerID: p.ID.String()}
		if req.APIKey == "" {
			r.GeneratedKey = key
		}
		results = append(results, r)
	}
	return results, nil
}
