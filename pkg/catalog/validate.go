package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AccelByte/extend-marketing-automation/pkg/action"
	"github.com/AccelByte/extend-marketing-automation/pkg/canvas"
	"github.com/AccelByte/extend-marketing-automation/pkg/journey"
	"github.com/AccelByte/extend-marketing-automation/pkg/service"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

var validate = validator.New()

// Validate checks the catalog for structural errors: missing or duplicate
// IDs, invalid segment rules, unusable journey graphs and dangling segment
// references. Every problem is reported at once.
func (c *Catalog) Validate() error {
	var errs []string

	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			errs = append(errs, fmt.Sprintf("%s: failed on '%s'", fe.Namespace(), fe.Tag()))
		}
	}

	segments := make(map[string]bool)
	for _, s := range c.Segments {
		if segments[s.ID] {
			errs = append(errs, fmt.Sprintf("duplicate segment ID: %s", s.ID))
		}
		segments[s.ID] = true
		for _, e := range s.Validate() {
			errs = append(errs, fmt.Sprintf("segment %s: %s", s.ID, e))
		}
	}

	journeys := make(map[string]bool)
	for i := range c.Journeys {
		j := &c.Journeys[i]
		if journeys[j.ID] {
			errs = append(errs, fmt.Sprintf("duplicate journey ID: %s", j.ID))
		}
		journeys[j.ID] = true

		switch j.Status {
		case "", journey.StatusDraft, journey.StatusActive:
		default:
			errs = append(errs, fmt.Sprintf("journey %s: status must be DRAFT or ACTIVE, got %s", j.ID, j.Status))
		}
		if j.SegmentID != "" && !segments[j.SegmentID] {
			errs = append(errs, fmt.Sprintf("journey %s references unknown segment: %s", j.ID, j.SegmentID))
		}
		// Drafts may be incomplete; active journeys must pass activation checks.
		if j.Status == journey.StatusActive {
			for _, e := range canvas.Validate(j.Graph) {
				errs = append(errs, fmt.Sprintf("journey %s: %s", j.ID, e))
			}
			for _, e := range j.ValidateSettings() {
				errs = append(errs, fmt.Sprintf("journey %s: %s", j.ID, e))
			}
		}
	}

	incentives := make(map[string]bool)
	for _, inc := range c.Incentives {
		if incentives[inc.ID] {
			errs = append(errs, fmt.Sprintf("duplicate incentive ID: %s", inc.ID))
		}
		incentives[inc.ID] = true
		if !segments[inc.SegmentID] {
			errs = append(errs, fmt.Sprintf("incentive %s references unknown segment: %s", inc.ID, inc.SegmentID))
		}
		if inc.Schedule != "" {
			if _, err := cron.ParseStandard(inc.Schedule); err != nil {
				errs = append(errs, fmt.Sprintf("incentive %s: invalid schedule %q: %v", inc.ID, inc.Schedule, err))
			}
		}
	}

	channels := make(map[string]bool)
	for _, ch := range c.Channels {
		if channels[ch.ID] {
			errs = append(errs, fmt.Sprintf("duplicate channel action ID: %s", ch.ID))
		}
		channels[ch.ID] = true
	}

	if len(errs) > 0 {
		return service.NewValidationError("catalog.validate", errs)
	}
	return nil
}

// ValidateWiring checks the catalog against the running process. It catches:
// - channel actions whose type has no registered factory
// - channel node types used by active journeys that no enabled action serves
func ValidateWiring(c *Catalog) error {
	var errs []string

	served := make(map[canvas.NodeType]bool)
	for _, ch := range c.Channels {
		if !action.IsRegisteredType(ch.Type) {
			errs = append(errs, fmt.Sprintf("channel action '%s' has unregistered type %s", ch.ID, ch.Type))
		}
		if !ch.Enabled {
			continue
		}
		for _, t := range ch.Channels {
			served[t] = true
		}
	}

	for _, j := range c.Journeys {
		if j.Status != journey.StatusActive {
			continue
		}
		for _, n := range j.Graph.Nodes {
			if n.Type.IsChannel() && !served[n.Type] {
				errs = append(errs, fmt.Sprintf("journey '%s' node '%s' uses %s but no enabled channel action serves it", j.ID, n.ID, n.Type))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("catalog wiring validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
