// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package catalog loads segment, journey, incentive and delivery channel
// definitions from YAML and seeds them into the store.
package catalog

import (
	"fmt"
	"os"

	"github.com/AccelByte/extend-marketing-automation/pkg/action"
	"github.com/AccelByte/extend-marketing-automation/pkg/audience"
	"github.com/AccelByte/extend-marketing-automation/pkg/common"
	"github.com/AccelByte/extend-marketing-automation/pkg/incentive"
	"github.com/AccelByte/extend-marketing-automation/pkg/journey"
	"gopkg.in/yaml.v3"
)

// Catalog is the complete set of definitions of one deployment.
type Catalog struct {
	Segments   []audience.Segment    `yaml:"segments" validate:"dive"`
	Journeys   []journey.Journey     `yaml:"journeys" validate:"dive"`
	Incentives []incentive.Incentive `yaml:"incentives" validate:"dive"`
	// Channels configures the actions that deliver email, inapp and push nodes.
	Channels []action.ActionConfig `yaml:"channels" validate:"dive"`
}

// Load reads a catalog from a YAML file.
// Supports environment variable expansion in the form ${VAR_NAME} or ${VAR_NAME:default}.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	expanded := common.ExpandEnv(string(data))

	var c Catalog
	if err := yaml.Unmarshal([]byte(expanded), &c); err != nil {
		return nil, fmt.Errorf("failed to parse YAML catalog: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	return &c, nil
}

// Segment returns the segment with the given ID.
func (c *Catalog) Segment(id string) (*audience.Segment, bool) {
	for i := range c.Segments {
		if c.Segments[i].ID == id {
			return &c.Segments[i], true
		}
	}
	return nil, false
}
