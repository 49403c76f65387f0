package audience

import (
	"context"

	"github.com/AccelByte/extend-marketing-automation/pkg/rule"
)

// Snapshot is the evaluable attribute record of one customer, produced fresh for
// each evaluation pass.
type Snapshot struct {
	CustomerID     string          `json:"customerId"`
	OrganizationID string          `json:"organizationId"`
	Attributes     rule.Attributes `json:"attributes"`
}

// SnapshotLoader supplies the snapshots of one organization. An empty location
// list means every location.
type SnapshotLoader interface {
	LoadSnapshots(ctx context.Context, organizationID string, locationIDs []string) ([]Snapshot, error)
}
