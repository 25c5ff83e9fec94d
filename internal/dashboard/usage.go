package dashboard

import "github.com/mesh-intelligence/cypress/pkg/types"

// Usage reports how much of the free-tier folder allowance a workspace uses.
// Paid workspaces report Free false and no limit.
type Usage struct {
	Folders int     `json:"folders"`
	Limit   int     `json:"limit"`
	Percent float64 `json:"percent"`
	Free    bool    `json:"free"`
}

// PlanUsage computes usage for the workspace from the folders in the store.
func (s *Service) PlanUsage(sub *types.Subscription, workspaceID string) Usage {
	return ComputeUsage(sub, s.store.State().FolderCount(workspaceID))
}

// ComputeUsage derives Usage from a subscription and a folder count.
func ComputeUsage(sub *types.Subscription, folders int) Usage {
	if sub.Paid() {
		return Usage{Folders: folders}
	}
	return Usage{
		Folders: folders,
		Limit:   types.MaxFoldersFreePlan,
		Percent: float64(folders) / float64(types.MaxFoldersFreePlan) * 100,
		Free:    true,
	}
}
