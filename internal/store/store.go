package store

import "github.com/yourorg/testgen/pkg/types"

type Store interface {
	CreateRun(surface, stage, model string) (*types.Run, error)
	GetRun(id string) (*types.Run, error)
	FinishRun(run *types.Run) error
	ListRuns(surface string) ([]types.Run, error)
	DeleteRun(id string) error

	SaveResults(runID string, results []types.ScenarioResult) error
	GetResults(runID string) ([]types.ScenarioResult, error)

	SaveResponse(cache *types.ResponseCache) error
	GetResponses(surface, model string) ([]types.ResponseCache, error)
	ClearResponses(surface string) error

	Close() error
}
