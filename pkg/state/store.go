package state

import (
	"errors"

	"github.com/triadops/triad/pkg/types"
)

// ErrNotFound is returned when no deployment record exists under the
// requested name
var ErrNotFound = errors.New("deployment not found")

// Store defines the interface for deployment record storage
type Store interface {
	SaveDeployment(d *types.Deployment) error
	GetDeployment(name string) (*types.Deployment, error)
	ListDeployments() ([]*types.Deployment, error)
	DeleteDeployment(name string) error
	Close() error
}
