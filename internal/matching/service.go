package matching

import (
	"context"
	"fmt"

	"github.com/MrJamesThe3rd/merenda/internal/contract"
)

// ContractLister supplies the active contracts to match against.
type ContractLister interface {
	ListActive(ctx context.Context) ([]*contract.Contract, error)
}

type Service struct {
	contracts ContractLister
	engine    *Engine
}

func NewService(contracts ContractLister, engine *Engine) *Service {
	return &Service{contracts: contracts, engine: engine}
}

// Suggest matches a single name against the current active contracts.
func (s *Service) Suggest(ctx context.Context, name string) (Result, error) {
	contracts, err := s.contracts.ListActive(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("listing active contracts: %w", err)
	}

	return s.engine.Match(Normalize(name), contracts), nil
}
