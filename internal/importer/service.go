package importer

import (
	"io"

	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/merenda/internal/apperr"
	"github.com/MrJamesThe3rd/merenda/internal/contract"
	"github.com/MrJamesThe3rd/merenda/internal/importer/bidsheet"
)

type Service struct {
	importers map[Format]Importer
}

func NewService(logger *zap.Logger) *Service {
	return &Service{
		importers: map[Format]Importer{
			FormatBidSheet: bidsheet.NewParser(logger),
		},
	}
}

// Import parses contract line items from r. An empty format means
// FormatBidSheet.
func (s *Service) Import(format Format, r io.Reader) ([]contract.LineItemSpec, error) {
	if format == "" {
		format = FormatBidSheet
	}

	importer, ok := s.importers[format]
	if !ok {
		return nil, apperr.Validation("unknown import format: %s", format)
	}

	return importer.Parse(r)
}
