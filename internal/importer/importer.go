package importer

import (
	"io"

	"github.com/MrJamesThe3rd/merenda/internal/contract"
)

// Format identifies a supplier spreadsheet layout family.
type Format string

const (
	FormatBidSheet Format = "bidsheet"
)

type Importer interface {
	Parse(r io.Reader) ([]contract.LineItemSpec, error)
}
