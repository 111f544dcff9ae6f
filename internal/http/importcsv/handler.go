package importcsv

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/merenda/internal/apperr"
	"github.com/MrJamesThe3rd/merenda/internal/contract"
	"github.com/MrJamesThe3rd/merenda/internal/http/respond"
	"github.com/MrJamesThe3rd/merenda/internal/importer"
)

const maxUploadBytes = 10 << 20

type Handler struct {
	importSvc *importer.Service
	ledger    *contract.Ledger
	logger    *zap.Logger
}

func NewHandler(importSvc *importer.Service, ledger *contract.Ledger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Handler{importSvc: importSvc, ledger: ledger, logger: logger}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.importSheet)
}

type lineItemResponse struct {
	ID                 uuid.UUID       `json:"id"`
	Description        string          `json:"description"`
	Unit               string          `json:"unit"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	ContractedQuantity decimal.Decimal `json:"contracted_quantity"`
	AcquiredQuantity   decimal.Decimal `json:"acquired_quantity"`
}

type importResponse struct {
	ContractID   uuid.UUID          `json:"contract_id"`
	Number       string             `json:"number"`
	SupplierName string             `json:"supplier_name"`
	Imported     int                `json:"imported"`
	LineItems    []lineItemResponse `json:"line_items"`
}

// importSheet registers a contract whose line items come from an uploaded
// bid sheet. Header fields travel as form values next to the file.
func (h *Handler) importSheet(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respond.Error(w, h.logger, apperr.Wrap(apperr.CodeValidation, err, "failed to parse form"))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		respond.Error(w, h.logger, apperr.Validation("file field is required"))
		return
	}
	defer file.Close()

	startDate, err := formDate(r, "start_date")
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	endDate, err := formDate(r, "end_date")
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	items, err := h.importSvc.Import(importer.Format(r.FormValue("format")), file)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	c, err := h.ledger.RegisterContract(r.Context(), contract.Spec{
		Number:       r.FormValue("number"),
		SupplierID:   r.FormValue("supplier_id"),
		SupplierName: r.FormValue("supplier_name"),
		StartDate:    startDate,
		EndDate:      endDate,
		LineItems:    items,
	})
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	resp := importResponse{
		ContractID:   c.ID,
		Number:       c.Number,
		SupplierName: c.SupplierName,
		Imported:     len(c.LineItems),
		LineItems:    make([]lineItemResponse, 0, len(c.LineItems)),
	}

	for _, li := range c.LineItems {
		resp.LineItems = append(resp.LineItems, lineItemResponse{
			ID:                 li.ID,
			Description:        li.Description,
			Unit:               li.Unit,
			UnitPrice:          li.UnitPrice,
			ContractedQuantity: li.ContractedQuantity,
			AcquiredQuantity:   li.AcquiredQuantity,
		})
	}

	respond.JSON(w, h.logger, http.StatusCreated, resp)
}

func formDate(r *http.Request, field string) (time.Time, error) {
	raw := strings.TrimSpace(r.FormValue(field))
	if raw == "" {
		return time.Time{}, nil
	}

	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, apperr.Wrap(apperr.CodeValidation, err, "%s must be YYYY-MM-DD", field)
	}

	return t, nil
}
