package export

import (
	"archive/zip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/merenda/internal/export"
	"github.com/MrJamesThe3rd/merenda/internal/http/respond"
	"github.com/MrJamesThe3rd/merenda/internal/order"
)

type Handler struct {
	svc    *export.Service
	logger *zap.Logger
}

func NewHandler(svc *export.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.metadata)
	r.Post("/download", h.download)
}

type exportRequest struct {
	ContractID *uuid.UUID `json:"contract_id,omitempty"`
}

type orderResponse struct {
	ID           uuid.UUID       `json:"id"`
	ContractID   uuid.UUID       `json:"contract_id"`
	SupplierName string          `json:"supplier_name"`
	IssueDate    time.Time       `json:"issue_date"`
	TotalValue   decimal.Decimal `json:"total_value"`
	Lines        int             `json:"lines"`
	File         string          `json:"file"`
}

type exportMetadataResponse struct {
	Orders    []orderResponse `json:"orders"`
	EmailBody string          `json:"email_body"`
}

// run exports the requested orders into a fresh temporary directory. The
// caller removes the directory.
func (h *Handler) run(w http.ResponseWriter, r *http.Request) (string, []export.Item, bool) {
	var req exportRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return "", nil, false
	}

	tmpDir, err := os.MkdirTemp("", "merenda-export-*")
	if err != nil {
		respond.Error(w, h.logger, fmt.Errorf("creating export directory: %w", err))
		return "", nil, false
	}

	items, err := h.svc.Export(r.Context(), order.ListFilter{ContractID: req.ContractID}, tmpDir)
	if err != nil {
		os.RemoveAll(tmpDir)
		respond.Error(w, h.logger, err)

		return "", nil, false
	}

	return tmpDir, items, true
}

func (h *Handler) metadata(w http.ResponseWriter, r *http.Request) {
	tmpDir, items, ok := h.run(w, r)
	if !ok {
		return
	}
	defer os.RemoveAll(tmpDir)

	resp := exportMetadataResponse{
		Orders:    make([]orderResponse, 0, len(items)),
		EmailBody: h.svc.GenerateEmailBody(items),
	}

	for _, item := range items {
		resp.Orders = append(resp.Orders, orderResponse{
			ID:           item.Order.ID,
			ContractID:   item.Order.ContractID,
			SupplierName: item.Order.SupplierName,
			IssueDate:    item.Order.IssueDate,
			TotalValue:   item.Order.TotalValue,
			Lines:        len(item.Order.Lines),
			File:         filepath.Base(item.FilePath),
		})
	}

	respond.JSON(w, h.logger, http.StatusOK, resp)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	tmpDir, items, ok := h.run(w, r)
	if !ok {
		return
	}
	defer os.RemoveAll(tmpDir)

	emailBody := h.svc.GenerateEmailBody(items)
	if err := os.WriteFile(filepath.Join(tmpDir, "email_body.txt"), []byte(emailBody), 0o644); err != nil {
		respond.Error(w, h.logger, fmt.Errorf("writing email body: %w", err))
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=\"pedidos_%s.zip\"", time.Now().Format("20060102")))

	zipWriter := zip.NewWriter(w)
	defer zipWriter.Close()

	err := filepath.Walk(tmpDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}

		relPath, _ := filepath.Rel(tmpDir, path)

		zf, err := zipWriter.Create(relPath)
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(zf, f)

		return err
	})
	if err != nil {
		h.logger.Error("failed to create zip", zap.Error(err))
	}
}
