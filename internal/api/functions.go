package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"medsales/m/domain"
	"medsales/m/internal/inventory"
	"medsales/m/internal/report"
	"medsales/m/internal/store"
)

func (h *Handler) registry() map[string]function {
	return map[string]function{
		domain.FnValidateUser:            h.validateUser,
		domain.FnGetInventoryData:        h.getInventoryData,
		domain.FnAddMedicine:             h.addMedicine,
		domain.FnEditMedicine:            h.editMedicine,
		domain.FnDeleteMedicine:          h.deleteMedicine,
		domain.FnSubmitSale:              h.submitSale,
		domain.FnDeleteLastSale:          h.deleteLastSale,
		domain.FnGetSalesReport:          h.getSalesReport,
		domain.FnGenerateSalesReportPDF:  h.exportReport(report.FormatPDF),
		domain.FnGenerateSalesReportXLSX: h.exportReport(report.FormatXLSX),
	}
}

func (h *Handler) getInventoryData(ctx context.Context, data json.RawMessage) (any, error) {
	var req domain.SessionRequest
	if err := decodeData(data, &req); err != nil {
		return nil, err
	}
	if _, err := h.authenticate(req.SessionID); err != nil {
		return nil, err
	}
	items, err := h.store.ListInventory(ctx)
	if err != nil {
		return nil, err
	}
	return domain.InventoryResult{Success: true, Data: items}, nil
}

func (h *Handler) addMedicine(ctx context.Context, data json.RawMessage) (any, error) {
	var req domain.ItemRequest
	if err := decodeData(data, &req); err != nil {
		return nil, err
	}
	p, err := h.authorizeManager(req.SessionID)
	if err != nil {
		return nil, err
	}
	item := req.Data
	item.Name = strings.TrimSpace(item.Name)
	if err := inventory.ValidateItem(item, nil, inventory.ModeAdd, h.now()); err != nil {
		return nil, err
	}
	if _, err := h.store.AddInventory(ctx, item); err != nil {
		return nil, err
	}
	h.log.Info("inventory item added", zap.String("name", item.Name), zap.String("by", p.Username))
	return domain.Result{Success: true, Message: "Item added successfully"}, nil
}

func (h *Handler) editMedicine(ctx context.Context, data json.RawMessage) (any, error) {
	var req domain.ItemRequest
	if err := decodeData(data, &req); err != nil {
		return nil, err
	}
	p, err := h.authorizeManager(req.SessionID)
	if err != nil {
		return nil, err
	}
	item := req.Data
	item.Name = strings.TrimSpace(item.Name)
	if item.Row <= 0 {
		return nil, badRequest("A valid row is required.")
	}
	if err := inventory.ValidateItem(item, nil, inventory.ModeEdit, h.now()); err != nil {
		return nil, err
	}
	if err := h.store.UpdateInventory(ctx, item); err != nil {
		return nil, err
	}
	h.log.Info("inventory item updated", zap.Int64("row", item.Row), zap.String("by", p.Username))
	return domain.Result{Success: true, Message: "Item updated successfully"}, nil
}

func (h *Handler) deleteMedicine(ctx context.Context, data json.RawMessage) (any, error) {
	var req domain.DeleteItemRequest
	if err := decodeData(data, &req); err != nil {
		return nil, err
	}
	p, err := h.authorizeManager(req.SessionID)
	if err != nil {
		return nil, err
	}
	if req.Row <= 0 {
		return nil, badRequest("A valid row is required.")
	}
	if err := h.store.DeleteInventory(ctx, req.Row); err != nil {
		return nil, err
	}
	h.log.Info("inventory item deleted", zap.Int64("row", req.Row), zap.String("by", p.Username))
	return domain.Result{Success: true, Message: "Item deleted successfully"}, nil
}

func (h *Handler) submitSale(ctx context.Context, data json.RawMessage) (any, error) {
	var req domain.SaleRequest
	if err := decodeData(data, &req); err != nil {
		return nil, err
	}
	p, err := h.authenticate(req.SessionID)
	if err != nil {
		return nil, err
	}
	live, err := h.store.ListInventory(ctx)
	if err != nil {
		return nil, err
	}
	if err := inventory.ValidateSale(req.Sale, live, h.now()); err != nil {
		return nil, err
	}
	stored, err := h.store.SubmitSale(ctx, req.Sale, p.Username)
	if err != nil {
		return nil, err
	}
	if expected := inventory.GrandTotal(req.Items); expected != req.GrandTotal {
		h.log.Warn("client grand total differs", zap.Float64("client", req.GrandTotal), zap.Float64("recorded", stored.GrandTotal))
	}
	h.log.Info("sale recorded", zap.Int64("sale", stored.ID), zap.Float64("total", stored.GrandTotal), zap.String("by", p.Username))
	return domain.Result{Success: true, Message: "Sale recorded successfully"}, nil
}

func (h *Handler) deleteLastSale(ctx context.Context, data json.RawMessage) (any, error) {
	var req domain.SessionRequest
	if err := decodeData(data, &req); err != nil {
		return nil, err
	}
	p, err := h.authorizeManager(req.SessionID)
	if err != nil {
		return nil, err
	}
	sale, err := h.store.DeleteLastSale(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &funcError{code: CodeNotFound, message: "No sales found to delete."}
	}
	if err != nil {
		return nil, err
	}
	h.log.Info("last sale deleted", zap.Int64("sale", sale.ID), zap.String("by", p.Username))
	return domain.Result{Success: true, Message: "Last sale deleted successfully"}, nil
}

func (h *Handler) loadReport(ctx context.Context, data json.RawMessage) (domain.SalesReport, error) {
	var req domain.ReportRequest
	if err := decodeData(data, &req); err != nil {
		return domain.SalesReport{}, err
	}
	if err := inventory.ValidateReportRange(req.StartDate, req.EndDate); err != nil {
		return domain.SalesReport{}, err
	}
	return h.store.SalesReport(ctx, req.StartDate, req.EndDate)
}

// getSalesReport takes no session id, matching the published surface.
func (h *Handler) getSalesReport(ctx context.Context, data json.RawMessage) (any, error) {
	rep, err := h.loadReport(ctx, data)
	if err != nil {
		return nil, err
	}
	h.log.Info("sales report served", zap.String("start", rep.StartDate), zap.String("end", rep.EndDate), zap.Int("lines", len(rep.Data)))
	return domain.ReportResult{Success: true, Data: rep.Data, Summary: rep.Summary}, nil
}

func (h *Handler) exportReport(format report.Format) function {
	return func(ctx context.Context, data json.RawMessage) (any, error) {
		rep, err := h.loadReport(ctx, data)
		if err != nil {
			return nil, err
		}
		name, err := h.reports.Write(rep, format)
		if err != nil {
			return nil, err
		}
		h.log.Info("sales report exported", zap.String("file", name))
		return domain.ExportResult{
			Success: true,
			URL:     strings.TrimRight(h.publicURL, "/") + "/reports/" + name,
			Message: "Report generated successfully",
		}, nil
	}
}
