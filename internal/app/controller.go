// Package app owns the front end's state: the session and the inventory
// snapshot. Every user action goes through a Controller method, which
// validates locally, calls the backend once and refreshes what changed.
package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"medsales/m/domain"
	"medsales/m/internal/apperr"
	"medsales/m/internal/inventory"
	"medsales/m/internal/session"
)

// Invoker is the slice of the rpc bridge the controller needs.
type Invoker interface {
	InvokeInto(ctx context.Context, functionName string, data any, out any) error
}

// Controller coordinates the session, the snapshot and backend calls.
type Controller struct {
	rpc     Invoker
	session *session.Session
	now     func() time.Time
	log     *zap.Logger

	mu       sync.RWMutex
	snapshot []domain.InventoryItem

	busyMu sync.Mutex
	busy   map[string]bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithLogger sets the controller's logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Controller) {
		if log != nil {
			c.log = log
		}
	}
}

// New creates a logged out controller.
func New(rpc Invoker, opts ...Option) *Controller {
	c := &Controller{
		rpc:     rpc,
		session: session.New(),
		now:     time.Now,
		log:     zap.NewNop(),
		busy:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.session.OnLogout(func(reason session.Reason) {
		c.replaceSnapshot(nil)
		if reason == session.ReasonInvalidated {
			c.log.Warn("session invalidated by backend")
		}
	})
	return c
}

// Session exposes the session state for display.
func (c *Controller) Session() *session.Session {
	return c.session
}

// Login authenticates and loads the inventory. A failed inventory load
// does not undo the login unless the backend rejects the new session.
func (c *Controller) Login(ctx context.Context, username, password string) (domain.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.Session{}, apperr.Validation("username", "Please enter both username and password.")
	}
	done, err := c.acquire(domain.FnValidateUser)
	if err != nil {
		return domain.Session{}, err
	}
	defer done()

	if err := c.session.Begin(); err != nil {
		return domain.Session{}, apperr.Validation("session", capitalize(err.Error()))
	}
	var res domain.LoginResult
	err = c.rpc.InvokeInto(ctx, domain.FnValidateUser, domain.LoginRequest{Username: username, Password: password}, &res)
	if err == nil && (!res.Success || res.SessionID == "") {
		err = apperr.Backend(domain.FnValidateUser, orDefault(res.Message, "Invalid username or password."))
	}
	if err != nil {
		c.session.Fail()
		return domain.Session{}, err
	}
	if err := c.session.Succeed(res.Role, res.SessionID); err != nil {
		return domain.Session{}, err
	}
	c.log.Info("logged in", zap.String("username", username), zap.String("role", res.Role))

	if _, err := c.refresh(ctx); err != nil {
		c.log.Warn("initial inventory load failed", zap.Error(err))
		if apperr.Is(err, apperr.KindSessionInvalid) {
			return domain.Session{}, err
		}
	}
	return c.session.Current(), nil
}

// Logout ends the session and drops the snapshot.
func (c *Controller) Logout() {
	c.session.Logout()
}

// RefreshInventory replaces the snapshot with the backend's inventory.
func (c *Controller) RefreshInventory(ctx context.Context) ([]domain.InventoryItem, error) {
	done, err := c.acquire(domain.FnGetInventoryData)
	if err != nil {
		return nil, err
	}
	defer done()
	return c.refresh(ctx)
}

func (c *Controller) refresh(ctx context.Context) ([]domain.InventoryItem, error) {
	id, err := c.requireSession()
	if err != nil {
		return nil, err
	}
	var res domain.InventoryResult
	if err := c.call(ctx, domain.FnGetInventoryData, domain.SessionRequest{SessionID: id}, &res); err != nil {
		return nil, err
	}
	if err := c.check(domain.FnGetInventoryData, res.Success, res.Message, "Failed to load inventory."); err != nil {
		return nil, err
	}
	c.replaceSnapshot(res.Data)
	return c.Snapshot(), nil
}

// Snapshot returns a copy of the last fetched inventory.
func (c *Controller) Snapshot() []domain.InventoryItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.InventoryItem, len(c.snapshot))
	copy(out, c.snapshot)
	return out
}

func (c *Controller) replaceSnapshot(items []domain.InventoryItem) {
	fresh := make([]domain.InventoryItem, len(items))
	copy(fresh, items)
	c.mu.Lock()
	c.snapshot = fresh
	c.mu.Unlock()
}

// Search filters the snapshot by name substring and status label.
func (c *Controller) Search(nameSubstring, statusLabel string) ([]domain.InventoryItem, error) {
	status, err := inventory.ParseStatus(statusLabel)
	if err != nil {
		return nil, err
	}
	return inventory.Search(c.Snapshot(), nameSubstring, status), nil
}

// ShopWorth values the snapshot at cost.
func (c *Controller) ShopWorth() float64 {
	return inventory.ShopWorth(c.Snapshot())
}

// ShopWorthMessage is the valuation line for today.
func (c *Controller) ShopWorthMessage() string {
	return inventory.ShopWorthMessage(c.Snapshot(), inventory.Today(c.now()))
}

// SellableOptions lists the items that can go on a sale line.
func (c *Controller) SellableOptions() []inventory.SellableOption {
	return inventory.SellableOptions(c.Snapshot())
}

// Suggest lists item names starting with prefix.
func (c *Controller) Suggest(prefix string) []string {
	return inventory.Suggest(c.Snapshot(), prefix)
}

// NewSaleLine builds a sale line from the snapshot's price and stock.
func (c *Controller) NewSaleLine(name string, quantity int64) (domain.SaleLineItem, error) {
	return inventory.NewSaleLine(c.Snapshot(), name, quantity)
}

// AddMedicine creates an inventory item.
func (c *Controller) AddMedicine(ctx context.Context, item domain.InventoryItem) (string, error) {
	item.Name = strings.TrimSpace(item.Name)
	if err := inventory.ValidateItem(item, c.Snapshot(), inventory.ModeAdd, c.now()); err != nil {
		return "", err
	}
	return c.mutate(ctx, domain.FnAddMedicine, true, func(id string) any {
		return domain.ItemRequest{SessionID: id, Data: item}
	}, "Item added successfully.")
}

// EditMedicine updates the item at item.Row.
func (c *Controller) EditMedicine(ctx context.Context, item domain.InventoryItem) (string, error) {
	item.Name = strings.TrimSpace(item.Name)
	if item.Row <= 0 {
		return "", apperr.Validation("row", "Please select an item to update.")
	}
	if err := inventory.ValidateItem(item, c.Snapshot(), inventory.ModeEdit, c.now()); err != nil {
		return "", err
	}
	return c.mutate(ctx, domain.FnEditMedicine, true, func(id string) any {
		return domain.ItemRequest{SessionID: id, Data: item}
	}, "Item updated successfully.")
}

// DeleteMedicine removes the item at row.
func (c *Controller) DeleteMedicine(ctx context.Context, row int64) (string, error) {
	if row <= 0 {
		return "", apperr.Validation("row", "Please select an item to delete.")
	}
	return c.mutate(ctx, domain.FnDeleteMedicine, true, func(id string) any {
		return domain.DeleteItemRequest{SessionID: id, Row: row}
	}, "Item deleted successfully.")
}

// SubmitSale records sale. The grand total is recomputed from the lines.
func (c *Controller) SubmitSale(ctx context.Context, sale domain.Sale) (string, error) {
	sale.GrandTotal = inventory.GrandTotal(sale.Items)
	if err := inventory.ValidateSale(sale, c.Snapshot(), c.now()); err != nil {
		return "", err
	}
	return c.mutate(ctx, domain.FnSubmitSale, false, func(id string) any {
		return domain.SaleRequest{SessionID: id, Sale: sale}
	}, "Sale recorded successfully.")
}

// DeleteLastSale reverses the most recent sale.
func (c *Controller) DeleteLastSale(ctx context.Context) (string, error) {
	return c.mutate(ctx, domain.FnDeleteLastSale, true, func(id string) any {
		return domain.SessionRequest{SessionID: id}
	}, "Last sale deleted successfully.")
}

// mutate runs one state-changing call and refetches the snapshot after it.
func (c *Controller) mutate(ctx context.Context, fn string, manage bool, payload func(id string) any, fallback string) (string, error) {
	done, err := c.acquire(fn)
	if err != nil {
		return "", err
	}
	defer done()

	id, err := c.requireSession()
	if err != nil {
		return "", err
	}
	if manage && !c.session.CanManageInventory() {
		return "", apperr.Validation("role", "You do not have permission to perform this action.")
	}
	var res domain.Result
	if err := c.call(ctx, fn, payload(id), &res); err != nil {
		return "", err
	}
	if err := c.check(fn, res.Success, res.Message, "Operation failed."); err != nil {
		return "", err
	}
	if _, err := c.refresh(ctx); err != nil {
		c.log.Warn("inventory refresh failed", zap.String("after", fn), zap.Error(err))
	}
	return orDefault(res.Message, fallback), nil
}

// SalesReport fetches the report for [start, end].
func (c *Controller) SalesReport(ctx context.Context, start, end string) (domain.SalesReport, error) {
	if err := inventory.ValidateReportRange(start, end); err != nil {
		return domain.SalesReport{}, err
	}
	done, err := c.acquire(domain.FnGetSalesReport)
	if err != nil {
		return domain.SalesReport{}, err
	}
	defer done()
	return c.report(ctx, start, end)
}

func (c *Controller) report(ctx context.Context, start, end string) (domain.SalesReport, error) {
	if _, err := c.requireSession(); err != nil {
		return domain.SalesReport{}, err
	}
	var res domain.ReportResult
	if err := c.call(ctx, domain.FnGetSalesReport, domain.ReportRequest{StartDate: start, EndDate: end}, &res); err != nil {
		return domain.SalesReport{}, err
	}
	if err := c.check(domain.FnGetSalesReport, res.Success, res.Message, "Failed to generate report."); err != nil {
		return domain.SalesReport{}, err
	}
	return domain.SalesReport{StartDate: start, EndDate: end, Data: res.Data, Summary: res.Summary}, nil
}

// TodaysBreakdown summarises today's sales.
func (c *Controller) TodaysBreakdown(ctx context.Context) (domain.ReportSummary, error) {
	done, err := c.acquire("todaysBreakdown")
	if err != nil {
		return domain.ReportSummary{}, err
	}
	defer done()
	today := inventory.Today(c.now())
	rep, err := c.report(ctx, today, today)
	if err != nil {
		return domain.ReportSummary{}, err
	}
	return rep.Summary, nil
}

// ExportReportPDF asks the backend to render the report and returns its URL.
func (c *Controller) ExportReportPDF(ctx context.Context, start, end string) (string, error) {
	return c.export(ctx, domain.FnGenerateSalesReportPDF, start, end)
}

// ExportReportXLSX is ExportReportPDF for a spreadsheet.
func (c *Controller) ExportReportXLSX(ctx context.Context, start, end string) (string, error) {
	return c.export(ctx, domain.FnGenerateSalesReportXLSX, start, end)
}

func (c *Controller) export(ctx context.Context, fn, start, end string) (string, error) {
	if err := inventory.ValidateReportRange(start, end); err != nil {
		return "", err
	}
	done, err := c.acquire(fn)
	if err != nil {
		return "", err
	}
	defer done()
	if _, err := c.requireSession(); err != nil {
		return "", err
	}
	var res domain.ExportResult
	if err := c.call(ctx, fn, domain.ReportRequest{StartDate: start, EndDate: end}, &res); err != nil {
		return "", err
	}
	if err := c.check(fn, res.Success && res.URL != "", res.Message, "Failed to generate report."); err != nil {
		return "", err
	}
	return res.URL, nil
}

// call invokes fn and logs out when the backend rejects the session.
func (c *Controller) call(ctx context.Context, fn string, payload any, out any) error {
	err := c.rpc.InvokeInto(ctx, fn, payload, out)
	if apperr.Is(err, apperr.KindSessionInvalid) {
		c.session.Invalidate()
	}
	return err
}

// check turns a {success:false} result into an error.
func (c *Controller) check(fn string, success bool, message, fallback string) error {
	if success {
		return nil
	}
	message = orDefault(message, fallback)
	if isSessionMessage(message) {
		c.session.Invalidate()
		return apperr.SessionInvalid(fn, message)
	}
	return apperr.Backend(fn, message)
}

func (c *Controller) requireSession() (string, error) {
	id := c.session.ID()
	if c.session.State() != session.LoggedIn || id == "" {
		return "", apperr.Validation("session", "Please log in first.")
	}
	return id, nil
}

// acquire marks op as running. The returned func releases it.
func (c *Controller) acquire(op string) (func(), error) {
	c.busyMu.Lock()
	defer c.busyMu.Unlock()
	if c.busy[op] {
		return nil, apperr.Validation(op, "Request already in progress.")
	}
	c.busy[op] = true
	return func() {
		c.busyMu.Lock()
		delete(c.busy, op)
		c.busyMu.Unlock()
	}, nil
}

func isSessionMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "invalid session") || strings.Contains(lower, "session expired")
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
