// Package shell is the point-of-sale terminal: a line-oriented menu over
// app.Controller.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"medsales/m/domain"
	"medsales/m/internal/app"
	"medsales/m/internal/apperr"
	"medsales/m/internal/inventory"
	"medsales/m/internal/session"
)

// errQuit ends Run.
var errQuit = errors.New("quit")

// managerChoices are the menu entries shown only to inventory managers.
var managerChoices = map[string]bool{"3": true, "4": true, "5": true, "8": true}

// Shell reads commands from in and writes screens to out.
type Shell struct {
	ctrl       *app.Controller
	in         *bufio.Reader
	out        io.Writer
	now        func() time.Time
	downloader *http.Client
}

// Option configures a Shell.
type Option func(*Shell)

// WithClock replaces time.Now for default dates.
func WithClock(now func() time.Time) Option {
	return func(s *Shell) { s.now = now }
}

// WithDownloader sets the client used to save exported reports.
func WithDownloader(c *http.Client) Option {
	return func(s *Shell) { s.downloader = c }
}

// New builds a shell over ctrl.
func New(ctrl *app.Controller, in io.Reader, out io.Writer, opts ...Option) *Shell {
	s := &Shell{
		ctrl:       ctrl,
		in:         bufio.NewReader(in),
		out:        out,
		now:        time.Now,
		downloader: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run loops until the user exits or input ends.
func (s *Shell) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var err error
		if s.ctrl.Session().State() == session.LoggedIn {
			err = s.mainMenu(ctx)
		} else {
			err = s.loginScreen(ctx)
		}
		switch {
		case errors.Is(err, errQuit), errors.Is(err, io.EOF):
			s.println("Goodbye.")
			return nil
		case err != nil:
			s.report(err)
		}
	}
}

func (s *Shell) loginScreen(ctx context.Context) error {
	s.println("\n=== Medicine Sales: Login ===")
	username, err := s.readLine("Username (X to exit): ")
	if err != nil {
		return err
	}
	if strings.EqualFold(username, "x") {
		return errQuit
	}
	password, err := s.readLine("Password: ")
	if err != nil {
		return err
	}
	s.println("Logging in...")
	sess, err := s.ctrl.Login(ctx, username, password)
	if err != nil {
		return err
	}
	s.printf("Welcome, %s (%s).\n", username, sess.Role)
	return nil
}

func (s *Shell) mainMenu(ctx context.Context) error {
	manager := s.ctrl.Session().CanManageInventory()
	s.println("\n1: Record Sale")
	s.println("2: View Inventory")
	if manager {
		s.println("3: Add Item")
		s.println("4: Update Item")
		s.println("5: Delete Item")
	}
	s.println("6: Sales Report")
	s.println("7: Today's Breakdown")
	if manager {
		s.println("8: Delete Last Sale")
	}
	s.println("9: Refresh Inventory")
	s.println("0: Logout")
	s.println("X: Exit")
	choice, err := s.readLine("Enter choice: ")
	if err != nil {
		return err
	}

	choice = strings.ToUpper(choice)
	if !manager && managerChoices[choice] {
		s.println("Unknown choice.")
		return nil
	}
	switch choice {
	case "1":
		return s.recordSale(ctx)
	case "2":
		return s.viewInventory()
	case "3":
		return s.addItem(ctx)
	case "4":
		return s.updateItem(ctx)
	case "5":
		return s.deleteItem(ctx)
	case "6":
		return s.salesReport(ctx)
	case "7":
		return s.todaysBreakdown(ctx)
	case "8":
		return s.deleteLastSale(ctx)
	case "9":
		items, err := s.ctrl.RefreshInventory(ctx)
		if err != nil {
			return err
		}
		s.printf("Loaded %d items.\n", len(items))
		return nil
	case "0":
		s.ctrl.Logout()
		s.println("Logged out.")
		return nil
	case "X":
		return errQuit
	default:
		s.println("Unknown choice.")
		return nil
	}
}

func (s *Shell) recordSale(ctx context.Context) error {
	options := s.ctrl.SellableOptions()
	if len(options) == 0 {
		s.println("No items in stock.")
		return nil
	}
	s.println("\nAvailable items:")
	for _, o := range options {
		s.printf("  %s  GHC%.2f\n", o.Label(), o.UnitPrice)
	}

	var lines []domain.SaleLineItem
	for {
		name, err := s.readLine("Item name (blank to finish, ? prefix to search): ")
		if err != nil {
			return err
		}
		if name == "" {
			break
		}
		if strings.HasPrefix(name, "?") {
			s.printf("  %s\n", strings.Join(s.ctrl.Suggest(strings.TrimPrefix(name, "?")), ", "))
			continue
		}
		qty, err := s.readInt("Quantity: ")
		if err != nil {
			return err
		}
		line, err := s.ctrl.NewSaleLine(name, qty)
		if err != nil {
			s.report(err)
			continue
		}
		if line.Quantity != qty {
			s.printf("Quantity adjusted to %d.\n", line.Quantity)
		}
		lines = append(lines, line)
		s.printLines(lines)
	}
	if len(lines) == 0 {
		s.println("Sale cancelled.")
		return nil
	}

	date, err := s.readDefault("Date", inventory.Today(s.now()))
	if err != nil {
		return err
	}
	method, err := s.readDefault("Payment method (Cash/Momo)", string(domain.PaymentCash))
	if err != nil {
		return err
	}
	s.println("Submitting...")
	msg, err := s.ctrl.SubmitSale(ctx, domain.Sale{
		Date:          date,
		Items:         lines,
		PaymentMethod: parsePayment(method),
	})
	if err != nil {
		return err
	}
	s.println(msg)
	return nil
}

func (s *Shell) printLines(lines []domain.SaleLineItem) {
	for _, l := range lines {
		s.printf("  %-24s x%-4d @ GHC%.2f = GHC%.2f\n", l.Medicine, l.Quantity, l.UnitPrice, inventory.LineSubtotal(l))
	}
	s.printf("  Grand Total: GHC %.2f\n", inventory.GrandTotal(lines))
}

func (s *Shell) viewInventory() error {
	name, err := s.readLine("Search by name (blank for all): ")
	if err != nil {
		return err
	}
	status, err := s.readLine("Status filter (In Stock / Low Stock / Out of Stock, blank for all): ")
	if err != nil {
		return err
	}
	items, err := s.ctrl.Search(name, status)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		s.println("No items found.")
	}
	for _, it := range items {
		s.printf("[%d] %-24s Price: %.2f  Cost: %.2f  Stock: %d  Reorder: %d  Purchased: %s  %s\n",
			it.Row, it.Name, it.UnitPrice, it.CostPrice, it.Stock, it.ReorderLevel, it.PurchaseDate, inventory.StatusOf(it))
	}
	s.println(s.ctrl.ShopWorthMessage())
	return nil
}

func (s *Shell) readItem(base domain.InventoryItem) (domain.InventoryItem, error) {
	item := base
	var err error
	if item.Name, err = s.readDefault("Name", base.Name); err != nil {
		return item, err
	}
	if item.UnitPrice, err = s.readFloatDefault("Unit price", base.UnitPrice); err != nil {
		return item, err
	}
	if item.CostPrice, err = s.readFloatDefault("Cost price", base.CostPrice); err != nil {
		return item, err
	}
	if item.Stock, err = s.readIntDefault("Stock", base.Stock); err != nil {
		return item, err
	}
	if item.ReorderLevel, err = s.readIntDefault("Reorder level", base.ReorderLevel); err != nil {
		return item, err
	}
	def := base.PurchaseDate
	if def == "" {
		def = inventory.Today(s.now())
	}
	if item.PurchaseDate, err = s.readDefault("Purchase date", def); err != nil {
		return item, err
	}
	return item, nil
}

func (s *Shell) addItem(ctx context.Context) error {
	item, err := s.readItem(domain.InventoryItem{})
	if err != nil {
		return err
	}
	msg, err := s.ctrl.AddMedicine(ctx, item)
	if err != nil {
		return err
	}
	s.println(msg)
	return nil
}

func (s *Shell) pickItem() (domain.InventoryItem, bool, error) {
	name, err := s.readLine("Item name: ")
	if err != nil {
		return domain.InventoryItem{}, false, err
	}
	item, _, ok := inventory.FindByName(s.ctrl.Snapshot(), name)
	if !ok {
		s.println("Item not found.")
	}
	return item, ok, nil
}

func (s *Shell) updateItem(ctx context.Context) error {
	base, ok, err := s.pickItem()
	if err != nil || !ok {
		return err
	}
	item, err := s.readItem(base)
	if err != nil {
		return err
	}
	msg, err := s.ctrl.EditMedicine(ctx, item)
	if err != nil {
		return err
	}
	s.println(msg)
	return nil
}

func (s *Shell) deleteItem(ctx context.Context) error {
	item, ok, err := s.pickItem()
	if err != nil || !ok {
		return err
	}
	if yes, err := s.confirm(fmt.Sprintf("Delete %s? (y/n): ", item.Name)); err != nil || !yes {
		return err
	}
	msg, err := s.ctrl.DeleteMedicine(ctx, item.Row)
	if err != nil {
		return err
	}
	s.println(msg)
	return nil
}

func (s *Shell) deleteLastSale(ctx context.Context) error {
	if yes, err := s.confirm("Delete the most recent sale? (y/n): "); err != nil || !yes {
		return err
	}
	msg, err := s.ctrl.DeleteLastSale(ctx)
	if err != nil {
		return err
	}
	s.println(msg)
	return nil
}

func (s *Shell) salesReport(ctx context.Context) error {
	today := inventory.Today(s.now())
	start, err := s.readDefault("Start date", today)
	if err != nil {
		return err
	}
	end, err := s.readDefault("End date", today)
	if err != nil {
		return err
	}
	rep, err := s.ctrl.SalesReport(ctx, start, end)
	if err != nil {
		return err
	}
	if len(rep.Data) == 0 {
		s.println("No sales found for the selected period.")
	}
	for _, r := range rep.Data {
		s.printf("%s  %-24s %4d x %.2f = %.2f  profit %.2f  %s\n", r.Date, r.Medicine, r.Quantity, r.UnitPrice, r.Subtotal, r.Profit, r.PaymentMethod)
	}
	s.printSummary(rep.Summary)

	format, err := s.readLine("Export? (pdf/xlsx, blank to skip): ")
	if err != nil {
		return err
	}
	var link string
	switch strings.ToLower(format) {
	case "":
		return nil
	case "pdf":
		link, err = s.ctrl.ExportReportPDF(ctx, start, end)
	case "xlsx":
		link, err = s.ctrl.ExportReportXLSX(ctx, start, end)
	default:
		s.println("Unknown format.")
		return nil
	}
	if err != nil {
		return err
	}
	s.printf("Report ready: %s\n", link)
	path, err := s.readLine("Save to file (blank to skip): ")
	if err != nil || path == "" {
		return err
	}
	if err := s.download(ctx, link, path); err != nil {
		return err
	}
	s.printf("Saved %s.\n", path)
	return nil
}

func (s *Shell) download(ctx context.Context, link, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return err
	}
	resp, err := s.downloader.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: %s", resp.Status)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (s *Shell) todaysBreakdown(ctx context.Context) error {
	summary, err := s.ctrl.TodaysBreakdown(ctx)
	if err != nil {
		return err
	}
	s.printf("Today's Breakdown (%s)\n", inventory.Today(s.now()))
	s.printSummary(summary)
	return nil
}

func (s *Shell) printSummary(sum domain.ReportSummary) {
	s.printf("Sales Cash: GHC%.2f\n", sum.CashTotal)
	s.printf("Sales Momo: GHC%.2f\n", sum.MomoTotal)
	s.printf("Total Sales: GHC%.2f\n", sum.TotalSales)
	s.printf("Total Profit: GHC%.2f\n", sum.TotalProfit)
}

// report prints err; a rejected session also says the user was logged out.
func (s *Shell) report(err error) {
	s.printf("Error: %s\n", apperr.UserMessage(err, "Something went wrong."))
	if apperr.Is(err, apperr.KindSessionInvalid) {
		s.println("You have been logged out.")
	}
}

func (s *Shell) readLine(prompt string) (string, error) {
	fmt.Fprint(s.out, prompt)
	line, err := s.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (s *Shell) readDefault(label, def string) (string, error) {
	v, err := s.readLine(fmt.Sprintf("%s [%s]: ", label, def))
	if err != nil {
		return "", err
	}
	if v == "" {
		return def, nil
	}
	return v, nil
}

func (s *Shell) readInt(prompt string) (int64, error) {
	for {
		v, err := s.readLine(prompt)
		if err != nil {
			return 0, err
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return n, nil
		}
		s.println("Please enter a whole number.")
	}
}

func (s *Shell) readIntDefault(label string, def int64) (int64, error) {
	for {
		v, err := s.readDefault(label, strconv.FormatInt(def, 10))
		if err != nil {
			return 0, err
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return n, nil
		}
		s.println("Please enter a whole number.")
	}
}

func (s *Shell) readFloatDefault(label string, def float64) (float64, error) {
	for {
		v, err := s.readDefault(label, strconv.FormatFloat(def, 'f', 2, 64))
		if err != nil {
			return 0, err
		}
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f, nil
		}
		s.println("Please enter a number.")
	}
}

func (s *Shell) confirm(prompt string) (bool, error) {
	v, err := s.readLine(prompt)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(v, "y") || strings.EqualFold(v, "yes"), nil
}

func (s *Shell) println(a ...any) {
	fmt.Fprintln(s.out, a...)
}

func (s *Shell) printf(format string, a ...any) {
	fmt.Fprintf(s.out, format, a...)
}

func parsePayment(v string) domain.PaymentMethod {
	for _, m := range []domain.PaymentMethod{domain.PaymentCash, domain.PaymentMomo} {
		if strings.EqualFold(strings.TrimSpace(v), string(m)) {
			return m
		}
	}
	return domain.PaymentMethod(v)
}
