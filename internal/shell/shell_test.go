package shell

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medsales/m/domain"
	"medsales/m/internal/app"
	"medsales/m/internal/rpc"
	"medsales/m/internal/session"
)

var fixedNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type backend struct {
	mu      sync.Mutex
	role    string
	expired bool
	// expireAfterLoad expires the session once the inventory was served.
	expireAfterLoad bool
	sales   []domain.SaleRequest
}

func reply(v any) []byte {
	b, _ := json.Marshal(map[string]any{"data": v})
	return b
}

func (b *backend) call(_ context.Context, req rpc.Request) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch req.FunctionName {
	case domain.FnValidateUser:
		var in domain.LoginRequest
		_ = json.Unmarshal(req.Data, &in)
		if in.Password != "secret" {
			return reply(domain.LoginResult{Message: "Invalid credentials"}), nil
		}
		return reply(domain.LoginResult{Success: true, Role: b.role, SessionID: "s1"}), nil
	}
	if b.expired {
		return []byte(`{"error":"Invalid session. Please log in again.","code":"SESSION_INVALID"}`), nil
	}
	switch req.FunctionName {
	case domain.FnGetInventoryData:
		b.expired = b.expireAfterLoad
		return reply(domain.InventoryResult{Success: true, Data: []domain.InventoryItem{
			{Row: 1, Name: "Paracetamol", UnitPrice: 3, CostPrice: 1.5, Stock: 100, ReorderLevel: 20, PurchaseDate: "2025-01-10"},
			{Row: 2, Name: "Amoxicillin", UnitPrice: 8, CostPrice: 4, Stock: 0, ReorderLevel: 10, PurchaseDate: "2025-03-05"},
		}}), nil
	case domain.FnSubmitSale:
		var in domain.SaleRequest
		_ = json.Unmarshal(req.Data, &in)
		b.sales = append(b.sales, in)
		return reply(domain.Result{Success: true, Message: "Sale recorded."}), nil
	}
	return reply(domain.Result{Success: true}), nil
}

func run(t *testing.T, be *backend, script ...string) string {
	t.Helper()
	ctrl := app.New(rpc.NewBridge(rpc.TransportFunc(be.call)), app.WithClock(func() time.Time { return fixedNow }))
	var out bytes.Buffer
	sh := New(ctrl, strings.NewReader(strings.Join(script, "\n")+"\n"), &out, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, sh.Run(context.Background()))
	return out.String()
}

func TestShell_loginAndViewInventory(t *testing.T) {
	out := run(t, &backend{role: domain.RoleCashier},
		"ama", "secret",
		"2", "", "",
		"X",
	)
	assert.Contains(t, out, "Welcome, ama (Cashier).")
	assert.Contains(t, out, "Paracetamol")
	assert.Contains(t, out, "Out of Stock")
	assert.Contains(t, out, "Your Shop's Worth as at 2025-06-01 is GHC150.00")
	assert.NotContains(t, out, "3: Add Item")
	assert.Contains(t, out, "Goodbye.")
}

func TestShell_rejectedLoginStaysOnLoginScreen(t *testing.T) {
	out := run(t, &backend{role: domain.RoleCashier}, "ama", "wrong", "x")
	assert.Contains(t, out, "Error: Invalid credentials")
	assert.Equal(t, 2, strings.Count(out, "=== Medicine Sales: Login ==="))
}

func TestShell_recordSale(t *testing.T) {
	be := &backend{role: domain.RoleCashier}
	out := run(t, be,
		"ama", "secret",
		"1", "?para", "Paracetamol", "2", "", "", "momo",
		"X",
	)
	assert.Contains(t, out, "Paracetamol (Stock: 100)")
	assert.NotContains(t, out, "Amoxicillin (Stock: 0)")
	assert.Contains(t, out, "Grand Total: GHC 6.00")
	assert.Contains(t, out, "Sale recorded.")

	require.Len(t, be.sales, 1)
	sale := be.sales[0]
	assert.Equal(t, "2025-06-01", sale.Date)
	assert.Equal(t, domain.PaymentMomo, sale.PaymentMethod)
	assert.InDelta(t, 6.0, sale.GrandTotal, 1e-9)
}

func TestShell_cashierCannotOpenManagerScreens(t *testing.T) {
	out := run(t, &backend{role: domain.RoleCashier}, "ama", "secret", "3", "X")
	assert.Contains(t, out, "Unknown choice.")
	assert.NotContains(t, out, "Unit price")
}

func TestShell_unknownMultiDigitChoice(t *testing.T) {
	for _, role := range []string{domain.RoleCashier, domain.RoleManager} {
		out := run(t, &backend{role: role}, "ama", "secret", "34", "X")
		assert.Equal(t, 1, strings.Count(out, "Unknown choice."), role)
		assert.NotContains(t, out, "Unit price", role)
	}
}

func TestShell_invalidSessionReturnsToLogin(t *testing.T) {
	be := &backend{role: domain.RoleManager, expireAfterLoad: true}
	ctrl := app.New(rpc.NewBridge(rpc.TransportFunc(be.call)))
	var out bytes.Buffer
	sh := New(ctrl, strings.NewReader("ama\nsecret\n9\n"), &out)
	require.NoError(t, sh.Run(context.Background()))

	assert.Contains(t, out.String(), "Welcome, ama (Manager).")
	assert.Contains(t, out.String(), "Error: Invalid session. Please log in again.")
	assert.Contains(t, out.String(), "You have been logged out.")
	assert.Equal(t, session.LoggedOut, ctrl.Session().State())
}
