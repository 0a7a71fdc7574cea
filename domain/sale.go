package domain

// PaymentMethod is how a sale was paid.
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "Cash"
	PaymentMomo PaymentMethod = "Momo"
)

// Valid reports whether m is one of the accepted payment methods.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCash || m == PaymentMomo
}

// SaleLineItem references an inventory item by name. UnitPrice is the price
// captured when the line was built, not a live link.
type SaleLineItem struct {
	Medicine  string  `json:"medicine"`
	Quantity  int64   `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

// Sale is built once on the client and sent to the backend as is.
type Sale struct {
	Date          string         `json:"date"`
	Items         []SaleLineItem `json:"items"`
	PaymentMethod PaymentMethod  `json:"paymentMethod"`
	GrandTotal    float64        `json:"grandTotal"`
}

// StoredSale is a persisted sale header.
type StoredSale struct {
	ID            int64   `db:"id" json:"id"`
	SaleDate      string  `db:"sale_date" json:"date"`
	PaymentMethod string  `db:"payment_method" json:"paymentMethod"`
	GrandTotal    float64 `db:"grand_total" json:"grandTotal"`
	Username      string  `db:"username" json:"username"`
	CreatedAt     string  `db:"created_at" json:"createdAt"`
}

// StoredSaleItem is a persisted sale line with the cost captured at sale time.
type StoredSaleItem struct {
	ID          int64   `db:"id" json:"id"`
	SaleID      int64   `db:"sale_id" json:"saleId"`
	InventoryID *int64  `db:"inventory_id" json:"inventoryId,omitempty"`
	Medicine    string  `db:"medicine" json:"medicine"`
	Quantity    int64   `db:"quantity" json:"quantity"`
	UnitPrice   float64 `db:"unit_price" json:"unitPrice"`
	CostPrice   float64 `db:"cost_price" json:"costPrice"`
	Subtotal    float64 `db:"subtotal" json:"subtotal"`
}
