package domain

// SaleRecord is one line of a sales report.
type SaleRecord struct {
	Date          string  `db:"sale_date" json:"date"`
	Medicine      string  `db:"medicine" json:"medicine"`
	Quantity      int64   `db:"quantity" json:"quantity"`
	UnitPrice     float64 `db:"unit_price" json:"unitPrice"`
	Subtotal      float64 `db:"subtotal" json:"subtotal"`
	Profit        float64 `db:"profit" json:"profit"`
	PaymentMethod string  `db:"payment_method" json:"paymentMethod"`
}

// ReportSummary aggregates a report's rows.
type ReportSummary struct {
	CashTotal   float64 `json:"cashTotal"`
	MomoTotal   float64 `json:"momoTotal"`
	TotalSales  float64 `json:"totalSales"`
	TotalProfit float64 `json:"totalProfit"`
}

// SalesReport covers every sale line dated within [StartDate, EndDate].
type SalesReport struct {
	StartDate string        `json:"startDate"`
	EndDate   string        `json:"endDate"`
	Data      []SaleRecord  `json:"data"`
	Summary   ReportSummary `json:"summary"`
}
