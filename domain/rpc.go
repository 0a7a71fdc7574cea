package domain

// Remote function names served by the backend.
const (
	FnValidateUser            = "validateUser"
	FnGetInventoryData        = "getInventoryData"
	FnAddMedicine             = "addMedicine"
	FnEditMedicine            = "editMedicine"
	FnDeleteMedicine          = "deleteMedicine"
	FnSubmitSale              = "submitSale"
	FnDeleteLastSale          = "deleteLastSale"
	FnGetSalesReport          = "getSalesReport"
	FnGenerateSalesReportPDF  = "generateSalesReportPDF"
	FnGenerateSalesReportXLSX = "generateSalesReportXLSX"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResult struct {
	Success   bool   `json:"success"`
	Role      string `json:"role,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message,omitempty"`
}

// SessionRequest carries only the session id.
type SessionRequest struct {
	SessionID string `json:"sessionId"`
}

type InventoryResult struct {
	Success bool            `json:"success"`
	Data    []InventoryItem `json:"data"`
	Message string          `json:"message,omitempty"`
}

type ItemRequest struct {
	SessionID string        `json:"sessionId"`
	Data      InventoryItem `json:"data"`
}

type DeleteItemRequest struct {
	SessionID string `json:"sessionId"`
	Row       int64  `json:"row"`
}

// SaleRequest is a Sale with the session id alongside its fields.
type SaleRequest struct {
	SessionID string `json:"sessionId"`
	Sale
}

type ReportRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type ReportResult struct {
	Success bool          `json:"success"`
	Data    []SaleRecord  `json:"data"`
	Summary ReportSummary `json:"summary"`
	Message string        `json:"message,omitempty"`
}

type ExportResult struct {
	Success bool   `json:"success"`
	URL     string `json:"url,omitempty"`
	Message string `json:"message,omitempty"`
}

// Result is the reply of every mutating function.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
