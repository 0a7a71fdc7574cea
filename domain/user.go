package domain

type User struct {
	ID        int64  `json:"id" db:"id"`
	Username  string `json:"username" db:"username"`
	Password  string `json:"password,omitempty" db:"password"`
	Role      string `json:"role" db:"role"`
	CreatedAt string `json:"created_at,omitempty" db:"created_at"`
}

// Roles known to the system. Admin and Manager may change inventory.
const (
	RoleAdmin   = "Admin"
	RoleManager = "Manager"
	RoleCashier = "Cashier"
)

// Session identifies an authenticated user for subsequent backend calls.
type Session struct {
	Role      string `json:"role"`
	SessionID string `json:"sessionId"`
}
