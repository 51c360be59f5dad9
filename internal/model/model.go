// Package model contains the domain entities of the dispensary loyalty service.
package model

import "time"

// Role names a user's access level within a business.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

// User represents a loyalty program participant scoped to one business.
// Points is mutated only through the ledger operations in the repository,
// never by direct assignment.
type User struct {
	ID                 int64      `json:"id"`
	FirstName          string     `json:"fname"`
	LastName           string     `json:"lname"`
	Email              string     `json:"email"`
	DOB                string     `json:"dob"`
	Country            string     `json:"country"`
	Phone              string     `json:"phone"`
	PasswordHash       []byte     `json:"-"`
	Points             int64      `json:"points"`
	BusinessID         int64      `json:"business_id"`
	ReferredBy         *int64     `json:"referred_by,omitempty"`
	Role               Role       `json:"role"`
	AlleavesCustomerID *string    `json:"alleaves_customer_id,omitempty"`
	PushToken          *string    `json:"-"`
	AllowNotifications bool       `json:"allow_notifications"`
	Premium            bool       `json:"premium"`
	PremiumStart       *time.Time `json:"premium_start,omitempty"`
	PremiumEnd         *time.Time `json:"premium_end,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// Business is the tenant boundary that owns users and orders.
type Business struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	APIKey    string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// Order is a purchase created at checkout and settled by reconciliation.
// Complete and PointsAwarded are the idempotency markers: once both are set
// the order is terminal and reconciliation never touches the ledger again.
type Order struct {
	ID            int64       `json:"id"`
	UserID        int64       `json:"user_id"`
	EmployeeID    *int64      `json:"employee_id,omitempty"`
	PosOrderID    string      `json:"pos_order_id"`
	PointsAdd     int64       `json:"points_add"`
	PointsRedeem  int64       `json:"points_redeem"`
	PointsLocked  int64       `json:"points_locked"`
	TotalAmount   float64     `json:"total_amount"`
	BusinessID    int64       `json:"business_id"`
	Complete      bool        `json:"complete"`
	PointsAwarded bool        `json:"points_awarded"`
	Items         []OrderItem `json:"items,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// OrderItem is a single line of an order, cascade-deleted with it.
type OrderItem struct {
	ID       int64   `json:"id"`
	OrderID  int64   `json:"order_id"`
	ItemID   int64   `json:"item_id"`
	Title    string  `json:"title"`
	Brand    string  `json:"brand,omitempty"`
	Category string  `json:"category,omitempty"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// Referral tracks an invitation that converts when the referred person registers.
type Referral struct {
	ID            int64     `json:"id"`
	ReferrerID    int64     `json:"referrer_id"`
	ReferredEmail string    `json:"referred_email,omitempty"`
	ReferredPhone string    `json:"referred_phone,omitempty"`
	Converted     bool      `json:"referral_converted"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Session is an authenticated client session. The SessionID doubles as the
// bearer credential presented in the Authorization header.
type Session struct {
	SessionID    string    `json:"sessionId"`
	SessionToken string    `json:"-"`
	UserID       int64     `json:"userId"`
	BusinessID   int64     `json:"businessId"`
	CreatedAt    time.Time `json:"createdAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// NotificationStatus marks whether the user has seen a notification.
type NotificationStatus string

const (
	NotificationUnread NotificationStatus = "unread"
	NotificationRead   NotificationStatus = "read"
)

// Notification is a stored copy of a push message delivered to a user.
type Notification struct {
	ID        int64              `json:"id"`
	UserID    int64              `json:"userId"`
	Title     string             `json:"title"`
	Message   string             `json:"message"`
	Status    NotificationStatus `json:"status"`
	CreatedAt time.Time          `json:"createdAt"`
}

// Product is a catalog entry assembled from the POS inventory feed.
type Product struct {
	ID           int64   `json:"id"`
	PosProductID int64   `json:"posProductId"`
	Category     string  `json:"category"`
	Title        string  `json:"title"`
	Description  string  `json:"desc"`
	Brand        string  `json:"brand"`
	StrainType   string  `json:"strainType"`
	THC          *string `json:"thc"`
	Weight       string  `json:"weight"`
	Price        float64 `json:"price"`
	Quantity     int     `json:"quantity"`
	Image        string  `json:"image"`
}
