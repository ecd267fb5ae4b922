package domain

// InsightsSummary is the pre-aggregated dashboard figure set for one tenant,
// computed from the local mirror so dashboard reads never hit the upstream
// API.
type InsightsSummary struct {
	TenantID          string             `json:"tenant_id"`
	PeriodDays        int                `json:"period_days"`
	TotalOrders       int64              `json:"total_orders"`
	TotalRevenue      float64            `json:"total_revenue"`
	TotalCustomers    int64              `json:"total_customers"`
	AverageOrderValue float64            `json:"average_order_value"`
	OrderStatus       map[string]int64   `json:"order_status"`
	SalesTrend        map[string]float64 `json:"sales_trend"`
}

// CustomerSpend ranks one customer by cumulative order value.
type CustomerSpend struct {
	CustomerID int64   `json:"customer_id"`
	FirstName  string  `json:"first_name"`
	LastName   string  `json:"last_name"`
	Email      string  `json:"email"`
	TotalSpent float64 `json:"total_spent"`
	Orders     int64   `json:"orders"`
}
