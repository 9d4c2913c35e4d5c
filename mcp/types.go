package mcp

// Shapes das respostas do upstream que o dashboard repassa. O formato
// interno do MCP além disso é tratado como opaco.

type Coupon struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ImageURL   string `json:"imageUrl,omitempty"`
	ExpiryDate string `json:"expiryDate"` // yyyy-MM-dd
	Status     string `json:"status"`
}

type CouponList struct {
	Coupons []Coupon `json:"coupons"`
	Total   int      `json:"total"`
	Page    int      `json:"page"`
}

type Campaign struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ImageURL     string `json:"imageUrl,omitempty"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	IsSubscribed bool   `json:"isSubscribed"`
}

type CampaignList struct {
	Campaigns []Campaign `json:"campaigns"`
	Date      string     `json:"date"`
}

type AutoClaimResult struct {
	Success bool   `json:"success"`
	Claimed int    `json:"claimed"`
	Message string `json:"message"`
}

type TimeInfo struct {
	Timestamp int64  `json:"timestamp"`
	Formatted string `json:"formatted"`
	Year      int    `json:"year"`
	Month     int    `json:"month"`
	Day       int    `json:"day"`
}
