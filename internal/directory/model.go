package directory

import "errors"

// ErrNotFound reports that a lookup matched zero CRM rows. Distinct from a
// backend failure: callers can branch on it without string matching.
var ErrNotFound = errors.New("directory: customer not found")

// Channel is one reachable address of a customer.
type Channel struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Details is the free-form info block Frontline renders under a customer.
type Details struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// CustomerSummary is the normalized by-id lookup result.
type CustomerSummary struct {
	CustomerID  string    `json:"customer_id"`
	DisplayName string    `json:"display_name"`
	Channels    []Channel `json:"channels"`
	Details     Details   `json:"details"`
}

// CustomerRef is the compact form used in list/search results.
type CustomerRef struct {
	DisplayName string `json:"display_name"`
	CustomerID  string `json:"customer_id"`
}

// CustomerPage is one window of customers. NextPageToken is always
// pageSize + offset; callers detect exhaustion from a short page.
type CustomerPage struct {
	Customers     []CustomerRef `json:"customers"`
	Searchable    bool          `json:"searchable"`
	NextPageToken int           `json:"next_page_token"`
}
