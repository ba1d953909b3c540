package salesforce

// Session is an authenticated query handle bound to one CRM principal.
// Sessions are acquired per request and must not be cached across requests:
// the principal varies per call.
type Session struct {
	InstanceURL string
	AccessToken string
	Username    string
}

// Record is one row returned by a query or search. Salesforce returns rows as
// loosely typed JSON objects, including a nested object per parent relationship.
type Record map[string]any

// StringField returns the named field as a string, or "" when absent or null.
func (r Record) StringField(name string) string {
	v, ok := r[name]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// SubField returns a field of a parent relationship, e.g. Account.Name.
func (r Record) SubField(relationship, name string) string {
	v, ok := r[relationship]
	if !ok || v == nil {
		return ""
	}
	nested, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	return Record(nested).StringField(name)
}

// QueryResult mirrors the /query response envelope.
type QueryResult struct {
	TotalSize int      `json:"totalSize"`
	Done      bool     `json:"done"`
	Records   []Record `json:"records"`
}

// SearchResult mirrors the /search response envelope.
type SearchResult struct {
	SearchRecords []Record `json:"searchRecords"`
}

// SaveResult mirrors the response of a record create.
type SaveResult struct {
	ID      string      `json:"id"`
	Success bool        `json:"success"`
	Errors  []SaveError `json:"errors"`
}

// SaveError is one field-level failure inside a SaveResult.
type SaveError struct {
	StatusCode string   `json:"statusCode"`
	Message    string   `json:"message"`
	Fields     []string `json:"fields"`
}
