package directory

import (
	"context"
	"fmt"

	"github.com/wolfman30/frontline-crm-sync/internal/salesforce"
	"github.com/wolfman30/frontline-crm-sync/pkg/logging"
)

type crmAPI interface {
	Query(ctx context.Context, sess *salesforce.Session, soql string) (*salesforce.QueryResult, error)
	Search(ctx context.Context, sess *salesforce.Session, sosl string) (*salesforce.SearchResult, error)
}

// Service resolves customer identities against the CRM. Every method takes
// the per-request session explicitly; the service holds no credentials.
type Service struct {
	crm    crmAPI
	logger *logging.Logger
}

func NewService(crm crmAPI, logger *logging.Logger) *Service {
	if crm == nil {
		panic("directory: crm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{crm: crm, logger: logger.Component("directory")}
}

// GetByID performs an exact-match lookup on the CRM identifier. Zero rows is
// ErrNotFound, never a fault.
func (s *Service) GetByID(ctx context.Context, sess *salesforce.Session, customerID string) (*CustomerSummary, error) {
	soql := fmt.Sprintf(
		"SELECT Id, Name, Phone, Email, Title, Account.Name FROM Contact WHERE Id = %s LIMIT 1",
		salesforce.QuoteString(customerID),
	)
	result, err := s.crm.Query(ctx, sess, soql)
	if err != nil {
		return nil, fmt.Errorf("directory: get customer %s: %w", customerID, err)
	}
	if len(result.Records) == 0 {
		return nil, ErrNotFound
	}
	record := result.Records[0]

	accountName := record.SubField("Account", "Name")
	if accountName == "" {
		accountName = "Unknown Company"
	}
	phone := record.StringField("Phone")
	return &CustomerSummary{
		CustomerID:  record.StringField("Id"),
		DisplayName: record.StringField("Name"),
		Channels: []Channel{
			{Type: "sms", Value: phone},
			{Type: "whatsapp", Value: "whatsapp:" + phone},
			{Type: "email", Value: record.StringField("Email")},
		},
		Details: Details{
			Title:   "Information",
			Content: accountName + " - " + record.StringField("Title"),
		},
	}, nil
}

// List returns customers ordered by display name, windowed by offset and
// pageSize. A backend failure degrades to an empty page but the error is
// still returned so the caller can report it.
func (s *Service) List(ctx context.Context, sess *salesforce.Session, pageSize, offset int) (*CustomerPage, error) {
	page := emptyPage(pageSize, offset)
	soql := fmt.Sprintf(
		"SELECT Id, Name FROM Contact ORDER BY Name ASC LIMIT %d OFFSET %d",
		pageSize, offset,
	)
	result, err := s.crm.Query(ctx, sess, soql)
	if err != nil {
		s.logger.Error("customer list query failed", "error", err)
		return page, fmt.Errorf("directory: list customers: %w", err)
	}
	for _, record := range result.Records {
		page.Customers = append(page.Customers, CustomerRef{
			DisplayName: record.StringField("Name"),
			CustomerID:  record.StringField("Id"),
		})
	}
	return page, nil
}

// Search runs a prefix search on customer name, constrained to customers
// owned by workerIdentity. The query and identity are escaped before they
// reach the search expression.
func (s *Service) Search(ctx context.Context, sess *salesforce.Session, workerIdentity, query string, pageSize, offset int) (*CustomerPage, error) {
	page := emptyPage(pageSize, offset)
	sosl := fmt.Sprintf(
		"FIND {%s*} IN NAME FIELDS RETURNING Contact(Id, Name WHERE Owner.Username = %s LIMIT %d OFFSET %d)",
		salesforce.EscapeSOSL(query), salesforce.QuoteString(workerIdentity), pageSize, offset,
	)
	result, err := s.crm.Search(ctx, sess, sosl)
	if err != nil {
		s.logger.Error("customer search failed", "error", err, "worker", workerIdentity)
		return page, fmt.Errorf("directory: search customers: %w", err)
	}
	for _, record := range result.SearchRecords {
		page.Customers = append(page.Customers, CustomerRef{
			DisplayName: record.StringField("Name"),
			CustomerID:  record.StringField("Id"),
		})
	}
	return page, nil
}

// FindOwnerByNumber resolves the CRM user whose mobile number matches,
// most recently modified first. An empty identity with a nil error means no
// user owns that number.
func (s *Service) FindOwnerByNumber(ctx context.Context, sess *salesforce.Session, number string) (string, error) {
	soql := fmt.Sprintf(
		"SELECT Username FROM User WHERE MobilePhone = %s ORDER BY LastModifiedDate DESC LIMIT 1",
		salesforce.QuoteString(number),
	)
	result, err := s.crm.Query(ctx, sess, soql)
	if err != nil {
		return "", fmt.Errorf("directory: find owner by number: %w", err)
	}
	if len(result.Records) == 0 {
		return "", nil
	}
	return result.Records[0].StringField("Username"), nil
}

// FindCustomerByNumber resolves a customer by phone, most recently modified
// first. A nil ref with a nil error means no customer has that number.
func (s *Service) FindCustomerByNumber(ctx context.Context, sess *salesforce.Session, number string) (*CustomerRef, error) {
	soql := fmt.Sprintf(
		"SELECT Id, Name FROM Contact WHERE Phone = %s ORDER BY LastModifiedDate DESC LIMIT 1",
		salesforce.QuoteString(number),
	)
	result, err := s.crm.Query(ctx, sess, soql)
	if err != nil {
		return nil, fmt.Errorf("directory: find customer by number: %w", err)
	}
	if len(result.Records) == 0 {
		return nil, nil
	}
	record := result.Records[0]
	return &CustomerRef{
		DisplayName: record.StringField("Name"),
		CustomerID:  record.StringField("Id"),
	}, nil
}

func emptyPage(pageSize, offset int) *CustomerPage {
	return &CustomerPage{
		Customers:     []CustomerRef{},
		Searchable:    true,
		NextPageToken: pageSize + offset,
	}
}
