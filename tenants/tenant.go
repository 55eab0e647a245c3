package tenants

import (
	"fmt"
	"time"
)

// Connection is one entry of the provider's connections endpoint: an
// authorization event linking the client application to a tenant.
type Connection struct {
	ID             string    `json:"id"`
	AuthEventID    string    `json:"authEventId"`
	TenantID       string    `json:"tenantId"`
	TenantType     string    `json:"tenantType"`
	TenantName     string    `json:"tenantName"`
	CreatedDateUTC time.Time `json:"createdDateUtc"`
	UpdatedDateUTC time.Time `json:"updatedDateUtc"`
}

// Organisation is the organisation record behind a tenant, fetched from the
// accounting API.
type Organisation struct {
	OrganisationID   string `json:"organisationID"`
	Name             string `json:"name"`
	LegalName        string `json:"legalName"`
	OrganisationType string `json:"organisationType"`
	CountryCode      string `json:"countryCode"`
	BaseCurrency     string `json:"baseCurrency"`
}

// Tenant joins a connection with the organisation record whose identifier
// matches the connection's tenant id.
type Tenant struct {
	ID             string       `json:"id"`
	AuthEventID    string       `json:"authEventId"`
	TenantID       string       `json:"tenantId"`
	TenantType     string       `json:"tenantType"`
	TenantName     string       `json:"tenantName"`
	CreatedDateUTC time.Time    `json:"createdDateUtc"`
	UpdatedDateUTC time.Time    `json:"updatedDateUtc"`
	OrgData        Organisation `json:"orgData"`
}

// ConsistencyError indicates a provider-data anomaly: a connection whose
// tenant id matches none of the fetched organisation records.
type ConsistencyError struct {
	TenantID string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("no organisation record matches tenant %q", e.TenantID)
}
