package tenants

import (
	"context"
	"sort"
	"sync"

	"github.com/abacushq/abacus-go/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// OrganisationAPI fetches the organisation records visible under a tenant.
// Implemented by the accounting API surface.
type OrganisationAPI interface {
	Organisations(ctx context.Context, tenantID string) ([]Organisation, error)
}

// Directory maintains the ordered view of the tenants the current credential
// is authorized for. The cached list only changes on a fully successful
// refresh; a failed refresh leaves the previous view intact.
type Directory struct {
	connectionsURL string
	orgs           OrganisationAPI

	lock    sync.RWMutex
	tenants []Tenant
}

// NewDirectory creates a Directory reading connections from connectionsURL
// and organisation records from orgs.
func NewDirectory(connectionsURL string, orgs OrganisationAPI) (*Directory, error) {
	if connectionsURL == "" {
		return nil, errors.New("[NewDirectory] connections URL is required")
	}
	if orgs == nil {
		return nil, errors.New("[NewDirectory] organisation API is required")
	}
	return &Directory{connectionsURL: connectionsURL, orgs: orgs}, nil
}

// Refresh rebuilds the tenant list: one call for the connection list, then one
// organisation fetch per connection, run concurrently. The fan-out is
// all-or-nothing; any failed organisation fetch fails the whole refresh so
// callers never see a partial tenant list. The result is sorted by
// UpdatedDateUTC descending, ties keeping the provider-returned order.
func (d *Directory) Refresh(ctx context.Context, executor *api.Executor, accessToken string) ([]Tenant, error) {
	resp, err := executor.Get(ctx, d.connectionsURL, accessToken)
	if err != nil {
		return nil, err
	}
	var connections []Connection
	if err := api.DecodeJSON(resp, &connections); err != nil {
		return nil, errors.Wrap(err, "[Refresh] decoding connections")
	}

	organisations := make([][]Organisation, len(connections))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, connection := range connections {
		group.Go(func() error {
			orgs, err := d.orgs.Organisations(groupCtx, connection.TenantID)
			if err != nil {
				return err
			}
			organisations[i] = orgs
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		log.Debug().Err(err).Msg("tenant refresh abandoned")
		return nil, err
	}

	joined := make([]Tenant, len(connections))
	for i, connection := range connections {
		org, found := matchOrganisation(organisations, connection.TenantID)
		if !found {
			return nil, &ConsistencyError{TenantID: connection.TenantID}
		}
		joined[i] = Tenant{
			ID:             connection.ID,
			AuthEventID:    connection.AuthEventID,
			TenantID:       connection.TenantID,
			TenantType:     connection.TenantType,
			TenantName:     connection.TenantName,
			CreatedDateUTC: connection.CreatedDateUTC,
			UpdatedDateUTC: connection.UpdatedDateUTC,
			OrgData:        org,
		}
	}

	// Most recently active connection first.
	sort.SliceStable(joined, func(i, j int) bool {
		return joined[i].UpdatedDateUTC.After(joined[j].UpdatedDateUTC)
	})

	d.lock.Lock()
	d.tenants = joined
	d.lock.Unlock()
	return d.Tenants(), nil
}

// Tenants returns a copy of the last successfully refreshed tenant list.
func (d *Directory) Tenants() []Tenant {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return append([]Tenant(nil), d.tenants...)
}

func matchOrganisation(organisations [][]Organisation, tenantID string) (Organisation, bool) {
	for _, orgs := range organisations {
		for _, org := range orgs {
			if org.OrganisationID == tenantID {
				return org, true
			}
		}
	}
	return Organisation{}, false
}
