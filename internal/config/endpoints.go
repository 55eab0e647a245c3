package config

import "os"

const (
	issuerURLVar  = "ABACUS_IDENTITY_URL"
	apiBaseURLVar = "ABACUS_API_URL"
)

type EndpointConfig interface {
	GetIssuerURL() string
	GetAPIBaseURL() string
	GetConnectionsURL() string
}

type Endpoints struct{}

var _ EndpointConfig = Endpoints{}

func (Endpoints) GetIssuerURL() string {
	return GetEnv(issuerURLVar, "https://identity.abacushq.com")
}

func (Endpoints) GetAPIBaseURL() string {
	return GetEnv(apiBaseURLVar, "https://api.abacushq.com")
}

func (e Endpoints) GetConnectionsURL() string {
	return e.GetAPIBaseURL() + "/connections"
}

func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
