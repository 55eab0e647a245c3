package config

type Config interface {
	EndpointConfig
	HTTPConfig
}

type mainConfig struct {
	Endpoints
	HTTP
}

func New() Config {
	return mainConfig{}
}
