package cloudapi

import (
	"net/http"

	"github.com/AzielCF/az-crm/crm/domain"
)

// Factory hands out per-connection clients that share one HTTP transport.
type Factory struct {
	cfg        Config
	httpClient *http.Client
}

var _ domain.GatewayFactory = (*Factory)(nil)

func NewFactory(cfg Config) *Factory {
	cfg = cfg.withDefaults()
	return &Factory{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (f *Factory) ForConnection(conn *domain.Connection) domain.Gateway {
	return NewClient(f.cfg, f.httpClient, conn.PhoneNumberID, conn.AccessToken)
}
