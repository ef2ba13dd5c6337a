package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/AzielCF/az-crm/crm/domain"
	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/AzielCF/az-crm/validations"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

const activeConnectionKey = "active"

// ConnectionService administra las credenciales de la Cloud API y mantiene en
// caché la conexión activa usada por cada envío.
type ConnectionService struct {
	repo                domain.ConnectionRepository
	gateways            domain.GatewayFactory
	fallbackVerifyToken string
	cache               *cache.Cache
	now                 func() time.Time
}

var _ ActiveConnectionProvider = (*ConnectionService)(nil)

// NewConnectionService con ttl <= 0 desactiva la caché
func NewConnectionService(repo domain.ConnectionRepository, gateways domain.GatewayFactory, fallbackVerifyToken string, ttl time.Duration) *ConnectionService {
	s := &ConnectionService{
		repo:                repo,
		gateways:            gateways,
		fallbackVerifyToken: fallbackVerifyToken,
		now:                 func() time.Time { return time.Now().UTC() },
	}
	if ttl > 0 {
		s.cache = cache.New(ttl, 2*ttl)
	}
	return s
}

func (s *ConnectionService) invalidate() {
	if s.cache != nil {
		s.cache.Delete(activeConnectionKey)
	}
}

// Active retorna la conexión activa o ErrNoActiveConnection
func (s *ConnectionService) Active(ctx context.Context) (*domain.Connection, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(activeConnectionKey); ok {
			conn := *v.(*domain.Connection)
			return &conn, nil
		}
	}

	conn, err := s.repo.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		cached := *conn
		s.cache.SetDefault(activeConnectionKey, &cached)
	}
	return conn, nil
}

func (s *ConnectionService) List(ctx context.Context) ([]domain.Connection, error) {
	return s.repo.List(ctx)
}

func (s *ConnectionService) Create(ctx context.Context, request domain.CreateConnectionRequest) (*domain.Connection, error) {
	if err := validations.ValidateCreateConnection(ctx, request); err != nil {
		return nil, err
	}

	conn := &domain.Connection{
		Name:          strings.TrimSpace(request.Name),
		PhoneNumberID: request.PhoneNumberID,
		AccessToken:   request.AccessToken,
		VerifyToken:   request.VerifyToken,
		WebhookURL:    request.WebhookURL,
		IsActive:      true,
	}
	if request.IsActive != nil {
		conn.IsActive = *request.IsActive
	}

	if err := s.repo.Create(ctx, conn); err != nil {
		return nil, err
	}
	s.invalidate()

	logrus.Infof("[CONNECTION] Created connection %s (%s), active=%t", conn.ID, conn.PhoneNumberID, conn.IsActive)
	return conn, nil
}

func (s *ConnectionService) Update(ctx context.Context, id string, request domain.UpdateConnectionRequest) (*domain.Connection, error) {
	if err := validations.ValidateUpdateConnection(ctx, request); err != nil {
		return nil, err
	}

	conn, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Name != nil {
		conn.Name = strings.TrimSpace(*request.Name)
	}
	if request.PhoneNumberID != nil {
		conn.PhoneNumberID = *request.PhoneNumberID
	}
	if request.AccessToken != nil {
		conn.AccessToken = *request.AccessToken
	}
	if request.VerifyToken != nil {
		conn.VerifyToken = *request.VerifyToken
	}
	if request.WebhookURL != nil {
		conn.WebhookURL = *request.WebhookURL
	}
	if request.IsActive != nil {
		conn.IsActive = *request.IsActive
	}

	if err := s.repo.Update(ctx, conn); err != nil {
		return nil, err
	}
	s.invalidate()
	return conn, nil
}

func (s *ConnectionService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// Test hace ping a la Cloud API con las credenciales de la conexión y registra lastSyncAt
func (s *ConnectionService) Test(ctx context.Context, id string) (*domain.Connection, error) {
	conn, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.gateways.ForConnection(conn).Ping(ctx); err != nil {
		logrus.WithError(err).Warnf("[CONNECTION] Test of %s failed", conn.ID)
		return nil, err
	}

	now := s.now()
	if err := s.repo.TouchSync(ctx, conn.ID, now); err != nil {
		return nil, err
	}
	conn.LastSyncAt = &now
	s.invalidate()
	return conn, nil
}

// WebhookStatus lista las conexiones activas sin secretos
func (s *ConnectionService) WebhookStatus(ctx context.Context) ([]domain.ConnectionStatus, error) {
	conns, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ConnectionStatus, 0, len(conns))
	for i := range conns {
		if conns[i].IsActive {
			out = append(out, conns[i].Status())
		}
	}
	return out, nil
}

// VerifyToken es el token esperado en el handshake del webhook: el de la
// conexión activa o, sin conexión, el configurado en el entorno.
func (s *ConnectionService) VerifyToken(ctx context.Context) (string, error) {
	conn, err := s.Active(ctx)
	switch {
	case err == nil && conn.VerifyToken != "":
		return conn.VerifyToken, nil
	case err == nil, isNoActiveConnection(err):
		return s.fallbackVerifyToken, nil
	default:
		return "", err
	}
}

// Media descarga un archivo recibido por su mediaId usando la conexión activa
func (s *ConnectionService) Media(ctx context.Context, mediaID string) ([]byte, string, error) {
	if strings.TrimSpace(mediaID) == "" {
		return nil, "", pkgError.ValidationError("media id is required")
	}
	conn, err := s.Active(ctx)
	if err != nil {
		return nil, "", err
	}
	gw := s.gateways.ForConnection(conn)

	url, err := gw.GetMediaURL(ctx, mediaID)
	if err != nil {
		return nil, "", err
	}
	return gw.DownloadMedia(ctx, url)
}

func isNoActiveConnection(err error) bool {
	return errors.Is(err, domain.ErrNoActiveConnection)
}
