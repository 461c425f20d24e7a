package installation

import (
	"context"
	"net/http"
	"runtime"

	"golang.org/x/exp/slog"

	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/apierr"
	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/dispatcher"
	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/identity"
	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/registration"
	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/request"
)

const deviceType = "go"

// Service registers this installation with the backend. All
// registrations funnel through one coordinator, so concurrent callers
// from different call sites never double-register the device.
type Service struct {
	disp    *dispatcher.Dispatcher
	ident   *identity.Store
	coord   *registration.Coordinator
	log     *slog.Logger
	baseURL string
}

func NewService(disp *dispatcher.Dispatcher, ident *identity.Store, source registration.TokenSource, log *slog.Logger, baseURL string) *Service {
	s := &Service{
		disp:    disp,
		ident:   ident,
		log:     log,
		baseURL: baseURL,
	}
	s.coord = registration.NewCoordinator(s.sequence(source), log)
	return s
}

// Register acquires a device token and creates or updates the
// installation record, replaying the outcome to every caller that
// arrived while the sequence was running.
func (s *Service) Register(ctx context.Context, cb registration.Callback) {
	s.coord.Acquire(ctx, cb)
}

// Current returns the cached installation document.
func (s *Service) Current() identity.Document {
	return s.ident.Load(identity.KindInstallation)
}

// sequence builds the coordinator's in-flight work: token first, then
// the save. A missing token source fails everyone immediately.
func (s *Service) sequence(source registration.TokenSource) registration.Sequence {
	if source == nil {
		return nil
	}
	return func(ctx context.Context, done func(token string, err error)) {
		source.DeviceToken(ctx, func(token string, err error) {
			if err != nil {
				done("", apierr.Wrap(apierr.CodePushNotConfigured,
					"cannot obtain device token", err))
				return
			}
			done(token, s.save(ctx, token))
		})
	}
}

// save creates the installation record, or updates it when one is
// already persisted. An update hitting "not found" means the backend
// lost the record: the stale identity is dropped and the installation
// is re-created.
func (s *Service) save(ctx context.Context, token string) error {
	params := identity.Document{
		"deviceToken": token,
		"deviceType":  deviceType,
		"osVersion":   runtime.GOOS,
	}

	objectID := s.ident.Load(identity.KindInstallation).ObjectID()
	if objectID == "" {
		return s.create(ctx, params)
	}

	req := request.New(http.MethodPut, s.baseURL+"/installations/"+objectID, params, nil)
	resp, err := s.disp.Do(ctx, req)
	if err != nil {
		err = s.ident.HandleNotFound(identity.KindInstallation, objectID, err)
		if apierr.HasCode(err, apierr.CodeDataNotFound) {
			s.log.Info("installation record lost, re-registering", "objectId", objectID)
			return s.create(ctx, params)
		}
		return err
	}

	_, err = s.ident.WriteMerge(identity.KindInstallation, params, resp.Body)
	return err
}

func (s *Service) create(ctx context.Context, params identity.Document) error {
	req := request.New(http.MethodPost, s.baseURL+"/installations", params, nil)
	resp, err := s.disp.Do(ctx, req)
	if err != nil {
		return err
	}
	_, err = s.ident.WriteMerge(identity.KindInstallation, params, resp.Body)
	if err == nil {
		s.log.Info("installation registered", "objectId", resp.ObjectID())
	}
	return err
}
