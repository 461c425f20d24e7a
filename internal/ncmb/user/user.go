package user

import (
	"context"
	"net/http"

	"golang.org/x/exp/slog"

	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/dispatcher"
	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/identity"
	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/request"
	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/session"
)

// Service is the user-identity façade: login, signup and logout, with
// the persisted current-user document kept in sync. Everything goes
// through the signed request pipeline.
type Service struct {
	disp    *dispatcher.Dispatcher
	ident   *identity.Store
	sess    *session.Session
	log     *slog.Logger
	baseURL string
}

func NewService(disp *dispatcher.Dispatcher, ident *identity.Store, sess *session.Session, log *slog.Logger, baseURL string) *Service {
	s := &Service{
		disp:    disp,
		ident:   ident,
		sess:    sess,
		log:     log,
		baseURL: baseURL,
	}
	s.restore()
	return s
}

// restore picks up the session token persisted by a previous launch,
// so a restart does not require a new login.
func (s *Service) restore() {
	doc := s.ident.Load(identity.KindUser)
	if token, ok := doc["sessionToken"].(string); ok && token != "" {
		s.sess.SetLogin(token, doc.ObjectID())
		s.log.Debug("restored session from storage", "userId", doc.ObjectID())
	}
}

// Login authenticates with userName/password and persists the merged
// current-user document. The password never reaches storage.
func (s *Service) Login(ctx context.Context, userName, password string) (identity.Document, error) {
	req := request.New(http.MethodGet, s.baseURL+"/login", nil, map[string]string{
		"userName": userName,
		"password": password,
	})
	resp, err := s.disp.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.saveLogin(identity.Document{"userName": userName}, resp.Body)
}

// SignUp registers a new user account and logs it in.
func (s *Service) SignUp(ctx context.Context, userName, password string) (identity.Document, error) {
	req := request.New(http.MethodPost, s.baseURL+"/users", map[string]any{
		"userName": userName,
		"password": password,
	}, nil)
	resp, err := s.disp.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.saveLogin(identity.Document{"userName": userName}, resp.Body)
}

func (s *Service) saveLogin(params identity.Document, body map[string]any) (identity.Document, error) {
	doc, err := s.ident.WriteMerge(identity.KindUser, params, body)
	if err != nil {
		return nil, err
	}
	if token, ok := doc["sessionToken"].(string); ok && token != "" {
		s.sess.SetLogin(token, doc.ObjectID())
	}
	s.log.Info("logged in", "userId", doc.ObjectID())
	return doc, nil
}

// Logout revokes the session on the backend and clears the local
// identity. The local state is cleared even when the backend call
// fails, matching a token that is already dead.
func (s *Service) Logout(ctx context.Context) error {
	req := request.New(http.MethodGet, s.baseURL+"/logout", nil, nil)
	_, err := s.disp.Do(ctx, req)
	if clearErr := s.ident.Clear(identity.KindUser); clearErr != nil {
		return clearErr
	}
	s.log.Info("logged out")
	return err
}

// Current returns the cached current-user document, empty when logged
// out.
func (s *Service) Current() identity.Document {
	return s.ident.Load(identity.KindUser)
}

// Fetch reads one user record. A "not found" on the current user's own
// id clears the stored identity before the error is surfaced.
func (s *Service) Fetch(ctx context.Context, objectID string) (identity.Document, error) {
	req := request.New(http.MethodGet, s.baseURL+"/users/"+objectID, nil, nil)
	resp, err := s.disp.Do(ctx, req)
	if err != nil {
		return nil, s.ident.HandleNotFound(identity.KindUser, objectID, err)
	}
	return identity.Document(resp.Body), nil
}

// Delete removes a user record. Deleting the logged-in user also
// clears the stored identity.
func (s *Service) Delete(ctx context.Context, objectID string) error {
	current := s.ident.Load(identity.KindUser).ObjectID()

	req := request.New(http.MethodDelete, s.baseURL+"/users/"+objectID, nil, nil)
	if _, err := s.disp.Do(ctx, req); err != nil {
		return s.ident.HandleNotFound(identity.KindUser, objectID, err)
	}
	if objectID == current && current != "" {
		return s.ident.Clear(identity.KindUser)
	}
	return nil
}
