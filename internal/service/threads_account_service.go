package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	config "github.com/kee711/threads-saas-sub001/configs"
	"github.com/kee711/threads-saas-sub001/internal/gateway"
	"github.com/kee711/threads-saas-sub001/internal/models"
	"github.com/kee711/threads-saas-sub001/internal/repository"
	"github.com/kee711/threads-saas-sub001/internal/transfer"
	"github.com/kee711/threads-saas-sub001/pkg/utils"
)

const THREADS_AUTH_URL = "https://threads.net/oauth/authorize"

type ThreadsAccountService interface {
	GetAuthURL(ctx context.Context, state string) string
	Callback(ctx context.Context, code string, userID int64) error
	RefreshToken(ctx context.Context, account *models.ThreadsAccount) error
	Credentials(ctx context.Context, accountID int64) (gateway.Credentials, error)
	List(ctx context.Context, userID int64) ([]*models.ThreadsAccount, error)
	Delete(ctx context.Context, userID, accountID int64) error
}

type threadsAccountService struct {
	cfg config.Config
	ta  repository.ThreadsAccountRepository
}

func NewThreadsAccountService(cfg config.Config, ta repository.ThreadsAccountRepository) ThreadsAccountService {
	return &threadsAccountService{
		cfg: cfg,
		ta:  ta,
	}
}

func (s *threadsAccountService) GetAuthURL(ctx context.Context, state string) string {
	params := url.Values{}
	params.Add("client_id", s.cfg.ThreadsClientID)
	params.Add("scope", "threads_basic,threads_content_publish")
	params.Add("response_type", "code")
	params.Add("redirect_uri", s.cfg.ThreadsRedirectURI)
	params.Add("state", state)

	return fmt.Sprintf("%s?%s", THREADS_AUTH_URL, params.Encode())
}

func (s *threadsAccountService) Callback(ctx context.Context, code string, userID int64) error {
	if code == "" {
		err := errors.New("code is empty")
		slog.Info(err.Error())
		return err
	}

	if userID == 0 {
		err := errors.New("User not found")
		slog.Info(err.Error())
		return err
	}

	shortLived, err := s.getShortLivedToken(ctx, code)
	if err != nil {
		return err
	}

	longLived, err := s.getLongLivedToken(ctx, shortLived.AccessToken)
	if err != nil {
		return err
	}

	profile, err := s.getProfile(ctx, longLived.AccessToken)
	if err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(longLived.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	account := &models.ThreadsAccount{
		UserID:         userID,
		ThreadsUserID:  profile.ID,
		Username:       profile.Username,
		ProfilePicture: profile.ProfilePicture,
		AccessToken:    encryptedAccessToken,
		TokenExpiresAt: GetExpiresAt(int(longLived.ExpiresIn)),
	}

	_, err = s.ta.Create(ctx, nil, account)
	if err != nil {
		return err
	}

	return nil
}

func (s *threadsAccountService) getShortLivedToken(ctx context.Context, code string) (*transfer.ThreadsToken, error) {
	data := url.Values{}
	data.Set("client_id", s.cfg.ThreadsClientID)
	data.Set("client_secret", s.cfg.ThreadsClientSecret)
	data.Set("grant_type", "authorization_code")
	data.Set("redirect_uri", s.cfg.ThreadsRedirectURI)
	data.Set("code", code)

	resp, err := http.Post(
		fmt.Sprintf("%s/oauth/access_token", s.cfg.ThreadsAPIBaseURL),
		"application/x-www-form-urlencoded",
		strings.NewReader(data.Encode()),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to get short-lived token: %v", err)
	}
	defer resp.Body.Close()

	var token transfer.ThreadsToken
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to decode token response: %v", err)
	}

	return &token, nil
}

func (s *threadsAccountService) getLongLivedToken(ctx context.Context, shortLivedToken string) (*transfer.ThreadsToken, error) {
	reqURL := fmt.Sprintf(
		"%s/access_token?grant_type=th_exchange_token&client_secret=%s&access_token=%s",
		s.cfg.ThreadsAPIBaseURL,
		s.cfg.ThreadsClientSecret,
		shortLivedToken,
	)

	resp, err := http.Get(reqURL)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to get long-lived token: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("error response from Threads (status code: %d)", resp.StatusCode)
	}

	var token transfer.ThreadsToken
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to decode long-lived token response: %v", err)
	}

	return &token, nil
}

func (s *threadsAccountService) getProfile(ctx context.Context, accessToken string) (*transfer.ThreadsProfile, error) {
	reqURL := fmt.Sprintf(
		"%s/v1.0/me?fields=id,username,threads_profile_picture_url&access_token=%s",
		s.cfg.ThreadsAPIBaseURL,
		accessToken,
	)

	resp, err := http.Get(reqURL)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	var profile transfer.ThreadsProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return &profile, nil
}

func (s *threadsAccountService) RefreshToken(ctx context.Context, account *models.ThreadsAccount) error {
	decryptedToken, err := utils.Decrypt(account.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	reqURL := fmt.Sprintf(
		"%s/refresh_access_token?grant_type=th_refresh_token&access_token=%s",
		s.cfg.ThreadsAPIBaseURL,
		decryptedToken,
	)

	resp, err := http.Get(reqURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var token transfer.ThreadsToken
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	return s.ta.SetToken(ctx, account.ID, encryptedAccessToken, GetExpiresAt(int(token.ExpiresIn)))
}

// Credentials implements publish.CredentialsSource. All failures come back as
// gateway auth errors so the pipeline records a kind the user can act on.
func (s *threadsAccountService) Credentials(ctx context.Context, accountID int64) (gateway.Credentials, error) {
	account, err := s.ta.GetByID(ctx, accountID)
	if err != nil {
		return gateway.Credentials{}, err
	}
	if account == nil {
		return gateway.Credentials{}, &gateway.Error{Kind: gateway.KindAuthExpired, Detail: "account is not connected"}
	}

	accessToken, err := utils.Decrypt(account.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		slog.Info(err.Error())
		return gateway.Credentials{}, &gateway.Error{Kind: gateway.KindAuthExpired, Detail: "stored token could not be read"}
	}

	return gateway.Credentials{
		ThreadsUserID: account.ThreadsUserID,
		AccessToken:   accessToken,
		ExpiresAt:     account.TokenExpiresAt,
	}, nil
}

func (s *threadsAccountService) List(ctx context.Context, userID int64) ([]*models.ThreadsAccount, error) {
	accounts, err := s.ta.ListInfoByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Error getting connected accounts")
	}
	return accounts, nil
}

func (s *threadsAccountService) Delete(ctx context.Context, userID, accountID int64) error {
	var err error

	if userID == 0 {
		err = errors.New("User is not valid")
		slog.Info(err.Error())
		return err
	}

	isValid, err := s.ta.CheckByUserID(ctx, accountID, userID)
	if err != nil {
		return err
	}

	if !isValid {
		err = errors.New("Account doesn't exist")
		slog.Info(err.Error())
		return err
	}

	return s.ta.Remove(ctx, accountID)
}
