package angel

import (
	"context"
	"log"
	"time"

	"github.com/pquerna/otp/totp"

	"trading-gatewayv1/pkg/smartconnect"
)

// SessionConfig holds the Angel One login credentials.
type SessionConfig struct {
	APIKey     string
	ClientCode string
	Password   string
	TOTPSecret string
}

// SessionManager generates and refreshes Angel One sessions. A fresh TOTP
// code is computed per login attempt.
type SessionManager struct {
	cfg SessionConfig
	sc  *smartconnect.SmartConnect
}

// NewSessionManager creates a session manager for the given credentials.
func NewSessionManager(cfg SessionConfig) *SessionManager {
	return &SessionManager{
		cfg: cfg,
		sc:  smartconnect.New(smartconnect.Config{APIKey: cfg.APIKey}),
	}
}

// Login performs a TOTP login and returns the session JWT.
func (m *SessionManager) Login() (string, error) {
	code, err := totp.GenerateCode(m.cfg.TOTPSecret, time.Now())
	if err != nil {
		return "", err
	}
	tokens, err := m.sc.GenerateSession(m.cfg.ClientCode, m.cfg.Password, code)
	if err != nil {
		return "", err
	}
	return tokens.JWTToken, nil
}

// Run logs in, hands the JWT to seed, and refreshes on interval. Failed
// attempts retry after 30s. Blocks until ctx is cancelled; callers run it
// in a goroutine.
func (m *SessionManager) Run(ctx context.Context, interval time.Duration, seed func(jwt string) error) {
	retry := 30 * time.Second

	for {
		jwt, err := m.Login()
		if err != nil {
			log.Printf("[angel] login failed: %v, retrying in %s", err, retry)
			if !sleepCtx(ctx, retry) {
				return
			}
			continue
		}
		if err := seed(jwt); err != nil {
			log.Printf("[angel] session seed failed: %v", err)
		} else {
			log.Printf("[angel] session refreshed for %s", m.cfg.ClientCode)
		}

		if !sleepCtx(ctx, interval) {
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
