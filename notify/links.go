package notify

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LinkSigner builds the portal deep links embedded in notifications. When a
// signing key is configured the link carries a short-lived HS256 token so a
// stakeholder can open the case without an active session; with no key the
// plain URL is returned.
type LinkSigner struct {
	baseURL string
	secret  []byte
	ttl     time.Duration
	now     func() time.Time
}

func NewLinkSigner(baseURL, secret string, ttl time.Duration) *LinkSigner {
	s := &LinkSigner{
		baseURL: baseURL,
		ttl:     ttl,
		now:     time.Now,
	}
	if secret != "" {
		s.secret = []byte(secret)
	}
	return s
}

// WithClock overrides the time source, for tests.
func (s *LinkSigner) WithClock(now func() time.Time) *LinkSigner {
	s.now = now
	return s
}

// CaseURL returns the deep link for one recipient into one case.
func (s *LinkSigner) CaseURL(caseID, recipientID string) (string, error) {
	if caseID == "" {
		return "", fmt.Errorf("notify: link missing case id")
	}
	plain := fmt.Sprintf("%s/cases/%s", s.baseURL, caseID)
	if s.secret == nil {
		return plain, nil
	}

	issued := s.now().UTC()
	claims := jwt.MapClaims{
		"sub":  recipientID,
		"case": caseID,
		"iat":  issued.Unix(),
		"exp":  issued.Add(s.ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("notify: sign link token: %w", err)
	}
	return plain + "?token=" + token, nil
}

// VerifyToken parses a signed link token and returns the case and recipient
// it grants access to.
func (s *LinkSigner) VerifyToken(tokenString string) (caseID, recipientID string, err error) {
	if s.secret == nil {
		return "", "", fmt.Errorf("notify: link signing not configured")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		return "", "", fmt.Errorf("notify: parse link token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", "", fmt.Errorf("notify: invalid link token")
	}
	caseID, _ = claims["case"].(string)
	recipientID, _ = claims["sub"].(string)
	if caseID == "" {
		return "", "", fmt.Errorf("notify: link token missing case claim")
	}
	return caseID, recipientID, nil
}
