package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// AuthToken is the bearer credential issued after OTP verification.
type AuthToken struct {
	AccessToken string    `json:"access_token"`
	GuardID     string    `json:"guard_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the token is past its expiry.
func (t AuthToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// RequestCode asks the backend to text a one-time code to the given phone
// number.
func (c *Client) RequestCode(ctx context.Context, phone string) error {
	_, err := c.postJSONNoAuth(ctx, "/auth/request-code", map[string]string{
		"phone":     phone,
		"device_id": c.deviceID,
	})
	if err != nil {
		return fmt.Errorf("request code: %w", err)
	}
	return nil
}

// VerifyCode exchanges the phone number and one-time code for a bearer
// token.
func (c *Client) VerifyCode(ctx context.Context, phone, code string) (AuthToken, error) {
	data, err := c.postJSONNoAuth(ctx, "/auth/verify", map[string]string{
		"phone":     phone,
		"code":      code,
		"device_id": c.deviceID,
	})
	if err != nil {
		return AuthToken{}, fmt.Errorf("verify code: %w", err)
	}

	var tok AuthToken
	if err := json.Unmarshal(data, &tok); err != nil {
		return AuthToken{}, fmt.Errorf("decode token: %w", err)
	}
	if tok.AccessToken == "" {
		return AuthToken{}, fmt.Errorf("server returned empty token")
	}
	return tok, nil
}
