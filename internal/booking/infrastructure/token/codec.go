// Package token implements the signed option token: a self-contained,
// tamper-resistant envelope carrying a booking option between the
// availability and reservation paths. Nothing is persisted; the secret and
// TTL come from configuration.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/velvetcut/booking/internal/booking/domain"
	shareddomain "github.com/velvetcut/booking/internal/shared/domain"
)

type envelope struct {
	Payload  domain.OptionPayload `json:"p"`
	IssuedAt int64                `json:"iat"`
}

// Codec signs and verifies option payloads with HMAC-SHA256. A token is
// base64url(envelope) + "." + base64url(mac); holders cannot alter the
// payload or the issue time without invalidating the mac.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewCodec(secret string, ttl time.Duration) *Codec {
	return &Codec{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue encodes and signs a payload.
func (c *Codec) Issue(payload domain.OptionPayload) (string, error) {
	raw, err := json.Marshal(envelope{Payload: payload, IssuedAt: c.now().Unix()})
	if err != nil {
		return "", err
	}
	body := base64.RawURLEncoding.EncodeToString(raw)
	return body + "." + c.sign(body), nil
}

// Verify checks the mac and the token age, returning the payload. Every
// failure mode surfaces as an option_invalid error so the reservation path
// never has to distinguish them.
func (c *Codec) Verify(token string) (domain.OptionPayload, error) {
	body, mac, found := strings.Cut(token, ".")
	if !found || body == "" || mac == "" {
		return domain.OptionPayload{}, shareddomain.NewOptionInvalid("malformed option token")
	}
	if !hmac.Equal([]byte(mac), []byte(c.sign(body))) {
		return domain.OptionPayload{}, shareddomain.NewOptionInvalid("option token signature mismatch")
	}

	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return domain.OptionPayload{}, shareddomain.NewOptionInvalid("malformed option token")
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.OptionPayload{}, shareddomain.NewOptionInvalid("malformed option token")
	}

	age := c.now().Sub(time.Unix(env.IssuedAt, 0))
	if age > c.ttl || age < 0 {
		return domain.OptionPayload{}, shareddomain.NewOptionInvalid("option token expired")
	}
	return env.Payload, nil
}

func (c *Codec) sign(body string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(body))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
