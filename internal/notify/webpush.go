package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/medieye/med-reminder/internal/domain"
)

// VAPID holds the application server key pair as base64url strings.
type VAPID struct {
	PublicKey  string
	PrivateKey string
	// Subscriber is the contact placed in the JWT "sub" claim.
	Subscriber string
}

type WebPushSender struct {
	vapid      VAPID
	ttl        int
	httpClient *http.Client
}

func NewWebPushSender(vapid VAPID, ttl time.Duration) *WebPushSender {
	return &WebPushSender{
		vapid:      vapid,
		ttl:        int(ttl.Seconds()),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *WebPushSender) Channel() domain.Channel { return domain.ChannelPush }

// Send encrypts msg.Body for the subscription and posts it to its push service.
func (s *WebPushSender) Send(ctx context.Context, sub domain.Subscription, msg domain.Message) domain.Outcome {
	var target webpush.Subscription
	if err := json.Unmarshal(sub.Push, &target); err != nil {
		return domain.Failed(domain.ChannelPush, "", fmt.Errorf("decoding push subscription: %w", err))
	}
	if target.Endpoint == "" {
		return domain.Failed(domain.ChannelPush, "", fmt.Errorf("push subscription has no endpoint"))
	}

	resp, err := webpush.SendNotificationWithContext(ctx, []byte(msg.Body), &target, &webpush.Options{
		HTTPClient:      s.httpClient,
		Subscriber:      s.vapid.Subscriber,
		VAPIDPublicKey:  s.vapid.PublicKey,
		VAPIDPrivateKey: s.vapid.PrivateKey,
		TTL:             s.ttl,
	})
	if err != nil {
		return domain.Failed(domain.ChannelPush, target.Endpoint, err)
	}
	defer resp.Body.Close()

	// Read response body (limit to 1KB)
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	if resp.StatusCode >= 400 {
		return domain.Failed(domain.ChannelPush, target.Endpoint,
			fmt.Errorf("push service returned %d: %s", resp.StatusCode, body))
	}
	return domain.Delivered(domain.ChannelPush)
}

// PushEndpoint extracts the endpoint URL for logs, or "" if the descriptor has none.
func PushEndpoint(p domain.PushDescriptor) string {
	var v struct {
		Endpoint string `json:"endpoint"`
	}
	if err := json.Unmarshal(p, &v); err != nil {
		return ""
	}
	return v.Endpoint
}

// GenerateVAPIDKeys returns a new base64url key pair.
func GenerateVAPIDKeys() (privateKey, publicKey string, err error) {
	return webpush.GenerateVAPIDKeys()
}
