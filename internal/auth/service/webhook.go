package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aussiebroadwan/shopauth/internal/auth/domain"
	"github.com/aussiebroadwan/shopauth/internal/auth/store"
	"github.com/aussiebroadwan/shopauth/pkg/shopify"
	"github.com/aussiebroadwan/shopauth/pkg/slogx"
)

// Webhook topics we subscribe to and handle.
const (
	TopicCustomersUpdate = "customers/update"
	TopicCustomersDelete = "customers/delete"
	TopicAppUninstalled  = "app/uninstalled"
	TopicShopUpdate      = "shop/update"
)

// ErrUnknownTopic is returned for webhook topics we never subscribed to.
var ErrUnknownTopic = errors.New("unknown webhook topic")

// WebhookService verifies and applies inbound Shopify webhooks, keeping
// local user records in sync with the shop.
type WebhookService struct {
	Store   store.Store
	Shopify *shopify.Client

	// Secret is the shared webhook signing secret (the app's API secret).
	Secret string

	// AccessToken is the shop-level admin token used for webhook
	// registration calls.
	AccessToken string
}

// VerifyWebhookSignature checks a Shopify webhook HMAC header against the
// raw request body. The header carries a base64-encoded HMAC-SHA256 of the
// body keyed with the app secret.
func VerifyWebhookSignature(secret string, body []byte, header string) bool {
	if secret == "" || header == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(header))
}

// Handle applies a verified webhook payload. Unknown topics are an error
// so the router can answer 404 and Shopify stops retrying them.
func (s *WebhookService) Handle(ctx context.Context, topic string, payload []byte) error {
	switch topic {
	case TopicCustomersUpdate:
		return s.handleCustomerUpdate(ctx, payload)
	case TopicCustomersDelete:
		return s.handleCustomerDelete(ctx, payload)
	case TopicAppUninstalled:
		return s.handleAppUninstalled(ctx, payload)
	case TopicShopUpdate:
		return s.handleShopUpdate(ctx, payload)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
}

type customerPayload struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (s *WebhookService) handleCustomerUpdate(ctx context.Context, payload []byte) error {
	var c customerPayload
	if err := json.Unmarshal(payload, &c); err != nil {
		return fmt.Errorf("decode customer payload: %w", err)
	}

	user, err := s.findCustomerUser(ctx, c)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Not everyone in the shop has logged in here. Nothing to sync.
			return nil
		}
		return err
	}

	if c.Email != "" {
		user.Email = c.Email
	}
	if name := strings.TrimSpace(c.FirstName + " " + c.LastName); name != "" {
		user.Name = name
	}
	return s.Store.Users().UpdateUser(ctx, user)
}

func (s *WebhookService) handleCustomerDelete(ctx context.Context, payload []byte) error {
	var c customerPayload
	if err := json.Unmarshal(payload, &c); err != nil {
		return fmt.Errorf("decode customer payload: %w", err)
	}

	user, err := s.findCustomerUser(ctx, c)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	slogx.FromContext(ctx).Info("deleting user for removed customer", "user_id", user.ID)
	return s.Store.Users().DeleteUser(ctx, user.ID)
}

func (s *WebhookService) handleAppUninstalled(ctx context.Context, payload []byte) error {
	// When the app is uninstalled every credential we ever minted for the
	// shop is dead, live ones included. Revoke all refresh tokens and drop
	// all bearer credentials in one transaction; a failure bubbles up so
	// Shopify redelivers and we get another go.
	log := slogx.FromContext(ctx)
	log.Warn("app uninstalled from shop, revoking all credentials")

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().RevokeAllRefreshTokens(ctx); err != nil {
			return fmt.Errorf("revoke refresh tokens after uninstall: %w", err)
		}
		if err := tx.AccessTokens().DeleteAllAccessTokens(ctx); err != nil {
			return fmt.Errorf("delete access tokens after uninstall: %w", err)
		}
		return nil
	})
}

func (s *WebhookService) handleShopUpdate(ctx context.Context, payload []byte) error {
	var shop struct {
		Name   string `json:"name"`
		Domain string `json:"domain"`
	}
	if err := json.Unmarshal(payload, &shop); err != nil {
		return fmt.Errorf("decode shop payload: %w", err)
	}
	slogx.FromContext(ctx).Info("shop details updated", "name", shop.Name, "domain", shop.Domain)
	return nil
}

// findCustomerUser resolves a webhook customer to a local user, preferring
// the stable numeric customer id over the (mutable) email.
func (s *WebhookService) findCustomerUser(ctx context.Context, c customerPayload) (domain.User, error) {
	if c.ID != 0 {
		user, err := s.Store.Users().GetUserByShopifySubject(ctx, strconv.FormatInt(c.ID, 10))
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return domain.User{}, err
		}
	}
	if c.Email == "" {
		return domain.User{}, store.ErrNotFound
	}
	return s.Store.Users().GetUserByEmail(ctx, c.Email)
}

// RegisterWebhooks subscribes the configured callback base URL to every
// topic this service handles. Registration failures are reported together
// so one bad topic doesn't hide the others.
func (s *WebhookService) RegisterWebhooks(ctx context.Context, callbackBaseURL string) error {
	log := slogx.FromContext(ctx)
	topics := []string{
		TopicCustomersUpdate,
		TopicCustomersDelete,
		TopicAppUninstalled,
		TopicShopUpdate,
	}

	var errs []error
	for _, topic := range topics {
		payload := map[string]any{
			"webhook": map[string]any{
				"topic":   topic,
				"address": strings.TrimSuffix(callbackBaseURL, "/") + "/v1/webhooks/shopify",
				"format":  "json",
			},
		}
		resp, err := s.Shopify.Post(ctx, "/webhooks.json", payload, s.AccessToken)
		if err != nil {
			errs = append(errs, fmt.Errorf("register %s: %w", topic, err))
			continue
		}
		if !resp.Success {
			errs = append(errs, fmt.Errorf("register %s: %s", topic, resp.Message))
			continue
		}
		log.Info("registered webhook", "topic", topic)
	}
	return errors.Join(errs...)
}
