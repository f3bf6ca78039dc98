package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/aussiebroadwan/shopauth/internal/auth/service"
	"github.com/aussiebroadwan/shopauth/pkg/authsdk"
	"github.com/aussiebroadwan/shopauth/pkg/httpx"
	"github.com/aussiebroadwan/shopauth/pkg/slogx"
)

// Shopify webhook headers.
const (
	headerWebhookHMAC  = "X-Shopify-Hmac-Sha256"
	headerWebhookTopic = "X-Shopify-Topic"

	// maxWebhookBody bounds how much payload we read. Shopify's own
	// webhook limit is 1MB.
	maxWebhookBody = 1 << 20
)

// WebhookHandler serves POST /v1/webhooks/shopify. The HMAC signature is
// verified against the raw body before any parsing happens.
type WebhookHandler struct {
	WebhookService *service.WebhookService
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if !service.VerifyWebhookSignature(h.WebhookService.Secret, body, r.Header.Get(headerWebhookHMAC)) {
		log.Warn("webhook signature rejected", "topic", r.Header.Get(headerWebhookTopic))
		authsdk.NewOAuth2Error(http.StatusUnauthorized, authsdk.ErrorCodeAccessDenied,
			"webhook signature verification failed").WriteError(w)
		return
	}

	topic := r.Header.Get(headerWebhookTopic)
	ctx = slogx.WithAttrs(ctx, "topic", topic)
	if err := h.WebhookService.Handle(ctx, topic, body); err != nil {
		if errors.Is(err, service.ErrUnknownTopic) {
			// 404 tells Shopify to stop retrying this topic.
			authsdk.NewOAuth2Error(http.StatusNotFound, authsdk.ErrorCodeInvalidRequest,
				"unhandled webhook topic").WriteError(w)
			return
		}
		log.Error("webhook processing failed", "topic", topic, "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
