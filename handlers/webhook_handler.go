package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"mutabaahAPI/services"
)

// WebhookHandler keeps the users table in sync with Clerk. Only user.created
// and user.deleted matter here; everything else is acknowledged and ignored.
type WebhookHandler struct {
	userService *services.UserService
}

func NewWebhookHandler(userService *services.UserService) *WebhookHandler {
	return &WebhookHandler{
		userService: userService,
	}
}

type clerkWebhookEvent struct {
	Type string `json:"type"`
	Data struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		First    string `json:"first_name"`
	} `json:"data"`
}

func (h *WebhookHandler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Error reading body", http.StatusBadRequest)
		return
	}

	if !verifyWebhookSignature(r, body) {
		log.Println("Invalid webhook signature")
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var event clerkWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "Error parsing webhook", http.StatusBadRequest)
		return
	}

	log.Printf("Received webhook event: %s", event.Type)

	ctx := r.Context()
	switch event.Type {
	case "user.created":
		username := event.Data.Username
		if username == "" {
			username = event.Data.First
		}
		if _, err := h.userService.CreateUser(ctx, event.Data.ID, username); err != nil {
			log.Printf("Error handling user.created: %v", err)
			http.Error(w, "Error processing webhook", http.StatusInternalServerError)
			return
		}

	case "user.deleted":
		if err := h.userService.DeleteUser(ctx, event.Data.ID); err != nil {
			// A delete replay for an unknown user is not worth a retry storm.
			log.Printf("Error handling user.deleted: %v", err)
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"received": true}`))
}

// verifyWebhookSignature checks the svix-style HMAC Clerk signs webhooks
// with. Missing secret means verification is disabled (local dev).
func verifyWebhookSignature(r *http.Request, body []byte) bool {
	secret := os.Getenv("CLERK_WEBHOOK_SECRET")
	if secret == "" {
		log.Println("CLERK_WEBHOOK_SECRET not set, skipping webhook verification")
		return true
	}
	secret = strings.TrimPrefix(secret, "whsec_")

	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return false
	}

	id := r.Header.Get("svix-id")
	timestamp := r.Header.Get("svix-timestamp")
	signatures := r.Header.Get("svix-signature")
	if id == "" || timestamp == "" || signatures == "" {
		return false
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(id + "." + timestamp + "."))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	// Header holds space-separated "v1,<sig>" entries.
	for _, part := range strings.Fields(signatures) {
		sig := strings.TrimPrefix(part, "v1,")
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return true
		}
	}
	return false
}
