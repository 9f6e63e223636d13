package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"mutabaahAPI/internal/notification"
	"mutabaahAPI/middleware"
	"mutabaahAPI/services"
)

type NotificationHandler struct {
	notificationService *services.NotificationService
	sender              services.ReminderSender
}

// sender may be nil when FCM failed to initialize; the test endpoint reports
// that instead of panicking.
func NewNotificationHandler(notificationService *services.NotificationService, sender services.ReminderSender) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		sender:              sender,
	}
}

type registerDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// POST /api/v1/notifications/register-device
func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req registerDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.notificationService.RegisterDevice(ctx, clerkID, req.Token, req.Platform); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "registered"})
}

// POST /api/v1/notifications/test - push a test reminder to the caller's own
// devices. Useful while setting up FCM on a new build.
func (h *NotificationHandler) SendTestNotification(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	if h.sender == nil {
		respondWithError(w, http.StatusServiceUnavailable, "Push provider not configured")
		return
	}

	tokens, err := h.notificationService.ListActiveTokens(ctx, clerkID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(tokens) == 0 {
		respondWithError(w, http.StatusNotFound, "No registered devices")
		return
	}

	rem := notification.Reminder{
		Kind:  notification.KindHabit,
		ID:    uuid.New(),
		Title: "Test notification",
		Body:  "Push delivery is working.",
	}

	delivered := 0
	for _, t := range tokens {
		if result, _ := h.sender.SendReminder(ctx, t.Token, rem); result == notification.Delivered {
			delivered++
		}
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"delivered": delivered})
}
