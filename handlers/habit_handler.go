package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"mutabaahAPI/internal/dates"
	"mutabaahAPI/internal/habit"
	"mutabaahAPI/middleware"
	"mutabaahAPI/services"
)

type HabitHandler struct {
	habitService *services.HabitService
}

func NewHabitHandler(habitService *services.HabitService) *HabitHandler {
	return &HabitHandler{
		habitService: habitService,
	}
}

// GET /api/v1/habits
func (h *HabitHandler) GetHabits(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	habits, err := h.habitService.ListHabits(ctx, clerkID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, habits)
}

// POST /api/v1/habits
func (h *HabitHandler) CreateHabit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req habit.CreateHabitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := h.habitService.CreateHabit(ctx, clerkID, &req)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

// PUT /api/v1/habits/{habitID}
func (h *HabitHandler) UpdateHabit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	habitID, err := habitIDFromPath(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid habit id")
		return
	}

	var req habit.UpdateHabitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := h.habitService.UpdateHabit(ctx, clerkID, habitID, &req)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

// DELETE /api/v1/habits/{habitID}
func (h *HabitHandler) DeleteHabit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	habitID, err := habitIDFromPath(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid habit id")
		return
	}

	if err := h.habitService.DeleteHabit(ctx, clerkID, habitID); err != nil {
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// PUT /api/v1/habits/reorder
func (h *HabitHandler) ReorderHabits(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req struct {
		HabitIDs []uuid.UUID `json:"habit_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.habitService.ReorderHabits(ctx, clerkID, req.HabitIDs); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "reordered"})
}

type progressRequest struct {
	Day     string `json:"day"`
	Desired *bool  `json:"desired,omitempty"`
}

// POST /api/v1/habits/{habitID}/toggle
func (h *HabitHandler) ToggleCompletion(w http.ResponseWriter, r *http.Request) {
	h.progressOp(w, r, func(ctx context.Context, clerkID string, habitID uuid.UUID, day dates.DayKey, req *progressRequest) (*habit.HabitRecord, error) {
		if req.Desired != nil {
			return h.habitService.SetCompletion(ctx, clerkID, habitID, day, *req.Desired)
		}
		return h.habitService.ToggleCompletion(ctx, clerkID, habitID, day)
	})
}

// POST /api/v1/habits/{habitID}/increment
func (h *HabitHandler) IncrementProgress(w http.ResponseWriter, r *http.Request) {
	h.progressOp(w, r, func(ctx context.Context, clerkID string, habitID uuid.UUID, day dates.DayKey, _ *progressRequest) (*habit.HabitRecord, error) {
		return h.habitService.IncrementProgress(ctx, clerkID, habitID, day)
	})
}

// POST /api/v1/habits/{habitID}/decrement
func (h *HabitHandler) DecrementProgress(w http.ResponseWriter, r *http.Request) {
	h.progressOp(w, r, func(ctx context.Context, clerkID string, habitID uuid.UUID, day dates.DayKey, _ *progressRequest) (*habit.HabitRecord, error) {
		return h.habitService.DecrementProgress(ctx, clerkID, habitID, day)
	})
}

func (h *HabitHandler) progressOp(w http.ResponseWriter, r *http.Request,
	op func(context.Context, string, uuid.UUID, dates.DayKey, *progressRequest) (*habit.HabitRecord, error)) {

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	habitID, err := habitIDFromPath(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid habit id")
		return
	}

	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	day, err := dates.ParseDay(req.Day)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Field 'day' must be YYYY-MM-DD")
		return
	}

	updated, err := op(ctx, clerkID, habitID, day, &req)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

func habitIDFromPath(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)["habitID"])
}

// --- SHARED RESPONSE HELPERS ---

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error marshaling JSON response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
