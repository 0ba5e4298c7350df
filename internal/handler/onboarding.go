package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/aurashift/internal/model"
	"github.com/sakif/aurashift/internal/service"
)

// OnboardingHandler records the smoking profile.
type OnboardingHandler struct {
	onboarding *service.OnboardingService
	logger     *slog.Logger
}

func NewOnboardingHandler(onboarding *service.OnboardingService, logger *slog.Logger) *OnboardingHandler {
	return &OnboardingHandler{onboarding: onboarding, logger: logger}
}

type profileRequest struct {
	YearsSmoked      *float64 `json:"yearsSmoked"`
	CigarettesPerDay *float64 `json:"cigarettesPerDay"`
	CostPerCigarette *float64 `json:"costPerCigarette"`
	CostPerPack      *float64 `json:"costPerPack"`
	Motivations      []string `json:"motivations"`
}

func (p profileRequest) input() service.ProfileInput {
	return service.ProfileInput{
		YearsSmoked:      p.YearsSmoked,
		CigarettesPerDay: p.CigarettesPerDay,
		CostPerCigarette: p.CostPerCigarette,
		CostPerPack:      p.CostPerPack,
		Motivations:      p.Motivations,
	}
}

type userResponse struct {
	User *model.User `json:"user"`
}

// HandleComplete: POST /api/onboarding/complete
func (h *OnboardingHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.onboarding.Complete(r.Context(), userID, req.input())
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, "Onboarding completed successfully", userResponse{User: user})
}

// HandleUpdate: PUT /api/onboarding/update
func (h *OnboardingHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.onboarding.Update(r.Context(), userID, req.input())
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, "Smoking history updated successfully", userResponse{User: user})
}

// HandleStatus: GET /api/onboarding/status
func (h *OnboardingHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	status, err := h.onboarding.Status(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, "", status)
}
