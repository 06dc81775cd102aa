package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/amarareunion/dismaman-pwa/internal/core"
)

type MonetizationStatusResponse struct {
	core.TierDecision
	IsPremium        bool    `json:"is_premium"`
	SubscriptionType *string `json:"subscription_type"`
	ActiveChildID    *string `json:"active_child_id"`
}

func (h *APIHandler) MonetizationStatusHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	decision, err := h.questions.TierStatus(user)
	if err != nil {
		log.Printf("Error computing tier status for user %s: %v", user.ID, err)
		http.Error(w, "Failed to compute status", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(MonetizationStatusResponse{
		TierDecision:     decision,
		IsPremium:        user.IsPremium,
		SubscriptionType: user.SubscriptionType,
		ActiveChildID:    user.ActiveChildID,
	})
}

type SelectActiveChildRequest struct {
	ChildID string `json:"child_id"`
}

func (h *APIHandler) SelectActiveChildHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var req SelectActiveChildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ChildID == "" {
		http.Error(w, "child_id is required", http.StatusBadRequest)
		return
	}

	child, err := h.store.GetChild(req.ChildID, user.ID)
	if err != nil {
		log.Printf("Error verifying child %s for user %s: %v", req.ChildID, user.ID, err)
		http.Error(w, "Failed to select active child", http.StatusInternalServerError)
		return
	}
	if child == nil {
		http.Error(w, "Child not found", http.StatusNotFound)
		return
	}

	if err := h.store.SetActiveChild(user.ID, child.ID); err != nil {
		log.Printf("Error setting active child for user %s: %v", user.ID, err)
		http.Error(w, "Failed to select active child", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{
		"message":         "Active child selected",
		"active_child_id": child.ID,
	})
}

type SubscribeRequest struct {
	SubscriptionType string `json:"subscription_type"` // "monthly" or "annual"
	TransactionID    string `json:"transaction_id"`
}

// SubscribeHandler records a payment confirmation as an opaque signal: it
// flips the premium flag and clears the active child restriction. Payment
// validation itself happens upstream in the store purchase flow.
func (h *APIHandler) SubscribeHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.SubscriptionType != "monthly" && req.SubscriptionType != "annual" {
		http.Error(w, "Invalid subscription type", http.StatusBadRequest)
		return
	}

	if err := h.store.SetUserPremium(user.ID, req.SubscriptionType); err != nil {
		log.Printf("Error subscribing user %s: %v", user.ID, err)
		http.Error(w, "Failed to subscribe", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{
		"message":           "Subscription successful",
		"subscription_type": req.SubscriptionType,
	})
}
