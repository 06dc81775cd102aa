package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/amarareunion/dismaman-pwa/internal/auth"
	"github.com/amarareunion/dismaman-pwa/internal/config"
	"github.com/amarareunion/dismaman-pwa/internal/core"
	"github.com/amarareunion/dismaman-pwa/internal/store"
)

const maxChildrenPerAccount = 4

type APIHandler struct {
	store     *store.SQLiteStore
	questions *core.QuestionService
	feedback  *core.FeedbackService
}

func NewAPIHandler(st *store.SQLiteStore, questions *core.QuestionService, feedback *core.FeedbackService) *APIHandler {
	return &APIHandler{
		store:     st,
		questions: questions,
		feedback:  feedback,
	}
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		userID, err := auth.ValidateToken(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		user, err := h.store.GetUserByID(userID)
		if err != nil {
			log.Printf("Error in JWTAuthMiddleware for user %s: %v", userID, err)
			http.Error(w, "Failed to process user identity", http.StatusInternalServerError)
			return
		}

		if user == nil {
			http.Error(w, "User not found", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), "user", user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentUser(r *http.Request) *store.User {
	return r.Context().Value("user").(*store.User)
}

// writeCoreError maps the core's sentinel errors onto HTTP statuses. Policy
// rejections use 402 so clients can show upgrade messaging instead of a
// generic failure.
func writeCoreError(w http.ResponseWriter, err error, logContext string) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, core.ErrQuotaExceeded):
		http.Error(w, "Question quota exceeded in free version", http.StatusPaymentRequired)
	case errors.Is(err, core.ErrFeatureGated):
		http.Error(w, "Feature available in premium version only", http.StatusPaymentRequired)
	default:
		log.Printf("%s: %v", logContext, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// Auth handlers

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type TokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	User         *store.User `json:"user"`
}

func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" || req.FirstName == "" || req.LastName == "" {
		http.Error(w, "Email, password, first name and last name are required", http.StatusBadRequest)
		return
	}

	existing, err := h.store.GetUserByEmail(req.Email)
	if err != nil {
		log.Printf("Error checking existing user %s: %v", req.Email, err)
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		http.Error(w, "Email already registered", http.StatusBadRequest)
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("Error hashing password for user %s: %v", req.Email, err)
		http.Error(w, "Failed to process password", http.StatusInternalServerError)
		return
	}

	user, err := h.store.CreateUser(req.Email, hashedPassword, req.FirstName, req.LastName, config.AppConfig.TrialDays)
	if err != nil {
		log.Printf("Error creating user %s: %v", req.Email, err)
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	h.writeTokens(w, http.StatusCreated, user)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		http.Error(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.store.GetUserByEmail(req.Email)
	if err != nil {
		log.Printf("Error getting user %s: %v", req.Email, err)
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	h.writeTokens(w, http.StatusOK, user)
}

func (h *APIHandler) writeTokens(w http.ResponseWriter, status int, user *store.User) {
	accessToken, err := auth.GenerateAccessToken(user.ID)
	if err != nil {
		log.Printf("Error generating access token for user %s: %v", user.ID, err)
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}
	refreshToken, err := auth.GenerateRefreshToken(user.ID)
	if err != nil {
		log.Printf("Error generating refresh token for user %s: %v", user.ID, err)
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	json.NewEncoder(w).Encode(TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		User:         user,
	})
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *APIHandler) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	userID, err := auth.ValidateToken(req.RefreshToken)
	if err != nil {
		http.Error(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}

	accessToken, err := auth.GenerateAccessToken(userID)
	if err != nil {
		log.Printf("Error generating access token for user %s: %v", userID, err)
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"access_token": accessToken, "token_type": "bearer"})
}

func (h *APIHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(currentUser(r))
}

// Children handlers

type ChildView struct {
	store.Child
	AgeMonths int `json:"age_months"`
}

func childView(child store.Child) ChildView {
	return ChildView{
		Child:     child,
		AgeMonths: core.ChildAgeMonths(child.BirthYear, child.BirthMonth, time.Now().UTC()),
	}
}

func (h *APIHandler) ListChildrenHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	children, err := h.store.GetChildrenByParent(user.ID)
	if err != nil {
		log.Printf("Error listing children for user %s: %v", user.ID, err)
		http.Error(w, "Failed to list children", http.StatusInternalServerError)
		return
	}

	views := make([]ChildView, 0, len(children))
	for _, child := range children {
		views = append(views, childView(child))
	}
	json.NewEncoder(w).Encode(views)
}

type CreateChildRequest struct {
	Name       string `json:"name"`
	Gender     string `json:"gender"`
	BirthMonth int    `json:"birth_month"`
	BirthYear  int    `json:"birth_year"`
}

func (h *APIHandler) CreateChildHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var req CreateChildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Name == "" || len(req.Name) > 50 {
		http.Error(w, "Child name must be 1-50 characters", http.StatusBadRequest)
		return
	}
	if req.Gender != "boy" && req.Gender != "girl" {
		http.Error(w, "Gender must be 'boy' or 'girl'", http.StatusBadRequest)
		return
	}
	if req.BirthMonth < 1 || req.BirthMonth > 12 {
		http.Error(w, "Birth month must be 1-12", http.StatusBadRequest)
		return
	}
	if req.BirthYear < 2000 || req.BirthYear > time.Now().Year() {
		http.Error(w, "Birth year is out of range", http.StatusBadRequest)
		return
	}

	count, err := h.store.CountChildren(user.ID)
	if err != nil {
		log.Printf("Error counting children for user %s: %v", user.ID, err)
		http.Error(w, "Failed to create child", http.StatusInternalServerError)
		return
	}
	if count >= maxChildrenPerAccount {
		http.Error(w, "Maximum 4 children allowed", http.StatusBadRequest)
		return
	}

	child := &store.Child{
		ParentID:   user.ID,
		Name:       req.Name,
		Gender:     req.Gender,
		BirthMonth: req.BirthMonth,
		BirthYear:  req.BirthYear,
	}
	if err := h.store.CreateChild(child); err != nil {
		log.Printf("Error creating child for user %s: %v", user.ID, err)
		http.Error(w, "Failed to create child", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(childView(*child))
}

func (h *APIHandler) DeleteChildHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	childID := chi.URLParam(r, "childID")

	deleted, err := h.store.DeleteChild(childID, user.ID)
	if err != nil {
		log.Printf("Error deleting child %s for user %s: %v", childID, user.ID, err)
		http.Error(w, "Failed to delete child", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "Child not found", http.StatusNotFound)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"message": "Child deleted successfully"})
}

func (h *APIHandler) ChildComplexityHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	childID := chi.URLParam(r, "childID")

	child, err := h.store.GetChild(childID, user.ID)
	if err != nil {
		log.Printf("Error getting child %s for user %s: %v", childID, user.ID, err)
		http.Error(w, "Failed to get child", http.StatusInternalServerError)
		return
	}
	if child == nil {
		http.Error(w, "Child not found", http.StatusNotFound)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"child_id":         child.ID,
		"name":             child.Name,
		"complexity_level": child.ComplexityLevel,
		"age_years":        core.ChildAgeYears(child.BirthMonth, child.BirthYear, time.Now().UTC()),
	})
}

// Question and feedback handlers

type AskQuestionRequest struct {
	Question string `json:"question"`
	ChildID  string `json:"child_id"`
}

func (h *APIHandler) AskQuestionHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var req AskQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Question == "" || req.ChildID == "" {
		http.Error(w, "Question and child_id are required", http.StatusBadRequest)
		return
	}

	resp, err := h.questions.AskQuestion(r.Context(), user, req.ChildID, req.Question)
	if err != nil {
		writeCoreError(w, err, "Error answering question for user "+user.ID)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

func (h *APIHandler) ChildResponsesHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	childID := chi.URLParam(r, "childID")

	responses, err := h.questions.History(user, childID)
	if err != nil {
		writeCoreError(w, err, "Error listing responses for user "+user.ID)
		return
	}
	if responses == nil {
		responses = []store.Response{}
	}
	json.NewEncoder(w).Encode(responses)
}

type FeedbackRequest struct {
	Feedback string `json:"feedback"`
}

func (h *APIHandler) FeedbackHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	responseID := chi.URLParam(r, "responseID")

	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	kind, err := core.ParseFeedbackKind(req.Feedback)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.feedback.Submit(r.Context(), user, responseID, kind)
	if err != nil {
		writeCoreError(w, err, "Error submitting feedback for user "+user.ID)
		return
	}
	json.NewEncoder(w).Encode(result)
}
