package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"learncoach/models"
	"learncoach/services/orchestrator"

	"github.com/gorilla/mux"
)

type CoachHandler struct {
	registry *orchestrator.Registry
}

func NewCoachHandler(registry *orchestrator.Registry) *CoachHandler {
	return &CoachHandler{registry: registry}
}

func (h *CoachHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users/{userID}/chat", h.Chat).Methods("POST")
	router.HandleFunc("/users/{userID}/context", h.ActiveContext).Methods("GET")
	router.HandleFunc("/users/{userID}/plans/{planID}/switch", h.SwitchPlan).Methods("POST")
	router.HandleFunc("/users/{userID}/plans/{planID}/weeks/{index}", h.SwitchWeek).Methods("POST")
	router.HandleFunc("/users/{userID}/chats/{chatKey}", h.GetChatHistory).Methods("GET")
	router.HandleFunc("/users/{userID}/chats/{chatKey}", h.PutChatHistory).Methods("PUT")
}

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	Response string `json:"response"`
}

func (h *CoachHandler) Chat(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]
	log.Printf("[INFO] Received chat request for user %s", userID)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[ERROR] Failed to decode chat request JSON: %v", err)
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if req.Message == "" {
		h.writeErrorResponse(w, http.StatusBadRequest, "Message is required")
		return
	}

	response := h.registry.For(userID).Run(r.Context(), req.Message)
	h.writeJSONResponse(w, http.StatusOK, ChatResponse{Response: response})
}

func (h *CoachHandler) ActiveContext(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	plan := h.registry.For(userID).ActiveContext()
	if plan == nil {
		h.writeJSONResponse(w, http.StatusOK, map[string]any{})
		return
	}
	h.writeJSONResponse(w, http.StatusOK, plan)
}

func (h *CoachHandler) SwitchPlan(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID, planID := vars["userID"], vars["planID"]
	log.Printf("[INFO] Switching plan for user %s to %s", userID, planID)

	if !h.registry.For(userID).SwitchPlan(planID) {
		h.writeErrorResponse(w, http.StatusNotFound, "Plan not found")
		return
	}
	h.writeJSONResponse(w, http.StatusOK, map[string]string{"active_plan_id": planID})
}

func (h *CoachHandler) SwitchWeek(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID, planID := vars["userID"], vars["planID"]

	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Week index must be a number")
		return
	}
	log.Printf("[INFO] Switching user %s plan %s to week %d", userID, planID, index)

	if !h.registry.For(userID).SwitchWeek(planID, index) {
		h.writeErrorResponse(w, http.StatusBadRequest, "Plan not found or week index out of range")
		return
	}
	h.writeJSONResponse(w, http.StatusOK, map[string]any{"active_plan_id": planID, "active_week_index": index})
}

func (h *CoachHandler) GetChatHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	messages := h.registry.For(vars["userID"]).ChatHistory(vars["chatKey"])
	if messages == nil {
		messages = []models.Message{}
	}
	h.writeJSONResponse(w, http.StatusOK, messages)
}

func (h *CoachHandler) PutChatHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var messages []models.Message
	if err := json.NewDecoder(r.Body).Decode(&messages); err != nil {
		log.Printf("[ERROR] Failed to decode chat history JSON: %v", err)
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	h.registry.For(vars["userID"]).SaveChatHistory(vars["chatKey"], messages)
	h.writeJSONResponse(w, http.StatusOK, map[string]int{"saved": len(messages)})
}

func (h *CoachHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (h *CoachHandler) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
