package main

import (
	"fmt"
	"log"
	"net/http"

	"learncoach/config"
	"learncoach/handlers"
	"learncoach/services/generate"
	"learncoach/services/orchestrator"
	"learncoach/store"

	"github.com/gorilla/mux"
)

func main() {
	cfg := config.Load()

	kv, closeStore := buildStore(cfg)
	defer closeStore()

	gen := generate.NewRetrying(buildGenerator(cfg))
	registry := orchestrator.NewRegistry(kv, gen)
	coachHandler := handlers.NewCoachHandler(registry)

	router := mux.NewRouter()

	router.Use(corsMiddleware)
	router.Use(jsonMiddleware)

	router.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("OPTIONS")

	coachHandler.RegisterRoutes(router)

	router.HandleFunc("/health", healthCheckHandler).Methods("GET")

	addr := ":" + cfg.Port
	fmt.Printf("Server starting on port %s\n", cfg.Port)

	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

// buildStore selects the persistence backend: Postgres when DB_URL is set,
// the JSON file store otherwise.
func buildStore(cfg *config.Config) (store.Store, func()) {
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize postgres store: %v", err)
		}
		log.Printf("[INFO] Using postgres store")
		return pg, func() { pg.Close() }
	}
	log.Printf("[INFO] Using file store at %s", cfg.StoreFile)
	return store.NewFileStore(cfg.StoreFile), func() {}
}

// buildGenerator selects the LLM backend from config. Without any API key
// the static offline generator keeps the service usable: deterministic
// fallback plans, seed quizzes and canned lessons.
func buildGenerator(cfg *config.Config) generate.ContentGenerator {
	switch {
	case cfg.LLMProvider == "anthropic" && cfg.AnthropicAPIKey != "":
		log.Printf("[INFO] Using anthropic generator (%s)", cfg.AnthropicModel)
		return generate.NewAnthropicGenerator(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	case cfg.OpenAIAPIKey != "":
		gen, err := generate.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		if err != nil {
			log.Fatalf("Failed to initialize openai generator: %v", err)
		}
		log.Printf("[INFO] Using openai generator (%s)", cfg.OpenAIModel)
		return gen
	default:
		log.Printf("[INFO] No LLM API key configured, using static generator")
		return generate.Static{}
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Expose-Headers", "*")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "healthy"}`))
}
