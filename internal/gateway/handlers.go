package gateway

import (
	"encoding/json"
	"net/http"
)

// registerRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /tools", s.handleTools)
	mux.HandleFunc("POST /clear-history/{clientID}", s.handleClearHistory)
	mux.HandleFunc("GET /ws/{clientID}", s.handleWebSocket)

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Message: "parley is running",
	})
}

// ToolInfo describes one tool for introspection clients.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolsResponse is returned by the tools endpoint.
type ToolsResponse struct {
	Tools     []ToolInfo `json:"tools"`
	AgentName string     `json:"agent_name"`
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	defs := s.tools.Definitions()
	infos := make([]ToolInfo, 0, len(defs))
	for _, def := range defs {
		infos = append(infos, ToolInfo{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  def.InputSchema,
		})
	}
	writeJSON(w, http.StatusOK, ToolsResponse{
		Tools:     infos,
		AgentName: s.agentName,
	})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("clientID")
	s.coord.Clear(r.Context(), clientID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Conversation history cleared",
	})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
