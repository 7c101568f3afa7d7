package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/miMejorLuz/savings-advisor-service/internal/models"
)

// LoginRequest represents the login request body
type LoginRequest struct {
	ClientID string `json:"clientId"`
	Secret   string `json:"secret"`
}

// LoginResponse represents the successful login response
type LoginResponse struct {
	Token    string `json:"token"`
	ClientID string `json:"clientId"`
}

// LoginHandler exchanges configured client credentials for a token.
func LoginHandler(clients []models.APIClient) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.ClientID == "" || req.Secret == "" {
			http.Error(w, `{"error":"clientId and secret are required"}`, http.StatusBadRequest)
			return
		}

		if !verifyCredentials(clients, req.ClientID, req.Secret) {
			http.Error(w, `{"error":"invalid credentials"}`, http.StatusUnauthorized)
			return
		}

		token, err := GenerateToken(req.ClientID)
		if err != nil {
			http.Error(w, `{"error":"failed to generate token"}`, http.StatusInternalServerError)
			return
		}

		json.NewEncoder(w).Encode(LoginResponse{Token: token, ClientID: req.ClientID})
	}
}

// verifyCredentials checks id and secret in constant time per candidate,
// and always walks the full client list.
func verifyCredentials(clients []models.APIClient, id, secret string) bool {
	valid := false
	for _, c := range clients {
		idMatch := subtle.ConstantTimeCompare([]byte(c.ID), []byte(id)) == 1
		secretMatch := subtle.ConstantTimeCompare([]byte(c.Secret), []byte(secret)) == 1
		if idMatch && secretMatch {
			valid = true
		}
	}
	return valid
}
