// Command smoke-auth exercises a running API end to end: login, an
// authenticated whoami, logout, and a check that the revoked token is
// rejected afterwards.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

func main() {
	log.SetFlags(0)

	base := os.Getenv("ANIMCENTRE_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	username := os.Getenv("ANIMCENTRE_SMOKE_USERNAME")
	password := os.Getenv("ANIMCENTRE_SMOKE_PASSWORD")
	if username == "" || password == "" {
		log.Fatal("set ANIMCENTRE_SMOKE_USERNAME and ANIMCENTRE_SMOKE_PASSWORD")
	}

	client := &http.Client{Timeout: 10 * time.Second}

	// Login.
	body, _ := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	resp, err := client.Post(base+"/v1/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("login request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("login: expected 200, got %d", resp.StatusCode)
	}
	var session struct {
		Token string `json:"token"`
		User  struct {
			Username string `json:"username"`
		} `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		log.Fatalf("decode login response: %v", err)
	}
	resp.Body.Close()
	if session.Token == "" {
		log.Fatal("login returned no token")
	}

	// Whoami with the fresh token.
	status, err := do(client, http.MethodGet, base+"/v1/auth/me", session.Token)
	if err != nil {
		log.Fatalf("me request: %v", err)
	}
	if status != http.StatusOK {
		log.Fatalf("me: expected 200, got %d", status)
	}

	// Logout.
	status, err = do(client, http.MethodPost, base+"/v1/auth/logout", session.Token)
	if err != nil {
		log.Fatalf("logout request: %v", err)
	}
	if status != http.StatusNoContent {
		log.Fatalf("logout: expected 204, got %d", status)
	}

	// The revoked token must now be rejected.
	status, err = do(client, http.MethodGet, base+"/v1/auth/me", session.Token)
	if err != nil {
		log.Fatalf("me-after-logout request: %v", err)
	}
	if status != http.StatusUnauthorized {
		log.Fatalf("me after logout: expected 401, got %d", status)
	}

	fmt.Printf("auth smoke test passed for %s\n", session.User.Username)
}

func do(client *http.Client, method, url, token string) (int, error) {
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
