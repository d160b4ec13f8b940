package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"taskmaster/internal/app/service"
	"taskmaster/internal/common/security"
	"taskmaster/internal/domain/repository"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv, _ := newTestServerWithServices(t)
	return srv
}

func newTestServerWithServices(t *testing.T) (*httptest.Server, Services) {
	t.Helper()
	store := repository.NewMemoryStore()
	sessions := repository.NewMemorySessionStore()
	tokens := security.NewTokenIssuer([]byte("router-test-secret"), time.Hour)
	hasher := security.NewPasswordHasher(4)

	services := Services{
		Tokens:   tokens,
		Auth:     service.NewAuthService(store.Users, sessions, tokens, hasher, nil, time.Hour),
		Users:    service.NewUserService(store, sessions, nil),
		Projects: service.NewProjectService(store, nil),
		Tasks:    service.NewTaskService(store, nil),
		Insights: service.NewInsightService(store),
	}
	srv := httptest.NewServer(NewRouter(services))
	t.Cleanup(srv.Close)
	return srv, services
}

// call sends body as JSON and decodes the response into a generic map.
func call(t *testing.T, srv *httptest.Server, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	out := map[string]interface{}{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("%s %s: decode response: %v", method, path, err)
	}
	return resp.StatusCode, out
}

func register(t *testing.T, srv *httptest.Server, username string) (token, userID string) {
	t.Helper()
	code, body := call(t, srv, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret123",
	})
	if code != http.StatusCreated {
		t.Fatalf("register %s: status %d, body %v", username, code, body)
	}
	user := body["user"].(map[string]interface{})
	return body["token"].(string), user["id"].(string)
}

func TestHealthAndUnknownRoute(t *testing.T) {
	srv := newTestServer(t)

	code, body := call(t, srv, http.MethodGet, "/health", "", nil)
	if code != http.StatusOK || body["status"] != "OK" {
		t.Fatalf("health: %d %v", code, body)
	}
	if _, ok := body["uptime"].(float64); !ok {
		t.Fatalf("health uptime missing: %v", body)
	}

	code, body = call(t, srv, http.MethodGet, "/api/nope", "", nil)
	if code != http.StatusNotFound || body["error"] != "Route not found" {
		t.Fatalf("unknown route: %d %v", code, body)
	}
}

func TestAuthFlow(t *testing.T) {
	srv := newTestServer(t)
	token, _ := register(t, srv, "alice")

	code, body := call(t, srv, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice2", "email": "alice@example.com", "password": "secret123",
	})
	if code != http.StatusConflict {
		t.Fatalf("duplicate email: %d %v", code, body)
	}

	code, body = call(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong-password",
	})
	if code != http.StatusUnauthorized || body["error"] != "Invalid credentials" {
		t.Fatalf("bad login: %d %v", code, body)
	}

	code, body = call(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "secret123",
	})
	if code != http.StatusOK || body["token"] == "" {
		t.Fatalf("login: %d %v", code, body)
	}

	code, body = call(t, srv, http.MethodGet, "/api/auth/profile", "", nil)
	if code != http.StatusUnauthorized || body["error"] != "Access denied. No token provided." {
		t.Fatalf("profile without token: %d %v", code, body)
	}
	code, body = call(t, srv, http.MethodGet, "/api/auth/profile", "not-a-jwt", nil)
	if code != http.StatusUnauthorized || body["error"] != "Invalid or expired token" {
		t.Fatalf("profile with garbage token: %d %v", code, body)
	}
	code, _ = call(t, srv, http.MethodGet, "/api/auth/profile", token, nil)
	if code != http.StatusOK {
		t.Fatalf("profile: %d", code)
	}

	code, body = call(t, srv, http.MethodPost, "/api/auth/validate", "", map[string]string{"token": token})
	if code != http.StatusOK || body["valid"] != true {
		t.Fatalf("validate: %d %v", code, body)
	}

	code, _ = call(t, srv, http.MethodPost, "/api/auth/logout", token, nil)
	if code != http.StatusOK {
		t.Fatalf("logout: %d", code)
	}
	code, body = call(t, srv, http.MethodGet, "/api/auth/profile", token, nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("profile after logout: %d %v", code, body)
	}
	code, body = call(t, srv, http.MethodPost, "/api/auth/validate", "", map[string]string{"token": token})
	if code != http.StatusOK || body["valid"] != false {
		t.Fatalf("validate after logout: %d %v", code, body)
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	srv := newTestServer(t)
	token, _ := register(t, srv, "bob")

	code, body := call(t, srv, http.MethodGet, "/api/auth/users", token, nil)
	if code != http.StatusForbidden || body["error"] != "Admin access required" {
		t.Fatalf("non-admin user list: %d %v", code, body)
	}
}

func TestRoleChangeEndsSessions(t *testing.T) {
	srv, services := newTestServerWithServices(t)
	if err := services.Auth.EnsureAdmin(context.Background(), "root", "root@example.com", "rootpass123"); err != nil {
		t.Fatal(err)
	}
	code, body := call(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "root@example.com", "password": "rootpass123",
	})
	if code != http.StatusOK {
		t.Fatalf("root login: %d %v", code, body)
	}
	rootToken := body["token"].(string)

	_, bobID := register(t, srv, "bob")
	code, body = call(t, srv, http.MethodPut, "/api/auth/users/"+bobID, rootToken, map[string]string{"role": "admin"})
	if code != http.StatusOK {
		t.Fatalf("promote bob: %d %v", code, body)
	}

	code, body = call(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "bob@example.com", "password": "secret123",
	})
	if code != http.StatusOK {
		t.Fatalf("bob login: %d %v", code, body)
	}
	bobToken := body["token"].(string)
	code, _ = call(t, srv, http.MethodGet, "/api/auth/users", bobToken, nil)
	if code != http.StatusOK {
		t.Fatalf("admin bob lists users: %d", code)
	}

	code, body = call(t, srv, http.MethodPut, "/api/auth/users/"+bobID, rootToken, map[string]string{"role": "user"})
	if code != http.StatusOK {
		t.Fatalf("demote bob: %d %v", code, body)
	}
	code, _ = call(t, srv, http.MethodGet, "/api/auth/users", bobToken, nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("demoted bob lists users with old token: %d", code)
	}
	code, body = call(t, srv, http.MethodPut, "/api/auth/users/"+bobID, bobToken, map[string]string{"role": "admin"})
	if code != http.StatusUnauthorized {
		t.Fatalf("demoted bob self-promotes with old token: %d %v", code, body)
	}

	code, body = call(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "bob@example.com", "password": "secret123",
	})
	if code != http.StatusOK {
		t.Fatalf("bob login after demotion: %d %v", code, body)
	}
	bobToken = body["token"].(string)
	code, body = call(t, srv, http.MethodPut, "/api/auth/users/"+bobID, bobToken, map[string]string{"role": "admin"})
	if code != http.StatusForbidden {
		t.Fatalf("bob self-promotes with fresh token: %d %v", code, body)
	}
	code, _ = call(t, srv, http.MethodGet, "/api/auth/users", bobToken, nil)
	if code != http.StatusForbidden {
		t.Fatalf("bob lists users after demotion: %d", code)
	}
}

func TestProjectAndTaskFlow(t *testing.T) {
	srv := newTestServer(t)
	token, userID := register(t, srv, "carol")
	other, _ := register(t, srv, "dave")

	code, body := call(t, srv, http.MethodPost, "/api/projects", token, map[string]interface{}{
		"name": "Launch Plan", "description": "Q3 launch", "priority": "high", "tags": []string{"q3"},
	})
	if code != http.StatusCreated {
		t.Fatalf("create project: %d %v", code, body)
	}
	project := body["project"].(map[string]interface{})
	projectID := project["id"].(string)
	if project["status"] != "active" || project["owner"] != userID {
		t.Fatalf("project defaults: %v", project)
	}

	code, body = call(t, srv, http.MethodPost, "/api/projects", token, map[string]interface{}{})
	if code != http.StatusBadRequest {
		t.Fatalf("create without name: %d %v", code, body)
	}

	code, body = call(t, srv, http.MethodPut, "/api/projects/"+projectID+"/status", token, map[string]string{"status": "sideways"})
	if code != http.StatusBadRequest || body["error"] != "Invalid status" {
		t.Fatalf("invalid status: %d %v", code, body)
	}

	code, _ = call(t, srv, http.MethodGet, "/api/projects/"+projectID, other, nil)
	if code != http.StatusForbidden {
		t.Fatalf("outsider read: %d", code)
	}

	code, body = call(t, srv, http.MethodGet, "/api/projects?limit=5", token, nil)
	if code != http.StatusOK || body["count"].(float64) != 1 {
		t.Fatalf("list projects: %d %v", code, body)
	}
	code, body = call(t, srv, http.MethodGet, "/api/projects/search?q=launch", token, nil)
	if code != http.StatusOK || body["count"].(float64) != 1 {
		t.Fatalf("search projects: %d %v", code, body)
	}

	code, body = call(t, srv, http.MethodPost, "/api/tasks", token, map[string]interface{}{
		"title": "Write copy", "projectId": projectID, "assignedTo": "no-such-user",
	})
	if code != http.StatusBadRequest || body["error"] != "Invalid user" {
		t.Fatalf("invalid assignee: %d %v", code, body)
	}

	code, body = call(t, srv, http.MethodPost, "/api/tasks", token, map[string]interface{}{
		"title": "Write copy", "projectId": projectID, "assignedTo": userID,
	})
	if code != http.StatusCreated {
		t.Fatalf("create task: %d %v", code, body)
	}
	taskID := body["task"].(map[string]interface{})["id"].(string)

	code, body = call(t, srv, http.MethodPost, "/api/tasks/"+taskID+"/comments", token, map[string]string{"text": "draft ready"})
	if code != http.StatusOK || len(body["comments"].([]interface{})) != 1 {
		t.Fatalf("add comment: %d %v", code, body)
	}

	code, body = call(t, srv, http.MethodPut, "/api/tasks/"+taskID+"/status", token, map[string]string{"status": "completed"})
	if code != http.StatusOK {
		t.Fatalf("complete task: %d %v", code, body)
	}
	code, body = call(t, srv, http.MethodGet, "/api/projects/"+projectID, token, nil)
	if code != http.StatusOK || body["project"].(map[string]interface{})["progress"].(float64) != 100 {
		t.Fatalf("project progress: %d %v", code, body)
	}

	code, body = call(t, srv, http.MethodGet, "/api/tasks/my-tasks", token, nil)
	if code != http.StatusOK || len(body["tasks"].([]interface{})) != 1 {
		t.Fatalf("my tasks: %d %v", code, body)
	}

	code, _ = call(t, srv, http.MethodDelete, "/api/projects/"+projectID, token, nil)
	if code != http.StatusOK {
		t.Fatalf("delete project: %d", code)
	}
	code, body = call(t, srv, http.MethodGet, "/api/tasks/"+taskID, token, nil)
	if code != http.StatusNotFound {
		t.Fatalf("task after project delete: %d %v", code, body)
	}
}

func TestUtilityRoutes(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		path string
		body interface{}
		key  string
		want interface{}
	}{
		{"/api/strings/capitalize", map[string]string{"text": "hello world"}, "capitalized", "Hello World"},
		{"/api/strings/slugify", map[string]string{"text": "Hello World!"}, "slug", "hello-world"},
		{"/api/strings/slugify", map[string]string{"text": "Tom & Jerry"}, "slug", "tom-jerry"},
		{"/api/strings/count", map[string]string{"text": "one two three"}, "count", float64(3)},
		{"/api/calculator/add", map[string]interface{}{"numbers": []float64{}}, "result", float64(0)},
		{"/api/calculator/multiply", map[string]float64{"cost": 2.5, "quantity": 4}, "result", float64(10)},
		{"/api/calculator/discount", map[string]float64{"amount": 1000, "percentage": 10}, "result", float64(900)},
		{"/api/datetime/add-days", map[string]interface{}{"date": "2024-01-01", "days": 5}, "result", "2024-01-06"},
		{"/api/datetime/diff-days", map[string]string{"start": "2024-01-01", "end": "2024-01-05"}, "result", float64(4)},
		{"/api/datetime/format", map[string]string{"date": "2024-01-01"}, "result", "January 1, 2024"},
		{"/api/datetime/is-weekend", map[string]string{"date": "2024-01-06"}, "result", true},
	}
	for _, tt := range tests {
		code, body := call(t, srv, http.MethodPost, tt.path, "", tt.body)
		if code != http.StatusOK || body[tt.key] != tt.want {
			t.Errorf("POST %s: %d %v, want %s=%v", tt.path, code, body, tt.key, tt.want)
		}
	}

	code, body := call(t, srv, http.MethodPost, "/api/strings/capitalize", "", map[string]string{})
	if code != http.StatusBadRequest {
		t.Errorf("capitalize without text: %d %v", code, body)
	}
	code, body = call(t, srv, http.MethodPost, "/api/calculator/discount", "", map[string]float64{"amount": 10, "percentage": 150})
	if code != http.StatusBadRequest {
		t.Errorf("discount over 100%%: %d %v", code, body)
	}
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		code, body = call(t, srv, method, "/api/datetime/current", "", nil)
		if code != http.StatusOK || body["current"] == "" {
			t.Errorf("%s current: %d %v", method, code, body)
		}
	}
}

func TestAdvancedRoutes(t *testing.T) {
	srv := newTestServer(t)

	code, _ := call(t, srv, http.MethodPost, "/api/advanced/fibonacci", "", map[string]int{"n": 5})
	if code != http.StatusUnauthorized {
		t.Fatalf("fibonacci without token: %d", code)
	}

	token, _ := register(t, srv, "erin")
	code, body := call(t, srv, http.MethodPost, "/api/advanced/fibonacci", token, map[string]int{"n": 5})
	if code != http.StatusOK || len(body["result"].([]interface{})) != 5 {
		t.Fatalf("fibonacci: %d %v", code, body)
	}
	code, body = call(t, srv, http.MethodPost, "/api/advanced/factorial", token, map[string]int{"number": 5})
	if code != http.StatusOK || body["result"].(float64) != 120 {
		t.Fatalf("factorial: %d %v", code, body)
	}
	code, body = call(t, srv, http.MethodPost, "/api/advanced/palindrome", token, map[string]string{"text": "Racecar"})
	if code != http.StatusOK || body["result"] != true {
		t.Fatalf("palindrome: %d %v", code, body)
	}
	code, body = call(t, srv, http.MethodGet, "/api/advanced/primes?limit=10", token, nil)
	if code != http.StatusOK || body["count"].(float64) != 4 {
		t.Fatalf("primes: %d %v", code, body)
	}
	code, body = call(t, srv, http.MethodGet, "/api/advanced/search", token, nil)
	if code != http.StatusBadRequest {
		t.Fatalf("search without q: %d %v", code, body)
	}
	code, body = call(t, srv, http.MethodGet, "/api/advanced/stats?timeRange=week", token, nil)
	if code != http.StatusOK {
		t.Fatalf("stats: %d %v", code, body)
	}
}
