//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/techtrust/backend/config"
	"github.com/techtrust/backend/internal/server"
)

const (
	serverPort = 18080
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	mailSink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"messageId":"e2e"}`))
	}))
	defer mailSink.Close()

	srv, err := startServer(mailSink.URL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown()
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

// TestAccountLifecycle walks the whole identity flow: register, verify with
// the emailed OTP, log in, fetch /auth/me, then reset the password and log in
// with the new credential.
func TestAccountLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	email := fmt.Sprintf("dev_%d@example.com", time.Now().UnixNano())
	password := "testpass123!"

	user, err := registerAccount(t, baseURL, email, password)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !strings.HasPrefix(user.UserID, "USER-") {
		t.Fatalf("unexpected user id %q", user.UserID)
	}

	if _, err := loginAccount(t, baseURL, email, password); err == nil {
		t.Fatalf("expected login to fail before verification")
	}

	otp, err := readVerifyOTP(email)
	if err != nil {
		t.Fatalf("read verify otp: %v", err)
	}
	if err := verifyAccount(t, baseURL, email, otp); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := verifyAccount(t, baseURL, email, otp); err == nil {
		t.Fatalf("expected second verify to be rejected")
	}

	auth, err := loginAccount(t, baseURL, email, password)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if auth.Token == "" {
		t.Fatalf("missing token in login response")
	}

	me, err := fetchMe(t, baseURL, auth.Token)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if me.UserID != user.UserID {
		t.Fatalf("me returned %q, want %q", me.UserID, user.UserID)
	}

	newPassword := "newpass456!"
	if err := postJSON(baseURL+"/auth/reset/request", map[string]string{"email": email}, http.StatusOK); err != nil {
		t.Fatalf("reset request: %v", err)
	}
	resetOTP, err := readResetOTP(email)
	if err != nil {
		t.Fatalf("read reset otp: %v", err)
	}
	if err := postJSON(baseURL+"/auth/reset/confirm", map[string]string{
		"email":       email,
		"otp":         resetOTP,
		"newPassword": newPassword,
	}, http.StatusOK); err != nil {
		t.Fatalf("reset confirm: %v", err)
	}

	if _, err := loginAccount(t, baseURL, email, password); err == nil {
		t.Fatalf("expected old password to be rejected after reset")
	}
	if _, err := loginAccount(t, baseURL, email, newPassword); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

type userResponse struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

type registerResponse struct {
	User                 userResponse `json:"user"`
	RequiresVerification bool         `json:"requiresVerification"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

func registerAccount(t *testing.T, baseURL, email, password string) (userResponse, error) {
	t.Helper()

	payload := map[string]string{
		"name":     "E2E Developer",
		"email":    email,
		"password": password,
		"role":     "professional",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return userResponse{}, err
	}

	resp, err := http.Post(baseURL+"/auth/register", "application/json", bytes.NewReader(body))
	if err != nil {
		return userResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return userResponse{}, fmt.Errorf("register status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed registerResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return userResponse{}, err
	}
	if !parsed.RequiresVerification {
		return userResponse{}, fmt.Errorf("expected requiresVerification to be true")
	}
	return parsed.User, nil
}

func loginAccount(t *testing.T, baseURL, email, password string) (authResponse, error) {
	t.Helper()

	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return authResponse{}, err
	}

	resp, err := http.Post(baseURL+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return authResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return authResponse{}, fmt.Errorf("login status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed authResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return authResponse{}, err
	}
	return parsed, nil
}

func verifyAccount(t *testing.T, baseURL, email, otp string) error {
	t.Helper()
	return postJSON(baseURL+"/auth/verify", map[string]string{"email": email, "otp": otp}, http.StatusOK)
}

func fetchMe(t *testing.T, baseURL, token string) (userResponse, error) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, baseURL+"/auth/me", nil)
	if err != nil {
		return userResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return userResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return userResponse{}, fmt.Errorf("me status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed userResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return userResponse{}, err
	}
	return parsed, nil
}

func postJSON(url string, payload map[string]string, wantStatus int) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d, want %d: %s", resp.StatusCode, wantStatus, strings.TrimSpace(string(msg)))
	}
	return nil
}

// The OTP is only ever delivered by email; the tests pull it straight from
// the database instead of scraping the mail sink.
func readVerifyOTP(email string) (string, error) {
	return readAccountColumn(email, "verify_otp")
}

func readResetOTP(email string) (string, error) {
	return readAccountColumn(email, "reset_otp")
}

func readAccountColumn(email, column string) (string, error) {
	cfg := config.LoadConfig()
	db, err := sql.Open("postgres", buildPostgresURL(cfg))
	if err != nil {
		return "", err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var value string
	query := fmt.Sprintf("SELECT %s FROM accounts WHERE email = $1", column)
	if err := db.QueryRowContext(ctx, query, email).Scan(&value); err != nil {
		return "", err
	}
	if value == "" {
		return "", fmt.Errorf("no pending otp for %s", email)
	}
	return value, nil
}

func waitForPostgres(ctx context.Context) error {
	cfg := config.LoadConfig()
	dsn := buildPostgresURL(cfg)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	dsn := buildPostgresURL(cfg)
	migrationsPath := filepath.Join(root, "internal", "db", "migrations")
	migrationsURL := "file://" + migrationsPath

	migrator, err := migrate.New(migrationsURL, dsn)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func buildPostgresURL(cfg config.Config) string {
	sslmode := "disable"
	if cfg.Database.UseSSL {
		sslmode = "require"
	}
	host := fmt.Sprintf("%s:%d", cfg.Database.Host, cfg.Database.Port)
	return fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		host,
		cfg.Database.DBName,
		sslmode,
	)
}

func startServer(mailSinkURL string) (*server.Server, error) {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "techtrust")
	_ = os.Setenv("DB_PASSWORD", "password")
	_ = os.Setenv("DB_NAME", "techtrust_db")
	_ = os.Setenv("DB_USE_SSL", "false")
	_ = os.Setenv("BREVO_API_KEY", "e2e-test-key")
	_ = os.Setenv("BREVO_API_URL", mailSinkURL)

	cfg := config.LoadConfig()
	srv, err := server.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
