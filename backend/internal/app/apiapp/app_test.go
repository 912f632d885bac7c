package apiapp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/config"
	"github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/transport/http/dto"
)

func newTestApp(t *testing.T) (*App, config.Config) {
	t.Helper()

	cfg := config.Default()
	cfg.Auth.BotToken = testBotToken
	cfg.Auth.AdminIDs = []int64{1}
	cfg.Storage.MIDIDir = t.TempDir()
	cfg.Actions.LogPath = filepath.Join(t.TempDir(), "actions.log")
	cfg.Upload.Token = "bot-secret"

	app, err := New(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return app, cfg
}

func TestAppRequiresLogger(t *testing.T) {
	if _, err := New(context.Background(), config.Default(), nil); err == nil {
		t.Fatalf("expected error for nil logger")
	}
}

func TestAppRequiresBotToken(t *testing.T) {
	if _, err := New(context.Background(), config.Default(), zap.NewNop()); err == nil {
		t.Fatalf("expected error for empty bot token")
	}
}

func TestAppServesAuthFlow(t *testing.T) {
	app, _ := newTestApp(t)
	h := app.Handler()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("health: unexpected status %d", rr.Code)
	}

	body, _ := json.Marshal(dto.AuthRequest{InitData: signedInitData(1)})
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/auth", bytes.NewReader(body)))
	var auth dto.AuthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &auth); err != nil {
		t.Fatalf("decode auth: %v", err)
	}
	if !auth.OK || !auth.IsAdmin {
		t.Fatalf("unexpected auth response: %+v", auth)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "tma "+signedInitData(2))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("me: unexpected status %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("me without credential: unexpected status %d", rr.Code)
	}
}

func TestAppAdminListAndUploadToken(t *testing.T) {
	app, cfg := newTestApp(t)
	h := app.Handler()

	if err := os.WriteFile(filepath.Join(cfg.Storage.MIDIDir, "a.mid"), []byte("MThd"), 0o644); err != nil {
		t.Fatalf("write midi: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/list", nil)
	req.Header.Set("Authorization", "tma "+signedInitData(2))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("non-admin list: unexpected status %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/list", nil)
	req.Header.Set("Authorization", "tma "+signedInitData(1))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var list dto.MIDIListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if rr.Code != http.StatusOK || len(list.Files) != 1 {
		t.Fatalf("admin list: unexpected response %d %+v", rr.Code, list)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/upload-midi", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("upload without token: unexpected status %d", rr.Code)
	}
}

func TestAppActionsFromLogFile(t *testing.T) {
	app, cfg := newTestApp(t)
	log := "2024-05-01 10:00:00 | user=2 | action=convert | file=a.wav\n" +
		"2024-05-01 10:01:00 | user=3 | action=convert\n"
	if err := os.WriteFile(cfg.Actions.LogPath, []byte(log), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/actions", nil)
	req.Header.Set("Authorization", "tma "+signedInitData(2))
	rr := httptest.NewRecorder()
	app.Handler().ServeHTTP(rr, req)

	var resp dto.ActionsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode actions: %v", err)
	}
	if rr.Code != http.StatusOK || resp.Total != 1 || resp.Items[0].UserID != 2 {
		t.Fatalf("unexpected actions response: %d %+v", rr.Code, resp)
	}
}
