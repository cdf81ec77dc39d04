package api

import (
	"net/http"
	"net/url"
	"testing"

	"schedulr/internal/model"
)

func TestUpdateInfo_UpsertAndNormalize(t *testing.T) {
	s := newTestServer(t)
	token := createUserToken(t, s, "alice", "a@x.com", "pw1")

	// 首次调用走创建分支
	w := doForm(t, s, http.MethodPatch, "/api/update/info", url.Values{
		"token":      {token},
		"bio":        {"Loves Distributed Systems"},
		"profession": {"Engineer"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	var info model.UserInfo
	if err := s.db.First(&info).Error; err != nil {
		t.Fatalf("info not stored: %v", err)
	}
	if info.Bio == nil || *info.Bio != "loves distributed systems" {
		t.Fatalf("bio should be lowercased, got %v", info.Bio)
	}
	if info.Profession == nil || *info.Profession != "engineer" {
		t.Fatalf("profession should be lowercased, got %v", info.Profession)
	}
	if info.OriginalName != nil {
		t.Fatalf("untouched field must stay nil, got %v", *info.OriginalName)
	}

	// 再次调用走更新分支，只动提交的字段
	w = doForm(t, s, http.MethodPatch, "/api/update/info", url.Values{
		"token":         {token},
		"original_name": {"Alice"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	if err := s.db.First(&info).Error; err != nil {
		t.Fatalf("reload info: %v", err)
	}
	if info.OriginalName == nil || *info.OriginalName != "Alice" {
		t.Fatalf("original_name not updated: %v", info.OriginalName)
	}
	if info.Bio == nil || *info.Bio != "loves distributed systems" {
		t.Fatalf("bio must stay unchanged, got %v", info.Bio)
	}

	var count int64
	s.db.Model(&model.UserInfo{}).Count(&count)
	if count != 1 {
		t.Fatalf("upsert must keep a single row per user, got %d", count)
	}
}

func TestUpdateInfo_NothingToUpdate(t *testing.T) {
	s := newTestServer(t)
	token := createUserToken(t, s, "alice", "a@x.com", "pw1")

	w := doForm(t, s, http.MethodPatch, "/api/update/info", url.Values{
		"token": {token},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if resp := decodeBody(t, w); resp["Message"] != "Nothing to update" {
		t.Fatalf("unexpected response: %v", resp)
	}
}

func TestGetInfo_EmptySentinel(t *testing.T) {
	s := newTestServer(t)
	token := createUserToken(t, s, "alice", "a@x.com", "pw1")

	w := doForm(t, s, http.MethodGet, "/api/get/info", url.Values{
		"token": {token},
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing profile, got %d (%s)", w.Code, w.Body.String())
	}
	if resp := decodeBody(t, w); resp["Data"] != "Empty" {
		t.Fatalf("expected Empty sentinel, got %v", resp)
	}
}

func TestGetInfo_ReturnsProfile(t *testing.T) {
	s := newTestServer(t)
	token := createUserToken(t, s, "alice", "a@x.com", "pw1")

	if w := doForm(t, s, http.MethodPatch, "/api/update/info", url.Values{
		"token": {token},
		"about": {"Hi There"},
	}); w.Code != http.StatusOK {
		t.Fatalf("seed profile: %d", w.Code)
	}

	w := doForm(t, s, http.MethodGet, "/api/get/info", url.Values{
		"token": {token},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	data, ok := decodeBody(t, w)["Data"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected Data object, got %s", w.Body.String())
	}
	if data["about"] != "hi there" {
		t.Fatalf("expected lowercased about, got %v", data["about"])
	}
}
