package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/alexfofanov/company-structure/config"
	"github.com/alexfofanov/company-structure/internal/dto"
	"github.com/alexfofanov/company-structure/internal/model"
	"github.com/alexfofanov/company-structure/internal/repository"
	"github.com/alexfofanov/company-structure/pkg/jwt"
)

// ── 测试辅助 ──

func setupTestAuthService(t *testing.T) (AuthService, *mockUserRepo, *mockCache, *jwt.Manager) {
	t.Helper()
	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:      "test-secret-key-at-least-32-bytes-long",
			AccessTokenTTL: 15 * time.Minute,
		},
	}
	userRepo := newMockUserRepo()
	repo := &repository.Repository{User: userRepo}
	jwtMgr := jwt.NewManager(&cfg.Auth)
	cache := newMockCache()
	svc := NewAuthService(cfg, repo, jwtMgr, cache, zap.NewNop())
	return svc, userRepo, cache, jwtMgr
}

func seedUser(t *testing.T, repo *mockUserRepo, username, password, role string, active bool) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("生成密码哈希失败: %v", err)
	}
	u := &model.User{Username: username, PasswordHash: string(hash), Role: role, IsActive: active}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("创建用户失败: %v", err)
	}
	return u
}

// ── Login ──

func TestAuthService_Login_Success(t *testing.T) {
	svc, repo, _, jwtMgr := setupTestAuthService(t)
	seedUser(t, repo, "admin", "password123", model.RoleAdmin, true)

	resp, err := svc.Login(context.Background(), &dto.LoginRequest{Username: "admin", Password: "password123"})
	if err != nil {
		t.Fatalf("Login 应成功: %v", err)
	}
	if resp.ExpiresIn != 900 {
		t.Errorf("期望 ExpiresIn=900，实际 %d", resp.ExpiresIn)
	}
	if resp.User.Role != model.RoleAdmin {
		t.Errorf("期望角色 admin，实际 %s", resp.User.Role)
	}

	claims, err := jwtMgr.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("签发的 Token 应可解析: %v", err)
	}
	if claims.UserID != resp.User.ID {
		t.Errorf("Token 中 user_id 不匹配")
	}
}

func TestAuthService_Login_Failures(t *testing.T) {
	svc, repo, _, _ := setupTestAuthService(t)
	seedUser(t, repo, "viewer", "password123", model.RoleViewer, true)
	seedUser(t, repo, "disabled", "password123", model.RoleViewer, false)

	cases := []dto.LoginRequest{
		{Username: "viewer", Password: "wrong-password"},
		{Username: "nobody", Password: "password123"},
		{Username: "disabled", Password: "password123"},
	}
	for _, req := range cases {
		if _, err := svc.Login(context.Background(), &req); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("%s: 期望 ErrInvalidCredentials，实际: %v", req.Username, err)
		}
	}
}

// ── Logout / Me ──

func TestAuthService_Logout_Blacklists(t *testing.T) {
	svc, repo, cache, jwtMgr := setupTestAuthService(t)
	u := seedUser(t, repo, "admin", "password123", model.RoleAdmin, true)

	token, _ := jwtMgr.GenerateAccessToken(u.UserID, u.Role)
	claims, _ := jwtMgr.ParseToken(token)

	if err := svc.Logout(context.Background(), claims); err != nil {
		t.Fatalf("Logout 应成功: %v", err)
	}
	ttl, ok := cache.blacklisted[claims.ID]
	if !ok {
		t.Fatal("Token 应被加入黑名单")
	}
	if ttl <= 0 || ttl > 15*time.Minute {
		t.Errorf("黑名单 TTL 应为 Token 剩余有效期，实际 %v", ttl)
	}
}

func TestAuthService_Me(t *testing.T) {
	svc, repo, _, _ := setupTestAuthService(t)
	u := seedUser(t, repo, "admin", "password123", model.RoleAdmin, true)

	me, err := svc.Me(context.Background(), u.UserID)
	if err != nil {
		t.Fatalf("Me 应成功: %v", err)
	}
	if me.Username != "admin" || !me.IsActive {
		t.Errorf("用户信息错误: %+v", me)
	}

	if _, err := svc.Me(context.Background(), "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("期望 ErrUserNotFound，实际: %v", err)
	}
}

// ── CreateUser ──

func TestAuthService_CreateUser(t *testing.T) {
	svc, repo, _, _ := setupTestAuthService(t)
	ctx := context.Background()

	resp, err := svc.CreateUser(ctx, &dto.CreateUserRequest{Username: "root", Password: "password123", Role: model.RoleAdmin})
	if err != nil {
		t.Fatalf("CreateUser 应成功: %v", err)
	}
	stored, _ := repo.GetByID(ctx, resp.ID)
	if bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("password123")) != nil {
		t.Error("密码应以 bcrypt 哈希保存")
	}

	_, err = svc.CreateUser(ctx, &dto.CreateUserRequest{Username: "root", Password: "password456", Role: model.RoleViewer})
	if !errors.Is(err, ErrUsernameExists) {
		t.Errorf("期望 ErrUsernameExists，实际: %v", err)
	}
}
