package auth

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"pkt.systems/halolight/internal/appconfig"
	"pkt.systems/halolight/schema"
)

func TestStoreSeedsDemoUsers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	store, err := NewStore(path, appconfig.DefaultSeedUsers())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	users := store.LoadUsers()
	if len(users) != 3 {
		t.Fatalf("expected 3 users, got %d", len(users))
	}
	if users[0].ID != "1" || users[1].ID != "2" || users[2].ID != "3" {
		t.Fatalf("expected users ordered by id, got %q %q %q", users[0].ID, users[1].ID, users[2].ID)
	}
	admin, err := store.Verify("ADMIN@halolight.h7ml.cn", appconfig.DemoPassword, "")
	if err != nil {
		t.Fatalf("verify admin: %v", err)
	}
	if !admin.Public().Can(schema.PermissionManage) {
		t.Fatalf("expected admin to manage, got %v", admin.Permissions)
	}
	if _, err := store.Verify("nobody@halolight.h7ml.cn", appconfig.DemoPassword, ""); !errors.Is(err, schema.ErrUserNotFound) {
		t.Fatalf("expected 用户不存在, got %v", err)
	}
	if _, err := store.Verify("admin@halolight.h7ml.cn", "wrong", ""); !errors.Is(err, schema.ErrWrongPassword) {
		t.Fatalf("expected 密码错误, got %v", err)
	}
}

func TestStoreRejectsInvalidSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	_, err := NewStoreWithLogger(path, []appconfig.SeedUser{
		{ID: "Bad User", Email: "bad@example.com", Password: "123456"},
	}, nil)
	if err == nil {
		t.Fatalf("expected error for invalid seed user")
	}
	_, err = NewStoreWithLogger(filepath.Join(t.TempDir(), "users.json"), []appconfig.SeedUser{
		{ID: "9", Email: "nopass@example.com"},
	}, nil)
	if err == nil {
		t.Fatalf("expected error for seed user without password")
	}
}

func TestStoreAddUserAssignsNextID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	store, err := NewStore(path, appconfig.DefaultSeedUsers())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	added, err := store.AddUser(Record{Email: "New@Example.com", Name: "New", PasswordHash: mustHash(t, "secret")})
	if err != nil {
		t.Fatalf("add user: %v", err)
	}
	if added.ID != "4" || added.Email != "new@example.com" || added.Role != schema.RoleUser {
		t.Fatalf("unexpected record: %+v", added)
	}
	if len(added.Permissions) != 1 || added.Permissions[0] != schema.PermissionRead {
		t.Fatalf("expected read-only permissions, got %v", added.Permissions)
	}
	if _, err := store.AddUser(Record{Email: "new@example.com", PasswordHash: mustHash(t, "secret")}); !errors.Is(err, schema.ErrEmailTaken) {
		t.Fatalf("expected 邮箱已被注册, got %v", err)
	}
}

func TestStoreTOTPGate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	secret := "JBSWY3DPEHPK3PXP"
	added, err := store.AddUser(Record{Email: "ops@example.com", PasswordHash: mustHash(t, "pass12"), TOTPSecret: secret})
	if err != nil {
		t.Fatalf("add user: %v", err)
	}
	if _, err := store.Verify("ops@example.com", "pass12", ""); !errors.Is(err, schema.ErrTOTPRequired) {
		t.Fatalf("expected totp required, got %v", err)
	}
	if _, err := store.Verify("ops@example.com", "pass12", "000000x"); !errors.Is(err, schema.ErrTOTPInvalid) {
		t.Fatalf("expected totp invalid, got %v", err)
	}
	if _, err := store.Verify("ops@example.com", "pass12", mustTOTP(t, secret)); err != nil {
		t.Fatalf("verify with totp: %v", err)
	}
	if err := store.UpdateTOTP(added.ID, ""); err != nil {
		t.Fatalf("disable totp: %v", err)
	}
	if _, err := store.Verify("ops@example.com", "pass12", ""); err != nil {
		t.Fatalf("verify without totp: %v", err)
	}
}

func TestStoreReloadsPasswordChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	writer, err := NewStoreWithLogger(path, nil, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	added, err := writer.AddUser(Record{Email: "alice@example.com", PasswordHash: mustHash(t, "old-pass")})
	if err != nil {
		t.Fatalf("add user: %v", err)
	}
	reader, err := NewStoreWithLogger(path, nil, nil)
	if err != nil {
		t.Fatalf("new store reader: %v", err)
	}
	if _, err := reader.Verify("alice@example.com", "old-pass", ""); err != nil {
		t.Fatalf("verify old password: %v", err)
	}
	if err := writer.UpdatePassword(added.ID, mustHash(t, "new-pass")); err != nil {
		t.Fatalf("update password: %v", err)
	}
	if _, err := reader.Verify("alice@example.com", "new-pass", ""); err != nil {
		t.Fatalf("verify new password: %v", err)
	}
	if _, err := reader.Verify("alice@example.com", "old-pass", ""); err == nil {
		t.Fatalf("expected old password to fail after refresh")
	}
}

func TestStoreReloadsUserAddDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	writer, err := NewStoreWithLogger(path, nil, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	reader, err := NewStoreWithLogger(path, nil, nil)
	if err != nil {
		t.Fatalf("new store reader: %v", err)
	}
	added, err := writer.AddUser(Record{Email: "bob@example.com", PasswordHash: mustHash(t, "pass12")})
	if err != nil {
		t.Fatalf("add user: %v", err)
	}
	if _, err := reader.UserByID(added.ID); err != nil {
		t.Fatalf("reader lookup: %v", err)
	}
	if err := writer.DeleteUser(added.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if _, err := reader.UserByEmail("bob@example.com"); !errors.Is(err, schema.ErrUserNotFound) {
		t.Fatalf("expected deleted user to vanish, got %v", err)
	}
	if err := writer.DeleteUser(added.ID); !errors.Is(err, schema.ErrUserNotFound) {
		t.Fatalf("expected second delete to fail, got %v", err)
	}
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return string(hash)
}

func mustTOTP(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatalf("totp code: %v", err)
	}
	return code
}

func TestStoreReadsLegacyArrayFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	legacy := `[{"id":"7","email":"Legacy@Example.com","name":"Legacy","role":"user","permissions":["read"],"password_hash":"` + mustHash(t, "pass12") + `"}]`
	if err := os.WriteFile(path, []byte(legacy), 0o600); err != nil {
		t.Fatalf("write legacy file: %v", err)
	}
	store, err := NewStore(path, appconfig.DefaultSeedUsers())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	users := store.LoadUsers()
	if len(users) != 1 || users[0].Email != "legacy@example.com" {
		t.Fatalf("unexpected users %+v", users)
	}
	if _, err := store.AddUser(Record{Email: "next@example.com", PasswordHash: mustHash(t, "pass12")}); err != nil {
		t.Fatalf("add user: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if !strings.Contains(string(data), `"version": 1`) {
		t.Fatalf("expected versioned file after save:\n%s", data)
	}
}

func TestStoreRejectsNewerFileVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	if err := os.WriteFile(path, []byte(`{"version": 99, "users": []}`), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := NewStore(path, nil); err == nil {
		t.Fatal("expected error for newer file version")
	}
}
