package auth

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"pkt.systems/halolight/internal/appconfig"
	"pkt.systems/halolight/internal/persist"
	"pkt.systems/halolight/schema"
	"pkt.systems/pslog"
)

const userFileVersion = 1

// Record is a stored user account.
type Record struct {
	ID           schema.UserID       `json:"id"`
	Email        string              `json:"email"`
	Name         string              `json:"name"`
	Avatar       string              `json:"avatar,omitempty"`
	Role         schema.Role         `json:"role"`
	Permissions  []schema.Permission `json:"permissions"`
	PasswordHash string              `json:"password_hash"`
	TOTPSecret   string              `json:"totp_secret,omitempty"`
}

// Public returns the view of the record that may leave the store.
func (r Record) Public() schema.User {
	return schema.User{
		ID:          r.ID,
		Email:       r.Email,
		Name:        r.Name,
		Avatar:      r.Avatar,
		Role:        r.Role,
		Permissions: slices.Clone(r.Permissions),
	}
}

type userFile struct {
	Version int      `json:"version"`
	Users   []Record `json:"users"`
}

// Store is the JSON user file. Every read first checks whether another
// process (the users CLI, a second server) rewrote the file and reloads it.
type Store struct {
	path string
	log  pslog.Logger

	mu      sync.RWMutex
	users   map[schema.UserID]Record
	byEmail map[string]schema.UserID
	state   persist.FileState
}

// NewStore loads or seeds the user store.
func NewStore(path string, seeds []appconfig.SeedUser) (*Store, error) {
	return NewStoreWithLogger(path, seeds, nil)
}

// NewStoreWithLogger loads the user file at path. A missing file is created
// from seeds.
func NewStoreWithLogger(path string, seeds []appconfig.SeedUser, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("user file path is required")
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	s := &Store{path: path, log: logger.With("user_file", path)}
	if err := s.seed(seeds); err != nil {
		s.log.Warn("auth store init failed", "err", err)
		return nil, err
	}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Verify checks an email/password pair and, when the account has a TOTP
// secret, the one-time code.
func (s *Store) Verify(email, password, totpCode string) (Record, error) {
	record, err := s.UserByEmail(email)
	if err != nil {
		return Record{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(record.PasswordHash), []byte(password)) != nil {
		return Record{}, schema.ErrWrongPassword
	}
	if record.TOTPSecret == "" {
		return record, nil
	}
	code := strings.TrimSpace(totpCode)
	if code == "" {
		return Record{}, schema.ErrTOTPRequired
	}
	if !totp.Validate(code, record.TOTPSecret) {
		return Record{}, schema.ErrTOTPInvalid
	}
	return record, nil
}

// UserByID returns the record for id.
func (s *Store) UserByID(id schema.UserID) (Record, error) {
	if err := s.sync(); err != nil {
		return Record{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.users[id]; ok {
		return record, nil
	}
	return Record{}, schema.ErrUserNotFound
}

// UserByEmail returns the record registered with email.
func (s *Store) UserByEmail(email string) (Record, error) {
	if err := s.sync(); err != nil {
		return Record{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.byEmail[schema.NormalizeEmail(email)]; ok {
		return s.users[id], nil
	}
	return Record{}, schema.ErrUserNotFound
}

// LoadUsers returns every user ordered by id. A failed reload serves the
// users already in memory.
func (s *Store) LoadUsers() []Record {
	if err := s.sync(); err != nil {
		s.log.Warn("auth store refresh failed", "err", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedRecords(s.users)
}

// AddUser inserts a new user. An empty id gets the next free numeric id, an
// empty role becomes user and empty permissions follow the role.
func (s *Store) AddUser(record Record) (Record, error) {
	if err := schema.ValidateEmail(record.Email); err != nil {
		return Record{}, err
	}
	if strings.TrimSpace(record.PasswordHash) == "" {
		return Record{}, errors.New("password hash is required")
	}
	record.Email = schema.NormalizeEmail(record.Email)
	record.Role = cmp.Or(record.Role, schema.RoleUser)
	if len(record.Permissions) == 0 {
		record.Permissions = schema.DefaultPermissions(record.Role)
	}
	err := s.mutate(func(users map[schema.UserID]Record) error {
		for _, existing := range users {
			if existing.Email == record.Email {
				return schema.ErrEmailTaken
			}
		}
		if record.ID == "" {
			record.ID = nextID(users)
		}
		if err := schema.ValidateUserID(record.ID); err != nil {
			return err
		}
		if _, taken := users[record.ID]; taken {
			return fmt.Errorf("user id %q already exists", record.ID)
		}
		users[record.ID] = record
		return nil
	})
	if err != nil {
		s.log.Warn("auth user add failed", "email", record.Email, "err", err)
		return Record{}, err
	}
	s.log.Info("auth user added", "user", record.ID, "email", record.Email, "role", record.Role)
	return record, nil
}

// UpdatePassword replaces the stored password hash.
func (s *Store) UpdatePassword(id schema.UserID, passwordHash string) error {
	if strings.TrimSpace(passwordHash) == "" {
		return errors.New("password hash is required")
	}
	return s.update(id, "auth password updated", func(r *Record) { r.PasswordHash = passwordHash })
}

// UpdateTOTP replaces the stored TOTP secret. An empty secret disables the
// second factor.
func (s *Store) UpdateTOTP(id schema.UserID, secret string) error {
	return s.update(id, "auth totp updated", func(r *Record) { r.TOTPSecret = strings.TrimSpace(secret) })
}

// DeleteUser removes a user.
func (s *Store) DeleteUser(id schema.UserID) error {
	err := s.mutate(func(users map[schema.UserID]Record) error {
		if _, ok := users[id]; !ok {
			return schema.ErrUserNotFound
		}
		delete(users, id)
		return nil
	})
	if err != nil {
		s.log.Warn("auth user delete failed", "user", id, "err", err)
		return err
	}
	s.log.Info("auth user deleted", "user", id)
	return nil
}

func (s *Store) update(id schema.UserID, msg string, apply func(*Record)) error {
	err := s.mutate(func(users map[schema.UserID]Record) error {
		record, ok := users[id]
		if !ok {
			return schema.ErrUserNotFound
		}
		apply(&record)
		users[id] = record
		return nil
	})
	if err != nil {
		s.log.Warn(msg+" failed", "user", id, "err", err)
		return err
	}
	s.log.Info(msg, "user", id)
	return nil
}

// mutate applies change to a copy of the users and installs the copy only
// once it is on disk.
func (s *Store) mutate(change func(map[schema.UserID]Record) error) error {
	if err := s.sync(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := maps.Clone(s.users)
	if err := change(next); err != nil {
		return err
	}
	records := sortedRecords(next)
	if err := persist.WriteJSON(s.path, userFile{Version: userFileVersion, Users: records}); err != nil {
		return err
	}
	state, err := persist.Stat(s.path)
	if err != nil {
		return err
	}
	s.install(records, state)
	s.log.Debug("auth store save ok", "users", len(records))
	return nil
}

// sync reloads the file when it changed since the last load or save.
func (s *Store) sync() error {
	latest, err := persist.Stat(s.path)
	if err != nil {
		s.log.Warn("auth store stat failed", "err", err)
		return err
	}
	s.mu.RLock()
	unchanged := s.state.Same(latest)
	s.mu.RUnlock()
	if unchanged {
		return nil
	}
	return s.reload()
}

func (s *Store) reload() error {
	state, err := persist.Stat(s.path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		s.log.Warn("auth store load failed", "err", err)
		return err
	}
	records, err := decodeUsers(data)
	if err != nil {
		s.log.Warn("auth store load failed", "err", err)
		return err
	}
	for i := range records {
		if err := schema.ValidateUserID(records[i].ID); err != nil {
			s.log.Warn("auth store load failed", "user", records[i].ID, "err", err)
			return err
		}
		records[i].Email = schema.NormalizeEmail(records[i].Email)
	}
	s.mu.Lock()
	s.install(records, state)
	s.mu.Unlock()
	s.log.Debug("auth store load ok", "users", len(records))
	return nil
}

// install swaps in records. Callers hold s.mu.
func (s *Store) install(records []Record, state persist.FileState) {
	s.users = make(map[schema.UserID]Record, len(records))
	s.byEmail = make(map[string]schema.UserID, len(records))
	for _, record := range records {
		s.users[record.ID] = record
		s.byEmail[record.Email] = record.ID
	}
	s.state = state
}

func (s *Store) seed(seeds []appconfig.SeedUser) error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	records := make([]Record, 0, len(seeds))
	for _, seed := range seeds {
		record, err := recordFromSeed(seed)
		if err != nil {
			return err
		}
		records = append(records, record)
	}
	if err := persist.WriteJSON(s.path, userFile{Version: userFileVersion, Users: records}); err != nil {
		return err
	}
	s.log.Info("auth store initialized", "users", len(records))
	return nil
}

// decodeUsers accepts the versioned document and a bare array of records.
func decodeUsers(data []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var records []Record
		err := json.Unmarshal(trimmed, &records)
		return records, err
	}
	var file userFile
	if err := json.Unmarshal(trimmed, &file); err != nil {
		return nil, err
	}
	if file.Version > userFileVersion {
		return nil, fmt.Errorf("user file version %d is newer than supported %d", file.Version, userFileVersion)
	}
	return file.Users, nil
}

func recordFromSeed(seed appconfig.SeedUser) (Record, error) {
	id := schema.UserID(seed.ID)
	if err := schema.ValidateUserID(id); err != nil {
		return Record{}, fmt.Errorf("seed user %q: %w", seed.ID, err)
	}
	if err := schema.ValidateEmail(seed.Email); err != nil {
		return Record{}, fmt.Errorf("seed user %q: %w", seed.ID, err)
	}
	hash := seed.PasswordHash
	if hash == "" {
		if seed.Password == "" {
			return Record{}, fmt.Errorf("seed user %q: password or password_hash is required", seed.ID)
		}
		generated, err := bcrypt.GenerateFromPassword([]byte(seed.Password), bcrypt.DefaultCost)
		if err != nil {
			return Record{}, err
		}
		hash = string(generated)
	}
	role := cmp.Or(schema.Role(seed.Role), schema.RoleUser)
	perms := make([]schema.Permission, 0, len(seed.Permissions))
	for _, p := range seed.Permissions {
		perms = append(perms, schema.Permission(p))
	}
	if len(perms) == 0 {
		perms = schema.DefaultPermissions(role)
	}
	return Record{
		ID:           id,
		Email:        schema.NormalizeEmail(seed.Email),
		Name:         seed.Name,
		Avatar:       seed.Avatar,
		Role:         role,
		Permissions:  perms,
		PasswordHash: hash,
		TOTPSecret:   seed.TOTPSecret,
	}, nil
}

// nextID returns the lowest free numeric id above the user count.
func nextID(users map[schema.UserID]Record) schema.UserID {
	for n := len(users) + 1; ; n++ {
		id := schema.UserID(strconv.Itoa(n))
		if _, taken := users[id]; !taken {
			return id
		}
	}
}

// sortedRecords orders numeric ids numerically, then everything else lexically.
func sortedRecords(users map[schema.UserID]Record) []Record {
	out := slices.Collect(maps.Values(users))
	slices.SortFunc(out, func(a, b Record) int {
		na, errA := strconv.Atoi(string(a.ID))
		nb, errB := strconv.Atoi(string(b.ID))
		switch {
		case errA == nil && errB == nil:
			return cmp.Compare(na, nb)
		case errA == nil:
			return -1
		case errB == nil:
			return 1
		default:
			return cmp.Compare(a.ID, b.ID)
		}
	})
	return out
}
