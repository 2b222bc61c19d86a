package httpapi

import (
	"net/http"
	"net/url"
	"strings"

	"pkt.systems/halolight/internal/auth"
	"pkt.systems/halolight/internal/logx"
	"pkt.systems/halolight/schema"
)

// Form fallbacks shown when an auth call fails for an unexpected reason.
var formFallbacks = map[string]string{
	"login":           "登录失败",
	"register":        "注册失败",
	"forgot-password": "发送失败",
	"reset-password":  "重置失败",
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember flag   `json:"remember"`
	TOTP     string `json:"totp"`
	Redirect string `json:"redirect"`
}

type registerPayload struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Company         string `json:"company"`
	AgreeTerms      flag   `json:"agreeTerms"`
}

type forgotPayload struct {
	Email string `json:"email"`
}

type resetPayload struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type changePasswordPayload struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

type authPayload struct {
	User  schema.User `json:"user"`
	Token string      `json:"token"`
}

// fail answers a failed auth call: JSON clients get the error and its status,
// HTML forms are rendered again with the message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, form string, err error) {
	if wantsJSON(r) {
		writeServiceError(w, r, err)
		return
	}
	logx.Ctx(r.Context()).Debug("http form rejected", "form", form, "err", err)
	data := s.authFormFromRequest(r)
	data.Error = formMessage(err, formFallbacks[form])
	s.renderAuthPage(w, r, statusFor(err), form, data)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	log := logx.Ctx(r.Context()).With("remote", s.clientIP(r))
	var payload loginPayload
	if err := decodeRequest(w, r, &payload); err != nil {
		log.Warn("http login decode failed", "err", err)
		s.fail(w, r, "login", err)
		return
	}
	sess, err := s.auth.Login(r.Context(), auth.LoginRequest{
		Email:    payload.Email,
		Password: payload.Password,
		Remember: bool(payload.Remember),
		TOTP:     payload.TOTP,
	})
	if s.metrics != nil {
		s.metrics.ObserveLogin(err == nil)
	}
	if err != nil {
		log.Info("http login failed", "err", err)
		s.fail(w, r, "login", err)
		return
	}
	s.signIn(w, r, sess)
	log.Info("http login ok", "user", sess.User.ID, "remember", bool(payload.Remember))
	if wantsJSON(r) {
		s.setAuthCookies(w, sess.Token, sess.User, sess.TTL)
		writeJSON(w, http.StatusOK, authPayload{User: sess.User, Token: sess.Token})
		return
	}
	s.authResponse(w, r, sess.Token, sess.User, sess.TTL, payload.Redirect)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	log := logx.Ctx(r.Context()).With("remote", s.clientIP(r))
	var payload registerPayload
	if err := decodeRequest(w, r, &payload); err != nil {
		log.Warn("http register decode failed", "err", err)
		s.fail(w, r, "register", err)
		return
	}
	sess, err := s.auth.Register(r.Context(), auth.RegisterRequest{
		Name:            payload.Name,
		Email:           payload.Email,
		Password:        payload.Password,
		ConfirmPassword: payload.ConfirmPassword,
		Company:         payload.Company,
	})
	if err != nil {
		log.Info("http register failed", "err", err)
		s.fail(w, r, "register", err)
		return
	}
	s.signIn(w, r, sess)
	log.Info("http register ok", "user", sess.User.ID)
	if wantsJSON(r) {
		s.setAuthCookies(w, sess.Token, sess.User, sess.TTL)
		writeJSON(w, http.StatusCreated, authPayload{User: sess.User, Token: sess.Token})
		return
	}
	s.authResponse(w, r, sess.Token, sess.User, sess.TTL, "/")
}

// signIn records the account in the browser's account book.
func (s *Server) signIn(w http.ResponseWriter, r *http.Request, sess auth.Session) {
	_, entry := s.ensureSession(w, r)
	if err := entry.book.Add(schema.Account{User: sess.User, Token: sess.Token}); err != nil {
		logx.Ctx(r.Context()).Warn("http account book add failed", "err", err)
	}
	s.sessions.persist()
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	log := logx.Ctx(r.Context()).With("remote", s.clientIP(r))
	var payload forgotPayload
	if err := decodeRequest(w, r, &payload); err != nil {
		s.fail(w, r, "forgot-password", err)
		return
	}
	token, err := s.auth.ForgotPassword(r.Context(), payload.Email)
	if err != nil {
		log.Info("http forgot password failed", "err", err)
		s.fail(w, r, "forgot-password", err)
		return
	}
	resetLink := s.url("/reset-password") + "?token=" + url.QueryEscape(token)
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "resetToken": token, "resetLink": resetLink})
		return
	}
	data := s.authFormFromRequest(r)
	data.Message = "重置链接已发送"
	data.ResetLink = resetLink
	s.renderAuthPage(w, r, http.StatusOK, "forgot-password", data)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	log := logx.Ctx(r.Context()).With("remote", s.clientIP(r))
	var payload resetPayload
	if err := decodeRequest(w, r, &payload); err != nil {
		s.fail(w, r, "reset-password", err)
		return
	}
	if err := s.auth.ResetPassword(r.Context(), auth.ResetPasswordRequest{
		Token:           payload.Token,
		Password:        payload.Password,
		ConfirmPassword: payload.ConfirmPassword,
	}); err != nil {
		log.Info("http reset password failed", "err", err)
		s.fail(w, r, "reset-password", err)
		return
	}
	log.Info("http reset password ok")
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	http.Redirect(w, r, s.url("/login?reset=1"), http.StatusFound)
}

// handleLogout signs every account of this browser out.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	log := logx.Ctx(r.Context()).With("remote", s.clientIP(r))
	token := s.requestToken(r)
	if err := s.auth.Logout(r.Context(), token); err != nil {
		log.Warn("http logout interrupted", "err", err)
	}
	if sessToken := s.sessionToken(r); sessToken != "" {
		// Requests still holding the session see it emptied.
		if entry, ok := s.sessions.get(sessToken); ok {
			entry.book.Clear()
			entry.prefs.Reset()
			log = log.With("http_session", entry.id)
		}
		s.sessions.delete(sessToken)
		s.expireSessionCookie(w)
	}
	log.Info("http logout")
	if wantsJSON(r) {
		s.clearAuthCookies(w)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	s.logoutResponse(w, r)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, _ schema.User, token string) {
	user, err := s.auth.CurrentUser(r.Context(), token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request, user schema.User, _ string) {
	log := logx.Ctx(r.Context())
	var payload changePasswordPayload
	if err := decodeRequest(w, r, &payload); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if strings.TrimSpace(payload.CurrentPassword) == "" {
		writeServiceError(w, r, schema.ErrCurrentPasswordFail)
		return
	}
	if err := s.auth.ChangePassword(r.Context(), user.ID, payload.CurrentPassword, payload.NewPassword, payload.ConfirmPassword); err != nil {
		log.Info("http change password failed", "err", err)
		writeServiceError(w, r, err)
		return
	}
	log.Info("http change password ok")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type accountsPayload struct {
	Accounts        []schema.Account `json:"accounts"`
	ActiveAccountID schema.UserID    `json:"activeAccountId"`
}

// accountBook returns the session's book with the caller's account active in
// it, so bearer-token clients see themselves as the active account.
func (s *Server) accountBook(r *http.Request, user schema.User, token string) (session, bool) {
	sess, ok := sessionFromContext(r.Context())
	if !ok {
		return session{}, false
	}
	if active, ok := sess.book.Active(); !ok || active.Token != token {
		if err := sess.book.Add(schema.Account{User: user, Token: token}); err == nil {
			s.sessions.persist()
		}
	}
	return sess, true
}

// refreshAccounts drops accounts whose tokens no longer resolve and
// refreshes the user records of the rest.
func (s *Server) refreshAccounts(sess session, user schema.User, token string) {
	before := sess.book.List()
	valid := make([]schema.Account, 0, len(before))
	for _, acc := range before {
		resolved, err := s.auth.Resolve(acc.Token)
		if err != nil {
			continue
		}
		valid = append(valid, schema.Account{User: resolved, Token: acc.Token})
	}
	sess.book.Load(valid, token, &schema.Account{User: user, Token: token})
	s.sessions.persist()
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request, user schema.User, token string) {
	sess, ok := s.accountBook(r, user, token)
	if !ok {
		writeJSON(w, http.StatusOK, accountsPayload{Accounts: []schema.Account{{User: user, Token: token}}, ActiveAccountID: user.ID})
		return
	}
	s.refreshAccounts(sess, user, token)
	writeJSON(w, http.StatusOK, accountsSnapshot(sess))
}

func accountsSnapshot(sess session) accountsPayload {
	payload := accountsPayload{Accounts: sess.book.List()}
	if active, ok := sess.book.Active(); ok {
		payload.ActiveAccountID = active.User.ID
	}
	return payload
}

func (s *Server) handleSwitchAccount(w http.ResponseWriter, r *http.Request, user schema.User, token string) {
	log := logx.Ctx(r.Context())
	var payload struct {
		ID schema.UserID `json:"id"`
	}
	if err := decodeRequest(w, r, &payload); err != nil {
		writeServiceError(w, r, err)
		return
	}
	sess, ok := s.accountBook(r, user, token)
	if !ok {
		writeServiceError(w, r, schema.ErrAccountNotFound)
		return
	}
	acc, err := sess.book.Switch(payload.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if _, err := s.auth.Resolve(acc.Token); err != nil {
		// The account's token no longer resolves; drop it and stay put.
		_, _, _ = sess.book.Remove(acc.User.ID)
		_, _ = sess.book.Switch(user.ID)
		sess.prefs.Forget(acc.User.ID)
		s.sessions.persist()
		log.Info("http account switch rejected stale token", "account", acc.User.ID)
		writeServiceError(w, r, schema.ErrUnauthorized)
		return
	}
	s.sessions.persist()
	s.setAuthCookies(w, acc.Token, acc.User, s.auth.TokenTTL(true))
	log.Info("http account switched", "account", acc.User.ID)
	writeJSON(w, http.StatusOK, map[string]any{"account": acc, "accounts": accountsSnapshot(sess)})
}

func (s *Server) handleRemoveAccount(w http.ResponseWriter, r *http.Request, user schema.User, token string) {
	log := logx.Ctx(r.Context())
	sess, ok := s.accountBook(r, user, token)
	if !ok {
		writeServiceError(w, r, schema.ErrAccountNotFound)
		return
	}
	id := schema.UserID(r.PathValue("id"))
	wasActive := false
	if active, ok := sess.book.Active(); ok && active.User.ID == id {
		wasActive = true
	}
	next, signedIn, err := sess.book.Remove(id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	sess.prefs.Forget(id)
	s.sessions.persist()
	if wasActive {
		if signedIn {
			s.setAuthCookies(w, next.Token, next.User, s.auth.TokenTTL(true))
		} else {
			s.clearAuthCookies(w)
		}
	}
	log.Info("http account removed", "account", id, "was_active", wasActive)
	writeJSON(w, http.StatusOK, map[string]any{"removed": id, "accounts": accountsSnapshot(sess)})
}
