package backend

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Olatundeawo/ordora/internal/storefront"
	"github.com/Olatundeawo/ordora/pkg/middleware"
)

// msgRequired は必須項目が欠けている場合のメッセージ。
const msgRequired = "この項目は必須です。"

// codeTokenNotValid はリフレッシュトークンが無効な場合のcode。
const codeTokenNotValid = "token_not_valid"

// registerRequest は新規登録リクエスト。
type registerRequest struct {
	Email    string          `json:"email"`
	Name     string          `json:"name"`
	Password string          `json:"password"`
	Role     storefront.Role `json:"role"`
}

// loginRequest はログインリクエスト。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// issue はユーザーにアクセストークンとリフレッシュトークンを発行する。
func (s *Server) issue(u storefront.User) (storefront.AuthResponse, error) {
	access, err := middleware.GenerateJWT(s.opts.JWTSecret, middleware.Subject{
		UserID: u.ID,
		Email:  u.Email,
		Role:   string(u.Role),
	}, s.opts.AccessTTL)
	if err != nil {
		return storefront.AuthResponse{}, err
	}
	return storefront.AuthResponse{
		Access:  access,
		Refresh: s.state.grant(u.ID, s.opts.RefreshTTL),
		User:    u,
	}, nil
}

// handleRegister はユーザーを登録してトークンを発行するハンドラを返す。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			detail(c, http.StatusBadRequest, "リクエストボディが不正です。")
			return
		}

		errs := map[string][]string{}
		req.Email = strings.TrimSpace(req.Email)
		if req.Email == "" {
			errs["email"] = []string{msgRequired}
		} else if !strings.Contains(req.Email, "@") {
			errs["email"] = []string{"有効なメールアドレスを入力してください。"}
		}
		if strings.TrimSpace(req.Name) == "" {
			errs["name"] = []string{msgRequired}
		}
		if req.Password == "" {
			errs["password"] = []string{msgRequired}
		}
		if !req.Role.Valid() {
			errs["role"] = []string{"producer または customer を指定してください。"}
		}
		if len(errs) > 0 {
			fieldErrors(c, errs)
			return
		}

		u, err := s.state.register(req.Email, strings.TrimSpace(req.Name), req.Password, req.Role)
		if errors.Is(err, errEmailTaken) {
			fieldErrors(c, map[string][]string{"email": {"このメールアドレスは既に登録されています。"}})
			return
		}
		if err != nil {
			s.stateError(c, err)
			return
		}

		res, err := s.issue(u)
		if err != nil {
			s.stateError(c, err)
			return
		}
		s.logger.Info("[Backend] ユーザーを登録しました", zap.Int64("user_id", u.ID), zap.String("role", string(u.Role)))
		c.JSON(http.StatusCreated, res)
	}
}

// handleLogin はメールアドレスとパスワードでログインするハンドラを返す。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			detail(c, http.StatusBadRequest, "リクエストボディが不正です。")
			return
		}

		errs := map[string][]string{}
		if strings.TrimSpace(req.Email) == "" {
			errs["email"] = []string{msgRequired}
		}
		if req.Password == "" {
			errs["password"] = []string{msgRequired}
		}
		if len(errs) > 0 {
			fieldErrors(c, errs)
			return
		}

		u, err := s.state.authenticate(strings.TrimSpace(req.Email), req.Password)
		if err != nil {
			fieldErrors(c, map[string][]string{
				"non_field_errors": {"メールアドレスまたはパスワードが正しくありません。"},
			})
			return
		}

		res, err := s.issue(u)
		if err != nil {
			s.stateError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// handleRefresh はリフレッシュトークンからアクセストークンを再発行するハンドラを返す。
func (s *Server) handleRefresh() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Refresh string `json:"refresh"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Refresh == "" {
			fieldErrors(c, map[string][]string{"refresh": {msgRequired}})
			return
		}

		u, err := s.state.redeem(req.Refresh)
		if err != nil {
			s.logger.Debug("[Backend] リフレッシュトークンを拒否しました")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"detail": "トークンが無効か期限切れです",
				"code":   codeTokenNotValid,
			})
			return
		}

		access, err := middleware.GenerateJWT(s.opts.JWTSecret, middleware.Subject{
			UserID: u.ID,
			Email:  u.Email,
			Role:   string(u.Role),
		}, s.opts.AccessTTL)
		if err != nil {
			s.stateError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"access": access})
	}
}

// handleVerify はアクセストークンを検証するハンドラを返す。
func (s *Server) handleVerify() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Token string `json:"token"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
			fieldErrors(c, map[string][]string{"token": {msgRequired}})
			return
		}
		if _, err := middleware.ParseJWT(s.opts.JWTSecret, req.Token); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"detail": "トークンが無効か期限切れです",
				"code":   codeTokenNotValid,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{})
	}
}

// handleGetUser はユーザー情報を返すハンドラを返す。
func (s *Server) handleGetUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		u, err := s.state.user(id)
		if err != nil {
			s.stateError(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

// handleLogout はログイン中のユーザーのリフレッシュトークンを無効にするハンドラを返す。
func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		n := s.state.revoke(middleware.GetUserID(c))
		s.logger.Info("[Backend] リフレッシュトークンを無効にしました",
			zap.Int64("user_id", middleware.GetUserID(c)),
			zap.Int("count", n),
		)
		c.Status(http.StatusNoContent)
	}
}

// pathID はパスパラメータを正の整数として取り出す。不正な場合は404を返してfalseを返す。
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		detail(c, http.StatusNotFound, "見つかりません。")
		return 0, false
	}
	return id, true
}
