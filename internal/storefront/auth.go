package storefront

import (
	"context"
	"net/http"
	"strings"

	"github.com/Olatundeawo/ordora/pkg/httpclient"
)

// 必須項目が未入力の場合のメッセージ。
const msgRequired = "この項目は必須です。"

// loginRequest はログインリクエストの本文。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterInput は新規登録の入力内容。
type RegisterInput struct {
	// Email はメールアドレス。
	Email string `json:"email"`
	// Name は表示名。
	Name string `json:"name"`
	// Password はパスワード。
	Password string `json:"password"`
	// Role はユーザーの役割。
	Role Role `json:"role"`
}

// Login はメールアドレスとパスワードでログインする。
// メールアドレスの前後の空白は取り除く。トークンの保存は呼び出し側が行う。
func (c *Client) Login(ctx context.Context, email, password string) (httpclient.Result[AuthResponse], error) {
	email = strings.TrimSpace(email)

	errs := httpclient.FieldErrors{}
	if email == "" {
		errs.Add("email", msgRequired)
	}
	if password == "" {
		errs.Add("password", msgRequired)
	}
	if len(errs) > 0 {
		return httpclient.Invalid[AuthResponse](errs), nil
	}

	return call[AuthResponse](ctx, c, false, http.MethodPost, "auth/login/", loginRequest{Email: email, Password: password})
}

// Register は新しいユーザーを登録する。
func (c *Client) Register(ctx context.Context, in RegisterInput) (httpclient.Result[AuthResponse], error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)

	errs := httpclient.FieldErrors{}
	if in.Email == "" {
		errs.Add("email", msgRequired)
	}
	if in.Name == "" {
		errs.Add("name", msgRequired)
	}
	if in.Password == "" {
		errs.Add("password", msgRequired)
	}
	if !in.Role.Valid() {
		errs.Add("role", "producer または customer を指定してください。")
	}
	if len(errs) > 0 {
		return httpclient.Invalid[AuthResponse](errs), nil
	}

	return call[AuthResponse](ctx, c, false, http.MethodPost, "auth/register/", in)
}

// VerifyToken はトークンが有効かをバックエンドに問い合わせる。
func (c *Client) VerifyToken(ctx context.Context, token string) (httpclient.Result[struct{}], error) {
	return call[struct{}](ctx, c, false, http.MethodPost, "auth/token/verify/", map[string]string{"token": token})
}

// GetUser はユーザー情報を取得する。
func (c *Client) GetUser(ctx context.Context, id int64) (httpclient.Result[User], error) {
	return call[User](ctx, c, true, http.MethodGet, pathf("auth/user/%d/", id), nil)
}
