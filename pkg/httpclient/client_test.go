package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Olatundeawo/ordora/pkg/credential"
)

// recordedCall はテストサーバーが受け取ったリクエスト情報を保持する構造体。
type recordedCall struct {
	// Method はHTTPメソッド。
	Method string
	// Path はリクエストパス。
	Path string
	// RawQuery はクエリ文字列。
	RawQuery string
	// Authorization はAuthorizationヘッダーの値。
	Authorization string
	// Header はリクエストヘッダー。
	Header http.Header
	// Body はリクエストボディ。
	Body []byte
}

// recorder はテストサーバーへの呼び出しを記録する。
type recorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (r *recorder) record(req *http.Request) recordedCall {
	body, _ := io.ReadAll(req.Body)
	call := recordedCall{
		Method:        req.Method,
		Path:          req.URL.Path,
		RawQuery:      req.URL.RawQuery,
		Authorization: req.Header.Get("Authorization"),
		Header:        req.Header.Clone(),
		Body:          body,
	}
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
	return call
}

func (r *recorder) snapshot() []recordedCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedCall(nil), r.calls...)
}

func (r *recorder) count(path string) int {
	n := 0
	for _, c := range r.snapshot() {
		if c.Path == path {
			n++
		}
	}
	return n
}

// newTestServer は呼び出しを記録するテストサーバーを生成する。
func newTestServer(t *testing.T, handler func(w http.ResponseWriter, call recordedCall)) (*httptest.Server, *recorder) {
	t.Helper()

	rec := &recorder{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler(w, rec.record(r))
	}))
	t.Cleanup(ts.Close)
	return ts, rec
}

// tokenHandler はvalidAccessのトークンだけを受け付けるバックエンドを模したハンドラを返す。
// トークン更新エンドポイントはrenewStatusとrenewBodyを返す。
func tokenHandler(validAccess string, renewStatus int, renewBody string) func(http.ResponseWriter, recordedCall) {
	return func(w http.ResponseWriter, call recordedCall) {
		w.Header().Set("Content-Type", "application/json")
		if call.Path == "/"+RefreshPath {
			w.WriteHeader(renewStatus)
			_, _ = w.Write([]byte(renewBody))
			return
		}
		if call.Authorization != "Bearer "+validAccess {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Given token not valid for any token type","code":"token_not_valid"}`))
			return
		}
		_, _ = w.Write([]byte(`{"result":"ok"}`))
	}
}

// newStore はトークンを保存済みのMemoryStoreを生成する。空のトークンは保存しない。
func newStore(t *testing.T, access, refresh string) *credential.MemoryStore {
	t.Helper()

	s := credential.NewMemoryStore()
	if err := credential.Save(context.Background(), s, credential.Pair{Access: access, Refresh: refresh}); err != nil {
		t.Fatalf("トークンの保存に失敗: %v", err)
	}
	return s
}

// loadPair はストアのトークンを読み込む。
func loadPair(t *testing.T, s credential.Store) credential.Pair {
	t.Helper()

	p, err := credential.Load(context.Background(), s)
	if err != nil {
		t.Fatalf("トークンの読み込みに失敗: %v", err)
	}
	return p
}

// readBody はレスポンス本文を読み込んで閉じる。
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()

	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("レスポンス本文の読み込みに失敗: %v", err)
	}
	return string(b)
}

// errStore はすべての操作でエラーを返すStore。
type errStore struct {
	err error
}

func (e errStore) Get(context.Context, string) (string, bool, error) { return "", false, e.err }
func (e errStore) Set(context.Context, string, string) error         { return e.err }
func (e errStore) Delete(context.Context, ...string) error           { return e.err }

// TestNew はNew関数でクライアントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("クライアントが正常に生成されること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8000/", credential.NewMemoryStore())
		if client.baseURL != "http://localhost:8000/" {
			t.Errorf("baseURL = %q, want %q", client.baseURL, "http://localhost:8000/")
		}
		if !client.coalesce {
			t.Error("トークン更新のまとめ実行が既定で有効になっていない")
		}
		if client.metrics != nil {
			t.Error("登録先なしでメトリクスが生成された")
		}
	})

	t.Run("タイムアウトが既定で30秒に設定されていること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8000/", credential.NewMemoryStore())
		if client.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want 30s", client.httpClient.Timeout)
		}
	})

	t.Run("WithTimeoutでタイムアウトを変更できること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8000/", credential.NewMemoryStore(), WithTimeout(5*time.Second))
		if client.httpClient.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want 5s", client.httpClient.Timeout)
		}
	})
}

// TestURL はベースURLとパスの連結を検証する。
func TestURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		base string
		path string
		want string
	}{
		{name: "末尾スラッシュ付きのベースURL", base: "http://api.test/", path: "goods/", want: "http://api.test/goods/"},
		{name: "末尾スラッシュなしのベースURL", base: "http://api.test", path: "goods/", want: "http://api.test/goods/"},
		{name: "先頭スラッシュ付きのパス", base: "http://api.test/", path: "/auth/login/", want: "http://api.test/auth/login/"},
		{name: "ベースURLにパスを含む", base: "http://api.test/v1/", path: "goods/me/", want: "http://api.test/v1/goods/me/"},
		{name: "クエリ文字列を保持する", base: "http://api.test/", path: "goods/?page=2", want: "http://api.test/goods/?page=2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := New(tt.base, credential.NewMemoryStore())
			if got := c.url(tt.path); got != tt.want {
				t.Errorf("url(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

// TestDo_Passthrough は401以外のレスポンスがそのまま返ることを検証する。
func TestDo_Passthrough(t *testing.T) {
	t.Parallel()

	t.Run("有効なトークンでは1回だけ送信されレスポンスが変更されないこと", func(t *testing.T) {
		t.Parallel()

		ts, rec := newTestServer(t, tokenHandler("A1", http.StatusOK, `{"access":"unused"}`))
		store := newStore(t, "A1", "R1")
		client := New(ts.URL+"/", store)

		resp, err := client.Do(context.Background(), "goods/me/", Request{Method: http.MethodGet})
		if err != nil {
			t.Fatalf("Do()でエラーが発生: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		if body := readBody(t, resp); body != `{"result":"ok"}` {
			t.Errorf("body = %q, want %q", body, `{"result":"ok"}`)
		}

		calls := rec.snapshot()
		if len(calls) != 1 {
			t.Fatalf("呼び出し回数 = %d, want 1", len(calls))
		}
		if calls[0].Authorization != "Bearer A1" {
			t.Errorf("Authorization = %q, want %q", calls[0].Authorization, "Bearer A1")
		}
		if calls[0].Path != "/goods/me/" {
			t.Errorf("Path = %q, want %q", calls[0].Path, "/goods/me/")
		}

		if p := loadPair(t, store); p.Access != "A1" || p.Refresh != "R1" {
			t.Errorf("保存済みトークン = %+v, want {A1 R1}", p)
		}
	})

	for _, status := range []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusInternalServerError} {
		t.Run(http.StatusText(status)+"はトークン更新せずにそのまま返ること", func(t *testing.T) {
			t.Parallel()

			ts, rec := newTestServer(t, func(w http.ResponseWriter, _ recordedCall) {
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"detail":"x"}`))
			})
			client := New(ts.URL, newStore(t, "A1", "R1"))

			resp, err := client.Do(context.Background(), "goods/1/", Request{})
			if err != nil {
				t.Fatalf("Do()でエラーが発生: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != status {
				t.Errorf("StatusCode = %d, want %d", resp.StatusCode, status)
			}
			if n := len(rec.snapshot()); n != 1 {
				t.Errorf("呼び出し回数 = %d, want 1", n)
			}
		})
	}

	t.Run("有効なトークンで2回呼び出すと2往復だけでトークン更新は起きないこと", func(t *testing.T) {
		t.Parallel()

		ts, rec := newTestServer(t, tokenHandler("A1", http.StatusOK, `{"access":"A2"}`))
		client := New(ts.URL, newStore(t, "A1", "R1"))

		for i := 0; i < 2; i++ {
			resp, err := client.Do(context.Background(), "goods/me/", Request{})
			if err != nil {
				t.Fatalf("%d回目のDo()でエラーが発生: %v", i+1, err)
			}
			resp.Body.Close()
		}

		if n := len(rec.snapshot()); n != 2 {
			t.Errorf("呼び出し回数 = %d, want 2", n)
		}
		if n := rec.count("/" + RefreshPath); n != 0 {
			t.Errorf("トークン更新回数 = %d, want 0", n)
		}
	})
}

// TestDo_Headers はリクエストヘッダーの組み立てを検証する。
func TestDo_Headers(t *testing.T) {
	t.Parallel()

	t.Run("アクセストークンがない場合はBearer nullが送信されること", func(t *testing.T) {
		t.Parallel()

		ts, rec := newTestServer(t, func(w http.ResponseWriter, _ recordedCall) {
			w.WriteHeader(http.StatusOK)
		})
		client := New(ts.URL, credential.NewMemoryStore())

		resp, err := client.Do(context.Background(), "goods/me/", Request{})
		if err != nil {
			t.Fatalf("Do()でエラーが発生: %v", err)
		}
		resp.Body.Close()

		if got := rec.snapshot()[0].Authorization; got != "Bearer null" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer null")
		}
	})

	t.Run("既定でContent-Typeがapplication/jsonになること", func(t *testing.T) {
		t.Parallel()

		ts, rec := newTestServer(t, func(w http.ResponseWriter, _ recordedCall) {
			w.WriteHeader(http.StatusOK)
		})
		client := New(ts.URL, newStore(t, "A1", ""))

		resp, err := client.Do(context.Background(), "goods/me/", Request{})
		if err != nil {
			t.Fatalf("Do()でエラーが発生: %v", err)
		}
		resp.Body.Close()

		if got := rec.snapshot()[0].Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q, want %q", got, "application/json")
		}
	})

	t.Run("呼び出し側のヘッダーがマージされAuthorizationはゲートウェイの値が優先されること", func(t *testing.T) {
		t.Parallel()

		ts, rec := newTestServer(t, func(w http.ResponseWriter, _ recordedCall) {
			w.WriteHeader(http.StatusOK)
		})
		client := New(ts.URL, newStore(t, "A1", "R1"))

		header := http.Header{}
		header.Set("Content-Type", "multipart/form-data; boundary=x")
		header.Set("X-Request-ID", "req-1")
		header.Set("Authorization", "Bearer forged")

		resp, err := client.Do(context.Background(), "goods/create/", Request{Method: http.MethodPost, Header: header, Body: []byte("--x--")})
		if err != nil {
			t.Fatalf("Do()でエラーが発生: %v", err)
		}
		resp.Body.Close()

		call := rec.snapshot()[0]
		if call.Authorization != "Bearer A1" {
			t.Errorf("Authorization = %q, want %q", call.Authorization, "Bearer A1")
		}
		if got := call.Header.Get("Content-Type"); got != "multipart/form-data; boundary=x" {
			t.Errorf("Content-Type = %q, want %q", got, "multipart/form-data; boundary=x")
		}
		if got := call.Header.Get("X-Request-ID"); got != "req-1" {
			t.Errorf("X-Request-ID = %q, want %q", got, "req-1")
		}
	})

	t.Run("Methodが空の場合はGETになりクエリ文字列が保持されること", func(t *testing.T) {
		t.Parallel()

		ts, rec := newTestServer(t, func(w http.ResponseWriter, _ recordedCall) {
			w.WriteHeader(http.StatusOK)
		})
		client := New(ts.URL, newStore(t, "A1", "R1"))

		resp, err := client.Do(context.Background(), "goods/customers/payments/?status=paid", Request{})
		if err != nil {
			t.Fatalf("Do()でエラーが発生: %v", err)
		}
		resp.Body.Close()

		call := rec.snapshot()[0]
		if call.Method != http.MethodGet {
			t.Errorf("Method = %q, want %q", call.Method, http.MethodGet)
		}
		if call.RawQuery != "status=paid" {
			t.Errorf("RawQuery = %q, want %q", call.RawQuery, "status=paid")
		}
	})
}

// TestDo_Renewal は401受信時のトークン更新と再送を検証する。
func TestDo_Renewal(t *testing.T) {
	t.Parallel()

	t.Run("期限切れのアクセストークンが更新され1回だけ再送されること", func(t *testing.T) {
		t.Parallel()

		ts, rec := newTestServer(t, tokenHandler("A2", http.StatusOK, `{"access":"A2"}`))
		store := newStore(t, "A1", "R1")
		client := New(ts.URL, store)

		req, err := NewJSONRequest(http.MethodPost, map[string]any{"items": []map[string]int{{"product": 1, "quantity": 2}}})
		if err != nil {
			t.Fatalf("NewJSONRequest()でエラーが発生: %v", err)
		}

		resp, err := client.Do(context.Background(), "goods/create/order/", req)
		if err != nil {
			t.Fatalf("Do()でエラーが発生: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		if body := readBody(t, resp); body != `{"result":"ok"}` {
			t.Errorf("body = %q, want %q", body, `{"result":"ok"}`)
		}

		calls := rec.snapshot()
		if len(calls) != 3 {
			t.Fatalf("呼び出し回数 = %d, want 3", len(calls))
		}

		// 元のリクエスト
		if calls[0].Authorization != "Bearer A1" {
			t.Errorf("1回目のAuthorization = %q, want %q", calls[0].Authorization, "Bearer A1")
		}

		// トークン更新
		if calls[1].Method != http.MethodPost || calls[1].Path != "/"+RefreshPath {
			t.Errorf("2回目 = %s %s, want POST /%s", calls[1].Method, calls[1].Path, RefreshPath)
		}
		var sent map[string]string
		if err := json.Unmarshal(calls[1].Body, &sent); err != nil {
			t.Fatalf("トークン更新リクエストのパースに失敗: %v", err)
		}
		if sent["refresh"] != "R1" {
			t.Errorf("refresh = %q, want %q", sent["refresh"], "R1")
		}
		if calls[1].Authorization != "" {
			t.Errorf("トークン更新にAuthorizationが付与された: %q", calls[1].Authorization)
		}

		// 再送
		if calls[2].Authorization != "Bearer A2" {
			t.Errorf("3回目のAuthorization = %q, want %q", calls[2].Authorization, "Bearer A2")
		}
		if calls[2].Method != http.MethodPost || calls[2].Path != "/goods/create/order/" {
			t.Errorf("3回目 = %s %s, want POST /goods/create/order/", calls[2].Method, calls[2].Path)
		}
		if string(calls[2].Body) != string(calls[0].Body) {
			t.Errorf("再送のボディ = %q, want %q", calls[2].Body, calls[0].Body)
		}

		if p := loadPair(t, store); p.Access != "A2" || p.Refresh != "R1" {
			t.Errorf("保存済みトークン = %+v, want {A2 R1}", p)
		}
	})

	t.Run("再送結果が401でもそのまま返され再度更新されないこと", func(t *testing.T) {
		t.Parallel()

		ts, rec := newTestServer(t, tokenHandler("never-valid", http.StatusOK, `{"access":"A2"}`))
		client := New(ts.URL, newStore(t, "A1", "R1"))

		resp, err := client.Do(context.Background(), "goods/me/", Request{})
		if err != nil {
			t.Fatalf("Do()でエラーが発生: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
		}
		if n := len(rec.snapshot()); n != 3 {
			t.Errorf("呼び出し回数 = %d, want 3", n)
		}
	})

	t.Run("再送結果が500でもそのまま返されること", func(t *testing.T) {
		t.Parallel()

		ts, _ := newTestServer(t, func(w http.ResponseWriter, call recordedCall) {
			switch {
			case call.Path == "/"+RefreshPath:
				_, _ = w.Write([]byte(`{"access":"A2"}`))
			case call.Authorization == "Bearer A2":
				w.WriteHeader(http.StatusInternalServerError)
			default:
				w.WriteHeader(http.StatusUnauthorized)
			}
		})
		client := New(ts.URL, newStore(t, "A1", "R1"))

		resp, err := client.Do(context.Background(), "goods/me/", Request{})
		if err != nil {
			t.Fatalf("Do()でエラーが発生: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusInternalServerError {
			t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
		}
	})

	t.Run("リフレッシュトークンがない場合はSessionExpiredErrorになり再送されないこと", func(t *testing.T) {
		t.Parallel()

		ts, rec := newTestServer(t, tokenHandler("A2", http.StatusOK, `{"access":"A2"}`))
		store := newStore(t, "A1", "")
		client := New(ts.URL, store)

		resp, err := client.Do(context.Background(), "goods/me/", Request{})
		if resp != nil {
			t.Errorf("レスポンスが返された: %d", resp.StatusCode)
		}

		var expired *SessionExpiredError
		if !errors.As(err, &expired) {
			t.Fatalf("error = %v, want *SessionExpiredError", err)
		}
		if expired.RenewalStatus != 0 {
			t.Errorf("RenewalStatus = %d, want 0", expired.RenewalStatus)
		}
		if n := len(rec.snapshot()); n != 1 {
			t.Errorf("呼び出し回数 = %d, want 1", n)
		}
		if p := loadPair(t, store); p.Access != "A1" {
			t.Errorf("アクセストークンが変更された: %+v", p)
		}
	})

	t.Run("トークン更新が拒否された場合は両方のトークンが削除されること", func(t *testing.T) {
		t.Parallel()

		ts, rec := newTestServer(t, tokenHandler("A2", http.StatusBadRequest, `{"refresh":["This field may not be blank."]}`))
		store := newStore(t, "A1", "R1")
		client := New(ts.URL, store)

		_, err := client.Do(context.Background(), "goods/me/", Request{})

		var expired *SessionExpiredError
		if !errors.As(err, &expired) {
			t.Fatalf("error = %v, want *SessionExpiredError", err)
		}
		if expired.RenewalStatus != http.StatusBadRequest {
			t.Errorf("RenewalStatus = %d, want %d", expired.RenewalStatus, http.StatusBadRequest)
		}
		if n := len(rec.snapshot()); n != 2 {
			t.Errorf("呼び出し回数 = %d, want 2", n)
		}
		if store.Len() != 0 {
			t.Errorf("保存済みキー数 = %d, want 0", store.Len())
		}
	})

	t.Run("トークン更新が401で拒否された場合もSessionExpiredErrorになること", func(t *testing.T) {
		t.Parallel()

		ts, _ := newTestServer(t, tokenHandler("A2", http.StatusUnauthorized, `{"detail":"Token is invalid or expired","code":"token_not_valid"}`))
		store := newStore(t, "A1", "R1")
		client := New(ts.URL, store)

		_, err := client.Do(context.Background(), "goods/me/", Request{})
		if !IsSessionExpired(err) {
			t.Fatalf("error = %v, want SessionExpiredError", err)
		}
		if store.Len() != 0 {
			t.Errorf("保存済みキー数 = %d, want 0", store.Len())
		}
	})

	t.Run("更新レスポンスにaccessがない場合はエラーになりトークンが変更されないこと", func(t *testing.T) {
		t.Parallel()

		ts, rec := newTestServer(t, tokenHandler("A2", http.StatusOK, `{}`))
		store := newStore(t, "A1", "R1")
		client := New(ts.URL, store)

		_, err := client.Do(context.Background(), "goods/me/", Request{})
		if !errors.Is(err, ErrInvalidRenewalResponse) {
			t.Fatalf("error = %v, want ErrInvalidRenewalResponse", err)
		}
		if IsSessionExpired(err) {
			t.Error("SessionExpiredErrorとして扱われた")
		}
		if n := len(rec.snapshot()); n != 2 {
			t.Errorf("呼び出し回数 = %d, want 2", n)
		}
		if p := loadPair(t, store); p.Access != "A1" || p.Refresh != "R1" {
			t.Errorf("保存済みトークン = %+v, want {A1 R1}", p)
		}
	})

	t.Run("更新レスポンスがJSONでない場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		ts, _ := newTestServer(t, tokenHandler("A2", http.StatusOK, `<html>`))
		client := New(ts.URL, newStore(t, "A1", "R1"))

		_, err := client.Do(context.Background(), "goods/me/", Request{})
		if !errors.Is(err, ErrInvalidRenewalResponse) {
			t.Fatalf("error = %v, want ErrInvalidRenewalResponse", err)
		}
	})
}

// TestDo_TransportErrors は通信エラーの伝播を検証する。
func TestDo_TransportErrors(t *testing.T) {
	t.Parallel()

	t.Run("接続できないサーバーに対してエラーが返りトークンが変更されないこと", func(t *testing.T) {
		t.Parallel()

		store := newStore(t, "A1", "R1")
		client := New("http://127.0.0.1:1/", store)

		resp, err := client.Do(context.Background(), "goods/me/", Request{})
		if err == nil {
			resp.Body.Close()
			t.Fatal("Do()がエラーを返すべきだが、nilが返った")
		}
		if IsSessionExpired(err) {
			t.Error("通信エラーがSessionExpiredErrorとして扱われた")
		}
		if p := loadPair(t, store); p.Access != "A1" || p.Refresh != "R1" {
			t.Errorf("保存済みトークン = %+v, want {A1 R1}", p)
		}
	})

	t.Run("トークン更新中の通信エラーは再送せずトークンも変更しないこと", func(t *testing.T) {
		t.Parallel()

		ts, rec := newTestServer(t, func(w http.ResponseWriter, call recordedCall) {
			if call.Path == "/"+RefreshPath {
				panic(http.ErrAbortHandler)
			}
			w.WriteHeader(http.StatusUnauthorized)
		})
		store := newStore(t, "A1", "R1")
		client := New(ts.URL, store)

		_, err := client.Do(context.Background(), "goods/me/", Request{})
		if err == nil {
			t.Fatal("Do()がエラーを返すべきだが、nilが返った")
		}
		if IsSessionExpired(err) {
			t.Error("通信エラーがSessionExpiredErrorとして扱われた")
		}
		if n := rec.count("/goods/me/"); n != 1 {
			t.Errorf("元のリクエストの呼び出し回数 = %d, want 1", n)
		}
		if p := loadPair(t, store); p.Access != "A1" || p.Refresh != "R1" {
			t.Errorf("保存済みトークン = %+v, want {A1 R1}", p)
		}
	})

	t.Run("キャンセルされたコンテキストでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts, _ := newTestServer(t, func(w http.ResponseWriter, _ recordedCall) {
			w.WriteHeader(http.StatusOK)
		})
		client := New(ts.URL, newStore(t, "A1", "R1"))

		ctx, cancel := context.WithCancel(context.Background())
		cancel() // 即座にキャンセル

		if _, err := client.Do(ctx, "goods/me/", Request{}); !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	})

	t.Run("トークンの読み込みに失敗した場合は送信しないこと", func(t *testing.T) {
		t.Parallel()

		ts, rec := newTestServer(t, func(w http.ResponseWriter, _ recordedCall) {
			w.WriteHeader(http.StatusOK)
		})
		cause := errors.New("storage unavailable")
		client := New(ts.URL, errStore{err: cause})

		if _, err := client.Do(context.Background(), "goods/me/", Request{}); !errors.Is(err, cause) {
			t.Errorf("error = %v, want wrapping %v", err, cause)
		}
		if n := len(rec.snapshot()); n != 0 {
			t.Errorf("呼び出し回数 = %d, want 0", n)
		}
	})
}

// TestDo_Concurrency は同時に発生した401の扱いを検証する。
func TestDo_Concurrency(t *testing.T) {
	t.Parallel()

	// concurrentHandler はn件の401を返し終えるまでトークン更新の応答を保留するハンドラを返す。
	concurrentHandler := func(n int32, refreshes *atomic.Int32) func(http.ResponseWriter, recordedCall) {
		var unauthorized atomic.Int32
		allUnauthorized := make(chan struct{})
		return func(w http.ResponseWriter, call recordedCall) {
			switch {
			case call.Path == "/"+RefreshPath:
				refreshes.Add(1)
				select {
				case <-allUnauthorized:
				case <-time.After(5 * time.Second):
				}
				time.Sleep(50 * time.Millisecond)
				_, _ = w.Write([]byte(`{"access":"A2"}`))
			case call.Authorization == "Bearer A2":
				w.WriteHeader(http.StatusOK)
			default:
				if unauthorized.Add(1) == n {
					close(allUnauthorized)
				}
				w.WriteHeader(http.StatusUnauthorized)
			}
		}
	}

	run := func(t *testing.T, client *Client, n int) {
		t.Helper()

		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				resp, err := client.Do(context.Background(), "goods/me/", Request{})
				if err != nil {
					errs <- err
					return
				}
				resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					errs <- errors.New(http.StatusText(resp.StatusCode))
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Errorf("並行呼び出しでエラーが発生: %v", err)
		}
	}

	t.Run("同時に発生した401のトークン更新が1回にまとめられること", func(t *testing.T) {
		t.Parallel()

		const n = 5
		var refreshes atomic.Int32
		ts, rec := newTestServer(t, concurrentHandler(n, &refreshes))
		store := newStore(t, "A1", "R1")
		client := New(ts.URL, store)

		run(t, client, n)

		if got := refreshes.Load(); got != 1 {
			t.Errorf("トークン更新回数 = %d, want 1", got)
		}
		if got := rec.count("/goods/me/"); got != 2*n {
			t.Errorf("元のリクエストと再送の合計 = %d, want %d", got, 2*n)
		}
		if p := loadPair(t, store); p.Access != "A2" {
			t.Errorf("Access = %q, want %q", p.Access, "A2")
		}
	})

	t.Run("まとめ実行を無効にすると呼び出しごとに更新されること", func(t *testing.T) {
		t.Parallel()

		const n = 3
		var refreshes atomic.Int32
		ts, _ := newTestServer(t, concurrentHandler(n, &refreshes))
		client := New(ts.URL, newStore(t, "A1", "R1"), WithRenewalCoalescing(false))

		run(t, client, n)

		if got := refreshes.Load(); got != n {
			t.Errorf("トークン更新回数 = %d, want %d", got, n)
		}
	})
}

// TestSend は認証なしの送信を検証する。
func TestSend(t *testing.T) {
	t.Parallel()

	t.Run("Authorizationを付与せず401でも更新しないこと", func(t *testing.T) {
		t.Parallel()

		ts, rec := newTestServer(t, tokenHandler("A1", http.StatusOK, `{"access":"A2"}`))
		store := newStore(t, "A1", "R1")
		client := New(ts.URL, store)

		req, err := NewJSONRequest(http.MethodPost, map[string]string{"email": "a@example.com", "password": "x"})
		if err != nil {
			t.Fatalf("NewJSONRequest()でエラーが発生: %v", err)
		}

		resp, err := client.Send(context.Background(), "auth/login/", req)
		if err != nil {
			t.Fatalf("Send()でエラーが発生: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
		}
		calls := rec.snapshot()
		if len(calls) != 1 {
			t.Fatalf("呼び出し回数 = %d, want 1", len(calls))
		}
		if calls[0].Authorization != "" {
			t.Errorf("Authorization = %q, want empty", calls[0].Authorization)
		}
		if p := loadPair(t, store); p.Access != "A1" {
			t.Errorf("アクセストークンが変更された: %+v", p)
		}
	})
}

// TestNewJSONRequest はNewJSONRequest関数を検証する。
func TestNewJSONRequest(t *testing.T) {
	t.Parallel()

	t.Run("bodyがnilの場合はボディなしになること", func(t *testing.T) {
		t.Parallel()

		req, err := NewJSONRequest(http.MethodDelete, nil)
		if err != nil {
			t.Fatalf("NewJSONRequest()でエラーが発生: %v", err)
		}
		if req.Body != nil {
			t.Errorf("Body = %q, want nil", req.Body)
		}
	})

	t.Run("シリアライズ不可能なボディでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		// json.Marshalでエラーになるチャネル型を渡す
		if _, err := NewJSONRequest(http.MethodPost, make(chan int)); err == nil {
			t.Fatal("NewJSONRequest()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestMetrics はPrometheusカウンタを検証する。
func TestMetrics(t *testing.T) {
	t.Parallel()

	t.Run("結果別の件数が記録されること", func(t *testing.T) {
		t.Parallel()

		ts, _ := newTestServer(t, tokenHandler("A2", http.StatusOK, `{"access":"A2"}`))
		reg := prometheus.NewRegistry()
		client := New(ts.URL, newStore(t, "A1", "R1"), WithRegisterer(reg))

		for i := 0; i < 2; i++ {
			resp, err := client.Do(context.Background(), "goods/me/", Request{})
			if err != nil {
				t.Fatalf("Do()でエラーが発生: %v", err)
			}
			resp.Body.Close()
		}

		if got := testutil.ToFloat64(client.metrics.requests.WithLabelValues(outcomeRenewed)); got != 1 {
			t.Errorf("renewed = %v, want 1", got)
		}
		if got := testutil.ToFloat64(client.metrics.requests.WithLabelValues(outcomePassed)); got != 1 {
			t.Errorf("passed = %v, want 1", got)
		}
		if got := testutil.ToFloat64(client.metrics.renewals.WithLabelValues(renewalSuccess)); got != 1 {
			t.Errorf("renewal success = %v, want 1", got)
		}
	})

	t.Run("同じ登録先に2つのクライアントを登録してもパニックしないこと", func(t *testing.T) {
		t.Parallel()

		reg := prometheus.NewRegistry()
		first := New("http://api.test/", credential.NewMemoryStore(), WithRegisterer(reg))
		second := New("http://api.test/", credential.NewMemoryStore(), WithRegisterer(reg))

		if first.metrics.requests != second.metrics.requests {
			t.Error("登録済みのカウンタが共有されていない")
		}
	})
}
