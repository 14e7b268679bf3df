package credential

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// errStore はすべての操作でエラーを返すStore。
type errStore struct {
	err error
}

func (e errStore) Get(context.Context, string) (string, bool, error) { return "", false, e.err }
func (e errStore) Set(context.Context, string, string) error         { return e.err }
func (e errStore) Delete(context.Context, ...string) error           { return e.err }

// TestMemoryStore はMemoryStoreの基本操作を検証する。
func TestMemoryStore(t *testing.T) {
	t.Parallel()

	t.Run("保存した値を取得できること", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		s := NewMemoryStore()
		if err := s.Set(ctx, KeyAccess, "A1"); err != nil {
			t.Fatalf("Set()でエラーが発生: %v", err)
		}

		v, ok, err := s.Get(ctx, KeyAccess)
		if err != nil {
			t.Fatalf("Get()でエラーが発生: %v", err)
		}
		if !ok || v != "A1" {
			t.Errorf("Get() = (%q, %v), want (%q, true)", v, ok, "A1")
		}
	})

	t.Run("存在しないキーはokがfalseになること", func(t *testing.T) {
		t.Parallel()

		v, ok, err := NewMemoryStore().Get(context.Background(), KeyRefresh)
		if err != nil {
			t.Fatalf("Get()でエラーが発生: %v", err)
		}
		if ok || v != "" {
			t.Errorf("Get() = (%q, %v), want (\"\", false)", v, ok)
		}
	})

	t.Run("複数キーをまとめて削除できること", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		s := NewMemoryStore()
		_ = s.Set(ctx, KeyAccess, "A1")
		_ = s.Set(ctx, KeyRefresh, "R1")
		_ = s.Set(ctx, "other", "x")

		if err := s.Delete(ctx, KeyAccess, KeyRefresh, "missing"); err != nil {
			t.Fatalf("Delete()でエラーが発生: %v", err)
		}
		if s.Len() != 1 {
			t.Errorf("Len() = %d, want 1", s.Len())
		}
	})

	t.Run("並行に読み書きしても安全であること", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		s := NewMemoryStore()
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_ = s.Set(ctx, KeyAccess, "A")
			}()
			go func() {
				defer wg.Done()
				_, _, _ = s.Get(ctx, KeyAccess)
			}()
		}
		wg.Wait()
	})
}

// TestLoad はLoad関数を検証する。
func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("両方のトークンを読み込めること", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		s := NewMemoryStore()
		_ = s.Set(ctx, KeyAccess, "A1")
		_ = s.Set(ctx, KeyRefresh, "R1")

		p, err := Load(ctx, s)
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}
		if p.Access != "A1" || p.Refresh != "R1" {
			t.Errorf("Load() = %+v, want {A1 R1}", p)
		}
	})

	t.Run("トークンがない場合は空のPairになること", func(t *testing.T) {
		t.Parallel()

		p, err := Load(context.Background(), NewMemoryStore())
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}
		if p.HasAccess() || p.HasRefresh() {
			t.Errorf("Load() = %+v, want empty", p)
		}
	})

	t.Run("ストアのエラーがラップされて返ること", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("disk full")
		_, err := Load(context.Background(), errStore{err: cause})
		if !errors.Is(err, cause) {
			t.Errorf("Load() error = %v, want wrapping %v", err, cause)
		}
	})
}

// TestSaveAndClear はSave関数とClear関数を検証する。
func TestSaveAndClear(t *testing.T) {
	t.Parallel()

	t.Run("空のトークンは書き込まれないこと", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		s := NewMemoryStore()
		_ = s.Set(ctx, KeyRefresh, "R1")

		if err := Save(ctx, s, Pair{Access: "A2"}); err != nil {
			t.Fatalf("Save()でエラーが発生: %v", err)
		}

		p, _ := Load(ctx, s)
		if p.Access != "A2" {
			t.Errorf("Access = %q, want %q", p.Access, "A2")
		}
		if p.Refresh != "R1" {
			t.Errorf("Refresh = %q, want %q", p.Refresh, "R1")
		}
	})

	t.Run("Clearで両方のトークンが削除されること", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		s := NewMemoryStore()
		_ = Save(ctx, s, Pair{Access: "A1", Refresh: "R1"})

		if err := Clear(ctx, s); err != nil {
			t.Fatalf("Clear()でエラーが発生: %v", err)
		}
		if s.Len() != 0 {
			t.Errorf("Len() = %d, want 0", s.Len())
		}
	})

	t.Run("Saveのエラーがラップされて返ること", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("read only")
		err := Save(context.Background(), errStore{err: cause}, Pair{Access: "A", Refresh: "R"})
		if !errors.Is(err, cause) {
			t.Errorf("Save() error = %v, want wrapping %v", err, cause)
		}
	})
}
