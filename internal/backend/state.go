package backend

import (
	"cmp"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Olatundeawo/ordora/internal/money"
	"github.com/Olatundeawo/ordora/internal/storefront"
)

var (
	// errNotFound は対象が存在しないことを表す。
	errNotFound = errors.New("見つかりません")
	// errForbidden は操作の権限がないことを表す。
	errForbidden = errors.New("権限がありません")
	// errEmailTaken はメールアドレスが登録済みであることを表す。
	errEmailTaken = errors.New("メールアドレスは登録済みです")
	// errBadCredentials はメールアドレスかパスワードが誤っていることを表す。
	errBadCredentials = errors.New("認証情報が正しくありません")
	// errOutOfStock は在庫が不足していることを表す。
	errOutOfStock = errors.New("在庫が不足しています")
	// errAlreadyPaid は注文が支払い済みであることを表す。
	errAlreadyPaid = errors.New("注文は支払い済みです")
)

// account は登録済みユーザーとパスワードハッシュ。
type account struct {
	user         storefront.User
	passwordHash []byte
}

// refreshGrant はリフレッシュトークンの発行記録。
type refreshGrant struct {
	userID    int64
	expiresAt time.Time
}

// state はバックエンドの全データ。すべての操作はmuで直列化する。
type state struct {
	mu  sync.Mutex
	now func() time.Time

	lastUserID    int64
	lastProductID int64
	lastOrderID   int64

	accounts map[int64]*account
	emails   map[string]int64
	grants   map[string]refreshGrant
	products map[int64]*storefront.Product
	orders   map[int64]*storefront.Order
	payments map[string]*storefront.Payment
	// paymentOrder は注文IDから最新の支払い参照番号への対応。
	paymentOrder map[int64]string
}

func newState(now func() time.Time) *state {
	if now == nil {
		now = time.Now
	}
	return &state{
		now:          now,
		accounts:     make(map[int64]*account),
		emails:       make(map[string]int64),
		grants:       make(map[string]refreshGrant),
		products:     make(map[int64]*storefront.Product),
		orders:       make(map[int64]*storefront.Order),
		payments:     make(map[string]*storefront.Payment),
		paymentOrder: make(map[int64]string),
	}
}

// register はユーザーを登録する。
func (s *state) register(email, name, password string, role storefront.Role) (storefront.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return storefront.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(email)
	if _, ok := s.emails[key]; ok {
		return storefront.User{}, errEmailTaken
	}
	s.lastUserID++
	u := storefront.User{ID: s.lastUserID, Name: name, Email: email, Role: role}
	s.accounts[u.ID] = &account{user: u, passwordHash: hash}
	s.emails[key] = u.ID
	return u, nil
}

// authenticate はメールアドレスとパスワードを照合する。
func (s *state) authenticate(email, password string) (storefront.User, error) {
	s.mu.Lock()
	id, ok := s.emails[strings.ToLower(email)]
	var acc account
	if ok {
		acc = *s.accounts[id]
	}
	s.mu.Unlock()

	if !ok {
		return storefront.User{}, errBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(password)); err != nil {
		return storefront.User{}, errBadCredentials
	}
	return acc.user, nil
}

func (s *state) user(id int64) (storefront.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return storefront.User{}, errNotFound
	}
	return acc.user, nil
}

// grant は新しいリフレッシュトークンを発行する。
func (s *state) grant(userID int64, ttl time.Duration) string {
	token := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[token] = refreshGrant{userID: userID, expiresAt: s.now().Add(ttl)}
	return token
}

// redeem はリフレッシュトークンを検証してユーザーを返す。期限切れのトークンは破棄する。
func (s *state) redeem(token string) (storefront.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.grants[token]
	if !ok {
		return storefront.User{}, errNotFound
	}
	if !s.now().Before(g.expiresAt) {
		delete(s.grants, token)
		return storefront.User{}, errNotFound
	}
	acc, ok := s.accounts[g.userID]
	if !ok {
		return storefront.User{}, errNotFound
	}
	return acc.user, nil
}

// revoke はユーザーのリフレッシュトークンをすべて無効にする。
func (s *state) revoke(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for token, g := range s.grants {
		if g.userID == userID {
			delete(s.grants, token)
			n++
		}
	}
	return n
}

// listProducts はfilterを満たす商品をID順に返す。
func (s *state) listProducts(filter func(*storefront.Product) bool) []storefront.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storefront.Product, 0, len(s.products))
	for _, p := range s.products {
		if filter == nil || filter(p) {
			out = append(out, *p)
		}
	}
	slices.SortFunc(out, func(a, b storefront.Product) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (s *state) product(id int64) (storefront.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return storefront.Product{}, errNotFound
	}
	return *p, nil
}

func (s *state) createProduct(producer int64, in storefront.ProductInput) storefront.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastProductID++
	now := s.now().UTC()
	p := &storefront.Product{
		ID:          s.lastProductID,
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Quality:     in.Quality,
		Producer:    producer,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.products[p.ID] = p
	return *p
}

// updateProduct は出品者本人の商品だけを更新する。
func (s *state) updateProduct(producer, id int64, in storefront.ProductInput) (storefront.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return storefront.Product{}, errNotFound
	}
	if p.Producer != producer {
		return storefront.Product{}, errForbidden
	}
	p.Name = in.Name
	p.Description = in.Description
	p.Price = in.Price
	p.Quality = in.Quality
	p.UpdatedAt = s.now().UTC()
	return *p, nil
}

// deleteProduct は出品者本人の商品だけを削除する。
func (s *state) deleteProduct(producer, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return errNotFound
	}
	if p.Producer != producer {
		return errForbidden
	}
	delete(s.products, id)
	return nil
}

// createOrder は在庫を確認して注文を作成し、合計金額を計算する。
// 在庫は支払い完了時に減らす。
func (s *state) createOrder(customer int64, items []storefront.OrderItem) (storefront.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	requested := make(map[int64]int, len(items))
	for _, it := range items {
		p, ok := s.products[it.Product]
		if !ok {
			return storefront.Order{}, errNotFound
		}
		// 同じ商品が複数行にある場合は数量を合算して在庫と比べる。
		if it.Quantity > p.Quality-requested[it.Product] {
			return storefront.Order{}, errOutOfStock
		}
		requested[it.Product] += it.Quantity
		price, err := money.Parse(p.Price)
		if err != nil {
			return storefront.Order{}, err
		}
		line, err := money.Mul(price, int64(it.Quantity))
		if err != nil {
			return storefront.Order{}, err
		}
		if total, err = money.Add(total, line); err != nil {
			return storefront.Order{}, err
		}
	}

	s.lastOrderID++
	o := &storefront.Order{
		ID:         s.lastOrderID,
		Customer:   customer,
		TotalPrice: money.Format(total),
		Status:     storefront.OrderPending,
		CreatedAt:  s.now().UTC(),
		Items:      slices.Clone(items),
	}
	s.orders[o.ID] = o
	return cloneOrder(o), nil
}

// listOrders はfilterを満たす注文をID順に返す。
func (s *state) listOrders(filter func(*storefront.Order) bool) []storefront.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storefront.Order, 0)
	for _, o := range s.orders {
		if filter(o) {
			out = append(out, cloneOrder(o))
		}
	}
	slices.SortFunc(out, func(a, b storefront.Order) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// findOrder はfilterを満たす注文を返す。
func (s *state) findOrder(id int64, filter func(*storefront.Order) bool) (storefront.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || !filter(o) {
		return storefront.Order{}, errNotFound
	}
	return cloneOrder(o), nil
}

// containsProducer は注文に出品者の商品が含まれるかを返す。muを保持した状態で呼ぶ。
func (s *state) containsProducer(o *storefront.Order, producer int64) bool {
	for _, it := range o.Items {
		if p, ok := s.products[it.Product]; ok && p.Producer == producer {
			return true
		}
	}
	return false
}

func (s *state) producerOrders(producer int64) []storefront.Order {
	return s.listOrders(func(o *storefront.Order) bool { return s.containsProducer(o, producer) })
}

func (s *state) producerOrder(producer, id int64) (storefront.Order, error) {
	return s.findOrder(id, func(o *storefront.Order) bool { return s.containsProducer(o, producer) })
}

// createPayment は顧客本人の未払い注文に対する支払いを作成する。
// 支払い待ちの支払いが既にあればそれを返す。
func (s *state) createPayment(customer, orderID int64, checkoutURL string) (storefront.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok || o.Customer != customer {
		return storefront.Payment{}, errNotFound
	}
	if o.Status != storefront.OrderPending {
		return storefront.Payment{}, errAlreadyPaid
	}
	if ref, ok := s.paymentOrder[o.ID]; ok && s.payments[ref].Status == storefront.PaymentPending {
		return *s.payments[ref], nil
	}

	now := s.now().UTC()
	ref := referenceFor(o.ID, now)
	p := &storefront.Payment{
		Order:     o.ID,
		Reference: ref,
		Amount:    o.TotalPrice,
		Status:    storefront.PaymentPending,
		QRCode:    strings.TrimRight(checkoutURL, "/") + "/" + uuid.NewString(),
		CreatedAt: now,
	}
	s.payments[ref] = p
	s.paymentOrder[o.ID] = ref
	return *p, nil
}

func (s *state) customerPayments(customer int64) []storefront.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storefront.Payment, 0)
	for _, p := range s.payments {
		if o, ok := s.orders[p.Order]; ok && o.Customer == customer {
			out = append(out, *p)
		}
	}
	slices.SortFunc(out, func(a, b storefront.Payment) int { return strings.Compare(a.Reference, b.Reference) })
	return out
}

// paymentForOrder は注文の最新の支払いを返す。
func (s *state) paymentForOrder(customer, orderID int64) (storefront.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.Customer != customer {
		return storefront.Payment{}, errNotFound
	}
	ref, ok := s.paymentOrder[orderID]
	if !ok {
		return storefront.Payment{}, errNotFound
	}
	return *s.payments[ref], nil
}

// paymentByReference は顧客本人の支払いを参照番号で返す。
func (s *state) paymentByReference(customer int64, ref string) (storefront.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[ref]
	if !ok {
		return storefront.Payment{}, errNotFound
	}
	if o, ok := s.orders[p.Order]; !ok || o.Customer != customer {
		return storefront.Payment{}, errNotFound
	}
	return *p, nil
}

// settle は支払い完了を反映する。支払いをpaid、注文をPAIDにして在庫を減らす。
// 既に支払い済みの場合は何もしない。
func (s *state) settle(ref string, orderID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[ref]
	if !ok {
		return errNotFound
	}
	o, ok := s.orders[orderID]
	if !ok || p.Order != orderID {
		return errNotFound
	}
	if p.Status == storefront.PaymentPaid {
		return nil
	}

	p.Status = storefront.PaymentPaid
	o.Status = storefront.OrderPaid
	for _, it := range o.Items {
		if prod, ok := s.products[it.Product]; ok {
			prod.Quality = max(prod.Quality-it.Quantity, 0)
			prod.UpdatedAt = s.now().UTC()
		}
	}
	return nil
}

// fail は未払いの支払いを失敗にする。
func (s *state) fail(ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[ref]
	if !ok {
		return errNotFound
	}
	if p.Status == storefront.PaymentPending {
		p.Status = storefront.PaymentFailed
	}
	return nil
}

func cloneOrder(o *storefront.Order) storefront.Order {
	c := *o
	c.Items = slices.Clone(o.Items)
	return c
}
