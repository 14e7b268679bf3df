package storefront

import "time"

// Role はユーザーの役割。
type Role string

const (
	// RoleProducer は商品を出品する生産者。
	RoleProducer Role = "producer"
	// RoleCustomer は商品を購入する顧客。
	RoleCustomer Role = "customer"
)

// Valid は既知の役割かを返す。
func (r Role) Valid() bool {
	return r == RoleProducer || r == RoleCustomer
}

// User はログイン中のユーザー。
type User struct {
	// ID はユーザーID。
	ID int64 `json:"id,omitempty"`
	// Name は表示名。
	Name string `json:"name"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// Role はユーザーの役割。
	Role Role `json:"role"`
}

// AuthResponse はログイン・新規登録の成功レスポンス。
type AuthResponse struct {
	// Access はアクセストークン。
	Access string `json:"access"`
	// Refresh はリフレッシュトークン。
	Refresh string `json:"refresh"`
	// User はログインしたユーザー。
	User User `json:"user"`
}

// Product は出品された商品。
type Product struct {
	// ID は商品ID。未登録の商品では0。
	ID int64 `json:"id,omitempty"`
	// Name は商品名。
	Name string `json:"name"`
	// Description は商品説明。
	Description string `json:"description"`
	// Price は小数2桁の価格文字列（例: "12.50"）。
	Price string `json:"price"`
	// Quality は在庫数。
	Quality int `json:"quality"`
	// Producer は出品者のユーザーID。
	Producer int64 `json:"producer,omitempty"`
	// CreatedAt は登録日時。
	CreatedAt time.Time `json:"created_at,omitzero"`
	// UpdatedAt は更新日時。
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// ProductInput は商品の登録・更新内容。
type ProductInput struct {
	// Name は商品名。
	Name string `json:"name"`
	// Description は商品説明。
	Description string `json:"description"`
	// Price は小数2桁の価格文字列。
	Price string `json:"price"`
	// Quality は在庫数。
	Quality int `json:"quality"`
}

// OrderStatus は注文の状態。
type OrderStatus string

const (
	// OrderPending は支払い待ち。
	OrderPending OrderStatus = "PENDING"
	// OrderPaid は支払い済み。
	OrderPaid OrderStatus = "PAID"
	// OrderCompleted は受け渡し完了。
	OrderCompleted OrderStatus = "COMPLETED"
)

// OrderItem は注文明細。
type OrderItem struct {
	// Product は商品ID。
	Product int64 `json:"product"`
	// Quantity は数量。
	Quantity int `json:"quantity"`
}

// Order は顧客の注文。
type Order struct {
	// ID は注文ID。
	ID int64 `json:"id"`
	// Customer は注文した顧客のユーザーID。
	Customer int64 `json:"customer"`
	// TotalPrice は合計金額。
	TotalPrice string `json:"total_price"`
	// Status は注文の状態。
	Status OrderStatus `json:"status"`
	// CreatedAt は注文日時。
	CreatedAt time.Time `json:"created_at"`
	// Items は注文明細。
	Items []OrderItem `json:"items"`
}

// PaymentState は支払いの状態。
type PaymentState string

const (
	// PaymentPending は支払い待ち。
	PaymentPending PaymentState = "pending"
	// PaymentPaid は支払い済み。
	PaymentPaid PaymentState = "paid"
	// PaymentSuccessful は決済事業者が成功を通知した状態。
	PaymentSuccessful PaymentState = "successful"
	// PaymentFailed は支払い失敗。
	PaymentFailed PaymentState = "failed"
)

// Terminal はこれ以上状態が変わらないかを返す。
func (s PaymentState) Terminal() bool {
	return s == PaymentPaid || s == PaymentSuccessful || s == PaymentFailed
}

// Payment は注文に対するQRコード決済。
type Payment struct {
	// Order は注文ID。
	Order int64 `json:"order"`
	// Reference は決済事業者に渡した参照番号（例: "order-12-1700000000"）。
	Reference string `json:"reference"`
	// Amount は請求金額。
	Amount string `json:"amount"`
	// Status は支払いの状態。
	Status PaymentState `json:"status"`
	// QRCode は決済ページのURL。
	QRCode string `json:"qr_code"`
	// CreatedAt は作成日時。
	CreatedAt time.Time `json:"created_at"`
}

// PaymentStatus は参照番号で問い合わせた支払い状況。
type PaymentStatus struct {
	// Reference は参照番号。
	Reference string `json:"reference"`
	// Status は支払いの状態。
	Status PaymentState `json:"status"`
}

// Dashboard は生産者向けの集計。
type Dashboard struct {
	// Products は出品中の商品数。
	Products int `json:"products"`
	// Orders は自分の商品を含む注文数。
	Orders int `json:"orders"`
	// PendingOrders は支払い待ちの注文数。
	PendingOrders int `json:"pending_orders"`
}
