// Package cart は注文前の商品と数量を保持するカートを提供する。
package cart

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Olatundeawo/ordora/internal/money"
	"github.com/Olatundeawo/ordora/internal/storefront"
)

var (
	// ErrMissingProductID は商品IDのない商品を追加しようとしたことを表す。
	ErrMissingProductID = errors.New("商品IDがありません")
	// ErrInvalidQuantity は数量が1未満であることを表す。
	ErrInvalidQuantity = errors.New("数量は1以上である必要があります")
)

// Item はカート内の1商品。
type Item struct {
	// Product は追加時点の商品情報。
	Product storefront.Product
	// Quantity は数量。
	Quantity int
}

// Cart は商品と数量の一覧。追加した順序を保持する。
type Cart struct {
	mu    sync.Mutex
	items []Item
}

// New は空のカートを生成する。
func New() *Cart {
	return &Cart{}
}

// Add は商品をカートに追加する。
// 同じ商品が既にある場合は数量を加算し、商品情報は最新のもので置き換える。
func (c *Cart) Add(p storefront.Product, quantity int) error {
	if p.ID == 0 {
		return ErrMissingProductID
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].Product.ID == p.ID {
			c.items[i].Quantity += quantity
			c.items[i].Product = p
			return nil
		}
	}
	c.items = append(c.items, Item{Product: p, Quantity: quantity})
	return nil
}

// Remove は商品をカートから取り除く。取り除いた場合はtrueを返す。
func (c *Cart) Remove(productID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].Product.ID == productID {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

// Clear はカートを空にする。
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}

// Items はカートの内容のコピーを返す。
func (c *Cart) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Item(nil), c.items...)
}

// Len はカート内の商品の種類数を返す。
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Total は価格×数量の合計を小数2桁の金額文字列で返す。
func (c *Cart) Total() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total int64
	for _, it := range c.items {
		price, err := money.Parse(it.Product.Price)
		if err != nil {
			return "", fmt.Errorf("商品 %d の価格を解釈できません: %w", it.Product.ID, err)
		}
		total += price * int64(it.Quantity)
	}
	return money.Format(total), nil
}

// OrderItems はカートの内容を注文明細に変換する。
func (c *Cart) OrderItems() []storefront.OrderItem {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]storefront.OrderItem, 0, len(c.items))
	for _, it := range c.items {
		items = append(items, storefront.OrderItem{Product: it.Product.ID, Quantity: it.Quantity})
	}
	return items
}
