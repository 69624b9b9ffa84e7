package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

// memStore buffers writes per scope and applies them only on commit, so a
// failing checkout leaves it untouched.
type memStore struct {
	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
	nextLine  int64
	lines     map[string][]domain.CartLine
	orders    []domain.Order
	results   map[string][]byte
	failOn    string
}

func newMemStore() *memStore {
	return &memStore{
		userLocks: make(map[string]*sync.Mutex),
		lines:     make(map[string][]domain.CartLine),
		results:   make(map[string][]byte),
	}
}

func (s *memStore) addLine(userID, productID string, quantity int) domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.lines[userID] {
		if l.ProductID == productID {
			s.lines[userID][i].Quantity += quantity
			return s.lines[userID][i]
		}
	}
	s.nextLine++
	line := domain.CartLine{ID: s.nextLine, UserID: userID, ProductID: productID, Quantity: quantity}
	s.lines[userID] = append(s.lines[userID], line)
	return line
}

func (s *memStore) cartLines(userID string) []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.CartLine(nil), s.lines[userID]...)
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memStore) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[userID] = l
	}
	return l
}

func (s *memStore) InUserScope(ctx context.Context, userID string, fn func(ctx context.Context, tx Tx) error) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	tx := &memTx{store: s, deleted: make(map[int64]bool)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if s.failOn == "commit" {
		return domain.Persistence("commit", errors.New("connection lost"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, tx.orders...)
	kept := s.lines[userID][:0]
	for _, l := range s.lines[userID] {
		if !tx.deleted[l.ID] {
			kept = append(kept, l)
		}
	}
	s.lines[userID] = kept
	for k, v := range tx.results {
		s.results[k] = v
	}
	return nil
}

type memTx struct {
	store   *memStore
	orders  []domain.Order
	deleted map[int64]bool
	results map[string][]byte
}

func resultKey(userID, token string) string { return userID + "|" + token }

func (t *memTx) FindResult(_ context.Context, userID, token string) (*Result, error) {
	t.store.mu.Lock()
	raw, ok := t.store.results[resultKey(userID, token)]
	t.store.mu.Unlock()
	if !ok {
		return nil, nil
	}
	var r Result
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (t *memTx) ListLines(_ context.Context, userID string) ([]domain.CartLine, error) {
	return t.store.cartLines(userID), nil
}

func (t *memTx) CreateOrders(_ context.Context, orders []domain.Order) error {
	if t.store.failOn == "create" {
		return domain.Persistence("insert order", errors.New("disk full"))
	}
	t.orders = append(t.orders, orders...)
	return nil
}

func (t *memTx) DeleteLines(_ context.Context, _ string, lineIDs []int64) error {
	for _, id := range lineIDs {
		t.deleted[id] = true
	}
	return nil
}

func (t *memTx) SaveResult(_ context.Context, result *Result) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	t.results = map[string][]byte{resultKey(result.UserID, result.Token): raw}
	return nil
}

type fakeCatalog struct {
	mu              sync.Mutex
	products        map[string]domain.ProductSnapshot
	fetchErr        map[string]error
	decrementErr    map[string]error
	incrementErr    error
	beforeDecrement func(productID string)
	blockDecrement  string
	decrements      []string
	increments      []string
}

func newFakeCatalog(products ...domain.ProductSnapshot) *fakeCatalog {
	c := &fakeCatalog{
		products:     make(map[string]domain.ProductSnapshot),
		fetchErr:     make(map[string]error),
		decrementErr: make(map[string]error),
	}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *fakeCatalog) FetchMany(_ context.Context, productIDs []string) map[string]domain.ProductLookup {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]domain.ProductLookup, len(productIDs))
	for _, id := range productIDs {
		if err, ok := c.fetchErr[id]; ok {
			out[id] = domain.ProductLookup{Err: err}
			continue
		}
		p, ok := c.products[id]
		if !ok {
			out[id] = domain.ProductLookup{Err: fmt.Errorf("fetch product %s: %w", id, domain.ErrNotFound)}
			continue
		}
		out[id] = domain.ProductLookup{Snapshot: &p}
	}
	return out
}

func (c *fakeCatalog) DecrementStock(ctx context.Context, productID string, amount int) error {
	if c.beforeDecrement != nil {
		c.beforeDecrement(productID)
	}
	if productID == c.blockDecrement {
		<-ctx.Done()
		return fmt.Errorf("%w: %w", domain.ErrTransientCatalog, ctx.Err())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.decrementErr[productID]; ok {
		return err
	}
	p, ok := c.products[productID]
	if !ok {
		return domain.ErrNotFound
	}
	if p.StockAvailable < amount {
		return domain.ErrInsufficientStock
	}
	p.StockAvailable -= amount
	c.products[productID] = p
	c.decrements = append(c.decrements, fmt.Sprintf("%s:%d", productID, amount))
	return nil
}

func (c *fakeCatalog) IncrementStock(ctx context.Context, productID string, amount int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.incrementErr != nil {
		return c.incrementErr
	}
	p := c.products[productID]
	p.StockAvailable += amount
	c.products[productID] = p
	c.increments = append(c.increments, fmt.Sprintf("%s:%d", productID, amount))
	return nil
}

func (c *fakeCatalog) stock(productID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.products[productID].StockAvailable
}

func (c *fakeCatalog) setStock(productID string, stock int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.products[productID]
	p.StockAvailable = stock
	c.products[productID] = p
}

func (c *fakeCatalog) setPrice(productID, price string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.products[productID]
	p.Price = decimal.RequireFromString(price)
	c.products[productID] = p
}

func (c *fakeCatalog) decrementCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.decrements)
}

type recordingPublisher struct {
	mu     sync.Mutex
	err    error
	events []any
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func product(id, price string, stock int) domain.ProductSnapshot {
	return domain.ProductSnapshot{ID: id, Name: "Product " + id, Price: decimal.RequireFromString(price), StockAvailable: stock}
}
