package cart

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

type memoryStore struct {
	mu     sync.Mutex
	nextID int64
	lines  map[int64]domain.CartLine
	err    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{lines: make(map[int64]domain.CartLine)}
}

func (m *memoryStore) Upsert(_ context.Context, userID, productID string, delta int) (*domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}

	for id, line := range m.lines {
		if line.UserID == userID && line.ProductID == productID {
			line.Quantity += delta
			if line.Quantity <= 0 {
				delete(m.lines, id)
				return nil, nil
			}
			m.lines[id] = line
			return &line, nil
		}
	}
	if delta <= 0 {
		return nil, nil
	}

	m.nextID++
	line := domain.CartLine{ID: m.nextID, UserID: userID, ProductID: productID, Quantity: delta, DateAdded: time.Now().UTC()}
	m.lines[line.ID] = line
	return &line, nil
}

func (m *memoryStore) SetQuantity(ctx context.Context, userID string, lineID int64, quantity int) (*domain.CartLine, error) {
	if quantity <= 0 {
		return nil, m.Remove(ctx, userID, lineID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	line, ok := m.lines[lineID]
	if !ok || line.UserID != userID {
		return nil, domain.ErrNotFound
	}
	line.Quantity = quantity
	m.lines[lineID] = line
	return &line, nil
}

func (m *memoryStore) Remove(_ context.Context, userID string, lineID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if line, ok := m.lines[lineID]; ok && line.UserID == userID {
		delete(m.lines, lineID)
	}
	return nil
}

func (m *memoryStore) Clear(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, line := range m.lines {
		if line.UserID == userID {
			delete(m.lines, id)
		}
	}
	return nil
}

func (m *memoryStore) List(_ context.Context, userID string) ([]domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var lines []domain.CartLine
	for _, line := range m.lines {
		if line.UserID == userID {
			lines = append(lines, line)
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ID < lines[j].ID })
	return lines, nil
}

func (m *memoryStore) Count(ctx context.Context, userID string) (int, error) {
	lines, err := m.List(ctx, userID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, line := range lines {
		total += line.Quantity
	}
	return total, nil
}

type fakeCatalog struct {
	mu       sync.Mutex
	products map[string]domain.ProductSnapshot
	failing  map[string]error
}

func newFakeCatalog(products ...domain.ProductSnapshot) *fakeCatalog {
	c := &fakeCatalog{products: make(map[string]domain.ProductSnapshot), failing: make(map[string]error)}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *fakeCatalog) FetchProduct(_ context.Context, productID string) (*domain.ProductSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.failing[productID]; ok {
		return nil, err
	}
	p, ok := c.products[productID]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
	}
	return &p, nil
}

func (c *fakeCatalog) FetchMany(ctx context.Context, productIDs []string) map[string]domain.ProductLookup {
	out := make(map[string]domain.ProductLookup, len(productIDs))
	for _, id := range productIDs {
		snap, err := c.FetchProduct(ctx, id)
		out[id] = domain.ProductLookup{Snapshot: snap, Err: err}
	}
	return out
}

func product(id, price string, stock int) domain.ProductSnapshot {
	return domain.ProductSnapshot{ID: id, Name: "Product " + id, Price: decimal.RequireFromString(price), StockAvailable: stock}
}
