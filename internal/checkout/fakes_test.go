package checkout_test

import (
	"context"
	"errors"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/nexoshop/internal/cart"
	"github.com/vasiliy-maslov/nexoshop/internal/catalog"
	"github.com/vasiliy-maslov/nexoshop/internal/events"
	"github.com/vasiliy-maslov/nexoshop/internal/fulfillment"
	"github.com/vasiliy-maslov/nexoshop/internal/invoice"
	"github.com/vasiliy-maslov/nexoshop/internal/money"
	"github.com/vasiliy-maslov/nexoshop/internal/order"
)

// shop is an in-memory catalog that serves both product lookups and stock updates.
type shop struct {
	mu       sync.Mutex
	products map[uuid.UUID]catalog.Product
}

func newShop() *shop {
	return &shop{products: make(map[uuid.UUID]catalog.Product)}
}

func (s *shop) add(name, price string, stock int) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.Must(uuid.NewV4())
	s.products[id] = catalog.Product{ID: id, Name: name, Price: money.MustParse(price), Stock: stock, IsActive: true}
	return id
}

func (s *shop) stock(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

func (s *shop) deactivate(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.products[id]
	p.IsActive = false
	s.products[id] = p
}

func (s *shop) GetProduct(_ context.Context, id uuid.UUID) (*catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return &p, nil
}

func (s *shop) DecrementStockIfAvailable(_ context.Context, id uuid.UUID, qty int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return 0, catalog.ErrProductNotFound
	}
	if p.Stock < qty {
		return 0, &catalog.InsufficientStockError{ProductID: id, Requested: qty, Available: p.Stock}
	}
	p.Stock -= qty
	s.products[id] = p
	return p.Stock, nil
}

func (s *shop) IncrementStock(_ context.Context, id uuid.UUID, qty int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return 0, catalog.ErrProductNotFound
	}
	p.Stock += qty
	s.products[id] = p
	return p.Stock, nil
}

type memoryCart struct {
	mu       sync.Mutex
	lines    map[uuid.UUID][]cart.Line
	clearErr error
	cleared  int
}

func newMemoryCart() *memoryCart {
	return &memoryCart{lines: make(map[uuid.UUID][]cart.Line)}
}

func (c *memoryCart) put(userID uuid.UUID, lines ...cart.Line) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines[userID] = lines
}

func (c *memoryCart) Lines(_ context.Context, userID uuid.UUID) ([]cart.Line, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]cart.Line(nil), c.lines[userID]...), nil
}

func (c *memoryCart) Remove(_ context.Context, userID, productID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clearErr != nil {
		return c.clearErr
	}
	lines := c.lines[userID]
	for i, l := range lines {
		if l.ProductID == productID {
			c.lines[userID] = append(lines[:i], lines[i+1:]...)
			return nil
		}
	}
	return cart.ErrLineNotFound
}

func (c *memoryCart) Clear(_ context.Context, userID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clearErr != nil {
		return c.clearErr
	}
	delete(c.lines, userID)
	c.cleared++
	return nil
}

type memoryOrders struct {
	mu       sync.Mutex
	orders   map[uuid.UUID]*order.Order
	writeErr error
	seq      int
	// afterWrite runs once the order is stored.
	afterWrite func()
}

func newMemoryOrders() *memoryOrders {
	return &memoryOrders{orders: make(map[uuid.UUID]*order.Order)}
}

func (m *memoryOrders) Write(_ context.Context, d order.Draft) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return nil, m.writeErr
	}
	m.seq++
	o := &order.Order{
		ID:              uuid.Must(uuid.NewV4()),
		OrderNumber:     "ORD-1718000000000-" + string(rune('A'+m.seq%26)) + "0000",
		UserID:          d.UserID,
		Status:          d.Status,
		Subtotal:        d.Subtotal,
		Tax:             d.Tax,
		Shipping:        d.Shipping,
		Total:           d.Total,
		ShippingAddress: d.ShippingAddress,
	}
	for _, l := range d.Lines {
		o.Lines = append(o.Lines, order.OrderLine{
			OrderID:     o.ID,
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			UnitPrice:   l.UnitPrice,
			Quantity:    l.Quantity,
			LineTotal:   l.LineTotal,
		})
	}
	m.orders[o.ID] = o
	if m.afterWrite != nil {
		m.afterWrite()
	}
	return o, nil
}

func (m *memoryOrders) UpdateOrderStatus(_ context.Context, id uuid.UUID, from, to order.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return order.ErrOrderNotFound
	}
	if o.Status != from {
		return order.ErrStatusConflict
	}
	o.Status = to
	return nil
}

func (m *memoryOrders) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memoryOrders) get(id uuid.UUID) *order.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id]
}

type fakeFulfillment struct {
	paymentErr  error
	shipmentErr error
}

func (f *fakeFulfillment) Initiate(_ context.Context, req fulfillment.Request) fulfillment.Outcome {
	var out fulfillment.Outcome
	if f.paymentErr != nil {
		out.PaymentErr = f.paymentErr
	} else {
		out.Payment = &fulfillment.Payment{OrderID: req.OrderID, Amount: req.Amount, Status: fulfillment.PaymentCompleted, Method: req.Method}
	}
	if f.shipmentErr != nil {
		out.ShipmentErr = f.shipmentErr
	} else {
		out.Shipment = &fulfillment.Shipment{OrderID: req.OrderID, Status: fulfillment.ShipmentProcessing, Carrier: fulfillment.DefaultCarrier}
	}
	return out
}

type fakeInvoices struct {
	err error
}

func (f *fakeInvoices) Generate(ctx context.Context, src invoice.Source) (*invoice.Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return &invoice.Invoice{OrderID: src.OrderID, Subtotal: src.Subtotal, Tax: src.Tax, Total: src.Total, Status: invoice.StatusPaid}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.OrderPlaced
	err    error
}

func (p *recordingPublisher) PublishOrderPlaced(ctx context.Context, evt events.OrderPlaced) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

var errStoreDown = errors.New("store unavailable")

// orderTable is a transactional in-memory order.Repository used under a real order.Writer.
// lineErr aborts the insert before anything is stored; commitErr stores the order and then
// reports the commit as unacknowledged.
type orderTable struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]order.Order
	lineErr   error
	commitErr error
	deleteErr error
}

func newOrderTable() *orderTable {
	return &orderTable{rows: make(map[uuid.UUID]order.Order)}
}

func (t *orderTable) CreateOrder(_ context.Context, o *order.Order) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lineErr != nil {
		return t.lineErr
	}
	t.rows[o.ID] = *o
	return t.commitErr
}

func (t *orderTable) DeleteOrder(_ context.Context, id uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.deleteErr != nil {
		return t.deleteErr
	}
	if _, ok := t.rows[id]; !ok {
		return order.ErrOrderNotFound
	}
	delete(t.rows, id)
	return nil
}

func (t *orderTable) GetOrderByID(_ context.Context, id uuid.UUID) (*order.Order, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.rows[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return &o, nil
}

func (t *orderTable) GetOrdersByUserID(context.Context, uuid.UUID) ([]order.Order, error) {
	return nil, nil
}

func (t *orderTable) ListOrders(context.Context, order.ListFilter) ([]order.Order, error) {
	return nil, nil
}

func (t *orderTable) UpdateOrderStatus(_ context.Context, id uuid.UUID, from, to order.OrderStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.rows[id]
	if !ok {
		return order.ErrOrderNotFound
	}
	if o.Status != from {
		return order.ErrStatusConflict
	}
	o.Status = to
	t.rows[id] = o
	return nil
}

func (t *orderTable) SalesStats(context.Context) (order.SalesStats, error) {
	return order.SalesStats{}, nil
}

func (t *orderTable) CustomerStats(context.Context, []uuid.UUID) (map[uuid.UUID]order.CustomerStats, error) {
	return map[uuid.UUID]order.CustomerStats{}, nil
}

func (t *orderTable) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows)
}
