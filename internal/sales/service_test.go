package sales

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/voyager-erp/voyager-erp/internal/ledger"
)

type memoryState struct {
	stockPcs       map[string]int64
	stockKg        map[string]decimal.Decimal
	cartons        map[string]int64
	orders         []Order
	invoices       map[int64]Invoice
	movements      []ledger.Movement
	customerTotals map[int64]decimal.Decimal
	nextID         int64
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		stockPcs:       make(map[string]int64, len(s.stockPcs)),
		stockKg:        make(map[string]decimal.Decimal, len(s.stockKg)),
		cartons:        make(map[string]int64, len(s.cartons)),
		orders:         make([]Order, len(s.orders)),
		invoices:       make(map[int64]Invoice, len(s.invoices)),
		movements:      make([]ledger.Movement, len(s.movements)),
		customerTotals: make(map[int64]decimal.Decimal, len(s.customerTotals)),
		nextID:         s.nextID,
	}
	for k, v := range s.stockPcs {
		c.stockPcs[k] = v
	}
	for k, v := range s.stockKg {
		c.stockKg[k] = v
	}
	for k, v := range s.cartons {
		c.cartons[k] = v
	}
	copy(c.orders, s.orders)
	for k, v := range s.invoices {
		c.invoices[k] = v
	}
	copy(c.movements, s.movements)
	for k, v := range s.customerTotals {
		c.customerTotals[k] = v
	}
	return c
}

type memoryRepo struct {
	state *memoryState
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{state: &memoryState{
		stockPcs:       make(map[string]int64),
		stockKg:        make(map[string]decimal.Decimal),
		cartons:        make(map[string]int64),
		invoices:       make(map[int64]Invoice),
		customerTotals: make(map[int64]decimal.Decimal),
	}}
}

// WithTx runs fn against a copy of the state and swaps it in only on success,
// mirroring transactional rollback.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	staged := r.state.clone()
	if err := fn(ctx, &memoryTx{state: staged}); err != nil {
		return err
	}
	r.state = staged
	return nil
}

func (r *memoryRepo) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	inv, ok := r.state.invoices[id]
	if !ok {
		return Invoice{}, ErrNotFound
	}
	return inv, nil
}

func (r *memoryRepo) ListInvoices(ctx context.Context, customerID int64, limit int) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range r.state.invoices {
		if customerID == 0 || inv.CustomerID == customerID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r *memoryRepo) CreateOrder(ctx context.Context, input CreateOrderInput) (Order, error) {
	r.state.nextID++
	order := Order{
		ID:            r.state.nextID,
		OrderNo:       input.OrderNo,
		CustomerID:    input.CustomerID,
		ItemCode:      input.ItemCode,
		Finish:        input.Finish,
		QtyPcs:        input.QtyPcs,
		InvoiceStatus: OrderStatusOpen,
	}
	r.state.orders = append(r.state.orders, order)
	return order, nil
}

func (r *memoryRepo) ListOpenOrders(ctx context.Context, itemCode string) ([]Order, error) {
	var out []Order
	for _, o := range r.state.orders {
		if o.QtyPcs > 0 && (itemCode == "" || o.ItemCode == itemCode) {
			out = append(out, o)
		}
	}
	return out, nil
}

type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	t.state.nextID++
	inv.ID = t.state.nextID
	t.state.invoices[inv.ID] = inv
	return inv.ID, nil
}

func (t *memoryTx) InsertInvoiceItem(ctx context.Context, item InvoiceItem) (int64, error) {
	t.state.nextID++
	return t.state.nextID, nil
}

func (t *memoryTx) InsertShippingCarton(ctx context.Context, sc ShippingCarton) (int64, error) {
	t.state.nextID++
	return t.state.nextID, nil
}

func (t *memoryTx) CartonQuantities(ctx context.Context, names []string) (map[string]int64, error) {
	out := make(map[string]int64)
	for _, name := range names {
		if qty, ok := t.state.cartons[name]; ok {
			out[name] = qty
		}
	}
	return out, nil
}

func (t *memoryTx) ConsumeCarton(ctx context.Context, cartonName string, count int64) error {
	t.state.cartons[cartonName] -= count
	return nil
}

func (t *memoryTx) AdjustItemStock(ctx context.Context, itemCode string, deltaPcs int64, deltaKg decimal.Decimal) error {
	t.state.stockPcs[itemCode] += deltaPcs
	t.state.stockKg[itemCode] = t.state.stockKg[itemCode].Add(deltaKg)
	return nil
}

func (t *memoryTx) RecordMovement(ctx context.Context, m ledger.Movement) error {
	t.state.movements = append(t.state.movements, m)
	return nil
}

func (t *memoryTx) OpenOrdersForUpdate(ctx context.Context, itemCode, finish string) ([]Order, error) {
	var out []Order
	for _, o := range t.state.orders {
		if o.ItemCode == itemCode && o.Finish == finish && o.QtyPcs > 0 {
			out = append(out, o)
		}
	}
	return out, nil
}

func (t *memoryTx) TakeFromOrder(ctx context.Context, orderID, qtyPcs int64, status OrderStatus) error {
	for i := range t.state.orders {
		if t.state.orders[i].ID == orderID {
			t.state.orders[i].QtyPcs -= qtyPcs
			t.state.orders[i].InvoiceStatus = status
			return nil
		}
	}
	return ErrNotFound
}

func (t *memoryTx) AddCustomerActivity(ctx context.Context, customerID int64, amount decimal.Decimal, no1, no2 int64) (bool, error) {
	total, ok := t.state.customerTotals[customerID]
	if !ok {
		return false, nil
	}
	t.state.customerTotals[customerID] = total.Add(amount)
	return true, nil
}

func (t *memoryTx) DeleteInvoice(ctx context.Context, id int64) (string, error) {
	inv, ok := t.state.invoices[id]
	if !ok {
		return "", ErrNotFound
	}
	delete(t.state.invoices, id)
	return inv.Number, nil
}

func (t *memoryTx) DeleteMovementsByInvoice(ctx context.Context, invoiceNumber string) error {
	kept := t.state.movements[:0]
	for _, m := range t.state.movements {
		if m.InvoiceNumber != invoiceNumber {
			kept = append(kept, m)
		}
	}
	t.state.movements = kept
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedRepo() *memoryRepo {
	repo := newMemoryRepo()
	repo.state.stockPcs["CU-8MM"] = 100
	repo.state.stockKg["CU-8MM"] = dec("250.5")
	repo.state.cartons["BOX-S"] = 10
	repo.state.customerTotals[1] = decimal.Zero
	return repo
}

func seedOrders(repo *memoryRepo, quantities ...int64) {
	for _, qty := range quantities {
		repo.state.nextID++
		repo.state.orders = append(repo.state.orders, Order{
			ID:            repo.state.nextID,
			OrderNo:       "SO-TEST",
			CustomerID:    1,
			ItemCode:      "CU-8MM",
			Finish:        "BRIGHT",
			QtyPcs:        qty,
			InvoiceStatus: OrderStatusOpen,
		})
	}
}

func invoiceInput(totalPcs int64, netKg string) CreateInvoiceInput {
	return CreateInvoiceInput{
		Number:     "INV-001",
		CustomerID: 1,
		GrandTotal: dec("5000"),
		Items: []InvoiceItemInput{{
			ItemCode: "CU-8MM",
			Finish:   "BRIGHT",
			TotalPcs: totalPcs,
			NetKg:    dec(netKg),
			Rate:     dec("100"),
			Amount:   dec("5000"),
		}},
	}
}

func TestCreateInvoiceAllocatesOldestFirst(t *testing.T) {
	repo := seedRepo()
	seedOrders(repo, 5, 4)
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.CreateInvoice(context.Background(), invoiceInput(6, "15.0"))
	require.NoError(t, err)

	require.EqualValues(t, 0, repo.state.orders[0].QtyPcs)
	require.Equal(t, OrderStatusInvoiced, repo.state.orders[0].InvoiceStatus)
	require.EqualValues(t, 3, repo.state.orders[1].QtyPcs)
	require.Equal(t, OrderStatusPartial, repo.state.orders[1].InvoiceStatus)
}

func TestCreateInvoiceExactOrderMatch(t *testing.T) {
	repo := seedRepo()
	seedOrders(repo, 5)
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.CreateInvoice(context.Background(), invoiceInput(5, "12.5"))
	require.NoError(t, err)
	require.EqualValues(t, 0, repo.state.orders[0].QtyPcs)
	require.Equal(t, OrderStatusInvoiced, repo.state.orders[0].InvoiceStatus)
}

func TestCreateInvoiceInsufficientOrderQuantity(t *testing.T) {
	repo := seedRepo()
	seedOrders(repo, 5, 4)
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.CreateInvoice(context.Background(), invoiceInput(10, "25.0"))

	var insufficient *InsufficientOrderQuantityError
	require.ErrorAs(t, err, &insufficient)
	require.EqualValues(t, 1, insufficient.Shortfall)
	require.Equal(t, "CU-8MM", insufficient.ItemCode)

	// Everything staged before the failure must be rolled back.
	require.EqualValues(t, 100, repo.state.stockPcs["CU-8MM"])
	require.True(t, repo.state.stockKg["CU-8MM"].Equal(dec("250.5")))
	require.EqualValues(t, 5, repo.state.orders[0].QtyPcs)
	require.EqualValues(t, 4, repo.state.orders[1].QtyPcs)
	require.Empty(t, repo.state.invoices)
	require.Empty(t, repo.state.movements)
}

func TestCreateInvoiceAllowsNegativeStock(t *testing.T) {
	repo := seedRepo()
	repo.state.stockPcs["CU-8MM"] = 2
	seedOrders(repo, 10)
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.CreateInvoice(context.Background(), invoiceInput(5, "12.5"))
	require.NoError(t, err)
	require.EqualValues(t, -3, repo.state.stockPcs["CU-8MM"])
}

func TestCreateInvoiceCartonPreCheck(t *testing.T) {
	repo := seedRepo()
	seedOrders(repo, 10)
	svc := NewService(repo, nil, nil, nil)

	input := invoiceInput(5, "12.5")
	input.Cartons = []CartonUsageInput{{CartonName: "BOX-S", Quantity: 8}, {CartonName: "BOX-S", Quantity: 4}}

	_, err := svc.CreateInvoice(context.Background(), input)

	var insufficient *InsufficientCartonStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, "BOX-S", insufficient.Carton)
	require.EqualValues(t, 12, insufficient.Required)
	require.EqualValues(t, 10, insufficient.Available)

	require.EqualValues(t, 10, repo.state.cartons["BOX-S"])
	require.Empty(t, repo.state.invoices)
}

func TestCreateInvoiceUnknownCarton(t *testing.T) {
	repo := seedRepo()
	seedOrders(repo, 10)
	svc := NewService(repo, nil, nil, nil)

	input := invoiceInput(5, "12.5")
	input.Cartons = []CartonUsageInput{{CartonName: "BOX-XL", Quantity: 1}}

	_, err := svc.CreateInvoice(context.Background(), input)

	var insufficient *InsufficientCartonStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, "BOX-XL", insufficient.Carton)
	require.EqualValues(t, 0, insufficient.Available)
}

func TestCreateInvoiceConsumesCartonsAndStock(t *testing.T) {
	repo := seedRepo()
	seedOrders(repo, 10)
	svc := NewService(repo, nil, nil, nil)

	input := invoiceInput(6, "15.0")
	input.Cartons = []CartonUsageInput{{CartonName: "BOX-S", Quantity: 4}}

	inv, err := svc.CreateInvoice(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, "INV-001", inv.Number)
	require.True(t, inv.RemainingAmount.Equal(dec("5000")))

	require.EqualValues(t, 6, repo.state.cartons["BOX-S"])
	require.EqualValues(t, 94, repo.state.stockPcs["CU-8MM"])
	require.True(t, repo.state.stockKg["CU-8MM"].Equal(dec("235.5")))

	require.Len(t, repo.state.movements, 1)
	m := repo.state.movements[0]
	require.Equal(t, ledger.DirectionDebit, m.Direction)
	require.Equal(t, ledger.SourceSales, m.Source)
	require.Equal(t, "INV-001", m.InvoiceNumber)
	require.EqualValues(t, 6, m.QtyPcs)

	require.True(t, repo.state.customerTotals[1].Equal(dec("5000")))
}

func TestCreateInvoiceUnknownCustomerIsNoop(t *testing.T) {
	repo := seedRepo()
	seedOrders(repo, 10)
	svc := NewService(repo, nil, nil, nil)

	input := invoiceInput(5, "12.5")
	input.CustomerID = 99

	_, err := svc.CreateInvoice(context.Background(), input)
	require.NoError(t, err)
	require.NotContains(t, repo.state.customerTotals, int64(99))
}

func TestCreateInvoiceGeneratesNumber(t *testing.T) {
	repo := seedRepo()
	seedOrders(repo, 10)
	svc := NewService(repo, nil, nil, nil)

	input := invoiceInput(5, "12.5")
	input.Number = ""

	inv, err := svc.CreateInvoice(context.Background(), input)
	require.NoError(t, err)
	require.NotEmpty(t, inv.Number)
	require.Contains(t, inv.Number, "INV-")
}

func TestCreateInvoiceRequiresItems(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{CustomerID: 1})
	require.Error(t, err)
}

func TestDeleteInvoiceRemovesMovements(t *testing.T) {
	repo := seedRepo()
	seedOrders(repo, 10)
	svc := NewService(repo, nil, nil, nil)

	inv, err := svc.CreateInvoice(context.Background(), invoiceInput(5, "12.5"))
	require.NoError(t, err)
	require.Len(t, repo.state.movements, 1)

	require.NoError(t, svc.DeleteInvoice(context.Background(), inv.ID))
	require.Empty(t, repo.state.invoices)
	require.Empty(t, repo.state.movements)
}

func TestCreateOrderValidation(t *testing.T) {
	repo := seedRepo()
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{CustomerID: 1, ItemCode: "CU-8MM", QtyPcs: 0})
	require.Error(t, err)

	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{CustomerID: 1, ItemCode: "CU-8MM", QtyPcs: 20})
	require.NoError(t, err)
	require.NotEmpty(t, order.OrderNo)
	require.Equal(t, OrderStatusOpen, order.InvoiceStatus)
}
