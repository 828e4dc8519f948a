// Package memory provides in-process repository implementations used by tests
// and local tooling. They copy values in and out so callers never share state.
package memory

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/cartwright/internal/domain"
	"github.com/google/uuid"
)

// =============================================================================
// VARIATIONS
// =============================================================================

// VariationStore implements domain.VariationRepository.
type VariationStore struct {
	mu         sync.RWMutex
	bySKU      map[string]domain.Variation
	categories map[uuid.UUID][]uuid.UUID // product -> categories
}

var _ domain.VariationRepository = (*VariationStore)(nil)

func NewVariationStore(variations ...domain.Variation) *VariationStore {
	s := &VariationStore{
		bySKU:      make(map[string]domain.Variation),
		categories: make(map[uuid.UUID][]uuid.UUID),
	}
	for _, v := range variations {
		s.Put(v)
	}
	return s
}

// Put stores a variation and records its product's categories.
func (s *VariationStore) Put(v domain.Variation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bySKU[v.SKU] = v
	if len(v.CategoryIDs) > 0 {
		s.categories[v.ProductID] = slices.Clone(v.CategoryIDs)
	}
}

func (s *VariationStore) GetBySKU(ctx context.Context, sku string) (*domain.Variation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.bySKU[sku]
	if !ok {
		return nil, domain.ErrVariationNotFound
	}
	return &v, nil
}

func (s *VariationStore) ListBySKUs(ctx context.Context, skus []string) ([]domain.Variation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Variation
	for _, sku := range skus {
		if v, ok := s.bySKU[sku]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *VariationStore) ListByProducts(ctx context.Context, productIDs []uuid.UUID) ([]domain.Variation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Variation
	for _, v := range s.sorted() {
		if slices.Contains(productIDs, v.ProductID) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *VariationStore) ProductsInCategories(ctx context.Context, categoryIDs []uuid.UUID) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []uuid.UUID
	for product, cats := range s.categories {
		for _, c := range cats {
			if slices.Contains(categoryIDs, c) {
				out = append(out, product)
				break
			}
		}
	}
	slices.SortFunc(out, func(a, b uuid.UUID) int { return strings.Compare(a.String(), b.String()) })
	return out, nil
}

func (s *VariationStore) SetBundle(ctx context.Context, bundleID uuid.UUID, variationIDs []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sku, v := range s.bySKU {
		if slices.Contains(variationIDs, v.ID) {
			id := bundleID
			v.BundleID = &id
			s.bySKU[sku] = v
		}
	}
	return nil
}

func (s *VariationStore) ClearBundle(ctx context.Context, bundleID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sku, v := range s.bySKU {
		if v.BundleID != nil && *v.BundleID == bundleID {
			v.BundleID = nil
			s.bySKU[sku] = v
		}
	}
	return nil
}

func (s *VariationStore) SetSale(ctx context.Context, saleID uuid.UUID, window domain.Window, stamps []domain.SaleStamp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prices := make(map[uuid.UUID]map[string]domain.Money, len(stamps))
	for _, stamp := range stamps {
		prices[stamp.VariationID] = stamp.Prices
	}
	for sku, v := range s.bySKU {
		p, ok := prices[v.ID]
		if !ok {
			continue
		}
		id := saleID
		v.SaleID = &id
		v.SalePrices = maps.Clone(p)
		v.SaleFrom, v.SaleTo = window.From, window.To
		s.bySKU[sku] = v
	}
	return nil
}

func (s *VariationStore) ClearSale(ctx context.Context, saleID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sku, v := range s.bySKU {
		if v.SaleID != nil && *v.SaleID == saleID {
			v.SaleID = nil
			v.SalePrices = nil
			v.SaleFrom, v.SaleTo = nil, nil
			s.bySKU[sku] = v
		}
	}
	return nil
}

func (s *VariationStore) sorted() []domain.Variation {
	out := make([]domain.Variation, 0, len(s.bySKU))
	for _, v := range s.bySKU {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b domain.Variation) int { return strings.Compare(a.SKU, b.SKU) })
	return out
}

// =============================================================================
// CARTS
// =============================================================================

// CartStore implements domain.CartRepository.
type CartStore struct {
	mu    sync.Mutex
	carts map[uuid.UUID]domain.Cart
}

var _ domain.CartRepository = (*CartStore)(nil)

func NewCartStore() *CartStore {
	return &CartStore{carts: make(map[uuid.UUID]domain.Cart)}
}

func (s *CartStore) Get(ctx context.Context, id uuid.UUID) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[id]
	if !ok {
		return nil, domain.ErrCartNotFound
	}
	c.Lines = slices.Clone(c.Lines)
	return &c, nil
}

func (s *CartStore) Save(ctx context.Context, cart *domain.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *cart
	c.Lines = slices.Clone(cart.Lines)
	s.carts[c.ID] = c
	return nil
}

func (s *CartStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, id)
	return nil
}

func (s *CartStore) DeleteInactiveSince(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, c := range s.carts {
		if c.LastActivity.Before(cutoff) {
			delete(s.carts, id)
			n++
		}
	}
	return n, nil
}

// =============================================================================
// ORDERS
// =============================================================================

// OrderStore implements domain.OrderRepository.
type OrderStore struct {
	mu     sync.Mutex
	orders map[uuid.UUID]domain.Order
	now    func() time.Time
}

var _ domain.OrderRepository = (*OrderStore)(nil)

func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[uuid.UUID]domain.Order), now: time.Now}
}

func (s *OrderStore) Create(ctx context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	order.CreatedAt = s.now()
	o := *order
	o.Items = slices.Clone(order.Items)
	s.orders[o.ID] = o
	return nil
}

func (s *OrderStore) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	o.Items = slices.Clone(o.Items)
	return &o, nil
}

func (s *OrderStore) SetTransaction(ctx context.Context, id uuid.UUID, transactionID string) error {
	return s.update(id, func(o *domain.Order) { o.TransactionID = transactionID })
}

func (s *OrderStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	return s.update(id, func(o *domain.Order) { o.Status = status })
}

func (s *OrderStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, id)
	return nil
}

func (s *OrderStore) DeleteUnpaid(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.TransactionID != "" {
		return false, nil
	}
	delete(s.orders, id)
	return true, nil
}

// Len returns the number of stored orders.
func (s *OrderStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *OrderStore) update(id uuid.UUID, fn func(*domain.Order)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	fn(&o)
	s.orders[id] = o
	return nil
}

// =============================================================================
// PROMOTIONS
// =============================================================================

// DiscountStore implements domain.DiscountRepository.
type DiscountStore struct {
	mu     sync.Mutex
	byCode map[string]domain.DiscountRule
}

var _ domain.DiscountRepository = (*DiscountStore)(nil)

func NewDiscountStore(rules ...domain.DiscountRule) *DiscountStore {
	s := &DiscountStore{byCode: make(map[string]domain.DiscountRule)}
	for _, r := range rules {
		s.byCode[strings.ToUpper(r.Code)] = r
	}
	return s
}

func (s *DiscountStore) Get(ctx context.Context, id uuid.UUID) (*domain.DiscountRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.byCode {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, domain.ErrDiscountNotFound
}

func (s *DiscountStore) GetByCode(ctx context.Context, code string) (*domain.DiscountRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byCode[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return nil, domain.ErrDiscountNotFound
	}
	return &r, nil
}

func (s *DiscountStore) Create(ctx context.Context, rule *domain.DiscountRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToUpper(rule.Code)
	if _, exists := s.byCode[key]; exists {
		return domain.ErrDuplicateCode
	}
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	s.byCode[key] = *rule
	return nil
}

func (s *DiscountStore) Update(ctx context.Context, rule *domain.DiscountRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, r := range s.byCode {
		if r.ID == rule.ID {
			delete(s.byCode, key)
			s.byCode[strings.ToUpper(rule.Code)] = *rule
			return nil
		}
	}
	return domain.ErrDiscountNotFound
}

func (s *DiscountStore) IncrementUsage(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, r := range s.byCode {
		if r.ID != id {
			continue
		}
		if r.UsageCap != 0 && r.UsageCount >= r.UsageCap {
			return false, nil
		}
		r.UsageCount++
		s.byCode[key] = r
		return true, nil
	}
	return false, domain.ErrDiscountNotFound
}

// BundleStore implements domain.BundleRepository.
type BundleStore struct {
	mu      sync.Mutex
	bundles map[uuid.UUID]domain.BundleRule
}

var _ domain.BundleRepository = (*BundleStore)(nil)

func NewBundleStore(bundles ...domain.BundleRule) *BundleStore {
	s := &BundleStore{bundles: make(map[uuid.UUID]domain.BundleRule)}
	for _, b := range bundles {
		s.bundles[b.ID] = b
	}
	return s
}

func (s *BundleStore) Get(ctx context.Context, id uuid.UUID) (*domain.BundleRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bundles[id]
	if !ok {
		return nil, domain.ErrBundleNotFound
	}
	return &b, nil
}

func (s *BundleStore) Create(ctx context.Context, rule *domain.BundleRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	s.bundles[rule.ID] = *rule
	return nil
}

func (s *BundleStore) Update(ctx context.Context, rule *domain.BundleRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bundles[rule.ID]; !ok {
		return domain.ErrBundleNotFound
	}
	s.bundles[rule.ID] = *rule
	return nil
}

func (s *BundleStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bundles, id)
	return nil
}

func (s *BundleStore) ListActive(ctx context.Context) ([]domain.BundleRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.BundleRule
	for _, b := range s.bundles {
		if b.Active {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b domain.BundleRule) int { return strings.Compare(a.ID.String(), b.ID.String()) })
	return out, nil
}

// SaleStore implements domain.SaleRepository.
type SaleStore struct {
	mu    sync.Mutex
	sales map[uuid.UUID]domain.SaleRule
}

var _ domain.SaleRepository = (*SaleStore)(nil)

func NewSaleStore(sales ...domain.SaleRule) *SaleStore {
	s := &SaleStore{sales: make(map[uuid.UUID]domain.SaleRule)}
	for _, r := range sales {
		s.sales[r.ID] = r
	}
	return s
}

func (s *SaleStore) Get(ctx context.Context, id uuid.UUID) (*domain.SaleRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.sales[id]
	if !ok {
		return nil, domain.NotFound("sale.get", "sale", id.String())
	}
	return &r, nil
}

func (s *SaleStore) Create(ctx context.Context, rule *domain.SaleRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	s.sales[rule.ID] = *rule
	return nil
}

func (s *SaleStore) Update(ctx context.Context, rule *domain.SaleRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sales[rule.ID]; !ok {
		return domain.NotFound("sale.update", "sale", rule.ID.String())
	}
	s.sales[rule.ID] = *rule
	return nil
}

func (s *SaleStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sales[id]; !ok {
		return domain.NotFound("sale.delete", "sale", id.String())
	}
	delete(s.sales, id)
	return nil
}

// =============================================================================
// IDEMPOTENCY
// =============================================================================

// Idempotency is an in-process claim table keyed by transaction id.
type Idempotency struct {
	mu     sync.Mutex
	claims map[string]uuid.UUID
}

func NewIdempotency() *Idempotency {
	return &Idempotency{claims: make(map[string]uuid.UUID)}
}

func (i *Idempotency) Claim(ctx context.Context, key string, orderID uuid.UUID) (bool, uuid.UUID, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if existing, ok := i.claims[key]; ok {
		return false, existing, nil
	}
	i.claims[key] = orderID
	return true, orderID, nil
}

func (i *Idempotency) Release(ctx context.Context, key string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.claims, key)
	return nil
}
