// Package memstore is an in-memory implementation of repository.Store for
// tests and local development. Nothing survives a restart.
//
// Every call takes the store lock, so single writes are atomic the same way a
// row-level conditional write is. WithinTx holds the lock for the whole
// callback and journals the previous value of each row it touches, which is
// put back when the callback fails.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"catalog-service/internal/domain"
	"catalog-service/internal/repository"

	"github.com/google/uuid"
)

// state maps ids to stored rows. A stored row is never modified in place;
// writes replace the pointer, so journal entries can share them.
type state struct {
	products map[uuid.UUID]*domain.Product
	variants map[uuid.UUID]*domain.ProductVariant
}

// journal holds the pre-transaction value of every touched row. A nil value
// means the row did not exist.
type journal struct {
	products map[uuid.UUID]*domain.Product
	variants map[uuid.UUID]*domain.ProductVariant
}

func newJournal() *journal {
	return &journal{
		products: make(map[uuid.UUID]*domain.Product),
		variants: make(map[uuid.UUID]*domain.ProductVariant),
	}
}

func (j *journal) undo(st *state) {
	for id, p := range j.products {
		if p == nil {
			delete(st.products, id)
			continue
		}
		st.products[id] = p
	}
	for id, v := range j.variants {
		if v == nil {
			delete(st.variants, id)
			continue
		}
		st.variants[id] = v
	}
}

// Store keeps products and variants in maps guarded by a mutex.
type Store struct {
	mu      sync.Mutex
	state   *state
	journal *journal
	failure error
	now     func() time.Time
}

// New creates an empty Store
func New() *Store {
	return &Store{
		state: &state{
			products: make(map[uuid.UUID]*domain.Product),
			variants: make(map[uuid.UUID]*domain.ProductVariant),
		},
		now: time.Now,
	}
}

// SetFailure makes every following call return err until it is cleared
// with SetFailure(nil). It simulates an unreachable database.
func (s *Store) SetFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

func (s *Store) Products() repository.ProductRepository {
	return &productRepo{view{store: s}}
}

func (s *Store) Variants() repository.VariantRepository {
	return &variantRepo{view{store: s}}
}

func (s *Store) WithinTx(ctx context.Context, fn func(repository.Store) error) error {
	return view{store: s}.WithinTx(ctx, fn)
}

// putProduct stores p under id, or removes the row when p is nil. The caller
// holds the lock.
func (s *Store) putProduct(id uuid.UUID, p *domain.Product) {
	if s.journal != nil {
		if _, seen := s.journal.products[id]; !seen {
			s.journal.products[id] = s.state.products[id]
		}
	}
	if p == nil {
		delete(s.state.products, id)
		return
	}
	s.state.products[id] = p
}

// putVariant is putProduct for variants
func (s *Store) putVariant(id uuid.UUID, v *domain.ProductVariant) {
	if s.journal != nil {
		if _, seen := s.journal.variants[id]; !seen {
			s.journal.variants[id] = s.state.variants[id]
		}
	}
	if v == nil {
		delete(s.state.variants, id)
		return
	}
	s.state.variants[id] = v
}

// view is a Store handle that is either free-standing or bound to a
// transaction that already holds the lock.
type view struct {
	store *Store
	inTx  bool
}

func (v view) Products() repository.ProductRepository { return &productRepo{v} }

func (v view) Variants() repository.VariantRepository { return &variantRepo{v} }

func (v view) WithinTx(ctx context.Context, fn func(repository.Store) error) error {
	if v.inTx {
		return fn(v)
	}

	s := v.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failure != nil {
		return s.failure
	}

	s.journal = newJournal()
	defer func() { s.journal = nil }()

	if err := fn(view{store: s, inTx: true}); err != nil {
		s.journal.undo(s.state)
		return err
	}
	return nil
}

// acquire locks the store unless the view runs inside a transaction, and
// returns the function releasing it.
func (v view) acquire() (*state, func(), error) {
	s := v.store
	if v.inTx {
		if s.failure != nil {
			return nil, func() {}, s.failure
		}
		return s.state, func() {}, nil
	}

	s.mu.Lock()
	if s.failure != nil {
		s.mu.Unlock()
		return nil, func() {}, s.failure
	}
	return s.state, s.mu.Unlock, nil
}

type productRepo struct {
	view
}

func (r *productRepo) List(ctx context.Context, tenantID uuid.UUID) ([]*domain.Product, error) {
	st, release, err := r.acquire()
	defer release()
	if err != nil {
		return nil, err
	}

	products := []*domain.Product{}
	for _, p := range st.products {
		if p.TenantID == tenantID {
			products = append(products, cloneProduct(p))
		}
	}
	sort.Slice(products, func(i, j int) bool {
		if !products[i].CreatedAt.Equal(products[j].CreatedAt) {
			return products[i].CreatedAt.After(products[j].CreatedAt)
		}
		return products[i].ID.String() < products[j].ID.String()
	})
	return products, nil
}

func (r *productRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Product, error) {
	st, release, err := r.acquire()
	defer release()
	if err != nil {
		return nil, err
	}

	p, ok := st.products[id]
	if !ok || p.TenantID != tenantID {
		return nil, repository.ErrProductNotFound
	}
	return cloneProduct(p), nil
}

func (r *productRepo) FindBySlug(ctx context.Context, tenantID uuid.UUID, slug string) (*domain.Product, error) {
	st, release, err := r.acquire()
	defer release()
	if err != nil {
		return nil, err
	}

	if p := findSlug(st, tenantID, slug); p != nil {
		return cloneProduct(p), nil
	}
	return nil, repository.ErrProductNotFound
}

func (r *productRepo) Create(ctx context.Context, product *domain.Product) error {
	st, release, err := r.acquire()
	defer release()
	if err != nil {
		return err
	}

	if err := checkProduct(product); err != nil {
		return err
	}
	if findSlug(st, product.TenantID, product.Slug) != nil {
		return repository.ErrSlugTaken
	}
	r.store.putProduct(product.ID, cloneProduct(product))
	return nil
}

func (r *productRepo) Update(ctx context.Context, tenantID, id uuid.UUID, expectedVersion int, patch domain.ProductPatch) (*domain.Product, error) {
	st, release, err := r.acquire()
	defer release()
	if err != nil {
		return nil, err
	}

	current, ok := st.products[id]
	if !ok || current.TenantID != tenantID || current.Version != expectedVersion {
		return nil, repository.ErrVersionMismatch
	}

	next := cloneProduct(current)
	if patch.Name != nil {
		next.Name = *patch.Name
	}
	if patch.Slug != nil {
		if other := findSlug(st, tenantID, *patch.Slug); other != nil && other.ID != id {
			return nil, repository.ErrSlugTaken
		}
		next.Slug = *patch.Slug
	}
	if patch.ShortDescription != nil {
		next.ShortDescription = stringPtr(*patch.ShortDescription)
	}
	if patch.Description != nil {
		next.Description = stringPtr(*patch.Description)
	}
	if patch.Attributes != nil {
		next.Attributes = patch.Attributes.Clone()
	}
	if err := checkProduct(next); err != nil {
		return nil, err
	}
	next.Version++
	next.UpdatedAt = r.store.now().UTC()

	r.store.putProduct(id, next)
	return cloneProduct(next), nil
}

func (r *productRepo) Delete(ctx context.Context, tenantID, id uuid.UUID, expectedVersion int) (*domain.Product, error) {
	st, release, err := r.acquire()
	defer release()
	if err != nil {
		return nil, err
	}

	current, ok := st.products[id]
	if !ok || current.TenantID != tenantID || current.Version != expectedVersion {
		return nil, repository.ErrVersionMismatch
	}

	r.store.putProduct(id, nil)
	// Mirrors the ON DELETE CASCADE foreign key of the SQL schema
	for vid, v := range st.variants {
		if v.ProductID == id {
			r.store.putVariant(vid, nil)
		}
	}
	return cloneProduct(current), nil
}

func (r *productRepo) BumpVersion(ctx context.Context, tenantID, id uuid.UUID) (int, error) {
	st, release, err := r.acquire()
	defer release()
	if err != nil {
		return 0, err
	}

	current, ok := st.products[id]
	if !ok || current.TenantID != tenantID {
		return 0, repository.ErrProductNotFound
	}

	next := cloneProduct(current)
	next.Version++
	next.UpdatedAt = r.store.now().UTC()
	r.store.putProduct(id, next)
	return next.Version, nil
}

type variantRepo struct {
	view
}

func (r *variantRepo) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*domain.ProductVariant, error) {
	st, release, err := r.acquire()
	defer release()
	if err != nil {
		return nil, err
	}

	variants := []*domain.ProductVariant{}
	for _, v := range st.variants {
		if v.ProductID == productID {
			variants = append(variants, withTenant(st, v))
		}
	}
	sort.Slice(variants, func(i, j int) bool {
		if !variants[i].CreatedAt.Equal(variants[j].CreatedAt) {
			return variants[i].CreatedAt.Before(variants[j].CreatedAt)
		}
		return variants[i].ID.String() < variants[j].ID.String()
	})
	return variants, nil
}

func (r *variantRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.ProductVariant, error) {
	st, release, err := r.acquire()
	defer release()
	if err != nil {
		return nil, err
	}

	v, ok := st.variants[id]
	if !ok {
		return nil, repository.ErrVariantNotFound
	}
	return withTenant(st, v), nil
}

func (r *variantRepo) FindBySKU(ctx context.Context, sku string) (*domain.ProductVariant, error) {
	st, release, err := r.acquire()
	defer release()
	if err != nil {
		return nil, err
	}

	if v := findSKU(st, sku); v != nil {
		return withTenant(st, v), nil
	}
	return nil, repository.ErrVariantNotFound
}

func (r *variantRepo) Create(ctx context.Context, variant *domain.ProductVariant) error {
	st, release, err := r.acquire()
	defer release()
	if err != nil {
		return err
	}

	if _, ok := st.products[variant.ProductID]; !ok {
		return repository.ErrProductNotFound
	}
	if err := checkVariant(variant); err != nil {
		return err
	}
	if variant.SKU != nil && findSKU(st, *variant.SKU) != nil {
		return repository.ErrSKUTaken
	}

	stored := cloneVariant(variant)
	stored.TenantID = uuid.Nil
	stored.Prices = domain.MergePrices(nil, variant.Prices)
	r.store.putVariant(variant.ID, stored)
	return nil
}

func (r *variantRepo) Update(ctx context.Context, id uuid.UUID, expectedVersion int, patch domain.VariantPatch) (*domain.ProductVariant, error) {
	st, release, err := r.acquire()
	defer release()
	if err != nil {
		return nil, err
	}

	current, ok := st.variants[id]
	if !ok || current.Version != expectedVersion {
		return nil, repository.ErrVersionMismatch
	}

	next := cloneVariant(current)
	if patch.Name != nil {
		next.Name = *patch.Name
	}
	if patch.SKU != nil {
		if other := findSKU(st, *patch.SKU); other != nil && other.ID != id {
			return nil, repository.ErrSKUTaken
		}
		next.SKU = stringPtr(*patch.SKU)
	}
	next.Prices = domain.MergePrices(current.Prices, patch.Prices)
	if err := checkVariant(next); err != nil {
		return nil, err
	}
	next.Version++
	next.UpdatedAt = r.store.now().UTC()

	r.store.putVariant(id, next)
	return withTenant(st, next), nil
}

func (r *variantRepo) Delete(ctx context.Context, id uuid.UUID, expectedVersion int) (*domain.ProductVariant, error) {
	st, release, err := r.acquire()
	defer release()
	if err != nil {
		return nil, err
	}

	current, ok := st.variants[id]
	if !ok || current.Version != expectedVersion {
		return nil, repository.ErrVersionMismatch
	}

	deleted := withTenant(st, current)
	r.store.putVariant(id, nil)
	return deleted, nil
}

// checkProduct applies the column bounds of the products table
func checkProduct(p *domain.Product) error {
	if tooLong(p.Name, domain.MaxTextLength) || tooLong(p.Slug, domain.MaxTextLength) {
		return fmt.Errorf("%w: name or slug longer than %d characters", repository.ErrInvalidInput, domain.MaxTextLength)
	}
	return nil
}

// checkVariant applies the column bounds of the variant and price tables
func checkVariant(v *domain.ProductVariant) error {
	if tooLong(v.Name, domain.MaxTextLength) || (v.SKU != nil && tooLong(*v.SKU, domain.MaxTextLength)) {
		return fmt.Errorf("%w: name or sku longer than %d characters", repository.ErrInvalidInput, domain.MaxTextLength)
	}
	for _, p := range v.Prices {
		if tooLong(p.Currency, domain.MaxCurrencyLength) {
			return fmt.Errorf("%w: currency %q longer than %d characters", repository.ErrInvalidInput, p.Currency, domain.MaxCurrencyLength)
		}
		if !domain.ValidAmount(p.Amount) {
			return fmt.Errorf("%w: amount %s for %s", repository.ErrInvalidInput, p.Amount, p.Currency)
		}
	}
	return nil
}

// tooLong counts characters the way VARCHAR(n) does
func tooLong(s string, n int) bool {
	return utf8.RuneCountInString(s) > n
}

func findSlug(st *state, tenantID uuid.UUID, slug string) *domain.Product {
	for _, p := range st.products {
		if p.TenantID == tenantID && p.Slug == slug {
			return p
		}
	}
	return nil
}

func findSKU(st *state, sku string) *domain.ProductVariant {
	for _, v := range st.variants {
		if v.SKU != nil && *v.SKU == sku {
			return v
		}
	}
	return nil
}

// withTenant returns a copy of v with the tenant of its owning product.
func withTenant(st *state, v *domain.ProductVariant) *domain.ProductVariant {
	out := cloneVariant(v)
	if p, ok := st.products[v.ProductID]; ok {
		out.TenantID = p.TenantID
	}
	return out
}

func cloneProduct(p *domain.Product) *domain.Product {
	out := *p
	out.Attributes = p.Attributes.Clone()
	if p.ShortDescription != nil {
		out.ShortDescription = stringPtr(*p.ShortDescription)
	}
	if p.Description != nil {
		out.Description = stringPtr(*p.Description)
	}
	return &out
}

func cloneVariant(v *domain.ProductVariant) *domain.ProductVariant {
	out := *v
	if v.SKU != nil {
		out.SKU = stringPtr(*v.SKU)
	}
	out.Prices = append([]domain.Price{}, v.Prices...)
	return &out
}

func stringPtr(s string) *string {
	return &s
}
