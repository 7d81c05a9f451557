// Package memory implements the repository interfaces over in-process maps.
// It enforces the same uniqueness, exclusion and version rules as the
// Postgres schema and is used by service and handler tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/theatre-api/internal/model"
	"github.com/jwalitptl/theatre-api/internal/repository"
	apperrors "github.com/jwalitptl/theatre-api/pkg/errors"
)

type txKey struct{}

type state struct {
	theatres    map[uuid.UUID]model.Theatre
	cases       map[uuid.UUID]model.SurgicalCase
	counters    map[string]int
	consumables map[uuid.UUID]model.SurgeryConsumable
	items       map[uuid.UUID]model.InventoryItem
	outbox      []model.OutboxEvent
	audit       []model.AuditLog
}

func (s state) clone() state {
	out := state{
		theatres:    make(map[uuid.UUID]model.Theatre, len(s.theatres)),
		cases:       make(map[uuid.UUID]model.SurgicalCase, len(s.cases)),
		counters:    make(map[string]int, len(s.counters)),
		consumables: make(map[uuid.UUID]model.SurgeryConsumable, len(s.consumables)),
		items:       make(map[uuid.UUID]model.InventoryItem, len(s.items)),
		outbox:      append([]model.OutboxEvent(nil), s.outbox...),
		audit:       append([]model.AuditLog(nil), s.audit...),
	}
	for k, v := range s.theatres {
		out.theatres[k] = v
	}
	for k, v := range s.cases {
		out.cases[k] = cloneCase(v)
	}
	for k, v := range s.counters {
		out.counters[k] = v
	}
	for k, v := range s.consumables {
		out.consumables[k] = v
	}
	for k, v := range s.items {
		out.items[k] = v
	}
	return out
}

// Store holds every table. Transactions are serialized and roll back by
// restoring a snapshot.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	data state

	// DeductErr, when set, is returned by DeductStock.
	DeductErr error
}

func NewStore() *Store {
	return &Store{data: state{
		theatres:    map[uuid.UUID]model.Theatre{},
		cases:       map[uuid.UUID]model.SurgicalCase{},
		counters:    map[string]int{},
		consumables: map[uuid.UUID]model.SurgeryConsumable{},
		items:       map[uuid.UUID]model.InventoryItem{},
	}}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) Theatres() repository.TheatreRepository { return theatreRepo{s} }
func (s *Store) Cases() repository.SurgicalCaseRepository { return caseRepo{s} }
func (s *Store) CaseNumbers() repository.CaseNumberRepository { return caseNumberRepo{s} }
func (s *Store) Consumables() repository.ConsumableRepository { return consumableRepo{s} }
func (s *Store) Inventory() repository.InventoryRepository { return inventoryRepo{s} }
func (s *Store) Outbox() repository.OutboxRepository { return outboxRepo{s} }
func (s *Store) Audit() repository.AuditRepository { return auditRepo{s} }

// AddItem seeds the inventory catalogue.
func (s *Store) AddItem(item model.InventoryItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	s.data.items[item.ID] = item
}

// Events returns the outbox rows written so far.
func (s *Store) Events() []model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.OutboxEvent(nil), s.data.outbox...)
}

// AuditLogs returns the audit rows written so far.
func (s *Store) AuditLogs() []model.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditLog(nil), s.data.audit...)
}

func (s *Store) lock() func() {
	s.mu.Lock()
	return s.mu.Unlock
}

func cloneCase(c model.SurgicalCase) model.SurgicalCase {
	c.NursingTeam = append(model.JSONList[string](nil), c.NursingTeam...)
	c.PreOpChecklist = append(model.JSONList[model.ChecklistItem](nil), c.PreOpChecklist...)
	c.Complications = append(model.JSONList[model.Complication](nil), c.Complications...)
	c.Specimens = append(model.JSONList[model.Specimen](nil), c.Specimens...)
	return c
}

type theatreRepo struct{ s *Store }

func (r theatreRepo) Create(ctx context.Context, t *model.Theatre) error {
	defer r.s.lock()()
	for _, existing := range r.s.data.theatres {
		if existing.FacilityID == t.FacilityID && existing.Code == t.Code {
			return apperrors.DuplicateCode(t.Code)
		}
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	r.s.data.theatres[t.ID] = *t
	return nil
}

func (r theatreRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Theatre, error) {
	defer r.s.lock()()
	t, ok := r.s.data.theatres[id]
	if !ok {
		return nil, apperrors.NotFound("theatre", nil)
	}
	return &t, nil
}

func (r theatreRepo) List(ctx context.Context, filter model.TheatreFilter) ([]*model.Theatre, error) {
	defer r.s.lock()()
	out := []*model.Theatre{}
	for _, t := range r.s.data.theatres {
		t := t
		if t.FacilityID != filter.FacilityID || (filter.ActiveOnly && !t.IsActive) {
			continue
		}
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r theatreRepo) Update(ctx context.Context, t *model.Theatre) error {
	defer r.s.lock()()
	existing, ok := r.s.data.theatres[t.ID]
	if !ok {
		return apperrors.NotFound("theatre", nil)
	}
	existing.Name, existing.Type, existing.Location = t.Name, t.Type, t.Location
	existing.Capacity, existing.IsActive = t.Capacity, t.IsActive
	existing.UpdatedAt = time.Now().UTC()
	r.s.data.theatres[t.ID] = existing
	t.UpdatedAt = existing.UpdatedAt
	return nil
}

func (r theatreRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.TheatreStatus) error {
	defer r.s.lock()()
	t, ok := r.s.data.theatres[id]
	if !ok {
		return apperrors.NotFound("theatre", nil)
	}
	t.Status = status
	t.UpdatedAt = time.Now().UTC()
	r.s.data.theatres[id] = t
	return nil
}

func (r theatreRepo) CountByStatus(ctx context.Context, facilityID uuid.UUID) (map[model.TheatreStatus]int, error) {
	defer r.s.lock()()
	counts := map[model.TheatreStatus]int{}
	for _, t := range r.s.data.theatres {
		if t.FacilityID == facilityID && t.IsActive {
			counts[t.Status]++
		}
	}
	return counts, nil
}

type caseRepo struct{ s *Store }

func overlapsScheduled(data state, c model.SurgicalCase) bool {
	if c.Status != model.CaseStatusScheduled {
		return false
	}
	for _, other := range data.cases {
		if other.ID == c.ID || other.Status != model.CaseStatusScheduled {
			continue
		}
		if other.TheatreID == c.TheatreID && other.ScheduledDate.Equal(c.ScheduledDate) &&
			other.Window().Overlaps(c.Window()) {
			return true
		}
	}
	return false
}

func (r caseRepo) Create(ctx context.Context, c *model.SurgicalCase) error {
	defer r.s.lock()()
	for _, other := range r.s.data.cases {
		if other.FacilityID == c.FacilityID && other.CaseNumber == c.CaseNumber {
			return errors.Join(repository.ErrDuplicateCaseNumber, errors.New("case number taken"))
		}
	}
	if overlapsScheduled(r.s.data, *c) {
		return errors.Join(repository.ErrTheatreDoubleBooked, errors.New("window overlaps"))
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	c.Version = 1
	r.s.data.cases[c.ID] = cloneCase(*c)
	return nil
}

func (r caseRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.SurgicalCase, error) {
	defer r.s.lock()()
	c, ok := r.s.data.cases[id]
	if !ok {
		return nil, apperrors.NotFound("surgical case", nil)
	}
	c = cloneCase(c)
	return &c, nil
}

func (r caseRepo) Update(ctx context.Context, c *model.SurgicalCase) error {
	defer r.s.lock()()
	existing, ok := r.s.data.cases[c.ID]
	if !ok || existing.Version != c.Version {
		return repository.ErrStaleVersion
	}
	if overlapsScheduled(r.s.data, *c) {
		return errors.Join(repository.ErrTheatreDoubleBooked, errors.New("window overlaps"))
	}
	c.Version++
	c.UpdatedAt = time.Now().UTC()
	r.s.data.cases[c.ID] = cloneCase(*c)
	return nil
}

func (r caseRepo) all(match func(model.SurgicalCase) bool) []*model.SurgicalCase {
	out := []*model.SurgicalCase{}
	for _, c := range r.s.data.cases {
		if match(c) {
			c := cloneCase(c)
			out = append(out, &c)
		}
	}
	return out
}

func (r caseRepo) List(ctx context.Context, f model.CaseFilter) ([]*model.SurgicalCase, int, error) {
	defer r.s.lock()()
	out := r.all(func(c model.SurgicalCase) bool {
		switch {
		case c.FacilityID != f.FacilityID:
		case f.TheatreID != nil && c.TheatreID != *f.TheatreID:
		case f.Status != nil && c.Status != *f.Status:
		case f.SurgeonID != nil && c.LeadSurgeonID != *f.SurgeonID:
		case f.PatientID != nil && c.PatientID != *f.PatientID:
		case f.From != nil && c.ScheduledDate.Before(f.From.Time):
		case f.To != nil && c.ScheduledDate.After(f.To.Time):
		default:
			return true
		}
		return false
	})
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.ScheduledDate.Equal(b.ScheduledDate) {
			return a.ScheduledDate.Before(b.ScheduledDate.Time)
		}
		if a.ScheduledTime != b.ScheduledTime {
			return a.ScheduledTime < b.ScheduledTime
		}
		return a.CaseNumber < b.CaseNumber
	})

	total := len(out)
	page := f.Pagination.Normalize()
	if page.Offset >= total {
		return []*model.SurgicalCase{}, total, nil
	}
	end := page.Offset + page.Limit
	if end > total {
		end = total
	}
	return out[page.Offset:end], total, nil
}

func (r caseRepo) LockTheatreDay(ctx context.Context, theatreID uuid.UUID, date model.Date) error {
	if ctx.Value(txKey{}) == nil {
		return errors.New("theatre day lock requires a transaction")
	}
	return nil
}

func (r caseRepo) FindScheduledOnTheatreDay(ctx context.Context, theatreID uuid.UUID, date model.Date) ([]*model.SurgicalCase, error) {
	defer r.s.lock()()
	out := r.all(func(c model.SurgicalCase) bool {
		return c.TheatreID == theatreID && c.ScheduledDate.Equal(date) && c.Status == model.CaseStatusScheduled
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledTime < out[j].ScheduledTime })
	return out, nil
}

func (r caseRepo) ListByFacilityDates(ctx context.Context, facilityID uuid.UUID, from, to model.Date) ([]*model.SurgicalCase, error) {
	defer r.s.lock()()
	out := r.all(func(c model.SurgicalCase) bool {
		return c.FacilityID == facilityID && !c.ScheduledDate.Before(from.Time) && !c.ScheduledDate.After(to.Time)
	})
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.ScheduledDate.Equal(b.ScheduledDate) {
			return a.ScheduledDate.Before(b.ScheduledDate.Time)
		}
		if a.TheatreID != b.TheatreID {
			return a.TheatreID.String() < b.TheatreID.String()
		}
		return a.ScheduledTime < b.ScheduledTime
	})
	return out, nil
}

func (r caseRepo) ListByStatus(ctx context.Context, facilityID uuid.UUID, status model.CaseStatus) ([]*model.SurgicalCase, error) {
	defer r.s.lock()()
	out := r.all(func(c model.SurgicalCase) bool {
		return c.FacilityID == facilityID && c.Status == status
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledTime < out[j].ScheduledTime })
	return out, nil
}

func (r caseRepo) CountByDateAndStatus(ctx context.Context, facilityID uuid.UUID, date model.Date, status model.CaseStatus) (int, error) {
	defer r.s.lock()()
	n := 0
	for _, c := range r.s.data.cases {
		if c.FacilityID == facilityID && c.ScheduledDate.Equal(date) && c.Status == status {
			n++
		}
	}
	return n, nil
}

type caseNumberRepo struct{ s *Store }

func (r caseNumberRepo) Next(ctx context.Context, facilityID uuid.UUID, date model.Date) (int, error) {
	defer r.s.lock()()
	prefix := model.CaseNumberPrefix(date)
	floor := 0
	for _, c := range r.s.data.cases {
		if c.FacilityID != facilityID || !strings.HasPrefix(c.CaseNumber, prefix) {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(c.CaseNumber, prefix)); err == nil && n > floor {
			floor = n
		}
	}
	key := facilityID.String() + "/" + date.String()
	next := r.s.data.counters[key] + 1
	if next <= floor {
		next = floor + 1
	}
	r.s.data.counters[key] = next
	return next, nil
}

// SetCounter forces the day counter, e.g. to simulate one that fell behind.
func (s *Store) SetCounter(facilityID uuid.UUID, date model.Date, value int) {
	defer s.lock()()
	s.data.counters[facilityID.String()+"/"+date.String()] = value
}

type consumableRepo struct{ s *Store }

func (r consumableRepo) Create(ctx context.Context, c *model.SurgeryConsumable) error {
	defer r.s.lock()()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	r.s.data.consumables[c.ID] = *c
	return nil
}

func (r consumableRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.SurgeryConsumable, error) {
	defer r.s.lock()()
	c, ok := r.s.data.consumables[id]
	if !ok {
		return nil, apperrors.NotFound("consumable", nil)
	}
	return &c, nil
}

func (r consumableRepo) Update(ctx context.Context, c *model.SurgeryConsumable) error {
	defer r.s.lock()()
	existing, ok := r.s.data.consumables[c.ID]
	if !ok {
		return apperrors.NotFound("consumable", nil)
	}
	existing.Quantity, existing.TotalCost, existing.Notes = c.Quantity, c.TotalCost, c.Notes
	existing.IsDeductedFromStock, existing.StockDeductionError = c.IsDeductedFromStock, c.StockDeductionError
	existing.UpdatedAt = time.Now().UTC()
	r.s.data.consumables[c.ID] = existing
	return nil
}

func (r consumableRepo) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.s.lock()()
	if _, ok := r.s.data.consumables[id]; !ok {
		return apperrors.NotFound("consumable", nil)
	}
	delete(r.s.data.consumables, id)
	return nil
}

func (r consumableRepo) ListByCase(ctx context.Context, caseID uuid.UUID) ([]*model.SurgeryConsumable, error) {
	defer r.s.lock()()
	out := []*model.SurgeryConsumable{}
	for _, c := range r.s.data.consumables {
		if c.CaseID == caseID {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UsedAt.Before(out[j].UsedAt) })
	return out, nil
}

func (r consumableRepo) CostByItem(ctx context.Context, facilityID uuid.UUID, from, to model.Date) ([]model.ItemCostLine, error) {
	defer r.s.lock()()
	lo, hi := from.Time, to.AddDays(1).Time

	lines := map[uuid.UUID]*model.ItemCostLine{}
	seen := map[uuid.UUID]map[uuid.UUID]bool{}
	for _, sc := range r.s.data.consumables {
		c, ok := r.s.data.cases[sc.CaseID]
		if !ok || c.FacilityID != facilityID || c.ActualStartTime == nil {
			continue
		}
		if c.ActualStartTime.Before(lo) || !c.ActualStartTime.Before(hi) {
			continue
		}
		line, ok := lines[sc.InventoryItemID]
		if !ok {
			line = &model.ItemCostLine{
				InventoryItemID: sc.InventoryItemID,
				ItemCode:        sc.ItemCode,
				ItemName:        sc.ItemName,
				TotalQuantity:   decimal.Zero,
				TotalCost:       decimal.Zero,
			}
			lines[sc.InventoryItemID] = line
			seen[sc.InventoryItemID] = map[uuid.UUID]bool{}
		}
		line.TotalQuantity = line.TotalQuantity.Add(sc.Quantity)
		line.TotalCost = line.TotalCost.Add(sc.TotalCost)
		if !seen[sc.InventoryItemID][sc.CaseID] {
			seen[sc.InventoryItemID][sc.CaseID] = true
			line.CaseCount++
		}
	}

	out := make([]model.ItemCostLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalCost.GreaterThan(out[j].TotalCost) })
	return out, nil
}

type inventoryRepo struct{ s *Store }

func (r inventoryRepo) GetItem(ctx context.Context, id uuid.UUID) (*model.InventoryItem, error) {
	defer r.s.lock()()
	item, ok := r.s.data.items[id]
	if !ok {
		return nil, apperrors.NotFound("inventory item", nil)
	}
	return &item, nil
}

func (r inventoryRepo) DeductStock(ctx context.Context, d model.StockDeduction) error {
	defer r.s.lock()()
	if r.s.DeductErr != nil {
		return r.s.DeductErr
	}
	item, ok := r.s.data.items[d.ItemID]
	if !ok || item.FacilityID != d.FacilityID {
		return apperrors.NotFound("inventory item", nil)
	}
	if item.QuantityOnHand.LessThan(d.Quantity) {
		return apperrors.InsufficientStock(nil)
	}
	item.QuantityOnHand = item.QuantityOnHand.Sub(d.Quantity)
	r.s.data.items[d.ItemID] = item
	return nil
}

type outboxRepo struct{ s *Store }

func (r outboxRepo) Create(ctx context.Context, e *model.OutboxEvent) error {
	defer r.s.lock()()
	e.ID = uuid.New()
	e.Status = model.OutboxStatusPending
	e.CreatedAt = time.Now().UTC()
	e.UpdatedAt = e.CreatedAt
	r.s.data.outbox = append(r.s.data.outbox, *e)
	return nil
}

func (r outboxRepo) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	defer r.s.lock()()
	out := []*model.OutboxEvent{}
	for i := range r.s.data.outbox {
		if len(out) == limit {
			break
		}
		if r.s.data.outbox[i].Status == model.OutboxStatusPending {
			e := r.s.data.outbox[i]
			out = append(out, &e)
		}
	}
	return out, nil
}

func (r outboxRepo) update(id uuid.UUID, fn func(e *model.OutboxEvent)) error {
	defer r.s.lock()()
	for i := range r.s.data.outbox {
		if r.s.data.outbox[i].ID == id {
			fn(&r.s.data.outbox[i])
			return nil
		}
	}
	return apperrors.NotFound("outbox event", nil)
}

func (r outboxRepo) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return r.update(id, func(e *model.OutboxEvent) {
		now := time.Now().UTC()
		e.Status, e.ProcessedAt, e.ErrorMessage = model.OutboxStatusProcessed, &now, nil
	})
}

func (r outboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, final bool) error {
	return r.update(id, func(e *model.OutboxEvent) {
		e.RetryCount++
		e.ErrorMessage = &errMsg
		if final {
			e.Status = model.OutboxStatusFailed
		}
	})
}

func (r outboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	defer r.s.lock()()
	kept := r.s.data.outbox[:0]
	var n int64
	for _, e := range r.s.data.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	r.s.data.outbox = kept
	return n, nil
}

type auditRepo struct{ s *Store }

func (r auditRepo) Create(ctx context.Context, l *model.AuditLog) error {
	defer r.s.lock()()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	l.CreatedAt = time.Now().UTC()
	r.s.data.audit = append(r.s.data.audit, *l)
	return nil
}

func (r auditRepo) List(ctx context.Context, f model.AuditFilter) ([]*model.AuditLog, error) {
	defer r.s.lock()()
	out := []*model.AuditLog{}
	for i := len(r.s.data.audit) - 1; i >= 0; i-- {
		l := r.s.data.audit[i]
		if f.EntityType != "" && l.EntityType != f.EntityType {
			continue
		}
		if f.EntityID != nil && l.EntityID != *f.EntityID {
			continue
		}
		if f.FacilityID != nil && l.FacilityID != *f.FacilityID {
			continue
		}
		out = append(out, &l)
	}
	return out, nil
}
