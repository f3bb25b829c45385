package service

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"

	"sales-order-service/internal/models"
	"sales-order-service/internal/pipeline"
	"sales-order-service/internal/redisclient"
	"sales-order-service/internal/store"

	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu            sync.Mutex
	seq           int64
	nextID        int64
	orders        map[int64]*models.Order
	notifications []*models.Notification
	failBulk      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{orders: map[int64]*models.Order{}}
}

func (f *fakeStore) insert(o *models.Order) {
	f.nextID++
	o.ID = f.nextID
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	stored := *o
	f.orders[o.ID] = &stored
}

func (f *fakeStore) CreateOrder(_ context.Context, order *models.Order, notify store.NotifyFunc) (*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	order.OrderID = models.FormatOrderID(f.seq)
	f.insert(order)
	var n *models.Notification
	if notify != nil {
		n = notify(order)
		f.notifications = append(f.notifications, n)
	}
	return n, nil
}

func (f *fakeStore) BulkCreateOrders(_ context.Context, orders []*models.Order, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failBulk != nil {
		return f.failBulk
	}
	first := f.seq + 1
	f.seq += int64(len(orders))
	for i, o := range orders {
		o.OrderID = models.FormatOrderID(first + int64(i))
		f.insert(o)
	}
	if n != nil {
		f.notifications = append(f.notifications, n)
	}
	return nil
}

func (f *fakeStore) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

// setColumn writes value into the field tagged with the column name
func setColumn(o *models.Order, column string, value interface{}) error {
	v := reflect.ValueOf(o).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("db") != column {
			continue
		}
		field := v.Field(i)
		if value == nil {
			field.Set(reflect.Zero(field.Type()))
			return nil
		}
		rv := reflect.ValueOf(value)
		if !rv.Type().AssignableTo(field.Type()) {
			return fmt.Errorf("column %s: cannot assign %s to %s", column, rv.Type(), field.Type())
		}
		field.Set(rv)
		return nil
	}
	return fmt.Errorf("unknown column %s", column)
}

func (f *fakeStore) UpdateOrder(_ context.Context, id int64, changes []store.Change, n *models.Notification) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	for _, c := range changes {
		if err := setColumn(o, c.Column, c.Value); err != nil {
			return nil, err
		}
	}
	o.UpdatedAt = time.Now()
	if n != nil {
		f.notifications = append(f.notifications, n)
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) DeleteOrder(_ context.Context, id int64, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.orders, id)
	if n != nil {
		f.notifications = append(f.notifications, n)
	}
	return nil
}

func (f *fakeStore) list(match func(o *models.Order) bool, scope models.Scope) []models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Order{}
	for _, o := range f.orders {
		if scope.Includes(o) && (match == nil || match(o)) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (f *fakeStore) ListOrders(_ context.Context, scope models.Scope) ([]models.Order, error) {
	return f.list(nil, scope), nil
}

func (f *fakeStore) ListStageOrders(_ context.Context, stage pipeline.Stage, scope models.Scope) ([]models.Order, error) {
	return f.list(stage.Match, scope), nil
}

type fakeDirectory struct {
	mu    sync.Mutex
	users map[int64]*models.User
}

func newFakeDirectory(users ...models.User) *fakeDirectory {
	d := &fakeDirectory{users: map[int64]*models.User{}}
	for i := range users {
		u := users[i]
		d.users[u.ID] = &u
	}
	return d
}

func (d *fakeDirectory) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (d *fakeDirectory) TeamMemberIDs(_ context.Context, leaderID int64) ([]int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var ids []int64
	for _, u := range d.users {
		if u.AssignedToLeader != nil && *u.AssignedToLeader == leaderID {
			ids = append(ids, u.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (d *fakeDirectory) ListTeam(ctx context.Context, leaderID int64) ([]models.User, error) {
	ids, _ := d.TeamMemberIDs(ctx, leaderID)
	users := []models.User{}
	for _, id := range ids {
		u, _ := d.GetUserByID(ctx, id)
		users = append(users, *u)
	}
	return users, nil
}

func (d *fakeDirectory) ListAvailableUsers(_ context.Context, excludeID int64, roles []string) ([]models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	users := []models.User{}
	for _, u := range d.users {
		if u.ID != excludeID && u.AssignedToLeader == nil && models.Enum(roles).Contains(u.Role) {
			users = append(users, *u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (d *fakeDirectory) AssignLeader(_ context.Context, userID, leaderID int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[userID]
	if !ok || u.AssignedToLeader != nil {
		return false, nil
	}
	u.AssignedToLeader = &leaderID
	return true, nil
}

func (d *fakeDirectory) UnassignLeader(_ context.Context, userID, leaderID int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[userID]
	if !ok || u.AssignedToLeader == nil || *u.AssignedToLeader != leaderID {
		return false, nil
	}
	u.AssignedToLeader = nil
	return true, nil
}

type sentMail struct {
	Kind    models.MailKind
	OrderID string
}

type teamUpdate struct {
	UserID, LeaderID int64
	Action           string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*models.OrderEvent
	mails  []sentMail
	teams  []teamUpdate
	fail   error
}

func (p *fakePublisher) PublishOrderEvent(_ context.Context, event *models.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) PublishTeamUpdated(_ context.Context, userID, leaderID int64, action string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.teams = append(p.teams, teamUpdate{UserID: userID, LeaderID: leaderID, Action: action})
	return p.fail
}

func (p *fakePublisher) PublishMailRequested(_ context.Context, kind models.MailKind, o *models.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.mails = append(p.mails, sentMail{Kind: kind, OrderID: o.OrderID})
	return nil
}

type fakeIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{keys: map[string]string{}}
}

func (f *fakeIdempotency) ClaimIdempotencyKey(_ context.Context, key string, _ time.Duration) (bool, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if prior, ok := f.keys[key]; ok {
		return false, prior, nil
	}
	f.keys[key] = redisclient.PendingResult
	return true, "", nil
}

func (f *fakeIdempotency) CompleteIdempotencyKey(_ context.Context, key, result string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[key] = result
	return nil
}

func (f *fakeIdempotency) ReleaseIdempotencyKey(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, key)
	return nil
}

// inline runs side effects synchronously so tests can observe them
func inline(task func(ctx context.Context)) {
	task(context.Background())
}

var fixedNow = time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)

type harness struct {
	store     *fakeStore
	directory *fakeDirectory
	publisher *fakePublisher
	idem      *fakeIdempotency
	orders    *OrderService
}

func newHarness(users ...models.User) *harness {
	h := &harness{
		store:     newFakeStore(),
		directory: newFakeDirectory(users...),
		publisher: &fakePublisher{},
		idem:      newFakeIdempotency(),
	}
	h.orders = NewOrderService(h.store, h.directory, h.publisher, h.idem, inline, time.Hour)
	h.orders.now = func() time.Time { return fixedNow }
	return h
}

func decodeInput(t *testing.T, payload string) *OrderInput {
	t.Helper()
	var in OrderInput
	require.NoError(t, json.Unmarshal([]byte(payload), &in))
	return &in
}

func body(t *testing.T, payload string) map[string]json.RawMessage {
	t.Helper()
	var b map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(payload), &b))
	return b
}

var (
	sales = models.Actor{ID: 10, Username: "ravi", Role: models.RoleSales}
	admin = models.Actor{ID: 1, Username: "root", Role: models.RoleAdmin}
)

const validPayload = `{
	"customername": "Acme Schools",
	"customerEmail": "buyer@acme.test",
	"orderType": "B2B",
	"dispatchFrom": "Morinda",
	"paymentTerms": "Credit",
	"paymentCollected": "100",
	"freightcs": 20,
	"products": [
		{"productType": "Monitor", "qty": 2, "unitPrice": 100, "gst": 18},
		{"productType": "Stand", "qty": "1", "unitPrice": "50", "gst": "including"}
	]
}`
