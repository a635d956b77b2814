package admin_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestbank/core/internal/admin"
	"github.com/crestbank/core/internal/user"
)

// adminTxKey marks a context as carrying an open fake transaction.
type adminTxKey struct{}

type adminUserSnapshot struct {
	users map[int64]*user.User
}

// fakeAdminUserRepo is an in-memory user.Repository. BeginTx snapshots the
// state; RollbackTx restores it, so rollback semantics are observable.
type fakeAdminUserRepo struct {
	users  map[int64]*user.User
	nextID int64
}

func newFakeAdminUserRepo() *fakeAdminUserRepo {
	return &fakeAdminUserRepo{users: make(map[int64]*user.User)}
}

func (f *fakeAdminUserRepo) add(u *user.User) *user.User {
	f.nextID++
	u.ID = f.nextID
	cp := *u
	f.users[u.ID] = &cp
	return u
}

func (f *fakeAdminUserRepo) snapshot() *adminUserSnapshot {
	snap := &adminUserSnapshot{users: make(map[int64]*user.User, len(f.users))}
	for id, u := range f.users {
		cp := *u
		snap.users[id] = &cp
	}
	return snap
}

func (f *fakeAdminUserRepo) BeginTx(ctx context.Context) (context.Context, error) {
	return context.WithValue(ctx, adminTxKey{}, f.snapshot()), nil
}

func (f *fakeAdminUserRepo) CommitTx(ctx context.Context) error {
	if ctx.Value(adminTxKey{}) == nil {
		return errors.New("no transaction in context")
	}
	return nil
}

func (f *fakeAdminUserRepo) RollbackTx(ctx context.Context) error {
	snap, ok := ctx.Value(adminTxKey{}).(*adminUserSnapshot)
	if !ok {
		return errors.New("no transaction in context")
	}
	f.users = snap.users
	return nil
}

func (f *fakeAdminUserRepo) Create(ctx context.Context, u *user.User) error {
	f.add(u)
	return nil
}

func (f *fakeAdminUserRepo) GetByID(ctx context.Context, id int64) (*user.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeAdminUserRepo) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrNotFound
}

func (f *fakeAdminUserRepo) Exists(ctx context.Context, username, email string) (bool, error) {
	return false, nil
}

func (f *fakeAdminUserRepo) UpdateProfile(ctx context.Context, u *user.User) error {
	return nil
}

func (f *fakeAdminUserRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return nil
}

func (f *fakeAdminUserRepo) SetKYCStatus(ctx context.Context, id int64, status user.KYCStatus) error {
	u, ok := f.users[id]
	if !ok {
		return user.ErrNotFound
	}
	u.KYCStatus = status
	return nil
}

func (f *fakeAdminUserRepo) SetActive(ctx context.Context, id int64, active bool) error {
	u, ok := f.users[id]
	if !ok {
		return user.ErrNotFound
	}
	u.IsActive = active
	return nil
}

func (f *fakeAdminUserRepo) List(ctx context.Context, filters user.Filters) ([]*user.User, error) {
	var out []*user.User
	for _, u := range f.users {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

type fakeAdminAudit struct {
	events []string
	fail   bool
}

func (f *fakeAdminAudit) record(ev string) error {
	if f.fail {
		return errors.New("audit store down")
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeAdminAudit) UserCreated(ctx context.Context, u *user.User, performedBy *int64) error {
	return f.record("created")
}

func (f *fakeAdminAudit) UserActiveChanged(ctx context.Context, userID int64, oldActive, newActive bool, performedBy *int64) error {
	return f.record("active_changed")
}

func (f *fakeAdminAudit) UserKYCChanged(ctx context.Context, userID int64, oldStatus, newStatus user.KYCStatus, performedBy *int64) error {
	return f.record("kyc_changed")
}

func seedCustomer(repo *fakeAdminUserRepo) *user.User {
	return repo.add(&user.User{
		Username:    "jane_doe",
		Email:       "jane@example.com",
		FullName:    "Jane Doe",
		DateOfBirth: time.Date(1990, 4, 12, 0, 0, 0, 0, time.UTC),
		KYCStatus:   user.KYCPending,
		Role:        user.RoleCustomer,
		IsActive:    true,
	})
}

func TestSetKYCStatus(t *testing.T) {
	repo := newFakeAdminUserRepo()
	audit := &fakeAdminAudit{}
	svc := admin.NewService(repo, audit, nil, nil)
	ctx := context.Background()
	u := seedCustomer(repo)

	require.NoError(t, svc.SetKYCStatus(ctx, u.ID, user.KYCVerified, 7))

	stored, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, user.KYCVerified, stored.KYCStatus)
	assert.Equal(t, []string{"kyc_changed"}, audit.events)
}

func TestSetKYCStatus_NoOpWhenUnchanged(t *testing.T) {
	repo := newFakeAdminUserRepo()
	audit := &fakeAdminAudit{}
	svc := admin.NewService(repo, audit, nil, nil)
	u := seedCustomer(repo)

	require.NoError(t, svc.SetKYCStatus(context.Background(), u.ID, user.KYCPending, 7))
	assert.Empty(t, audit.events, "repeating the current status records nothing")
}

func TestSetKYCStatus_InvalidStatus(t *testing.T) {
	repo := newFakeAdminUserRepo()
	svc := admin.NewService(repo, &fakeAdminAudit{}, nil, nil)
	u := seedCustomer(repo)

	err := svc.SetKYCStatus(context.Background(), u.ID, "flagged", 7)
	assert.ErrorIs(t, err, user.ErrInvalidKYCStatus)
}

func TestSetKYCStatus_AuditFailureRollsBack(t *testing.T) {
	repo := newFakeAdminUserRepo()
	svc := admin.NewService(repo, &fakeAdminAudit{fail: true}, nil, nil)
	ctx := context.Background()
	u := seedCustomer(repo)

	err := svc.SetKYCStatus(ctx, u.ID, user.KYCVerified, 7)
	require.Error(t, err)

	stored, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, user.KYCPending, stored.KYCStatus, "the status change rolls back with the audit write")
}

func TestSetUserActive(t *testing.T) {
	repo := newFakeAdminUserRepo()
	audit := &fakeAdminAudit{}
	svc := admin.NewService(repo, audit, nil, nil)
	ctx := context.Background()
	u := seedCustomer(repo)

	require.NoError(t, svc.SetUserActive(ctx, u.ID, false, 7))

	stored, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.Equal(t, []string{"active_changed"}, audit.events)
}

func TestSetUserActive_NoOpWhenUnchanged(t *testing.T) {
	repo := newFakeAdminUserRepo()
	audit := &fakeAdminAudit{}
	svc := admin.NewService(repo, audit, nil, nil)
	u := seedCustomer(repo)

	require.NoError(t, svc.SetUserActive(context.Background(), u.ID, true, 7))
	assert.Empty(t, audit.events)
}

func TestSetUserActive_AuditFailureRollsBack(t *testing.T) {
	repo := newFakeAdminUserRepo()
	svc := admin.NewService(repo, &fakeAdminAudit{fail: true}, nil, nil)
	ctx := context.Background()
	u := seedCustomer(repo)

	err := svc.SetUserActive(ctx, u.ID, false, 7)
	require.Error(t, err)

	stored, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive, "the deactivation rolls back with the audit write")
}

func TestSetUserActive_UnknownUser(t *testing.T) {
	svc := admin.NewService(newFakeAdminUserRepo(), &fakeAdminAudit{}, nil, nil)

	err := svc.SetUserActive(context.Background(), 404, false, 7)
	assert.ErrorIs(t, err, user.ErrNotFound)
}
