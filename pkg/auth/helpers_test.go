package auth_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/authkit/pkg/auth"
	"github.com/dmitrymomot/authkit/pkg/cookie"
)

// memJar is a cookie.Jar backed by a map. It records the attributes of the
// last write per name.
type memJar struct {
	values  map[string]string
	options map[string]cookie.Options
	deleted map[string]bool
}

var _ cookie.Jar = (*memJar)(nil)

func newMemJar() *memJar {
	return &memJar{
		values:  make(map[string]string),
		options: make(map[string]cookie.Options),
		deleted: make(map[string]bool),
	}
}

func (j *memJar) Get(name string) (string, bool) {
	v, ok := j.values[name]
	return v, ok
}

func (j *memJar) Set(name, value string, opts ...cookie.Option) {
	j.values[name] = value
	j.options[name] = cookie.Options{}.Apply(opts...)
	delete(j.deleted, name)
}

func (j *memJar) Delete(name string, opts ...cookie.Option) {
	delete(j.values, name)
	j.options[name] = cookie.Options{}.Apply(opts...)
	j.deleted[name] = true
}

type MockUserStorage struct {
	mock.Mock
}

var _ auth.UserStorage = (*MockUserStorage)(nil)

func (m *MockUserStorage) FindUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	args := m.Called(ctx, email)
	if u := args.Get(0); u != nil {
		return u.(*auth.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserStorage) FindUserByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*auth.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserStorage) CreateUser(ctx context.Context, user *auth.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserStorage) UpdateUser(ctx context.Context, user *auth.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserStorage) UpsertUserByEmail(ctx context.Context, user *auth.User) (*auth.User, error) {
	args := m.Called(ctx, user)
	if u := args.Get(0); u != nil {
		return u.(*auth.User), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockVerificationStorage struct {
	mock.Mock
}

var _ auth.VerificationStorage = (*MockVerificationStorage)(nil)

func (m *MockVerificationStorage) CreateVerification(ctx context.Context, v *auth.Verification) error {
	return m.Called(ctx, v).Error(0)
}

func (m *MockVerificationStorage) FindVerificationByToken(ctx context.Context, token string) (*auth.Verification, error) {
	args := m.Called(ctx, token)
	if v := args.Get(0); v != nil {
		return v.(*auth.Verification), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockVerificationStorage) FindVerificationByEmail(ctx context.Context, email string) (*auth.Verification, error) {
	args := m.Called(ctx, email)
	if v := args.Get(0); v != nil {
		return v.(*auth.Verification), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockVerificationStorage) DeleteVerification(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type MockMailer struct {
	mock.Mock
}

var _ auth.VerificationMailer = (*MockMailer)(nil)

func (m *MockMailer) SendVerification(ctx context.Context, email, link string, expiresAt time.Time) error {
	return m.Called(ctx, email, link, expiresAt).Error(0)
}
