package v1_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gosuda/trainhub/internal/domain"
	"github.com/gosuda/trainhub/internal/server/middleware"
	"github.com/gosuda/trainhub/internal/store/postgres"
	"github.com/gosuda/trainhub/internal/tenancy"
)

// ---------------------------------------------------------------------------
// Context helpers: inject tenant/user/role/scope into context for DoCtx
// ---------------------------------------------------------------------------

func tenantCtx(tenantID, role string) context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, middleware.ContextKeyTenantID, tenantID)
	ctx = context.WithValue(ctx, middleware.ContextKeyUserID, uuid.New())
	ctx = context.WithValue(ctx, middleware.ContextKeyUserRole, role)
	return ctx
}

func scopedCtx(scope *mockScope, role string) context.Context {
	return middleware.WithFacade(tenantCtx(scope.tenantID, role), scope)
}

// ---------------------------------------------------------------------------
// Mock tenancy.Scope
// ---------------------------------------------------------------------------

type mockScope struct {
	tenantID     string
	users        domain.UserRepository
	clients      domain.ClientRepository
	workouts     domain.WorkoutRepository
	exercises    domain.ExerciseRepository
	transactions int
}

var _ tenancy.Scope = (*mockScope)(nil)

func (m *mockScope) TenantID() string                     { return m.tenantID }
func (m *mockScope) Users() domain.UserRepository         { return m.users }
func (m *mockScope) Clients() domain.ClientRepository     { return m.clients }
func (m *mockScope) Workouts() domain.WorkoutRepository   { return m.workouts }
func (m *mockScope) Exercises() domain.ExerciseRepository { return m.exercises }

func (m *mockScope) Transaction(_ context.Context, fn func(tx tenancy.Accessors) error) error {
	m.transactions++
	return fn(m)
}

// ---------------------------------------------------------------------------
// Mock Platform
// ---------------------------------------------------------------------------

type mockPlatform struct {
	tenants       domain.TenantRepository
	audit         domain.AuditRepository
	provisionFunc func(ctx context.Context, schema string) error
}

func (m *mockPlatform) Tenants() domain.TenantRepository { return m.tenants }
func (m *mockPlatform) Audit() domain.AuditRepository    { return m.audit }

func (m *mockPlatform) ProvisionSchema(ctx context.Context, schema string) error {
	return m.provisionFunc(ctx, schema)
}

// ---------------------------------------------------------------------------
// Mock TenantRepository
// ---------------------------------------------------------------------------

type mockTenantRepo struct {
	createFunc    func(ctx context.Context, t *domain.Tenant) error
	getByIDFunc   func(ctx context.Context, id string) (*domain.Tenant, error)
	getBySlugFunc func(ctx context.Context, slug string) (*domain.Tenant, error)
	updateFunc    func(ctx context.Context, t *domain.Tenant) error
	listFunc      func(ctx context.Context) ([]*domain.Tenant, error)
}

func (m *mockTenantRepo) Create(ctx context.Context, t *domain.Tenant) error {
	return m.createFunc(ctx, t)
}

func (m *mockTenantRepo) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockTenantRepo) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	return m.getBySlugFunc(ctx, slug)
}

func (m *mockTenantRepo) Update(ctx context.Context, t *domain.Tenant) error {
	return m.updateFunc(ctx, t)
}

func (m *mockTenantRepo) List(ctx context.Context) ([]*domain.Tenant, error) {
	return m.listFunc(ctx)
}

// tenantsByID serves GetByID from a fixed set.
func tenantsByID(tenants ...*domain.Tenant) *mockTenantRepo {
	return &mockTenantRepo{
		getByIDFunc: func(_ context.Context, id string) (*domain.Tenant, error) {
			for _, t := range tenants {
				if t.ID == id {
					return t, nil
				}
			}
			return nil, domain.ErrNotFound
		},
	}
}

// ---------------------------------------------------------------------------
// Mock AuditRepository
// ---------------------------------------------------------------------------

type mockAuditRepo struct {
	recordFunc       func(ctx context.Context, e *domain.AuditEntry) error
	listByTenantFunc func(ctx context.Context, tenantID string, limit, offset int) ([]*domain.AuditEntry, error)
	listByActionFunc func(ctx context.Context, action string, since time.Time, limit int) ([]*domain.AuditEntry, error)
}

func (m *mockAuditRepo) Record(ctx context.Context, e *domain.AuditEntry) error {
	return m.recordFunc(ctx, e)
}

func (m *mockAuditRepo) ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*domain.AuditEntry, error) {
	return m.listByTenantFunc(ctx, tenantID, limit, offset)
}

func (m *mockAuditRepo) ListByAction(ctx context.Context, action string, since time.Time, limit int) ([]*domain.AuditEntry, error) {
	return m.listByActionFunc(ctx, action, since, limit)
}

// ---------------------------------------------------------------------------
// Mock UserRepository
// ---------------------------------------------------------------------------

type mockUserRepo struct {
	createFunc     func(ctx context.Context, u *domain.User) error
	getByIDFunc    func(ctx context.Context, id uuid.UUID) (*domain.User, error)
	getByEmailFunc func(ctx context.Context, email string) (*domain.User, error)
	updateFunc     func(ctx context.Context, u *domain.User) error
	listFunc       func(ctx context.Context) ([]*domain.User, error)
}

func (m *mockUserRepo) Create(ctx context.Context, u *domain.User) error {
	return m.createFunc(ctx, u)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.getByEmailFunc(ctx, email)
}

func (m *mockUserRepo) Update(ctx context.Context, u *domain.User) error {
	return m.updateFunc(ctx, u)
}

func (m *mockUserRepo) List(ctx context.Context) ([]*domain.User, error) {
	return m.listFunc(ctx)
}

// ---------------------------------------------------------------------------
// Mock ClientRepository
// ---------------------------------------------------------------------------

type mockClientRepo struct {
	createFunc  func(ctx context.Context, c *domain.Client) error
	getByIDFunc func(ctx context.Context, id uuid.UUID) (*domain.Client, error)
	updateFunc  func(ctx context.Context, c *domain.Client) error
	listFunc    func(ctx context.Context, limit, offset int) ([]*domain.Client, error)
	deleteFunc  func(ctx context.Context, id uuid.UUID) error
}

func (m *mockClientRepo) Create(ctx context.Context, c *domain.Client) error {
	return m.createFunc(ctx, c)
}

func (m *mockClientRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockClientRepo) Update(ctx context.Context, c *domain.Client) error {
	return m.updateFunc(ctx, c)
}

func (m *mockClientRepo) List(ctx context.Context, limit, offset int) ([]*domain.Client, error) {
	return m.listFunc(ctx, limit, offset)
}

func (m *mockClientRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFunc(ctx, id)
}

// ---------------------------------------------------------------------------
// Mock WorkoutRepository / ExerciseRepository
// ---------------------------------------------------------------------------

type mockWorkoutRepo struct {
	createFunc       func(ctx context.Context, w *domain.Workout) error
	getByIDFunc      func(ctx context.Context, id uuid.UUID) (*domain.Workout, error)
	listByClientFunc func(ctx context.Context, clientID uuid.UUID) ([]*domain.Workout, error)
	updateStatusFunc func(ctx context.Context, id uuid.UUID, status domain.WorkoutStatus) error
	deleteFunc       func(ctx context.Context, id uuid.UUID) error
}

func (m *mockWorkoutRepo) Create(ctx context.Context, w *domain.Workout) error {
	return m.createFunc(ctx, w)
}

func (m *mockWorkoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Workout, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockWorkoutRepo) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*domain.Workout, error) {
	return m.listByClientFunc(ctx, clientID)
}

func (m *mockWorkoutRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WorkoutStatus) error {
	return m.updateStatusFunc(ctx, id, status)
}

func (m *mockWorkoutRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFunc(ctx, id)
}

type mockExerciseRepo struct {
	createFunc        func(ctx context.Context, e *domain.Exercise) error
	listByWorkoutFunc func(ctx context.Context, workoutID uuid.UUID) ([]*domain.Exercise, error)
	deleteFunc        func(ctx context.Context, id uuid.UUID) error
}

func (m *mockExerciseRepo) Create(ctx context.Context, e *domain.Exercise) error {
	return m.createFunc(ctx, e)
}

func (m *mockExerciseRepo) ListByWorkout(ctx context.Context, workoutID uuid.UUID) ([]*domain.Exercise, error) {
	return m.listByWorkoutFunc(ctx, workoutID)
}

func (m *mockExerciseRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFunc(ctx, id)
}

// ---------------------------------------------------------------------------
// Mock AuthService / UserRegistrar
// ---------------------------------------------------------------------------

type mockAuthService struct {
	loginFunc    func(ctx context.Context, tenantID, email, password string) (string, string, error)
	refreshFunc  func(ctx context.Context, refreshToken string) (string, error)
	registerFunc func(ctx context.Context, tenantID, email, password, name, role string) (*domain.User, error)
}

func (m *mockAuthService) Login(ctx context.Context, tenantID, email, password string) (string, string, error) {
	return m.loginFunc(ctx, tenantID, email, password)
}

func (m *mockAuthService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	return m.refreshFunc(ctx, refreshToken)
}

func (m *mockAuthService) Register(ctx context.Context, tenantID, email, password, name, role string) (*domain.User, error) {
	return m.registerFunc(ctx, tenantID, email, password, name, role)
}

// ---------------------------------------------------------------------------
// Cross-tenant opener backed by a real Facade over a fake connection
// ---------------------------------------------------------------------------

type mockOpener struct {
	beginFunc func(ctx context.Context, tenantID string) (*tenancy.Facade, error)
}

func (m *mockOpener) BeginPlatform(ctx context.Context, tenantID string) (*tenancy.Facade, error) {
	return m.beginFunc(ctx, tenantID)
}

// statsConn answers the single stats query. Anything else panics through the
// nil embedded Conn.
type statsConn struct {
	postgres.Conn
	counts   countsRow
	query    string
	args     []any
	released bool
}

func (c *statsConn) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	c.query = sql
	c.args = args
	return c.counts
}

func (c *statsConn) Release() { c.released = true }

type countsRow []int64

func (r countsRow) Scan(dest ...any) error {
	for i, d := range dest {
		*(d.(*int64)) = r[i]
	}
	return nil
}
