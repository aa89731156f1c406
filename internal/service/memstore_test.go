package service_test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/models"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/repository"
)

// memStore is an in-memory repository.Store with the same observable
// semantics as the postgres implementation: version-guarded complaint writes,
// a uniqueness constraint on (complaint, role) queue entries, one vote per
// approver per stage, and (nil, nil) lookups for missing rows. WithTx has no
// rollback; tests only rely on it for the success paths and for failures
// raised before any mutation.
type memStore struct {
	mu sync.Mutex

	complaints map[string]*models.Complaint
	entries    map[string]*models.TaskQueueEntry
	queuePos   int64

	users  map[string]*models.User
	hashes map[string]string

	escalations []*models.Escalation
	appeals     map[string]*models.Appeal
	mediations  map[string]*models.MediationRequest
	stages      map[string]*models.ApprovalStage
	votes       map[string]map[string]bool

	audits []models.AuditLog
}

func newMemStore() *memStore {
	return &memStore{
		complaints: map[string]*models.Complaint{},
		entries:    map[string]*models.TaskQueueEntry{},
		users:      map[string]*models.User{},
		hashes:     map[string]string{},
		appeals:    map[string]*models.Appeal{},
		mediations: map[string]*models.MediationRequest{},
		stages:     map[string]*models.ApprovalStage{},
		votes:      map[string]map[string]bool{},
	}
}

func (m *memStore) Complaints() repository.ComplaintRepository   { return (*memComplaints)(m) }
func (m *memStore) Queue() repository.QueueRepository            { return (*memQueue)(m) }
func (m *memStore) Users() repository.UserRepository             { return (*memUsers)(m) }
func (m *memStore) Escalations() repository.EscalationRepository { return (*memEscalations)(m) }
func (m *memStore) Audit() repository.AuditRepository            { return (*memAudit)(m) }

func (m *memStore) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	return fn(m)
}

// --- seeding helpers -------------------------------------------------------

func (m *memStore) addUser(id string, role models.Role, active bool) *models.User {
	u := &models.User{ID: id, Email: id + "@example.com", Name: id, Role: role, Active: active, CreatedAt: time.Now()}
	m.users[id] = u
	return u
}

func (m *memStore) addComplaint(c *models.Complaint) *models.Complaint {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = models.StatusSubmitted
	}
	if c.TaskStatus == "" {
		c.TaskStatus = models.TaskUnassigned
	}
	if c.EscalationState == "" {
		c.EscalationState = models.EscalationNone
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	m.complaints[c.ID] = c
	cp := *c
	return &cp
}

func (m *memStore) auditActions() []string {
	out := make([]string, 0, len(m.audits))
	for _, a := range m.audits {
		out = append(out, a.Action)
	}
	return out
}

func (m *memStore) hasAudit(action string) bool {
	for _, a := range m.audits {
		if a.Action == action {
			return true
		}
	}
	return false
}

func copyComplaint(c *models.Complaint) *models.Complaint {
	cp := *c
	return &cp
}

// --- complaints ------------------------------------------------------------

type memComplaints memStore

func (m *memComplaints) Create(ctx context.Context, c *models.Complaint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	m.complaints[c.ID] = copyComplaint(c)
	return nil
}

func (m *memComplaints) Get(ctx context.Context, id string) (*models.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.complaints[id]
	if !ok {
		return nil, nil
	}
	return copyComplaint(c), nil
}

func (m *memComplaints) UpdateVersioned(ctx context.Context, c *models.Complaint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.complaints[c.ID]
	if !ok || cur.LockVersion != c.LockVersion {
		return repository.ErrVersionMismatch
	}
	c.LockVersion++
	c.UpdatedAt = time.Now()
	m.complaints[c.ID] = copyComplaint(c)
	return nil
}

func (m *memComplaints) List(ctx context.Context, f repository.ComplaintFilter) ([]models.Complaint, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Complaint
	for _, c := range m.complaints {
		if f.TraderID != "" && c.TraderID != f.TraderID {
			continue
		}
		if f.Status != "" && string(c.Status) != f.Status {
			continue
		}
		if f.Query != "" && !strings.Contains(strings.ToLower(c.Title), strings.ToLower(f.Query)) {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memComplaints) CountAssignedInStatuses(ctx context.Context, userID string, statuses []models.Status) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.complaints {
		if c.AssignedTo == nil || *c.AssignedTo != userID {
			continue
		}
		for _, st := range statuses {
			if c.Status == st {
				n++
				break
			}
		}
	}
	return n, nil
}

func (m *memComplaints) ListStaleUnderReview(ctx context.Context, before time.Time, unwarnedOnly bool) ([]models.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Complaint
	for _, c := range m.complaints {
		if c.Status != models.StatusUnderReview || !c.UpdatedAt.Before(before) {
			continue
		}
		if unwarnedOnly && c.SLAWarningSent {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

func (m *memComplaints) ListResolvedBefore(ctx context.Context, before time.Time) ([]models.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Complaint
	for _, c := range m.complaints {
		if c.Status == models.StatusResolved && c.ClosedAt == nil &&
			c.ResolvedAt != nil && c.ResolvedAt.Before(before) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memComplaints) ListReopenExpiring(ctx context.Context, within time.Time) ([]models.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var out []models.Complaint
	for _, c := range m.complaints {
		if c.Status != models.StatusResolved || c.ReopenReminderSent || c.CanReopenUntil == nil {
			continue
		}
		if c.CanReopenUntil.After(now) && !c.CanReopenUntil.After(within) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memComplaints) CountByStatuses(ctx context.Context, statuses []models.Status, inclusive bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.complaints {
		in := false
		for _, st := range statuses {
			if c.Status == st {
				in = true
				break
			}
		}
		if in == inclusive {
			n++
		}
	}
	return n, nil
}

func (m *memComplaints) CountResolvedSince(ctx context.Context, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.complaints {
		if c.ResolvedAt != nil && c.ResolvedAt.After(since) {
			n++
		}
	}
	return n, nil
}

// --- queue -----------------------------------------------------------------

type memQueue memStore

func (m *memQueue) Create(ctx context.Context, e *models.TaskQueueEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.entries {
		if ex.ComplaintID == e.ComplaintID && ex.AssignedRole == e.AssignedRole {
			return fmt.Errorf("%w: uq_queue_complaint_role", repository.ErrDuplicate)
		}
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	m.queuePos++
	e.QueuePosition = m.queuePos
	e.CreatedAt = time.Now()
	cp := *e
	m.entries[e.ID] = &cp
	return nil
}

func (m *memQueue) Update(ctx context.Context, e *models.TaskQueueEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[e.ID]; !ok {
		return fmt.Errorf("queue entry %s not found", e.ID)
	}
	cp := *e
	m.entries[e.ID] = &cp
	return nil
}

func (m *memQueue) GetByComplaintAndRole(ctx context.Context, complaintID string, role models.Role) (*models.TaskQueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ComplaintID == complaintID && e.AssignedRole == role {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memQueue) GetLatestByComplaint(ctx context.Context, complaintID string) (*models.TaskQueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.TaskQueueEntry
	for _, e := range m.entries {
		if e.ComplaintID != complaintID {
			continue
		}
		if latest == nil || e.QueuePosition > latest.QueuePosition {
			latest = e
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *memQueue) ListUnassigned(ctx context.Context, role models.Role) ([]models.TaskQueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TaskQueueEntry
	for _, e := range m.entries {
		if e.AssignedRole == role && e.AssignedUser == nil {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QueuePosition < out[j].QueuePosition })
	return out, nil
}

func (m *memQueue) ListByRole(ctx context.Context, role models.Role) ([]models.TaskQueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TaskQueueEntry
	for _, e := range m.entries {
		if e.AssignedRole == role {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QueuePosition < out[j].QueuePosition })
	return out, nil
}

func (m *memQueue) ListByUser(ctx context.Context, userID string) ([]models.TaskQueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TaskQueueEntry
	for _, e := range m.entries {
		if e.AssignedUser != nil && *e.AssignedUser == userID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QueuePosition < out[j].QueuePosition })
	return out, nil
}

func (m *memQueue) CountAssignedTo(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.AssignedUser != nil && *e.AssignedUser == userID && e.AssignedAt != nil {
			n++
		}
	}
	return n, nil
}

func (m *memQueue) DeleteByComplaint(ctx context.Context, complaintID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.entries {
		if e.ComplaintID == complaintID {
			delete(m.entries, id)
		}
	}
	return nil
}

// --- users -----------------------------------------------------------------

type memUsers memStore

func (m *memUsers) Create(ctx context.Context, email, name string, role models.Role, passwordHash string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return nil, fmt.Errorf("%w: users_email_key", repository.ErrDuplicate)
		}
	}
	u := &models.User{ID: uuid.NewString(), Email: email, Name: name, Role: role, Active: true, CreatedAt: time.Now()}
	m.users[u.ID] = u
	m.hashes[u.ID] = passwordHash
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (*models.User, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, m.hashes[u.ID], nil
		}
	}
	return nil, "", nil
}

func (m *memUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) ListActiveByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for _, u := range m.users {
		if u.Role == role && u.Active {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memUsers) List(ctx context.Context, q string, role string, active *bool, limit, offset int) ([]models.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for _, u := range m.users {
		if role != "" && string(u.Role) != role {
			continue
		}
		if active != nil && u.Active != *active {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memUsers) UpdateRole(ctx context.Context, id string, role models.Role) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	u.Role = role
	cp := *u
	return &cp, nil
}

func (m *memUsers) SetActive(ctx context.Context, id string, active bool) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	u.Active = active
	cp := *u
	return &cp, nil
}

// --- escalations, appeals, mediations, approval stages ---------------------

type memEscalations memStore

func (m *memEscalations) CreateEscalation(ctx context.Context, e *models.Escalation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = time.Now()
	cp := *e
	m.escalations = append(m.escalations, &cp)
	return nil
}

func (m *memEscalations) ListEscalations(ctx context.Context, complaintID string) ([]models.Escalation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Escalation
	for _, e := range m.escalations {
		if e.ComplaintID == complaintID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memEscalations) CreateAppeal(ctx context.Context, a *models.Appeal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = time.Now()
	cp := *a
	m.appeals[a.ID] = &cp
	return nil
}

func (m *memEscalations) GetAppeal(ctx context.Context, id string) (*models.Appeal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appeals[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *memEscalations) GetPendingAppeal(ctx context.Context, complaintID string) (*models.Appeal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.appeals {
		if a.ComplaintID == complaintID && a.Status == models.AppealPending {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memEscalations) UpdateAppeal(ctx context.Context, a *models.Appeal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.appeals[a.ID] = &cp
	return nil
}

func (m *memEscalations) CreateMediation(ctx context.Context, med *models.MediationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if med.ID == "" {
		med.ID = uuid.NewString()
	}
	med.CreatedAt = time.Now()
	cp := *med
	m.mediations[med.ID] = &cp
	return nil
}

func (m *memEscalations) GetMediation(ctx context.Context, id string) (*models.MediationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	med, ok := m.mediations[id]
	if !ok {
		return nil, nil
	}
	cp := *med
	return &cp, nil
}

func (m *memEscalations) GetActiveMediation(ctx context.Context, complaintID string) (*models.MediationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, med := range m.mediations {
		if med.ComplaintID == complaintID && med.Status.Active() {
			cp := *med
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memEscalations) UpdateMediation(ctx context.Context, med *models.MediationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *med
	m.mediations[med.ID] = &cp
	return nil
}

func (m *memEscalations) CreateApprovalStage(ctx context.Context, s *models.ApprovalStage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedAt = time.Now()
	cp := *s
	m.stages[s.ID] = &cp
	m.votes[s.ID] = map[string]bool{}
	return nil
}

func (m *memEscalations) GetOpenApprovalStage(ctx context.Context, complaintID string) (*models.ApprovalStage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.stages {
		if s.ComplaintID == complaintID && !s.Closed {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memEscalations) RecordApproval(ctx context.Context, stageID, approverID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stages[stageID]
	if !ok {
		return 0, fmt.Errorf("stage %s not found", stageID)
	}
	if m.votes[stageID][approverID] {
		return 0, fmt.Errorf("%w: uq_stage_approver", repository.ErrDuplicate)
	}
	m.votes[stageID][approverID] = true
	s.ApprovedCount++
	return s.ApprovedCount, nil
}

func (m *memEscalations) CloseApprovalStage(ctx context.Context, stageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.stages[stageID]; ok {
		now := time.Now()
		s.Closed = true
		s.ClosedAt = &now
	}
	return nil
}

// --- audit -----------------------------------------------------------------

type memAudit memStore

func (m *memAudit) Record(ctx context.Context, actorID, action, targetType, targetID, details string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, models.AuditLog{
		ID: uuid.NewString(), ActorID: actorID, Action: action,
		TargetType: targetType, TargetID: targetID, Details: details,
		CreatedAt: time.Now(),
	})
	return nil
}

func (m *memAudit) ListByTarget(ctx context.Context, targetType, targetID string) ([]models.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AuditLog
	for _, a := range m.audits {
		if a.TargetType == targetType && a.TargetID == targetID {
			out = append(out, a)
		}
	}
	return out, nil
}

// fakeNotifier records dispatched notifications for assertions.
type fakeNotifier struct {
	mu          sync.Mutex
	assignments []string // user ids
	events      []string // "user:event"
	escalations []string // user ids
}

func (f *fakeNotifier) NotifyAssignment(userID string, c *models.Complaint, assignerName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assignments = append(f.assignments, userID)
}

func (f *fakeNotifier) NotifyTaskEvent(userID string, c *models.Complaint, event string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, userID+":"+event)
}

func (f *fakeNotifier) NotifyEscalation(userID string, c *models.Complaint, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.escalations = append(f.escalations, userID)
}
