package store

import (
	"sort"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/moderation-backend/internal/models"
	"github.com/google/uuid"
)

// MemoryStore is an in-memory ReportStore for tests and local development.
// It honors the same compare-and-swap and atomic-audit semantics as the
// Postgres store so that concurrency tests stay representative.
type MemoryStore struct {
	mu           sync.Mutex
	reports      map[uuid.UUID]*models.Report
	audits       []models.AuditEvent
	chainHeads   map[string]string
	policies     map[string][]*models.ModerationPolicy
	suppressions map[string]*models.ContentSuppression
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports:      make(map[uuid.UUID]*models.Report),
		chainHeads:   make(map[string]string),
		policies:     make(map[string][]*models.ModerationPolicy),
		suppressions: make(map[string]*models.ContentSuppression),
	}
}

func (s *MemoryStore) appendAuditLocked(e *models.AuditEvent) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	e.Seal(s.chainHeads[e.ChainKey()])
	s.chainHeads[e.ChainKey()] = e.Hash
	s.audits = append(s.audits, *e)
}

func copyReport(r *models.Report) *models.Report {
	cp := *r
	return &cp
}

func suppressionKey(appID string, ref models.ContentRef) string {
	return appID + "/" + ref.Key()
}

func (s *MemoryStore) Create(report *models.Report, audit *models.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.reports {
		if r.AppID == report.AppID && r.ContentType == report.ContentType &&
			r.ContentID == report.ContentID && r.ReporterID == report.ReporterID && !r.Terminal() {
			return ErrDuplicateActive
		}
	}
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	now := time.Now().UTC()
	report.CreatedAt = now
	report.UpdatedAt = now
	s.reports[report.ID] = copyReport(report)
	s.appendAuditLocked(audit)
	return nil
}

func (s *MemoryStore) GetByID(appID string, id uuid.UUID) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[id]
	if !ok || r.AppID != appID {
		return nil, ErrReportNotFound
	}
	return copyReport(r), nil
}

func (s *MemoryStore) FindActive(appID string, ref models.ContentRef, reporterID uuid.UUID) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.reports {
		if r.AppID == appID && r.ContentType == ref.Type && r.ContentID == ref.ID &&
			r.ReporterID == reporterID && !r.Terminal() {
			return copyReport(r), nil
		}
	}
	return nil, ErrReportNotFound
}

func (s *MemoryStore) ActiveByContentRef(appID string, ref models.ContentRef) ([]models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Report
	for _, r := range s.reports {
		if r.AppID == appID && r.ContentType == ref.Type && r.ContentID == ref.ID && !r.Terminal() {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReportedAt.Before(out[j].ReportedAt) })
	return out, nil
}

func (s *MemoryStore) IncrementReporterCount(appID string, id uuid.UUID, audit *models.AuditEvent) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[id]
	if !ok || r.AppID != appID {
		return nil, ErrReportNotFound
	}
	if r.Terminal() {
		return nil, ErrConcurrentModification
	}
	r.ReporterCount++
	r.UpdatedAt = time.Now().UTC()
	s.appendAuditLocked(audit)
	return copyReport(r), nil
}

func (s *MemoryStore) UpdateStatus(appID string, id uuid.UUID, from, to models.Status, fields *TerminalFields, audit *models.AuditEvent) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[id]
	if !ok || r.AppID != appID {
		return nil, ErrReportNotFound
	}
	if r.Status != from {
		return nil, ErrConcurrentModification
	}
	r.Status = to
	if fields != nil {
		at := fields.ResolvedAt
		by := fields.ResolvedBy
		r.ResolvedAt = &at
		r.ResolvedBy = &by
		r.ActionTaken = fields.ActionTaken
	}
	r.UpdatedAt = time.Now().UTC()
	s.appendAuditLocked(audit)
	return copyReport(r), nil
}

func (s *MemoryStore) List(appID string, f ReportFilter) ([]models.Report, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.Report
	for _, r := range s.reports {
		if r.AppID != appID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.ReasonCode != "" && r.ReasonCode != f.ReasonCode {
			continue
		}
		if f.Severity != "" && r.Severity != f.Severity {
			continue
		}
		matched = append(matched, *r)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ReportedAt.After(matched[j].ReportedAt) })

	total := int64(len(matched))
	if f.Offset > len(matched) {
		return nil, total, nil
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

func (s *MemoryStore) AppendAudit(event *models.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendAuditLocked(event)
	return nil
}

func (s *MemoryStore) AuditTrail(appID string, reportID uuid.UUID) ([]models.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.AuditEvent
	for _, e := range s.audits {
		if e.AppID == appID && e.ReportID != nil && *e.ReportID == reportID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetPolicy(appID string) (*models.ModerationPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policyLocked(appID), nil
}

func (s *MemoryStore) policyLocked(appID string) *models.ModerationPolicy {
	versions := s.policies[appID]
	if len(versions) == 0 {
		return models.DefaultPolicy(appID)
	}
	cp := *versions[len(versions)-1]
	return &cp
}

func (s *MemoryStore) SavePolicy(p *models.ModerationPolicy, audit *models.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.Version = s.policyLocked(p.AppID).Version + 1
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now().UTC()
	cp := *p
	s.policies[p.AppID] = append(s.policies[p.AppID], &cp)
	s.appendAuditLocked(audit)
	return nil
}

func (s *MemoryStore) Suppression(appID string, ref models.ContentRef) (*models.ContentSuppression, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sup, ok := s.suppressions[suppressionKey(appID, ref)]; ok {
		cp := *sup
		return &cp, nil
	}
	return &models.ContentSuppression{AppID: appID, ContentType: ref.Type, ContentID: ref.ID}, nil
}

func (s *MemoryStore) SetSuppression(appID string, ref models.ContentRef, hidden bool, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := suppressionKey(appID, ref)
	now := time.Now().UTC()
	sup, ok := s.suppressions[key]
	if !ok {
		sup = &models.ContentSuppression{
			ID:          uuid.New(),
			AppID:       appID,
			ContentType: ref.Type,
			ContentID:   ref.ID,
			CreatedAt:   now,
		}
		s.suppressions[key] = sup
	}
	sup.Hidden = hidden
	sup.Reason = reason
	if hidden {
		sup.HiddenAt = &now
	}
	sup.UpdatedAt = now
	return nil
}

func (s *MemoryStore) OpenContentRefs(appID string) ([]models.ContentRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]models.ContentRef)
	for _, r := range s.reports {
		if r.AppID == appID && !r.Terminal() {
			ref := r.ContentRef()
			seen[ref.Key()] = ref
		}
	}
	out := make([]models.ContentRef, 0, len(seen))
	for _, ref := range seen {
		out = append(out, ref)
	}
	return out, nil
}
