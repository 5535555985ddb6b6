package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gorm.io/gorm"

	"reportcard/internal/model"
	"reportcard/internal/repository"
	pkgerrors "reportcard/pkg/errors"
)

// memStore 所有 mock 仓储共享的内存数据，模拟外键级联与唯一约束
// SummarizeAll 会并发访问，因此所有方法加锁
type memStore struct {
	mu sync.Mutex

	users     map[string]*model.User
	students  map[string]*model.Student
	subjects  map[string]*model.Subject
	cards     map[string]*model.ReportCard
	marks     map[string]*model.Mark
	summaries map[model.TermKey]*model.StudentTermSummary
	seq       int

	// 故障注入
	upsertConflicts int                     // 接下来 n 次 Summary.Upsert 返回 ErrConflict
	markErrors      map[model.TermKey]error // Mark.ListByKey 对指定键返回错误
	upsertCalls     int
}

func newMemStore() *memStore {
	return &memStore{
		users:      make(map[string]*model.User),
		students:   make(map[string]*model.Student),
		subjects:   make(map[string]*model.Subject),
		cards:      make(map[string]*model.ReportCard),
		marks:      make(map[string]*model.Mark),
		summaries:  make(map[model.TermKey]*model.StudentTermSummary),
		markErrors: make(map[model.TermKey]error),
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%03d", prefix, m.seq)
}

// newMockRepository 组装基于 memStore 的 Repository
func newMockRepository() (*repository.Repository, *memStore) {
	store := newMemStore()
	repo := &repository.Repository{
		User:       &mockUserRepo{store},
		Student:    &mockStudentRepo{store},
		Subject:    &mockSubjectRepo{store},
		ReportCard: &mockReportCardRepo{store},
		Mark:       &mockMarkRepo{store},
		Summary:    &mockSummaryRepo{store},
	}
	repo.Tx = &mockTx{repo: repo}
	return repo, store
}

// mockTx 直接在同一组仓储上执行，不模拟回滚
type mockTx struct {
	repo *repository.Repository
}

func (t *mockTx) WithinTx(_ context.Context, fn func(tx *repository.Repository) error) error {
	return fn(t.repo)
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// ── Mock UserRepository ──

type mockUserRepo struct{ s *memStore }

func (r *mockUserRepo) Create(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Username == user.Username {
			return pkgerrors.ErrConflict
		}
	}
	if user.UserID == "" {
		user.UserID = r.s.nextID("user")
	}
	r.s.users[user.UserID] = user
	return nil
}

func (r *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// ── Mock StudentRepository ──

type mockStudentRepo struct{ s *memStore }

func (r *mockStudentRepo) Create(_ context.Context, student *model.Student) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, st := range r.s.students {
		if st.Email == student.Email {
			return pkgerrors.ErrConflict
		}
	}
	if student.StudentID == "" {
		student.StudentID = r.s.nextID("stu")
	}
	r.s.students[student.StudentID] = student
	return nil
}

func (r *mockStudentRepo) GetByID(_ context.Context, id string) (*model.Student, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if st, ok := r.s.students[id]; ok {
		cp := *st
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockStudentRepo) GetByEmail(_ context.Context, email string) (*model.Student, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, st := range r.s.students {
		if st.Email == email {
			cp := *st
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockStudentRepo) List(_ context.Context, filters *repository.StudentListFilters, offset, limit int) ([]model.Student, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []model.Student
	for _, st := range r.s.students {
		if filters != nil && filters.Keyword != "" &&
			!strings.Contains(strings.ToLower(st.Name+" "+st.Email), strings.ToLower(filters.Keyword)) {
			continue
		}
		result = append(result, *st)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StudentID < result[j].StudentID })
	return paginate(result, offset, limit), int64(len(result)), nil
}

func (r *mockStudentRepo) Update(_ context.Context, student *model.Student) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, st := range r.s.students {
		if st.StudentID != student.StudentID && st.Email == student.Email {
			return pkgerrors.ErrConflict
		}
	}
	cp := *student
	r.s.students[student.StudentID] = &cp
	return nil
}

func (r *mockStudentRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.students, id)
	for cid, c := range r.s.cards {
		if c.StudentID == id {
			r.s.deleteCardLocked(cid)
		}
	}
	for k := range r.s.summaries {
		if k.StudentID == id {
			delete(r.s.summaries, k)
		}
	}
	return nil
}

// ── Mock SubjectRepository ──

type mockSubjectRepo struct{ s *memStore }

func (r *mockSubjectRepo) Create(_ context.Context, subject *model.Subject) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sub := range r.s.subjects {
		if sub.Code == subject.Code {
			return pkgerrors.ErrConflict
		}
	}
	if subject.SubjectID == "" {
		subject.SubjectID = r.s.nextID("sub")
	}
	r.s.subjects[subject.SubjectID] = subject
	return nil
}

func (r *mockSubjectRepo) GetByID(_ context.Context, id string) (*model.Subject, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sub, ok := r.s.subjects[id]; ok {
		cp := *sub
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockSubjectRepo) GetByCode(_ context.Context, code string) (*model.Subject, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sub := range r.s.subjects {
		if sub.Code == code {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockSubjectRepo) ListByIDs(_ context.Context, ids []string) ([]model.Subject, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []model.Subject
	for _, id := range ids {
		if sub, ok := r.s.subjects[id]; ok {
			result = append(result, *sub)
		}
	}
	return result, nil
}

func (r *mockSubjectRepo) List(_ context.Context, keyword string, offset, limit int) ([]model.Subject, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []model.Subject
	for _, sub := range r.s.subjects {
		if keyword != "" && !strings.Contains(strings.ToLower(sub.Name+" "+sub.Code), strings.ToLower(keyword)) {
			continue
		}
		result = append(result, *sub)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return paginate(result, offset, limit), int64(len(result)), nil
}

func (r *mockSubjectRepo) Update(_ context.Context, subject *model.Subject) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sub := range r.s.subjects {
		if sub.SubjectID != subject.SubjectID && sub.Code == subject.Code {
			return pkgerrors.ErrConflict
		}
	}
	cp := *subject
	r.s.subjects[subject.SubjectID] = &cp
	return nil
}

func (r *mockSubjectRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.subjects, id)
	for mid, mk := range r.s.marks {
		if mk.SubjectID == id {
			delete(r.s.marks, mid)
		}
	}
	return nil
}

// ── Mock ReportCardRepository ──

type mockReportCardRepo struct{ s *memStore }

func (m *memStore) deleteCardLocked(id string) {
	delete(m.cards, id)
	for mid, mk := range m.marks {
		if mk.ReportCardID == id {
			delete(m.marks, mid)
		}
	}
}

func (m *memStore) cardByKeyLocked(key model.TermKey) *model.ReportCard {
	for _, c := range m.cards {
		if c.Key() == key {
			return c
		}
	}
	return nil
}

// hydrateLocked 返回带学生与成绩（含科目）的副本
func (m *memStore) hydrateLocked(c *model.ReportCard) model.ReportCard {
	cp := *c
	cp.Marks = nil
	if st, ok := m.students[c.StudentID]; ok {
		s := *st
		cp.Student = &s
	}
	for _, mk := range m.marks {
		if mk.ReportCardID != c.ReportCardID {
			continue
		}
		mc := *mk
		if sub, ok := m.subjects[mk.SubjectID]; ok {
			s := *sub
			mc.Subject = &s
		}
		cp.Marks = append(cp.Marks, mc)
	}
	sort.Slice(cp.Marks, func(i, j int) bool { return cp.Marks[i].SubjectID < cp.Marks[j].SubjectID })
	return cp
}

func (r *mockReportCardRepo) Create(_ context.Context, card *model.ReportCard) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.cardByKeyLocked(card.Key()) != nil {
		return pkgerrors.ErrConflict
	}
	if card.ReportCardID == "" {
		card.ReportCardID = r.s.nextID("rc")
	}
	stored := *card
	stored.Marks = nil
	r.s.cards[card.ReportCardID] = &stored
	for i := range card.Marks {
		mk := card.Marks[i]
		mk.ReportCardID = card.ReportCardID
		if mk.MarkID == "" {
			mk.MarkID = r.s.nextID("mk")
		}
		card.Marks[i] = mk
		r.s.marks[mk.MarkID] = &mk
	}
	return nil
}

func (r *mockReportCardRepo) GetByID(_ context.Context, id string) (*model.ReportCard, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.cards[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := r.s.hydrateLocked(c)
	return &cp, nil
}

func (r *mockReportCardRepo) GetByKey(_ context.Context, key model.TermKey) (*model.ReportCard, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c := r.s.cardByKeyLocked(key); c != nil {
		cp := *c
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockReportCardRepo) LockByKey(_ context.Context, key model.TermKey) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.cardByKeyLocked(key) != nil {
		return 1, nil
	}
	return 0, nil
}

func (r *mockReportCardRepo) List(_ context.Context, filters *repository.ReportCardListFilters, offset, limit int) ([]model.ReportCard, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []model.ReportCard
	for _, c := range r.s.cards {
		if filters != nil {
			if filters.StudentID != "" && c.StudentID != filters.StudentID {
				continue
			}
			if filters.Term != nil && c.Term != *filters.Term {
				continue
			}
			if filters.Year != nil && c.Year != *filters.Year {
				continue
			}
		}
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ReportCardID < result[j].ReportCardID })
	return paginate(result, offset, limit), int64(len(result)), nil
}

func (r *mockReportCardRepo) ListByStudentYear(_ context.Context, studentID string, year int, term *int) ([]model.ReportCard, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []model.ReportCard
	for _, c := range r.s.cards {
		if c.StudentID != studentID || c.Year != year || (term != nil && c.Term != *term) {
			continue
		}
		result = append(result, r.s.hydrateLocked(c))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Term < result[j].Term })
	return result, nil
}

func (r *mockReportCardRepo) ListKeys(_ context.Context) ([]model.TermKey, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var keys []model.TermKey
	for _, c := range r.s.cards {
		keys = append(keys, c.Key())
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys, nil
}

func (r *mockReportCardRepo) ListKeysBySubject(_ context.Context, subjectID string) ([]model.TermKey, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := make(map[model.TermKey]bool)
	var keys []model.TermKey
	for _, mk := range r.s.marks {
		if mk.SubjectID != subjectID {
			continue
		}
		if c, ok := r.s.cards[mk.ReportCardID]; ok && !seen[c.Key()] {
			seen[c.Key()] = true
			keys = append(keys, c.Key())
		}
	}
	return keys, nil
}

func (r *mockReportCardRepo) Touch(_ context.Context, card *model.ReportCard) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.cards[card.ReportCardID]; ok {
		c.UpdatedAt = card.UpdatedAt
		c.UpdatedBy = card.UpdatedBy
	}
	return nil
}

func (r *mockReportCardRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.deleteCardLocked(id)
	return nil
}

// ── Mock MarkRepository ──

type mockMarkRepo struct{ s *memStore }

func (r *mockMarkRepo) ListByKey(_ context.Context, key model.TermKey) ([]model.Mark, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.markErrors[key]; err != nil {
		return nil, err
	}
	var result []model.Mark
	for _, mk := range r.s.marks {
		if c, ok := r.s.cards[mk.ReportCardID]; ok && c.Key() == key {
			result = append(result, *mk)
		}
	}
	return result, nil
}

func (r *mockMarkRepo) ListByStudentYear(_ context.Context, studentID string, year int, term *int) ([]model.Mark, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []model.Mark
	for _, mk := range r.s.marks {
		c, ok := r.s.cards[mk.ReportCardID]
		if !ok || c.StudentID != studentID || c.Year != year || (term != nil && c.Term != *term) {
			continue
		}
		result = append(result, *mk)
	}
	return result, nil
}

func (r *mockMarkRepo) Upsert(_ context.Context, marks []model.Mark) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, in := range marks {
		updated := false
		for _, mk := range r.s.marks {
			if mk.ReportCardID == in.ReportCardID && mk.SubjectID == in.SubjectID {
				mk.Score = in.Score
				updated = true
				break
			}
		}
		if !updated {
			mk := in
			mk.MarkID = r.s.nextID("mk")
			r.s.marks[mk.MarkID] = &mk
		}
	}
	return nil
}

func (r *mockMarkRepo) DeleteByReportCardAndSubject(_ context.Context, reportCardID, subjectID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, mk := range r.s.marks {
		if mk.ReportCardID == reportCardID && mk.SubjectID == subjectID {
			delete(r.s.marks, id)
			return 1, nil
		}
	}
	return 0, nil
}

// ── Mock SummaryRepository ──

type mockSummaryRepo struct{ s *memStore }

func (r *mockSummaryRepo) GetByKey(_ context.Context, key model.TermKey) (*model.StudentTermSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sm, ok := r.s.summaries[key]; ok {
		cp := *sm
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockSummaryRepo) Upsert(_ context.Context, summary *model.StudentTermSummary) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.upsertCalls++
	if r.s.upsertConflicts > 0 {
		r.s.upsertConflicts--
		return false, fmt.Errorf("%w: duplicate key", pkgerrors.ErrConflict)
	}
	key := summary.Key()
	if existing, ok := r.s.summaries[key]; ok {
		summary.SummaryID = existing.SummaryID
		cp := *summary
		r.s.summaries[key] = &cp
		return false, nil
	}
	summary.SummaryID = r.s.nextID("sum")
	cp := *summary
	r.s.summaries[key] = &cp
	return true, nil
}

func (r *mockSummaryRepo) DeleteByKey(_ context.Context, key model.TermKey) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.summaries[key]; ok {
		delete(r.s.summaries, key)
		return 1, nil
	}
	return 0, nil
}

func (r *mockSummaryRepo) CountByKey(_ context.Context, key model.TermKey) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.summaries[key]; ok {
		return 1, nil
	}
	return 0, nil
}

func (r *mockSummaryRepo) filtered(filters *repository.SummaryListFilters) []model.StudentTermSummary {
	var result []model.StudentTermSummary
	for _, sm := range r.s.summaries {
		if filters != nil {
			if filters.StudentID != "" && sm.StudentID != filters.StudentID {
				continue
			}
			if filters.Term != nil && sm.Term != *filters.Term {
				continue
			}
			if filters.Year != nil && sm.Year != *filters.Year {
				continue
			}
			if filters.Grade != "" && sm.Grade != filters.Grade {
				continue
			}
		}
		cp := *sm
		if st, ok := r.s.students[sm.StudentID]; ok {
			s := *st
			cp.Student = &s
		}
		result = append(result, cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key().String() < result[j].Key().String() })
	return result
}

func (r *mockSummaryRepo) List(_ context.Context, filters *repository.SummaryListFilters, offset, limit int) ([]model.StudentTermSummary, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	result := r.filtered(filters)
	return paginate(result, offset, limit), int64(len(result)), nil
}

func (r *mockSummaryRepo) ListAll(_ context.Context, filters *repository.SummaryListFilters) ([]model.StudentTermSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.filtered(filters), nil
}
