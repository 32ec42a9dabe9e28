package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	enrollment "registrar/internal/enrollment/models"
	identity "registrar/internal/identity/models"
	id "registrar/pkg/domain"
	"registrar/pkg/platform/sentinel"
)

type StoreSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
	now   time.Time
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.store = New()
	s.ctx = context.Background()
	s.now = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
}

func (s *StoreSuite) course(code string, capacity int) *enrollment.Course {
	c, err := enrollment.NewCourse(id.NewCourseID(), code, "Course "+code, 10, capacity, "", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateCourse(s.ctx, c))
	return c
}

func (s *StoreSuite) student(email, number string, courseID *id.CourseID, status identity.Status) (*identity.Principal, *identity.StudentRecord) {
	p, err := identity.NewPrincipal(id.NewPrincipalID(), email, "hash", identity.RoleStudent, "First", "Last", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreatePrincipal(s.ctx, p))
	r, err := identity.NewStudentRecord(id.NewStudentID(), p.ID, number, courseID, "", "", s.now)
	s.Require().NoError(err)
	r.Status = status
	s.Require().NoError(s.store.CreateStudentRecord(s.ctx, r))
	return p, r
}

func (s *StoreSuite) TestPrincipals() {
	s.Run("email uniqueness is case-insensitive", func() {
		s.student("dup@example.com", "DUP00001", nil, identity.StatusActive)
		p, err := identity.NewPrincipal(id.NewPrincipalID(), "DUP@example.com", "hash", identity.RoleStudent, "A", "B", s.now)
		s.Require().NoError(err)
		s.ErrorIs(s.store.CreatePrincipal(s.ctx, p), sentinel.ErrConflict)

		exists, err := s.store.EmailExists(s.ctx, "Dup@Example.com")
		s.Require().NoError(err)
		s.True(exists)
	})

	s.Run("student number uniqueness", func() {
		s.student("one@example.com", "NUM00001", nil, identity.StatusActive)
		p, err := identity.NewPrincipal(id.NewPrincipalID(), "two@example.com", "hash", identity.RoleStudent, "A", "B", s.now)
		s.Require().NoError(err)
		s.Require().NoError(s.store.CreatePrincipal(s.ctx, p))
		r, err := identity.NewStudentRecord(id.NewStudentID(), p.ID, "NUM00001", nil, "", "", s.now)
		s.Require().NoError(err)
		err = s.store.CreateStudentRecord(s.ctx, r)
		s.ErrorIs(err, sentinel.ErrConflict)
		s.ErrorIs(err, identity.ErrStudentNumberTaken)
	})

	s.Run("one record per principal", func() {
		p, _ := s.student("owner@example.com", "OWN00001", nil, identity.StatusActive)
		r, err := identity.NewStudentRecord(id.NewStudentID(), p.ID, "OWN00002", nil, "", "", s.now)
		s.Require().NoError(err)
		err = s.store.CreateStudentRecord(s.ctx, r)
		s.ErrorIs(err, sentinel.ErrConflict)
		s.ErrorIs(err, identity.ErrPrincipalHasRecord)
	})

	s.Run("deleting a principal cascades to its record", func() {
		p, r := s.student("cascade@example.com", "CAS00001", nil, identity.StatusActive)
		s.Require().NoError(s.store.DeletePrincipal(s.ctx, p.ID))
		_, err := s.store.FindStudentRecord(s.ctx, r.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *StoreSuite) TestRunInTxRollsBack() {
	c := s.course("CS101", 5)
	_, r := s.student("ada@example.com", "STU00001", &c.ID, identity.StatusActive)

	boom := errors.New("boom")
	err := s.store.RunInTx(s.ctx, func(ctx context.Context) error {
		if _, err := s.store.UnenrollAll(ctx, c.ID); err != nil {
			return err
		}
		if err := s.store.DeleteCourse(ctx, c.ID); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	_, err = s.store.FindCourse(s.ctx, c.ID)
	s.NoError(err)
	got, err := s.store.FindStudentRecord(s.ctx, r.ID)
	s.Require().NoError(err)
	s.True(got.InCourse(c.ID))
}

func (s *StoreSuite) TestCourseCounts() {
	c := s.course("CS201", 10)
	s.student("a@example.com", "STU00011", &c.ID, identity.StatusActive)
	s.student("b@example.com", "STU00012", &c.ID, identity.StatusActive)
	s.student("c@example.com", "STU00013", &c.ID, identity.StatusGraduated)

	active, err := s.store.CountActiveInCourse(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(2, active)

	referencing, err := s.store.CountReferencing(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(3, referencing)

	capacity, locked, err := s.store.LockCourseCapacity(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(10, capacity)
	s.Equal(2, locked)

	view, err := s.store.FindCourseView(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(2, view.Enrolled)
	s.Equal(8, view.AvailableSlots)

	n, err := s.store.UnenrollAll(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(3, n)
	referencing, err = s.store.CountReferencing(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Zero(referencing)
}

func (s *StoreSuite) TestListCourses() {
	for _, code := range []string{"BIO100", "CHEM200", "ART300"} {
		s.course(code, 20)
	}

	courses, total, err := s.store.ListCourses(s.ctx, enrollment.CourseQuery{
		PageRequest: enrollment.PageRequest{Page: 1, Limit: 2, SortOrder: enrollment.SortAsc},
		SortBy:      enrollment.CourseSortCode,
	})
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Require().Len(courses, 2)
	s.Equal("ART300", courses[0].Code)
	s.Equal("BIO100", courses[1].Code)

	courses, total, err = s.store.ListCourses(s.ctx, enrollment.CourseQuery{
		PageRequest: enrollment.PageRequest{Page: 1, Limit: 10, SortOrder: enrollment.SortDesc},
		Search:      "chem",
	})
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Equal("CHEM200", courses[0].Code)

	courses, _, err = s.store.ListCourses(s.ctx, enrollment.CourseQuery{
		PageRequest: enrollment.PageRequest{Page: 5, Limit: 10},
	})
	s.Require().NoError(err)
	s.Empty(courses)
}

func (s *StoreSuite) TestListStudents() {
	c := s.course("CS301", 10)
	s.student("zed@example.com", "STU00021", &c.ID, identity.StatusActive)
	s.student("amy@example.com", "STU00022", nil, identity.StatusSuspended)
	s.student("bob@example.com", "STU00023", &c.ID, identity.StatusActive)

	students, total, err := s.store.ListStudents(s.ctx, enrollment.StudentQuery{
		PageRequest: enrollment.PageRequest{Page: 1, Limit: 10, SortOrder: enrollment.SortAsc},
		CourseID:    &c.ID,
		SortBy:      enrollment.StudentSortEmail,
	})
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Equal("bob@example.com", students[0].Email)
	s.Require().NotNil(students[0].Course)
	s.Equal("CS301", students[0].Course.Code)

	suspended := identity.StatusSuspended
	students, total, err = s.store.ListStudents(s.ctx, enrollment.StudentQuery{
		PageRequest: enrollment.PageRequest{Page: 1, Limit: 10},
		Status:      &suspended,
	})
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Nil(students[0].Course)

	roster, err := s.store.ListStudentsByCourse(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Len(roster, 2)
}

func (s *StoreSuite) TestCourseNameSortKeepsUnenrolledLast() {
	biology := s.course("BIO100", 10)
	maths := s.course("MAT100", 10)
	s.student("mat@example.com", "SRT00001", &maths.ID, identity.StatusActive)
	s.student("none@example.com", "SRT00002", nil, identity.StatusActive)
	s.student("bio@example.com", "SRT00003", &biology.ID, identity.StatusActive)

	for order, want := range map[enrollment.SortOrder][]string{
		enrollment.SortAsc:  {"bio@example.com", "mat@example.com", "none@example.com"},
		enrollment.SortDesc: {"mat@example.com", "bio@example.com", "none@example.com"},
	} {
		s.Run(string(order), func() {
			students, _, err := s.store.ListStudents(s.ctx, enrollment.StudentQuery{
				PageRequest: enrollment.PageRequest{Page: 1, Limit: 10, SortOrder: order},
				SortBy:      enrollment.StudentSortCourseName,
			})
			s.Require().NoError(err)
			var emails []string
			for _, st := range students {
				emails = append(emails, st.Email)
			}
			s.Equal(want, emails)
		})
	}
}

func (s *StoreSuite) TestReadsWaitForRunningTransaction() {
	c := s.course("TXN100", 5)
	s.student("ada@example.com", "TXN00001", &c.ID, identity.StatusActive)

	inside := make(chan struct{})
	release := make(chan struct{})
	txDone := make(chan error, 1)
	go func() {
		txDone <- s.store.RunInTx(s.ctx, func(ctx context.Context) error {
			if _, err := s.store.UnenrollAll(ctx, c.ID); err != nil {
				return err
			}
			close(inside)
			<-release
			return errors.New("abort")
		})
	}()
	<-inside

	counted := make(chan int, 1)
	go func() {
		n, err := s.store.CountActiveInCourse(s.ctx, c.ID)
		s.NoError(err)
		counted <- n
	}()

	select {
	case n := <-counted:
		close(release)
		s.Failf("read did not wait", "observed %d active students mid-transaction", n)
		return
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	s.Error(<-txDone)
	s.Equal(1, <-counted)
}

func (s *StoreSuite) TestCourseStatistics() {
	c := s.course("CS401", 4)
	_, r1 := s.student("s1@example.com", "STU00031", &c.ID, identity.StatusActive)
	_, r2 := s.student("s2@example.com", "STU00032", &c.ID, identity.StatusGraduated)
	r1.GPA, r2.GPA = 3.5, 2.0
	s.Require().NoError(s.store.UpdateStudentRecord(s.ctx, r1))
	s.Require().NoError(s.store.UpdateStudentRecord(s.ctx, r2))
	s.course("EMPTY1", 10)

	stats, err := s.store.CourseStatistics(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(stats, 2)

	var st enrollment.CourseStatistics
	for _, candidate := range stats {
		if candidate.ID == c.ID {
			st = candidate
		}
	}
	s.Equal(2, st.Enrolled)
	s.Equal(1, st.Active)
	s.Equal(1, st.Graduated)
	s.InDelta(2.75, st.AverageGPA, 0.001)
	s.NotNil(st.FirstEnrollment)
}

func (s *StoreSuite) TestConcurrentTransactionsSerialize() {
	c := s.course("CAP001", 3)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.RunInTx(s.ctx, func(ctx context.Context) error {
				capacity, active, err := s.store.LockCourseCapacity(ctx, c.ID)
				if err != nil {
					return err
				}
				if active >= capacity {
					return sentinel.ErrConflict
				}
				p, _ := identity.NewPrincipal(id.NewPrincipalID(), string(rune('a'+i))+"@example.com", "hash", identity.RoleStudent, "F", "L", s.now)
				if err := s.store.CreatePrincipal(ctx, p); err != nil {
					return err
				}
				r, _ := identity.NewStudentRecord(id.NewStudentID(), p.ID, "RACE0000"+string(rune('0'+i)), &c.ID, "", "", s.now)
				return s.store.CreateStudentRecord(ctx, r)
			})
			if err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(3, admitted)
	active, err := s.store.CountActiveInCourse(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(3, active)
}
