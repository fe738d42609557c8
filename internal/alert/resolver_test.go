package alert

import (
	"context"
	"errors"
	"testing"

	"KidDrop/internal/auth"
	"KidDrop/internal/student"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeUserDirectory struct {
	parents []*auth.User
	byID    map[primitive.ObjectID]*auth.User
	err     error
}

func (f *fakeUserDirectory) FindParents(ctx context.Context) ([]*auth.User, error) {
	return f.parents, f.err
}

func (f *fakeUserDirectory) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*auth.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	var users []*auth.User
	for _, id := range ids {
		if u, ok := f.byID[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

type fakeStudentDirectory struct {
	students []*student.Student
	err      error
}

func (f *fakeStudentDirectory) FindByGrades(ctx context.Context, grades []string) ([]*student.Student, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*student.Student
	for _, st := range f.students {
		for _, g := range grades {
			if st.Grade == g {
				out = append(out, st)
			}
		}
	}
	return out, nil
}

func newParent(name, email string) *auth.User {
	return &auth.User{ID: primitive.NewObjectID(), Name: name, Email: email, Role: auth.RoleParent}
}

func TestResolveAll(t *testing.T) {
	p1 := newParent("Amira", "amira@example.com")
	p2 := newParent("Ben", "ben@example.com")
	r := &Resolver{
		users:  &fakeUserDirectory{parents: []*auth.User{p1, p2}},
		logger: zap.NewNop(),
	}

	recipients, err := r.Resolve(context.Background(), &Alert{AudienceType: AudienceAll})
	require.NoError(t, err)
	assert.Len(t, recipients, 2)
}

func TestResolveGradesDeduplicatesSharedParent(t *testing.T) {
	parent := newParent("Amira", "amira@example.com")
	other := newParent("Ben", "ben@example.com")
	students := []*student.Student{
		{ID: primitive.NewObjectID(), Grade: "3", ParentID: parent.ID},
		{ID: primitive.NewObjectID(), Grade: "3", ParentID: parent.ID}, // sibling
		{ID: primitive.NewObjectID(), Grade: "5", ParentID: other.ID},
	}
	r := &Resolver{
		users: &fakeUserDirectory{byID: map[primitive.ObjectID]*auth.User{
			parent.ID: parent,
			other.ID:  other,
		}},
		students: &fakeStudentDirectory{students: students},
		logger:   zap.NewNop(),
	}

	recipients, err := r.Resolve(context.Background(), &Alert{
		AudienceType:    AudienceGrades,
		RecipientGrades: []string{"3"},
	})
	require.NoError(t, err)
	require.Len(t, recipients, 1)
	assert.Equal(t, parent.ID, recipients[0].UserID)
	assert.Equal(t, "amira@example.com", recipients[0].Email)
}

func TestResolveGradesDropsStudentsWithoutParent(t *testing.T) {
	orphan := &student.Student{ID: primitive.NewObjectID(), Grade: "3"}
	r := &Resolver{
		users:    &fakeUserDirectory{byID: map[primitive.ObjectID]*auth.User{}},
		students: &fakeStudentDirectory{students: []*student.Student{orphan}},
		logger:   zap.NewNop(),
	}

	recipients, err := r.Resolve(context.Background(), &Alert{
		AudienceType:    AudienceGrades,
		RecipientGrades: []string{"3"},
	})
	require.NoError(t, err)
	assert.Empty(t, recipients)
}

func TestResolveIndividuals(t *testing.T) {
	p1 := newParent("Amira", "amira@example.com")
	p2 := newParent("Ben", "ben@example.com")
	r := &Resolver{
		users: &fakeUserDirectory{byID: map[primitive.ObjectID]*auth.User{
			p1.ID: p1,
			p2.ID: p2,
		}},
		logger: zap.NewNop(),
	}

	recipients, err := r.Resolve(context.Background(), &Alert{
		AudienceType:       AudienceIndividuals,
		RecipientParentIDs: []primitive.ObjectID{p1.ID, p2.ID, p1.ID}, // duplicate id
	})
	require.NoError(t, err)
	assert.Len(t, recipients, 2)
}

func TestResolveStaffIsEmpty(t *testing.T) {
	r := &Resolver{logger: zap.NewNop()}

	recipients, err := r.Resolve(context.Background(), &Alert{AudienceType: AudienceStaff})
	require.NoError(t, err)
	assert.Empty(t, recipients)
}

func TestResolvePropagatesStoreError(t *testing.T) {
	storeErr := errors.New("connection refused")
	r := &Resolver{
		users:  &fakeUserDirectory{err: storeErr},
		logger: zap.NewNop(),
	}

	_, err := r.Resolve(context.Background(), &Alert{AudienceType: AudienceAll})
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
}
