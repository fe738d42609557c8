package alert

import (
	"context"
	"fmt"

	"KidDrop/internal/auth"
	"KidDrop/internal/student"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Recipient is one resolved delivery target.
type Recipient struct {
	UserID primitive.ObjectID
	Name   string
	Email  string
}

type userDirectory interface {
	FindParents(ctx context.Context) ([]*auth.User, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*auth.User, error)
}

type studentDirectory interface {
	FindByGrades(ctx context.Context, grades []string) ([]*student.Student, error)
}

// Resolver turns an alert's audience specification into a deduplicated
// recipient set. Pure read; store errors propagate to the caller.
type Resolver struct {
	users    userDirectory
	students studentDirectory
	logger   *zap.Logger
}

func NewResolver(users *auth.UserRepository, students *student.StudentRepository, logger *zap.Logger) *Resolver {
	return &Resolver{users: users, students: students, logger: logger}
}

// Resolve computes the recipient set for an alert. Two students sharing a
// parent, or a parent matched by more than one selector, yield that parent
// exactly once.
func (r *Resolver) Resolve(ctx context.Context, a *Alert) ([]Recipient, error) {
	var users []*auth.User

	switch a.AudienceType {
	case AudienceAll:
		found, err := r.users.FindParents(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve audience: %w", err)
		}
		users = found

	case AudienceGrades:
		students, err := r.students.FindByGrades(ctx, a.RecipientGrades)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve audience: %w", err)
		}
		parentIDs := make([]primitive.ObjectID, 0, len(students))
		seen := make(map[primitive.ObjectID]bool)
		for _, st := range students {
			// A student may have no linked parent; drop silently.
			if st.ParentID.IsZero() || seen[st.ParentID] {
				continue
			}
			seen[st.ParentID] = true
			parentIDs = append(parentIDs, st.ParentID)
		}
		found, err := r.users.FindByIDs(ctx, parentIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve audience: %w", err)
		}
		users = found

	case AudienceIndividuals:
		found, err := r.users.FindByIDs(ctx, a.RecipientParentIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve audience: %w", err)
		}
		users = found

	case AudienceStaff:
		// Reserved audience with no mapping defined yet.
		r.logger.Warn("staff audience has no resolution logic, resolving to empty set",
			zap.String("alert_id", a.ID.Hex()))
		return nil, nil

	default:
		r.logger.Warn("unknown audience type, resolving to empty set",
			zap.String("alert_id", a.ID.Hex()), zap.String("audience_type", a.AudienceType))
		return nil, nil
	}

	recipients := make([]Recipient, 0, len(users))
	seen := make(map[primitive.ObjectID]bool)
	for _, u := range users {
		if seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		recipients = append(recipients, Recipient{UserID: u.ID, Name: u.Name, Email: u.Email})
	}
	return recipients, nil
}
