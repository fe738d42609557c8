package student

import (
	"context"
	"time"

	"KidDrop/internal/auth"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type studentStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*Student, error)
	FindOwned(ctx context.Context, id, parentID primitive.ObjectID) (*Student, error)
	FindByParent(ctx context.Context, parentID primitive.ObjectID) ([]*Student, error)
	FindAll(ctx context.Context) ([]*Student, error)
	Create(ctx context.Context, s *Student) error
	Update(ctx context.Context, s *Student) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type parentLinker interface {
	AddChild(ctx context.Context, parentID, studentID primitive.ObjectID) error
	RemoveChild(ctx context.Context, parentID, studentID primitive.ObjectID) error
}

// LogPurger removes a deleted student's activity history.
type LogPurger interface {
	DeleteByStudent(ctx context.Context, studentID primitive.ObjectID) error
}

// StudentService keeps the roster and the denormalized parent children lists
// consistent: every parent_id change moves the student id between the old and
// new parents' lists.
type StudentService struct {
	students studentStore
	parents  parentLinker
	logs     LogPurger
	logger   *zap.Logger
}

func NewStudentService(repo *StudentRepository, parents *auth.UserRepository, logs LogPurger, logger *zap.Logger) *StudentService {
	return &StudentService{students: repo, parents: parents, logs: logs, logger: logger}
}

// CreateInput carries caller-supplied student fields. Admin creates start
// checked-out and approved; parent-submitted children await approval.
type CreateInput struct {
	Name              string `json:"name"`
	Grade             string `json:"grade"`
	ParentID          string `json:"parentId"`
	EmergencyName     string `json:"emergencyName"`
	EmergencyPhone    string `json:"emergencyPhone"`
	EmergencyRelation string `json:"emergencyRelation"`
	Allergies         string `json:"allergies"`
	AuthorizedPickup  string `json:"authorizedPickup"`
}

func (s *StudentService) AdminCreate(ctx context.Context, in CreateInput) (*Student, error) {
	now := time.Now()
	st := &Student{
		ID:             primitive.NewObjectID(),
		Name:           in.Name,
		Grade:          in.Grade,
		Status:         StatusCheckedOut,
		ApprovalStatus: ApprovalApproved,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if in.ParentID != "" {
		parentID, err := primitive.ObjectIDFromHex(in.ParentID)
		if err != nil {
			return nil, err
		}
		st.ParentID = parentID
	}
	if err := s.students.Create(ctx, st); err != nil {
		return nil, err
	}
	if !st.ParentID.IsZero() {
		if err := s.parents.AddChild(ctx, st.ParentID, st.ID); err != nil {
			return nil, err
		}
	}
	return st, nil
}

func (s *StudentService) ParentCreate(ctx context.Context, parentID primitive.ObjectID, in CreateInput) (*Student, error) {
	now := time.Now()
	st := &Student{
		ID:                primitive.NewObjectID(),
		Name:              in.Name,
		Grade:             in.Grade,
		ParentID:          parentID,
		Status:            StatusAwaiting,
		ApprovalStatus:    ApprovalPending,
		EmergencyName:     in.EmergencyName,
		EmergencyPhone:    in.EmergencyPhone,
		EmergencyRelation: in.EmergencyRelation,
		Allergies:         in.Allergies,
		AuthorizedPickup:  in.AuthorizedPickup,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.students.Create(ctx, st); err != nil {
		return nil, err
	}
	if err := s.parents.AddChild(ctx, parentID, st.ID); err != nil {
		return nil, err
	}
	return st, nil
}

// UpdateInput carries optional admin edits; empty fields are left untouched.
type UpdateInput struct {
	Name     string `json:"name"`
	Grade    string `json:"grade"`
	Status   string `json:"status"`
	ParentID string `json:"parentId"`
}

func (s *StudentService) AdminUpdate(ctx context.Context, id primitive.ObjectID, in UpdateInput) (*Student, error) {
	st, err := s.students.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != "" {
		st.Name = in.Name
	}
	if in.Grade != "" {
		st.Grade = in.Grade
	}
	if in.Status != "" {
		st.Status = in.Status
	}

	if in.ParentID != "" {
		newParent, err := primitive.ObjectIDFromHex(in.ParentID)
		if err != nil {
			return nil, err
		}
		if newParent != st.ParentID {
			if !st.ParentID.IsZero() {
				if err := s.parents.RemoveChild(ctx, st.ParentID, st.ID); err != nil {
					return nil, err
				}
			}
			if err := s.parents.AddChild(ctx, newParent, st.ID); err != nil {
				return nil, err
			}
			st.ParentID = newParent
		}
	}

	st.UpdatedAt = time.Now()
	if err := s.students.Update(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *StudentService) AdminDelete(ctx context.Context, id primitive.ObjectID) error {
	st, err := s.students.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if !st.ParentID.IsZero() {
		if err := s.parents.RemoveChild(ctx, st.ParentID, st.ID); err != nil {
			return err
		}
	}
	if err := s.logs.DeleteByStudent(ctx, st.ID); err != nil {
		s.logger.Warn("failed to purge activity logs for deleted student",
			zap.String("student_id", st.ID.Hex()), zap.Error(err))
	}
	return s.students.Delete(ctx, st.ID)
}

// SetApproval transitions a child's approval status; approval resets the
// lifecycle status to awaiting.
func (s *StudentService) SetApproval(ctx context.Context, id primitive.ObjectID, approvalStatus string) (*Student, error) {
	st, err := s.students.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	st.ApprovalStatus = approvalStatus
	if approvalStatus == ApprovalApproved {
		st.Status = StatusAwaiting
	}
	st.UpdatedAt = time.Now()

	if err := s.students.Update(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// ParentUpdate edits the fields a parent may change on their own child.
func (s *StudentService) ParentUpdate(ctx context.Context, id, parentID primitive.ObjectID, in CreateInput) (*Student, error) {
	st, err := s.students.FindOwned(ctx, id, parentID)
	if err != nil {
		return nil, err
	}

	if in.Grade != "" {
		st.Grade = in.Grade
	}
	if in.EmergencyName != "" {
		st.EmergencyName = in.EmergencyName
	}
	if in.EmergencyPhone != "" {
		st.EmergencyPhone = in.EmergencyPhone
	}
	if in.EmergencyRelation != "" {
		st.EmergencyRelation = in.EmergencyRelation
	}
	if in.Allergies != "" {
		st.Allergies = in.Allergies
	}
	if in.AuthorizedPickup != "" {
		st.AuthorizedPickup = in.AuthorizedPickup
	}
	st.UpdatedAt = time.Now()

	if err := s.students.Update(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *StudentService) ListAll(ctx context.Context) ([]*Student, error) {
	return s.students.FindAll(ctx)
}

func (s *StudentService) ListByParent(ctx context.Context, parentID primitive.ObjectID) ([]*Student, error) {
	return s.students.FindByParent(ctx, parentID)
}

func (s *StudentService) GetOwned(ctx context.Context, id, parentID primitive.ObjectID) (*Student, error) {
	return s.students.FindOwned(ctx, id, parentID)
}
