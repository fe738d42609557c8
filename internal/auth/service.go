package auth

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserService struct {
	repo *UserRepository
}

func NewUserService(repo *UserRepository) *UserService {
	return &UserService{repo: repo}
}

// AuthResult is returned on signup and login: a bearer token plus the public
// view of the account.
type AuthResult struct {
	Token string `json:"token"`
	User  struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"user"`
}

func (s *UserService) Signup(ctx context.Context, req SignupRequest) (*AuthResult, error) {
	if req.Name == "" || req.Email == "" || req.Password == "" || req.Role == "" {
		return nil, errors.New("name, email, password, and role are required")
	}
	if req.Role != RoleParent && req.Role != RoleAdmin {
		return nil, errors.New("invalid role, must be 'parent' or 'admin'")
	}

	existing, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.New("user already exists")
	}

	hashPassword, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &User{
		ID:           primitive.NewObjectID(),
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		SchoolCode:   req.SchoolCode,
		PasswordHash: hashPassword,
		Role:         req.Role,
		Children:     []primitive.ObjectID{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return s.authResult(user)
}

func (s *UserService) Authenticate(ctx context.Context, cred Credential) (*AuthResult, error) {
	user, err := s.repo.FindByEmail(ctx, cred.Email)
	if err != nil {
		return nil, err
	}
	if user == nil || !CheckPasswordHash(cred.Password, user.PasswordHash) {
		return nil, errors.New("invalid credentials")
	}
	return s.authResult(user)
}

func (s *UserService) Profile(ctx context.Context, userID primitive.ObjectID) (*User, error) {
	return s.repo.FindByID(ctx, userID)
}

// ListParents returns every parent account, for the admin roster UI.
func (s *UserService) ListParents(ctx context.Context) ([]*User, error) {
	return s.repo.FindParents(ctx)
}

func (s *UserService) authResult(user *User) (*AuthResult, error) {
	token, err := GenerateJWT(user.ID.Hex(), user.Name, user.Email, user.Role, time.Hour*24*7)
	if err != nil {
		return nil, errors.New("token not generated")
	}
	result := &AuthResult{Token: token}
	result.User.ID = user.ID.Hex()
	result.User.Name = user.Name
	result.User.Email = user.Email
	result.User.Role = user.Role
	return result, nil
}
