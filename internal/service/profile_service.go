package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/moodpoints-api/internal/dto"
	"github.com/noah-isme/moodpoints-api/internal/models"
	appErrors "github.com/noah-isme/moodpoints-api/pkg/errors"
)

type balanceReader interface {
	Balance(ctx context.Context, studentID string) (int64, error)
}

// ProfileService builds the caller's role-specific profile.
type ProfileService struct {
	roster   RosterReader
	balances balanceReader
	logger   *zap.Logger
}

// NewProfileService constructs the service.
func NewProfileService(roster RosterReader, balances balanceReader, logger *zap.Logger) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{roster: roster, balances: balances, logger: logger}
}

// Profile selects the projection matching the caller's role.
func (s *ProfileService) Profile(ctx context.Context, claims *models.JWTClaims) (*dto.Profile, error) {
	if claims == nil || claims.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleStudent:
		return s.studentProfile(ctx, claims)
	case models.RoleTeacher:
		return s.teacherProfile(ctx, claims)
	case models.RoleAdmin:
		return &dto.Profile{
			Kind:  dto.ProfileKindAdmin,
			Admin: &dto.AdminProfile{ID: claims.UserID, Name: claims.Name, Email: claims.Email, Role: claims.Role},
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "unknown role")
	}
}

func (s *ProfileService) studentProfile(ctx context.Context, claims *models.JWTClaims) (*dto.Profile, error) {
	student, err := s.roster.FindStudent(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Unavailable(err, "roster unavailable")
	}
	balance, err := s.balances.Balance(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Unavailable(err, "points ledger unavailable")
	}
	return &dto.Profile{
		Kind: dto.ProfileKindStudent,
		Student: &dto.StudentProfile{
			ID:      student.ID,
			Login:   student.Login,
			Name:    student.Name,
			ClassID: student.ClassID,
			Points:  balance,
			Role:    models.RoleStudent,
		},
	}, nil
}

func (s *ProfileService) teacherProfile(ctx context.Context, claims *models.JWTClaims) (*dto.Profile, error) {
	teacher, err := s.roster.FindTeacher(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Unavailable(err, "roster unavailable")
	}
	classIDs, err := s.roster.ClassIDsForTeacher(ctx, teacher.ID)
	if err != nil {
		return nil, appErrors.Unavailable(err, "roster unavailable")
	}
	if classIDs == nil {
		classIDs = []string{}
	}
	return &dto.Profile{
		Kind: dto.ProfileKindTeacher,
		Teacher: &dto.TeacherProfile{
			ID:       teacher.ID,
			Name:     teacher.Name,
			Email:    teacher.Email,
			ClassIDs: classIDs,
			Role:     models.RoleTeacher,
		},
	}, nil
}
