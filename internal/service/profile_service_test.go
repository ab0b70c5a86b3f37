package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/moodpoints-api/internal/dto"
	"github.com/noah-isme/moodpoints-api/internal/models"
	"github.com/noah-isme/moodpoints-api/internal/repository"
	appErrors "github.com/noah-isme/moodpoints-api/pkg/errors"
)

func TestProfileServiceSelectsProjectionByRole(t *testing.T) {
	store := repository.NewMemoryStore(repository.DemoSeed())
	svc := NewProfileService(store, store, nil)
	ledger := NewPointsLedger(store, nil)
	_, err := ledger.Credit(context.Background(), "student-6-2-05", 30)
	require.NoError(t, err)

	student, err := svc.Profile(context.Background(), &models.JWTClaims{UserID: "student-6-2-05", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.Equal(t, dto.ProfileKindStudent, student.Kind)
	require.NotNil(t, student.Student)
	assert.Nil(t, student.Teacher)
	assert.Equal(t, int64(30), student.Student.Points)
	assert.Equal(t, "class-6-2", student.Student.ClassID)

	teacher, err := svc.Profile(context.Background(), &models.JWTClaims{UserID: "teacher-6-2", Role: models.RoleTeacher})
	require.NoError(t, err)
	assert.Equal(t, dto.ProfileKindTeacher, teacher.Kind)
	require.NotNil(t, teacher.Teacher)
	assert.Equal(t, []string{"class-6-2"}, teacher.Teacher.ClassIDs)

	admin, err := svc.Profile(context.Background(), &models.JWTClaims{UserID: "root", Role: models.RoleAdmin, Email: "root@school.local"})
	require.NoError(t, err)
	assert.Equal(t, dto.ProfileKindAdmin, admin.Kind)
	assert.Equal(t, "root@school.local", admin.Admin.Email)
}

func TestProfileServiceUnknownStudent(t *testing.T) {
	store := repository.NewMemoryStore(repository.DemoSeed())
	svc := NewProfileService(store, store, nil)

	_, err := svc.Profile(context.Background(), &models.JWTClaims{UserID: "ghost", Role: models.RoleStudent})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.Profile(context.Background(), nil)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func signToken(t *testing.T, secret string, claims *models.JWTClaims, method jwt.SigningMethod) string {
	t.Helper()
	token := jwt.NewWithClaims(method, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestTokenServiceValidateToken(t *testing.T) {
	svc := NewTokenService("secret", "moodpoints-idp")
	claims := &models.JWTClaims{
		UserID: "student-6-2-01",
		Role:   models.RoleStudent,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "moodpoints-idp",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	parsed, err := svc.ValidateToken(signToken(t, "secret", claims, jwt.SigningMethodHS256))
	require.NoError(t, err)
	assert.Equal(t, "student-6-2-01", parsed.UserID)
	assert.Equal(t, models.RoleStudent, parsed.Role)
}

func TestTokenServiceRejectsBadTokens(t *testing.T) {
	svc := NewTokenService("secret", "moodpoints-idp")
	valid := jwt.RegisteredClaims{Issuer: "moodpoints-idp", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}

	cases := map[string]string{
		"wrong secret": signToken(t, "other", &models.JWTClaims{UserID: "u", Role: models.RoleAdmin, RegisteredClaims: valid}, jwt.SigningMethodHS256),
		"wrong issuer": signToken(t, "secret", &models.JWTClaims{UserID: "u", Role: models.RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "elsewhere", ExpiresAt: valid.ExpiresAt,
		}}, jwt.SigningMethodHS256),
		"expired": signToken(t, "secret", &models.JWTClaims{UserID: "u", Role: models.RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "moodpoints-idp", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}}, jwt.SigningMethodHS256),
		"unknown role": signToken(t, "secret", &models.JWTClaims{UserID: "u", Role: "JANITOR", RegisteredClaims: valid}, jwt.SigningMethodHS256),
		"other alg":    signToken(t, "secret", &models.JWTClaims{UserID: "u", Role: models.RoleAdmin, RegisteredClaims: valid}, jwt.SigningMethodHS512),
		"garbage":      "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
		})
	}
}

func TestTokenServiceFallsBackToSubject(t *testing.T) {
	svc := NewTokenService("secret", "")
	token := signToken(t, "secret", &models.JWTClaims{Role: models.RoleTeacher, RegisteredClaims: jwt.RegisteredClaims{Subject: "teacher-6-2"}}, jwt.SigningMethodHS256)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "teacher-6-2", claims.UserID)
}
