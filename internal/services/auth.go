package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/NivaraGame/adaptive-lms/internal/domain"
	apperr "github.com/NivaraGame/adaptive-lms/internal/pkg/errors"
	"github.com/NivaraGame/adaptive-lms/internal/pkg/logger"
	"github.com/NivaraGame/adaptive-lms/internal/platform/envutil"
	"github.com/NivaraGame/adaptive-lms/internal/repos"
)

const tokenIssuer = "adaptive-lms"

type AuthService interface {
	Login(ctx context.Context, username, password string) (string, *domain.User, error)
	ParseToken(token string) (int64, error)
}

type authService struct {
	log      *logger.Logger
	userRepo repos.UserRepo
	secret   []byte
	ttl      time.Duration
}

func NewAuthService(baseLog *logger.Logger, userRepo repos.UserRepo) AuthService {
	return &authService{
		log:      baseLog.With("service", "AuthService"),
		userRepo: userRepo,
		secret:   []byte(envutil.String("JWT_SECRET", "dev-secret-change-me")),
		ttl:      time.Duration(envutil.Int("JWT_TTL_HOURS", 24)) * time.Hour,
	}
}

func (s *authService) Login(ctx context.Context, username, password string) (string, *domain.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, nil, username)
	if errors.Is(err, apperr.ErrNotFound) {
		// Allow logging in with the email address too.
		user, err = s.userRepo.GetByEmail(ctx, nil, username)
	}
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return "", nil, apperr.ErrUnauthorized
		}
		return "", nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)) != nil {
		return "", nil, apperr.ErrUnauthorized
	}

	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(user.UserID, 10),
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, err
	}

	s.log.Info("User logged in", "user_id", user.UserID)
	return token, user, nil
}

func (s *authService) ParseToken(token string) (int64, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return 0, apperr.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return 0, apperr.ErrUnauthorized
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, apperr.ErrUnauthorized
	}
	return userID, nil
}
