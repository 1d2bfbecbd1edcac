// Package auth resolves request credentials into a scheduling.CurrentUser.
// It only verifies tokens; issuing them belongs to the identity service.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"

	"github.com/carebridge/telehealth/internal/scheduling"
)

var ErrUnauthorized = errors.New("invalid or missing credentials")

// Claims is the token payload the identity service issues. The subject is the
// user id; doctor_id/patient_id are present when the user has that profile.
type Claims struct {
	jwt.RegisteredClaims
	IsAdmin   bool   `json:"is_admin"`
	IsDoctor  bool   `json:"is_doctor"`
	DoctorID  *int64 `json:"doctor_id,omitempty"`
	PatientID *int64 `json:"patient_id,omitempty"`
}

type Resolver struct {
	secret []byte
}

func NewResolver(secret string) *Resolver {
	return &Resolver{secret: []byte(secret)}
}

// Resolve verifies the bearer token and maps its claims to a CurrentUser.
func (r *Resolver) Resolve(token string) (scheduling.CurrentUser, error) {
	if token == "" {
		return scheduling.CurrentUser{}, ErrUnauthorized
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil || !parsed.Valid {
		return scheduling.CurrentUser{}, ErrUnauthorized
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return scheduling.CurrentUser{}, ErrUnauthorized
	}

	return scheduling.CurrentUser{
		UserID:    userID,
		DoctorID:  claims.DoctorID,
		PatientID: claims.PatientID,
		IsAdmin:   claims.IsAdmin,
		IsDoctor:  claims.IsDoctor,
	}, nil
}

type contextKey struct{}

// WithUser stores the resolved caller on the context.
func WithUser(ctx context.Context, u scheduling.CurrentUser) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// UserFrom returns the resolved caller, if any.
func UserFrom(ctx context.Context) (scheduling.CurrentUser, bool) {
	u, ok := ctx.Value(contextKey{}).(scheduling.CurrentUser)
	return u, ok
}
