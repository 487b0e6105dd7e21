package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role is the portal role carried in the token. Anonymous visitors have no
// token and therefore no role.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
	RoleAlly    Role = "ally"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin, RoleAlly:
		return true
	}
	return false
}

// Claims is the session payload: {userId, role, email} plus the links needed
// by the doctor and ally portals.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"userId"`
	Role     Role   `json:"role"`
	Email    string `json:"email"`
	DoctorID string `json:"doctorId,omitempty"`
	AllyID   string `json:"allyId,omitempty"`
}

// Token is an issued session token.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	JTI       string    `json:"-"`
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: "rch-portal",
		now:    time.Now,
	}
}

var (
	errTokenInvalid = errors.New("invalid token")
	errTokenNoJTI   = errors.New("token has no id")
)

// Issue signs claims, filling subject, id, issue and expiry times.
func (ti *TokenIssuer) Issue(claims Claims) (*Token, error) {
	if claims.UserID == "" {
		return nil, fmt.Errorf("issue token: user id is required")
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("issue token: invalid role %q", claims.Role)
	}

	now := ti.now()
	exp := now.Add(ti.ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   claims.UserID,
		Issuer:    ti.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Token{Value: signed, ExpiresAt: exp, JTI: claims.ID}, nil
}

// Parse verifies the signature, algorithm, issuer and expiry of tokenStr.
func (ti *TokenIssuer) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return ti.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(ti.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil || !token.Valid {
		return nil, errTokenInvalid
	}
	if claims.ID == "" {
		return nil, errTokenNoJTI
	}
	if claims.UserID == "" || claims.UserID != claims.Subject || !claims.Role.Valid() {
		return nil, errTokenInvalid
	}
	return claims, nil
}
