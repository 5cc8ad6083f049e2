// Copyright 2026 The CloudBDay Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package auth issues and verifies the bearer tokens used by administrators
// and by the external scheduler.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the privilege carried by a token.
type Role string

const (
	// RoleAdmin grants the tenant admin API for one namespace.
	RoleAdmin Role = "admin"
	// RoleScheduler grants the cross-tenant task triggers.
	RoleScheduler Role = "scheduler"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrWrongRole    = errors.New("token role not permitted")
	ErrShortSecret  = errors.New("auth secret must be at least 32 bytes")
)

// Claims is the payload of a CloudBDay token. Subject holds the admin email.
type Claims struct {
	Namespace string `json:"ns,omitempty"`
	Role      Role   `json:"role"`
	jwt.RegisteredClaims
}

// Email returns the lower-cased subject.
func (c *Claims) Email() string {
	return strings.ToLower(c.Subject)
}

// Issuer signs and parses HS256 tokens.
type Issuer struct {
	secret []byte
	name   string
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an issuer. ttl bounds admin tokens; scheduler tokens use
// the same ttl unless minted with Sign directly.
func NewIssuer(secret []byte, name string, ttl time.Duration) (*Issuer, error) {
	if len(secret) < 32 {
		return nil, ErrShortSecret
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Issuer{secret: secret, name: name, ttl: ttl, now: time.Now}, nil
}

// WithClock replaces the time source.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Admin mints an admin token for email in namespace.
func (i *Issuer) Admin(namespace, email string) (string, error) {
	return i.Sign(Claims{Namespace: namespace, Role: RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{Subject: strings.ToLower(email)}}, i.ttl)
}

// Scheduler mints a scheduler token.
func (i *Issuer) Scheduler(ttl time.Duration) (string, error) {
	return i.Sign(Claims{Role: RoleScheduler, RegisteredClaims: jwt.RegisteredClaims{Subject: "scheduler"}}, ttl)
}

// Sign fills issuer and time claims and signs c.
func (i *Issuer) Sign(c Claims, ttl time.Duration) (string, error) {
	now := i.now()
	c.Issuer = i.name
	c.IssuedAt = jwt.NewNumericDate(now)
	c.NotBefore = jwt.NewNumericDate(now)
	if ttl > 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &c)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies raw and returns its claims.
func (i *Issuer) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.name),
		jwt.WithTimeFunc(i.now),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// Require parses raw and checks the role.
func (i *Issuer) Require(raw string, role Role) (*Claims, error) {
	c, err := i.Parse(raw)
	if err != nil {
		return nil, err
	}
	if c.Role != role {
		return nil, ErrWrongRole
	}
	return c, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
