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

package http

import (
	"context"

	"github.com/cloudbday/cloudbday/internal/auth"
)

type contextKey string

const claimsKey contextKey = "claims"

func withClaims(ctx context.Context, c *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// GetClaims retrieves the verified token claims from context.
func GetClaims(ctx context.Context) *auth.Claims {
	if val, ok := ctx.Value(claimsKey).(*auth.Claims); ok {
		return val
	}
	return nil
}

// GetActor returns the authenticated subject, or "" when unauthenticated.
func GetActor(ctx context.Context) string {
	if c := GetClaims(ctx); c != nil {
		return c.Email()
	}
	return ""
}
