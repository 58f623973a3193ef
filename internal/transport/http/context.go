// Copyright 2026 The Resource-E Authors
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

import "context"

type contextKey string

const sessionUserIDKey contextKey = "session_user_id"

// GetSessionUserID retrieves the authenticated user id from context. Empty
// means the request did not pass session auth.
func GetSessionUserID(ctx context.Context) string {
	if val, ok := ctx.Value(sessionUserIDKey).(string); ok {
		return val
	}
	return ""
}
