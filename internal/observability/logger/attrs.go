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

package logger

import "log/slog"

// Attribute helpers keep log keys consistent across packages.

// Request attributes
func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}

func Method(method string) slog.Attr {
	return slog.String("method", method)
}

func Path(path string) slog.Attr {
	return slog.String("path", path)
}

func RemoteAddr(addr string) slog.Attr {
	return slog.String("remote_addr", addr)
}

func StatusCode(code int) slog.Attr {
	return slog.Int("status_code", code)
}

func Duration(ms int64) slog.Attr {
	return slog.Int64("duration_ms", ms)
}

// Tenant attributes
func Namespace(ns string) slog.Attr {
	return slog.String("namespace", ns)
}

func Domain(domain string) slog.Attr {
	return slog.String("domain", domain)
}

func Actor(email string) slog.Attr {
	return slog.String("actor", email)
}

// Person attributes
func PersonID(id string) slog.Attr {
	return slog.String("person_id", id)
}

func Email(email string) slog.Attr {
	return slog.String("email", email)
}

func DirectoryID(id string) slog.Attr {
	return slog.String("directory_id", id)
}

func Birthday(raw string) slog.Attr {
	return slog.String("birthday", raw)
}

// Task attributes
func TaskKind(kind string) slog.Attr {
	return slog.String("task_kind", kind)
}

func TaskID(id string) slog.Attr {
	return slog.String("task_id", id)
}

func Queue(name string) slog.Attr {
	return slog.String("queue", name)
}

func Count(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

// Error attributes
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

func ErrorType(errType string) slog.Attr {
	return slog.String("error_type", errType)
}

// Component attributes
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

func Operation(op string) slog.Attr {
	return slog.String("operation", op)
}

// String creates a generic string attribute
func String(key, value string) slog.Attr {
	return slog.String(key, value)
}
