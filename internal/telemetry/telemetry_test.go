/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestDisabledClientDropsEvents(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	c := New(Config{OptIn: false, EventsURL: srv.URL, Timeout: time.Second})
	defer c.Close()
	if c.Enabled() {
		t.Fatalf("client must be disabled without opt-in")
	}
	c.Event("open_document", nil)
	c.Flush(context.Background())
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("disabled client must not send, got %d hits", hits)
	}
}

func TestNoEndpointMeansDisabled(t *testing.T) {
	c := New(Config{OptIn: true, Timeout: time.Second})
	defer c.Close()
	if c.Enabled() {
		t.Fatalf("opt-in without endpoint must stay disabled")
	}
}

func TestEventDelivery(t *testing.T) {
	got := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m map[string]any
		_ = json.NewDecoder(r.Body).Decode(&m)
		select {
		case got <- m:
		default:
		}
	}))
	defer srv.Close()

	c := New(Config{OptIn: true, EventsURL: srv.URL, Timeout: time.Second})
	defer c.Close()
	c.Event("publish_poem", map[string]any{"verses": 4})
	c.Flush(context.Background())

	select {
	case m := <-got:
		if m["name"] != "publish_poem" {
			t.Fatalf("unexpected event name: %v", m["name"])
		}
		if m["verses"] != float64(4) {
			t.Fatalf("props not carried: %v", m["verses"])
		}
		if m["version"] == "" || m["os"] == "" {
			t.Fatalf("ambient fields missing: %v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("event never arrived")
	}
}

func TestCrashUploadGatedByOptIn(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	c := New(Config{OptIn: false, CrashURL: srv.URL, Timeout: time.Second})
	defer c.Close()
	c.UploadCrash([]byte("report"))
	time.Sleep(100 * time.Millisecond)
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("crash upload must require opt-in")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("GDW_TELEMETRY_OPT_IN", "yes")
	t.Setenv("GDW_TELEMETRY_URL", "https://example.test/events")
	t.Setenv("GDW_CRASH_UPLOAD_URL", "https://example.test/crash")
	t.Setenv("GDW_TELEMETRY_TIMEOUT_MS", "250")
	cfg := FromEnv()
	if !cfg.OptIn || cfg.EventsURL != "https://example.test/events" || cfg.CrashURL != "https://example.test/crash" {
		t.Fatalf("env not parsed: %#v", cfg)
	}
	if cfg.Timeout != 250*time.Millisecond {
		t.Fatalf("timeout not parsed: %v", cfg.Timeout)
	}
}
