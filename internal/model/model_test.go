// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// WIRE FORMAT TESTS
// =============================================================================

func TestTimestamp_AcceptsNaiveISO(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"rfc3339", `"2025-03-01T10:00:00Z"`, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"naive micros", `"2025-03-01T10:00:00.250000"`, time.Date(2025, 3, 1, 10, 0, 0, 250000000, time.UTC)},
		{"naive seconds", `"2025-03-01T10:00:00"`, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"offset", `"2025-03-01T12:00:00+02:00"`, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var ts Timestamp
			require.NoError(t, json.Unmarshal([]byte(tc.in), &ts))
			assert.True(t, tc.want.Equal(ts.Time), "got %v", ts.Time)
		})
	}

	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
	assert.True(t, ts.IsZero())
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}

func TestMessage_UnmarshalBothMetadataShapes(t *testing.T) {
	var listed Message
	require.NoError(t, json.Unmarshal([]byte(`{"id":4,"role":"assistant","content":"hi","created_at":"2025-01-01T00:00:00","metadata":{"model":"gpt"}}`), &listed))
	assert.Equal(t, int64(4), listed.ID)
	assert.Equal(t, RoleAssistant, listed.Role)
	assert.Equal(t, "gpt", listed.Metadata["model"])

	var embedded Message
	require.NoError(t, json.Unmarshal([]byte(`{"id":5,"chat_id":2,"role":"user","content":"yo","created_at":"2025-01-01T00:00:00","message_metadata":{"k":"v"}}`), &embedded))
	assert.Equal(t, int64(2), embedded.ChatID)
	assert.Equal(t, "v", embedded.Metadata["k"])
}

func TestMessage_KeyNamespaces(t *testing.T) {
	server := Message{ID: 7}
	local := Message{LocalID: "01HZZZ"}
	assert.Equal(t, "id:7", server.Key())
	assert.Equal(t, "local:01HZZZ", local.Key())
	assert.NotEqual(t, server.Key(), local.Key())
	assert.True(t, local.IsLocal())
	assert.False(t, server.IsLocal())
}

func TestSendResult_AssistantMessage(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	res := SendResult{MessageID: 42, Content: "answer", Model: "gpt-4o", Provider: "openai", TraceID: "tr-1"}
	msg := res.AssistantMessage(3, now)

	assert.Equal(t, int64(42), msg.ID)
	assert.Equal(t, int64(3), msg.ChatID)
	assert.Equal(t, RoleAssistant, msg.Role)
	assert.Equal(t, "answer", msg.Content)
	assert.Equal(t, "openai", msg.Metadata["provider"])
	assert.False(t, msg.IsPending())
}

// =============================================================================
// LIST HELPER TESTS
// =============================================================================

func TestAppendMessages_SkipsDuplicates(t *testing.T) {
	base := []Message{{ID: 1}, {ID: 2}}
	out := AppendMessages(base, Message{ID: 2}, Message{ID: 3}, Message{LocalID: "x"})

	require.Len(t, out, 4)
	assert.Len(t, base, 2, "input must not be modified")
	assert.Equal(t, "local:x", out[3].Key())
}

func TestAppendMessages_UnidentifiedAreNeverDuplicates(t *testing.T) {
	first := Message{Role: RoleAssistant, Content: "a"}
	second := Message{Role: RoleAssistant, Content: "b"}
	assert.Equal(t, "", first.Key())
	assert.False(t, HasMessage([]Message{first}, second.Key()))

	out := AppendMessages(nil, Message{LocalID: "u1"}, first, Message{LocalID: "u2"}, second)
	require.Len(t, out, 4)
	assert.Equal(t, "b", out[3].Content)
}

func TestPrependChat_ReplacesOlderCopy(t *testing.T) {
	chats := []Chat{{ID: 1, Title: "a"}, {ID: 2, Title: "b"}}
	out := PrependChat(chats, Chat{ID: 2, Title: "b2"})

	require.Len(t, out, 2)
	assert.Equal(t, "b2", out[0].Title)
	assert.Equal(t, int64(1), out[1].ID)

	out = RemoveChat(out, 2)
	require.Len(t, out, 1)
	_, ok := FindChat(out, 2)
	assert.False(t, ok)
}

func TestActiveOnly(t *testing.T) {
	models := []LLMModel{
		{ID: 1, Name: "a", IsActive: true},
		{ID: 2, Name: "b", IsActive: false},
		{ID: 3, Name: "c", IsActive: true},
	}
	active := ActiveOnly(models)
	require.Len(t, active, 2)
	assert.Equal(t, int64(1), active[0].ID)
	assert.Equal(t, int64(3), active[1].ID)

	servers := []MCPServer{{ID: 9, IsActive: false}}
	assert.Empty(t, ActiveOnly(servers))
}

func TestUpsertAndRemoveEntity(t *testing.T) {
	list := []MCPServer{{ID: 1, Name: "one"}}
	list = UpsertEntity(list, MCPServer{ID: 2, Name: "two"})
	list = UpsertEntity(list, MCPServer{ID: 1, Name: "uno"})

	require.Len(t, list, 2)
	got, ok := FindEntity(list, 1)
	require.True(t, ok)
	assert.Equal(t, "uno", got.Name)

	list = RemoveEntity(list, 1)
	require.Len(t, list, 1)
	assert.Equal(t, int64(2), list[0].ID)
}

// =============================================================================
// DRAFT TESTS
// =============================================================================

func TestDrafts_Validate(t *testing.T) {
	var verrs ValidationErrors

	err := LLMModelDraft{Name: "gpt", Provider: " "}.Validate()
	require.Error(t, err)
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 2)

	assert.NoError(t, LLMModelDraft{Name: "gpt", Provider: "openai", ModelName: "gpt-4o"}.Validate())

	err = MCPServerDraft{Name: "fs"}.Validate()
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "server_url", verrs[0].Field)
	assert.NoError(t, MCPServerDraft{Name: "fs", ServerURL: "http://x", ServerType: "http"}.Validate())
}

func TestDraft_ClonesConfiguration(t *testing.T) {
	m := LLMModel{ID: 1, Name: "gpt", Configuration: map[string]any{"temperature": 0.2}, IsActive: true}
	d := m.Draft()
	d.Configuration["temperature"] = 0.9

	assert.Equal(t, 0.2, m.Configuration["temperature"], "editing a draft must not touch the entity")
	require.NotNil(t, d.IsActive)
	assert.True(t, *d.IsActive)
}

func TestChatDraft(t *testing.T) {
	d := ChatDraft{Title: "  "}.Normalize()
	assert.Equal(t, DefaultChatTitle, d.Title)
	assert.Error(t, d.Validate())

	d.LLMModelID = IDRef(3)
	assert.NoError(t, d.Validate())
	assert.Nil(t, IDRef(0))
}

func TestParseConfiguration(t *testing.T) {
	cfg, err := ParseConfiguration(`{"a": 1}`)
	require.NoError(t, err)
	assert.Equal(t, float64(1), cfg["a"])

	cfg, err = ParseConfiguration("   ")
	require.NoError(t, err)
	assert.Nil(t, cfg)

	_, err = ParseConfiguration("[1,2]")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "configuration", verr.Field)
}

// =============================================================================
// LOCAL ID TESTS
// =============================================================================

func TestLocalIDs_MonotonicUnderFrozenAndBackwardClock(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ticks := []time.Time{base, base, base, base.Add(-time.Hour), base.Add(time.Millisecond)}
	i := 0
	ids := NewLocalIDs(func() time.Time {
		t := ticks[i%len(ticks)]
		i++
		return t
	})

	prev := ""
	seen := map[string]bool{}
	for n := 0; n < 50; n++ {
		id := ids.Next()
		if id <= prev {
			t.Fatalf("id %q not greater than previous %q", id, prev)
		}
		if seen[id] {
			t.Fatalf("id %q reused", id)
		}
		seen[id] = true
		prev = id
	}
}
