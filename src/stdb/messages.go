/*
Copyright (c) YugabyteDB, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package stdb

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

const (
	SUBPROTOCOL = "v1.json.spacetimedb"

	//server message tags
	IDENTITY_TOKEN             = "IdentityToken"
	INITIAL_SUBSCRIPTION       = "InitialSubscription"
	SUBSCRIPTION_ERROR         = "SubscriptionError"
	TRANSACTION_UPDATE         = "TransactionUpdate"
	TRANSACTION_UPDATE_LIGHT   = "TransactionUpdateLight"
	ONE_OFF_QUERY_RESPONSE     = "OneOffQueryResponse"
	uncompressedQueryUpdateTag = "Uncompressed"

	SUBSCRIBE_REQUEST_ID = 1
)

type subscribeMessage struct {
	Subscribe subscribeBody `json:"Subscribe"`
}

type subscribeBody struct {
	QueryStrings []string `json:"query_strings"`
	RequestID    uint32   `json:"request_id"`
}

type identityToken struct {
	Identity     json.RawMessage `json:"identity"`
	Token        string          `json:"token"`
	ConnectionID json.RawMessage `json:"connection_id"`
}

type initialSubscription struct {
	DatabaseUpdate databaseUpdate `json:"database_update"`
	RequestID      uint32         `json:"request_id"`
}

type databaseUpdate struct {
	Tables []tableUpdate `json:"tables"`
}

type tableUpdate struct {
	TableID   uint32            `json:"table_id"`
	TableName string            `json:"table_name"`
	NumRows   uint64            `json:"num_rows"`
	Updates   []json.RawMessage `json:"updates"`
}

type queryUpdate struct {
	Deletes []json.RawMessage `json:"deletes"`
	Inserts []json.RawMessage `json:"inserts"`
}

type subscriptionError struct {
	RequestID *uint32 `json:"request_id"`
	TableID   *uint32 `json:"table_id"`
	Error     string  `json:"error"`
}

// splitServerMessage returns the single tag of a server message and its body.
func splitServerMessage(data []byte) (string, json.RawMessage, error) {
	var msg map[string]json.RawMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", nil, fmt.Errorf("decode server message: %w", err)
	}
	if len(msg) != 1 {
		return "", nil, fmt.Errorf("server message has %d tags, expected 1", len(msg))
	}
	for tag, body := range msg {
		return tag, body, nil
	}
	return "", nil, nil
}

// decodeQueryUpdate accepts a bare query update or one wrapped in {"Uncompressed": ...}.
func decodeQueryUpdate(raw json.RawMessage) (queryUpdate, error) {
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return queryUpdate{}, fmt.Errorf("decode query update: %w", err)
	}
	if inner, ok := wrapped[uncompressedQueryUpdateTag]; ok {
		raw = inner
	} else if len(wrapped) == 1 {
		for tag := range wrapped {
			if tag != "deletes" && tag != "inserts" {
				return queryUpdate{}, fmt.Errorf("unsupported query update encoding %q", tag)
			}
		}
	}
	var qu queryUpdate
	if err := json.Unmarshal(raw, &qu); err != nil {
		return queryUpdate{}, fmt.Errorf("decode query update: %w", err)
	}
	return qu, nil
}

// identityString extracts the hex identity from {"__identity__": "0x.."} or returns the
// raw JSON text.
func identityString(raw json.RawMessage) string {
	var wrapped struct {
		Identity any `json:"__identity__"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Identity != nil {
		return fmt.Sprint(wrapped.Identity)
	}
	return string(bytes.Trim(raw, `"`))
}

// rowKey is the identity of a row for matching deletes to earlier inserts.
func rowKey(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(trimmed)
}
