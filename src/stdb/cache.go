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
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/BitCraftToolBox/automata/src/rowset"
	"github.com/BitCraftToolBox/automata/src/sats"
)

// TableBinding registers a subscribed table with the cache: rows arriving for Name
// are typed with RowType and served under Key.
type TableBinding struct {
	Name    string
	Key     string
	RowType sats.AlgebraicType
}

type cachedRow struct {
	key   string
	value sats.ProductValue
}

type cachedTable struct {
	binding TableBinding
	rows    []cachedRow
	err     error // first row that could not be decoded
}

// Cache is the client-side copy of the subscribed tables. It is filled by the
// client's read loop and read by RowsFor.
type Cache struct {
	mu        sync.RWMutex
	typespace *sats.Typespace
	byName    map[string]*cachedTable
	byKey     map[string]*cachedTable
}

var _ rowset.Source = (*Cache)(nil)

func NewCache(typespace *sats.Typespace, bindings []TableBinding) *Cache {
	c := &Cache{
		typespace: typespace,
		byName:    make(map[string]*cachedTable, len(bindings)),
		byKey:     make(map[string]*cachedTable, len(bindings)),
	}
	for _, b := range bindings {
		t := &cachedTable{binding: b}
		c.byName[b.Name] = t
		c.byKey[b.Key] = t
	}
	return c
}

// RowsFor returns a snapshot of the rows cached under key.
func (c *Cache) RowsFor(key string) (rowset.RowSet, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.byKey[key]
	if !ok {
		return rowset.RowSet{}, &rowset.MissingTableError{Key: key}
	}
	if t.err != nil {
		return rowset.RowSet{}, t.err
	}
	rows := make([]sats.ProductValue, len(t.rows))
	for i, r := range t.rows {
		rows[i] = r.value
	}
	return rowset.RowSet{
		Name:      t.binding.Name,
		Type:      t.binding.RowType,
		Typespace: c.typespace,
		Rows:      rows,
	}, nil
}

// Len reports the number of rows cached for a table name.
func (c *Cache) Len(name string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if t, ok := c.byName[name]; ok {
		return len(t.rows)
	}
	return 0
}

func (c *Cache) applyDatabaseUpdate(update databaseUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tu := range update.Tables {
		t, ok := c.byName[tu.TableName]
		if !ok {
			log.Warnf("ignoring rows for unsubscribed table %q", tu.TableName)
			continue
		}
		for _, raw := range tu.Updates {
			qu, err := decodeQueryUpdate(raw)
			if err != nil {
				return fmt.Errorf("table %q: %w", tu.TableName, err)
			}
			c.applyQueryUpdate(t, qu)
		}
		log.Debugf("cached %d rows for table %q (server reported %d)", len(t.rows), tu.TableName, tu.NumRows)
	}
	return nil
}

func (c *Cache) applyQueryUpdate(t *cachedTable, qu queryUpdate) {
	for _, raw := range qu.Deletes {
		key := rowKey(raw)
		for i := range t.rows {
			if t.rows[i].key == key {
				t.rows = append(t.rows[:i], t.rows[i+1:]...)
				break
			}
		}
	}
	for _, raw := range qu.Inserts {
		if t.err != nil {
			return
		}
		value, err := sats.DecodeRowJSON(raw, t.binding.RowType, c.typespace)
		if err != nil {
			t.err = fmt.Errorf("decode row %d of table %q: %w", len(t.rows), t.binding.Name, err)
			return
		}
		t.rows = append(t.rows, cachedRow{key: rowKey(raw), value: value})
	}
}
