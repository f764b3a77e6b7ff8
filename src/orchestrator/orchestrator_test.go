//go:build unit

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
package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BitCraftToolBox/automata/src/classifier"
	"github.com/BitCraftToolBox/automata/src/config"
	"github.com/BitCraftToolBox/automata/src/datastore"
	"github.com/BitCraftToolBox/automata/src/errs"
	"github.com/BitCraftToolBox/automata/src/exporter"
	"github.com/BitCraftToolBox/automata/src/rowset"
	"github.com/BitCraftToolBox/automata/src/sats"
	"github.com/BitCraftToolBox/automata/src/schema"
	"github.com/BitCraftToolBox/automata/src/session"
	"github.com/BitCraftToolBox/automata/src/stdb"
)

const typespaceJSON = `"typespace": {"types": [
	{"Product": {"elements": [
		{"name": {"some": "id"}, "algebraic_type": {"I32": []}},
		{"name": {"some": "name"}, "algebraic_type": {"String": []}}
	]}}
]}`

type staticGetter struct {
	body string
	err  error
	urls []string
}

func (g *staticGetter) Get(ctx context.Context, path string) ([]byte, error) {
	g.urls = append(g.urls, path)
	return []byte(g.body), g.err
}

func schemaWith(tables string) *staticGetter {
	return &staticGetter{body: `{` + typespaceJSON + `, "tables": [` + tables + `]}`}
}

// fakeTransport plays the server side of one session from a goroutine, like the
// read loop of the websocket client.
type fakeTransport struct {
	rows       map[string][]sats.ProductValue
	typespace  *sats.Typespace
	connectErr error
	// called instead of the normal identity/applied sequence when set
	script     func(h stdb.Handler)
	handler    stdb.Handler
	queries    []string
	connected  bool
	disconnect int
}

func (f *fakeTransport) Connect(ctx context.Context, h stdb.Handler) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.handler = h
	f.connected = true
	go func() {
		if f.script != nil {
			f.script(h)
			return
		}
		h.OnConnect("0xc0ffee")
	}()
	return nil
}

func (f *fakeTransport) Subscribe(queries []string) error {
	f.queries = queries
	f.handler.OnApplied()
	return nil
}

func (f *fakeTransport) Disconnect() error {
	f.disconnect++
	if f.handler != nil {
		f.handler.OnDisconnect(nil)
	}
	return nil
}

func (f *fakeTransport) RowsFor(key string) (rowset.RowSet, error) {
	rows, ok := f.rows[key]
	if !ok {
		return rowset.RowSet{}, &rowset.MissingTableError{Key: key}
	}
	return rowset.RowSet{Name: key, Type: sats.Ref(0), Typespace: f.typespace, Rows: rows}, nil
}

func (f *fakeTransport) factory() TransportFactory {
	return func(cfg config.Config, s *schema.Schema, candidates []classifier.ExportCandidate) session.Transport {
		f.typespace = &s.Typespace
		return f
	}
}

func testConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.Host = "stdb.example.com"
	cfg.OutputDir = t.TempDir()
	cfg.CIOutput = filepath.Join(t.TempDir(), "github_output")
	return cfg
}

func localStore(t *testing.T, cfg config.Config) *datastore.LocalDatastore {
	store, err := datastore.NewLocalDatastore(cfg.OutputDir)
	require.NoError(t, err)
	return store
}

func ciFlag(t *testing.T, cfg config.Config) string {
	data, err := os.ReadFile(cfg.CIOutput)
	if errors.Is(err, os.ErrNotExist) {
		return ""
	}
	require.NoError(t, err)
	return string(data)
}

func outputFiles(t *testing.T, dir string) []string {
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRunExportsDescriptorTableOnly(t *testing.T) {
	cfg := testConfig(t)
	getter := schemaWith(`
		{"name": "item_desc", "product_type_ref": 0, "table_access": {"Public": []}},
		{"name": "player_state", "product_type_ref": 0, "table_access": {"Public": []}}`)
	transport := &fakeTransport{rows: map[string][]sats.ProductValue{
		"itemDesc": {{int64(2), "b"}, {int64(1), "a"}},
	}}

	result := Run(context.Background(), cfg, Deps{Schema: getter, NewTransport: transport.factory(), Store: localStore(t, cfg)})

	require.NoError(t, result.Err)
	assert.Equal(t, OutcomeSuccess, result.Outcome)
	assert.Equal(t, 0, result.ExitCode())
	assert.Equal(t, []string{"https://stdb.example.com/v1/database/bitcraft-2/schema?version=9"}, getter.urls)
	assert.Equal(t, []string{"SELECT * FROM item_desc;"}, transport.queries)
	assert.Equal(t, 1, transport.disconnect)

	require.Len(t, result.Artifacts, 1)
	assert.Equal(t, "item_desc", result.Artifacts[0].Table)
	assert.Equal(t, 2, result.Artifacts[0].Rows)
	assert.Equal(t, []string{"item_desc.json"}, outputFiles(t, cfg.OutputDir))
	assert.Equal(t, "updated_data=true\n", ciFlag(t, cfg))
}

func TestRunPrivateDescriptorIsNotExported(t *testing.T) {
	cfg := testConfig(t)
	getter := schemaWith(`{"name": "item_desc", "product_type_ref": 0, "table_access": {"Private": []}}`)
	transport := &fakeTransport{}

	result := Run(context.Background(), cfg, Deps{Schema: getter, NewTransport: transport.factory(), Store: localStore(t, cfg)})

	assert.Equal(t, OutcomeClean, result.Outcome)
	assert.Equal(t, 0, result.ExitCode())
	assert.Empty(t, result.Artifacts)
	assert.False(t, transport.connected)
	assert.Empty(t, outputFiles(t, cfg.OutputDir))
	assert.Empty(t, ciFlag(t, cfg))
}

func TestRunCleanConnectError(t *testing.T) {
	cfg := testConfig(t)
	getter := schemaWith(`{"name": "item_desc", "product_type_ref": 0, "table_access": {"Public": []}}`)
	transport := &fakeTransport{script: func(h stdb.Handler) {
		h.OnConnectError(&websocket.CloseError{Code: websocket.CloseNormalClosure})
	}}

	result := Run(context.Background(), cfg, Deps{Schema: getter, NewTransport: transport.factory(), Store: localStore(t, cfg)})

	assert.Equal(t, OutcomeClean, result.Outcome)
	assert.NoError(t, result.Err)
	assert.Equal(t, 0, result.ExitCode())
	assert.Empty(t, outputFiles(t, cfg.OutputDir))
	assert.Empty(t, ciFlag(t, cfg))
}

func TestRunHandshakeFailure(t *testing.T) {
	cfg := testConfig(t)
	getter := schemaWith(`{"name": "item_desc", "product_type_ref": 0, "table_access": {"Public": []}}`)
	transport := &fakeTransport{connectErr: errs.NewConnectError(errors.New("401 Unauthorized: invalid token"))}

	result := Run(context.Background(), cfg, Deps{Schema: getter, NewTransport: transport.factory(), Store: localStore(t, cfg)})

	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, 1, result.ExitCode())
	var connectErr *errs.ConnectError
	assert.ErrorAs(t, result.Err, &connectErr)
	assert.ErrorContains(t, result.Err, "invalid token")
}

func TestRunWriteFailureOnSecondArtifact(t *testing.T) {
	cfg := testConfig(t)
	getter := schemaWith(`
		{"name": "item_desc", "product_type_ref": 0, "table_access": {"Public": []}},
		{"name": "cargo_desc", "product_type_ref": 0, "table_access": {"Public": []}}`)
	transport := &fakeTransport{rows: map[string][]sats.ProductValue{
		"itemDesc":  {{int64(1), "a"}},
		"cargoDesc": {{int64(7), "crate"}},
	}}
	store := &failingStore{Datastore: localStore(t, cfg), failAfter: 1}

	result := Run(context.Background(), cfg, Deps{Schema: getter, NewTransport: transport.factory(), Store: store})

	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, 1, result.ExitCode())
	var exportErr *errs.ExportError
	require.ErrorAs(t, result.Err, &exportErr)
	assert.Equal(t, "cargo_desc", exportErr.Table)
	assert.Equal(t, errs.WRITE_FILE_STEP, exportErr.FailedStep)
	assert.Equal(t, 1, transport.disconnect)
	// first artifact is not rolled back, but the run is not a success
	assert.Equal(t, []string{"item_desc.json"}, outputFiles(t, cfg.OutputDir))
	assert.Empty(t, ciFlag(t, cfg))
}

func TestRunSubscriptionRejected(t *testing.T) {
	cfg := testConfig(t)
	getter := schemaWith(`{"name": "item_desc", "product_type_ref": 0, "table_access": {"Public": []}}`)
	transport := &fakeTransport{script: func(h stdb.Handler) {
		h.OnConnect("0x01")
	}}
	transport.rows = map[string][]sats.ProductValue{}
	reject := &rejectingTransport{fakeTransport: transport}

	result := Run(context.Background(), cfg, Deps{Schema: getter, NewTransport: reject.factory(), Store: localStore(t, cfg)})

	assert.Equal(t, OutcomeFailed, result.Outcome)
	var subErr *errs.SubscriptionError
	assert.ErrorAs(t, result.Err, &subErr)
}

func TestRunUnexpectedDisconnectBeforeSync(t *testing.T) {
	cfg := testConfig(t)
	getter := schemaWith(`{"name": "item_desc", "product_type_ref": 0, "table_access": {"Public": []}}`)
	transport := &fakeTransport{script: func(h stdb.Handler) {
		h.OnConnect("0x01")
	}}
	drop := &droppingTransport{fakeTransport: transport}

	result := Run(context.Background(), cfg, Deps{Schema: getter, NewTransport: drop.factory(), Store: localStore(t, cfg)})

	assert.Equal(t, OutcomeFailed, result.Outcome)
	var disconnectErr *errs.UnexpectedDisconnectError
	require.ErrorAs(t, result.Err, &disconnectErr)
	assert.Equal(t, "subscribing", disconnectErr.State)
}

func TestRunSchemaFetchFailure(t *testing.T) {
	cfg := testConfig(t)
	getter := &staticGetter{err: errors.New("connection refused")}

	result := Run(context.Background(), cfg, Deps{Schema: getter, NewTransport: (&fakeTransport{}).factory(), Store: localStore(t, cfg)})

	assert.Equal(t, 1, result.ExitCode())
	var fetchErr *errs.SchemaFetchError
	assert.ErrorAs(t, result.Err, &fetchErr)
}

func TestRunInvalidSchema(t *testing.T) {
	cfg := testConfig(t)
	getter := &staticGetter{body: `{"tables": [{"name": "item_desc"}]}`}

	result := Run(context.Background(), cfg, Deps{Schema: getter, NewTransport: (&fakeTransport{}).factory(), Store: localStore(t, cfg)})

	assert.Equal(t, 1, result.ExitCode())
	var classErr *errs.ClassificationError
	assert.ErrorAs(t, result.Err, &classErr)
}

func TestRunBSATN(t *testing.T) {
	cfg := testConfig(t)
	cfg.Format = exporter.FORMAT_BSATN
	cfg.CIOutput = ""
	getter := schemaWith(`{"name": "claim_tile_cost", "product_type_ref": 0, "table_access": {"Public": []}}`)
	transport := &fakeTransport{rows: map[string][]sats.ProductValue{
		"claimTileCost": {{int64(3), "c"}, {int64(1), "a"}},
	}}

	result := Run(context.Background(), cfg, Deps{Schema: getter, NewTransport: transport.factory(), Store: localStore(t, cfg)})
	require.NoError(t, result.Err)
	assert.Equal(t, OutcomeSuccess, result.Outcome)

	data, err := os.ReadFile(filepath.Join(cfg.OutputDir, "claim_tile_cost.bsatn"))
	require.NoError(t, err)
	rows, err := sats.DecodeRows(data, sats.Ref(0), transport.typespace)
	require.NoError(t, err)
	assert.Equal(t, transport.rows["claimTileCost"], rows)
}

func TestOutcomeNames(t *testing.T) {
	assert.Equal(t, "success", OutcomeSuccess.String())
	assert.Equal(t, "clean", OutcomeClean.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
}

// rejectingTransport answers the subscription with an error instead of rows.
type rejectingTransport struct {
	*fakeTransport
}

func (r *rejectingTransport) Subscribe(queries []string) error {
	r.queries = queries
	r.handler.OnSubscriptionError(errs.NewSubscriptionError("item_desc", "no such table"))
	return nil
}

func (r *rejectingTransport) factory() TransportFactory {
	return func(cfg config.Config, s *schema.Schema, candidates []classifier.ExportCandidate) session.Transport {
		r.typespace = &s.Typespace
		return r
	}
}

// droppingTransport loses the connection right after the subscription is sent.
type droppingTransport struct {
	*fakeTransport
}

func (d *droppingTransport) Subscribe(queries []string) error {
	d.queries = queries
	d.handler.OnDisconnect(&websocket.CloseError{Code: websocket.CloseInternalServerErr, Text: "module crashed"})
	return nil
}

func (d *droppingTransport) factory() TransportFactory {
	return func(cfg config.Config, s *schema.Schema, candidates []classifier.ExportCandidate) session.Transport {
		d.typespace = &s.Typespace
		return d
	}
}

type failingStore struct {
	datastore.Datastore
	failAfter int
	writes    int
}

func (s *failingStore) WriteFile(ctx context.Context, name string, data []byte) error {
	s.writes++
	if s.writes > s.failAfter {
		return errors.New("disk full")
	}
	return s.Datastore.WriteFile(ctx, name, data)
}
