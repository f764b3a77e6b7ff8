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

// Package orchestrator runs one export: schema, classification, subscription,
// export and disconnect.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/BitCraftToolBox/automata/src/classifier"
	"github.com/BitCraftToolBox/automata/src/config"
	"github.com/BitCraftToolBox/automata/src/datastore"
	"github.com/BitCraftToolBox/automata/src/errs"
	"github.com/BitCraftToolBox/automata/src/exporter"
	"github.com/BitCraftToolBox/automata/src/pbreporter"
	"github.com/BitCraftToolBox/automata/src/schema"
	"github.com/BitCraftToolBox/automata/src/session"
	"github.com/BitCraftToolBox/automata/src/stdb"
	"github.com/BitCraftToolBox/automata/src/utils"
	"github.com/BitCraftToolBox/automata/src/utils/httpclient"
)

type Outcome int

const (
	// artifacts were written for every candidate
	OutcomeSuccess Outcome = iota
	// the run ended without data and without an error
	OutcomeClean
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeClean:
		return "clean"
	}
	return "failed"
}

type Result struct {
	Outcome    Outcome
	Err        error
	Candidates []classifier.ExportCandidate
	Artifacts  []exporter.Artifact
}

func (r Result) ExitCode() int {
	if r.Outcome == OutcomeFailed {
		return 1
	}
	return 0
}

// TransportFactory creates the connection for a classified schema.
type TransportFactory func(cfg config.Config, s *schema.Schema, candidates []classifier.ExportCandidate) session.Transport

// Deps are the collaborators of a run. Zero fields are filled by Run with the real
// implementations built from the config.
type Deps struct {
	Schema       schema.Getter
	NewTransport TransportFactory
	Store        datastore.Datastore
	Progress     *pbreporter.Progress
}

// StdbTransport connects to the module with the websocket client, binding every
// candidate to its cache key.
func StdbTransport(cfg config.Config, s *schema.Schema, candidates []classifier.ExportCandidate) session.Transport {
	bindings := lo.Map(candidates, func(c classifier.ExportCandidate, _ int) stdb.TableBinding {
		return stdb.TableBinding{Name: c.SourceName, Key: c.OutputKey, RowType: c.RowType}
	})
	return stdb.NewClient(stdb.Config{
		Host:     cfg.Host,
		Module:   cfg.Module,
		Token:    cfg.Token,
		Insecure: cfg.Insecure,
	}, &s.Typespace, bindings)
}

// SchemaClient returns the retrying HTTP client used for the schema endpoint.
func SchemaClient(cfg config.Config) *httpclient.Client {
	hc := httpclient.DefaultConfig()
	hc.MaxRetries = cfg.SchemaFetchRetries
	if cfg.Token != "" {
		hc.Headers["Authorization"] = "Bearer " + cfg.Token
	}
	return httpclient.NewClient(hc)
}

// Classify fetches the schema and returns it with the export candidates.
func Classify(ctx context.Context, cfg config.Config, client schema.Getter) (*schema.Schema, []classifier.ExportCandidate, error) {
	s, err := schema.Fetch(ctx, client, cfg.SchemaURL())
	if err != nil {
		return nil, nil, err
	}
	candidates, err := classifier.Classify(s.Tables, cfg.ClassifierOptions())
	if err != nil {
		return nil, nil, err
	}
	log.Infof("%d of %d tables are eligible for export", len(candidates), len(s.Tables))
	if log.IsLevelEnabled(log.DebugLevel) {
		log.Debugf("export candidates: %s", spew.Sdump(candidates))
	}
	return s, candidates, nil
}

// Run performs one export and never retries. The store is closed before returning.
func Run(ctx context.Context, cfg config.Config, deps Deps) Result {
	if deps.Schema == nil {
		deps.Schema = SchemaClient(cfg)
	}
	if deps.NewTransport == nil {
		deps.NewTransport = StdbTransport
	}

	s, candidates, err := Classify(ctx, cfg, deps.Schema)
	if err != nil {
		return failed(err)
	}
	if len(candidates) == 0 {
		log.Warnf("no table of module %q is eligible for export, not connecting", cfg.Module)
		return Result{Outcome: OutcomeClean}
	}

	store := deps.Store
	if store == nil {
		store, err = datastore.NewDataStore(ctx, cfg.ResolvedOutputDir())
		if err != nil {
			return failed(fmt.Errorf("open output %s: %w", cfg.ResolvedOutputDir(), err))
		}
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warnf("closing output store: %v", err)
		}
	}()

	transport := deps.NewTransport(cfg, s, candidates)
	sess := session.Open(ctx, transport, classifier.Queries(candidates))
	result := await(ctx, sess, exporter.New(store, cfg.Format, deps.Progress), candidates)
	result.Candidates = candidates
	deps.Progress.Wait()

	if result.Outcome == OutcomeSuccess {
		if err := utils.SignalUpdated(cfg.CIOutput); err != nil {
			result.Outcome, result.Err = OutcomeFailed, err
		}
	}
	return result
}

// await blocks until the session terminates, exporting when it reports synced.
func await(ctx context.Context, sess *session.Session, exp *exporter.Exporter, candidates []classifier.ExportCandidate) Result {
	var artifacts []exporter.Artifact
	var runErr error
	exported := false

	events := sess.Events()
	done := ctx.Done()
	for {
		select {
		case <-done:
			log.Warnf("run cancelled while %s", sess.State())
			runErr = ctx.Err()
			done = nil
			_ = sess.Disconnect()
		case ev, ok := <-events:
			if !ok {
				// closed right after EventTerminated
				return Result{Outcome: OutcomeFailed, Err: errors.New("session ended without terminating")}
			}
			switch ev.Kind {
			case session.EventSynced:
				if err := sess.BeginExport(); err != nil {
					runErr = err
				} else {
					artifacts, runErr = exp.Export(ctx, candidates, sess.Source())
					exported = runErr == nil
				}
				if err := sess.Disconnect(); err != nil {
					log.Warnf("disconnect after export: %v", err)
				}
			case session.EventTerminated:
				// a session ended by the server may still hold the connection
				if err := sess.Disconnect(); err != nil {
					log.Warnf("closing connection: %v", err)
				}
				return outcome(ev.Err, runErr, exported, artifacts)
			}
		}
	}
}

func outcome(sessionErr error, runErr error, exported bool, artifacts []exporter.Artifact) Result {
	switch {
	case runErr != nil:
		return Result{Outcome: OutcomeFailed, Err: runErr, Artifacts: artifacts}
	case sessionErr != nil:
		var connectErr *errs.ConnectError
		if errors.As(sessionErr, &connectErr) && connectErr.Clean() {
			log.Infof("connection closed cleanly during handshake: %v", sessionErr)
			return Result{Outcome: OutcomeClean}
		}
		return Result{Outcome: OutcomeFailed, Err: sessionErr, Artifacts: artifacts}
	case exported:
		return Result{Outcome: OutcomeSuccess, Artifacts: artifacts}
	}
	return Result{Outcome: OutcomeClean}
}

func failed(err error) Result {
	return Result{Outcome: OutcomeFailed, Err: err}
}
