/*
Copyright 2024 Blnk Finance Authors.

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

package risk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ConservationTolerance bounds |base + sum(attributions) - f(x)| for an accepted explanation.
const ConservationTolerance = 1e-3

const defaultLoadTimeout = 30 * time.Second

var tracer = otel.Tracer("Risk engine")

// Engine owns the loaded model and explainer. The artifact is loaded lazily on
// first use and at most once; a failed load leaves the engine unavailable for
// the life of the process.
type Engine struct {
	source      Source
	sourceErr   error
	loadTimeout time.Duration

	once      sync.Once
	model     Model
	explainer Explainer
	loadErr   error
}

// NewEngine returns an engine that will load its artifact from source on first use.
func NewEngine(source Source, loadTimeout time.Duration) *Engine {
	if loadTimeout <= 0 {
		loadTimeout = defaultLoadTimeout
	}
	return &Engine{source: source, loadTimeout: loadTimeout}
}

// NewEngineFromURI resolves uri with ParseSource. An unresolvable uri yields an
// engine that reports the resolution error as unavailability.
func NewEngineFromURI(uri string, opts S3Options, loadTimeout time.Duration) *Engine {
	source, err := ParseSource(uri, opts)
	e := NewEngine(source, loadTimeout)
	e.sourceErr = err
	return e
}

// NewStaticEngine wraps an already constructed model and optional explainer.
func NewStaticEngine(m Model, ex Explainer) *Engine {
	e := &Engine{model: m, explainer: ex}
	if m == nil {
		e.loadErr = ErrModelUnavailable
	}
	e.once.Do(func() {})
	return e
}

var (
	sharedOnce   sync.Once
	sharedEngine *Engine
)

// SharedEngine returns the process-wide engine. Only the arguments of the first
// call are used.
func SharedEngine(uri string, opts S3Options, loadTimeout time.Duration) *Engine {
	sharedOnce.Do(func() {
		sharedEngine = NewEngineFromURI(uri, opts, loadTimeout)
	})
	return sharedEngine
}

func (e *Engine) load() {
	e.once.Do(func() {
		if e.sourceErr != nil {
			e.loadErr = e.sourceErr
			logrus.Warnf("risk model unavailable: %v", e.loadErr)
			return
		}
		if e.source == nil {
			e.loadErr = ErrNoArtifact
			logrus.Warnf("risk model unavailable: %v", e.loadErr)
			return
		}

		// Not tied to any request context so a cancelled caller cannot poison the load.
		ctx, cancel := context.WithTimeout(context.Background(), e.loadTimeout)
		defer cancel()
		ctx, span := tracer.Start(ctx, "Loading risk model")
		defer span.End()
		span.SetAttributes(attribute.String("risk.source", e.source.String()))

		data, err := e.source.Fetch(ctx)
		if err != nil {
			e.loadErr = pkgerrors.Wrapf(err, "failed to fetch model artifact from %s", e.source)
			span.RecordError(e.loadErr)
			logrus.Warnf("risk model unavailable: %v", e.loadErr)
			return
		}
		artifact, err := ParseArtifact(data)
		if err != nil {
			e.loadErr = err
			span.RecordError(err)
			logrus.Warnf("risk model unavailable: %v", err)
			return
		}
		m, ex, err := artifact.Build()
		if err != nil {
			e.loadErr = pkgerrors.Wrap(err, "invalid model artifact")
			span.RecordError(e.loadErr)
			logrus.Warnf("risk model unavailable: %v", e.loadErr)
			return
		}

		e.model, e.explainer = m, ex
		if ex == nil {
			logrus.Warnf("loaded %s risk model from %s without an explainer, explanations are disabled", m.Kind(), e.source)
		} else {
			logrus.Infof("loaded %s risk model from %s", m.Kind(), e.source)
		}
	})
}

// Err reports why the engine is unavailable, or nil once a model is loaded.
func (e *Engine) Err() error {
	e.load()
	if e.loadErr != nil {
		return fmt.Errorf("%w: %v", ErrModelUnavailable, e.loadErr)
	}
	return nil
}

// Kind returns the loaded model kind, or "" when no model is available.
func (e *Engine) Kind() Kind {
	e.load()
	if e.model == nil {
		return ""
	}
	return e.model.Kind()
}

// CanExplain reports whether explanations can be produced.
func (e *Engine) CanExplain() bool {
	e.load()
	return e.model != nil && e.explainer != nil
}

// Score returns the raw model probability for fv.
func (e *Engine) Score(ctx context.Context, fv FeatureVector) (float64, error) {
	if err := e.Err(); err != nil {
		return 0, err
	}
	_, span := tracer.Start(ctx, "Scoring features")
	defer span.End()

	p, err := e.model.Score(fv.Values())
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	return p, nil
}

// Predict scores fv and applies the decision policy. It never fails: an
// unavailable or failing model yields the pending fallback decision.
func (e *Engine) Predict(ctx context.Context, fv FeatureVector) Decision {
	if err := e.Err(); err != nil {
		logrus.Warnf("scoring skipped: %v", err)
		return Unavailable()
	}
	if HardOverride(fv) {
		return Decide(fv, 1.0)
	}

	p, err := e.Score(ctx, fv)
	if err != nil {
		logrus.Warnf("scoring failed: %v", err)
		return Unavailable()
	}
	return Decide(fv, p)
}

// Explain attributes the raw model output for fv to each feature. The result is
// rejected when its attributions do not add up to the model output.
func (e *Engine) Explain(ctx context.Context, fv FeatureVector) (*Attribution, error) {
	if err := e.Err(); err != nil {
		return nil, err
	}
	if e.explainer == nil {
		return nil, fmt.Errorf("%w: %s model has no explainer", ErrExplainerUnavailable, e.model.Kind())
	}
	_, span := tracer.Start(ctx, "Explaining features")
	defer span.End()

	x := fv.Values()
	attr, err := e.explainer.Explain(x)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrExplainerUnavailable, err)
	}
	if len(attr.Values) != len(x) {
		return nil, fmt.Errorf("%w: got %d attributions for %d features", ErrExplainerUnavailable, len(attr.Values), len(x))
	}

	p, err := e.model.Score(x)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrExplainerUnavailable, err)
	}
	if gap := math.Abs(attr.Sum() - p); gap > ConservationTolerance {
		err := fmt.Errorf("%w: attributions sum to %.6f but model output is %.6f", ErrExplainerUnavailable, attr.Sum(), p)
		span.RecordError(err)
		return nil, err
	}
	return attr, nil
}

// IsUnavailable reports whether err is a degraded-availability error rather than a fault.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrModelUnavailable) || errors.Is(err, ErrExplainerUnavailable)
}
