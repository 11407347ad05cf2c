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

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/blnkfinance/qercas/internal/apierror"
	"github.com/blnkfinance/qercas/internal/cache"
	"github.com/blnkfinance/qercas/model"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

// explanations never change once written, so cached copies only expire to bound memory.
const explanationCacheTTL = 24 * time.Hour

func explanationCacheKey(transactionID string) string {
	return "explanation:" + transactionID
}

func (d Datasource) RecordExplanation(ctx context.Context, exp *model.Explanation) error {
	ctx, span := otel.Tracer("Explanation store").Start(ctx, "Saving explanation to db")
	defer span.End()

	if err := exp.Validate(); err != nil {
		return apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), nil)
	}

	shapValues, err := json.Marshal(exp.ShapValues)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal attributions", err)
	}
	featureNames, err := json.Marshal(exp.FeatureNames)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal feature names", err)
	}
	featureValues, err := json.Marshal(exp.FeatureValues)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal feature values", err)
	}

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO qercas.explanations(transaction_id, base_value, shap_values, feature_names, feature_values, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (transaction_id) DO NOTHING
	`, exp.TransactionID, *exp.BaseValue, shapValues, featureNames, featureValues, exp.CreatedAt)
	if err != nil {
		span.RecordError(err)
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record explanation", err)
	}

	return nil
}

func (d Datasource) GetExplanation(ctx context.Context, transactionID string) (*model.Explanation, error) {
	ctx, span := otel.Tracer("Explanation store").Start(ctx, "Fetching explanation")
	defer span.End()

	key := explanationCacheKey(transactionID)
	if d.Cache != nil {
		cached := &model.Explanation{}
		err := d.Cache.Get(ctx, key, cached)
		if err == nil {
			cached.TransactionID = transactionID
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logrus.Warnf("explanation cache read failed for %s: %v", transactionID, err)
		}
	}

	row := d.Conn.QueryRowContext(ctx, `
		SELECT transaction_id, base_value, shap_values, feature_names, feature_values, created_at
		FROM qercas.explanations
		WHERE transaction_id = $1
	`, transactionID)

	exp := &model.Explanation{}
	var baseValue float64
	var shapValues, featureNames, featureValues []byte
	err := row.Scan(&exp.TransactionID, &baseValue, &shapValues, &featureNames, &featureValues, &exp.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Explanation for transaction '%s' not found", transactionID), err)
		}
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve explanation", err)
	}
	exp.BaseValue = &baseValue

	for _, field := range []struct {
		raw  []byte
		dest interface{}
	}{{shapValues, &exp.ShapValues}, {featureNames, &exp.FeatureNames}, {featureValues, &exp.FeatureValues}} {
		if err := json.Unmarshal(field.raw, field.dest); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal explanation", err)
		}
	}

	if d.Cache != nil {
		if err := d.Cache.Set(ctx, key, exp, explanationCacheTTL); err != nil {
			logrus.Warnf("explanation cache write failed for %s: %v", transactionID, err)
		}
	}

	return exp, nil
}
