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
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/blnkfinance/qercas/internal/apierror"
	"github.com/blnkfinance/qercas/internal/cache"
	"github.com/blnkfinance/qercas/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wacul/ptr"
)

var explanationRowColumns = []string{"transaction_id", "base_value", "shap_values", "feature_names", "feature_values", "created_at"}

func sampleExplanation() *model.Explanation {
	return &model.Explanation{
		TransactionID: "0b6f5f0e-6c1e-4c38-9b8e-0a4f3c1f8d11",
		BaseValue:     ptr.Float64(0.29),
		ShapValues:    []float64{0.31, 0, 0.05, 0.15},
		FeatureNames:  []string{"amount", "day_of_week", "hour_of_day", "is_crypto"},
		FeatureValues: []float64{250000, 4, 2, 1},
		CreatedAt:     time.Date(2024, 1, 18, 2, 0, 5, 0, time.UTC),
	}
}

func explanationRow(exp *model.Explanation) *sqlmock.Rows {
	shap, _ := json.Marshal(exp.ShapValues)
	names, _ := json.Marshal(exp.FeatureNames)
	values, _ := json.Marshal(exp.FeatureValues)
	return sqlmock.NewRows(explanationRowColumns).AddRow(exp.TransactionID, *exp.BaseValue, shap, names, values, exp.CreatedAt)
}

func TestRecordExplanation(t *testing.T) {
	ds, mock := newMockDatasource(t)
	exp := sampleExplanation()

	shap, _ := json.Marshal(exp.ShapValues)
	names, _ := json.Marshal(exp.FeatureNames)
	values, _ := json.Marshal(exp.FeatureValues)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (transaction_id) DO NOTHING")).
		WithArgs(exp.TransactionID, 0.29, shap, names, values, exp.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, ds.RecordExplanation(context.Background(), exp))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordExplanation_Invalid(t *testing.T) {
	ds, mock := newMockDatasource(t)
	exp := sampleExplanation()
	exp.BaseValue = nil

	err := ds.RecordExplanation(context.Background(), exp)
	assert.True(t, apierror.HasCode(err, apierror.ErrInvalidInput))

	exp = sampleExplanation()
	exp.ShapValues = exp.ShapValues[:2]
	err = ds.RecordExplanation(context.Background(), exp)
	assert.True(t, apierror.HasCode(err, apierror.ErrInvalidInput))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetExplanation(t *testing.T) {
	ds, mock := newMockDatasource(t)
	exp := sampleExplanation()

	mock.ExpectQuery("FROM qercas.explanations").WithArgs(exp.TransactionID).WillReturnRows(explanationRow(exp))

	got, err := ds.GetExplanation(context.Background(), exp.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, exp, got)
	assert.InDelta(t, 0.8, got.Output(), 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetExplanation_NotFound(t *testing.T) {
	ds, mock := newMockDatasource(t)

	mock.ExpectQuery("FROM qercas.explanations").WithArgs("none").WillReturnError(sql.ErrNoRows)

	_, err := ds.GetExplanation(context.Background(), "none")
	assert.True(t, apierror.IsNotFound(err))
}

func TestGetExplanation_Cached(t *testing.T) {
	ds, mock := newMockDatasource(t)
	mr := miniredis.RunT(t)
	ds.Cache = cache.NewRedisCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	exp := sampleExplanation()

	// only the first read reaches the database
	mock.ExpectQuery("FROM qercas.explanations").WithArgs(exp.TransactionID).WillReturnRows(explanationRow(exp))

	first, err := ds.GetExplanation(context.Background(), exp.TransactionID)
	require.NoError(t, err)
	second, err := ds.GetExplanation(context.Background(), exp.TransactionID)
	require.NoError(t, err)

	assert.Equal(t, first.ShapValues, second.ShapValues)
	assert.Equal(t, *first.BaseValue, *second.BaseValue)
	assert.Equal(t, exp.TransactionID, second.TransactionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
