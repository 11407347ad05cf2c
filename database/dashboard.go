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

	"github.com/blnkfinance/qercas/internal/apierror"
	"github.com/blnkfinance/qercas/model"
	"go.opentelemetry.io/otel"
)

func (d Datasource) GetDashboardCounts(ctx context.Context) (*model.DashboardSummary, error) {
	ctx, span := otel.Tracer("Dashboard").Start(ctx, "Counting risky transactions")
	defer span.End()

	summary := &model.DashboardSummary{}
	err := d.Conn.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE t.status IN ('HIGH_RISK', 'BLOCKED')),
			COUNT(*) FILTER (WHERE t.status IN ('HIGH_RISK', 'BLOCKED') AND e.transaction_id IS NULL)
		FROM qercas.transactions t
		LEFT JOIN qercas.explanations e ON e.transaction_id = t.id
	`).Scan(&summary.RealTimeAlerts, &summary.PendingExplanations)
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to count transactions", err)
	}

	return summary, nil
}
