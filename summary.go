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

package qercas

import (
	"context"

	"github.com/blnkfinance/qercas/config"
	"github.com/blnkfinance/qercas/model"
)

// GetDashboardSummary returns the dashboard counters. Alert and pending
// explanation counts come from the store; the rest are configured values.
func (q *Qercas) GetDashboardSummary(ctx context.Context) (*model.DashboardSummary, error) {
	ctx, span := tracer.Start(ctx, "Building Dashboard Summary")
	defer span.End()

	summary, err := q.datasource.GetDashboardCounts(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	summary.ActiveQuantumTasks = cfg.Dashboard.ActiveQuantumTasks
	summary.RegulatoryUpdates = cfg.Dashboard.RegulatoryUpdates
	return summary, nil
}
