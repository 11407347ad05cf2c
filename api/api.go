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

package api

import (
	"net/http"

	"github.com/blnkfinance/qercas"
	"github.com/blnkfinance/qercas/api/middleware"
	"github.com/blnkfinance/qercas/config"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Api struct {
	qercas *qercas.Qercas
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router

	router.POST("/transactions", a.RecordTransaction)
	router.GET("/transactions", a.GetAllTransactions)
	router.GET("/transactions/:id", a.GetTransaction)
	router.GET("/transactions/:id/explanation", a.GetExplanation)
	router.GET("/transactions/:id/graph", a.GetTransactionGraph)

	router.GET("/dashboard/summary", a.GetDashboardSummary)
	return a.router
}

func NewAPI(q *qercas.Qercas) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}

	r := gin.Default()
	r.Use(otelgin.Middleware(conf.ProjectName))
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, "server running...")
	})

	r.GET("/health", func(c *gin.Context) {
		if err := q.Engine().Err(); err != nil {
			c.JSON(http.StatusOK, gin.H{"status": "degraded", "model": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "model": q.Engine().Kind()})
	})

	return &Api{qercas: q, router: r}
}
