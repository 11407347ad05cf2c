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
	"strconv"

	"github.com/sirupsen/logrus"

	model2 "github.com/blnkfinance/qercas/api/model"
	"github.com/blnkfinance/qercas/internal/apierror"
	"github.com/blnkfinance/qercas/internal/graph"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// transactionIDParam reads the :id route parameter. Anything that is not a
// UUID cannot name a stored transaction, so it is answered with 404 here.
func transactionIDParam(c *gin.Context) (string, bool) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return "", false
	}
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Transaction with ID '" + id + "' not found"})
		return "", false
	}
	return id, true
}

// RecordTransaction ingests a transaction. It is stored as PENDING and its
// risk analysis runs in the background.
//
// Responses:
// - 400 Bad Request: If the body cannot be bound or fails validation.
// - 201 Created: With the stored transaction.
func (a Api) RecordTransaction(c *gin.Context) {
	var newTransaction model2.RecordTransaction
	if err := c.ShouldBindJSON(&newTransaction); err != nil {
		logrus.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if err := newTransaction.ValidateRecordTransaction(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	txn, err := newTransaction.ToTransaction()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.qercas.RecordTransaction(c.Request.Context(), txn)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// GetTransaction returns one transaction with its current status.
func (a Api) GetTransaction(c *gin.Context) {
	id, ok := transactionIDParam(c)
	if !ok {
		return
	}

	resp, err := a.qercas.GetTransaction(c.Request.Context(), id)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetAllTransactions lists transactions newest first. Accepts limit and offset query parameters.
func (a Api) GetAllTransactions(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be an integer"})
		return
	}

	resp, err := a.qercas.GetAllTransactions(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetExplanation returns the feature attribution of a risky decision.
func (a Api) GetExplanation(c *gin.Context) {
	id, ok := transactionIDParam(c)
	if !ok {
		return
	}

	resp, err := a.qercas.GetExplanation(c.Request.Context(), id)
	if err != nil {
		if apierror.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Explanation not found or not yet generated."})
			return
		}
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetTransactionGraph serves the network snapshot of a flagged transaction as PNG.
func (a Api) GetTransactionGraph(c *gin.Context) {
	id, ok := transactionIDParam(c)
	if !ok {
		return
	}

	path, err := a.qercas.GetTransactionGraph(c.Request.Context(), id)
	if err != nil {
		if err == graph.ErrNoGraph {
			c.JSON(http.StatusNotFound, gin.H{"error": "Graph not generated"})
			return
		}
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.File(path)
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
