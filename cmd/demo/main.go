// Command demo serves fake Flash and Caju APIs with procedurally generated
// statements, for exercising the exporter end to end without real credentials.
//
// Point the exporter at it with:
//
//	extrato -provider caju -base-url http://localhost:8080 \
//	  -bearer-token demo -refresh-token demo -user-id demo -employee-id demo
//
// or, to walk the full SMS login flow (any code passes):
//
//	extrato -provider flash -flash-base-url http://localhost:8080 \
//	  -flash-username demo -flash-password demo -flash-company demo -employee-id demo
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const (
	cajuPageSize  = 20
	flashDateForm = "2006-01-02T15:04:05.000Z"
)

func main() {
	port := flag.Uint("port", 8080, "Server port to listen on")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(
		ginzap.Ginzap(logger, time.RFC3339, true),
		gin.Recovery(),
	)

	// handlers run concurrently, so the request counter must be atomic
	requests := atomic.NewInt64(0)
	engine.Use(func(c *gin.Context) {
		requests.Inc()
		c.Next()
	})
	engine.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"requests": requests.Load()})
	})

	setupFlashRoutes(engine)
	setupCajuRoutes(engine)

	addr := fmt.Sprintf("0.0.0.0:%d", *port)
	logger.Info("Starting demo provider server", zap.String("addr", addr))
	if err := engine.Run(addr); err != nil {
		logger.Error("Server run failed", zap.Error(err))
		os.Exit(1)
	}
}

func setupFlashRoutes(engine *gin.Engine) {
	engine.POST("/flash/auth", func(c *gin.Context) {
		switch c.GetHeader("X-Amz-Target") {
		case "AWSCognitoIdentityProviderService.InitiateAuth":
			c.JSON(http.StatusOK, gin.H{
				"ChallengeName": "SMS_MFA",
				"Session":       "demo-session",
			})
		case "AWSCognitoIdentityProviderService.RespondToAuthChallenge":
			// any SMS code passes
			c.JSON(http.StatusOK, gin.H{
				"AuthenticationResult": gin.H{
					"AccessToken":  "demo-cognito-token",
					"ExpiresIn":    3600,
					"TokenType":    "Bearer",
					"RefreshToken": "demo-refresh",
					"IdToken":      "demo-id",
				},
			})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"message": "Unknown auth target"})
		}
	})

	engine.POST("/flash/entrance/trpc/signInEmployee", func(c *gin.Context) {
		var body struct {
			EmployeeID string `json:"employeeId"`
			CompanyID  string `json:"companyId"`
		}
		if err := c.BindJSON(&body); err != nil {
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"result": gin.H{"data": gin.H{"token": "demo-api-token-" + body.EmployeeID}},
		})
	})

	engine.GET("/flash/bff/person.getStatement", func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Missing token"})
			return
		}
		var input map[string]struct {
			JSON struct {
				Pagination struct {
					CurrentPage int `json:"currentPage"`
					PageSize    int `json:"pageSize"`
				} `json:"pagination"`
				Filter struct {
					StartDate string `json:"startDate"`
					EndDate   string `json:"endDate"`
				} `json:"filter"`
			} `json:"json"`
		}
		if err := json.Unmarshal([]byte(c.Query("input")), &input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid input query"})
			return
		}
		query, ok := input["0"]
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Missing batch input"})
			return
		}
		start, err := time.Parse(flashDateForm, query.JSON.Filter.StartDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid start date"})
			return
		}
		end, err := time.Parse(flashDateForm, query.JSON.Filter.EndDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid end date"})
			return
		}

		txns := newGenerator(c.GetHeader("Company-Id")).transactions(start, end)
		pageSize := query.JSON.Pagination.PageSize
		if pageSize <= 0 {
			pageSize = 100
		}
		page := query.JSON.Pagination.CurrentPage
		totalPages := (len(txns) + pageSize - 1) / pageSize

		items := make([]gin.H, 0, pageSize)
		for i := page * pageSize; i < (page+1)*pageSize && i < len(txns); i++ {
			txn := txns[i]
			txnType := "OPEN_LOOP_PAYMENT"
			if txn.Deposit {
				txnType = "DEPOSIT"
			}
			items = append(items, gin.H{
				"_id":         txn.ID,
				"date":        txn.Date.UTC().Format(flashDateForm),
				"amount":      txn.Centavos,
				"description": txn.Description,
				"status":      "COMPLETED",
				"type":        txnType,
			})
		}
		c.JSON(http.StatusOK, []gin.H{{
			"result": gin.H{"data": gin.H{"json": gin.H{
				"items": items,
				"meta": gin.H{
					"currentPage": page,
					"totalItems":  len(txns),
					"totalPages":  totalPages,
					"pageSize":    pageSize,
				},
			}}},
		}})
	})
}

func setupCajuRoutes(engine *gin.Engine) {
	engine.POST("/v1/user/:userID/bearer_token", func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Missing token"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"bearerToken": "demo-bearer-" + c.Param("userID")})
	})

	engine.GET("/v1/employee/:employeeID/statement", func(c *gin.Context) {
		start, err := time.Parse("2006-01-02", c.Query("start_date"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid start_date"})
			return
		}
		end, err := time.Parse("2006-01-02", c.Query("end_date"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid end_date"})
			return
		}
		end = end.AddDate(0, 0, 1) // end_date is inclusive

		offset := 0
		if cursor := c.Query("cursor"); cursor != "" {
			offset, err = strconv.Atoi(cursor)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid cursor"})
				return
			}
		}

		// the real API returns newest first
		txns := newGenerator(c.Param("employeeID")).transactions(start, end)
		for i, j := 0, len(txns)-1; i < j; i, j = i+1, j-1 {
			txns[i], txns[j] = txns[j], txns[i]
		}

		items := make([]gin.H, 0, cajuPageSize)
		for i := offset; i < offset+cajuPageSize && i < len(txns); i++ {
			txn := txns[i]
			action := "DEBIT"
			var data gin.H
			if txn.Deposit {
				action = "CREDIT"
			} else {
				data = gin.H{"merchantName": txn.Description, "operationType": "PURCHASE"}
			}
			items = append(items, gin.H{
				"cursor": strconv.Itoa(i + 1),
				"item": gin.H{
					"id":        txn.ID,
					"action":    action,
					"amount":    txn.Centavos,
					"status":    "CONFIRMED",
					"createdAt": txn.Date.UTC().Format(flashDateForm),
					"data":      data,
				},
			})
		}
		c.JSON(http.StatusOK, gin.H{
			"hasNext": offset+cajuPageSize < len(txns),
			"items":   items,
		})
	})
}
