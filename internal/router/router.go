package router

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"order_admin/internal/middleware"
	"order_admin/internal/model"
	"order_admin/internal/order"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockCache is the slice of the ledger the admin endpoints need:
// seeding balances from the catalog and reading them back.
type StockCache interface {
	Preload(ctx context.Context, productID uint, stock int64, ttl time.Duration) error
	Balance(ctx context.Context, productID uint) (int64, error)
}

// Deps bundles everything the routes need. RateLimit is optional.
type Deps struct {
	DB     *gorm.DB
	Orders *order.Service
	Stock  StockCache

	RateLimit         gin.HandlerFunc
	PreloadAdminToken string
	StockCacheTTL     time.Duration
}

// Setup registers all HTTP routes.
func Setup(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})

	// Catalogs
	r.GET("/api/products", listProducts(d.DB))
	r.POST("/api/products", createProduct(d.DB))
	r.GET("/api/statuses", listStatuses(d.DB))

	// Orders
	createHandlers := []gin.HandlerFunc{}
	if d.RateLimit != nil {
		createHandlers = append(createHandlers, d.RateLimit)
	}
	createHandlers = append(createHandlers, createOrder(d.Orders))
	r.POST("/api/orders", createHandlers...)
	r.GET("/api/orders/:order_id", getOrder(d.Orders))
	r.POST("/api/orders/:order_id/transition", transitionOrder(d.Orders))

	// Cart reconciliation
	r.POST("/api/cart/validate", validateCart(d.Orders))

	// Stock ledger admin
	if d.Stock != nil {
		r.POST("/api/stock/preload/:product_id", preloadStock(d.DB, d.Stock, d.PreloadAdminToken, d.StockCacheTTL))
		r.GET("/api/stock/:product_id", getStock(d.Stock))
	}
}

// fail writes the error envelope: message plus correlation id.
func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"code": status, "msg": msg, "req_id": c.GetString(middleware.ReqIDKey)})
}

// failErr maps service errors onto HTTP statuses.
func failErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrInvalidItem),
		errors.Is(err, order.ErrStatusNotFound),
		errors.Is(err, order.ErrTerminalStatus),
		errors.Is(err, order.ErrNoNextStatus),
		errors.Is(err, order.ErrObservationRequired):
		fail(c, http.StatusBadRequest, err.Error())
	default:
		fail(c, http.StatusInternalServerError, err.Error())
	}
}

func listProducts(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var list []model.Product
		if err := db.Find(&list).Error; err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": list})
	}
}

func createProduct(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name   string          `json:"name" binding:"required"`
			Price  decimal.Decimal `json:"price"`
			Stock  int64           `json:"stock" binding:"min=0"`
			Active *bool           `json:"active"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		if req.Price.IsNegative() {
			fail(c, http.StatusBadRequest, "price must be >= 0")
			return
		}
		active := true
		if req.Active != nil {
			active = *req.Active
		}
		p := &model.Product{Name: req.Name, Price: req.Price, Stock: req.Stock, Active: active}
		if err := db.Create(p).Error; err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": p})
	}
}

func listStatuses(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var list []model.Status
		if err := db.Order("id ASC").Find(&list).Error; err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": list})
	}
}

func createOrder(svc *order.Service) gin.HandlerFunc {
	type itemReq struct {
		ProductID   uint            `json:"product_id" binding:"required,min=1"`
		Qty         int             `json:"qty" binding:"required,min=1"`
		Price       decimal.Decimal `json:"price"`
		WarehouseID *uint           `json:"warehouse_id"`
	}
	return func(c *gin.Context) {
		var req struct {
			StatusCode  uint             `json:"status_code" binding:"required,min=1"`
			Items       []itemReq        `json:"items" binding:"required,min=1,dive"`
			UserID      string           `json:"user_id"`
			Tax         *decimal.Decimal `json:"tax"`
			DeliveryFee *decimal.Decimal `json:"delivery_fee"`
			Adjustment  *decimal.Decimal `json:"adjustment"`

			InvoiceNumber *string  `json:"invoice_number"`
			TaxID         *string  `json:"tax_id"`
			Latitude      *float64 `json:"latitude"`
			Longitude     *float64 `json:"longitude"`
			DeviceType    *string  `json:"device_type"`
			Observation   string   `json:"observation"`
			ActingUser    string   `json:"acting_user"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}

		in := order.CreateInput{
			StatusID:      req.StatusCode,
			UserID:        req.UserID,
			Tax:           orZero(req.Tax),
			DeliveryFee:   orZero(req.DeliveryFee),
			Adjustment:    orZero(req.Adjustment),
			InvoiceNumber: req.InvoiceNumber,
			TaxID:         req.TaxID,
			Latitude:      req.Latitude,
			Longitude:     req.Longitude,
			DeviceType:    req.DeviceType,
			Observation:   req.Observation,
			ActingUser:    req.ActingUser,
		}
		for _, it := range req.Items {
			in.Items = append(in.Items, order.CreateItem{
				ProductID:   it.ProductID,
				Quantity:    it.Qty,
				UnitPrice:   it.Price,
				WarehouseID: it.WarehouseID,
			})
		}

		res, err := svc.Create(c.Request.Context(), in)
		if err != nil {
			failErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"code": 0, "data": res})
	}
}

func getOrder(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := orderIDParam(c)
		if !ok {
			return
		}
		ord, err := svc.Get(c.Request.Context(), id)
		if err != nil {
			failErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": ord})
	}
}

func transitionOrder(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := orderIDParam(c)
		if !ok {
			return
		}
		var req struct {
			DestinationStatus *uint  `json:"destination_status"`
			Observation       string `json:"observation"`
			ActingUser        string `json:"acting_user"`
			WarehouseID       *uint  `json:"warehouse_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}

		ord, err := svc.Transition(c.Request.Context(), order.TransitionInput{
			OrderID:     id,
			Destination: req.DestinationStatus,
			Observation: req.Observation,
			ActingUser:  req.ActingUser,
			WarehouseID: req.WarehouseID,
		})
		if err != nil {
			failErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": ord})
	}
}

func validateCart(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Items []order.CartItem `json:"items" binding:"required,min=1"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		for _, it := range req.Items {
			if it.ProductID == 0 || it.Quantity <= 0 || it.Price.IsNegative() {
				fail(c, http.StatusBadRequest, "items need id, quantity > 0 and price >= 0")
				return
			}
		}

		res, err := svc.ValidateCart(c.Request.Context(), req.Items)
		if err != nil {
			failErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": res})
	}
}

// preloadStock copies catalog stock into the ledger cache. Guarded by a
// simple admin token so nobody resets live balances by accident.
func preloadStock(db *gorm.DB, cache StockCache, adminToken string, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Admin-Token") != adminToken {
			fail(c, http.StatusUnauthorized, "invalid admin token")
			return
		}

		idStr := c.Param("product_id")
		id, err := strconv.ParseUint(idStr, 10, 32)
		if err != nil {
			fail(c, http.StatusBadRequest, "invalid product id")
			return
		}
		var p model.Product
		if err := db.First(&p, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				fail(c, http.StatusNotFound, "product not found")
				return
			}
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		if err := cache.Preload(c.Request.Context(), uint(id), p.Stock, ttl); err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "stock preloaded"})
	}
}

func getStock(cache StockCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		idStr := c.Param("product_id")
		id, err := strconv.ParseUint(idStr, 10, 32)
		if err != nil {
			fail(c, http.StatusBadRequest, "invalid product id")
			return
		}
		val, err := cache.Balance(c.Request.Context(), uint(id))
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"stock": val}})
	}
}

func orderIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("order_id"), 10, 32)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, "invalid order id")
		return 0, false
	}
	return uint(id), true
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
