package api

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/bizdesk/backoffice/internal/api/handler"
	"github.com/bizdesk/backoffice/internal/api/middleware"
	"github.com/bizdesk/backoffice/internal/core/ports"
	"github.com/bizdesk/backoffice/internal/infrastructure/http/handlers"
)

// Dependencies are the wired services and probes the router exposes.
// Mongo and Redis are optional.
type Dependencies struct {
	Auth      ports.AuthService
	Orders    ports.OrderService
	Customers ports.CustomerService
	Products  ports.ProductService

	Store ports.Store
	Mongo *mongo.Database
	Redis *redis.Client

	JWTSecret string
	Errors    ErrorOptions
	Logger    zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Logger, deps.Errors)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(deps.Logger))
	e.Use(middleware.Metrics(StatusCode(deps.Errors)))

	// --- Health probes (no auth required) ---
	healthHandler := handlers.NewHealthHandler()
	healthDepsHandler := handlers.NewHealthDependenciesHandler(deps.Store.Ping).
		WithMongo(deps.Mongo).
		WithRedis(deps.Redis)

	e.GET("/health", healthHandler.Liveness)            // liveness
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness: store, mongo, redis

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(deps.Auth)
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)

	// --- Authenticated API ---
	v1 := e.Group("/v1", middleware.Auth(deps.JWTSecret))
	staff := middleware.StaffOnly()
	adminOnly := middleware.AdminOnly()

	v1.POST("/users", authHandler.CreateUser, staff)

	orderHandler := handler.NewOrderHandler(deps.Orders)
	v1.POST("/orders", orderHandler.Create)
	v1.GET("/orders", orderHandler.List)
	v1.GET("/orders/:id", orderHandler.Get)
	v1.PATCH("/orders/:id/status", orderHandler.Transition)
	v1.PATCH("/orders/:id/assignee", orderHandler.Reassign, staff)
	v1.DELETE("/orders/:id", orderHandler.Delete)

	customerHandler := handler.NewCustomerHandler(deps.Customers)
	v1.GET("/customers", customerHandler.List)
	v1.GET("/customers/:id", customerHandler.Get)
	v1.PUT("/customers/:id/assignment", customerHandler.Assign, adminOnly)
	v1.DELETE("/customers/:id/assignment", customerHandler.Unassign, adminOnly)

	productHandler := handler.NewProductHandler(deps.Products)
	v1.GET("/products", productHandler.List)
	v1.GET("/products/:id", productHandler.Get)
	v1.POST("/products", productHandler.Create, adminOnly)
	v1.POST("/products/:id/restock", productHandler.Restock, adminOnly)

	return e
}
