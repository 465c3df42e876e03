package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"warung/internal/handlers"
	"warung/internal/middleware"
	"warung/internal/models"
	"warung/internal/repositories"
	"warung/internal/services"
	"warung/pkg/rabbitmq"
)

func main() {
	// --- Configuration ---
	viper.SetDefault("APP_PORT", ":8080")
	viper.SetDefault("DB_DRIVER", "sqlite")
	viper.SetDefault("DB_DSN", "warung.db")
	viper.SetDefault("JWT_SECRET", "change-me-in-production")
	viper.SetDefault("RABBITMQ_URL", "") // empty disables events
	viper.SetDefault("ADMIN_EMAIL", "admin@example.com")
	viper.SetDefault("ADMIN_PASSWORD", "admin123")
	viper.AutomaticEnv() // Load environment variables

	appPort := viper.GetString("APP_PORT")

	// --- Database ---
	db, err := openDatabase(viper.GetString("DB_DRIVER"), viper.GetString("DB_DSN"))
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Product{},
		&models.Cart{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// --- RabbitMQ (optional) ---
	var publisher services.EventPublisher
	var mqClient *rabbitmq.Client
	if mqURL := viper.GetString("RABBITMQ_URL"); mqURL != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: mqURL})
		if err != nil {
			log.Fatalf("Failed to initialize RabbitMQ client: %v", err)
		}
		defer mqClient.Close()
		publisher = mqClient
	} else {
		log.Println("RABBITMQ_URL not set, running without order events")
	}

	// --- Repositories ---
	userRepo := repositories.NewGORMUserRepository(db)
	productRepo := repositories.NewGORMProductRepository(db)
	cartRepo := repositories.NewGORMCartRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)

	seedCatalog(db, productRepo)
	seedAdmin(userRepo, viper.GetString("ADMIN_EMAIL"), viper.GetString("ADMIN_PASSWORD"))

	// --- Services ---
	authService := services.NewAuthService(userRepo, viper.GetString("JWT_SECRET"))
	productService := services.NewProductService(productRepo)
	cartService := services.NewCartService(cartRepo, productRepo)
	orderService := services.NewOrderService(db, cartRepo, productRepo, orderRepo, publisher)

	// --- Handlers ---
	authHandler := handlers.NewAuthHandler(authService)
	productHandler := handlers.NewProductHandler(productService)
	cartHandler := handlers.NewCartHandler(cartService)
	orderHandler := handlers.NewOrderHandler(orderService)

	// --- Fiber App ---
	app := fiber.New()
	app.Use(logger.New()) // Request logger

	apiV1 := app.Group("/api/v1")

	// Public routes: auth and catalog reads, registered before the auth
	// middleware groups below
	authHandler.RegisterRoutes(apiV1)
	productHandler.RegisterPublicRoutes(apiV1)

	// Authenticated routes: cart and orders
	authed := apiV1.Group("", middleware.AuthRequired(authService))
	cartHandler.RegisterRoutes(authed)
	orderHandler.RegisterRoutes(authed)

	// Admin routes: catalog writes
	admin := apiV1.Group("", middleware.AdminRequired())
	productHandler.RegisterAdminRoutes(admin)

	// --- Health Check Endpoint ---
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// --- Order Event Consumer ---
	if mqClient != nil {
		go func() {
			log.Println("Starting RabbitMQ consumer for order events...")
			handler := func(msg amqp.Delivery) error {
				log.Printf("Received %s event (tag: %d): %s", msg.Type, msg.DeliveryTag, string(msg.Body))
				return nil
			}
			if consumerErr := mqClient.Consume(handler); consumerErr != nil {
				log.Printf("Failed to start RabbitMQ consumer: %v", consumerErr)
			}
		}()
	}

	// --- Start HTTP Server ---
	log.Printf("Starting server on port %s", appPort)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(appPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}

	log.Println("Server gracefully stopped")
}

// openDatabase opens a GORM connection for the configured driver.
func openDatabase(driver, dsn string) (*gorm.DB, error) {
	switch driver {
	case "postgres":
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	default:
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	}
}

// seedCatalog populates categories and products on an empty database.
func seedCatalog(db *gorm.DB, productRepo repositories.ProductRepository) {
	var count int64
	if err := db.Model(&models.Product{}).Count(&count).Error; err != nil {
		log.Printf("Error checking product count for seeding: %v", err)
		return
	}
	if count > 0 {
		return
	}

	categories := []models.Category{
		{Name: "Electronics"},
		{Name: "Clothing"},
		{Name: "Books"},
	}
	for i := range categories {
		if err := db.FirstOrCreate(&categories[i], models.Category{Name: categories[i].Name}).Error; err != nil {
			log.Printf("Error seeding category %s: %v", categories[i].Name, err)
			return
		}
	}

	products := []models.Product{
		{Name: "Laptop", Description: "High-performance laptop for work and gaming", Price: decimal.NewFromFloat(1299.99), Stock: 50, CategoryID: categories[0].ID},
		{Name: "Smartphone", Description: "Latest smartphone with advanced features", Price: decimal.NewFromFloat(899.99), Stock: 100, CategoryID: categories[0].ID},
		{Name: "Wireless Headphones", Description: "Premium noise-cancelling headphones", Price: decimal.NewFromFloat(249.99), Stock: 75, CategoryID: categories[0].ID},
		{Name: "T-Shirt", Description: "Comfortable cotton t-shirt", Price: decimal.NewFromFloat(19.99), Stock: 200, CategoryID: categories[1].ID},
		{Name: "Jeans", Description: "Classic denim jeans", Price: decimal.NewFromFloat(49.99), Stock: 150, CategoryID: categories[1].ID},
		{Name: "Clean Code", Description: "A Handbook of Agile Software Craftsmanship", Price: decimal.NewFromFloat(44.99), Stock: 25, CategoryID: categories[2].ID},
	}
	for i := range products {
		if err := productRepo.Create(&products[i]); err != nil {
			log.Printf("Error seeding product %s: %v", products[i].Name, err)
		} else {
			log.Printf("Seeded product: %s (ID: %s)", products[i].Name, products[i].ID)
		}
	}
}

// seedAdmin creates the administrative account if it does not exist yet.
func seedAdmin(userRepo repositories.UserRepository, email, password string) {
	if _, err := userRepo.GetByEmail(email); err == nil {
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Error hashing admin password: %v", err)
		return
	}
	admin := &models.User{
		Email:    email,
		Password: string(hashed),
		Role:     models.RoleAdmin,
	}
	if err := userRepo.Create(admin); err != nil {
		log.Printf("Error seeding admin user: %v", err)
		return
	}
	log.Printf("Seeded admin user: %s", email)
}
