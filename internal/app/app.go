package app

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"ipsentry/internal/app/bootstrap"
	"ipsentry/internal/blocklist"
	"ipsentry/internal/config"
	"ipsentry/internal/support"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found. Falling back to system environment variables.")
	}
}

// Run is the analyzer entrypoint: bootstrap the components, start the
// background routines, and serve the tracked HTTP surface until interrupted.
func Run() {
	log.Info("Starting Program")
	log.SetLevel(log.DebugLevel)

	portFlag := flag.Int("port", 8082, "Port to listen on")
	productionFlag := flag.Bool("production", false, "Run in production mode")
	flag.Parse()

	config.SetProductionMode(*productionFlag)
	if *productionFlag {
		log.SetLevel(log.InfoLevel)
		gin.SetMode(gin.ReleaseMode)
	}

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil || port == 0 {
		port = *portFlag
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := bootstrap.Setup(ctx)
	if err != nil {
		log.Fatal("Bootstrap failed", "error", err)
	}
	defer support.CloseRedisClient()

	bootstrap.StartRoutines(ctx, components)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(components.Tracker.Gin())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/blocked", func(c *gin.Context) {
		entries, err := components.Registry.List(c.Request.Context(), blocklist.FilterActive)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, entries)
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		log.Info("Shutting down")
		if err := server.Close(); err != nil {
			log.Warn("Server close failed", "error", err)
		}
	}()

	log.Info("Listening", "port", port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("Server failed", "error", err)
	}
}
